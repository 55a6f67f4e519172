package ingest

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"proofgate/internal/logging"
)

// PackWatcher watches a docs directory and reloads the evidence pack when
// documents change. Reloads are debounced so a burst of editor saves produces
// one reload.
type PackWatcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	docsDir     string
	debounceDur time.Duration
	onReload    func(*Pack)
	pack        *Pack
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// NewPackWatcher creates a watcher for docsDir. onReload is called with each
// freshly loaded pack; it may be nil when only Current is used.
func NewPackWatcher(docsDir string, onReload func(*Pack)) (*PackWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &PackWatcher{
		watcher:     watcher,
		docsDir:     docsDir,
		debounceDur: 500 * time.Millisecond,
		onReload:    onReload,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start loads the pack once, then begins watching. Non-blocking.
func (pw *PackWatcher) Start(ctx context.Context) error {
	pw.mu.Lock()
	if pw.running {
		pw.mu.Unlock()
		return nil
	}
	pw.running = true
	pw.mu.Unlock()

	pack, err := LoadPack(pw.docsDir)
	if err != nil {
		// The loop never starts on this path; undo running so a later Start
		// can retry and Stop doesn't wait on doneCh forever.
		pw.mu.Lock()
		pw.running = false
		pw.mu.Unlock()
		_ = pw.watcher.Close()
		return err
	}
	pw.setPack(pack)

	if err := pw.watcher.Add(pw.docsDir); err != nil {
		logging.Get(logging.CategoryIngest).Warn("watch failed for %s: %v", pw.docsDir, err)
	} else {
		logging.Ingest("watching docs directory: %s", pw.docsDir)
	}

	go pw.loop(ctx)
	return nil
}

// Current returns the most recently loaded pack.
func (pw *PackWatcher) Current() *Pack {
	pw.mu.RLock()
	defer pw.mu.RUnlock()
	return pw.pack
}

func (pw *PackWatcher) setPack(pack *Pack) {
	pw.mu.Lock()
	pw.pack = pack
	pw.mu.Unlock()
	if pw.onReload != nil {
		pw.onReload(pack)
	}
}

func (pw *PackWatcher) loop(ctx context.Context) {
	defer close(pw.doneCh)

	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-pw.stopCh:
			return
		case event, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".md") {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logging.Get(logging.CategoryIngest).Debug("doc event: %s %s", event.Op, filepath.Base(event.Name))
			pending = time.After(pw.debounceDur)
		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryIngest).Warn("watcher error: %v", err)
		case <-pending:
			pending = nil
			pack, err := LoadPack(pw.docsDir)
			if err != nil {
				logging.Get(logging.CategoryIngest).Error("pack reload failed: %v", err)
				continue
			}
			pw.setPack(pack)
			logging.Ingest("pack reloaded: %d excerpts", len(pack.AllExcerpts()))
			logging.Audit().PackReload(len(pack.Documents), len(pack.AllExcerpts()))
		}
	}
}

// Stop ends the watch loop and releases the underlying watcher.
func (pw *PackWatcher) Stop() {
	pw.mu.Lock()
	if !pw.running {
		pw.mu.Unlock()
		return
	}
	pw.running = false
	pw.mu.Unlock()

	close(pw.stopCh)
	<-pw.doneCh
	_ = pw.watcher.Close()
}
