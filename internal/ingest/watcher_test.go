package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPackWatcherLoadsInitialPack(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "policy_pack.md", "# Policy\n\n[CITE=POL-001]\nPolicy text.\n")

	pw, err := NewPackWatcher(dir, nil)
	if err != nil {
		t.Fatalf("NewPackWatcher() error = %v", err)
	}
	if err := pw.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer pw.Stop()

	pack := pw.Current()
	if pack == nil {
		t.Fatalf("Current() = nil after Start")
	}
	if len(pack.AllExcerpts()) != 1 {
		t.Errorf("AllExcerpts() = %d, want 1", len(pack.AllExcerpts()))
	}
}

func TestPackWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "policy_pack.md", "# Policy\n\n[CITE=POL-001]\nPolicy text.\n")

	reloaded := make(chan *Pack, 4)
	pw, err := NewPackWatcher(dir, func(p *Pack) { reloaded <- p })
	if err != nil {
		t.Fatalf("NewPackWatcher() error = %v", err)
	}
	if err := pw.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer pw.Stop()

	// Initial load fires the callback once.
	select {
	case <-reloaded:
	case <-time.After(2 * time.Second):
		t.Fatalf("initial load callback never fired")
	}

	writeDoc(t, dir, "evidence_new.md", "# Evidence\n\n[CITE=EVI-050]\nNew evidence.\n")

	select {
	case pack := <-reloaded:
		if len(pack.AllExcerpts()) != 2 {
			t.Errorf("reloaded pack has %d excerpts, want 2", len(pack.AllExcerpts()))
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("reload never fired after doc change")
	}
}

func TestPackWatcherIgnoresNonMarkdown(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "policy_pack.md", "# Policy\n\n[CITE=POL-001]\nPolicy text.\n")

	reloaded := make(chan *Pack, 4)
	pw, err := NewPackWatcher(dir, func(p *Pack) { reloaded <- p })
	if err != nil {
		t.Fatalf("NewPackWatcher() error = %v", err)
	}
	if err := pw.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer pw.Stop()

	<-reloaded // initial load

	writeDoc(t, dir, "scratch.txt", "not a document")

	select {
	case <-reloaded:
		t.Errorf("non-markdown write triggered a reload")
	case <-time.After(1 * time.Second):
	}
}

func TestPackWatcherStartFailureLeavesStoppable(t *testing.T) {
	dir := t.TempDir()
	// A directory with a .md name makes the pack load fail on read.
	if err := os.Mkdir(filepath.Join(dir, "broken.md"), 0o755); err != nil {
		t.Fatalf("Mkdir() error = %v", err)
	}

	pw, err := NewPackWatcher(dir, nil)
	if err != nil {
		t.Fatalf("NewPackWatcher() error = %v", err)
	}
	if err := pw.Start(context.Background()); err == nil {
		t.Fatalf("Start() error = nil, want pack load failure")
	}

	// The loop never started; Stop must return instead of waiting for it.
	done := make(chan struct{})
	go func() {
		pw.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Stop() blocked after failed Start")
	}
}

func TestPackWatcherStopIdempotent(t *testing.T) {
	dir := t.TempDir()
	pw, err := NewPackWatcher(dir, nil)
	if err != nil {
		t.Fatalf("NewPackWatcher() error = %v", err)
	}
	if err := pw.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	pw.Stop()
	pw.Stop()
}
