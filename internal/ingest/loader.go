// Package ingest loads source documents and cuts them into citable excerpts.
// Documents must carry pre-defined [CITE=XXX-###] markers; ingestion is a
// static split on those markers, never a semantic chunker.
package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"proofgate/internal/logging"
	"proofgate/internal/schema"
)

// citePattern extracts cite tokens and the text that follows each, up to the
// next token or end of document.
var citePattern = regexp.MustCompile(`(?s)\[CITE=([A-Z]{3}-\d{3})\]\s*\n(.*?)(?:\[CITE=|\z)`)

// trailingRule strips a trailing markdown horizontal rule left between
// excerpts.
var trailingRule = regexp.MustCompile(`\n---\s*$`)

// LoadDocument reads a document from disk. The title comes from the first
// markdown heading, falling back to the file stem.
func LoadDocument(path string, docType schema.DocType, docID string) (schema.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return schema.Document{}, fmt.Errorf("failed to read document %s: %w", path, err)
	}

	if docID == "" {
		docID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	title := extractTitle(string(content))
	if title == "" {
		title = docID
	}

	return schema.NewDocument(docID, docType, title, string(content)), nil
}

func extractTitle(content string) string {
	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(line[2:])
		}
	}
	return ""
}

// ParseExcerpts splits a document into excerpt blocks on its [CITE=XXX-###]
// markers. Text outside any marker is ignored.
func ParseExcerpts(doc schema.Document) []schema.Excerpt {
	var excerpts []schema.Excerpt

	content := doc.Content
	for len(content) > 0 {
		match := citePattern.FindStringSubmatchIndex(content)
		if match == nil {
			break
		}
		id := content[match[2]:match[3]]
		text := strings.TrimSpace(content[match[4]:match[5]])
		text = strings.TrimSpace(trailingRule.ReplaceAllString(text, ""))

		excerpts = append(excerpts, schema.NewExcerpt(id, doc.DocID, doc.DocType, text))

		// Resume at the start of the next marker; the non-capturing
		// lookahead group consumed its opening bracket.
		if match[5] >= len(content) {
			break
		}
		content = content[match[5]:]
	}

	return excerpts
}

// Pack is a loaded evidence pack: all documents plus their excerpts grouped
// by document type.
type Pack struct {
	Documents []schema.Document
	Excerpts  schema.ExcerptSet
}

// AllExcerpts flattens the pack's excerpts in document-type order.
func (p *Pack) AllExcerpts() []schema.Excerpt {
	return p.Excerpts.Flatten()
}

// LoadPack loads every *.md document under docsDir. Document type is derived
// from the filename prefix (policy, contract, evidence); anything else
// defaults to evidence.
func LoadPack(docsDir string) (*Pack, error) {
	paths, err := filepath.Glob(filepath.Join(docsDir, "*.md"))
	if err != nil {
		return nil, fmt.Errorf("failed to glob docs dir %s: %w", docsDir, err)
	}

	pack := &Pack{Excerpts: schema.ExcerptSet{}}

	for _, path := range paths {
		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		docType := schema.DocTypeEvidence
		for _, dt := range schema.DocTypes {
			if strings.HasPrefix(stem, string(dt)) {
				docType = dt
				break
			}
		}

		doc, err := LoadDocument(path, docType, "")
		if err != nil {
			return nil, err
		}
		pack.Documents = append(pack.Documents, doc)
		pack.Excerpts[docType] = append(pack.Excerpts[docType], ParseExcerpts(doc)...)
	}

	logging.Ingest("loaded pack from %s: %d documents, %d excerpts", docsDir, len(pack.Documents), len(pack.AllExcerpts()))
	return pack, nil
}
