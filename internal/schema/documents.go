// Package schema defines the shared data model for ProofGate: source documents,
// citable excerpts, agent outputs, and run traces. Everything that crosses a
// component boundary lives here so the orchestrator, guard, store, and API glue
// agree on one set of types.
package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DocType classifies a source document and the excerpts cut from it.
type DocType string

const (
	DocTypePolicy   DocType = "policy"
	DocTypeContract DocType = "contract"
	DocTypeEvidence DocType = "evidence"
)

// DocTypes lists all document types in presentation order. Agent contexts group
// excerpts in this order, so it must stay stable.
var DocTypes = []DocType{DocTypePolicy, DocTypeContract, DocTypeEvidence}

// Valid reports whether dt is one of the known document types.
func (dt DocType) Valid() bool {
	switch dt {
	case DocTypePolicy, DocTypeContract, DocTypeEvidence:
		return true
	}
	return false
}

// Document is a source document (policy, contract, or evidence).
type Document struct {
	DocID       string  `json:"doc_id"`
	DocType     DocType `json:"doc_type"`
	Title       string  `json:"title"`
	Content     string  `json:"content"`
	ContentHash string  `json:"content_hash"`
}

// NewDocument builds a Document and computes its content hash.
func NewDocument(docID string, docType DocType, title, content string) Document {
	sum := sha256.Sum256([]byte(content))
	return Document{
		DocID:       docID,
		DocType:     docType,
		Title:       title,
		Content:     content,
		ContentHash: hex.EncodeToString(sum[:]),
	}
}

// Excerpt is an immutable, identified span of source text eligible for
// citation. Identity is ExcerptID, globally unique within a run's evidence
// pack. The cite token is a fixed rendering of the id used inside prompts,
// not a separate identity.
type Excerpt struct {
	ExcerptID string  `json:"excerpt_id"`
	CiteToken string  `json:"cite_token"`
	DocID     string  `json:"doc_id"`
	DocType   DocType `json:"doc_type"`
	Text      string  `json:"text"`
}

// CiteToken renders the prompt marker form of an excerpt id, e.g. [CITE=POL-004].
func CiteToken(excerptID string) string {
	return fmt.Sprintf("[CITE=%s]", excerptID)
}

// NewExcerpt builds an Excerpt with its cite token filled in.
func NewExcerpt(excerptID, docID string, docType DocType, text string) Excerpt {
	return Excerpt{
		ExcerptID: excerptID,
		CiteToken: CiteToken(excerptID),
		DocID:     docID,
		DocType:   docType,
		Text:      text,
	}
}

// ExcerptSet groups excerpts by document type, the shape handed to the
// orchestrator by the retriever.
type ExcerptSet map[DocType][]Excerpt

// Flatten returns all excerpts in DocTypes order.
func (s ExcerptSet) Flatten() []Excerpt {
	var all []Excerpt
	for _, dt := range DocTypes {
		all = append(all, s[dt]...)
	}
	return all
}

// IDs returns the excerpt ids in DocTypes order.
func (s ExcerptSet) IDs() []string {
	var ids []string
	for _, e := range s.Flatten() {
		ids = append(ids, e.ExcerptID)
	}
	return ids
}

// AllowedCitations returns the set of ids any output may legally cite.
func (s ExcerptSet) AllowedCitations() map[string]bool {
	allowed := make(map[string]bool)
	for _, e := range s.Flatten() {
		allowed[e.ExcerptID] = true
	}
	return allowed
}
