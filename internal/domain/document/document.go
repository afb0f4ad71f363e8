// Package document holds the ingestion input types.
package document

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/docchat/internal/domain"
)

// MaxIDLength bounds document identifiers.
const MaxIDLength = 256

// Document is an identifier plus ordered raw pages. Immutable once created.
type Document struct {
	id    string
	pages [][]byte
}

// New validates id and copies pages. An empty page list is allowed here;
// the extractor rejects it with a descriptive error.
func New(id string, pages [][]byte) (Document, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Document{}, fmt.Errorf("document ID is required: %w", domain.ErrInvalidRequest)
	}
	if len(id) > MaxIDLength {
		return Document{}, fmt.Errorf("document ID too long (max %d): %w", MaxIDLength, domain.ErrInvalidRequest)
	}

	cp := make([][]byte, len(pages))
	for i, p := range pages {
		cp[i] = append([]byte(nil), p...)
	}
	return Document{id: id, pages: cp}, nil
}

// ID returns the document identifier.
func (d Document) ID() string { return d.id }

// PageCount returns the number of pages.
func (d Document) PageCount() int { return len(d.pages) }

// Page returns the raw bytes of page i (0-based).
func (d Document) Page(i int) []byte { return d.pages[i] }

// Raw is an uploaded file before format detection.
type Raw struct {
	Name string
	Data []byte
}
