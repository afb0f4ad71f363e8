// Package extract turns documents into normalized text.
package extract

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/docchat/internal/domain"
	"github.com/kailas-cloud/docchat/internal/domain/document"
)

// Text is the normalized text of one document: page texts concatenated in order.
type Text struct {
	DocumentID string
	Content    string
	Pages      int
}

// Service extracts normalized text. It is stateless and caches nothing.
type Service struct{}

// New creates an extractor.
func New() *Service { return &Service{} }

// Extract normalizes every document. The first failing document aborts the batch
// so an index is never built over partial input.
func (s *Service) Extract(docs []document.Document) ([]Text, error) {
	out := make([]Text, 0, len(docs))
	for _, d := range docs {
		t, err := s.extractOne(d)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Service) extractOne(d document.Document) (Text, error) {
	if d.PageCount() == 0 {
		return Text{}, domain.NewExtractionError(d.ID(), "document has no pages")
	}

	var b strings.Builder
	extractable := 0
	for i := range d.PageCount() {
		page := d.Page(i)
		if !utf8.Valid(page) {
			return Text{}, domain.NewExtractionError(d.ID(), fmt.Sprintf("page %d is not valid UTF-8 text", i+1))
		}
		if strings.TrimSpace(string(page)) != "" {
			extractable++
		}
		b.Write(page)
	}
	if extractable == 0 {
		return Text{}, domain.NewExtractionError(d.ID(), "no extractable text on any page")
	}

	return Text{DocumentID: d.ID(), Content: b.String(), Pages: d.PageCount()}, nil
}
