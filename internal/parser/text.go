package parser

import (
	"bytes"
	"errors"
)

var errEmpty = errors.New("empty upload")

// FormFeed separates pages in plain-text uploads.
const FormFeed = '\f'

// TextPages splits plain text into pages on form feeds.
// Validation of the page contents is left to the extractor.
func TextPages(data []byte) [][]byte {
	return bytes.Split(data, []byte{FormFeed})
}

// Pages picks a parser by content: PDF when the header matches, plain text otherwise.
func Pages(data []byte) ([][]byte, error) {
	if len(data) == 0 {
		return nil, errEmpty
	}
	if IsPDF(data) {
		return PDFPages(data)
	}
	return TextPages(data), nil
}
