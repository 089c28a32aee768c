package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/sitebrain/sitebrain/internal/content"
)

// extractPlain returns the content as a single element, validating UTF-8.
// Invalid sequences are replaced with the replacement character.
func extractPlain(raw []byte) ([]Element, error) {
	if !utf8.Valid(raw) {
		raw = []byte(strings.ToValidUTF8(string(raw), "�"))
	}
	return []Element{{Kind: "body", Text: string(raw)}}, nil
}

// extractHTML strips markup and returns the document as a single element.
func extractHTML(raw []byte) ([]Element, error) {
	return []Element{{Kind: "body", Text: content.ToPlainText(string(raw))}}, nil
}
