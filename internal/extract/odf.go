package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"strings"
)

// odfContentPath is the path to the main content inside an OpenDocument zip.
const odfContentPath = "content.xml"

// OpenDocument text elements (with optional attributes). Separate patterns so
// opening and closing tags match pairwise.
var (
	odfTextP    = regexp.MustCompile(`<text:p[^>]*>([^<]*)</text:p>`)
	odfTextSpan = regexp.MustCompile(`<text:span[^>]*>([^<]*)</text:span>`)
	odfTextH    = regexp.MustCompile(`<text:h[^>]*>([^<]*)</text:h>`)
)

// extractODP extracts an OpenDocument Presentation body as a single element.
func extractODP(content []byte) ([]Element, error) {
	text, err := extractODFText(content, "ODP", true)
	if err != nil {
		return nil, err
	}
	return []Element{{Kind: "body", Text: text}}, nil
}

// extractODS extracts an OpenDocument Spreadsheet body as a single element.
func extractODS(content []byte) ([]Element, error) {
	text, err := extractODFText(content, "ODS", false)
	if err != nil {
		return nil, err
	}
	return []Element{{Kind: "body", Text: text}}, nil
}

// extractODFText pulls text:p, text:span, and optionally text:h content out
// of content.xml inside an OpenDocument zip.
func extractODFText(content []byte, label string, headings bool) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract %s: not a zip: %w", label, err)
	}
	var contentXML []byte
	for _, f := range zr.File {
		if f.Name != odfContentPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("extract %s: open %s: %w", label, f.Name, err)
		}
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			_ = rc.Close()
			return "", fmt.Errorf("extract %s: read %s: %w", label, f.Name, err)
		}
		_ = rc.Close()
		contentXML = buf.Bytes()
		break
	}
	if contentXML == nil {
		return "", fmt.Errorf("extract %s: %s not found", label, odfContentPath)
	}

	s := string(contentXML)
	var b strings.Builder
	appendMatches := func(parts [][]string) {
		for _, p := range parts {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strings.TrimSpace(p[1]))
		}
	}
	appendMatches(odfTextP.FindAllStringSubmatch(s, -1))
	appendMatches(odfTextSpan.FindAllStringSubmatch(s, -1))
	if headings {
		appendMatches(odfTextH.FindAllStringSubmatch(s, -1))
	}
	return strings.TrimSpace(b.String()), nil
}
