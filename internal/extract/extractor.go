// Package extract turns document files into structural text elements: one
// per PDF page, spreadsheet sheet, or presentation slide, so provenance and
// chunk boundaries follow the document's own structure.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Element is one structural unit of an extracted document.
type Element struct {
	Kind string
	Text string
	Meta map[string]interface{}
}

// Backend names form a closed set; an unrecognized backend is an error, never
// a silent fallthrough to plain text.
const (
	BackendPDF   = "pdf"
	BackendDOCX  = "docx"
	BackendXLSX  = "xlsx"
	BackendPPTX  = "pptx"
	BackendODP   = "odp"
	BackendODS   = "ods"
	BackendHTML  = "html"
	BackendPlain = "plain"
)

var extToBackend = map[string]string{
	".pdf":  BackendPDF,
	".docx": BackendDOCX,
	".odt":  BackendDOCX,
	".xlsx": BackendXLSX,
	".pptx": BackendPPTX,
	".odp":  BackendODP,
	".ods":  BackendODS,
	".html": BackendHTML,
	".htm":  BackendHTML,
	".txt":  BackendPlain,
	".md":   BackendPlain,
	".rst":  BackendPlain,
}

// BackendForPath returns the extraction backend for a file path, or "" when
// the extension is not supported.
func BackendForPath(path string) string {
	return extToBackend[strings.ToLower(filepath.Ext(path))]
}

// Extractor extracts structural elements from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractFile reads the file at path and extracts it with the given backend.
func (e *Extractor) ExtractFile(path, backend string) ([]Element, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return e.Extract(content, backend)
}

// Extract extracts structural elements from raw bytes using the named
// backend. Elements with empty text are dropped.
func (e *Extractor) Extract(content []byte, backend string) ([]Element, error) {
	var elements []Element
	var err error
	switch backend {
	case BackendPDF:
		elements, err = extractPDF(content)
	case BackendDOCX:
		elements, err = extractDOCX(content)
	case BackendXLSX:
		elements, err = extractExcel(content)
	case BackendPPTX:
		elements, err = extractPPTX(content)
	case BackendODP:
		elements, err = extractODP(content)
	case BackendODS:
		elements, err = extractODS(content)
	case BackendHTML:
		elements, err = extractHTML(content)
	case BackendPlain:
		elements, err = extractPlain(content)
	default:
		return nil, fmt.Errorf("unknown extraction backend %q", backend)
	}
	if err != nil {
		return nil, err
	}
	out := elements[:0]
	for _, el := range elements {
		if strings.TrimSpace(el.Text) != "" {
			out = append(out, el)
		}
	}
	return out, nil
}
