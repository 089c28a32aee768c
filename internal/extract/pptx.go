package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// pptxSlidePathPrefix is the path prefix for slide XML files inside a .pptx zip.
const pptxSlidePathPrefix = "ppt/slides/slide"

// atTag matches <a:t>text</a:t> or <a:t xml:space="preserve">text</a:t> (and any other attributes).
var atTag = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)

// slideNumRe pulls the slide number out of ppt/slides/slideN.xml.
var slideNumRe = regexp.MustCompile(`slide(\d+)\.xml$`)

// extractPPTX returns one element per slide. PPTX is a ZIP containing
// ppt/slides/slideN.xml (Office Open XML); all <a:t>...</a:t> text nodes of a
// slide are joined with spaces.
func extractPPTX(content []byte) ([]Element, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract PPTX: not a zip: %w", err)
	}

	type slide struct {
		num  int
		text string
	}
	var slides []slide
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, pptxSlidePathPrefix) || !strings.HasSuffix(f.Name, ".xml") {
			continue
		}
		num := 0
		if m := slideNumRe.FindStringSubmatch(f.Name); m != nil {
			num, _ = strconv.Atoi(m[1])
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("extract PPTX: open %s: %w", f.Name, err)
		}
		var slideBuf bytes.Buffer
		if _, err := slideBuf.ReadFrom(rc); err != nil {
			_ = rc.Close()
			return nil, fmt.Errorf("extract PPTX: read %s: %w", f.Name, err)
		}
		_ = rc.Close()

		var b strings.Builder
		for _, p := range atTag.FindAllStringSubmatch(slideBuf.String(), -1) {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strings.TrimSpace(p[1]))
		}
		slides = append(slides, slide{num: num, text: strings.TrimSpace(b.String())})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	elements := make([]Element, 0, len(slides))
	for _, s := range slides {
		elements = append(elements, Element{
			Kind: "slide",
			Text: s.text,
			Meta: map[string]interface{}{"slide": s.num},
		})
	}
	return elements, nil
}
