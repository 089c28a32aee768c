package content

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ToPlainText converts a rich/structured field value to plain text. Paragraph
// level markup becomes blank-line separated text, list items get a leading
// "- " marker, whitespace runs collapse, and all other markup is stripped.
// Values without markup pass through with whitespace normalization only.
// Composite CMS field values (repeaters and the like) are the host's problem;
// it renders them to markup before handing them over.
func ToPlainText(value string) string {
	if !strings.Contains(value, "<") {
		return normalizeText(value)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(value))
	if err != nil {
		return normalizeText(value)
	}
	var b strings.Builder
	for _, node := range doc.Selection.Nodes {
		renderNode(node, &b)
	}
	return normalizeText(b.String())
}

// blockTags are elements rendered as their own paragraph.
var blockTags = map[string]bool{
	"p": true, "div": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "pre": true, "table": true, "ul": true, "ol": true,
	"figcaption": true, "header": true, "footer": true,
}

func renderNode(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "iframe":
			return
		case "br":
			b.WriteByte('\n')
			return
		case "li":
			b.WriteString("\n- ")
			renderChildren(n, b)
			b.WriteByte('\n')
			return
		case "tr":
			renderChildren(n, b)
			b.WriteByte('\n')
			return
		case "td", "th":
			renderChildren(n, b)
			b.WriteByte('\t')
			return
		}
		if blockTags[n.Data] {
			b.WriteString("\n\n")
			renderChildren(n, b)
			b.WriteString("\n\n")
			return
		}
	}
	renderChildren(n, b)
}

func renderChildren(n *html.Node, b *strings.Builder) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderNode(c, b)
	}
}

// normalizeText collapses runs of spaces and tabs within lines, trims line
// ends, and collapses runs of blank lines to a single blank line.
func normalizeText(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	blank := true
	for _, line := range lines {
		line = strings.TrimSpace(collapseSpaces(line))
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}

func collapseSpaces(s string) string {
	var b strings.Builder
	wasSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' {
			if !wasSpace {
				b.WriteByte(' ')
				wasSpace = true
			}
		} else {
			b.WriteRune(r)
			wasSpace = false
		}
	}
	return b.String()
}
