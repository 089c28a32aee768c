// Package content defines the page content source and text extraction.
package content

import (
	"sort"
	"strconv"
)

// Page is the content source the CMS host exposes to the engine. Language is
// an explicit parameter on every lookup; there is no ambient language state.
type Page interface {
	// ID is the stable page ID.
	ID() int64
	// Template is the page's template name.
	Template() string
	// HasField reports whether the page's template has the named field.
	HasField(name string) bool
	// Value returns the raw (possibly marked-up) value of a field in the
	// given language, or "" when absent.
	Value(name string, langID int64) string
	// URL is the page's absolute URL.
	URL() string
	// Title returns the page title in the given language.
	Title(langID int64) string
	// Languages lists the page's language IDs. An empty list means a
	// single-language setup indexed at language 0.
	Languages() []int64
}

// FieldValues maps a decimal language ID to a field value. Language 0 is the
// default language.
type FieldValues map[string]string

// StaticPage is a Page backed by a plain payload, as pushed by the host over
// the HTTP API or carried in a queue document's metadata.
type StaticPage struct {
	PageID       int64                  `json:"id"`
	TemplateName string                 `json:"template"`
	PageURL      string                 `json:"url"`
	Fields       map[string]FieldValues `json:"fields"`
}

func (p *StaticPage) ID() int64        { return p.PageID }
func (p *StaticPage) Template() string { return p.TemplateName }
func (p *StaticPage) URL() string      { return p.PageURL }

func (p *StaticPage) HasField(name string) bool {
	_, ok := p.Fields[name]
	return ok
}

func (p *StaticPage) Value(name string, langID int64) string {
	vals, ok := p.Fields[name]
	if !ok {
		return ""
	}
	if v, ok := vals[strconv.FormatInt(langID, 10)]; ok {
		return v
	}
	if langID != 0 {
		// Untranslated fields fall back to the default language.
		return vals["0"]
	}
	return ""
}

func (p *StaticPage) Title(langID int64) string {
	for _, f := range []string{"title", "headline"} {
		if t := p.Value(f, langID); t != "" {
			return ToPlainText(t)
		}
	}
	return ""
}

// Languages returns the sorted union of language IDs present on any field,
// including the default language 0 when any field carries a default value.
// A page with no fields reports an empty list.
func (p *StaticPage) Languages() []int64 {
	seen := make(map[int64]struct{})
	var langs []int64
	for _, vals := range p.Fields {
		for key := range vals {
			id, err := strconv.ParseInt(key, 10, 64)
			if err != nil {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			langs = append(langs, id)
		}
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i] < langs[j] })
	return langs
}
