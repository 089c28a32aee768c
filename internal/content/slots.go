package content

import "strings"

// ResolveSlot returns the plain text of every field in the fallback list that
// exists on the page and is non-empty, joined with blank lines. All present
// fields contribute; this is deliberately not first-match-wins.
func ResolveSlot(page Page, slotFields []string, langID int64) string {
	var parts []string
	for _, f := range slotFields {
		if !page.HasField(f) {
			continue
		}
		text := ToPlainText(page.Value(f, langID))
		if text == "" {
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n")
}

// AssembleText joins resolved slot texts in slot order, skipping empty slots.
func AssembleText(page Page, slots [][]string, langID int64) string {
	var parts []string
	for _, slot := range slots {
		if text := ResolveSlot(page, slot, langID); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Eligible reports whether the page should be indexed: its template must be
// in the allow-list (an empty list means no restriction) and at least one
// configured slot must have a field present on the page's template.
func Eligible(page Page, templates []string, slots [][]string) bool {
	if len(templates) > 0 {
		found := false
		for _, t := range templates {
			if t == page.Template() {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, slot := range slots {
		for _, f := range slot {
			if page.HasField(f) {
				return true
			}
		}
	}
	return false
}
