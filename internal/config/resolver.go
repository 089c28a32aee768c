package config

import "strings"

// titleFields are the field names that count as title-like when resolving slots.
var titleFields = []string{"title", "headline"}

// ResolveTemplates normalizes the template allow-list into canonical form:
// elements are split on pipes, commas, and newlines, trimmed, and deduped.
// An empty result means "no template restriction". Malformed input degrades
// permissively; this never fails.
func ResolveTemplates(raw StringList) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{})
	for _, item := range raw {
		for _, name := range splitList(item) {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}

// ResolveFieldSlots parses the field specification into ordered slots, each an
// ordered list of fallback field names. Commas and newlines separate slots;
// pipes separate fallbacks within a slot, e.g. "title|headline, summary, body"
// yields [[title headline] [summary] [body]]. When no slot contains a
// title-like field, a default [title headline] slot is prepended so every
// indexed document carries a usable title.
func ResolveFieldSlots(raw StringList) [][]string {
	var slots [][]string
	for _, item := range raw {
		for _, slotSpec := range splitSlots(item) {
			var slot []string
			seen := make(map[string]struct{})
			for _, f := range strings.Split(slotSpec, "|") {
				f = strings.TrimSpace(f)
				if f == "" {
					continue
				}
				if _, ok := seen[f]; ok {
					continue
				}
				seen[f] = struct{}{}
				slot = append(slot, f)
			}
			if len(slot) > 0 {
				slots = append(slots, slot)
			}
		}
	}
	if !hasTitleSlot(slots) {
		slots = append([][]string{append([]string(nil), titleFields...)}, slots...)
	}
	return slots
}

func hasTitleSlot(slots [][]string) bool {
	for _, slot := range slots {
		for _, f := range slot {
			for _, t := range titleFields {
				if f == t {
					return true
				}
			}
		}
	}
	return false
}

// splitList splits on pipes, commas, and newlines and trims each piece.
func splitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '|' || r == ',' || r == '\n' || r == '\r'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// splitSlots splits a field spec into slot specs on commas and newlines,
// preserving pipes for per-slot fallback parsing.
func splitSlots(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
