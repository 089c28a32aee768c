package search

import (
	"fmt"
	"strings"

	"github.com/sitebrain/sitebrain/internal/models"
)

// BuildContext assembles scored chunks into one prompt-ready string. Each
// chunk is preceded by a provenance tag naming its title, URL, and language,
// and entries are separated by blank lines. Chunks are appended in score
// order and assembly stops before the first entry that would push the result
// past maxChars; entries are never truncated mid-text.
func BuildContext(chunks []*models.ScoredChunk, maxChars int) string {
	if maxChars <= 0 || len(chunks) == 0 {
		return ""
	}
	var b strings.Builder
	for _, sc := range chunks {
		entry := fmt.Sprintf("[Source: %s | %s | lang=%d]\n%s",
			sc.Chunk.Title, sc.Chunk.SourceURL, sc.Chunk.LangID, sc.Chunk.Text)
		need := len(entry)
		if b.Len() > 0 {
			need += 2
		}
		if b.Len()+need > maxChars {
			break
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(entry)
	}
	return b.String()
}
