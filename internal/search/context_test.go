package search

import (
	"strings"
	"testing"

	"github.com/sitebrain/sitebrain/internal/models"
)

func scoredChunk(title, url string, langID int64, text string) *models.ScoredChunk {
	return &models.ScoredChunk{
		Chunk: &models.Chunk{Title: title, SourceURL: url, LangID: langID, Text: text},
		Score: 0.9,
	}
}

func TestBuildContextProvenanceTags(t *testing.T) {
	got := BuildContext([]*models.ScoredChunk{
		scoredChunk("About us", "https://example.com/about/", 0, "We build websites."),
		scoredChunk("Pricing", "https://example.com/pricing/", 1017, "Plans start at ten euros."),
	}, 2400)

	want := "[Source: About us | https://example.com/about/ | lang=0]\nWe build websites.\n\n" +
		"[Source: Pricing | https://example.com/pricing/ | lang=1017]\nPlans start at ten euros."
	if got != want {
		t.Errorf("got:\n%q\nwant:\n%q", got, want)
	}
}

func TestBuildContextRespectsCap(t *testing.T) {
	chunks := []*models.ScoredChunk{
		scoredChunk("A", "/a", 0, strings.Repeat("x", 300)),
		scoredChunk("B", "/b", 0, strings.Repeat("y", 300)),
		scoredChunk("C", "/c", 0, strings.Repeat("z", 300)),
	}
	got := BuildContext(chunks, 700)
	if len(got) > 700 {
		t.Errorf("context length %d exceeds cap 700", len(got))
	}
	if !strings.Contains(got, "xxx") || !strings.Contains(got, "yyy") {
		t.Error("expected first two chunks to fit")
	}
	if strings.Contains(got, "zzz") {
		t.Error("third chunk should not fit under the cap")
	}
}

func TestBuildContextNeverTruncatesMidChunk(t *testing.T) {
	chunks := []*models.ScoredChunk{
		scoredChunk("A", "/a", 0, strings.Repeat("x", 100)),
		scoredChunk("B", "/b", 0, strings.Repeat("y", 5000)),
	}
	got := BuildContext(chunks, 400)
	if strings.Contains(got, "y") {
		t.Error("oversized chunk must be skipped whole, not cut")
	}
}

func TestBuildContextEmpty(t *testing.T) {
	if got := BuildContext(nil, 2400); got != "" {
		t.Errorf("got %q for no chunks", got)
	}
	if got := BuildContext([]*models.ScoredChunk{scoredChunk("A", "/a", 0, "t")}, 0); got != "" {
		t.Errorf("got %q for zero cap", got)
	}
}
