package content

import (
	"strings"
	"testing"
)

func TestToPlainTextParagraphs(t *testing.T) {
	got := ToPlainText("<p>First paragraph.</p><p>Second   paragraph.</p>")
	want := "First paragraph.\n\nSecond paragraph."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestToPlainTextLists(t *testing.T) {
	got := ToPlainText("<ul><li>one</li><li>two</li></ul>")
	if !strings.Contains(got, "- one") || !strings.Contains(got, "- two") {
		t.Errorf("list markers missing: %q", got)
	}
}

func TestToPlainTextStripsMarkup(t *testing.T) {
	got := ToPlainText(`<div>Hello <strong>bold</strong> world<script>alert(1)</script></div>`)
	if got != "Hello bold world" {
		t.Errorf("got %q", got)
	}
}

func TestToPlainTextPlainValue(t *testing.T) {
	got := ToPlainText("just   some\t text\n\n\n\nmore")
	want := "just some text\n\nmore"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestToPlainTextEmpty(t *testing.T) {
	if got := ToPlainText(""); got != "" {
		t.Errorf("got %q", got)
	}
}
