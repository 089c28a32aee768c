// Package indexer provides text chunking and the page indexing pipeline.
package indexer

import "strings"

// DefaultChunkSize and DefaultChunkOverlap are the chunking defaults, in characters.
const (
	DefaultChunkSize    = 1200
	DefaultChunkOverlap = 150
)

// boundarySlack is the extra lookahead past chunkSize used only to find a
// nicer sentence cut. Emitted chunks never exceed chunkSize+boundarySlack.
const boundarySlack = 200

// ChunkText splits normalized text into bounded, overlapping, sentence-aware
// chunks. Cuts prefer the right-most sentence terminal within the nominal
// chunk once past 66% of chunkSize; when a sentence runs over the nominal
// size, the first terminal inside the lookahead slack is used; with no
// terminal at all the text is hard-cut at chunkSize. Consecutive chunks
// overlap by about overlap characters, snapped forward onto a whitespace
// boundary. Empty input yields no chunks.
func ChunkText(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = chunkSize / 8
	}
	runes := []rune(normalize(text))
	n := len(runes)
	if n == 0 {
		return nil
	}

	minBoundary := chunkSize * 66 / 100
	var out []string
	i := 0
	for i < n {
		window := runes[i:min(n, i+chunkSize+boundarySlack)]
		cut := boundaryCut(window, minBoundary, chunkSize)
		if cut <= 0 {
			cut = min(chunkSize, len(window))
		}
		slice := strings.TrimSpace(string(window[:cut]))
		if slice != "" {
			out = append(out, slice)
		}
		end := i + cut
		if end >= n {
			break
		}
		next := advance(runes, i, end, overlap)
		i = next
	}
	return out
}

// boundaryCut returns the cut position (exclusive) after a sentence terminal,
// or 0 when the window has no usable boundary. Terminals are extended past
// immediately trailing closing quotes and brackets.
func boundaryCut(window []rune, minBoundary, chunkSize int) int {
	last := -1   // right-most terminal within the nominal chunk size
	first := -1  // first terminal within the lookahead slack
	for p := minBoundary; p < len(window); p++ {
		switch window[p] {
		case '.', '!', '?':
			if p < chunkSize {
				last = p
			} else if first == -1 {
				first = p
			}
		}
	}
	pos := last
	if pos == -1 {
		pos = first
	}
	if pos == -1 {
		return 0
	}
	end := pos + 1
	for end < len(window) {
		switch window[end] {
		case '"', '\'', ')', ']', '}', '’', '”':
			end++
		default:
			return end
		}
	}
	return end
}

// advance computes the next cursor: end minus overlap, snapped forward onto
// the next whitespace or punctuation boundary so overlaps start on a word,
// with trailing whitespace skipped. Falls back to end (zero overlap) when the
// result would not move the cursor forward.
func advance(runes []rune, cur, end, overlap int) int {
	next := end - overlap
	if next > cur && next < len(runes) && !isBoundary(runes[next]) {
		limit := min(next+overlap/2+8, end)
		p := next
		for p < limit && !isBoundary(runes[p]) {
			p++
		}
		if p < limit {
			next = p
		}
	}
	for next < end && next < len(runes) && isSpace(runes[next]) {
		next++
	}
	if next <= cur {
		next = end
	}
	return next
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func isBoundary(r rune) bool {
	return isSpace(r) || r == '.' || r == ',' || r == ';' || r == ':' || r == '!' || r == '?'
}

// normalize collapses intra-line whitespace runs to single spaces and runs of
// three or more line breaks to one blank line, then trims.
func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var b strings.Builder
	b.Grow(len(text))
	spaces := 0
	newlines := 0
	for _, r := range text {
		switch {
		case r == '\n':
			newlines++
			spaces = 0
		case r == ' ' || r == '\t':
			spaces++
		default:
			if newlines > 0 {
				if newlines >= 2 {
					b.WriteString("\n\n")
				} else {
					b.WriteByte('\n')
				}
				newlines = 0
			} else if spaces > 0 {
				b.WriteByte(' ')
			}
			spaces = 0
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
