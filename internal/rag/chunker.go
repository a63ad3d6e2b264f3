package rag

import (
	"strings"
	"unicode"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200

	// boundaryWindow is how far around a nominal cut we look for a sentence end.
	boundaryWindow = 100
)

// Chunk splits text into overlapping segments of roughly size runes.
// Whitespace runs are collapsed before splitting. Cuts snap to the sentence
// boundary closest to the nominal end when one lies within boundaryWindow.
func Chunk(text string, size, overlap int) []string {
	runes := []rune(NormalizeWhitespace(text))
	if len(runes) == 0 {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else if cut, ok := sentenceCut(runes, start, end); ok {
			end = cut
		}

		chunks = append(chunks, string(runes[start:end]))

		if end == len(runes) {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// NormalizeWhitespace collapses every whitespace run to one space and trims the ends.
func NormalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// sentenceCut finds the cut position right after terminal punctuation that is
// followed by whitespace and an upper case letter. The cut must stay inside
// (start, len(runes)).
func sentenceCut(runes []rune, start, nominal int) (int, bool) {
	lo := nominal - boundaryWindow
	if lo < start {
		lo = start
	}
	hi := nominal + boundaryWindow
	if hi > len(runes) {
		hi = len(runes)
	}

	best, bestDist := -1, 0
	for i := lo; i+2 < hi; i++ {
		if !isTerminal(runes[i]) || !unicode.IsSpace(runes[i+1]) || !unicode.IsUpper(runes[i+2]) {
			continue
		}
		cut := i + 1
		if cut <= start {
			continue
		}
		dist := cut - nominal
		if dist < 0 {
			dist = -dist
		}
		if best < 0 || dist < bestDist {
			best, bestDist = cut, dist
		}
	}
	return best, best >= 0
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
