package rag

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shortSentences(n int) string {
	var b strings.Builder
	for i := 0; b.Len() < n; i++ {
		fmt.Fprintf(&b, "Sentence %03d is here. ", i)
	}
	s := b.String()[:n]
	if strings.HasSuffix(s, " ") {
		s = s[:n-1] + "x"
	}
	return s
}

func TestChunk_EmptyInput(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "whitespace only", text: "  \n\t  "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, Chunk(tt.text, 1000, 200))
		})
	}
}

func TestChunk_ShortTextIsSingleChunk(t *testing.T) {
	chunks := Chunk("  One   sentence.\n\nTwo sentences. ", 1000, 200)
	require.Len(t, chunks, 1)
	assert.Equal(t, "One sentence. Two sentences.", chunks[0])
}

func TestChunk_ExampleThreeChunks(t *testing.T) {
	text := shortSentences(2500)
	require.Len(t, []rune(text), 2500)

	chunks := Chunk(text, 1000, 200)
	require.Len(t, chunks, 3)

	for i, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 1100, "chunk %d too long", i)
		assert.NotEmpty(t, c)
	}
	for i := 0; i+1 < len(chunks); i++ {
		prev, next := []rune(chunks[i]), []rune(chunks[i+1])
		shared := string(prev[len(prev)-200:])
		assert.True(t, strings.HasPrefix(string(next), shared), "chunks %d/%d do not share 200 runes", i, i+1)
	}
}

func TestChunk_CutsAtSentenceBoundary(t *testing.T) {
	chunks := Chunk(shortSentences(2500), 1000, 200)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks[:len(chunks)-1] {
		assert.True(t, strings.HasSuffix(c, "."), "chunk should end at a sentence: %q", c[len(c)-20:])
	}
}

func TestChunk_CoverageReconstructsText(t *testing.T) {
	inputs := []struct {
		name          string
		text          string
		size, overlap int
	}{
		{name: "sentences", text: shortSentences(5300), size: 1000, overlap: 200},
		{name: "no boundaries", text: strings.Repeat("abcdefghij ", 400), size: 300, overlap: 50},
		{name: "no overlap", text: shortSentences(2000), size: 500, overlap: 0},
		{name: "unicode", text: strings.Repeat("Größe über Maß. Ähnlich wie zuvor! ", 80), size: 400, overlap: 80},
	}
	for _, tt := range inputs {
		t.Run(tt.name, func(t *testing.T) {
			normalized := []rune(NormalizeWhitespace(tt.text))
			chunks := Chunk(tt.text, tt.size, tt.overlap)
			require.NotEmpty(t, chunks)

			rebuilt := []rune(chunks[0])
			for _, c := range chunks[1:] {
				r := []rune(c)
				require.Greater(t, len(r), tt.overlap)
				assert.Equal(t, string(rebuilt[len(rebuilt)-tt.overlap:]), string(r[:tt.overlap]))
				rebuilt = append(rebuilt, r[tt.overlap:]...)
			}
			assert.Equal(t, string(normalized), string(rebuilt))
		})
	}
}

func TestChunk_Deterministic(t *testing.T) {
	text := shortSentences(4000)
	assert.Equal(t, Chunk(text, 700, 150), Chunk(text, 700, 150))
}

func TestChunk_ParameterClamping(t *testing.T) {
	text := strings.Repeat("x", 3000)

	chunks := Chunk(text, 0, -5)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], DefaultChunkSize)

	// overlap >= size falls back to half the size and still terminates
	chunks = Chunk(text, 100, 100)
	require.NotEmpty(t, chunks)
	assert.Len(t, chunks[1], 100)
	assert.Equal(t, chunks[0][50:], chunks[1][:50])
}

func TestNormalizeWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", NormalizeWhitespace("\ta \n\n b   c  "))
	assert.Equal(t, "", NormalizeWhitespace(" \n "))
}
