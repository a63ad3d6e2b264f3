package rag

import (
	"math"
	"sort"
)

// Match is one scored search hit.
type Match struct {
	ChunkID uint    `json:"chunk_id"`
	Score   float64 `json:"score"`
}

// Candidate is a stored vector considered by Rank.
type Candidate struct {
	ChunkID uint
	Vector  []float32
}

// Cosine returns dot(a,b)/(|a||b|), or 0 when either vector has zero norm or
// the lengths differ. The result is clamped to [-1, 1].
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return math.Max(-1, math.Min(1, s))
}

// Rank scores every candidate against query, drops scores below threshold
// and returns at most topK matches ordered by score desc, then chunk id asc.
func Rank(query []float32, candidates []Candidate, topK int, threshold float64) []Match {
	if topK <= 0 {
		return []Match{}
	}
	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		score := Cosine(query, c.Vector)
		if score < threshold {
			continue
		}
		matches = append(matches, Match{ChunkID: c.ChunkID, Score: score})
	}
	SortMatches(matches)
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}

// SortMatches orders matches by descending score with chunk id as tie breaker.
func SortMatches(matches []Match) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ChunkID < matches[j].ChunkID
	})
}
