package app

import (
	"sort"
	"strings"
	"unicode/utf8"

	"docrag/internal/rag"
)

// minTagLength excludes short words, which are mostly noise in papers.
const minTagLength = 6

// GenerateTags returns the limit most frequent words of at least
// minTagLength runes. Ties are broken alphabetically.
func GenerateTags(text string, limit int) []string {
	if limit <= 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, tok := range rag.Tokenize(text) {
		if utf8.RuneCountInString(tok) < minTagLength {
			continue
		}
		counts[tok]++
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > limit {
		words = words[:limit]
	}
	return words
}

// TagCount is how many documents carry a tag.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// CountTags folds comma separated tag columns into per-tag document counts,
// most used first. Tags compare case-insensitively.
func CountTags(columns []string) []TagCount {
	counts := make(map[string]int)
	for _, col := range columns {
		seen := make(map[string]bool)
		for _, tag := range strings.Split(col, ",") {
			tag = strings.ToLower(strings.TrimSpace(tag))
			if tag == "" || seen[tag] {
				continue
			}
			seen[tag] = true
			counts[tag]++
		}
	}
	out := make([]TagCount, 0, len(counts))
	for tag, n := range counts {
		out = append(out, TagCount{Tag: tag, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}
