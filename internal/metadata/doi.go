// Package metadata resolves bibliographic data for documents.
package metadata

import (
	"regexp"
	"strings"
)

var doiPattern = regexp.MustCompile(`(?i)(?:doi\s*[:=]\s*|https?://(?:dx\.)?doi\.org/)(10\.\d{4,9}(?:\.\d+)*/[^\s"<>]+)`)

// FindDOI returns the first DOI announced in text, lowercased, or "".
func FindDOI(text string) string {
	m := doiPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return CleanDOI(m[1])
}

// CleanDOI strips resolver prefixes and trailing punctuation.
func CleanDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	lower := strings.ToLower(doi)
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi:"} {
		if strings.HasPrefix(lower, prefix) {
			lower = strings.TrimSpace(lower[len(prefix):])
			break
		}
	}
	return strings.TrimRight(lower, ".,;:)]}")
}
