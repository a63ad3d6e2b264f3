package model

import (
	"strings"
	"time"
)

// PaperMetadata is bibliographic data resolved for a document from its DOI.
type PaperMetadata struct {
	DOI         string     `json:"doi"`
	Title       string     `json:"title"`
	Authors     []string   `json:"authors"`
	Journal     string     `json:"journal"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// ApplyTo copies the non-empty fields of m onto doc.
func (m *PaperMetadata) ApplyTo(doc *Document) {
	if m == nil {
		return
	}
	if m.DOI != "" {
		doi := m.DOI
		doc.DOI = &doi
	}
	if m.Title != "" {
		doc.Title = m.Title
	}
	if len(m.Authors) > 0 {
		doc.Authors = strings.Join(m.Authors, ", ")
	}
	if m.Journal != "" {
		doc.Journal = m.Journal
	}
	if m.PublishedAt != nil {
		doc.PublishedAt = m.PublishedAt
	}
}
