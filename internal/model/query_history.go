package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Citation is one chunk an answer was built from.
type Citation struct {
	ChunkID uint      `json:"chunk_id"`
	Source  SourceRef `json:"source"`
	Score   float64   `json:"score"`
	Snippet string    `json:"snippet"`
}

// QueryHistory is one question and answer within a conversation.
type QueryHistory struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID string    `gorm:"size:50;not null;index" json:"conversation_id"`
	Query          string    `gorm:"type:text;not null" json:"query"`
	Answer         string    `gorm:"type:longtext" json:"answer"`
	Citations      string    `gorm:"type:text" json:"-"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

func (h *QueryHistory) SetCitations(cs []Citation) error {
	if cs == nil {
		cs = []Citation{}
	}
	b, err := json.Marshal(cs)
	if err != nil {
		return fmt.Errorf("encode citations failed: %w", err)
	}
	h.Citations = string(b)
	return nil
}

func (h *QueryHistory) GetCitations() ([]Citation, error) {
	if h.Citations == "" {
		return []Citation{}, nil
	}
	var cs []Citation
	if err := json.Unmarshal([]byte(h.Citations), &cs); err != nil {
		return nil, fmt.Errorf("decode citations of query %d failed: %w", h.ID, err)
	}
	return cs, nil
}
