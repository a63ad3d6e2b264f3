package model

import "time"

type Document struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Filename     string     `gorm:"size:255;not null" json:"filename"`
	Title        string     `gorm:"type:text" json:"title"`
	Authors      string     `gorm:"type:text" json:"authors,omitempty"`
	DOI          *string    `gorm:"size:128;uniqueIndex" json:"doi,omitempty"`
	Journal      string     `gorm:"type:text" json:"journal,omitempty"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	Tags         string     `gorm:"size:1024" json:"tags,omitempty"` // comma separated
	CollectionID *uint      `gorm:"index" json:"collection_id,omitempty"`
	FullText     string     `gorm:"type:longtext" json:"-"`
	Processed    bool       `gorm:"not null;default:false;index" json:"processed"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (d *Document) Ref() SourceRef {
	return SourceRef{Kind: SourceDocument, ID: d.ID}
}
