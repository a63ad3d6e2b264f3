package model

import "time"

type Webpage struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	URL          string    `gorm:"size:768;not null;uniqueIndex" json:"url"`
	Title        string    `gorm:"type:text" json:"title"`
	Content      string    `gorm:"type:longtext" json:"-"`
	Processed    bool      `gorm:"not null;default:false;index" json:"processed"`
	CollectionID *uint     `gorm:"index" json:"collection_id,omitempty"`
	CrawledAt    time.Time `json:"crawled_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (w *Webpage) Ref() SourceRef {
	return SourceRef{Kind: SourceWebpage, ID: w.ID}
}
