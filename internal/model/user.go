package model

import "time"

// User is an operator allowed to call administrative endpoints.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:64;not null;uniqueIndex" json:"username"`
	Email        string    `gorm:"size:128;not null;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AutoMigrateModels lists every table owned by the service.
func AutoMigrateModels() []any {
	return []any{
		&User{},
		&Document{},
		&Webpage{},
		&Chunk{},
		&Embedding{},
		&JobRecord{},
		&SystemMetric{},
		&QueryHistory{},
		&Collection{},
	}
}
