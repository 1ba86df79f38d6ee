package models

import (
	"time"

	"github.com/google/uuid"
)

// Media is one stored attachment. ExternalID identifies the object in
// the storage backend so it can be removed when the owning message is
// deleted for everyone.
type Media struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ExternalID   string    `gorm:"not null;index" json:"external_id"`
	URL          string    `gorm:"not null" json:"url"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	FileName     string    `json:"file_name"`
	FileType     string    `json:"file_type"`
	FileSize     int64     `json:"file_size"`
	Width        int       `json:"width,omitempty"`
	Height       int       `json:"height,omitempty"`
	UploadedBy   uuid.UUID `gorm:"type:uuid;not null" json:"uploaded_by"`
	CreatedAt    time.Time `json:"created_at"`
}
