package models

import "time"

// Receipt is the postgres row backing one uploaded receipt file. Parsed
// output, quality and processing provenance are stored as JSON columns so the
// whole tuple can be overwritten in a single UPDATE.
type Receipt struct {
	ID           string `gorm:"primaryKey;size:36"`
	ContentHash  string `gorm:"size:64;uniqueIndex;not null"`
	MimeType     string `gorm:"size:128"`
	SizeBytes    int64
	OriginalName string `gorm:"size:255"`
	Status       string `gorm:"size:16;index;not null"`
	UploadedAt   time.Time
	Data         []byte `gorm:"not null"`
	Parsed       []byte `gorm:"type:jsonb"`
	Processing   []byte `gorm:"type:jsonb"`
	Quality      []byte `gorm:"type:jsonb"`
	Deleted      bool   `gorm:"default:false;index"`
	PrevStatus   string `gorm:"size:16"`
}
