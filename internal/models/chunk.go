package models

import "time"

// AudioChunk is a bounded-size sub-segment of a larger recording, uploaded
// ahead of job submission and individually transcribed. ChunkIndex defines
// the canonical reassembly order.
type AudioChunk struct {
	ID          string `gorm:"primaryKey;size:36"`
	MeetingID   string `gorm:"size:36;index;not null"`
	ChunkIndex  int    `gorm:"not null"`
	StorageURL  string `gorm:"size:1024;not null"`
	Transcribed bool   `gorm:"default:false"`
	Transcript  string `gorm:"type:mediumtext"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
