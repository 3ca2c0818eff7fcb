package models

import "time"

// UploadedDocument is the record handed downstream after ingestion; the raw bytes stay in storage.
type UploadedDocument struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"original_name"`
	StoragePath  string    `json:"storage_path"`
	SizeBytes    int64     `json:"size_bytes"`
	ContentType  string    `json:"content_type"`
	CreatedAt    time.Time `json:"created_at"`
}

// DocumentAnalysis summarises an uploaded document.
type DocumentAnalysis struct {
	Summary   string    `json:"summary"`
	KeyPoints []string  `json:"keyPoints"`
	Timestamp time.Time `json:"timestamp"`
}
