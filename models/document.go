package models

import "time"

// Document status values. Transitions are owned exclusively by the processing
// pipeline: uploaded -> processing -> completed | failed | cancelled.
const (
	StatusUploaded   = "uploaded"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// Document file kinds.
const (
	FileTypePDF   = "pdf"
	FileTypeImage = "image"
)

// Document is an uploaded source file (PDF or raster image). The row is
// created by the upload surface; status, total_pages, processed_at and
// processing_time are written only by the pipeline.
type Document struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Title            string `gorm:"size:255;not null"`
	OriginalFilename string `gorm:"size:255;not null"`
	StorePath        string `gorm:"column:store_path;size:512;not null"` // relative path under the upload base
	FileType         string `gorm:"size:20;not null"`                    // pdf | image
	FileSize         int64

	Status       string `gorm:"size:20;default:uploaded;index"`
	ErrorMessage string
	TotalPages   int `gorm:"default:0"`

	ProcessedAt    *time.Time
	ProcessingTime float64 // seconds

	Pages          []Page          `gorm:"foreignKey:DocumentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	ExtractionLogs []ExtractionLog `gorm:"foreignKey:DocumentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}
