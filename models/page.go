package models

import "time"

// Detected language values reported by the extraction backend.
const (
	LangEnglish = "en"
	LangBangla  = "bn"
	LangMixed   = "bn+en"
	LangUnknown = "unknown"
)

// Page is one rendered page of a document. Created only by the pipeline;
// page_number is 1-indexed and unique within the document. Two image
// artifacts are kept: the untouched original and the rotation-corrected
// raster the extraction backend consumes.
type Page struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	DocumentID uint `gorm:"not null;uniqueIndex:idx_pages_document_number"`
	PageNumber int  `gorm:"not null;uniqueIndex:idx_pages_document_number"`

	ImagePath         string `gorm:"size:512"` // corrected raster
	OriginalImagePath string `gorm:"size:512"` // unrotated original
	Width             int
	Height            int

	DetectedRotation int `gorm:"default:0"` // 0, 90, 180, 270
	AppliedRotation  int `gorm:"default:0"`

	DetectedLanguage   string  `gorm:"size:20;default:unknown"`
	LanguageConfidence float64 `gorm:"default:0"`

	PageType string `gorm:"size:50"` // form, table, mixed, text, ...

	Processed bool `gorm:"default:false"`
	DPI       int  `gorm:"column:dpi;default:150"`

	ContentBlocks []ContentBlock `gorm:"foreignKey:PageID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}
