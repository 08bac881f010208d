package models

import "time"

// Form field types reported by the extraction backend.
const (
	FieldText      = "text"
	FieldCheckbox  = "checkbox"
	FieldRadio     = "radio"
	FieldSelect    = "select"
	FieldDate      = "date"
	FieldSignature = "signature"
	FieldOther     = "other"
)

// FormField is one extracted form field. FieldOrder preserves the 0-indexed
// insertion order of the extraction response.
type FormField struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	ContentBlockID uint `gorm:"index;not null"`

	FieldName  string `gorm:"size:255;not null"`
	FieldLabel string `gorm:"size:255"`
	FieldType  string `gorm:"size:20;not null"`

	FieldValue string
	IsFilled   bool `gorm:"default:false"`

	FieldOrder int `gorm:"default:0"`

	Confidence float64 `gorm:"default:1"`
}
