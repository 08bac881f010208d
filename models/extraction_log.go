package models

import (
	"time"

	"gorm.io/datatypes"
)

// ExtractionLog is an append-only audit record of one extraction attempt.
// Rows are never deleted by normal operation; reprocessing a document keeps
// its full extraction history.
type ExtractionLog struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"index"`

	DocumentID uint  `gorm:"index;not null"`
	PageID     *uint `gorm:"index"`

	RequestData  datatypes.JSON `gorm:"not null"`
	ResponseData datatypes.JSON

	Success      bool `gorm:"default:true"`
	ErrorMessage string

	ProcessingTime float64 // seconds
	TokensUsed     int     `gorm:"default:0"`
	RetryCount     int     `gorm:"default:0"`
}
