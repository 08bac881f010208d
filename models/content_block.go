package models

import (
	"time"

	"gorm.io/datatypes"
)

// Block types reported by the extraction backend.
const (
	BlockParagraph   = "paragraph"
	BlockHeading     = "heading"
	BlockTable       = "table"
	BlockForm        = "form"
	BlockList        = "list"
	BlockHandwriting = "handwriting"
	BlockImage       = "image"
	BlockSignature   = "signature"
	BlockOther       = "other"
)

// ContentBlock is one extracted unit of page content in reading order.
// The bbox is normalized to [0,1] page coordinates. TableData and FormData
// are stored verbatim from the backend response and are always structurally
// present ({"headers":[],"rows":[]} / {"fields":[]} when not applicable).
type ContentBlock struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	PageID      uint   `gorm:"not null;uniqueIndex:idx_blocks_page_number"`
	BlockNumber int    `gorm:"not null;uniqueIndex:idx_blocks_page_number"` // reading order on the page
	BlockType   string `gorm:"size:20;not null"`

	TextContent string

	BboxX1 float64
	BboxY1 float64
	BboxX2 float64
	BboxY2 float64

	Confidence float64 `gorm:"default:1"`

	IsHandwritten  bool `gorm:"default:false"`
	RequiresReview bool `gorm:"default:false"`

	TableData datatypes.JSON
	FormData  datatypes.JSON

	TableCells []TableCell `gorm:"foreignKey:ContentBlockID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	FormFields []FormField `gorm:"foreignKey:ContentBlockID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}
