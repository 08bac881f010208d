package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// HeaderRowIndex is the sentinel row_index for header cells. Header and body
// cells share one table; is_header is true exactly when row_index == -1.
const HeaderRowIndex = -1

// TableCell is a single cell of an extracted table. ColumnPath is a non-empty
// ordered sequence of non-negative integers encoding the nested-column
// hierarchy, e.g. [0,1,2] is the third-level sub-column under [0,1].
type TableCell struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	ContentBlockID uint `gorm:"index;not null"`

	RowIndex   int            `gorm:"not null"` // >= 0 for body rows, -1 for headers
	ColumnPath datatypes.JSON `gorm:"not null"`

	Text  string
	Value datatypes.JSON

	Rowspan int `gorm:"default:1"`
	Colspan int `gorm:"default:1"`

	IsHeader bool `gorm:"default:false"`

	Confidence float64 `gorm:"default:1"`
}

// Path decodes ColumnPath into its integer sequence.
func (c *TableCell) Path() []int {
	var out []int
	if err := json.Unmarshal(c.ColumnPath, &out); err != nil {
		return nil
	}
	return out
}
