package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/md-ryhan-uddin/document-extraction-ai-system/models"
	"github.com/md-ryhan-uddin/document-extraction-ai-system/pkg/cancel"
	"github.com/md-ryhan-uddin/document-extraction-ai-system/pkg/extractor"
)

func persistFixture(t *testing.T) (*Processor, *gorm.DB, *models.Page) {
	t.Helper()
	db := testDB(t)
	p := New(db, cancel.NewRegistry(), &fakeExtractor{}, testConfig(t))

	doc := newDocument(t, db, models.FileTypePDF, "scan.pdf")
	page := &models.Page{DocumentID: doc.ID, PageNumber: 1, DPI: 150}
	require.NoError(t, db.Create(page).Error)
	return p, db, page
}

func TestPersistTableCellInvariant(t *testing.T) {
	p, db, page := persistFixture(t)

	data := &extractor.PageData{
		PageType:           "table",
		DetectedLanguage:   models.LangBangla,
		LanguageConfidence: 0.92,
		ContentBlocks: []extractor.Block{{
			BlockNumber: 1,
			BlockType:   models.BlockTable,
			TableData: extractor.TableData{
				Headers: []extractor.TableHeader{
					{Text: "Name", ColumnPath: []int{0}, Level: 0},
					{Text: "Score", ColumnPath: []int{1}, Level: 0},
					{Text: "Math", ColumnPath: []int{1, 0}, Level: 1},
				},
				Rows: []extractor.TableRow{
					{RowIndex: 0, Cells: []extractor.TableCell{
						{Text: "Rahim", ColumnPath: []int{0}, Rowspan: 1, Colspan: 1},
						{Text: "88", ColumnPath: []int{1, 0}, Rowspan: 1, Colspan: 1},
					}},
					{RowIndex: 1, Cells: []extractor.TableCell{
						{Text: "Karim", ColumnPath: []int{0}, Rowspan: 2, Colspan: 1},
					}},
				},
			},
			FormData: extractor.FormData{Fields: []extractor.FormField{}},
		}},
	}
	require.NoError(t, p.persistExtraction(page, data))

	var cells []models.TableCell
	require.NoError(t, db.Order("id").Find(&cells).Error)
	require.Len(t, cells, 6)

	// is_header holds exactly when row_index is the header sentinel
	for _, c := range cells {
		assert.Equal(t, c.RowIndex == models.HeaderRowIndex, c.IsHeader,
			"cell %q row_index=%d is_header=%v", c.Text, c.RowIndex, c.IsHeader)
	}

	var headers, body int
	for _, c := range cells {
		if c.IsHeader {
			headers++
		} else {
			body++
		}
	}
	assert.Equal(t, 3, headers)
	assert.Equal(t, 3, body)

	// nested column paths round-trip through the JSON column
	for _, c := range cells {
		if c.Text == "88" {
			assert.Equal(t, []int{1, 0}, c.Path())
		}
		if c.Text == "Karim" {
			assert.Equal(t, 2, c.Rowspan)
		}
	}
}

func TestPersistHeaderOnlyTableStoresNoCells(t *testing.T) {
	p, db, page := persistFixture(t)

	data := &extractor.PageData{
		PageType:           "table",
		DetectedLanguage:   models.LangEnglish,
		LanguageConfidence: 0.9,
		ContentBlocks: []extractor.Block{{
			BlockNumber: 1,
			BlockType:   models.BlockTable,
			TableData: extractor.TableData{
				Headers: []extractor.TableHeader{{Text: "Empty", ColumnPath: []int{0}}},
				Rows:    []extractor.TableRow{},
			},
			FormData: extractor.FormData{Fields: []extractor.FormField{}},
		}},
	}
	require.NoError(t, p.persistExtraction(page, data))

	// headers without any body rows are kept only in the raw table_data blob
	var cells int64
	db.Model(&models.TableCell{}).Count(&cells)
	assert.EqualValues(t, 0, cells)

	var block models.ContentBlock
	require.NoError(t, db.First(&block).Error)
	var raw extractor.TableData
	require.NoError(t, json.Unmarshal(block.TableData, &raw))
	require.Len(t, raw.Headers, 1)
	assert.Equal(t, "Empty", raw.Headers[0].Text)
}

func TestPersistFormFieldsKeepOrder(t *testing.T) {
	p, db, page := persistFixture(t)

	data := &extractor.PageData{
		PageType:           "form",
		DetectedLanguage:   models.LangEnglish,
		LanguageConfidence: 0.9,
		ContentBlocks: []extractor.Block{{
			BlockNumber: 1,
			BlockType:   models.BlockForm,
			TableData:   extractor.TableData{Headers: []extractor.TableHeader{}, Rows: []extractor.TableRow{}},
			FormData: extractor.FormData{Fields: []extractor.FormField{
				{FieldName: "name", FieldLabel: "Full Name", FieldType: models.FieldText, FieldValue: "Rahim", IsFilled: true},
				{FieldName: "agree", FieldLabel: "I agree", FieldType: models.FieldCheckbox, IsFilled: false},
			}},
		}},
	}
	require.NoError(t, p.persistExtraction(page, data))

	var fields []models.FormField
	require.NoError(t, db.Order("field_order").Find(&fields).Error)
	require.Len(t, fields, 2)
	assert.Equal(t, 0, fields[0].FieldOrder)
	assert.Equal(t, "name", fields[0].FieldName)
	assert.True(t, fields[0].IsFilled)
	assert.Equal(t, 1, fields[1].FieldOrder)
	assert.Equal(t, models.FieldCheckbox, fields[1].FieldType)
}

func TestPersistDefaultsMissingBBoxAndConfidence(t *testing.T) {
	p, db, page := persistFixture(t)

	data := &extractor.PageData{
		PageType:         "text",
		DetectedLanguage: "",
		ContentBlocks: []extractor.Block{{
			BlockNumber: 1,
			BlockType:   models.BlockParagraph,
			TextContent: "no geometry reported",
			TableData:   extractor.TableData{Headers: []extractor.TableHeader{}, Rows: []extractor.TableRow{}},
			FormData:    extractor.FormData{Fields: []extractor.FormField{}},
		}},
	}
	require.NoError(t, p.persistExtraction(page, data))

	assert.Equal(t, models.LangUnknown, page.DetectedLanguage)

	var block models.ContentBlock
	require.NoError(t, db.First(&block).Error)
	assert.Equal(t, 0.0, block.BboxX1)
	assert.Equal(t, 0.0, block.BboxY1)
	assert.Equal(t, 1.0, block.BboxX2)
	assert.Equal(t, 1.0, block.BboxY2)
	assert.Equal(t, 1.0, block.Confidence)
}

func TestDeleteDocumentPages(t *testing.T) {
	p, db, page := persistFixture(t)

	data := goodPage("text", 0.9, 0.9)
	data.ContentBlocks[0].TableData = extractor.TableData{
		Headers: []extractor.TableHeader{{Text: "H", ColumnPath: []int{0}}},
		Rows: []extractor.TableRow{{RowIndex: 0, Cells: []extractor.TableCell{
			{Text: "v", ColumnPath: []int{0}, Rowspan: 1, Colspan: 1},
		}}},
	}
	data.ContentBlocks[0].FormData = extractor.FormData{Fields: []extractor.FormField{
		{FieldName: "f", FieldType: models.FieldText},
	}}
	require.NoError(t, p.persistExtraction(page, data))

	log := models.ExtractionLog{DocumentID: page.DocumentID, PageID: &page.ID, Success: true}
	require.NoError(t, db.Create(&log).Error)

	require.NoError(t, DeleteDocumentPages(db, page.DocumentID))

	for _, count := range []struct {
		name  string
		model interface{}
	}{
		{"pages", &models.Page{}},
		{"blocks", &models.ContentBlock{}},
		{"cells", &models.TableCell{}},
		{"fields", &models.FormField{}},
	} {
		var n int64
		db.Model(count.model).Count(&n)
		assert.EqualValues(t, 0, n, count.name)
	}

	// audit trail survives the purge
	var logs int64
	db.Model(&models.ExtractionLog{}).Count(&logs)
	assert.EqualValues(t, 1, logs)
}
