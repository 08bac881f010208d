package pipeline

import (
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"github.com/md-ryhan-uddin/document-extraction-ai-system/models"
	"github.com/md-ryhan-uddin/document-extraction-ai-system/pkg/extractor"
)

// persistExtraction copies page-level metadata and writes the content rows.
// Field defaulting here is a deliberate boundary between the untrusted
// backend response and internal records, independent of the backend's own
// schema strictness.
func (p *Processor) persistExtraction(page *models.Page, data *extractor.PageData) error {
	page.DetectedLanguage = data.DetectedLanguage
	if page.DetectedLanguage == "" {
		page.DetectedLanguage = models.LangUnknown
	}
	page.LanguageConfidence = data.LanguageConfidence
	page.PageType = data.PageType
	if err := p.db.Save(page).Error; err != nil {
		return fmt.Errorf("save page metadata: %w", err)
	}

	for i := range data.ContentBlocks {
		if err := p.storeContentBlock(page, &data.ContentBlocks[i]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Processor) storeContentBlock(page *models.Page, b *extractor.Block) error {
	bbox := b.BBox
	if bbox == nil {
		bbox = &extractor.BBox{X1: 0, Y1: 0, X2: 1, Y2: 1}
	}
	confidence := 1.0
	if b.Confidence != nil {
		confidence = *b.Confidence
	}

	// table_data and form_data are stored verbatim; both keys are always
	// structurally present by contract
	tableJSON, err := json.Marshal(b.TableData)
	if err != nil {
		return fmt.Errorf("marshal table data: %w", err)
	}
	formJSON, err := json.Marshal(b.FormData)
	if err != nil {
		return fmt.Errorf("marshal form data: %w", err)
	}

	block := models.ContentBlock{
		PageID:        page.ID,
		BlockNumber:   b.BlockNumber,
		BlockType:     b.BlockType,
		TextContent:   b.TextContent,
		BboxX1:        bbox.X1,
		BboxY1:        bbox.Y1,
		BboxX2:        bbox.X2,
		BboxY2:        bbox.Y2,
		Confidence:    confidence,
		IsHandwritten: b.IsHandwritten,
		TableData:     tableJSON,
		FormData:      formJSON,
	}
	if err := p.db.Create(&block).Error; err != nil {
		return fmt.Errorf("create content block %d: %w", b.BlockNumber, err)
	}

	if len(b.TableData.Rows) > 0 {
		if err := p.storeTableCells(&block, &b.TableData); err != nil {
			return err
		}
	}
	if len(b.FormData.Fields) > 0 {
		if err := p.storeFormFields(&block, &b.FormData); err != nil {
			return err
		}
	}
	return nil
}

// storeTableCells flattens a table into cell rows. Headers and body cells
// share one table: headers carry row_index -1 and is_header true, body rows
// carry their 0-based row_index and is_header false.
func (p *Processor) storeTableCells(block *models.ContentBlock, table *extractor.TableData) error {
	for _, row := range table.Rows {
		for _, cell := range row.Cells {
			path, err := json.Marshal(cell.ColumnPath)
			if err != nil {
				return fmt.Errorf("marshal column path: %w", err)
			}
			rowspan, colspan := cell.Rowspan, cell.Colspan
			if rowspan < 1 {
				rowspan = 1
			}
			if colspan < 1 {
				colspan = 1
			}
			rec := models.TableCell{
				ContentBlockID: block.ID,
				RowIndex:       row.RowIndex,
				ColumnPath:     path,
				Text:           cell.Text,
				Rowspan:        rowspan,
				Colspan:        colspan,
				IsHeader:       false,
			}
			if err := p.db.Create(&rec).Error; err != nil {
				return fmt.Errorf("create table cell: %w", err)
			}
		}
	}

	for _, header := range table.Headers {
		path, err := json.Marshal(header.ColumnPath)
		if err != nil {
			return fmt.Errorf("marshal header column path: %w", err)
		}
		rec := models.TableCell{
			ContentBlockID: block.ID,
			RowIndex:       models.HeaderRowIndex,
			ColumnPath:     path,
			Text:           header.Text,
			Rowspan:        1,
			Colspan:        1,
			IsHeader:       true,
		}
		if err := p.db.Create(&rec).Error; err != nil {
			return fmt.Errorf("create header cell: %w", err)
		}
	}
	return nil
}

func (p *Processor) storeFormFields(block *models.ContentBlock, form *extractor.FormData) error {
	for idx, f := range form.Fields {
		rec := models.FormField{
			ContentBlockID: block.ID,
			FieldName:      f.FieldName,
			FieldLabel:     f.FieldLabel,
			FieldType:      f.FieldType,
			FieldValue:     f.FieldValue,
			IsFilled:       f.IsFilled,
			FieldOrder:     idx,
		}
		if err := p.db.Create(&rec).Error; err != nil {
			return fmt.Errorf("create form field %q: %w", f.FieldName, err)
		}
	}
	return nil
}

// DeleteDocumentPages removes every page of a document together with its
// content rows, child tables first. Extraction logs are append-only audit
// records and are deliberately left alone.
func DeleteDocumentPages(db *gorm.DB, documentID uint) error {
	pageIDs := db.Model(&models.Page{}).Select("id").Where("document_id = ?", documentID)
	blockIDs := db.Model(&models.ContentBlock{}).Select("id").Where("page_id IN (?)", pageIDs)

	if err := db.Where("content_block_id IN (?)", blockIDs).Delete(&models.FormField{}).Error; err != nil {
		return fmt.Errorf("delete form fields: %w", err)
	}
	if err := db.Where("content_block_id IN (?)", blockIDs).Delete(&models.TableCell{}).Error; err != nil {
		return fmt.Errorf("delete table cells: %w", err)
	}
	if err := db.Where("page_id IN (?)", pageIDs).Delete(&models.ContentBlock{}).Error; err != nil {
		return fmt.Errorf("delete content blocks: %w", err)
	}
	if err := db.Where("document_id = ?", documentID).Delete(&models.Page{}).Error; err != nil {
		return fmt.Errorf("delete pages: %w", err)
	}
	return nil
}
