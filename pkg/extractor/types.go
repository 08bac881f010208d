package extractor

// Result is the outcome of one extraction attempt. Extract never returns an
// error: failures are folded into Success=false with telemetry intact so the
// caller can log the attempt and keep the page unprocessed.
type Result struct {
	Success        bool
	Data           *PageData
	Error          string
	ProcessingTime float64 // seconds
	TokensUsed     int
	RetryCount     int
}

// PageData is the backend's structured description of one page. The response
// schema is strict: every block always carries table_data and form_data, even
// when empty.
type PageData struct {
	PageType           string  `json:"page_type"`
	DetectedLanguage   string  `json:"detected_language"`
	LanguageConfidence float64 `json:"language_confidence"`
	ContentBlocks      []Block `json:"content_blocks"`
}

type Block struct {
	BlockNumber   int       `json:"block_number"`
	BlockType     string    `json:"block_type"`
	TextContent   string    `json:"text_content"`
	BBox          *BBox     `json:"bbox"`
	Confidence    *float64  `json:"confidence"`
	IsHandwritten bool      `json:"is_handwritten"`
	TableData     TableData `json:"table_data"`
	FormData      FormData  `json:"form_data"`
}

// BBox is a normalized bounding box: (x1,y1) top-left, (x2,y2) bottom-right,
// all in [0,1] relative to page dimensions.
type BBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

type TableData struct {
	Headers []TableHeader `json:"headers"`
	Rows    []TableRow    `json:"rows"`
}

// TableHeader is one header cell at a given nesting level. ColumnPath
// locates it in the nested-column hierarchy: [0,1,2] is the third-level
// sub-column under [0,1].
type TableHeader struct {
	Text       string `json:"text"`
	ColumnPath []int  `json:"column_path"`
	Level      int    `json:"level"`
}

type TableRow struct {
	RowIndex int         `json:"row_index"`
	Cells    []TableCell `json:"cells"`
}

type TableCell struct {
	Text       string `json:"text"`
	ColumnPath []int  `json:"column_path"`
	Rowspan    int    `json:"rowspan"`
	Colspan    int    `json:"colspan"`
}

type FormData struct {
	Fields []FormField `json:"fields"`
}

type FormField struct {
	FieldName  string `json:"field_name"`
	FieldLabel string `json:"field_label"`
	FieldType  string `json:"field_type"`
	FieldValue string `json:"field_value"`
	IsFilled   bool   `json:"is_filled"`
}

// Validate checks an extraction result against minimum quality standards:
// success, all top-level keys, at least one content block, and table/form
// sub-documents present on every block. Advisory only; persistence does not
// depend on it.
func Validate(res Result) bool {
	if !res.Success || res.Data == nil {
		return false
	}
	data := res.Data
	if data.PageType == "" || data.DetectedLanguage == "" {
		return false
	}
	if len(data.ContentBlocks) == 0 {
		return false
	}
	for _, b := range data.ContentBlocks {
		if b.BlockType == "" {
			return false
		}
		if b.TableData.Headers == nil || b.TableData.Rows == nil {
			return false
		}
		if b.FormData.Fields == nil {
			return false
		}
	}
	return true
}
