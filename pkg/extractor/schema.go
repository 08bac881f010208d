package extractor

// responseFormat is the strict structured-output contract sent with every
// request. The backend rejects responses that add or omit fields, so a
// well-formed 200 either matches this shape or the call is a hard failure.
const responseFormat = `{
  "type": "json_schema",
  "json_schema": {
    "name": "document_extraction",
    "strict": true,
    "schema": {
      "type": "object",
      "properties": {
        "page_type": {
          "type": "string",
          "description": "Type of page: form, table, mixed, text, invoice, etc."
        },
        "detected_language": {
          "type": "string",
          "enum": ["en", "bn", "bn+en", "unknown"],
          "description": "Primary language(s) detected"
        },
        "language_confidence": {
          "type": "number",
          "description": "Confidence score for language detection (0-1)"
        },
        "content_blocks": {
          "type": "array",
          "items": {
            "type": "object",
            "properties": {
              "block_number": {"type": "integer"},
              "block_type": {
                "type": "string",
                "enum": ["paragraph", "heading", "table", "form", "list", "handwriting", "image", "signature", "other"]
              },
              "text_content": {"type": "string"},
              "bbox": {
                "type": "object",
                "properties": {
                  "x1": {"type": "number"},
                  "y1": {"type": "number"},
                  "x2": {"type": "number"},
                  "y2": {"type": "number"}
                },
                "required": ["x1", "y1", "x2", "y2"],
                "additionalProperties": false
              },
              "confidence": {"type": "number"},
              "is_handwritten": {"type": "boolean"},
              "table_data": {
                "type": "object",
                "properties": {
                  "headers": {
                    "type": "array",
                    "items": {
                      "type": "object",
                      "properties": {
                        "text": {"type": "string"},
                        "column_path": {"type": "array", "items": {"type": "integer"}},
                        "level": {"type": "integer"}
                      },
                      "required": ["text", "column_path", "level"],
                      "additionalProperties": false
                    }
                  },
                  "rows": {
                    "type": "array",
                    "items": {
                      "type": "object",
                      "properties": {
                        "row_index": {"type": "integer"},
                        "cells": {
                          "type": "array",
                          "items": {
                            "type": "object",
                            "properties": {
                              "text": {"type": "string"},
                              "column_path": {"type": "array", "items": {"type": "integer"}},
                              "rowspan": {"type": "integer"},
                              "colspan": {"type": "integer"}
                            },
                            "required": ["text", "column_path", "rowspan", "colspan"],
                            "additionalProperties": false
                          }
                        }
                      },
                      "required": ["row_index", "cells"],
                      "additionalProperties": false
                    }
                  }
                },
                "required": ["headers", "rows"],
                "additionalProperties": false
              },
              "form_data": {
                "type": "object",
                "properties": {
                  "fields": {
                    "type": "array",
                    "items": {
                      "type": "object",
                      "properties": {
                        "field_name": {"type": "string"},
                        "field_label": {"type": "string"},
                        "field_type": {
                          "type": "string",
                          "enum": ["text", "checkbox", "radio", "select", "date", "signature", "other"]
                        },
                        "field_value": {"type": "string"},
                        "is_filled": {"type": "boolean"}
                      },
                      "required": ["field_name", "field_label", "field_type", "field_value", "is_filled"],
                      "additionalProperties": false
                    }
                  }
                },
                "required": ["fields"],
                "additionalProperties": false
              }
            },
            "required": ["block_number", "block_type", "text_content", "bbox", "confidence", "is_handwritten", "table_data", "form_data"],
            "additionalProperties": false
          }
        }
      },
      "required": ["page_type", "detected_language", "language_confidence", "content_blocks"],
      "additionalProperties": false
    }
  }
}`

const extractionPrompt = `You are an advanced document analysis system. Extract ALL content from this document page with maximum accuracy.

**Instructions:**
1. **Detect page type**: Identify if this is a form, table, mixed content, invoice, text document, etc.
2. **Detect language**: Identify if the text is in English (en), Bangla (bn), mixed (bn+en), or unknown.
3. **Extract all content blocks** in reading order:
   - Paragraphs, headings, lists, tables, forms, handwriting, images, signatures
   - For each block, provide:
     - Accurate text transcription (preserve exact text including Bangla characters)
     - Block type classification
     - Bounding box coordinates (normalized 0-1 relative to page dimensions)
     - Confidence score (0-1)
     - Whether it's handwritten

4. **For TABLES** (even if block is not a table, always include empty table_data):
   - Extract complete table structure with nested columns (headers at multiple levels)
   - Use column_path to represent hierarchy: [0] for top-level, [0,1] for sub-column, [0,1,2] for sub-sub-column
   - Capture all rows and cells with exact text
   - Note any merged cells (rowspan/colspan)

5. **For FORMS** (even if block is not a form, always include empty form_data):
   - Extract all form fields with labels
   - Identify field types (text, checkbox, radio, select, date, signature)
   - Capture current values if filled
   - Note which fields are filled vs empty

6. **Bounding boxes**: Provide normalized coordinates (0-1) where:
   - x1, y1 = top-left corner
   - x2, y2 = bottom-right corner

7. **IMPORTANT**: Every block MUST have both table_data and form_data fields:
   - If not a table: table_data = {"headers": [], "rows": []}
   - If not a form: form_data = {"fields": []}

8. **Language confidence**: Provide a score (0-1) indicating confidence in language detection.

Extract everything accurately, preserving the exact structure and content of the document.`
