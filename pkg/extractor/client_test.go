package extractor

import (
	"encoding/json"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage() image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetNRGBA(x, y, color.NRGBA{200, 200, 200, 255})
		}
	}
	return img
}

const pageJSON = `{
  "page_type": "form",
  "detected_language": "bn+en",
  "language_confidence": 0.92,
  "content_blocks": [
    {
      "block_number": 1,
      "block_type": "table",
      "text_content": "Results",
      "bbox": {"x1": 0.1, "y1": 0.1, "x2": 0.9, "y2": 0.5},
      "confidence": 0.88,
      "is_handwritten": false,
      "table_data": {
        "headers": [{"text": "Subject", "column_path": [0], "level": 0}],
        "rows": [{"row_index": 0, "cells": [{"text": "Math", "column_path": [0], "rowspan": 1, "colspan": 1}]}]
      },
      "form_data": {"fields": []}
    }
  ]
}`

func chatEnvelope(content string, tokens int) string {
	env := map[string]any{
		"choices": []map[string]any{{"message": map[string]any{"content": content}}},
		"usage":   map[string]any{"total_tokens": tokens},
	}
	b, _ := json.Marshal(env)
	return string(b)
}

func TestExtractSuccess(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatEnvelope(pageJSON, 1234)))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "test-model")
	res := c.Extract(testImage(), 1)

	require.True(t, res.Success, res.Error)
	require.NotNil(t, res.Data)
	assert.Equal(t, "form", res.Data.PageType)
	assert.Equal(t, "bn+en", res.Data.DetectedLanguage)
	assert.InDelta(t, 0.92, res.Data.LanguageConfidence, 1e-9)
	require.Len(t, res.Data.ContentBlocks, 1)
	assert.Equal(t, []int{0}, res.Data.ContentBlocks[0].TableData.Headers[0].ColumnPath)
	assert.Equal(t, 1234, res.TokensUsed)
	assert.Equal(t, 1, res.RetryCount)
	assert.Greater(t, res.ProcessingTime, 0.0)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "test-model", gotReq.Model)

	// the strict schema contract must ride along on every request
	var rf map[string]any
	require.NoError(t, json.Unmarshal(gotReq.ResponseFormat, &rf))
	assert.Equal(t, "json_schema", rf["type"])
}

func TestExtractBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", "m")
	res := c.Extract(testImage(), 0)

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "status 429")
	assert.Nil(t, res.Data)
	assert.Equal(t, 0, res.RetryCount)
}

func TestExtractSchemaViolationIsHardFailure(t *testing.T) {
	// extra field the contract does not allow
	bad := `{"page_type":"text","detected_language":"en","language_confidence":1,"content_blocks":[],"surprise":true}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(chatEnvelope(bad, 10)))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", "m")
	res := c.Extract(testImage(), 0)

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "schema")
}

func TestExtractTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused

	c := NewClient(srv.URL, "k", "m")
	res := c.Extract(testImage(), 0)

	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestValidate(t *testing.T) {
	var data PageData
	require.NoError(t, json.Unmarshal([]byte(pageJSON), &data))

	ok := Result{Success: true, Data: &data}
	assert.True(t, Validate(ok))

	assert.False(t, Validate(Result{Success: false, Data: &data}))
	assert.False(t, Validate(Result{Success: true}))

	empty := data
	empty.ContentBlocks = nil
	assert.False(t, Validate(Result{Success: true, Data: &empty}))

	noTable := data
	noTable.ContentBlocks = []Block{{BlockType: "paragraph", FormData: FormData{Fields: []FormField{}}}}
	assert.False(t, Validate(Result{Success: true, Data: &noTable}))
}
