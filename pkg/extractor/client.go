// Package extractor calls a vision-capable structured-output backend with a
// single page raster and returns the extracted content under a fixed schema.
package extractor

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log"
	"net/http"
	"time"
)

const (
	defaultAPIURL = "https://api.openai.com/v1/chat/completions"
	defaultModel  = "gpt-4o-mini"

	jpegQuality = 95
)

// Client talks to an OpenAI-compatible chat-completions endpoint. The
// round-trip is synchronous and blocking; no timeout is imposed here.
type Client struct {
	apiURL     string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient builds an extraction client. Empty apiURL/model fall back to the
// package defaults.
func NewClient(apiURL, apiKey, model string) *Client {
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	if model == "" {
		model = defaultModel
	}
	return &Client{
		apiURL:     apiURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{},
	}
}

type imageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type message struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	ResponseFormat json.RawMessage `json:"response_format"`
	Temperature    float64         `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Extract runs one extraction attempt over a page raster. It never returns
// an error; every failure mode (encode, transport, HTTP status, schema
// violation) is folded into a failed Result with elapsed time recorded.
func (c *Client) Extract(img image.Image, retryCount int) Result {
	start := time.Now()

	fail := func(format string, args ...any) Result {
		msg := fmt.Sprintf(format, args...)
		log.Printf("extraction failed: %s", msg)
		return Result{
			Success:        false,
			Error:          msg,
			ProcessingTime: time.Since(start).Seconds(),
			RetryCount:     retryCount,
		}
	}

	b64, err := encodeJPEG(img)
	if err != nil {
		return fail("encode page image: %v", err)
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []message{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: extractionPrompt},
				{Type: "image_url", ImageURL: &imageURL{
					URL:    "data:image/jpeg;base64," + b64,
					Detail: "high",
				}},
			},
		}},
		ResponseFormat: json.RawMessage(responseFormat),
		Temperature:    0.1,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fail("marshal request: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return fail("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	log.Printf("extraction call model=%s retry=%d", c.model, retryCount)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fail("backend request: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail("read response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fail("backend status %d: %s", resp.StatusCode, snippet(body, 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fail("decode response envelope: %v", err)
	}
	if len(parsed.Choices) == 0 {
		return fail("response has no choices")
	}

	// The backend enforces the schema; anything that still fails to decode
	// into the contract types is a hard failure, not a partial success.
	var data PageData
	dec := json.NewDecoder(bytes.NewReader([]byte(parsed.Choices[0].Message.Content)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&data); err != nil {
		return fail("structured content violates schema: %v", err)
	}

	elapsed := time.Since(start).Seconds()
	log.Printf("extraction ok in %.2fs tokens=%d retry=%d", elapsed, parsed.Usage.TotalTokens, retryCount)

	return Result{
		Success:        true,
		Data:           &data,
		ProcessingTime: elapsed,
		TokensUsed:     parsed.Usage.TotalTokens,
		RetryCount:     retryCount,
	}
}

func encodeJPEG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func snippet(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
