package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/md-ryhan-uddin/document-extraction-ai-system/models"
	"github.com/md-ryhan-uddin/document-extraction-ai-system/pkg/cancel"
	"github.com/md-ryhan-uddin/document-extraction-ai-system/pkg/extractor"
	"github.com/md-ryhan-uddin/document-extraction-ai-system/pkg/pipeline"
)

// helper to perform requests with auth token
func performRequest(r http.Handler, method, path string, body io.Reader, token string, contentType string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func setupTestServer(t *testing.T) *gin.Engine {
	// integration tests are opt-in. Set DB_DSN_TEST=1 and DB_DSN to run them.
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	gin.SetMode(gin.TestMode)
	jwtSecret = []byte("integration-test-secret")
	tmp := t.TempDir()
	_ = os.Setenv("UPLOAD_BASE", tmp)
	_ = os.Setenv("MEDIA_BASE", tmp)
	initDB()

	// extraction backend stub: every call fails fast so documents reach a
	// terminal state without network access or billing
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no backend in tests", http.StatusServiceUnavailable)
	}))
	t.Cleanup(backend.Close)

	registry = cancel.NewRegistry()
	client := extractor.NewClient(backend.URL, "test-key", "")
	proc = pipeline.New(db, registry, client, pipeline.ConfigFromEnv())
	queue = pipeline.NewQueue(proc, 1, 0)
	t.Cleanup(queue.Close)

	r := gin.Default()
	setupRoutes(r)
	return r
}

func pngUpload(t *testing.T, field, filename string) (*bytes.Buffer, string) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 40, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			img.SetNRGBA(x, y, color.NRGBA{255, 255, 255, 255})
		}
	}
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	w, _ := mw.CreateFormFile(field, filename)
	if err := png.Encode(w, img); err != nil {
		t.Fatal(err)
	}
	_ = mw.Close()
	return buf, mw.FormDataContentType()
}

func TestDocumentFlow(t *testing.T) {
	r := setupTestServer(t)

	// 1. Register user
	regBody, _ := json.Marshal(map[string]string{"username": "user1", "password": "pass123"})
	resp := performRequest(r, http.MethodPost, "/register", bytes.NewBuffer(regBody), "", "application/json")
	if resp.Code != 200 && resp.Code != 409 {
		t.Fatalf("register failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 2. Login
	loginBody, _ := json.Marshal(map[string]string{"username": "user1", "password": "pass123"})
	resp = performRequest(r, http.MethodPost, "/login", bytes.NewBuffer(loginBody), "", "application/json")
	if resp.Code != 200 {
		t.Fatalf("login failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var loginResp map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &loginResp)
	token, _ := loginResp["token"].(string)
	if token == "" {
		t.Fatalf("empty token in login response: %+v", loginResp)
	}

	// 3. Upload an image document
	buf, ct := pngUpload(t, "file", "scan.png")
	resp = performRequest(r, http.MethodPost, "/documents", buf, token, ct)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("upload failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var upResp struct {
		ID     uint   `json:"id"`
		Status string `json:"status"`
	}
	_ = json.Unmarshal(resp.Body.Bytes(), &upResp)
	if upResp.ID == 0 || upResp.Status != models.StatusUploaded {
		t.Fatalf("unexpected upload response: %+v", upResp)
	}

	// 4. Wait for the worker to reach a terminal state
	deadline := time.Now().Add(10 * time.Second)
	var doc models.Document
	for {
		if err := db.First(&doc, upResp.ID).Error; err != nil {
			t.Fatalf("load document: %v", err)
		}
		if doc.Status != models.StatusUploaded && doc.Status != models.StatusProcessing {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("document stuck in status %q", doc.Status)
		}
		time.Sleep(100 * time.Millisecond)
	}
	// the stub backend always fails, so the page stays unprocessed but the
	// document still completes
	if doc.Status != models.StatusCompleted {
		t.Fatalf("expected completed, got %q (%s)", doc.Status, doc.ErrorMessage)
	}
	if doc.TotalPages != 1 {
		t.Fatalf("expected 1 page, got %d", doc.TotalPages)
	}

	// 5. List and detail
	resp = performRequest(r, http.MethodGet, "/documents?status=completed", nil, token, "")
	if resp.Code != 200 {
		t.Fatalf("list failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	resp = performRequest(r, http.MethodGet, "/documents/1", nil, token, "")
	if resp.Code != 200 {
		t.Fatalf("detail failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 6. Cancel is rejected once terminal
	resp = performRequest(r, http.MethodPost, "/documents/1/cancel", nil, token, "")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 cancelling terminal document, got %d", resp.Code)
	}

	// 7. Unsupported extension is rejected up front
	buf2, ct2 := pngUpload(t, "file", "notes.txt")
	resp = performRequest(r, http.MethodPost, "/documents", buf2, token, ct2)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsupported extension, got %d", resp.Code)
	}

	// 8. Admin endpoints are forbidden for a regular user
	resp = performRequest(r, http.MethodPost, "/admin/cancel-all", nil, token, "")
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", resp.Code)
	}

	// 9. Unauthorized access to protected endpoint should be 401
	unauth := performRequest(r, http.MethodGet, "/documents", nil, "", "")
	if unauth.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unauthorized list, got %d", unauth.Code)
	}
}

func TestMigrateCommand(t *testing.T) {
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	initDB()
}
