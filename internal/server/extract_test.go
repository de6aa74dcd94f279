package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/nicholasgasior/doclens/internal/config"
)

func newTestRouter(t *testing.T, cfg *config.Config) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	if cfg == nil {
		cfg = &config.Config{MaxUploadSize: 10 << 20}
	}
	if cfg.TmpDir == "" {
		cfg.TmpDir = t.TempDir()
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(cfg, logger), cfg.TmpDir
}

func multipartUpload(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatal(err)
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &body, mw.FormDataContentType()
}

func assertTmpDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read tmp dir: %v", err)
	}
	if len(entries) != 0 {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Errorf("tmp dir not empty after request: %v", names)
	}
}

func TestExtractText(t *testing.T) {
	router, tmpDir := newTestRouter(t, nil)

	body, contentType := multipartUpload(t, "notes.txt", []byte("plain text body"), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/extract", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp ExtractResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if !strings.Contains(resp.Markdown, "plain text body") {
		t.Errorf("markdown = %q, missing uploaded text", resp.Markdown)
	}
	if resp.Document.Filename != "notes.txt" {
		t.Errorf("document.filename = %q, want notes.txt", resp.Document.Filename)
	}
	if resp.Document.Size != int64(len("plain text body")) {
		t.Errorf("document.size = %d, want %d", resp.Document.Size, len("plain text body"))
	}

	assertTmpDirEmpty(t, tmpDir)
}

func TestExtractDownloadMatchesDisplay(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	content := []byte("line one\nline two\n")

	// Same upload twice: once for JSON, once as a download.
	body, contentType := multipartUpload(t, "doc.txt", content, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/extract", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp ExtractResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}

	body, contentType = multipartUpload(t, "doc.txt", content, map[string]string{"download": "true"})
	req = httptest.NewRequest(http.MethodPost, "/api/extract", body)
	req.Header.Set("Content-Type", contentType)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("download status = %d", rec.Code)
	}

	cd := rec.Header().Get("Content-Disposition")
	if !strings.Contains(cd, `doc.txt_extracted.md`) {
		t.Errorf("Content-Disposition = %q, want doc.txt_extracted.md attachment", cd)
	}
	if rec.Body.String() != resp.Markdown {
		t.Errorf("downloaded bytes differ from displayed markdown:\ngot:  %q\nwant: %q", rec.Body.String(), resp.Markdown)
	}
}

func TestExtractNoFile(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/extract", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestExtractTooLarge(t *testing.T) {
	router, tmpDir := newTestRouter(t, &config.Config{MaxUploadSize: 8})

	body, contentType := multipartUpload(t, "big.txt", []byte("well over eight bytes"), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/extract", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
	assertTmpDirEmpty(t, tmpDir)
}

func TestExtractUnsupportedExtension(t *testing.T) {
	router, tmpDir := newTestRouter(t, nil)

	body, contentType := multipartUpload(t, "program.exe", []byte{0x4d, 0x5a}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/extract", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415", rec.Code)
	}
	assertTmpDirEmpty(t, tmpDir)
}

func TestExtractCorruptDocumentCleansUp(t *testing.T) {
	router, tmpDir := newTestRouter(t, nil)

	// A .xlsx that is not a ZIP archive cannot be parsed, and binary
	// content keeps the plaintext fallback out of play.
	body, contentType := multipartUpload(t, "broken.xlsx", []byte{0x00, 0x01, 0x02, 0x03}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/extract", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422, body = %s", rec.Code, rec.Body.String())
	}
	assertTmpDirEmpty(t, tmpDir)
}

func TestExtractEnrichmentBackendDown(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "service unavailable"}}`, http.StatusInternalServerError)
	}))
	defer backend.Close()

	router, tmpDir := newTestRouter(t, &config.Config{
		MaxUploadSize: 10 << 20,
		Enrich:        config.EnrichConfig{BaseURL: backend.URL},
	})

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(0, 0, color.RGBA{G: 200, A: 255})
	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		t.Fatal(err)
	}

	body, contentType := multipartUpload(t, "photo.png", pngBuf.Bytes(), map[string]string{
		"enrich":  "true",
		"api_key": "test-key",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/extract", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502, body = %s", rec.Code, rec.Body.String())
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error != "Enrichment service unavailable" {
		t.Errorf("error = %q, want enrichment failure message", resp.Error)
	}
	assertTmpDirEmpty(t, tmpDir)
}

func TestFormats(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/formats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Formats []string `json:"formats"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"pdf", "docx", "csv", "mp3"} {
		found := false
		for _, f := range resp.Formats {
			if f == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("formats missing %q", want)
		}
	}
}

func TestHealthz(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
