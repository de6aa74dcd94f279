package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/nicholasgasior/doclens"
	"github.com/nicholasgasior/doclens/internal/config"
	"github.com/nicholasgasior/doclens/internal/llm"
)

// DocumentInfo describes the uploaded file in the response.
type DocumentInfo struct {
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
	Pages       int    `json:"pages,omitempty"`
}

// ExtractResponse is the JSON body of a successful extraction.
type ExtractResponse struct {
	Markdown string       `json:"markdown"`
	Title    string       `json:"title,omitempty"`
	Document DocumentInfo `json:"document"`
}

// ExtractHandler serves POST /api/extract.
type ExtractHandler struct {
	cfg       *config.Config
	logger    *slog.Logger
	supported map[string]bool
}

func NewExtractHandler(cfg *config.Config, logger *slog.Logger) *ExtractHandler {
	supported := make(map[string]bool, len(supportedExtensions))
	for _, ext := range supportedExtensions {
		supported["."+ext] = true
	}
	return &ExtractHandler{
		cfg:       cfg,
		logger:    logger,
		supported: supported,
	}
}

// Extract stages the upload to a temporary file, runs the engine against it
// and returns the markdown. The temporary file is removed before the response
// is written, whether the conversion succeeded or not.
func (h *ExtractHandler) Extract(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "No file provided"})
		return
	}

	if file.Size > h.cfg.MaxUploadSize {
		h.logger.Warn("upload too large", "size", file.Size, "max", h.cfg.MaxUploadSize)
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Error:   "File too large",
			Details: fmt.Sprintf("Maximum upload size is %d bytes", h.cfg.MaxUploadSize),
		})
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !h.supported[ext] {
		c.JSON(http.StatusUnsupportedMediaType, ErrorResponse{
			Error:   "Unsupported file type",
			Details: "Supported extensions: " + strings.Join(supportedExtensions, ", "),
		})
		return
	}

	// Stage the upload under a random name, keeping the original extension
	// so converter selection still works. Removal is deferred so the file
	// is gone on every exit path.
	tmpPath := filepath.Join(h.cfg.TmpDir, uuid.NewString()+ext)
	if err := h.stageUpload(file, tmpPath); err != nil {
		h.logger.Error("stage upload", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to process file"})
		return
	}
	defer os.Remove(tmpPath)

	engine := doclens.New(h.engineOptions(c)...)

	result, err := engine.ConvertFile(c.Request.Context(), tmpPath)
	if err != nil {
		h.writeConversionError(c, err)
		return
	}

	doc := DocumentInfo{
		Filename:    file.Filename,
		Size:        file.Size,
		ContentType: file.Header.Get("Content-Type"),
	}
	if ext == ".pdf" {
		if pages, err := api.PageCountFile(tmpPath); err == nil {
			doc.Pages = pages
		}
	}

	if download, _ := strconv.ParseBool(c.PostForm("download")); download {
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename+"_extracted.md"))
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(result.Markdown))
		return
	}

	h.logger.Info("extracted document", "filename", file.Filename, "size", file.Size, "markdownBytes", len(result.Markdown))
	c.JSON(http.StatusOK, ExtractResponse{
		Markdown: result.Markdown,
		Title:    result.Title,
		Document: doc,
	})
}

// stageUpload copies the multipart file to path.
func (h *ExtractHandler) stageUpload(file *multipart.FileHeader, path string) error {
	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return fmt.Errorf("write temp file: %w", err)
	}
	return dst.Close()
}

// engineOptions builds per-request engine options. Enrichment is attached
// only when it is requested and an API key is available; without a key the
// request still runs with base extraction only.
func (h *ExtractHandler) engineOptions(c *gin.Context) []doclens.Option {
	var opts []doclens.Option

	enrich := h.cfg.Enrich.Default
	if v := c.PostForm("enrich"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			enrich = parsed
		}
	}
	if !enrich {
		return opts
	}

	apiKey := c.PostForm("api_key")
	if apiKey == "" {
		apiKey = h.cfg.Enrich.APIKey
	}
	if apiKey == "" {
		return opts
	}

	docLang := c.PostForm("doc_lang")

	client := llm.NewClient(llm.Config{
		APIKey:       apiKey,
		BaseURL:      h.cfg.Enrich.BaseURL,
		VisionModel:  h.cfg.Enrich.VisionModel,
		WhisperModel: h.cfg.Enrich.WhisperModel,
		Language:     docLang,
	})

	opts = append(opts,
		doclens.WithDescriber(client),
		doclens.WithTranscriber(client),
		doclens.WithFigureLabel(h.cfg.Enrich.FigureLabel),
	)
	return opts
}

// writeConversionError maps engine errors to HTTP statuses.
func (h *ExtractHandler) writeConversionError(c *gin.Context, err error) {
	var llmErr *llm.Error
	switch {
	case doclens.IsUnsupportedFormat(err):
		c.JSON(http.StatusUnsupportedMediaType, ErrorResponse{Error: "Unsupported file type"})
	case errors.As(err, &llmErr):
		h.logger.Error("enrichment backend failed", "error", llmErr)
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "Enrichment service unavailable",
			Details: llmErr.Error(),
		})
	default:
		h.logger.Warn("conversion failed", "error", err)
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "Could not extract document",
			Details: err.Error(),
		})
	}
}
