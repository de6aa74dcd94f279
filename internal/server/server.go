// Package server exposes the extraction engine over HTTP: a JSON API plus a
// minimal embedded upload page.
package server

import (
	"embed"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nicholasgasior/doclens/internal/config"
)

//go:embed index.html
var indexPage embed.FS

// ErrorResponse is the JSON body for all error statuses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// NewRouter builds the gin router with all routes attached.
func NewRouter(cfg *config.Config, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	extractHandler := NewExtractHandler(cfg, logger)

	router.GET("/healthz", health)
	router.GET("/api/formats", formats)
	router.POST("/api/extract", extractHandler.Extract)

	router.GET("/", func(c *gin.Context) {
		data, err := indexPage.ReadFile("index.html")
		if err != nil {
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Page unavailable"})
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", data)
	})

	return router
}

func health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// supportedExtensions lists the upload extensions the engine can extract.
// Listed without the dot, grouped roughly by kind.
var supportedExtensions = []string{
	"pdf", "docx", "pptx", "xlsx", "xls", "epub",
	"html", "htm", "csv", "json", "xml", "ipynb", "txt", "md",
	"jpg", "jpeg", "png", "gif",
	"mp3", "wav", "m4a",
	"zip",
}

func formats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"formats": supportedExtensions})
}
