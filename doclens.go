// Copyright 2026 Conductor OSS
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.

// Package doclens extracts text/markdown from documents. All format parsing
// is delegated to external libraries; the engine's own job is converter
// dispatch, MIME sniffing and output normalization. Image captioning and
// audio transcription are optional and delegated to a hosted model API.
package doclens

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	// PriorityFormat is for format-specific converters (PDF, DOCX, etc.).
	PriorityFormat = 0.0
	// PriorityFallback is for fallback converters (PlainText, HTML, ZIP).
	PriorityFallback = 10.0
)

// DefaultFigureLabel prefixes captions of figures found in documents.
const DefaultFigureLabel = "Figure"

type registration struct {
	converter Converter
	priority  float64
	name      string
}

// Engine is the document-to-markdown extraction engine.
type Engine struct {
	converters   []registration
	keepDataURIs bool

	describer   Describer
	transcriber Transcriber
	figureLabel string
}

// New creates an Engine with the built-in converters and the given options.
func New(opts ...Option) *Engine {
	e := &Engine{figureLabel: DefaultFigureLabel}
	for _, opt := range opts {
		opt(e)
	}
	e.enableBuiltins()
	return e
}

// Register adds a custom converter with the given priority.
// Lower priority values are tried first.
func (e *Engine) Register(name string, c Converter, priority float64) {
	e.converters = append(e.converters, registration{
		converter: c,
		priority:  priority,
		name:      name,
	})
	sort.SliceStable(e.converters, func(i, j int) bool {
		return e.converters[i].priority < e.converters[j].priority
	})
}

// Convert auto-detects the source type (file path or URL) and extracts it.
func (e *Engine) Convert(ctx context.Context, source string) (*Result, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return e.ConvertURL(ctx, source)
	}
	return e.ConvertFile(ctx, source)
}

// ConvertFile extracts a local file.
func (e *Engine) ConvertFile(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	info := SourceInfo{
		Extension: strings.ToLower(filepath.Ext(path)),
		Filename:  filepath.Base(path),
		LocalPath: path,
	}

	info.MIMEType = sniffMIMEType(f, info.Extension)

	// Reset after MIME detection
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek: %w", err)
	}

	return e.ConvertReader(ctx, f, info)
}

// ConvertReader extracts a stream using the provided SourceInfo.
func (e *Engine) ConvertReader(ctx context.Context, r io.ReadSeeker, info SourceInfo) (*Result, error) {
	return e.dispatch(ctx, r, info)
}

// ConvertURL fetches a URL and extracts the response body.
func (e *Engine) ConvertURL(ctx context.Context, url string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch URL: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	reader := bytes.NewReader(data)
	info := SourceInfo{URL: url}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		parts := strings.Split(ct, ";")
		info.MIMEType = strings.TrimSpace(parts[0])
		for _, p := range parts[1:] {
			p = strings.TrimSpace(p)
			if strings.HasPrefix(p, "charset=") {
				info.Charset = strings.Trim(strings.TrimPrefix(p, "charset="), `"'`)
			}
		}
	}

	urlPath := strings.Split(url, "?")[0]
	info.Extension = strings.ToLower(filepath.Ext(urlPath))
	if info.Extension != "" {
		info.Filename = filepath.Base(urlPath)
	}

	if info.MIMEType == "" {
		info.MIMEType = sniffMIMEType(reader, info.Extension)
		reader.Seek(0, io.SeekStart)
	}

	return e.ConvertReader(ctx, reader, info)
}

// dispatch walks the registered converters in priority order.
func (e *Engine) dispatch(ctx context.Context, r io.ReadSeeker, info SourceInfo) (*Result, error) {
	var failed []FailedAttempt

	for _, reg := range e.converters {
		if !reg.converter.Accepts(info) {
			continue
		}

		// Reset reader position before each attempt
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("seek: %w", err)
		}

		result, err := reg.converter.Convert(ctx, r, info)
		if err != nil {
			failed = append(failed, FailedAttempt{
				Converter: reg.name,
				Err:       err,
			})
			continue
		}

		result.Markdown = normalizeOutput(result.Markdown)
		return result, nil
	}

	if len(failed) > 0 {
		return nil, &ConversionError{Attempts: failed}
	}

	return nil, &UnsupportedFormatError{
		Extension: info.Extension,
		MIMEType:  info.MIMEType,
	}
}

// enableBuiltins registers all built-in converters.
func (e *Engine) enableBuiltins() {
	// Specific format converters (priority 0.0, tried first)
	e.Register("csv", NewCSVConverter(), PriorityFormat)
	e.Register("feed", NewFeedConverter(), PriorityFormat)
	e.Register("ipynb", NewNotebookConverter(), PriorityFormat)
	e.Register("docx", NewDocxConverter(e), PriorityFormat)
	e.Register("xlsx", NewXlsxConverter(), PriorityFormat)
	e.Register("xls", NewXlsConverter(), PriorityFormat)
	e.Register("pptx", NewPptxConverter(e), PriorityFormat)
	e.Register("pdf", NewPDFConverter(e), PriorityFormat)
	e.Register("epub", NewEpubConverter(e), PriorityFormat)
	e.Register("image", NewImageConverter(e), PriorityFormat)
	e.Register("audio", NewAudioConverter(e), PriorityFormat)

	// Generic converters (priority 10.0, tried last as fallbacks)
	e.Register("html", NewHTMLConverter(e), PriorityFallback)
	e.Register("zip", NewZipConverter(e), PriorityFallback)
	e.Register("plaintext", NewPlainTextConverter(), PriorityFallback)
}

// sniffMIMEType detects the MIME type from content, falling back to the
// extension when the content is inconclusive.
func sniffMIMEType(r io.ReadSeeker, ext string) string {
	mtype, err := mimetype.DetectReader(r)
	if err == nil && mtype.String() != "application/octet-stream" {
		return mtype.String()
	}
	return mimeFromExtension(ext)
}

// mimeFromExtension returns a MIME type for common extensions.
func mimeFromExtension(ext string) string {
	extMap := map[string]string{
		".pdf":      "application/pdf",
		".docx":     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		".pptx":     "application/vnd.openxmlformats-officedocument.presentationml.presentation",
		".xlsx":     "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		".xls":      "application/vnd.ms-excel",
		".html":     "text/html",
		".htm":      "text/html",
		".csv":      "text/csv",
		".txt":      "text/plain",
		".text":     "text/plain",
		".md":       "text/markdown",
		".markdown": "text/markdown",
		".json":     "application/json",
		".jsonl":    "application/jsonl",
		".xml":      "text/xml",
		".rss":      "application/rss+xml",
		".atom":     "application/atom+xml",
		".epub":     "application/epub+zip",
		".zip":      "application/zip",
		".ipynb":    "application/x-ipynb+json",
		".jpg":      "image/jpeg",
		".jpeg":     "image/jpeg",
		".png":      "image/png",
		".gif":      "image/gif",
		".webp":     "image/webp",
		".mp3":      "audio/mpeg",
		".wav":      "audio/wav",
		".m4a":      "audio/mp4",
		".flac":     "audio/flac",
	}
	if m, ok := extMap[ext]; ok {
		return m
	}
	return "application/octet-stream"
}
