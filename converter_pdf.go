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

package doclens

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/sync/errgroup"
)

// PDFConverter extracts text from PDF files. When the engine carries a
// Describer, embedded images are extracted per page and captioned, and the
// captions are appended after the owning page's text.
type PDFConverter struct {
	engine *Engine
}

// NewPDFConverter creates a new PDFConverter.
func NewPDFConverter(e *Engine) *PDFConverter {
	return &PDFConverter{engine: e}
}

func (c *PDFConverter) Accepts(info SourceInfo) bool {
	if info.Extension == ".pdf" {
		return true
	}
	mime := strings.ToLower(info.MIMEType)
	return strings.HasPrefix(mime, "application/pdf")
}

func (c *PDFConverter) Convert(ctx context.Context, reader io.ReadSeeker, info SourceInfo) (*Result, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read PDF: %w", err)
	}

	pdfReader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	numPages := pdfReader.NumPage()

	var figures map[int][]string
	if c.engine != nil && c.engine.describer != nil {
		figures, err = c.describeFigures(ctx, data, info)
		if err != nil {
			return nil, fmt.Errorf("describe PDF figures: %w", err)
		}
	}

	var md strings.Builder
	for i := 1; i <= numPages; i++ {
		page := pdfReader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text := strings.TrimSpace(c.extractPageText(page))
		if text != "" {
			md.WriteString(text)
			md.WriteString("\n\n")
		}
		for _, caption := range figures[i] {
			md.WriteString(caption)
			md.WriteString("\n\n")
		}
	}

	result := md.String()
	if strings.TrimSpace(result) == "" {
		return &Result{
			Markdown: "[No readable text content found in PDF]",
		}, nil
	}

	return &Result{Markdown: result}, nil
}

// figureFilePattern matches pdfcpu image output names: <base>_<page>_<id>.<ext>.
// The resource id may itself contain underscores, so the page number anchors
// on the first id segment.
var figureFilePattern = regexp.MustCompile(`_(\d+)_.+\.\w+$`)

// maxCaptionWorkers bounds concurrent captioning calls per document.
const maxCaptionWorkers = 4

// describeFigures extracts the embedded images of every page into a scratch
// directory, captions them through the engine's Describer, and returns the
// labeled captions keyed by page number. Figures are numbered in page order.
func (c *PDFConverter) describeFigures(ctx context.Context, data []byte, info SourceInfo) (map[int][]string, error) {
	// pdfcpu extraction wants a file; reuse the source path when we have one.
	srcPath := info.LocalPath
	if srcPath == "" {
		tmp, err := os.CreateTemp("", "doclens-*.pdf")
		if err != nil {
			return nil, fmt.Errorf("create temp PDF: %w", err)
		}
		defer os.Remove(tmp.Name())
		if _, err := tmp.Write(data); err != nil {
			tmp.Close()
			return nil, fmt.Errorf("write temp PDF: %w", err)
		}
		tmp.Close()
		srcPath = tmp.Name()
	}

	outDir, err := os.MkdirTemp("", "doclens-figures-")
	if err != nil {
		return nil, fmt.Errorf("create figure dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.ExtractImagesFile(srcPath, outDir, nil, conf); err != nil {
		return nil, fmt.Errorf("extract images: %w", err)
	}

	type figureFile struct {
		path string
		page int
	}
	var files []figureFile
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("read figure dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := figureFilePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		page, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		files = append(files, figureFile{
			path: filepath.Join(outDir, entry.Name()),
			page: page,
		})
	}
	if len(files) == 0 {
		return nil, nil
	}

	// Stable figure numbering: page order, then resource name
	sort.Slice(files, func(i, j int) bool {
		if files[i].page != files[j].page {
			return files[i].page < files[j].page
		}
		return files[i].path < files[j].path
	})

	label := DefaultFigureLabel
	if c.engine.figureLabel != "" {
		label = c.engine.figureLabel
	}

	captions := make([]string, len(files))
	var mu sync.Mutex
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxCaptionWorkers)

	for idx, ff := range files {
		eg.Go(func() error {
			imgData, err := os.ReadFile(ff.path)
			if err != nil {
				return fmt.Errorf("figure %d: %w", idx+1, err)
			}
			desc, err := c.engine.describer.DescribeImage(gctx, imgData, mimeFromExtension(strings.ToLower(filepath.Ext(ff.path))))
			if err != nil {
				return fmt.Errorf("figure %d: %w", idx+1, err)
			}
			mu.Lock()
			captions[idx] = fmt.Sprintf("%s %d: %s", label, idx+1, strings.TrimSpace(desc))
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	byPage := make(map[int][]string)
	for i, ff := range files {
		byPage[ff.page] = append(byPage[ff.page], captions[i])
	}
	return byPage, nil
}

// pdfTextElement represents a positioned text element on a PDF page.
type pdfTextElement struct {
	x    float64
	y    float64
	text string
	size float64
}

// pdfLine represents a line of text on a PDF page.
type pdfLine struct {
	y        float64
	elements []pdfTextElement
}

// extractPageText extracts text from a single PDF page using GetTextByRow,
// falling back to position-based extraction from Content().Text.
func (c *PDFConverter) extractPageText(page pdf.Page) string {
	// GetTextByRow gives word boundary detection for free
	rows, err := page.GetTextByRow()
	if err == nil && len(rows) > 0 {
		var result strings.Builder
		for _, row := range rows {
			var lineText strings.Builder
			prevWasEmpty := false
			for _, word := range row.Content {
				s := word.S
				if s == "" {
					prevWasEmpty = true
					continue
				}
				if lineText.Len() > 0 && prevWasEmpty {
					// Empty string between non-empty strings = word boundary
					last := lineText.String()
					if len(last) > 0 && last[len(last)-1] != ' ' {
						lineText.WriteString(" ")
					}
				}
				lineText.WriteString(s)
				prevWasEmpty = false
			}
			text := strings.TrimSpace(lineText.String())
			if text != "" {
				result.WriteString(text)
				result.WriteString("\n")
			}
		}
		text := result.String()
		if strings.TrimSpace(text) != "" {
			return text
		}
	}

	// Fallback: character-level extraction with position data
	content := page.Content()
	if len(content.Text) == 0 {
		return ""
	}

	var elements []pdfTextElement
	for _, t := range content.Text {
		if strings.TrimSpace(t.S) == "" {
			continue
		}
		elements = append(elements, pdfTextElement{
			x:    t.X,
			y:    t.Y,
			text: t.S,
			size: t.FontSize,
		})
	}

	if len(elements) == 0 {
		return ""
	}

	// Group into lines based on Y proximity
	yTolerance := 3.0
	if elements[0].size > 0 {
		yTolerance = elements[0].size * 0.3
	}

	var lines []pdfLine
	for _, elem := range elements {
		found := false
		for i := range lines {
			if pdfAbs(lines[i].y-elem.y) < yTolerance {
				lines[i].elements = append(lines[i].elements, elem)
				found = true
				break
			}
		}
		if !found {
			lines = append(lines, pdfLine{y: elem.y, elements: []pdfTextElement{elem}})
		}
	}

	// Sort lines by Y descending (top to bottom in PDF coordinates)
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].y > lines[j].y
	})

	var result strings.Builder
	for _, ln := range lines {
		sort.Slice(ln.elements, func(i, j int) bool {
			return ln.elements[i].x < ln.elements[j].x
		})

		var lineText strings.Builder
		var lastX float64
		var lastWidth float64
		first := true

		for _, elem := range ln.elements {
			if !first {
				gap := elem.x - (lastX + lastWidth)
				// Font-size-relative threshold for word spacing
				threshold := elem.size * 0.2
				if threshold < 1.0 {
					threshold = 1.0
				}
				if gap > threshold {
					lineText.WriteString(" ")
				}
			}
			lineText.WriteString(elem.text)
			lastX = elem.x
			lastWidth = float64(len([]rune(elem.text))) * elem.size * 0.55
			first = false
		}

		text := lineText.String()
		if strings.TrimSpace(text) != "" {
			result.WriteString(text)
			result.WriteString("\n")
		}
	}

	return result.String()
}

func pdfAbs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
