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
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ZipConverter handles ZIP archives by recursively converting each entry.
type ZipConverter struct {
	engine *Engine
}

// NewZipConverter creates a new ZipConverter.
func NewZipConverter(e *Engine) *ZipConverter {
	return &ZipConverter{engine: e}
}

func (c *ZipConverter) Accepts(info SourceInfo) bool {
	if info.Extension == ".zip" {
		return true
	}
	mime := strings.ToLower(info.MIMEType)
	return strings.HasPrefix(mime, "application/zip")
}

func (c *ZipConverter) Convert(ctx context.Context, reader io.ReadSeeker, info SourceInfo) (*Result, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read ZIP: %w", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open ZIP: %w", err)
	}

	var md strings.Builder
	filename := info.Filename
	if filename == "" {
		filename = "archive"
	}
	md.WriteString(fmt.Sprintf("Content from the zip file `%s`:\n\n", filename))

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			continue
		}

		fileData, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}

		ext := strings.ToLower(filepath.Ext(f.Name))
		fileInfo := SourceInfo{
			Extension: ext,
			Filename:  filepath.Base(f.Name),
		}

		fileReader := bytes.NewReader(fileData)
		fileInfo.MIMEType = sniffMIMEType(fileReader, ext)
		fileReader.Seek(0, io.SeekStart)

		result, err := c.engine.ConvertReader(ctx, fileReader, fileInfo)
		if err != nil {
			// Unconvertible entries are skipped, not fatal
			continue
		}

		if strings.TrimSpace(result.Markdown) != "" {
			md.WriteString(fmt.Sprintf("## File: %s\n", f.Name))
			md.WriteString(result.Markdown)
			md.WriteString("\n\n")
		}
	}

	return &Result{
		Markdown: md.String(),
	}, nil
}
