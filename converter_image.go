package doclens

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// ImageConverter handles standalone image files. Basic metadata is always
// emitted; when the engine carries a Describer the image is also captioned
// and the description appended.
type ImageConverter struct {
	engine *Engine
}

// NewImageConverter creates a new ImageConverter.
func NewImageConverter(e *Engine) *ImageConverter {
	return &ImageConverter{engine: e}
}

func (c *ImageConverter) Accepts(info SourceInfo) bool {
	switch info.Extension {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return true
	}
	mime := strings.ToLower(info.MIMEType)
	return strings.HasPrefix(mime, "image/")
}

func (c *ImageConverter) Convert(ctx context.Context, reader io.ReadSeeker, info SourceInfo) (*Result, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	var md strings.Builder

	if info.Filename != "" {
		fmt.Fprintf(&md, "FileName: %s\n\n", info.Filename)
	}

	// Dimensions come from the header only; undecodable formats still
	// produce a result.
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err == nil {
		fmt.Fprintf(&md, "ImageSize: %dx%d\n\n", cfg.Width, cfg.Height)
		fmt.Fprintf(&md, "ImageType: %s\n\n", format)
	}

	if c.engine != nil && c.engine.describer != nil {
		mime := info.MIMEType
		if mime == "" {
			mime = mimeFromExtension(info.Extension)
		}
		desc, err := c.engine.describer.DescribeImage(ctx, data, mime)
		if err != nil {
			return nil, fmt.Errorf("describe image: %w", err)
		}
		if strings.TrimSpace(desc) != "" {
			md.WriteString("# Description:\n")
			md.WriteString(strings.TrimSpace(desc))
			md.WriteString("\n")
		}
	}

	if md.Len() == 0 {
		md.WriteString("[Image file]\n")
	}

	return &Result{
		Markdown: md.String(),
	}, nil
}
