package doclens

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mmcdole/gofeed"
)

// FeedConverter handles RSS and Atom feed files.
type FeedConverter struct{}

// NewFeedConverter creates a new FeedConverter.
func NewFeedConverter() *FeedConverter {
	return &FeedConverter{}
}

func (c *FeedConverter) Accepts(info SourceInfo) bool {
	switch info.Extension {
	case ".rss", ".atom":
		return true
	}
	mime := strings.ToLower(info.MIMEType)
	switch {
	case strings.HasPrefix(mime, "application/rss"),
		strings.HasPrefix(mime, "application/atom"):
		return true
	}
	// Generic XML may or may not be a feed; parsing decides.
	if info.Extension == ".xml" ||
		strings.HasPrefix(mime, "text/xml") ||
		strings.HasPrefix(mime, "application/xml") {
		return true
	}
	return false
}

func (c *FeedConverter) Convert(ctx context.Context, reader io.ReadSeeker, info SourceInfo) (*Result, error) {
	fp := gofeed.NewParser()
	feed, err := fp.Parse(reader)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	var b strings.Builder
	title := feed.Title

	if feed.Title != "" {
		fmt.Fprintf(&b, "# %s\n", feed.Title)
	}
	if feed.Description != "" {
		fmt.Fprintf(&b, "%s\n", feed.Description)
	}
	b.WriteString("\n")

	for _, item := range feed.Items {
		if item.Title != "" {
			fmt.Fprintf(&b, "## %s\n", item.Title)
		}

		if item.Published != "" {
			fmt.Fprintf(&b, "Published: %s\n\n", item.Published)
		} else if item.Updated != "" {
			fmt.Fprintf(&b, "Updated: %s\n\n", item.Updated)
		}

		content := item.Content
		if content == "" {
			content = item.Description
		}
		if content != "" {
			// Item bodies are frequently HTML
			if strings.Contains(content, "<") && strings.Contains(content, ">") {
				md, err := convertHTMLToMarkdown(content)
				if err == nil {
					content = md
				}
			}
			b.WriteString(content)
			b.WriteString("\n")
		}

		b.WriteString("\n")
	}

	return &Result{
		Markdown: b.String(),
		Title:    title,
	}, nil
}
