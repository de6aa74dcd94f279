package doclens

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// AudioConverter handles audio files. Without a Transcriber it emits file
// metadata only; with one it appends the speech transcript.
type AudioConverter struct {
	engine *Engine
}

// NewAudioConverter creates a new AudioConverter.
func NewAudioConverter(e *Engine) *AudioConverter {
	return &AudioConverter{engine: e}
}

func (c *AudioConverter) Accepts(info SourceInfo) bool {
	switch info.Extension {
	case ".mp3", ".wav", ".m4a", ".flac":
		return true
	}
	mime := strings.ToLower(info.MIMEType)
	return strings.HasPrefix(mime, "audio/")
}

func (c *AudioConverter) Convert(ctx context.Context, reader io.ReadSeeker, info SourceInfo) (*Result, error) {
	var md strings.Builder

	if info.Filename != "" {
		fmt.Fprintf(&md, "FileName: %s\n\n", info.Filename)
	}

	if c.engine != nil && c.engine.transcriber != nil {
		// Transcription backends want a file path; spill the stream when
		// the source is not already on disk.
		path := info.LocalPath
		if path == "" {
			ext := info.Extension
			if ext == "" {
				ext = ".audio"
			}
			tmpFile, err := os.CreateTemp("", "doclens-*"+ext)
			if err != nil {
				return nil, fmt.Errorf("create temp audio file: %w", err)
			}
			path = tmpFile.Name()
			defer os.Remove(path)

			if _, err := io.Copy(tmpFile, reader); err != nil {
				tmpFile.Close()
				return nil, fmt.Errorf("write temp audio file: %w", err)
			}
			tmpFile.Close()
		}

		transcript, err := c.engine.transcriber.TranscribeFile(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("transcribe audio: %w", err)
		}
		if strings.TrimSpace(transcript) != "" {
			md.WriteString("### Audio Transcript:\n")
			md.WriteString(strings.TrimSpace(transcript))
			md.WriteString("\n")
		}
	}

	if md.Len() == 0 {
		md.WriteString("[Audio file]\n")
	}

	return &Result{
		Markdown: md.String(),
	}, nil
}
