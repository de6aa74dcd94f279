package doclens

import "context"

// Describer produces a natural-language description for an image. It is
// backed by a hosted multimodal model; the engine treats it as optional
// and never requires one for base extraction.
type Describer interface {
	DescribeImage(ctx context.Context, data []byte, mimeType string) (string, error)
}

// Transcriber produces a transcript for an audio file on disk. Like
// Describer it is optional; without one, audio inputs yield metadata only.
type Transcriber interface {
	TranscribeFile(ctx context.Context, path string) (string, error)
}
