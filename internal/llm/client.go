// Package llm provides image captioning and audio transcription through an
// OpenAI-compatible API, including locally hosted servers that speak the same
// protocol.
package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Default models for captioning and transcription.
const (
	DefaultVisionModel  = "gpt-4o"
	DefaultWhisperModel = "whisper-1"
)

// maxImagePayload caps the base64 payload sent for captioning. Larger images
// get a placeholder description instead of a request that the API would
// reject anyway.
const maxImagePayload = 3 * 1024 * 1024

const describePrompt = "Describe this image in detail:"

// Error wraps a failed call to the enrichment backend so callers can tell
// upstream API failures apart from document parse failures.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Config holds the connection settings for the enrichment backend.
type Config struct {
	APIKey       string
	BaseURL      string // empty means the public OpenAI endpoint
	VisionModel  string
	WhisperModel string
	// Language is the primary document language, hinted to the vision
	// model so descriptions come back in it.
	Language string
}

// Client captions images and transcribes audio. It satisfies both enrichment
// interfaces of the conversion engine.
type Client struct {
	api          *openai.Client
	visionModel  string
	whisperModel string
	language     string
}

// NewClient creates a Client from cfg, applying model defaults.
func NewClient(cfg Config) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}

	visionModel := cfg.VisionModel
	if visionModel == "" {
		visionModel = DefaultVisionModel
	}
	whisperModel := cfg.WhisperModel
	if whisperModel == "" {
		whisperModel = DefaultWhisperModel
	}

	return &Client{
		api:          openai.NewClientWithConfig(apiCfg),
		visionModel:  visionModel,
		whisperModel: whisperModel,
		language:     cfg.Language,
	}
}

// DescribeImage sends the image to the vision model and returns its
// description. Oversized images yield a placeholder rather than an error.
func (c *Client) DescribeImage(ctx context.Context, data []byte, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = "image/png"
	}

	b64 := base64.StdEncoding.EncodeToString(data)
	if len(b64) > maxImagePayload {
		return "[Image too large to process]", nil
	}

	prompt := describePrompt
	if c.language != "" {
		prompt += fmt.Sprintf(" This document is primarily in %s, but may contain content in other languages as well.", c.language)
	}

	req := openai.ChatCompletionRequest{
		Model: c.visionModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: prompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: fmt.Sprintf("data:%s;base64,%s", mimeType, b64),
						},
					},
				},
			},
		},
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", &Error{Op: "vision completion", Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Op: "vision completion", Err: fmt.Errorf("empty response")}
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// TranscribeFile sends the audio file at path to the transcription model and
// returns the transcript text.
func (c *Client) TranscribeFile(ctx context.Context, path string) (string, error) {
	req := openai.AudioRequest{
		Model:    c.whisperModel,
		FilePath: path,
	}

	resp, err := c.api.CreateTranscription(ctx, req)
	if err != nil {
		return "", &Error{Op: "transcription", Err: err}
	}

	return strings.TrimSpace(resp.Text), nil
}
