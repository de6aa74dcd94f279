package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDescribeImageOversizedPayload(t *testing.T) {
	c := NewClient(Config{APIKey: "test"})

	// Base64 expansion pushes this past the payload cap; no request
	// should be made.
	data := make([]byte, 3*1024*1024)
	desc, err := c.DescribeImage(context.Background(), data, "image/png")
	if err != nil {
		t.Fatalf("DescribeImage error: %v", err)
	}
	if desc != "[Image too large to process]" {
		t.Errorf("desc = %q, want placeholder", desc)
	}
}

func TestDescribeImageViaCompatibleServer(t *testing.T) {
	var gotPrompt string
	var gotImageURL string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Messages []struct {
				Content []struct {
					Type     string `json:"type"`
					Text     string `json:"text"`
					ImageURL struct {
						URL string `json:"url"`
					} `json:"image_url"`
				} `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, part := range req.Messages[0].Content {
			switch part.Type {
			case "text":
				gotPrompt = part.Text
			case "image_url":
				gotImageURL = part.ImageURL.URL
			}
		}
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"A small test image."}}]}`)
	}))
	defer srv.Close()

	c := NewClient(Config{
		APIKey:   "test",
		BaseURL:  srv.URL + "/v1",
		Language: "German",
	})

	desc, err := c.DescribeImage(context.Background(), []byte{0x89, 0x50, 0x4e, 0x47}, "image/png")
	if err != nil {
		t.Fatalf("DescribeImage error: %v", err)
	}
	if desc != "A small test image." {
		t.Errorf("desc = %q", desc)
	}
	if !strings.HasPrefix(gotPrompt, "Describe this image in detail:") {
		t.Errorf("prompt = %q, missing describe instruction", gotPrompt)
	}
	if !strings.Contains(gotPrompt, "primarily in German") {
		t.Errorf("prompt = %q, missing language hint", gotPrompt)
	}
	if !strings.HasPrefix(gotImageURL, "data:image/png;base64,") {
		t.Errorf("image URL = %q, want data URI", gotImageURL)
	}
}

func TestDescribeImageBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "bad", BaseURL: srv.URL + "/v1"})

	_, err := c.DescribeImage(context.Background(), []byte{1, 2, 3}, "image/png")
	if err == nil {
		t.Fatal("expected error from backend")
	}
	var llmErr *Error
	if !errors.As(err, &llmErr) {
		t.Errorf("error %T is not *Error", err)
	}
}
