package doclens

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
)

type fakeDescriber struct {
	description string
	err         error
	calls       int
	lastMIME    string
}

func (f *fakeDescriber) DescribeImage(ctx context.Context, data []byte, mimeType string) (string, error) {
	f.calls++
	f.lastMIME = mimeType
	if f.err != nil {
		return "", f.err
	}
	return f.description, nil
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	for x := 0; x < 8; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestImageConverterWithDescriber(t *testing.T) {
	fake := &fakeDescriber{description: "A red rectangle on a white field."}
	e := New(WithDescriber(fake))

	result, err := e.ConvertReader(context.Background(), bytes.NewReader(testPNG(t)), SourceInfo{
		Extension: ".png",
		MIMEType:  "image/png",
		Filename:  "shape.png",
	})
	if err != nil {
		t.Fatalf("ConvertReader error: %v", err)
	}

	for _, expected := range []string{
		"FileName: shape.png",
		"ImageSize: 8x4",
		"ImageType: png",
		"# Description:",
		"A red rectangle on a white field.",
	} {
		if !strings.Contains(result.Markdown, expected) {
			t.Errorf("expected output to contain %q, got:\n%s", expected, result.Markdown)
		}
	}
	if fake.calls != 1 {
		t.Errorf("describer called %d times, want 1", fake.calls)
	}
	if fake.lastMIME != "image/png" {
		t.Errorf("describer got mime %q, want image/png", fake.lastMIME)
	}
}

func TestImageConverterWithoutDescriber(t *testing.T) {
	e := New()

	result, err := e.ConvertReader(context.Background(), bytes.NewReader(testPNG(t)), SourceInfo{
		Extension: ".png",
		MIMEType:  "image/png",
		Filename:  "shape.png",
	})
	if err != nil {
		t.Fatalf("ConvertReader without describer should not fail, got: %v", err)
	}

	if !strings.Contains(result.Markdown, "ImageSize: 8x4") {
		t.Errorf("expected metadata in output, got:\n%s", result.Markdown)
	}
	if strings.Contains(result.Markdown, "# Description:") {
		t.Errorf("unexpected description section without a describer:\n%s", result.Markdown)
	}
}

func TestImageConverterUndecodableNoMetadata(t *testing.T) {
	e := New()

	// No filename, no decodable header, no describer: the output must
	// still be non-empty.
	result, err := e.ConvertReader(context.Background(), bytes.NewReader([]byte{0x00, 0x01}), SourceInfo{
		Extension: ".png",
		MIMEType:  "image/png",
	})
	if err != nil {
		t.Fatalf("ConvertReader error: %v", err)
	}
	if strings.TrimSpace(result.Markdown) == "" {
		t.Fatal("expected non-empty markdown for image with no extractable metadata")
	}
	if !strings.Contains(result.Markdown, "[Image file]") {
		t.Errorf("expected placeholder in output, got:\n%s", result.Markdown)
	}
}

func TestImageConverterDescriberFailure(t *testing.T) {
	fake := &fakeDescriber{err: errors.New("backend down")}
	e := New(WithDescriber(fake))

	_, err := e.ConvertReader(context.Background(), bytes.NewReader(testPNG(t)), SourceInfo{
		Extension: ".png",
		MIMEType:  "image/png",
	})
	if err == nil {
		t.Fatal("expected error when describer fails")
	}
	if !strings.Contains(err.Error(), "backend down") {
		t.Errorf("error should carry describer failure, got: %v", err)
	}
}
