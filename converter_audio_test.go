package doclens

import (
	"context"
	"os"
	"strings"
	"testing"
)

type fakeTranscriber struct {
	transcript string
	calls      int
	lastPath   string
}

func (f *fakeTranscriber) TranscribeFile(ctx context.Context, path string) (string, error) {
	f.calls++
	f.lastPath = path
	return f.transcript, nil
}

func TestAudioConverterWithTranscriber(t *testing.T) {
	fake := &fakeTranscriber{transcript: "hello from the recording"}
	e := New(WithTranscriber(fake))

	result, err := e.ConvertReader(context.Background(), strings.NewReader("not real audio"), SourceInfo{
		Extension: ".mp3",
		MIMEType:  "audio/mpeg",
		Filename:  "memo.mp3",
	})
	if err != nil {
		t.Fatalf("ConvertReader error: %v", err)
	}

	for _, expected := range []string{
		"FileName: memo.mp3",
		"### Audio Transcript:",
		"hello from the recording",
	} {
		if !strings.Contains(result.Markdown, expected) {
			t.Errorf("expected output to contain %q, got:\n%s", expected, result.Markdown)
		}
	}
	if fake.calls != 1 {
		t.Errorf("transcriber called %d times, want 1", fake.calls)
	}
	// The stream had no path, so a spill file must have been used and
	// cleaned up afterwards.
	if fake.lastPath == "" {
		t.Fatal("transcriber got empty path")
	}
	if _, err := os.Stat(fake.lastPath); !os.IsNotExist(err) {
		t.Errorf("spill file %s still exists after conversion", fake.lastPath)
	}
}

func TestAudioConverterWithoutTranscriber(t *testing.T) {
	e := New()

	result, err := e.ConvertReader(context.Background(), strings.NewReader("not real audio"), SourceInfo{
		Extension: ".wav",
		MIMEType:  "audio/wav",
		Filename:  "memo.wav",
	})
	if err != nil {
		t.Fatalf("ConvertReader without transcriber should not fail, got: %v", err)
	}
	if !strings.Contains(result.Markdown, "FileName: memo.wav") {
		t.Errorf("expected metadata in output, got:\n%s", result.Markdown)
	}
	if strings.Contains(result.Markdown, "Audio Transcript") {
		t.Errorf("unexpected transcript section without a transcriber:\n%s", result.Markdown)
	}
}

func TestAudioConverterUsesLocalPath(t *testing.T) {
	fake := &fakeTranscriber{transcript: "local path transcript"}
	e := New(WithTranscriber(fake))

	tmp, err := os.CreateTemp(t.TempDir(), "clip-*.wav")
	if err != nil {
		t.Fatal(err)
	}
	tmp.WriteString("not real audio")
	tmp.Close()

	f, err := os.Open(tmp.Name())
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	_, err = e.ConvertReader(context.Background(), f, SourceInfo{
		Extension: ".wav",
		MIMEType:  "audio/wav",
		LocalPath: tmp.Name(),
	})
	if err != nil {
		t.Fatalf("ConvertReader error: %v", err)
	}
	if fake.lastPath != tmp.Name() {
		t.Errorf("transcriber got path %q, want %q", fake.lastPath, tmp.Name())
	}
}
