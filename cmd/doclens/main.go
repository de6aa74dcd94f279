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

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	doclens "github.com/nicholasgasior/doclens"
	"github.com/nicholasgasior/doclens/internal/llm"
)

var version = "dev"

func main() {
	var (
		output       string
		extension    string
		mimeType     string
		charset      string
		showVersion  bool
		keepDataURIs bool
		enrich       bool
		apiKey       string
		baseURL      string
		visionModel  string
		docLang      string
	)

	flag.StringVar(&output, "o", "", "Output file (default: stdout)")
	flag.StringVar(&output, "output", "", "Output file (default: stdout)")
	flag.StringVar(&extension, "x", "", "File extension hint (for stdin input)")
	flag.StringVar(&extension, "extension", "", "File extension hint (for stdin input)")
	flag.StringVar(&mimeType, "m", "", "MIME type hint")
	flag.StringVar(&mimeType, "mime-type", "", "MIME type hint")
	flag.StringVar(&charset, "c", "", "Charset hint")
	flag.StringVar(&charset, "charset", "", "Charset hint")
	flag.BoolVar(&showVersion, "v", false, "Show version")
	flag.BoolVar(&showVersion, "version", false, "Show version")
	flag.BoolVar(&keepDataURIs, "keep-data-uris", false, "Keep full base64-encoded data URIs")
	flag.BoolVar(&enrich, "llm", false, "Describe images and transcribe audio via a model API")
	flag.StringVar(&apiKey, "api-key", "", "API key for enrichment (default: $OPENAI_API_KEY)")
	flag.StringVar(&baseURL, "base-url", "", "Base URL of an OpenAI-compatible API")
	flag.StringVar(&visionModel, "model", "", "Vision model for image descriptions")
	flag.StringVar(&docLang, "doc-lang", "", "Primary language of the document")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: doclens [flags] [source]\n\n")
		fmt.Fprintf(os.Stderr, "Extract documents to Markdown.\n\n")
		fmt.Fprintf(os.Stderr, "Arguments:\n")
		fmt.Fprintf(os.Stderr, "  source    File path or URL to extract (reads stdin if omitted)\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("doclens %s\n", version)
		os.Exit(0)
	}

	if extension != "" {
		extension = strings.ToLower(extension)
		if !strings.HasPrefix(extension, ".") {
			extension = "." + extension
		}
	}

	var opts []doclens.Option
	if keepDataURIs {
		opts = append(opts, doclens.WithKeepDataURIs(true))
	}
	if enrich {
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" && baseURL == "" {
			fmt.Fprintf(os.Stderr, "Error: -llm requires an API key (flag -api-key or $OPENAI_API_KEY) or -base-url\n")
			os.Exit(1)
		}
		client := llm.NewClient(llm.Config{
			APIKey:      apiKey,
			BaseURL:     baseURL,
			VisionModel: visionModel,
			Language:    docLang,
		})
		opts = append(opts, doclens.WithDescriber(client), doclens.WithTranscriber(client))
	}

	engine := doclens.New(opts...)
	ctx := context.Background()

	var result *doclens.Result
	var err error

	args := flag.Args()

	if len(args) == 0 {
		data, readErr := io.ReadAll(os.Stdin)
		if readErr != nil {
			fmt.Fprintf(os.Stderr, "Error reading stdin: %v\n", readErr)
			os.Exit(1)
		}

		info := doclens.SourceInfo{
			Extension: extension,
			MIMEType:  mimeType,
			Charset:   charset,
		}

		reader := strings.NewReader(string(data))
		if info.MIMEType == "" && info.Extension != "" {
			info.MIMEType = mimeFromExt(info.Extension)
		}
		result, err = engine.ConvertReader(ctx, reader, info)
	} else {
		result, err = engine.Convert(ctx, args[0])
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if output != "" {
		dir := filepath.Dir(output)
		if dir != "." {
			os.MkdirAll(dir, 0o755)
		}
		if writeErr := os.WriteFile(output, []byte(result.Markdown+"\n"), 0o644); writeErr != nil {
			fmt.Fprintf(os.Stderr, "Error writing output: %v\n", writeErr)
			os.Exit(1)
		}
	} else {
		fmt.Print(result.Markdown)
		fmt.Println()
	}
}

// mimeFromExt returns a MIME type for common extensions (CLI use only).
func mimeFromExt(ext string) string {
	m := map[string]string{
		".pdf":  "application/pdf",
		".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
		".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		".xls":  "application/vnd.ms-excel",
		".html": "text/html",
		".htm":  "text/html",
		".csv":  "text/csv",
		".txt":  "text/plain",
		".json": "application/json",
		".xml":  "text/xml",
		".rss":  "application/rss+xml",
		".epub": "application/epub+zip",
		".zip":  "application/zip",
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".png":  "image/png",
		".mp3":  "audio/mpeg",
		".wav":  "audio/wav",
	}
	if v, ok := m[ext]; ok {
		return v
	}
	return ""
}
