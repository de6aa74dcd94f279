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
	"context"
	"io"
)

// SourceInfo holds metadata about the input being extracted.
type SourceInfo struct {
	MIMEType  string
	Extension string
	Charset   string
	Filename  string
	LocalPath string
	URL       string
}

// Result holds the output of an extraction.
type Result struct {
	Markdown string
	Title    string
}

// Converter is the interface all format converters implement.
type Converter interface {
	// Accepts returns true if this converter can handle the given input.
	// It MUST NOT change the read position of the reader.
	Accepts(info SourceInfo) bool

	// Convert performs the actual document-to-markdown extraction. The
	// context bounds any network calls the converter makes (captioning,
	// transcription); purely local converters may ignore it.
	Convert(ctx context.Context, reader io.ReadSeeker, info SourceInfo) (*Result, error)
}
