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
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"testing"
)

func testJPEG(t *testing.T, shade uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: shade, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// buildPDFWithImages assembles a one-page PDF with a line of text and
// imageCount embedded JPEG XObjects. Object offsets are computed while
// writing, so the cross-reference table is exact.
func buildPDFWithImages(t *testing.T, imageCount int) []byte {
	t.Helper()
	// Each image gets distinct bytes: pdfcpu deduplicates identical
	// image streams on extraction, which would collapse the figures.
	jpegs := make([][]byte, imageCount)
	for i := range jpegs {
		jpegs[i] = testJPEG(t, uint8(i*40))
	}
	fontObj := 5 + imageCount

	var content strings.Builder
	content.WriteString("BT /F1 12 Tf 72 720 Td (Quarterly report) Tj ET\n")
	var xobjects strings.Builder
	for i := 0; i < imageCount; i++ {
		fmt.Fprintf(&xobjects, "/Im%d %d 0 R ", i, 5+i)
		fmt.Fprintf(&content, "q 80 0 0 80 %d 100 cm /Im%d Do Q\n", 100+i*120, i)
	}

	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> /XObject << %s>> >> /Contents 4 0 R >>",
			fontObj, xobjects.String()),
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", content.Len(), content.String()),
	}
	for i := 0; i < imageCount; i++ {
		objs = append(objs, fmt.Sprintf("<< /Type /XObject /Subtype /Image /Width 4 /Height 4 /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /DCTDecode /Length %d >>\nstream\n%s\nendstream",
			len(jpegs[i]), jpegs[i]))
	}
	objs = append(objs, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs)+1)
	for i, obj := range objs {
		offsets[i+1] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xrefOff := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(objs); i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xrefOff)
	return buf.Bytes()
}

func TestFigureFilePattern(t *testing.T) {
	tests := []struct {
		name string
		page string
	}{
		{"report_1_Im0.png", "1"},
		{"report_12_Im0.jpg", "12"},
		{"report_3_Im_0.png", "3"}, // resource id with underscore
		{"scan.png", ""},
	}
	for _, tt := range tests {
		m := figureFilePattern.FindStringSubmatch(tt.name)
		got := ""
		if m != nil {
			got = m[1]
		}
		if got != tt.page {
			t.Errorf("page for %q = %q, want %q", tt.name, got, tt.page)
		}
	}
}

func TestPDFFigureCaptions(t *testing.T) {
	fake := &fakeDescriber{description: "A bar chart."}
	e := New(WithDescriber(fake), WithFigureLabel("Abbildung"))

	result, err := e.ConvertReader(context.Background(), bytes.NewReader(buildPDFWithImages(t, 2)), SourceInfo{
		Extension: ".pdf",
		MIMEType:  "application/pdf",
	})
	if err != nil {
		t.Fatalf("ConvertReader error: %v", err)
	}

	if fake.calls != 2 {
		t.Errorf("describer called %d times, want 2", fake.calls)
	}
	first := strings.Index(result.Markdown, "Abbildung 1: A bar chart.")
	second := strings.Index(result.Markdown, "Abbildung 2: A bar chart.")
	if first < 0 || second < 0 {
		t.Fatalf("expected two labeled captions, got:\n%s", result.Markdown)
	}
	if first > second {
		t.Errorf("captions out of order:\n%s", result.Markdown)
	}
}

func TestPDFFigureDefaultLabel(t *testing.T) {
	fake := &fakeDescriber{description: "A blue square."}
	e := New(WithDescriber(fake))

	result, err := e.ConvertReader(context.Background(), bytes.NewReader(buildPDFWithImages(t, 1)), SourceInfo{
		Extension: ".pdf",
		MIMEType:  "application/pdf",
	})
	if err != nil {
		t.Fatalf("ConvertReader error: %v", err)
	}
	if !strings.Contains(result.Markdown, "Figure 1: A blue square.") {
		t.Errorf("expected default-labeled caption, got:\n%s", result.Markdown)
	}
}

func TestPDFWithoutDescriber(t *testing.T) {
	e := New()

	result, err := e.ConvertReader(context.Background(), bytes.NewReader(buildPDFWithImages(t, 1)), SourceInfo{
		Extension: ".pdf",
		MIMEType:  "application/pdf",
	})
	if err != nil {
		t.Fatalf("ConvertReader without describer should not fail, got: %v", err)
	}
	if strings.Contains(result.Markdown, "Figure 1:") {
		t.Errorf("unexpected caption without a describer:\n%s", result.Markdown)
	}
}

func TestPDFDescriberFailure(t *testing.T) {
	fake := &fakeDescriber{err: errors.New("backend down")}
	e := New(WithDescriber(fake))

	_, err := e.ConvertReader(context.Background(), bytes.NewReader(buildPDFWithImages(t, 1)), SourceInfo{
		Extension: ".pdf",
		MIMEType:  "application/pdf",
	})
	if err == nil {
		t.Fatal("expected error when captioning fails")
	}
	if !strings.Contains(err.Error(), "backend down") {
		t.Errorf("error should carry describer failure, got: %v", err)
	}
}
