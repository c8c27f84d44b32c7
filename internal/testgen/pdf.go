package testgen

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// GeneratePDF writes a minimal PDF 1.4 file with an info dictionary and one
// Helvetica text page per entry in opts.Pages. Object offsets in the xref
// table are computed so strict readers accept the file.
func GeneratePDF(t *testing.T, dir, filename string, opts PDFOptions) string {
	t.Helper()

	pages := opts.Pages
	if len(pages) == 0 {
		pages = []string{""}
	}

	// Object layout: 1 catalog, 2 pages, 3 font, 4 info, then a page and a
	// content stream per page.
	var objects []string
	objects = append(objects, "<< /Type /Catalog /Pages 2 0 R >>")

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 5+i*2)
	}
	objects = append(objects, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	objects = append(objects, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")
	objects = append(objects, infoDict(opts))

	for i, text := range pages {
		contentID := 6 + i*2
		objects = append(objects, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			contentID,
		))
		stream := pageStream(text)
		objects = append(objects, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R /Info 4 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xrefOffset)

	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		t.Fatalf("failed to write PDF file: %v", err)
	}
	return path
}

func infoDict(opts PDFOptions) string {
	var b strings.Builder
	b.WriteString("<< /Producer (testgen)")
	fields := []struct{ key, value string }{
		{"Title", opts.Title},
		{"Author", opts.Author},
		{"Subject", opts.Subject},
		{"Keywords", opts.Keywords},
		{"CreationDate", opts.CreationDate},
	}
	for _, f := range fields {
		if f.value != "" {
			fmt.Fprintf(&b, " /%s (%s)", f.key, escapePDFString(f.value))
		}
	}
	b.WriteString(" >>")
	return b.String()
}

func pageStream(text string) string {
	var b strings.Builder
	b.WriteString("BT\n/F1 12 Tf\n72 720 Td\n")
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			b.WriteString("0 -14 Td\n")
		}
		fmt.Fprintf(&b, "(%s) Tj\n", escapePDFString(line))
	}
	b.WriteString("ET")
	return b.String()
}

func escapePDFString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
