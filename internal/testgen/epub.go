package testgen

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"text/template"
)

const (
	epubMimetype     = "application/epub+zip"
	defaultOPFPath   = "OEBPS/content.opf"
	defaultChapter   = "This is a test chapter."
	opfPackageMedia  = "application/oebps-package+xml"
	epub3PackageVers = "3.0"
	// Readers ignore uuid identifiers, so every fixture can share one.
	bookUUID = "urn:uuid:9b1c6a52-4f0e-4d7a-9a55-2f3f0c1d7e80"
)

var containerTmpl = template.Must(template.New("container").Funcs(xmlFuncs).Parse(`<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="{{ xml .OPFPath }}" media-type="` + opfPackageMedia + `"/>
  </rootfiles>
</container>
`))

// opfTmpl renders both package versions. EPUB 2 keeps everything in opf:*
// attributes and named metas, EPUB 3 moves it into refines metas.
var opfTmpl = template.Must(template.New("opf").Funcs(xmlFuncs).Parse(`<?xml version="1.0" encoding="UTF-8"?>
<package version="{{ .Version }}" xmlns="http://www.idpf.org/2007/opf" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
{{- if .Title }}
    <dc:title id="title">{{ xml .Title }}</dc:title>
{{- if .EPUB3 }}
    <meta refines="#title" property="title-type">main</meta>
{{- end }}
{{- end }}
{{- if .Subtitle }}
    <dc:title id="subtitle">{{ xml .Subtitle }}</dc:title>
{{- if .EPUB3 }}
    <meta refines="#subtitle" property="title-type">subtitle</meta>
{{- end }}
{{- end }}
{{- range $i, $a := .Authors }}
{{- if $.EPUB3 }}
    <dc:creator id="creator{{ $i }}">{{ xml $a }}</dc:creator>
    <meta refines="#creator{{ $i }}" property="role" scheme="marc:relators">aut</meta>
{{- else }}
    <dc:creator opf:role="aut">{{ xml $a }}</dc:creator>
{{- end }}
{{- end }}
    <dc:identifier id="bookid">{{ xml .BookID }}</dc:identifier>
{{- range .Identifiers }}
{{- if .Scheme }}
    <dc:identifier opf:scheme="{{ xml .Scheme }}">{{ xml .Value }}</dc:identifier>
{{- else }}
    <dc:identifier>{{ xml .Value }}</dc:identifier>
{{- end }}
{{- end }}
    <dc:language>{{ xml .Language }}</dc:language>
{{- if .Publisher }}
    <dc:publisher>{{ xml .Publisher }}</dc:publisher>
{{- end }}
{{- if .Date }}
    <dc:date>{{ xml .Date }}</dc:date>
{{- end }}
{{- if .Description }}
    <dc:description>{{ xml .Description }}</dc:description>
{{- end }}
{{- range .Subjects }}
    <dc:subject>{{ xml . }}</dc:subject>
{{- end }}
{{- if .Series }}
{{- if .EPUB3 }}
    <meta id="series" property="belongs-to-collection">{{ xml .Series }}</meta>
    <meta refines="#series" property="collection-type">series</meta>
{{- if .SeriesIndex }}
    <meta refines="#series" property="group-position">{{ .SeriesIndex }}</meta>
{{- end }}
{{- else }}
    <meta name="calibre:series" content="{{ xml .Series }}"/>
{{- if .SeriesIndex }}
    <meta name="calibre:series_index" content="{{ .SeriesIndex }}"/>
{{- end }}
{{- end }}
{{- end }}
{{- if and .Cover (not .EPUB3) }}
    <meta name="cover" content="cover-image"/>
{{- end }}
  </metadata>
  <manifest>
    <item id="chapter1" href="chapter1.xhtml" media-type="application/xhtml+xml"/>
{{- with .Cover }}
    <item id="cover-image" href="{{ .Name }}" media-type="{{ .MimeType }}"{{ if $.EPUB3 }} properties="cover-image"{{ end }}/>
{{- end }}
  </manifest>
  <spine>
    <itemref idref="chapter1"/>
  </spine>
</package>
`))

var chapterTmpl = template.Must(template.New("chapter").Funcs(xmlFuncs).Parse(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>{{ xml .Heading }}</title></head>
<body>
  <h1>{{ xml .Heading }}</h1>
{{- range .Paragraphs }}
  <p>{{ xml . }}</p>
{{- end }}
</body>
</html>
`))

var xmlFuncs = template.FuncMap{"xml": escapeXML}

type epubCover struct {
	Name     string
	MimeType string
	Data     []byte
}

// opfData is what the package template sees once options are defaulted.
type opfData struct {
	EPUBOptions
	EPUB3       bool
	BookID      string
	SeriesIndex string
	Cover       *epubCover
}

// GenerateEPUB writes an EPUB built from opts to dir/filename and returns its
// path. The OPF sits under opts.OPFPath, the cover (if any) and a single
// chapter sit next to it.
func GenerateEPUB(t *testing.T, dir, filename string, opts EPUBOptions) string {
	t.Helper()

	data := newOPFData(t, opts)
	opfDir := path.Dir(data.OPFPath)

	w := newEPUBWriter(t, filepath.Join(dir, filename))
	defer w.close()

	w.render("META-INF/container.xml", containerTmpl, data)
	if data.Cover != nil {
		w.add(path.Join(opfDir, data.Cover.Name), data.Cover.Data)
	}
	w.render(data.OPFPath, opfTmpl, data)
	w.render(path.Join(opfDir, "chapter1.xhtml"), chapterTmpl, chapterData(opts))

	return w.path
}

func newOPFData(t *testing.T, opts EPUBOptions) *opfData {
	t.Helper()

	if opts.Version == "" {
		opts.Version = epub3PackageVers
	}
	if opts.OPFPath == "" {
		opts.OPFPath = defaultOPFPath
	}
	if opts.Language == "" {
		opts.Language = "en"
	}

	data := &opfData{
		EPUBOptions: opts,
		EPUB3:       strings.HasPrefix(opts.Version, "3"),
		BookID:      bookUUID,
	}
	if opts.SeriesNumber != nil {
		data.SeriesIndex = strconv.FormatFloat(*opts.SeriesNumber, 'f', -1, 64)
	}
	if opts.HasCover {
		data.Cover = newCover(t, opts.CoverMimeType)
	}
	return data
}

func newCover(t *testing.T, mimeType string) *epubCover {
	t.Helper()
	if mimeType == "" {
		mimeType = "image/png"
	}
	name := "cover.png"
	if mimeType == "image/jpeg" {
		name = "cover.jpg"
	}
	return &epubCover{Name: name, MimeType: mimeType, Data: generateImage(t, mimeType)}
}

func chapterData(opts EPUBOptions) any {
	text := opts.ChapterText
	if text == "" {
		text = defaultChapter
	}
	// Blank lines split paragraphs so tests can put an ISBN on its own line.
	var paragraphs []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return struct {
		Heading    string
		Paragraphs []string
	}{"Chapter 1", paragraphs}
}

// epubWriter fails the test on the first write error so callers can chain
// entries without checking each one.
type epubWriter struct {
	t    *testing.T
	path string
	f    *os.File
	zw   *zip.Writer
}

func newEPUBWriter(t *testing.T, p string) *epubWriter {
	t.Helper()

	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("failed to create EPUB file: %v", err)
	}
	w := &epubWriter{t: t, path: p, f: f, zw: zip.NewWriter(f)}

	// The mimetype entry has to come first and be stored uncompressed.
	mw, err := w.zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		t.Fatalf("failed to create mimetype entry: %v", err)
	}
	if _, err := mw.Write([]byte(epubMimetype)); err != nil {
		t.Fatalf("failed to write mimetype: %v", err)
	}
	return w
}

func (w *epubWriter) add(name string, data []byte) {
	w.t.Helper()
	fw, err := w.zw.Create(name)
	if err != nil {
		w.t.Fatalf("failed to create %s: %v", name, err)
	}
	if _, err := fw.Write(data); err != nil {
		w.t.Fatalf("failed to write %s: %v", name, err)
	}
}

func (w *epubWriter) render(name string, tmpl *template.Template, data any) {
	w.t.Helper()
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		w.t.Fatalf("failed to render %s: %v", name, err)
	}
	w.add(name, buf.Bytes())
}

func (w *epubWriter) close() {
	w.t.Helper()
	if err := w.zw.Close(); err != nil {
		w.t.Errorf("failed to finish EPUB archive: %v", err)
	}
	if err := w.f.Close(); err != nil {
		w.t.Errorf("failed to close EPUB file: %v", err)
	}
}

// generateImage returns a small two-tone cover so decoders see real pixels.
func generateImage(t *testing.T, mimeType string) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 60, 90))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 24, G: 52, B: 96, A: 255}}, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(0, 60, 60, 90), &image.Uniform{C: color.RGBA{R: 230, G: 200, B: 120, A: 255}}, image.Point{}, draw.Src)

	var buf bytes.Buffer
	var err error
	if mimeType == "image/jpeg" {
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85})
	} else {
		err = png.Encode(&buf, img)
	}
	if err != nil {
		t.Fatalf("failed to encode %s cover: %v", mimeType, err)
	}
	return buf.Bytes()
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	// Writes to a bytes.Buffer never fail.
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
