package pdf

import (
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pkg/errors"
	"github.com/shishobooks/folio/pkg/mediafile"
)

const (
	// MaxTextPages bounds how many leading pages are sampled for text.
	MaxTextPages = 10
	// MaxCharsPerPage bounds the text kept from each sampled page.
	MaxCharsPerPage = 5000
)

var (
	yearPattern      = regexp.MustCompile(`(\d{4})`)
	authorSeparators = regexp.MustCompile(`\s*(?:;|&|\band\b)\s*`)
	keywordSeparator = regexp.MustCompile(`\s*[,;]\s*`)
)

// Parse reads the document information dictionary and a text sample of the
// leading pages. Pages whose content cannot be decoded are skipped.
func Parse(path string) (*mediafile.ParsedMetadata, error) {
	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read pdf")
	}

	xref := ctx.XRefTable
	m := &mediafile.ParsedMetadata{
		Title:       cleanInfoString(xref.Title),
		Description: cleanInfoString(xref.Subject),
		DataSource:  mediafile.DataSourcePDFMetadata,
	}

	if author := cleanInfoString(xref.Author); author != "" {
		for _, name := range authorSeparators.Split(author, -1) {
			if name = strings.TrimSpace(name); name != "" {
				m.Authors = append(m.Authors, mediafile.ParsedAuthor{Name: name})
			}
		}
	}

	if keywords := cleanInfoString(xref.Keywords); keywords != "" {
		for _, kw := range keywordSeparator.Split(keywords, -1) {
			if kw != "" {
				m.Keywords = append(m.Keywords, kw)
			}
		}
	}

	if year := parseYear(xref.CreationDate); year != nil {
		m.PublishedYear = year
	}

	pageCount := xref.PageCount
	m.PageCount = &pageCount

	var text strings.Builder
	for page := 1; page <= pageCount && page <= MaxTextPages; page++ {
		r, err := pdfcpu.ExtractPageContent(ctx, page)
		if err != nil || r == nil {
			continue
		}
		content, err := io.ReadAll(r)
		if err != nil {
			continue
		}
		if pageText := ExtractText(content, MaxCharsPerPage); pageText != "" {
			text.WriteString(pageText)
			text.WriteByte('\n')
		}
	}
	m.Text = text.String()

	return m, nil
}

// parseYear pulls the year out of a PDF date string such as
// "D:20190314120000Z".
func parseYear(date string) *int {
	date = strings.TrimPrefix(strings.TrimSpace(date), "D:")
	match := yearPattern.FindString(date)
	if match == "" {
		return nil
	}
	year, err := strconv.Atoi(match)
	if err != nil || year < 1000 {
		return nil
	}
	return &year
}

// cleanInfoString drops the NUL padding and whitespace some producers leave in
// info dictionary values.
func cleanInfoString(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\x00", ""))
}
