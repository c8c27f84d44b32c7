package mediafile

import (
	"fmt"
	"strings"
)

const (
	DataSourceEPUBMetadata = "epub_metadata"
	DataSourcePDFMetadata  = "pdf_metadata"
)

// ParsedAuthor represents an author with optional role information taken from
// the container (e.g. the OPF "aut" or "edt" role).
type ParsedAuthor struct {
	Name string
	Role string
}

// ParsedIdentifier represents an identifier parsed from file metadata.
type ParsedIdentifier struct {
	Type       string // One of the models.IdentifierType constants
	Value      string
	Source     string // models.IdentifierSourceEmbedded or models.IdentifierSourceHeuristic
	Confidence float64
}

type ParsedMetadata struct {
	Title         string
	Subtitle      string
	Authors       []ParsedAuthor
	Language      string
	Description   string
	Publisher     string
	PublishedYear *int
	Series        string
	SeriesNumber  *float64
	CoverMimeType string
	CoverData     []byte
	// DataSource names the container parser that produced the metadata.
	DataSource string
	// PageCount is only set for PDFs.
	PageCount *int
	// Keywords holds free-form subject/keyword fields. They are mined for
	// identifiers.
	Keywords []string
	// Text is a bounded sample of the document body used to mine identifiers.
	Text        string
	Identifiers []ParsedIdentifier
}

func (m *ParsedMetadata) String() string {
	authorNames := make([]string, len(m.Authors))
	for i, a := range m.Authors {
		if a.Role != "" {
			authorNames[i] = fmt.Sprintf("%s (%s)", a.Name, a.Role)
		} else {
			authorNames[i] = a.Name
		}
	}
	ids := make([]string, len(m.Identifiers))
	for i, id := range m.Identifiers {
		ids[i] = fmt.Sprintf("%s:%s (%s %.2f)", id.Type, id.Value, id.Source, id.Confidence)
	}
	year := "-"
	if m.PublishedYear != nil {
		year = fmt.Sprint(*m.PublishedYear)
	}
	return fmt.Sprintf("Title:           %s\nAuthor(s):       %s\nLanguage:        %s\nYear:            %s\nSeries:          %s\nIdentifiers:     %s\nHas Cover Data:  %v\nCover Mime Type: %s\nData Source:     %s",
		m.Title, strings.Join(authorNames, ", "), m.Language, year, m.Series, strings.Join(ids, ", "), len(m.CoverData) > 0, m.CoverMimeType, m.DataSource)
}

// AuthorNames returns the non-empty author names in order.
func (m *ParsedMetadata) AuthorNames() []string {
	names := make([]string, 0, len(m.Authors))
	for _, a := range m.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func (m *ParsedMetadata) CoverExtension() string {
	ext := ""
	switch m.CoverMimeType {
	case "image/jpeg":
		ext = ".jpg"
	case "image/png":
		ext = ".png"
	case "image/gif":
		ext = ".gif"
	}
	return ext
}
