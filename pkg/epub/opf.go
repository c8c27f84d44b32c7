package epub

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shishobooks/folio/pkg/htmlutil"
	"github.com/shishobooks/folio/pkg/identifiers"
	"github.com/shishobooks/folio/pkg/mediafile"
	"github.com/shishobooks/folio/pkg/models"
)

var yearPattern = regexp.MustCompile(`\b(\d{4})\b`)

type OPF struct {
	Title         string
	Subtitle      string
	Authors       []mediafile.ParsedAuthor
	Language      string
	Description   string
	Publisher     string
	PublishedYear *int
	Series        string
	SeriesNumber  *float64
	Subjects      []string
	Identifiers   []mediafile.ParsedIdentifier
	CoverFilepath string
	CoverMimeType string
}

type Package struct {
	XMLName          xml.Name `xml:"package"`
	Version          string   `xml:"version,attr"`
	UniqueIdentifier string   `xml:"unique-identifier,attr"`
	Metadata         struct {
		Title []struct {
			Text string `xml:",chardata"`
			ID   string `xml:"id,attr"`
		} `xml:"title"`
		Creator []struct {
			Text   string `xml:",chardata"`
			ID     string `xml:"id,attr"`
			Role   string `xml:"role,attr"`
			FileAs string `xml:"file-as,attr"`
		} `xml:"creator"`
		Description string   `xml:"description"`
		Publisher   string   `xml:"publisher"`
		Subject     []string `xml:"subject"`
		Identifier  []struct {
			Text   string `xml:",chardata"`
			ID     string `xml:"id,attr"`
			Scheme string `xml:"scheme,attr"`
		} `xml:"identifier"`
		Date     []string `xml:"date"`
		Language []string `xml:"language"`
		Meta     []struct {
			Text     string `xml:",chardata"`
			ID       string `xml:"id,attr"`
			Name     string `xml:"name,attr"`
			Content  string `xml:"content,attr"`
			Refines  string `xml:"refines,attr"`
			Property string `xml:"property,attr"`
		} `xml:"meta"`
	} `xml:"metadata"`
	Manifest struct {
		Item []struct {
			ID         string `xml:"id,attr"`
			Href       string `xml:"href,attr"`
			MediaType  string `xml:"media-type,attr"`
			Properties string `xml:"properties,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
}

type container struct {
	Rootfiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

// Parse reads the package document of the EPUB at filepath. The OPF is located
// through META-INF/container.xml, falling back to the first .opf entry.
func Parse(filepath string) (*mediafile.ParsedMetadata, error) {
	zr, err := zip.OpenReader(filepath)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer zr.Close()

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	opfPath := rootfilePath(files)
	if opfPath == "" {
		for _, f := range zr.File {
			if strings.EqualFold(path.Ext(f.Name), ".opf") {
				opfPath = f.Name
				break
			}
		}
	}
	if opfPath == "" {
		return nil, errors.New("no opf file found")
	}

	opfFile, ok := files[opfPath]
	if !ok {
		return nil, errors.Errorf("opf file %q listed in container.xml is missing", opfPath)
	}
	r, err := opfFile.Open()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	opf, err := ParseOPF(opfPath, r)
	r.Close()
	if err != nil {
		return nil, err
	}

	var coverData []byte
	if cover, ok := files[opf.CoverFilepath]; ok && opf.CoverFilepath != "" {
		cr, err := cover.Open()
		if err != nil {
			return nil, errors.WithStack(err)
		}
		coverData, err = io.ReadAll(cr)
		cr.Close()
		if err != nil {
			return nil, errors.WithStack(err)
		}
	}

	return &mediafile.ParsedMetadata{
		Title:         opf.Title,
		Subtitle:      opf.Subtitle,
		Authors:       opf.Authors,
		Language:      opf.Language,
		Description:   opf.Description,
		Publisher:     opf.Publisher,
		PublishedYear: opf.PublishedYear,
		Series:        opf.Series,
		SeriesNumber:  opf.SeriesNumber,
		Keywords:      opf.Subjects,
		Identifiers:   opf.Identifiers,
		CoverMimeType: opf.CoverMimeType,
		CoverData:     coverData,
		DataSource:    mediafile.DataSourceEPUBMetadata,
	}, nil
}

func rootfilePath(files map[string]*zip.File) string {
	f, ok := files["META-INF/container.xml"]
	if !ok {
		return ""
	}
	r, err := f.Open()
	if err != nil {
		return ""
	}
	defer r.Close()

	c := &container{}
	if err := xml.NewDecoder(r).Decode(c); err != nil {
		return ""
	}
	for _, rf := range c.Rootfiles {
		if rf.MediaType == "" || rf.MediaType == "application/oebps-package+xml" {
			return rf.FullPath
		}
	}
	return ""
}

// ParseOPF parses an OPF package document. filename is the OPF's path inside
// the archive; manifest hrefs are resolved relative to it.
func ParseOPF(filename string, r io.Reader) (*OPF, error) {
	pkg := &Package{}
	if err := xml.NewDecoder(r).Decode(pkg); err != nil {
		return nil, errors.Wrap(err, "failed to decode opf")
	}

	basePath := path.Dir(filename)

	// Refining metas keyed by the id they refine, plus EPUB2 name/content metas.
	metaProperties := map[string]map[string]string{}
	metaContent := map[string]string{}
	for _, m := range pkg.Metadata.Meta {
		switch {
		case m.Refines != "":
			key := strings.TrimPrefix(m.Refines, "#")
			if _, ok := metaProperties[key]; !ok {
				metaProperties[key] = map[string]string{}
			}
			metaProperties[key][m.Property] = strings.TrimSpace(m.Text)
		case m.Name != "":
			metaContent[m.Name] = strings.TrimSpace(m.Content)
		}
	}

	opf := &OPF{}

	titles := pkg.Metadata.Title
	if len(titles) > 0 {
		opf.Title = strings.TrimSpace(titles[0].Text)
	}
	for _, t := range titles {
		switch {
		case t.ID != "" && metaProperties[t.ID]["title-type"] == "main":
			opf.Title = strings.TrimSpace(t.Text)
		case t.ID != "" && (metaProperties[t.ID]["title-type"] == "subtitle" || t.ID == "subtitle"):
			opf.Subtitle = strings.TrimSpace(t.Text)
		}
	}

	for _, creator := range pkg.Metadata.Creator {
		role := creator.Role
		if role == "" && creator.ID != "" {
			role = metaProperties[creator.ID]["role"]
		}
		name := strings.TrimSpace(creator.Text)
		if name == "" {
			continue
		}
		if role == "" || role == "aut" || len(pkg.Metadata.Creator) == 1 {
			opf.Authors = append(opf.Authors, mediafile.ParsedAuthor{Name: name, Role: role})
		}
	}

	if len(pkg.Metadata.Language) > 0 {
		opf.Language = strings.TrimSpace(pkg.Metadata.Language[0])
	}
	opf.Description = htmlutil.StripTags(pkg.Metadata.Description)
	opf.Publisher = strings.TrimSpace(pkg.Metadata.Publisher)
	for _, d := range pkg.Metadata.Date {
		if m := yearPattern.FindStringSubmatch(d); m != nil {
			year, _ := strconv.Atoi(m[1])
			opf.PublishedYear = &year
			break
		}
	}
	for _, s := range pkg.Metadata.Subject {
		if s = strings.TrimSpace(s); s != "" {
			opf.Subjects = append(opf.Subjects, s)
		}
	}

	opf.Series = metaContent["calibre:series"]
	seriesIndex := metaContent["calibre:series_index"]
	if opf.Series == "" {
		for _, m := range pkg.Metadata.Meta {
			if m.Property == "belongs-to-collection" && m.Refines == "" {
				opf.Series = strings.TrimSpace(m.Text)
				if m.ID != "" {
					seriesIndex = metaProperties[m.ID]["group-position"]
				}
				break
			}
		}
	}
	if seriesIndex != "" {
		if num, err := strconv.ParseFloat(seriesIndex, 64); err == nil {
			opf.SeriesNumber = &num
		}
	}

	opf.Identifiers = parseIdentifiers(pkg)

	coverID := metaContent["cover"]
	for _, item := range pkg.Manifest.Item {
		isCover := strings.Contains(item.Properties, "cover-image") || (coverID != "" && item.ID == coverID)
		if isCover {
			opf.CoverFilepath = path.Join(basePath, item.Href)
			opf.CoverMimeType = item.MediaType
			break
		}
	}

	return opf, nil
}

func parseIdentifiers(pkg *Package) []mediafile.ParsedIdentifier {
	var result []mediafile.ParsedIdentifier
	seen := map[string]struct{}{}
	for _, id := range pkg.Metadata.Identifier {
		value := strings.TrimSpace(id.Text)
		scheme := strings.TrimSpace(id.Scheme)
		if value == "" || isBookUUID(value, scheme) {
			continue
		}

		t := identifiers.DetectType(value, scheme)
		if t == identifiers.TypeUnknown {
			continue
		}
		value = identifiers.Normalize(t, value)

		key := string(t) + ":" + value
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, mediafile.ParsedIdentifier{
			Type:   string(t),
			Value:  value,
			Source: models.IdentifierSourceEmbedded,
		})
	}
	return result
}

// isBookUUID reports whether the identifier is a package UUID, which says
// nothing about the edition.
func isBookUUID(value, scheme string) bool {
	s := strings.ToLower(scheme)
	return s == "uuid" || s == "calibre" || strings.HasPrefix(strings.ToLower(value), "urn:uuid:")
}
