package extractor

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/folio/pkg/epub"
	"github.com/shishobooks/folio/pkg/identifiers"
	"github.com/shishobooks/folio/pkg/mediafile"
	"github.com/shishobooks/folio/pkg/models"
	"github.com/shishobooks/folio/pkg/pdf"
)

const (
	ConfidenceEmbedded      = 0.8
	ConfidenceHeuristicBase = 0.4
	confidenceISBN13Bonus   = 0.1
	confidenceLabelBonus    = 0.1
)

// Extract parses the container metadata of the file at path and attaches
// validated identifiers. It never fails: unsupported formats and unreadable
// containers yield an empty result, and parse errors are only logged.
func Extract(ctx context.Context, path string) *mediafile.ParsedMetadata {
	log := logger.FromContext(ctx)

	var (
		md  *mediafile.ParsedMetadata
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".epub":
		md, err = epub.Parse(path)
	case ".pdf":
		md, err = pdf.Parse(path)
	}
	if err != nil {
		log.Warn("metadata extraction failed", logger.Data{"path": path, "error": err.Error()})
	}
	if md == nil {
		md = &mediafile.ParsedMetadata{}
	}

	md.Title = strings.TrimSpace(md.Title)
	md.Description = strings.TrimSpace(md.Description)
	md.Identifiers = collectIdentifiers(md)

	return md
}

// collectIdentifiers validates the container's identifier fields, mines the
// keyword fields and the text sample for ISBNs, and assigns confidence tiers.
// Each (type, value) pair is kept once with its highest confidence.
func collectIdentifiers(md *mediafile.ParsedMetadata) []mediafile.ParsedIdentifier {
	var result []mediafile.ParsedIdentifier
	index := map[string]int{}

	add := func(id mediafile.ParsedIdentifier) {
		key := id.Type + ":" + id.Value
		if i, ok := index[key]; ok {
			if id.Confidence > result[i].Confidence {
				result[i] = id
			}
			return
		}
		index[key] = len(result)
		result = append(result, id)
	}

	for _, id := range md.Identifiers {
		t := identifiers.Type(id.Type)
		value := identifiers.Normalize(t, id.Value)
		switch t {
		case identifiers.TypeISBN10, identifiers.TypeISBN13:
			if identifiers.DetectType(value, "ISBN") != t {
				continue
			}
		case identifiers.TypeUnknown:
			continue
		}
		add(mediafile.ParsedIdentifier{
			Type:       string(t),
			Value:      value,
			Source:     models.IdentifierSourceEmbedded,
			Confidence: ConfidenceEmbedded,
		})
	}

	for _, kw := range md.Keywords {
		for _, h := range identifiers.HarvestISBNs(kw) {
			add(mediafile.ParsedIdentifier{
				Type:       string(h.Type),
				Value:      h.Value,
				Source:     models.IdentifierSourceEmbedded,
				Confidence: ConfidenceEmbedded,
			})
		}
	}

	for _, h := range identifiers.HarvestISBNs(md.Text) {
		add(mediafile.ParsedIdentifier{
			Type:       string(h.Type),
			Value:      h.Value,
			Source:     models.IdentifierSourceHeuristic,
			Confidence: heuristicConfidence(h),
		})
	}

	return result
}

// heuristicConfidence scores an ISBN mined from free text between 0.4 and
// 0.6. Thirteen digit numbers and labeled numbers are less likely to be
// accidental matches.
func heuristicConfidence(h identifiers.Harvested) float64 {
	c := ConfidenceHeuristicBase
	if h.Type == identifiers.TypeISBN13 {
		c += confidenceISBN13Bonus
	}
	if h.Labeled {
		c += confidenceLabelBonus
	}
	return c
}

// FallbackTitle derives a title from a filename: the stem with underscores
// turned into spaces.
func FallbackTitle(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return strings.Join(strings.Fields(strings.ReplaceAll(stem, "_", " ")), " ")
}

// MissingFields lists the core fields a parsed result lacks, in the order
// "title", "author".
func MissingFields(md *mediafile.ParsedMetadata) []string {
	var missing []string
	if md.Title == "" {
		missing = append(missing, "title")
	}
	if len(md.AuthorNames()) == 0 {
		missing = append(missing, "author")
	}
	return missing
}
