package extractor

import (
	"context"
	"testing"

	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/folio/internal/testgen"
	"github.com/shishobooks/folio/pkg/identifiers"
	"github.com/shishobooks/folio/pkg/mediafile"
	"github.com/shishobooks/folio/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext() context.Context {
	return logger.New().WithContext(context.Background())
}

func TestExtract_EPUB(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := testgen.GenerateEPUB(t, dir, "earthsea.epub", testgen.EPUBOptions{
		Title:   "A Wizard of Earthsea",
		Authors: []string{"Ursula K. Le Guin"},
		Identifiers: []testgen.EPUBIdentifier{
			{Scheme: "ISBN", Value: "0-306-40615-2"},
			{Scheme: "ISBN", Value: "0306406151"},
		},
		Subjects: []string{"Fantasy", "ISBN 9780306406157"},
	})

	md := Extract(testContext(), path)

	assert.Equal(t, "A Wizard of Earthsea", md.Title)
	assert.Equal(t, []mediafile.ParsedIdentifier{
		{Type: models.IdentifierTypeISBN10, Value: "0306406152", Source: models.IdentifierSourceEmbedded, Confidence: 0.8},
		{Type: models.IdentifierTypeISBN13, Value: "9780306406157", Source: models.IdentifierSourceEmbedded, Confidence: 0.8},
	}, md.Identifiers)
}

func TestExtract_PDFTextHeuristics(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := testgen.GeneratePDF(t, dir, "scan.pdf", testgen.PDFOptions{
		Title: "Field Notes",
		Pages: []string{
			"ISBN 978-0-306-40615-7",
			"see 0306406152 and bogus 9780306406158",
		},
	})

	md := Extract(testContext(), path)

	assert.Equal(t, "Field Notes", md.Title)
	require.Len(t, md.Identifiers, 2)
	assert.Equal(t, "9780306406157", md.Identifiers[0].Value)
	assert.Equal(t, models.IdentifierSourceHeuristic, md.Identifiers[0].Source)
	assert.InDelta(t, 0.6, md.Identifiers[0].Confidence, 0.0001)
	assert.Equal(t, "0306406152", md.Identifiers[1].Value)
	assert.InDelta(t, 0.4, md.Identifiers[1].Confidence, 0.0001)
}

func TestExtract_EmbeddedWinsOverHeuristic(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := testgen.GeneratePDF(t, dir, "both.pdf", testgen.PDFOptions{
		Keywords: "9780306406157",
		Pages:    []string{"9780306406157"},
	})

	md := Extract(testContext(), path)
	require.Len(t, md.Identifiers, 1)
	assert.Equal(t, models.IdentifierSourceEmbedded, md.Identifiers[0].Source)
	assert.InDelta(t, 0.8, md.Identifiers[0].Confidence, 0.0001)
}

func TestExtract_BestEffort(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	broken := testgen.WriteFile(t, dir, "broken.epub", []byte("definitely not a zip"))
	md := Extract(testContext(), broken)
	require.NotNil(t, md)
	assert.Empty(t, md.Title)
	assert.Empty(t, md.Identifiers)

	unsupported := testgen.WriteFile(t, dir, "notes.mobi", []byte("BOOKMOBI"))
	md = Extract(testContext(), unsupported)
	require.NotNil(t, md)
	assert.Empty(t, md.DataSource)
}

func TestHeuristicConfidence(t *testing.T) {
	t.Parallel()
	assert.InDelta(t, 0.4, heuristicConfidence(identifiers.Harvested{Type: identifiers.TypeISBN10}), 0.0001)
	assert.InDelta(t, 0.5, heuristicConfidence(identifiers.Harvested{Type: identifiers.TypeISBN13}), 0.0001)
	assert.InDelta(t, 0.5, heuristicConfidence(identifiers.Harvested{Type: identifiers.TypeISBN10, Labeled: true}), 0.0001)
	assert.InDelta(t, 0.6, heuristicConfidence(identifiers.Harvested{Type: identifiers.TypeISBN13, Labeled: true}), 0.0001)
}

func TestFallbackTitle(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "The Left Hand of Darkness", FallbackTitle("/books/The_Left_Hand__of_Darkness.epub"))
	assert.Equal(t, "notes", FallbackTitle("notes.pdf"))
}

func TestMissingFields(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"title", "author"}, MissingFields(&mediafile.ParsedMetadata{}))
	assert.Equal(t, []string{"author"}, MissingFields(&mediafile.ParsedMetadata{Title: "X"}))
	assert.Nil(t, MissingFields(&mediafile.ParsedMetadata{Title: "X", Authors: []mediafile.ParsedAuthor{{Name: "Y"}}}))
}
