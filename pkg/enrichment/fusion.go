package enrichment

import (
	"net/url"
	"regexp"
	"sort"
	"strconv"
)

// defaultWeight is the trust weight of a provider missing from the weights
// map.
const defaultWeight = 1.0

// MergedCandidate is the field-by-field fusion of every candidate returned
// for one item.
type MergedCandidate struct {
	Candidate
	// WeightedConfidence is the winner's confidence times its provider's
	// weight.
	WeightedConfidence float64 `json:"weighted_confidence"`
	// FieldSources maps each filled field to the provider that supplied it.
	FieldSources map[string]string `json:"field_sources"`
}

type weighted struct {
	*Candidate
	weight float64
}

// Fuse merges candidates into one result. The candidate with the highest
// confidence times provider weight wins and supplies every field it has. The
// rest are consulted in weighted order to fill its gaps, except that
// identifiers are the union of all candidates, the description is the
// longest one, and the cover is the one with the largest inferred size. It
// returns nil when there are no candidates.
func Fuse(candidates []*Candidate, weights map[string]float64) *MergedCandidate {
	if len(candidates) == 0 {
		return nil
	}

	ranked := make([]weighted, 0, len(candidates))
	for _, c := range candidates {
		if c == nil {
			continue
		}
		w, ok := weights[c.Source]
		if !ok {
			w = defaultWeight
		}
		ranked = append(ranked, weighted{c, c.Confidence * w})
	}
	if len(ranked) == 0 {
		return nil
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].weight > ranked[j].weight
	})

	winner := ranked[0]
	merged := &MergedCandidate{
		Candidate:          *winner.Candidate,
		WeightedConfidence: winner.weight,
		FieldSources:       map[string]string{},
	}
	merged.Authors = append([]string(nil), winner.Authors...)
	merged.Identifiers = nil
	merged.CoverURL = ""
	merged.Description = ""
	merged.RatingsCount = 0
	merged.AverageRating = 0

	target := &merged.Candidate
	sources := merged.FieldSources
	if target.Title != "" {
		sources["title"] = winner.Source
	}

	for _, alt := range ranked {
		source := alt.Source
		if target.Title == "" && alt.Title != "" {
			target.Title = alt.Title
			sources["title"] = source
		}
		if target.Subtitle == "" && alt.Subtitle != "" {
			target.Subtitle = alt.Subtitle
			sources["subtitle"] = source
		}
		if len(target.Authors) == 0 && len(alt.Authors) > 0 {
			target.Authors = append([]string(nil), alt.Authors...)
		}
		if _, ok := sources["authors"]; !ok && len(target.Authors) > 0 {
			sources["authors"] = source
		}
		if target.Language == "" && alt.Language != "" {
			target.Language = alt.Language
			sources["language"] = source
		}
		if target.Publisher == "" && alt.Publisher != "" {
			target.Publisher = alt.Publisher
			sources["publisher"] = source
		}
		if target.PublishedYear == nil && alt.PublishedYear != nil {
			year := *alt.PublishedYear
			target.PublishedYear = &year
			sources["published_year"] = source
		}
		if target.SourceURL == "" && alt.SourceURL != "" {
			target.SourceURL = alt.SourceURL
			sources["source_url"] = source
		}
		// Longer descriptions are assumed to be more complete.
		if len(alt.Description) > len(target.Description) {
			target.Description = alt.Description
			sources["description"] = source
		}
	}

	target.Identifiers = unionIdentifiers(ranked)
	if cover, source := bestCover(ranked); cover != "" {
		target.CoverURL = cover
		sources["cover_url"] = source
	}

	return merged
}

// unionIdentifiers collects every candidate's identifiers. Each one carries
// the confidence of the first candidate, in weighted order, that reported it.
func unionIdentifiers(ranked []weighted) []Identifier {
	var ids []Identifier
	seen := map[string]struct{}{}
	for _, c := range ranked {
		for _, id := range c.Identifiers {
			key := id.Type + ":" + id.Value
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			id.Confidence = c.Confidence
			ids = append(ids, id)
		}
	}
	return ids
}

// bestCover picks the cover with the largest inferred width. ranked is in
// weighted order, so ties go to the more trusted candidate.
func bestCover(ranked []weighted) (string, string) {
	best, source, bestWidth := "", "", -1
	for _, c := range ranked {
		if c.CoverURL == "" {
			continue
		}
		if w := InferCoverWidth(c.CoverURL); w > bestWidth {
			best, source, bestWidth = c.CoverURL, c.Source, w
		}
	}
	return best, source
}

var openLibrarySizePattern = regexp.MustCompile(`-([SML])\.jpg$`)

var (
	openLibraryWidths = map[string]int{"S": 45, "M": 180, "L": 500}
	// Google Books zoom levels, roughly by the width they serve.
	googleBooksZoomWidths = map[int]int{5: 80, 1: 128, 2: 300, 3: 575, 4: 800, 6: 1280}
)

// InferCoverWidth guesses a cover's width in pixels from the size markers
// providers put in their cover URLs. Unknown URLs are 0.
func InferCoverWidth(rawURL string) int {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}
	if m := openLibrarySizePattern.FindStringSubmatch(u.Path); m != nil {
		return openLibraryWidths[m[1]]
	}
	if zoom := u.Query().Get("zoom"); zoom != "" {
		if z, err := strconv.Atoi(zoom); err == nil {
			return googleBooksZoomWidths[z]
		}
	}
	return 0
}
