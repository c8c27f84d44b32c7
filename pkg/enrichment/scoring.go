package enrichment

import (
	"math"
	"strings"
	"unicode"
)

const (
	// ISBNConfidence is assigned to every candidate found by ISBN, since the
	// identifier match is exact.
	ISBNConfidence = 0.98

	minTextConfidence = 0.45
	maxTextConfidence = 0.99

	titleWeight  = 0.7
	authorWeight = 0.3

	// emptySideSimilarity is used when the query names an author but the
	// candidate has none.
	emptySideSimilarity = 0.2

	maxPopularityBoost = 0.08
	// popularityVotesScale is the vote count (as a power of ten) at which the
	// boost saturates.
	popularityVotesScale = 3.0
)

// ScoreTextMatch rates how well a candidate found by text search matches the
// query, as a confidence in [0.45, 0.99]. It reports false when the titles
// share no words at all, in which case the candidate should be dropped.
func ScoreTextMatch(q Query, c *Candidate) (float64, bool) {
	titleSim := jaccard(tokenize(q.Title), tokenize(c.Title+" "+c.Subtitle))
	if titleSim == 0 {
		return 0, false
	}

	authorSim := 1.0
	if strings.TrimSpace(q.Author) != "" {
		authorSim = jaccard(tokenize(q.Author), tokenize(strings.Join(c.Authors, " ")))
	}

	raw := titleWeight*titleSim + authorWeight*authorSim
	confidence := minTextConfidence + (maxTextConfidence-minTextConfidence)*raw + popularityBoost(c)
	return math.Max(minTextConfidence, math.Min(maxTextConfidence, confidence)), true
}

// popularityBoost grows with the log of the vote count, so a single five
// star vote barely moves the score.
func popularityBoost(c *Candidate) float64 {
	if c.RatingsCount <= 0 || c.AverageRating <= 0 {
		return 0
	}
	votes := math.Min(1, math.Log10(1+float64(c.RatingsCount))/popularityVotesScale)
	rating := math.Min(1, c.AverageRating/5)
	return maxPopularityBoost * votes * rating
}

func tokenize(s string) map[string]struct{} {
	tokens := map[string]struct{}{}
	for _, word := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		tokens[word] = struct{}{}
	}
	return tokens
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return emptySideSimilarity
	}
	shared := 0
	for t := range a {
		if _, ok := b[t]; ok {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	return float64(shared) / float64(union)
}
