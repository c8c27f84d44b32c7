package enrichment

type EnrichItemPayload struct {
	ISBN   *string `json:"isbn,omitempty" validate:"omitempty,isbn"`
	Title  *string `json:"title,omitempty" validate:"omitempty,max=500"`
	Author *string `json:"author,omitempty" validate:"omitempty,max=500"`
	// Query is free text such as "Title by Author". It is only used when
	// neither isbn nor title is set.
	Query     *string `json:"query,omitempty" validate:"omitempty,max=1000"`
	Overwrite bool    `json:"overwrite"`
}

func (p EnrichItemPayload) query() Query {
	q := Query{}
	if p.ISBN != nil {
		q.ISBN = *p.ISBN
	}
	if p.Title != nil {
		q.Title = *p.Title
	}
	if p.Author != nil {
		q.Author = *p.Author
	}
	if q.IsEmpty() && p.Query != nil {
		q = ParseQuery(*p.Query)
	}
	return q
}

type ListCandidatesQuery struct {
	ISBN   *string `query:"isbn" json:"isbn,omitempty" validate:"omitempty,isbn"`
	Title  *string `query:"title" json:"title,omitempty" validate:"omitempty,max=500"`
	Author *string `query:"author" json:"author,omitempty" validate:"omitempty,max=500"`
	Query  *string `query:"q" json:"q,omitempty" validate:"omitempty,max=1000"`
}

func (p ListCandidatesQuery) query() Query {
	return EnrichItemPayload{ISBN: p.ISBN, Title: p.Title, Author: p.Author, Query: p.Query}.query()
}

type CandidateIdentifierPayload struct {
	Type  string `json:"type" validate:"required,oneof=isbn_10 isbn_13 asin doi other"`
	Value string `json:"value" validate:"required,max=100"`
}

type ApplyCandidatePayload struct {
	Source        string                       `json:"source" validate:"required,max=100"`
	Title         string                       `json:"title" validate:"required,max=500"`
	Subtitle      string                       `json:"subtitle,omitempty" validate:"max=500"`
	Authors       []string                     `json:"authors,omitempty" validate:"omitempty,dive,max=200"`
	Description   string                       `json:"description,omitempty"`
	Language      string                       `json:"language,omitempty" validate:"max=35"`
	Publisher     string                       `json:"publisher,omitempty" validate:"max=200"`
	PublishedYear *int                         `json:"published_year,omitempty" validate:"omitempty,min=0,max=9999"`
	Identifiers   []CandidateIdentifierPayload `json:"identifiers,omitempty" validate:"omitempty,dive"`
	CoverURL      string                       `json:"cover_url,omitempty" validate:"omitempty,url"`
	SourceURL     string                       `json:"source_url,omitempty" validate:"omitempty,url"`
	Confidence    float64                      `json:"confidence,omitempty" validate:"min=0,max=1"`
	// KeepExisting only fills empty fields. A picked candidate replaces what
	// the item has by default.
	KeepExisting bool `json:"keep_existing"`
}

func (p ApplyCandidatePayload) candidate() *Candidate {
	c := &Candidate{
		Source:        p.Source,
		Title:         p.Title,
		Subtitle:      p.Subtitle,
		Authors:       p.Authors,
		Description:   p.Description,
		Language:      p.Language,
		Publisher:     p.Publisher,
		PublishedYear: p.PublishedYear,
		CoverURL:      p.CoverURL,
		SourceURL:     p.SourceURL,
		Confidence:    p.Confidence,
	}
	for _, id := range p.Identifiers {
		c.Identifiers = append(c.Identifiers, Identifier{Type: id.Type, Value: id.Value})
	}
	return c
}
