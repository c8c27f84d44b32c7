package items

type ListItemsQuery struct {
	Limit           int     `query:"limit" json:"limit,omitempty" default:"24" validate:"min=1,max=100"`
	Offset          int     `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Search          *string `query:"search" json:"search,omitempty" validate:"omitempty,max=100"`
	MissingMetadata bool    `query:"missing_metadata" json:"missing_metadata,omitempty"`
}

type UpdateItemPayload struct {
	Title         *string  `json:"title,omitempty" validate:"omitempty,min=1,max=300"`
	Subtitle      *string  `json:"subtitle,omitempty" validate:"omitempty,max=500"`
	Description   *string  `json:"description,omitempty"`
	Language      *string  `json:"language,omitempty" validate:"omitempty,max=35"`
	PublishedYear *int     `json:"published_year,omitempty" validate:"omitempty,min=0,max=9999"`
	Series        *string  `json:"series,omitempty" validate:"omitempty,max=200"`
	SeriesIndex   *float64 `json:"series_index,omitempty" validate:"omitempty,min=0"`
	Authors       []string `json:"authors,omitempty" validate:"omitempty,dive,max=200"`
}

type ListIssuesQuery struct {
	Limit     int     `query:"limit" json:"limit,omitempty" default:"50" validate:"min=1,max=200"`
	Offset    int     `query:"offset" json:"offset,omitempty" validate:"min=0"`
	ItemID    *int    `query:"item_id" json:"item_id,omitempty" validate:"omitempty,min=1"`
	SessionID *int    `query:"session_id" json:"session_id,omitempty" validate:"omitempty,min=1"`
	Type      *string `query:"type" json:"type,omitempty" validate:"omitempty,oneof=io_error mime_mismatch duplicate missing_metadata unreadable_directory"`
}

type RelinkFilePayload struct {
	Path string `json:"path" validate:"required,abspath,max=4096"`
}
