package scanner

type CreateScanPayload struct {
	RootPath   string   `json:"root_path" validate:"required"`
	Extensions []string `json:"extensions,omitempty" validate:"omitempty,dive,min=2,max=10"`
}

type ListSessionsQuery struct {
	Limit    int      `query:"limit" json:"limit,omitempty" default:"20" validate:"min=1,max=100"`
	Offset   int      `query:"offset" json:"offset,omitempty" validate:"min=0"`
	RootPath *string  `query:"root_path" json:"root_path,omitempty"`
	Status   []string `query:"status" json:"status,omitempty" validate:"dive,oneof=running success failed cancelled"`
}
