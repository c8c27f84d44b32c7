package organizer

type PlanPayload struct {
	Mode        string `json:"mode,omitempty" validate:"omitempty,oneof=reference copy move"`
	LibraryRoot string `json:"library_root,omitempty"`
	Template    string `json:"template,omitempty" validate:"template"`
	ItemIDs     []int  `json:"item_ids,omitempty" validate:"omitempty,dive,min=1"`
}

type RollbackPayload struct {
	LogPath string `json:"log_path" validate:"required"`
}
