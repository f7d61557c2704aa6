package domain

// Widget is one offerable asset from the catalog.
type Widget struct {
	ID          string `json:"id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Thumbnail   string `json:"thumbnail"`
	Zip         string `json:"zip" validate:"required"`
}
