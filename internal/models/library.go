package models

// LibraryShape describes a solid file in the read-only shape catalog.
type LibraryShape struct {
	Filename    string `json:"filename"`
	DisplayName string `json:"display_name"`
}
