package models

import "time"

// Preview is a mesh generated for a single request.
type Preview struct {
	ID        string          `json:"id"`
	Params    ShapeParameters `json:"params"`
	Path      string          `json:"-"`
	CreatedAt time.Time       `json:"createdAt"`
}
