package models

import "time"

// ShapeEntry is one placed shape inside a project.
type ShapeEntry struct {
	Params   ShapeParameters `json:"params" msgpack:"params"`
	Position Vec3            `json:"position" msgpack:"position"`
	Rotation Vec3            `json:"rotation" msgpack:"rotation"`
	Prompt   string          `json:"prompt,omitempty" msgpack:"prompt,omitempty"` // Source text, when the shape came from a prompt
	BrepFile string          `json:"brep_file,omitempty" msgpack:"brep_file,omitempty"`
}

// ProjectFile is the request body of a save and the content of project.json.
type ProjectFile struct {
	Name      string       `json:"name" msgpack:"name"`
	Shapes    []ShapeEntry `json:"shapes" msgpack:"shapes"`
	UpdatedAt *time.Time   `json:"updated_at,omitempty" msgpack:"updated_at,omitempty"`
}
