// Package models contains domain types for the prompt-to-CAD service.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/vmihailenco/msgpack/v5"
)

// ShapeKind identifies one of the supported primitives.
type ShapeKind string

const (
	ShapeBox      ShapeKind = "box"
	ShapeCylinder ShapeKind = "cylinder"
	ShapeSphere   ShapeKind = "sphere"
)

// Default dimensions applied when a field is absent.
const (
	DefaultBoxSize        = 10.0
	DefaultCylinderRadius = 5.0
	DefaultCylinderHeight = 10.0
	DefaultSphereRadius   = 5.0
)

// ErrInvalidParams is returned when shape parameters fail boundary validation.
var ErrInvalidParams = errors.New("invalid shape parameters")

// Vec3 is an [x, y, z] triple. Rotations are in degrees.
type Vec3 [3]float64

// ShapeParameters is the discriminated shape record. Only the dimension fields
// belonging to Shape are meaningful; the others stay zero.
type ShapeParameters struct {
	Shape    ShapeKind
	Width    float64
	Depth    float64
	Height   float64
	Radius   float64
	Rotation Vec3
}

// NewBox creates box parameters.
func NewBox(width, depth, height float64, rotation Vec3) ShapeParameters {
	return ShapeParameters{Shape: ShapeBox, Width: width, Depth: depth, Height: height, Rotation: rotation}
}

// NewCylinder creates cylinder parameters.
func NewCylinder(radius, height float64, rotation Vec3) ShapeParameters {
	return ShapeParameters{Shape: ShapeCylinder, Radius: radius, Height: height, Rotation: rotation}
}

// NewSphere creates sphere parameters.
func NewSphere(radius float64, rotation Vec3) ShapeParameters {
	return ShapeParameters{Shape: ShapeSphere, Radius: radius, Rotation: rotation}
}

// Known reports whether k is one of the supported kinds.
func (k ShapeKind) Known() bool {
	switch k {
	case ShapeBox, ShapeCylinder, ShapeSphere:
		return true
	}
	return false
}

// Validate checks the record the way untrusted input is checked at the API
// boundary: the kind must be known and every dimension of that kind must be a
// positive finite number.
func (p ShapeParameters) Validate() error {
	var dims map[string]float64
	switch p.Shape {
	case ShapeBox:
		dims = map[string]float64{"width": p.Width, "depth": p.Depth, "height": p.Height}
	case ShapeCylinder:
		dims = map[string]float64{"radius": p.Radius, "height": p.Height}
	case ShapeSphere:
		dims = map[string]float64{"radius": p.Radius}
	case "":
		return fmt.Errorf("%w: shape is required", ErrInvalidParams)
	default:
		return fmt.Errorf("%w: unknown shape %q", ErrInvalidParams, p.Shape)
	}

	for name, v := range dims {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return fmt.Errorf("%w: %s must be a positive number, got %v", ErrInvalidParams, name, v)
		}
	}
	for i, v := range p.Rotation {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: rotation[%d] must be finite", ErrInvalidParams, i)
		}
	}
	return nil
}

// fields returns the wire representation: shape, the kind's dimensions, rotation.
func (p ShapeParameters) fields() any {
	switch p.Shape {
	case ShapeBox:
		return struct {
			Shape    ShapeKind `json:"shape"`
			Width    float64   `json:"width"`
			Depth    float64   `json:"depth"`
			Height   float64   `json:"height"`
			Rotation Vec3      `json:"rotation"`
		}{p.Shape, p.Width, p.Depth, p.Height, p.Rotation}
	case ShapeCylinder:
		return struct {
			Shape    ShapeKind `json:"shape"`
			Radius   float64   `json:"radius"`
			Height   float64   `json:"height"`
			Rotation Vec3      `json:"rotation"`
		}{p.Shape, p.Radius, p.Height, p.Rotation}
	case ShapeSphere:
		return struct {
			Shape    ShapeKind `json:"shape"`
			Radius   float64   `json:"radius"`
			Rotation Vec3      `json:"rotation"`
		}{p.Shape, p.Radius, p.Rotation}
	default:
		return struct {
			Shape    ShapeKind `json:"shape"`
			Rotation Vec3      `json:"rotation"`
		}{p.Shape, p.Rotation}
	}
}

// MarshalJSON emits only the fields of the selected kind.
func (p ShapeParameters) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.fields())
}

// UnmarshalJSON decodes a flat shape record. Dimensions missing from the input
// take the defaults of the decoded kind; a rotation, when present, must have
// exactly three components. The kind itself is not checked here, see Validate.
func (p *ShapeParameters) UnmarshalJSON(data []byte) error {
	var raw struct {
		Shape    ShapeKind `json:"shape"`
		Width    *float64  `json:"width"`
		Depth    *float64  `json:"depth"`
		Height   *float64  `json:"height"`
		Radius   *float64  `json:"radius"`
		Rotation []float64 `json:"rotation"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := ShapeParameters{Shape: raw.Shape}
	if raw.Rotation != nil {
		if len(raw.Rotation) != 3 {
			return fmt.Errorf("%w: rotation must have 3 components, got %d", ErrInvalidParams, len(raw.Rotation))
		}
		copy(out.Rotation[:], raw.Rotation)
	}

	switch raw.Shape {
	case ShapeBox:
		out.Width = valueOr(raw.Width, DefaultBoxSize)
		out.Depth = valueOr(raw.Depth, DefaultBoxSize)
		out.Height = valueOr(raw.Height, DefaultBoxSize)
	case ShapeCylinder:
		out.Radius = valueOr(raw.Radius, DefaultCylinderRadius)
		out.Height = valueOr(raw.Height, DefaultCylinderHeight)
	case ShapeSphere:
		out.Radius = valueOr(raw.Radius, DefaultSphereRadius)
	}

	*p = out
	return nil
}

// EncodeMsgpack mirrors the JSON layout for msgpack clients.
func (p ShapeParameters) EncodeMsgpack(enc *msgpack.Encoder) error {
	m := map[string]any{
		"shape":    string(p.Shape),
		"rotation": p.Rotation[:],
	}
	switch p.Shape {
	case ShapeBox:
		m["width"], m["depth"], m["height"] = p.Width, p.Depth, p.Height
	case ShapeCylinder:
		m["radius"], m["height"] = p.Radius, p.Height
	case ShapeSphere:
		m["radius"] = p.Radius
	}
	return enc.Encode(m)
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
