// Package kernel is the boundary to the geometry kernel that turns shape
// parameters into solids, meshes and exchange files.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/promptcad/backend/internal/models"
)

// ErrUnsupportedSolid is returned when a solid file holds geometry the kernel cannot read.
var ErrUnsupportedSolid = errors.New("unsupported solid")

// Kernel builds primitives and moves them in and out of files.
type Kernel interface {
	Build(ctx context.Context, params models.ShapeParameters) (*Solid, error)
	ExportMesh(ctx context.Context, solid *Solid, path string, tol Tolerance) error
	ExportSolid(ctx context.Context, solid *Solid, path string) error
	ImportSolid(ctx context.Context, path string) (*Solid, error)
}

// Tolerance bounds the deviation of a mesh from the exact surface.
// Linear is in model units, Angular in radians.
type Tolerance struct {
	Linear  float64 `json:"linear"`
	Angular float64 `json:"angular"`
}

var (
	DefaultTolerance = Tolerance{Linear: 0.1, Angular: 0.1}
	CoarseTolerance  = Tolerance{Linear: 1.0, Angular: 1.0}
)

// Axis selects a global coordinate axis.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// Mat3 is a row-major 3x3 matrix.
type Mat3 [3][3]float64

// Identity returns the identity matrix.
func Identity() Mat3 {
	return Mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// Mul returns m*o.
func (m Mat3) Mul(o Mat3) Mat3 {
	var r Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				r[i][j] += m[i][k] * o[k][j]
			}
		}
	}
	return r
}

// Apply returns m*v.
func (m Mat3) Apply(v models.Vec3) models.Vec3 {
	return models.Vec3{
		m[0][0]*v[0] + m[0][1]*v[1] + m[0][2]*v[2],
		m[1][0]*v[0] + m[1][1]*v[1] + m[1][2]*v[2],
		m[2][0]*v[0] + m[2][1]*v[1] + m[2][2]*v[2],
	}
}

// Column returns column j.
func (m Mat3) Column(j int) models.Vec3 {
	return models.Vec3{m[0][j], m[1][j], m[2][j]}
}

// AxisRotation is the rotation by degrees about a global axis through the origin.
func AxisRotation(axis Axis, degrees float64) Mat3 {
	rad := degrees * math.Pi / 180
	c, s := math.Cos(rad), math.Sin(rad)
	switch axis {
	case AxisX:
		return Mat3{{1, 0, 0}, {0, c, -s}, {0, s, c}}
	case AxisY:
		return Mat3{{c, 0, s}, {0, 1, 0}, {-s, 0, c}}
	default:
		return Mat3{{c, -s, 0}, {s, c, 0}, {0, 0, 1}}
	}
}

// Solid is a transient primitive centered at the origin. Orientation maps the
// primitive's local frame (cylinder axis along local Z) into world space.
type Solid struct {
	Kind        models.ShapeKind `json:"kind"`
	Width       float64          `json:"width,omitempty"`
	Depth       float64          `json:"depth,omitempty"`
	Height      float64          `json:"height,omitempty"`
	Radius      float64          `json:"radius,omitempty"`
	Orientation Mat3             `json:"orientation"`
}

// Rotate rotates the solid about a global axis through the origin.
func (s *Solid) Rotate(axis Axis, degrees float64) {
	s.Orientation = AxisRotation(axis, degrees).Mul(s.Orientation)
}

// BuildSolid constructs the primitive for params on the XY workplane and then
// rotates it about X, Y and Z in that order, skipping zero angles. The three
// rotations are separate operations; their order is significant.
func BuildSolid(params models.ShapeParameters) (*Solid, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	s := &Solid{Kind: params.Shape, Orientation: Identity()}
	switch params.Shape {
	case models.ShapeBox:
		s.Width, s.Depth, s.Height = params.Width, params.Depth, params.Height
	case models.ShapeCylinder:
		s.Radius, s.Height = params.Radius, params.Height
	case models.ShapeSphere:
		s.Radius = params.Radius
	default:
		return nil, fmt.Errorf("%w: unknown shape %q", models.ErrInvalidParams, params.Shape)
	}

	rx, ry, rz := params.Rotation[0], params.Rotation[1], params.Rotation[2]
	if rx != 0 {
		s.Rotate(AxisX, rx)
	}
	if ry != 0 {
		s.Rotate(AxisY, ry)
	}
	if rz != 0 {
		s.Rotate(AxisZ, rz)
	}
	return s, nil
}
