package kernel

import (
	"fmt"
	"math"

	"github.com/promptcad/backend/internal/models"
)

const (
	minSegments = 6
	maxSegments = 256
)

// Triangle is a mesh facet with an outward unit normal.
type Triangle struct {
	Normal  models.Vec3
	A, B, C models.Vec3
}

// Mesh is a triangulated approximation of a solid.
type Mesh struct {
	Triangles []Triangle
}

// Bounds returns the axis-aligned bounding box of the mesh.
func (m *Mesh) Bounds() (lo, hi models.Vec3) {
	lo = models.Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi = models.Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for _, t := range m.Triangles {
		for _, v := range []models.Vec3{t.A, t.B, t.C} {
			for i := 0; i < 3; i++ {
				lo[i] = math.Min(lo[i], v[i])
				hi[i] = math.Max(hi[i], v[i])
			}
		}
	}
	return lo, hi
}

// Segments returns how many segments approximate a full circle of radius
// under tol. Both limits apply; the finer one wins.
func Segments(radius float64, tol Tolerance) int {
	step := 2 * math.Pi
	if tol.Linear > 0 && tol.Linear < radius {
		step = math.Min(step, 2*math.Acos(1-tol.Linear/radius))
	}
	if tol.Angular > 0 {
		step = math.Min(step, tol.Angular)
	}

	n := int(math.Ceil(2 * math.Pi / step))
	if n < minSegments {
		n = minSegments
	}
	if n > maxSegments {
		n = maxSegments
	}
	return n
}

// Tessellate meshes the solid in its local frame and places it with the
// solid's orientation.
func Tessellate(s *Solid, tol Tolerance) (*Mesh, error) {
	var local [][3]models.Vec3
	switch s.Kind {
	case models.ShapeBox:
		local = boxFacets(s.Width, s.Depth, s.Height)
	case models.ShapeCylinder:
		local = cylinderFacets(s.Radius, s.Height, Segments(s.Radius, tol))
	case models.ShapeSphere:
		local = sphereFacets(s.Radius, Segments(s.Radius, tol))
	default:
		return nil, fmt.Errorf("%w: cannot mesh %q", ErrUnsupportedSolid, s.Kind)
	}

	mesh := &Mesh{Triangles: make([]Triangle, 0, len(local))}
	for _, f := range local {
		a, b, c := orientOutward(f[0], f[1], f[2])
		a, b, c = s.Orientation.Apply(a), s.Orientation.Apply(b), s.Orientation.Apply(c)
		mesh.Triangles = append(mesh.Triangles, Triangle{
			Normal: normalize(cross(sub(b, a), sub(c, a))),
			A:      a,
			B:      b,
			C:      c,
		})
	}
	return mesh, nil
}

func boxFacets(w, d, h float64) [][3]models.Vec3 {
	var corners [8]models.Vec3
	for i := range corners {
		corners[i] = models.Vec3{
			(float64(i&1) - 0.5) * w,
			(float64(i>>1&1) - 0.5) * d,
			(float64(i>>2&1) - 0.5) * h,
		}
	}

	quads := [6][4]int{
		{0, 2, 6, 4}, {1, 3, 7, 5}, // -x, +x
		{0, 1, 5, 4}, {2, 3, 7, 6}, // -y, +y
		{0, 1, 3, 2}, {4, 5, 7, 6}, // -z, +z
	}
	facets := make([][3]models.Vec3, 0, 12)
	for _, q := range quads {
		facets = append(facets,
			[3]models.Vec3{corners[q[0]], corners[q[1]], corners[q[2]]},
			[3]models.Vec3{corners[q[0]], corners[q[2]], corners[q[3]]},
		)
	}
	return facets
}

func cylinderFacets(r, h float64, n int) [][3]models.Vec3 {
	bottom := models.Vec3{0, 0, -h / 2}
	top := models.Vec3{0, 0, h / 2}
	ring := func(i int, z float64) models.Vec3 {
		theta := 2 * math.Pi * float64(i%n) / float64(n)
		return models.Vec3{r * math.Cos(theta), r * math.Sin(theta), z}
	}

	facets := make([][3]models.Vec3, 0, 4*n)
	for i := 0; i < n; i++ {
		p0, p1 := ring(i, -h/2), ring(i+1, -h/2)
		q0, q1 := ring(i, h/2), ring(i+1, h/2)
		facets = append(facets,
			[3]models.Vec3{bottom, p0, p1},
			[3]models.Vec3{top, q0, q1},
			[3]models.Vec3{p0, p1, q1},
			[3]models.Vec3{p0, q1, q0},
		)
	}
	return facets
}

func sphereFacets(r float64, n int) [][3]models.Vec3 {
	lat := n / 2
	if lat < 3 {
		lat = 3
	}
	point := func(i, j int) models.Vec3 {
		phi := math.Pi * float64(i) / float64(lat)
		theta := 2 * math.Pi * float64(j%n) / float64(n)
		return models.Vec3{
			r * math.Sin(phi) * math.Cos(theta),
			r * math.Sin(phi) * math.Sin(theta),
			r * math.Cos(phi),
		}
	}
	north := models.Vec3{0, 0, r}
	south := models.Vec3{0, 0, -r}

	facets := make([][3]models.Vec3, 0, 2*n*(lat-1))
	for i := 0; i < lat; i++ {
		for j := 0; j < n; j++ {
			switch i {
			case 0:
				facets = append(facets, [3]models.Vec3{north, point(1, j), point(1, j+1)})
			case lat - 1:
				facets = append(facets, [3]models.Vec3{point(i, j), point(i, j+1), south})
			default:
				facets = append(facets,
					[3]models.Vec3{point(i, j), point(i+1, j), point(i+1, j+1)},
					[3]models.Vec3{point(i, j), point(i+1, j+1), point(i, j+1)},
				)
			}
		}
	}
	return facets
}

// orientOutward orders a facet counter-clockwise seen from outside. All
// primitives are convex and contain the origin, so outward means the normal
// points away from it.
func orientOutward(a, b, c models.Vec3) (models.Vec3, models.Vec3, models.Vec3) {
	n := cross(sub(b, a), sub(c, a))
	centroid := models.Vec3{(a[0] + b[0] + c[0]) / 3, (a[1] + b[1] + c[1]) / 3, (a[2] + b[2] + c[2]) / 3}
	if dot(n, centroid) < 0 {
		return a, c, b
	}
	return a, b, c
}

func sub(a, b models.Vec3) models.Vec3 {
	return models.Vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func dot(a, b models.Vec3) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func cross(a, b models.Vec3) models.Vec3 {
	return models.Vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func normalize(v models.Vec3) models.Vec3 {
	l := math.Sqrt(dot(v, v))
	if l == 0 {
		return v
	}
	return models.Vec3{v[0] / l, v[1] / l, v[2] / l}
}
