package kernel

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptcad/backend/internal/models"
)

func assertVecInDelta(t *testing.T, want, got models.Vec3, delta float64) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], delta, "component %d of %v", i, got)
	}
}

func TestBuildSolid_RotationOrder(t *testing.T) {
	// X first then Y: the local axis ends on -Y. Y first then X would leave it on +X.
	s, err := BuildSolid(models.NewCylinder(5, 10, models.Vec3{90, 90, 0}))
	require.NoError(t, err)
	assertVecInDelta(t, models.Vec3{0, -1, 0}, s.Orientation.Column(2), 1e-9)

	other := Identity()
	other = AxisRotation(AxisX, 90).Mul(AxisRotation(AxisY, 90).Mul(other))
	assertVecInDelta(t, models.Vec3{1, 0, 0}, other.Column(2), 1e-9)
}

func TestBuildSolid_ZeroRotationIsIdentity(t *testing.T) {
	s, err := BuildSolid(models.NewBox(1, 2, 3, models.Vec3{}))
	require.NoError(t, err)
	assert.Equal(t, Identity(), s.Orientation)
	assert.Equal(t, 1.0, s.Width)
	assert.Equal(t, 2.0, s.Depth)
	assert.Equal(t, 3.0, s.Height)
}

func TestBuildSolid_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		params models.ShapeParameters
	}{
		{"unknown kind", models.ShapeParameters{Shape: "cone", Radius: 1, Height: 1}},
		{"zero radius", models.NewSphere(0, models.Vec3{})},
		{"negative width", models.NewBox(-1, 1, 1, models.Vec3{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildSolid(tt.params)
			assert.ErrorIs(t, err, models.ErrInvalidParams)
		})
	}
}

func TestSegments(t *testing.T) {
	assert.Equal(t, 63, Segments(5, DefaultTolerance))
	assert.Equal(t, 7, Segments(5, CoarseTolerance))
	assert.Equal(t, minSegments, Segments(5, Tolerance{}))
	assert.Equal(t, maxSegments, Segments(5, Tolerance{Angular: 1e-6}))
}

func TestTessellate_TriangleCounts(t *testing.T) {
	tests := []struct {
		name   string
		params models.ShapeParameters
		tol    Tolerance
		want   int
	}{
		{"box", models.NewBox(10, 10, 10, models.Vec3{}), DefaultTolerance, 12},
		{"cylinder default", models.NewCylinder(5, 10, models.Vec3{}), DefaultTolerance, 4 * 63},
		{"cylinder coarse", models.NewCylinder(5, 10, models.Vec3{}), CoarseTolerance, 4 * 7},
		{"sphere coarse", models.NewSphere(5, models.Vec3{}), CoarseTolerance, 2 * 7 * 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := BuildSolid(tt.params)
			require.NoError(t, err)
			mesh, err := Tessellate(s, tt.tol)
			require.NoError(t, err)
			assert.Len(t, mesh.Triangles, tt.want)
		})
	}
}

func TestTessellate_OutwardNormals(t *testing.T) {
	for _, params := range []models.ShapeParameters{
		models.NewBox(2, 4, 6, models.Vec3{15, 30, 45}),
		models.NewCylinder(3, 8, models.Vec3{0, 90, 0}),
		models.NewSphere(4, models.Vec3{}),
	} {
		s, err := BuildSolid(params)
		require.NoError(t, err)
		mesh, err := Tessellate(s, CoarseTolerance)
		require.NoError(t, err)

		for i, tri := range mesh.Triangles {
			centroid := models.Vec3{
				(tri.A[0] + tri.B[0] + tri.C[0]) / 3,
				(tri.A[1] + tri.B[1] + tri.C[1]) / 3,
				(tri.A[2] + tri.B[2] + tri.C[2]) / 3,
			}
			if dot(tri.Normal, centroid) <= 0 {
				t.Errorf("%s triangle %d faces inward", params.Shape, i)
			}
		}
	}
}

func TestTessellate_LyingCylinderBounds(t *testing.T) {
	s, err := BuildSolid(models.NewCylinder(7, 20, models.Vec3{0, 90, 0}))
	require.NoError(t, err)
	mesh, err := Tessellate(s, DefaultTolerance)
	require.NoError(t, err)

	lo, hi := mesh.Bounds()
	assert.InDelta(t, -10, lo[0], 1e-9)
	assert.InDelta(t, 10, hi[0], 1e-9)
	assert.InDelta(t, 7, hi[2], 1e-2)
}

func TestSTLRoundTrip(t *testing.T) {
	s, err := BuildSolid(models.NewCylinder(5, 10, models.Vec3{0, 0, 30}))
	require.NoError(t, err)
	mesh, err := Tessellate(s, CoarseTolerance)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteSTL(&buf, mesh))
	assert.Equal(t, stlHeaderSize+4+stlFacetSize*len(mesh.Triangles), buf.Len())

	got, err := ReadSTL(&buf)
	require.NoError(t, err)
	require.Len(t, got.Triangles, len(mesh.Triangles))
	for i := range mesh.Triangles {
		assertVecInDelta(t, mesh.Triangles[i].A, got.Triangles[i].A, 1e-5)
		assertVecInDelta(t, mesh.Triangles[i].Normal, got.Triangles[i].Normal, 1e-5)
	}
}

func TestReadSTL_Truncated(t *testing.T) {
	_, err := ReadSTL(bytes.NewReader(make([]byte, 10)))
	assert.Error(t, err)
}

func TestSTEPRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		params models.ShapeParameters
	}{
		{"box", models.NewBox(3, 4, 5, models.Vec3{30, 45, 60})},
		{"cylinder", models.NewCylinder(7, 20, models.Vec3{0, 90, 0})},
		{"sphere", models.NewSphere(2.5, models.Vec3{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want, err := BuildSolid(tt.params)
			require.NoError(t, err)

			var buf bytes.Buffer
			require.NoError(t, WriteSTEP(&buf, want, "shape_0", time.Unix(0, 0)))
			assert.Contains(t, buf.String(), "FILE_SCHEMA(('GEOMETRIC_MODEL_SCHEMA'));")

			got, err := ReadSTEP(&buf)
			require.NoError(t, err)
			assert.Equal(t, want.Kind, got.Kind)
			assert.InDelta(t, want.Width, got.Width, 1e-9)
			assert.InDelta(t, want.Depth, got.Depth, 1e-9)
			assert.InDelta(t, want.Height, got.Height, 1e-9)
			assert.InDelta(t, want.Radius, got.Radius, 1e-9)
			for j := 0; j < 3; j++ {
				assertVecInDelta(t, want.Orientation.Column(j), got.Orientation.Column(j), 1e-9)
			}
		})
	}
}

func TestReadSTEP_Unsupported(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"garbage", "hello world"},
		{"no primitive", "ISO-10303-21;\nDATA;\n#1=CARTESIAN_POINT('',(0.,0.,0.));\nENDSEC;\n"},
		{"broken instance", "ISO-10303-21;\nDATA;\n#1=BLOCK('',#2,1.,2.\nENDSEC;\n"},
		{"missing placement", "ISO-10303-21;\nDATA;\n#1=BLOCK('',#9,1.,2.,3.);\nENDSEC;\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadSTEP(bytes.NewBufferString(tt.input))
			assert.ErrorIs(t, err, ErrUnsupportedSolid)
		})
	}
}

func TestReadSTEP_ForeignFormatting(t *testing.T) {
	// Hand-written file with whitespace, typed parameters and a null ref direction.
	input := `ISO-10303-21;
HEADER;
FILE_SCHEMA(('GEOMETRIC_MODEL_SCHEMA'));
ENDSEC;
DATA;
#10 = CARTESIAN_POINT ( 'it''s', ( 0., 0., -4. ) ) ;
#11 = DIRECTION ( '', ( 0., 0., 1. ) ) ;
#12 = AXIS2_PLACEMENT_3D ( '', #10, #11, $ ) ;
#13 = RIGHT_CIRCULAR_CYLINDER ( '', #12, LENGTH_MEASURE(8.), 1.5E0 ) ;
ENDSEC;
END-ISO-10303-21;
`
	got, err := ReadSTEP(bytes.NewBufferString(input))
	require.NoError(t, err)
	assert.Equal(t, models.ShapeCylinder, got.Kind)
	assert.Equal(t, 8.0, got.Height)
	assert.Equal(t, 1.5, got.Radius)
	assert.Equal(t, Identity(), got.Orientation)
}

func TestNativeKernel_Files(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	k := NewNativeKernel(nil)

	solid, err := k.Build(ctx, models.NewBox(10, 10, 10, models.Vec3{}))
	require.NoError(t, err)

	stlPath := filepath.Join(dir, "out.stl")
	require.NoError(t, k.ExportMesh(ctx, solid, stlPath, DefaultTolerance))
	info, err := os.Stat(stlPath)
	require.NoError(t, err)
	assert.Equal(t, int64(stlHeaderSize+4+12*stlFacetSize), info.Size())

	stepPath := filepath.Join(dir, "shape_0.step")
	require.NoError(t, k.ExportSolid(ctx, solid, stepPath))
	data, err := os.ReadFile(stepPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "CSG_SOLID('shape_0',")

	back, err := k.ImportSolid(ctx, stepPath)
	require.NoError(t, err)
	assert.Equal(t, models.ShapeBox, back.Kind)
}

func TestNativeKernel_ExportFailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	k := NewNativeKernel(nil)
	path := filepath.Join(dir, "bad.step")

	err := k.ExportSolid(context.Background(), &Solid{Kind: "cone", Orientation: Identity()}, path)
	assert.ErrorIs(t, err, ErrUnsupportedSolid)
	assert.NoFileExists(t, path)
}

func TestNativeKernel_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewNativeKernel(nil).Build(ctx, models.NewSphere(1, models.Vec3{}))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNativeKernel_ImportMissing(t *testing.T) {
	_, err := NewNativeKernel(nil).ImportSolid(context.Background(), filepath.Join(t.TempDir(), "nope.step"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
