package library

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptcad/backend/internal/kernel"
	"github.com/promptcad/backend/internal/models"
	"github.com/promptcad/backend/internal/testutil"
)

func writeStep(t *testing.T, dir, name string, params models.ShapeParameters) {
	t.Helper()
	solid, err := kernel.BuildSolid(params)
	require.NoError(t, err)
	f, err := os.Create(filepath.Join(dir, name))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, kernel.WriteSTEP(f, solid, name, time.Now()))
}

func newTestCatalog(t *testing.T) (*Catalog, *testutil.MockKernel, string, string) {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "library")
	scratch := filepath.Join(root, "output")
	require.NoError(t, os.MkdirAll(dir, 0755))
	k := testutil.NewMockKernel()
	return NewCatalog(dir, scratch, k, nil), k, dir, scratch
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"calibration_cube.step", "Calibration Cube"},
		{"m3_hex_bolt.step", "M3 Hex Bolt"},
		{"GEAR_BIG.STEP", "Gear Big"},
		{"o'ring.step", "O'Ring"},
		{"plain.step", "Plain"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayName(tt.in))
		})
	}
}

func TestCatalog_List(t *testing.T) {
	c, _, dir, _ := newTestCatalog(t)
	writeStep(t, dir, "zed_block.step", models.NewBox(1, 1, 1, models.Vec3{}))
	writeStep(t, dir, "dowel_pin.STEP", models.NewCylinder(1, 8, models.Vec3{}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested.step"), 0755))

	shapes, err := c.List()
	require.NoError(t, err)
	assert.Equal(t, []models.LibraryShape{
		{Filename: "dowel_pin.STEP", DisplayName: "Dowel Pin"},
		{Filename: "zed_block.step", DisplayName: "Zed Block"},
	}, shapes)
}

func TestCatalog_ListCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing", "library")
	c := NewCatalog(dir, t.TempDir(), testutil.NewMockKernel(), nil)

	shapes, err := c.List()
	require.NoError(t, err)
	assert.Empty(t, shapes)
	assert.DirExists(t, dir)
}

func TestCatalog_FetchRejections(t *testing.T) {
	c, k, dir, _ := newTestCatalog(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("hi"), 0644))

	tests := []struct {
		name     string
		filename string
		want     error
	}{
		{"parent traversal", "../secret.step", ErrInvalidFilename},
		{"slash", "sub/part.step", ErrInvalidFilename},
		{"backslash", `sub\part.step`, ErrInvalidFilename},
		{"missing", "ghost.step", ErrNotFound},
		{"wrong extension", "readme.txt", ErrWrongExtension},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Fetch(context.Background(), tt.filename)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, 0, k.Calls("import_solid"))
}

func TestCatalog_Fetch(t *testing.T) {
	c, k, dir, scratch := newTestCatalog(t)
	writeStep(t, dir, "dowel_pin.step", models.NewCylinder(5, 20, models.Vec3{}))

	conv, err := c.Fetch(context.Background(), "dowel_pin.step")
	require.NoError(t, err)
	assert.Equal(t, "library_dowel_pin.stl", conv.Filename)
	assert.FileExists(t, filepath.Join(scratch, "library_dowel_pin.stl"))

	// Coarse tolerance: 7 segments, 4 triangles each.
	assert.Len(t, conv.Data, 80+4+50*4*7)
	assert.Equal(t, 1, k.Calls("import_solid"))
}

func TestCatalog_FetchConversionFailure(t *testing.T) {
	c, _, dir, _ := newTestCatalog(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.step"), []byte("not a step file"), 0644))

	_, err := c.Fetch(context.Background(), "broken.step")
	assert.ErrorIs(t, err, ErrConversionFailed)
	assert.Contains(t, err.Error(), "unsupported solid")
}

func TestCatalog_FetchConcurrent(t *testing.T) {
	c, _, dir, _ := newTestCatalog(t)
	writeStep(t, dir, "ball.step", models.NewSphere(3, models.Vec3{}))

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conv, err := c.Fetch(context.Background(), "ball.step")
			if assert.NoError(t, err) {
				assert.NotEmpty(t, conv.Data)
			}
		}()
	}
	wg.Wait()
}

func TestCatalog_ShippedLibrary(t *testing.T) {
	dir := filepath.Join("..", "..", "library")
	c := NewCatalog(dir, t.TempDir(), kernel.NewNativeKernel(nil), nil)

	shapes, err := c.List()
	require.NoError(t, err)
	require.NotEmpty(t, shapes)

	for _, s := range shapes {
		t.Run(s.Filename, func(t *testing.T) {
			conv, err := c.Fetch(context.Background(), s.Filename)
			require.NoError(t, err)
			require.Greater(t, len(conv.Data), 84)
			assert.Zero(t, (len(conv.Data)-84)%50, "whole facets only")
		})
	}
}
