// Package library serves the read-only catalog of STEP files shipped with the
// service, converting them to coarse meshes on request.
package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/promptcad/backend/internal/kernel"
	"github.com/promptcad/backend/internal/models"
)

const solidExt = ".step"

var (
	ErrInvalidFilename  = errors.New("invalid filename")
	ErrNotFound         = errors.New("library shape not found")
	ErrWrongExtension   = errors.New("only .step files are supported")
	ErrConversionFailed = errors.New("conversion failed")
)

// Conversion is a catalog file rendered as STL.
type Conversion struct {
	Filename string
	Data     []byte
}

// Catalog lists and converts the files of one directory.
type Catalog struct {
	dir        string
	scratchDir string
	kernel     kernel.Kernel
	logger     *zap.Logger
	group      singleflight.Group
}

// NewCatalog creates a catalog over dir. Converted meshes are written to scratchDir.
func NewCatalog(dir, scratchDir string, k kernel.Kernel, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{dir: dir, scratchDir: scratchDir, kernel: k, logger: logger}
}

// List returns the catalog entries sorted by filename. The directory is
// created when absent.
func (c *Catalog) List() ([]models.LibraryShape, error) {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return nil, fmt.Errorf("creating library directory: %w", err)
	}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("reading library directory: %w", err)
	}

	shapes := []models.LibraryShape{}
	for _, e := range entries {
		if e.IsDir() || !hasSolidExt(e.Name()) {
			continue
		}
		shapes = append(shapes, models.LibraryShape{
			Filename:    e.Name(),
			DisplayName: DisplayName(e.Name()),
		})
	}
	sort.Slice(shapes, func(i, j int) bool {
		return shapes[i].Filename < shapes[j].Filename
	})
	return shapes, nil
}

// DisplayName turns "m3_hex_bolt.step" into "M3 Hex Bolt". A letter is
// upper-cased when it does not follow another letter; every other letter is
// lower-cased.
func DisplayName(filename string) string {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	stem = strings.ReplaceAll(stem, "_", " ")

	var b strings.Builder
	prevLetter := false
	for _, r := range stem {
		if unicode.IsLetter(r) {
			if prevLetter {
				r = unicode.ToLower(r)
			} else {
				r = unicode.ToTitle(r)
			}
			prevLetter = true
		} else {
			prevLetter = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Fetch converts filename to a coarse STL mesh. Concurrent requests for the
// same file share one conversion.
func (c *Catalog) Fetch(ctx context.Context, filename string) (*Conversion, error) {
	if err := checkFilename(filename); err != nil {
		return nil, err
	}

	path := filepath.Join(c.dir, filename)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, filename)
	}
	if !hasSolidExt(filename) {
		return nil, fmt.Errorf("%w: %s", ErrWrongExtension, filename)
	}

	v, err, shared := c.group.Do(filename, func() (any, error) {
		return c.convert(ctx, path, filename)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("library conversion shared", zap.String("file", filename))
	}
	return v.(*Conversion), nil
}

func (c *Catalog) convert(ctx context.Context, path, filename string) (*Conversion, error) {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	outName := "library_" + stem + ".stl"

	if err := os.MkdirAll(c.scratchDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}
	outPath := filepath.Join(c.scratchDir, outName)

	solid, err := c.kernel.ImportSolid(ctx, path)
	if err != nil {
		c.logger.Error("library import failed", zap.String("file", filename), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}
	if err := c.kernel.ExportMesh(ctx, solid, outPath, kernel.CoarseTolerance); err != nil {
		c.logger.Error("library mesh export failed", zap.String("file", filename), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}
	return &Conversion{Filename: outName, Data: data}, nil
}

func checkFilename(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	return nil
}

func hasSolidExt(name string) bool {
	return strings.EqualFold(filepath.Ext(name), solidExt)
}
