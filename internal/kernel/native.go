package kernel

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/promptcad/backend/internal/models"
)

// NativeKernel is the pure Go kernel. It writes binary STL meshes and
// CSG-primitive STEP files.
type NativeKernel struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewNativeKernel creates a native kernel. A nil logger disables logging.
func NewNativeKernel(logger *zap.Logger) *NativeKernel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NativeKernel{logger: logger, now: time.Now}
}

func (k *NativeKernel) Name() string {
	return "native"
}

func (k *NativeKernel) Build(ctx context.Context, params models.ShapeParameters) (*Solid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return BuildSolid(params)
}

func (k *NativeKernel) ExportMesh(ctx context.Context, solid *Solid, path string, tol Tolerance) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mesh, err := Tessellate(solid, tol)
	if err != nil {
		return err
	}
	k.logger.Debug("exporting mesh",
		zap.String("path", path),
		zap.String("kind", string(solid.Kind)),
		zap.Int("triangles", len(mesh.Triangles)))

	return writeFile(path, func(w io.Writer) error {
		return WriteSTL(w, mesh)
	})
}

func (k *NativeKernel) ExportSolid(ctx context.Context, solid *Solid, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return writeFile(path, func(w io.Writer) error {
		return WriteSTEP(w, solid, name, k.now())
	})
}

func (k *NativeKernel) ImportSolid(ctx context.Context, path string) (*Solid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	solid, err := ReadSTEP(f)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", filepath.Base(path), err)
	}
	return solid, nil
}

// writeFile creates path, runs fn and removes the partial file on failure.
func writeFile(path string, fn func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(path)
		}
	}()
	return fn(f)
}
