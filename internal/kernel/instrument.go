package kernel

import (
	"context"
	"time"

	"github.com/promptcad/backend/internal/models"
)

// Recorder receives the outcome of each kernel operation.
type Recorder interface {
	RecordKernelOperation(op, status string, d time.Duration)
}

type instrumented struct {
	Kernel
	rec Recorder
}

// WithMetrics wraps k so every operation is reported to rec.
func WithMetrics(k Kernel, rec Recorder) Kernel {
	if rec == nil {
		return k
	}
	return &instrumented{Kernel: k, rec: rec}
}

func (i *instrumented) observe(op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	i.rec.RecordKernelOperation(op, status, time.Since(start))
}

func (i *instrumented) Build(ctx context.Context, params models.ShapeParameters) (s *Solid, err error) {
	defer func(start time.Time) { i.observe("build", start, err) }(time.Now())
	return i.Kernel.Build(ctx, params)
}

func (i *instrumented) ExportMesh(ctx context.Context, solid *Solid, path string, tol Tolerance) (err error) {
	defer func(start time.Time) { i.observe("export_mesh", start, err) }(time.Now())
	return i.Kernel.ExportMesh(ctx, solid, path, tol)
}

func (i *instrumented) ExportSolid(ctx context.Context, solid *Solid, path string) (err error) {
	defer func(start time.Time) { i.observe("export_solid", start, err) }(time.Now())
	return i.Kernel.ExportSolid(ctx, solid, path)
}

func (i *instrumented) ImportSolid(ctx context.Context, path string) (s *Solid, err error) {
	defer func(start time.Time) { i.observe("import_solid", start, err) }(time.Now())
	return i.Kernel.ImportSolid(ctx, path)
}
