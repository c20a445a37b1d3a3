// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/promptcad/backend/internal/library"
	"github.com/promptcad/backend/internal/models"
)

// GenerateHandler handles single-shape previews
type GenerateHandler interface {
	HandleGenerate(c echo.Context) error
	HandleGenerateFromParams(c echo.Context) error
	HandleDownloadLatest(c echo.Context) error
	HandleDownloadPreview(c echo.Context) error
}

// ProjectHandler handles project persistence
type ProjectHandler interface {
	HandleListProjects(c echo.Context) error
	HandleSaveProject(c echo.Context) error
	HandleLoadProject(c echo.Context) error
	HandleShapeMesh(c echo.Context) error
}

// LibraryHandler handles the read-only shape catalog
type LibraryHandler interface {
	HandleListLibrary(c echo.Context) error
	HandleFetchLibraryShape(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// PreviewManager defines what the generate handlers need from preview storage.
// This allows mocking in tests
type PreviewManager interface {
	Create(ctx context.Context, params models.ShapeParameters) (*models.Preview, error)
	Get(id string) (*models.Preview, error)
	Latest() (*models.Preview, error)
}

// Catalog defines what the library handlers need from the catalog
type Catalog interface {
	List() ([]models.LibraryShape, error)
	Fetch(ctx context.Context, filename string) (*library.Conversion, error)
}

// Recorder receives domain events for metrics. Nil disables recording.
type Recorder interface {
	RecordShapeGenerated(shape, source string)
	RecordProjectSave(status string)
	RecordLibraryFetch(status string)
}

type nopRecorder struct{}

func (nopRecorder) RecordShapeGenerated(string, string) {}
func (nopRecorder) RecordProjectSave(string)            {}
func (nopRecorder) RecordLibraryFetch(string)           {}

func recorderOrNop(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}
