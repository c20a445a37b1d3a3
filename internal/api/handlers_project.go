// handlers_project.go - Project persistence handlers
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/promptcad/backend/internal/kernel"
	"github.com/promptcad/backend/internal/models"
	"github.com/promptcad/backend/internal/storage"
)

const mimeMsgpack = "application/msgpack"

// ProjectHandlerImpl implements the ProjectHandler interface
type ProjectHandlerImpl struct {
	store      storage.Store
	kernel     kernel.Kernel
	scratchDir string
	metrics    Recorder
	logger     *zap.Logger
}

// NewProjectHandler creates a new project handler. The kernel and scratch
// directory serve the per-shape mesh endpoint.
func NewProjectHandler(store storage.Store, k kernel.Kernel, scratchDir string, metrics Recorder, logger *zap.Logger) ProjectHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProjectHandlerImpl{
		store:      store,
		kernel:     k,
		scratchDir: scratchDir,
		metrics:    recorderOrNop(metrics),
		logger:     logger,
	}
}

// HandleListProjects returns the saved project names
func (h *ProjectHandlerImpl) HandleListProjects(c echo.Context) error {
	names, err := h.store.List()
	if err != nil {
		return NewInternalError("failed to list projects", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"projects": names,
	})
}

// HandleSaveProject persists a project and its shape files
func (h *ProjectHandlerImpl) HandleSaveProject(c echo.Context) error {
	var project models.ProjectFile
	if err := c.Bind(&project); err != nil {
		return NewBadRequestError("invalid project", err)
	}
	if project.Name == "" {
		return NewValidationError("name")
	}

	path, err := h.store.Save(c.Request().Context(), project)
	if err != nil {
		h.metrics.RecordProjectSave("error")
		return FromDomainError("failed to save project", err)
	}
	h.metrics.RecordProjectSave("ok")

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"path":    path,
	})
}

type loadResponse struct {
	Success bool                `json:"success" msgpack:"success"`
	Shapes  []models.ShapeEntry `json:"shapes" msgpack:"shapes"`
}

// HandleLoadProject returns the stored shapes of a project. Clients sending
// Accept: application/msgpack receive MessagePack.
func (h *ProjectHandlerImpl) HandleLoadProject(c echo.Context) error {
	name := c.QueryParam("project_name")
	if name == "" {
		return NewValidationError("project_name")
	}

	project, err := h.store.Load(name)
	if err != nil {
		return FromDomainError(fmt.Sprintf("project not found: %s", name), err)
	}

	resp := loadResponse{Success: true, Shapes: project.Shapes}
	if strings.Contains(c.Request().Header.Get(echo.HeaderAccept), mimeMsgpack) {
		data, err := msgpack.Marshal(resp)
		if err != nil {
			return NewInternalError("failed to encode msgpack", err)
		}
		return c.Blob(http.StatusOK, mimeMsgpack, data)
	}
	return c.JSON(http.StatusOK, resp)
}

// HandleShapeMesh converts one saved shape file to STL
func (h *ProjectHandlerImpl) HandleShapeMesh(c echo.Context) error {
	name := c.Param("name")
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return NewBadRequestError("shape index must be an integer", err)
	}

	solidPath, err := h.store.SolidPath(name, index)
	if err != nil {
		return FromDomainError(fmt.Sprintf("shape not found: %s/%d", name, index), err)
	}

	data, err := h.convert(c.Request().Context(), solidPath, fmt.Sprintf("project_%s_%d.stl", name, index))
	if err != nil {
		return NewInternalError("failed to convert shape", err)
	}
	return c.Blob(http.StatusOK, echo.MIMEOctetStream, data)
}

func (h *ProjectHandlerImpl) convert(ctx context.Context, solidPath, outName string) ([]byte, error) {
	if err := os.MkdirAll(h.scratchDir, 0755); err != nil {
		return nil, err
	}
	out, err := os.CreateTemp(h.scratchDir, "*-"+outName)
	if err != nil {
		return nil, err
	}
	out.Close()
	defer os.Remove(out.Name())

	solid, err := h.kernel.ImportSolid(ctx, solidPath)
	if err != nil {
		return nil, err
	}
	if err := h.kernel.ExportMesh(ctx, solid, out.Name(), kernel.DefaultTolerance); err != nil {
		return nil, err
	}
	h.logger.Debug("project shape converted", zap.String("solid", filepath.Base(solidPath)))
	return os.ReadFile(out.Name())
}
