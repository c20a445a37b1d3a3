// handlers_library.go - Library catalog handlers
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/promptcad/backend/internal/library"
)

// LibraryHandlerImpl implements the LibraryHandler interface
type LibraryHandlerImpl struct {
	catalog Catalog
	metrics Recorder
	logger  *zap.Logger
}

// NewLibraryHandler creates a new library handler
func NewLibraryHandler(catalog Catalog, metrics Recorder, logger *zap.Logger) LibraryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LibraryHandlerImpl{catalog: catalog, metrics: recorderOrNop(metrics), logger: logger}
}

// HandleListLibrary lists the catalog
func (h *LibraryHandlerImpl) HandleListLibrary(c echo.Context) error {
	shapes, err := h.catalog.List()
	if err != nil {
		return NewInternalError("failed to list library", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"shapes": shapes,
	})
}

// HandleFetchLibraryShape returns a catalog entry as a coarse STL mesh
func (h *LibraryHandlerImpl) HandleFetchLibraryShape(c echo.Context) error {
	filename := c.Param("filename")

	conv, err := h.catalog.Fetch(c.Request().Context(), filename)
	if err != nil {
		h.metrics.RecordLibraryFetch("error")
		switch {
		case errors.Is(err, library.ErrInvalidFilename):
			return NewBadRequestError("Invalid filename", err)
		case errors.Is(err, library.ErrWrongExtension):
			return NewBadRequestError("Only .step files are supported", err)
		case errors.Is(err, library.ErrNotFound):
			return NewNotFoundError("library shape", filename, err)
		default:
			return NewInternalError(fmt.Sprintf("Error converting shape: %v", err), err)
		}
	}
	h.metrics.RecordLibraryFetch("ok")

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", conv.Filename))
	return c.Blob(http.StatusOK, echo.MIMEOctetStream, conv.Data)
}
