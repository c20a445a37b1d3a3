// handlers_generate.go - Prompt and parameter driven preview handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/promptcad/backend/internal/interpreter"
	"github.com/promptcad/backend/internal/models"
)

// GenerateHandlerImpl implements the GenerateHandler interface
type GenerateHandlerImpl struct {
	interp   *interpreter.Interpreter
	previews PreviewManager
	metrics  Recorder
	logger   *zap.Logger
}

// NewGenerateHandler creates a new generate handler
func NewGenerateHandler(interp *interpreter.Interpreter, previews PreviewManager, metrics Recorder, logger *zap.Logger) GenerateHandler {
	if interp == nil {
		interp = interpreter.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerateHandlerImpl{
		interp:   interp,
		previews: previews,
		metrics:  recorderOrNop(metrics),
		logger:   logger,
	}
}

type generateRequest struct {
	Prompt *string `json:"prompt"`
}

type generateResponse struct {
	Success   bool                   `json:"success"`
	Params    models.ShapeParameters `json:"params"`
	FileURL   string                 `json:"file_url"`
	PreviewID string                 `json:"preview_id"`
}

// HandleGenerate interprets a prompt and renders a preview mesh
func (h *GenerateHandlerImpl) HandleGenerate(c echo.Context) error {
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.Prompt == nil {
		return NewValidationError("prompt")
	}

	params := h.interp.Interpret(*req.Prompt)
	h.logger.Debug("prompt interpreted",
		zap.String("prompt", *req.Prompt),
		zap.String("shape", string(params.Shape)))

	return h.render(c, params, "prompt")
}

// HandleGenerateFromParams renders a preview from explicit parameters
func (h *GenerateHandlerImpl) HandleGenerateFromParams(c echo.Context) error {
	var params models.ShapeParameters
	if err := c.Bind(&params); err != nil {
		return NewBadRequestError("invalid shape parameters", err)
	}
	if err := params.Validate(); err != nil {
		return NewBadRequestError("invalid shape parameters", err)
	}
	return h.render(c, params, "params")
}

func (h *GenerateHandlerImpl) render(c echo.Context, params models.ShapeParameters, source string) error {
	p, err := h.previews.Create(c.Request().Context(), params)
	if err != nil {
		return FromDomainError("failed to generate shape", err)
	}
	h.metrics.RecordShapeGenerated(string(params.Shape), source)

	return c.JSON(http.StatusOK, generateResponse{
		Success:   true,
		Params:    params,
		FileURL:   "/download/stl/" + p.ID,
		PreviewID: p.ID,
	})
}

// HandleDownloadLatest serves the most recent preview
func (h *GenerateHandlerImpl) HandleDownloadLatest(c echo.Context) error {
	p, err := h.previews.Latest()
	if err != nil {
		return NewNotFoundError("preview", "latest", err)
	}
	return sendSTL(c, p.Path, "shape.stl")
}

// HandleDownloadPreview serves one preview by id
func (h *GenerateHandlerImpl) HandleDownloadPreview(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}
	p, err := h.previews.Get(id)
	if err != nil {
		return NewNotFoundError("preview", id, err)
	}
	return sendSTL(c, p.Path, "shape.stl")
}

func sendSTL(c echo.Context, path, filename string) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMEOctetStream)
	return c.Attachment(path, filename)
}
