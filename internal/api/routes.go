// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/promptcad/backend/internal/interpreter"
	"github.com/promptcad/backend/internal/kernel"
	"github.com/promptcad/backend/internal/storage"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Interpreter *interpreter.Interpreter
	Kernel      kernel.Kernel
	KernelName  string
	Store       storage.Store
	Previews    PreviewManager
	Catalog     Catalog
	ScratchDir  string
	Metrics     Recorder
	Gatherer    prometheus.Gatherer
	Logger      *zap.Logger
	Version     string
}

// Handlers holds all handler instances
type Handlers struct {
	Health   HealthHandler
	Generate GenerateHandler
	Project  ProjectHandler
	Library  LibraryHandler
	metrics  http.Handler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	h := &Handlers{
		Health:   NewHealthHandler(deps.Version, deps.KernelName),
		Generate: NewGenerateHandler(deps.Interpreter, deps.Previews, deps.Metrics, deps.Logger),
		Project:  NewProjectHandler(deps.Store, deps.Kernel, deps.ScratchDir, deps.Metrics, deps.Logger),
		Library:  NewLibraryHandler(deps.Catalog, deps.Metrics, deps.Logger),
	}
	if deps.Gatherer != nil {
		h.metrics = promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})
	}
	return h
}

// RegisterRoutes registers all API routes with the Echo instance.
// generateLimit wraps the endpoints that run the kernel on request.
func RegisterRoutes(e *echo.Echo, handlers *Handlers, generateLimit echo.MiddlewareFunc) {
	if generateLimit == nil {
		generateLimit = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	e.GET("/health", handlers.Health.HandleHealth)
	if handlers.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(handlers.metrics))
	}

	// Previews
	e.POST("/generate", handlers.Generate.HandleGenerate, generateLimit)
	e.POST("/generate_from_params", handlers.Generate.HandleGenerateFromParams, generateLimit)
	e.GET("/download/stl", handlers.Generate.HandleDownloadLatest)
	e.GET("/download/stl/:id", handlers.Generate.HandleDownloadPreview)

	// Projects
	e.GET("/projects/list", handlers.Project.HandleListProjects)
	e.POST("/project/save", handlers.Project.HandleSaveProject, generateLimit)
	e.POST("/project/load", handlers.Project.HandleLoadProject)
	e.GET("/project/:name/shapes/:index/stl", handlers.Project.HandleShapeMesh)

	// Library
	libraryGroup := e.Group("/library")
	libraryGroup.GET("/shapes", handlers.Library.HandleListLibrary)
	libraryGroup.GET("/shapes/:filename", handlers.Library.HandleFetchLibraryShape, generateLimit)
}

// MiddlewareConfig carries the settings SetupMiddleware needs.
type MiddlewareConfig struct {
	AllowOrigin      string
	BodyLimit        string
	EnableGzip       bool
	GzipLevel        int
	EnableRequestLog bool
	Logger           *zap.Logger
	HTTPMetrics      HTTPRecorder
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg MiddlewareConfig) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	e.HTTPErrorHandler = ErrorHandler(logger)

	e.Use(middleware.RequestID())
	if cfg.HTTPMetrics != nil {
		e.Use(Metrics(cfg.HTTPMetrics))
	}
	if cfg.EnableRequestLog {
		e.Use(RequestLogger(logger))
	}
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error("panic recovered", zap.Error(err), zap.ByteString("stack", stack))
			return err
		},
	}))

	if cfg.EnableGzip {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Level: cfg.GzipLevel,
			Skipper: func(c echo.Context) bool {
				return strings.HasPrefix(c.Request().URL.Path, "/metrics")
			},
		}))
	}

	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	origin := cfg.AllowOrigin
	if origin == "" {
		origin = "http://localhost:5173"
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{origin},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		AllowCredentials: true,
	}))
}
