package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/promptcad/backend/internal/api"
	"github.com/promptcad/backend/internal/config"
	"github.com/promptcad/backend/internal/interpreter"
	"github.com/promptcad/backend/internal/kernel"
	"github.com/promptcad/backend/internal/library"
	"github.com/promptcad/backend/internal/logging"
	"github.com/promptcad/backend/internal/metrics"
	"github.com/promptcad/backend/internal/preview"
	"github.com/promptcad/backend/internal/storage"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath, err := resolveConfigPath()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		os.Exit(1)
	}

	// Load XML configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Ensure all data directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Advanced.LogLevel, cfg.Advanced.LogFormat)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, configPath, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

// resolveConfigPath prefers PROMPTCAD_CONFIG and falls back to the
// executable's directory.
func resolveConfigPath() (string, error) {
	if p := os.Getenv("PROMPTCAD_CONFIG"); p != "" {
		return filepath.Abs(p)
	}
	exePath, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(exePath), config.FileName), nil
}

func run(cfg *config.AppConfig, configPath string, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Metrics
	registry := metrics.NewRegistry()
	collector := metrics.NewCollector(cfg.Advanced.MetricsNamespace, registry, logger)

	// Geometry kernel
	k, err := kernel.GetGlobalRegistry().New(kernel.Options{
		Name:    cfg.Kernel.Name,
		Command: cfg.Kernel.Command,
		Args:    cfg.KernelArgs(),
		Timeout: cfg.KernelTimeout(),
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize kernel: %w", err)
	}
	k = kernel.WithMetrics(k, collector)

	// Prompt interpreter
	interp := interpreter.Default()
	if cfg.Advanced.VocabularyFile != "" {
		vocab, err := interpreter.LoadVocabularyFile(cfg.Advanced.VocabularyFile)
		if err != nil {
			return fmt.Errorf("failed to load vocabulary: %w", err)
		}
		if interp, err = interpreter.New(vocab); err != nil {
			return fmt.Errorf("failed to build interpreter: %w", err)
		}
		logger.Info("custom vocabulary loaded", zap.String("path", cfg.Advanced.VocabularyFile))
	}

	// Storage
	store, err := storage.NewLocalStore(cfg.GetProjectsDir(), k, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize project store: %w", err)
	}

	previews, err := preview.NewManager(cfg.GetOutputDir(), k, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize previews: %w", err)
	}
	previews.StartCleanup(ctx,
		time.Duration(cfg.Preview.CleanupIntervalMinutes)*time.Minute,
		time.Duration(cfg.Preview.RetentionMinutes)*time.Minute)

	catalog := library.NewCatalog(cfg.GetLibraryDir(), cfg.GetOutputDir(), k, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	api.SetupMiddleware(e, api.MiddlewareConfig{
		AllowOrigin:      cfg.Server.AllowOrigin,
		BodyLimit:        cfg.Server.BodyLimit,
		EnableGzip:       cfg.Server.EnableCompression,
		GzipLevel:        cfg.Server.CompressionLevel,
		EnableRequestLog: cfg.Advanced.EnableRequestLogging,
		Logger:           logger,
		HTTPMetrics:      collector,
	})

	handlers := api.NewHandlers(&api.Dependencies{
		Interpreter: interp,
		Kernel:      k,
		KernelName:  cfg.Kernel.Name,
		Store:       store,
		Previews:    previews,
		Catalog:     catalog,
		ScratchDir:  cfg.GetOutputDir(),
		Metrics:     collector,
		Gatherer:    registry,
		Logger:      logger,
		Version:     Version,
	})
	api.RegisterRoutes(e, handlers, api.RateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst))

	// Configure server with settings from XML config
	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	printBanner(cfg, configPath)

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.StartServer(s)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func printBanner(cfg *config.AppConfig, configPath string) {
	kernelName := cfg.Kernel.Name
	if kernelName == "" {
		kernelName = "native"
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           PromptCAD Server                                ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Kernel:     %-45s║\n", kernelName)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Projects:  %-46s║\n", cfg.GetProjectsDir())
	fmt.Printf("║  Library:   %-46s║\n", cfg.GetLibraryDir())
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
}
