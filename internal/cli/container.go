package cli

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/promptcad/backend/internal/config"
	"github.com/promptcad/backend/internal/interpreter"
	"github.com/promptcad/backend/internal/kernel"
	"github.com/promptcad/backend/internal/library"
	"github.com/promptcad/backend/internal/logging"
	"github.com/promptcad/backend/internal/storage"
)

// Container holds the services the commands operate on. It is built from the
// same XML configuration the server reads.
type Container struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	Kernel      kernel.Kernel
	Interpreter *interpreter.Interpreter
	Store       *storage.LocalStore
	Catalog     *library.Catalog
}

// BuildContainer loads opts.ConfigPath and wires the kernel, store and catalog.
// opts.Vocabulary replaces the configured vocabulary file when set.
func BuildContainer(opts Options) (*Container, error) {
	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.Vocabulary != "" {
		cfg.Advanced.VocabularyFile = opts.Vocabulary
	}

	logger := zap.NewNop()
	if opts.Verbose {
		if logger, err = logging.New("debug", "console"); err != nil {
			return nil, err
		}
	}

	k, err := kernel.GetGlobalRegistry().New(kernel.Options{
		Name:    cfg.Kernel.Name,
		Command: cfg.Kernel.Command,
		Args:    cfg.KernelArgs(),
		Timeout: cfg.KernelTimeout(),
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("kernel: %w", err)
	}

	interp := interpreter.Default()
	if cfg.Advanced.VocabularyFile != "" {
		vocab, err := interpreter.LoadVocabularyFile(cfg.Advanced.VocabularyFile)
		if err != nil {
			return nil, err
		}
		if interp, err = interpreter.New(vocab); err != nil {
			return nil, err
		}
	}

	store, err := storage.NewLocalStore(cfg.GetProjectsDir(), k, logger)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:      cfg,
		Logger:      logger,
		Kernel:      k,
		Interpreter: interp,
		Store:       store,
		Catalog:     library.NewCatalog(cfg.GetLibraryDir(), cfg.GetOutputDir(), k, logger),
	}, nil
}
