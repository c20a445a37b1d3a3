// Package preview keeps the per-request preview meshes produced by the
// generate endpoints. Every preview gets its own file so concurrent requests
// never share an output path.
package preview

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/promptcad/backend/internal/kernel"
	"github.com/promptcad/backend/internal/models"
)

// ErrNotFound is returned for unknown preview ids and before the first preview exists.
var ErrNotFound = errors.New("preview not found")

// Manager creates and tracks preview meshes.
type Manager struct {
	mu       sync.RWMutex
	previews map[string]*models.Preview
	latest   string

	dir    string
	kernel kernel.Kernel
	tol    kernel.Tolerance
	logger *zap.Logger
}

// NewManager creates a manager writing into <outputDir>/previews.
func NewManager(outputDir string, k kernel.Kernel, logger *zap.Logger) (*Manager, error) {
	dir := filepath.Join(outputDir, "previews")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating preview directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		previews: make(map[string]*models.Preview),
		dir:      dir,
		kernel:   k,
		tol:      kernel.DefaultTolerance,
		logger:   logger,
	}, nil
}

// Create builds params and writes the mesh under a fresh id.
func (m *Manager) Create(ctx context.Context, params models.ShapeParameters) (*models.Preview, error) {
	solid, err := m.kernel.Build(ctx, params)
	if err != nil {
		return nil, err
	}

	p := &models.Preview{
		ID:        uuid.New().String(),
		Params:    params,
		CreatedAt: time.Now(),
	}
	p.Path = filepath.Join(m.dir, p.ID+".stl")

	if err := m.kernel.ExportMesh(ctx, solid, p.Path, m.tol); err != nil {
		return nil, fmt.Errorf("exporting preview: %w", err)
	}

	m.mu.Lock()
	m.previews[p.ID] = p
	m.latest = p.ID
	m.mu.Unlock()

	m.logger.Debug("preview created", zap.String("id", p.ID), zap.String("shape", string(params.Shape)))
	return p, nil
}

// Get returns the preview with id.
func (m *Manager) Get(id string) (*models.Preview, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.previews[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p, nil
}

// Latest returns the most recently created preview.
func (m *Manager) Latest() (*models.Preview, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.previews[m.latest]
	if !ok {
		return nil, fmt.Errorf("%w: no preview generated yet", ErrNotFound)
	}
	return p, nil
}

// Cleanup removes previews older than maxAge. The latest preview is kept so
// the download endpoint keeps serving it. Returns the number removed.
func (m *Manager) Cleanup(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, p := range m.previews {
		if id == m.latest || !p.CreatedAt.Before(cutoff) {
			continue
		}
		if err := os.Remove(p.Path); err != nil && !os.IsNotExist(err) {
			m.logger.Warn("failed to remove preview", zap.String("id", id), zap.Error(err))
			continue
		}
		delete(m.previews, id)
		removed++
	}
	if removed > 0 {
		m.logger.Info("cleaned up previews", zap.Int("removed", removed))
	}
	return removed
}

// StartCleanup runs Cleanup every interval until ctx is done. A non-positive
// interval disables it.
func (m *Manager) StartCleanup(ctx context.Context, interval, maxAge time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Cleanup(maxAge)
			}
		}
	}()
}

// Count returns the number of tracked previews.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.previews)
}
