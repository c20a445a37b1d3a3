// mock_kernel.go - Mock geometry kernel for testing
package testutil

import (
	"context"
	"os"
	"sync"

	"github.com/promptcad/backend/internal/kernel"
	"github.com/promptcad/backend/internal/models"
)

// MockKernel implements kernel.Kernel for testing. Operations delegate to a
// native kernel unless the matching error field is set.
type MockKernel struct {
	mu     sync.Mutex
	native *kernel.NativeKernel

	BuildErr       error
	ExportMeshErr  error
	ExportSolidErr error
	ImportErr      error

	// FailExportAt makes ExportSolid fail on the n-th call (1-based). Zero disables it.
	FailExportAt int

	calls       map[string]int
	exportCalls int
}

// NewMockKernel creates a mock kernel backed by the native implementation.
func NewMockKernel() *MockKernel {
	return &MockKernel{
		native: kernel.NewNativeKernel(nil),
		calls:  make(map[string]int),
	}
}

func (m *MockKernel) record(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[op]++
}

// Calls returns how many times op was invoked.
func (m *MockKernel) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *MockKernel) Build(ctx context.Context, params models.ShapeParameters) (*kernel.Solid, error) {
	m.record("build")
	if m.BuildErr != nil {
		return nil, m.BuildErr
	}
	return m.native.Build(ctx, params)
}

func (m *MockKernel) ExportMesh(ctx context.Context, solid *kernel.Solid, path string, tol kernel.Tolerance) error {
	m.record("export_mesh")
	if m.ExportMeshErr != nil {
		return m.ExportMeshErr
	}
	return m.native.ExportMesh(ctx, solid, path, tol)
}

func (m *MockKernel) ExportSolid(ctx context.Context, solid *kernel.Solid, path string) error {
	m.record("export_solid")
	m.mu.Lock()
	m.exportCalls++
	failNow := m.FailExportAt > 0 && m.exportCalls == m.FailExportAt
	m.mu.Unlock()

	if m.ExportSolidErr != nil && (m.FailExportAt == 0 || failNow) {
		return m.ExportSolidErr
	}
	return m.native.ExportSolid(ctx, solid, path)
}

func (m *MockKernel) ImportSolid(ctx context.Context, path string) (*kernel.Solid, error) {
	m.record("import_solid")
	if m.ImportErr != nil {
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
		return nil, m.ImportErr
	}
	return m.native.ImportSolid(ctx, path)
}
