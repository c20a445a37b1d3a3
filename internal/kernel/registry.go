package kernel

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Options configures kernel construction.
type Options struct {
	Name    string
	Command string
	Args    []string
	Timeout time.Duration
	Logger  *zap.Logger
}

// Factory constructs a kernel from options.
type Factory func(opts Options) (Kernel, error)

// Registry maps kernel names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// Global registry instance
var globalRegistry = NewRegistry()

func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("native", func(opts Options) (Kernel, error) {
		return NewNativeKernel(opts.Logger), nil
	})
	r.Register("command", func(opts Options) (Kernel, error) {
		return NewCommandKernel(opts.Command, opts.Args, opts.Timeout, opts.Logger)
	})
	return r
}

// GetGlobalRegistry returns the singleton registry.
func GetGlobalRegistry() *Registry {
	return globalRegistry
}

// Register adds or replaces a factory.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(name)] = f
}

// Names lists the registered kernel names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the kernel named by opts.Name. An empty name selects native.
func (r *Registry) New(opts Options) (Kernel, error) {
	name := strings.ToLower(opts.Name)
	if name == "" {
		name = "native"
	}
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("kernel not found: %s", name)
	}
	return f(opts)
}
