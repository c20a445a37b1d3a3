// Package storage persists projects as a directory per project holding a
// project.json metadata document and one STEP file per shape.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/promptcad/backend/internal/kernel"
	"github.com/promptcad/backend/internal/models"
)

const (
	metadataFile = "project.json"
	shapePrefix  = "shape_"
	shapeExt     = ".step"
)

var (
	ErrProjectNotFound    = errors.New("project not found")
	ErrInvalidProjectName = errors.New("invalid project name")
	ErrShapeNotFound      = errors.New("shape not found")
)

// Store defines the interface for project persistence.
type Store interface {
	List() ([]string, error)
	Save(ctx context.Context, project models.ProjectFile) (string, error)
	Load(name string) (*models.ProjectFile, error)
	SolidPath(name string, index int) (string, error)
}

// LocalStore implements Store on the local filesystem.
type LocalStore struct {
	root   string
	kernel kernel.Kernel
	logger *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocalStore creates a store rooted at root, creating the directory if needed.
func NewLocalStore(root string, k kernel.Kernel, logger *zap.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating projects directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalStore{
		root:   root,
		kernel: k,
		logger: logger,
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

// Root returns the projects directory.
func (s *LocalStore) Root() string {
	return s.root
}

// ValidateName rejects names that are not a single path segment.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidProjectName)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidProjectName, name)
	case strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidProjectName, name)
	}
	return nil
}

// ShapeFile is the solid filename for the shape at index.
func ShapeFile(index int) string {
	return shapePrefix + strconv.Itoa(index) + shapeExt
}

func (s *LocalStore) lock(name string) func() {
	s.mu.Lock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// List returns the names of subdirectories holding a metadata document, sorted.
func (s *LocalStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("reading projects directory: %w", err)
	}

	names := []string{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := os.Stat(filepath.Join(s.root, e.Name(), metadataFile))
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Save writes every shape as shape_<i>.step in input order, then the metadata
// document. Shape files left over from a longer previous save are removed.
func (s *LocalStore) Save(ctx context.Context, project models.ProjectFile) (string, error) {
	if err := ValidateName(project.Name); err != nil {
		return "", err
	}
	for i, shape := range project.Shapes {
		if err := shape.Params.Validate(); err != nil {
			return "", fmt.Errorf("shape %d: %w", i, err)
		}
	}

	unlock := s.lock(project.Name)
	defer unlock()

	dir := filepath.Join(s.root, project.Name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating project directory: %w", err)
	}

	doc := models.ProjectFile{Name: project.Name, Shapes: make([]models.ShapeEntry, len(project.Shapes))}
	for i, shape := range project.Shapes {
		solid, err := s.kernel.Build(ctx, shape.Params)
		if err != nil {
			return "", fmt.Errorf("shape %d: %w", i, err)
		}
		file := ShapeFile(i)
		if err := s.kernel.ExportSolid(ctx, solid, filepath.Join(dir, file)); err != nil {
			return "", fmt.Errorf("shape %d: %w", i, err)
		}
		shape.BrepFile = file
		doc.Shapes[i] = shape
	}
	updated := s.now().UTC()
	doc.UpdatedAt = &updated

	if err := writeJSONAtomic(filepath.Join(dir, metadataFile), doc); err != nil {
		return "", err
	}
	s.removeStale(dir, len(project.Shapes))

	s.logger.Info("project saved",
		zap.String("project", project.Name),
		zap.Int("shapes", len(project.Shapes)))
	return dir, nil
}

// removeStale deletes shape files with an index at or beyond count.
func (s *LocalStore) removeStale(dir string, count int) {
	matches, err := filepath.Glob(filepath.Join(dir, shapePrefix+"*"+shapeExt))
	if err != nil {
		return
	}
	for _, m := range matches {
		idx, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), shapePrefix), shapeExt))
		if err != nil || idx < count {
			continue
		}
		if err := os.Remove(m); err != nil {
			s.logger.Warn("failed to remove stale shape file", zap.String("path", m), zap.Error(err))
		}
	}
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding project: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".project-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing project: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing project: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing project: %w", err)
	}
	return nil
}

// Load returns the stored metadata verbatim. Solid files are not opened.
func (s *LocalStore) Load(name string) (*models.ProjectFile, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	unlock := s.lock(name)
	defer unlock()

	data, err := os.ReadFile(filepath.Join(s.root, name, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, name)
		}
		return nil, fmt.Errorf("reading project: %w", err)
	}

	var project models.ProjectFile
	if err := json.Unmarshal(data, &project); err != nil {
		return nil, fmt.Errorf("decoding project %s: %w", name, err)
	}
	if project.Shapes == nil {
		project.Shapes = []models.ShapeEntry{}
	}
	return &project, nil
}

// SolidPath resolves the solid file of the shape at index.
func (s *LocalStore) SolidPath(name string, index int) (string, error) {
	project, err := s.Load(name)
	if err != nil {
		return "", err
	}
	if index < 0 || index >= len(project.Shapes) {
		return "", fmt.Errorf("%w: %s has no shape %d", ErrShapeNotFound, name, index)
	}

	file := project.Shapes[index].BrepFile
	if file == "" || file != filepath.Base(file) {
		return "", fmt.Errorf("%w: %s shape %d has no solid file", ErrShapeNotFound, name, index)
	}
	path := filepath.Join(s.root, name, file)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %s", ErrShapeNotFound, file)
	}
	return path, nil
}
