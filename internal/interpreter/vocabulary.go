package interpreter

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"github.com/promptcad/backend/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed vocabulary.yaml
var defaultVocabulary []byte

// Vocabulary is the keyword table the interpreter matches prompts against.
type Vocabulary struct {
	Shapes      []models.ShapeKind `yaml:"shapes"`
	Fallback    models.ShapeKind   `yaml:"fallback"`
	Defaults    map[string]float64 `yaml:"defaults"`
	Rotation    RotationKeywords   `yaml:"rotation"`
	Orientation []OrientationRule  `yaml:"orientation"`
}

// RotationKeywords names the keyword carrying each axis angle.
type RotationKeywords struct {
	X string `yaml:"x"`
	Y string `yaml:"y"`
	Z string `yaml:"z"`
}

// OrientationRule pins Axis to Degrees when any of Words occurs in the prompt.
type OrientationRule struct {
	Words   []string `yaml:"words"`
	Axis    string   `yaml:"axis"`
	Degrees float64  `yaml:"degrees"`
}

// dimensionKeywords are the value keywords every vocabulary must define.
var dimensionKeywords = []string{"radius", "height", "width", "depth"}

// LoadVocabularyFile parses a YAML vocabulary file.
func LoadVocabularyFile(path string) (*Vocabulary, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return LoadVocabulary(file)
}

// LoadVocabulary parses and validates a vocabulary from an io.Reader.
func LoadVocabulary(r io.Reader) (*Vocabulary, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parsing vocabulary: %w", err)
	}
	if err := v.validate(); err != nil {
		return nil, err
	}
	return &v, nil
}

// DefaultVocabulary returns the built-in vocabulary.
func DefaultVocabulary() *Vocabulary {
	v, err := LoadVocabulary(bytes.NewReader(defaultVocabulary))
	if err != nil {
		panic(fmt.Sprintf("interpreter: built-in vocabulary is invalid: %v", err))
	}
	return v
}

func (v *Vocabulary) validate() error {
	if !v.Fallback.Known() {
		return fmt.Errorf("vocabulary: unknown fallback shape %q", v.Fallback)
	}
	for _, kind := range v.Shapes {
		if !kind.Known() {
			return fmt.Errorf("vocabulary: unknown shape %q", kind)
		}
	}

	for _, kw := range dimensionKeywords {
		if _, ok := v.Defaults[kw]; !ok {
			return fmt.Errorf("vocabulary: missing default for %q", kw)
		}
	}
	for _, kw := range []string{v.Rotation.X, v.Rotation.Y, v.Rotation.Z} {
		if kw == "" {
			return fmt.Errorf("vocabulary: rotation keywords must be set for every axis")
		}
	}

	for i, rule := range v.Orientation {
		if len(rule.Words) == 0 {
			return fmt.Errorf("vocabulary: orientation rule %d has no words", i)
		}
		if axisIndex(rule.Axis) < 0 {
			return fmt.Errorf("vocabulary: orientation rule %d has unknown axis %q", i, rule.Axis)
		}
	}
	return nil
}

func axisIndex(axis string) int {
	switch axis {
	case "x":
		return 0
	case "y":
		return 1
	case "z":
		return 2
	}
	return -1
}
