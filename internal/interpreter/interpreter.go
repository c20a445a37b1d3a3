// Package interpreter turns free-text prompts into shape parameters.
//
// Interpretation is keyword driven: the prompt is lowercased and split on
// whitespace, each value keyword takes the number that immediately follows it,
// and anything missing or unparsable falls back to a default. Interpretation
// never fails.
package interpreter

import (
	"math"
	"strconv"
	"strings"

	"github.com/promptcad/backend/internal/models"
)

// Interpreter maps prompts to shape parameters using a Vocabulary.
type Interpreter struct {
	vocab *Vocabulary
}

var defaultInterpreter = &Interpreter{vocab: DefaultVocabulary()}

// New creates an interpreter for a custom vocabulary.
func New(vocab *Vocabulary) (*Interpreter, error) {
	if err := vocab.validate(); err != nil {
		return nil, err
	}
	return &Interpreter{vocab: vocab}, nil
}

// Default returns the interpreter for the built-in vocabulary.
func Default() *Interpreter {
	return defaultInterpreter
}

// Interpret interprets prompt with the built-in vocabulary.
func Interpret(prompt string) models.ShapeParameters {
	return defaultInterpreter.Interpret(prompt)
}

// Interpret returns a complete, defaulted shape record for prompt.
func (in *Interpreter) Interpret(prompt string) models.ShapeParameters {
	text := strings.ToLower(prompt)
	tokens := strings.Fields(text)

	value := func(keyword string) float64 {
		return lookup(tokens, keyword, in.vocab.Defaults[keyword])
	}

	rotation := models.Vec3{
		value(in.vocab.Rotation.X),
		value(in.vocab.Rotation.Y),
		value(in.vocab.Rotation.Z),
	}
	for _, rule := range in.vocab.Orientation {
		if containsAny(text, rule.Words) {
			rotation[axisIndex(rule.Axis)] = rule.Degrees
		}
	}

	switch in.kind(text) {
	case models.ShapeCylinder:
		return models.NewCylinder(value("radius"), value("height"), rotation)
	case models.ShapeSphere:
		return models.NewSphere(value("radius"), rotation)
	default:
		return models.NewBox(value("width"), value("depth"), value("height"), rotation)
	}
}

// kind picks the first shape keyword contained in text, in priority order.
func (in *Interpreter) kind(text string) models.ShapeKind {
	for _, k := range in.vocab.Shapes {
		if strings.Contains(text, string(k)) {
			return k
		}
	}
	return in.vocab.Fallback
}

// lookup returns the number following the first occurrence of keyword, or def.
func lookup(tokens []string, keyword string, def float64) float64 {
	for i, tok := range tokens {
		if tok != keyword {
			continue
		}
		if i+1 >= len(tokens) {
			return def
		}
		v, err := strconv.ParseFloat(tokens[i+1], 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return def
		}
		return v
	}
	return def
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
