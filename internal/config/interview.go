package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/ai-mock-interview/internal/feedback"
)

//go:embed interview_default.yaml
var defaultInterviewYAML []byte

// Persona is a panel interviewer the model role-plays.
type Persona struct {
	Name  string `yaml:"name" validate:"required"`
	Role  string `yaml:"role" validate:"required"`
	Style string `yaml:"style" validate:"required"`
}

// InterviewContent is the editable interview material: question bank,
// panel personas and the scorer tuning.
type InterviewContent struct {
	Questions      []string                  `yaml:"questions" validate:"min=1,dive,required"`
	DefaultPersona string                    `yaml:"default_persona" validate:"required"`
	Personas       map[string]Persona        `yaml:"personas" validate:"min=1,dive"`
	Scorer         feedback.Config           `yaml:"scorer"`
	Improvements   feedback.ImprovementRules `yaml:"improvements"`
}

// Persona returns the named persona, falling back to the default one.
func (c InterviewContent) Persona(key string) (string, Persona) {
	key = strings.ToLower(strings.TrimSpace(key))
	if p, ok := c.Personas[key]; ok {
		return key, p
	}
	return c.DefaultPersona, c.Personas[c.DefaultPersona]
}

// LoadInterviewContent reads the interview YAML at path. Fields missing from
// the file keep their embedded defaults; a missing file yields the defaults.
func LoadInterviewContent(path string) (InterviewContent, error) {
	content, err := DefaultInterviewContent()
	if err != nil {
		return InterviewContent{}, err
	}
	if strings.TrimSpace(path) == "" {
		return content, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return InterviewContent{}, fmt.Errorf("op=config.LoadInterviewContent: %w", err)
	}
	// #nosec G304 -- path comes from operator configuration
	b, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return content, nil
		}
		return InterviewContent{}, fmt.Errorf("op=config.LoadInterviewContent: %w", err)
	}
	if err := decodeInterview(b, &content); err != nil {
		return InterviewContent{}, fmt.Errorf("op=config.LoadInterviewContent: %s: %w", abs, err)
	}
	return content, nil
}

// DefaultInterviewContent returns the embedded interview material.
func DefaultInterviewContent() (InterviewContent, error) {
	content := InterviewContent{
		Scorer:       feedback.DefaultConfig(),
		Improvements: feedback.DefaultImprovementRules(),
	}
	if err := decodeInterview(defaultInterviewYAML, &content); err != nil {
		return InterviewContent{}, fmt.Errorf("op=config.DefaultInterviewContent: %w", err)
	}
	return content, nil
}

var contentValidator = validator.New()

func decodeInterview(b []byte, into *InterviewContent) error {
	if err := yaml.Unmarshal(b, into); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	into.DefaultPersona = strings.ToLower(into.DefaultPersona)
	if err := contentValidator.Struct(into); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	if _, ok := into.Personas[into.DefaultPersona]; !ok {
		return fmt.Errorf("default persona %q is not defined", into.DefaultPersona)
	}
	if err := into.Scorer.Validate(); err != nil {
		return fmt.Errorf("scorer: %w", err)
	}
	return nil
}

// ApplyOverrides folds environment overrides into the content.
func (c Config) ApplyOverrides(content *InterviewContent) error {
	if c.ScorerMatching == "" {
		return nil
	}
	content.Scorer.Matching = feedback.MatchMode(strings.ToLower(c.ScorerMatching))
	return content.Scorer.Validate()
}
