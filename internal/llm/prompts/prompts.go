package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"text/template"
)

// SystemPrompt is sent as the system message of every quiz generation call.
const SystemPrompt = "You are a quiz generator for a language-learning platform. " +
	"You always reply with one valid JSON object and nothing else."

var markerRegex = regexp.MustCompile(`(?m)^-{3}\s*(CONTENT|END)\s*-{3}\s*$`)

// Variant selects the prompt template.
type Variant string

const (
	// VariantLesson builds questions from lesson content.
	VariantLesson Variant = "lesson"
	// VariantOutline builds questions from a quiz title and description.
	VariantOutline Variant = "outline"
)

var validVariants = map[Variant]bool{
	VariantLesson:  true,
	VariantOutline: true,
}

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	loadOnce  sync.Once
	loadErr   error
	templates *template.Template
)

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	return validVariants[Variant(v)]
}

// Data holds template data for quiz prompts.
type Data struct {
	Content      string
	Title        string
	Description  string
	Language     string
	NumQuestions int
	MaxPoints    int
}

func load() error {
	loadOnce.Do(func() {
		templates, loadErr = template.ParseFS(templateFS, "templates/*.tmpl")
		if loadErr != nil {
			loadErr = fmt.Errorf("parse prompt templates: %w", loadErr)
		}
	})
	return loadErr
}

// Build renders the prompt for the given variant.
func Build(variant Variant, data Data) (string, error) {
	if err := load(); err != nil {
		return "", err
	}
	if !validVariants[variant] {
		return "", errors.New("invalid prompt variant: " + string(variant))
	}
	if data.NumQuestions <= 0 {
		return "", fmt.Errorf("invalid question count %d", data.NumQuestions)
	}
	if data.MaxPoints <= 0 {
		data.MaxPoints = 1
	}

	data.Content = sanitize(data.Content)
	data.Title = strings.TrimSpace(data.Title)
	data.Description = sanitize(data.Description)
	data.Language = strings.TrimSpace(data.Language)

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, string(variant)+".tmpl", data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", variant, err)
	}
	return buf.String(), nil
}

// sanitize keeps user text from closing the content block early.
func sanitize(s string) string {
	s = markerRegex.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
