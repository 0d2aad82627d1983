package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pavelanni/quizgen/internal/content"
	"github.com/pavelanni/quizgen/internal/llm"
	"github.com/pavelanni/quizgen/internal/llm/prompts"
	"github.com/pavelanni/quizgen/internal/model"
)

var (
	// ErrNotConfigured means no model credential is available.
	ErrNotConfigured = errors.New("model API key is not configured")
	// ErrInvalidRequest wraps request validation failures.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUpstreamTimeout means the model call hit its deadline.
	ErrUpstreamTimeout = errors.New("model call timed out")
	// ErrUpstreamModel means the model call failed for another reason.
	ErrUpstreamModel = errors.New("upstream model error")
	// ErrUnparseable means the model replied without extractable JSON.
	ErrUnparseable = errors.New("could not parse model output")
)

// Completer performs one chat completion and returns the reply as fragments.
type Completer interface {
	Complete(ctx context.Context, system, user string) ([]string, error)
}

// Generator runs the quiz generation pipeline.
type Generator struct {
	llm Completer
	cfg model.PipelineConfig
}

// NewGenerator creates a Generator. A nil Completer yields ErrNotConfigured
// from every Generate call.
func NewGenerator(c Completer, cfg model.PipelineConfig) *Generator {
	return &Generator{llm: c, cfg: cfg}
}

// Configured reports whether a model client is available.
func (g *Generator) Configured() bool {
	return g.llm != nil
}

// Model returns the configured model identifier.
func (g *Generator) Model() string {
	return g.cfg.Model
}

// ValidateRequest checks a request before any model call is made.
func ValidateRequest(req model.GenerateRequest) error {
	if strings.TrimSpace(req.LessonContent) == "" && strings.TrimSpace(req.QuizTitle) == "" {
		return fmt.Errorf("%w: lessonContent is required", ErrInvalidRequest)
	}
	switch {
	case req.Variant == "":
	case !prompts.IsValidVariant(req.Variant):
		return fmt.Errorf("%w: variant must be %q or %q, got %q",
			ErrInvalidRequest, prompts.VariantLesson, prompts.VariantOutline, req.Variant)
	case prompts.Variant(req.Variant) == prompts.VariantLesson && strings.TrimSpace(req.LessonContent) == "":
		return fmt.Errorf("%w: lessonContent is required for the lesson variant", ErrInvalidRequest)
	case prompts.Variant(req.Variant) == prompts.VariantOutline && strings.TrimSpace(req.QuizTitle) == "":
		return fmt.Errorf("%w: quizTitle is required for the outline variant", ErrInvalidRequest)
	}
	if n := req.Count(); n < 1 || n > model.MaxNumQuestions {
		return fmt.Errorf("%w: numQuestions must be between 1 and %d, got %d",
			ErrInvalidRequest, model.MaxNumQuestions, n)
	}
	return nil
}

// VariantFor picks the prompt variant a request is served with.
func VariantFor(req model.GenerateRequest) prompts.Variant {
	if prompts.IsValidVariant(req.Variant) {
		return prompts.Variant(req.Variant)
	}
	if strings.TrimSpace(req.LessonContent) == "" {
		return prompts.VariantOutline
	}
	return prompts.VariantLesson
}

// Generate runs the pipeline for req. Model failures never surface as
// errors: they produce a failed_with_fallback result whose questions
// array still has the requested length. The returned error is non-nil
// only for configuration, request and prompt rendering problems.
func (g *Generator) Generate(ctx context.Context, req model.GenerateRequest, labels model.Labels) (model.Result, error) {
	start := time.Now()
	if !g.Configured() {
		return model.Result{}, ErrNotConfigured
	}
	if err := ValidateRequest(req); err != nil {
		return model.Result{}, err
	}

	n := req.Count()
	variant := VariantFor(req)
	source := req.LessonContent
	if variant == prompts.VariantOutline {
		source = req.QuizDescription
	}
	optimized := content.Optimize(source, g.cfg.MaxContentLength)

	data := prompts.Data{
		Title:        req.QuizTitle,
		Language:     req.Language,
		NumQuestions: n,
		MaxPoints:    g.cfg.MaxPoints,
	}
	if variant == prompts.VariantOutline {
		data.Description = optimized
	} else {
		data.Content = optimized
	}
	prompt, err := prompts.Build(variant, data)
	if err != nil {
		return model.Result{}, fmt.Errorf("build prompt: %w", err)
	}

	res := model.Result{
		Status: model.StatusSucceeded,
		Diagnostics: model.Diagnostics{
			ContentLength:   utf8.RuneCountInString(source),
			OptimizedLength: utf8.RuneCountInString(optimized),
			PromptLength:    utf8.RuneCountInString(prompt),
			Model:           g.cfg.Model,
		},
	}
	slog.Debug("calling model",
		"variant", variant,
		"num_questions", n,
		"content_length", res.Diagnostics.ContentLength,
		"optimized_length", res.Diagnostics.OptimizedLength,
		"prompt_length", res.Diagnostics.PromptLength,
	)

	fragments, err := g.complete(ctx, prompt)
	if err != nil {
		return g.fallback(res, n, labels, start, err), nil
	}

	obj, err := llm.Parse(fragments...)
	if err != nil {
		return g.fallback(res, n, labels, start, fmt.Errorf("%w: %w", ErrUnparseable, err)), nil
	}

	questions := ValidateAndFix(llm.Questions(obj), g.cfg.MaxPoints, labels)
	if len(questions) != n {
		slog.Warn("question count mismatch", "valid", len(questions), "requested", n)
		res.Status = model.StatusFailedWithFallback
		res.Error = fmt.Sprintf("model returned %d valid questions, %d requested", len(questions), n)
		res.Diagnostics.ErrorDetails = res.Error
	}
	switch {
	case len(questions) > n:
		questions = questions[:n]
	case len(questions) < n:
		questions = append(questions, GenerateFallback(n, labels)[len(questions):]...)
	}
	res.Questions = questions
	res.Diagnostics.ProcessingTimeMs = time.Since(start).Milliseconds()
	return res, nil
}

// complete makes the single model call under the configured deadline.
func (g *Generator) complete(ctx context.Context, prompt string) ([]string, error) {
	callCtx := ctx
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	fragments, err := g.llm.Complete(callCtx, prompts.SystemPrompt, prompt)
	if err == nil {
		return fragments, nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %s: %w", ErrUpstreamTimeout, g.cfg.Timeout, err)
	}
	if code := llm.StatusCode(err); code != 0 {
		return nil, fmt.Errorf("%w (status %d): %w", ErrUpstreamModel, code, err)
	}
	return nil, fmt.Errorf("%w: %w", ErrUpstreamModel, err)
}

func (g *Generator) fallback(res model.Result, n int, labels model.Labels, start time.Time, cause error) model.Result {
	slog.Warn("quiz generation failed, returning fallback questions", "error", cause)
	res.Status = model.StatusFailedWithFallback
	res.Questions = GenerateFallback(n, labels)
	res.Error = summary(cause)
	res.Diagnostics.ErrorDetails = cause.Error()
	res.Diagnostics.ProcessingTimeMs = time.Since(start).Milliseconds()
	return res
}

// summary is the short error text returned to callers.
func summary(err error) string {
	switch {
	case errors.Is(err, ErrUpstreamTimeout):
		return ErrUpstreamTimeout.Error()
	case errors.Is(err, ErrUnparseable):
		return ErrUnparseable.Error()
	default:
		return err.Error()
	}
}
