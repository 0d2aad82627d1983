package model

import (
	"strings"
	"time"
)

// QuestionType is the kind of a generated quiz question.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionFillInBlank    QuestionType = "fill_in_blank"
)

// ParseQuestionType normalizes a question type as written by a model.
// Unknown or empty values map to multiple choice.
func ParseQuestionType(v string) QuestionType {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case "true_false", "true-false", "truefalse", "true/false", "boolean":
		return QuestionTrueFalse
	case "fill_in_blank", "fill-in-blank", "fill_in_the_blank", "fill-in-the-blank", "fillintheblank", "cloze":
		return QuestionFillInBlank
	default:
		return QuestionMultipleChoice
	}
}

// OptionCount returns how many options a question of this type must carry.
func (t QuestionType) OptionCount() int {
	if t == QuestionTrueFalse {
		return 2
	}
	return 4
}

// Status reports whether a generation used real model output.
type Status string

const (
	StatusSucceeded          Status = "succeeded"
	StatusFailedWithFallback Status = "failed_with_fallback"
)

// Option is one answer choice of a question.
type Option struct {
	OptionText string `json:"optionText"`
	IsCorrect  bool   `json:"isCorrect"`
}

// GeneratedQuestion is a quiz question ready to be stored and shown to students.
type GeneratedQuestion struct {
	QuestionText string       `json:"questionText"`
	QuestionType QuestionType `json:"questionType"`
	Points       int          `json:"points"`
	Options      []Option     `json:"options"`
}

// CorrectCount returns the number of options marked correct.
func (q GeneratedQuestion) CorrectCount() int {
	n := 0
	for _, o := range q.Options {
		if o.IsCorrect {
			n++
		}
	}
	return n
}

// Diagnostics describes one pipeline run.
type Diagnostics struct {
	ContentLength    int    `json:"content_length"`
	OptimizedLength  int    `json:"optimized_length"`
	PromptLength     int    `json:"prompt_length"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
	Model            string `json:"model,omitempty"`
	ErrorDetails     string `json:"error_details,omitempty"`
}

// Result is the outcome of a quiz generation.
type Result struct {
	Status      Status              `json:"status"`
	Questions   []GeneratedQuestion `json:"questions"`
	Diagnostics Diagnostics         `json:"processing_stats"`
	Error       string              `json:"error,omitempty"`
}

// GenerateRequest is the input of the quiz generation endpoint.
// Either LessonContent or QuizTitle must be set.
type GenerateRequest struct {
	LessonContent   string `json:"lessonContent"`
	NumQuestions    *int   `json:"numQuestions,omitempty"`
	QuizTitle       string `json:"quizTitle,omitempty"`
	QuizDescription string `json:"quizDescription,omitempty"`
	Language        string `json:"language,omitempty"`
	// Variant forces the prompt variant ("lesson" or "outline"). Empty
	// picks outline when there is no lesson content.
	Variant string `json:"variant,omitempty"`
}

const (
	DefaultNumQuestions = 5
	MaxNumQuestions     = 20
)

// Count returns the requested question count, applying the default.
func (r GenerateRequest) Count() int {
	if r.NumQuestions == nil {
		return DefaultNumQuestions
	}
	return *r.NumQuestions
}

// Canonical texts that stay in English whatever the request language.
const (
	TrueText             = "True"
	FalseText            = "False"
	FallbackQuestionText = "Question %d about this lesson (AI generation failed — please regenerate)"
	FallbackOptionText   = "Option %s"
)

// Labels holds the localizable texts the pipeline synthesizes or recognizes.
type Labels struct {
	PaddingOption string // %d: 1-based option position
	// FallbackHint follows the English fallback text; empty for English.
	FallbackHint string
	// TrueWord and FalseWord are matched against model answers only.
	TrueWord  string
	FalseWord string
}

// DefaultLabels returns the English labels.
func DefaultLabels() Labels {
	return Labels{
		PaddingOption: "Additional option %d",
		TrueWord:      TrueText,
		FalseWord:     FalseText,
	}
}

// PipelineConfig holds the knobs of the generation pipeline.
type PipelineConfig struct {
	Model            string
	MaxTokens        int
	Temperature      float32
	Timeout          time.Duration
	MaxContentLength int
	MaxPoints        int
	JSONMode         bool
	Stream           bool
}

// DefaultPipelineConfig returns the recommended defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Model:            "gpt-4o-mini",
		MaxTokens:        2500,
		Temperature:      0.7,
		Timeout:          45 * time.Second,
		MaxContentLength: 12000,
		MaxPoints:        5,
		JSONMode:         true,
	}
}

// GenerationRun is a recorded pipeline run.
type GenerationRun struct {
	ID           string              `json:"id"`
	CreatedAt    time.Time           `json:"created_at"`
	Variant      string              `json:"variant"`
	Language     string              `json:"language,omitempty"`
	Status       Status              `json:"status"`
	NumRequested int                 `json:"num_requested"`
	NumReturned  int                 `json:"num_returned"`
	Diagnostics  Diagnostics         `json:"processing_stats"`
	Error        string              `json:"error,omitempty"`
	Questions    []GeneratedQuestion `json:"questions"`
}
