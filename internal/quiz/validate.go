package quiz

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/pavelanni/quizgen/internal/model"
)

// ValidateAndFix turns raw question objects from a model reply into
// well-formed questions. Questions without text or options are dropped.
// Every returned question has exactly one correct option, points in
// 1..maxPoints and the option count its type requires.
func ValidateAndFix(raw []map[string]any, maxPoints int, labels model.Labels) []model.GeneratedQuestion {
	if maxPoints < 1 {
		maxPoints = 1
	}
	out := make([]model.GeneratedQuestion, 0, len(raw))
	for i, q := range raw {
		text := firstString(q, "questionText", "question_text", "question", "text")
		if text == "" {
			slog.Warn("dropping generated question", "index", i, "reason", "missing question text")
			continue
		}
		options := readOptions(q)
		if len(options) == 0 {
			slog.Warn("dropping generated question", "index", i, "reason", "no options")
			continue
		}

		fixed := model.GeneratedQuestion{
			QuestionText: text,
			QuestionType: model.ParseQuestionType(firstString(q, "questionType", "question_type", "type")),
			Points:       clampPoints(q["points"], maxPoints),
		}
		if fixed.QuestionType == model.QuestionTrueFalse {
			fixed.Options = trueFalseOptions(options, labels)
		} else {
			fixed.Options = fitOptions(singleCorrect(options), fixed.QuestionType.OptionCount(), labels)
		}
		out = append(out, fixed)
	}
	if dropped := len(raw) - len(out); dropped > 0 {
		slog.Debug("validated generated questions", "kept", len(out), "dropped", dropped)
	}
	return out
}

// clampPoints reads a points value and clamps it to 1..maxPoints.
// Missing or unreadable values count as 1.
func clampPoints(v any, maxPoints int) int {
	p := 1
	switch t := v.(type) {
	case float64:
		if !math.IsNaN(t) && !math.IsInf(t, 0) {
			p = int(math.Max(math.Min(math.Round(t), float64(maxPoints)), 1))
		}
	case int:
		p = t
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return clampPoints(f, maxPoints)
		}
	}
	return min(max(p, 1), maxPoints)
}

// singleCorrect leaves exactly one option marked correct: the first one
// marked, or the first option when none is.
func singleCorrect(options []model.Option) []model.Option {
	found := false
	for i := range options {
		if options[i].IsCorrect {
			if found {
				options[i].IsCorrect = false
			}
			found = true
		}
	}
	if !found {
		options[0].IsCorrect = true
	}
	return options
}

// fitOptions pads or trims options to n entries. Trimming keeps the correct
// option and the leading incorrect ones in their original order.
func fitOptions(options []model.Option, n int, labels model.Labels) []model.Option {
	if len(options) > n {
		kept := make([]model.Option, 0, n)
		incorrect := n - 1
		for _, o := range options {
			if o.IsCorrect {
				kept = append(kept, o)
				continue
			}
			if incorrect > 0 {
				kept = append(kept, o)
				incorrect--
			}
		}
		return kept
	}
	for len(options) < n {
		options = append(options, model.Option{
			OptionText: fmt.Sprintf(labels.PaddingOption, len(options)+1),
		})
	}
	return options
}

// trueFalseOptions replaces options with the canonical True/False pair.
// The answer is taken from the first source option marked correct whose
// text names "false" or "true", in English or in the labels' language;
// True wins when nothing decides it.
func trueFalseOptions(options []model.Option, labels model.Labels) []model.Option {
	answer := true
	for _, o := range options {
		if !o.IsCorrect {
			continue
		}
		text := strings.ToLower(o.OptionText)
		if strings.Contains(text, "false") || strings.EqualFold(o.OptionText, labels.FalseWord) {
			answer = false
			break
		}
		if strings.Contains(text, "true") || strings.EqualFold(o.OptionText, labels.TrueWord) {
			break
		}
	}
	return []model.Option{
		{OptionText: model.TrueText, IsCorrect: answer},
		{OptionText: model.FalseText, IsCorrect: !answer},
	}
}

// readOptions accepts option objects or plain strings. Plain strings take
// their correctness from correctIndex or correctAnswer on the question.
func readOptions(q map[string]any) []model.Option {
	var items []any
	for _, key := range []string{"options", "choices", "answers"} {
		if v, ok := q[key].([]any); ok && len(v) > 0 {
			items = v
			break
		}
	}

	correctIndex := -1
	for _, key := range []string{"correctIndex", "correct_index", "correctOptionIndex"} {
		if f, ok := q[key].(float64); ok {
			correctIndex = int(f)
			break
		}
	}
	correctAnswer := firstString(q, "correctAnswer", "correct_answer")

	options := make([]model.Option, 0, len(items))
	for i, item := range items {
		var opt model.Option
		switch t := item.(type) {
		case string:
			opt.OptionText = strings.TrimSpace(t)
			opt.IsCorrect = i == correctIndex || (correctAnswer != "" && opt.OptionText == correctAnswer)
		case map[string]any:
			opt.OptionText = firstString(t, "optionText", "option_text", "text", "option", "label")
			opt.IsCorrect = firstBool(t, "isCorrect", "is_correct", "correct")
		case bool:
			// Bare booleans show up in true/false replies.
			opt.OptionText = strconv.FormatBool(t)
			opt.IsCorrect = i == correctIndex
		default:
			continue
		}
		if opt.OptionText == "" {
			continue
		}
		options = append(options, opt)
	}
	return options
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

func firstBool(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		switch v := m[k].(type) {
		case bool:
			return v
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				return b
			}
		}
	}
	return false
}
