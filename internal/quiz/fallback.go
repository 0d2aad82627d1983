package quiz

import (
	"fmt"

	"github.com/pavelanni/quizgen/internal/model"
)

var optionLetters = [4]string{"A", "B", "C", "D"}

// GenerateFallback returns n placeholder multiple-choice questions, each with
// four options and option A marked correct. The question text always carries
// the English failure marker; a localized hint is appended when labels has one.
func GenerateFallback(n int, labels model.Labels) []model.GeneratedQuestion {
	if n < 0 {
		n = 0
	}
	questions := make([]model.GeneratedQuestion, n)
	for i := range questions {
		options := make([]model.Option, len(optionLetters))
		for j, letter := range optionLetters {
			options[j] = model.Option{
				OptionText: fmt.Sprintf(model.FallbackOptionText, letter),
				IsCorrect:  j == 0,
			}
		}
		text := fmt.Sprintf(model.FallbackQuestionText, i+1)
		if labels.FallbackHint != "" {
			text += " " + labels.FallbackHint
		}
		questions[i] = model.GeneratedQuestion{
			QuestionText: text,
			QuestionType: model.QuestionMultipleChoice,
			Points:       1,
			Options:      options,
		}
	}
	return questions
}
