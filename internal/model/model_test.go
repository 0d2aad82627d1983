package model

import "testing"

func TestParseQuestionType(t *testing.T) {
	tests := []struct {
		in   string
		want QuestionType
	}{
		{"multiple_choice", QuestionMultipleChoice},
		{"", QuestionMultipleChoice},
		{"essay", QuestionMultipleChoice},
		{"True_False", QuestionTrueFalse},
		{"true/false", QuestionTrueFalse},
		{" fill-in-the-blank ", QuestionFillInBlank},
		{"fill_in_blank", QuestionFillInBlank},
	}
	for _, tt := range tests {
		if got := ParseQuestionType(tt.in); got != tt.want {
			t.Errorf("ParseQuestionType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if QuestionTrueFalse.OptionCount() != 2 || QuestionFillInBlank.OptionCount() != 4 {
		t.Error("unexpected option counts")
	}
}

func TestRequestCount(t *testing.T) {
	if got := (GenerateRequest{}).Count(); got != DefaultNumQuestions {
		t.Errorf("Count() = %d, want default %d", got, DefaultNumQuestions)
	}
	n := 0
	if got := (GenerateRequest{NumQuestions: &n}).Count(); got != 0 {
		t.Errorf("Count() = %d, want explicit 0", got)
	}
}

func TestSummarize(t *testing.T) {
	runs := []GenerationRun{
		{Status: StatusSucceeded, NumReturned: 5, Diagnostics: Diagnostics{ProcessingTimeMs: 1000}},
		{Status: StatusFailedWithFallback, NumReturned: 3, Diagnostics: Diagnostics{ProcessingTimeMs: 3000}},
		{Status: StatusSucceeded, NumReturned: 2, Diagnostics: Diagnostics{ProcessingTimeMs: 2000}},
	}
	want := RunSummary{Total: 3, Succeeded: 2, Fallback: 1, AvgProcessingMs: 2000, QuestionsEmitted: 10}
	if got := Summarize(runs); got != want {
		t.Errorf("Summarize() = %+v, want %+v", got, want)
	}
	if got := Summarize(nil); got != (RunSummary{}) {
		t.Errorf("Summarize(nil) = %+v, want zero", got)
	}
}
