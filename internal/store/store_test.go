package store

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/pavelanni/quizgen/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRun(id string, at time.Time, status model.Status) model.GenerationRun {
	return model.GenerationRun{
		ID:           id,
		CreatedAt:    at,
		Variant:      "lesson",
		Language:     "sr",
		Status:       status,
		NumRequested: 2,
		NumReturned:  2,
		Diagnostics: model.Diagnostics{
			ContentLength:    120,
			OptimizedLength:  100,
			PromptLength:     900,
			ProcessingTimeMs: 1500,
			Model:            "gpt-4o-mini",
		},
		Questions: []model.GeneratedQuestion{
			{
				QuestionText: "Kako se kaže 'thank you'?",
				QuestionType: model.QuestionMultipleChoice,
				Points:       2,
				Options: []model.Option{
					{OptionText: "Hvala", IsCorrect: true},
					{OptionText: "Molim"},
					{OptionText: "Zdravo"},
					{OptionText: "Izvini"},
				},
			},
			{
				QuestionText: "'Dobar dan' means good day.",
				QuestionType: model.QuestionTrueFalse,
				Points:       1,
				Options:      []model.Option{{OptionText: "True", IsCorrect: true}, {OptionText: "False"}},
			},
		},
	}
}

func TestRecordAndGetRun(t *testing.T) {
	s := newTestStore(t)

	at := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	want := testRun("run-1", at, model.StatusSucceeded)
	if err := s.RecordRun(want); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	got, err := s.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if !got.CreatedAt.Equal(at) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, at)
	}
	if got.Status != model.StatusSucceeded || got.Variant != "lesson" || got.Language != "sr" {
		t.Errorf("unexpected run fields: %+v", got)
	}
	if got.Diagnostics != want.Diagnostics {
		t.Errorf("Diagnostics = %+v, want %+v", got.Diagnostics, want.Diagnostics)
	}
	if len(got.Questions) != 2 {
		t.Fatalf("got %d questions, want 2", len(got.Questions))
	}
	if got.Questions[0].QuestionText != want.Questions[0].QuestionText {
		t.Errorf("question text = %q, want %q", got.Questions[0].QuestionText, want.Questions[0].QuestionText)
	}
	if got.Questions[1].QuestionType != model.QuestionTrueFalse || !got.Questions[1].Options[0].IsCorrect {
		t.Errorf("true/false question not preserved: %+v", got.Questions[1])
	}

	_, err = s.GetRun("missing")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("GetRun(missing) error = %v, want sql.ErrNoRows", err)
	}
}

func TestRecordRunDuplicateID(t *testing.T) {
	s := newTestStore(t)
	run := testRun("dup", time.Now(), model.StatusSucceeded)
	if err := s.RecordRun(run); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if err := s.RecordRun(run); err == nil {
		t.Error("expected error for duplicate run ID")
	}
}

func TestListRuns(t *testing.T) {
	s := newTestStore(t)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	runs := []model.GenerationRun{
		testRun("b", base.Add(2*time.Hour), model.StatusFailedWithFallback),
		testRun("a", base, model.StatusSucceeded),
		testRun("c", base.Add(4*time.Hour), model.StatusSucceeded),
	}
	for _, r := range runs {
		if err := s.RecordRun(r); err != nil {
			t.Fatalf("RecordRun(%s): %v", r.ID, err)
		}
	}

	count, err := s.RunCount()
	if err != nil {
		t.Fatalf("RunCount: %v", err)
	}
	if count != 3 {
		t.Errorf("RunCount() = %d, want 3", count)
	}

	tests := []struct {
		name  string
		since *time.Time
		want  []string
	}{
		{"all", nil, []string{"a", "b", "c"}},
		{"since middle", ptr(base.Add(time.Hour)), []string{"b", "c"}},
		{"since exact", ptr(base.Add(4 * time.Hour)), []string{"c"}},
		{"since future", ptr(base.Add(24 * time.Hour)), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListRuns(tt.since)
			if err != nil {
				t.Fatalf("ListRuns: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d runs, want %d", len(got), len(tt.want))
			}
			for i, r := range got {
				if r.ID != tt.want[i] {
					t.Errorf("run %d = %q, want %q", i, r.ID, tt.want[i])
				}
			}
		})
	}
}

func TestMetadata(t *testing.T) {
	s := newTestStore(t)

	v, err := s.GetMetadata("model")
	if err != nil || v != "" {
		t.Fatalf("GetMetadata(missing) = %q, %v; want empty, nil", v, err)
	}
	if err := s.SetMetadata("model", "gpt-4o-mini"); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	if err := s.SetMetadata("model", "gpt-4o"); err != nil {
		t.Fatalf("SetMetadata overwrite: %v", err)
	}
	if v, _ := s.GetMetadata("model"); v != "gpt-4o" {
		t.Errorf("GetMetadata = %q, want gpt-4o", v)
	}

	meta, err := s.AllMetadata()
	if err != nil {
		t.Fatalf("AllMetadata: %v", err)
	}
	if len(meta) != 1 || meta["model"] != "gpt-4o" {
		t.Errorf("AllMetadata = %v", meta)
	}
}

func TestExportRuns(t *testing.T) {
	s := newTestStore(t)

	empty, err := s.ExportRuns(nil)
	if err != nil {
		t.Fatalf("ExportRuns(empty): %v", err)
	}
	if empty.Runs == nil || len(empty.Runs) != 0 || empty.Summary.Total != 0 {
		t.Errorf("empty export = %+v, want zero runs", empty)
	}

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	ok := testRun("ok", base, model.StatusSucceeded)
	fb := testRun("fb", base.Add(time.Minute), model.StatusFailedWithFallback)
	fb.Diagnostics.ProcessingTimeMs = 500
	fb.Error = "model call timed out"
	for _, r := range []model.GenerationRun{ok, fb} {
		if err := s.RecordRun(r); err != nil {
			t.Fatalf("RecordRun: %v", err)
		}
	}
	if err := s.SetMetadata("model", "gpt-4o-mini"); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}

	exp, err := s.ExportRuns(nil)
	if err != nil {
		t.Fatalf("ExportRuns: %v", err)
	}
	want := model.RunSummary{Total: 2, Succeeded: 1, Fallback: 1, AvgProcessingMs: 1000, QuestionsEmitted: 4}
	if exp.Summary != want {
		t.Errorf("Summary = %+v, want %+v", exp.Summary, want)
	}
	if exp.Metadata["model"] != "gpt-4o-mini" {
		t.Errorf("Metadata = %v", exp.Metadata)
	}
	if exp.Runs[1].Error != "model call timed out" {
		t.Errorf("run error = %q", exp.Runs[1].Error)
	}

	since := base.Add(30 * time.Second)
	exp, err = s.ExportRuns(&since)
	if err != nil {
		t.Fatalf("ExportRuns(since): %v", err)
	}
	if exp.Summary.Total != 1 || exp.Runs[0].ID != "fb" || exp.Since == nil {
		t.Errorf("since export = %+v", exp)
	}
}

func ptr(t time.Time) *time.Time { return &t }
