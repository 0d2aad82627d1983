package model

import "time"

// RunExport is the top-level JSON structure for exporting recorded generation runs.
type RunExport struct {
	ExportedAt time.Time         `json:"exported_at"`
	Since      *time.Time        `json:"since,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Summary    RunSummary        `json:"summary"`
	Runs       []GenerationRun   `json:"runs"`
}

// RunSummary aggregates a set of runs.
type RunSummary struct {
	Total            int     `json:"total"`
	Succeeded        int     `json:"succeeded"`
	Fallback         int     `json:"failed_with_fallback"`
	AvgProcessingMs  float64 `json:"avg_processing_ms"`
	QuestionsEmitted int     `json:"questions_emitted"`
}

// Summarize computes a RunSummary over runs.
func Summarize(runs []GenerationRun) RunSummary {
	var s RunSummary
	var totalMs int64
	for _, r := range runs {
		s.Total++
		switch r.Status {
		case StatusSucceeded:
			s.Succeeded++
		case StatusFailedWithFallback:
			s.Fallback++
		}
		totalMs += r.Diagnostics.ProcessingTimeMs
		s.QuestionsEmitted += r.NumReturned
	}
	if s.Total > 0 {
		s.AvgProcessingMs = float64(totalMs) / float64(s.Total)
	}
	return s
}
