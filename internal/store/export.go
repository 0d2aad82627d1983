package store

import (
	"fmt"
	"time"

	"github.com/pavelanni/quizgen/internal/model"
)

// ExportRuns builds an export of the runs recorded since the given time,
// or of all runs when since is nil.
func (s *Store) ExportRuns(since *time.Time) (model.RunExport, error) {
	runs, err := s.ListRuns(since)
	if err != nil {
		return model.RunExport{}, fmt.Errorf("list runs: %w", err)
	}
	meta, err := s.AllMetadata()
	if err != nil {
		return model.RunExport{}, fmt.Errorf("read metadata: %w", err)
	}
	if runs == nil {
		runs = []model.GenerationRun{}
	}
	return model.RunExport{
		ExportedAt: time.Now().UTC(),
		Since:      since,
		Metadata:   meta,
		Summary:    model.Summarize(runs),
		Runs:       runs,
	}, nil
}
