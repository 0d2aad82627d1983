package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pavelanni/quizgen/internal/model"

	_ "modernc.org/sqlite"
)

// Store is the SQLite ledger of generation runs.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS generation_runs (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		variant TEXT NOT NULL,
		language TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		num_requested INTEGER NOT NULL,
		num_returned INTEGER NOT NULL,
		content_length INTEGER NOT NULL DEFAULT 0,
		optimized_length INTEGER NOT NULL DEFAULT 0,
		prompt_length INTEGER NOT NULL DEFAULT 0,
		processing_ms INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		error_details TEXT NOT NULL DEFAULT '',
		questions TEXT NOT NULL DEFAULT '[]'
	);

	CREATE INDEX IF NOT EXISTS idx_generation_runs_created_at ON generation_runs(created_at);

	CREATE TABLE IF NOT EXISTS ledger_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

const runColumns = `id, created_at, variant, language, model, status, num_requested, num_returned,
	content_length, optimized_length, prompt_length, processing_ms, error, error_details, questions`

// RecordRun stores a finished generation run.
func (s *Store) RecordRun(run model.GenerationRun) error {
	questions, err := json.Marshal(run.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	d := run.Diagnostics
	_, err = s.db.Exec(
		`INSERT INTO generation_runs (`+runColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UTC(), run.Variant, run.Language, d.Model, run.Status,
		run.NumRequested, run.NumReturned,
		d.ContentLength, d.OptimizedLength, d.PromptLength, d.ProcessingTimeMs,
		run.Error, d.ErrorDetails, string(questions),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (model.GenerationRun, error) {
	var run model.GenerationRun
	var questions string
	d := &run.Diagnostics
	err := row.Scan(
		&run.ID, &run.CreatedAt, &run.Variant, &run.Language, &d.Model, &run.Status,
		&run.NumRequested, &run.NumReturned,
		&d.ContentLength, &d.OptimizedLength, &d.PromptLength, &d.ProcessingTimeMs,
		&run.Error, &d.ErrorDetails, &questions,
	)
	if err != nil {
		return run, err
	}
	if err := json.Unmarshal([]byte(questions), &run.Questions); err != nil {
		return run, fmt.Errorf("unmarshal questions of run %s: %w", run.ID, err)
	}
	return run, nil
}

// GetRun returns a run by ID. It returns sql.ErrNoRows if the run does not exist.
func (s *Store) GetRun(id string) (model.GenerationRun, error) {
	return scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM generation_runs WHERE id = ?`, id))
}

// ListRuns returns runs in creation order. A nil since returns all runs.
func (s *Store) ListRuns(since *time.Time) ([]model.GenerationRun, error) {
	query := `SELECT ` + runColumns + ` FROM generation_runs`
	var args []any
	if since != nil {
		query += ` WHERE created_at >= ?`
		args = append(args, since.UTC())
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []model.GenerationRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RunCount returns the number of recorded runs.
func (s *Store) RunCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM generation_runs`).Scan(&n)
	return n, err
}
