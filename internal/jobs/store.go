package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Record is the durable, observability-facing projection of a Job
// (spec §3, entity JobRecord — a SPEC_FULL addition; see DESIGN.md).
// It deliberately excludes page/block content: only counts, scores, and
// phase, matching spec.md §1's "no persistent database of pages"
// non-goal.
type Record struct {
	RequestID    string
	TargetPageID string
	Phase        Phase
	SourceCounts map[string]int
	NotionCounts map[string]int
	Coverage     float64
	HasErrors    bool
	Warnings     []string
	FailureKind  string
}

// Store persists Records to a local SQLite database (spec §4.6,
// SPEC_FULL addition). Adapted from the teacher's sqlite connection
// factory and migration runner (see DESIGN.md); holds none of the
// page-content fields the teacher's CRM tables carried.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if absent) the JobRecord database at path
// and applies pending migrations.
func OpenStore(path string) (*Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("jobs: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert writes r, replacing any prior record for the same RequestID
// (a job may be written multiple times as it progresses).
func (s *Store) Upsert(ctx context.Context, r Record) error {
	srcCounts, err := json.Marshal(r.SourceCounts)
	if err != nil {
		return fmt.Errorf("jobs: marshal source counts: %w", err)
	}
	notionCounts, err := json.Marshal(r.NotionCounts)
	if err != nil {
		return fmt.Errorf("jobs: marshal notion counts: %w", err)
	}
	warnings, err := json.Marshal(r.Warnings)
	if err != nil {
		return fmt.Errorf("jobs: marshal warnings: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO job_records
			(request_id, target_page_id, phase, source_counts, notion_counts, coverage, has_errors, warnings, failure_kind, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT(request_id) DO UPDATE SET
			target_page_id = excluded.target_page_id,
			phase           = excluded.phase,
			source_counts   = excluded.source_counts,
			notion_counts   = excluded.notion_counts,
			coverage        = excluded.coverage,
			has_errors      = excluded.has_errors,
			warnings        = excluded.warnings,
			failure_kind    = excluded.failure_kind,
			updated_at      = datetime('now')
	`, r.RequestID, r.TargetPageID, string(r.Phase), string(srcCounts), string(notionCounts),
		r.Coverage, boolToInt(r.HasErrors), string(warnings), r.FailureKind)
	if err != nil {
		return fmt.Errorf("jobs: upsert job record: %w", err)
	}
	return nil
}

// Get fetches the persisted record for requestID, if any.
func (s *Store) Get(ctx context.Context, requestID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT request_id, target_page_id, phase, source_counts, notion_counts, coverage, has_errors, warnings, failure_kind
		FROM job_records WHERE request_id = ?
	`, requestID)

	var (
		r                          Record
		phase                      string
		srcCounts, notionCounts    string
		warnings                  string
		hasErrors                 int
	)
	if err := row.Scan(&r.RequestID, &r.TargetPageID, &phase, &srcCounts, &notionCounts,
		&r.Coverage, &hasErrors, &warnings, &r.FailureKind); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("jobs: get job record: %w", err)
	}

	r.Phase = Phase(phase)
	r.HasErrors = hasErrors != 0
	if err := json.Unmarshal([]byte(srcCounts), &r.SourceCounts); err != nil {
		return nil, fmt.Errorf("jobs: decode source counts: %w", err)
	}
	if err := json.Unmarshal([]byte(notionCounts), &r.NotionCounts); err != nil {
		return nil, fmt.Errorf("jobs: decode notion counts: %w", err)
	}
	if err := json.Unmarshal([]byte(warnings), &r.Warnings); err != nil {
		return nil, fmt.Errorf("jobs: decode warnings: %w", err)
	}
	return &r, nil
}

// CountByPhase returns how many persisted records currently sit in
// phase — used by the /api/status endpoint.
func (s *Store) CountByPhase(ctx context.Context, phase Phase) (int, error) {
	var count int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM job_records WHERE phase = ?`, string(phase))
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("jobs: count by phase: %w", err)
	}
	return count, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
