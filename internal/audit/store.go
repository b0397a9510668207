// Package audit records every outbound webhook dispatch in a local sqlite
// database. The session files stay the canonical project state; the audit
// log is a historical record of what was sent where, kept even after the
// project is deleted.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Status of one dispatch attempt.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Dispatch is one recorded webhook call.
type Dispatch struct {
	ID           string        `json:"id"`
	ProjectID    string        `json:"project_id"`
	Stage        string        `json:"stage"`
	TargetURL    string        `json:"target_url"`
	Status       string        `json:"status"`
	ErrorType    string        `json:"error_type,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Duration     time.Duration `json:"duration_ns"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Store is a sqlite-backed dispatch log.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the sqlite database and initializes the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize audit schema: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS dispatches (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			stage TEXT NOT NULL,
			target_url TEXT NOT NULL,
			status TEXT NOT NULL,
			error_type TEXT,
			error_message TEXT,
			duration_ns INTEGER,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_dispatches_project
			ON dispatches(project_id, created_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Record inserts one dispatch. ID and CreatedAt are filled when empty.
func (s *Store) Record(ctx context.Context, d *Dispatch) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}

	var errType, errMessage sql.NullString
	if d.ErrorType != "" {
		errType = sql.NullString{String: d.ErrorType, Valid: true}
	}
	if d.ErrorMessage != "" {
		errMessage = sql.NullString{String: d.ErrorMessage, Valid: true}
	}

	query := `INSERT INTO dispatches (
		id, project_id, stage, target_url, status,
		error_type, error_message, duration_ns, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		d.ID, d.ProjectID, d.Stage, d.TargetURL, d.Status,
		errType, errMessage, int64(d.Duration), d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record dispatch: %w", err)
	}
	return nil
}

// ListByProject returns the project's dispatches, newest first.
func (s *Store) ListByProject(ctx context.Context, projectID string) ([]*Dispatch, error) {
	query := `SELECT id, project_id, stage, target_url, status,
		error_type, error_message, duration_ns, created_at
		FROM dispatches WHERE project_id = ? ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dispatches: %w", err)
	}
	defer rows.Close()

	var dispatches []*Dispatch
	for rows.Next() {
		var d Dispatch
		var errType, errMessage sql.NullString
		var durationNS int64
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.Stage, &d.TargetURL, &d.Status,
			&errType, &errMessage, &durationNS, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dispatch: %w", err)
		}
		d.ErrorType = errType.String
		d.ErrorMessage = errMessage.String
		d.Duration = time.Duration(durationNS)
		dispatches = append(dispatches, &d)
	}
	return dispatches, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
