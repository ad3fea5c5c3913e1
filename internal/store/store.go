package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tetraminz/churn_audit/internal/audit"
)

// DefaultPath is where run history is kept unless configured otherwise.
const DefaultPath = "out/audit.db"

// ErrNoRuns is returned when the history holds no run to report on.
var ErrNoRuns = errors.New("store: no audit runs recorded")

// Run identifies one audit batch.
type Run struct {
	ID        string
	StartedAt time.Time
	InputPath string
	Mode      string
}

// RunSummary is the stored aggregate of one run.
type RunSummary struct {
	ID             string
	StartedAtUTC   string
	InputPath      string
	Mode           string
	TotalDialogs   int
	Errors         int
	ErrorRate      float64
	FailedRows     int
	StatusChanges  int
	ResultChanges  int
	CorrectionRate float64
	Verdict        string
}

// CategoryCount is a per-category finding count of one run.
type CategoryCount struct {
	Category string
	Count    int
}

// Store keeps the audit history in SQLite.
type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	db, err := openSQLite(dbPath)
	if err != nil {
		return nil, err
	}
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Setup drops every history table and recreates the schema.
func Setup(dbPath string) error {
	if strings.TrimSpace(dbPath) == "" {
		return fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}
	db, err := openSQLite(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	for _, stmt := range dropTablesSQL {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("drop table: %w", err)
		}
	}
	return ensureSchema(db)
}

// SaveRun records the run, its findings and corrections in one transaction.
func (s *Store) SaveRun(run Run, res audit.Result) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlite store is not initialized")
	}
	if strings.TrimSpace(run.ID) == "" {
		return fmt.Errorf("run id is required")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		insertRunSQL,
		run.ID,
		run.StartedAt.UTC().Format(time.RFC3339),
		run.InputPath,
		run.Mode,
		res.Total,
		res.Stats.Errors,
		res.Stats.ErrorRate,
		res.Failed,
		res.Effectiveness.StatusChanges,
		res.Effectiveness.ResultChanges,
		res.Effectiveness.Rate,
		res.Effectiveness.Verdict,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	findingStmt, err := tx.Prepare(insertFindingSQL)
	if err != nil {
		return fmt.Errorf("prepare finding insert: %w", err)
	}
	defer findingStmt.Close()

	for _, f := range res.Findings {
		if _, err := findingStmt.Exec(
			run.ID,
			f.Record.RowIndex,
			f.Record.ClientID,
			f.Record.Status,
			f.Record.Result,
			f.ReasonText(),
			string(f.Category),
			f.Record.Transcript,
		); err != nil {
			return fmt.Errorf("insert finding row %d: %w", f.Record.RowIndex, err)
		}
	}

	correctionStmt, err := tx.Prepare(insertCorrectionSQL)
	if err != nil {
		return fmt.Errorf("prepare correction insert: %w", err)
	}
	defer correctionStmt.Close()

	for i, c := range res.Corrections {
		f := res.Findings[i]
		if _, err := correctionStmt.Exec(
			run.ID,
			f.Record.RowIndex,
			f.Record.ClientID,
			c.OriginalStatus,
			c.Status,
			c.OriginalResult,
			c.Result,
			string(c.Category),
			c.Reason,
		); err != nil {
			return fmt.Errorf("insert correction row %d: %w", f.Record.RowIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// LatestRunID returns the most recently started run.
func (s *Store) LatestRunID() (string, error) {
	var id string
	err := s.db.QueryRow(`SELECT run_id FROM audit_runs ORDER BY started_at_utc DESC, rowid DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoRuns
	}
	if err != nil {
		return "", fmt.Errorf("query latest run: %w", err)
	}
	return id, nil
}

// RunSummary loads the aggregate row of a run.
func (s *Store) RunSummary(runID string) (RunSummary, error) {
	var r RunSummary
	err := s.db.QueryRow(`
		SELECT
			run_id,
			started_at_utc,
			input_path,
			recommendations_mode,
			total_dialogs,
			error_count,
			error_rate,
			failed_rows,
			status_changes,
			result_changes,
			correction_rate,
			verdict
		FROM audit_runs
		WHERE run_id = ?
	`, runID).Scan(
		&r.ID,
		&r.StartedAtUTC,
		&r.InputPath,
		&r.Mode,
		&r.TotalDialogs,
		&r.Errors,
		&r.ErrorRate,
		&r.FailedRows,
		&r.StatusChanges,
		&r.ResultChanges,
		&r.CorrectionRate,
		&r.Verdict,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return RunSummary{}, fmt.Errorf("run %q: %w", runID, ErrNoRuns)
	}
	if err != nil {
		return RunSummary{}, fmt.Errorf("query run %q: %w", runID, err)
	}
	return r, nil
}

// CategoryCounts returns finding counts of a run, most frequent first.
func (s *Store) CategoryCounts(runID string) ([]CategoryCount, error) {
	rows, err := s.db.Query(`
		SELECT category, COUNT(*) AS n
		FROM findings
		WHERE run_id = ?
		GROUP BY category
		ORDER BY n DESC, category ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query category counts: %w", err)
	}
	defer rows.Close()

	var out []CategoryCount
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category counts: %w", err)
	}
	return out, nil
}

func openSQLite(dbPath string) (*sql.DB, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return db, nil
}
