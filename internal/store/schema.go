package store

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
)

const createRunsTableSQL = `
CREATE TABLE IF NOT EXISTS audit_runs (
	run_id TEXT PRIMARY KEY,
	started_at_utc TEXT NOT NULL,
	input_path TEXT NOT NULL,
	recommendations_mode TEXT NOT NULL,
	total_dialogs INTEGER NOT NULL,
	error_count INTEGER NOT NULL,
	error_rate REAL NOT NULL,
	failed_rows INTEGER NOT NULL,
	status_changes INTEGER NOT NULL,
	result_changes INTEGER NOT NULL,
	correction_rate REAL NOT NULL,
	verdict TEXT NOT NULL DEFAULT ''
)`

const createFindingsTableSQL = `
CREATE TABLE IF NOT EXISTS findings (
	run_id TEXT NOT NULL,
	row_index INTEGER NOT NULL,
	client_id TEXT NOT NULL,
	status TEXT NOT NULL,
	result TEXT NOT NULL,
	reasons TEXT NOT NULL,
	category TEXT NOT NULL,
	transcript TEXT NOT NULL,
	PRIMARY KEY (run_id, row_index)
)`

const createCorrectionsTableSQL = `
CREATE TABLE IF NOT EXISTS corrections (
	run_id TEXT NOT NULL,
	row_index INTEGER NOT NULL,
	client_id TEXT NOT NULL,
	status_before TEXT NOT NULL,
	status_after TEXT NOT NULL,
	result_before TEXT NOT NULL,
	result_after TEXT NOT NULL,
	category TEXT NOT NULL,
	reason TEXT NOT NULL,
	PRIMARY KEY (run_id, row_index)
)`

var createIndexesSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_audit_runs_started ON audit_runs(started_at_utc)`,
	`CREATE INDEX IF NOT EXISTS idx_findings_category ON findings(run_id, category)`,
	`CREATE INDEX IF NOT EXISTS idx_corrections_client ON corrections(run_id, client_id)`,
}

var dropTablesSQL = []string{
	`DROP TABLE IF EXISTS corrections`,
	`DROP TABLE IF EXISTS findings`,
	`DROP TABLE IF EXISTS audit_runs`,
}

const insertRunSQL = `
INSERT INTO audit_runs (
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
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const insertFindingSQL = `
INSERT INTO findings (
	run_id,
	row_index,
	client_id,
	status,
	result,
	reasons,
	category,
	transcript
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

const insertCorrectionSQL = `
INSERT INTO corrections (
	run_id,
	row_index,
	client_id,
	status_before,
	status_after,
	result_before,
	result_after,
	category,
	reason
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

type tableSpec struct {
	name     string
	create   string
	required []string
}

var tables = []tableSpec{
	{
		name:   "audit_runs",
		create: createRunsTableSQL,
		required: []string{
			"run_id", "started_at_utc", "input_path", "recommendations_mode",
			"total_dialogs", "error_count", "error_rate", "failed_rows",
			"status_changes", "result_changes", "correction_rate", "verdict",
		},
	},
	{
		name:   "findings",
		create: createFindingsTableSQL,
		required: []string{
			"run_id", "row_index", "client_id", "status", "result",
			"reasons", "category", "transcript",
		},
	},
	{
		name:   "corrections",
		create: createCorrectionsTableSQL,
		required: []string{
			"run_id", "row_index", "client_id", "status_before", "status_after",
			"result_before", "result_after", "category", "reason",
		},
	},
}

func ensureSchema(db *sql.DB) error {
	for _, table := range tables {
		if _, err := db.Exec(table.create); err != nil {
			return fmt.Errorf("create %s table: %w", table.name, err)
		}
		missing, err := missingTableColumns(db, table.name, table.required)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return fmt.Errorf(
				"incompatible %s schema, missing columns: %s; run `churn_audit setup --db <path>`",
				table.name,
				strings.Join(missing, ", "),
			)
		}
	}
	for _, stmt := range createIndexesSQL {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

func missingTableColumns(db *sql.DB, tableName string, required []string) ([]string, error) {
	rows, err := db.Query(fmt.Sprintf(`PRAGMA table_info(%s)`, tableName))
	if err != nil {
		return nil, fmt.Errorf("inspect %s schema: %w", tableName, err)
	}
	defer rows.Close()

	existing := map[string]struct{}{}
	for rows.Next() {
		var cid int
		var name string
		var colType string
		var notNull int
		var defaultValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultValue, &pk); err != nil {
			return nil, fmt.Errorf("scan %s schema: %w", tableName, err)
		}
		existing[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s schema: %w", tableName, err)
	}

	var missing []string
	for _, col := range required {
		if _, ok := existing[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing, nil
}
