package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sofmeright/conveyor/src/artifact"
	"github.com/sofmeright/conveyor/src/pipeline"
	"github.com/sofmeright/conveyor/src/secret"
)

// SQLiteSink stores runs and report artifacts in a local SQLite file.
type SQLiteSink struct {
	db   *sql.DB
	path string
}

var _ Sink = (*SQLiteSink)(nil)

// NewSQLiteSink opens (or creates) the sink database at path.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("report: opening %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("report: enabling WAL: %w", err)
	}

	s := &SQLiteSink{db: db, path: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("report: initializing schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteSink) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			trigger_kind TEXT NOT NULL,
			sha TEXT,
			branch TEXT,
			version TEXT,
			results TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP NOT NULL,
			published_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS reports (
			run_id TEXT NOT NULL,
			stage_id TEXT NOT NULL,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (run_id, stage_id, name),
			FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_run ON reports(run_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Publish upserts the run record and replaces its report artifacts.
// Report payloads are refused when they contain detectable credentials.
func (s *SQLiteSink) Publish(ctx context.Context, run *pipeline.PipelineRun, reports []artifact.Artifact) (Handle, error) {
	for _, a := range reports {
		if err := secret.GuardPublish(a.Key.String(), a.Payload); err != nil {
			return Handle{}, err
		}
	}

	results, err := json.Marshal(run.Results)
	if err != nil {
		return Handle{}, fmt.Errorf("report: encoding results: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Handle{}, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, status, trigger_kind, sha, branch, version, results, started_at, finished_at, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			trigger_kind = excluded.trigger_kind,
			sha = excluded.sha,
			branch = excluded.branch,
			version = excluded.version,
			results = excluded.results,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			published_at = excluded.published_at`,
		run.ID, string(run.Status), string(run.Trigger.Kind),
		run.Trigger.SHA, run.Trigger.Branch, run.Trigger.Version,
		string(results), run.Started, run.Finished, time.Now())
	if err != nil {
		return Handle{}, fmt.Errorf("report: storing run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM reports WHERE run_id = ?`, run.ID); err != nil {
		return Handle{}, fmt.Errorf("report: clearing reports: %w", err)
	}
	for _, a := range reports {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO reports (run_id, stage_id, name, kind, payload) VALUES (?, ?, ?, ?, ?)`,
			run.ID, a.Key.Stage, a.Key.Name, string(a.Kind), a.Payload)
		if err != nil {
			return Handle{}, fmt.Errorf("report: storing %s: %w", a.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Handle{}, err
	}
	return Handle{RunID: run.ID, Location: s.path}, nil
}

// Get retrieves a published run by id.
func (s *SQLiteSink) Get(ctx context.Context, runID string) (*pipeline.PipelineRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, trigger_kind, sha, branch, version, results, started_at, finished_at
		FROM runs WHERE id = ?`, runID)

	var (
		run     pipeline.PipelineRun
		status  string
		kind    string
		results string
	)
	err := row.Scan(&run.ID, &status, &kind,
		&run.Trigger.SHA, &run.Trigger.Branch, &run.Trigger.Version,
		&results, &run.Started, &run.Finished)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("report: run %s not found", runID)
	}
	if err != nil {
		return nil, err
	}
	run.Status = pipeline.Status(status)
	run.Trigger.Kind = pipeline.TriggerKind(kind)
	if err := json.Unmarshal([]byte(results), &run.Results); err != nil {
		return nil, fmt.Errorf("report: decoding results: %w", err)
	}
	return &run, nil
}

// Reports retrieves the report artifacts published with a run.
func (s *SQLiteSink) Reports(ctx context.Context, runID string) ([]artifact.Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stage_id, name, kind, payload FROM reports
		WHERE run_id = ? ORDER BY stage_id, name`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []artifact.Artifact
	for rows.Next() {
		var a artifact.Artifact
		var kind string
		if err := rows.Scan(&a.Key.Stage, &a.Key.Name, &kind, &a.Payload); err != nil {
			return nil, err
		}
		a.Kind = artifact.Kind(kind)
		out = append(out, a)
	}
	return out, rows.Err()
}

// List returns summaries of all published runs, newest first.
func (s *SQLiteSink) List(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.status, r.trigger_kind, r.sha, r.branch, r.results,
		       r.started_at, r.finished_at,
		       (SELECT COUNT(*) FROM reports p WHERE p.run_id = r.id)
		FROM runs r ORDER BY r.started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			sum     RunSummary
			status  string
			kind    string
			results string
		)
		if err := rows.Scan(&sum.RunID, &status, &kind, &sum.SHA, &sum.Branch,
			&results, &sum.Started, &sum.Finished, &sum.Reports); err != nil {
			return nil, err
		}
		sum.Status = pipeline.Status(status)
		sum.Trigger = pipeline.TriggerKind(kind)
		var stageResults []pipeline.ExecutionResult
		if err := json.Unmarshal([]byte(results), &stageResults); err == nil {
			sum.Stages = len(stageResults)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
