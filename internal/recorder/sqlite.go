package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/wonny/tickerflow/internal/contracts"
	"github.com/wonny/tickerflow/pkg/logger"
)

const (
	sideGainer = "gainer"
	sideLoser  = "loser"
)

// SQLiteRecorder persists run history to a SQLite database
type SQLiteRecorder struct {
	db         *sql.DB
	mu         sync.Mutex
	configHash string
	logger     *logger.Logger
}

// NewSQLiteRecorder opens (or creates) the database and runs migrations.
// configHash is stored with every run so history can be matched to a config.
func NewSQLiteRecorder(ctx context.Context, dbPath, configHash string, log *logger.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{
		db:         db,
		configHash: configHash,
		logger:     log.WithField("module", "recorder"),
	}
	if err := r.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.logger.WithField("path", dbPath).Info("SQLite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id      TEXT PRIMARY KEY,
			status      TEXT NOT NULL,
			range_from  TEXT NOT NULL,
			range_to    TEXT NOT NULL,
			symbols     INTEGER NOT NULL,
			started_at  INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			error       TEXT,
			config_hash TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS stage_reports (
			run_id      TEXT NOT NULL,
			seq         INTEGER NOT NULL,
			stage       TEXT NOT NULL,
			attempts    INTEGER NOT NULL,
			input       INTEGER NOT NULL,
			succeeded   INTEGER NOT NULL,
			excluded    INTEGER NOT NULL,
			failed      INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			error       TEXT,
			excluded_detail TEXT,
			PRIMARY KEY (run_id, seq)
		)`,

		`CREATE TABLE IF NOT EXISTS movers (
			run_id TEXT NOT NULL,
			side   TEXT NOT NULL,
			rank   INTEGER NOT NULL,
			symbol TEXT NOT NULL,
			date   TEXT NOT NULL,
			pct    REAL NOT NULL,
			PRIMARY KEY (run_id, side, rank)
		)`,
	}

	for _, s := range stmts {
		if _, err := r.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordRun stores the run, its stage reports and its movers in one transaction
func (r *SQLiteRecorder) RecordRun(ctx context.Context, result *contracts.RunResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := toRecord(result, r.configHash)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO runs
		(run_id, status, range_from, range_to, symbols, started_at, finished_at, error, config_hash)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		rec.RunID, rec.Status, rec.From, rec.To, rec.Symbols,
		rec.StartedAt.UnixMilli(), rec.FinishedAt.UnixMilli(), rec.Error, rec.ConfigHash,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, st := range rec.Stages {
		detail, err := json.Marshal(st.Excluded)
		if err != nil {
			return fmt.Errorf("marshal excluded: %w", err)
		}
		_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO stage_reports
			(run_id, seq, stage, attempts, input, succeeded, excluded, failed, duration_ms, error, excluded_detail)
			VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
			rec.RunID, i, string(st.Stage), st.Attempts, st.Input,
			st.Counts.Succeeded, st.Counts.Excluded, st.Counts.Failed,
			st.Duration.Milliseconds(), st.Error, string(detail),
		)
		if err != nil {
			return fmt.Errorf("insert stage %s: %w", st.Stage, err)
		}
	}

	if err := insertMovers(ctx, tx, rec.RunID, sideGainer, result.Movers.Gainers); err != nil {
		return err
	}
	if err := insertMovers(ctx, tx, rec.RunID, sideLoser, result.Movers.Losers); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	r.logger.WithFields(map[string]interface{}{
		"run_id": rec.RunID,
		"status": rec.Status,
		"stages": len(rec.Stages),
	}).Debug("Run recorded")
	return nil
}

func insertMovers(ctx context.Context, tx *sql.Tx, runID, side string, records []contracts.MoverRecord) error {
	for i, m := range records {
		_, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO movers
			(run_id, side, rank, symbol, date, pct) VALUES (?,?,?,?,?,?)`,
			runID, side, i+1, m.Symbol, m.Date.Format(contracts.DateLayout), m.PctChange,
		)
		if err != nil {
			return fmt.Errorf("insert %s %s: %w", side, m.Symbol, err)
		}
	}
	return nil
}

// LatestRuns returns up to n runs, newest first, with their stage summaries
func (r *SQLiteRecorder) LatestRuns(ctx context.Context, n int) ([]RunRecord, error) {
	if n <= 0 {
		n = 20
	}

	rows, err := r.db.QueryContext(ctx, `SELECT run_id, status, range_from, range_to, symbols,
		started_at, finished_at, COALESCE(error, ''), COALESCE(config_hash, '')
		FROM runs ORDER BY started_at DESC, run_id LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		var rec RunRecord
		var started, finished int64
		if err := rows.Scan(&rec.RunID, &rec.Status, &rec.From, &rec.To, &rec.Symbols,
			&started, &finished, &rec.Error, &rec.ConfigHash); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.StartedAt = time.UnixMilli(started).UTC()
		rec.FinishedAt = time.UnixMilli(finished).UTC()
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		stages, err := r.stages(ctx, runs[i].RunID)
		if err != nil {
			return nil, err
		}
		runs[i].Stages = stages
	}
	return runs, nil
}

func (r *SQLiteRecorder) stages(ctx context.Context, runID string) ([]StageRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT stage, attempts, input, succeeded, excluded, failed,
		duration_ms, COALESCE(error, ''), COALESCE(excluded_detail, '')
		FROM stage_reports WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query stages: %w", err)
	}
	defer rows.Close()

	var out []StageRecord
	for rows.Next() {
		var st StageRecord
		var stage, detail string
		var ms int64
		if err := rows.Scan(&stage, &st.Attempts, &st.Input,
			&st.Counts.Succeeded, &st.Counts.Excluded, &st.Counts.Failed,
			&ms, &st.Error, &detail); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		st.Stage = contracts.Stage(stage)
		st.Duration = time.Duration(ms) * time.Millisecond
		if detail != "" && detail != "null" {
			if err := json.Unmarshal([]byte(detail), &st.Excluded); err != nil {
				return nil, fmt.Errorf("decode excluded: %w", err)
			}
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// LatestMovers returns the movers of the newest successful run
func (r *SQLiteRecorder) LatestMovers(ctx context.Context) (string, contracts.Movers, error) {
	var runID string
	err := r.db.QueryRowContext(ctx, `SELECT run_id FROM runs WHERE status = 'success'
		ORDER BY started_at DESC, run_id LIMIT 1`).Scan(&runID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", contracts.EmptyMovers(), contracts.ErrNotFound
	}
	if err != nil {
		return "", contracts.EmptyMovers(), fmt.Errorf("query latest run: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT side, symbol, date, pct FROM movers
		WHERE run_id = ? ORDER BY side, rank`, runID)
	if err != nil {
		return "", contracts.EmptyMovers(), fmt.Errorf("query movers: %w", err)
	}
	defer rows.Close()

	movers := contracts.EmptyMovers()
	for rows.Next() {
		var side, date string
		var m contracts.MoverRecord
		if err := rows.Scan(&side, &m.Symbol, &date, &m.PctChange); err != nil {
			return "", contracts.EmptyMovers(), fmt.Errorf("scan mover: %w", err)
		}
		if m.Date, err = time.Parse(contracts.DateLayout, date); err != nil {
			return "", contracts.EmptyMovers(), fmt.Errorf("parse mover date: %w", err)
		}
		if side == sideGainer {
			movers.Gainers = append(movers.Gainers, m)
		} else {
			movers.Losers = append(movers.Losers, m)
		}
	}
	if err := rows.Err(); err != nil {
		return "", contracts.EmptyMovers(), err
	}
	return runID, movers, nil
}

// Close closes the database
func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
