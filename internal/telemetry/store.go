// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package telemetry persists emitted trace records in SQLite and answers
// trace and analytics lookups for finished runs.
package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/pdiddy/agentlens/internal/events"
	"github.com/pdiddy/agentlens/pkg/types"
)

// MemoryDSN keeps the database in memory for the life of the process.
const MemoryDSN = ":memory:"

// Store is a record sink backed by SQLite. One run id is one trace.
type Store struct {
	db      *sql.DB
	project string
	log     *zap.Logger
}

// Open opens or creates the trace database described by cfg. An empty
// DBPath keeps traces in memory.
func Open(cfg types.TelemetryConfig, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dsn := MemoryDSN
	if cfg.DBPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating telemetry directory: %w", err)
		}
		dsn = cfg.DBPath + "?_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if dsn == MemoryDSN {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	project := cfg.Project
	if project == "" {
		project = types.DefaultProject
	}
	s := &Store{db: db, project: project, log: log}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS records (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			project TEXT NOT NULL,
			step_index INTEGER NOT NULL,
			event TEXT NOT NULL,
			name TEXT,
			node TEXT,
			ts REAL,
			data TEXT,
			metadata TEXT,
			snapshot TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_run_id ON records(run_id, step_index)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record persists one emitted record. It implements events.Sink.
func (s *Store) Record(ctx context.Context, rec events.Record) error {
	data, err := json.Marshal(rec.Data)
	if err != nil {
		return fmt.Errorf("encoding data: %w", err)
	}
	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	var snapshot sql.NullString
	if rec.StateSnapshot != nil {
		b, err := json.Marshal(rec.StateSnapshot)
		if err != nil {
			return fmt.Errorf("encoding snapshot: %w", err)
		}
		snapshot = sql.NullString{String: string(b), Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (run_id, project, step_index, event, name, node, ts, data, metadata, snapshot)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, s.project, rec.StepIndex, rec.Event, rec.Name, rec.Node(), rec.TS,
		string(data), string(meta), snapshot,
	)
	if err != nil {
		return fmt.Errorf("inserting record %s/%d: %w", rec.RunID, rec.StepIndex, err)
	}
	return nil
}

// Records returns the stored records of a run in emission order.
func (s *Store) Records(ctx context.Context, runID string) ([]events.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, step_index, event, name, ts, data, metadata, snapshot
		 FROM records WHERE run_id = ? ORDER BY step_index, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var out []events.Record
	for rows.Next() {
		var (
			rec            events.Record
			name           sql.NullString
			data, metadata sql.NullString
			snapshot       sql.NullString
		)
		if err := rows.Scan(&rec.RunID, &rec.StepIndex, &rec.Event, &name, &rec.TS, &data, &metadata, &snapshot); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		rec.Name = name.String
		rec.Data = decode(data)
		rec.Metadata = decode(metadata)
		if snapshot.Valid {
			if m, ok := decode(snapshot).(map[string]any); ok {
				rec.StateSnapshot = m
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return out, nil
}

// Runs returns the ids of stored runs, most recent first.
func (s *Store) Runs(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id FROM records GROUP BY run_id ORDER BY MAX(rowid) DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning run id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// decode parses a stored JSON column. Invalid or missing text decodes to nil.
func decode(col sql.NullString) any {
	if !col.Valid || col.String == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(col.String), &v); err != nil {
		return nil
	}
	return v
}
