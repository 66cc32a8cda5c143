package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"
)

// Store persists exploration runs and steps in SQLite. Committed schedule
// texts are kept alongside each step as zstd-compressed blobs so any step
// can be replayed later.
type Store struct {
	db  *sql.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// Run is one exploration campaign over a single scenario.
type Run struct {
	ID        string
	Scenario  string
	Seed      int64
	StartedAt time.Time
}

// Open creates a store at path, creating the schema if needed. Use
// ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	s := &Store{db: db, enc: enc, dec: dec}
	if err := s.migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		scenario TEXT NOT NULL,
		seed INTEGER NOT NULL,
		started_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS steps (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		step INTEGER NOT NULL,
		node_idx INTEGER NOT NULL,
		transform TEXT NOT NULL,
		args TEXT NOT NULL,
		outcome TEXT NOT NULL,
		runtime REAL NOT NULL,
		detail TEXT,
		sample_ms REAL NOT NULL,
		apply_ms REAL NOT NULL,
		codegen_ms REAL NOT NULL,
		compile_ms REAL NOT NULL,
		measure_ms REAL NOT NULL,
		created_at DATETIME NOT NULL,
		schedule BLOB
	);

	CREATE INDEX IF NOT EXISTS idx_steps_run ON steps(run_id, step);
	CREATE INDEX IF NOT EXISTS idx_steps_runtime ON steps(outcome, runtime);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateRun registers a new run and returns it with a fresh ID.
func (s *Store) CreateRun(ctx context.Context, scenario string, seed int64) (Run, error) {
	run := Run{
		ID:        uuid.NewString(),
		Scenario:  scenario,
		Seed:      seed,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, scenario, seed, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Scenario, run.Seed, run.StartedAt)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// RecordStep persists one step; schedText, when non-empty, is the committed
// schedule serialization for that step.
func (s *Store) RecordStep(ctx context.Context, step Step, schedText string) error {
	var blob []byte
	if schedText != "" {
		blob = s.enc.EncodeAll([]byte(schedText), nil)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO steps
		 (run_id, step, node_idx, transform, args, outcome, runtime, detail,
		  sample_ms, apply_ms, codegen_ms, compile_ms, measure_ms, created_at, schedule)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		step.RunID, step.Step, step.NodeIdx, step.Transform, formatArgs(step.Args),
		string(step.Outcome), step.Runtime, step.Detail,
		step.SampleMS, step.ApplyMS, step.CodegenMS, step.CompileMS, step.MeasureMS,
		step.CreatedAt.UTC(), blob)
	if err != nil {
		return fmt.Errorf("insert step: %w", err)
	}
	return nil
}

// Steps returns all steps of a run in order.
func (s *Store) Steps(ctx context.Context, runID string) ([]Step, error) {
	return s.query(ctx,
		`SELECT run_id, step, node_idx, transform, args, outcome, runtime, detail,
		        sample_ms, apply_ms, codegen_ms, compile_ms, measure_ms, created_at
		 FROM steps WHERE run_id = ? ORDER BY step`, runID)
}

// Best returns the fastest legal measured steps of a run.
func (s *Store) Best(ctx context.Context, runID string, limit int) ([]Step, error) {
	return s.query(ctx,
		`SELECT run_id, step, node_idx, transform, args, outcome, runtime, detail,
		        sample_ms, apply_ms, codegen_ms, compile_ms, measure_ms, created_at
		 FROM steps WHERE run_id = ? AND outcome = 'legal' AND runtime > 0
		 ORDER BY runtime LIMIT ?`, runID, limit)
}

// Schedule returns the decompressed schedule text recorded for a step.
func (s *Store) Schedule(ctx context.Context, runID string, step int) (string, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT schedule FROM steps WHERE run_id = ? AND step = ?`, runID, step).Scan(&blob)
	if err != nil {
		return "", fmt.Errorf("select schedule: %w", err)
	}
	if len(blob) == 0 {
		return "", nil
	}
	text, err := s.dec.DecodeAll(blob, nil)
	if err != nil {
		return "", fmt.Errorf("decompress schedule: %w", err)
	}
	return string(text), nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Step, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	var steps []Step
	for rows.Next() {
		var st Step
		var argText, outcome string
		var detail sql.NullString
		if err := rows.Scan(&st.RunID, &st.Step, &st.NodeIdx, &st.Transform,
			&argText, &outcome, &st.Runtime, &detail,
			&st.SampleMS, &st.ApplyMS, &st.CodegenMS, &st.CompileMS, &st.MeasureMS,
			&st.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		st.Outcome = Outcome(outcome)
		st.Detail = detail.String
		if st.Args, err = ParseArgs(argText); err != nil {
			return nil, fmt.Errorf("step %d args: %w", st.Step, err)
		}
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

// Close releases the database and compressor resources.
func (s *Store) Close() error {
	var encErr error
	if s.enc != nil {
		encErr = s.enc.Close()
	}
	if s.dec != nil {
		s.dec.Close()
	}
	return errors.Join(encErr, s.db.Close())
}
