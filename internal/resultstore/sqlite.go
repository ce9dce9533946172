package resultstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_time  TEXT NOT NULL,
	num_cpu       INTEGER NOT NULL,
	true_cpu      INTEGER NOT NULL,
	simulated_cpu INTEGER NOT NULL,
	cpu_model     TEXT NOT NULL,
	cpu_mhz       REAL NOT NULL,
	go_arch       TEXT NOT NULL,
	total_memory  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS results (
	session_id      INTEGER NOT NULL REFERENCES sessions(id),
	implementation  TEXT NOT NULL,
	num_producers   INTEGER NOT NULL,
	num_consumers   INTEGER NOT NULL,
	produced        INTEGER NOT NULL,
	consumed        INTEGER NOT NULL,
	test_duration   TEXT NOT NULL,
	actual_elapsed  TEXT NOT NULL,
	throughput      REAL NOT NULL,
	cells_per_chunk INTEGER NOT NULL,
	spare_chunks    INTEGER NOT NULL,
	timestamp       INTEGER NOT NULL,
	go_version      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS results_session ON results(session_id);
`

// Store keeps benchmark sessions in a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("resultstore: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("resultstore: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores one session and its results in a single transaction and returns the session id.
func (s *Store) Save(ctx context.Context, r FullReport) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	si := r.SystemInfo
	res, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (session_time, num_cpu, true_cpu, simulated_cpu, cpu_model, cpu_mhz, go_arch, total_memory)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SessionTime, si.NumCPU, si.TrueCPU, si.SimulatedCPUCount, si.CPUModel, si.CPUSpeedMHz, si.GOARCH, int64(si.TotalMemory))
	if err != nil {
		return 0, fmt.Errorf("resultstore: insert session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO results (session_id, implementation, num_producers, num_consumers, produced, consumed,
			test_duration, actual_elapsed, throughput, cells_per_chunk, spare_chunks, timestamp, go_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, b := range r.Benchmarks {
		if _, err := stmt.ExecContext(ctx, id, b.Implementation, b.NumProducers, b.NumConsumers,
			b.NumMessages, b.NumMessagesConsumed, b.TestDuration, b.ActualElapsed, b.Throughput,
			b.CellsPerChunk, b.SpareChunks, b.Timestamp, b.GoVersion); err != nil {
			return 0, fmt.Errorf("resultstore: insert result %q: %w", b.Implementation, err)
		}
	}
	return id, tx.Commit()
}

// Sessions loads every stored session in insertion order.
func (s *Store) Sessions(ctx context.Context) ([]FullReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_time, num_cpu, true_cpu, simulated_cpu, cpu_model, cpu_mhz, go_arch, total_memory
		FROM sessions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		ids      []int64
		sessions []FullReport
	)
	for rows.Next() {
		var (
			id  int64
			r   FullReport
			mem int64
		)
		si := &r.SystemInfo
		if err := rows.Scan(&id, &r.SessionTime, &si.NumCPU, &si.TrueCPU, &si.SimulatedCPUCount,
			&si.CPUModel, &si.CPUSpeedMHz, &si.GOARCH, &mem); err != nil {
			return nil, err
		}
		si.TotalMemory = uint64(mem)
		ids = append(ids, id)
		sessions = append(sessions, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, id := range ids {
		results, err := s.results(ctx, id)
		if err != nil {
			return nil, err
		}
		sessions[i].Benchmarks = results
	}
	return sessions, nil
}

func (s *Store) results(ctx context.Context, sessionID int64) ([]BenchmarkResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT implementation, num_producers, num_consumers, produced, consumed, test_duration,
			actual_elapsed, throughput, cells_per_chunk, spare_chunks, timestamp, go_version
		FROM results WHERE session_id = ? ORDER BY rowid`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BenchmarkResult
	for rows.Next() {
		var b BenchmarkResult
		if err := rows.Scan(&b.Implementation, &b.NumProducers, &b.NumConsumers, &b.NumMessages,
			&b.NumMessagesConsumed, &b.TestDuration, &b.ActualElapsed, &b.Throughput,
			&b.CellsPerChunk, &b.SpareChunks, &b.Timestamp, &b.GoVersion); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
