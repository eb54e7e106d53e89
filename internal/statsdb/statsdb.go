// Package statsdb mirrors per-agent token and cost accounting into a
// SQLite file, as an optional, rebuildable-from-source companion to the
// JSON atomic store that remains authoritative for every other entity.
// Grounded on jra3-linear-fuse's internal/db store: an embedded schema,
// WAL mode, and a single *sql.DB wrapped in a thin type, using the same
// modernc.org/sqlite pure-Go driver so enabling this mirror never adds a
// cgo dependency.
package statsdb

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/mao-project/mao/internal/supervisor"
)

//go:embed schema.sql
var schemaSQL string

// DB mirrors AgentCostRecords into agent_states.db, implementing
// supervisor.StatsSink. A write error here is surfaced to the caller but
// never fails the agent's own completion: the mirror is best-effort.
type DB struct {
	conn *sql.DB
}

// Open creates or opens the SQLite database at path, applying the schema.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating stats db directory: %w", err)
	}

	escaped := strings.ReplaceAll(path, " ", "%20")
	conn, err := sql.Open("sqlite", "file:"+escaped+"?_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("opening stats db: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing stats db schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// RecordAgentCost upserts one agent's accumulated token/cost totals,
// adding to any existing row rather than overwriting it, since an agent
// may be recorded more than once across retries.
func (d *DB) RecordAgentCost(rec supervisor.AgentCostRecord) error {
	_, err := d.conn.Exec(
		`INSERT INTO agent_states (agent_id, role, model, tokens_used, cost, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(agent_id) DO UPDATE SET
		   role = excluded.role,
		   model = excluded.model,
		   tokens_used = agent_states.tokens_used + excluded.tokens_used,
		   cost = agent_states.cost + excluded.cost,
		   updated_at = excluded.updated_at`,
		rec.AgentID, rec.Role, rec.Model, rec.TokensUsed, rec.Cost, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("recording agent cost: %w", err)
	}
	return nil
}

// TotalCost sums cost across every mirrored agent.
func (d *DB) TotalCost() (float64, error) {
	var total sql.NullFloat64
	if err := d.conn.QueryRow("SELECT SUM(cost) FROM agent_states").Scan(&total); err != nil {
		return 0, fmt.Errorf("summing agent cost: %w", err)
	}
	return total.Float64, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.conn.Close()
}
