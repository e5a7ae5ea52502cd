package judge

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ExecutionResult is what one isolated run of a submitted query produced.
// Failures are data, not errors: one bad user query must never crash the
// grading worker.
type ExecutionResult struct {
	Success         bool             `json:"success"`
	Rows            []map[string]any `json:"rows,omitempty"`
	Error           string           `json:"error,omitempty"`
	ExecutionTimeMs int              `json:"execution_time_ms"`
}

// QueryExecutor runs untrusted SQL against a throwaway namespace.
type QueryExecutor interface {
	Execute(ctx context.Context, query, schemaScript, dataScript string, timeout time.Duration) ExecutionResult
}

// PgExecutor executes each run inside a disposable Postgres schema on a
// shared engine. Concurrent runs never interfere: every call gets its own
// connection, its own uniquely-named schema, and an unconditional
// drop-cascade teardown.
type PgExecutor struct {
	connStr string
}

func NewPgExecutor(connStr string) *PgExecutor {
	return &PgExecutor{connStr: connStr}
}

func (e *PgExecutor) Execute(ctx context.Context, query, schemaScript, dataScript string, timeout time.Duration) (res ExecutionResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = ExecutionResult{Error: fmt.Sprintf("query execution panicked: %v", r)}
		}
		res.ExecutionTimeMs = int(time.Since(start).Milliseconds())
	}()

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	connCfg, err := pgx.ParseConfig(e.connStr)
	if err != nil {
		return ExecutionResult{Error: fmt.Sprintf("invalid grader connection string: %v", err)}
	}
	connCfg.ConnectTimeout = timeout
	// The engine aborts any single statement past the budget on its own;
	// the executor adds no cooperative cancellation beyond this.
	connCfg.RuntimeParams["statement_timeout"] = strconv.Itoa(int(timeout.Milliseconds()))

	conn, err := pgx.ConnectConfig(runCtx, connCfg)
	if err != nil {
		return ExecutionResult{Error: fmt.Sprintf("failed to connect to grading engine: %v", err)}
	}
	defer conn.Close(context.Background())

	schemaName := newSchemaName()
	if _, err := conn.Exec(runCtx, "CREATE SCHEMA "+schemaName); err != nil {
		return ExecutionResult{Error: fmt.Sprintf("failed to create schema: %v", err)}
	}
	defer func() {
		// Teardown must run on every exit path, including timeouts, so it
		// gets a fresh context: the run context may already be expired.
		dropCtx, dropCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer dropCancel()
		if _, err := conn.Exec(dropCtx, "DROP SCHEMA IF EXISTS "+schemaName+" CASCADE"); err != nil {
			// Best effort; the connection is about to be discarded anyway.
			log.Printf("WARN: failed to drop schema %s: %v", schemaName, err)
		}
	}()

	// Pin the search path so the query cannot reference another run's
	// objects, accidentally or otherwise.
	if _, err := conn.Exec(runCtx, "SET search_path TO "+schemaName); err != nil {
		return ExecutionResult{Error: fmt.Sprintf("failed to set search path: %v", err)}
	}

	if _, err := conn.Exec(runCtx, schemaScript); err != nil {
		return ExecutionResult{Error: fmt.Sprintf("schema setup failed: %v", err)}
	}

	if dataScript != "" {
		// The data load is trusted; the submitted query is not, and must be
		// a pure read once sample data exists.
		if err := CheckQuerySafety(query); err != nil {
			return ExecutionResult{Error: err.Error()}
		}
		if _, err := conn.Exec(runCtx, dataScript); err != nil {
			return ExecutionResult{Error: fmt.Sprintf("sample data load failed: %v", err)}
		}
	}

	rows, err := conn.Query(runCtx, query)
	if err != nil {
		return ExecutionResult{Error: fmt.Sprintf("query failed: %v", err)}
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	captured := []map[string]any{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return ExecutionResult{Error: fmt.Sprintf("failed to read row: %v", err)}
		}
		row := make(map[string]any, len(fields))
		for i, fd := range fields {
			row[fd.Name] = values[i]
		}
		captured = append(captured, row)
	}
	if err := rows.Err(); err != nil {
		return ExecutionResult{Error: fmt.Sprintf("query failed: %v", err)}
	}

	return ExecutionResult{Success: true, Rows: captured}
}

// newSchemaName returns a name no concurrent run can collide with:
// timestamp for uniqueness over time, random suffix for uniqueness within
// the same nanosecond across processes.
func newSchemaName() string {
	return fmt.Sprintf("grader_%d_%s", time.Now().UnixNano(), uuid.NewString()[:8])
}
