//go:build integration
// +build integration

package judge

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests need a live Postgres instance:
//
//	GRADER_DB_CONN="host=localhost user=... dbname=..." go test -tags integration ./internal/judge/
func integrationExecutor(t *testing.T) *PgExecutor {
	connStr := os.Getenv("GRADER_DB_CONN")
	if connStr == "" {
		t.Skip("GRADER_DB_CONN not set")
	}
	return NewPgExecutor(connStr)
}

const (
	testSchema = `CREATE TABLE flags (id int, a text, b text)`
	testData   = `INSERT INTO flags VALUES (1,'Y','N'), (2,'Y','Y')`
)

func TestExecuteFilteredSelect(t *testing.T) {
	e := integrationExecutor(t)

	res := e.Execute(context.Background(), "SELECT id FROM flags WHERE a='Y' AND b='Y'", testSchema, testData, 5*time.Second)

	require.True(t, res.Success, "execution failed: %s", res.Error)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, NormalizeValue(res.Rows[0]["id"]), NormalizeValue(2))
	assert.GreaterOrEqual(t, res.ExecutionTimeMs, 0)
}

func TestExecuteSyntaxErrorIsReturnedNotRaised(t *testing.T) {
	e := integrationExecutor(t)

	res := e.Execute(context.Background(), "SELEC id FROM flags", testSchema, testData, 5*time.Second)

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "query failed")
}

func TestExecuteRejectsMutatingQueryAfterDataLoad(t *testing.T) {
	e := integrationExecutor(t)

	res := e.Execute(context.Background(), "DROP TABLE flags", testSchema, testData, 5*time.Second)

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "forbidden statement")
}

func TestExecuteTimeout(t *testing.T) {
	e := integrationExecutor(t)

	res := e.Execute(context.Background(), "SELECT pg_sleep(10)", testSchema, "", 1*time.Second)

	assert.False(t, res.Success)
}

func TestExecuteConcurrentRunsDoNotInterfere(t *testing.T) {
	e := integrationExecutor(t)

	// Two runs load conflicting data into the same engine at once; each
	// must only ever see its own rows.
	var wg sync.WaitGroup
	results := make([]ExecutionResult, 2)
	data := []string{
		`INSERT INTO flags VALUES (1,'Y','Y')`,
		`INSERT INTO flags VALUES (2,'Y','Y'), (3,'Y','Y')`,
	}

	for i := range data {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = e.Execute(context.Background(), "SELECT count(*) AS n FROM flags", testSchema, data[i], 5*time.Second)
		}(i)
	}
	wg.Wait()

	require.True(t, results[0].Success, results[0].Error)
	require.True(t, results[1].Success, results[1].Error)
	assert.Equal(t, NormalizeValue(1), NormalizeValue(results[0].Rows[0]["n"]))
	assert.Equal(t, NormalizeValue(2), NormalizeValue(results[1].Rows[0]["n"]))
}
