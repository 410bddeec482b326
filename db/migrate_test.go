package db

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestMigrateCreatesSchema(t *testing.T) {
	conn := openMemoryDB(t)
	require.NoError(t, Migrate(conn, nil))

	for _, table := range []string{"schema_migrations", "jobs", "credit_ledger"} {
		var name string
		err := conn.QueryRow(
			`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table,
		).Scan(&name)
		require.NoError(t, err, "expected table %s", table)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	conn := openMemoryDB(t)
	require.NoError(t, Migrate(conn, nil))
	require.NoError(t, Migrate(conn, nil))

	var applied int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&applied))
	assert.Equal(t, 3, applied)
}

func TestJobsOperationIDUniqueness(t *testing.T) {
	conn := openMemoryDB(t)
	require.NoError(t, Migrate(conn, nil))

	insert := `INSERT INTO jobs (id, operation_id, prompt, status, created_at, updated_at)
		VALUES (?, ?, 'p', 'pending', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`

	_, err := conn.Exec(insert, "a", "op-1")
	require.NoError(t, err)

	_, err = conn.Exec(insert, "b", "op-1")
	assert.Error(t, err, "duplicate operation ids must be rejected")

	// Jobs without an operation id yet are exempt from the unique index
	_, err = conn.Exec(insert, "c", nil)
	require.NoError(t, err)
	_, err = conn.Exec(insert, "d", nil)
	require.NoError(t, err)
}
