package cli

import (
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stats.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()
	for _, stmt := range []string{
		`CREATE TABLE flights (carrier TEXT)`,
		`CREATE TABLE airports (code TEXT)`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return path
}

func TestTables_ListsSorted(t *testing.T) {
	out, _, err := execute(t, "", "tables", "--db", seedDB(t))
	require.NoError(t, err)
	assert.Equal(t, "airports\nflights\n", out)
}

func TestTables_JSONFormat(t *testing.T) {
	out, _, err := execute(t, "", "--format", "json", "tables", "--db", seedDB(t))
	require.NoError(t, err)

	var names []string
	require.NoError(t, json.Unmarshal([]byte(out), &names))
	assert.Equal(t, []string{"airports", "flights"}, names)
}

func TestRun_SQLiteInput(t *testing.T) {
	path := seedDB(t)
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO flights VALUES ('UA'), ('AA')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	out, _, err := execute(t, "pull(carrier)\n", "run", "--db", path, "--table", "flights", "-")
	require.NoError(t, err)
	assert.Equal(t, "UA\nAA\n", out)
}

func TestSchemaCommand_TextListing(t *testing.T) {
	sch := writeFile(t, "flights.cue", `
table: flights: columns: {
	delay:   "float"
	carrier: "string"
}
`)
	out, _, err := execute(t, "", "schema", sch)
	require.NoError(t, err)
	assert.Equal(t, "flights:\n  delay: float\n  carrier: string\n", out)
}

func TestSchemaCommand_CompileFailureIsExitFailure(t *testing.T) {
	sch := writeFile(t, "bad.cue", `table: t: columns: x: "decimal"`)
	_, _, err := execute(t, "", "schema", sch)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}
