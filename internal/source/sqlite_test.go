package source

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidalframe/tidal/internal/engine"
)

// seedDatabase creates a SQLite file with a small flights table.
func seedDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flights.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	stmts := []string{
		`CREATE TABLE flights (carrier TEXT, dep_delay REAL, seats INTEGER)`,
		`CREATE TABLE airports (code TEXT)`,
		`INSERT INTO flights VALUES ('UA', 4.0, 180)`,
		`INSERT INTO flights VALUES ('AA', NULL, 90)`,
	}
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return path
}

func TestTables_SortedUserTables(t *testing.T) {
	db, err := OpenDatabase(seedDatabase(t))
	require.NoError(t, err)
	defer db.Close()

	names, err := db.Tables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"airports", "flights"}, names)
}

func TestReadTable_TypedCellsAndMissing(t *testing.T) {
	db, err := OpenDatabase(seedDatabase(t))
	require.NoError(t, err)
	defer db.Close()

	tbl, err := db.ReadTable(context.Background(), "flights")
	require.NoError(t, err)
	assert.Equal(t, []string{"carrier", "dep_delay", "seats"}, tbl.Names())
	assert.Equal(t, 2, tbl.NRows())

	carrier, _ := tbl.Column("carrier")
	assert.Equal(t, engine.Str("UA"), carrier.Cells[0])

	dep, _ := tbl.Column("dep_delay")
	assert.Equal(t, engine.Float(4), dep.Cells[0])
	assert.True(t, engine.IsNull(dep.Cells[1]))

	seats, _ := tbl.Column("seats")
	assert.Equal(t, engine.Int(90), seats.Cells[1])
}

func TestReadTable_UnknownTableRejected(t *testing.T) {
	db, err := OpenDatabase(seedDatabase(t))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.ReadTable(context.Background(), "flights; DROP TABLE flights")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown table")
}

func TestOpenDatabase_MissingFileFails(t *testing.T) {
	// sqlite3 creates files on open, so point at a missing directory.
	_, err := OpenDatabase(filepath.Join(t.TempDir(), "no", "such", "dir.db"))
	require.Error(t, err)
}
