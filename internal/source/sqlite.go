package source

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tidalframe/tidal/internal/engine"
)

// Database reads tables out of a SQLite file.
type Database struct {
	db *sql.DB
}

// OpenDatabase opens an existing SQLite database for reading.
//
// The connection is configured with:
//   - a single connection (SQLite allows one writer at a time)
//   - a 5-second busy timeout for lock contention
func OpenDatabase(path string) (*Database, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	return &Database{db: db}, nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Tables lists the user tables in the database, sorted by name.
func (d *Database) Tables(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return names, nil
}

// ReadTable loads one table into an engine table. Rows come back in
// rowid order so repeated reads see the same row order. SQL NULL reads
// as a missing value.
func (d *Database) ReadTable(ctx context.Context, name string) (*engine.Table, error) {
	known, err := d.Tables(ctx)
	if err != nil {
		return nil, err
	}
	found := false
	for _, k := range known {
		if k == name {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("unknown table %q", name)
	}

	// The name is validated against sqlite_master above, so quoting it
	// as an identifier is safe.
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM %q ORDER BY rowid ASC`, name))
	if err != nil {
		return nil, fmt.Errorf("query table %q: %w", name, err)
	}
	defer rows.Close()

	colNames, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("table columns: %w", err)
	}

	cells := make([][]engine.Value, len(colNames))
	scan := make([]any, len(colNames))
	for i := range scan {
		scan[i] = new(any)
	}
	row := 0
	for rows.Next() {
		if err := rows.Scan(scan...); err != nil {
			return nil, fmt.Errorf("scan row %d: %w", row+1, err)
		}
		row++
		for i := range scan {
			v, err := cellValue(*scan[i].(*any))
			if err != nil {
				return nil, fmt.Errorf("column %q row %d: %w", colNames[i], row, err)
			}
			cells[i] = append(cells[i], v)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	cols := make([]engine.Column, len(colNames))
	for i, cn := range colNames {
		cols[i] = engine.Column{Name: cn, Cells: cells[i]}
	}
	return engine.NewTable(cols...)
}

// cellValue converts a scanned SQLite cell to an engine value. TEXT
// columns scan as []byte under the driver, so those convert to strings
// before the generic conversion.
func cellValue(v any) (engine.Value, error) {
	if b, ok := v.([]byte); ok {
		return engine.Str(string(b)), nil
	}
	return engine.FromNative(v)
}
