// Package source loads tabular data into engine tables. Two inputs are
// supported: CSV files (optionally typed by a compiled schema) and
// SQLite databases.
package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/tidalframe/tidal/internal/engine"
	"github.com/tidalframe/tidal/internal/schema"
)

// missingMarkers are the cell spellings read as a missing value.
var missingMarkers = map[string]bool{"": true, "NA": true}

// ReadCSV loads a CSV file into a table. The first record is the
// header. When sch is non-nil every column it declares is parsed with
// the declared type and a cell that fails to parse is an error;
// undeclared columns and all columns of an untyped read get their
// types inferred. Empty cells and the literal NA read as missing.
func ReadCSV(path string, sch *schema.Table) (*engine.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	t, err := readCSV(f, sch)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func readCSV(r io.Reader, sch *schema.Table) (*engine.Table, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	raw := make([][]string, len(header))
	row := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", row, err)
		}
		row++
		for i := range header {
			raw[i] = append(raw[i], rec[i])
		}
	}

	cols := make([]engine.Column, len(header))
	for i, name := range header {
		var (
			cells []engine.Value
			err   error
		)
		if sch != nil {
			if ct, ok := sch.Lookup(name); ok {
				cells, err = parseTyped(raw[i], ct)
				if err != nil {
					return nil, fmt.Errorf("column %q: %w", name, err)
				}
				cols[i] = engine.Column{Name: name, Cells: cells}
				continue
			}
		}
		cols[i] = engine.Column{Name: name, Cells: inferCells(raw[i])}
	}
	return engine.NewTable(cols...)
}

// parseTyped parses every cell of one column with a declared type.
func parseTyped(raw []string, ct schema.ColumnType) ([]engine.Value, error) {
	cells := make([]engine.Value, len(raw))
	for i, s := range raw {
		if missingMarkers[s] {
			cells[i] = engine.Null{}
			continue
		}
		switch ct {
		case schema.TypeInt:
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: %q is not an int", i+1, s)
			}
			cells[i] = engine.Int(n)
		case schema.TypeFloat:
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: %q is not a float", i+1, s)
			}
			cells[i] = engine.Float(f)
		case schema.TypeBool:
			b, ok := parseBool(s)
			if !ok {
				return nil, fmt.Errorf("row %d: %q is not a bool", i+1, s)
			}
			cells[i] = engine.Bool(b)
		case schema.TypeString:
			cells[i] = engine.Str(s)
		default:
			return nil, fmt.Errorf("unknown column type %q", ct)
		}
	}
	return cells, nil
}

// inferCells picks the narrowest type every non-missing cell of the
// column parses as: int, then float, then bool, falling back to string.
func inferCells(raw []string) []engine.Value {
	isInt, isFloat, isBool := true, true, true
	for _, s := range raw {
		if missingMarkers[s] {
			continue
		}
		if _, err := strconv.ParseInt(s, 10, 64); err != nil {
			isInt = false
		}
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			isFloat = false
		}
		if _, ok := parseBool(s); !ok {
			isBool = false
		}
	}

	cells := make([]engine.Value, len(raw))
	for i, s := range raw {
		switch {
		case missingMarkers[s]:
			cells[i] = engine.Null{}
		case isInt:
			n, _ := strconv.ParseInt(s, 10, 64)
			cells[i] = engine.Int(n)
		case isFloat:
			f, _ := strconv.ParseFloat(s, 64)
			cells[i] = engine.Float(f)
		case isBool:
			b, _ := parseBool(s)
			cells[i] = engine.Bool(b)
		default:
			cells[i] = engine.Str(s)
		}
	}
	return cells
}

func parseBool(s string) (bool, bool) {
	switch s {
	case "true", "TRUE", "True":
		return true, true
	case "false", "FALSE", "False":
		return false, true
	}
	return false, false
}
