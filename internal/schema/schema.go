// Package schema compiles CUE table-schema declarations into typed
// column descriptions used by the CSV source. A schema file declares:
//
//	table: flights: {
//		columns: {
//			year:      "int"
//			dep_delay: "float"
//			carrier:   "string"
//		}
//	}
package schema

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// ColumnType names the cell type of one declared column.
type ColumnType string

const (
	TypeInt    ColumnType = "int"
	TypeFloat  ColumnType = "float"
	TypeString ColumnType = "string"
	TypeBool   ColumnType = "bool"
)

// ValidColumnTypes defines the allowed column type names.
var ValidColumnTypes = map[ColumnType]bool{
	TypeInt:    true,
	TypeFloat:  true,
	TypeString: true,
	TypeBool:   true,
}

// Table is a compiled table schema.
type Table struct {
	Name    string
	Columns []ColumnDecl
}

// ColumnDecl is one declared column, in declaration order.
type ColumnDecl struct {
	Name string
	Type ColumnType
}

// Lookup returns the declared type of a column.
func (t *Table) Lookup(name string) (ColumnType, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c.Type, true
		}
	}
	return "", false
}

// CompileError represents a schema compilation failure.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadFile compiles every table schema declared in a CUE file.
func LoadFile(path string) ([]Table, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return Compile(string(src))
}

// Compile parses CUE source and extracts the declared table schemas.
func Compile(src string) ([]Table, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	tablesVal := v.LookupPath(cue.ParsePath("table"))
	if !tablesVal.Exists() {
		return nil, &CompileError{
			Field:   "table",
			Message: "no table declarations found",
			Pos:     v.Pos(),
		}
	}

	iter, err := tablesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var tables []Table
	for iter.Next() {
		tbl, err := compileTable(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		tables = append(tables, *tbl)
	}
	if len(tables) == 0 {
		return nil, &CompileError{
			Field:   "table",
			Message: "no table declarations found",
			Pos:     v.Pos(),
		}
	}
	return tables, nil
}

func compileTable(name string, v cue.Value) (*Table, error) {
	tbl := &Table{Name: name}

	colsVal := v.LookupPath(cue.ParsePath("columns"))
	if !colsVal.Exists() {
		return nil, &CompileError{
			Field:   "columns",
			Message: fmt.Sprintf("table %q declares no columns", name),
			Pos:     v.Pos(),
		}
	}
	iter, err := colsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		typeName, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		ct := ColumnType(typeName)
		if !ValidColumnTypes[ct] {
			return nil, &CompileError{
				Field:   "columns",
				Message: fmt.Sprintf("column %q has unknown type %q", iter.Label(), typeName),
				Pos:     iter.Value().Pos(),
			}
		}
		tbl.Columns = append(tbl.Columns, ColumnDecl{
			Name: iter.Label(),
			Type: ct,
		})
	}
	if len(tbl.Columns) == 0 {
		return nil, &CompileError{
			Field:   "columns",
			Message: fmt.Sprintf("table %q declares no columns", name),
			Pos:     v.Pos(),
		}
	}
	return tbl, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}
	return &CompileError{Field: "cue", Message: firstErr.Error()}
}
