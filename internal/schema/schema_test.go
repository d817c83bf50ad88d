package schema

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const flightsSchema = `
table: flights: {
	columns: {
		year:      "int"
		dep_delay: "float"
		carrier:   "string"
		cancelled: "bool"
	}
}
`

func TestCompile_DeclarationOrderPreserved(t *testing.T) {
	tables, err := Compile(flightsSchema)
	require.NoError(t, err)
	require.Len(t, tables, 1)

	tbl := tables[0]
	assert.Equal(t, "flights", tbl.Name)
	assert.Equal(t, []ColumnDecl{
		{Name: "year", Type: TypeInt},
		{Name: "dep_delay", Type: TypeFloat},
		{Name: "carrier", Type: TypeString},
		{Name: "cancelled", Type: TypeBool},
	}, tbl.Columns)
}

func TestCompile_MultipleTables(t *testing.T) {
	src := `
table: a: columns: x: "int"
table: b: columns: y: "string"
`
	tables, err := Compile(src)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "a", tables[0].Name)
	assert.Equal(t, "b", tables[1].Name)
}

func TestCompile_UnknownColumnType(t *testing.T) {
	_, err := Compile(`table: t: columns: x: "decimal"`)
	require.Error(t, err)
	var cerr *CompileError
	require.True(t, errors.As(err, &cerr))
	assert.Contains(t, cerr.Message, `column "x" has unknown type "decimal"`)
}

func TestCompile_MissingDeclarations(t *testing.T) {
	_, err := Compile(`foo: 1`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no table declarations")

	_, err = Compile(`table: t: {}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declares no columns")
}

func TestCompile_InvalidCUECarriesPosition(t *testing.T) {
	_, err := Compile("table: {{{")
	require.Error(t, err)
	var cerr *CompileError
	assert.True(t, errors.As(err, &cerr))
}

func TestLookup(t *testing.T) {
	tables, err := Compile(flightsSchema)
	require.NoError(t, err)

	ct, ok := tables[0].Lookup("dep_delay")
	require.True(t, ok)
	assert.Equal(t, TypeFloat, ct)

	_, ok = tables[0].Lookup("nope")
	assert.False(t, ok)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flights.cue")
	require.NoError(t, os.WriteFile(path, []byte(flightsSchema), 0o644))

	tables, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "flights", tables[0].Name)

	_, err = LoadFile(filepath.Join(t.TempDir(), "absent.cue"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read schema")
}
