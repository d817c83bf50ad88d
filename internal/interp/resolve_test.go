package interp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidalframe/tidal/internal/ast"
	"github.com/tidalframe/tidal/internal/engine"
	"github.com/tidalframe/tidal/internal/parse"
	"github.com/tidalframe/tidal/internal/rewrite"
)

// resolveSrc parses and resolves one fragment source string.
func resolveSrc(t *testing.T, src string, env Env) Result {
	t.Helper()
	frag, err := parse.Fragment(src)
	require.NoError(t, err)
	res, err := Resolve(frag, env)
	require.NoError(t, err)
	return res
}

func TestResolve_ScalarSplicesAsLiteral(t *testing.T) {
	res := resolveSrc(t, "dep_delay > !!threshold", Env{"threshold": 15})
	require.Len(t, res.Fragments, 1)

	bin, ok := res.Fragments[0].(ast.Binary)
	require.True(t, ok)
	assert.Equal(t, ast.Literal{Value: engine.Int(15)}, bin.Y)
}

func TestResolve_CELExpressionEvaluates(t *testing.T) {
	res := resolveSrc(t, "x > !!(limit * 2)", Env{"limit": 10})
	bin := res.Fragments[0].(ast.Binary)
	assert.Equal(t, ast.Literal{Value: engine.Int(20)}, bin.Y)
}

func TestResolve_MemberAccessEvaluates(t *testing.T) {
	res := resolveSrc(t, "x > !!cfg.max", Env{"cfg": map[string]any{"max": 99}})
	bin := res.Fragments[0].(ast.Binary)
	assert.Equal(t, ast.Literal{Value: engine.Int(99)}, bin.Y)
}

func TestResolve_StringSplicesAsStringLiteral(t *testing.T) {
	// Interpolated strings become string literals, never column refs.
	res := resolveSrc(t, "carrier == !!who", Env{"who": "UA"})
	bin := res.Fragments[0].(ast.Binary)
	assert.Equal(t, ast.Literal{Value: engine.Str("UA")}, bin.Y)
}

func TestResolve_ListSplicesAtTopLevel(t *testing.T) {
	res := resolveSrc(t, "!!cols", Env{"cols": []any{"a", "b", "c"}})
	require.Len(t, res.Fragments, 3)
	assert.Equal(t, ast.Literal{Value: engine.Str("a")}, res.Fragments[0])
	assert.Equal(t, ast.Literal{Value: engine.Str("c")}, res.Fragments[2])
}

func TestResolve_ListSplicesIntoCallArguments(t *testing.T) {
	res := resolveSrc(t, "c(!!cols, z)", Env{"cols": []any{"x", "y"}})
	require.Len(t, res.Fragments, 1)
	call, ok := res.Fragments[0].(ast.Call)
	require.True(t, ok)
	require.Len(t, call.Args, 3)
	assert.Equal(t, ast.Literal{Value: engine.Str("x")}, call.Args[0])
	assert.Equal(t, ast.Ident{Name: "z"}, call.Args[2])
}

func TestResolve_ListRejectedInScalarPosition(t *testing.T) {
	frag, err := parse.Fragment("x > !!vals")
	require.NoError(t, err)
	_, err = Resolve(frag, Env{"vals": []any{1, 2}})
	require.Error(t, err)
	assert.True(t, rewrite.IsInvalidInterpolation(err))
	assert.Contains(t, err.Error(), "multi-valued")
}

func TestResolve_EmptyListRejected(t *testing.T) {
	frag, err := parse.Fragment("!!vals")
	require.NoError(t, err)
	_, err = Resolve(frag, Env{"vals": []any{}})
	require.Error(t, err)
	assert.True(t, rewrite.IsInvalidInterpolation(err))
	assert.Contains(t, err.Error(), "empty")
}

func TestResolve_MixedListRejected(t *testing.T) {
	frag, err := parse.Fragment("!!vals")
	require.NoError(t, err)
	_, err = Resolve(frag, Env{"vals": []any{1, "two"}})
	require.Error(t, err)
	assert.True(t, rewrite.IsInvalidInterpolation(err))
	assert.Contains(t, err.Error(), "mixes value types")
}

func TestResolve_UnknownNameRejectedWithFragment(t *testing.T) {
	frag, err := parse.Fragment("x > !!nope")
	require.NoError(t, err)
	_, err = Resolve(frag, Env{})
	require.Error(t, err)
	assert.True(t, rewrite.IsInvalidInterpolation(err))
	// The error carries the offending fragment's surface form.
	assert.Contains(t, err.Error(), "!!nope")
}

func TestResolve_PseudoFlagsDetected(t *testing.T) {
	res := resolveSrc(t, "share = x / n()", Env{})
	assert.True(t, res.UsesRowCount)
	assert.False(t, res.UsesRowIndex)

	res = resolveSrc(t, "idx = row_number()", Env{})
	assert.False(t, res.UsesRowCount)
	assert.True(t, res.UsesRowIndex)

	res = resolveSrc(t, "x + 1", Env{})
	assert.False(t, res.UsesRowCount)
	assert.False(t, res.UsesRowIndex)
}

func TestResolve_NoInterpolationPassesThrough(t *testing.T) {
	res := resolveSrc(t, "gain = dep_delay - arr_delay", Env{})
	require.Len(t, res.Fragments, 1)
	_, ok := res.Fragments[0].(ast.Assign)
	assert.True(t, ok)
}
