package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidalframe/tidal/internal/engine"
	"github.com/tidalframe/tidal/internal/parse"
)

// testContext builds a rewrite context with fixed pseudo-column names.
func testContext(t *testing.T) *Context {
	t.Helper()
	return &Context{
		Registry:    NewRegistry(),
		RowCountCol: ".__n",
		RowIndexCol: ".__row",
	}
}

// rewriteSrc parses and rewrites one fragment under a mode.
func rewriteSrc(t *testing.T, src string, mode Mode) []Rewritten {
	t.Helper()
	frag, err := parse.Fragment(src)
	require.NoError(t, err)
	out, err := Expression(frag, mode, testContext(t))
	require.NoError(t, err)
	return out
}

func TestExpression_IdentBecomesColRef(t *testing.T) {
	out := rewriteSrc(t, "dep_delay", Transform)
	require.Len(t, out, 1)
	assert.Equal(t, "dep_delay", out[0].Name)
	assert.Equal(t, engine.ColRef{Name: "dep_delay"}, out[0].Expr)
}

func TestExpression_AssignNamesDestination(t *testing.T) {
	out := rewriteSrc(t, "gain = dep_delay - arr_delay", Transform)
	require.Len(t, out, 1)
	assert.Equal(t, "gain", out[0].Name)
	assert.Equal(t, engine.MapCall{Fn: "sub", Args: []engine.Expr{
		engine.ColRef{Name: "dep_delay"},
		engine.ColRef{Name: "arr_delay"},
	}}, out[0].Expr)
}

func TestExpression_DefaultNameIsCanonicalForm(t *testing.T) {
	out := rewriteSrc(t, "mean(x)", Aggregate)
	require.Len(t, out, 1)
	assert.Equal(t, "mean(x)", out[0].Name)
}

func TestExpression_RegisteredFunctionStaysWhole(t *testing.T) {
	// mean is in the default registry: whole-column call, even nested.
	out := rewriteSrc(t, "dep_delay - mean(dep_delay)", Transform)
	mc, ok := out[0].Expr.(engine.MapCall)
	require.True(t, ok)
	assert.Equal(t, "sub", mc.Fn)
	assert.Equal(t, engine.AggCall{Fn: "mean", Args: []engine.Expr{
		engine.ColRef{Name: "dep_delay"},
	}}, mc.Args[1])
}

func TestExpression_UnknownFunctionVectorizes(t *testing.T) {
	out := rewriteSrc(t, "toupper(name)", Transform)
	assert.Equal(t, engine.MapCall{Fn: "toupper", Args: []engine.Expr{
		engine.ColRef{Name: "name"},
	}}, out[0].Expr)
}

func TestExpression_AggregateOutermostCallNeverVectorizes(t *testing.T) {
	// Unregistered head still compiles whole-column at the top of an
	// aggregate fragment.
	out := rewriteSrc(t, "my_stat(x)", Aggregate)
	assert.Equal(t, engine.AggCall{Fn: "my_stat", Args: []engine.Expr{
		engine.ColRef{Name: "x"},
	}}, out[0].Expr)

	// Nested unregistered calls vectorize as usual.
	out = rewriteSrc(t, "mean(clean(x))", Aggregate)
	agg, ok := out[0].Expr.(engine.AggCall)
	require.True(t, ok)
	assert.Equal(t, engine.MapCall{Fn: "clean", Args: []engine.Expr{
		engine.ColRef{Name: "x"},
	}}, agg.Args[0])
}

func TestExpression_RegistryIsInjectable(t *testing.T) {
	frag, err := parse.Fragment("winsorize(x)")
	require.NoError(t, err)

	ctx := testContext(t)
	ctx.Registry.Add("winsorize")
	out, err := Expression(frag, Transform, ctx)
	require.NoError(t, err)
	_, ok := out[0].Expr.(engine.AggCall)
	assert.True(t, ok)

	ctx.Registry.Remove("winsorize")
	out, err = Expression(frag, Transform, ctx)
	require.NoError(t, err)
	_, ok = out[0].Expr.(engine.MapCall)
	assert.True(t, ok)
}

func TestExpression_OperatorsLowerToCanonicalFunctions(t *testing.T) {
	cases := map[string]string{
		"a + b":  "add",
		"a - b":  "sub",
		"a * b":  "mul",
		"a / b":  "div",
		"a % b":  "mod",
		"a == b": "eq",
		"a != b": "ne",
		"a < b":  "lt",
		"a <= b": "le",
		"a > b":  "gt",
		"a >= b": "ge",
		"a && b": "and",
		"a || b": "or",
	}
	for src, fn := range cases {
		out := rewriteSrc(t, src, Transform)
		mc, ok := out[0].Expr.(engine.MapCall)
		require.True(t, ok, src)
		assert.Equal(t, fn, mc.Fn, src)
	}
}

func TestExpression_UnaryLowering(t *testing.T) {
	out := rewriteSrc(t, "-x", Transform)
	assert.Equal(t, engine.MapCall{Fn: "neg", Args: []engine.Expr{engine.ColRef{Name: "x"}}}, out[0].Expr)

	out = rewriteSrc(t, "!done", Predicate)
	assert.Equal(t, engine.MapCall{Fn: "not", Args: []engine.Expr{engine.ColRef{Name: "done"}}}, out[0].Expr)
}

func TestExpression_PredicateMustTypeBoolean(t *testing.T) {
	frag, err := parse.Fragment("x + 1")
	require.NoError(t, err)
	_, err = Expression(frag, Predicate, testContext(t))
	require.Error(t, err)
	assert.True(t, IsNonBooleanPredicate(err))
	assert.Contains(t, err.Error(), "x + 1")
}

func TestExpression_NDesugarsPerMode(t *testing.T) {
	// Transform: the broadcast pseudo-column itself.
	out := rewriteSrc(t, "n()", Transform)
	assert.Equal(t, engine.ColRef{Name: ".__n"}, out[0].Expr)

	// Aggregate: reduced to one value per group.
	out = rewriteSrc(t, "count = n()", Aggregate)
	assert.Equal(t, "count", out[0].Name)
	assert.Equal(t, engine.AggCall{Fn: "first", Args: []engine.Expr{
		engine.ColRef{Name: ".__n"},
	}}, out[0].Expr)
}

func TestExpression_RowNumberDesugars(t *testing.T) {
	out := rewriteSrc(t, "row_number()", Transform)
	assert.Equal(t, engine.ColRef{Name: ".__row"}, out[0].Expr)
}

func TestExpression_ColEscapesToColRef(t *testing.T) {
	out := rewriteSrc(t, `col("dep delay")`, Transform)
	assert.Equal(t, engine.ColRef{Name: "dep delay"}, out[0].Expr)

	frag, err := parse.Fragment("col(x)")
	require.NoError(t, err)
	_, err = Expression(frag, Transform, testContext(t))
	require.Error(t, err)
	assert.True(t, IsUnsupportedExpression(err))
}

func TestExpression_IfElseLowering(t *testing.T) {
	out := rewriteSrc(t, `if_else(x > 0, "pos", "neg")`, Transform)
	ie, ok := out[0].Expr.(engine.IfElse)
	require.True(t, ok)
	assert.Equal(t, engine.Lit{Value: engine.Str("pos")}, ie.Then)
}

func TestExpression_CaseWhenLowering(t *testing.T) {
	out := rewriteSrc(t, `case_when(x > 10 => "big", x > 1 => "mid", .default = "small")`, Transform)
	cw, ok := out[0].Expr.(engine.CaseWhen)
	require.True(t, ok)
	require.Len(t, cw.Clauses, 2)
	assert.Equal(t, engine.Lit{Value: engine.Str("mid")}, cw.Clauses[1].Then)
	assert.Equal(t, engine.Lit{Value: engine.Str("small")}, cw.Default)
}

func TestExpression_CaseWhenRejectsBadClauses(t *testing.T) {
	for _, src := range []string{
		"case_when()",
		"case_when(x)",
		`case_when(x > 1 => "a", .wrong = "z")`,
		`case_when(x > 1 => "a", .default = "y", .default = "z")`,
	} {
		frag, err := parse.Fragment(src)
		require.NoError(t, err, src)
		_, err = Expression(frag, Transform, testContext(t))
		require.Error(t, err, src)
		assert.True(t, IsUnsupportedExpression(err), src)
	}
}

func TestExpression_AcrossExpandsPairsInOrder(t *testing.T) {
	out := rewriteSrc(t, "across(c(x, y), c(mean, sum))", Aggregate)
	require.Len(t, out, 4)
	assert.Equal(t, "x_mean", out[0].Name)
	assert.Equal(t, "x_sum", out[1].Name)
	assert.Equal(t, "y_mean", out[2].Name)
	assert.Equal(t, "y_sum", out[3].Name)
	assert.Equal(t, engine.AggCall{Fn: "sum", Args: []engine.Expr{
		engine.ColRef{Name: "y"},
	}}, out[3].Expr)
}

func TestExpression_AcrossOnlyAtTopLevel(t *testing.T) {
	frag, err := parse.Fragment("1 + across(c(x), c(mean))")
	require.NoError(t, err)
	_, err = Expression(frag, Transform, testContext(t))
	require.Error(t, err)
	assert.True(t, IsUnsupportedExpression(err))
}

func TestExpression_DescOutsideArrangeRejected(t *testing.T) {
	frag, err := parse.Fragment("desc(x)")
	require.NoError(t, err)
	_, err = Expression(frag, Transform, testContext(t))
	require.Error(t, err)
	assert.True(t, IsUnsupportedExpression(err))
}

func TestOrdering_DescWrapperFlipsDirection(t *testing.T) {
	frag, err := parse.Fragment("desc(dep_delay)")
	require.NoError(t, err)
	key, err := Ordering(frag, testContext(t))
	require.NoError(t, err)
	assert.True(t, key.Desc)
	assert.Equal(t, engine.ColRef{Name: "dep_delay"}, key.Expr)

	frag, err = parse.Fragment("dep_delay")
	require.NoError(t, err)
	key, err = Ordering(frag, testContext(t))
	require.NoError(t, err)
	assert.False(t, key.Desc)
}

func TestSelectorNames_AcceptedForms(t *testing.T) {
	cases := map[string][]string{
		"x":            {"x"},
		`"dep delay"`:  {"dep delay"},
		`col("a b")`:   {"a b"},
		"c(a, b, c(d))": {"a", "b", "d"},
	}
	for src, want := range cases {
		frag, err := parse.Fragment(src)
		require.NoError(t, err, src)
		names, err := SelectorNames(frag)
		require.NoError(t, err, src)
		assert.Equal(t, want, names, src)
	}

	frag, err := parse.Fragment("x + 1")
	require.NoError(t, err)
	_, err = SelectorNames(frag)
	require.Error(t, err)
	assert.True(t, IsUnsupportedExpression(err))
}

func TestCompileError_CodeHelpers(t *testing.T) {
	err := Errorf(ErrCodeMixedSliceSign, "1, -2", "mixed")
	assert.True(t, IsMixedSliceSign(err))
	assert.False(t, IsInvalidOption(err))
	assert.Contains(t, err.Error(), "MIXED_SLICE_SIGN")
	assert.Contains(t, err.Error(), `"1, -2"`)
}
