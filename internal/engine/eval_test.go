package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evalTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := NewTable(
		Column{Name: "x", Cells: []Value{Int(1), Int(2), Null{}, Int(4)}},
		Column{Name: "y", Cells: []Value{Float(0.5), Float(1.5), Float(2.5), Float(3.5)}},
		Column{Name: "s", Cells: []Value{Str("a"), Str("b"), Str("c"), Str("d")}},
	)
	require.NoError(t, err)
	return tbl
}

func TestEval_ColRefAndLit(t *testing.T) {
	tbl := evalTable(t)

	vals, err := tbl.Eval(ColRef{Name: "x"})
	require.NoError(t, err)
	assert.Len(t, vals, 4)

	vals, err = tbl.Eval(Lit{Value: Int(7)})
	require.NoError(t, err)
	assert.Equal(t, []Value{Int(7)}, vals)

	_, err = tbl.Eval(ColRef{Name: "zz"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown column "zz"`)
}

func TestEval_MapCallBroadcastsScalars(t *testing.T) {
	tbl := evalTable(t)

	// x + 10: the literal broadcasts against the full column.
	vals, err := tbl.Eval(MapCall{Fn: "add", Args: []Expr{
		ColRef{Name: "x"}, Lit{Value: Int(10)},
	}})
	require.NoError(t, err)
	assert.Equal(t, []Value{Int(11), Int(12), Null{}, Int(14)}, vals)
}

func TestEval_ScalarOnlyStaysScalar(t *testing.T) {
	tbl := evalTable(t)
	vals, err := tbl.Eval(MapCall{Fn: "add", Args: []Expr{
		Lit{Value: Int(1)}, Lit{Value: Int(2)},
	}})
	require.NoError(t, err)
	assert.Equal(t, []Value{Int(3)}, vals)
}

func TestEval_MissingShortCircuitsUnlessKept(t *testing.T) {
	tbl := evalTable(t)

	// eq never sees the missing cell.
	vals, err := tbl.Eval(MapCall{Fn: "eq", Args: []Expr{
		ColRef{Name: "x"}, Lit{Value: Int(2)},
	}})
	require.NoError(t, err)
	assert.Equal(t, []Value{Bool(false), Bool(true), Null{}, Bool(false)}, vals)

	// is_na runs with keepNulls and observes it.
	vals, err = tbl.Eval(MapCall{Fn: "is_na", Args: []Expr{ColRef{Name: "x"}}})
	require.NoError(t, err)
	assert.Equal(t, []Value{Bool(false), Bool(false), Bool(true), Bool(false)}, vals)

	// coalesce picks the first present value per row.
	vals, err = tbl.Eval(MapCall{Fn: "coalesce", Args: []Expr{
		ColRef{Name: "x"}, Lit{Value: Int(0)},
	}})
	require.NoError(t, err)
	assert.Equal(t, []Value{Int(1), Int(2), Int(0), Int(4)}, vals)
}

func TestEval_ThreeValuedLogic(t *testing.T) {
	tbl, err := NewTable(
		Column{Name: "p", Cells: []Value{Bool(true), Bool(false), Null{}}},
	)
	require.NoError(t, err)

	// false && NA is definitely false; true && NA stays missing.
	vals, err := tbl.Eval(MapCall{Fn: "and", Args: []Expr{
		ColRef{Name: "p"}, Lit{Value: Null{}},
	}})
	require.NoError(t, err)
	assert.Equal(t, []Value{Null{}, Bool(false), Null{}}, vals)

	// true || NA is definitely true.
	vals, err = tbl.Eval(MapCall{Fn: "or", Args: []Expr{
		ColRef{Name: "p"}, Lit{Value: Null{}},
	}})
	require.NoError(t, err)
	assert.Equal(t, []Value{Bool(true), Null{}, Null{}}, vals)
}

func TestEval_DivisionByZeroIsMissing(t *testing.T) {
	tbl := evalTable(t)
	vals, err := tbl.Eval(MapCall{Fn: "div", Args: []Expr{
		ColRef{Name: "y"}, Lit{Value: Int(0)},
	}})
	require.NoError(t, err)
	for _, v := range vals {
		assert.True(t, IsNull(v))
	}
}

func TestEval_AggCallReducesSkippingMissing(t *testing.T) {
	tbl := evalTable(t)

	vals, err := tbl.Eval(AggCall{Fn: "mean", Args: []Expr{ColRef{Name: "x"}}})
	require.NoError(t, err)
	require.Len(t, vals, 1)
	f, ok := AsFloat(vals[0])
	require.True(t, ok)
	assert.InDelta(t, 7.0/3.0, f, 1e-9)

	vals, err = tbl.Eval(AggCall{Fn: "sum", Args: []Expr{ColRef{Name: "x"}}})
	require.NoError(t, err)
	assert.Equal(t, []Value{Float(7)}, vals)
}

func TestEval_AllMissingReducesToMissing(t *testing.T) {
	tbl, err := NewTable(Column{Name: "x", Cells: []Value{Null{}, Null{}}})
	require.NoError(t, err)
	for _, fn := range []string{"mean", "min", "max", "median"} {
		vals, err := tbl.Eval(AggCall{Fn: fn, Args: []Expr{ColRef{Name: "x"}}})
		require.NoError(t, err, fn)
		assert.Equal(t, []Value{Null{}}, vals, fn)
	}
}

func TestEval_WindowFunctions(t *testing.T) {
	tbl := evalTable(t)

	vals, err := tbl.Eval(AggCall{Fn: "lag", Args: []Expr{ColRef{Name: "y"}}})
	require.NoError(t, err)
	assert.Equal(t, []Value{Null{}, Float(0.5), Float(1.5), Float(2.5)}, vals)

	vals, err = tbl.Eval(AggCall{Fn: "lead", Args: []Expr{ColRef{Name: "y"}}})
	require.NoError(t, err)
	assert.Equal(t, []Value{Float(1.5), Float(2.5), Float(3.5), Null{}}, vals)

	vals, err = tbl.Eval(AggCall{Fn: "cumsum", Args: []Expr{ColRef{Name: "x"}}})
	require.NoError(t, err)
	// The missing cell poisons the running sum from its position on.
	assert.Equal(t, []Value{Float(1), Float(3), Null{}, Null{}}, vals)
}

func TestEval_RankAndDenseRank(t *testing.T) {
	tbl, err := NewTable(
		Column{Name: "v", Cells: []Value{Int(30), Int(10), Int(30), Null{}, Int(20)}},
	)
	require.NoError(t, err)

	vals, err := tbl.Eval(AggCall{Fn: "rank", Args: []Expr{ColRef{Name: "v"}}})
	require.NoError(t, err)
	assert.Equal(t, []Value{Int(3), Int(1), Int(3), Null{}, Int(2)}, vals)

	vals, err = tbl.Eval(AggCall{Fn: "dense_rank", Args: []Expr{ColRef{Name: "v"}}})
	require.NoError(t, err)
	assert.Equal(t, []Value{Int(3), Int(1), Int(3), Null{}, Int(2)}, vals)
}

func TestEval_IfElse(t *testing.T) {
	tbl := evalTable(t)

	expr := IfElse{
		Cond: MapCall{Fn: "gt", Args: []Expr{ColRef{Name: "y"}, Lit{Value: Float(1)}}},
		Then: Lit{Value: Str("big")},
		Else: Lit{Value: Str("small")},
	}
	vals, err := tbl.Eval(expr)
	require.NoError(t, err)
	assert.Equal(t, []Value{Str("small"), Str("big"), Str("big"), Str("big")}, vals)
}

func TestEval_IfElse_MissingConditionYieldsMissing(t *testing.T) {
	tbl := evalTable(t)
	expr := IfElse{
		Cond: MapCall{Fn: "gt", Args: []Expr{ColRef{Name: "x"}, Lit{Value: Int(1)}}},
		Then: Lit{Value: Int(1)},
		Else: Lit{Value: Int(0)},
	}
	vals, err := tbl.Eval(expr)
	require.NoError(t, err)
	assert.Equal(t, []Value{Int(0), Int(1), Null{}, Int(1)}, vals)
}

func TestEval_IfElse_IncompatibleBranchesRejected(t *testing.T) {
	tbl := evalTable(t)
	expr := IfElse{
		Cond: Lit{Value: Bool(true)},
		Then: Lit{Value: Str("a")},
		Else: Lit{Value: Int(1)},
	}
	_, err := tbl.Eval(expr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incompatible")
}

func TestEval_CaseWhen_FirstMatchWins(t *testing.T) {
	tbl := evalTable(t)
	expr := CaseWhen{
		Clauses: []CaseClause{
			{Cond: MapCall{Fn: "ge", Args: []Expr{ColRef{Name: "y"}, Lit{Value: Float(2.5)}}}, Then: Lit{Value: Str("high")}},
			{Cond: MapCall{Fn: "ge", Args: []Expr{ColRef{Name: "y"}, Lit{Value: Float(1.5)}}}, Then: Lit{Value: Str("mid")}},
		},
		Default: Lit{Value: Str("low")},
	}
	vals, err := tbl.Eval(expr)
	require.NoError(t, err)
	assert.Equal(t, []Value{Str("low"), Str("mid"), Str("high"), Str("high")}, vals)
}

func TestEval_CaseWhen_NoMatchWithoutDefaultIsMissing(t *testing.T) {
	tbl := evalTable(t)
	expr := CaseWhen{
		Clauses: []CaseClause{
			{Cond: Lit{Value: Bool(false)}, Then: Lit{Value: Int(1)}},
		},
	}
	vals, err := tbl.Eval(expr)
	require.NoError(t, err)
	assert.Equal(t, []Value{Null{}}, vals)
}

func TestEvalPredicate_MissingExcludes(t *testing.T) {
	tbl := evalTable(t)
	mask, err := tbl.EvalPredicate(MapCall{Fn: "gt", Args: []Expr{
		ColRef{Name: "x"}, Lit{Value: Int(1)},
	}})
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true, false, true}, mask)
}

func TestEvalPredicate_NonBooleanRejected(t *testing.T) {
	tbl := evalTable(t)
	_, err := tbl.EvalPredicate(ColRef{Name: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-boolean")
}
