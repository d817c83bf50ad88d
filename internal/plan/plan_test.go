package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tidalframe/tidal/internal/engine"
	"github.com/tidalframe/tidal/internal/rewrite"
)

func TestPlanString_OneCallPerLine(t *testing.T) {
	p := &Plan{Verb: "mutate"}
	p.Add(WithColumns{Exprs: []NamedExpr{
		{Name: "gain", Expr: engine.MapCall{Fn: "sub", Args: []engine.Expr{
			engine.ColRef{Name: "dep_delay"},
			engine.ColRef{Name: "arr_delay"},
		}}},
	}})

	want := "mutate:\n  with_columns(gain = map(sub, col(dep_delay), col(arr_delay)))\n"
	assert.Equal(t, want, p.String())
}

func TestStepRender_Forms(t *testing.T) {
	cases := []struct {
		step Step
		want string
	}{
		{Project{Cols: []string{"a", "b"}}, "project(a, b)"},
		{Rename{Pairs: [][2]string{{"old", "new"}}}, "rename(new = old)"},
		{Filter{Pred: engine.ColRef{Name: "ok"}}, "filter(col(ok))"},
		{Aggregate{Exprs: []NamedExpr{{Name: "m", Expr: engine.AggCall{Fn: "mean", Args: []engine.Expr{engine.ColRef{Name: "x"}}}}}}, "aggregate(m = mean(col(x)))"},
		{Sort{Keys: []rewrite.SortKey{{Expr: engine.ColRef{Name: "x"}}, {Expr: engine.ColRef{Name: "y"}, Desc: true}}}, "sort(col(x), desc(col(y)))"},
		{Distinct{Cols: []string{"k"}}, "distinct(k)"},
		{Distinct{}, "distinct()"},
		{DropMissing{Cols: []string{"x"}}, "drop_missing(x)"},
		{Slice{Spec: rewrite.SliceSpec{Indices: []int64{-1, -2}}}, "slice(-1, -2)"},
		{Group{Keys: []string{"team", "year"}}, "group_by(team, year)"},
		{Ungroup{}, "ungroup()"},
		{MaterializeRowCount{Col: ".__n"}, "with_columns(.__n = row_count())"},
		{MaterializeRowIndex{Col: ".__row"}, "with_columns(.__row = row_index())"},
		{Strip{Prefix: ".__t_"}, `drop_matching(".__t_*")`},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.step.Render())
	}
}
