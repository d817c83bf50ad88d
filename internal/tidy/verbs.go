package tidy

import (
	"github.com/tidalframe/tidal/internal/ast"
	"github.com/tidalframe/tidal/internal/engine"
	"github.com/tidalframe/tidal/internal/plan"
	"github.com/tidalframe/tidal/internal/rewrite"
)

// Select keeps the selected columns. On grouped input the grouping key
// columns are retained (ahead of the selection) even when not named.
func (s *Session) Select(ds engine.Dataset, args ...string) (engine.Dataset, error) {
	inv, err := s.begin("select", args)
	if err != nil {
		return nil, err
	}
	names, err := selectorList(inv.frags)
	if err != nil {
		return nil, err
	}
	if g, ok := ds.(*engine.Grouped); ok {
		names = unionFront(g.Keys(), names)
	}
	inv.plan.Add(plan.Project{Cols: names})
	return s.run(ds, inv.plan)
}

// Rename renames columns. Each argument takes the form "new = old".
func (s *Session) Rename(ds engine.Dataset, args ...string) (engine.Dataset, error) {
	inv, err := s.begin("rename", args)
	if err != nil {
		return nil, err
	}
	var pairs [][2]string
	for _, frag := range inv.frags {
		assign, ok := frag.(ast.Assign)
		if !ok {
			return nil, rewrite.Errorf(rewrite.ErrCodeUnsupportedExpression, frag.String(),
				"rename arguments take the form new = old")
		}
		old, ok := assign.Expr.(ast.Ident)
		if !ok {
			return nil, rewrite.Errorf(rewrite.ErrCodeUnsupportedExpression, frag.String(),
				"rename arguments take the form new = old")
		}
		pairs = append(pairs, [2]string{old.Name, assign.Name})
	}
	inv.plan.Add(plan.Rename{Pairs: pairs})
	return s.run(ds, inv.plan)
}

// Mutate adds or replaces columns computed from transform-mode
// expressions. Expressions see the columns created by earlier
// arguments of the same call.
func (s *Session) Mutate(ds engine.Dataset, args ...string) (engine.Dataset, error) {
	inv, err := s.begin("mutate", args)
	if err != nil {
		return nil, err
	}
	exprs, err := rewriteAll(inv, rewrite.Transform)
	if err != nil {
		return nil, err
	}
	inv.materialize()
	inv.plan.Add(plan.WithColumns{Exprs: exprs})
	inv.strip()
	return s.run(ds, inv.plan)
}

// Filter keeps the rows where every predicate holds. Missing predicate
// values exclude the row.
func (s *Session) Filter(ds engine.Dataset, args ...string) (engine.Dataset, error) {
	inv, err := s.begin("filter", args)
	if err != nil {
		return nil, err
	}
	var preds []engine.Expr
	for _, frag := range inv.frags {
		rw, err := rewrite.Expression(frag, rewrite.Predicate, inv.ctx)
		if err != nil {
			return nil, err
		}
		for _, r := range rw {
			preds = append(preds, r.Expr)
		}
	}
	inv.materialize()
	for _, p := range preds {
		inv.plan.Add(plan.Filter{Pred: p})
	}
	inv.strip()
	return s.run(ds, inv.plan)
}

// Summarize reduces each group to a single row. When the input grouping
// carries more than one key, the result is re-grouped by all but the
// last key (one grouping level peels per summarize); a single-key or
// flat input reduces to a flat table.
func (s *Session) Summarize(ds engine.Dataset, args ...string) (engine.Dataset, error) {
	inv, err := s.begin("summarize", args)
	if err != nil {
		return nil, err
	}
	exprs, err := rewriteAll(inv, rewrite.Aggregate)
	if err != nil {
		return nil, err
	}
	inv.materialize()
	inv.plan.Add(plan.Aggregate{Exprs: exprs})
	inv.strip()
	if g, ok := ds.(*engine.Grouped); ok {
		if keys := g.Keys(); len(keys) > 1 {
			inv.plan.Add(plan.Group{Keys: keys[:len(keys)-1]})
		}
	}
	return s.run(ds, inv.plan)
}

// Summarise is the spelling-tolerant alias for Summarize.
func (s *Session) Summarise(ds engine.Dataset, args ...string) (engine.Dataset, error) {
	return s.Summarize(ds, args...)
}

// GroupBy re-derives a fresh grouping from the selector columns,
// replacing any prior grouping. Groups order ascending by key.
func (s *Session) GroupBy(ds engine.Dataset, args ...string) (engine.Dataset, error) {
	inv, err := s.begin("group_by", args)
	if err != nil {
		return nil, err
	}
	keys, err := selectorList(inv.frags)
	if err != nil {
		return nil, err
	}
	inv.plan.Add(plan.Group{Keys: keys})
	return s.run(ds, inv.plan)
}

// Ungroup discards grouping structure, leaving content unchanged.
func (s *Session) Ungroup(ds engine.Dataset) (engine.Dataset, error) {
	inv, err := s.begin("ungroup", nil)
	if err != nil {
		return nil, err
	}
	inv.plan.Add(plan.Ungroup{})
	return s.run(ds, inv.plan)
}

// Arrange stably sorts rows by the given keys; desc(key) reverses one
// key. Grouped input is sorted as a whole and its grouping
// reconstructed from the retained key columns.
func (s *Session) Arrange(ds engine.Dataset, args ...string) (engine.Dataset, error) {
	inv, err := s.begin("arrange", args)
	if err != nil {
		return nil, err
	}
	var keys []rewrite.SortKey
	for _, frag := range inv.frags {
		key, err := rewrite.Ordering(frag, inv.ctx)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	inv.materialize()
	inv.plan.Add(plan.Sort{Keys: keys})
	inv.strip()
	return s.run(ds, inv.plan)
}

// Distinct removes duplicate rows, keeping first occurrences. With no
// arguments whole rows are compared; with selectors only those columns
// decide duplication.
func (s *Session) Distinct(ds engine.Dataset, args ...string) (engine.Dataset, error) {
	inv, err := s.begin("distinct", args)
	if err != nil {
		return nil, err
	}
	cols, err := selectorList(inv.frags)
	if err != nil {
		return nil, err
	}
	inv.plan.Add(plan.Distinct{Cols: cols})
	return s.run(ds, inv.plan)
}

// Slice keeps rows by 1-based position, resolved independently per
// group on grouped input. Negative positions count from the end.
func (s *Session) Slice(ds engine.Dataset, args ...string) (engine.Dataset, error) {
	inv, err := s.begin("slice", args)
	if err != nil {
		return nil, err
	}
	spec, err := rewrite.Slice(inv.frags)
	if err != nil {
		return nil, err
	}
	inv.plan.Add(plan.Slice{Spec: spec})
	return s.run(ds, inv.plan)
}

// Pull returns a single column's values directly, bypassing the
// dataset pipeline. Grouped input yields values in group order.
func (s *Session) Pull(ds engine.Dataset, arg string) ([]engine.Value, error) {
	inv, err := s.begin("pull", []string{arg})
	if err != nil {
		return nil, err
	}
	names, err := selectorList(inv.frags)
	if err != nil {
		return nil, err
	}
	if len(names) != 1 {
		return nil, rewrite.Errorf(rewrite.ErrCodeUnsupportedExpression, arg,
			"pull wants exactly one column, got %d", len(names))
	}
	inv.plan.Add(plan.Project{Cols: names})
	s.emit(inv.plan)

	t := flatten(ds)
	c, ok := t.Column(names[0])
	if !ok {
		return nil, rewrite.Errorf(rewrite.ErrCodeUnsupportedExpression, arg,
			"unknown column %q", names[0])
	}
	return c.Cells, nil
}

// DropNA removes rows holding missing values in the selected columns
// (all columns when none are given).
func (s *Session) DropNA(ds engine.Dataset, args ...string) (engine.Dataset, error) {
	inv, err := s.begin("drop_na", args)
	if err != nil {
		return nil, err
	}
	cols, err := selectorList(inv.frags)
	if err != nil {
		return nil, err
	}
	inv.plan.Add(plan.DropMissing{Cols: cols})
	return s.run(ds, inv.plan)
}

// rewriteAll rewrites every resolved fragment of the invocation under
// one mode, concatenating across(...) expansions in order.
func rewriteAll(inv *invocation, mode rewrite.Mode) ([]plan.NamedExpr, error) {
	var out []plan.NamedExpr
	for _, frag := range inv.frags {
		rw, err := rewrite.Expression(frag, mode, inv.ctx)
		if err != nil {
			return nil, err
		}
		for _, r := range rw {
			out = append(out, plan.NamedExpr{Name: r.Name, Expr: r.Expr})
		}
	}
	return out, nil
}

// selectorList rewrites fragments as column selectors.
func selectorList(frags []ast.Fragment) ([]string, error) {
	var names []string
	for _, frag := range frags {
		sub, err := rewrite.SelectorNames(frag)
		if err != nil {
			return nil, err
		}
		names = append(names, sub...)
	}
	return names, nil
}

// unionFront prepends the names in front that are missing from names,
// preserving both orders.
func unionFront(front, names []string) []string {
	have := make(map[string]bool, len(names))
	for _, n := range names {
		have[n] = true
	}
	var out []string
	for _, f := range front {
		if !have[f] {
			out = append(out, f)
		}
	}
	return append(out, names...)
}
