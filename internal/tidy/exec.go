package tidy

import (
	"fmt"
	"strings"

	"github.com/tidalframe/tidal/internal/engine"
	"github.com/tidalframe/tidal/internal/plan"
)

// run emits the compiled plan when explain is on, then executes it
// step by step. The input dataset is never modified; every step
// produces a fresh dataset.
func (s *Session) run(ds engine.Dataset, p *plan.Plan) (engine.Dataset, error) {
	s.emit(p)
	var err error
	for _, step := range p.Steps {
		ds, err = applyStep(ds, step)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.Verb, err)
		}
	}
	return ds, nil
}

// applyStep dispatches one engine call against either dataset variant.
func applyStep(ds engine.Dataset, step plan.Step) (engine.Dataset, error) {
	switch st := step.(type) {
	case plan.MaterializeRowCount:
		return perTable(ds, func(t *engine.Table) (*engine.Table, error) {
			return t.WithColumn(st.Col, t.RowCountCells())
		})

	case plan.MaterializeRowIndex:
		return perTable(ds, func(t *engine.Table) (*engine.Table, error) {
			return t.WithColumn(st.Col, t.RowIndexCells())
		})

	case plan.Project:
		return perTable(ds, func(t *engine.Table) (*engine.Table, error) {
			return t.Project(st.Cols)
		})

	case plan.Rename:
		switch d := ds.(type) {
		case *engine.Table:
			return d.Rename(st.Pairs)
		case *engine.Grouped:
			return d.Rename(st.Pairs)
		}

	case plan.WithColumns:
		return perTable(ds, func(t *engine.Table) (*engine.Table, error) {
			return withColumns(t, st.Exprs)
		})

	case plan.Filter:
		return perTable(ds, func(t *engine.Table) (*engine.Table, error) {
			mask, err := t.EvalPredicate(st.Pred)
			if err != nil {
				return nil, err
			}
			return t.FilterMask(mask), nil
		})

	case plan.Aggregate:
		return aggregate(ds, st.Exprs)

	case plan.Sort:
		// Sorting ignores group boundaries; grouping is reconstructed
		// from the retained key columns afterwards.
		switch d := ds.(type) {
		case *engine.Table:
			return sortTable(d, st)
		case *engine.Grouped:
			sorted, err := sortTable(d.Flatten(), st)
			if err != nil {
				return nil, err
			}
			return engine.GroupBy(sorted, d.Keys())
		}

	case plan.Distinct:
		return perTable(ds, func(t *engine.Table) (*engine.Table, error) {
			return t.DistinctRows(st.Cols)
		})

	case plan.DropMissing:
		return perTable(ds, func(t *engine.Table) (*engine.Table, error) {
			return t.DropMissing(st.Cols)
		})

	case plan.Slice:
		// Negative indices resolve against each group's own row count.
		return perTable(ds, func(t *engine.Table) (*engine.Table, error) {
			return t.TakeRows(st.Spec.Resolve(t.NRows())), nil
		})

	case plan.Group:
		return engine.GroupBy(flatten(ds), st.Keys)

	case plan.Ungroup:
		return flatten(ds), nil

	case plan.Strip:
		return perTable(ds, func(t *engine.Table) (*engine.Table, error) {
			return t.DropMatching(func(name string) bool {
				return strings.HasPrefix(name, st.Prefix)
			}), nil
		})
	}
	return nil, fmt.Errorf("unsupported plan step %T", step)
}

// withColumns evaluates expressions left to right, each seeing the
// columns added by its predecessors.
func withColumns(t *engine.Table, exprs []plan.NamedExpr) (*engine.Table, error) {
	for _, ne := range exprs {
		cells, err := t.Eval(ne.Expr)
		if err != nil {
			return nil, err
		}
		cells, err = broadcast(cells, t.NRows())
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", ne.Name, err)
		}
		t, err = t.WithColumn(ne.Name, cells)
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}

// aggregate reduces a dataset to one row per group. Grouped input
// yields key columns plus reductions; flat input yields a single row.
func aggregate(ds engine.Dataset, exprs []plan.NamedExpr) (engine.Dataset, error) {
	switch d := ds.(type) {
	case *engine.Table:
		cols := make([]engine.Column, 0, len(exprs))
		for _, ne := range exprs {
			v, err := reduceOne(d, ne)
			if err != nil {
				return nil, err
			}
			cols = append(cols, engine.Column{Name: ne.Name, Cells: []engine.Value{v}})
		}
		return engine.NewTable(cols...)

	case *engine.Grouped:
		keys := d.Keys()
		var rows []*engine.Table
		for _, part := range d.Partitions() {
			if part.NRows() == 0 {
				continue
			}
			cols := make([]engine.Column, 0, len(keys)+len(exprs))
			for _, k := range keys {
				kc, ok := part.Column(k)
				if !ok {
					return nil, fmt.Errorf("unknown column %q", k)
				}
				cols = append(cols, engine.Column{Name: k, Cells: []engine.Value{kc.Cells[0]}})
			}
			for _, ne := range exprs {
				v, err := reduceOne(part, ne)
				if err != nil {
					return nil, err
				}
				cols = append(cols, engine.Column{Name: ne.Name, Cells: []engine.Value{v}})
			}
			row, err := engine.NewTable(cols...)
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
		return engine.Concat(rows), nil
	}
	return nil, fmt.Errorf("unsupported dataset type %T", ds)
}

func reduceOne(t *engine.Table, ne plan.NamedExpr) (engine.Value, error) {
	cells, err := t.Eval(ne.Expr)
	if err != nil {
		return nil, err
	}
	if len(cells) != 1 {
		return nil, fmt.Errorf("column %q: expression does not reduce to one value per group", ne.Name)
	}
	return cells[0], nil
}

func sortTable(t *engine.Table, st plan.Sort) (*engine.Table, error) {
	keys := make([]engine.SortKeyCells, len(st.Keys))
	for i, k := range st.Keys {
		cells, err := t.Eval(k.Expr)
		if err != nil {
			return nil, err
		}
		cells, err = broadcast(cells, t.NRows())
		if err != nil {
			return nil, err
		}
		keys[i] = engine.SortKeyCells{Cells: cells, Desc: k.Desc}
	}
	return t.SortRows(keys), nil
}

func broadcast(cells []engine.Value, nrows int) ([]engine.Value, error) {
	switch {
	case len(cells) == nrows:
		return cells, nil
	case len(cells) == 1:
		out := make([]engine.Value, nrows)
		for i := range out {
			out[i] = cells[0]
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expression produced %d values for %d rows", len(cells), nrows)
	}
}

func perTable(ds engine.Dataset, op func(*engine.Table) (*engine.Table, error)) (engine.Dataset, error) {
	switch d := ds.(type) {
	case *engine.Table:
		return op(d)
	case *engine.Grouped:
		return d.MapPartitions(op)
	default:
		return nil, fmt.Errorf("unsupported dataset type %T", ds)
	}
}

func flatten(ds engine.Dataset) *engine.Table {
	switch d := ds.(type) {
	case *engine.Grouped:
		return d.Flatten()
	case *engine.Table:
		return d
	default:
		return &engine.Table{}
	}
}
