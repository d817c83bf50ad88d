package engine

import (
	"fmt"
)

// Eval evaluates a canonical engine expression against a table. The
// result is either full-length (one cell per row) or length 1 (a scalar
// that broadcasts, produced by reductions and literal-only expressions).
func (t *Table) Eval(e Expr) ([]Value, error) {
	switch expr := e.(type) {
	case ColRef:
		c, ok := t.Column(expr.Name)
		if !ok {
			return nil, fmt.Errorf("unknown column %q", expr.Name)
		}
		return c.Cells, nil

	case Lit:
		v := expr.Value
		if v == nil {
			v = Null{}
		}
		return []Value{v}, nil

	case MapCall:
		sf, ok := scalarFuncs[expr.Fn]
		if !ok {
			return nil, fmt.Errorf("unknown function %q", expr.Fn)
		}
		args := make([][]Value, len(expr.Args))
		for i, a := range expr.Args {
			vals, err := t.Eval(a)
			if err != nil {
				return nil, err
			}
			args[i] = vals
		}
		return t.mapRows(expr.Fn, sf, args)

	case AggCall:
		cf, ok := columnFuncs[expr.Fn]
		if !ok {
			return nil, fmt.Errorf("unknown function %q", expr.Fn)
		}
		args := make([][]Value, len(expr.Args))
		for i, a := range expr.Args {
			vals, err := t.Eval(a)
			if err != nil {
				return nil, err
			}
			args[i] = vals
		}
		return cf(args)

	case IfElse:
		cond, err := t.Eval(expr.Cond)
		if err != nil {
			return nil, err
		}
		then, err := t.Eval(expr.Then)
		if err != nil {
			return nil, err
		}
		els, err := t.Eval(expr.Else)
		if err != nil {
			return nil, err
		}
		if err := branchesCompatible(then, els); err != nil {
			return nil, err
		}
		n, err := resultLen([][]Value{cond, then, els}, t.NRows())
		if err != nil {
			return nil, err
		}
		out := make([]Value, n)
		for i := range out {
			c := cell(cond, i)
			b, ok := truth(c)
			switch {
			case IsNull(c):
				out[i] = Null{}
			case !ok:
				return nil, fmt.Errorf("if_else: non-boolean condition %s", Format(c))
			case b:
				out[i] = cell(then, i)
			default:
				out[i] = cell(els, i)
			}
		}
		return out, nil

	case CaseWhen:
		conds := make([][]Value, len(expr.Clauses))
		thens := make([][]Value, len(expr.Clauses))
		all := make([][]Value, 0, 2*len(expr.Clauses)+1)
		for i, cl := range expr.Clauses {
			var err error
			if conds[i], err = t.Eval(cl.Cond); err != nil {
				return nil, err
			}
			if thens[i], err = t.Eval(cl.Then); err != nil {
				return nil, err
			}
			all = append(all, conds[i], thens[i])
		}
		var def []Value
		if expr.Default != nil {
			var err error
			if def, err = t.Eval(expr.Default); err != nil {
				return nil, err
			}
			all = append(all, def)
		}
		for i := 1; i < len(thens); i++ {
			if err := branchesCompatible(thens[0], thens[i]); err != nil {
				return nil, err
			}
		}
		if def != nil && len(thens) > 0 {
			if err := branchesCompatible(thens[0], def); err != nil {
				return nil, err
			}
		}
		n, err := resultLen(all, t.NRows())
		if err != nil {
			return nil, err
		}
		out := make([]Value, n)
		for i := range out {
			out[i] = Null{}
			matched := false
			// First-match-wins: clauses are tried in source order.
			for c := range expr.Clauses {
				cv := cell(conds[c], i)
				if b, ok := truth(cv); ok && b {
					out[i] = cell(thens[c], i)
					matched = true
					break
				}
			}
			if !matched && def != nil {
				out[i] = cell(def, i)
			}
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unsupported expression type %T", e)
	}
}

// EvalPredicate evaluates a boolean expression into a row mask. Missing
// predicate values collapse to false (missing-as-exclude), never to an
// error.
func (t *Table) EvalPredicate(e Expr) ([]bool, error) {
	vals, err := t.Eval(e)
	if err != nil {
		return nil, err
	}
	if len(vals) != t.NRows() && len(vals) != 1 {
		return nil, fmt.Errorf("predicate produced %d values for %d rows", len(vals), t.NRows())
	}
	mask := make([]bool, t.NRows())
	for i := range mask {
		v := cell(vals, i)
		if IsNull(v) {
			continue
		}
		b, ok := truth(v)
		if !ok {
			return nil, fmt.Errorf("predicate produced non-boolean value %s", Format(v))
		}
		mask[i] = b
	}
	return mask, nil
}

// mapRows applies a scalar function element-wise, broadcasting length-1
// arguments. If every argument is a scalar the result stays a scalar.
func (t *Table) mapRows(name string, sf scalarFunc, args [][]Value) ([]Value, error) {
	n, err := resultLen(args, t.NRows())
	if err != nil {
		return nil, err
	}
	out := make([]Value, n)
	row := make([]Value, len(args))
	for i := 0; i < n; i++ {
		null := false
		for j, a := range args {
			row[j] = cell(a, i)
			if IsNull(row[j]) {
				null = true
			}
		}
		if null && !sf.keepNulls {
			out[i] = Null{}
			continue
		}
		v, err := sf.fn(row)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[i] = v
	}
	return out, nil
}

// branchesCompatible rejects conditionals whose branches produce
// incompatible kinds (ints and floats count as one numeric kind).
func branchesCompatible(a, b []Value) error {
	ka, kb := -1, -1
	for _, v := range a {
		if !IsNull(v) {
			ka = kindRank(v)
			break
		}
	}
	for _, v := range b {
		if !IsNull(v) {
			kb = kindRank(v)
			break
		}
	}
	if ka != -1 && kb != -1 && ka != kb {
		return fmt.Errorf("conditional branches have incompatible types")
	}
	return nil
}

func resultLen(args [][]Value, nrows int) (int, error) {
	n := 1
	for _, a := range args {
		switch {
		case len(a) == 1:
		case len(a) == nrows:
			n = nrows
		case len(a) == n:
		default:
			return 0, fmt.Errorf("argument length %d does not match %d rows", len(a), nrows)
		}
	}
	return n, nil
}

func cell(vals []Value, i int) Value {
	if len(vals) == 1 {
		return vals[0]
	}
	return vals[i]
}
