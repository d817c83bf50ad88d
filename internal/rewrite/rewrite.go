// Package rewrite lowers resolved syntax fragments into the engine's
// canonical expression vocabulary. It owns the vectorization registry,
// the rewrite modes, and the special-form desugarings (n, row_number,
// across, if_else, case_when, col, desc).
package rewrite

import (
	"fmt"

	"github.com/tidalframe/tidal/internal/ast"
	"github.com/tidalframe/tidal/internal/engine"
)

// Mode controls how a fragment is rewritten: whether auto-vectorization
// defaults apply and whether the result must reduce to one value per
// group.
type Mode int

const (
	// Selection rewrites fragments to column selectors.
	Selection Mode = iota
	// Transform rewrites fragments to full-length derived columns.
	Transform
	// Aggregate rewrites fragments to per-group reductions; the
	// outermost call is never auto-vectorized.
	Aggregate
	// Predicate rewrites fragments to boolean row masks.
	Predicate
)

func (m Mode) String() string {
	switch m {
	case Selection:
		return "selection"
	case Transform:
		return "transform"
	case Aggregate:
		return "aggregate"
	case Predicate:
		return "predicate"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Context carries the per-invocation state a rewrite needs: the
// registry, and the materialized names of the ephemeral pseudo-columns
// standing in for row count and row position.
type Context struct {
	Registry *Registry

	// RowCountCol is the pseudo-column n() desugars to.
	RowCountCol string
	// RowIndexCol is the pseudo-column row_number() desugars to.
	RowIndexCol string
}

// Rewritten is one canonical engine expression plus its destination
// column name.
type Rewritten struct {
	Name string
	Expr engine.Expr
}

// Expression rewrites a resolved fragment under a mode. Most fragments
// yield exactly one expression; across(...) expands to one per
// (column, function) pair.
func Expression(frag ast.Fragment, mode Mode, ctx *Context) ([]Rewritten, error) {
	name := ""
	body := frag
	if assign, ok := frag.(ast.Assign); ok {
		name = assign.Name
		body = assign.Expr
	}

	if call, ok := body.(ast.Call); ok && call.Fn == "across" {
		if name != "" {
			return nil, Errorf(ErrCodeUnsupportedExpression, frag.String(),
				"across expansion cannot be named")
		}
		return expandAcross(call, mode, ctx)
	}

	expr, err := ctx.lower(body, mode, 0)
	if err != nil {
		return nil, err
	}
	if mode == Predicate && !booleanShaped(expr) {
		return nil, Errorf(ErrCodeNonBooleanPredicate, frag.String(),
			"expression does not type as boolean")
	}
	if name == "" {
		// No explicit destination: the canonical stringified form of
		// the original fragment names the column.
		name = body.String()
	}
	return []Rewritten{{Name: name, Expr: expr}}, nil
}

// lower recursively rewrites a fragment body. depth tracks call nesting
// so Aggregate mode can suppress auto-vectorization of the outermost
// call only.
func (ctx *Context) lower(frag ast.Fragment, mode Mode, depth int) (engine.Expr, error) {
	switch f := frag.(type) {
	case ast.Ident:
		// A bare identifier not naming a reserved pseudo-function is a
		// column reference.
		return engine.ColRef{Name: f.Name}, nil

	case ast.Literal:
		return engine.Lit{Value: f.Value}, nil

	case ast.Unary:
		x, err := ctx.lower(f.X, mode, depth+1)
		if err != nil {
			return nil, err
		}
		switch f.Op {
		case "-":
			return engine.MapCall{Fn: "neg", Args: []engine.Expr{x}}, nil
		case "!":
			return engine.MapCall{Fn: "not", Args: []engine.Expr{x}}, nil
		default:
			return nil, Errorf(ErrCodeUnsupportedExpression, frag.String(),
				"unknown unary operator %q", f.Op)
		}

	case ast.Binary:
		fn, ok := binaryOps[f.Op]
		if !ok {
			return nil, Errorf(ErrCodeUnsupportedExpression, frag.String(),
				"operator %q is not valid here", f.Op)
		}
		x, err := ctx.lower(f.X, mode, depth+1)
		if err != nil {
			return nil, err
		}
		y, err := ctx.lower(f.Y, mode, depth+1)
		if err != nil {
			return nil, err
		}
		return engine.MapCall{Fn: fn, Args: []engine.Expr{x, y}}, nil

	case ast.Call:
		return ctx.lowerCall(f, mode, depth)

	case ast.Assign:
		return nil, Errorf(ErrCodeUnsupportedExpression, frag.String(),
			"assignment is only valid at the top of a fragment")

	case ast.Interp:
		return nil, Errorf(ErrCodeInvalidInterpolation, frag.String(),
			"interpolation was not resolved before rewriting")

	default:
		return nil, Errorf(ErrCodeUnsupportedExpression, frag.String(),
			"unrecognized fragment type %T", frag)
	}
}

func (ctx *Context) lowerCall(f ast.Call, mode Mode, depth int) (engine.Expr, error) {
	switch f.Fn {
	case "n":
		if len(f.Args) != 0 {
			return nil, Errorf(ErrCodeUnsupportedExpression, f.String(), "n() takes no arguments")
		}
		if mode == Aggregate {
			// The pseudo-column broadcasts the count to every row;
			// reducing with first keeps the per-group scalar contract.
			return engine.AggCall{Fn: "first", Args: []engine.Expr{engine.ColRef{Name: ctx.RowCountCol}}}, nil
		}
		return engine.ColRef{Name: ctx.RowCountCol}, nil

	case "row_number":
		if len(f.Args) != 0 {
			return nil, Errorf(ErrCodeUnsupportedExpression, f.String(), "row_number() takes no arguments")
		}
		return engine.ColRef{Name: ctx.RowIndexCol}, nil

	case "col":
		if len(f.Args) != 1 {
			return nil, Errorf(ErrCodeUnsupportedExpression, f.String(), "col() takes one argument")
		}
		lit, ok := f.Args[0].(ast.Literal)
		if !ok {
			return nil, Errorf(ErrCodeUnsupportedExpression, f.String(), "col() takes a string literal")
		}
		s, ok := lit.Value.(engine.Str)
		if !ok {
			return nil, Errorf(ErrCodeUnsupportedExpression, f.String(), "col() takes a string literal")
		}
		return engine.ColRef{Name: string(s)}, nil

	case "if_else":
		if len(f.Args) != 3 {
			return nil, Errorf(ErrCodeUnsupportedExpression, f.String(),
				"if_else wants 3 arguments, got %d", len(f.Args))
		}
		cond, err := ctx.lower(f.Args[0], mode, depth+1)
		if err != nil {
			return nil, err
		}
		then, err := ctx.lower(f.Args[1], mode, depth+1)
		if err != nil {
			return nil, err
		}
		els, err := ctx.lower(f.Args[2], mode, depth+1)
		if err != nil {
			return nil, err
		}
		return engine.IfElse{Cond: cond, Then: then, Else: els}, nil

	case "case_when":
		return ctx.lowerCaseWhen(f, mode, depth)

	case "across":
		return nil, Errorf(ErrCodeUnsupportedExpression, f.String(),
			"across is only valid at the top of a fragment")

	case "desc":
		return nil, Errorf(ErrCodeUnsupportedExpression, f.String(),
			"desc is only valid in arrange")

	default:
		args := make([]engine.Expr, len(f.Args))
		for i, a := range f.Args {
			arg, err := ctx.lower(a, mode, depth+1)
			if err != nil {
				return nil, err
			}
			args[i] = arg
		}
		// Registry membership is the single source of truth for the
		// vectorize decision, checked by exact identifier match.
		if ctx.Registry.Contains(f.Fn) {
			return engine.AggCall{Fn: f.Fn, Args: args}, nil
		}
		if mode == Aggregate && depth == 0 {
			// Aggregate verbs expect whole-column reduction from the
			// outermost call even for unregistered identifiers.
			return engine.AggCall{Fn: f.Fn, Args: args}, nil
		}
		return engine.MapCall{Fn: f.Fn, Args: args}, nil
	}
}

func (ctx *Context) lowerCaseWhen(f ast.Call, mode Mode, depth int) (engine.Expr, error) {
	if len(f.Args) == 0 {
		return nil, Errorf(ErrCodeUnsupportedExpression, f.String(), "case_when wants at least one clause")
	}
	out := engine.CaseWhen{}
	for _, a := range f.Args {
		switch arg := a.(type) {
		case ast.Binary:
			if arg.Op != "=>" {
				return nil, Errorf(ErrCodeUnsupportedExpression, a.String(),
					"case_when clauses use the form predicate => value")
			}
			cond, err := ctx.lower(arg.X, mode, depth+1)
			if err != nil {
				return nil, err
			}
			then, err := ctx.lower(arg.Y, mode, depth+1)
			if err != nil {
				return nil, err
			}
			out.Clauses = append(out.Clauses, engine.CaseClause{Cond: cond, Then: then})

		case ast.Assign:
			if arg.Name != ".default" {
				return nil, Errorf(ErrCodeUnsupportedExpression, a.String(),
					"unknown case_when option %q", arg.Name)
			}
			if out.Default != nil {
				return nil, Errorf(ErrCodeUnsupportedExpression, a.String(),
					"duplicate .default clause")
			}
			def, err := ctx.lower(arg.Expr, mode, depth+1)
			if err != nil {
				return nil, err
			}
			out.Default = def

		default:
			return nil, Errorf(ErrCodeUnsupportedExpression, a.String(),
				"case_when clauses use the form predicate => value")
		}
	}
	if len(out.Clauses) == 0 {
		return nil, Errorf(ErrCodeUnsupportedExpression, f.String(), "case_when wants at least one clause")
	}
	return out, nil
}

// expandAcross expands across(columns, funcs) into one rewritten
// expression per (column, function) pair. Each expansion term vectorizes
// (or not) on its own; across itself is exempt at the top level.
func expandAcross(f ast.Call, mode Mode, ctx *Context) ([]Rewritten, error) {
	if len(f.Args) != 2 {
		return nil, Errorf(ErrCodeUnsupportedExpression, f.String(),
			"across wants columns and functions, got %d arguments", len(f.Args))
	}
	cols, err := selectorNames(f.Args[0])
	if err != nil {
		return nil, err
	}
	fns, err := selectorNames(f.Args[1])
	if err != nil {
		return nil, err
	}
	var out []Rewritten
	for _, col := range cols {
		for _, fn := range fns {
			term := ast.Call{Fn: fn, Args: []ast.Fragment{ast.Ident{Name: col}}}
			expr, err := ctx.lower(term, mode, 0)
			if err != nil {
				return nil, err
			}
			// Deterministic destination naming from the pair.
			out = append(out, Rewritten{Name: col + "_" + fn, Expr: expr})
		}
	}
	return out, nil
}

// SelectorNames rewrites a Selection-mode fragment into column names.
// Identifiers, string literals, col(), and c(...) groupings are
// accepted; anything else is unsupported in a selector position.
func SelectorNames(frag ast.Fragment) ([]string, error) {
	return selectorNames(frag)
}

func selectorNames(frag ast.Fragment) ([]string, error) {
	switch f := frag.(type) {
	case ast.Ident:
		return []string{f.Name}, nil
	case ast.Literal:
		if s, ok := f.Value.(engine.Str); ok {
			return []string{string(s)}, nil
		}
	case ast.Call:
		switch f.Fn {
		case "c":
			var names []string
			for _, a := range f.Args {
				sub, err := selectorNames(a)
				if err != nil {
					return nil, err
				}
				names = append(names, sub...)
			}
			return names, nil
		case "col":
			if len(f.Args) == 1 {
				if lit, ok := f.Args[0].(ast.Literal); ok {
					if s, ok := lit.Value.(engine.Str); ok {
						return []string{string(s)}, nil
					}
				}
			}
		}
	}
	return nil, Errorf(ErrCodeUnsupportedExpression, frag.String(),
		"expected a column selector")
}

var binaryOps = map[string]string{
	"+":  "add",
	"-":  "sub",
	"*":  "mul",
	"/":  "div",
	"%":  "mod",
	"==": "eq",
	"!=": "ne",
	"<":  "lt",
	"<=": "le",
	">":  "gt",
	">=": "ge",
	"&&": "and",
	"||": "or",
}

// booleanShaped reports whether an engine expression plausibly yields a
// boolean column. Column references and conditionals pass and are
// checked at evaluation time; arithmetic and plain literals do not.
func booleanShaped(e engine.Expr) bool {
	switch expr := e.(type) {
	case engine.ColRef:
		return true
	case engine.Lit:
		_, ok := expr.Value.(engine.Bool)
		return ok
	case engine.MapCall:
		switch expr.Fn {
		case "eq", "ne", "lt", "le", "gt", "ge", "and", "or", "not", "is_na":
			return true
		}
		return false
	case engine.IfElse:
		return booleanShaped(expr.Then) && booleanShaped(expr.Else)
	case engine.CaseWhen:
		for _, c := range expr.Clauses {
			if !booleanShaped(c.Then) {
				return false
			}
		}
		if expr.Default != nil {
			return booleanShaped(expr.Default)
		}
		return true
	default:
		return false
	}
}
