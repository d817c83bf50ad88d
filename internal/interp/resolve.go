// Package interp resolves !!-marked interpolation before any
// column-level rewriting. Marked sub-fragments are CEL expressions
// evaluated in the caller's environment; their results splice back into
// the fragment as literal syntax, expanding multi-valued results into
// comma-joined siblings where the position allows it.
package interp

import (
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"

	"github.com/tidalframe/tidal/internal/ast"
	"github.com/tidalframe/tidal/internal/engine"
	"github.com/tidalframe/tidal/internal/rewrite"
)

// Env is the caller environment visible to !! interpolation.
type Env map[string]any

// Result is the resolution of one verb argument: the (possibly
// expanded) fragments, plus the pseudo-column flags.
type Result struct {
	// Fragments is the spliced expansion of the input fragment. It has
	// one element unless a multi-valued interpolation sat in a
	// position accepting multiple arguments.
	Fragments []ast.Fragment

	// UsesRowCount is set when n() appears anywhere in the fragment.
	UsesRowCount bool
	// UsesRowIndex is set when row_number() appears anywhere in the
	// fragment.
	UsesRowIndex bool
}

// Resolve evaluates every interpolation marker in frag against env and
// scans for the reserved pseudo-function calls. The input fragment is
// never mutated.
func Resolve(frag ast.Fragment, env Env) (Result, error) {
	res := Result{}
	res.UsesRowCount, res.UsesRowIndex = scanPseudo(frag)

	frags, err := splice(frag, env, true)
	if err != nil {
		return Result{}, err
	}
	res.Fragments = frags
	return res, nil
}

// scanPseudo walks the unevaluated fragment for n() and row_number()
// calls at any nesting depth.
func scanPseudo(frag ast.Fragment) (usesCount, usesIndex bool) {
	switch f := frag.(type) {
	case ast.Call:
		if f.Fn == "n" && len(f.Args) == 0 {
			usesCount = true
		}
		if f.Fn == "row_number" && len(f.Args) == 0 {
			usesIndex = true
		}
		for _, a := range f.Args {
			c, i := scanPseudo(a)
			usesCount = usesCount || c
			usesIndex = usesIndex || i
		}
	case ast.Assign:
		return scanPseudo(f.Expr)
	case ast.Unary:
		return scanPseudo(f.X)
	case ast.Binary:
		c1, i1 := scanPseudo(f.X)
		c2, i2 := scanPseudo(f.Y)
		return c1 || c2, i1 || i2
	}
	return usesCount, usesIndex
}

// splice rewrites one fragment, expanding interpolations. multi reports
// whether the current position accepts several comma-joined siblings.
func splice(frag ast.Fragment, env Env, multi bool) ([]ast.Fragment, error) {
	switch f := frag.(type) {
	case ast.Interp:
		vals, isList, err := evaluate(f, env)
		if err != nil {
			return nil, err
		}
		if isList && !multi {
			return nil, rewrite.Errorf(rewrite.ErrCodeInvalidInterpolation, f.String(),
				"multi-valued interpolation in a position accepting one value")
		}
		out := make([]ast.Fragment, len(vals))
		for i, v := range vals {
			out[i] = ast.Literal{Value: v}
		}
		return out, nil

	case ast.Call:
		var args []ast.Fragment
		for _, a := range f.Args {
			sub, err := splice(a, env, true)
			if err != nil {
				return nil, err
			}
			args = append(args, sub...)
		}
		return []ast.Fragment{ast.Call{Fn: f.Fn, Args: args}}, nil

	case ast.Assign:
		expr, err := spliceOne(f.Expr, env)
		if err != nil {
			return nil, err
		}
		return []ast.Fragment{ast.Assign{Name: f.Name, Expr: expr}}, nil

	case ast.Unary:
		x, err := spliceOne(f.X, env)
		if err != nil {
			return nil, err
		}
		return []ast.Fragment{ast.Unary{Op: f.Op, X: x}}, nil

	case ast.Binary:
		x, err := spliceOne(f.X, env)
		if err != nil {
			return nil, err
		}
		y, err := spliceOne(f.Y, env)
		if err != nil {
			return nil, err
		}
		return []ast.Fragment{ast.Binary{Op: f.Op, X: x, Y: y}}, nil

	default:
		return []ast.Fragment{frag}, nil
	}
}

func spliceOne(frag ast.Fragment, env Env) (ast.Fragment, error) {
	out, err := splice(frag, env, false)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, rewrite.Errorf(rewrite.ErrCodeInvalidInterpolation, frag.String(),
			"multi-valued interpolation in a position accepting one value")
	}
	return out[0], nil
}

// evaluate compiles and runs the marked sub-fragment as a CEL
// expression over the caller environment. Returns the spliced values
// and whether the result was a sequence.
func evaluate(f ast.Interp, env Env) ([]engine.Value, bool, error) {
	opts := make([]cel.EnvOption, 0, len(env))
	for name := range env {
		opts = append(opts, cel.Variable(name, cel.DynType))
	}
	celEnv, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, false, rewrite.Errorf(rewrite.ErrCodeInvalidInterpolation, f.String(),
			"environment: %v", err)
	}
	prog, iss := celEnv.Compile(f.Src)
	if iss != nil && iss.Err() != nil {
		return nil, false, rewrite.Errorf(rewrite.ErrCodeInvalidInterpolation, f.String(),
			"%v", iss.Err())
	}
	prg, err := celEnv.Program(prog)
	if err != nil {
		return nil, false, rewrite.Errorf(rewrite.ErrCodeInvalidInterpolation, f.String(),
			"%v", err)
	}
	out, _, err := prg.Eval(map[string]any(env))
	if err != nil {
		return nil, false, rewrite.Errorf(rewrite.ErrCodeInvalidInterpolation, f.String(),
			"%v", err)
	}

	if lister, ok := out.(traits.Lister); ok {
		vals, err := listValues(f, lister)
		if err != nil {
			return nil, false, err
		}
		return vals, true, nil
	}
	v, err := scalarValue(f, out)
	if err != nil {
		return nil, false, err
	}
	return []engine.Value{v}, false, nil
}

func listValues(f ast.Interp, lister traits.Lister) ([]engine.Value, error) {
	var vals []engine.Value
	kind := -1
	it := lister.Iterator()
	for bool(it.HasNext().(types.Bool)) {
		v, err := scalarValue(f, it.Next())
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
		k := valueKind(v)
		if kind == -1 {
			kind = k
		} else if k != kind {
			// Sequences must be homogeneous to splice as siblings.
			return nil, rewrite.Errorf(rewrite.ErrCodeInvalidInterpolation, f.String(),
				"interpolated sequence mixes value types")
		}
	}
	if len(vals) == 0 {
		return nil, rewrite.Errorf(rewrite.ErrCodeInvalidInterpolation, f.String(),
			"interpolated sequence is empty")
	}
	return vals, nil
}

func scalarValue(f ast.Interp, rv ref.Val) (engine.Value, error) {
	v, err := engine.FromNative(rv.Value())
	if err != nil {
		return nil, rewrite.Errorf(rewrite.ErrCodeInvalidInterpolation, f.String(),
			"%v", err)
	}
	return v, nil
}

func valueKind(v engine.Value) int {
	switch v.(type) {
	case engine.Bool:
		return 0
	case engine.Int, engine.Float:
		return 1
	case engine.Str:
		return 2
	default:
		return 3
	}
}
