package rewrite

import (
	"github.com/tidalframe/tidal/internal/ast"
	"github.com/tidalframe/tidal/internal/engine"
)

// SortKey is one ordering key: an engine expression plus direction.
type SortKey struct {
	Expr engine.Expr
	Desc bool
}

// Ordering rewrites one arrange argument. A desc(...) wrapper flips the
// key to descending; everything else sorts ascending. Ties fall through
// to later keys in argument order, and to original row order when all
// keys tie (the engine's stable sort guarantees the latter).
func Ordering(frag ast.Fragment, ctx *Context) (SortKey, error) {
	body := frag
	desc := false
	if call, ok := frag.(ast.Call); ok && call.Fn == "desc" {
		if len(call.Args) != 1 {
			return SortKey{}, Errorf(ErrCodeUnsupportedExpression, frag.String(),
				"desc wants one argument, got %d", len(call.Args))
		}
		desc = true
		body = call.Args[0]
	}
	expr, err := ctx.lower(body, Transform, 0)
	if err != nil {
		return SortKey{}, err
	}
	return SortKey{Expr: expr, Desc: desc}, nil
}
