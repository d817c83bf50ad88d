package rewrite

import (
	"github.com/tidalframe/tidal/internal/ast"
	"github.com/tidalframe/tidal/internal/engine"
)

// SliceSpec is a parsed slice argument list: signed 1-based row
// indices. Positive indices count from the front, negative indices from
// the end (-1 is the last row). One spec never mixes signs.
type SliceSpec struct {
	Indices []int64
}

// Slice parses slice arguments: literal integers, integer ranges a:b,
// and their negated forms. Mixing positive and negative indices in one
// invocation signals MixedSliceSign.
func Slice(frags []ast.Fragment) (SliceSpec, error) {
	var spec SliceSpec
	for _, frag := range frags {
		idx, err := sliceIndices(frag)
		if err != nil {
			return SliceSpec{}, err
		}
		spec.Indices = append(spec.Indices, idx...)
	}
	pos, neg := false, false
	for _, i := range spec.Indices {
		switch {
		case i > 0:
			pos = true
		case i < 0:
			neg = true
		default:
			return SliceSpec{}, Errorf(ErrCodeUnsupportedExpression, "0",
				"slice indices are 1-based; 0 is not a row")
		}
	}
	if pos && neg {
		return SliceSpec{}, Errorf(ErrCodeMixedSliceSign, fragListString(frags),
			"slice indices must be all positive or all negative")
	}
	return spec, nil
}

// Resolve maps the spec onto a concrete row count, yielding 0-based row
// indices in spec order. Negative indices resolve to their positive
// complement; out-of-range indices are dropped.
func (s SliceSpec) Resolve(nrows int) []int {
	out := make([]int, 0, len(s.Indices))
	for _, idx := range s.Indices {
		pos := idx
		if idx < 0 {
			pos = int64(nrows) + idx + 1
		}
		if pos >= 1 && pos <= int64(nrows) {
			out = append(out, int(pos-1))
		}
	}
	return out
}

func sliceIndices(frag ast.Fragment) ([]int64, error) {
	switch f := frag.(type) {
	case ast.Literal:
		n, ok := literalInt(f)
		if !ok {
			return nil, Errorf(ErrCodeUnsupportedExpression, frag.String(),
				"slice wants integer indices")
		}
		return []int64{n}, nil

	case ast.Unary:
		if f.Op != "-" {
			return nil, Errorf(ErrCodeUnsupportedExpression, frag.String(),
				"slice wants integer indices")
		}
		inner, err := sliceIndices(f.X)
		if err != nil {
			return nil, err
		}
		out := make([]int64, len(inner))
		for i, n := range inner {
			out[i] = -n
		}
		return out, nil

	case ast.Binary:
		if f.Op != ":" {
			return nil, Errorf(ErrCodeUnsupportedExpression, frag.String(),
				"slice wants integer indices")
		}
		lo, err := singleIndex(f.X)
		if err != nil {
			return nil, err
		}
		hi, err := singleIndex(f.Y)
		if err != nil {
			return nil, err
		}
		var out []int64
		if lo <= hi {
			for i := lo; i <= hi; i++ {
				out = append(out, i)
			}
		} else {
			for i := lo; i >= hi; i-- {
				out = append(out, i)
			}
		}
		return out, nil

	default:
		return nil, Errorf(ErrCodeUnsupportedExpression, frag.String(),
			"slice wants integer indices")
	}
}

func singleIndex(frag ast.Fragment) (int64, error) {
	idx, err := sliceIndices(frag)
	if err != nil {
		return 0, err
	}
	if len(idx) != 1 {
		return 0, Errorf(ErrCodeUnsupportedExpression, frag.String(),
			"range bounds must be single integers")
	}
	return idx[0], nil
}

func literalInt(f ast.Literal) (int64, bool) {
	return engine.AsInt(f.Value)
}

func fragListString(frags []ast.Fragment) string {
	s := ""
	for i, f := range frags {
		if i > 0 {
			s += ", "
		}
		s += f.String()
	}
	return s
}
