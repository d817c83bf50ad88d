package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// scalarFunc computes one output cell from one input cell per argument.
type scalarFunc struct {
	fn func(args []Value) (Value, error)
	// keepNulls exposes missing arguments to the function instead of
	// short-circuiting the call to a missing result.
	keepNulls bool
}

// columnFunc computes over whole columns. The result is either a single
// reduced value (length 1) or a derived full-length column.
type columnFunc func(args [][]Value) ([]Value, error)

// scalarFuncs is the element-wise vocabulary reachable through MapCall.
var scalarFuncs = map[string]scalarFunc{
	"add": {fn: arith(func(a, b int64) int64 { return a + b }, func(a, b float64) float64 { return a + b })},
	"sub": {fn: arith(func(a, b int64) int64 { return a - b }, func(a, b float64) float64 { return a - b })},
	"mul": {fn: arith(func(a, b int64) int64 { return a * b }, func(a, b float64) float64 { return a * b })},
	"div": {fn: func(args []Value) (Value, error) {
		a, b, err := twoFloats("div", args)
		if err != nil {
			return nil, err
		}
		if b == 0 {
			return Null{}, nil
		}
		return Float(a / b), nil
	}},
	"mod": {fn: func(args []Value) (Value, error) {
		if ai, aok := toInt(args[0]); aok {
			if bi, bok := toInt(args[1]); bok {
				if bi == 0 {
					return Null{}, nil
				}
				return Int(((ai % bi) + bi) % bi), nil
			}
		}
		a, b, err := twoFloats("mod", args)
		if err != nil {
			return nil, err
		}
		if b == 0 {
			return Null{}, nil
		}
		return Float(math.Mod(a, b)), nil
	}},
	"neg": {fn: func(args []Value) (Value, error) {
		switch v := args[0].(type) {
		case Int:
			return Int(-v), nil
		case Float:
			return Float(-v), nil
		default:
			return nil, fmt.Errorf("neg: non-numeric operand %s", Format(args[0]))
		}
	}},

	"eq": {fn: compare(func(c int) bool { return c == 0 })},
	"ne": {fn: compare(func(c int) bool { return c != 0 })},
	"lt": {fn: compare(func(c int) bool { return c < 0 })},
	"le": {fn: compare(func(c int) bool { return c <= 0 })},
	"gt": {fn: compare(func(c int) bool { return c > 0 })},
	"ge": {fn: compare(func(c int) bool { return c >= 0 })},

	"and": {keepNulls: true, fn: func(args []Value) (Value, error) {
		a, aok := truth(args[0])
		b, bok := truth(args[1])
		// Three-valued conjunction: a definite false wins over missing.
		switch {
		case aok && !a, bok && !b:
			return Bool(false), nil
		case !aok || !bok:
			return Null{}, nil
		default:
			return Bool(true), nil
		}
	}},
	"or": {keepNulls: true, fn: func(args []Value) (Value, error) {
		a, aok := truth(args[0])
		b, bok := truth(args[1])
		switch {
		case aok && a, bok && b:
			return Bool(true), nil
		case !aok || !bok:
			return Null{}, nil
		default:
			return Bool(false), nil
		}
	}},
	"not": {fn: func(args []Value) (Value, error) {
		b, ok := truth(args[0])
		if !ok {
			return nil, fmt.Errorf("not: non-boolean operand %s", Format(args[0]))
		}
		return Bool(!b), nil
	}},

	"abs": {fn: func(args []Value) (Value, error) {
		switch v := args[0].(type) {
		case Int:
			if v < 0 {
				return Int(-v), nil
			}
			return v, nil
		case Float:
			return Float(math.Abs(float64(v))), nil
		default:
			return nil, fmt.Errorf("abs: non-numeric operand %s", Format(args[0]))
		}
	}},
	"round":   {fn: mathFn("round", math.Round)},
	"floor":   {fn: mathFn("floor", math.Floor)},
	"ceiling": {fn: mathFn("ceiling", math.Ceil)},
	"sqrt":    {fn: mathFn("sqrt", math.Sqrt)},
	"exp":     {fn: mathFn("exp", math.Exp)},
	"log":     {fn: mathFn("log", math.Log)},

	"nchar": {fn: func(args []Value) (Value, error) {
		s, ok := args[0].(Str)
		if !ok {
			return nil, fmt.Errorf("nchar: non-string operand %s", Format(args[0]))
		}
		return Int(len([]rune(string(s)))), nil
	}},
	"toupper": {fn: strFn("toupper", strings.ToUpper)},
	"tolower": {fn: strFn("tolower", strings.ToLower)},
	"substr": {fn: func(args []Value) (Value, error) {
		if len(args) != 3 {
			return nil, fmt.Errorf("substr: want 3 arguments, got %d", len(args))
		}
		s, ok := args[0].(Str)
		if !ok {
			return nil, fmt.Errorf("substr: non-string operand %s", Format(args[0]))
		}
		from, fok := toInt(args[1])
		to, tok := toInt(args[2])
		if !fok || !tok {
			return nil, fmt.Errorf("substr: non-integer bounds")
		}
		runes := []rune(string(s))
		if from < 1 {
			from = 1
		}
		if to > int64(len(runes)) {
			to = int64(len(runes))
		}
		if from > to {
			return Str(""), nil
		}
		return Str(string(runes[from-1 : to])), nil
	}},
	"paste0": {fn: func(args []Value) (Value, error) {
		var sb strings.Builder
		for _, a := range args {
			switch v := a.(type) {
			case Str:
				sb.WriteString(string(v))
			default:
				sb.WriteString(strings.Trim(Format(a), `"`))
			}
		}
		return Str(sb.String()), nil
	}},
	"coalesce": {keepNulls: true, fn: func(args []Value) (Value, error) {
		for _, a := range args {
			if !IsNull(a) {
				return a, nil
			}
		}
		return Null{}, nil
	}},
	"is_na": {keepNulls: true, fn: func(args []Value) (Value, error) {
		return Bool(IsNull(args[0])), nil
	}},
}

// columnFuncs is the whole-column vocabulary reachable through AggCall.
// Reductions skip missing values; a column of nothing but missing
// reduces to missing.
var columnFuncs = map[string]columnFunc{
	"mean": reduce(func(xs []float64) Value {
		if len(xs) == 0 {
			return Null{}
		}
		var s float64
		for _, x := range xs {
			s += x
		}
		return Float(s / float64(len(xs)))
	}),
	"sum": reduce(func(xs []float64) Value {
		var s float64
		for _, x := range xs {
			s += x
		}
		return Float(s)
	}),
	"min": reduce(func(xs []float64) Value {
		if len(xs) == 0 {
			return Null{}
		}
		m := xs[0]
		for _, x := range xs[1:] {
			m = math.Min(m, x)
		}
		return Float(m)
	}),
	"max": reduce(func(xs []float64) Value {
		if len(xs) == 0 {
			return Null{}
		}
		m := xs[0]
		for _, x := range xs[1:] {
			m = math.Max(m, x)
		}
		return Float(m)
	}),
	"median": reduce(func(xs []float64) Value {
		if len(xs) == 0 {
			return Null{}
		}
		s := append([]float64(nil), xs...)
		sort.Float64s(s)
		mid := len(s) / 2
		if len(s)%2 == 1 {
			return Float(s[mid])
		}
		return Float((s[mid-1] + s[mid]) / 2)
	}),
	"var": reduce(variance),
	"sd": reduce(func(xs []float64) Value {
		v := variance(xs)
		f, ok := v.(Float)
		if !ok {
			return v
		}
		return Float(math.Sqrt(float64(f)))
	}),
	"first": func(args [][]Value) ([]Value, error) {
		col, err := oneColumn("first", args)
		if err != nil {
			return nil, err
		}
		if len(col) == 0 {
			return []Value{Null{}}, nil
		}
		return []Value{col[0]}, nil
	},
	"last": func(args [][]Value) ([]Value, error) {
		col, err := oneColumn("last", args)
		if err != nil {
			return nil, err
		}
		if len(col) == 0 {
			return []Value{Null{}}, nil
		}
		return []Value{col[len(col)-1]}, nil
	},
	"n_distinct": func(args [][]Value) ([]Value, error) {
		col, err := oneColumn("n_distinct", args)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]bool)
		for _, v := range col {
			seen[GroupKey(v)] = true
		}
		return []Value{Int(len(seen))}, nil
	},
	"lag":        shiftFunc("lag", 1),
	"lead":       shiftFunc("lead", -1),
	"rank":       rankFunc(false),
	"dense_rank": rankFunc(true),
	"cumsum": func(args [][]Value) ([]Value, error) {
		col, err := oneColumn("cumsum", args)
		if err != nil {
			return nil, err
		}
		out := make([]Value, len(col))
		var s float64
		for i, v := range col {
			f, ok := AsFloat(v)
			if !ok {
				// A missing input poisons the running sum from
				// this point on, matching cumulative semantics.
				for j := i; j < len(col); j++ {
					out[j] = Null{}
				}
				return out, nil
			}
			s += f
			out[i] = Float(s)
		}
		return out, nil
	},
	"c": func(args [][]Value) ([]Value, error) {
		var out []Value
		for _, a := range args {
			out = append(out, a...)
		}
		return out, nil
	},
	"seq": func(args [][]Value) ([]Value, error) {
		if len(args) != 2 || len(args[0]) != 1 || len(args[1]) != 1 {
			return nil, fmt.Errorf("seq: want scalar from and to")
		}
		from, fok := toInt(args[0][0])
		to, tok := toInt(args[1][0])
		if !fok || !tok {
			return nil, fmt.Errorf("seq: non-integer bounds")
		}
		var out []Value
		if from <= to {
			for i := from; i <= to; i++ {
				out = append(out, Int(i))
			}
		} else {
			for i := from; i >= to; i-- {
				out = append(out, Int(i))
			}
		}
		return out, nil
	},
	"seq_len": func(args [][]Value) ([]Value, error) {
		if len(args) != 1 || len(args[0]) != 1 {
			return nil, fmt.Errorf("seq_len: want a scalar length")
		}
		n, ok := toInt(args[0][0])
		if !ok || n < 0 {
			return nil, fmt.Errorf("seq_len: invalid length %s", Format(args[0][0]))
		}
		out := make([]Value, n)
		for i := range out {
			out[i] = Int(i + 1)
		}
		return out, nil
	},
}

// ColumnFuncNames lists the whole-column functions the engine executes,
// sorted. The compiler seeds its default do-not-vectorize registry from
// this set.
func ColumnFuncNames() []string {
	names := make([]string, 0, len(columnFuncs))
	for name := range columnFuncs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func arith(ints func(a, b int64) int64, floats func(a, b float64) float64) func([]Value) (Value, error) {
	return func(args []Value) (Value, error) {
		if ai, aok := args[0].(Int); aok {
			if bi, bok := args[1].(Int); bok {
				return Int(ints(int64(ai), int64(bi))), nil
			}
		}
		a, b, err := twoFloats("arith", args)
		if err != nil {
			return nil, err
		}
		return Float(floats(a, b)), nil
	}
}

func compare(pick func(int) bool) func([]Value) (Value, error) {
	return func(args []Value) (Value, error) {
		a, b := args[0], args[1]
		_, aNum := AsFloat(a)
		_, bNum := AsFloat(b)
		if aNum != bNum || (!aNum && kindRank(a) != kindRank(b)) {
			return nil, fmt.Errorf("cannot compare %s with %s", Format(a), Format(b))
		}
		return Bool(pick(Compare(a, b))), nil
	}
}

func mathFn(name string, f func(float64) float64) func([]Value) (Value, error) {
	return func(args []Value) (Value, error) {
		x, ok := AsFloat(args[0])
		if !ok {
			return nil, fmt.Errorf("%s: non-numeric operand %s", name, Format(args[0]))
		}
		r := f(x)
		if math.IsNaN(r) {
			return Null{}, nil
		}
		return Float(r), nil
	}
}

func strFn(name string, f func(string) string) func([]Value) (Value, error) {
	return func(args []Value) (Value, error) {
		s, ok := args[0].(Str)
		if !ok {
			return nil, fmt.Errorf("%s: non-string operand %s", name, Format(args[0]))
		}
		return Str(f(string(s))), nil
	}
}

func reduce(f func([]float64) Value) columnFunc {
	return func(args [][]Value) ([]Value, error) {
		col, err := oneColumn("reduce", args)
		if err != nil {
			return nil, err
		}
		xs := make([]float64, 0, len(col))
		for _, v := range col {
			if IsNull(v) {
				continue
			}
			x, ok := AsFloat(v)
			if !ok {
				return nil, fmt.Errorf("non-numeric value %s in numeric reduction", Format(v))
			}
			xs = append(xs, x)
		}
		return []Value{f(xs)}, nil
	}
}

func variance(xs []float64) Value {
	if len(xs) < 2 {
		return Null{}
	}
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return Float(ss / float64(len(xs)-1))
}

func shiftFunc(name string, sign int64) columnFunc {
	return func(args [][]Value) ([]Value, error) {
		if len(args) < 1 || len(args) > 2 {
			return nil, fmt.Errorf("%s: want 1 or 2 arguments, got %d", name, len(args))
		}
		col := args[0]
		offset := int64(1)
		if len(args) == 2 {
			if len(args[1]) != 1 {
				return nil, fmt.Errorf("%s: offset must be a scalar", name)
			}
			k, ok := toInt(args[1][0])
			if !ok || k < 0 {
				return nil, fmt.Errorf("%s: invalid offset %s", name, Format(args[1][0]))
			}
			offset = k
		}
		shift := sign * offset
		out := make([]Value, len(col))
		for i := range out {
			src := int64(i) - shift
			if src < 0 || src >= int64(len(col)) {
				out[i] = Null{}
			} else {
				out[i] = col[src]
			}
		}
		return out, nil
	}
}

func rankFunc(dense bool) columnFunc {
	return func(args [][]Value) ([]Value, error) {
		col, err := oneColumn("rank", args)
		if err != nil {
			return nil, err
		}
		idx := make([]int, 0, len(col))
		for i, v := range col {
			if !IsNull(v) {
				idx = append(idx, i)
			}
		}
		sort.SliceStable(idx, func(a, b int) bool {
			return Compare(col[idx[a]], col[idx[b]]) < 0
		})
		out := make([]Value, len(col))
		for i := range out {
			out[i] = Null{}
		}
		rank, seen := int64(0), int64(0)
		for i, r := range idx {
			if i == 0 || Compare(col[idx[i-1]], col[r]) != 0 {
				if dense {
					rank++
				} else {
					rank = seen + 1
				}
			}
			seen++
			out[r] = Int(rank)
		}
		return out, nil
	}
}

func oneColumn(name string, args [][]Value) ([]Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%s: want exactly one column argument, got %d", name, len(args))
	}
	return args[0], nil
}

func twoFloats(name string, args []Value) (float64, float64, error) {
	a, aok := AsFloat(args[0])
	b, bok := AsFloat(args[1])
	if !aok || !bok {
		return 0, 0, fmt.Errorf("%s: non-numeric operands %s, %s", name, Format(args[0]), Format(args[1]))
	}
	return a, b, nil
}

func toInt(v Value) (int64, bool) {
	return AsInt(v)
}

func truth(v Value) (bool, bool) {
	b, ok := v.(Bool)
	return bool(b), ok
}
