package engine

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is a sealed interface over the cell types a column may hold.
// Only Null, Int, Float, Str, and Bool implement it. Null stands for a
// missing value and propagates through element-wise computation.
type Value interface {
	value() // Sealed - only types in this package implement it
}

// Null represents a missing cell.
type Null struct{}

func (Null) value() {}

// Int represents an integer cell. Always int64.
type Int int64

func (Int) value() {}

// Float represents a floating-point cell.
type Float float64

func (Float) value() {}

// Str represents a string cell.
type Str string

func (Str) value() {}

// Bool represents a boolean cell.
type Bool bool

func (Bool) value() {}

// IsNull reports whether v is the missing value. A nil Value is treated
// as missing as well, so callers never have to distinguish the two.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// AsFloat converts a numeric value to float64. Returns false for
// non-numeric or missing values.
func AsFloat(v Value) (float64, bool) {
	switch val := v.(type) {
	case Int:
		return float64(val), true
	case Float:
		return float64(val), true
	default:
		return 0, false
	}
}

// AsInt converts an integral value to int64. Floats convert only when
// they carry no fractional part.
func AsInt(v Value) (int64, bool) {
	switch val := v.(type) {
	case Int:
		return int64(val), true
	case Float:
		f := float64(val)
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			return int64(f), true
		}
		return 0, false
	default:
		return 0, false
	}
}

// FromNative converts a Go value produced by an external evaluator into
// an engine Value. Supported inputs: nil, bool, string, all int/uint
// widths, float32/float64, and Value itself.
func FromNative(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case string:
		return Str(val), nil
	case int:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("value %d out of int64 range", val)
		}
		return Int(val), nil
	case float32:
		return Float(val), nil
	case float64:
		return Float(val), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// Compare orders two values for sorting. Missing values sort after every
// present value regardless of direction, matching the engine's "missing
// last" sort contract. Numbers compare across Int/Float; otherwise values
// compare within their own kind, and kinds order as
// bool < number < string.
func Compare(a, b Value) int {
	an, bn := IsNull(a), IsNull(b)
	switch {
	case an && bn:
		return 0
	case an:
		return 1
	case bn:
		return -1
	}

	af, aNum := AsFloat(a)
	bf, bNum := AsFloat(b)
	if aNum && bNum {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}

	ar, br := kindRank(a), kindRank(b)
	if ar != br {
		if ar < br {
			return -1
		}
		return 1
	}

	switch av := a.(type) {
	case Bool:
		bv := b.(Bool)
		switch {
		case !bool(av) && bool(bv):
			return -1
		case bool(av) && !bool(bv):
			return 1
		default:
			return 0
		}
	case Str:
		return strings.Compare(string(av), string(b.(Str)))
	default:
		return 0
	}
}

// Equal reports whether two present values are equal under Compare.
// Missing never equals anything, including another missing.
func Equal(a, b Value) bool {
	if IsNull(a) || IsNull(b) {
		return false
	}
	return Compare(a, b) == 0
}

func kindRank(v Value) int {
	switch v.(type) {
	case Bool:
		return 0
	case Int, Float:
		return 1
	case Str:
		return 2
	default:
		return 3
	}
}

// Format renders a value for display and for the canonical string form
// of literals in generated code.
func Format(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return "NA"
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Float:
		return strconv.FormatFloat(float64(val), 'g', -1, 64)
	case Str:
		return strconv.Quote(string(val))
	case Bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Native converts a value back to its plain Go representation, for
// handing rows to encoders. Missing values convert to nil.
func Native(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case Str:
		return string(val)
	case Bool:
		return bool(val)
	default:
		return nil
	}
}

// GroupKey renders a value as a map key for grouping. Distinct from
// Format so that Int(2) and Float(2.0) land in the same group.
func GroupKey(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return "\x00na"
	case Bool:
		if val {
			return "b:1"
		}
		return "b:0"
	case Str:
		return "s:" + string(val)
	default:
		f, _ := AsFloat(v)
		return "n:" + strconv.FormatFloat(f, 'g', -1, 64)
	}
}
