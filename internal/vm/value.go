// Package vm executes compiled bytecode. Values use dynamic typing over a
// small closed set of Go representations; arrays copy on assignment while
// objects share handles.
package vm

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is one of: nil, bool, int64, float64, string, *Array, *Object,
// *Closure, *Generator, *EnumCase.
type Value interface{}

// TypeName reports the engine-level type name used in diagnostics and by
// the gettype builtin.
func TypeName(v Value) string {
	switch v.(type) {
	case nil:
		return "NULL"
	case bool:
		return "boolean"
	case int64:
		return "integer"
	case float64:
		return "double"
	case string:
		return "string"
	case *Array:
		return "array"
	case *Object, *Generator, *EnumCase:
		return "object"
	case *Closure:
		return "object"
	default:
		return "unknown type"
	}
}

// shortTypeName is the name used in type errors ("int given").
func shortTypeName(v Value) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "string"
	case *Array:
		return "array"
	case *Object:
		return x.Class
	case *Closure:
		return "Closure"
	case *Generator:
		return "Generator"
	case *EnumCase:
		return x.Enum
	default:
		return "unknown"
	}
}

// ToBool applies truthiness: empty string and "0" are false, empty arrays
// are false, any object is true.
func ToBool(v Value) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0
	case string:
		return x != "" && x != "0"
	case *Array:
		return x.Len() > 0
	default:
		return true
	}
}

// ToInt converts with PHP cast rules: leading numeric prefix for strings,
// truncation for floats.
func ToInt(v Value) int64 {
	switch x := v.(type) {
	case nil:
		return 0
	case bool:
		if x {
			return 1
		}
		return 0
	case int64:
		return x
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0
		}
		return int64(x)
	case string:
		// integral prefixes parse exactly; float64 would lose precision
		// past 2^53
		if n, ok := leadingInt(x); ok {
			return n
		}
		n, _ := leadingNumber(x)
		return int64(n)
	case *Array:
		if x.Len() > 0 {
			return 1
		}
		return 0
	default:
		return 1
	}
}

// ToFloat converts with the same leading-digits rule for strings.
func ToFloat(v Value) float64 {
	switch x := v.(type) {
	case nil:
		return 0
	case bool:
		if x {
			return 1
		}
		return 0
	case int64:
		return float64(x)
	case float64:
		return x
	case string:
		n, _ := leadingNumber(x)
		return n
	default:
		return float64(ToInt(v))
	}
}

// leadingNumber parses the longest numeric prefix of s. The second result
// reports whether the entire string was numeric.
// leadingInt parses a leading [+-]?digits prefix not followed by '.', 'e'
// or 'E'. Reports false when the prefix is fractional or absent.
func leadingInt(s string) (int64, bool) {
	t := strings.TrimSpace(s)
	i := 0
	if i < len(t) && (t[i] == '+' || t[i] == '-') {
		i++
	}
	start := i
	for i < len(t) && t[i] >= '0' && t[i] <= '9' {
		i++
	}
	if i == start {
		return 0, false
	}
	if i < len(t) && (t[i] == '.' || t[i] == 'e' || t[i] == 'E') {
		return 0, false
	}
	n, err := strconv.ParseInt(t[:i], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func leadingNumber(s string) (float64, bool) {
	t := strings.TrimSpace(s)
	if t == "" {
		return 0, false
	}
	end := 0
	seenDigit := false
	seenDot := false
	seenExp := false
	for i := 0; i < len(t); i++ {
		c := t[i]
		switch {
		case c >= '0' && c <= '9':
			seenDigit = true
			end = i + 1
		case (c == '+' || c == '-') && (i == 0 || (seenExp && (t[i-1] == 'e' || t[i-1] == 'E'))):
			// sign at start or right after the exponent marker
		case c == '.' && !seenDot && !seenExp:
			seenDot = true
		case (c == 'e' || c == 'E') && seenDigit && !seenExp:
			seenExp = true
		default:
			goto done
		}
	}
done:
	if !seenDigit {
		return 0, false
	}
	prefix := t
	full := true
	if end < len(t) {
		// walk back to the last position that still parses
		for j := len(t); j > 0; j-- {
			if f, err := strconv.ParseFloat(t[:j], 64); err == nil {
				return f, false
			}
		}
		return 0, false
	}
	f, err := strconv.ParseFloat(prefix, 64)
	if err != nil {
		return 0, false
	}
	return f, full
}

// IsNumericString reports whether the whole string is a valid number.
func IsNumericString(s string) bool {
	_, full := leadingNumber(s)
	return full
}

// FormatFloat renders a float the way echo does: integral values below
// 1e15 print without a fractional part.
func FormatFloat(f float64) string {
	if math.IsNaN(f) {
		return "NAN"
	}
	if math.IsInf(f, 1) {
		return "INF"
	}
	if math.IsInf(f, -1) {
		return "-INF"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', 0, 64)
	}
	return strconv.FormatFloat(f, 'G', -1, 64)
}

// ToString converts scalars for echo and concatenation. Arrays render as
// the literal "Array"; objects are handled by the VM so __toString can run.
func ToString(v Value) string {
	switch x := v.(type) {
	case nil:
		return ""
	case bool:
		if x {
			return "1"
		}
		return ""
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return FormatFloat(x)
	case string:
		return x
	case *Array:
		return "Array"
	case *EnumCase:
		if s, ok := x.Backing.(string); ok {
			return s
		}
		return x.Enum + "::" + x.Case
	case *Closure:
		return "Closure"
	default:
		return fmt.Sprintf("%v", x)
	}
}

// CopyValue implements assignment semantics: arrays copy deeply, all other
// values (objects included) pass by handle.
func CopyValue(v Value) Value {
	if arr, ok := v.(*Array); ok {
		return arr.Copy()
	}
	return v
}

// LooseEquals implements the == table: null matches false, numeric strings
// compare numerically, arrays compare pairwise by key.
func LooseEquals(a, b Value) bool {
	switch x := a.(type) {
	case nil:
		switch y := b.(type) {
		case nil:
			return true
		case bool:
			return !y
		case int64:
			return y == 0
		case float64:
			return y == 0
		case string:
			return y == ""
		case *Array:
			return y.Len() == 0
		default:
			return false
		}
	case bool:
		return x == ToBool(b)
	case int64:
		switch y := b.(type) {
		case nil:
			return x == 0
		case bool:
			return ToBool(a) == y
		case int64:
			return x == y
		case float64:
			return float64(x) == y
		case string:
			if n, full := leadingNumber(y); full {
				return float64(x) == n
			}
			return false
		default:
			return false
		}
	case float64:
		switch y := b.(type) {
		case nil:
			return x == 0
		case bool:
			return ToBool(a) == y
		case int64:
			return x == float64(y)
		case float64:
			return x == y
		case string:
			if n, full := leadingNumber(y); full {
				return x == n
			}
			return false
		default:
			return false
		}
	case string:
		switch y := b.(type) {
		case nil:
			return x == ""
		case bool:
			return ToBool(a) == y
		case int64, float64:
			return LooseEquals(b, a)
		case string:
			if IsNumericString(x) && IsNumericString(y) {
				return ToFloat(x) == ToFloat(y)
			}
			return x == y
		default:
			return false
		}
	case *Array:
		y, ok := b.(*Array)
		if !ok {
			if b == nil {
				return x.Len() == 0
			}
			return false
		}
		if x.Len() != y.Len() {
			return false
		}
		for _, k := range x.keys {
			yv, ok := y.items[k]
			if !ok || !LooseEquals(x.items[k], yv) {
				return false
			}
		}
		return true
	case *Object:
		y, ok := b.(*Object)
		if !ok {
			return false
		}
		if x == y {
			return true
		}
		if x.Class != y.Class || x.Props.Len() != y.Props.Len() {
			return false
		}
		for _, k := range x.Props.keys {
			yv, ok := y.Props.items[k]
			if !ok || !LooseEquals(x.Props.items[k], yv) {
				return false
			}
		}
		return true
	case *EnumCase:
		y, ok := b.(*EnumCase)
		return ok && x.Enum == y.Enum && x.Case == y.Case
	case *Closure:
		return a == b
	case *Generator:
		return a == b
	}
	return false
}

// StrictEquals implements ===: identical type and value; arrays need the
// same key order; objects the same handle; closures are never identical.
func StrictEquals(a, b Value) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case int64:
		y, ok := b.(int64)
		return ok && x == y
	case float64:
		y, ok := b.(float64)
		return ok && x == y
	case string:
		y, ok := b.(string)
		return ok && x == y
	case *Array:
		y, ok := b.(*Array)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for i, k := range x.keys {
			if y.keys[i] != k || !StrictEquals(x.items[k], y.items[k]) {
				return false
			}
		}
		return true
	case *Object:
		return a == b
	case *EnumCase:
		y, ok := b.(*EnumCase)
		return ok && x.Enum == y.Enum && x.Case == y.Case
	case *Closure:
		return false
	case *Generator:
		return a == b
	}
	return false
}

// Compare orders two values for <, <=, >, >= and <=>. Numeric comparison
// wins when both sides are numeric; arrays order by size then pairwise.
func Compare(a, b Value) int {
	if x, ok := a.(*Array); ok {
		if y, ok := b.(*Array); ok {
			if x.Len() != y.Len() {
				if x.Len() < y.Len() {
					return -1
				}
				return 1
			}
			for _, k := range x.keys {
				yv, ok := y.items[k]
				if !ok {
					return 1
				}
				if c := Compare(x.items[k], yv); c != 0 {
					return c
				}
			}
			return 0
		}
		return 1
	}
	if xs, ok := a.(string); ok {
		if ys, ok := b.(string); ok {
			// two strings order bytewise; numeric interpretation applies
			// only against a numeric operand
			return strings.Compare(xs, ys)
		}
	}
	if _, ok := a.(bool); ok {
		return compareBools(ToBool(a), ToBool(b))
	}
	if _, ok := b.(bool); ok {
		return compareBools(ToBool(a), ToBool(b))
	}
	return compareFloats(ToFloat(a), ToFloat(b))
}

func compareFloats(x, y float64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

func compareBools(x, y bool) int {
	switch {
	case x == y:
		return 0
	case !x:
		return -1
	default:
		return 1
	}
}
