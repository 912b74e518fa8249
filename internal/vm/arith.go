package vm

import (
	"math"

	"phlox/internal/bytecode"
)

// numKind classifies an arithmetic operand.
type numKind int

const (
	numInvalid numKind = iota
	numInt
	numFloat
)

// toNumeric converts an operand for arithmetic: bools and null become
// ints, fully numeric strings parse, everything else is invalid.
func toNumeric(v Value) (int64, float64, numKind) {
	switch x := v.(type) {
	case nil:
		return 0, 0, numInt
	case bool:
		if x {
			return 1, 1, numInt
		}
		return 0, 0, numInt
	case int64:
		return x, float64(x), numInt
	case float64:
		return 0, x, numFloat
	case string:
		n, full := leadingNumber(x)
		if !full {
			return 0, 0, numInvalid
		}
		if n == math.Trunc(n) && !hasFloatSyntax(x) && n >= math.MinInt64 && n <= math.MaxInt64 {
			return int64(n), n, numInt
		}
		return 0, n, numFloat
	default:
		return 0, 0, numInvalid
	}
}

func hasFloatSyntax(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', 'e', 'E':
			return true
		}
	}
	return false
}

func opSymbol(op bytecode.Op) string {
	switch op {
	case bytecode.OpAdd:
		return "+"
	case bytecode.OpSub:
		return "-"
	case bytecode.OpMul:
		return "*"
	case bytecode.OpDiv:
		return "/"
	case bytecode.OpMod:
		return "%"
	case bytecode.OpPow:
		return "**"
	default:
		return "?"
	}
}

// performArith evaluates the numeric binary operators. Integer results that
// overflow promote to float; array + array is the union operator.
func (vm *VM) performArith(op bytecode.Op, left, right Value) (Value, error) {
	if op == bytecode.OpAdd {
		if la, ok := left.(*Array); ok {
			ra, ok := right.(*Array)
			if !ok {
				return nil, vm.throwError("TypeError",
					"Unsupported operand types: array + %s", shortTypeName(right))
			}
			out := la.Copy()
			for _, k := range ra.Keys() {
				if _, exists := out.GetKey(k); !exists {
					v, _ := ra.GetKey(k)
					out.SetKey(k, CopyValue(v))
				}
			}
			return out, nil
		}
	}

	li, lf, lk := toNumeric(left)
	ri, rf, rk := toNumeric(right)
	if lk == numInvalid || rk == numInvalid {
		return nil, vm.throwError("TypeError", "Unsupported operand types: %s %s %s",
			shortTypeName(left), opSymbol(op), shortTypeName(right))
	}
	bothInt := lk == numInt && rk == numInt

	switch op {
	case bytecode.OpAdd:
		if bothInt {
			if sum, ok := addInt(li, ri); ok {
				return sum, nil
			}
		}
		return lf + rf, nil
	case bytecode.OpSub:
		if bothInt && ri != math.MinInt64 {
			if diff, ok := addInt(li, -ri); ok {
				return diff, nil
			}
		}
		return lf - rf, nil
	case bytecode.OpMul:
		if bothInt {
			if prod, ok := mulInt(li, ri); ok {
				return prod, nil
			}
		}
		return lf * rf, nil
	case bytecode.OpDiv:
		if rf == 0 {
			return nil, vm.throwError("DivisionByZeroError", "Division by zero")
		}
		// division always yields a float; intdiv() is the integer form
		return lf / rf, nil
	case bytecode.OpMod:
		ld, rd := int64(lf), int64(rf)
		if bothInt {
			ld, rd = li, ri
		}
		if rd == 0 {
			return nil, vm.throwError("DivisionByZeroError", "Modulo by zero")
		}
		return ld % rd, nil
	case bytecode.OpPow:
		if bothInt && ri >= 0 {
			if p, ok := powInt(li, ri); ok {
				return p, nil
			}
		}
		return math.Pow(lf, rf), nil
	}
	return nil, vm.throwError("Error", "unknown arithmetic operator")
}

func (vm *VM) performNegate(v Value) (Value, error) {
	i, fv, k := toNumeric(v)
	switch k {
	case numInt:
		if i == math.MinInt64 {
			return -fv, nil
		}
		return -i, nil
	case numFloat:
		return -fv, nil
	default:
		return nil, vm.throwError("TypeError",
			"Unsupported operand types: -%s", shortTypeName(v))
	}
}

func addInt(a, b int64) (int64, bool) {
	sum := a + b
	if (a > 0 && b > 0 && sum < 0) || (a < 0 && b < 0 && sum >= 0) {
		return 0, false
	}
	return sum, true
}

func mulInt(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	prod := a * b
	if prod/b != a || (a == math.MinInt64 && b == -1) {
		return 0, false
	}
	return prod, true
}

func powInt(base, exp int64) (int64, bool) {
	result := int64(1)
	for n := int64(0); n < exp; n++ {
		next, ok := mulInt(result, base)
		if !ok {
			return 0, false
		}
		result = next
	}
	return result, true
}

// performIndex reads an offset: arrays by key, strings by byte offset,
// null reads yield null.
func (vm *VM) performIndex(subject, key Value) (Value, error) {
	switch s := subject.(type) {
	case *Array:
		v, _ := s.Get(key)
		return v, nil
	case string:
		idx := ToInt(key)
		if idx < 0 {
			idx += int64(len(s))
		}
		if idx < 0 || idx >= int64(len(s)) {
			return nil, nil
		}
		return string(s[idx]), nil
	case nil:
		return nil, nil
	case *Generator:
		return nil, vm.throwError("Error", "Cannot access offset on a Generator")
	case *Object:
		return nil, vm.throwError("Error", "Cannot use object of type %s as array", s.Class)
	default:
		return nil, nil
	}
}

// performCast implements the explicit cast operators.
func (vm *VM) performCast(kind bytecode.CastKind, v Value) (Value, error) {
	switch kind {
	case bytecode.CastInt:
		return ToInt(v), nil
	case bytecode.CastFloat:
		return ToFloat(v), nil
	case bytecode.CastString:
		return vm.valueToString(v)
	case bytecode.CastBool:
		return ToBool(v), nil
	case bytecode.CastArray:
		switch x := v.(type) {
		case *Array:
			return x, nil
		case nil:
			return NewArray(), nil
		case *Object:
			return x.Props.Copy(), nil
		default:
			arr := NewArray()
			arr.Append(v)
			return arr, nil
		}
	case bytecode.CastObject:
		switch x := v.(type) {
		case *Object, *Closure, *Generator, *EnumCase:
			return x, nil
		case *Array:
			obj := NewObject("stdClass")
			for i := 0; i < x.Len(); i++ {
				obj.Set(ToString(x.KeyAt(i)), CopyValue(x.ValueAt(i)))
			}
			return obj, nil
		default:
			obj := NewObject("stdClass")
			if v != nil {
				obj.Set("scalar", v)
			}
			return obj, nil
		}
	}
	return nil, vm.throwError("Error", "unknown cast")
}
