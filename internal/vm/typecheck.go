package vm

import (
	"phlox/internal/types"
)

// checkCtx tells the type checker how to resolve self/static/parent and
// whether to allow scalar coercion.
type checkCtx struct {
	vm     *VM
	strict bool
	class  string // class of the running function, for self/parent
	static string // late static binding target
}

// matches reports whether v satisfies hint without coercion.
func (cc *checkCtx) matches(v Value, hint *types.Hint) bool {
	switch hint.Kind {
	case types.HintSimple:
		return cc.matchesSimple(v, hint.Name)
	case types.HintClass:
		return cc.vm.isInstanceOf(v, hint.Name)
	case types.HintNullable:
		return v == nil || cc.matches(v, hint.Inner)
	case types.HintUnion:
		for _, p := range hint.Parts {
			if cc.matches(v, p) {
				return true
			}
		}
		return false
	case types.HintIntersection:
		for _, p := range hint.Parts {
			if !cc.matches(v, p) {
				return false
			}
		}
		return true
	case types.HintDNF:
		for _, group := range hint.Groups {
			all := true
			for _, p := range group {
				if !cc.matches(v, p) {
					all = false
					break
				}
			}
			if all {
				return true
			}
		}
		return false
	case types.HintVoid:
		return v == nil
	case types.HintNever:
		return false
	case types.HintStatic:
		return cc.static != "" && cc.vm.isInstanceOf(v, cc.static)
	case types.HintSelf:
		return cc.class != "" && cc.vm.isInstanceOf(v, cc.class)
	case types.HintParent:
		parent := cc.vm.parentOf(cc.class)
		return parent != "" && cc.vm.isInstanceOf(v, parent)
	}
	return false
}

func (cc *checkCtx) matchesSimple(v Value, name string) bool {
	switch name {
	case "mixed":
		return true
	case "null":
		return v == nil
	case "bool":
		_, ok := v.(bool)
		return ok
	case "true":
		b, ok := v.(bool)
		return ok && b
	case "false":
		b, ok := v.(bool)
		return ok && !b
	case "int":
		_, ok := v.(int64)
		return ok
	case "float":
		// int satisfies float (widening is always allowed)
		switch v.(type) {
		case float64, int64:
			return true
		}
		return false
	case "string":
		_, ok := v.(string)
		return ok
	case "array":
		_, ok := v.(*Array)
		return ok
	case "iterable":
		switch v.(type) {
		case *Array, *Generator:
			return true
		}
		return false
	case "object":
		switch v.(type) {
		case *Object, *Closure, *Generator, *EnumCase:
			return true
		}
		return false
	case "callable":
		switch v.(type) {
		case *Closure, string:
			return true
		}
		if arr, ok := v.(*Array); ok {
			return arr.Len() == 2
		}
		return false
	default:
		// a simple name that is not a known scalar acts as a class name
		return cc.vm.isInstanceOf(v, name)
	}
}

// coerce converts v to satisfy hint under coercive mode. The bool result
// reports success; strict-only hints never coerce.
func (cc *checkCtx) coerce(v Value, hint *types.Hint) (Value, bool) {
	if cc.matches(v, hint) {
		return cc.widen(v, hint), true
	}
	if cc.strict || hint.RequiresStrict() {
		return v, false
	}
	switch hint.Kind {
	case types.HintSimple:
		return coerceScalar(v, hint.Name)
	case types.HintNullable:
		return cc.coerce(v, hint.Inner)
	case types.HintUnion:
		// try exact scalar targets in declaration order
		for _, p := range hint.Parts {
			if out, ok := cc.coerce(v, p); ok {
				return out, true
			}
		}
	}
	return v, false
}

// widen applies the one sanctioned implicit conversion: int -> float.
func (cc *checkCtx) widen(v Value, hint *types.Hint) Value {
	if n, ok := v.(int64); ok && hintIsFloat(hint) {
		return float64(n)
	}
	return v
}

func hintIsFloat(hint *types.Hint) bool {
	return hint.Kind == types.HintSimple && hint.Name == "float"
}

// coerceScalar converts scalars between int/float/string/bool. Strings
// convert to numbers only when fully numeric.
func coerceScalar(v Value, target string) (Value, bool) {
	switch target {
	case "int":
		switch x := v.(type) {
		case bool:
			return ToInt(x), true
		case float64:
			// fractional parts truncate toward zero
			return int64(x), true
		case string:
			if IsNumericString(x) {
				return ToInt(x), true
			}
			return v, false
		}
	case "float":
		switch x := v.(type) {
		case bool:
			return ToFloat(x), true
		case int64:
			return float64(x), true
		case string:
			if IsNumericString(x) {
				return ToFloat(x), true
			}
			return v, false
		}
	case "string":
		switch v.(type) {
		case bool, int64, float64:
			return ToString(v), true
		}
	case "bool":
		switch v.(type) {
		case int64, float64, string:
			return ToBool(v), true
		}
	}
	return v, false
}
