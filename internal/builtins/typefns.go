package builtins

import (
	"phlox/internal/vm"
)

func installType(m *vm.VM) {
	reg := func(name string, fn func(v vm.Value) vm.Value) {
		m.RegisterBuiltin(name, func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
			if err := needArgs(name, args, 1); err != nil {
				return nil, err
			}
			return fn(args[0]), nil
		})
	}

	reg("gettype", func(v vm.Value) vm.Value { return vm.TypeName(v) })

	reg("intval", func(v vm.Value) vm.Value { return vm.ToInt(v) })
	reg("floatval", func(v vm.Value) vm.Value { return vm.ToFloat(v) })
	reg("doubleval", func(v vm.Value) vm.Value { return vm.ToFloat(v) })
	reg("strval", func(v vm.Value) vm.Value { return vm.ToString(v) })
	reg("boolval", func(v vm.Value) vm.Value { return vm.ToBool(v) })

	isInt := func(v vm.Value) vm.Value { _, ok := v.(int64); return ok }
	reg("is_int", isInt)
	reg("is_integer", isInt)
	reg("is_long", isInt)

	isFloat := func(v vm.Value) vm.Value { _, ok := v.(float64); return ok }
	reg("is_float", isFloat)
	reg("is_double", isFloat)

	reg("is_string", func(v vm.Value) vm.Value { _, ok := v.(string); return ok })
	reg("is_bool", func(v vm.Value) vm.Value { _, ok := v.(bool); return ok })
	reg("is_array", func(v vm.Value) vm.Value { _, ok := v.(*vm.Array); return ok })
	reg("is_null", func(v vm.Value) vm.Value { return v == nil })

	reg("is_object", func(v vm.Value) vm.Value {
		switch v.(type) {
		case *vm.Object, *vm.Closure, *vm.Generator, *vm.EnumCase:
			return true
		}
		return false
	})

	reg("is_scalar", func(v vm.Value) vm.Value {
		switch v.(type) {
		case bool, int64, float64, string:
			return true
		}
		return false
	})

	reg("is_numeric", func(v vm.Value) vm.Value {
		switch n := v.(type) {
		case int64, float64:
			return true
		case string:
			return vm.IsNumericString(n)
		}
		return false
	})

	reg("is_iterable", func(v vm.Value) vm.Value {
		switch v.(type) {
		case *vm.Array, *vm.Generator:
			return true
		}
		return false
	})

	m.RegisterBuiltin("is_callable", func(machine *vm.VM, args []vm.Value) (vm.Value, error) {
		if err := needArgs("is_callable", args, 1); err != nil {
			return nil, err
		}
		switch c := args[0].(type) {
		case *vm.Closure:
			return true, nil
		case string:
			return machine.FunctionExists(c), nil
		case *vm.Array:
			return c.Len() == 2, nil
		case *vm.Object:
			return true, nil // may carry __invoke
		}
		return false, nil
	})
}
