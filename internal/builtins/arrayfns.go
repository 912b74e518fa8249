package builtins

import (
	"phlox/internal/vm"
)

func installArray(m *vm.VM) {
	reg := func(name string, min int, fn func(machine *vm.VM, args []vm.Value) (vm.Value, error)) {
		m.RegisterBuiltin(name, func(machine *vm.VM, args []vm.Value) (vm.Value, error) {
			if err := needArgs(name, args, min); err != nil {
				return nil, err
			}
			return fn(machine, args)
		})
	}

	reg("count", 1, func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		switch c := args[0].(type) {
		case *vm.Array:
			return int64(c.Len()), nil
		case *vm.Generator:
			return int64(len(c.Items)), nil
		}
		return nil, vm.Throwf("TypeError",
			"count(): Argument #1 ($value) must be of type Countable|array, %s given", vm.TypeName(args[0]))
	})

	reg("array_push", 2, func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		a, err := argArray("array_push", args, 0)
		if err != nil {
			return nil, err
		}
		for _, v := range args[1:] {
			a.Append(vm.CopyValue(v))
		}
		return int64(a.Len()), nil
	})

	reg("array_pop", 1, func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		a, err := argArray("array_pop", args, 0)
		if err != nil {
			return nil, err
		}
		if a.Len() == 0 {
			return nil, nil
		}
		last := a.KeyAt(a.Len() - 1)
		v, _ := a.Get(last)
		a.Delete(last)
		return v, nil
	})

	reg("array_shift", 1, func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		a, err := argArray("array_shift", args, 0)
		if err != nil {
			return nil, err
		}
		if a.Len() == 0 {
			return nil, nil
		}
		first, _ := a.GetKey(a.Keys()[0])
		rebuild(a, a.Keys()[1:])
		return first, nil
	})

	reg("array_unshift", 2, func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		a, err := argArray("array_unshift", args, 0)
		if err != nil {
			return nil, err
		}
		keys := a.Keys()
		vals := make(map[vm.ArrayKey]vm.Value, len(keys))
		for _, k := range keys {
			vals[k], _ = a.GetKey(k)
		}
		a.Reset()
		for _, v := range args[1:] {
			a.Append(vm.CopyValue(v))
		}
		for _, k := range keys {
			if k.IsInt {
				a.Append(vals[k])
			} else {
				a.SetKey(k, vals[k])
			}
		}
		return int64(a.Len()), nil
	})

	reg("array_keys", 1, func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		a, err := argArray("array_keys", args, 0)
		if err != nil {
			return nil, err
		}
		out := vm.NewArray()
		for _, k := range a.Keys() {
			out.Append(k.Display())
		}
		return out, nil
	})

	reg("array_values", 1, func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		a, err := argArray("array_values", args, 0)
		if err != nil {
			return nil, err
		}
		out := vm.NewArray()
		for _, v := range a.List() {
			out.Append(vm.CopyValue(v))
		}
		return out, nil
	})

	reg("in_array", 2, func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		a, err := argArray("in_array", args, 1)
		if err != nil {
			return nil, err
		}
		strict := vm.ToBool(optArg(args, 2, false))
		for _, v := range a.List() {
			if equalsBy(args[0], v, strict) {
				return true, nil
			}
		}
		return false, nil
	})

	reg("array_search", 2, func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		a, err := argArray("array_search", args, 1)
		if err != nil {
			return nil, err
		}
		strict := vm.ToBool(optArg(args, 2, false))
		for _, k := range a.Keys() {
			v, _ := a.GetKey(k)
			if equalsBy(args[0], v, strict) {
				return k.Display(), nil
			}
		}
		return false, nil
	})

	reg("array_key_exists", 2, func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		a, err := argArray("array_key_exists", args, 1)
		if err != nil {
			return nil, err
		}
		_, ok := a.Get(args[0])
		return ok, nil
	})

	reg("array_merge", 1, func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		out := vm.NewArray()
		for i := range args {
			a, err := argArray("array_merge", args, i)
			if err != nil {
				return nil, err
			}
			out.Extend(a)
		}
		return out, nil
	})

	reg("array_reverse", 1, func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		a, err := argArray("array_reverse", args, 0)
		if err != nil {
			return nil, err
		}
		preserve := vm.ToBool(optArg(args, 1, false))
		out := vm.NewArray()
		keys := a.Keys()
		for i := len(keys) - 1; i >= 0; i-- {
			v, _ := a.GetKey(keys[i])
			if keys[i].IsInt && !preserve {
				out.Append(vm.CopyValue(v))
			} else {
				out.SetKey(keys[i], vm.CopyValue(v))
			}
		}
		return out, nil
	})

	reg("array_slice", 2, func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		a, err := argArray("array_slice", args, 0)
		if err != nil {
			return nil, err
		}
		keys := a.Keys()
		offset := int(argInt(args, 1))
		if offset < 0 {
			offset += len(keys)
			if offset < 0 {
				offset = 0
			}
		}
		if offset > len(keys) {
			offset = len(keys)
		}
		length := len(keys) - offset
		if len(args) > 2 && args[2] != nil {
			length = int(argInt(args, 2))
			if length < 0 {
				length = len(keys) - offset + length
			}
			if length < 0 {
				length = 0
			}
		}
		if offset+length > len(keys) {
			length = len(keys) - offset
		}
		preserve := vm.ToBool(optArg(args, 3, false))
		out := vm.NewArray()
		for _, k := range keys[offset : offset+length] {
			v, _ := a.GetKey(k)
			if k.IsInt && !preserve {
				out.Append(vm.CopyValue(v))
			} else {
				out.SetKey(k, vm.CopyValue(v))
			}
		}
		return out, nil
	})

	reg("array_sum", 1, func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		a, err := argArray("array_sum", args, 0)
		if err != nil {
			return nil, err
		}
		intSum := int64(0)
		floatSum := 0.0
		isFloat := false
		for _, v := range a.List() {
			switch n := v.(type) {
			case float64:
				isFloat = true
				floatSum += n
			default:
				intSum += vm.ToInt(n)
			}
		}
		if isFloat {
			return floatSum + float64(intSum), nil
		}
		return intSum, nil
	})

	reg("range", 2, func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		return buildRange(args)
	})

	// in-place sorts
	reg("sort", 1, func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		a, err := argArray("sort", args, 0)
		if err != nil {
			return nil, err
		}
		a.SortBy(func(x, y vm.Value) bool { return vm.Compare(x, y) < 0 }, true)
		return true, nil
	})
	reg("rsort", 1, func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		a, err := argArray("rsort", args, 0)
		if err != nil {
			return nil, err
		}
		a.SortBy(func(x, y vm.Value) bool { return vm.Compare(x, y) > 0 }, true)
		return true, nil
	})
	reg("asort", 1, func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		a, err := argArray("asort", args, 0)
		if err != nil {
			return nil, err
		}
		a.SortBy(func(x, y vm.Value) bool { return vm.Compare(x, y) < 0 }, false)
		return true, nil
	})
	reg("ksort", 1, func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		a, err := argArray("ksort", args, 0)
		if err != nil {
			return nil, err
		}
		a.SortKeys(func(x, y vm.Value) bool { return vm.Compare(x, y) < 0 })
		return true, nil
	})
	reg("krsort", 1, func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		a, err := argArray("krsort", args, 0)
		if err != nil {
			return nil, err
		}
		a.SortKeys(func(x, y vm.Value) bool { return vm.Compare(x, y) > 0 })
		return true, nil
	})

	// callback sorts: the comparator runs user code, so errors are
	// collected and re-raised after the sort finishes.
	reg("usort", 2, func(machine *vm.VM, args []vm.Value) (vm.Value, error) {
		return callbackSort(machine, "usort", args, true, false)
	})
	reg("uasort", 2, func(machine *vm.VM, args []vm.Value) (vm.Value, error) {
		return callbackSort(machine, "uasort", args, false, false)
	})
	reg("uksort", 2, func(machine *vm.VM, args []vm.Value) (vm.Value, error) {
		return callbackSort(machine, "uksort", args, false, true)
	})

	reg("array_map", 2, func(machine *vm.VM, args []vm.Value) (vm.Value, error) {
		a, err := argArray("array_map", args, 1)
		if err != nil {
			return nil, err
		}
		out := vm.NewArray()
		for _, k := range a.Keys() {
			v, _ := a.GetKey(k)
			mapped, err := machine.CallValue(args[0], []vm.Value{v})
			if err != nil {
				return nil, err
			}
			out.SetKey(k, mapped)
		}
		return out, nil
	})

	reg("array_filter", 1, func(machine *vm.VM, args []vm.Value) (vm.Value, error) {
		a, err := argArray("array_filter", args, 0)
		if err != nil {
			return nil, err
		}
		out := vm.NewArray()
		for _, k := range a.Keys() {
			v, _ := a.GetKey(k)
			keep := vm.ToBool(v)
			if len(args) > 1 && args[1] != nil {
				res, err := machine.CallValue(args[1], []vm.Value{v})
				if err != nil {
					return nil, err
				}
				keep = vm.ToBool(res)
			}
			if keep {
				out.SetKey(k, vm.CopyValue(v))
			}
		}
		return out, nil
	})

	reg("array_reduce", 2, func(machine *vm.VM, args []vm.Value) (vm.Value, error) {
		a, err := argArray("array_reduce", args, 0)
		if err != nil {
			return nil, err
		}
		carry := optArg(args, 2, nil)
		for _, v := range a.List() {
			next, err := machine.CallValue(args[1], []vm.Value{carry, v})
			if err != nil {
				return nil, err
			}
			carry = next
		}
		return carry, nil
	})
}

// rebuild replaces an array's contents with the values behind the given
// keys, renumbering int keys from zero.
func rebuild(a *vm.Array, keys []vm.ArrayKey) {
	vals := make(map[vm.ArrayKey]vm.Value, len(keys))
	for _, k := range keys {
		vals[k], _ = a.GetKey(k)
	}
	a.Reset()
	for _, k := range keys {
		if k.IsInt {
			a.Append(vals[k])
		} else {
			a.SetKey(k, vals[k])
		}
	}
}

func equalsBy(a, b vm.Value, strict bool) bool {
	if strict {
		return vm.StrictEquals(a, b)
	}
	return vm.LooseEquals(a, b)
}

func callbackSort(machine *vm.VM, name string, args []vm.Value, renumber, byKeys bool) (vm.Value, error) {
	a, err := argArray(name, args, 0)
	if err != nil {
		return nil, err
	}
	cb := args[1]
	var cbErr error
	less := func(x, y vm.Value) bool {
		if cbErr != nil {
			return false
		}
		res, err := machine.CallValue(cb, []vm.Value{x, y})
		if err != nil {
			cbErr = err
			return false
		}
		return vm.ToInt(res) < 0
	}
	if byKeys {
		a.SortKeys(less)
	} else {
		a.SortBy(less, renumber)
	}
	if cbErr != nil {
		return nil, cbErr
	}
	return true, nil
}

func buildRange(args []vm.Value) (vm.Value, error) {
	out := vm.NewArray()

	// single-character string endpoints walk byte values
	s1, ok1 := args[0].(string)
	s2, ok2 := args[1].(string)
	if ok1 && ok2 && len(s1) == 1 && len(s2) == 1 && !vm.IsNumericString(s1) && !vm.IsNumericString(s2) {
		lo, hi := s1[0], s2[0]
		if lo <= hi {
			for c := lo; c <= hi; c++ {
				out.Append(string(c))
			}
		} else {
			for c := lo; c >= hi; c-- {
				out.Append(string(c))
			}
		}
		return out, nil
	}

	step := int64(1)
	if len(args) > 2 {
		step = vm.ToInt(args[2])
		if step < 0 {
			step = -step
		}
		if step == 0 {
			return nil, vm.Throwf("ValueError", "range(): Argument #3 ($step) cannot be 0")
		}
	}
	lo, hi := vm.ToInt(args[0]), vm.ToInt(args[1])
	if lo <= hi {
		for n := lo; n <= hi; n += step {
			out.Append(n)
		}
	} else {
		for n := lo; n >= hi; n -= step {
			out.Append(n)
		}
	}
	return out, nil
}
