package builtins

import (
	"math"
	"math/rand"

	"phlox/internal/vm"
)

func installMath(m *vm.VM) {
	reg := func(name string, min int, fn func(args []vm.Value) (vm.Value, error)) {
		m.RegisterBuiltin(name, func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
			if err := needArgs(name, args, min); err != nil {
				return nil, err
			}
			return fn(args)
		})
	}

	reg("abs", 1, func(args []vm.Value) (vm.Value, error) {
		switch n := args[0].(type) {
		case int64:
			if n < 0 {
				return -n, nil
			}
			return n, nil
		default:
			return math.Abs(vm.ToFloat(args[0])), nil
		}
	})

	reg("ceil", 1, func(args []vm.Value) (vm.Value, error) {
		return math.Ceil(argFloat(args, 0)), nil
	})
	reg("floor", 1, func(args []vm.Value) (vm.Value, error) {
		return math.Floor(argFloat(args, 0)), nil
	})

	reg("round", 1, func(args []vm.Value) (vm.Value, error) {
		precision := vm.ToInt(optArg(args, 1, int64(0)))
		shift := math.Pow(10, float64(precision))
		return math.Round(argFloat(args, 0)*shift) / shift, nil
	})

	reg("sqrt", 1, func(args []vm.Value) (vm.Value, error) {
		return math.Sqrt(argFloat(args, 0)), nil
	})

	reg("pow", 2, func(args []vm.Value) (vm.Value, error) {
		// integer results stay integers, matching the ** operator
		b, bInt := args[0].(int64)
		e, eInt := args[1].(int64)
		if bInt && eInt && e >= 0 {
			result := int64(1)
			overflow := false
			for i := int64(0); i < e; i++ {
				next := result * b
				if b != 0 && next/b != result {
					overflow = true
					break
				}
				result = next
			}
			if !overflow {
				return result, nil
			}
		}
		return math.Pow(vm.ToFloat(args[0]), vm.ToFloat(args[1])), nil
	})

	reg("intdiv", 2, func(args []vm.Value) (vm.Value, error) {
		d := argInt(args, 1)
		if d == 0 {
			return nil, vm.Throwf("DivisionByZeroError", "Division by zero")
		}
		n := argInt(args, 0)
		if n == math.MinInt64 && d == -1 {
			return nil, vm.Throwf("ArithmeticError",
				"Division of PHP_INT_MIN by -1 is not an integer")
		}
		return n / d, nil
	})

	reg("min", 1, func(args []vm.Value) (vm.Value, error) {
		return pickExtreme(args, -1)
	})
	reg("max", 1, func(args []vm.Value) (vm.Value, error) {
		return pickExtreme(args, 1)
	})

	reg("rand", 0, func(args []vm.Value) (vm.Value, error) {
		if len(args) >= 2 {
			lo, hi := argInt(args, 0), argInt(args, 1)
			if lo > hi {
				return nil, vm.Throwf("ValueError",
					"rand(): Argument #1 ($min) must be less than or equal to argument #2 ($max)")
			}
			return lo + rand.Int63n(hi-lo+1), nil
		}
		return rand.Int63(), nil
	})
	reg("mt_rand", 0, func(args []vm.Value) (vm.Value, error) {
		if len(args) >= 2 {
			lo, hi := argInt(args, 0), argInt(args, 1)
			if lo > hi {
				return nil, vm.Throwf("ValueError",
					"mt_rand(): Argument #1 ($min) must be less than or equal to argument #2 ($max)")
			}
			return lo + rand.Int63n(hi-lo+1), nil
		}
		return rand.Int63(), nil
	})
}

// pickExtreme returns the smallest (dir < 0) or largest (dir > 0) of the
// arguments; a single array argument is searched element-wise.
func pickExtreme(args []vm.Value, dir int) (vm.Value, error) {
	values := args
	if len(args) == 1 {
		a, ok := args[0].(*vm.Array)
		if !ok {
			return args[0], nil
		}
		if a.Len() == 0 {
			return nil, vm.Throwf("ValueError",
				"min()/max(): Argument #1 ($value) must not be empty")
		}
		values = a.List()
	}
	best := values[0]
	for _, v := range values[1:] {
		if vm.Compare(v, best) == dir {
			best = v
		}
	}
	return best, nil
}
