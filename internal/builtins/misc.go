package builtins

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"phlox/internal/vm"
)

func installMisc(m *vm.VM) {
	m.RegisterBuiltin("uniqid", func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		prefix := ""
		if len(args) > 0 {
			prefix = vm.ToString(args[0])
		}
		id := strings.ReplaceAll(uuid.NewString(), "-", "")
		return prefix + id[:13], nil
	})

	m.RegisterBuiltin("microtime", func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		now := time.Now()
		sec := now.Unix()
		frac := float64(now.Nanosecond()) / 1e9
		if len(args) > 0 && vm.ToBool(args[0]) {
			return float64(sec) + frac, nil
		}
		return vm.FormatFloat(frac) + " " + vm.ToString(sec), nil
	})

	m.RegisterBuiltin("time", func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		return time.Now().Unix(), nil
	})

	m.RegisterBuiltin("get_class", func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		if err := needArgs("get_class", args, 1); err != nil {
			return nil, err
		}
		switch o := args[0].(type) {
		case *vm.Object:
			return o.Class, nil
		case *vm.EnumCase:
			return o.Enum, nil
		case *vm.Closure:
			return "Closure", nil
		case *vm.Generator:
			return "Generator", nil
		}
		return nil, vm.Throwf("TypeError",
			"get_class(): Argument #1 ($object) must be of type object, %s given", vm.TypeName(args[0]))
	})

	m.RegisterBuiltin("function_exists", func(machine *vm.VM, args []vm.Value) (vm.Value, error) {
		if err := needArgs("function_exists", args, 1); err != nil {
			return nil, err
		}
		return machine.FunctionExists(vm.ToString(args[0])), nil
	})

	m.RegisterBuiltin("class_exists", func(machine *vm.VM, args []vm.Value) (vm.Value, error) {
		if err := needArgs("class_exists", args, 1); err != nil {
			return nil, err
		}
		return machine.ClassExists(vm.ToString(args[0])), nil
	})

	// spl_autoload_register adapts a script callable into the VM's
	// autoloader chain.
	m.RegisterBuiltin("spl_autoload_register", func(machine *vm.VM, args []vm.Value) (vm.Value, error) {
		if err := needArgs("spl_autoload_register", args, 1); err != nil {
			return nil, err
		}
		cb := args[0]
		machine.RegisterAutoloader(func(inner *vm.VM, class string) error {
			_, err := inner.CallValue(cb, []vm.Value{class})
			return err
		})
		return true, nil
	})
}
