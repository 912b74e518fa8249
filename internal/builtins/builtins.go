package builtins

import (
	"phlox/internal/database"
	"phlox/internal/vm"
)

// Install registers the complete builtin library on a VM and returns the
// database manager backing the db_* group so the host can close its
// connections on shutdown.
func Install(m *vm.VM) *database.Manager {
	installOutput(m)
	installString(m)
	installMath(m)
	installType(m)
	installArray(m)
	installRegex(m)
	installMisc(m)

	mgr := database.NewManager()
	installDB(m, mgr)
	return mgr
}

// Builtins validate their own arguments instead of running the
// user-function binding pipeline; these helpers raise the matching
// engine exceptions.

func needArgs(name string, args []vm.Value, n int) error {
	if len(args) < n {
		return vm.Throwf("ArgumentCountError",
			"%s() expects at least %d arguments, %d given", name, n, len(args))
	}
	return nil
}

func argArray(name string, args []vm.Value, i int) (*vm.Array, error) {
	a, ok := args[i].(*vm.Array)
	if !ok {
		return nil, vm.Throwf("TypeError",
			"%s(): Argument #%d must be of type array, %s given", name, i+1, vm.TypeName(args[i]))
	}
	return a, nil
}

func argString(args []vm.Value, i int) string {
	return vm.ToString(args[i])
}

func argInt(args []vm.Value, i int) int64 {
	return vm.ToInt(args[i])
}

func argFloat(args []vm.Value, i int) float64 {
	return vm.ToFloat(args[i])
}

// optArg returns args[i] or the default when the caller omitted it.
func optArg(args []vm.Value, i int, def vm.Value) vm.Value {
	if i < len(args) {
		return args[i]
	}
	return def
}
