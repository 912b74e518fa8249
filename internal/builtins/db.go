package builtins

import (
	"fmt"

	"phlox/internal/database"
	"phlox/internal/vm"
)

// The db_* group exposes the connection manager to scripts through
// integer handles. Errors surface as catchable RuntimeException objects.
func installDB(m *vm.VM, mgr *database.Manager) {
	m.RegisterBuiltin("db_open", func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		if err := needArgs("db_open", args, 2); err != nil {
			return nil, err
		}
		handle, err := mgr.Open(argString(args, 0), argString(args, 1))
		if err != nil {
			return nil, vm.Throwf("RuntimeException", "db_open(): %s", err)
		}
		return handle, nil
	})

	m.RegisterBuiltin("db_exec", func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		if err := needArgs("db_exec", args, 2); err != nil {
			return nil, err
		}
		params, err := sqlParams("db_exec", args[2:])
		if err != nil {
			return nil, err
		}
		affected, _, err := mgr.Exec(argInt(args, 0), argString(args, 1), params...)
		if err != nil {
			return nil, vm.Throwf("RuntimeException", "db_exec(): %s", err)
		}
		return affected, nil
	})

	m.RegisterBuiltin("db_query", func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		if err := needArgs("db_query", args, 2); err != nil {
			return nil, err
		}
		params, err := sqlParams("db_query", args[2:])
		if err != nil {
			return nil, err
		}
		cols, rows, err := mgr.Query(argInt(args, 0), argString(args, 1), params...)
		if err != nil {
			return nil, vm.Throwf("RuntimeException", "db_query(): %s", err)
		}
		out := vm.NewArray()
		for _, row := range rows {
			assoc := vm.NewArray()
			for i, col := range cols {
				assoc.Set(col, fromSQL(row[i]))
			}
			out.Append(assoc)
		}
		return out, nil
	})

	m.RegisterBuiltin("db_last_insert_id", func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		if err := needArgs("db_last_insert_id", args, 1); err != nil {
			return nil, err
		}
		lastID, err := mgr.LastInsertID(argInt(args, 0))
		if err != nil {
			return nil, vm.Throwf("RuntimeException", "db_last_insert_id(): %s", err)
		}
		return lastID, nil
	})

	m.RegisterBuiltin("db_close", func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		if err := needArgs("db_close", args, 1); err != nil {
			return nil, err
		}
		if err := mgr.Close(argInt(args, 0)); err != nil {
			return nil, vm.Throwf("RuntimeException", "db_close(): %s", err)
		}
		return true, nil
	})
}

// sqlParams converts script values to driver parameters; composites are
// rejected.
func sqlParams(name string, args []vm.Value) ([]interface{}, error) {
	out := make([]interface{}, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case nil, bool, int64, float64, string:
			out[i] = v
		default:
			return nil, vm.Throwf("TypeError",
				"%s(): Argument #%d must be a scalar, %s given", name, i+3, vm.TypeName(a))
		}
	}
	return out, nil
}

func fromSQL(v interface{}) vm.Value {
	switch n := v.(type) {
	case nil:
		return nil
	case bool:
		return n
	case int64:
		return n
	case float64:
		return n
	case string:
		return n
	default:
		return fmt.Sprintf("%v", n)
	}
}
