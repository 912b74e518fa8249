package vm

import (
	"sort"
	"strings"

	"phlox/internal/bytecode"
)

// callFunction dispatches a plain function call: user functions first,
// then registered builtins.
func (vm *VM) callFunction(name string, args []Value) (Value, error) {
	if fn, ok := vm.lookupFunction(name); ok {
		return vm.invoke(fn, args, nil, "", "")
	}
	if builtin, ok := vm.builtins[strings.ToLower(name)]; ok {
		return builtin(vm, args)
	}
	if vm.tryAutoload(name) {
		if fn, ok := vm.lookupFunction(name); ok {
			return vm.invoke(fn, args, nil, "", "")
		}
	}
	return nil, vm.throwError("Error", "Call to undefined function %s()", name)
}

// callFunctionNamed handles calls with named arguments or spreads; the
// compiler delivers them as a keyed array.
func (vm *VM) callFunctionNamed(name string, keyed *Array) (Value, error) {
	if fn, ok := vm.lookupFunction(name); ok {
		args, err := vm.bindNamed(fn, keyed)
		if err != nil {
			return nil, err
		}
		return vm.invoke(fn, args, nil, "", "")
	}
	if builtin, ok := vm.builtins[strings.ToLower(name)]; ok {
		// builtins take positional arguments; int keys in order
		return builtin(vm, positionalOnly(keyed))
	}
	if vm.tryAutoload(name) {
		if fn, ok := vm.lookupFunction(name); ok {
			args, err := vm.bindNamed(fn, keyed)
			if err != nil {
				return nil, err
			}
			return vm.invoke(fn, args, nil, "", "")
		}
	}
	return nil, vm.throwError("Error", "Call to undefined function %s()", name)
}

// invoke binds positional arguments and runs a compiled function.
func (vm *VM) invoke(fn *bytecode.Function, args []Value, this Value, class, static string) (Value, error) {
	locals, err := vm.bindArgs(fn, args, class, static)
	if err != nil {
		return nil, err
	}
	return vm.runFunction(fn, locals, this, class, static)
}

// bindArgs checks arity and parameter types, fills defaults, and collects
// variadic tails. The result is the frame's local slot array.
func (vm *VM) bindArgs(fn *bytecode.Function, args []Value, class, static string) ([]Value, error) {
	fixed := fn.ParamCount
	if fn.Variadic {
		fixed--
	}
	if len(args) < fn.RequiredParams {
		return nil, vm.throwError("ArgumentCountError",
			"Too few arguments to function %s(), %d passed in, at least %d expected",
			fn.Name, len(args), fn.RequiredParams)
	}

	locals := make([]Value, fn.LocalCount)
	cc := &checkCtx{vm: vm, strict: fn.StrictTypes, class: class, static: static}

	for i := 0; i < fixed; i++ {
		var v Value
		if i < len(args) {
			v = CopyValue(args[i])
		} else if fn.Params[i].HasDefault {
			v = constToValue(*fn.Params[i].Default)
		}
		if i < len(args) && i < len(fn.ParamTypes) && fn.ParamTypes[i] != nil {
			out, ok := cc.coerce(v, fn.ParamTypes[i])
			if !ok {
				return nil, vm.throwError("TypeError",
					"Argument %d passed to %s() must be of type %s, %s given",
					i+1, fn.Name, fn.ParamTypes[i].String(), shortTypeName(v))
			}
			v = out
		}
		locals[i] = v
	}

	if fn.Variadic {
		rest := NewArray()
		hint := fn.ParamTypes[fn.ParamCount-1]
		for i := fixed; i < len(args); i++ {
			v := CopyValue(args[i])
			if hint != nil {
				out, ok := cc.coerce(v, hint)
				if !ok {
					return nil, vm.throwError("TypeError",
						"Argument %d passed to %s() must be of type %s, %s given",
						i+1, fn.Name, hint.String(), shortTypeName(v))
				}
				v = out
			}
			rest.Append(v)
		}
		locals[fn.ParamCount-1] = rest
	}
	// extra positional args beyond a non-variadic signature are ignored
	return locals, nil
}

// bindNamed resolves a keyed argument array (int keys positional, string
// keys by parameter name) into a positional argument list.
func (vm *VM) bindNamed(fn *bytecode.Function, keyed *Array) ([]Value, error) {
	byIndex := make(map[int]Value)
	maxIdx := -1
	var intKeys []int
	for _, k := range keyed.Keys() {
		if k.IsInt {
			intKeys = append(intKeys, int(k.Int))
		}
	}
	sort.Ints(intKeys)
	for _, i := range intKeys {
		v, _ := keyed.GetKey(IntKey(int64(i)))
		byIndex[i] = v
		if i > maxIdx {
			maxIdx = i
		}
	}

	paramIdx := make(map[string]int, fn.ParamCount)
	for i, p := range fn.Params {
		paramIdx[p.Name] = i
	}
	for _, k := range keyed.Keys() {
		if k.IsInt {
			continue
		}
		idx, ok := paramIdx[k.Str]
		if !ok {
			return nil, vm.throwError("Error", "Unknown named parameter $%s", k.Str)
		}
		if _, dup := byIndex[idx]; dup {
			return nil, vm.throwError("Error",
				"Named parameter $%s overwrites previous argument", k.Str)
		}
		v, _ := keyed.GetKey(k)
		byIndex[idx] = v
		if idx > maxIdx {
			maxIdx = idx
		}
	}

	n := maxIdx + 1
	if n < fn.RequiredParams {
		n = fn.RequiredParams
	}
	args := make([]Value, n)
	for i := 0; i < n; i++ {
		if v, ok := byIndex[i]; ok {
			args[i] = v
			continue
		}
		if i < fn.ParamCount && fn.Params[i].HasDefault {
			args[i] = constToValue(*fn.Params[i].Default)
			continue
		}
		if i < fn.RequiredParams {
			return nil, vm.throwError("ArgumentCountError",
				"%s(): missing required argument $%s", fn.Name, fn.Params[i].Name)
		}
	}
	return args, nil
}

// positionalOnly flattens int-keyed entries of a keyed argument array in
// key order; used for builtins, which have no named parameters.
func positionalOnly(keyed *Array) []Value {
	var intKeys []int
	for _, k := range keyed.Keys() {
		if k.IsInt {
			intKeys = append(intKeys, int(k.Int))
		}
	}
	sort.Ints(intKeys)
	out := make([]Value, 0, len(intKeys))
	for _, i := range intKeys {
		v, _ := keyed.GetKey(IntKey(int64(i)))
		out = append(out, v)
	}
	return out
}

// CallValue invokes any callable value: closures, "function" strings,
// "Class::method" strings, [obj, "method"] pairs, and invokable objects.
func (vm *VM) CallValue(callee Value, args []Value) (Value, error) {
	switch c := callee.(type) {
	case *Closure:
		return vm.callClosure(c, args)
	case string:
		if class, method, ok := strings.Cut(c, "::"); ok {
			return vm.callStatic(nil, class, method, args, nil)
		}
		return vm.callFunction(c, args)
	case *Object:
		return vm.callMethodValue(nil, c, "__invoke", args, nil)
	case *Array:
		if c.Len() == 2 {
			recv := c.ValueAt(0)
			method := ToString(c.ValueAt(1))
			if obj, ok := recv.(*Object); ok {
				return vm.callMethodValue(nil, obj, method, args, nil)
			}
			if class, ok := recv.(string); ok {
				return vm.callStatic(nil, class, method, args, nil)
			}
		}
		return nil, vm.throwError("TypeError", "Value of type array is not callable")
	default:
		return nil, vm.throwError("TypeError", "Value of type %s is not callable", shortTypeName(callee))
	}
}

func (vm *VM) callValueNamed(callee Value, keyed *Array) (Value, error) {
	if c, ok := callee.(*Closure); ok {
		args, err := vm.bindNamed(c.Fn, keyed)
		if err != nil {
			return nil, err
		}
		return vm.callClosureBound(c, args)
	}
	return vm.CallValue(callee, positionalOnly(keyed))
}

// callClosure binds positional args plus captured variables and runs the
// closure body with its creation-time receiver and scope.
func (vm *VM) callClosure(c *Closure, args []Value) (Value, error) {
	return vm.callClosureBound(c, args)
}

func (vm *VM) callClosureBound(c *Closure, args []Value) (Value, error) {
	static := c.Scope
	if cls := valueClass(c.This); cls != "" {
		static = cls
	}
	locals, err := vm.bindArgs(c.Fn, args, c.Scope, static)
	if err != nil {
		return nil, err
	}
	for name, v := range c.Captured {
		for slot, local := range c.Fn.LocalNames {
			if local == name {
				locals[slot] = CopyValue(v)
				break
			}
		}
	}
	return vm.runFunction(c.Fn, locals, c.This, c.Scope, static)
}
