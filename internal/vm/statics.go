package vm

import (
	"strings"

	"phlox/internal/bytecode"
)

// getStaticProp reads Class::$prop along the inheritance chain.
func (vm *VM) getStaticProp(f *frame, class, name string) (Value, error) {
	resolved := vm.resolveClassKeyword(f, class)
	for c := resolved; c != ""; {
		cls, ok := vm.lookupClass(c)
		if !ok {
			return nil, vm.throwError("Error", "Class \"%s\" not found", c)
		}
		if _, declared := cls.StaticDefaults[name]; declared {
			return vm.staticTable(cls)[name], nil
		}
		c = cls.Parent
	}
	return nil, vm.throwError("Error",
		"Access to undeclared static property %s::$%s", resolved, name)
}

// setStaticProp writes Class::$prop, honoring readonly statics.
func (vm *VM) setStaticProp(f *frame, class, name string, val Value) error {
	resolved := vm.resolveClassKeyword(f, class)
	for c := resolved; c != ""; {
		cls, ok := vm.lookupClass(c)
		if !ok {
			return vm.throwError("Error", "Class \"%s\" not found", c)
		}
		if _, declared := cls.StaticDefaults[name]; declared {
			if cls.ReadonlyStatics[name] {
				table := vm.staticTable(cls)
				if _, written := table[name]; written && table[name] != nil {
					return vm.throwError("Error",
						"Cannot modify readonly property %s::$%s", cls.Name, name)
				}
			}
			vm.staticTable(cls)[name] = CopyValue(val)
			return nil
		}
		c = cls.Parent
	}
	return vm.throwError("Error",
		"Access to undeclared static property %s::$%s", resolved, name)
}

// classConstant resolves Class::CONST, enum case access, interface
// constants, and the ::class pseudo-constant.
func (vm *VM) classConstant(f *frame, class, name string) (Value, error) {
	resolved := vm.resolveClassKeyword(f, class)
	if resolved == "" {
		return nil, vm.throwError("Error", "Cannot resolve class name \"%s\"", class)
	}

	if en, ok := vm.lookupEnum(resolved); ok {
		if name == "class" {
			return en.Name, nil
		}
		if _, declared := en.Cases[name]; declared {
			return vm.internCase(en, name), nil
		}
		if k, ok := en.Consts[name]; ok {
			return constToValue(k), nil
		}
		return nil, vm.throwError("Error", "Undefined constant %s::%s", en.Name, name)
	}

	if cls, ok := vm.lookupClass(resolved); ok {
		if name == "class" {
			return cls.Name, nil
		}
		for c := cls; c != nil; {
			if k, ok := c.Consts[name]; ok {
				return constToValue(k), nil
			}
			if c.Parent == "" {
				break
			}
			parent, ok := vm.lookupClass(c.Parent)
			if !ok {
				break
			}
			c = parent
		}
		return nil, vm.throwError("Error", "Undefined constant %s::%s", cls.Name, name)
	}

	if iface, ok := vm.lookupInterface(resolved); ok {
		if name == "class" {
			return iface.Name, nil
		}
		if k, ok := iface.Consts[name]; ok {
			return constToValue(k), nil
		}
		return nil, vm.throwError("Error", "Undefined constant %s::%s", iface.Name, name)
	}

	if name == "class" {
		// ::class works even on unknown names
		return resolved, nil
	}
	return nil, vm.throwError("Error", "Class \"%s\" not found", resolved)
}

// internCase returns the singleton EnumCase for a declared case.
func (vm *VM) internCase(en *bytecode.Enum, name string) *EnumCase {
	key := strings.ToLower(en.Name)
	table, ok := vm.enumCases[key]
	if !ok {
		table = make(map[string]*EnumCase)
		vm.enumCases[key] = table
	}
	if ec, ok := table[name]; ok {
		return ec
	}
	ec := &EnumCase{Enum: en.Name, Case: name}
	if k := en.Cases[name]; k != nil {
		ec.Backing = constToValue(*k)
	}
	table[name] = ec
	return ec
}

// callEnumStatic serves cases/from/tryFrom plus user-declared statics.
func (vm *VM) callEnumStatic(en *bytecode.Enum, method string, args []Value, keyed *Array) (Value, error) {
	if keyed != nil {
		args = positionalOnly(keyed)
	}
	switch strings.ToLower(method) {
	case "cases":
		out := NewArray()
		for _, name := range en.CaseOrder {
			out.Append(vm.internCase(en, name))
		}
		return out, nil

	case "from":
		if en.Backing == "" {
			return nil, vm.throwError("Error",
				"Cannot call from() on pure enum %s", en.Name)
		}
		if len(args) < 1 {
			return nil, vm.throwError("ArgumentCountError",
				"Too few arguments to function %s::from(), 0 passed in, at least 1 expected", en.Name)
		}
		if ec, ok := vm.enumCaseByValue(en, args[0]); ok {
			return ec, nil
		}
		return nil, vm.throwError("ValueError",
			"Value '%v' is not a valid backing value for enum %s", args[0], en.Name)

	case "tryfrom":
		if en.Backing == "" {
			return nil, vm.throwError("Error",
				"Cannot call tryFrom() on pure enum %s", en.Name)
		}
		if len(args) < 1 {
			return nil, vm.throwError("ArgumentCountError",
				"Too few arguments to function %s::tryFrom(), 0 passed in, at least 1 expected", en.Name)
		}
		if ec, ok := vm.enumCaseByValue(en, args[0]); ok {
			return ec, nil
		}
		return nil, nil
	}

	if fn, ok := en.StaticMethods[strings.ToLower(method)]; ok {
		return vm.invoke(fn, args, nil, en.Name, en.Name)
	}
	return nil, vm.throwError("Error", "Call to undefined method %s::%s()", en.Name, method)
}

func (vm *VM) enumCaseByValue(en *bytecode.Enum, v Value) (*EnumCase, bool) {
	for _, name := range en.CaseOrder {
		k := en.Cases[name]
		if k == nil {
			continue
		}
		if StrictEquals(constToValue(*k), v) {
			return vm.internCase(en, name), true
		}
	}
	return nil, false
}
