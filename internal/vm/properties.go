package vm

import (
	"strings"

	"phlox/internal/bytecode"
	"phlox/internal/types"
)

// getProperty reads a property: declared storage and hooks first, then the
// __get magic fallback. Enum cases expose name and value.
func (vm *VM) getProperty(f *frame, recv Value, name string) (Value, error) {
	switch r := recv.(type) {
	case *Object:
		return vm.getObjectProperty(f, r, name)
	case *EnumCase:
		switch name {
		case "name":
			return r.Case, nil
		case "value":
			if r.Backing == nil {
				return nil, vm.throwError("Error",
					"Cannot read \"value\" on pure enum case %s::%s", r.Enum, r.Case)
			}
			return r.Backing, nil
		}
		return nil, vm.throwError("Error", "Undefined property: %s::$%s", r.Enum, name)
	case nil:
		return nil, vm.throwError("Error", "Attempt to read property \"%s\" on null", name)
	default:
		return nil, vm.throwError("Error", "Attempt to read property \"%s\" on %s",
			name, shortTypeName(recv))
	}
}

func (vm *VM) getObjectProperty(f *frame, obj *Object, name string) (Value, error) {
	prop := vm.findProp(obj.Class, name)

	// get hooks replace the read unless the hook body itself is reading
	if prop != nil && prop.GetHook != "" && !vm.inHookFor(f, name) {
		fn, defClass, ok := vm.findMethod(obj.Class, prop.GetHook)
		if ok {
			return vm.invoke(fn, nil, obj, defClass, obj.Class)
		}
	}

	if prop != nil && !vm.propReadable(f, obj.Class, prop) {
		return nil, vm.throwError("Error", "Cannot access %s property %s::$%s",
			prop.Visibility.String(), obj.Class, name)
	}

	if v, ok := obj.Get(name); ok {
		return v, nil
	}

	// dynamic property set at runtime, or __get fallback
	if prop == nil {
		if fn, defClass, ok := vm.findMethod(obj.Class, "__get"); ok && !vm.inMagicFor(f, "__get") {
			return vm.invoke(fn, []Value{name}, obj, defClass, obj.Class)
		}
	}
	return nil, nil
}

// setProperty writes a property honoring set hooks, readonly rules,
// asymmetric write visibility, and the __set fallback.
func (vm *VM) setProperty(f *frame, recv Value, name string, val Value) error {
	obj, ok := recv.(*Object)
	if !ok {
		if _, isCase := recv.(*EnumCase); isCase {
			return vm.throwError("Error", "Cannot modify readonly enum case property")
		}
		return vm.throwError("Error", "Attempt to assign property \"%s\" on %s",
			name, shortTypeName(recv))
	}

	prop := vm.findProp(obj.Class, name)

	if prop != nil && prop.SetHook != "" && !vm.inHookFor(f, name) {
		fn, defClass, ok := vm.findMethod(obj.Class, prop.SetHook)
		if ok {
			out, err := vm.invoke(fn, []Value{val}, obj, defClass, obj.Class)
			if err != nil {
				return err
			}
			// arrow-form set hooks return the value to store
			if out != nil {
				obj.Set(name, CopyValue(out))
			}
			return nil
		}
	}

	if prop != nil {
		if prop.Readonly && obj.readonlyInit[name] {
			return vm.throwError("Error", "Cannot modify readonly property %s::$%s",
				obj.Class, name)
		}
		if !vm.propWritable(f, obj.Class, prop) {
			return vm.throwError("Error", "Cannot modify %s property %s::$%s",
				writeVisibility(prop).String(), obj.Class, name)
		}
		if prop.Type != nil {
			cc := &checkCtx{vm: vm, strict: true, class: obj.Class, static: obj.Class}
			if f != nil {
				cc.strict = f.fn.StrictTypes
				cc.class = f.class
			}
			out, ok := cc.coerce(val, prop.Type)
			if !ok {
				return vm.throwError("TypeError",
					"Cannot assign %s to property %s::$%s of type %s",
					shortTypeName(val), obj.Class, name, prop.Type.String())
			}
			val = out
		}
		obj.Set(name, CopyValue(val))
		if prop.Readonly {
			obj.readonlyInit[name] = true
		}
		return nil
	}

	// undeclared: __set fallback, else a dynamic property
	if fn, defClass, ok := vm.findMethod(obj.Class, "__set"); ok && !vm.inMagicFor(f, "__set") {
		_, err := vm.invoke(fn, []Value{name, val}, obj, defClass, obj.Class)
		return err
	}
	obj.Set(name, CopyValue(val))
	return nil
}

// issetProperty implements isset($obj->prop): declared or dynamic storage
// with a non-null value, with the __isset fallback.
func (vm *VM) issetProperty(recv Value, name string) bool {
	switch r := recv.(type) {
	case *Object:
		if v, ok := r.Get(name); ok {
			return v != nil
		}
		if fn, defClass, ok := vm.findMethod(r.Class, "__isset"); ok {
			out, err := vm.invoke(fn, []Value{name}, r, defClass, r.Class)
			return err == nil && ToBool(out)
		}
		return false
	case *EnumCase:
		return name == "name" || (name == "value" && r.Backing != nil)
	default:
		return false
	}
}

// unsetProperty removes a property, with the __unset fallback.
func (vm *VM) unsetProperty(recv Value, name string) error {
	obj, ok := recv.(*Object)
	if !ok {
		return nil
	}
	if _, exists := obj.Get(name); exists {
		if prop := vm.findProp(obj.Class, name); prop != nil && prop.Readonly {
			return vm.throwError("Error", "Cannot unset readonly property %s::$%s",
				obj.Class, name)
		}
		obj.Unset(name)
		return nil
	}
	if fn, defClass, ok := vm.findMethod(obj.Class, "__unset"); ok {
		_, err := vm.invoke(fn, []Value{name}, obj, defClass, obj.Class)
		return err
	}
	return nil
}

// propReadable checks read visibility from the calling frame.
func (vm *VM) propReadable(f *frame, class string, prop *bytecode.Property) bool {
	return vm.visibleFrom(f, class, prop.Visibility)
}

// propWritable checks write visibility, which private(set)/protected(set)
// may restrict beyond the read side.
func (vm *VM) propWritable(f *frame, class string, prop *bytecode.Property) bool {
	return vm.visibleFrom(f, class, writeVisibility(prop))
}

func writeVisibility(prop *bytecode.Property) types.Visibility {
	if prop.WriteVis != nil {
		return *prop.WriteVis
	}
	return prop.Visibility
}

func (vm *VM) visibleFrom(f *frame, class string, vis types.Visibility) bool {
	if vis == types.Public {
		return true
	}
	caller := ""
	if f != nil {
		caller = f.class
	}
	if caller == "" {
		return false
	}
	if vis == types.Private {
		return strings.EqualFold(caller, class)
	}
	return vm.classExtends(caller, class) || vm.classExtends(class, caller)
}

// inHookFor reports whether the running frame is the hook of the named
// property, so its own reads and writes reach the backing storage.
func (vm *VM) inHookFor(f *frame, prop string) bool {
	if f == nil {
		return false
	}
	name := f.fn.Name
	return strings.HasSuffix(name, "::$"+prop+"::get") ||
		strings.HasSuffix(name, "::$"+prop+"::set")
}

// inMagicFor prevents __get/__set from recursing into themselves.
func (vm *VM) inMagicFor(f *frame, magic string) bool {
	if f == nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(f.fn.Name), "::"+magic)
}
