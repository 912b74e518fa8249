package vm

import (
	"strings"

	"phlox/internal/bytecode"
	"phlox/internal/types"
)

// valueClass names the class of an object-like value, empty otherwise.
func valueClass(v Value) string {
	switch x := v.(type) {
	case *Object:
		return x.Class
	case *EnumCase:
		return x.Enum
	case *Closure:
		return "Closure"
	case *Generator:
		return "Generator"
	default:
		return ""
	}
}

// findMethod walks the inheritance chain for an instance method and
// reports the class that defines it.
func (vm *VM) findMethod(class, name string) (*bytecode.Function, string, bool) {
	for class != "" {
		cls, ok := vm.lookupClass(class)
		if !ok {
			return nil, "", false
		}
		if fn, ok := cls.Method(name); ok {
			return fn, cls.Name, true
		}
		class = cls.Parent
	}
	return nil, "", false
}

// findStaticMethod walks the chain for a static method, falling back to
// instance methods (trait-merged statics live there).
func (vm *VM) findStaticMethod(class, name string) (*bytecode.Function, string, bool, bool) {
	for class != "" {
		cls, ok := vm.lookupClass(class)
		if !ok {
			return nil, "", false, false
		}
		if fn, ok := cls.StaticMethod(name); ok {
			return fn, cls.Name, true, true
		}
		if fn, ok := cls.Method(name); ok {
			return fn, cls.Name, false, true
		}
		class = cls.Parent
	}
	return nil, "", false, false
}

// methodVisible enforces private/protected access from the calling frame.
func (vm *VM) methodVisible(f *frame, defClass, method string) bool {
	cls, ok := vm.lookupClass(defClass)
	if !ok {
		return true
	}
	vis, recorded := cls.MethodVis[strings.ToLower(method)]
	if !recorded || vis == types.Public {
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
		return strings.EqualFold(caller, defClass)
	}
	// protected: caller must be in the same hierarchy
	return vm.classExtends(caller, defClass) || vm.classExtends(defClass, caller)
}

func (vm *VM) classExtends(class, ancestor string) bool {
	for class != "" {
		if strings.EqualFold(class, ancestor) {
			return true
		}
		cls, ok := vm.lookupClass(class)
		if !ok {
			return false
		}
		class = cls.Parent
	}
	return false
}

// callMethodValue dispatches an instance method call on any receiver kind:
// objects (with __call fallback), enum cases, generators, and closures.
func (vm *VM) callMethodValue(f *frame, recv Value, name string, args []Value, keyed *Array) (Value, error) {
	switch r := recv.(type) {
	case *Object:
		return vm.callObjectMethod(f, r, name, args, keyed)
	case *EnumCase:
		return vm.callEnumMethod(r, name, args, keyed)
	case *Generator:
		return vm.callGeneratorMethod(r, name, args)
	case *Closure:
		switch strings.ToLower(name) {
		case "__invoke", "call":
			return vm.callClosureBound(r, args)
		}
		return nil, vm.throwError("Error", "Call to undefined method Closure::%s()", name)
	case nil:
		return nil, vm.throwError("Error", "Call to a member function %s() on null", name)
	default:
		return nil, vm.throwError("Error", "Call to a member function %s() on %s",
			name, shortTypeName(recv))
	}
}

func (vm *VM) callObjectMethod(f *frame, obj *Object, name string, args []Value, keyed *Array) (Value, error) {
	if fn, defClass, ok := vm.findMethod(obj.Class, name); ok {
		if !vm.methodVisible(f, defClass, name) {
			return nil, vm.throwError("Error",
				"Call to %s method %s::%s() from global scope",
				vm.methodVisibility(defClass, name), defClass, name)
		}
		if keyed != nil {
			bound, err := vm.bindNamed(fn, keyed)
			if err != nil {
				return nil, err
			}
			args = bound
		}
		return vm.invoke(fn, args, obj, defClass, obj.Class)
	}
	if native, ok := vm.nativeExceptionMethod(obj, name); ok {
		return native(args)
	}
	// __call takes the method name and an argument array
	if fn, defClass, ok := vm.findMethod(obj.Class, "__call"); ok {
		if keyed != nil {
			args = positionalOnly(keyed)
		}
		return vm.invoke(fn, []Value{name, valuesToArray(args)}, obj, defClass, obj.Class)
	}
	return nil, vm.throwError("Error", "Call to undefined method %s::%s()", obj.Class, name)
}

func (vm *VM) methodVisibility(class, method string) string {
	if cls, ok := vm.lookupClass(class); ok {
		return cls.MethodVis[strings.ToLower(method)].String()
	}
	return "public"
}

func (vm *VM) callEnumMethod(ec *EnumCase, name string, args []Value, keyed *Array) (Value, error) {
	en, ok := vm.lookupEnum(ec.Enum)
	if !ok {
		return nil, vm.throwError("Error", "Enum \"%s\" not found", ec.Enum)
	}
	if fn, ok := en.Methods[strings.ToLower(name)]; ok {
		if keyed != nil {
			bound, err := vm.bindNamed(fn, keyed)
			if err != nil {
				return nil, err
			}
			args = bound
		}
		return vm.invoke(fn, args, ec, en.Name, en.Name)
	}
	return nil, vm.throwError("Error", "Call to undefined method %s::%s()", ec.Enum, name)
}

func (vm *VM) callGeneratorMethod(g *Generator, name string, args []Value) (Value, error) {
	switch strings.ToLower(name) {
	case "current":
		return g.Current(), nil
	case "key":
		return g.Key(), nil
	case "next":
		g.Next()
		return nil, nil
	case "valid":
		return g.Valid(), nil
	case "rewind":
		g.Rewind()
		return nil, nil
	case "send":
		var sent Value
		if len(args) > 0 {
			sent = args[0]
		}
		return g.Send(sent), nil
	case "getreturn":
		return g.GetReturn(), nil
	case "throw":
		// the collected sequence has already run to completion, so the
		// injected exception propagates to the caller immediately
		if len(args) == 0 {
			return nil, vm.throwError("ArgumentCountError",
				"Generator::throw() expects exactly 1 argument, 0 given")
		}
		obj, ok := args[0].(*Object)
		if !ok || !vm.isThrowable(obj) {
			return nil, vm.throwError("TypeError",
				"Generator::throw(): Argument #1 must be of type Throwable, %s given",
				shortTypeName(args[0]))
		}
		return nil, &Thrown{Value: obj}
	default:
		return nil, vm.throwError("Error", "Call to undefined method Generator::%s()", name)
	}
}

// callStatic dispatches Class::method() including enum statics, late
// static binding, and the __callStatic fallback. parent:: and self:: calls
// keep the caller's receiver.
func (vm *VM) callStatic(f *frame, class, method string, args []Value, keyed *Array) (Value, error) {
	resolved := class
	if f != nil {
		resolved = vm.resolveClassKeyword(f, class)
	}
	if resolved == "" {
		return nil, vm.throwError("Error", "Cannot resolve class name \"%s\"", class)
	}

	if en, ok := vm.lookupEnum(resolved); ok {
		return vm.callEnumStatic(en, method, args, keyed)
	}

	fn, defClass, isStatic, found := vm.findStaticMethod(resolved, method)
	if !found {
		if fallback, fbClass, ok := vm.findStaticClassCallStatic(resolved); ok {
			if keyed != nil {
				args = positionalOnly(keyed)
			}
			return vm.invoke(fallback, []Value{method, valuesToArray(args)}, nil, fbClass, resolved)
		}
		if _, ok := vm.lookupClass(resolved); !ok {
			return nil, vm.throwError("Error", "Class \"%s\" not found", resolved)
		}
		return nil, vm.throwError("Error", "Call to undefined method %s::%s()", resolved, method)
	}
	if !vm.methodVisible(f, defClass, method) {
		return nil, vm.throwError("Error",
			"Call to %s method %s::%s() from global scope",
			vm.methodVisibility(defClass, method), defClass, method)
	}
	if keyed != nil {
		bound, err := vm.bindNamed(fn, keyed)
		if err != nil {
			return nil, err
		}
		args = bound
	}

	// forwarding calls (self::, parent::, static::) keep the receiver so
	// an instance method reached statically still sees $this
	var this Value
	static := resolved
	if f != nil && isKeyword(class) {
		if !isStatic {
			this = f.this
		}
		if f.static != "" {
			static = f.static
		}
	}
	return vm.invoke(fn, args, this, defClass, static)
}

func isKeyword(class string) bool {
	switch strings.ToLower(class) {
	case "self", "parent", "static":
		return true
	}
	return false
}

func (vm *VM) findStaticClassCallStatic(class string) (*bytecode.Function, string, bool) {
	for class != "" {
		cls, ok := vm.lookupClass(class)
		if !ok {
			return nil, "", false
		}
		if fn, ok := cls.StaticMethod("__callstatic"); ok {
			return fn, cls.Name, true
		}
		class = cls.Parent
	}
	return nil, "", false
}

// instantiate allocates an object and applies property defaults from the
// root of the hierarchy down.
func (vm *VM) instantiate(class string) (*Object, error) {
	if _, ok := vm.lookupEnum(class); ok {
		return nil, vm.throwError("Error", "Cannot instantiate enum %s", class)
	}
	if _, ok := vm.lookupInterface(class); ok {
		return nil, vm.throwError("Error", "Cannot instantiate interface %s", class)
	}
	cls, ok := vm.lookupClass(class)
	if !ok {
		return nil, vm.throwError("Error", "Class \"%s\" not found", class)
	}
	if cls.Abstract {
		return nil, vm.throwError("Error", "Cannot instantiate abstract class %s", cls.Name)
	}

	var chain []*bytecode.Class
	for c := cls; c != nil; {
		chain = append(chain, c)
		if c.Parent == "" {
			break
		}
		parent, ok := vm.lookupClass(c.Parent)
		if !ok {
			return nil, vm.throwError("Error", "Class \"%s\" not found", c.Parent)
		}
		c = parent
	}

	obj := NewObject(cls.Name)
	for i := len(chain) - 1; i >= 0; i-- {
		for _, prop := range chain[i].Props {
			if prop.Static {
				continue
			}
			if prop.Default != nil {
				obj.Set(prop.Name, constToValue(*prop.Default))
			}
		}
	}
	return obj, nil
}

// callConstructor runs __construct if the hierarchy declares one. A class
// without a constructor accepts and ignores arguments.
func (vm *VM) callConstructor(obj *Object, args []Value, keyed *Array) error {
	fn, defClass, ok := vm.findMethod(obj.Class, "__construct")
	if !ok {
		if vm.isThrowable(obj) {
			if keyed != nil {
				vm.nativeExceptionCtor(obj, keyed.List())
			} else {
				vm.nativeExceptionCtor(obj, args)
			}
		}
		return nil
	}
	if keyed != nil {
		bound, err := vm.bindNamed(fn, keyed)
		if err != nil {
			return err
		}
		args = bound
	}
	_, err := vm.invoke(fn, args, obj, defClass, obj.Class)
	return err
}

// performClone shallow-copies an object and runs __clone on the copy.
func (vm *VM) performClone(v Value) (Value, error) {
	obj, ok := v.(*Object)
	if !ok {
		if ec, isCase := v.(*EnumCase); isCase {
			return nil, vm.throwError("Error", "Trying to clone an uncloneable object of class %s", ec.Enum)
		}
		return nil, vm.throwError("Error", "__clone method called on non-object")
	}
	out := obj.ShallowCopy()
	if fn, defClass, ok := vm.findMethod(out.Class, "__clone"); ok {
		if _, err := vm.invoke(fn, nil, out, defClass, out.Class); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// valueToString converts for echo/concat, routing objects through
// __toString.
func (vm *VM) valueToString(v Value) (string, error) {
	obj, ok := v.(*Object)
	if !ok {
		return ToString(v), nil
	}
	if fn, defClass, found := vm.findMethod(obj.Class, "__tostring"); found {
		out, err := vm.invoke(fn, nil, obj, defClass, obj.Class)
		if err != nil {
			return "", err
		}
		s, isStr := out.(string)
		if !isStr {
			return "", vm.throwError("Error", "%s::__toString() must return a string value", obj.Class)
		}
		return s, nil
	}
	return "", vm.throwError("Error", "Object of class %s could not be converted to string", obj.Class)
}

// isInstanceOf implements instanceof for every object-like value.
func (vm *VM) isInstanceOf(v Value, target string) bool {
	if target == "" {
		return false
	}
	switch x := v.(type) {
	case *Object:
		return vm.classInstanceOf(x.Class, target)
	case *EnumCase:
		if strings.EqualFold(x.Enum, target) {
			return true
		}
		switch strings.ToLower(target) {
		case "unitenum":
			return true
		case "backedenum":
			return x.Backing != nil
		}
		if en, ok := vm.enums[strings.ToLower(x.Enum)]; ok {
			for _, iname := range en.Interfaces {
				if vm.interfaceInstanceOf(iname, target) {
					return true
				}
			}
		}
		return false
	case *Closure:
		return strings.EqualFold(target, "Closure")
	case *Generator:
		switch strings.ToLower(target) {
		case "generator", "traversable", "iterator":
			return true
		}
		return false
	default:
		return false
	}
}

func (vm *VM) classInstanceOf(class, target string) bool {
	for class != "" {
		if strings.EqualFold(class, target) {
			return true
		}
		cls, ok := vm.lookupClass(class)
		if !ok {
			return false
		}
		for _, iname := range cls.Interfaces {
			if vm.interfaceInstanceOf(iname, target) {
				return true
			}
		}
		class = cls.Parent
	}
	return false
}

func (vm *VM) interfaceInstanceOf(iface, target string) bool {
	if strings.EqualFold(iface, target) {
		return true
	}
	def, ok := vm.lookupInterface(iface)
	if !ok {
		return false
	}
	for _, parent := range def.Parents {
		if vm.interfaceInstanceOf(parent, target) {
			return true
		}
	}
	return false
}

// findProp locates a declared property along the chain.
func (vm *VM) findProp(class, name string) *bytecode.Property {
	for class != "" {
		cls, ok := vm.lookupClass(class)
		if !ok {
			return nil
		}
		if p := cls.Prop(name); p != nil {
			return p
		}
		class = cls.Parent
	}
	return nil
}

// valuesToArray packs an argument list for __call / __callStatic.
func valuesToArray(args []Value) *Array {
	arr := NewArray()
	for _, a := range args {
		arr.Append(a)
	}
	return arr
}
