package vm

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"phlox/internal/bytecode"
)

// BuiltinFunc is a native function callable from bytecode. Builtins
// validate their own arguments and signal engine errors by returning a
// thrown exception object wrapped in *Thrown.
type BuiltinFunc func(vm *VM, args []Value) (Value, error)

// Thrown carries an in-flight exception object through Go error returns.
type Thrown struct {
	Value Value // *Object of a class descending from Throwable
}

func (t *Thrown) Error() string {
	obj, ok := t.Value.(*Object)
	if !ok {
		return "Uncaught " + ToString(t.Value)
	}
	msg, _ := obj.Get("message")
	return fmt.Sprintf("Uncaught %s: %s", obj.Class, ToString(msg))
}

// ExitError terminates execution with a process exit code.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("exit %d", e.Code)
}

// Autoloader resolves a class name to source code on demand.
type Autoloader func(vm *VM, class string) error

// VM executes compiled programs. All mutable runtime state (globals,
// static properties, interned enum cases, autoloaders) is per-instance.
type VM struct {
	functions  map[string]*bytecode.Function
	classes    map[string]*bytecode.Class
	interfaces map[string]*bytecode.Interface
	traits     map[string]*bytecode.Trait
	enums      map[string]*bytecode.Enum

	globals   map[string]Value
	statics   map[string]map[string]Value
	enumCases map[string]map[string]*EnumCase

	builtins    map[string]BuiltinFunc
	autoloaders []Autoloader
	autoloading map[string]bool

	Stdout io.Writer

	depth    int
	maxDepth int
}

// New builds a VM over a compiled program.
func New(prog *bytecode.Program) *VM {
	vm := &VM{
		functions:   make(map[string]*bytecode.Function),
		classes:     make(map[string]*bytecode.Class),
		interfaces:  make(map[string]*bytecode.Interface),
		traits:      make(map[string]*bytecode.Trait),
		enums:       make(map[string]*bytecode.Enum),
		globals:     make(map[string]Value),
		statics:     make(map[string]map[string]Value),
		enumCases:   make(map[string]map[string]*EnumCase),
		builtins:    make(map[string]BuiltinFunc),
		autoloading: make(map[string]bool),
		Stdout:      os.Stdout,
		maxDepth:    4096,
	}
	vm.registerExceptionClasses()
	if prog != nil {
		vm.Load(prog)
	}
	return vm
}

// Load merges a compiled program's declarations into the running VM. Used
// for the initial program and for autoloaded files.
func (vm *VM) Load(prog *bytecode.Program) {
	for name, fn := range prog.Functions {
		vm.functions[name] = fn
	}
	for name, cls := range prog.Classes {
		vm.classes[name] = cls
	}
	for name, iface := range prog.Interfaces {
		vm.interfaces[name] = iface
	}
	for name, tr := range prog.Traits {
		vm.traits[name] = tr
	}
	for name, en := range prog.Enums {
		vm.enums[name] = en
	}
}

// RegisterBuiltin installs a native function under a lowercase name.
func (vm *VM) RegisterBuiltin(name string, fn BuiltinFunc) {
	vm.builtins[strings.ToLower(name)] = fn
}

// HasBuiltin reports whether a native function is installed.
func (vm *VM) HasBuiltin(name string) bool {
	_, ok := vm.builtins[strings.ToLower(name)]
	return ok
}

// RegisterAutoloader appends to the autoload chain. Loaders run in
// registration order the first time an unknown class is referenced.
func (vm *VM) RegisterAutoloader(fn Autoloader) {
	vm.autoloaders = append(vm.autoloaders, fn)
}

// SetGlobal seeds a superglobal-style variable before Run.
func (vm *VM) SetGlobal(name string, v Value) {
	vm.globals[name] = CopyValue(v)
}

// Global reads a global variable; used by tests and the CLI.
func (vm *VM) Global(name string) (Value, bool) {
	v, ok := vm.globals[name]
	return v, ok
}

// Run executes a program's main function to completion.
func (vm *VM) Run(prog *bytecode.Program) error {
	if prog.Main == nil {
		return errors.New("program has no main function")
	}
	_, err := vm.runFunction(prog.Main, nil, nil, "", "")
	var exit *ExitError
	if errors.As(err, &exit) && exit.Code == 0 {
		return nil
	}
	return err
}

// FunctionExists reports whether a user function or builtin answers to name.
func (vm *VM) FunctionExists(name string) bool {
	if _, ok := vm.lookupFunction(name); ok {
		return true
	}
	return vm.HasBuiltin(name)
}

// ClassExists reports whether a class, enum, or interface is defined,
// consulting the autoload chain for unknown names.
func (vm *VM) ClassExists(name string) bool {
	if _, ok := vm.lookupClass(name); ok {
		return true
	}
	if _, ok := vm.lookupEnum(name); ok {
		return true
	}
	_, ok := vm.lookupInterface(name)
	return ok
}

// throwError builds and throws a builtin engine exception.
func (vm *VM) throwError(class, format string, args ...interface{}) error {
	obj := NewObject(class)
	obj.Set("message", fmt.Sprintf(format, args...))
	obj.Set("code", int64(0))
	obj.Set("file", "")
	obj.Set("line", int64(0))
	return &Thrown{Value: obj}
}

func (vm *VM) lookupFunction(name string) (*bytecode.Function, bool) {
	fn, ok := vm.functions[strings.ToLower(name)]
	return fn, ok
}

// lookupClass resolves a class name, invoking the autoload chain when the
// name is unknown. Recursive autoload attempts for the same name fail fast.
func (vm *VM) lookupClass(name string) (*bytecode.Class, bool) {
	key := strings.ToLower(name)
	if cls, ok := vm.classes[key]; ok {
		return cls, true
	}
	if vm.tryAutoload(name) {
		cls, ok := vm.classes[key]
		return cls, ok
	}
	return nil, false
}

func (vm *VM) lookupEnum(name string) (*bytecode.Enum, bool) {
	key := strings.ToLower(name)
	if en, ok := vm.enums[key]; ok {
		return en, true
	}
	if vm.tryAutoload(name) {
		en, ok := vm.enums[key]
		return en, ok
	}
	return nil, false
}

func (vm *VM) lookupInterface(name string) (*bytecode.Interface, bool) {
	iface, ok := vm.interfaces[strings.ToLower(name)]
	return iface, ok
}

// parentOf resolves a class's declared parent name, empty when none.
func (vm *VM) parentOf(class string) string {
	if cls, ok := vm.classes[strings.ToLower(class)]; ok {
		return cls.Parent
	}
	return ""
}

// staticTable lazily materializes a class's static property storage from
// its compiled defaults.
func (vm *VM) staticTable(cls *bytecode.Class) map[string]Value {
	key := strings.ToLower(cls.Name)
	if t, ok := vm.statics[key]; ok {
		return t
	}
	t := make(map[string]Value, len(cls.StaticDefaults))
	for name, def := range cls.StaticDefaults {
		t[name] = constToValue(def)
	}
	vm.statics[key] = t
	return t
}

// constToValue materializes a pooled constant.
func constToValue(k bytecode.Const) Value {
	switch k.Kind {
	case bytecode.ConstNull:
		return nil
	case bytecode.ConstBool:
		return k.Bool
	case bytecode.ConstInt:
		return k.Int
	case bytecode.ConstFloat:
		return k.Float
	case bytecode.ConstString:
		return k.Str
	case bytecode.ConstEmptyArray:
		return NewArray()
	}
	return nil
}

func (vm *VM) echo(s string) {
	io.WriteString(vm.Stdout, s)
}
