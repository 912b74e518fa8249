package vm

import (
	"fmt"
	"strings"

	"phlox/internal/bytecode"
)

// exceptionTree declares the builtin throwable hierarchy: class -> parent.
var exceptionTree = [][2]string{
	{"Exception", ""},
	{"Error", ""},
	{"RuntimeException", "Exception"},
	{"LogicException", "Exception"},
	{"InvalidArgumentException", "LogicException"},
	{"TypeError", "Error"},
	{"ValueError", "Error"},
	{"ArgumentCountError", "TypeError"},
	{"ArithmeticError", "Error"},
	{"DivisionByZeroError", "ArithmeticError"},
	{"UnhandledMatchError", "Error"},
	{"JsonException", "Exception"},
}

// registerExceptionClasses installs the builtin throwable classes so user
// code can extend, catch, and instantiate them.
func (vm *VM) registerExceptionClasses() {
	throwable := bytecode.NewInterface("Throwable")
	throwable.Methods = []string{"getmessage", "getcode", "getfile", "getline", "getprevious", "gettraceasstring"}
	vm.interfaces["throwable"] = throwable

	std := bytecode.NewClass("stdClass")
	vm.classes["stdclass"] = std

	for _, entry := range exceptionTree {
		cls := bytecode.NewClass(entry[0])
		cls.Parent = entry[1]
		if entry[1] == "" {
			cls.Interfaces = []string{"Throwable"}
		}
		msgDefault := bytecode.StringConst("")
		codeDefault := bytecode.IntConst(0)
		cls.Props = []bytecode.Property{
			{Name: "message", Default: &msgDefault},
			{Name: "code", Default: &codeDefault},
			{Name: "file"},
			{Name: "line"},
			{Name: "previous"},
		}
		vm.classes[strings.ToLower(entry[0])] = cls
	}
}

// isThrowable reports whether an object descends from the builtin
// Exception/Error roots (directly or through user classes).
func (vm *VM) isThrowable(obj *Object) bool {
	return vm.classInstanceOf(obj.Class, "Exception") ||
		vm.classInstanceOf(obj.Class, "Error")
}

// nativeExceptionCtor initializes (message, code, previous) the way the
// builtin classes do. Used when the hierarchy declares no __construct.
func (vm *VM) nativeExceptionCtor(obj *Object, args []Value) {
	if len(args) > 0 {
		obj.Set("message", ToString(args[0]))
	}
	if len(args) > 1 {
		obj.Set("code", ToInt(args[1]))
	}
	if len(args) > 2 {
		obj.Set("previous", args[2])
	}
}

// nativeExceptionMethod serves the builtin accessor methods for throwable
// objects whose hierarchy does not override them.
func (vm *VM) nativeExceptionMethod(obj *Object, name string) (func([]Value) (Value, error), bool) {
	if !vm.isThrowable(obj) {
		return nil, false
	}
	read := func(prop string, fallback Value) func([]Value) (Value, error) {
		return func([]Value) (Value, error) {
			if v, ok := obj.Get(prop); ok && v != nil {
				return v, nil
			}
			return fallback, nil
		}
	}
	switch strings.ToLower(name) {
	case "getmessage":
		return read("message", ""), true
	case "getcode":
		return read("code", int64(0)), true
	case "getfile":
		return read("file", ""), true
	case "getline":
		return read("line", int64(0)), true
	case "getprevious":
		return read("previous", nil), true
	case "gettraceasstring":
		return func([]Value) (Value, error) {
			return "#0 {main}", nil
		}, true
	case "__tostring":
		return func([]Value) (Value, error) {
			msg, _ := obj.Get("message")
			return fmt.Sprintf("%s: %s", obj.Class, ToString(msg)), nil
		}, true
	default:
		return nil, false
	}
}

// Throwf builds a catchable thrown error. Builtins raise engine
// exceptions through it.
func Throwf(class, format string, args ...interface{}) error {
	return &Thrown{Value: simpleError(class, fmt.Sprintf(format, args...))}
}

// simpleError builds a throwable object outside a VM context.
func simpleError(class, message string) *Object {
	obj := NewObject(class)
	obj.Set("message", message)
	obj.Set("code", int64(0))
	return obj
}
