package vm

import "phlox/internal/bytecode"

// Object is a class instance. Objects pass by handle: assignment and
// argument binding share the same instance.
type Object struct {
	Class string
	Props *Array // string-keyed, declaration order

	// readonly properties may be written exactly once (from inside the
	// declaring class); initialized names are recorded here
	readonlyInit map[string]bool
}

func NewObject(class string) *Object {
	return &Object{Class: class, Props: NewArray(), readonlyInit: make(map[string]bool)}
}

func (o *Object) Get(name string) (Value, bool) {
	return o.Props.GetKey(StringKey(name))
}

func (o *Object) Set(name string, v Value) {
	o.Props.SetKey(StringKey(name), v)
}

func (o *Object) Unset(name string) {
	o.Props.Delete(name)
}

// ShallowCopy backs the clone operation: property values copy with array
// semantics, nested objects stay shared until __clone intervenes.
func (o *Object) ShallowCopy() *Object {
	out := NewObject(o.Class)
	out.Props = o.Props.Copy()
	for name := range o.readonlyInit {
		out.readonlyInit[name] = true
	}
	return out
}

// Closure is a first-class function value: compiled code plus captured
// variables, an optional bound receiver, and the class scope it was
// created in (for self/parent resolution inside the body).
type Closure struct {
	Fn       *bytecode.Function
	Captured map[string]Value
	This     Value // bound receiver, nil for unbound closures
	Scope    string
}

// EnumCase is a singleton case of a declared enum. Backing is nil for pure
// enums. Cases are interned by the VM so identity comparison works.
type EnumCase struct {
	Enum    string
	Case    string
	Backing Value
}

// GenItem is one yielded key/value pair.
type GenItem struct {
	Key   Value
	Value Value
}

// Generator replays the values a generator function produced. Generator
// bodies run to completion at call time and the yields are collected; the
// object then serves current/key/next/valid/send/getReturn.
type Generator struct {
	Items []GenItem
	Ret   Value
	pos   int
}

func (g *Generator) Valid() bool { return g.pos < len(g.Items) }

func (g *Generator) Current() Value {
	if !g.Valid() {
		return nil
	}
	return g.Items[g.pos].Value
}

func (g *Generator) Key() Value {
	if !g.Valid() {
		return nil
	}
	return g.Items[g.pos].Key
}

func (g *Generator) Next() { g.pos++ }

func (g *Generator) Rewind() { g.pos = 0 }

// Send advances like next and returns the then-current value; with eager
// collection the sent value itself is not observable by the body.
func (g *Generator) Send(Value) Value {
	g.pos++
	return g.Current()
}

func (g *Generator) GetReturn() Value { return g.Ret }
