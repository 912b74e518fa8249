// Package bytecode defines the compiled program representation shared by the
// compiler and the VM: instructions, pooled constants, function metadata, and
// the class/interface/trait/enum definition tables.
package bytecode

import "phlox/internal/types"

// Instr is one VM instruction. A, B, and C are operand payloads whose
// meaning depends on the opcode (pool indices, slots, jump targets, counts).
type Instr struct {
	Op   Op
	A    int32
	B    int32
	C    int32
	Line int32
}

// ConstKind tags pooled constants.
type ConstKind int

const (
	ConstNull ConstKind = iota
	ConstBool
	ConstInt
	ConstFloat
	ConstString
	ConstEmptyArray
)

// Const is a pooled literal. The compiler evaluates scalar defaults and
// literals into the pool; the VM converts them to runtime values.
type Const struct {
	Kind  ConstKind
	Bool  bool
	Int   int64
	Float float64
	Str   string
}

func NullConst() Const          { return Const{Kind: ConstNull} }
func BoolConst(b bool) Const    { return Const{Kind: ConstBool, Bool: b} }
func IntConst(n int64) Const    { return Const{Kind: ConstInt, Int: n} }
func FloatConst(f float64) Const { return Const{Kind: ConstFloat, Float: f} }
func StringConst(s string) Const { return Const{Kind: ConstString, Str: s} }

// Equal reports pool-level identity, used for interning.
func (c Const) Equal(other Const) bool {
	if c.Kind != other.Kind {
		return false
	}
	switch c.Kind {
	case ConstBool:
		return c.Bool == other.Bool
	case ConstInt:
		return c.Int == other.Int
	case ConstFloat:
		return c.Float == other.Float
	case ConstString:
		return c.Str == other.Str
	}
	return true
}

// ParamInfo records what the call machinery needs per declared parameter.
// Defaults are constant expressions evaluated at compile time.
type ParamInfo struct {
	Name       string
	HasDefault bool
	Default    *Const
	Variadic   bool
}

// Function is one compiled function, method, or closure body.
type Function struct {
	Name           string // plain name, or "Class::method" for methods
	Code           []Instr
	Consts         []Const
	Strings        []string
	LocalCount     int
	LocalNames     []string // slot order; used for capture matching and traces
	ParamCount     int
	RequiredParams int
	Params         []ParamInfo
	ParamTypes     []*types.Hint // nil entry = untyped parameter
	ReturnType     *types.Hint
	Variadic       bool
	IsGenerator    bool
	StrictTypes    bool
	File           string

	// Captures names the enclosing-scope variables a closure binds at
	// creation; OpCreateClosure pops their values in declaration order.
	Captures []string

	// Funcs pools nested closure and arrow-function bodies; OpCreateClosure
	// carries an index into it.
	Funcs []*Function
}

// NewFunction returns an empty compiled function shell.
func NewFunction(name string) *Function {
	return &Function{Name: name}
}

// StringAt returns the pooled string for an instruction payload.
func (f *Function) StringAt(idx int32) string {
	return f.Strings[idx]
}

// ConstAt returns the pooled constant for an instruction payload.
func (f *Function) ConstAt(idx int32) Const {
	return f.Consts[idx]
}

// Program is the unit handed from the compiler to the VM.
type Program struct {
	Main       *Function
	Functions  map[string]*Function // keyed by lowercase name
	Classes    map[string]*Class    // keyed by lowercase name
	Interfaces map[string]*Interface
	Traits     map[string]*Trait
	Enums      map[string]*Enum
}

// NewProgram returns a Program with initialized tables.
func NewProgram() *Program {
	return &Program{
		Functions:  make(map[string]*Function),
		Classes:    make(map[string]*Class),
		Interfaces: make(map[string]*Interface),
		Traits:     make(map[string]*Trait),
		Enums:      make(map[string]*Enum),
	}
}

// Merge folds another compiled unit (an autoloaded file) into the program.
// Main is not merged; the caller decides whether to run it.
func (p *Program) Merge(other *Program) {
	for k, v := range other.Functions {
		p.Functions[k] = v
	}
	for k, v := range other.Classes {
		p.Classes[k] = v
	}
	for k, v := range other.Interfaces {
		p.Interfaces[k] = v
	}
	for k, v := range other.Traits {
		p.Traits[k] = v
	}
	for k, v := range other.Enums {
		p.Enums[k] = v
	}
}
