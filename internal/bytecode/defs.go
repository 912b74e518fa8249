package bytecode

import (
	"strings"

	"phlox/internal/types"
)

// Property is a compiled property declaration.
type Property struct {
	Name       string
	Visibility types.Visibility
	WriteVis   *types.Visibility // asymmetric visibility; nil = same as read
	Default    *Const            // nil = no default (Null at instantiation)
	Readonly   bool
	Static     bool
	Type       *types.Hint
	GetHook    string // compiled hook method name, empty = none
	SetHook    string
	Attributes []string
}

// Class is a compiled class definition. Definitions are immutable after
// compilation; runtime static-property state lives on the VM.
type Class struct {
	Name       string
	Abstract   bool
	Final      bool
	Readonly   bool // all declared properties implicitly readonly
	Parent     string
	Interfaces []string
	Traits     []string
	Props      []Property
	Methods    map[string]*Function // keyed by lowercase method name
	StaticMethods map[string]*Function
	Consts     map[string]Const
	StaticDefaults map[string]Const // initial static property values
	ReadonlyStatics map[string]bool
	MethodVis  map[string]types.Visibility
	MethodFinal map[string]bool
	MethodAbstract map[string]bool
	Attributes []string
}

// NewClass returns a class definition with initialized tables.
func NewClass(name string) *Class {
	return &Class{
		Name:            name,
		Methods:         make(map[string]*Function),
		StaticMethods:   make(map[string]*Function),
		Consts:          make(map[string]Const),
		StaticDefaults:  make(map[string]Const),
		ReadonlyStatics: make(map[string]bool),
		MethodVis:       make(map[string]types.Visibility),
		MethodFinal:     make(map[string]bool),
		MethodAbstract:  make(map[string]bool),
	}
}

// Method looks up an instance method, case-insensitively per the language.
func (c *Class) Method(name string) (*Function, bool) {
	fn, ok := c.Methods[strings.ToLower(name)]
	return fn, ok
}

// StaticMethod looks up a static method.
func (c *Class) StaticMethod(name string) (*Function, bool) {
	fn, ok := c.StaticMethods[strings.ToLower(name)]
	return fn, ok
}

// Prop finds a declared property by name.
func (c *Class) Prop(name string) *Property {
	for i := range c.Props {
		if c.Props[i].Name == name {
			return &c.Props[i]
		}
	}
	return nil
}

// Interface is a compiled interface definition.
type Interface struct {
	Name    string
	Parents []string
	Methods []string // required method names (lowercase)
	Consts  map[string]Const
}

func NewInterface(name string) *Interface {
	return &Interface{Name: name, Consts: make(map[string]Const)}
}

// Trait is a compiled trait definition.
type Trait struct {
	Name    string
	Props   []Property
	Methods map[string]*Function // keyed by lowercase method name
}

func NewTrait(name string) *Trait {
	return &Trait{Name: name, Methods: make(map[string]*Function)}
}

// Enum is a compiled enum definition.
type Enum struct {
	Name       string
	Backing    string // "", "int", "string"
	Interfaces []string
	Cases     map[string]*Const // nil value = pure case
	CaseOrder []string
	Methods   map[string]*Function
	StaticMethods map[string]*Function
	Consts    map[string]Const
}

func NewEnum(name, backing string) *Enum {
	return &Enum{
		Name:          name,
		Backing:       backing,
		Cases:         make(map[string]*Const),
		Methods:       make(map[string]*Function),
		StaticMethods: make(map[string]*Function),
		Consts:        make(map[string]Const),
	}
}
