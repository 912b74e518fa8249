// Package ast defines the tree produced by the parser and consumed by the
// compiler. Nodes carry the source line for diagnostics and the bytecode
// line map.
package ast

import "phlox/internal/types"

// Node is implemented by every statement and expression.
type Node interface {
	Pos() int // 1-based source line
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

type Position struct{ Line int }

func (p Position) Pos() int { return p.Line }

// ---- statements ----

type ExprStmt struct {
	Position
	X Expr
}

type EchoStmt struct {
	Position
	Values []Expr
}

type BlockStmt struct {
	Position
	List []Stmt
}

type IfStmt struct {
	Position
	Cond Expr
	Then []Stmt
	Else []Stmt // nil, another []Stmt, or a single nested IfStmt for elseif
}

type WhileStmt struct {
	Position
	Cond Expr
	Body []Stmt
}

type DoWhileStmt struct {
	Position
	Body []Stmt
	Cond Expr
}

type ForStmt struct {
	Position
	Init   []Expr
	Cond   Expr // nil means always true
	Update []Expr
	Body   []Stmt
}

type ForeachStmt struct {
	Position
	Subject Expr
	KeyVar  string // empty when no key binding
	ValVar  string
	Body    []Stmt
}

type SwitchCase struct {
	Conds []Expr // nil for default
	Body  []Stmt
}

type SwitchStmt struct {
	Position
	Subject Expr
	Cases   []SwitchCase
}

type BreakStmt struct{ Position }

type ContinueStmt struct{ Position }

type ReturnStmt struct {
	Position
	Value Expr // nil for bare return
}

type CatchClause struct {
	Classes []string
	Var     string
	Body    []Stmt
}

type TryStmt struct {
	Position
	Body    []Stmt
	Catches []CatchClause
	Finally []Stmt // nil when absent
}

type UnsetStmt struct {
	Position
	Targets []Expr
}

type GlobalStmt struct {
	Position
	Names []string
}

// DeclareStmt only carries strict_types; other declare directives are
// ignored by the engine.
type DeclareStmt struct {
	Position
	StrictTypes bool
}

// ---- declarations ----

type Attribute struct {
	Name string
	Args []Expr
}

type Param struct {
	Name       string
	Type       *types.Hint
	Default    Expr
	Variadic   bool
	ByRef      bool
	Promoted   bool // constructor promotion: carries a visibility modifier
	Visibility types.Visibility
	WriteVis   *types.Visibility
	Readonly   bool
}

type FunctionDecl struct {
	Position
	Name       string
	Params     []Param
	ReturnType *types.Hint
	Body       []Stmt
	Attributes []Attribute
}

type HookKind int

const (
	GetHook HookKind = iota
	SetHook
)

type PropHook struct {
	Kind HookKind
	Body []Stmt // arrow form desugars to a single ReturnStmt / ExprStmt
}

type PropDecl struct {
	Name       string
	Type       *types.Hint
	Default    Expr
	Visibility types.Visibility
	WriteVis   *types.Visibility
	Readonly   bool
	Static     bool
	Hooks      []PropHook
	Attributes []Attribute
	Line       int
}

type ConstDecl struct {
	Name  string
	Value Expr
}

type MethodDecl struct {
	FunctionDecl
	Visibility types.Visibility
	Static     bool
	Abstract   bool
	Final      bool
}

type ClassDecl struct {
	Position
	Name       string
	Abstract   bool
	Final      bool
	Readonly   bool
	Parent     string
	Interfaces []string
	Traits     []string
	Consts     []ConstDecl
	Props      []PropDecl
	Methods    []MethodDecl
	Attributes []Attribute
}

type InterfaceDecl struct {
	Position
	Name    string
	Parents []string
	Methods []MethodDecl // bodies ignored; signatures only
	Consts  []ConstDecl
}

type TraitDecl struct {
	Position
	Name    string
	Props   []PropDecl
	Methods []MethodDecl
}

type EnumCaseDecl struct {
	Name  string
	Value Expr // nil for pure enums
	Line  int
}

type EnumDecl struct {
	Position
	Name       string
	Backing    string // "", "int", "string"
	Interfaces []string
	Cases      []EnumCaseDecl
	Methods    []MethodDecl
	Consts     []ConstDecl
}

// ---- expressions ----

type NullLit struct{ Position }

type BoolLit struct {
	Position
	Value bool
}

type IntLit struct {
	Position
	Value int64
}

type FloatLit struct {
	Position
	Value float64
}

type StringLit struct {
	Position
	Value string
}

// InterpString is a double-quoted string with embedded expressions. Parts
// alternate freely between StringLit and arbitrary expressions.
type InterpString struct {
	Position
	Parts []Expr
}

type ArrayItem struct {
	Key    Expr // nil for auto-index
	Value  Expr
	Spread bool
}

type ArrayLit struct {
	Position
	Items []ArrayItem
}

type Var struct {
	Position
	Name string
}

// Name is a bare identifier in expression position: function name in a
// call, or a constant reference.
type Name struct {
	Position
	Value string
}

type Assign struct {
	Position
	Target Expr
	Op     string // "=", "+=", "-=", "*=", "/=", ".=", "%=", "**=", "??="
	Value  Expr
}

type IncDec struct {
	Position
	Target Expr
	Op     string // "++" or "--"
	Prefix bool
}

type Unary struct {
	Position
	Op string // "-", "!", "+"
	X  Expr
}

type Binary struct {
	Position
	Op string // arithmetic, comparison, logical, "." , "??", "<=>"
	L  Expr
	R  Expr
}

type Ternary struct {
	Position
	Cond Expr
	Then Expr // nil for short ternary ?:
	Else Expr
}

type Arg struct {
	Name   string // named argument; empty for positional
	Value  Expr
	Spread bool
}

type Call struct {
	Position
	Callee Expr // Name for plain calls, otherwise any callable expression
	Args   []Arg
}

type MethodCall struct {
	Position
	Obj      Expr
	Name     string
	Args     []Arg
	Nullsafe bool
}

type StaticCall struct {
	Position
	Class string // may be self/static/parent
	Name  string
	Args  []Arg
}

type PropFetch struct {
	Position
	Obj      Expr
	Name     string
	Nullsafe bool
}

type StaticPropFetch struct {
	Position
	Class string
	Name  string
}

// ClassConst covers Foo::BAR, Foo::class, and enum case access Foo::A.
type ClassConst struct {
	Position
	Class string
	Name  string
}

// Index is array subscripting; a nil Key is the append target $a[].
type Index struct {
	Position
	Arr Expr
	Key Expr
}

type New struct {
	Position
	Class string
	Args  []Arg
}

type CloneWith struct {
	Name  string
	Value Expr
}

type Clone struct {
	Position
	Obj  Expr
	With []CloneWith
}

type InstanceOf struct {
	Position
	Obj   Expr
	Class string
}

type ClosureUse struct {
	Name  string
	ByRef bool
}

type Closure struct {
	Position
	Params     []Param
	Uses       []ClosureUse
	ReturnType *types.Hint
	Body       []Stmt
	Static     bool
}

type ArrowFn struct {
	Position
	Params     []Param
	ReturnType *types.Hint
	Body       Expr
}

type MatchArm struct {
	Conds []Expr // nil for default
	Body  Expr
}

type Match struct {
	Position
	Subject Expr
	Arms    []MatchArm
}

type Throw struct {
	Position
	Value Expr
}

// Yield suspends a generator body with an optional key.
type Yield struct {
	Position
	Key   Expr // nil when no key
	Value Expr // nil for a bare yield
}

type YieldFrom struct {
	Position
	X Expr
}

type Cast struct {
	Position
	Kind string // int, float, string, bool, array, object
	X    Expr
}

type Isset struct {
	Position
	Targets []Expr
}

type Empty struct {
	Position
	X Expr
}

type Print struct {
	Position
	X Expr
}

type Exit struct {
	Position
	X Expr // nil for bare exit
}

func (*ExprStmt) stmtNode()      {}
func (*EchoStmt) stmtNode()      {}
func (*BlockStmt) stmtNode()     {}
func (*IfStmt) stmtNode()        {}
func (*WhileStmt) stmtNode()     {}
func (*DoWhileStmt) stmtNode()   {}
func (*ForStmt) stmtNode()       {}
func (*ForeachStmt) stmtNode()   {}
func (*SwitchStmt) stmtNode()    {}
func (*BreakStmt) stmtNode()     {}
func (*ContinueStmt) stmtNode()  {}
func (*ReturnStmt) stmtNode()    {}
func (*TryStmt) stmtNode()       {}
func (*UnsetStmt) stmtNode()     {}
func (*GlobalStmt) stmtNode()    {}
func (*DeclareStmt) stmtNode()   {}
func (*FunctionDecl) stmtNode()  {}
func (*ClassDecl) stmtNode()     {}
func (*InterfaceDecl) stmtNode() {}
func (*TraitDecl) stmtNode()     {}
func (*EnumDecl) stmtNode()      {}

func (*NullLit) exprNode()         {}
func (*BoolLit) exprNode()         {}
func (*IntLit) exprNode()          {}
func (*FloatLit) exprNode()        {}
func (*StringLit) exprNode()       {}
func (*InterpString) exprNode()    {}
func (*ArrayLit) exprNode()        {}
func (*Var) exprNode()             {}
func (*Name) exprNode()            {}
func (*Assign) exprNode()          {}
func (*IncDec) exprNode()          {}
func (*Unary) exprNode()           {}
func (*Binary) exprNode()          {}
func (*Ternary) exprNode()         {}
func (*Call) exprNode()            {}
func (*MethodCall) exprNode()      {}
func (*StaticCall) exprNode()      {}
func (*PropFetch) exprNode()       {}
func (*StaticPropFetch) exprNode() {}
func (*ClassConst) exprNode()      {}
func (*Index) exprNode()           {}
func (*New) exprNode()             {}
func (*Clone) exprNode()           {}
func (*InstanceOf) exprNode()      {}
func (*Closure) exprNode()         {}
func (*ArrowFn) exprNode()         {}
func (*Match) exprNode()           {}
func (*Throw) exprNode()           {}
func (*Yield) exprNode()           {}
func (*YieldFrom) exprNode()       {}
func (*Cast) exprNode()            {}
func (*Isset) exprNode()           {}
func (*Empty) exprNode()           {}
func (*Print) exprNode()           {}
func (*Exit) exprNode()            {}

// Program is a parsed source file.
type Program struct {
	Stmts       []Stmt
	StrictTypes bool
	File        string
}
