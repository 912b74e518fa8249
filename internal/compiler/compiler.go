// Package compiler lowers the AST into bytecode: a main function plus
// tables of named functions, classes, interfaces, traits, and enums.
package compiler

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"phlox/internal/ast"
	"phlox/internal/bytecode"
	"phlox/internal/types"
)

// Compiler holds per-file compilation state.
type Compiler struct {
	prog   *bytecode.Program
	file   string
	strict bool
}

// Compile lowers one parsed file. Top-level declarations are hoisted into
// the program tables; the remaining statements become the main body.
func Compile(prog *ast.Program) (*bytecode.Program, error) {
	c := &Compiler{
		prog:   bytecode.NewProgram(),
		file:   prog.File,
		strict: prog.StrictTypes,
	}

	var body []ast.Stmt
	var classes []*ast.ClassDecl
	var enums []*ast.EnumDecl
	var funcs []*ast.FunctionDecl

	// interfaces and traits first: classes fold them in at compile time
	for _, stmt := range prog.Stmts {
		switch d := stmt.(type) {
		case *ast.InterfaceDecl:
			if err := c.compileInterface(d); err != nil {
				return nil, err
			}
		case *ast.TraitDecl:
			if err := c.compileTrait(d); err != nil {
				return nil, err
			}
		case *ast.ClassDecl:
			classes = append(classes, d)
		case *ast.EnumDecl:
			enums = append(enums, d)
		case *ast.FunctionDecl:
			funcs = append(funcs, d)
		default:
			body = append(body, stmt)
		}
	}
	for _, d := range classes {
		if err := c.compileClass(d); err != nil {
			return nil, err
		}
	}
	for _, d := range enums {
		if err := c.compileEnum(d); err != nil {
			return nil, err
		}
	}
	for _, d := range funcs {
		fn, err := c.compileFunction(d.Name, d.Params, d.ReturnType, d.Body, fnOpts{})
		if err != nil {
			return nil, err
		}
		c.prog.Functions[lower(d.Name)] = fn
	}

	main, err := c.compileFunction("{main}", nil, nil, body, fnOpts{main: true})
	if err != nil {
		return nil, err
	}
	c.prog.Main = main
	return c.prog, nil
}

func lower(s string) string { return strings.ToLower(s) }

func (c *Compiler) errorf(line int, format string, args ...interface{}) error {
	return errors.Errorf("compile error in %s on line %d: "+format,
		append([]interface{}{c.file, line}, args...)...)
}

// fnOpts selects the compilation context of a function body.
type fnOpts struct {
	main   bool
	method bool
	static bool
	class  string // enclosing class for methods and hooks
	ctor   bool
}

// scope is the per-function compilation state.
type scope struct {
	c  *Compiler
	fn *bytecode.Function

	main     bool
	method   bool
	static   bool
	class    string
	locals   map[string]int
	globals  map[string]bool
	consts   map[bytecode.Const]int32
	strs     map[string]int32
	tempN    int
	breakers []breaker
	loops    int
}

// breaker is one enclosing break target: loops break through the runtime
// loop-context stack, switches through compile-time jump patching.
type breaker struct {
	isLoop bool
	jumps  []int
}

func (c *Compiler) compileFunction(name string, params []ast.Param, ret *types.Hint, body []ast.Stmt, opt fnOpts) (*bytecode.Function, error) {
	fn := bytecode.NewFunction(name)
	fn.File = c.file
	fn.StrictTypes = c.strict
	fn.ReturnType = ret

	sc := &scope{
		c:       c,
		fn:      fn,
		main:    opt.main,
		method:  opt.method,
		static:  opt.static,
		class:   opt.class,
		locals:  make(map[string]int),
		globals: make(map[string]bool),
		consts:  make(map[bytecode.Const]int32),
		strs:    make(map[string]int32),
	}

	// a defaulted parameter followed by a mandatory one is still required
	required := 0
	for i, param := range params {
		if param.Default == nil && !param.Variadic {
			required = i + 1
		}
	}
	for i, param := range params {
		sc.slot(param.Name)
		info := bytecode.ParamInfo{Name: param.Name, Variadic: param.Variadic}
		if param.Default != nil {
			def, ok := foldConst(param.Default)
			if !ok {
				return nil, c.errorf(param.Default.Pos(), "default value for parameter $%s must be a constant expression", param.Name)
			}
			info.HasDefault = true
			info.Default = &def
		}
		if param.Variadic {
			fn.Variadic = true
			if i != len(params)-1 {
				return nil, c.errorf(0, "variadic parameter $%s must be last", param.Name)
			}
		}
		fn.Params = append(fn.Params, info)
		fn.ParamTypes = append(fn.ParamTypes, param.Type)
	}
	fn.ParamCount = len(params)
	fn.RequiredParams = required

	// constructor promotion stores bound parameters onto the new object
	if opt.ctor {
		for _, param := range params {
			if !param.Promoted {
				continue
			}
			sc.emit(bytecode.OpLoadFast, int32(sc.locals[param.Name]), 0, 0, 0)
			sc.emit(bytecode.OpStoreThisProperty, sc.str(param.Name), 0, 0, 0)
		}
	}

	for _, stmt := range body {
		if err := sc.compileStmt(stmt); err != nil {
			return nil, err
		}
	}
	line := 0
	if n := len(body); n > 0 {
		line = body[n-1].Pos()
	}
	sc.emit(bytecode.OpReturnNull, 0, 0, 0, line)
	fn.LocalCount = len(fn.LocalNames)
	return fn, nil
}

// ---- emit helpers ----

func (s *scope) emit(op bytecode.Op, a, b, c int32, line int) int {
	s.fn.Code = append(s.fn.Code, bytecode.Instr{Op: op, A: a, B: b, C: c, Line: int32(line)})
	return len(s.fn.Code) - 1
}

// emitJump emits a jump with an unresolved target.
func (s *scope) emitJump(op bytecode.Op, line int) int {
	return s.emit(op, -1, 0, 0, line)
}

// here is the index the next instruction will occupy.
func (s *scope) here() int32 { return int32(len(s.fn.Code)) }

func (s *scope) patch(idx int) {
	s.fn.Code[idx].A = s.here()
}

func (s *scope) patchTo(idx int, target int32) {
	s.fn.Code[idx].A = target
}

func (s *scope) constIdx(k bytecode.Const) int32 {
	if idx, ok := s.consts[k]; ok {
		return idx
	}
	idx := int32(len(s.fn.Consts))
	s.fn.Consts = append(s.fn.Consts, k)
	s.consts[k] = idx
	return idx
}

func (s *scope) str(v string) int32 {
	if idx, ok := s.strs[v]; ok {
		return idx
	}
	idx := int32(len(s.fn.Strings))
	s.fn.Strings = append(s.fn.Strings, v)
	s.strs[v] = idx
	return idx
}

// slot allocates or returns the local slot for a name.
func (s *scope) slot(name string) int32 {
	if idx, ok := s.locals[name]; ok {
		return int32(idx)
	}
	idx := len(s.fn.LocalNames)
	s.fn.LocalNames = append(s.fn.LocalNames, name)
	s.locals[name] = idx
	return int32(idx)
}

// temp allocates a hidden slot; the leading dot keeps it out of reach of
// source-level variables.
func (s *scope) temp() int32 {
	name := fmt.Sprintf(".t%d", s.tempN)
	s.tempN++
	return s.slot(name)
}

// useGlobal reports whether a variable name lives in the global table
// rather than a local slot in this scope.
func (s *scope) useGlobal(name string) bool {
	if s.main {
		return true
	}
	return s.globals[name]
}

func (s *scope) emitPushInt(v int64, line int) {
	s.emit(bytecode.OpPushInt, s.constIdx(bytecode.IntConst(v)), 0, 0, line)
}

func (s *scope) emitPushString(v string, line int) {
	s.emit(bytecode.OpPushString, s.str(v), 0, 0, line)
}

// loadVar pushes a variable's current value.
func (s *scope) loadVar(name string, line int) {
	if name == "this" {
		s.emit(bytecode.OpLoadThis, 0, 0, 0, line)
		return
	}
	if s.useGlobal(name) {
		s.emit(bytecode.OpLoadGlobal, s.str(name), 0, 0, line)
		return
	}
	s.emit(bytecode.OpLoadFast, s.slot(name), 0, 0, line)
}

// storeVar pops the top of stack into a variable.
func (s *scope) storeVar(name string, line int) error {
	if name == "this" {
		return s.c.errorf(line, "cannot re-assign $this")
	}
	if s.useGlobal(name) {
		s.emit(bytecode.OpStoreGlobal, s.str(name), 0, 0, line)
		return nil
	}
	s.emit(bytecode.OpStoreFast, s.slot(name), 0, 0, line)
	return nil
}

// ---- constant folding ----

// foldConst evaluates the constant expressions allowed in parameter and
// property defaults, class constants, and enum backing values.
func foldConst(e ast.Expr) (bytecode.Const, bool) {
	switch v := e.(type) {
	case *ast.NullLit:
		return bytecode.NullConst(), true
	case *ast.BoolLit:
		return bytecode.BoolConst(v.Value), true
	case *ast.IntLit:
		return bytecode.IntConst(v.Value), true
	case *ast.FloatLit:
		return bytecode.FloatConst(v.Value), true
	case *ast.StringLit:
		return bytecode.StringConst(v.Value), true
	case *ast.Unary:
		inner, ok := foldConst(v.X)
		if !ok {
			return bytecode.Const{}, false
		}
		switch v.Op {
		case "-":
			switch inner.Kind {
			case bytecode.ConstInt:
				return bytecode.IntConst(-inner.Int), true
			case bytecode.ConstFloat:
				return bytecode.FloatConst(-inner.Float), true
			}
		case "+":
			if inner.Kind == bytecode.ConstInt || inner.Kind == bytecode.ConstFloat {
				return inner, true
			}
		}
		return bytecode.Const{}, false
	case *ast.ArrayLit:
		if len(v.Items) == 0 {
			return bytecode.Const{Kind: bytecode.ConstEmptyArray}, true
		}
		return bytecode.Const{}, false
	case *ast.Binary:
		if v.Op != "." {
			return bytecode.Const{}, false
		}
		l, lok := foldConst(v.L)
		r, rok := foldConst(v.R)
		if lok && rok && l.Kind == bytecode.ConstString && r.Kind == bytecode.ConstString {
			return bytecode.StringConst(l.Str + r.Str), true
		}
		return bytecode.Const{}, false
	}
	return bytecode.Const{}, false
}
