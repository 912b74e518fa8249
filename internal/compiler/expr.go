package compiler

import (
	"math"

	"phlox/internal/ast"
	"phlox/internal/bytecode"
)

var binaryOps = map[string]bytecode.Op{
	"+":   bytecode.OpAdd,
	"-":   bytecode.OpSub,
	"*":   bytecode.OpMul,
	"/":   bytecode.OpDiv,
	"%":   bytecode.OpMod,
	"**":  bytecode.OpPow,
	".":   bytecode.OpConcat,
	"==":  bytecode.OpEq,
	"!=":  bytecode.OpNe,
	"===": bytecode.OpIdentical,
	"!==": bytecode.OpNotIdentical,
	"<":   bytecode.OpLt,
	"<=":  bytecode.OpLe,
	">":   bytecode.OpGt,
	">=":  bytecode.OpGe,
	"<=>": bytecode.OpSpaceship,
	"xor": bytecode.OpXor,
}

var compoundOps = map[string]string{
	"+=": "+", "-=": "-", "*=": "*", "/=": "/",
	".=": ".", "%=": "%", "**=": "**",
}

// engine-level constants resolvable at compile time
var builtinConstants = map[string]ast.Expr{
	"PHP_EOL":           &ast.StringLit{Value: "\n"},
	"PHP_INT_MAX":       &ast.IntLit{Value: math.MaxInt64},
	"PHP_INT_MIN":       &ast.IntLit{Value: math.MinInt64},
	"PHP_INT_SIZE":      &ast.IntLit{Value: 8},
	"PHP_FLOAT_EPSILON": &ast.FloatLit{Value: 2.220446049250313e-16},
	"PHP_FLOAT_MAX":     &ast.FloatLit{Value: math.MaxFloat64},
	"M_PI":              &ast.FloatLit{Value: math.Pi},
	"NAN":               &ast.FloatLit{Value: math.NaN()},
	"INF":               &ast.FloatLit{Value: math.Inf(1)},
}

func (s *scope) compileExpr(expr ast.Expr) error {
	line := expr.Pos()
	switch e := expr.(type) {
	case *ast.NullLit:
		s.emit(bytecode.OpPushNull, 0, 0, 0, line)
	case *ast.BoolLit:
		if e.Value {
			s.emit(bytecode.OpPushTrue, 0, 0, 0, line)
		} else {
			s.emit(bytecode.OpPushFalse, 0, 0, 0, line)
		}
	case *ast.IntLit:
		s.emitPushInt(e.Value, line)
	case *ast.FloatLit:
		s.emit(bytecode.OpPushFloat, s.constIdx(bytecode.FloatConst(e.Value)), 0, 0, line)
	case *ast.StringLit:
		s.emitPushString(e.Value, line)

	case *ast.InterpString:
		for i, part := range e.Parts {
			if err := s.compileExpr(part); err != nil {
				return err
			}
			if i > 0 {
				s.emit(bytecode.OpConcat, 0, 0, 0, line)
			}
		}

	case *ast.ArrayLit:
		return s.compileArrayLit(e)

	case *ast.Var:
		s.loadVar(e.Name, line)

	case *ast.Name:
		resolved, ok := builtinConstants[e.Value]
		if !ok {
			return s.c.errorf(line, "undefined constant %q", e.Value)
		}
		return s.compileExpr(resolved)

	case *ast.Assign:
		return s.compileAssign(e)

	case *ast.IncDec:
		return s.compileIncDec(e)

	case *ast.Unary:
		switch e.Op {
		case "!":
			if err := s.compileExpr(e.X); err != nil {
				return err
			}
			s.emit(bytecode.OpNot, 0, 0, 0, line)
		case "-":
			if err := s.compileExpr(e.X); err != nil {
				return err
			}
			s.emit(bytecode.OpNeg, 0, 0, 0, line)
		case "+":
			// numeric identity: 0 + x coerces like unary plus
			s.emitPushInt(0, line)
			if err := s.compileExpr(e.X); err != nil {
				return err
			}
			s.emit(bytecode.OpAdd, 0, 0, 0, line)
		default:
			return s.c.errorf(line, "unknown unary operator %q", e.Op)
		}

	case *ast.Binary:
		return s.compileBinary(e)

	case *ast.Ternary:
		return s.compileTernary(e)

	case *ast.Call:
		return s.compileCall(e)

	case *ast.MethodCall:
		return s.compileMethodCall(e)

	case *ast.StaticCall:
		keyed, argc, err := s.compileArgs(e.Args)
		if err != nil {
			return err
		}
		if keyed {
			s.emit(bytecode.OpCallStaticMethodNamed, s.str(e.Class), s.str(e.Name), 0, line)
		} else {
			s.emit(bytecode.OpCallStaticMethod, s.str(e.Class), s.str(e.Name), argc, line)
		}

	case *ast.PropFetch:
		if err := s.compileExpr(e.Obj); err != nil {
			return err
		}
		if e.Nullsafe {
			skip := s.emitJump(bytecode.OpJumpIfNull, line)
			s.emit(bytecode.OpLoadProperty, s.str(e.Name), 0, 0, line)
			s.patch(skip)
		} else {
			s.emit(bytecode.OpLoadProperty, s.str(e.Name), 0, 0, line)
		}

	case *ast.StaticPropFetch:
		s.emit(bytecode.OpLoadStaticProp, s.str(e.Class), s.str(e.Name), 0, line)

	case *ast.ClassConst:
		s.emit(bytecode.OpLoadClassConst, s.str(e.Class), s.str(e.Name), 0, line)

	case *ast.Index:
		if e.Key == nil {
			return s.c.errorf(line, "cannot read an array append target")
		}
		if err := s.compileExpr(e.Arr); err != nil {
			return err
		}
		if err := s.compileExpr(e.Key); err != nil {
			return err
		}
		s.emit(bytecode.OpArrayGet, 0, 0, 0, line)

	case *ast.New:
		s.emit(bytecode.OpNewObject, s.str(e.Class), 0, 0, line)
		keyed, argc, err := s.compileArgs(e.Args)
		if err != nil {
			return err
		}
		if keyed {
			s.emit(bytecode.OpCallConstructorNamed, 0, 0, 0, line)
		} else {
			s.emit(bytecode.OpCallConstructor, argc, 0, 0, line)
		}

	case *ast.Clone:
		if err := s.compileExpr(e.Obj); err != nil {
			return err
		}
		s.emit(bytecode.OpClone, 0, 0, 0, line)
		for _, with := range e.With {
			if err := s.compileExpr(with.Value); err != nil {
				return err
			}
			s.emit(bytecode.OpStoreCloneProperty, s.str(with.Name), 0, 0, line)
		}

	case *ast.InstanceOf:
		if err := s.compileExpr(e.Obj); err != nil {
			return err
		}
		s.emit(bytecode.OpInstanceOf, s.str(e.Class), 0, 0, line)

	case *ast.Closure:
		return s.compileClosure(e)

	case *ast.ArrowFn:
		return s.compileArrowFn(e)

	case *ast.Match:
		return s.compileMatch(e)

	case *ast.Throw:
		if err := s.compileExpr(e.Value); err != nil {
			return err
		}
		s.emit(bytecode.OpThrow, 0, 0, 0, line)

	case *ast.Yield:
		s.fn.IsGenerator = true
		hasKey := int32(0)
		if e.Key != nil {
			hasKey = 1
			if err := s.compileExpr(e.Key); err != nil {
				return err
			}
		}
		if e.Value != nil {
			if err := s.compileExpr(e.Value); err != nil {
				return err
			}
		} else {
			s.emit(bytecode.OpPushNull, 0, 0, 0, line)
		}
		s.emit(bytecode.OpYield, hasKey, 0, 0, line)

	case *ast.YieldFrom:
		s.fn.IsGenerator = true
		if err := s.compileExpr(e.X); err != nil {
			return err
		}
		s.emit(bytecode.OpYieldFrom, 0, 0, 0, line)

	case *ast.Cast:
		if err := s.compileExpr(e.X); err != nil {
			return err
		}
		s.emit(bytecode.OpCast, int32(castKindOf(e.Kind)), 0, 0, line)

	case *ast.Isset:
		return s.compileIsset(e)

	case *ast.Empty:
		if err := s.compileExpr(e.X); err != nil {
			return err
		}
		s.emit(bytecode.OpNot, 0, 0, 0, line)

	case *ast.Print:
		if err := s.compileExpr(e.X); err != nil {
			return err
		}
		s.emit(bytecode.OpPrint, 0, 0, 0, line)

	case *ast.Exit:
		if e.X != nil {
			if err := s.compileExpr(e.X); err != nil {
				return err
			}
			s.emit(bytecode.OpExit, 1, 0, 0, line)
		} else {
			s.emit(bytecode.OpExit, 0, 0, 0, line)
		}

	default:
		return s.c.errorf(line, "cannot compile expression %T", expr)
	}
	return nil
}

func castKindOf(kind string) bytecode.CastKind {
	switch kind {
	case "int":
		return bytecode.CastInt
	case "float":
		return bytecode.CastFloat
	case "string":
		return bytecode.CastString
	case "bool":
		return bytecode.CastBool
	case "array":
		return bytecode.CastArray
	default:
		return bytecode.CastObject
	}
}

func (s *scope) compileArrayLit(e *ast.ArrayLit) error {
	line := e.Pos()
	hasSpread := false
	for _, item := range e.Items {
		if item.Spread {
			hasSpread = true
			break
		}
	}
	if !hasSpread {
		for _, item := range e.Items {
			if item.Key != nil {
				if err := s.compileExpr(item.Key); err != nil {
					return err
				}
			} else {
				s.emit(bytecode.OpPushNull, 0, 0, 0, line)
			}
			if err := s.compileExpr(item.Value); err != nil {
				return err
			}
		}
		s.emit(bytecode.OpNewArray, int32(len(e.Items)), 0, 0, line)
		return nil
	}
	s.emit(bytecode.OpNewArray, 0, 0, 0, line)
	for _, item := range e.Items {
		if item.Spread {
			if err := s.compileExpr(item.Value); err != nil {
				return err
			}
			s.emit(bytecode.OpArrayExtend, 0, 0, 0, line)
			continue
		}
		if item.Key != nil {
			if err := s.compileExpr(item.Key); err != nil {
				return err
			}
		} else {
			s.emit(bytecode.OpPushNull, 0, 0, 0, line)
		}
		if err := s.compileExpr(item.Value); err != nil {
			return err
		}
		s.emit(bytecode.OpArrayPush, 0, 0, 0, line)
	}
	return nil
}

func (s *scope) compileBinary(e *ast.Binary) error {
	line := e.Pos()
	switch e.Op {
	case "&&":
		if err := s.compileExpr(e.L); err != nil {
			return err
		}
		jf1 := s.emitJump(bytecode.OpJumpIfFalse, line)
		if err := s.compileExpr(e.R); err != nil {
			return err
		}
		jf2 := s.emitJump(bytecode.OpJumpIfFalse, line)
		s.emit(bytecode.OpPushTrue, 0, 0, 0, line)
		jend := s.emitJump(bytecode.OpJump, line)
		s.patch(jf1)
		s.patch(jf2)
		s.emit(bytecode.OpPushFalse, 0, 0, 0, line)
		s.patch(jend)
		return nil

	case "||":
		if err := s.compileExpr(e.L); err != nil {
			return err
		}
		jt1 := s.emitJump(bytecode.OpJumpIfTrue, line)
		if err := s.compileExpr(e.R); err != nil {
			return err
		}
		jt2 := s.emitJump(bytecode.OpJumpIfTrue, line)
		s.emit(bytecode.OpPushFalse, 0, 0, 0, line)
		jend := s.emitJump(bytecode.OpJump, line)
		s.patch(jt1)
		s.patch(jt2)
		s.emit(bytecode.OpPushTrue, 0, 0, 0, line)
		s.patch(jend)
		return nil

	case "??":
		if err := s.compileExpr(e.L); err != nil {
			return err
		}
		jnn := s.emitJump(bytecode.OpJumpIfNotNull, line)
		s.emit(bytecode.OpPop, 0, 0, 0, line)
		if err := s.compileExpr(e.R); err != nil {
			return err
		}
		s.patch(jnn)
		return nil
	}

	op, ok := binaryOps[e.Op]
	if !ok {
		return s.c.errorf(line, "unknown binary operator %q", e.Op)
	}
	if err := s.compileExpr(e.L); err != nil {
		return err
	}
	if err := s.compileExpr(e.R); err != nil {
		return err
	}
	s.emit(op, 0, 0, 0, line)
	return nil
}

func (s *scope) compileTernary(e *ast.Ternary) error {
	line := e.Pos()
	if e.Then == nil {
		// short form keeps the condition value when truthy
		if err := s.compileExpr(e.Cond); err != nil {
			return err
		}
		s.emit(bytecode.OpDup, 0, 0, 0, line)
		jt := s.emitJump(bytecode.OpJumpIfTrue, line)
		s.emit(bytecode.OpPop, 0, 0, 0, line)
		if err := s.compileExpr(e.Else); err != nil {
			return err
		}
		s.patch(jt)
		return nil
	}
	if err := s.compileExpr(e.Cond); err != nil {
		return err
	}
	jf := s.emitJump(bytecode.OpJumpIfFalse, line)
	if err := s.compileExpr(e.Then); err != nil {
		return err
	}
	jend := s.emitJump(bytecode.OpJump, line)
	s.patch(jf)
	if err := s.compileExpr(e.Else); err != nil {
		return err
	}
	s.patch(jend)
	return nil
}

// compileArgs pushes call arguments. When every argument is positional and
// unspread they go directly on the stack; otherwise a keyed array is built
// (int keys position, string keys name) for the named-binding path.
func (s *scope) compileArgs(args []ast.Arg) (keyed bool, argc int32, err error) {
	for _, arg := range args {
		if arg.Spread || arg.Name != "" {
			keyed = true
			break
		}
	}
	line := 0
	if len(args) > 0 {
		line = args[0].Value.Pos()
	}
	if !keyed {
		for _, arg := range args {
			if err := s.compileExpr(arg.Value); err != nil {
				return false, 0, err
			}
		}
		return false, int32(len(args)), nil
	}
	s.emit(bytecode.OpNewArray, 0, 0, 0, line)
	positional := int64(0)
	for _, arg := range args {
		switch {
		case arg.Spread:
			if err := s.compileExpr(arg.Value); err != nil {
				return false, 0, err
			}
			s.emit(bytecode.OpArrayExtend, 0, 0, 0, line)
		case arg.Name != "":
			s.emitPushString(arg.Name, line)
			if err := s.compileExpr(arg.Value); err != nil {
				return false, 0, err
			}
			s.emit(bytecode.OpArrayPush, 0, 0, 0, line)
		default:
			s.emitPushInt(positional, line)
			positional++
			if err := s.compileExpr(arg.Value); err != nil {
				return false, 0, err
			}
			s.emit(bytecode.OpArrayPush, 0, 0, 0, line)
		}
	}
	return true, 0, nil
}

func (s *scope) compileCall(e *ast.Call) error {
	line := e.Pos()
	if name, ok := e.Callee.(*ast.Name); ok {
		keyed, argc, err := s.compileArgs(e.Args)
		if err != nil {
			return err
		}
		if keyed {
			s.emit(bytecode.OpCallNamed, s.str(name.Value), 0, 0, line)
		} else {
			s.emit(bytecode.OpCall, s.str(name.Value), argc, 0, line)
		}
		return nil
	}
	// dynamic callee: closure value, callable string, or invokable object
	if err := s.compileExpr(e.Callee); err != nil {
		return err
	}
	keyed, argc, err := s.compileArgs(e.Args)
	if err != nil {
		return err
	}
	if keyed {
		s.emit(bytecode.OpCallCallable, 0, 1, 0, line)
	} else {
		s.emit(bytecode.OpCallCallable, argc, 0, 0, line)
	}
	return nil
}

func (s *scope) compileMethodCall(e *ast.MethodCall) error {
	line := e.Pos()
	if err := s.compileExpr(e.Obj); err != nil {
		return err
	}
	skip := -1
	if e.Nullsafe {
		skip = s.emitJump(bytecode.OpJumpIfNull, line)
	}
	keyed, argc, err := s.compileArgs(e.Args)
	if err != nil {
		return err
	}
	if keyed {
		s.emit(bytecode.OpCallMethodNamed, s.str(e.Name), 0, 0, line)
	} else {
		s.emit(bytecode.OpCallMethod, s.str(e.Name), argc, 0, line)
	}
	if skip >= 0 {
		s.patch(skip)
	}
	return nil
}

func (s *scope) compileMatch(e *ast.Match) error {
	line := e.Pos()
	tSub := s.temp()
	if err := s.compileExpr(e.Subject); err != nil {
		return err
	}
	s.emit(bytecode.OpStoreFast, tSub, 0, 0, line)

	armJumps := make([][]int, len(e.Arms))
	defaultArm := -1
	for i, arm := range e.Arms {
		if arm.Conds == nil {
			defaultArm = i
			continue
		}
		for _, cond := range arm.Conds {
			s.emit(bytecode.OpLoadFast, tSub, 0, 0, line)
			if err := s.compileExpr(cond); err != nil {
				return err
			}
			s.emit(bytecode.OpIdentical, 0, 0, 0, cond.Pos())
			armJumps[i] = append(armJumps[i], s.emitJump(bytecode.OpJumpIfTrue, line))
		}
	}
	noMatch := s.emitJump(bytecode.OpJump, line)

	var exits []int
	armStarts := make([]int32, len(e.Arms))
	for i, arm := range e.Arms {
		armStarts[i] = s.here()
		if err := s.compileExpr(arm.Body); err != nil {
			return err
		}
		exits = append(exits, s.emitJump(bytecode.OpJump, line))
	}

	if defaultArm >= 0 {
		s.patchTo(noMatch, armStarts[defaultArm])
	} else {
		s.patch(noMatch)
		s.emit(bytecode.OpNewObject, s.str("UnhandledMatchError"), 0, 0, line)
		s.emitPushString("Unhandled match case ", line)
		s.emit(bytecode.OpLoadFast, tSub, 0, 0, line)
		s.emit(bytecode.OpConcat, 0, 0, 0, line)
		s.emit(bytecode.OpCallConstructor, 1, 0, 0, line)
		s.emit(bytecode.OpThrow, 0, 0, 0, line)
	}
	for i, jumps := range armJumps {
		for _, j := range jumps {
			s.patchTo(j, armStarts[i])
		}
	}
	for _, j := range exits {
		s.patch(j)
	}
	return nil
}

func (s *scope) compileIsset(e *ast.Isset) error {
	line := e.Pos()
	var falses []int
	for _, target := range e.Targets {
		switch t := target.(type) {
		case *ast.Var:
			s.loadVar(t.Name, line)
			s.emit(bytecode.OpIsSet, 0, 0, 0, line)
		case *ast.Index:
			if t.Key == nil {
				return s.c.errorf(line, "cannot isset an array append target")
			}
			if err := s.compileExpr(t.Arr); err != nil {
				return err
			}
			if err := s.compileExpr(t.Key); err != nil {
				return err
			}
			s.emit(bytecode.OpArrayGet, 0, 0, 0, line)
			s.emit(bytecode.OpIsSet, 0, 0, 0, line)
		case *ast.PropFetch:
			if err := s.compileExpr(t.Obj); err != nil {
				return err
			}
			s.emit(bytecode.OpIssetProperty, s.str(t.Name), 0, 0, line)
		case *ast.StaticPropFetch:
			s.emit(bytecode.OpLoadStaticProp, s.str(t.Class), s.str(t.Name), 0, line)
			s.emit(bytecode.OpIsSet, 0, 0, 0, line)
		default:
			return s.c.errorf(line, "cannot isset this expression")
		}
		falses = append(falses, s.emitJump(bytecode.OpJumpIfFalse, line))
	}
	s.emit(bytecode.OpPushTrue, 0, 0, 0, line)
	jend := s.emitJump(bytecode.OpJump, line)
	for _, j := range falses {
		s.patch(j)
	}
	s.emit(bytecode.OpPushFalse, 0, 0, 0, line)
	s.patch(jend)
	return nil
}

// ---- assignment targets ----

func (s *scope) compileAssign(e *ast.Assign) error {
	switch e.Op {
	case "=":
		return s.compilePlainAssign(e.Target, e.Value, e.Pos())
	case "??=":
		return s.compileCoalesceAssign(e)
	default:
		op, ok := compoundOps[e.Op]
		if !ok {
			return s.c.errorf(e.Pos(), "unknown assignment operator %q", e.Op)
		}
		return s.compileCompoundAssign(e.Target, op, e.Value, e.Pos())
	}
}

// compilePlainAssign leaves the assigned value on the stack.
func (s *scope) compilePlainAssign(target ast.Expr, value ast.Expr, line int) error {
	switch t := target.(type) {
	case *ast.Var:
		if err := s.compileExpr(value); err != nil {
			return err
		}
		s.emit(bytecode.OpDup, 0, 0, 0, line)
		return s.storeVar(t.Name, line)

	case *ast.PropFetch:
		if err := s.compileExpr(t.Obj); err != nil {
			return err
		}
		if err := s.compileExpr(value); err != nil {
			return err
		}
		s.emit(bytecode.OpStoreProperty, s.str(t.Name), 0, 0, line)
		return nil

	case *ast.StaticPropFetch:
		if err := s.compileExpr(value); err != nil {
			return err
		}
		s.emit(bytecode.OpStoreStaticProp, s.str(t.Class), s.str(t.Name), 0, line)
		return nil

	case *ast.Index:
		if err := s.compileLValueContainer(t.Arr, line); err != nil {
			return err
		}
		if t.Key == nil {
			if err := s.compileExpr(value); err != nil {
				return err
			}
			s.emit(bytecode.OpArrayAppend, 0, 0, 0, line)
			return nil
		}
		if err := s.compileExpr(t.Key); err != nil {
			return err
		}
		if err := s.compileExpr(value); err != nil {
			return err
		}
		s.emit(bytecode.OpArraySet, 0, 0, 0, line)
		return nil
	}
	return s.c.errorf(line, "cannot assign to this expression")
}

// compileLValueContainer pushes an aliased container so element writes
// mutate in place, vivifying missing variables and dimensions to arrays.
func (s *scope) compileLValueContainer(base ast.Expr, line int) error {
	switch b := base.(type) {
	case *ast.Var:
		if b.Name == "this" {
			return s.c.errorf(line, "$this is not an array")
		}
		if s.useGlobal(b.Name) {
			s.emit(bytecode.OpVivifyGlobal, s.str(b.Name), 0, 0, line)
		} else {
			s.emit(bytecode.OpVivifyLocal, s.slot(b.Name), 0, 0, line)
		}
		return nil
	case *ast.Index:
		if b.Key == nil {
			return s.c.errorf(line, "cannot use an append target as a dimension")
		}
		if err := s.compileLValueContainer(b.Arr, line); err != nil {
			return err
		}
		if err := s.compileExpr(b.Key); err != nil {
			return err
		}
		s.emit(bytecode.OpArrayGetForWrite, 0, 0, 0, line)
		return nil
	case *ast.PropFetch:
		// property reads alias the stored array
		if err := s.compileExpr(b.Obj); err != nil {
			return err
		}
		s.emit(bytecode.OpLoadProperty, s.str(b.Name), 0, 0, line)
		return nil
	case *ast.StaticPropFetch:
		s.emit(bytecode.OpLoadStaticProp, s.str(b.Class), s.str(b.Name), 0, line)
		return nil
	}
	return s.c.errorf(line, "invalid array write target")
}

func (s *scope) compileCoalesceAssign(e *ast.Assign) error {
	line := e.Pos()
	if err := s.compileRead(e.Target, line); err != nil {
		return err
	}
	jnn := s.emitJump(bytecode.OpJumpIfNotNull, line)
	s.emit(bytecode.OpPop, 0, 0, 0, line)
	if err := s.compilePlainAssign(e.Target, e.Value, line); err != nil {
		return err
	}
	s.patch(jnn)
	return nil
}

// compileRead compiles an lvalue in read position.
func (s *scope) compileRead(target ast.Expr, line int) error {
	switch t := target.(type) {
	case *ast.Var:
		s.loadVar(t.Name, line)
		return nil
	default:
		return s.compileExpr(target)
	}
}

func (s *scope) compileCompoundAssign(target ast.Expr, op string, value ast.Expr, line int) error {
	opcode, ok := binaryOps[op]
	if !ok {
		return s.c.errorf(line, "unknown compound operator %q", op)
	}
	switch t := target.(type) {
	case *ast.Var:
		s.loadVar(t.Name, line)
		if err := s.compileExpr(value); err != nil {
			return err
		}
		s.emit(opcode, 0, 0, 0, line)
		s.emit(bytecode.OpDup, 0, 0, 0, line)
		return s.storeVar(t.Name, line)

	case *ast.PropFetch:
		if err := s.compileExpr(t.Obj); err != nil {
			return err
		}
		s.emit(bytecode.OpDup, 0, 0, 0, line)
		s.emit(bytecode.OpLoadProperty, s.str(t.Name), 0, 0, line)
		if err := s.compileExpr(value); err != nil {
			return err
		}
		s.emit(opcode, 0, 0, 0, line)
		s.emit(bytecode.OpStoreProperty, s.str(t.Name), 0, 0, line)
		return nil

	case *ast.StaticPropFetch:
		s.emit(bytecode.OpLoadStaticProp, s.str(t.Class), s.str(t.Name), 0, line)
		if err := s.compileExpr(value); err != nil {
			return err
		}
		s.emit(opcode, 0, 0, 0, line)
		s.emit(bytecode.OpStoreStaticProp, s.str(t.Class), s.str(t.Name), 0, line)
		return nil

	case *ast.Index:
		if t.Key == nil {
			return s.c.errorf(line, "cannot use compound assignment on an append target")
		}
		tKey := s.temp()
		if err := s.compileExpr(t.Key); err != nil {
			return err
		}
		s.emit(bytecode.OpStoreFast, tKey, 0, 0, line)
		if err := s.compileLValueContainer(t.Arr, line); err != nil {
			return err
		}
		s.emit(bytecode.OpDup, 0, 0, 0, line)
		s.emit(bytecode.OpLoadFast, tKey, 0, 0, line)
		s.emit(bytecode.OpArrayGet, 0, 0, 0, line)
		if err := s.compileExpr(value); err != nil {
			return err
		}
		s.emit(opcode, 0, 0, 0, line)
		// stack: container, result -> rotate key under the result
		tRes := s.temp()
		s.emit(bytecode.OpStoreFast, tRes, 0, 0, line)
		s.emit(bytecode.OpLoadFast, tKey, 0, 0, line)
		s.emit(bytecode.OpLoadFast, tRes, 0, 0, line)
		s.emit(bytecode.OpArraySet, 0, 0, 0, line)
		return nil
	}
	return s.c.errorf(line, "cannot assign to this expression")
}

func (s *scope) compileIncDec(e *ast.IncDec) error {
	line := e.Pos()
	op := "+"
	if e.Op == "--" {
		op = "-"
	}
	one := &ast.IntLit{Position: ast.Position{Line: line}, Value: 1}
	if e.Prefix {
		return s.compileCompoundAssign(e.Target, op, one, line)
	}
	// postfix: the expression value is the value before the step
	switch t := e.Target.(type) {
	case *ast.Var:
		s.loadVar(t.Name, line)
		s.emit(bytecode.OpDup, 0, 0, 0, line)
		s.emitPushInt(1, line)
		if op == "+" {
			s.emit(bytecode.OpAdd, 0, 0, 0, line)
		} else {
			s.emit(bytecode.OpSub, 0, 0, 0, line)
		}
		return s.storeVar(t.Name, line)
	default:
		tOld := s.temp()
		if err := s.compileRead(e.Target, line); err != nil {
			return err
		}
		s.emit(bytecode.OpStoreFast, tOld, 0, 0, line)
		if err := s.compileCompoundAssign(e.Target, op, one, line); err != nil {
			return err
		}
		s.emit(bytecode.OpPop, 0, 0, 0, line)
		s.emit(bytecode.OpLoadFast, tOld, 0, 0, line)
		return nil
	}
}

// ---- closures ----

func (s *scope) compileClosure(e *ast.Closure) error {
	line := e.Pos()
	name := "{closure}"
	if s.class != "" {
		name = s.class + "::{closure}"
	}
	opt := fnOpts{method: s.method && !e.Static, class: s.class}
	fn, err := s.c.compileFunction(name, e.Params, e.ReturnType, e.Body, opt)
	if err != nil {
		return err
	}
	for _, use := range e.Uses {
		fn.Captures = append(fn.Captures, use.Name)
	}
	// capture slots live after the parameters
	ensureCaptureSlots(fn)

	idx := int32(len(s.fn.Funcs))
	s.fn.Funcs = append(s.fn.Funcs, fn)
	for _, use := range e.Uses {
		s.loadVar(use.Name, line)
	}
	s.emit(bytecode.OpCreateClosure, idx, int32(len(e.Uses)), 0, line)
	return nil
}

func (s *scope) compileArrowFn(e *ast.ArrowFn) error {
	line := e.Pos()
	name := "{closure}"
	if s.class != "" {
		name = s.class + "::{closure}"
	}
	body := []ast.Stmt{&ast.ReturnStmt{Position: ast.Position{Line: line}, Value: e.Body}}
	opt := fnOpts{method: s.method, class: s.class}
	fn, err := s.c.compileFunction(name, e.Params, e.ReturnType, body, opt)
	if err != nil {
		return err
	}

	bound := map[string]bool{"this": true}
	for _, p := range e.Params {
		bound[p.Name] = true
	}
	captures := freeVars(e.Body, bound)
	fn.Captures = captures
	ensureCaptureSlots(fn)

	idx := int32(len(s.fn.Funcs))
	s.fn.Funcs = append(s.fn.Funcs, fn)
	for _, name := range captures {
		s.loadVar(name, line)
	}
	s.emit(bytecode.OpCreateClosure, idx, int32(len(captures)), 0, line)
	return nil
}

// ensureCaptureSlots guarantees every captured name has a local slot in the
// closure body so binding by name always lands somewhere.
func ensureCaptureSlots(fn *bytecode.Function) {
	for _, name := range fn.Captures {
		found := false
		for _, existing := range fn.LocalNames {
			if existing == name {
				found = true
				break
			}
		}
		if !found {
			fn.LocalNames = append(fn.LocalNames, name)
		}
	}
	fn.LocalCount = len(fn.LocalNames)
}
