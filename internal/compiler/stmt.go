package compiler

import (
	"phlox/internal/ast"
	"phlox/internal/bytecode"
)

func (s *scope) compileStmt(stmt ast.Stmt) error {
	switch st := stmt.(type) {
	case *ast.ExprStmt:
		if err := s.compileExpr(st.X); err != nil {
			return err
		}
		s.emit(bytecode.OpPop, 0, 0, 0, st.Pos())
		return nil

	case *ast.EchoStmt:
		for _, val := range st.Values {
			if err := s.compileExpr(val); err != nil {
				return err
			}
			s.emit(bytecode.OpEcho, 0, 0, 0, st.Pos())
		}
		return nil

	case *ast.BlockStmt:
		return s.compileStmts(st.List)

	case *ast.IfStmt:
		return s.compileIf(st)

	case *ast.WhileStmt:
		return s.compileWhile(st)

	case *ast.DoWhileStmt:
		return s.compileDoWhile(st)

	case *ast.ForStmt:
		return s.compileFor(st)

	case *ast.ForeachStmt:
		return s.compileForeach(st)

	case *ast.SwitchStmt:
		return s.compileSwitch(st)

	case *ast.BreakStmt:
		return s.compileBreak(st.Pos())

	case *ast.ContinueStmt:
		if s.loops == 0 {
			return s.c.errorf(st.Pos(), "continue outside of a loop")
		}
		s.emit(bytecode.OpContinue, 0, 0, 0, st.Pos())
		return nil

	case *ast.ReturnStmt:
		if st.Value == nil {
			s.emit(bytecode.OpReturnNull, 0, 0, 0, st.Pos())
			return nil
		}
		if err := s.compileExpr(st.Value); err != nil {
			return err
		}
		s.emit(bytecode.OpReturn, 0, 0, 0, st.Pos())
		return nil

	case *ast.TryStmt:
		return s.compileTry(st)

	case *ast.UnsetStmt:
		return s.compileUnset(st)

	case *ast.GlobalStmt:
		if s.main {
			return nil // top-level variables already live in the global table
		}
		for _, name := range st.Names {
			s.globals[name] = true
		}
		return nil

	case *ast.DeclareStmt:
		return nil

	case *ast.FunctionDecl:
		// conditional function definition inside a block
		fn, err := s.c.compileFunction(st.Name, st.Params, st.ReturnType, st.Body, fnOpts{})
		if err != nil {
			return err
		}
		s.c.prog.Functions[lower(st.Name)] = fn
		return nil

	case *ast.ClassDecl:
		return s.c.compileClass(st)
	case *ast.InterfaceDecl:
		return s.c.compileInterface(st)
	case *ast.TraitDecl:
		return s.c.compileTrait(st)
	case *ast.EnumDecl:
		return s.c.compileEnum(st)
	}
	return s.c.errorf(stmt.Pos(), "cannot compile statement %T", stmt)
}

func (s *scope) compileStmts(list []ast.Stmt) error {
	for _, stmt := range list {
		if err := s.compileStmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *scope) compileBreak(line int) error {
	if len(s.breakers) == 0 {
		return s.c.errorf(line, "break outside of a loop or switch")
	}
	top := &s.breakers[len(s.breakers)-1]
	if top.isLoop {
		s.emit(bytecode.OpBreak, 0, 0, 0, line)
		return nil
	}
	// switch: break resolves to a direct jump past the statement
	top.jumps = append(top.jumps, s.emitJump(bytecode.OpJump, line))
	return nil
}

func (s *scope) compileIf(st *ast.IfStmt) error {
	if err := s.compileExpr(st.Cond); err != nil {
		return err
	}
	jf := s.emitJump(bytecode.OpJumpIfFalse, st.Pos())
	if err := s.compileStmts(st.Then); err != nil {
		return err
	}
	if len(st.Else) == 0 {
		s.patch(jf)
		return nil
	}
	jend := s.emitJump(bytecode.OpJump, st.Pos())
	s.patch(jf)
	if err := s.compileStmts(st.Else); err != nil {
		return err
	}
	s.patch(jend)
	return nil
}

// pushLoop opens a runtime loop context; targets are patched by closeLoop.
func (s *scope) pushLoop(line int) int {
	s.breakers = append(s.breakers, breaker{isLoop: true})
	s.loops++
	return s.emit(bytecode.OpLoopStart, -1, -1, 0, line)
}

// closeLoop emits LoopEnd and resolves the continue and break targets.
func (s *scope) closeLoop(loopStart int, contTarget int32, line int) {
	s.emit(bytecode.OpLoopEnd, 0, 0, 0, line)
	s.fn.Code[loopStart].A = contTarget
	s.fn.Code[loopStart].B = s.here() // break lands after LoopEnd
	s.breakers = s.breakers[:len(s.breakers)-1]
	s.loops--
}

func (s *scope) compileWhile(st *ast.WhileStmt) error {
	ls := s.pushLoop(st.Pos())
	cond := s.here()
	if err := s.compileExpr(st.Cond); err != nil {
		return err
	}
	jf := s.emitJump(bytecode.OpJumpIfFalse, st.Pos())
	if err := s.compileStmts(st.Body); err != nil {
		return err
	}
	s.emit(bytecode.OpJump, cond, 0, 0, st.Pos())
	s.patch(jf) // condition failure lands on LoopEnd
	s.closeLoop(ls, cond, st.Pos())
	return nil
}

func (s *scope) compileDoWhile(st *ast.DoWhileStmt) error {
	ls := s.pushLoop(st.Pos())
	top := s.here()
	if err := s.compileStmts(st.Body); err != nil {
		return err
	}
	cond := s.here()
	if err := s.compileExpr(st.Cond); err != nil {
		return err
	}
	s.emit(bytecode.OpJumpIfTrue, top, 0, 0, st.Pos())
	s.closeLoop(ls, cond, st.Pos())
	return nil
}

func (s *scope) compileFor(st *ast.ForStmt) error {
	for _, init := range st.Init {
		if err := s.compileExpr(init); err != nil {
			return err
		}
		s.emit(bytecode.OpPop, 0, 0, 0, st.Pos())
	}
	ls := s.pushLoop(st.Pos())
	cond := s.here()
	jf := -1
	if st.Cond != nil {
		if err := s.compileExpr(st.Cond); err != nil {
			return err
		}
		jf = s.emitJump(bytecode.OpJumpIfFalse, st.Pos())
	}
	if err := s.compileStmts(st.Body); err != nil {
		return err
	}
	incr := s.here()
	for _, upd := range st.Update {
		if err := s.compileExpr(upd); err != nil {
			return err
		}
		s.emit(bytecode.OpPop, 0, 0, 0, st.Pos())
	}
	s.emit(bytecode.OpJump, cond, 0, 0, st.Pos())
	if jf >= 0 {
		s.patch(jf)
	}
	s.closeLoop(ls, incr, st.Pos())
	return nil
}

// compileForeach iterates a positional snapshot of the subject. The VM's
// count/key-at/value-at ops accept arrays, generators, and plain objects.
func (s *scope) compileForeach(st *ast.ForeachStmt) error {
	line := st.Pos()
	tArr := s.temp()
	tIdx := s.temp()

	if err := s.compileExpr(st.Subject); err != nil {
		return err
	}
	s.emit(bytecode.OpStoreFast, tArr, 0, 0, line)
	s.emitPushInt(0, line)
	s.emit(bytecode.OpStoreFast, tIdx, 0, 0, line)

	ls := s.pushLoop(line)
	cond := s.here()
	s.emit(bytecode.OpLoadFast, tIdx, 0, 0, line)
	s.emit(bytecode.OpLoadFast, tArr, 0, 0, line)
	s.emit(bytecode.OpArrayCount, 0, 0, 0, line)
	s.emit(bytecode.OpLt, 0, 0, 0, line)
	jf := s.emitJump(bytecode.OpJumpIfFalse, line)

	if st.KeyVar != "" {
		s.emit(bytecode.OpLoadFast, tArr, 0, 0, line)
		s.emit(bytecode.OpLoadFast, tIdx, 0, 0, line)
		s.emit(bytecode.OpArrayGetKeyAt, 0, 0, 0, line)
		if err := s.storeVar(st.KeyVar, line); err != nil {
			return err
		}
	}
	s.emit(bytecode.OpLoadFast, tArr, 0, 0, line)
	s.emit(bytecode.OpLoadFast, tIdx, 0, 0, line)
	s.emit(bytecode.OpArrayGetValueAt, 0, 0, 0, line)
	if err := s.storeVar(st.ValVar, line); err != nil {
		return err
	}

	if err := s.compileStmts(st.Body); err != nil {
		return err
	}

	incr := s.here()
	s.emit(bytecode.OpLoadFast, tIdx, 0, 0, line)
	s.emitPushInt(1, line)
	s.emit(bytecode.OpAdd, 0, 0, 0, line)
	s.emit(bytecode.OpStoreFast, tIdx, 0, 0, line)
	s.emit(bytecode.OpJump, cond, 0, 0, line)
	s.patch(jf)
	s.closeLoop(ls, incr, line)
	return nil
}

// compileSwitch tests cases with loose equality and falls through bodies.
func (s *scope) compileSwitch(st *ast.SwitchStmt) error {
	line := st.Pos()
	tSub := s.temp()
	if err := s.compileExpr(st.Subject); err != nil {
		return err
	}
	s.emit(bytecode.OpStoreFast, tSub, 0, 0, line)

	s.breakers = append(s.breakers, breaker{})

	bodyJumps := make([][]int, len(st.Cases))
	defaultCase := -1
	for i, sc := range st.Cases {
		if sc.Conds == nil {
			defaultCase = i
			continue
		}
		for _, cond := range sc.Conds {
			s.emit(bytecode.OpLoadFast, tSub, 0, 0, line)
			if err := s.compileExpr(cond); err != nil {
				return err
			}
			s.emit(bytecode.OpEq, 0, 0, 0, cond.Pos())
			bodyJumps[i] = append(bodyJumps[i], s.emitJump(bytecode.OpJumpIfTrue, line))
		}
	}
	endJump := s.emitJump(bytecode.OpJump, line)

	bodyStarts := make([]int32, len(st.Cases))
	for i, sc := range st.Cases {
		bodyStarts[i] = s.here()
		if err := s.compileStmts(sc.Body); err != nil {
			return err
		}
	}
	end := s.here()
	for i, jumps := range bodyJumps {
		for _, j := range jumps {
			s.patchTo(j, bodyStarts[i])
		}
	}
	if defaultCase >= 0 {
		s.patchTo(endJump, bodyStarts[defaultCase])
	} else {
		s.patchTo(endJump, end)
	}
	top := s.breakers[len(s.breakers)-1]
	s.breakers = s.breakers[:len(s.breakers)-1]
	for _, j := range top.jumps {
		s.patchTo(j, end)
	}
	return nil
}

func (s *scope) compileTry(st *ast.TryStmt) error {
	line := st.Pos()
	ts := s.emit(bytecode.OpTryStart, -1, -1, 0, line)

	if err := s.compileStmts(st.Body); err != nil {
		return err
	}
	s.emit(bytecode.OpTryEnd, 0, 0, 0, line)
	var exits []int
	exits = append(exits, s.emitJump(bytecode.OpJump, line))

	// catch dispatch: the VM pushes the thrown object before jumping here
	s.fn.Code[ts].A = s.here()
	var clauseJumps [][]int
	for _, clause := range st.Catches {
		var hits []int
		for _, class := range clause.Classes {
			s.emit(bytecode.OpDup, 0, 0, 0, line)
			s.emit(bytecode.OpInstanceOf, s.str(class), 0, 0, line)
			hits = append(hits, s.emitJump(bytecode.OpJumpIfTrue, line))
		}
		clauseJumps = append(clauseJumps, hits)
	}
	// no clause matched: rethrow to the next handler
	s.emit(bytecode.OpThrow, 0, 0, 0, line)

	for i, clause := range st.Catches {
		target := s.here()
		for _, j := range clauseJumps[i] {
			s.patchTo(j, target)
		}
		if clause.Var != "" {
			if err := s.storeVar(clause.Var, line); err != nil {
				return err
			}
		} else {
			s.emit(bytecode.OpPop, 0, 0, 0, line)
		}
		if err := s.compileStmts(clause.Body); err != nil {
			return err
		}
		exits = append(exits, s.emitJump(bytecode.OpJump, line))
	}

	after := s.here()
	for _, j := range exits {
		s.patchTo(j, after)
	}
	if st.Finally != nil {
		s.fn.Code[ts].B = s.here()
		s.emit(bytecode.OpFinallyStart, 0, 0, 0, line)
		if err := s.compileStmts(st.Finally); err != nil {
			return err
		}
		s.emit(bytecode.OpFinallyEnd, 0, 0, 0, line)
	}
	return nil
}

func (s *scope) compileUnset(st *ast.UnsetStmt) error {
	line := st.Pos()
	for _, target := range st.Targets {
		switch t := target.(type) {
		case *ast.Var:
			if s.useGlobal(t.Name) {
				s.emit(bytecode.OpUnsetGlobal, s.str(t.Name), 0, 0, line)
			} else {
				s.emit(bytecode.OpUnsetLocal, s.slot(t.Name), 0, 0, line)
			}
		case *ast.Index:
			if t.Key == nil {
				return s.c.errorf(line, "cannot unset an array append target")
			}
			if err := s.compileExpr(t.Arr); err != nil {
				return err
			}
			if err := s.compileExpr(t.Key); err != nil {
				return err
			}
			s.emit(bytecode.OpUnsetArrayElement, 0, 0, 0, line)
		case *ast.PropFetch:
			if err := s.compileExpr(t.Obj); err != nil {
				return err
			}
			s.emit(bytecode.OpUnsetProperty, s.str(t.Name), 0, 0, line)
		default:
			return s.c.errorf(line, "cannot unset this expression")
		}
	}
	return nil
}
