package vm

import (
	"strings"

	"phlox/internal/bytecode"
)

// runFunction executes a compiled function with pre-bound locals and
// returns its result. Thrown exceptions surface as *Thrown errors after
// the frame's own handlers have had their chance.
func (vm *VM) runFunction(fn *bytecode.Function, locals []Value, this Value, class, static string) (Value, error) {
	if vm.depth >= vm.maxDepth {
		return nil, vm.throwError("Error", "Maximum function nesting level of %d reached", vm.maxDepth)
	}
	vm.depth++
	defer func() { vm.depth-- }()

	if locals == nil {
		locals = make([]Value, fn.LocalCount)
	}
	for len(locals) < fn.LocalCount {
		locals = append(locals, nil)
	}
	f := &frame{fn: fn, locals: locals, this: this, class: class, static: static}
	if fn.IsGenerator {
		f.collector = &Generator{}
	}

	ret, err := vm.exec(f)
	if err != nil {
		return nil, err
	}
	if fn.IsGenerator {
		f.collector.Ret = ret
		return f.collector, nil
	}
	return ret, nil
}

// exec is the dispatch loop for one frame.
func (vm *VM) exec(f *frame) (Value, error) {
	code := f.fn.Code
	for f.ip < len(code) {
		instr := code[f.ip]
		f.ip++

		switch instr.Op {
		case bytecode.OpPop:
			f.pop()
		case bytecode.OpDup:
			f.push(f.peek())
		case bytecode.OpSwap:
			n := len(f.stack)
			f.stack[n-1], f.stack[n-2] = f.stack[n-2], f.stack[n-1]

		case bytecode.OpPushNull:
			f.push(nil)
		case bytecode.OpPushTrue:
			f.push(true)
		case bytecode.OpPushFalse:
			f.push(false)
		case bytecode.OpPushInt, bytecode.OpPushFloat, bytecode.OpPushString, bytecode.OpLoadConst:
			if instr.Op == bytecode.OpPushString {
				f.push(f.str(instr.A))
			} else {
				f.push(constToValue(f.fn.Consts[instr.A]))
			}

		case bytecode.OpLoadFast:
			f.push(f.locals[instr.A])
		case bytecode.OpStoreFast:
			f.locals[instr.A] = CopyValue(f.pop())
		case bytecode.OpLoadGlobal:
			f.push(vm.globals[f.str(instr.A)])
		case bytecode.OpStoreGlobal:
			vm.globals[f.str(instr.A)] = CopyValue(f.pop())
		case bytecode.OpUnsetLocal:
			f.locals[instr.A] = nil
		case bytecode.OpUnsetGlobal:
			delete(vm.globals, f.str(instr.A))

		case bytecode.OpVivifyLocal:
			arr, ok := f.locals[instr.A].(*Array)
			if !ok {
				if f.locals[instr.A] != nil {
					if err := vm.handleThrow(f, vm.throwError("Error",
						"Cannot use a scalar value as an array")); err != nil {
						return nil, err
					}
					continue
				}
				arr = NewArray()
				f.locals[instr.A] = arr
			}
			f.push(arr)
		case bytecode.OpVivifyGlobal:
			name := f.str(instr.A)
			arr, ok := vm.globals[name].(*Array)
			if !ok {
				if vm.globals[name] != nil {
					if err := vm.handleThrow(f, vm.throwError("Error",
						"Cannot use a scalar value as an array")); err != nil {
						return nil, err
					}
					continue
				}
				arr = NewArray()
				vm.globals[name] = arr
			}
			f.push(arr)

		case bytecode.OpLoadThis:
			if f.this == nil {
				if err := vm.handleThrow(f, vm.throwError("Error",
					"Using $this when not in object context")); err != nil {
					return nil, err
				}
				continue
			}
			f.push(f.this)

		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv,
			bytecode.OpMod, bytecode.OpPow:
			right := f.pop()
			left := f.pop()
			out, err := vm.performArith(instr.Op, left, right)
			if err != nil {
				if err = vm.handleThrow(f, err); err != nil {
					return nil, err
				}
				continue
			}
			f.push(out)

		case bytecode.OpNeg:
			v := f.pop()
			out, err := vm.performNegate(v)
			if err != nil {
				if err = vm.handleThrow(f, err); err != nil {
					return nil, err
				}
				continue
			}
			f.push(out)

		case bytecode.OpConcat:
			right := f.pop()
			left := f.pop()
			ls, err := vm.valueToString(left)
			if err == nil {
				var rs string
				rs, err = vm.valueToString(right)
				if err == nil {
					f.push(ls + rs)
				}
			}
			if err != nil {
				if err = vm.handleThrow(f, err); err != nil {
					return nil, err
				}
				continue
			}

		case bytecode.OpEq:
			b, a := f.pop(), f.pop()
			f.push(LooseEquals(a, b))
		case bytecode.OpNe:
			b, a := f.pop(), f.pop()
			f.push(!LooseEquals(a, b))
		case bytecode.OpIdentical:
			b, a := f.pop(), f.pop()
			f.push(StrictEquals(a, b))
		case bytecode.OpNotIdentical:
			b, a := f.pop(), f.pop()
			f.push(!StrictEquals(a, b))
		case bytecode.OpLt:
			b, a := f.pop(), f.pop()
			f.push(Compare(a, b) < 0)
		case bytecode.OpLe:
			b, a := f.pop(), f.pop()
			f.push(Compare(a, b) <= 0)
		case bytecode.OpGt:
			b, a := f.pop(), f.pop()
			f.push(Compare(a, b) > 0)
		case bytecode.OpGe:
			b, a := f.pop(), f.pop()
			f.push(Compare(a, b) >= 0)
		case bytecode.OpSpaceship:
			b, a := f.pop(), f.pop()
			f.push(int64(Compare(a, b)))

		case bytecode.OpNot:
			f.push(!ToBool(f.pop()))
		case bytecode.OpXor:
			b, a := f.pop(), f.pop()
			f.push(ToBool(a) != ToBool(b))
		case bytecode.OpIsSet:
			f.push(f.pop() != nil)

		case bytecode.OpJump:
			f.ip = int(instr.A)
		case bytecode.OpJumpIfFalse:
			if !ToBool(f.pop()) {
				f.ip = int(instr.A)
			}
		case bytecode.OpJumpIfTrue:
			if ToBool(f.pop()) {
				f.ip = int(instr.A)
			}
		case bytecode.OpJumpIfNull:
			if f.peek() == nil {
				f.ip = int(instr.A)
			}
		case bytecode.OpJumpIfNotNull:
			if f.peek() != nil {
				f.ip = int(instr.A)
			}

		case bytecode.OpReturn, bytecode.OpReturnNull:
			var ret Value
			if instr.Op == bytecode.OpReturn {
				ret = f.pop()
			}
			if target, intercepted := f.interceptReturn(); intercepted {
				f.pending = pendingReturn
				f.pendingVal = ret
				f.ip = target
				continue
			}
			return vm.checkReturn(f, ret)

		case bytecode.OpBreak:
			ctx := f.loops[len(f.loops)-1]
			f.loops = f.loops[:len(f.loops)-1]
			f.jumpFromLoop(len(f.loops), int(ctx.brk))
		case bytecode.OpContinue:
			floor := len(f.loops) - 1
			f.jumpFromLoop(floor, int(f.loops[floor].cont))
		case bytecode.OpLoopStart:
			f.loops = append(f.loops, loopCtx{cont: instr.A, brk: instr.B})
		case bytecode.OpLoopEnd:
			f.loops = f.loops[:len(f.loops)-1]

		case bytecode.OpNewArray:
			pairs := int(instr.A)
			arr := NewArray()
			if pairs > 0 {
				raw := f.popN(pairs * 2)
				for i := 0; i < len(raw); i += 2 {
					if raw[i] == nil {
						arr.Append(CopyValue(raw[i+1]))
					} else {
						arr.Set(raw[i], CopyValue(raw[i+1]))
					}
				}
			}
			f.push(arr)

		case bytecode.OpArrayGet:
			key := f.pop()
			subject := f.pop()
			out, err := vm.performIndex(subject, key)
			if err != nil {
				if err = vm.handleThrow(f, err); err != nil {
					return nil, err
				}
				continue
			}
			f.push(out)

		case bytecode.OpArrayGetForWrite:
			key := f.pop()
			arr, ok := f.pop().(*Array)
			if !ok {
				if err := vm.handleThrow(f, vm.throwError("Error",
					"Cannot use a scalar value as an array")); err != nil {
					return nil, err
				}
				continue
			}
			elem, exists := arr.Get(key)
			inner, isArr := elem.(*Array)
			if !exists || elem == nil {
				inner = NewArray()
				arr.Set(key, inner)
			} else if !isArr {
				if err := vm.handleThrow(f, vm.throwError("Error",
					"Cannot use a scalar value as an array")); err != nil {
					return nil, err
				}
				continue
			}
			f.push(inner)

		case bytecode.OpArraySet:
			val := f.pop()
			key := f.pop()
			arr, ok := f.pop().(*Array)
			if !ok {
				if err := vm.handleThrow(f, vm.throwError("TypeError",
					"Cannot access offset on a non-array value")); err != nil {
					return nil, err
				}
				continue
			}
			arr.Set(key, CopyValue(val))
			f.push(val)

		case bytecode.OpArrayAppend:
			val := f.pop()
			arr, ok := f.pop().(*Array)
			if !ok {
				if err := vm.handleThrow(f, vm.throwError("TypeError",
					"Cannot access offset on a non-array value")); err != nil {
					return nil, err
				}
				continue
			}
			arr.Append(CopyValue(val))
			f.push(val)

		case bytecode.OpArrayPush:
			val := f.pop()
			key := f.pop()
			arr := f.peek().(*Array)
			if key == nil {
				arr.Append(CopyValue(val))
			} else {
				arr.Set(key, CopyValue(val))
			}

		case bytecode.OpArrayExtend:
			src := f.pop()
			arr := f.peek().(*Array)
			if err := spreadInto(arr, src); err != nil {
				f.pop()
				if err = vm.handleThrow(f, err); err != nil {
					return nil, err
				}
				continue
			}

		case bytecode.OpArrayCount:
			f.push(iterableLen(f.pop()))
		case bytecode.OpArrayGetKeyAt:
			idx := int(ToInt(f.pop()))
			f.push(iterableKeyAt(f.pop(), idx))
		case bytecode.OpArrayGetValueAt:
			idx := int(ToInt(f.pop()))
			f.push(iterableValueAt(f.pop(), idx))

		case bytecode.OpUnsetArrayElement:
			key := f.pop()
			if arr, ok := f.pop().(*Array); ok {
				arr.Delete(key)
			}

		case bytecode.OpCall:
			args := f.popN(int(instr.B))
			out, err := vm.callFunction(f.str(instr.A), args)
			if err != nil {
				if err = vm.handleThrow(f, err); err != nil {
					return nil, err
				}
				continue
			}
			f.push(out)

		case bytecode.OpCallNamed:
			keyed := f.pop().(*Array)
			out, err := vm.callFunctionNamed(f.str(instr.A), keyed)
			if err != nil {
				if err = vm.handleThrow(f, err); err != nil {
					return nil, err
				}
				continue
			}
			f.push(out)

		case bytecode.OpCallCallable:
			var out Value
			var err error
			if instr.B == 1 {
				keyed := f.pop().(*Array)
				callee := f.pop()
				out, err = vm.callValueNamed(callee, keyed)
			} else {
				args := f.popN(int(instr.A))
				callee := f.pop()
				out, err = vm.CallValue(callee, args)
			}
			if err != nil {
				if err = vm.handleThrow(f, err); err != nil {
					return nil, err
				}
				continue
			}
			f.push(out)

		case bytecode.OpCreateClosure:
			inner := f.fn.Funcs[instr.A]
			captured := make(map[string]Value, instr.B)
			vals := f.popN(int(instr.B))
			for i, name := range inner.Captures {
				if i < len(vals) {
					captured[name] = CopyValue(vals[i])
				}
			}
			f.push(&Closure{Fn: inner, Captured: captured, This: f.this, Scope: f.class})

		case bytecode.OpNewObject:
			obj, err := vm.instantiate(vm.resolveClassKeyword(f, f.str(instr.A)))
			if err != nil {
				if err = vm.handleThrow(f, err); err != nil {
					return nil, err
				}
				continue
			}
			f.push(obj)

		case bytecode.OpCallConstructor, bytecode.OpCallConstructorNamed:
			var args []Value
			var keyed *Array
			if instr.Op == bytecode.OpCallConstructorNamed {
				keyed = f.pop().(*Array)
			} else {
				args = f.popN(int(instr.A))
			}
			obj := f.peek().(*Object)
			err := vm.callConstructor(obj, args, keyed)
			if err != nil {
				f.pop()
				if err = vm.handleThrow(f, err); err != nil {
					return nil, err
				}
				continue
			}

		case bytecode.OpLoadProperty:
			obj := f.pop()
			out, err := vm.getProperty(f, obj, f.str(instr.A))
			if err != nil {
				if err = vm.handleThrow(f, err); err != nil {
					return nil, err
				}
				continue
			}
			f.push(out)

		case bytecode.OpStoreProperty:
			val := f.pop()
			obj := f.pop()
			if err := vm.setProperty(f, obj, f.str(instr.A), val); err != nil {
				if err = vm.handleThrow(f, err); err != nil {
					return nil, err
				}
				continue
			}
			f.push(val)

		case bytecode.OpStoreThisProperty:
			val := f.pop()
			if obj, ok := f.this.(*Object); ok {
				obj.Set(f.str(instr.A), CopyValue(val))
				if prop := vm.findProp(obj.Class, f.str(instr.A)); prop != nil && prop.Readonly {
					obj.readonlyInit[f.str(instr.A)] = true
				}
			}

		case bytecode.OpStoreCloneProperty:
			val := f.pop()
			obj := f.peek().(*Object)
			name := f.str(instr.A)
			if vm.findProp(obj.Class, name) == nil {
				if err := vm.handleThrow(f, vm.throwError("Error",
					"Clone with: property %s::$%s does not exist",
					obj.Class, name)); err != nil {
					return nil, err
				}
				continue
			}
			obj.Set(name, CopyValue(val))

		case bytecode.OpLoadStaticProp:
			out, err := vm.getStaticProp(f, f.str(instr.A), f.str(instr.B))
			if err != nil {
				if err = vm.handleThrow(f, err); err != nil {
					return nil, err
				}
				continue
			}
			f.push(out)

		case bytecode.OpStoreStaticProp:
			val := f.pop()
			if err := vm.setStaticProp(f, f.str(instr.A), f.str(instr.B), val); err != nil {
				if err = vm.handleThrow(f, err); err != nil {
					return nil, err
				}
				continue
			}
			f.push(val)

		case bytecode.OpCallMethod, bytecode.OpCallMethodNamed:
			var args []Value
			var keyed *Array
			if instr.Op == bytecode.OpCallMethodNamed {
				keyed = f.pop().(*Array)
			} else {
				args = f.popN(int(instr.B))
			}
			recv := f.pop()
			out, err := vm.callMethodValue(f, recv, f.str(instr.A), args, keyed)
			if err != nil {
				if err = vm.handleThrow(f, err); err != nil {
					return nil, err
				}
				continue
			}
			f.push(out)

		case bytecode.OpCallStaticMethod, bytecode.OpCallStaticMethodNamed:
			var args []Value
			var keyed *Array
			if instr.Op == bytecode.OpCallStaticMethodNamed {
				keyed = f.pop().(*Array)
			} else {
				args = f.popN(int(instr.C))
			}
			out, err := vm.callStatic(f, f.str(instr.A), f.str(instr.B), args, keyed)
			if err != nil {
				if err = vm.handleThrow(f, err); err != nil {
					return nil, err
				}
				continue
			}
			f.push(out)

		case bytecode.OpLoadClassConst:
			out, err := vm.classConstant(f, f.str(instr.A), f.str(instr.B))
			if err != nil {
				if err = vm.handleThrow(f, err); err != nil {
					return nil, err
				}
				continue
			}
			f.push(out)

		case bytecode.OpInstanceOf:
			obj := f.pop()
			f.push(vm.isInstanceOf(obj, vm.resolveClassKeyword(f, f.str(instr.A))))

		case bytecode.OpClone:
			out, err := vm.performClone(f.pop())
			if err != nil {
				if err = vm.handleThrow(f, err); err != nil {
					return nil, err
				}
				continue
			}
			f.push(out)

		case bytecode.OpIssetProperty:
			obj := f.pop()
			f.push(vm.issetProperty(obj, f.str(instr.A)))

		case bytecode.OpUnsetProperty:
			obj := f.pop()
			if err := vm.unsetProperty(obj, f.str(instr.A)); err != nil {
				if err = vm.handleThrow(f, err); err != nil {
					return nil, err
				}
				continue
			}

		case bytecode.OpThrow:
			v := f.pop()
			obj, ok := v.(*Object)
			if !ok {
				if err := vm.handleThrow(f, vm.throwError("Error",
					"Can only throw objects")); err != nil {
					return nil, err
				}
				continue
			}
			if err := vm.handleThrow(f, &Thrown{Value: obj}); err != nil {
				return nil, err
			}

		case bytecode.OpTryStart:
			f.handlers = append(f.handlers, handler{
				catch:     instr.A,
				finally:   instr.B,
				depth:     len(f.stack),
				loopDepth: len(f.loops),
			})
		case bytecode.OpTryEnd:
			top := &f.handlers[len(f.handlers)-1]
			if top.finally < 0 {
				f.handlers = f.handlers[:len(f.handlers)-1]
			} else {
				top.catch = -1
			}
		case bytecode.OpFinallyStart:
			// marker; state was set by whoever routed control here
		case bytecode.OpFinallyEnd:
			switch f.pending {
			case pendingReturn:
				ret := f.pendingVal
				if target, intercepted := f.interceptReturn(); intercepted {
					f.ip = target
					continue
				}
				f.pending = pendingNone
				return vm.checkReturn(f, ret)
			case pendingThrow:
				err := f.pendingErr
				f.pending = pendingNone
				f.pendingErr = nil
				if err = vm.handleThrow(f, err); err != nil {
					return nil, err
				}
			case pendingJump:
				if fin, intercepted := f.interceptJump(f.pendingFloor); intercepted {
					f.ip = fin
					continue
				}
				f.pending = pendingNone
				f.ip = f.pendingIP
			default:
				f.handlers = f.handlers[:len(f.handlers)-1]
			}

		case bytecode.OpYield:
			val := f.pop()
			var key Value
			if instr.A == 1 {
				key = f.pop()
			} else {
				key = f.nextKey
				f.nextKey++
			}
			if k, ok := key.(int64); ok && k >= f.nextKey {
				f.nextKey = k + 1
			}
			f.collector.Items = append(f.collector.Items, GenItem{Key: key, Value: CopyValue(val)})
			f.push(nil)

		case bytecode.OpYieldFrom:
			src := f.pop()
			switch s := src.(type) {
			case *Array:
				for i := 0; i < s.Len(); i++ {
					f.collector.Items = append(f.collector.Items,
						GenItem{Key: s.KeyAt(i), Value: CopyValue(s.ValueAt(i))})
				}
				f.push(nil)
			case *Generator:
				f.collector.Items = append(f.collector.Items, s.Items...)
				f.push(s.Ret)
			default:
				if err := vm.handleThrow(f, vm.throwError("TypeError",
					"Can use \"yield from\" only with arrays and Traversables")); err != nil {
					return nil, err
				}
			}

		case bytecode.OpEcho:
			s, err := vm.valueToString(f.pop())
			if err != nil {
				if err = vm.handleThrow(f, err); err != nil {
					return nil, err
				}
				continue
			}
			vm.echo(s)

		case bytecode.OpPrint:
			s, err := vm.valueToString(f.pop())
			if err != nil {
				if err = vm.handleThrow(f, err); err != nil {
					return nil, err
				}
				continue
			}
			vm.echo(s)
			f.push(int64(1))

		case bytecode.OpCast:
			v := f.pop()
			out, err := vm.performCast(bytecode.CastKind(instr.A), v)
			if err != nil {
				if err = vm.handleThrow(f, err); err != nil {
					return nil, err
				}
				continue
			}
			f.push(out)

		case bytecode.OpExit:
			code := 0
			if instr.A == 1 {
				switch arg := f.pop().(type) {
				case string:
					vm.echo(arg)
				case int64:
					code = int(arg)
				}
			}
			return nil, &ExitError{Code: code}

		default:
			return nil, vm.throwError("Error", "unknown opcode %d", instr.Op)
		}
	}
	return nil, nil
}

// jumpFromLoop transfers control for break/continue, unwinding try handlers
// opened inside the loop body. A handler with a finally suspends the jump
// until FinallyEnd resumes it.
func (f *frame) jumpFromLoop(loopFloor, target int) {
	if fin, intercepted := f.interceptJump(loopFloor); intercepted {
		f.pending = pendingJump
		f.pendingIP = target
		f.pendingFloor = loopFloor
		f.ip = fin
		return
	}
	f.ip = target
}

// interceptJump pops handlers whose try opened inside the exited loop body,
// stopping at the first one with a pending finally.
func (f *frame) interceptJump(loopFloor int) (int, bool) {
	for len(f.handlers) > 0 {
		h := f.handlers[len(f.handlers)-1]
		if h.loopDepth <= loopFloor {
			break
		}
		f.handlers = f.handlers[:len(f.handlers)-1]
		if h.finally >= 0 {
			f.stack = f.stack[:h.depth]
			if h.loopDepth < len(f.loops) {
				f.loops = f.loops[:h.loopDepth]
			}
			return int(h.finally), true
		}
	}
	return 0, false
}

// interceptReturn finds the innermost try with an unexecuted finally and
// pops everything above it. Returning through try blocks runs each finally
// before the frame exits.
func (f *frame) interceptReturn() (int, bool) {
	for len(f.handlers) > 0 {
		h := f.handlers[len(f.handlers)-1]
		f.handlers = f.handlers[:len(f.handlers)-1]
		if h.finally >= 0 {
			f.stack = f.stack[:h.depth]
			f.loops = f.loops[:h.loopDepth]
			return int(h.finally), true
		}
	}
	return 0, false
}

// handleThrow routes an exception to the innermost armed catch, running
// intervening finally blocks. A non-nil return means the frame cannot
// handle it and the error propagates to the caller.
func (vm *VM) handleThrow(f *frame, err error) error {
	thrown, ok := err.(*Thrown)
	if !ok {
		// exit and engine faults are not catchable
		return err
	}
	for len(f.handlers) > 0 {
		h := &f.handlers[len(f.handlers)-1]
		if h.catch >= 0 {
			target := h.catch
			h.catch = -1
			f.stack = f.stack[:h.depth]
			f.loops = f.loops[:h.loopDepth]
			// the exception supersedes any return or jump suspended by an
			// inner finally
			f.pending = pendingNone
			f.pendingVal = nil
			f.pendingErr = nil
			f.push(thrown.Value)
			f.ip = int(target)
			if h.finally < 0 {
				f.handlers = f.handlers[:len(f.handlers)-1]
			}
			return nil
		}
		finally := h.finally
		f.stack = f.stack[:h.depth]
		f.loops = f.loops[:h.loopDepth]
		f.handlers = f.handlers[:len(f.handlers)-1]
		if finally >= 0 {
			f.pending = pendingThrow
			f.pendingErr = thrown
			f.ip = int(finally)
			return nil
		}
	}
	return thrown
}

// checkReturn validates the return value against the declared return type.
func (vm *VM) checkReturn(f *frame, ret Value) (Value, error) {
	hint := f.fn.ReturnType
	if hint == nil || f.fn.IsGenerator {
		return ret, nil
	}
	cc := &checkCtx{vm: vm, strict: f.fn.StrictTypes, class: f.class, static: f.static}
	out, ok := cc.coerce(ret, hint)
	if !ok {
		return nil, vm.throwError("TypeError",
			"Return value of %s() must be of type %s, %s returned",
			f.fn.Name, hint.String(), shortTypeName(ret))
	}
	return out, nil
}

// spreadInto merges an unpacked value into a literal or argument array.
func spreadInto(dst *Array, src Value) error {
	switch s := src.(type) {
	case *Array:
		dst.Extend(s)
		return nil
	case *Generator:
		for _, item := range s.Items {
			if k, ok := item.Key.(string); ok {
				dst.Set(k, CopyValue(item.Value))
			} else {
				dst.Append(CopyValue(item.Value))
			}
		}
		return nil
	default:
		return &Thrown{Value: simpleError("Error", "Only arrays and Traversables can be unpacked")}
	}
}

// iterableLen, iterableKeyAt, iterableValueAt back the foreach lowering
// for arrays, generators, and plain objects (public property iteration).
func iterableLen(v Value) int64 {
	switch s := v.(type) {
	case *Array:
		return int64(s.Len())
	case *Generator:
		return int64(len(s.Items))
	case *Object:
		return int64(s.Props.Len())
	default:
		return 0
	}
}

func iterableKeyAt(v Value, i int) Value {
	switch s := v.(type) {
	case *Array:
		return s.KeyAt(i)
	case *Generator:
		if i < len(s.Items) {
			return s.Items[i].Key
		}
	case *Object:
		return s.Props.KeyAt(i)
	}
	return nil
}

func iterableValueAt(v Value, i int) Value {
	switch s := v.(type) {
	case *Array:
		return s.ValueAt(i)
	case *Generator:
		if i < len(s.Items) {
			return s.Items[i].Value
		}
	case *Object:
		return s.Props.ValueAt(i)
	}
	return nil
}

// resolveClassKeyword maps self/static/parent to concrete class names using
// the running frame.
func (vm *VM) resolveClassKeyword(f *frame, name string) string {
	switch strings.ToLower(name) {
	case "self":
		return f.class
	case "static":
		if f.static != "" {
			return f.static
		}
		return f.class
	case "parent":
		return vm.parentOf(f.class)
	default:
		return name
	}
}
