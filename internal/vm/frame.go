package vm

import "phlox/internal/bytecode"

// loopCtx is one enclosing loop: continue target and break target.
type loopCtx struct {
	cont int32
	brk  int32
}

// handler is one enclosing try block. catch is -1 once consumed or absent;
// finally is -1 when the try has no finally clause. depth and loopDepth
// snapshot the operand stack and loop-context stack at TryStart so a catch
// entry can unwind them.
type handler struct {
	catch     int32
	finally   int32
	depth     int
	loopDepth int
}

type pendingKind int

const (
	pendingNone pendingKind = iota
	pendingReturn
	pendingThrow
	pendingJump // break/continue suspended across a finally
)

// frame is the execution state of one function activation.
type frame struct {
	fn     *bytecode.Function
	ip     int
	locals []Value
	stack  []Value
	this   Value // *Object or *EnumCase receiver, nil outside methods
	class  string // defining class, for self:: and visibility
	static string // late static binding target

	loops    []loopCtx
	handlers []handler

	// control flow suspended while a finally block runs
	pending      pendingKind
	pendingVal   Value
	pendingErr   error
	pendingIP    int // jump target for a suspended break/continue
	pendingFloor int // loop-context depth the suspended jump unwinds to

	// generator collection
	collector *Generator
	nextKey   int64
}

func (f *frame) push(v Value) {
	f.stack = append(f.stack, v)
}

func (f *frame) pop() Value {
	n := len(f.stack) - 1
	v := f.stack[n]
	f.stack = f.stack[:n]
	return v
}

func (f *frame) peek() Value {
	return f.stack[len(f.stack)-1]
}

func (f *frame) peekAt(depth int) Value {
	return f.stack[len(f.stack)-1-depth]
}

// popN removes and returns the top n values in push order.
func (f *frame) popN(n int) []Value {
	base := len(f.stack) - n
	out := make([]Value, n)
	copy(out, f.stack[base:])
	f.stack = f.stack[:base]
	return out
}

func (f *frame) str(idx int32) string {
	return f.fn.Strings[idx]
}

func (f *frame) line() int {
	if f.ip > 0 && f.ip <= len(f.fn.Code) {
		return int(f.fn.Code[f.ip-1].Line)
	}
	return 0
}
