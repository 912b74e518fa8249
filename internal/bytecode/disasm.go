package bytecode

import (
	"fmt"
	"sort"
	"strings"
)

// Disassemble renders a function's bytecode for --dump-bytecode output.
func Disassemble(fn *Function) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "== %s ==  locals=%d params=%d", fn.Name, fn.LocalCount, fn.ParamCount)
	if fn.IsGenerator {
		sb.WriteString(" generator")
	}
	if fn.StrictTypes {
		sb.WriteString(" strict")
	}
	sb.WriteByte('\n')
	for i, in := range fn.Code {
		fmt.Fprintf(&sb, "%04d  %-22s %s\n", i, in.Op.String(), operandString(fn, in))
	}
	for _, nested := range fn.Funcs {
		sb.WriteString(Disassemble(nested))
	}
	return sb.String()
}

// DisassembleProgram dumps main, then named functions, then methods.
func DisassembleProgram(p *Program) string {
	var sb strings.Builder
	sb.WriteString(Disassemble(p.Main))
	names := make([]string, 0, len(p.Functions))
	for name := range p.Functions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sb.WriteString(Disassemble(p.Functions[name]))
	}
	classNames := make([]string, 0, len(p.Classes))
	for name := range p.Classes {
		classNames = append(classNames, name)
	}
	sort.Strings(classNames)
	for _, cn := range classNames {
		cls := p.Classes[cn]
		methodNames := make([]string, 0, len(cls.Methods))
		for m := range cls.Methods {
			methodNames = append(methodNames, m)
		}
		sort.Strings(methodNames)
		for _, m := range methodNames {
			sb.WriteString(Disassemble(cls.Methods[m]))
		}
		staticNames := make([]string, 0, len(cls.StaticMethods))
		for m := range cls.StaticMethods {
			staticNames = append(staticNames, m)
		}
		sort.Strings(staticNames)
		for _, m := range staticNames {
			sb.WriteString(Disassemble(cls.StaticMethods[m]))
		}
	}
	return sb.String()
}

func operandString(fn *Function, in Instr) string {
	switch in.Op {
	case OpPushInt, OpPushFloat, OpLoadConst:
		return fmt.Sprintf("const[%d]=%s", in.A, constString(fn.Consts[in.A]))
	case OpPushString, OpLoadGlobal, OpStoreGlobal, OpUnsetGlobal,
		OpVivifyGlobal, OpNewObject, OpLoadProperty, OpStoreProperty,
		OpStoreThisProperty, OpStoreCloneProperty, OpInstanceOf,
		OpIssetProperty, OpUnsetProperty, OpCallNamed,
		OpCallMethodNamed:
		return fmt.Sprintf("%q", fn.Strings[in.A])
	case OpLoadFast, OpStoreFast, OpUnsetLocal, OpVivifyLocal:
		name := ""
		if int(in.A) < len(fn.LocalNames) {
			name = " $" + fn.LocalNames[in.A]
		}
		return fmt.Sprintf("slot %d%s", in.A, name)
	case OpCall, OpCallMethod:
		return fmt.Sprintf("%q argc=%d", fn.Strings[in.A], in.B)
	case OpCallStaticMethod:
		return fmt.Sprintf("%s::%s argc=%d", fn.Strings[in.A], fn.Strings[in.B], in.C)
	case OpCallStaticMethodNamed, OpLoadStaticProp, OpStoreStaticProp,
		OpLoadClassConst:
		return fmt.Sprintf("%s::%s", fn.Strings[in.A], fn.Strings[in.B])
	case OpJump, OpJumpIfFalse, OpJumpIfTrue, OpJumpIfNull, OpJumpIfNotNull:
		return fmt.Sprintf("-> %d", in.A)
	case OpLoopStart:
		return fmt.Sprintf("continue=%d break=%d", in.A, in.B)
	case OpTryStart:
		return fmt.Sprintf("catch=%d finally=%d", in.A, in.B)
	case OpNewArray, OpCallConstructor, OpCallCallable:
		return fmt.Sprintf("n=%d", in.A)
	case OpCreateClosure:
		return fmt.Sprintf("fn[%d] captures=%d", in.A, in.B)
	case OpCast:
		return castName(CastKind(in.A))
	default:
		return ""
	}
}

func constString(c Const) string {
	switch c.Kind {
	case ConstNull:
		return "null"
	case ConstBool:
		if c.Bool {
			return "true"
		}
		return "false"
	case ConstInt:
		return fmt.Sprintf("%d", c.Int)
	case ConstFloat:
		return fmt.Sprintf("%g", c.Float)
	case ConstString:
		return fmt.Sprintf("%q", c.Str)
	case ConstEmptyArray:
		return "[]"
	}
	return "?"
}

func castName(k CastKind) string {
	switch k {
	case CastInt:
		return "(int)"
	case CastFloat:
		return "(float)"
	case CastString:
		return "(string)"
	case CastBool:
		return "(bool)"
	case CastArray:
		return "(array)"
	default:
		return "(object)"
	}
}
