package compiler

import (
	"strings"
	"testing"

	"phlox/internal/bytecode"
	"phlox/internal/parser"
)

func compileSrc(t *testing.T, src string) *bytecode.Program {
	t.Helper()
	prog, err := parser.Parse(src, "test.phx")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	compiled, err := Compile(prog)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	return compiled
}

func assertCompileError(t *testing.T, src, want string) {
	t.Helper()
	prog, err := parser.Parse(src, "test.phx")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	_, err = Compile(prog)
	if err == nil {
		t.Fatalf("expected compile error containing %q, got none", want)
	}
	if !strings.Contains(err.Error(), want) {
		t.Fatalf("expected error containing %q, got %q", want, err.Error())
	}
}

func opcodes(fn *bytecode.Function) []bytecode.Op {
	out := make([]bytecode.Op, len(fn.Code))
	for i, instr := range fn.Code {
		out[i] = instr.Op
	}
	return out
}

func hasOp(fn *bytecode.Function, op bytecode.Op) bool {
	for _, instr := range fn.Code {
		if instr.Op == op {
			return true
		}
	}
	return false
}

func countOp(fn *bytecode.Function, op bytecode.Op) int {
	n := 0
	for _, instr := range fn.Code {
		if instr.Op == op {
			n++
		}
	}
	return n
}

func TestCompileArithmetic(t *testing.T) {
	prog := compileSrc(t, `<?php echo 1 + 2 * 3;`)
	want := []bytecode.Op{
		bytecode.OpPushInt, bytecode.OpPushInt, bytecode.OpPushInt,
		bytecode.OpMul, bytecode.OpAdd, bytecode.OpEcho, bytecode.OpReturnNull,
	}
	got := opcodes(prog.Main)
	if len(got) != len(want) {
		t.Fatalf("expected %d instructions, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("instruction %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestCompileShortCircuit(t *testing.T) {
	tests := []struct {
		name string
		src  string
		op   bytecode.Op
	}{
		{"and jumps on false", `<?php $r = $a && $b;`, bytecode.OpJumpIfFalse},
		{"or jumps on true", `<?php $r = $a || $b;`, bytecode.OpJumpIfTrue},
		{"coalesce peeks for null", `<?php $r = $a ?? 1;`, bytecode.OpJumpIfNotNull},
		{"short ternary keeps value", `<?php $r = $a ?: 1;`, bytecode.OpJumpIfTrue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := compileSrc(t, tt.src)
			if !hasOp(prog.Main, tt.op) {
				t.Fatalf("expected %v in %v", tt.op, opcodes(prog.Main))
			}
		})
	}
}

func TestCompileFunctionSignature(t *testing.T) {
	prog := compileSrc(t, `<?php
function pad(string $s, int $width = 8, ...$rest) { return $s; }`)
	fn, ok := prog.Functions["pad"]
	if !ok {
		t.Fatal("function pad not registered")
	}
	if fn.ParamCount != 3 {
		t.Fatalf("expected 3 params, got %d", fn.ParamCount)
	}
	if fn.RequiredParams != 1 {
		t.Fatalf("expected 1 required param, got %d", fn.RequiredParams)
	}
	if !fn.Variadic || !fn.Params[2].Variadic {
		t.Fatal("expected variadic tail parameter")
	}
	def := fn.Params[1].Default
	if def == nil || def.Kind != bytecode.ConstInt || def.Int != 8 {
		t.Fatalf("expected default 8 on $width, got %+v", def)
	}
}

func TestCompileMainTreatsVarsAsGlobals(t *testing.T) {
	prog := compileSrc(t, `<?php $x = 1; echo $x;`)
	if !hasOp(prog.Main, bytecode.OpStoreGlobal) || !hasOp(prog.Main, bytecode.OpLoadGlobal) {
		t.Fatalf("main-scope variables should use the global table: %v", opcodes(prog.Main))
	}
	if hasOp(prog.Main, bytecode.OpStoreFast) {
		t.Fatal("main-scope user variables must not use local slots")
	}
}

func TestCompileFunctionLocals(t *testing.T) {
	prog := compileSrc(t, `<?php
function f($a) { $b = $a + 1; return $b; }`)
	fn := prog.Functions["f"]
	if hasOp(fn, bytecode.OpStoreGlobal) {
		t.Fatal("function variables must be locals")
	}
	if fn.LocalCount != 2 {
		t.Fatalf("expected 2 local slots, got %d (%v)", fn.LocalCount, fn.LocalNames)
	}
}

func TestCompileGlobalStmt(t *testing.T) {
	prog := compileSrc(t, `<?php
function bump() { global $counter; $counter = $counter + 1; }`)
	fn := prog.Functions["bump"]
	if !hasOp(fn, bytecode.OpLoadGlobal) || !hasOp(fn, bytecode.OpStoreGlobal) {
		t.Fatalf("global statement should route through the global table: %v", opcodes(fn))
	}
}

func TestCompileLoopContexts(t *testing.T) {
	prog := compileSrc(t, `<?php
while ($x < 3) {
	if ($x == 2) { break; }
	$x = $x + 1;
}`)
	main := prog.Main
	if countOp(main, bytecode.OpLoopStart) != 1 || countOp(main, bytecode.OpLoopEnd) != 1 {
		t.Fatalf("expected paired LoopStart/LoopEnd: %v", opcodes(main))
	}
	if !hasOp(main, bytecode.OpBreak) {
		t.Fatal("break in a loop must use the runtime loop context")
	}
}

func TestCompileSwitchBreakIsJump(t *testing.T) {
	prog := compileSrc(t, `<?php
switch ($x) {
	case 1: echo "a"; break;
	default: echo "b";
}`)
	if hasOp(prog.Main, bytecode.OpBreak) {
		t.Fatal("switch break must compile to a jump, not a loop break")
	}
	if !hasOp(prog.Main, bytecode.OpEq) {
		t.Fatal("switch cases compare loosely")
	}
}

func TestCompileForeach(t *testing.T) {
	prog := compileSrc(t, `<?php foreach ($xs as $k => $v) { echo $v; }`)
	main := prog.Main
	for _, op := range []bytecode.Op{bytecode.OpArrayCount, bytecode.OpArrayGetKeyAt, bytecode.OpArrayGetValueAt} {
		if !hasOp(main, op) {
			t.Fatalf("expected %v in foreach lowering: %v", op, opcodes(main))
		}
	}
}

func TestCompileMatch(t *testing.T) {
	prog := compileSrc(t, `<?php $r = match ($x) { 1, 2 => "low", default => "high" };`)
	main := prog.Main
	if countOp(main, bytecode.OpIdentical) != 2 {
		t.Fatalf("match arms compare strictly per condition: %v", opcodes(main))
	}
	if hasOp(main, bytecode.OpThrow) {
		t.Fatal("match with a default arm needs no unhandled throw")
	}

	prog = compileSrc(t, `<?php $r = match ($x) { 1 => "one" };`)
	if !hasOp(prog.Main, bytecode.OpThrow) || !hasOp(prog.Main, bytecode.OpNewObject) {
		t.Fatal("match without default must synthesize UnhandledMatchError")
	}
}

func TestCompileClosureCaptures(t *testing.T) {
	prog := compileSrc(t, `<?php
$n = 2;
$f = function ($x) use ($n) { return $x * $n; };`)
	main := prog.Main
	if len(main.Funcs) != 1 {
		t.Fatalf("expected 1 nested function, got %d", len(main.Funcs))
	}
	closure := main.Funcs[0]
	if len(closure.Captures) != 1 || closure.Captures[0] != "n" {
		t.Fatalf("expected capture [n], got %v", closure.Captures)
	}
	var create *bytecode.Instr
	for i := range main.Code {
		if main.Code[i].Op == bytecode.OpCreateClosure {
			create = &main.Code[i]
		}
	}
	if create == nil {
		t.Fatal("missing CreateClosure")
	}
	if create.B != 1 {
		t.Fatalf("CreateClosure should pop 1 capture, got %d", create.B)
	}
}

func TestArrowFnImplicitCapture(t *testing.T) {
	prog := compileSrc(t, `<?php
$base = 10;
$add = fn($x) => $x + $base + $base;`)
	closure := prog.Main.Funcs[0]
	if len(closure.Captures) != 1 || closure.Captures[0] != "base" {
		t.Fatalf("expected implicit capture [base], got %v", closure.Captures)
	}
}

func TestCompileGeneratorFlag(t *testing.T) {
	prog := compileSrc(t, `<?php
function gen() { yield 1; yield 2 => "b"; }
function plain() { return 1; }`)
	if !prog.Functions["gen"].IsGenerator {
		t.Fatal("yield must mark the function as a generator")
	}
	if prog.Functions["plain"].IsGenerator {
		t.Fatal("plain function wrongly marked as generator")
	}
}

func TestCompileClassTables(t *testing.T) {
	prog := compileSrc(t, `<?php
class Point {
	const ORIGIN = "0,0";
	public int $x = 0;
	public static $count = 0;
	public function __construct(private int $y) {}
	public function sum(): int { return $this->x + $this->y; }
	public static function make(): Point { return new Point(1); }
	final protected function tag() { return "p"; }
}`)
	cls, ok := prog.Classes["point"]
	if !ok {
		t.Fatal("class Point not registered")
	}
	if k, ok := cls.Consts["ORIGIN"]; !ok || k.Str != "0,0" {
		t.Fatalf("missing const ORIGIN: %+v", cls.Consts)
	}
	if cls.Prop("x") == nil || cls.Prop("x").Default == nil {
		t.Fatal("missing property x with default")
	}
	if cls.Prop("y") == nil {
		t.Fatal("promoted constructor parameter must become a property")
	}
	if _, ok := cls.StaticDefaults["count"]; !ok {
		t.Fatal("static property default missing")
	}
	if _, ok := cls.Method("SUM"); !ok {
		t.Fatal("method lookup must be case-insensitive")
	}
	if _, ok := cls.StaticMethod("make"); !ok {
		t.Fatal("static method missing")
	}
	if !cls.MethodFinal["tag"] {
		t.Fatal("final flag not recorded")
	}
	ctor, _ := cls.Method("__construct")
	if !hasOp(ctor, bytecode.OpStoreThisProperty) {
		t.Fatal("constructor promotion preamble missing")
	}
}

func TestCompileTraitMerge(t *testing.T) {
	prog := compileSrc(t, `<?php
trait Greet {
	public string $greeting = "hi";
	public function hello() { return $this->greeting; }
}
class Host {
	use Greet;
	public function hello() { return "override"; }
}
class Guest {
	use Greet;
}`)
	host := prog.Classes["host"]
	guest := prog.Classes["guest"]
	hostHello, _ := host.Method("hello")
	guestHello, _ := guest.Method("hello")
	if hostHello == guestHello {
		t.Fatal("class-declared method must override the trait version")
	}
	if guest.Prop("greeting") == nil {
		t.Fatal("trait property not merged")
	}
}

func TestCompileTraitCollision(t *testing.T) {
	assertCompileError(t, `<?php
trait A { public function f() {} }
trait B { public function f() {} }
class C { use A, B; }`, "collides")
}

func TestCompileEnumTables(t *testing.T) {
	prog := compileSrc(t, `<?php
enum Suit: string {
	case Hearts = "h";
	case Spades = "s";
	public function color(): string {
		return match ($this) { Suit::Hearts => "red", default => "black" };
	}
}`)
	en, ok := prog.Enums["suit"]
	if !ok {
		t.Fatal("enum Suit not registered")
	}
	if len(en.CaseOrder) != 2 || en.CaseOrder[0] != "Hearts" {
		t.Fatalf("case order wrong: %v", en.CaseOrder)
	}
	if en.Cases["Spades"] == nil || en.Cases["Spades"].Str != "s" {
		t.Fatal("backed case value missing")
	}
	if _, ok := en.Methods["color"]; !ok {
		t.Fatal("enum method missing")
	}
}

func TestCompileEnumErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"duplicate backing value", `<?php enum E: int { case A = 1; case B = 1; }`, "share a backing value"},
		{"backed case missing value", `<?php enum E { case A; }
enum F { case B; }
enum G: int { case C; }`, "must have a value"},
		{"wrong backing kind", `<?php enum E: int { case A = "x"; }`, "int backing value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertCompileError(t, tt.src, tt.want)
		})
	}
}

func TestCompileInheritanceRules(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"extend final class", `<?php
final class Sealed {}
class Sub extends Sealed {}`, "cannot extend final class Sealed"},
		{"override final method", `<?php
class Base { final public function run() {} }
class Sub extends Base { public function run() {} }`, "cannot override final method Base::run()"},
		{"inherited abstract unimplemented", `<?php
abstract class Base { abstract public function run(); }
class Sub extends Base {}`, "must implement inherited abstract method Base::run"},
		{"inherited abstract through intermediate", `<?php
abstract class Base { abstract public function run(); }
abstract class Mid extends Base {}
class Leaf extends Mid {}`, "must implement inherited abstract method Base::run"},
		{"override attribute without parent method", `<?php
class Base {}
class Sub extends Base { #[Override] public function run() {} }`, "no matching parent method"},
		{"hooked property with asymmetric visibility", `<?php
class C { public private(set) string $name = "" { set => $value . "!"; } }`,
			"cannot have asymmetric visibility"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertCompileError(t, tt.src, tt.want)
		})
	}

	// the attribute is satisfied by an abstract parent declaration
	compileSrc(t, `<?php
abstract class Base { abstract public function run(); }
class Sub extends Base { #[Override] public function run() {} }`)
}

func TestCompileTryLayout(t *testing.T) {
	prog := compileSrc(t, `<?php
try {
	risky();
} catch (ValueError | TypeError $e) {
	echo "caught";
} finally {
	echo "done";
}`)
	main := prog.Main
	if countOp(main, bytecode.OpInstanceOf) != 2 {
		t.Fatalf("each listed exception class needs an instanceof test: %v", opcodes(main))
	}
	var try *bytecode.Instr
	for i := range main.Code {
		if main.Code[i].Op == bytecode.OpTryStart {
			try = &main.Code[i]
		}
	}
	if try == nil {
		t.Fatal("missing TryStart")
	}
	if try.A < 0 || try.B < 0 {
		t.Fatalf("TryStart must point at catch and finally blocks, got A=%d B=%d", try.A, try.B)
	}
	if !hasOp(main, bytecode.OpFinallyStart) || !hasOp(main, bytecode.OpFinallyEnd) {
		t.Fatal("finally block markers missing")
	}
}

func TestCompileArrayWrites(t *testing.T) {
	tests := []struct {
		name string
		src  string
		op   bytecode.Op
	}{
		{"keyed set", `<?php $a["k"] = 1;`, bytecode.OpArraySet},
		{"append", `<?php $a[] = 1;`, bytecode.OpArrayAppend},
		{"nested vivify", `<?php $a["x"]["y"] = 1;`, bytecode.OpArrayGetForWrite},
		{"spread literal", `<?php $a = [1, ...$b, 2];`, bytecode.OpArrayExtend},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := compileSrc(t, tt.src)
			if !hasOp(prog.Main, tt.op) {
				t.Fatalf("expected %v in %v", tt.op, opcodes(prog.Main))
			}
		})
	}
}

func TestCompileNamedArgsBuildKeyedArray(t *testing.T) {
	prog := compileSrc(t, `<?php pad(width: 4, s: "x");`)
	main := prog.Main
	if !hasOp(main, bytecode.OpCallNamed) {
		t.Fatalf("named arguments must use the keyed call path: %v", opcodes(main))
	}
	if hasOp(main, bytecode.OpCall) {
		t.Fatal("keyed calls must not also emit a positional call")
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"continue outside loop", `<?php continue;`, "continue"},
		{"assign to this", `<?php class C { function m() { $this = 1; } }`, "$this"},
		{"undefined constant", `<?php echo NOPE;`, "undefined constant"},
		{"read append target", `<?php echo $a[];`, "append"},
		{"non-constant default", `<?php function f($x = g()) {}`, "constant expression"},
		{"redeclared class", `<?php class A {} class A {}`, "redeclare"},
		{"unknown trait", `<?php class A { use Nope; }`, "not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertCompileError(t, tt.src, tt.want)
		})
	}
}

func TestCompileStrictTypesPropagates(t *testing.T) {
	prog := compileSrc(t, `<?php declare(strict_types=1);
function f(int $x) { return $x; }`)
	if !prog.Functions["f"].StrictTypes {
		t.Fatal("strict_types must propagate to every compiled function")
	}
	if !prog.Main.StrictTypes {
		t.Fatal("strict_types must propagate to main")
	}
}
