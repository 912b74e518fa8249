package vm_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"phlox/internal/bytecode"
	"phlox/internal/compiler"
	"phlox/internal/parser"
	"phlox/internal/vm"
)

func compileSrc(t *testing.T, src string) *bytecode.Program {
	t.Helper()
	tree, err := parser.Parse(src, "test.php")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	prog, err := compiler.Compile(tree)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	return prog
}

func runProg(t *testing.T, src string) (string, error) {
	t.Helper()
	prog := compileSrc(t, src)
	m := vm.New(prog)
	var out bytes.Buffer
	m.Stdout = &out
	err := m.Run(prog)
	return out.String(), err
}

func mustRun(t *testing.T, src string) string {
	t.Helper()
	out, err := runProg(t, src)
	if err != nil {
		t.Fatalf("run failed: %v\noutput so far: %q", err, out)
	}
	return out
}

func runTable(t *testing.T, tests []struct{ name, src, want string }) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mustRun(t, tt.src); got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestArithmeticAndStrings(t *testing.T) {
	runTable(t, []struct{ name, src, want string }{
		{"precedence", `<?php echo 1 + 2 * 3;`, "7"},
		{"float division", `<?php echo 7 / 2;`, "3.5"},
		{"exact division yields float", `<?php echo 8 / 4 === 2.0 ? "float" : "int";`, "float"},
		{"modulo", `<?php echo 7 % 3;`, "1"},
		{"power", `<?php echo 2 ** 10;`, "1024"},
		{"concat", `<?php echo "a" . "b" . 3;`, "ab3"},
		{"interpolation", `<?php $n = "world"; echo "hello $n";`, "hello world"},
		{"unary minus", `<?php echo -(3 - 8);`, "5"},
		{"string offset", `<?php $s = "abc"; echo $s[1], $s[-1];`, "bc"},
		{"numeric string addition", `<?php echo "4" + "38";`, "42"},
		{"bool to string", `<?php echo true, false, "|";`, "1|"},
	})
}

func TestComparisonSemantics(t *testing.T) {
	runTable(t, []struct{ name, src, want string }{
		{"loose int vs numeric string", `<?php echo 1 == "1" ? "y" : "n";`, "y"},
		{"loose int vs word", `<?php echo 0 == "a" ? "y" : "n";`, "n"},
		{"strict type mismatch", `<?php echo 1 === "1" ? "y" : "n";`, "n"},
		{"spaceship strings bytewise", `<?php echo "10" <=> "9";`, "-1"},
		{"null coalesce on unset", `<?php echo $missing ?? "d";`, "d"},
		{"short ternary", `<?php echo 0 ?: "fallback";`, "fallback"},
		{"short circuit and", `<?php $x = false && undefined_fn(); echo $x ? "t" : "f";`, "f"},
	})
}

func TestControlFlow(t *testing.T) {
	runTable(t, []struct{ name, src, want string }{
		{"for", `<?php $t = 0; for ($i = 0; $i < 5; $i++) { $t += $i; } echo $t;`, "10"},
		{"while break continue", `<?php $i = 0; while (true) { $i++; if ($i > 6) break; if ($i % 2) continue; echo $i; }`, "246"},
		{"do while", `<?php $i = 3; do { echo $i; $i--; } while ($i > 0);`, "321"},
		{"foreach key value", `<?php foreach (["a", "b"] as $k => $v) { echo $k, $v; }`, "0a1b"},
		{"switch", `<?php switch (2) { case 1: echo "one"; break; case 2: echo "two"; break; default: echo "other"; }`, "two"},
		{"switch default", `<?php switch (9) { case 1: echo "one"; break; default: echo "other"; }`, "other"},
		{"match", `<?php echo match (2) { 1 => "a", 2 => "b", default => "c" };`, "b"},
		{"match default", `<?php echo match (99) { 1 => "a", default => "z" };`, "z"},
		{"nested loop break targets inner", `<?php for ($i = 0; $i < 2; $i++) { foreach ([1, 2, 3] as $v) { if ($v == 2) break; echo $i, $v; } }`, "0111"},
	})
}

func TestFunctions(t *testing.T) {
	runTable(t, []struct{ name, src, want string }{
		{"default params", `<?php function fmt($v, $pad = "*") { return $pad . $v . $pad; } echo fmt(7);`, "*7*"},
		{"named args", `<?php function fmt($v, $pad = "*") { return $pad . $v . $pad; } echo fmt(pad: "-", v: 7);`, "-7-"},
		{"variadic", `<?php function sum(...$n) { $t = 0; foreach ($n as $v) { $t += $v; } return $t; } echo sum(1, 2, 3);`, "6"},
		{"spread args", `<?php function add($a, $b) { return $a + $b; } $xs = [3, 4]; echo add(...$xs);`, "7"},
		{"recursion", `<?php function fib($n) { return $n < 2 ? $n : fib($n - 1) + fib($n - 2); } echo fib(10);`, "55"},
		{"closure use", `<?php $m = 3; $f = function ($x) use ($m) { return $x * $m; }; echo $f(7);`, "21"},
		{"arrow fn implicit capture", `<?php $m = 4; $f = fn($x) => $x + $m; echo $f(1);`, "5"},
		{"callable string", `<?php function twice($x) { return $x * 2; } $c = "twice"; echo $c(5);`, "10"},
		{"global statement", `<?php $g = 1; function bump() { global $g; $g++; } bump(); bump(); echo $g;`, "3"},
		{"postfix prefix inc", `<?php $i = 5; echo $i++, $i, ++$i;`, "567"},
	})
}

func TestArrays(t *testing.T) {
	runTable(t, []struct{ name, src, want string }{
		{"copy on assign", `<?php $a = [1, 2]; $b = $a; $b[0] = 9; echo $a[0], $b[0];`, "19"},
		{"append", `<?php $a = []; $a[] = "x"; $a[] = "y"; echo $a[0], $a[1];`, "xy"},
		{"autovivify nested", `<?php $m = []; $m["a"]["b"] = 5; echo $m["a"]["b"];`, "5"},
		{"union keeps left", `<?php $a = [1] + [5, 6]; echo $a[0], $a[1];`, "16"},
		{"compound on element", `<?php $a = [1]; $a[0] += 5; echo $a[0];`, "6"},
		{"spread literal", `<?php $xs = [2, 3]; $a = [1, ...$xs, 4]; foreach ($a as $v) echo $v;`, "1234"},
		{"isset unset", `<?php $a = ["k" => 1]; echo isset($a["k"]) ? "y" : "n"; unset($a["k"]); echo isset($a["k"]) ? "y" : "n";`, "yn"},
		{"string keys ordered", `<?php $a = ["z" => 1, "a" => 2]; foreach ($a as $k => $v) echo $k;`, "za"},
		{"canonical int key", `<?php $a = []; $a["3"] = "x"; echo $a[3];`, "x"},
	})
}

func TestClasses(t *testing.T) {
	runTable(t, []struct{ name, src, want string }{
		{"constructor promotion", `<?php
class Point { public function __construct(public int $x) {} }
echo (new Point(9))->x;`, "9"},
		{"typed property write", `<?php
class C { public int $x = 0; } $c = new C; $c->x = 9; echo $c->x;`, "9"},
		{"method uses this", `<?php
class Counter {
    private int $n = 0;
    public function add(int $d): static { $this->n += $d; return $this; }
    public function value(): int { return $this->n; }
}
echo (new Counter)->add(2)->add(3)->value();`, "5"},
		{"static prop and method", `<?php
class C { public static $n = 5; public static function get() { return static::$n; } }
echo C::get();`, "5"},
		{"class const and name", `<?php
class K { const LIM = 3; }
echo K::LIM, " ", K::class;`, "3 K"},
		{"inheritance parent call", `<?php
class A { public function who() { return "A"; } }
class B extends A { public function who() { return parent::who() . "B"; } }
echo (new B)->who();`, "AB"},
		{"interface instanceof", `<?php
interface Shape { public function area(): float; }
class Circle implements Shape { public function area(): float { return 3.0; } }
echo (new Circle) instanceof Shape ? "y" : "n";`, "y"},
		{"magic get", `<?php
class Bag { public function __get($name) { return "<" . $name . ">"; } }
echo (new Bag)->foo;`, "<foo>"},
		{"magic call", `<?php
class Relay { public function __call($name, $args) { return $name . "/" . $args[0]; } }
echo (new Relay)->zap(5);`, "zap/5"},
		{"tostring via echo", `<?php
class Tag { public function __toString(): string { return "S!"; } }
echo new Tag;`, "S!"},
		{"closure binds this and scope", `<?php
class Box { private $v = 7; public function reader() { return fn() => $this->v; } }
$f = (new Box)->reader(); echo $f();`, "7"},
		{"trait method", `<?php
trait Greets { public function hello() { return "hi " . $this->name; } }
class Person { use Greets; public $name = "ann"; }
echo (new Person)->hello();`, "hi ann"},
	})
}

func TestPropertyHooks(t *testing.T) {
	runTable(t, []struct{ name, src, want string }{
		{"set hook transforms", `<?php
class H { public string $name = "" { set => $value . "!"; } }
$h = new H; $h->name = "x"; echo $h->name;`, "x!"},
		{"get hook reads backing", `<?php
class G { public int $n = 2 { get => $this->n * 10; } }
echo (new G)->n;`, "20"},
		{"set hook block form", `<?php
class B { public int $n = 0 { set { return $value * 2; } } }
$b = new B; $b->n = 4; echo $b->n;`, "8"},
	})
}

func TestClassErrors(t *testing.T) {
	runTable(t, []struct{ name, src, want string }{
		{"abstract instantiation", `<?php
abstract class Job { abstract public function run(); }
try { new Job(); } catch (Error $e) { echo $e->getMessage(); }`,
			"Cannot instantiate abstract class Job"},
		{"private property access", `<?php
class Vault { private $s = 1; }
try { echo (new Vault)->s; } catch (Error $e) { echo "denied"; }`, "denied"},
		{"readonly reassignment", `<?php
class Pt { public function __construct(public readonly int $x) {} }
$p = new Pt(1);
try { $p->x = 2; } catch (Error $e) { echo $e->getMessage(); }`,
			"Cannot modify readonly property Pt::$x"},
		{"this outside object", `<?php
function bare() { return $this; }
try { bare(); } catch (Error $e) { echo "no-this"; }`, "no-this"},
		{"clone with unknown property", `<?php
class P { public $x = 1; }
$p = new P;
try { $q = clone($p, ['y' => 2]); } catch (Error $e) { echo $e->getMessage(); }`,
			"Clone with: property P::$y does not exist"},
	})
}

func TestEnums(t *testing.T) {
	runTable(t, []struct{ name, src, want string }{
		{"backed case method", `<?php
enum Suit: string {
    case H = "h";
    case S = "s";
    public function label(): string { return $this->name . $this->value; }
}
echo Suit::H->label();`, "Hh"},
		{"from", `<?php
enum Suit: string { case H = "h"; case S = "s"; }
echo Suit::from("s")->name;`, "S"},
		{"int backed from", `<?php
enum E: int { case A = 1; case B = 2; } echo E::from(2)->name;`, "B"},
		{"tryFrom miss", `<?php
enum Suit: string { case H = "h"; }
echo Suit::tryFrom("x") === null ? "null" : "case";`, "null"},
		{"cases order", `<?php
enum Suit: string { case H = "h"; case S = "s"; }
foreach (Suit::cases() as $c) echo $c->name;`, "HS"},
		{"case identity", `<?php
enum State { case On; case Off; }
echo State::On === State::On ? "same" : "diff";`, "same"},
		{"match on case", `<?php
enum State { case On; case Off; }
function label(State $s): string {
    return match ($s) { State::On => "on", State::Off => "off" };
}
echo label(State::Off);`, "off"},
		{"from on invalid value", `<?php
enum Suit: string { case H = "h"; }
try { Suit::from("q"); } catch (ValueError $e) { echo $e->getMessage(); }`,
			"Value 'q' is not a valid backing value for enum Suit"},
	})
}

func TestExceptions(t *testing.T) {
	runTable(t, []struct{ name, src, want string }{
		{"catch message", `<?php
try { throw new Exception("boom"); } catch (Exception $e) { echo $e->getMessage(); }`, "boom"},
		{"catch by parent class", `<?php
try { throw new RuntimeException("r"); } catch (Exception $e) { echo "parent:", $e->getMessage(); }`, "parent:r"},
		{"finally after catch", `<?php
try { throw new Exception("x"); } catch (Exception $e) { echo "c"; } finally { echo "f"; }`, "cf"},
		{"finally without throw", `<?php
try { echo "t"; } finally { echo "f"; }`, "tf"},
		{"return through finally", `<?php
function f() { try { return "r"; } finally { echo "f"; } }
echo f();`, "fr"},
		{"throw in finally discards pending return", `<?php
function k() {
    try {
        try { return "inner"; } finally { throw new Exception("x"); }
    } catch (Exception $e) { echo "caught;"; } finally { echo "fin;"; }
    return "after";
}
echo k();`, "caught;fin;after"},
		{"rethrow to outer", `<?php
try {
    try { throw new Exception("in"); } catch (Exception $e) { throw new Exception("out"); }
} catch (Exception $e) { echo $e->getMessage(); }`, "out"},
		{"division by zero", `<?php
try { echo 1 / 0; } catch (DivisionByZeroError $e) { echo $e->getMessage(); }`, "Division by zero"},
		{"modulo by zero", `<?php
try { echo 1 % 0; } catch (DivisionByZeroError $e) { echo $e->getMessage(); }`, "Modulo by zero"},
		{"custom exception native ctor", `<?php
class AppError extends Exception {}
try { throw new AppError("x", 7); } catch (Exception $e) { echo $e->getCode(); }`, "7"},
		{"previous chains", `<?php
$first = new Exception("cause");
try { throw new Exception("effect", 0, $first); }
catch (Exception $e) { echo $e->getPrevious()->getMessage(); }`, "cause"},
		{"unhandled match", `<?php
try { match (5) { 1 => "a" }; } catch (UnhandledMatchError $e) { echo $e->getMessage(); }`,
			"Unhandled match case 5"},
		{"multi catch", `<?php
try { throw new ValueError("v"); } catch (TypeError|ValueError $e) { echo "caught"; }`, "caught"},
	})
}

func TestLoopExitThroughTry(t *testing.T) {
	runTable(t, []struct{ name, src, want string }{
		{"break runs finally", `<?php
for ($i = 0; $i < 3; $i++) { try { break; } finally { echo "f"; } }
echo $i;`, "f0"},
		{"continue runs finally each pass", `<?php
for ($i = 0; $i < 2; $i++) { try { continue; } finally { echo "f"; } }
echo "|", $i;`, "ff|2"},
		{"break runs nested finallys inner first", `<?php
for ($i = 0; $i < 5; $i++) {
    try { try { break; } finally { echo "a"; } } finally { echo "b"; }
}
echo "c";`, "abc"},
		{"break leaves enclosing try armed", `<?php
try {
    for ($i = 0; $i < 3; $i++) { break; }
    throw new Exception("still");
} catch (Exception $e) { echo $e->getMessage(); }`, "still"},
	})
}

func TestBreakDisarmsLoopHandlers(t *testing.T) {
	out, err := runProg(t, `<?php
for ($i = 0; $i < 3; $i++) {
    try { break; } catch (Exception $e) { echo "dead:", $e->getMessage(); }
}
echo "after;";
throw new RuntimeException("boom");`)
	if err == nil {
		t.Fatal("expected uncaught exception error")
	}
	if !strings.Contains(err.Error(), "Uncaught RuntimeException: boom") {
		t.Errorf("error = %q", err.Error())
	}
	if out != "after;" {
		t.Errorf("output = %q, want %q", out, "after;")
	}
}

func TestUncaughtException(t *testing.T) {
	out, err := runProg(t, `<?php echo "pre"; throw new RuntimeException("kaput");`)
	if err == nil {
		t.Fatal("expected uncaught exception error")
	}
	if !strings.Contains(err.Error(), "Uncaught RuntimeException: kaput") {
		t.Errorf("error = %q", err.Error())
	}
	if out != "pre" {
		t.Errorf("output = %q, want %q", out, "pre")
	}
}

func TestGenerators(t *testing.T) {
	runTable(t, []struct{ name, src, want string }{
		{"foreach and return", `<?php
function g() { yield 1; yield 2; return 9; }
$it = g();
foreach ($it as $v) echo $v;
echo $it->getReturn();`, "129"},
		{"explicit keys", `<?php
function pairs() { yield "a" => 1; yield "b" => 2; }
foreach (pairs() as $k => $v) echo $k, $v;`, "a1b2"},
		{"yield from", `<?php
function inner() { yield 1; yield 2; }
function outer() { yield 0; yield from inner(); yield 3; }
foreach (outer() as $v) echo $v;`, "0123"},
		{"iterator methods", `<?php
function g() { yield "x"; yield "y"; }
$g = g();
echo $g->current();
$g->next();
echo $g->current(), $g->valid() ? "v" : "-";
$g->next();
echo $g->valid() ? "v" : "-";`, "xyv-"},
		{"generator method on object", `<?php
class Seq {
    public function upTo(int $n) { for ($i = 1; $i <= $n; $i++) { yield $i; } }
}
foreach ((new Seq)->upTo(3) as $v) echo $v;`, "123"},
		{"throw propagates to caller", `<?php
function g() { yield 1; }
$it = g();
try { $it->throw(new Exception("inj")); } catch (Exception $e) { echo $e->getMessage(); }`, "inj"},
	})
}

func TestTypeChecking(t *testing.T) {
	runTable(t, []struct{ name, src, want string }{
		{"strict typed call", `<?php declare(strict_types=1);
function f(int $x): string { return "v=$x"; }
echo f(5);`, "v=5"},
		{"weak mode coerces numeric string", `<?php
function g(int $x) { return $x + 1; }
echo g("41");`, "42"},
		{"nullable accepts null", `<?php
function h(?int $x) { return $x === null ? "null" : "int"; }
echo h(null);`, "null"},
		{"union tries in order", `<?php
function u(int|string $x) { return $x; }
echo u("s"), u(1);`, "s1"},
		{"float widens int", `<?php
function w(float $x) { return $x * 2; }
echo w(3);`, "6"},
		{"int truncates float", `<?php
function t(int $x) { return $x; }
echo t(1.5), t(-2.5);`, "1-2"},
	})
}

func TestTypeErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantMsg string
	}{
		{"strict rejects string for int", `<?php declare(strict_types=1);
function f(int $x) { return $x; }
try { f("5"); } catch (TypeError $e) { echo $e->getMessage(); }`,
			"must be of type int, string given"},
		{"return type violation", `<?php
function h(): int { return "nope"; }
try { h(); } catch (TypeError $e) { echo $e->getMessage(); }`,
			"Return value of h() must be of type int, string returned"},
		{"too few arguments", `<?php
function need($a, $b) {}
try { need(1); } catch (ArgumentCountError $e) { echo $e->getMessage(); }`,
			"Too few arguments to function need(), 1 passed in, at least 2 expected"},
		{"default before mandatory stays required", `<?php
function g($a = 1, $b) {}
try { g(2); } catch (ArgumentCountError $e) { echo $e->getMessage(); }`,
			"Too few arguments to function g(), 1 passed in, at least 2 expected"},
		{"undefined function", `<?php
try { nosuch(); } catch (Error $e) { echo $e->getMessage(); }`,
			"Call to undefined function nosuch()"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustRun(t, tt.src)
			if !strings.Contains(got, tt.wantMsg) {
				t.Errorf("message = %q, want substring %q", got, tt.wantMsg)
			}
		})
	}
}

func TestExit(t *testing.T) {
	out, err := runProg(t, `<?php echo "a"; exit; echo "b";`)
	if err != nil {
		t.Fatalf("exit 0 should not error: %v", err)
	}
	if out != "a" {
		t.Errorf("output = %q, want %q", out, "a")
	}

	_, err = runProg(t, `<?php exit(3);`)
	var exit *vm.ExitError
	if !errors.As(err, &exit) || exit.Code != 3 {
		t.Fatalf("want ExitError code 3, got %v", err)
	}

	out, err = runProg(t, `<?php exit("bye");`)
	if err != nil {
		t.Fatalf("exit with message should use code 0: %v", err)
	}
	if out != "bye" {
		t.Errorf("output = %q, want %q", out, "bye")
	}
}

func TestRegisteredBuiltin(t *testing.T) {
	prog := compileSrc(t, `<?php echo shout("hey");`)
	m := vm.New(prog)
	m.RegisterBuiltin("shout", func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		return strings.ToUpper(vm.ToString(args[0])), nil
	})
	var out bytes.Buffer
	m.Stdout = &out
	if err := m.Run(prog); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out.String() != "HEY" {
		t.Errorf("output = %q, want %q", out.String(), "HEY")
	}
}

func TestAutoloadChain(t *testing.T) {
	lib := compileSrc(t, `<?php class Lazy { public function tag() { return "lazy!"; } }`)
	main := compileSrc(t, `<?php $l = new Lazy(); echo $l->tag();`)

	m := vm.New(main)
	loads := 0
	m.RegisterAutoloader(func(machine *vm.VM, class string) error {
		if class == "Lazy" {
			loads++
			machine.Load(lib)
		}
		return nil
	})
	var out bytes.Buffer
	m.Stdout = &out
	if err := m.Run(main); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out.String() != "lazy!" {
		t.Errorf("output = %q, want %q", out.String(), "lazy!")
	}
	if loads != 1 {
		t.Errorf("autoloader ran %d times, want 1", loads)
	}
}

func TestSetGlobal(t *testing.T) {
	prog := compileSrc(t, `<?php echo $argvish;`)
	m := vm.New(prog)
	m.SetGlobal("argvish", "seeded")
	var out bytes.Buffer
	m.Stdout = &out
	if err := m.Run(prog); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out.String() != "seeded" {
		t.Errorf("output = %q, want %q", out.String(), "seeded")
	}
}
