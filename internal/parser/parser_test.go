package parser

import (
	"testing"

	"phlox/internal/ast"
)

// Test helper to parse a source string and fail the test on error.
func mustParse(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := Parse(src, "test.php")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return prog
}

func assertParseError(t *testing.T, src, description string) {
	t.Helper()
	if _, err := Parse(src, "test.php"); err == nil {
		t.Errorf("%s: expected parse error, got none", description)
	}
}

func TestParseStatements(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"echo", `<?php echo 1 + 2 * 3;`},
		{"echo multiple", `<?php echo "a", "b", "c";`},
		{"assignment", `<?php $x = 5; $y = $x + 1;`},
		{"compound assign", `<?php $x += 2; $x .= "s"; $x **= 2; $x ??= 1;`},
		{"if elseif else", `<?php if ($a) { echo 1; } elseif ($b) { echo 2; } else { echo 3; }`},
		{"if single statement", `<?php if ($a) echo 1; else echo 2;`},
		{"while", `<?php while ($i < 10) { $i++; }`},
		{"do while", `<?php do { $i--; } while ($i > 0);`},
		{"for", `<?php for ($i = 0; $i < 3; $i++) { echo $i; }`},
		{"for empty clauses", `<?php for (;;) { break; }`},
		{"foreach value", `<?php foreach ($xs as $x) { echo $x; }`},
		{"foreach key value", `<?php foreach ($xs as $k => $v) { echo $k, $v; }`},
		{"switch", `<?php switch ($x) { case 1: echo "a"; break; default: echo "b"; }`},
		{"try catch finally", `<?php try { f(); } catch (TypeError|ValueError $e) { g(); } finally { h(); }`},
		{"catch without variable", `<?php try { f(); } catch (Exception) { g(); }`},
		{"unset", `<?php unset($a, $b[0], $c->p);`},
		{"global", `<?php function f() { global $x, $y; }`},
		{"declare strict", `<?php declare(strict_types=1); echo 1;`},
		{"throw statement", `<?php throw new Exception("boom");`},
		{"return empty", `<?php function f() { return; }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mustParse(t, tt.input)
		})
	}
}

func TestParseExpressions(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"ternary", `<?php $x = $a ? 1 : 2;`},
		{"short ternary", `<?php $x = $a ?: "default";`},
		{"coalesce chain", `<?php $x = $a ?? $b ?? 0;`},
		{"spaceship", `<?php $c = $a <=> $b;`},
		{"power right assoc", `<?php $x = 2 ** 3 ** 2;`},
		{"negative exponent", `<?php $x = 2 ** -1;`},
		{"instanceof", `<?php $ok = $e instanceof ValueError;`},
		{"casts", `<?php $a = (int)"5"; $b = (float)$a; $c = (bool)$b; $d = (array)$c;`},
		{"array literal", `<?php $a = [1, "k" => 2, ...$rest];`},
		{"legacy array()", `<?php $a = array(1, 2, 3);`},
		{"nested index", `<?php $v = $m["a"][0]["b"];`},
		{"append", `<?php $a[] = 5;`},
		{"method chain", `<?php $x = $obj->f()->g(1)->prop;`},
		{"nullsafe", `<?php $n = $obj?->child?->name;`},
		{"static call", `<?php $c = Counter::make(3);`},
		{"static prop", `<?php $n = Counter::$count;`},
		{"class const", `<?php $v = Config::LIMIT; $n = Config::class;`},
		{"enum case access", `<?php $c = Suit::Hearts;`},
		{"new with args", `<?php $p = new Point(1, 2);`},
		{"new then call", `<?php $n = new Point(1, 2)->norm();`},
		{"clone", `<?php $q = clone $p;`},
		{"clone with", `<?php $q = clone($p, ['x' => 9]);`},
		{"closure with use", `<?php $f = function ($a) use ($b, &$c): int { return $a + $b; };`},
		{"arrow fn", `<?php $f = fn($x) => $x * 2;`},
		{"static closure", `<?php $f = static function () { return 1; };`},
		{"named args", `<?php f(b: 2, a: 1);`},
		{"spread call", `<?php f(...$args);`},
		{"match", `<?php $r = match ($x) { 1, 2 => "low", default => "high" };`},
		{"isset empty", `<?php $a = isset($x, $y[0]); $b = empty($z);`},
		{"print", `<?php $r = print "hi";`},
		{"exit with code", `<?php exit(2);`},
		{"throw expression", `<?php $v = $x ?? throw new ValueError("missing");`},
		{"logical keywords", `<?php $r = $a and $b or $c xor $d;`},
		{"pre post incdec", `<?php ++$i; $i++; --$j; $j--;`},
		{"yield", `<?php function g() { yield 1; yield "k" => 2; yield from [3, 4]; }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mustParse(t, tt.input)
		})
	}
}

func TestParseDeclarations(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"function with types", `<?php function f(int $x, string $s = "d", ...$rest): string { return $s; }`},
		{"nullable and union types", `<?php function f(?int $a, int|string $b, A&B $c): int|false { return 0; }`},
		{"dnf type", `<?php function f((A&B)|C $x) { }`},
		{"class full", `<?php
			final class Point extends Base implements Shape, Printable {
				use Helpers;
				const ORIGIN = 0;
				public readonly int $x;
				private static $count = 0;
				public function __construct(public int $a, private string $b = "z") { }
				protected static function make(): static { return new static(); }
				abstract public function area(): float;
			}`},
		{"property hooks", `<?php
			class Temp {
				public float $celsius = 0.0;
				public float $fahrenheit {
					get => $this->celsius * 9 / 5 + 32;
					set { $this->celsius = ($value - 32) * 5 / 9; }
				}
			}`},
		{"asymmetric visibility", `<?php class C { public private(set) int $n = 0; }`},
		{"interface", `<?php interface Shape extends Printable { const SIDES = 0; public function area(): float; }`},
		{"trait", `<?php trait Greets { public $greeting = "hi"; public function greet() { return $this->greeting; } }`},
		{"backed enum", `<?php enum Suit: string { case Hearts = "H"; case Spades = "S"; public function color(): string { return "x"; } }`},
		{"pure enum", `<?php enum Dir { case Up; case Down; const DEFAULT = "Up"; }`},
		{"attributes", `<?php #[Deprecated("use g"), Override] function f() { }`},
		{"attributed class", `<?php #[Entity] class User { #[Column("id")] public int $id = 0; }`},
		{"abstract class", `<?php abstract class Base { abstract protected function run(): void; }`},
		{"readonly class", `<?php readonly class Pair { public function __construct(public int $a, public int $b) { } }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mustParse(t, tt.input)
		})
	}
}

func TestParseErrors(t *testing.T) {
	assertParseError(t, `<?php if ($a { echo 1; }`, "missing close paren")
	assertParseError(t, `<?php try { f(); }`, "try without catch or finally")
	assertParseError(t, `<?php 1 + 2 = $x;`, "invalid assignment target")
	assertParseError(t, `<?php enum E: bool { case A; }`, "invalid enum backing type")
	assertParseError(t, `<?php function f(public int $x) { }`, "promotion outside constructor")
	assertParseError(t, `<?php foreach ($xs as) { }`, "foreach without binding")
}

func TestPrecedence(t *testing.T) {
	prog := mustParse(t, `<?php $r = 1 + 2 * 3;`)
	stmt := prog.Stmts[0].(*ast.ExprStmt)
	assign := stmt.X.(*ast.Assign)
	add := assign.Value.(*ast.Binary)
	if add.Op != "+" {
		t.Fatalf("top operator = %q, want +", add.Op)
	}
	mul, ok := add.R.(*ast.Binary)
	if !ok || mul.Op != "*" {
		t.Fatalf("right operand is not the multiplication")
	}
}

func TestConcatBindsLooserThanAdd(t *testing.T) {
	prog := mustParse(t, `<?php $r = "v=" . 1 + 2;`)
	assign := prog.Stmts[0].(*ast.ExprStmt).X.(*ast.Assign)
	concat := assign.Value.(*ast.Binary)
	if concat.Op != "." {
		t.Fatalf("top operator = %q, want .", concat.Op)
	}
	if add, ok := concat.R.(*ast.Binary); !ok || add.Op != "+" {
		t.Fatalf("addition did not bind tighter than concatenation")
	}
}

func TestStringInterpolation(t *testing.T) {
	tests := []struct {
		name  string
		input string
		parts int
	}{
		{"plain", `<?php $s = "hello";`, 0},
		{"simple var", `<?php $s = "v=$x";`, 2},
		{"var with property", `<?php $s = "name: $obj->name!";`, 3},
		{"var with index", `<?php $s = "first: $xs[0]";`, 2},
		{"complex expr", `<?php $s = "sum: {$a->total()}";`, 2},
		{"escaped dollar", `<?php $s = "cost: \$5";`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := mustParse(t, tt.input)
			assign := prog.Stmts[0].(*ast.ExprStmt).X.(*ast.Assign)
			if tt.parts == 0 {
				if _, ok := assign.Value.(*ast.StringLit); !ok {
					t.Fatalf("expected plain string literal, got %T", assign.Value)
				}
				return
			}
			interp, ok := assign.Value.(*ast.InterpString)
			if !ok {
				t.Fatalf("expected interpolated string, got %T", assign.Value)
			}
			if len(interp.Parts) != tt.parts {
				t.Fatalf("parts = %d, want %d", len(interp.Parts), tt.parts)
			}
		})
	}
}

func TestStrictTypesDirective(t *testing.T) {
	prog := mustParse(t, `<?php declare(strict_types=1); function f(int $x): int { return $x; }`)
	if !prog.StrictTypes {
		t.Fatal("strict_types directive not recorded")
	}
	if len(prog.Stmts) != 1 {
		t.Fatalf("declare statement leaked into program body: %d stmts", len(prog.Stmts))
	}
}

func TestNamespaceResolution(t *testing.T) {
	prog := mustParse(t, `<?php
		namespace App\Models;
		use App\Support\Str as S;
		class User {}
		$u = new User();
		$s = new S();
	`)
	decl := prog.Stmts[0].(*ast.ClassDecl)
	if decl.Name != `App\Models\User` {
		t.Fatalf("class name = %q", decl.Name)
	}
	newUser := prog.Stmts[1].(*ast.ExprStmt).X.(*ast.Assign).Value.(*ast.New)
	if newUser.Class != `App\Models\User` {
		t.Fatalf("new class = %q", newUser.Class)
	}
	newStr := prog.Stmts[2].(*ast.ExprStmt).X.(*ast.Assign).Value.(*ast.New)
	if newStr.Class != `App\Support\Str` {
		t.Fatalf("aliased class = %q", newStr.Class)
	}
}

func TestEnumDeclShape(t *testing.T) {
	prog := mustParse(t, `<?php enum Status: int { case Draft = 1; case Live = 2; }`)
	decl := prog.Stmts[0].(*ast.EnumDecl)
	if decl.Backing != "int" {
		t.Fatalf("backing = %q, want int", decl.Backing)
	}
	if len(decl.Cases) != 2 || decl.Cases[0].Name != "Draft" || decl.Cases[1].Name != "Live" {
		t.Fatalf("cases parsed wrong: %+v", decl.Cases)
	}
}
