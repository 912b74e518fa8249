package builtins_test

import (
	"bytes"
	"strings"
	"testing"

	"phlox/internal/builtins"
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

func runSrc(t *testing.T, src string) string {
	t.Helper()
	prog := compileSrc(t, src)
	m := vm.New(prog)
	mgr := builtins.Install(m)
	defer mgr.CloseAll()
	var out bytes.Buffer
	m.Stdout = &out
	if err := m.Run(prog); err != nil {
		t.Fatalf("run failed: %v\noutput so far: %q", err, out.String())
	}
	return out.String()
}

func runTable(t *testing.T, tests []struct{ name, src, want string }) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := runSrc(t, tt.src); got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStringBuiltins(t *testing.T) {
	runTable(t, []struct{ name, src, want string }{
		{"strlen", `<?php echo strlen("hello");`, "5"},
		{"substr", `<?php echo substr("hello", 1, 3);`, "ell"},
		{"substr negative start", `<?php echo substr("hello", -3);`, "llo"},
		{"strpos found", `<?php echo strpos("hello", "ll");`, "2"},
		{"strpos miss is false", `<?php echo strpos("hello", "z") === false ? "miss" : "hit";`, "miss"},
		{"str_replace", `<?php echo str_replace("l", "L", "hello");`, "heLLo"},
		{"explode implode", `<?php echo implode("-", explode(",", "a,b,c"));`, "a-b-c"},
		{"implode single arg", `<?php echo implode([1, 2, 3]);`, "123"},
		{"trim", `<?php echo trim("  x  "), trim("xxaxx", "x");`, "xa"},
		{"case family", `<?php echo strtoupper("ab"), strtolower("CD"), ucfirst("ef");`, "ABcdEf"},
		{"contains family", `<?php echo str_contains("abc", "b") ? 1 : 0, str_starts_with("abc", "a") ? 1 : 0, str_ends_with("abc", "c") ? 1 : 0;`, "111"},
		{"str_pad", `<?php echo str_pad("7", 3, "0", 0);`, "007"},
		{"str_repeat", `<?php echo str_repeat("ab", 3);`, "ababab"},
		{"strrev", `<?php echo strrev("abc");`, "cba"},
		{"chr ord", `<?php echo chr(65), ord("A");`, "A65"},
		{"sprintf", `<?php echo sprintf('%05d|%.2f|%s', 42, 3.14159, "ok");`, "00042|3.14|ok"},
		{"printf returns length", `<?php $n = printf('%s', "abc"); echo "#", $n;`, "abc#3"},
		{"number_format", `<?php echo number_format(1234567.891, 2);`, "1,234,567.89"},
	})
}

func TestArrayBuiltins(t *testing.T) {
	runTable(t, []struct{ name, src, want string }{
		{"count", `<?php echo count([1, 2, 3]);`, "3"},
		{"push pop", `<?php $a = [1]; array_push($a, 2, 3); echo count($a), array_pop($a), count($a);`, "332"},
		{"shift renumbers", `<?php $a = [9, 8, 7]; echo array_shift($a), $a[0], $a[1];`, "987"},
		{"unshift", `<?php $a = [2, 3]; array_unshift($a, 1); echo implode("", $a);`, "123"},
		{"keys values", `<?php $a = ["x" => 1, "y" => 2]; echo implode("", array_keys($a)), implode("", array_values($a));`, "xy12"},
		{"in_array loose vs strict", `<?php $a = ["1"]; echo in_array(1, $a) ? "y" : "n", in_array(1, $a, true) ? "y" : "n";`, "yn"},
		{"array_search", `<?php echo array_search(2, [1, 2, 3]);`, "1"},
		{"array_key_exists", `<?php echo array_key_exists("k", ["k" => null]) ? "y" : "n";`, "y"},
		{"array_merge renumbers", `<?php $a = array_merge([1, 2], [3], ["k" => 4]); echo implode("", $a), "|", $a["k"];`, "1234|4"},
		{"array_reverse", `<?php echo implode("", array_reverse([1, 2, 3]));`, "321"},
		{"array_slice", `<?php echo implode("", array_slice([1, 2, 3, 4], 1, 2));`, "23"},
		{"array_sum", `<?php echo array_sum([1, 2, 3]);`, "6"},
		{"range", `<?php echo implode("", range(1, 5)), implode("", range(5, 1, 2));`, "12345531"},
		{"char range", `<?php echo implode("", range("a", "e"));`, "abcde"},
		{"sort", `<?php $a = [3, 1, 2]; sort($a); echo implode("", $a);`, "123"},
		{"rsort", `<?php $a = [3, 1, 2]; rsort($a); echo implode("", $a);`, "321"},
		{"ksort", `<?php $a = ["b" => 2, "a" => 1]; ksort($a); echo implode("", array_keys($a));`, "ab"},
		{"usort arrow fn", `<?php $a = [3, 1, 2]; usort($a, fn($x, $y) => $x <=> $y); echo implode("", $a);`, "123"},
		{"uasort keeps keys", `<?php $a = ["x" => 2, "y" => 1]; uasort($a, fn($p, $q) => $p <=> $q); echo implode("", array_keys($a));`, "yx"},
		{"array_map keeps keys", `<?php $out = array_map(fn($x) => $x * 2, ["a" => 1, "b" => 2]); echo $out["a"], $out["b"];`, "24"},
		{"array_filter default", `<?php echo implode("", array_filter([0, 1, "", 2, null, 3]));`, "123"},
		{"array_filter callback", `<?php echo implode("", array_filter([1, 2, 3, 4], fn($x) => $x % 2 == 0));`, "24"},
		{"array_reduce", `<?php echo array_reduce([1, 2, 3], fn($c, $v) => $c + $v, 10);`, "16"},
	})
}

func TestMathBuiltins(t *testing.T) {
	runTable(t, []struct{ name, src, want string }{
		{"abs", `<?php echo abs(-5), abs(-2.5);`, "52.5"},
		{"ceil floor", `<?php echo ceil(1.2), floor(1.8);`, "21"},
		{"round precision", `<?php echo round(3.14159, 2);`, "3.14"},
		{"sqrt", `<?php echo sqrt(16);`, "4"},
		{"pow int", `<?php echo pow(2, 10);`, "1024"},
		{"intdiv", `<?php echo intdiv(7, 2);`, "3"},
		{"intdiv by zero", `<?php try { intdiv(1, 0); } catch (DivisionByZeroError $e) { echo $e->getMessage(); }`, "Division by zero"},
		{"min max args", `<?php echo min(3, 1, 2), max(3, 1, 2);`, "13"},
		{"min max array", `<?php echo min([5, 2, 9]), max([5, 2, 9]);`, "29"},
	})
}

func TestTypeBuiltins(t *testing.T) {
	runTable(t, []struct{ name, src, want string }{
		{"gettype", `<?php echo gettype(1), "|", gettype(1.5), "|", gettype("s"), "|", gettype([]), "|", gettype(null);`,
			"integer|double|string|array|NULL"},
		{"intval floatval", `<?php echo intval("42abc"), floatval("2.5x");`, "422.5"},
		{"strval boolval", `<?php echo strval(7), boolval("") ? "t" : "f";`, "7f"},
		{"is family", `<?php echo is_int(1) ? 1 : 0, is_float(1.0) ? 1 : 0, is_string("") ? 1 : 0, is_array([]) ? 1 : 0, is_null(null) ? 1 : 0;`, "11111"},
		{"is_numeric", `<?php echo is_numeric("12.5") ? "y" : "n", is_numeric("12px") ? "y" : "n";`, "yn"},
		{"is_callable", `<?php echo is_callable(fn() => 1) ? "y" : "n", is_callable("strlen") ? "y" : "n", is_callable("nope") ? "y" : "n";`, "yyn"},
	})
}

func TestRegexBuiltins(t *testing.T) {
	runTable(t, []struct{ name, src, want string }{
		{"preg_match groups", `<?php $m = preg_match('/(\d+)-(\d+)/', "order 12-34"); echo $m[1], ":", $m[2];`, "12:34"},
		{"preg_match miss", `<?php echo preg_match('/z/', "abc") === false ? "miss" : "hit";`, "miss"},
		{"case insensitive", `<?php $m = preg_match('/ABC/i', "xabcx"); echo $m[0];`, "abc"},
		{"preg_match_all", `<?php $all = preg_match_all('/\d+/', "a1b22c333"); echo count($all), $all[2][0];`, "3333"},
		{"preg_replace", `<?php echo preg_replace('/\s+/', "_", "a  b   c");`, "a_b_c"},
		{"preg_replace backref", `<?php echo preg_replace('/(\w+)@(\w+)/', '$2.$1', "user@host");`, "host.user"},
		{"preg_split", `<?php echo implode("|", preg_split('/[\s,]+/', "a, b  c"));`, "a|b|c"},
	})
}

func TestVarDumpAndPrintR(t *testing.T) {
	runTable(t, []struct{ name, src, want string }{
		{"var_dump scalars", `<?php var_dump(5, 1.5, true, null);`,
			"int(5)\nfloat(1.5)\nbool(true)\nNULL\n"},
		{"var_dump string", `<?php var_dump("ab");`, "string(2) \"ab\"\n"},
		{"var_dump array", `<?php var_dump([1, "a"]);`,
			"array(2) {\n  [0]=>\n  int(1)\n  [1]=>\n  string(1) \"a\"\n}\n"},
		{"print_r scalar", `<?php print_r(42);`, "42"},
		{"print_r returns string", `<?php $s = print_r(7, true); echo "[", $s, "]";`, "[7]"},
	})
}

func TestMiscBuiltins(t *testing.T) {
	got := runSrc(t, `<?php echo uniqid("id_");`)
	if !strings.HasPrefix(got, "id_") || len(got) != 16 {
		t.Errorf("uniqid output = %q, want id_ prefix and 13 id chars", got)
	}

	runTable(t, []struct{ name, src, want string }{
		{"get_class", `<?php class Widget {} echo get_class(new Widget);`, "Widget"},
		{"function_exists", `<?php function mine() {} echo function_exists("mine") ? 1 : 0, function_exists("strlen") ? 1 : 0, function_exists("nope") ? 1 : 0;`, "110"},
		{"class_exists", `<?php class Known {} echo class_exists("Known") ? 1 : 0, class_exists("Unknown") ? 1 : 0;`, "10"},
		{"microtime float", `<?php echo microtime(true) > 0 ? "ok" : "bad";`, "ok"},
	})
}

func TestSplAutoloadRegister(t *testing.T) {
	lib := compileSrc(t, `<?php class Plugin { public function ping() { return "pong"; } }`)
	main := compileSrc(t, `<?php
spl_autoload_register(fn($class) => provide($class));
$p = new Plugin();
echo $p->ping();`)

	m := vm.New(main)
	mgr := builtins.Install(m)
	defer mgr.CloseAll()
	m.RegisterBuiltin("provide", func(machine *vm.VM, args []vm.Value) (vm.Value, error) {
		if vm.ToString(args[0]) == "Plugin" {
			machine.Load(lib)
		}
		return nil, nil
	})
	var out bytes.Buffer
	m.Stdout = &out
	if err := m.Run(main); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out.String() != "pong" {
		t.Errorf("output = %q, want %q", out.String(), "pong")
	}
}

func TestDatabaseBuiltins(t *testing.T) {
	got := runSrc(t, `<?php
$db = db_open("sqlite", ":memory:");
db_exec($db, "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)");
db_exec($db, "INSERT INTO t (name) VALUES (?)", "ann");
db_exec($db, "INSERT INTO t (name) VALUES (?)", "bob");
echo db_last_insert_id($db);
foreach (db_query($db, "SELECT name FROM t ORDER BY id") as $row) {
    echo ",", $row["name"];
}
db_close($db);`)
	if got != "2,ann,bob" {
		t.Errorf("output = %q, want %q", got, "2,ann,bob")
	}
}

func TestDatabaseErrors(t *testing.T) {
	got := runSrc(t, `<?php
try { db_open("oracle", "x"); } catch (RuntimeException $e) { echo "open:", str_contains($e->getMessage(), "unsupported") ? "y" : "n"; }
try { db_exec(99, "SELECT 1"); } catch (RuntimeException $e) { echo " exec:err"; }`)
	if got != "open:y exec:err" {
		t.Errorf("output = %q", got)
	}
}
