package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeScript(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prog.phl")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunScript(t *testing.T) {
	path := writeScript(t, `<?php echo 1 + 2 * 3;`)
	var out, errOut bytes.Buffer
	code := run([]string{path}, &out, &errOut)
	if code != 0 {
		t.Fatalf("exit = %d, stderr = %q", code, errOut.String())
	}
	if out.String() != "7" {
		t.Errorf("stdout = %q, want %q", out.String(), "7")
	}
}

func TestParseErrorExitCode(t *testing.T) {
	path := writeScript(t, `<?php if (`)
	var out, errOut bytes.Buffer
	if code := run([]string{path}, &out, &errOut); code != 1 {
		t.Errorf("exit = %d, want 1", code)
	}
	if !strings.Contains(errOut.String(), "ParseError") {
		t.Errorf("stderr = %q", errOut.String())
	}
}

func TestRuntimeErrorExitCode(t *testing.T) {
	path := writeScript(t, `<?php throw new Exception("boom");`)
	var out, errOut bytes.Buffer
	if code := run([]string{path}, &out, &errOut); code != 2 {
		t.Errorf("exit = %d, want 2", code)
	}
	if !strings.Contains(errOut.String(), "Uncaught Exception: boom") {
		t.Errorf("stderr = %q", errOut.String())
	}
}

func TestExitCodePropagates(t *testing.T) {
	path := writeScript(t, `<?php exit(42);`)
	var out, errOut bytes.Buffer
	if code := run([]string{path}, &out, &errOut); code != 42 {
		t.Errorf("exit = %d, want 42", code)
	}
}

func TestMissingFile(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run([]string{"/nonexistent.phl"}, &out, &errOut); code != 255 {
		t.Errorf("exit = %d, want 255", code)
	}
}

func TestDumpBytecode(t *testing.T) {
	path := writeScript(t, `<?php echo 1;`)
	var out, errOut bytes.Buffer
	if code := run([]string{"--dump-bytecode", path}, &out, &errOut); code != 0 {
		t.Fatalf("exit = %d", code)
	}
	if !strings.Contains(out.String(), "Echo") {
		t.Errorf("disassembly missing Echo: %q", out.String())
	}
}

func TestStrictFlag(t *testing.T) {
	path := writeScript(t, `<?php
function f(int $x) { return $x; }
echo f("5");`)
	var out, errOut bytes.Buffer
	if code := run([]string{path}, &out, &errOut); code != 0 {
		t.Fatalf("weak mode exit = %d, stderr = %q", code, errOut.String())
	}
	out.Reset()
	errOut.Reset()
	if code := run([]string{"--strict", path}, &out, &errOut); code != 2 {
		t.Errorf("strict mode exit = %d, want 2", code)
	}
}

func TestConfigAutoload(t *testing.T) {
	dir := t.TempDir()
	libDir := filepath.Join(dir, "src")
	if err := os.MkdirAll(libDir, 0o755); err != nil {
		t.Fatal(err)
	}
	lib := `<?php class Greeter { public function hi() { return "hi from autoload"; } }`
	if err := os.WriteFile(filepath.Join(libDir, "Greeter.phl"), []byte(lib), 0o644); err != nil {
		t.Fatal(err)
	}
	cfgPath := filepath.Join(dir, "phlox.toml")
	cfg := "[autoload.psr4]\n\"\" = \"src\"\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	mainPath := filepath.Join(dir, "main.phl")
	if err := os.WriteFile(mainPath, []byte(`<?php echo (new Greeter)->hi();`), 0o644); err != nil {
		t.Fatal(err)
	}

	var out, errOut bytes.Buffer
	code := run([]string{"--config", cfgPath, mainPath}, &out, &errOut)
	if code != 0 {
		t.Fatalf("exit = %d, stderr = %q", code, errOut.String())
	}
	if out.String() != "hi from autoload" {
		t.Errorf("stdout = %q", out.String())
	}
}
