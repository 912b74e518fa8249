package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "phlox.toml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.Runtime.Strict {
		t.Error("strict should default to false")
	}
	if cfg.Runtime.MaxDepth != 4096 {
		t.Errorf("MaxDepth = %d, want 4096", cfg.Runtime.MaxDepth)
	}
}

func TestLoadParsesDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "phlox.toml")
	doc := `
[runtime]
strict = true
include_paths = ["lib"]

[autoload.psr4]
"App\\" = "src"

[database]
driver = "sqlite"
dsn = ":memory:"

[globals]
APP_ENV = "test"
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !cfg.Runtime.Strict {
		t.Error("strict not parsed")
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN != ":memory:" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Globals["APP_ENV"] != "test" {
		t.Errorf("globals = %v", cfg.Globals)
	}

	dirs := cfg.ResolveAutoloadDirs()
	want := filepath.Join(dir, "src")
	if dirs[`App\`] != want {
		t.Errorf("psr4 dir = %q, want %q", dirs[`App\`], want)
	}
}

func TestLoadRejectsBadToml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phlox.toml")
	if err := os.WriteFile(path, []byte("runtime = ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}
