// Package config handles phlox.toml runtime configuration.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Config is the phlox.toml document.
type Config struct {
	Runtime  Runtime           `toml:"runtime"`
	Autoload Autoload          `toml:"autoload"`
	Database Database          `toml:"database"`
	Globals  map[string]string `toml:"globals"`

	// Dir is the directory containing the phlox.toml file (set at load time).
	Dir string `toml:"-"`
}

type Runtime struct {
	Strict       bool     `toml:"strict"`
	IncludePaths []string `toml:"include_paths"`
	MaxDepth     int      `toml:"max_depth"`
}

type Autoload struct {
	// PSR4 maps namespace prefixes to source directories.
	PSR4 map[string]string `toml:"psr4"`
}

type Database struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

// Default returns the configuration used when no phlox.toml exists.
func Default() *Config {
	return &Config{
		Runtime: Runtime{MaxDepth: 4096},
		Globals: map[string]string{},
	}
}

// Load reads a phlox.toml file. A missing file is not an error; the
// defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrap(err, "read config")
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	cfg.Dir = filepath.Dir(path)
	return cfg, nil
}

// ResolveAutoloadDirs rebases relative PSR-4 directories against the
// config file's location.
func (c *Config) ResolveAutoloadDirs() map[string]string {
	out := make(map[string]string, len(c.Autoload.PSR4))
	for prefix, dir := range c.Autoload.PSR4 {
		if !filepath.IsAbs(dir) && c.Dir != "" {
			dir = filepath.Join(c.Dir, dir)
		}
		out[prefix] = dir
	}
	return out
}
