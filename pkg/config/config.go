// Package config loads the optional emuasm.toml project file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the project file looked up next to the source being assembled.
const FileName = "emuasm.toml"

type Config struct {
	Target      string   `toml:"target"`
	Start       int      `toml:"start"`
	Output      string   `toml:"output"`
	Format      string   `toml:"format"`
	MaxSweeps   int      `toml:"max_sweeps"`
	IncludeDirs []string `toml:"include_dirs"`
}

const (
	FormatHex = "hex"
	FormatBin = "bin"
)

func Default() Config {
	return Config{Target: "i8080", Format: FormatHex}
}

// Load reads path over the defaults. Relative output and include paths are
// taken relative to the directory holding the file.
func Load(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}

	dir := filepath.Dir(path)
	for i, inc := range cfg.IncludeDirs {
		if !filepath.IsAbs(inc) {
			cfg.IncludeDirs[i] = filepath.Join(dir, inc)
		}
	}
	if cfg.Output != "" && !filepath.IsAbs(cfg.Output) {
		cfg.Output = filepath.Join(dir, cfg.Output)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Format {
	case FormatHex, FormatBin:
	default:
		return fmt.Errorf("format must be %q or %q, got %q", FormatHex, FormatBin, c.Format)
	}
	if c.Start < 0 {
		return fmt.Errorf("start address %d is negative", c.Start)
	}
	if c.MaxSweeps < 0 {
		return fmt.Errorf("max_sweeps %d is negative", c.MaxSweeps)
	}
	return nil
}

// Find looks for FileName in dir and its parents.
func Find(dir string) (string, bool) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	for {
		path := filepath.Join(dir, FileName)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
