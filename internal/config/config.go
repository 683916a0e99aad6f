// Package config loads and saves the toolchain's TOML configuration
// file, generalized from the teacher's config/config.go (same
// load/save/path-resolution shape, BurntSushi/toml encoding) from
// single-process emulator settings to the assemble/link/emulate/dump
// verb set of spec.md §6.3.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Config is the toolchain's persistent configuration.
type Config struct {
	Assemble struct {
		Optimize   int  `toml:"optimize"`    // peephole rewrite level (spec.md §4.4/§4.10)
		DebugLevel int  `toml:"debug_level"` // 0 strip locals, 1 keep, 2 keep everything
		Verbose    bool `toml:"verbose"`
	} `toml:"assemble"`

	Link struct {
		Relink     bool `toml:"relink"`      // mark output relinkable (spec.md §6.3)
		DebugLevel int  `toml:"debug_level"` // governs communal-drop threshold (spec.md §4.7)
		WError     bool `toml:"werror"`      // warnings become errors, no output written
	} `toml:"link"`

	Emulate struct {
		MaxCycles uint64 `toml:"max_cycles"`
		StackSize uint   `toml:"stack_size"`
		Trace     bool   `toml:"trace"`
	} `toml:"emulate"`

	Dump struct {
		MaxLines int `toml:"max_lines"` // hex dump words per line (spec.md §6.4)
	} `toml:"dump"`
}

// DefaultConfig returns the toolchain's built-in defaults.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Assemble.Optimize = 1
	cfg.Assemble.DebugLevel = 1
	cfg.Link.DebugLevel = 1
	cfg.Emulate.MaxCycles = 1_000_000
	cfg.Emulate.StackSize = 65536
	cfg.Dump.MaxLines = 8
	return cfg
}

// GetConfigPath returns the platform-specific config file path.
func GetConfigPath() string {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		configDir = filepath.Join(configDir, "fwc")

	case "darwin", "linux":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.toml"
		}
		configDir = filepath.Join(homeDir, ".config", "fwc")

	default:
		return "config.toml"
	}

	if err := os.MkdirAll(configDir, 0750); err != nil {
		return "config.toml"
	}
	return filepath.Join(configDir, "config.toml")
}

// Load reads configuration from the default config file.
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom reads configuration from path, falling back to defaults
// when the file does not exist.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Save writes configuration to the default config file.
func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

// SaveTo writes configuration to path.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path) // #nosec G304 -- user config file path
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}
