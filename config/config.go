// Package config handles jasm.toml configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const FileName = "jasm.toml"

const (
	DirectionForward  = "forward"
	DirectionBackward = "backward"

	DefaultStackSize     = 1 << 20
	DefaultCallStackSize = 1 << 16
	DefaultMaxCallDepth  = 1 << 16
)

// Config represents a jasm.toml configuration.
type Config struct {
	VM    VMConfig    `toml:"vm"`
	Log   LogConfig   `toml:"log"`
	Cache CacheConfig `toml:"cache"`

	// Dir is the directory containing the jasm.toml file (empty when defaults are used).
	Dir string `toml:"-"`
}

// VMConfig configures each execution context.
type VMConfig struct {
	StackSize     int    `toml:"stack-size"`
	CallStackSize int    `toml:"call-stack-size"`
	Direction     string `toml:"direction"`
	Strict        bool   `toml:"strict"`
	CheckFrames   *bool  `toml:"check-frames"`
	MaxCallDepth  int    `toml:"max-call-depth"`
	Trace         bool   `toml:"trace"`
}

// LogConfig configures the root logger.
type LogConfig struct {
	Level   string `toml:"level"`
	Modules string `toml:"modules"`
}

// CacheConfig configures the run-result cache. An empty path keeps it in memory.
type CacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Default returns the configuration used when no jasm.toml is present.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load parses a jasm.toml file from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	if c.Cache.Path != "" && !filepath.IsAbs(c.Cache.Path) {
		c.Cache.Path = filepath.Join(c.Dir, c.Cache.Path)
	}
	return c, nil
}

// Parse decodes TOML bytes, applies defaults, and validates the result.
func Parse(data []byte) (*Config, error) {
	var c Config
	if _, err := toml.Decode(string(data), &c); err != nil {
		return nil, err
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// FindAndLoad walks up from startDir to find a jasm.toml file,
// then loads and returns it. Returns Default() if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

func (c *Config) applyDefaults() {
	if c.VM.StackSize == 0 {
		c.VM.StackSize = DefaultStackSize
	}
	if c.VM.CallStackSize == 0 {
		c.VM.CallStackSize = DefaultCallStackSize
	}
	if c.VM.Direction == "" {
		c.VM.Direction = DirectionForward
	}
	c.VM.Direction = strings.ToLower(c.VM.Direction)
	if c.VM.CheckFrames == nil {
		on := true
		c.VM.CheckFrames = &on
	}
	if c.VM.MaxCallDepth == 0 {
		c.VM.MaxCallDepth = DefaultMaxCallDepth
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.VM.Direction {
	case DirectionForward, DirectionBackward:
	default:
		return fmt.Errorf("vm.direction must be %q or %q, got %q", DirectionForward, DirectionBackward, c.VM.Direction)
	}
	if c.VM.StackSize < 64 {
		return fmt.Errorf("vm.stack-size too small: %d", c.VM.StackSize)
	}
	if c.VM.CallStackSize < 2 {
		return fmt.Errorf("vm.call-stack-size too small: %d", c.VM.CallStackSize)
	}
	if c.VM.MaxCallDepth < 1 {
		return fmt.Errorf("vm.max-call-depth must be positive: %d", c.VM.MaxCallDepth)
	}
	return nil
}

// FramesChecked reports whether frame-size assertions are on.
func (v VMConfig) FramesChecked() bool {
	return v.CheckFrames == nil || *v.CheckFrames
}
