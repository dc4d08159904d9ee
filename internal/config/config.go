// Package config loads project-level settings from archscan.yml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/archscan/internal/detect"
	"github.com/dusk-indust/archscan/internal/incremental"
	"github.com/dusk-indust/archscan/internal/walker"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
	StoreKuzu   = "kuzu"
)

// DataDir is the per-project directory holding durable state.
const DataDir = ".archscan"

// DefaultSkip lists the patterns skipped when the config sets none.
var DefaultSkip = []string{
	".git", ".hg", ".svn", DataDir,
	"**/node_modules", "**/vendor", "**/dist", "**/build", "**/target",
	"**/__pycache__", "**/.venv", "**/venv", "**/bin", "**/obj",
	"*.min.js", "*.map", "*.lock", "package-lock.json",
}

// ProjectConfig holds project-level settings loaded from archscan.yml.
type ProjectConfig struct {
	Skip             []string          `yaml:"skip,omitempty"`
	MaxFileSize      int64             `yaml:"maxFileSize,omitempty"`
	Workers          int               `yaml:"workers,omitempty"`
	RespectGitignore *bool             `yaml:"respectGitignore,omitempty"`
	Store            string            `yaml:"store,omitempty"`
	StorePath        string            `yaml:"storePath,omitempty"`
	GitTimeout       time.Duration     `yaml:"gitTimeout,omitempty"`
	Thresholds       detect.Thresholds `yaml:"thresholds,omitempty"`
	Layers           []detect.Layer    `yaml:"layers,omitempty"`
}

// Load attempts to read archscan.yml or archscan.yaml from the given
// directory and fills unset fields with defaults. A missing file is not an
// error: the defaults are returned.
func Load(dir string) (*ProjectConfig, error) {
	for _, name := range []string{"archscan.yml", "archscan.yaml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		var cfg ProjectConfig
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		if err := cfg.applyDefaults(dir); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
		return &cfg, nil
	}
	cfg := &ProjectConfig{}
	if err := cfg.applyDefaults(dir); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ProjectConfig) applyDefaults(dir string) error {
	if len(c.Skip) == 0 {
		c.Skip = append([]string(nil), DefaultSkip...)
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = walker.DefaultMaxFileSize
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.RespectGitignore == nil {
		t := true
		c.RespectGitignore = &t
	}
	switch c.Store {
	case "":
		c.Store = StoreSQLite
	case StoreSQLite, StoreMemory, StoreKuzu:
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	if c.StorePath == "" {
		c.StorePath = DefaultStorePath(dir, c.Store)
	}
	if c.GitTimeout <= 0 {
		c.GitTimeout = incremental.DefaultGitTimeout
	}
	c.Thresholds = c.Thresholds.WithDefaults()
	if len(c.Layers) == 0 {
		c.Layers = detect.DefaultLayers()
	}
	for _, l := range c.Layers {
		if l.Name == "" || len(l.Patterns) == 0 {
			return fmt.Errorf("layer %q needs a name and at least one pattern", l.Name)
		}
	}
	return nil
}

// DefaultStorePath is where a store of the given kind lives under the
// project directory. The memory store has no path.
func DefaultStorePath(dir, kind string) string {
	switch kind {
	case StoreSQLite:
		return filepath.Join(dir, DataDir, "archscan.db")
	case StoreKuzu:
		return filepath.Join(dir, DataDir, "graph.kuzu")
	}
	return ""
}

// WalkOptions returns the walker options described by c.
func (c *ProjectConfig) WalkOptions() walker.Options {
	return walker.Options{
		Skip:             c.Skip,
		MaxFileSize:      c.MaxFileSize,
		RespectGitignore: c.RespectGitignore == nil || *c.RespectGitignore,
	}
}
