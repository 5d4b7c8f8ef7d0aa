package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// ConfigDir is the directory name under ~/.config
	ConfigDir = "aicoder"
	// ConfigFile is the JSON config file name
	ConfigFile = "config.json"
	// ConfigFileYAML is the YAML config file name, used when no JSON file exists
	ConfigFileYAML = "config.yaml"
	// WorkspaceFile is the per-workspace override file
	WorkspaceFile = ".aicoder.yaml"
)

// FileSystem abstracts file operations for testability
type FileSystem interface {
	UserHomeDir() (string, error)
	ReadFile(path string) ([]byte, error)
}

// ConfigFileReader implements FileSystem using the real OS for config loading
type ConfigFileReader struct{}

func (ConfigFileReader) UserHomeDir() (string, error) {
	return os.UserHomeDir()
}

func (ConfigFileReader) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Loader handles configuration loading with injected dependencies
type Loader struct {
	fs            FileSystem
	explicitPath  string
	workspaceRoot string
}

// NewLoader creates a production Loader using the real filesystem
func NewLoader() *Loader {
	return &Loader{fs: ConfigFileReader{}}
}

// NewLoaderWithFS creates a Loader with a custom filesystem (for testing)
func NewLoaderWithFS(fs FileSystem) *Loader {
	return &Loader{fs: fs}
}

// WithPath makes the loader read the given file instead of the user config.
// A missing explicit file is an error.
func (l *Loader) WithPath(path string) *Loader {
	l.explicitPath = path
	return l
}

// WithWorkspace enables the .aicoder.yaml override in the given workspace root.
func (l *Loader) WithWorkspace(root string) *Loader {
	l.workspaceRoot = root
	return l
}

// Load reads the user configuration (~/.config/aicoder/config.json, falling back
// to config.yaml), then the workspace override, and merges both over the defaults.
// Returns default config if no file exists.
// Returns error only for parse errors, permission issues, or validation failures.
//
// NOTE: keys are unmarshalled directly over the default configuration, so explicit
// zero values in a file override defaults while missing keys leave them untouched.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.explicitPath != "" {
		if err := l.mergeFile(cfg, l.explicitPath, true); err != nil {
			return nil, err
		}
	} else if homeDir, err := l.fs.UserHomeDir(); err == nil {
		dir := filepath.Join(homeDir, ".config", ConfigDir)
		if err := l.mergeFirst(cfg, filepath.Join(dir, ConfigFile), filepath.Join(dir, ConfigFileYAML)); err != nil {
			return nil, err
		}
	}

	if l.workspaceRoot != "" {
		if err := l.mergeFile(cfg, filepath.Join(l.workspaceRoot, WorkspaceFile), false); err != nil {
			return nil, err
		}
	}

	// Validate the merged configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// mergeFirst merges the first of paths that exists.
func (l *Loader) mergeFirst(cfg *Config, paths ...string) error {
	for _, p := range paths {
		data, err := l.fs.ReadFile(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err // Return error for permission issues
		}
		return decode(p, data, cfg)
	}
	return nil
}

func (l *Loader) mergeFile(cfg *Config, path string, required bool) error {
	data, err := l.fs.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return err
	}
	return decode(path, data, cfg)
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return nil
}

// Load is a convenience function using the default loader
func Load() (*Config, error) {
	return NewLoader().Load()
}
