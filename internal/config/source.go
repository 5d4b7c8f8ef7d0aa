package config

// Source supplies the configuration for a single call.
// Tools read it on every invocation so edits take effect without a restart.
type Source interface {
	Current() (*Config, error)
}

// FileSource re-reads configuration from disk on every call. Nothing is cached.
type FileSource struct {
	loader *Loader
}

// NewFileSource creates a Source backed by the given loader.
func NewFileSource(loader *Loader) *FileSource {
	if loader == nil {
		panic("loader is required")
	}
	return &FileSource{loader: loader}
}

// Current loads and validates the configuration.
func (s *FileSource) Current() (*Config, error) {
	return s.loader.Load()
}

// StaticSource always returns the same configuration.
type StaticSource struct {
	cfg *Config
}

// NewStaticSource wraps cfg. A nil cfg yields DefaultConfig().
func NewStaticSource(cfg *Config) *StaticSource {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &StaticSource{cfg: cfg}
}

// Current returns the wrapped configuration.
func (s *StaticSource) Current() (*Config, error) {
	return s.cfg, nil
}
