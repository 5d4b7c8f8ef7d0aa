package config

import (
	"fmt"
	"slices"
	"strings"
)

var providerTypes = []string{"gemini", "anthropic", "openai", "ollama"}

// Validate checks config values for correctness.
// Returns an error listing every invalid value.
func (c *Config) Validate() error {
	var errs []string

	// Context validation
	if c.Context.MaxTokens < 1 {
		errs = append(errs, "context.maxTokens must be >= 1")
	}
	if c.Context.TargetContextTokens < 1 {
		errs = append(errs, "context.targetContextTokens must be >= 1")
	}
	if c.Context.RecentMessages < 2 {
		errs = append(errs, "context.recentMessages must be >= 2")
	}
	if c.Context.SummarizeMinMessages < 1 {
		errs = append(errs, "context.summarizeMinMessages must be >= 1")
	}
	if c.Context.RetrievalSnippets < 0 {
		errs = append(errs, "context.retrievalSnippets must be >= 0")
	}

	// Tools validation
	if c.Tools.CommandTimeoutSec < 1 {
		errs = append(errs, "tools.commandTimeoutSec must be >= 1")
	}
	if c.Tools.MaxCommandOutputBytes < 1 {
		errs = append(errs, "tools.maxCommandOutputBytes must be >= 1")
	}
	if c.Tools.KillGracePeriodMs < 0 {
		errs = append(errs, "tools.killGracePeriodMs must be >= 0")
	}
	if c.Tools.ListFilesMax < 1 {
		errs = append(errs, "tools.listFilesMax must be >= 1")
	}
	if c.Tools.SearchMaxResults < 1 {
		errs = append(errs, "tools.searchMaxResults must be >= 1")
	}
	if c.Tools.MaxFileSize < 1 {
		errs = append(errs, "tools.maxFileSize must be >= 1")
	}
	for _, p := range c.Tools.DeniedPaths {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, "tools.deniedPaths must not contain empty entries")
			break
		}
	}

	// Workflow validation
	if c.Workflow.MaxIters < 1 {
		errs = append(errs, "workflow.maxIters must be >= 1")
	}

	// Provider validation
	if !slices.Contains(providerTypes, c.Provider.Type) {
		errs = append(errs, fmt.Sprintf("provider.type must be one of %v", providerTypes))
	}
	if c.Provider.Temperature < 0 || c.Provider.Temperature > 2 {
		errs = append(errs, "provider.temperature must be between 0 and 2")
	}
	if c.Provider.MaxTokens < 1 {
		errs = append(errs, "provider.maxTokens must be >= 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %v", errs)
	}

	return nil
}
