package config

// Config holds all application configuration values.
// Defaults are set in DefaultConfig() and can be overridden via dotfile.
// NOTE: Values in config files override defaults, including explicit zero values.
// Missing keys are left at their default values.
type Config struct {
	Context  ContextConfig  `json:"context" yaml:"context"`
	Tools    ToolsConfig    `json:"tools" yaml:"tools"`
	Workflow WorkflowConfig `json:"workflow" yaml:"workflow"`
	Provider ProviderConfig `json:"provider" yaml:"provider"`
	Session  SessionConfig  `json:"session" yaml:"session"`
}

type ContextConfig struct {
	MaxTokens            int `json:"maxTokens" yaml:"maxTokens"`                       // Default: 4096
	TargetContextTokens  int `json:"targetContextTokens" yaml:"targetContextTokens"`   // Default: 3000
	RecentMessages       int `json:"recentMessages" yaml:"recentMessages"`             // Default: 16
	SummarizeMinMessages int `json:"summarizeMinMessages" yaml:"summarizeMinMessages"` // Default: 6
	RetrievalSnippets    int `json:"retrievalSnippets" yaml:"retrievalSnippets"`       // Default: 4
}

type ToolsConfig struct {
	// Path policy, evaluated against normalized workspace-relative paths
	AllowedPaths []string `json:"allowedPaths" yaml:"allowedPaths"` // Default: [] (unrestricted)
	DeniedPaths  []string `json:"deniedPaths" yaml:"deniedPaths"`   // Default: [".git"]

	// Command Execution
	CommandTimeoutSec     int   `json:"commandTimeoutSec" yaml:"commandTimeoutSec"`         // Default: 300
	MaxCommandOutputBytes int64 `json:"maxCommandOutputBytes" yaml:"maxCommandOutputBytes"` // Default: 10 * 1024 * 1024
	KillGracePeriodMs     int   `json:"killGracePeriodMs" yaml:"killGracePeriodMs"`         // Default: 0 (kill immediately)

	// Listing and search
	ListFilesMax     int   `json:"listFilesMax" yaml:"listFilesMax"`         // Default: 500
	SearchMaxResults int   `json:"searchMaxResults" yaml:"searchMaxResults"` // Default: 200
	MaxFileSize      int64 `json:"maxFileSize" yaml:"maxFileSize"`           // Default: 5 * 1024 * 1024

	// Diagnostics
	DiagnosticsCommand string `json:"diagnosticsCommand" yaml:"diagnosticsCommand"` // Default: "go vet ./..."
}

type WorkflowConfig struct {
	MaxIters int `json:"maxIters" yaml:"maxIters"` // Default: 6
}

type ProviderConfig struct {
	Type        string  `json:"type" yaml:"type"`               // Default: "gemini"
	Model       string  `json:"model" yaml:"model"`             // Default: "" (provider default)
	BaseURL     string  `json:"baseURL" yaml:"baseURL"`         // Default: "" (provider default)
	APIKeyEnv   string  `json:"apiKeyEnv" yaml:"apiKeyEnv"`     // Default: "" (provider default variable)
	Temperature float32 `json:"temperature" yaml:"temperature"` // Default: 0.2
	MaxTokens   int     `json:"maxTokens" yaml:"maxTokens"`     // Default: 4096
}

type SessionConfig struct {
	DataDir string `json:"dataDir" yaml:"dataDir"` // Default: "" (~/.config/aicoder/sessions)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Context: ContextConfig{
			MaxTokens:            4096,
			TargetContextTokens:  3000,
			RecentMessages:       16,
			SummarizeMinMessages: 6,
			RetrievalSnippets:    4,
		},
		Tools: ToolsConfig{
			AllowedPaths:          []string{},
			DeniedPaths:           []string{".git"},
			CommandTimeoutSec:     300,
			MaxCommandOutputBytes: 10 * 1024 * 1024,
			ListFilesMax:          500,
			SearchMaxResults:      200,
			MaxFileSize:           5 * 1024 * 1024,
			DiagnosticsCommand:    "go vet ./...",
		},
		Workflow: WorkflowConfig{
			MaxIters: 6,
		},
		Provider: ProviderConfig{
			Type:        "gemini",
			Temperature: 0.2,
			MaxTokens:   4096,
		},
	}
}
