// Package provider builds the configured LLM backend.
package provider

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Cyclone1070/aicoder/internal/config"
	"github.com/Cyclone1070/aicoder/internal/provider/anthropic"
	"github.com/Cyclone1070/aicoder/internal/provider/gemini"
	"github.com/Cyclone1070/aicoder/internal/provider/models"
	"github.com/Cyclone1070/aicoder/internal/provider/ollama"
	"github.com/Cyclone1070/aicoder/internal/provider/openai"
	"go.uber.org/zap"
)

const (
	TypeGemini    = "gemini"
	TypeAnthropic = "anthropic"
	TypeOpenAI    = "openai"
	TypeOllama    = "ollama"
)

var defaultKeyEnv = map[string]string{
	TypeGemini:    "GEMINI_API_KEY",
	TypeAnthropic: "ANTHROPIC_API_KEY",
	TypeOpenAI:    "OPENAI_API_KEY",
}

// Types lists the supported provider types.
func Types() []string {
	return []string{TypeGemini, TypeAnthropic, TypeOpenAI, TypeOllama}
}

// New builds the provider named by cfg.Type. getenv resolves the API key
// variable; nil means os.Getenv.
func New(ctx context.Context, cfg config.ProviderConfig, getenv func(string) string, logger *zap.Logger) (models.Provider, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	typ := strings.ToLower(strings.TrimSpace(cfg.Type))
	settings := models.Settings{
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}

	apiKey, err := resolveKey(typ, cfg.APIKeyEnv, getenv)
	if err != nil {
		return nil, err
	}

	switch typ {
	case TypeGemini:
		client, err := gemini.Dial(ctx, apiKey, cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		return gemini.New(client, settings, logger), nil
	case TypeAnthropic:
		return anthropic.New(anthropic.Dial(apiKey, cfg.BaseURL), settings, logger), nil
	case TypeOpenAI:
		return openai.New(openai.Dial(apiKey, cfg.BaseURL), settings, logger), nil
	case TypeOllama:
		client, err := ollama.Dial(cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		return ollama.New(client, settings, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q (supported: %s)", models.ErrUnknownProvider, cfg.Type, strings.Join(Types(), ", "))
	}
}

// resolveKey reads the API key for typ. Ollama needs none unless a variable is configured.
func resolveKey(typ, keyEnv string, getenv func(string) string) (string, error) {
	if keyEnv == "" {
		keyEnv = defaultKeyEnv[typ]
	}
	if keyEnv == "" {
		return "", nil
	}
	key := strings.TrimSpace(getenv(keyEnv))
	if key == "" && typ != TypeOllama {
		return "", fmt.Errorf("%w: set %s", models.ErrMissingAPIKey, keyEnv)
	}
	return key, nil
}
