package provider

import (
	"context"
	"testing"

	"github.com/Cyclone1070/aicoder/internal/config"
	"github.com/Cyclone1070/aicoder/internal/provider/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestNew_BuildsEachType(t *testing.T) {
	vars := env(map[string]string{
		"GEMINI_API_KEY":    "g",
		"ANTHROPIC_API_KEY": "a",
		"OPENAI_API_KEY":    "o",
	})

	for _, typ := range Types() {
		t.Run(typ, func(t *testing.T) {
			p, err := New(context.Background(), config.ProviderConfig{Type: typ}, vars, nil)

			require.NoError(t, err)
			assert.Equal(t, typ, p.Name())
		})
	}
}

func TestNew_CustomKeyEnv(t *testing.T) {
	p, err := New(context.Background(), config.ProviderConfig{Type: "OpenAI", APIKeyEnv: "MY_KEY"}, env(map[string]string{"MY_KEY": "k"}), nil)

	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
}

func TestNew_MissingKey(t *testing.T) {
	_, err := New(context.Background(), config.ProviderConfig{Type: "anthropic"}, env(nil), nil)

	assert.ErrorIs(t, err, models.ErrMissingAPIKey)
	assert.Contains(t, err.Error(), "ANTHROPIC_API_KEY")
}

func TestNew_OllamaNeedsNoKey(t *testing.T) {
	p, err := New(context.Background(), config.ProviderConfig{Type: "ollama", BaseURL: "http://localhost:11434"}, env(nil), nil)

	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())
}

func TestNew_UnknownType(t *testing.T) {
	_, err := New(context.Background(), config.ProviderConfig{Type: "mystery"}, env(nil), nil)

	assert.ErrorIs(t, err, models.ErrUnknownProvider)
}
