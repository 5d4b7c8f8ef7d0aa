package gemini

import (
	"context"

	"github.com/Cyclone1070/aicoder/internal/logging"
	"github.com/Cyclone1070/aicoder/internal/provider/models"
	"go.uber.org/zap"
)

// DefaultModel is used when the configuration leaves the model empty.
const DefaultModel = "gemini-2.5-flash"

// Provider implements models.Provider for Google Gemini.
type Provider struct {
	client   GeminiClient
	settings models.Settings
	logger   *zap.Logger
}

// New creates a Gemini provider.
func New(client GeminiClient, settings models.Settings, logger *zap.Logger) *Provider {
	if client == nil {
		panic("client is required")
	}
	if settings.Model == "" {
		settings.Model = DefaultModel
	}
	return &Provider{client: client, settings: settings, logger: logging.OrNop(logger)}
}

// Name returns the provider type.
func (p *Provider) Name() string { return "gemini" }

// Generate sends a request to the Gemini API and returns the response.
func (p *Provider) Generate(ctx context.Context, req *models.Request) (*models.Response, error) {
	contents := toGeminiContents(req.Messages)
	config := toGeminiConfig(req, p.settings)

	resp, err := p.client.GenerateContent(ctx, p.settings.Model, contents, config)
	if err != nil {
		p.logger.Debug("gemini request failed", zap.String("model", p.settings.Model), zap.Error(err))
		return nil, mapGeminiError(err)
	}

	return fromGeminiResponse(resp, p.settings.Model)
}
