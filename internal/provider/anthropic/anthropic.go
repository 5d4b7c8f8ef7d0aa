// Package anthropic adapts the Anthropic Messages API to models.Provider.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/Cyclone1070/aicoder/internal/logging"
	"github.com/Cyclone1070/aicoder/internal/provider/models"
	"github.com/Cyclone1070/aicoder/internal/tool"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

const (
	// DefaultModel is used when the configuration leaves the model empty.
	DefaultModel = string(anthropic.ModelClaudeSonnet4_5_20250929)
	// defaultMaxTokens is sent when neither the request nor the settings set one; the API requires it.
	defaultMaxTokens = 4096
)

// MessagesClient is the subset of the SDK's message service the provider uses.
type MessagesClient interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Dial creates an SDK message client.
func Dial(apiKey, baseURL string) MessagesClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(opts...)
	return &client.Messages
}

// Provider implements models.Provider for Anthropic.
type Provider struct {
	client   MessagesClient
	settings models.Settings
	logger   *zap.Logger
}

// New creates an Anthropic provider.
func New(client MessagesClient, settings models.Settings, logger *zap.Logger) *Provider {
	if client == nil {
		panic("client is required")
	}
	if settings.Model == "" {
		settings.Model = DefaultModel
	}
	return &Provider{client: client, settings: settings, logger: logging.OrNop(logger)}
}

// Name returns the provider type.
func (p *Provider) Name() string { return "anthropic" }

// Generate sends one Messages API request.
func (p *Provider) Generate(ctx context.Context, req *models.Request) (*models.Response, error) {
	maxTokens := p.settings.MaxTokensFor(req)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.settings.Model),
		Messages:    toMessages(req.Messages),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(float64(p.settings.TemperatureFor(req))),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		params.Tools = toTools(req.Tools)
	}

	msg, err := p.client.New(ctx, params)
	if err != nil {
		p.logger.Debug("anthropic request failed", zap.String("model", p.settings.Model), zap.Error(err))
		return nil, mapError(err)
	}
	return fromMessage(msg, p.settings.Model)
}

// toMessages converts conversation messages. Consecutive tool results are
// folded into one user turn because the API expects them together.
func toMessages(messages []models.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	var pendingResults []anthropic.ContentBlockParamUnion

	flush := func() {
		if len(pendingResults) > 0 {
			out = append(out, anthropic.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for _, msg := range messages {
		switch msg.Role {
		case models.RoleTool:
			pendingResults = append(pendingResults, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false))
		case models.RoleAssistant:
			flush()
			blocks := make([]anthropic.ContentBlockParamUnion, 0, 1+len(msg.ToolCalls))
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				args := tc.Args
				if args == nil {
					args = map[string]any{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, args, tc.Name))
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		default:
			flush()
			if msg.Content != "" {
				out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
			}
		}
	}
	flush()
	return out
}

// toTools converts tool declarations to Anthropic tool params.
func toTools(decls []tool.Declaration) []anthropic.ToolUnionParam {
	result := make([]anthropic.ToolUnionParam, len(decls))
	for i, d := range decls {
		schema := d.Parameters.Map()
		inputSchema := anthropic.ToolInputSchemaParam{
			Properties: schema["properties"],
		}
		if d.Parameters != nil && len(d.Parameters.Required) > 0 {
			inputSchema.Required = d.Parameters.Required
		}

		result[i] = anthropic.ToolUnionParamOfTool(inputSchema, d.Name)
		if d.Description != "" {
			result[i].OfTool.Description = anthropic.String(d.Description)
		}
	}
	return result
}

// fromMessage converts an SDK reply into the provider response.
func fromMessage(msg *anthropic.Message, modelUsed string) (*models.Response, error) {
	if msg == nil {
		return nil, &models.ProviderError{Code: models.ErrorCodeEmptyResponse, Message: "no message in response"}
	}

	out := models.Message{Role: models.RoleAssistant}
	var text strings.Builder
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(b.Text)
		case anthropic.ToolUseBlock:
			var args map[string]any
			if len(b.Input) > 0 {
				if err := json.Unmarshal(b.Input, &args); err != nil {
					return nil, &models.ProviderError{
						Code:       models.ErrorCodeInvalidRequest,
						Message:    "malformed tool input for " + b.Name,
						Underlying: err,
					}
				}
			}
			out.ToolCalls = append(out.ToolCalls, models.ToolCall{ID: b.ID, Name: b.Name, Args: args})
		}
	}
	out.Content = text.String()

	resp := &models.Response{
		Message: out,
		Model:   modelUsed,
		Usage: models.Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}

	if msg.StopReason == anthropic.StopReasonMaxTokens {
		return resp, &models.ProviderError{
			Code:    models.ErrorCodeContextLength,
			Message: "response truncated due to max tokens",
		}
	}
	return resp, nil
}

// mapError maps SDK errors to provider errors.
func mapError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return models.FromStatus(apiErr.StatusCode, "", err)
	}
	return models.Classify(err)
}
