// Package openai adapts the OpenAI chat completions API to models.Provider.
// Any OpenAI-compatible endpoint works through provider.baseURL.
package openai

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Cyclone1070/aicoder/internal/logging"
	"github.com/Cyclone1070/aicoder/internal/provider/models"
	"github.com/Cyclone1070/aicoder/internal/tool"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"
)

// DefaultModel is used when the configuration leaves the model empty.
const DefaultModel = "gpt-4o-mini"

// CompletionsClient is the subset of the SDK's chat completion service the provider uses.
type CompletionsClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Dial creates an SDK chat completion client.
func Dial(apiKey, baseURL string) CompletionsClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &client.Chat.Completions
}

// Provider implements models.Provider for OpenAI.
type Provider struct {
	client   CompletionsClient
	settings models.Settings
	logger   *zap.Logger
}

// New creates an OpenAI provider.
func New(client CompletionsClient, settings models.Settings, logger *zap.Logger) *Provider {
	if client == nil {
		panic("client is required")
	}
	if settings.Model == "" {
		settings.Model = DefaultModel
	}
	return &Provider{client: client, settings: settings, logger: logging.OrNop(logger)}
}

// Name returns the provider type.
func (p *Provider) Name() string { return "openai" }

// Generate sends one chat completion request.
func (p *Provider) Generate(ctx context.Context, req *models.Request) (*models.Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(p.settings.Model),
		Messages:    toMessages(req.System, req.Messages),
		Temperature: openai.Float(float64(p.settings.TemperatureFor(req))),
	}
	if n := p.settings.MaxTokensFor(req); n > 0 {
		params.MaxCompletionTokens = openai.Int(int64(n))
	}
	if len(req.Tools) > 0 {
		params.Tools = toTools(req.Tools)
	}

	completion, err := p.client.New(ctx, params)
	if err != nil {
		p.logger.Debug("openai request failed", zap.String("model", p.settings.Model), zap.Error(err))
		return nil, mapError(err)
	}
	return fromCompletion(completion, p.settings.Model)
}

// toMessages converts conversation messages, putting the system prompt first.
func toMessages(system string, messages []models.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	if system != "" {
		out = append(out, openai.SystemMessage(system))
	}

	for _, msg := range messages {
		switch msg.Role {
		case models.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case models.RoleTool:
			out = append(out, openai.ToolMessage(msg.Content, msg.ToolCallID))
		case models.RoleAssistant:
			if len(msg.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(msg.Content))
				continue
			}
			assistant := &openai.ChatCompletionAssistantMessageParam{}
			if msg.Content != "" {
				assistant.Content.OfString = openai.String(msg.Content)
			}
			for _, tc := range msg.ToolCalls {
				args, err := json.Marshal(tc.Args)
				if err != nil || tc.Args == nil {
					args = []byte("{}")
				}
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.Name,
							Arguments: string(args),
						},
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: assistant})
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}

// toTools converts tool declarations to function tools.
func toTools(decls []tool.Declaration) []openai.ChatCompletionToolUnionParam {
	result := make([]openai.ChatCompletionToolUnionParam, len(decls))
	for i, d := range decls {
		result[i] = openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        d.Name,
			Description: openai.String(d.Description),
			Parameters:  openai.FunctionParameters(d.Parameters.Map()),
		})
	}
	return result
}

// fromCompletion converts the first choice into the provider response.
func fromCompletion(completion *openai.ChatCompletion, modelUsed string) (*models.Response, error) {
	if completion == nil || len(completion.Choices) == 0 {
		return nil, &models.ProviderError{Code: models.ErrorCodeEmptyResponse, Message: "no choices in response"}
	}

	choice := completion.Choices[0]
	out := models.Message{Role: models.RoleAssistant, Content: choice.Message.Content}
	for _, tc := range choice.Message.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, &models.ProviderError{
					Code:       models.ErrorCodeInvalidRequest,
					Message:    "malformed tool arguments for " + tc.Function.Name,
					Underlying: err,
				}
			}
		}
		out.ToolCalls = append(out.ToolCalls, models.ToolCall{ID: tc.ID, Name: tc.Function.Name, Args: args})
	}

	resp := &models.Response{
		Message: out,
		Model:   modelUsed,
		Usage: models.Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}

	switch choice.FinishReason {
	case "length":
		return resp, &models.ProviderError{Code: models.ErrorCodeContextLength, Message: "response truncated due to max tokens"}
	case "content_filter":
		return nil, &models.ProviderError{Code: models.ErrorCodeContentBlocked, Message: "content blocked by safety filters"}
	}
	return resp, nil
}

// mapError maps SDK errors to provider errors.
func mapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return models.FromStatus(apiErr.StatusCode, apiErr.Message, err)
	}
	return models.Classify(err)
}
