// Package ollama adapts a local Ollama server to models.Provider.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Cyclone1070/aicoder/internal/logging"
	"github.com/Cyclone1070/aicoder/internal/provider/models"
	"github.com/Cyclone1070/aicoder/internal/tool"
	"github.com/ollama/ollama/api"
	"go.uber.org/zap"
)

const (
	// DefaultModel is used when the configuration leaves the model empty.
	DefaultModel = "llama3.1:latest"
	// DefaultBaseURL is the address of a local Ollama server.
	DefaultBaseURL = "http://localhost:11434"
)

// ChatClient is the subset of the Ollama API client the provider uses.
type ChatClient interface {
	Chat(ctx context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error
}

// Dial creates an Ollama API client.
func Dial(baseURL string) (ChatClient, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}
	return api.NewClient(parsed, http.DefaultClient), nil
}

// Provider implements models.Provider for Ollama.
type Provider struct {
	client   ChatClient
	settings models.Settings
	logger   *zap.Logger
}

// New creates an Ollama provider.
func New(client ChatClient, settings models.Settings, logger *zap.Logger) *Provider {
	if client == nil {
		panic("client is required")
	}
	if settings.Model == "" {
		settings.Model = DefaultModel
	}
	return &Provider{client: client, settings: settings, logger: logging.OrNop(logger)}
}

// Name returns the provider type.
func (p *Provider) Name() string { return "ollama" }

// Generate sends one non-streaming chat request.
func (p *Provider) Generate(ctx context.Context, req *models.Request) (*models.Response, error) {
	stream := false
	chatReq := &api.ChatRequest{
		Model:    p.settings.Model,
		Messages: toMessages(req.System, req.Messages),
		Stream:   &stream,
		Options: map[string]any{
			"temperature": p.settings.TemperatureFor(req),
		},
	}
	if n := p.settings.MaxTokensFor(req); n > 0 {
		chatReq.Options["num_predict"] = n
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = toTools(req.Tools)
	}

	var (
		content   strings.Builder
		toolCalls []api.ToolCall
		final     api.ChatResponse
	)
	err := p.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		toolCalls = append(toolCalls, resp.Message.ToolCalls...)
		if resp.Done {
			final = resp
		}
		return nil
	})
	if err != nil {
		p.logger.Debug("ollama request failed", zap.String("model", p.settings.Model), zap.Error(err))
		return nil, mapError(err)
	}

	out := models.Message{Role: models.RoleAssistant, Content: content.String()}
	for i, tc := range toolCalls {
		out.ToolCalls = append(out.ToolCalls, models.ToolCall{
			ID:   fmt.Sprintf("call_%d", i),
			Name: tc.Function.Name,
			Args: map[string]any(tc.Function.Arguments),
		})
	}

	resp := &models.Response{
		Message: out,
		Model:   p.settings.Model,
		Usage: models.Usage{
			PromptTokens:     final.PromptEvalCount,
			CompletionTokens: final.EvalCount,
			TotalTokens:      final.PromptEvalCount + final.EvalCount,
		},
	}
	if final.DoneReason == "length" {
		return resp, &models.ProviderError{Code: models.ErrorCodeContextLength, Message: "response truncated due to max tokens"}
	}
	return resp, nil
}

// toMessages converts conversation messages, putting the system prompt first.
func toMessages(system string, messages []models.Message) []api.Message {
	out := make([]api.Message, 0, len(messages)+1)
	if system != "" {
		out = append(out, api.Message{Role: string(models.RoleSystem), Content: system})
	}
	for _, msg := range messages {
		m := api.Message{Role: string(msg.Role), Content: msg.Content}
		if msg.Role == models.RoleTool {
			m.ToolName = msg.ToolName
		}
		for _, tc := range msg.ToolCalls {
			m.ToolCalls = append(m.ToolCalls, api.ToolCall{
				Function: api.ToolCallFunction{
					Name:      tc.Name,
					Arguments: tc.Args,
				},
			})
		}
		out = append(out, m)
	}
	return out
}

// toTools converts tool declarations to Ollama function tools.
func toTools(decls []tool.Declaration) []api.Tool {
	out := make([]api.Tool, 0, len(decls))
	for _, d := range decls {
		params := api.ToolFunctionParameters{
			Type:       string(tool.TypeObject),
			Properties: make(map[string]api.ToolProperty),
		}
		if d.Parameters != nil {
			params.Required = d.Parameters.Required
			for name, prop := range d.Parameters.Properties {
				params.Properties[name] = toProperty(prop)
			}
		}
		out = append(out, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  params,
			},
		})
	}
	return out
}

func toProperty(s *tool.Schema) api.ToolProperty {
	prop := api.ToolProperty{
		Type:        api.PropertyType{string(s.Type)},
		Description: s.Description,
	}
	for _, e := range s.Enum {
		prop.Enum = append(prop.Enum, e)
	}
	if s.Items != nil {
		prop.Items = s.Items.Map()
	}
	return prop
}

// mapError maps Ollama client errors to provider errors.
func mapError(err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return models.FromStatus(statusErr.StatusCode, statusErr.ErrorMessage, err)
	}
	var statusPtr *api.StatusError
	if errors.As(err, &statusPtr) {
		return models.FromStatus(statusPtr.StatusCode, statusPtr.ErrorMessage, err)
	}
	return models.Classify(err)
}
