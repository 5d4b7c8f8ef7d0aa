package gemini

import (
	"errors"
	"strings"
	"time"

	"github.com/Cyclone1070/aicoder/internal/provider/models"
	"github.com/Cyclone1070/aicoder/internal/tool"
	"google.golang.org/genai"
)

// toGeminiContents converts conversation messages to Gemini Content format.
func toGeminiContents(messages []models.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		if content := messageToGeminiContent(msg); content != nil {
			contents = append(contents, content)
		}
	}
	return contents
}

// messageToGeminiContent converts a single message to Gemini Content format.
func messageToGeminiContent(msg models.Message) *genai.Content {
	role := string(genai.RoleUser)
	if msg.Role == models.RoleAssistant {
		role = string(genai.RoleModel)
	}

	parts := make([]*genai.Part, 0, 1+len(msg.ToolCalls))

	// Tool results travel as function responses on the user side
	if msg.Role == models.RoleTool {
		parts = append(parts, &genai.Part{
			FunctionResponse: &genai.FunctionResponse{
				ID:       msg.ToolCallID,
				Name:     msg.ToolName,
				Response: map[string]any{"content": msg.Content},
			},
		})
		return &genai.Content{Role: role, Parts: parts}
	}

	if msg.Content != "" {
		parts = append(parts, genai.NewPartFromText(msg.Content))
	}
	for _, tc := range msg.ToolCalls {
		parts = append(parts, &genai.Part{
			FunctionCall: &genai.FunctionCall{
				ID:   tc.ID,
				Name: tc.Name,
				Args: tc.Args,
			},
		})
	}

	// Skip empty messages
	if len(parts) == 0 {
		return nil
	}
	return &genai.Content{Role: role, Parts: parts}
}

// toGeminiConfig builds the generation config for a request.
func toGeminiConfig(req *models.Request, settings models.Settings) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		SafetySettings: defaultSafetySettings(),
		Temperature:    genai.Ptr(settings.TemperatureFor(req)),
	}
	if n := settings.MaxTokensFor(req); n > 0 {
		config.MaxOutputTokens = int32(n)
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if len(req.Tools) > 0 {
		config.Tools = toGeminiTools(req.Tools)
	}
	return config
}

// defaultSafetySettings returns safety settings with the threshold off for all categories.
func defaultSafetySettings() []*genai.SafetySetting {
	return []*genai.SafetySetting{
		{
			Category:  genai.HarmCategoryHateSpeech,
			Threshold: genai.HarmBlockThresholdOff,
		},
		{
			Category:  genai.HarmCategoryDangerousContent,
			Threshold: genai.HarmBlockThresholdOff,
		},
		{
			Category:  genai.HarmCategoryHarassment,
			Threshold: genai.HarmBlockThresholdOff,
		},
		{
			Category:  genai.HarmCategorySexuallyExplicit,
			Threshold: genai.HarmBlockThresholdOff,
		},
	}
}

// toGeminiTools converts tool declarations to Gemini tools.
func toGeminiTools(decls []tool.Declaration) []*genai.Tool {
	functionDeclarations := make([]*genai.FunctionDeclaration, 0, len(decls))
	for _, d := range decls {
		fd := &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
		}
		if d.Parameters != nil {
			fd.Parameters = toGeminiSchema(d.Parameters)
		}
		functionDeclarations = append(functionDeclarations, fd)
	}
	return []*genai.Tool{{FunctionDeclarations: functionDeclarations}}
}

// toGeminiSchema converts a tool schema to a Gemini schema, recursing into properties and items.
func toGeminiSchema(s *tool.Schema) *genai.Schema {
	schema := &genai.Schema{
		Type:        toGeminiType(s.Type),
		Description: s.Description,
	}
	if len(s.Enum) > 0 {
		schema.Enum = s.Enum
	}
	if len(s.Properties) > 0 {
		schema.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			schema.Properties[name] = toGeminiSchema(prop)
		}
	}
	if s.Items != nil {
		schema.Items = toGeminiSchema(s.Items)
	}
	if len(s.Required) > 0 {
		schema.Required = s.Required
	}
	return schema
}

// toGeminiType converts a schema type to a Gemini Type.
func toGeminiType(t tool.Type) genai.Type {
	switch t {
	case tool.TypeString:
		return genai.TypeString
	case tool.TypeNumber:
		return genai.TypeNumber
	case tool.TypeInteger:
		return genai.TypeInteger
	case tool.TypeBoolean:
		return genai.TypeBoolean
	case tool.TypeArray:
		return genai.TypeArray
	case tool.TypeObject:
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

// fromGeminiResponse converts a Gemini response to the provider format.
func fromGeminiResponse(resp *genai.GenerateContentResponse, modelUsed string) (*models.Response, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, &models.ProviderError{
			Code:    models.ErrorCodeEmptyResponse,
			Message: "no candidates in response",
		}
	}

	candidate := resp.Candidates[0]

	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, &models.ProviderError{
			Code:    models.ErrorCodeContentBlocked,
			Message: "content blocked by safety filters",
		}
	}

	msg := models.Message{Role: models.RoleAssistant}
	if candidate.Content != nil {
		var text strings.Builder
		for _, part := range candidate.Content.Parts {
			if part.FunctionCall != nil {
				msg.ToolCalls = append(msg.ToolCalls, models.ToolCall{
					ID:   part.FunctionCall.ID,
					Name: part.FunctionCall.Name,
					Args: part.FunctionCall.Args,
				})
				continue
			}
			text.WriteString(part.Text)
		}
		msg.Content = text.String()
	}

	out := &models.Response{Message: msg, Model: modelUsed}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = models.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}

	// A truncated reply is still returned so the caller can show partial text
	if candidate.FinishReason == genai.FinishReasonMaxTokens {
		return out, &models.ProviderError{
			Code:    models.ErrorCodeContextLength,
			Message: "response truncated due to max tokens",
		}
	}
	return out, nil
}

// mapGeminiError maps Gemini API errors to provider errors.
func mapGeminiError(err error) error {
	if err == nil {
		return nil
	}

	apiErr, ok := asAPIError(err)
	if !ok {
		return models.Classify(err)
	}

	pe := models.FromStatus(apiErr.Code, apiErr.Message, err)
	if pe.Code == models.ErrorCodeRateLimit {
		pe.RetryAfter = parseRetryAfter(apiErr)
	}
	return pe
}

func asAPIError(err error) (*genai.APIError, bool) {
	var ptr *genai.APIError
	if errors.As(err, &ptr) {
		return ptr, true
	}
	var val genai.APIError
	if errors.As(err, &val) {
		return &val, true
	}
	return nil, false
}

// parseRetryAfter reads the RetryInfo detail attached to 429 responses.
func parseRetryAfter(apiErr *genai.APIError) *time.Duration {
	for _, detail := range apiErr.Details {
		typ, _ := detail["@type"].(string)
		if !strings.HasSuffix(typ, "RetryInfo") {
			continue
		}
		raw, _ := detail["retryDelay"].(string)
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil
		}
		return &d
	}
	return nil
}
