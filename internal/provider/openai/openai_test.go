package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Cyclone1070/aicoder/internal/provider/models"
	"github.com/Cyclone1070/aicoder/internal/tool"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCompletionsClient struct {
	newFunc func(ctx context.Context, body openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

func (m *mockCompletionsClient) New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	if m.newFunc != nil {
		return m.newFunc(ctx, body)
	}
	return nil, errors.New("newFunc not set")
}

func decodeCompletion(t *testing.T, raw string) *openai.ChatCompletion {
	t.Helper()
	var c openai.ChatCompletion
	require.NoError(t, json.Unmarshal([]byte(raw), &c))
	return &c
}

// --- HAPPY PATH TESTS ---

func TestGenerate_Text(t *testing.T) {
	var got openai.ChatCompletionNewParams
	client := &mockCompletionsClient{
		newFunc: func(ctx context.Context, body openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
			got = body
			return decodeCompletion(t, `{
				"id": "c1", "object": "chat.completion", "created": 1, "model": "gpt-test",
				"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Hi!"}}],
				"usage": {"prompt_tokens": 4, "completion_tokens": 2, "total_tokens": 6}
			}`), nil
		},
	}

	p := New(client, models.Settings{Model: "gpt-test", MaxTokens: 256}, nil)
	resp, err := p.Generate(context.Background(), models.UserText("sys", "hello"))

	require.NoError(t, err)
	assert.Equal(t, "Hi!", resp.Message.Content)
	assert.Equal(t, 6, resp.Usage.TotalTokens)
	assert.Equal(t, openai.ChatModel("gpt-test"), got.Model)
	require.Len(t, got.Messages, 2)
	assert.NotNil(t, got.Messages[0].OfSystem)
	assert.NotNil(t, got.Messages[1].OfUser)
	assert.Equal(t, int64(256), got.MaxCompletionTokens.Value)
	assert.Equal(t, "openai", p.Name())
}

func TestGenerate_ToolCalls(t *testing.T) {
	client := &mockCompletionsClient{
		newFunc: func(ctx context.Context, body openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
			require.Len(t, body.Tools, 1)
			fn := body.Tools[0].OfFunction
			require.NotNil(t, fn)
			assert.Equal(t, "search_in_workspace", fn.Function.Name)
			assert.Equal(t, "object", fn.Function.Parameters["type"])

			return decodeCompletion(t, `{
				"id": "c2", "object": "chat.completion", "created": 1, "model": "gpt-test",
				"choices": [{"index": 0, "finish_reason": "tool_calls", "message": {
					"role": "assistant", "content": "",
					"tool_calls": [{"id": "call_1", "type": "function", "function": {"name": "search_in_workspace", "arguments": "{\"query\":\"TODO\"}"}}]
				}}]
			}`), nil
		},
	}

	req := models.UserText("", "find todos")
	req.Tools = []tool.Declaration{{
		Name:        "search_in_workspace",
		Description: "Search",
		Parameters:  tool.Object(map[string]*tool.Schema{"query": tool.Prop(tool.TypeString, "regex")}, "query"),
	}}

	resp, err := New(client, models.Settings{}, nil).Generate(context.Background(), req)

	require.NoError(t, err)
	require.Len(t, resp.Message.ToolCalls, 1)
	assert.Equal(t, models.ToolCall{ID: "call_1", Name: "search_in_workspace", Args: map[string]any{"query": "TODO"}}, resp.Message.ToolCalls[0])
}

func TestToMessages_ToolRoundTrip(t *testing.T) {
	params := toMessages("", []models.Message{
		{Role: models.RoleUser, Content: "go"},
		{Role: models.RoleAssistant, ToolCalls: []models.ToolCall{{ID: "call_1", Name: "git_status"}}},
		{Role: models.RoleTool, ToolCallID: "call_1", ToolName: "git_status", Content: "clean"},
		{Role: models.RoleAssistant, Content: "done"},
	})

	require.Len(t, params, 4)
	require.NotNil(t, params[1].OfAssistant)
	require.Len(t, params[1].OfAssistant.ToolCalls, 1)
	fn := params[1].OfAssistant.ToolCalls[0].OfFunction
	assert.Equal(t, "call_1", fn.ID)
	assert.Equal(t, "git_status", fn.Function.Name)
	assert.Equal(t, "{}", fn.Function.Arguments)
	require.NotNil(t, params[2].OfTool)
	assert.Equal(t, "call_1", params[2].OfTool.ToolCallID)
	assert.NotNil(t, params[3].OfAssistant)
}

// --- ERROR PATH TESTS ---

func TestGenerate_StatusErrors(t *testing.T) {
	tests := []struct {
		status   int
		sentinel error
	}{
		{http.StatusUnauthorized, models.ErrAuthentication},
		{http.StatusForbidden, models.ErrPermissionDenied},
		{http.StatusProxyAuthRequired, models.ErrProxyAuth},
		{http.StatusTooManyRequests, models.ErrRateLimit},
		{http.StatusBadGateway, models.ErrServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			client := &mockCompletionsClient{
				newFunc: func(ctx context.Context, body openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
					return nil, &openai.Error{
						StatusCode: tt.status,
						Request:    httptest.NewRequest(http.MethodPost, "https://api.openai.com/v1/chat/completions", nil),
						Response:   &http.Response{StatusCode: tt.status},
					}
				},
			}

			_, err := New(client, models.Settings{}, nil).Generate(context.Background(), models.UserText("", "x"))
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestGenerate_EmptyChoices(t *testing.T) {
	client := &mockCompletionsClient{
		newFunc: func(ctx context.Context, body openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
			return &openai.ChatCompletion{}, nil
		},
	}

	_, err := New(client, models.Settings{}, nil).Generate(context.Background(), models.UserText("", "x"))
	assert.ErrorIs(t, err, models.ErrEmptyResponse)
}

func TestGenerate_LengthFinish(t *testing.T) {
	client := &mockCompletionsClient{
		newFunc: func(ctx context.Context, body openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
			return decodeCompletion(t, `{
				"id": "c3", "object": "chat.completion", "created": 1, "model": "gpt-test",
				"choices": [{"index": 0, "finish_reason": "length", "message": {"role": "assistant", "content": "cut"}}]
			}`), nil
		},
	}

	resp, err := New(client, models.Settings{}, nil).Generate(context.Background(), models.UserText("", "x"))

	assert.ErrorIs(t, err, models.ErrContextLengthExceeded)
	require.NotNil(t, resp)
	assert.Equal(t, "cut", resp.Message.Content)
}
