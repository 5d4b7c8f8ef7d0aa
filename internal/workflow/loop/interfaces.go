package loop

import (
	"context"

	"github.com/Cyclone1070/aicoder/internal/provider/models"
	"github.com/Cyclone1070/aicoder/internal/workflow"
)

// llmProvider communicates with an LLM.
type llmProvider interface {
	// Generate sends the request to the LLM and returns its response.
	Generate(ctx context.Context, req *models.Request) (*models.Response, error)
}

// toolManager executes tool calls.
type toolManager interface {
	// Execute runs a tool call and returns the result as a tool message.
	// It emits ToolStartEvent and ToolEndEvent through onEvent.
	Execute(ctx context.Context, tc models.ToolCall, onEvent func(workflow.Event)) (models.Message, error)
}
