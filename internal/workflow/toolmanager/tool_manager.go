package toolmanager

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Cyclone1070/aicoder/internal/logging"
	"github.com/Cyclone1070/aicoder/internal/provider/models"
	"github.com/Cyclone1070/aicoder/internal/tool"
	"github.com/Cyclone1070/aicoder/internal/workflow"
	"go.uber.org/zap"
)

// ToolManager turns model tool calls into tool messages.
type ToolManager struct {
	registry toolRegistry
	logger   *zap.Logger
}

// NewToolManager creates a manager over registry.
func NewToolManager(registry toolRegistry, logger *zap.Logger) *ToolManager {
	if registry == nil {
		panic("registry is required")
	}
	return &ToolManager{registry: registry, logger: logging.OrNop(logger)}
}

// Declarations returns the registry catalog.
func (m *ToolManager) Declarations() []tool.Declaration {
	return m.registry.Catalog()
}

// Execute runs tc and returns the tool message for the transcript. The tool
// result is serialized as JSON. Unknown tools are answered with the list of
// available tools so the model can correct itself. onEvent may be nil.
//
// The only error returned is context cancellation.
func (m *ToolManager) Execute(ctx context.Context, tc models.ToolCall, onEvent func(workflow.Event)) (models.Message, error) {
	emit := func(e workflow.Event) {
		if onEvent != nil {
			onEvent(e)
		}
	}

	if !m.registry.Has(tc.Name) {
		declsJSON, _ := json.MarshalIndent(m.Declarations(), "", "  ")
		errMsg := fmt.Sprintf("Error: tool %q does not exist.\n\nAvailable tools:\n%s", tc.Name, declsJSON)

		emit(workflow.ToolStartEvent{ToolName: tc.Name})
		emit(workflow.ToolEndEvent{ToolName: tc.Name, Error: "unknown tool"})
		m.logger.Warn("model requested unknown tool", zap.String("tool", tc.Name))

		return toolMessage(tc, errMsg), nil
	}

	display := ""
	if len(tc.Args) > 0 {
		if raw, err := json.Marshal(tc.Args); err == nil {
			display = string(raw)
		}
	}
	emit(workflow.ToolStartEvent{ToolName: tc.Name, RequestDisplay: display})

	res := m.registry.Call(ctx, tc.Name, tc.Args)
	emit(workflow.ToolEndEvent{ToolName: tc.Name, OK: res.OK, Error: res.Error})

	if err := ctx.Err(); err != nil {
		return models.Message{}, err
	}

	content, err := json.Marshal(res)
	if err != nil {
		// Meta holds something JSON cannot encode; keep the text parts
		content, _ = json.Marshal(tool.Result{OK: res.OK, Output: res.Output, Error: res.Error})
	}
	return toolMessage(tc, string(content)), nil
}

func toolMessage(tc models.ToolCall, content string) models.Message {
	return models.Message{
		Role:       models.RoleTool,
		ToolCallID: tc.ID,
		ToolName:   tc.Name,
		Content:    content,
	}
}
