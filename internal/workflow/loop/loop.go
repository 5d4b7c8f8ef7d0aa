// Package loop implements the bounded plan-act-observe orchestrator used for
// autonomous goal runs.
package loop

import (
	"context"
	"fmt"

	"github.com/Cyclone1070/aicoder/internal/logging"
	"github.com/Cyclone1070/aicoder/internal/provider/models"
	"github.com/Cyclone1070/aicoder/internal/workflow"
	"go.uber.org/zap"
)

// Stop reasons reported in the transcript.
const (
	StopModel         = "model_stop"
	StopMaxIterations = "max_iterations"
	StopCancelled     = "cancelled"
	StopError         = "provider_error"
)

// Loop alternates model calls and tool execution until the model stops
// calling tools or the iteration budget runs out.
type Loop struct {
	provider llmProvider
	tools    toolManager
	logger   *zap.Logger
}

// NewLoop creates a Loop.
func NewLoop(provider llmProvider, tools toolManager, logger *zap.Logger) *Loop {
	if provider == nil {
		panic("provider is required")
	}
	if tools == nil {
		panic("tool manager is required")
	}
	return &Loop{provider: provider, tools: tools, logger: logging.OrNop(logger)}
}

var _ workflow.Orchestrator = (*Loop)(nil)

// Run executes req. The returned transcript starts with req.Messages and is
// returned even when err is non-nil.
func (l *Loop) Run(ctx context.Context, req workflow.OrchestratorRequest) (*workflow.Transcript, error) {
	emit := func(e workflow.Event) {
		if req.OnEvent != nil {
			req.OnEvent(e)
		}
	}

	maxIters := req.MaxIterations
	if maxIters <= 0 {
		maxIters = workflow.DefaultMaxIters
	}

	transcript := &workflow.Transcript{
		Messages: append([]models.Message(nil), req.Messages...),
	}
	defer func() {
		emit(workflow.DoneEvent{StopReason: transcript.StopReason, Iterations: transcript.Iterations})
	}()

	for i := 1; i <= maxIters; i++ {
		if err := ctx.Err(); err != nil {
			transcript.StopReason = StopCancelled
			return transcript, err
		}

		transcript.Iterations = i
		emit(workflow.IterationEvent{Iteration: i, Max: maxIters})

		resp, err := l.provider.Generate(ctx, &models.Request{
			System:   req.System,
			Messages: transcript.Messages,
			Tools:    req.Tools,
		})
		if err != nil {
			transcript.StopReason = StopError
			if ctx.Err() != nil {
				transcript.StopReason = StopCancelled
			}
			return transcript, fmt.Errorf("provider.Generate: %w", err)
		}

		msg := resp.Message
		msg.Role = models.RoleAssistant
		assignCallIDs(msg.ToolCalls, i)
		transcript.Messages = append(transcript.Messages, msg)

		if msg.Content != "" {
			emit(workflow.TextEvent{Text: msg.Content})
		}

		if len(msg.ToolCalls) == 0 {
			transcript.Done = true
			transcript.StopReason = StopModel
			l.logger.Debug("model stopped calling tools", zap.Int("iteration", i))
			return transcript, nil
		}

		for _, tc := range msg.ToolCalls {
			toolResp, err := l.tools.Execute(ctx, tc, emit)
			if err != nil {
				transcript.StopReason = StopCancelled
				return transcript, fmt.Errorf("tools.Execute (%s): %w", tc.Name, err)
			}
			transcript.Messages = append(transcript.Messages, toolResp)
		}
	}

	transcript.StopReason = StopMaxIterations
	l.logger.Info("iteration budget exhausted", zap.Int("maxIters", maxIters))
	return transcript, nil
}

// assignCallIDs fills in IDs for providers that do not return them. Tool
// results are matched to calls by ID downstream.
func assignCallIDs(calls []models.ToolCall, iteration int) {
	for j := range calls {
		if calls[j].ID == "" {
			calls[j].ID = fmt.Sprintf("call_%d_%d", iteration, j+1)
		}
	}
}
