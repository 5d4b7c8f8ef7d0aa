// Package workflow routes queries to prompt agents and drives autonomous,
// tool-using goal runs through an Orchestrator.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Cyclone1070/aicoder/internal/config"
	"github.com/Cyclone1070/aicoder/internal/contextmgr"
	"github.com/Cyclone1070/aicoder/internal/logging"
	"github.com/Cyclone1070/aicoder/internal/provider/models"
	"github.com/Cyclone1070/aicoder/internal/tool"
	"go.uber.org/zap"
)

// ErrNotConfigured is returned when a required collaborator was not supplied.
var ErrNotConfigured = errors.New("workflow not configured")

// DefaultMaxIters bounds a goal run when configuration does not.
const DefaultMaxIters = 6

// GoalSystemPrompt instructs the model for autonomous runs.
const GoalSystemPrompt = `You are an autonomous coding agent working inside the user's project.
Work only through the provided tools: read before you write, and verify with commands or diagnostics after you change code.
Make the smallest change that meets the goal. Do not touch files the goal does not need.
Paths are relative to the workspace root.
When the success criteria are met, reply with a short summary and no tool calls.`

// contextManager is the conversation state the workflow reads and appends to.
type contextManager interface {
	AddMessage(role contextmgr.Role, content string, meta map[string]any)
	GetOptimizedContext(ctx context.Context, query string) string
	ShouldSummarize() bool
	SummarizeConversation()
}

// toolCatalog supplies the tool declarations advertised to the model.
type toolCatalog interface {
	Catalog() []tool.Declaration
}

// OrchestratorRequest is one bounded plan-act-observe run.
type OrchestratorRequest struct {
	System        string
	Messages      []models.Message
	Tools         []tool.Declaration
	MaxIterations int
	OnEvent       func(Event)
}

// Transcript is the outcome of an orchestrator run, seed messages included.
type Transcript struct {
	Messages   []models.Message
	Done       bool
	StopReason string
	Iterations int
}

// Orchestrator runs the tool-use loop.
type Orchestrator interface {
	Run(ctx context.Context, req OrchestratorRequest) (*Transcript, error)
}

// Deps are the collaborators of a Workflow. Registry, Orchestrator and
// Provider are optional; operations that need them fail with ErrNotConfigured.
type Deps struct {
	Context      contextManager
	Registry     toolCatalog
	Orchestrator Orchestrator
	Provider     models.Provider
	Config       config.Source
	Logger       *zap.Logger
}

// Result is the outcome of ExecuteWorkflow.
type Result struct {
	Intent Intent
	Prompt string
}

// GoalResult is the outcome of RunGoal.
type GoalResult struct {
	Done       bool
	StopReason string
	Messages   []models.Message
}

// Workflow composes context management, intent routing and tool orchestration.
type Workflow struct {
	cm           contextManager
	registry     toolCatalog
	orchestrator Orchestrator
	provider     models.Provider
	config       config.Source
	logger       *zap.Logger
}

// New creates a Workflow. Context is required.
func New(deps Deps) *Workflow {
	if deps.Context == nil {
		panic("context manager is required")
	}
	if deps.Config == nil {
		deps.Config = config.NewStaticSource(nil)
	}
	return &Workflow{
		cm:           deps.Context,
		registry:     deps.Registry,
		orchestrator: deps.Orchestrator,
		provider:     deps.Provider,
		config:       deps.Config,
		logger:       logging.OrNop(deps.Logger),
	}
}

// ExecuteWorkflow classifies query, builds the budgeted context and returns
// the specialised prompt. The prompt is recorded as an assistant message; it is
// not sent anywhere.
func (w *Workflow) ExecuteWorkflow(ctx context.Context, query string) Result {
	intent := AnalyzeIntent(query)
	budgeted := w.cm.GetOptimizedContext(ctx, query)

	w.cm.AddMessage(contextmgr.RoleUser, query, nil)
	prompt := AgentFor(intent).Execute(query, budgeted)
	w.cm.AddMessage(contextmgr.RoleAssistant, prompt, map[string]any{"intent": string(intent)})

	w.maybeSummarize()
	w.logger.Debug("workflow executed", zap.String("intent", string(intent)), zap.Int("promptChars", len(prompt)))
	return Result{Intent: intent, Prompt: prompt}
}

// Ask routes query through ExecuteWorkflow, sends the prompt to the provider
// and records the reply.
func (w *Workflow) Ask(ctx context.Context, query string) (string, error) {
	if w.provider == nil {
		return "", fmt.Errorf("%w: no provider", ErrNotConfigured)
	}

	res := w.ExecuteWorkflow(ctx, query)
	resp, err := w.provider.Generate(ctx, models.UserText("", res.Prompt))
	if err != nil && (resp == nil || resp.Message.Content == "") {
		return "", err
	}

	reply := resp.Message.Content
	w.cm.AddMessage(contextmgr.RoleAssistant, reply, map[string]any{"provider": w.provider.Name()})
	w.maybeSummarize()
	return reply, err
}

// RunGoal drives the orchestrator towards goal and replays the resulting
// transcript into the conversation history. onProgress may be nil.
func (w *Workflow) RunGoal(ctx context.Context, goal, successCriteria string, onProgress func(string)) (GoalResult, error) {
	if w.registry == nil {
		return GoalResult{}, fmt.Errorf("%w: no tool registry", ErrNotConfigured)
	}
	if w.orchestrator == nil {
		return GoalResult{}, fmt.Errorf("%w: no orchestrator", ErrNotConfigured)
	}
	if onProgress == nil {
		onProgress = func(string) {}
	}

	maxIters := w.maxIters()
	seed := buildSeed(w.cm.GetOptimizedContext(ctx, goal), goal, successCriteria)

	onProgress(fmt.Sprintf("Starting autonomous run (max %d iterations): %s", maxIters, goal))
	w.logger.Info("goal started", zap.String("goal", goal), zap.Int("maxIters", maxIters))

	transcript, err := w.orchestrator.Run(ctx, OrchestratorRequest{
		System:        GoalSystemPrompt,
		Messages:      []models.Message{{Role: models.RoleUser, Content: seed}},
		Tools:         w.registry.Catalog(),
		MaxIterations: maxIters,
		OnEvent: func(e Event) {
			onProgress(e.String())
		},
	})

	var result GoalResult
	if transcript != nil {
		w.replay(transcript.Messages)
		result = GoalResult{Done: transcript.Done, StopReason: transcript.StopReason, Messages: transcript.Messages}
	}

	if err != nil {
		onProgress("Autonomous run failed: " + err.Error())
		w.logger.Warn("goal failed", zap.String("goal", goal), zap.Error(err))
		return result, fmt.Errorf("run goal: %w", err)
	}

	onProgress(fmt.Sprintf("Autonomous run finished: done=%t (%s)", result.Done, result.StopReason))
	w.logger.Info("goal finished", zap.Bool("done", result.Done), zap.String("stopReason", result.StopReason))
	return result, nil
}

func (w *Workflow) maxIters() int {
	cfg, err := w.config.Current()
	if err != nil {
		w.logger.Warn("config unavailable, using default iteration budget", zap.Error(err))
		return DefaultMaxIters
	}
	if cfg.Workflow.MaxIters <= 0 {
		return DefaultMaxIters
	}
	return cfg.Workflow.MaxIters
}

func (w *Workflow) maybeSummarize() {
	if w.cm.ShouldSummarize() {
		w.cm.SummarizeConversation()
	}
}

// replay appends transcript messages to the history in order.
func (w *Workflow) replay(messages []models.Message) {
	for _, m := range messages {
		role, content, meta := replayEntry(m)
		w.cm.AddMessage(role, content, meta)
	}
}

// replayEntry flattens a provider message into history text. Structured parts
// (tool calls) are serialised as JSON.
func replayEntry(m models.Message) (contextmgr.Role, string, map[string]any) {
	meta := map[string]any{"source": "goal"}

	switch m.Role {
	case models.RoleTool:
		meta["tool"] = m.ToolName
		if m.ToolCallID != "" {
			meta["toolCallId"] = m.ToolCallID
		}
		return contextmgr.RoleTool, m.Content, meta
	case models.RoleAssistant:
		content := m.Content
		if len(m.ToolCalls) > 0 {
			calls, err := json.Marshal(m.ToolCalls)
			if err == nil {
				if content != "" {
					content += "\n"
				}
				content += string(calls)
			}
		}
		return contextmgr.RoleAssistant, content, meta
	case models.RoleSystem:
		return contextmgr.RoleSystem, m.Content, meta
	default:
		return contextmgr.RoleUser, m.Content, meta
	}
}

func buildSeed(budgeted, goal, successCriteria string) string {
	var b strings.Builder
	if strings.TrimSpace(budgeted) != "" {
		b.WriteString("Current context:\n")
		b.WriteString(budgeted)
		b.WriteString("\n\n")
	}
	b.WriteString("Goal:\n")
	b.WriteString(goal)
	b.WriteString("\n\nSuccess criteria:\n")
	if strings.TrimSpace(successCriteria) == "" {
		b.WriteString("The goal is fully accomplished and the project still builds.")
	} else {
		b.WriteString(successCriteria)
	}
	return b.String()
}
