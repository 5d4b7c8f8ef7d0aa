package workflow

import (
	"fmt"
	"strings"
)

// Event is emitted while an autonomous run progresses.
// String renders the human-readable progress line.
type Event interface {
	isEvent()
	String() string
}

// IterationEvent is emitted before each model call.
type IterationEvent struct {
	Iteration int
	Max       int
}

func (IterationEvent) isEvent() {}

func (e IterationEvent) String() string {
	return fmt.Sprintf("iteration %d/%d: thinking", e.Iteration, e.Max)
}

// TextEvent is emitted when the LLM produces text output.
type TextEvent struct {
	Text string
}

func (TextEvent) isEvent() {}

func (e TextEvent) String() string {
	return "model: " + firstLine(e.Text, 160)
}

// ToolStartEvent is emitted when a tool execution begins.
type ToolStartEvent struct {
	ToolName       string
	RequestDisplay string // e.g., `{"path":"main.go"}`
}

func (ToolStartEvent) isEvent() {}

func (e ToolStartEvent) String() string {
	if e.RequestDisplay == "" {
		return "tool " + e.ToolName
	}
	return fmt.Sprintf("tool %s %s", e.ToolName, firstLine(e.RequestDisplay, 120))
}

// ToolEndEvent is emitted when a tool completes.
type ToolEndEvent struct {
	ToolName string
	OK       bool
	Error    string
}

func (ToolEndEvent) isEvent() {}

func (e ToolEndEvent) String() string {
	if e.OK {
		return fmt.Sprintf("tool %s ok", e.ToolName)
	}
	return fmt.Sprintf("tool %s failed: %s", e.ToolName, firstLine(e.Error, 160))
}

// DoneEvent is emitted when the loop completes.
type DoneEvent struct {
	StopReason string
	Iterations int
}

func (DoneEvent) isEvent() {}

func (e DoneEvent) String() string {
	return fmt.Sprintf("loop stopped after %d iteration(s): %s", e.Iterations, e.StopReason)
}

func firstLine(s string, max int) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i] + " ..."
	}
	r := []rune(s)
	if len(r) > max {
		return string(r[:max-3]) + "..."
	}
	return s
}
