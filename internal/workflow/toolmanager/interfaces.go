package toolmanager

import (
	"context"

	"github.com/Cyclone1070/aicoder/internal/tool"
)

// toolRegistry is the subset of tool.Registry the manager dispatches through.
type toolRegistry interface {
	// Catalog returns all tool schemas for the LLM.
	Catalog() []tool.Declaration

	// Has reports whether a tool with this name is registered.
	Has(name string) bool

	// Call runs a tool. Failures are reported in the Result, never as panics.
	Call(ctx context.Context, name string, args map[string]any) tool.Result
}
