// Package mcpserver exposes the tool registry to MCP clients over stdio.
package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/Cyclone1070/aicoder/internal/logging"
	"github.com/Cyclone1070/aicoder/internal/tool"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// Name is the server name reported to clients.
const Name = "aicoder"

const instructions = "Workspace tools for an AI coding agent. Paths are relative to the workspace root. " +
	"Every tool returns a JSON object {ok, output, error, meta}; ok=false results are not protocol errors."

// registry is the tool surface served over MCP.
type registry interface {
	Catalog() []tool.Declaration
	Call(ctx context.Context, name string, args map[string]any) tool.Result
}

// Tools converts every catalog entry into an MCP tool bound to reg.
func Tools(reg registry, logger *zap.Logger) []server.ServerTool {
	logger = logging.OrNop(logger)
	decls := reg.Catalog()
	out := make([]server.ServerTool, 0, len(decls))
	for _, d := range decls {
		schema, err := json.Marshal(d.Parameters.Map())
		if err != nil {
			logger.Warn("skip tool with unencodable schema", zap.String("tool", d.Name), zap.Error(err))
			continue
		}
		out = append(out, server.ServerTool{
			Tool:    mcp.NewToolWithRawSchema(d.Name, d.Description, schema),
			Handler: handler(reg, d.Name, logger),
		})
	}
	return out
}

func handler(reg registry, name string, logger *zap.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res := reg.Call(ctx, name, req.GetArguments())
		body, err := json.Marshal(res)
		if err != nil {
			body, _ = json.Marshal(tool.Result{OK: res.OK, Output: res.Output, Error: res.Error})
		}
		logger.Debug("mcp tool call", zap.String("tool", name), zap.Bool("ok", res.OK))

		out := mcp.NewToolResultText(string(body))
		out.IsError = !res.OK
		return out, nil
	}
}

// New creates an MCP server serving every tool in reg.
func New(reg registry, version string, logger *zap.Logger) *server.MCPServer {
	if reg == nil {
		panic("registry is required")
	}
	s := server.NewMCPServer(
		Name,
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
	for _, t := range Tools(reg, logger) {
		s.AddTool(t.Tool, t.Handler)
	}
	return s
}

// ServeStdio serves reg over stdin/stdout until the client disconnects.
func ServeStdio(reg registry, version string, logger *zap.Logger) error {
	return server.ServeStdio(New(reg, version, logger))
}
