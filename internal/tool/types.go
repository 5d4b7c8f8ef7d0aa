package tool

import (
	"encoding/json"
	"fmt"
)

// Kind names a tool. The set is closed: only the constants below can be registered.
type Kind string

const (
	KindReadFile       Kind = "read_file"
	KindWriteFile      Kind = "write_file"
	KindDeletePath     Kind = "delete_path"
	KindListFiles      Kind = "list_files"
	KindApplyPatch     Kind = "apply_patch"
	KindSearch         Kind = "search_in_workspace"
	KindRunCommand     Kind = "run_command"
	KindKillCommand    Kind = "kill_command"
	KindGetDiagnostics Kind = "get_diagnostics"
	KindGitStatus      Kind = "git_status"
	KindGitCommit      Kind = "git_commit"
	KindGitRevert      Kind = "git_revert"
)

var kinds = []Kind{
	KindReadFile,
	KindWriteFile,
	KindDeletePath,
	KindListFiles,
	KindApplyPatch,
	KindSearch,
	KindRunCommand,
	KindKillCommand,
	KindGetDiagnostics,
	KindGitStatus,
	KindGitCommit,
	KindGitRevert,
}

// Kinds returns every known tool kind.
func Kinds() []Kind {
	return append([]Kind(nil), kinds...)
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	for _, known := range kinds {
		if k == known {
			return true
		}
	}
	return false
}

// ParseKind converts a tool name into a Kind.
func ParseKind(name string) (Kind, bool) {
	k := Kind(name)
	return k, k.Valid()
}

// Type represents JSON Schema types.
type Type string

const (
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeInteger Type = "integer"
	TypeBoolean Type = "boolean"
	TypeArray   Type = "array"
	TypeObject  Type = "object"
)

// Schema represents a JSON Schema for tool parameters.
type Schema struct {
	Type        Type               `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
}

// Object builds an object schema from its properties.
func Object(props map[string]*Schema, required ...string) *Schema {
	if props == nil {
		props = map[string]*Schema{}
	}
	return &Schema{Type: TypeObject, Properties: props, Required: required}
}

// Prop builds a scalar property schema.
func Prop(t Type, description string) *Schema {
	return &Schema{Type: t, Description: description}
}

// Map returns the schema as a generic JSON object, the shape most SDKs expect.
func (s *Schema) Map() map[string]any {
	if s == nil {
		return map[string]any{"type": string(TypeObject), "properties": map[string]any{}}
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

// Declaration declares a tool's function signature for the LLM.
type Declaration struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Parameters  *Schema `json:"parameters,omitempty"`
}

// Result is the uniform outcome of every tool call.
// A failed result always carries a non-empty Error.
type Result struct {
	OK     bool           `json:"ok"`
	Output string         `json:"output,omitempty"`
	Error  string         `json:"error,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// Success builds an ok result.
func Success(output string, meta map[string]any) Result {
	return Result{OK: true, Output: output, Meta: meta}
}

// Failure builds a failed result from an error.
func Failure(err error) Result {
	if err == nil {
		return Result{Error: "unknown error"}
	}
	return Failuref("%v", err)
}

// Failuref builds a failed result from a formatted message.
func Failuref(format string, args ...any) Result {
	msg := fmt.Sprintf(format, args...)
	if msg == "" {
		msg = "unknown error"
	}
	return Result{Error: msg}
}
