// Package payload extracts generated projects from model text and writes
// them into the workspace.
package payload

import (
	"errors"
	"fmt"
	"strings"
)

// Wire format delimiters.
const (
	StartTag = "<AICODER_JSON>"
	EndTag   = "</AICODER_JSON>"
)

var (
	// ErrNoPayload is returned when no strategy can extract a valid project.
	ErrNoPayload = errors.New("no project payload found")

	// ErrEmptyPath is returned by the writer for a file without a path.
	ErrEmptyPath = errors.New("file path is empty")
)

// File is one file of a generated project.
type File struct {
	Path       string `json:"path"`
	Content    string `json:"content"`
	Executable bool   `json:"executable,omitempty"`
}

// GeneratedProject is the set of files a model asked to write, plus optional
// commands to run after writing.
type GeneratedProject struct {
	Files       []File `json:"files"`
	PostInstall string `json:"postInstall,omitempty"`
	Start       string `json:"start,omitempty"`
}

// Valid reports whether p carries at least one file.
func (p *GeneratedProject) Valid() bool {
	return p != nil && len(p.Files) > 0
}

// UnparsableError is returned when a reply could not be parsed even after a
// repair attempt. Raw is the original reply, untouched.
type UnparsableError struct {
	Raw   string
	Cause error
}

func (e *UnparsableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("unparsable project payload: %v", e.Cause)
	}
	return "unparsable project payload"
}

func (e *UnparsableError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return ErrNoPayload
}

// NormalizePath converts backslashes to forward slashes and strips leading
// slashes, so absolute-looking paths become workspace-relative.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(strings.TrimSpace(p), `\`, "/")
	return strings.TrimLeft(p, "/")
}

// Normalize returns a copy of p with every file path normalized.
func Normalize(p *GeneratedProject) *GeneratedProject {
	out := *p
	out.Files = make([]File, len(p.Files))
	for i, f := range p.Files {
		f.Path = NormalizePath(f.Path)
		out.Files[i] = f
	}
	return &out
}
