// Package render formats replies and progress lines for the terminal.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var (
	ProgressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	ToolStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	ErrorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	SuccessStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	HeaderStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
)

// Renderer writes styled output to a writer. When not styled, every method
// writes the text unchanged.
type Renderer struct {
	out    io.Writer
	styled bool
	md     *glamour.TermRenderer
}

// New creates a Renderer. Markdown rendering is enabled only when styled.
func New(out io.Writer, styled bool) *Renderer {
	if out == nil {
		panic("writer is required")
	}
	r := &Renderer{out: out, styled: styled}
	if styled {
		md, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(0),
		)
		if err == nil {
			r.md = md
		}
	}
	return r
}

// Markdown renders text as terminal markdown, falling back to the raw text.
func (r *Renderer) Markdown(text string) string {
	if r.md == nil {
		return text
	}
	out, err := r.md.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

// Progress styles one progress line. Tool lines and failures get their own colour.
func (r *Renderer) Progress(line string) string {
	if !r.styled {
		return line
	}
	switch {
	case strings.Contains(line, " failed"):
		return ErrorStyle.Render(line)
	case strings.HasPrefix(line, "tool "):
		return ToolStyle.Render(line)
	case strings.HasPrefix(line, "Autonomous run finished"):
		return SuccessStyle.Render(line)
	default:
		return ProgressStyle.Render(line)
	}
}

// Error styles a user-facing failure message.
func (r *Renderer) Error(msg string) string {
	if !r.styled {
		return "Error: " + msg
	}
	return ErrorStyle.Render("✘ " + msg)
}

// Success styles a completion message.
func (r *Renderer) Success(msg string) string {
	if !r.styled {
		return msg
	}
	return SuccessStyle.Render("✔ " + msg)
}

// Header styles a section title.
func (r *Renderer) Header(title string) string {
	if !r.styled {
		return title
	}
	return HeaderStyle.Render(title)
}

// Printf writes a formatted line.
func (r *Renderer) Printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

// Reply writes a model reply as markdown.
func (r *Renderer) Reply(text string) {
	fmt.Fprintln(r.out, r.Markdown(text))
}

// ProgressLine writes one styled progress line. It fits func(string) callbacks.
func (r *Renderer) ProgressLine(line string) {
	fmt.Fprintln(r.out, r.Progress(line))
}

// Fail writes a styled error line.
func (r *Renderer) Fail(msg string) {
	fmt.Fprintln(r.out, r.Error(msg))
}

// Block joins sections vertically, separated by a blank line.
func (r *Renderer) Block(sections ...string) string {
	kept := make([]string, 0, len(sections))
	for _, s := range sections {
		if s != "" {
			kept = append(kept, s)
		}
	}
	if !r.styled {
		return strings.Join(kept, "\n\n")
	}
	withGaps := make([]string, 0, 2*len(kept))
	for i, s := range kept {
		if i > 0 {
			withGaps = append(withGaps, "")
		}
		withGaps = append(withGaps, s)
	}
	return lipgloss.JoinVertical(lipgloss.Left, withGaps...)
}
