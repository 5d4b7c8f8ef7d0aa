package payload

import (
	"regexp"
	"strings"
)

// Strategy extracts a project from model text using one wire grammar.
type Strategy interface {
	Name() string
	Parse(text string) (*GeneratedProject, error)
}

// JSONStrategy parses the tag-wrapped JSON protocol.
type JSONStrategy struct{}

func (JSONStrategy) Name() string { return "json" }

func (JSONStrategy) Parse(text string) (*GeneratedProject, error) {
	return ParseProjectFromAnyText(text)
}

// LegacyBlock is one File:/Issues:/Code: block of the legacy analyze format.
type LegacyBlock struct {
	Path   string
	Issues []string
	Code   string
}

var (
	legacyFileHeader = regexp.MustCompile(`(?m)^[ \t]*File:[ \t]*(.+?)[ \t]*$`)
	legacyIssues     = regexp.MustCompile(`(?m)^[ \t]*Issues:[ \t]*(.*)$`)
	legacyCode       = regexp.MustCompile(`(?m)^[ \t]*Code:[ \t]*$`)
	legacyFenced     = regexp.MustCompile("(?s)^\\s*```[\\w.+-]*[ \t]*\n(.*?)\n?[ \t]*```")
)

// LegacyStrategy parses the older whole-project format:
//
//	File: path/to/file
//	Issues: - first problem
//	- second problem
//	Code:
//	```go
//	...
//	```
//
// Blocks without a Code: section are reported by Blocks but produce no file.
type LegacyStrategy struct{}

func (LegacyStrategy) Name() string { return "legacy" }

func (s LegacyStrategy) Parse(text string) (*GeneratedProject, error) {
	var p GeneratedProject
	for _, b := range s.Blocks(text) {
		if b.Code == "" {
			continue
		}
		p.Files = append(p.Files, File{Path: b.Path, Content: b.Code})
	}
	if !p.Valid() {
		return nil, ErrNoPayload
	}
	return &p, nil
}

// Blocks splits text into File: blocks.
func (LegacyStrategy) Blocks(text string) []LegacyBlock {
	headers := legacyFileHeader.FindAllStringSubmatchIndex(text, -1)
	blocks := make([]LegacyBlock, 0, len(headers))
	for i, h := range headers {
		end := len(text)
		if i+1 < len(headers) {
			end = headers[i+1][0]
		}
		body := text[h[1]:end]
		block := LegacyBlock{Path: strings.Trim(text[h[2]:h[3]], "`*\"' ")}

		codeAt := len(body)
		if loc := legacyCode.FindStringIndex(body); loc != nil {
			codeAt = loc[0]
			block.Code = legacyCodeBody(body[loc[1]:])
		}
		if m := legacyIssues.FindStringSubmatchIndex(body[:codeAt]); m != nil {
			block.Issues = legacyIssueLines(body[m[2]:codeAt])
		}
		blocks = append(blocks, block)
	}
	return blocks
}

func legacyCodeBody(s string) string {
	if m := legacyFenced.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return strings.Trim(s, "\n")
}

func legacyIssueLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*"))
		if line == "" || strings.EqualFold(line, "none") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// Dispatcher tries each strategy in order; the first valid project wins.
type Dispatcher struct {
	strategies []Strategy
}

// NewDispatcher creates a Dispatcher. Without strategies it uses the JSON
// protocol followed by the legacy format.
func NewDispatcher(strategies ...Strategy) *Dispatcher {
	if len(strategies) == 0 {
		strategies = []Strategy{JSONStrategy{}, LegacyStrategy{}}
	}
	return &Dispatcher{strategies: strategies}
}

// Parse returns the first valid project any strategy extracts.
func (d *Dispatcher) Parse(text string) (*GeneratedProject, error) {
	for _, s := range d.strategies {
		if p, err := s.Parse(text); err == nil && p.Valid() {
			return p, nil
		}
	}
	return nil, ErrNoPayload
}
