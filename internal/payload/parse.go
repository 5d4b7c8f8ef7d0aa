package payload

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fenceLine = regexp.MustCompile("(?m)^[ \t]*```[\\w.+-]*[ \t]*$\n?")

// ParseProjectFromAnyText extracts a project from free-form model text. The
// tiers are tried in order and the first valid project wins:
//
//  1. JSON between StartTag and EndTag
//  2. the whole text with code fences stripped
//  3. the first complete top-level object holding a files array
//  4. the raw trimmed text
func ParseProjectFromAnyText(text string) (*GeneratedProject, error) {
	if p, ok := parseTagged(text); ok {
		return p, nil
	}
	if p, ok := decode(fenceLine.ReplaceAllString(text, "")); ok {
		return p, nil
	}
	for _, candidate := range scanObjects(text) {
		if p, ok := decode(candidate); ok {
			return p, nil
		}
	}
	if p, ok := decode(text); ok {
		return p, nil
	}
	return nil, ErrNoPayload
}

func parseTagged(text string) (*GeneratedProject, bool) {
	start := strings.Index(text, StartTag)
	if start < 0 {
		return nil, false
	}
	rest := text[start+len(StartTag):]
	end := strings.Index(rest, EndTag)
	if end < 0 {
		return nil, false
	}
	return decode(rest[:end])
}

func decode(s string) (*GeneratedProject, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	var p GeneratedProject
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return nil, false
	}
	return &p, p.Valid()
}

// scanObjects returns every complete top-level {...} span in text, in order.
// Braces inside string literals are ignored; both quote styles and backslash
// escapes are honoured.
func scanObjects(text string) []string {
	var (
		spans   []string
		depth   int
		start   = -1
		quote   byte
		escaped bool
	)
	for i := 0; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			// Quotes only delimit strings inside an object; apostrophes in
			// the surrounding prose are not string literals.
			if depth > 0 {
				quote = c
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				spans = append(spans, text[start:i+1])
				start = -1
			}
		}
	}
	return spans
}
