package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// PreviewLength bounds the raw model output carried by a ParseError.
const PreviewLength = 300

var fenceRegex = regexp.MustCompile("(?s)```[ \t]*(?:json|JSON)?[ \t]*\r?\n?(.*?)```")

// ParseError reports model output from which no JSON object could be extracted.
type ParseError struct {
	Preview string
	Length  int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("no JSON object found in model output (%d chars): %q", e.Length, e.Preview)
}

// Parse extracts a JSON object from free-form model output. Fragments, as
// produced by streaming clients, are concatenated in order. It tries fenced
// code blocks first, then the whole text, then every balanced {...} or [...]
// span in order of appearance. A top-level array of objects is returned as
// {"questions": [...]}.
func Parse(fragments ...string) (map[string]any, error) {
	text := strings.Join(fragments, "")

	for _, m := range fenceRegex.FindAllStringSubmatch(text, -1) {
		if obj, ok := decodeObject(m[1]); ok {
			return obj, nil
		}
	}

	if obj, ok := decodeObject(text); ok {
		return obj, nil
	}

	for i := 0; i < len(text); i++ {
		if text[i] != '{' && text[i] != '[' {
			continue
		}
		if end := matchDelim(text, i); end > 0 {
			if obj, ok := decodeObject(text[i : end+1]); ok {
				return obj, nil
			}
		}
	}

	return nil, &ParseError{
		Preview: Preview(text, PreviewLength),
		Length:  utf8.RuneCountInString(text),
	}
}

// Questions returns the raw question objects of a parsed model reply.
// Entries that are not JSON objects are skipped.
func Questions(obj map[string]any) []map[string]any {
	raw, ok := obj["questions"].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if q, ok := item.(map[string]any); ok {
			out = append(out, q)
		}
	}
	return out
}

func decodeObject(s string) (map[string]any, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case []any:
		for _, item := range t {
			if _, ok := item.(map[string]any); ok {
				return map[string]any{"questions": t}, true
			}
		}
	}
	return nil, false
}

// matchDelim returns the index of the bracket closing the one at start, or -1.
// Brackets inside JSON strings are ignored.
func matchDelim(s string, start int) int {
	opening := s[start]
	closing := byte('}')
	if opening == '[' {
		closing = ']'
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case opening:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// Preview returns at most n runes of s, marking truncation.
func Preview(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}
