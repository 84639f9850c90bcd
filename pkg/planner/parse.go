package planner

import (
	"errors"
	"strings"
)

// ExtractJSON pulls the first JSON object out of a model completion. Code
// fences and surrounding prose are tolerated; the object itself is located
// by brace matching that respects string literals.
func ExtractJSON(completion string) (string, error) {
	s := completion
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		// Drop a language hint like "json" on the fence line.
		if j := strings.IndexByte(rest, '\n'); j >= 0 && !strings.Contains(rest[:j], "{") {
			rest = rest[j+1:]
		}
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		s = rest
	}

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", errors.New("no JSON object in completion")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", errors.New("unterminated JSON object in completion")
}
