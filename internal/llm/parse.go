package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyResponse means the model returned nothing after cleanup.
	ErrEmptyResponse = errors.New("empty model response")
	// ErrInvalidJSON means the cleaned response did not parse as a JSON object.
	ErrInvalidJSON = errors.New("model response is not valid JSON")
)

// StripCodeFences removes a surrounding ```json / ``` markdown fence.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		// drop an info string such as "json" up to the first newline
		if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.ContainsAny(s[:i], "{[") {
			s = s[i+1:]
		} else {
			s = strings.TrimPrefix(s, "json")
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// StripControlChars drops ASCII control bytes except \n, \r and \t.
func StripControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}

// CleanResponse applies fence and control byte stripping.
func CleanResponse(s string) string {
	return StripCodeFences(StripControlChars(s))
}

// ParseJSONObject recovers a JSON object from raw model output. It returns
// the cleaned bytes alongside the decoded map so callers can validate either.
// When the cleaned text does not parse, the outermost {...} is cut out of any
// surrounding prose or fences and trailing commas are dropped before retrying.
func ParseJSONObject(raw string) ([]byte, map[string]any, error) {
	cleaned := CleanResponse(raw)
	if cleaned == "" {
		return nil, nil, ErrEmptyResponse
	}
	m, err := decodeObject(cleaned)
	if err != nil {
		obj, ok := outermostObject(cleaned)
		if !ok {
			return []byte(cleaned), nil, err
		}
		repaired := stripTrailingCommas(obj)
		m, rerr := decodeObject(repaired)
		if rerr != nil {
			return []byte(cleaned), nil, err
		}
		return []byte(repaired), m, nil
	}
	return []byte(cleaned), m, nil
}

func decodeObject(s string) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: top-level value is not an object", ErrInvalidJSON)
	}
	return m, nil
}

// outermostObject returns the first balanced {...} in s, ignoring braces
// inside string literals.
func outermostObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString:
			if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// stripTrailingCommas removes a comma that directly precedes } or ], outside
// of string literals.
func stripTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString:
			if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
		case c == ',':
			j := i + 1
			for j < len(s) && strings.IndexByte(" \t\r\n", s[j]) >= 0 {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Snippet returns the head of s for diagnostics.
func Snippet(s string, n int) string {
	return truncate(s, n)
}
