package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrEmptyResponse is reported when the model returns only whitespace.
	ErrEmptyResponse = errors.New("empty model response")
	// ErrUnparseable is reported when no parsing layer yields a value.
	ErrUnparseable = errors.New("no structured data in model response")
)

var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z0-9_-]*[ \t]*\r?\n?(.*?)```")

// ParseStructured decodes raw into T trying, in order: the raw text, each fenced
// block, and each balanced array or object span.
func ParseStructured[T any](raw string) (T, error) {
	var zero T

	text := strings.TrimSpace(raw)
	if text == "" {
		return zero, ErrEmptyResponse
	}

	if v, ok := decode[T](text); ok {
		return v, nil
	}

	for _, m := range fencePattern.FindAllStringSubmatch(text, -1) {
		if v, ok := decode[T](strings.TrimSpace(m[1])); ok {
			return v, nil
		}
	}

	for _, span := range balancedSpans(text) {
		if v, ok := decode[T](span); ok {
			return v, nil
		}
	}

	return zero, ErrUnparseable
}

// Fence wraps v as a fenced JSON block, the way models usually reply.
func Fence(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return "```json\n" + string(b) + "\n```", nil
}

func decode[T any](text string) (T, bool) {
	var v T
	if text == "" {
		return v, false
	}
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return v, false
	}
	return v, true
}

// balancedSpans returns the top-level array and object spans in a single
// pass: scanning resumes after each matched span, so nested spans are never
// returned on their own. Brackets inside JSON strings are ignored.
func balancedSpans(text string) []string {
	var spans []string
	for start := 0; start < len(text); start++ {
		c := text[start]
		if c != '{' && c != '[' {
			continue
		}
		if end := matchBracket(text, start); end > start {
			spans = append(spans, text[start:end+1])
			start = end
		}
	}
	return spans
}

func matchBracket(text string, start int) int {
	var stack []byte
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]
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
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i
			}
		}
	}
	return -1
}
