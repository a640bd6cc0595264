package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnparsableArguments marks an argument payload that fell back to an empty set.
var ErrUnparsableArguments = errors.New("unparsable tool arguments")

// ParseArguments normalizes a tool-call payload into an argument map.
//
// Maps are used as-is. Text goes through strict JSON, then a permissive
// literal parse that accepts single quotes and True/False/None. When both
// fail the result is an empty map and an error wrapping ErrUnparsableArguments.
// The returned map is never nil.
func ParseArguments(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		if v == nil {
			return map[string]any{}, nil
		}
		return v, nil
	case json.RawMessage:
		return parseArgumentText(string(v))
	case []byte:
		return parseArgumentText(string(v))
	case string:
		return parseArgumentText(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return map[string]any{}, fmt.Errorf("%w: %v", ErrUnparsableArguments, err)
		}
		return parseArgumentText(string(b))
	}
}

func parseArgumentText(text string) (map[string]any, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return map[string]any{}, nil
	}

	var decoded any
	if err := json.Unmarshal([]byte(text), &decoded); err == nil {
		switch d := decoded.(type) {
		case map[string]any:
			return d, nil
		case string:
			// Double-encoded payloads show up from some routers.
			if inner := strings.TrimSpace(d); strings.HasPrefix(inner, "{") {
				return parseArgumentText(inner)
			}
		case nil:
			return map[string]any{}, nil
		}
		return map[string]any{}, fmt.Errorf("%w: expected object, got %T", ErrUnparsableArguments, decoded)
	}

	if m, err := parseLiteral(text); err == nil {
		return m, nil
	}

	return map[string]any{}, fmt.Errorf("%w: %q", ErrUnparsableArguments, truncate(text, 200))
}

// parseLiteral accepts loosely formatted object literals such as
// {'query': 'go', 'exact': True, 'page': None}.
func parseLiteral(text string) (map[string]any, error) {
	if !strings.HasPrefix(text, "{") {
		return nil, errors.New("not an object literal")
	}

	var out map[string]any
	if err := yaml.Unmarshal([]byte(normalizeLiteral(text)), &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.New("empty literal")
	}
	return out, nil
}

var literalWords = map[string]string{
	"True":  "true",
	"False": "false",
	"None":  "null",
}

// normalizeLiteral rewrites bare True/False/None outside quoted strings and
// makes sure every key separator is followed by a space, as flow YAML needs.
func normalizeLiteral(text string) string {
	var b strings.Builder
	var quote rune
	var word strings.Builder

	flushWord := func() {
		if word.Len() == 0 {
			return
		}
		w := word.String()
		if repl, ok := literalWords[w]; ok {
			w = repl
		}
		b.WriteString(w)
		word.Reset()
	}

	runes := []rune(text)
	for i, r := range runes {
		if quote != 0 {
			b.WriteRune(r)
			if r == quote && (i == 0 || runes[i-1] != '\\') {
				quote = 0
			}
			continue
		}
		switch {
		case r == '\'' || r == '"':
			flushWord()
			quote = r
			b.WriteRune(r)
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '-':
			word.WriteRune(r)
		case r == ':':
			flushWord()
			b.WriteRune(r)
			if i+1 < len(runes) && runes[i+1] != ' ' {
				b.WriteRune(' ')
			}
		default:
			flushWord()
			b.WriteRune(r)
		}
	}
	flushWord()
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
