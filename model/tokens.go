package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DefaultMaxTokens is used when a policy carries no concrete value.
const DefaultMaxTokens = 2048

// MaxTokens is a max-output-tokens policy: either a concrete limit or the
// "auto" sentinel, resolved by providers that know the target context window.
type MaxTokens struct {
	Value int
	Auto  bool
}

// AutoMaxTokens is the "auto" policy.
var AutoMaxTokens = MaxTokens{Auto: true}

// FixedMaxTokens returns a concrete policy.
func FixedMaxTokens(n int) MaxTokens {
	return MaxTokens{Value: n}
}

// Resolve returns the concrete limit, or def when the policy is auto or unset.
func (m MaxTokens) Resolve(def int) int {
	if m.Auto || m.Value <= 0 {
		return def
	}
	return m.Value
}

func (m MaxTokens) String() string {
	if m.Auto {
		return "auto"
	}
	return strconv.Itoa(m.Value)
}

// UnmarshalTOML accepts an integer or the string "auto".
func (m *MaxTokens) UnmarshalTOML(v any) error {
	switch val := v.(type) {
	case int64:
		*m = MaxTokens{Value: int(val)}
		return nil
	case float64:
		*m = MaxTokens{Value: int(val)}
		return nil
	case string:
		return m.parse(val)
	default:
		return fmt.Errorf("max_tokens: unsupported value %v", v)
	}
}

func (m *MaxTokens) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*m = MaxTokens{Value: n}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("max_tokens: %w", err)
	}
	return m.parse(s)
}

func (m MaxTokens) MarshalJSON() ([]byte, error) {
	if m.Auto {
		return []byte(`"auto"`), nil
	}
	return []byte(strconv.Itoa(m.Value)), nil
}

func (m *MaxTokens) parse(s string) error {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "auto") {
		*m = AutoMaxTokens
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("max_tokens: expected integer or \"auto\", got %q", s)
	}
	*m = MaxTokens{Value: n}
	return nil
}
