package conversation

import (
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer profiles. Vendor tokenizers collapse onto one of these.
const (
	ProfileCL100K = "cl100k_base"
	ProfileP50K   = "p50k_base"
)

// Tokenizer counts tokens in a piece of text.
type Tokenizer interface {
	Count(text string) int
}

// TokenizerFunc adapts a function to Tokenizer.
type TokenizerFunc func(text string) int

func (f TokenizerFunc) Count(text string) int { return f(text) }

// profilePrefixes is checked in order; the first match wins.
var profilePrefixes = []struct {
	prefix  string
	profile string
}{
	{"text-davinci", ProfileP50K},
	{"code-", ProfileP50K},
	{"gpt-4", ProfileCL100K},
	{"gpt-3.5", ProfileCL100K},
	{"claude", ProfileCL100K},
	{"gemini", ProfileCL100K},
}

// ProfileFor picks the tokenizer profile for a model name. Router-style names
// ("openai/gpt-4o") are matched on the part after the vendor prefix.
func ProfileFor(modelName string) string {
	name := strings.ToLower(modelName)
	if idx := strings.LastIndex(name, "/"); idx != -1 {
		name = name[idx+1:]
	}
	for _, p := range profilePrefixes {
		if strings.HasPrefix(name, p.prefix) {
			return p.profile
		}
	}
	return ProfileCL100K
}

// ApproxTokenizer estimates about four characters per token.
var ApproxTokenizer = TokenizerFunc(func(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
})

type bpeTokenizer struct {
	enc *tiktoken.Tiktoken
}

func (t bpeTokenizer) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

var (
	tokenizerMu    sync.Mutex
	tokenizerCache = map[string]Tokenizer{}
)

// TokenizerFor returns the cached tokenizer for the model's profile. When the
// BPE ranks cannot be loaded the profile degrades to ApproxTokenizer.
func TokenizerFor(modelName string) Tokenizer {
	profile := ProfileFor(modelName)

	tokenizerMu.Lock()
	defer tokenizerMu.Unlock()

	if tk, ok := tokenizerCache[profile]; ok {
		return tk
	}

	var tk Tokenizer
	enc, err := tiktoken.GetEncoding(profile)
	if err != nil {
		slog.Warn("tokenizer unavailable, using character estimate",
			"component", "conversation", "profile", profile, "error", err)
		tk = ApproxTokenizer
	} else {
		tk = bpeTokenizer{enc: enc}
	}
	tokenizerCache[profile] = tk
	return tk
}
