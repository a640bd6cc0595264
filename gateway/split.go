package gateway

import "strings"

const (
	// DefaultMaxMessageLength is the chat platform's message size limit.
	DefaultMaxMessageLength = 2000

	// EmptyReplyMessage stands in for a blank reply.
	EmptyReplyMessage = "I apologize, but I couldn't generate a proper response. Please try again."
)

// SplitMessage cuts content into chunks of at most maxLen runes. Blank
// content yields a single EmptyReplyMessage chunk.
func SplitMessage(content string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = DefaultMaxMessageLength
	}
	if strings.TrimSpace(content) == "" {
		content = EmptyReplyMessage
	}

	runes := []rune(content)
	chunks := make([]string, 0, len(runes)/maxLen+1)
	for len(runes) > maxLen {
		chunks = append(chunks, string(runes[:maxLen]))
		runes = runes[maxLen:]
	}
	return append(chunks, string(runes))
}
