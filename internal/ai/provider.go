package ai

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

// Provider answers a conversation. Messages are ordered oldest first; a leading
// system message, when present, carries the bot's custom prompt.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// splitSystem separates system messages from the rest, joining multiple system
// messages with a blank line.
func splitSystem(messages []Message) (string, []Message) {
	var system string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}
