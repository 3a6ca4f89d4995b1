package chat

import (
	"context"

	"github.com/emirg23/multi-BotChat/internal/ai"
)

// Service asks the provider routed to a bot family for the next bot message.
type Service struct {
	registry          *ai.Registry
	contextWindowSize int
}

// NewService keeps at most contextWindowSize chat messages as provider context.
// A window of 1 sends only the latest user message.
func NewService(registry *ai.Registry, contextWindowSize int) *Service {
	if contextWindowSize <= 0 || contextWindowSize > 100 {
		contextWindowSize = 20
	}
	return &Service{registry: registry, contextWindowSize: contextWindowSize}
}

// Answer produces the bot reply for the chat's trailing user message.
func (s *Service) Answer(ctx context.Context, bot BotVariant, c Chat) (string, error) {
	provider, err := s.registry.ForBot(ctx, bot.Family)
	if err != nil {
		return "", err
	}
	return provider.Chat(ctx, s.providerMessages(bot, c.Messages))
}

func (s *Service) providerMessages(bot BotVariant, history []Message) []ai.Message {
	if len(history) > s.contextWindowSize {
		history = history[len(history)-s.contextWindowSize:]
	}
	// the conversation sent to a provider must open with a user turn
	for len(history) > 0 && history[0].Sender == SenderBot {
		history = history[1:]
	}
	out := make([]ai.Message, 0, len(history)+1)
	if system := bot.SystemPrompt(); system != "" {
		out = append(out, ai.Message{Role: ai.RoleSystem, Content: system})
	}
	for _, m := range history {
		role := ai.RoleUser
		if m.Sender == SenderBot {
			role = ai.RoleAssistant
		}
		out = append(out, ai.Message{Role: role, Content: m.Text})
	}
	return out
}
