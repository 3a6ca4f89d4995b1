package ai

import "context"

// PlaceholderReply is what bots without a configured backend answer.
const PlaceholderReply = "AI API needs to be clarified for sense responds."

type StubProvider struct {
	Reply string
}

func NewStubProvider() *StubProvider {
	return &StubProvider{Reply: PlaceholderReply}
}

func (p *StubProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.Reply, nil
}
