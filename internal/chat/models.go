package chat

import (
	"strings"
	"time"
)

type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// KeySeparator joins a bot family and a prompt name in display and remote keys.
const KeySeparator = " • "

// VariantKey identifies a bot variant: a family plus an optional prompt name.
type VariantKey struct {
	Family     string
	PromptName string
}

func (k VariantKey) String() string {
	if k.PromptName == "" {
		return k.Family
	}
	return k.Family + KeySeparator + k.PromptName
}

// ParseVariantKey is the inverse of VariantKey.String.
func ParseVariantKey(s string) VariantKey {
	family, prompt, ok := strings.Cut(s, KeySeparator)
	if !ok {
		return VariantKey{Family: s}
	}
	return VariantKey{Family: family, PromptName: prompt}
}

type BotVariant struct {
	ID         string   `json:"id"`
	Family     string   `json:"name"`
	PromptName string   `json:"promptName"`
	Prompt     []string `json:"prompt"`
}

func NewBotVariant(family, promptName string, prompt []string) BotVariant {
	return BotVariant{
		ID:         NewVariantID(),
		Family:     family,
		PromptName: promptName,
		Prompt:     normalizePrompt(prompt),
	}
}

func (b BotVariant) Key() VariantKey {
	return VariantKey{Family: b.Family, PromptName: b.PromptName}
}

// HasCustomPrompt reports whether the variant carries a usable prompt.
// An empty list or any blank sentence means "no custom prompt".
func (b BotVariant) HasCustomPrompt() bool {
	if len(b.Prompt) == 0 {
		return false
	}
	for _, s := range b.Prompt {
		if strings.TrimSpace(s) == "" {
			return false
		}
	}
	return true
}

// SystemPrompt renders the prompt sentences the way they are sent to a provider.
func (b BotVariant) SystemPrompt() string {
	if !b.HasCustomPrompt() {
		return ""
	}
	return strings.Join(b.Prompt, ". ") + "."
}

func (b BotVariant) clone() BotVariant {
	b.Prompt = append([]string(nil), b.Prompt...)
	return b
}

func normalizePrompt(prompt []string) []string {
	if len(prompt) == 0 {
		return []string{""}
	}
	return append([]string(nil), prompt...)
}

type Message struct {
	ID     string    `json:"id"`
	Sender Sender    `json:"sender"`
	Text   string    `json:"text"`
	Date   time.Time `json:"date"`
}

func NewMessage(sender Sender, text string, date time.Time) Message {
	return Message{ID: NewMessageID(), Sender: sender, Text: text, Date: date}
}

type Chat struct {
	ID         string    `json:"id"`
	Messages   []Message `json:"messages"`
	BotName    string    `json:"botName"`
	PromptName string    `json:"promptName"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (c Chat) Variant() VariantKey {
	return VariantKey{Family: c.BotName, PromptName: c.PromptName}
}

// LastMessageDate is the date of the newest message, or the creation time of an empty chat.
func (c Chat) LastMessageDate() time.Time {
	if n := len(c.Messages); n > 0 {
		return c.Messages[n-1].Date
	}
	return c.CreatedAt
}

func (c Chat) clone() Chat {
	c.Messages = append([]Message(nil), c.Messages...)
	return c
}
