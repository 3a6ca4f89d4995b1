package chat

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrVariantExists   = errors.New("bot variant already exists")
	ErrVariantNotFound = errors.New("bot variant not found")
	ErrUnknownFamily   = errors.New("unknown bot family")
	ErrInvalidPrompt   = errors.New("invalid prompt")
)

const maxPromptNameLen = 15

// BaseFamilies are the bot families every catalogue starts with.
var BaseFamilies = []string{"Canva", "ChatGPT", "Claude", "DeepSeek", "Gemini", "LLaMA"}

// BotCatalogue is the ordered set of bot variants known to one Local Store.
// It is not safe for concurrent use; Store serialises access to it.
type BotCatalogue struct {
	variants []BotVariant
}

func NewCatalogue(variants ...BotVariant) *BotCatalogue {
	c := &BotCatalogue{}
	for _, v := range variants {
		_ = c.Add(v)
	}
	return c
}

func DefaultCatalogue() *BotCatalogue {
	c := &BotCatalogue{}
	for _, f := range BaseFamilies {
		_ = c.Add(NewBotVariant(f, "", nil))
	}
	return c
}

func (c *BotCatalogue) index(k VariantKey) int {
	for i, v := range c.variants {
		if v.Key() == k {
			return i
		}
	}
	return -1
}

func (c *BotCatalogue) Len() int { return len(c.variants) }

func (c *BotCatalogue) Get(k VariantKey) (BotVariant, bool) {
	i := c.index(k)
	if i < 0 {
		return BotVariant{}, false
	}
	return c.variants[i].clone(), true
}

func (c *BotCatalogue) Has(k VariantKey) bool { return c.index(k) >= 0 }

func (c *BotCatalogue) Add(v BotVariant) error {
	if c.index(v.Key()) >= 0 {
		return fmt.Errorf("%w: %s", ErrVariantExists, v.Key())
	}
	if v.ID == "" {
		v.ID = NewVariantID()
	}
	v.Prompt = normalizePrompt(v.Prompt)
	c.variants = append(c.variants, v)
	return nil
}

func (c *BotCatalogue) Remove(k VariantKey) error {
	i := c.index(k)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrVariantNotFound, k)
	}
	c.variants = append(c.variants[:i], c.variants[i+1:]...)
	return nil
}

// All returns a copy of every variant in catalogue order.
func (c *BotCatalogue) All() []BotVariant {
	out := make([]BotVariant, 0, len(c.variants))
	for _, v := range c.variants {
		out = append(out, v.clone())
	}
	return out
}

// Families lists distinct families in first-seen order.
func (c *BotCatalogue) Families() []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range c.variants {
		if !seen[v.Family] {
			seen[v.Family] = true
			out = append(out, v.Family)
		}
	}
	return out
}

func (c *BotCatalogue) Variants(family string) []BotVariant {
	var out []BotVariant
	for _, v := range c.variants {
		if v.Family == family {
			out = append(out, v.clone())
		}
	}
	return out
}

// Merge folds fetched variants into the catalogue by key. Custom variants replace
// local ones with the same key; base variants are only added when missing.
// Merging the same set twice leaves the catalogue unchanged.
func (c *BotCatalogue) Merge(fetched []BotVariant) {
	for _, v := range fetched {
		v = v.clone()
		v.Prompt = normalizePrompt(v.Prompt)
		i := c.index(v.Key())
		switch {
		case i < 0:
			if v.ID == "" {
				v.ID = NewVariantID()
			}
			c.variants = append(c.variants, v)
		case v.PromptName != "":
			if v.ID == "" {
				v.ID = c.variants[i].ID
			}
			c.variants[i] = v
		}
	}
}

// ValidatePrompt checks a new custom prompt against the catalogue and returns the
// trimmed prompt name.
func (c *BotCatalogue) ValidatePrompt(family, name string, sentences []string) (string, error) {
	name = strings.TrimSpace(name)
	if len(c.Variants(family)) == 0 {
		return "", fmt.Errorf("%w: %s", ErrUnknownFamily, family)
	}
	if name == "" || len([]rune(name)) > maxPromptNameLen {
		return "", fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidPrompt, maxPromptNameLen)
	}
	if strings.Contains(name, "/") || strings.Contains(name, "•") {
		return "", fmt.Errorf("%w: name contains a reserved character", ErrInvalidPrompt)
	}
	if len(sentences) == 0 {
		return "", fmt.Errorf("%w: at least one sentence required", ErrInvalidPrompt)
	}
	for _, s := range sentences {
		if strings.TrimSpace(s) == "" {
			return "", fmt.Errorf("%w: blank sentence", ErrInvalidPrompt)
		}
	}
	k := VariantKey{Family: family, PromptName: name}
	if c.Has(k) {
		return "", fmt.Errorf("%w: %s", ErrVariantExists, k)
	}
	return name, nil
}
