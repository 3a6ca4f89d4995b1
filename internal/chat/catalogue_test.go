package chat

import (
	"errors"
	"testing"
)

func TestParseVariantKey(t *testing.T) {
	cases := []struct {
		in   string
		want VariantKey
	}{
		{"Claude", VariantKey{Family: "Claude"}},
		{"ChatGPT • Pirate", VariantKey{Family: "ChatGPT", PromptName: "Pirate"}},
		{"LLaMA • a • b", VariantKey{Family: "LLaMA", PromptName: "a • b"}},
	}
	for _, tc := range cases {
		got := ParseVariantKey(tc.in)
		if got != tc.want {
			t.Fatalf("ParseVariantKey(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
		if got.String() != tc.in {
			t.Fatalf("String() = %q, want %q", got.String(), tc.in)
		}
	}
}

func TestBotVariantPrompt(t *testing.T) {
	v := NewBotVariant("Claude", "Poet", []string{"Answer in verse", "Rhyme"})
	if !v.HasCustomPrompt() {
		t.Fatalf("expected custom prompt")
	}
	if got := v.SystemPrompt(); got != "Answer in verse. Rhyme." {
		t.Fatalf("unexpected system prompt: %q", got)
	}
	if v.ID == "" {
		t.Fatalf("expected variant id")
	}

	base := NewBotVariant("Claude", "", nil)
	if len(base.Prompt) != 1 || base.Prompt[0] != "" {
		t.Fatalf("expected normalised empty prompt, got %q", base.Prompt)
	}
	if base.HasCustomPrompt() || base.SystemPrompt() != "" {
		t.Fatalf("base variant must not carry a prompt")
	}

	blank := NewBotVariant("Claude", "Blank", []string{"ok", " "})
	if blank.HasCustomPrompt() {
		t.Fatalf("a blank sentence disables the custom prompt")
	}
}

func TestDefaultCatalogue(t *testing.T) {
	c := DefaultCatalogue()
	if c.Len() != len(BaseFamilies) {
		t.Fatalf("expected %d variants, got %d", len(BaseFamilies), c.Len())
	}
	fams := c.Families()
	for i, f := range BaseFamilies {
		if fams[i] != f {
			t.Fatalf("family %d = %q, want %q", i, fams[i], f)
		}
	}
	if err := c.Add(NewBotVariant("Claude", "", nil)); !errors.Is(err, ErrVariantExists) {
		t.Fatalf("expected ErrVariantExists, got %v", err)
	}
}

func TestCatalogueMergeByKey(t *testing.T) {
	c := DefaultCatalogue()
	local := NewBotVariant("Claude", "Poet", []string{"old"})
	if err := c.Add(local); err != nil {
		t.Fatalf("add: %v", err)
	}

	fetched := []BotVariant{
		{Family: "Claude", Prompt: []string{""}},
		{Family: "Claude", PromptName: "Poet", Prompt: []string{"new"}},
		{Family: "Gemini", PromptName: "Chef", Prompt: []string{"cook"}},
		{Family: "Mistral"},
	}
	c.Merge(fetched)
	c.Merge(fetched)

	if c.Len() != len(BaseFamilies)+3 {
		t.Fatalf("expected %d variants, got %d", len(BaseFamilies)+3, c.Len())
	}
	poet, ok := c.Get(VariantKey{Family: "Claude", PromptName: "Poet"})
	if !ok || poet.Prompt[0] != "new" {
		t.Fatalf("custom remote variant must replace local: %+v", poet)
	}
	if poet.ID != local.ID {
		t.Fatalf("merge must keep the local id")
	}
	mistral, ok := c.Get(VariantKey{Family: "Mistral"})
	if !ok || mistral.ID == "" || len(mistral.Prompt) != 1 {
		t.Fatalf("unknown base family must be added: %+v", mistral)
	}
}

func TestCatalogueBaseNeverOverrides(t *testing.T) {
	c := NewCatalogue(BotVariant{ID: "keep", Family: "Claude", Prompt: []string{"local"}})
	c.Merge([]BotVariant{{Family: "Claude", Prompt: []string{"remote"}}})
	v, _ := c.Get(VariantKey{Family: "Claude"})
	if v.ID != "keep" || v.Prompt[0] != "local" {
		t.Fatalf("base variant was overridden: %+v", v)
	}
}

func TestValidatePrompt(t *testing.T) {
	c := DefaultCatalogue()
	if err := c.Add(NewBotVariant("Claude", "Poet", []string{"x"})); err != nil {
		t.Fatalf("add: %v", err)
	}

	name, err := c.ValidatePrompt("Claude", "  Chef  ", []string{"cook"})
	if err != nil || name != "Chef" {
		t.Fatalf("expected trimmed name, got %q, %v", name, err)
	}

	cases := []struct {
		family, name string
		sentences    []string
		want         error
	}{
		{"Bard", "x", []string{"a"}, ErrUnknownFamily},
		{"Claude", "   ", []string{"a"}, ErrInvalidPrompt},
		{"Claude", "abcdefghijklmnop", []string{"a"}, ErrInvalidPrompt},
		{"Claude", "a/b", []string{"a"}, ErrInvalidPrompt},
		{"Claude", "a•b", []string{"a"}, ErrInvalidPrompt},
		{"Claude", "ok", nil, ErrInvalidPrompt},
		{"Claude", "ok", []string{"a", "  "}, ErrInvalidPrompt},
		{"Claude", "Poet", []string{"a"}, ErrVariantExists},
	}
	for _, tc := range cases {
		if _, err := c.ValidatePrompt(tc.family, tc.name, tc.sentences); !errors.Is(err, tc.want) {
			t.Fatalf("ValidatePrompt(%q, %q) err=%v, want %v", tc.family, tc.name, err, tc.want)
		}
	}

	// 15 runes, multibyte
	if _, err := c.ValidatePrompt("Claude", "ççççççççççççççç", []string{"a"}); err != nil {
		t.Fatalf("15 characters must be accepted: %v", err)
	}
}
