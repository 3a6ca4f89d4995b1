package mirror

import (
	"fmt"
	"time"

	"github.com/emirg23/multi-BotChat/internal/chat"
	"github.com/emirg23/multi-BotChat/internal/docstore"
)

// Remote tree layout:
//
//	users/{email}/bots/{family[ • promptName]}
//	    chats/{chatID}          {botName, promptName, name, createdAt}
//	        messages/{msgID}    {sender, text, date}
const (
	botsCollection     = "bots"
	chatsCollection    = "chats"
	messagesCollection = "messages"

	fieldPrompt     = "prompt"
	fieldPromptName = "promptName"
	fieldBotName    = "botName"
	fieldName       = "name"
	fieldSender     = "sender"
	fieldText       = "text"
	fieldDate       = "date"
	fieldCreatedAt  = "createdAt"
)

func botsPath(root docstore.Path) docstore.Path {
	return root.Collection(botsCollection)
}

func botDoc(root docstore.Path, k chat.VariantKey) docstore.Path {
	return botsPath(root).Doc(k.String())
}

func chatsPath(bot docstore.Path) docstore.Path {
	return bot.Collection(chatsCollection)
}

func chatDoc(bot docstore.Path, id string) docstore.Path {
	return chatsPath(bot).Doc(id)
}

func messagesPath(c docstore.Path) docstore.Path {
	return c.Collection(messagesCollection)
}

func messageDoc(c docstore.Path, id string) docstore.Path {
	return messagesPath(c).Doc(id)
}

// botFields carries the prompt sentences, or the empty-prompt marker when the
// variant has no custom prompt.
func botFields(b chat.BotVariant) docstore.Fields {
	if !b.HasCustomPrompt() {
		return docstore.Fields{fieldPromptName: ""}
	}
	prompt := make([]any, len(b.Prompt))
	for i, s := range b.Prompt {
		prompt[i] = s
	}
	return docstore.Fields{fieldPrompt: prompt}
}

func chatFields(c chat.Chat) docstore.Fields {
	f := docstore.Fields{
		fieldBotName:    c.BotName,
		fieldPromptName: c.PromptName,
		fieldName:       c.Name,
	}
	if !c.CreatedAt.IsZero() {
		f[fieldCreatedAt] = encodeTime(c.CreatedAt)
	}
	return f
}

func messageFields(m chat.Message) docstore.Fields {
	return docstore.Fields{
		fieldSender: string(m.Sender),
		fieldText:   m.Text,
		fieldDate:   encodeTime(m.Date),
	}
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case string:
		return time.Parse(time.RFC3339Nano, t)
	case time.Time:
		return t.UTC(), nil
	case nil:
		return time.Time{}, fmt.Errorf("missing timestamp")
	default:
		return time.Time{}, fmt.Errorf("unexpected timestamp type %T", v)
	}
}

// stringField substitutes "" for missing or mistyped fields.
func stringField(f docstore.Fields, name string) string {
	s, _ := f[name].(string)
	return s
}

// decodeBot never reconstructs a prompt for base keys (no separator); those only
// tell the caller the family exists. Variant ids are not mirrored.
func decodeBot(doc docstore.Document) chat.BotVariant {
	k := chat.ParseVariantKey(doc.Key())
	v := chat.BotVariant{Family: k.Family, PromptName: k.PromptName}
	if raw, ok := doc.Data[fieldPrompt].([]any); ok && k.PromptName != "" {
		for _, s := range raw {
			str, _ := s.(string)
			v.Prompt = append(v.Prompt, str)
		}
	}
	if len(v.Prompt) == 0 {
		v.Prompt = []string{""}
	}
	return v
}

func decodeChat(doc docstore.Document, k chat.VariantKey) chat.Chat {
	c := chat.Chat{
		ID:         doc.Key(),
		BotName:    k.Family,
		PromptName: k.PromptName,
		Name:       stringField(doc.Data, fieldName),
	}
	if t, err := decodeTime(doc.Data[fieldCreatedAt]); err == nil {
		c.CreatedAt = t
	}
	return c
}

func decodeMessage(doc docstore.Document) (chat.Message, error) {
	date, err := decodeTime(doc.Data[fieldDate])
	if err != nil {
		return chat.Message{}, err
	}
	return chat.Message{
		ID:     doc.Key(),
		Sender: chat.Sender(stringField(doc.Data, fieldSender)),
		Text:   stringField(doc.Data, fieldText),
		Date:   date,
	}, nil
}
