package chat

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrChatNotFound        = errors.New("chat not found")
	ErrNothingToRegenerate = errors.New("last message is not a bot message")
)

// Snapshot is a point-in-time copy of a Local Store. It is also the persisted and
// mirrored shape of the store.
type Snapshot struct {
	Chats []Chat       `json:"chats"`
	Bots  []BotVariant `json:"bots"`
}

func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Chats: make([]Chat, 0, len(s.Chats)),
		Bots:  make([]BotVariant, 0, len(s.Bots)),
	}
	for _, c := range s.Chats {
		out.Chats = append(out.Chats, c.clone())
	}
	for _, b := range s.Bots {
		out.Bots = append(out.Bots, b.clone())
	}
	return out
}

// Store owns the live working set of one account: its bot catalogue and chats.
// All methods are safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	catalogue *BotCatalogue
	chats     []Chat
	now       func() time.Time
}

// NewStore builds a store from a snapshot. A snapshot without bots starts from the
// default catalogue.
func NewStore(snap Snapshot) *Store {
	s := &Store{now: time.Now}
	s.reset(snap)
	return s
}

func (s *Store) reset(snap Snapshot) {
	snap = snap.Clone()
	if len(snap.Bots) == 0 {
		s.catalogue = DefaultCatalogue()
	} else {
		s.catalogue = NewCatalogue(snap.Bots...)
	}
	s.chats = snap.Chats
}

// SetClock overrides the time source used for new chats.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Chats: s.chats, Bots: s.catalogue.variants}.Clone()
}

func (s *Store) Replace(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset(snap)
}

// Unlisted names the remote nodes whose children could not be read during a fetch.
// Their fetched child lists are empty and say nothing about the remote state.
type Unlisted struct {
	Variants map[VariantKey]bool // chats unknown
	Chats    map[string]bool     // messages unknown
}

// MergeRemote applies a fetched snapshot: the catalogue is merged by key and the
// chat tree is replaced wholesale, except below unlisted nodes where the local
// children are kept.
func (s *Store) MergeRemote(remote Snapshot, unlisted Unlisted) {
	remote = remote.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalogue.Merge(remote.Bots)

	local := make(map[string]Chat, len(s.chats))
	for _, c := range s.chats {
		local[c.ID] = c
	}
	fetched := make(map[string]bool, len(remote.Chats))
	for i, c := range remote.Chats {
		fetched[c.ID] = true
		if prev, ok := local[c.ID]; ok && unlisted.Chats[c.ID] {
			remote.Chats[i].Messages = prev.Messages
		}
	}
	for _, c := range s.chats {
		if !fetched[c.ID] && unlisted.Variants[c.Variant()] {
			remote.Chats = append(remote.Chats, c)
		}
	}

	for _, c := range remote.Chats {
		if !s.catalogue.Has(c.Variant()) {
			_ = s.catalogue.Add(NewBotVariant(c.BotName, c.PromptName, nil))
		}
	}
	s.chats = remote.Chats
}

func (s *Store) Bots() []BotVariant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalogue.All()
}

func (s *Store) Variant(k VariantKey) (BotVariant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.catalogue.Get(k)
	if !ok {
		return BotVariant{}, fmt.Errorf("%w: %s", ErrVariantNotFound, k)
	}
	return v, nil
}

func (s *Store) CreateVariant(family, name string, sentences []string) (BotVariant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, err := s.catalogue.ValidatePrompt(family, name, sentences)
	if err != nil {
		return BotVariant{}, err
	}
	v := NewBotVariant(family, name, sentences)
	if err := s.catalogue.Add(v); err != nil {
		return BotVariant{}, err
	}
	return v.clone(), nil
}

// DeleteVariant removes a variant together with its chats and returns how many
// chats were removed.
func (s *Store) DeleteVariant(k VariantKey) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.catalogue.Remove(k); err != nil {
		return 0, err
	}
	kept := s.chats[:0]
	removed := 0
	for _, c := range s.chats {
		if c.Variant() == k {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	s.chats = kept
	return removed, nil
}

func (s *Store) Chats() []Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Chat, 0, len(s.chats))
	for _, c := range s.chats {
		out = append(out, c.clone())
	}
	return out
}

func (s *Store) chatIndex(id string) int {
	for i := range s.chats {
		if s.chats[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) Chat(id string) (Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.chatIndex(id)
	if i < 0 {
		return Chat{}, fmt.Errorf("%w: %s", ErrChatNotFound, id)
	}
	return s.chats[i].clone(), nil
}

func (s *Store) CreateChat(k VariantKey, name string) (Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.catalogue.Has(k) {
		return Chat{}, fmt.Errorf("%w: %s", ErrVariantNotFound, k)
	}
	c := Chat{
		ID:         NewChatID(),
		BotName:    k.Family,
		PromptName: k.PromptName,
		Name:       name,
		CreatedAt:  s.now().UTC(),
	}
	s.chats = append(s.chats, c)
	return c.clone(), nil
}

func (s *Store) AppendMessage(chatID string, m Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.chatIndex(chatID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrChatNotFound, chatID)
	}
	s.chats[i].Messages = append(s.chats[i].Messages, m)
	return nil
}

// RemoveLastBotMessage drops the trailing bot message of a chat (regenerate flow).
func (s *Store) RemoveLastBotMessage(chatID string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.chatIndex(chatID)
	if i < 0 {
		return Message{}, fmt.Errorf("%w: %s", ErrChatNotFound, chatID)
	}
	msgs := s.chats[i].Messages
	if len(msgs) == 0 || msgs[len(msgs)-1].Sender != SenderBot {
		return Message{}, ErrNothingToRegenerate
	}
	last := msgs[len(msgs)-1]
	s.chats[i].Messages = msgs[:len(msgs)-1]
	return last, nil
}

func (s *Store) DeleteChat(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.chatIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrChatNotFound, id)
	}
	s.chats = append(s.chats[:i], s.chats[i+1:]...)
	return nil
}
