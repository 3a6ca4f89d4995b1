// Package session binds accounts to their Local Store and runs the user-facing
// flows on top of it: sending and regenerating messages, prompt management,
// saving (local persistence plus push) and login (pull plus merge).
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/emirg23/multi-BotChat/internal/ai"
	"github.com/emirg23/multi-BotChat/internal/chat"
	"github.com/emirg23/multi-BotChat/internal/mirror"
)

var (
	ErrEmptyMessage   = errors.New("message text is empty")
	ErrBaseVariant    = errors.New("base bot variants cannot be deleted")
	ErrProviderFailed = errors.New("bot provider failed")
	ErrSyncFailed     = errors.New("sync failed")
)

const maxChatNameLen = 30

// Manager caches one Session per account. The guest session uses the empty account
// and is never pushed.
type Manager struct {
	repo       *chat.Repo
	reconciler *mirror.Reconciler
	fetcher    *mirror.Fetcher
	bots       *chat.Service
	logger     *slog.Logger
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(repo *chat.Repo, reconciler *mirror.Reconciler, fetcher *mirror.Fetcher, bots *chat.Service, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		repo:       repo,
		reconciler: reconciler,
		fetcher:    fetcher,
		bots:       bots,
		logger:     logger,
		now:        time.Now,
		sessions:   make(map[string]*Session),
	}
}

// SetClock overrides the time source for new messages and chats.
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	for _, s := range m.sessions {
		s.store.SetClock(now)
	}
}

func normalizeAccount(account string) string {
	return strings.ToLower(strings.TrimSpace(account))
}

// Open returns the cached session of an account, loading its persisted snapshot
// the first time. Accounts without a snapshot start from the default catalogue.
func (m *Manager) Open(ctx context.Context, account string) (*Session, error) {
	account = normalizeAccount(account)
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[account]; ok {
		return s, nil
	}
	snap, err := m.load(ctx, account)
	if err != nil {
		return nil, err
	}
	s := &Session{account: account, store: chat.NewStore(snap), m: m}
	s.store.SetClock(m.now)
	m.sessions[account] = s
	return s, nil
}

func (m *Manager) load(ctx context.Context, account string) (chat.Snapshot, error) {
	snap, err := m.repo.Load(ctx, account)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return chat.Snapshot{}, nil
	}
	return snap, err
}

// Login opens the account's session, pulls the remote tree and merges it in.
func (m *Manager) Login(ctx context.Context, account string) (*Session, *mirror.PullReport, error) {
	s, err := m.Open(ctx, account)
	if err != nil {
		return nil, nil, err
	}
	report, err := s.Pull(ctx)
	return s, report, err
}

// Logout saves the account locally and drops its cached session.
func (m *Manager) Logout(ctx context.Context, account string) error {
	account = normalizeAccount(account)
	m.mu.Lock()
	s, ok := m.sessions[account]
	delete(m.sessions, account)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return s.Persist(ctx)
}

// PushAccount pushes the persisted snapshot of an account, bypassing the session
// cache so a separate worker process never pushes stale state.
func (m *Manager) PushAccount(ctx context.Context, account string) (*mirror.PushReport, error) {
	account = normalizeAccount(account)
	snap, err := m.load(ctx, account)
	if err != nil {
		return nil, err
	}
	report, err := m.reconciler.Push(ctx, account, snap)
	if err != nil {
		return report, err
	}
	m.markPushed(ctx, account)
	return report, nil
}

func (m *Manager) markPushed(ctx context.Context, account string) {
	if err := m.repo.MarkPushed(ctx, account); err != nil {
		m.logger.Warn("recording push time failed",
			slog.String("account", account),
			slog.Any("error", err))
	}
}

// Session is the working set of one account.
type Session struct {
	account string
	store   *chat.Store
	m       *Manager

	saveMu sync.Mutex

	// nodes whose children the last pull could not list; pushes leave them alone
	keepMu sync.Mutex
	keep   chat.Unlisted
}

// Exchange is the outcome of a send or regenerate.
type Exchange struct {
	Chat     chat.Chat    `json:"chat"`
	User     chat.Message `json:"user"`
	Reply    chat.Message `json:"reply"`
	Fallback bool         `json:"fallback"`
}

func (s *Session) Account() string { return s.account }

func (s *Session) Authenticated() bool { return s.account != "" }

func (s *Session) Bots() []chat.BotVariant { return s.store.Bots() }

func (s *Session) Chats() []chat.Chat { return s.store.Chats() }

func (s *Session) Chat(id string) (chat.Chat, error) { return s.store.Chat(id) }

func (s *Session) Snapshot() chat.Snapshot { return s.store.Snapshot() }

// Groups buckets the chats for display relative to now.
func (s *Session) Groups(now time.Time) []chat.ChatGroup {
	return chat.GroupChats(s.store.Chats(), now)
}

// Send appends a user message to chatID, or to a new chat of variant k when chatID
// is empty or unknown, then appends the bot's answer and saves. When the provider
// fails the placeholder reply is stored and the error wraps ErrProviderFailed.
// A failed save is reported with ErrSyncFailed; the exchange is still returned.
func (s *Session) Send(ctx context.Context, k chat.VariantKey, chatID, text string) (*Exchange, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	bot, err := s.store.Variant(k)
	if err != nil {
		return nil, err
	}

	c, err := s.store.Chat(chatID)
	if chatID == "" || errors.Is(err, chat.ErrChatNotFound) {
		c, err = s.store.CreateChat(k, chatName(text))
	}
	if err != nil {
		return nil, err
	}
	if c.Variant() != k {
		if bot, err = s.store.Variant(c.Variant()); err != nil {
			return nil, err
		}
	}

	user := chat.NewMessage(chat.SenderUser, text, s.m.now().UTC())
	if err := s.store.AppendMessage(c.ID, user); err != nil {
		return nil, err
	}
	ex, err := s.answer(ctx, bot, c.ID)
	if ex != nil {
		ex.User = user
	}
	return ex, err
}

// Regenerate replaces the trailing bot message of a chat with a fresh answer.
func (s *Session) Regenerate(ctx context.Context, chatID string) (*Exchange, error) {
	c, err := s.store.Chat(chatID)
	if err != nil {
		return nil, err
	}
	bot, err := s.store.Variant(c.Variant())
	if err != nil {
		return nil, err
	}
	if _, err := s.store.RemoveLastBotMessage(chatID); err != nil {
		return nil, err
	}
	ex, err := s.answer(ctx, bot, chatID)
	if ex != nil {
		if c, cerr := s.store.Chat(chatID); cerr == nil {
			ex.User = lastUserMessage(c)
		}
	}
	return ex, err
}

func (s *Session) answer(ctx context.Context, bot chat.BotVariant, chatID string) (*Exchange, error) {
	c, err := s.store.Chat(chatID)
	if err != nil {
		return nil, err
	}
	ex := &Exchange{}
	text, askErr := s.m.bots.Answer(ctx, bot, c)
	if askErr != nil {
		s.m.logger.Warn("bot answer failed, storing placeholder",
			slog.String("account", s.account),
			slog.String("chat", chatID),
			slog.String("bot", bot.Key().String()),
			slog.Any("error", askErr))
		text = ai.PlaceholderReply
		ex.Fallback = true
		askErr = fmt.Errorf("%w: %w", ErrProviderFailed, askErr)
	}
	ex.Reply = chat.NewMessage(chat.SenderBot, text, s.m.now().UTC())
	if err := s.store.AppendMessage(chatID, ex.Reply); err != nil {
		return nil, err
	}
	if ex.Chat, err = s.store.Chat(chatID); err != nil {
		return nil, err
	}
	if _, err := s.Save(ctx); err != nil {
		return ex, errors.Join(askErr, err)
	}
	return ex, askErr
}

func (s *Session) CreatePrompt(ctx context.Context, family, name string, sentences []string) (chat.BotVariant, error) {
	v, err := s.store.CreateVariant(family, name, sentences)
	if err != nil {
		return chat.BotVariant{}, err
	}
	_, err = s.Save(ctx)
	return v, err
}

// DeleteVariant removes a custom prompt variant and its chats.
func (s *Session) DeleteVariant(ctx context.Context, k chat.VariantKey) (int, error) {
	if k.PromptName == "" {
		return 0, ErrBaseVariant
	}
	n, err := s.store.DeleteVariant(k)
	if err != nil {
		return 0, err
	}
	s.keepMu.Lock()
	delete(s.keep.Variants, k)
	s.keepMu.Unlock()
	_, err = s.Save(ctx)
	return n, err
}

func (s *Session) DeleteChat(ctx context.Context, id string) error {
	if err := s.store.DeleteChat(id); err != nil {
		return err
	}
	s.keepMu.Lock()
	delete(s.keep.Chats, id)
	s.keepMu.Unlock()
	_, err := s.Save(ctx)
	return err
}

// Save persists the store locally and, for an authenticated session, pushes it.
// The report is nil for the guest session.
func (s *Session) Save(ctx context.Context) (*mirror.PushReport, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	snap := s.store.Snapshot()
	if err := s.m.repo.Save(ctx, s.account, snap); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSyncFailed, err)
	}
	if !s.Authenticated() {
		return nil, nil
	}
	report, err := s.m.reconciler.PushPreserving(ctx, s.account, snap, s.unlisted())
	if err != nil {
		return report, fmt.Errorf("%w: %w", ErrSyncFailed, err)
	}
	s.m.markPushed(ctx, s.account)
	return report, nil
}

// Pull fetches the remote tree, merges it into the store and persists the result.
// Local messages and chats survive below nodes whose remote listing failed.
func (s *Session) Pull(ctx context.Context) (*mirror.PullReport, error) {
	remote, report, err := s.m.fetcher.Pull(ctx, s.account)
	if err != nil {
		return report, err
	}
	s.store.MergeRemote(remote, report.Unlisted)
	s.keepMu.Lock()
	s.keep = cloneUnlisted(report.Unlisted)
	s.keepMu.Unlock()
	return report, s.Persist(ctx)
}

func (s *Session) unlisted() chat.Unlisted {
	s.keepMu.Lock()
	defer s.keepMu.Unlock()
	return cloneUnlisted(s.keep)
}

func cloneUnlisted(u chat.Unlisted) chat.Unlisted {
	out := chat.Unlisted{
		Variants: make(map[chat.VariantKey]bool, len(u.Variants)),
		Chats:    make(map[string]bool, len(u.Chats)),
	}
	for k := range u.Variants {
		out.Variants[k] = true
	}
	for id := range u.Chats {
		out.Chats[id] = true
	}
	return out
}

// Persist writes the store to the local repo without pushing.
func (s *Session) Persist(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return s.m.repo.Save(ctx, s.account, s.store.Snapshot())
}

func chatName(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) > maxChatNameLen {
		return strings.TrimSpace(string(r[:maxChatNameLen])) + "…"
	}
	if text == "" {
		return "New chat"
	}
	return text
}

func lastUserMessage(c chat.Chat) chat.Message {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Sender == chat.SenderUser {
			return c.Messages[i]
		}
	}
	return chat.Message{}
}
