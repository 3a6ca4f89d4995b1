package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	gormsqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/emirg23/multi-BotChat/internal/ai"
	"github.com/emirg23/multi-BotChat/internal/chat"
	"github.com/emirg23/multi-BotChat/internal/config"
	"github.com/emirg23/multi-BotChat/internal/docstore"
)

func openDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(gormsqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	return gdb
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNewRegistryRoutesFamilies(t *testing.T) {
	cfg := config.Config{
		OllamaBaseURL: "http://ollama:11434",
		OllamaModel:   "llama3:latest",
		BotRoutes: map[string]ai.Route{
			"LLaMA":  {Provider: "ollama"},
			"Claude": {Provider: "anthropic", Model: "claude-3-5-haiku-latest"},
		},
	}
	reg := NewRegistry(cfg)
	assert.Equal(t, []string{"anthropic", "ollama", "openrouter", "stub"}, reg.Providers())

	p, err := reg.ForBot(context.Background(), "LLaMA")
	require.NoError(t, err)
	ollama, ok := p.(*ai.OllamaProvider)
	require.True(t, ok)
	assert.Equal(t, "llama3:latest", ollama.Model)

	p, err = reg.ForBot(context.Background(), "Claude")
	require.NoError(t, err)
	claude, ok := p.(*ai.AnthropicProvider)
	require.True(t, ok)
	assert.Equal(t, "claude-3-5-haiku-latest", claude.Model)

	p, err = reg.ForBot(context.Background(), "Canva")
	require.NoError(t, err)
	assert.IsType(t, &ai.StubProvider{}, p)
}

func TestNewWithSQLDocStore(t *testing.T) {
	cfg := config.Config{DocStore: docstore.KindSQL, SyncConcurrency: 4, ChatContextWindowSize: 20}
	a, err := New(cfg, openDB(t, "app_sql"), quiet())
	require.NoError(t, err)
	defer a.Close()
	assert.IsType(t, &docstore.SQL{}, a.Docs)
	assert.Nil(t, a.Redis)

	ctx := context.Background()
	s, err := a.Sessions.Open(ctx, "me@example.com")
	require.NoError(t, err)
	ex, err := s.Send(ctx, chat.VariantKey{Family: "Claude"}, "", "hi")
	require.NoError(t, err)
	assert.Equal(t, ai.PlaceholderReply, ex.Reply.Text)

	docs, err := a.Docs.List(ctx, docstore.AccountRoot("me@example.com").Collection("bots"))
	require.NoError(t, err)
	assert.Len(t, docs, len(chat.BaseFamilies))
}

func TestNewWithRedisDocStore(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Config{DocStore: "", RedisAddr: mr.Addr(), RedisPrefix: "t:"}
	a, err := New(cfg, openDB(t, "app_redis"), quiet())
	require.NoError(t, err)
	defer a.Close()
	assert.IsType(t, &docstore.Redis{}, a.Docs)
	require.NotNil(t, a.Redis)
}

func TestNewFailsWithoutRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err := New(config.Config{DocStore: "redis", RedisAddr: addr}, openDB(t, "app_noredis"), quiet())
	assert.Error(t, err)
}
