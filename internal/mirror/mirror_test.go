package mirror

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emirg23/multi-BotChat/internal/chat"
	"github.com/emirg23/multi-BotChat/internal/docstore"
)

const account = "Someone@Example.com"

var (
	t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Minute)
	t2 = t0.Add(2 * time.Minute)
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPair(store docstore.Store) (*Reconciler, *Fetcher) {
	return NewReconciler(store, WithLogger(quietLogger()), WithConcurrency(3)),
		NewFetcher(store, WithLogger(quietLogger()))
}

func msg(id string, s chat.Sender, text string, at time.Time) chat.Message {
	return chat.Message{ID: id, Sender: s, Text: text, Date: at}
}

func sampleSnapshot() chat.Snapshot {
	return chat.Snapshot{
		Bots: []chat.BotVariant{
			{ID: "b1", Family: "Claude", Prompt: []string{""}},
			{ID: "b2", Family: "ChatGPT", PromptName: "Pirate", Prompt: []string{"Talk like a pirate", "Be brief"}},
			{ID: "b3", Family: "Gemini", Prompt: []string{""}},
		},
		Chats: []chat.Chat{
			{
				ID: "c1", BotName: "Claude", Name: "Greeting", CreatedAt: t0,
				Messages: []chat.Message{
					msg("m1", chat.SenderUser, "hi", t0),
					msg("m2", chat.SenderBot, "hello", t1),
				},
			},
			{
				ID: "c2", BotName: "ChatGPT", PromptName: "Pirate", Name: "Arr", CreatedAt: t0,
				Messages: []chat.Message{
					msg("m3", chat.SenderUser, "ahoy", t1),
					msg("m4", chat.SenderBot, "ahoy matey", t2),
				},
			},
			{ID: "c3", BotName: "Claude", Name: "Empty", CreatedAt: t1},
		},
	}
}

type variantView struct {
	Key    chat.VariantKey
	Prompt []string
}

func variants(bots []chat.BotVariant) []variantView {
	out := make([]variantView, 0, len(bots))
	for _, b := range bots {
		out = append(out, variantView{Key: b.Key(), Prompt: b.Prompt})
	}
	return out
}

func chatsByID(chats []chat.Chat) map[string]chat.Chat {
	out := make(map[string]chat.Chat, len(chats))
	for _, c := range chats {
		if len(c.Messages) == 0 {
			c.Messages = nil
		}
		out[c.ID] = c
	}
	return out
}

func assertSameTree(t *testing.T, want, got chat.Snapshot) {
	t.Helper()
	assert.ElementsMatch(t, variants(want.Bots), variants(got.Bots))
	assert.Equal(t, chatsByID(want.Chats), chatsByID(got.Chats))
}

func TestPushThenPullRoundTrip(t *testing.T) {
	store := docstore.NewMemory()
	r, f := newPair(store)
	snap := sampleSnapshot()

	report, err := r.Push(context.Background(), account, snap)
	require.NoError(t, err)
	assert.Equal(t, "someone@example.com", report.Account)
	assert.Equal(t, 3+3+4, report.Writes)
	assert.Zero(t, report.Deletes)

	got, pull, err := f.Pull(context.Background(), account)
	require.NoError(t, err)
	assert.Empty(t, pull.ListFailures)
	assert.Zero(t, pull.Malformed)
	assertSameTree(t, snap, got)
}

func TestRoundTripEmptyStore(t *testing.T) {
	store := docstore.NewMemory()
	r, f := newPair(store)

	_, err := r.Push(context.Background(), account, chat.Snapshot{})
	require.NoError(t, err)
	assert.Empty(t, store.Paths())

	got, _, err := f.Pull(context.Background(), account)
	require.NoError(t, err)
	assert.Empty(t, got.Bots)
	assert.Empty(t, got.Chats)
}

func TestPushIsIdempotent(t *testing.T) {
	store := docstore.NewMemory()
	r, _ := newPair(store)
	snap := sampleSnapshot()

	_, err := r.Push(context.Background(), account, snap)
	require.NoError(t, err)
	once := store.Paths()

	report, err := r.Push(context.Background(), account, snap)
	require.NoError(t, err)
	assert.Zero(t, report.Deletes)
	assert.Equal(t, once, store.Paths())
	assert.Equal(t, 2, store.Commits())
}

func TestDeletedChatIsRemovedRemotely(t *testing.T) {
	store := docstore.NewMemory()
	r, f := newPair(store)
	snap := sampleSnapshot()
	_, err := r.Push(context.Background(), account, snap)
	require.NoError(t, err)

	snap.Chats = snap.Chats[1:]
	report, err := r.Push(context.Background(), account, snap)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Deletes)

	for _, p := range store.Paths() {
		assert.NotContains(t, p, "/c1")
	}
	got, _, err := f.Pull(context.Background(), account)
	require.NoError(t, err)
	assert.NotContains(t, chatsByID(got.Chats), "c1")
	assertSameTree(t, snap, got)
}

func TestDeletedVariantRemovesItsSubtree(t *testing.T) {
	store := docstore.NewMemory()
	r, _ := newPair(store)
	snap := sampleSnapshot()
	_, err := r.Push(context.Background(), account, snap)
	require.NoError(t, err)

	snap.Bots = snap.Bots[:1]
	snap.Chats = []chat.Chat{snap.Chats[0]}
	_, err = r.Push(context.Background(), account, snap)
	require.NoError(t, err)

	for _, p := range store.Paths() {
		assert.Contains(t, p, "users/someone@example.com/bots/Claude")
	}
	_, ok := store.Get(docstore.AccountRoot(account).Collection("bots").Doc("Claude"))
	assert.True(t, ok)
}

func TestPullSortsMessagesWhateverTheListingOrder(t *testing.T) {
	for _, order := range []docstore.ListOrder{docstore.OrderReverse, docstore.OrderShuffled} {
		store := docstore.NewMemory()
		r, f := newPair(store)

		c := chat.Chat{ID: "c1", BotName: "Claude", CreatedAt: t0}
		// ids sort opposite to dates so key order alone cannot produce the right answer
		for i := 0; i < 12; i++ {
			id := string(rune('z' - i))
			c.Messages = append(c.Messages, msg(id, chat.SenderUser, id, t0.Add(time.Duration(i)*time.Second)))
		}
		_, err := r.Push(context.Background(), account, chat.Snapshot{
			Bots:  []chat.BotVariant{{Family: "Claude", Prompt: []string{""}}},
			Chats: []chat.Chat{c},
		})
		require.NoError(t, err)

		store.SetListOrder(order)
		got, _, err := f.Pull(context.Background(), account)
		require.NoError(t, err)
		require.Len(t, got.Chats, 1)
		msgs := got.Chats[0].Messages
		require.Len(t, msgs, 12)
		for i := 0; i+1 < len(msgs); i++ {
			assert.False(t, msgs[i+1].Date.Before(msgs[i].Date), "order %d index %d", order, i)
		}
	}
}

func TestPullOrdersChatsByLastActivity(t *testing.T) {
	store := docstore.NewMemory()
	r, f := newPair(store)
	_, err := r.Push(context.Background(), account, sampleSnapshot())
	require.NoError(t, err)

	got, _, err := f.Pull(context.Background(), account)
	require.NoError(t, err)
	var ids []string
	for _, c := range got.Chats {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"c2", "c1", "c3"}, ids)
}

func TestFailedMessageListingSkipsOnlyThatBranch(t *testing.T) {
	store := docstore.NewMemory()
	r, _ := newPair(store)
	snap := sampleSnapshot()
	_, err := r.Push(context.Background(), account, snap)
	require.NoError(t, err)

	root := docstore.AccountRoot(account)
	claude := root.Collection("bots").Doc("Claude")
	pirate := root.Collection("bots").Doc("ChatGPT • Pirate")
	c1 := claude.Collection("chats").Doc("c1")
	c2 := pirate.Collection("chats").Doc("c2")
	store.FailList(c1.Collection("messages"), errors.New("unavailable"))

	// Drop every chat locally: c1 cannot be cleaned up, c2 and c3 can.
	snap.Chats = nil
	report, err := r.Push(context.Background(), account, snap)
	require.NoError(t, err)
	require.Len(t, report.ListFailures, 1)
	assert.ErrorIs(t, report.ListFailures[0], ErrRemoteList)
	assert.Equal(t, c1.Collection("messages").String(), report.ListFailures[0].Collection)

	_, ok := store.Get(c1)
	assert.True(t, ok, "chat whose messages could not be listed must survive")
	_, ok = store.Get(c1.Collection("messages").Doc("m1"))
	assert.True(t, ok)
	_, ok = store.Get(c2)
	assert.False(t, ok)
	_, ok = store.Get(c2.Collection("messages").Doc("m3"))
	assert.False(t, ok)
	_, ok = store.Get(claude.Collection("chats").Doc("c3"))
	assert.False(t, ok)
	assert.Equal(t, 2, store.Commits())
}

func TestFailedChatListingKeepsVariantDocument(t *testing.T) {
	store := docstore.NewMemory()
	r, _ := newPair(store)
	snap := sampleSnapshot()
	_, err := r.Push(context.Background(), account, snap)
	require.NoError(t, err)

	root := docstore.AccountRoot(account)
	pirate := root.Collection("bots").Doc("ChatGPT • Pirate")
	store.FailList(pirate.Collection("chats"), errors.New("timeout"))

	_, err = r.Push(context.Background(), account, chat.Snapshot{})
	require.NoError(t, err)

	_, ok := store.Get(pirate)
	assert.True(t, ok)
	_, ok = store.Get(pirate.Collection("chats").Doc("c2"))
	assert.True(t, ok)
	_, ok = store.Get(root.Collection("bots").Doc("Claude"))
	assert.False(t, ok)
}

func TestFailedRootListingStillWrites(t *testing.T) {
	store := docstore.NewMemory()
	r, _ := newPair(store)
	store.FailList(docstore.AccountRoot(account).Collection("bots"), errors.New("down"))

	report, err := r.Push(context.Background(), account, sampleSnapshot())
	require.NoError(t, err)
	assert.Len(t, report.ListFailures, 1)
	assert.Zero(t, report.Deletes)
	assert.Len(t, store.Paths(), 10)
}

func TestClaudeTwoMessageScenario(t *testing.T) {
	store := docstore.NewMemory()
	r, f := newPair(store)
	snap := chat.Snapshot{
		Bots: []chat.BotVariant{{Family: "Claude", PromptName: "", Prompt: []string{""}}},
		Chats: []chat.Chat{{
			ID: "c1", BotName: "Claude",
			Messages: []chat.Message{
				msg("m-hi", chat.SenderUser, "hi", t0),
				msg("m-hello", chat.SenderBot, "hello", t1),
			},
		}},
	}
	_, err := r.Push(context.Background(), account, snap)
	require.NoError(t, err)

	store.SetListOrder(docstore.OrderReverse)
	got, _, err := f.Pull(context.Background(), account)
	require.NoError(t, err)
	require.Len(t, got.Chats, 1)
	c := got.Chats[0]
	assert.Equal(t, "c1", c.ID)
	require.Len(t, c.Messages, 2)
	assert.Equal(t, "hi", c.Messages[0].Text)
	assert.Equal(t, chat.SenderUser, c.Messages[0].Sender)
	assert.True(t, c.Messages[0].Date.Equal(t0))
	assert.Equal(t, "hello", c.Messages[1].Text)
	assert.Equal(t, chat.SenderBot, c.Messages[1].Sender)
	assert.True(t, c.Messages[1].Date.Equal(t1))
}

func TestEmptyLocalClearsDeepRemoteInOneCommit(t *testing.T) {
	store := docstore.NewMemory()
	root := docstore.AccountRoot(account)
	for _, bot := range []string{"Claude", "LLaMA • Poet"} {
		b := root.Collection("bots").Doc(bot)
		require.NoError(t, store.Seed(b, docstore.Fields{"promptName": ""}))
		for _, id := range []string{"x", "y"} {
			c := b.Collection("chats").Doc(id)
			require.NoError(t, store.Seed(c, docstore.Fields{"name": id}))
			for _, mid := range []string{"1", "2", "3"} {
				require.NoError(t, store.Seed(c.Collection("messages").Doc(mid),
					docstore.Fields{"sender": "user", "text": mid, "date": encodeTime(t0)}))
			}
		}
	}
	other := docstore.AccountRoot("other@example.com").Collection("bots").Doc("Claude")
	require.NoError(t, store.Seed(other, docstore.Fields{"promptName": ""}))

	r, f := newPair(store)
	report, err := r.Push(context.Background(), account, chat.Snapshot{})
	require.NoError(t, err)
	assert.Equal(t, 2+4+12, report.Deletes)
	assert.Equal(t, 1, store.Commits())
	assert.Equal(t, []string{other.String()}, store.Paths())

	got, _, err := f.Pull(context.Background(), account)
	require.NoError(t, err)
	assert.Empty(t, got.Bots)
	assert.Empty(t, got.Chats)
}

func TestCommitFailureLeavesRemoteUntouched(t *testing.T) {
	store := docstore.NewMemory()
	r, _ := newPair(store)
	snap := sampleSnapshot()
	_, err := r.Push(context.Background(), account, snap)
	require.NoError(t, err)
	before := store.Paths()

	cause := errors.New("quota exceeded")
	store.FailCommit(cause)
	_, err = r.Push(context.Background(), account, chat.Snapshot{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRemoteCommit)
	assert.ErrorIs(t, err, cause)
	var ce *CommitError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "someone@example.com", ce.Account)
	assert.Equal(t, before, store.Paths())
}

func TestCancelledPushDoesNotCommit(t *testing.T) {
	store := docstore.NewMemory()
	r, _ := newPair(store)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Push(ctx, account, sampleSnapshot())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.Paths())
	assert.Zero(t, store.Commits())
}

func TestUnauthenticated(t *testing.T) {
	r, f := newPair(docstore.NewMemory())
	_, err := r.Push(context.Background(), "  ", sampleSnapshot())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	_, _, err = f.Pull(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestPushSkipsChatsOfUnknownVariants(t *testing.T) {
	store := docstore.NewMemory()
	r, _ := newPair(store)
	snap := sampleSnapshot()
	snap.Chats = append(snap.Chats, chat.Chat{ID: "orphan", BotName: "DeepSeek"})

	report, err := r.Push(context.Background(), account, snap)
	require.NoError(t, err)
	assert.Equal(t, []string{"orphan"}, report.SkippedChats)
	for _, p := range store.Paths() {
		assert.NotContains(t, p, "orphan")
	}
}

func TestPushWritesEmptyPromptMarker(t *testing.T) {
	store := docstore.NewMemory()
	r, _ := newPair(store)
	snap := chat.Snapshot{Bots: []chat.BotVariant{
		{Family: "Claude", PromptName: "Blank", Prompt: []string{"Be kind", "  "}},
	}}
	_, err := r.Push(context.Background(), account, snap)
	require.NoError(t, err)

	data, ok := store.Get(docstore.AccountRoot(account).Collection("bots").Doc("Claude • Blank"))
	require.True(t, ok)
	assert.Equal(t, docstore.Fields{"promptName": ""}, data)
}

func TestPullFailures(t *testing.T) {
	store := docstore.NewMemory()
	r, f := newPair(store)
	_, err := r.Push(context.Background(), account, sampleSnapshot())
	require.NoError(t, err)
	root := docstore.AccountRoot(account)

	t.Run("root listing", func(t *testing.T) {
		store.FailList(root.Collection("bots"), errors.New("down"))
		defer store.FailList(root.Collection("bots"), nil)
		_, _, err := f.Pull(context.Background(), account)
		assert.ErrorIs(t, err, ErrRemoteList)
	})

	t.Run("nested listing", func(t *testing.T) {
		col := root.Collection("bots").Doc("Claude").Collection("chats").Doc("c1").Collection("messages")
		store.FailList(col, errors.New("down"))
		defer store.FailList(col, nil)
		got, report, err := f.Pull(context.Background(), account)
		require.NoError(t, err)
		require.Len(t, report.ListFailures, 1)
		c1 := chatsByID(got.Chats)["c1"]
		assert.Empty(t, c1.Messages)
		assert.Len(t, chatsByID(got.Chats)["c2"].Messages, 2)
	})

	t.Run("malformed documents", func(t *testing.T) {
		msgs := root.Collection("bots").Doc("Claude").Collection("chats").Doc("c1").Collection("messages")
		require.NoError(t, store.Seed(msgs.Doc("bad"), docstore.Fields{"sender": "user", "text": "?"}))
		require.NoError(t, store.Seed(msgs.Doc("m0"), docstore.Fields{"date": encodeTime(t0.Add(-time.Hour))}))
		got, report, err := f.Pull(context.Background(), account)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Malformed)
		c1 := chatsByID(got.Chats)["c1"]
		require.Len(t, c1.Messages, 3)
		assert.Equal(t, "m0", c1.Messages[0].ID)
		assert.Equal(t, chat.Sender(""), c1.Messages[0].Sender)
		assert.Equal(t, "", c1.Messages[0].Text)
	})
}

func TestPulledCatalogueMergesByKey(t *testing.T) {
	store := docstore.NewMemory()
	r, f := newPair(store)
	_, err := r.Push(context.Background(), account, sampleSnapshot())
	require.NoError(t, err)
	remote, _, err := f.Pull(context.Background(), account)
	require.NoError(t, err)

	local := chat.NewStore(chat.Snapshot{})
	local.MergeRemote(remote, chat.Unlisted{})
	first := local.Bots()
	local.MergeRemote(remote, chat.Unlisted{})
	assert.Equal(t, first, local.Bots())
	assert.Len(t, first, len(chat.BaseFamilies)+1)
}

func TestPullReportsUnlistedNodes(t *testing.T) {
	store := docstore.NewMemory()
	r, f := newPair(store)
	_, err := r.Push(context.Background(), account, sampleSnapshot())
	require.NoError(t, err)

	root := docstore.AccountRoot(account)
	pirate := chat.VariantKey{Family: "ChatGPT", PromptName: "Pirate"}
	store.FailList(root.Collection("bots").Doc("Claude").Collection("chats").Doc("c1").Collection("messages"), errors.New("timeout"))
	store.FailList(root.Collection("bots").Doc(pirate.String()).Collection("chats"), errors.New("timeout"))

	_, report, err := f.Pull(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"c1": true}, report.Unlisted.Chats)
	assert.Equal(t, map[chat.VariantKey]bool{pirate: true}, report.Unlisted.Variants)
}

func TestPushPreservingKeepsChildrenOfKeptNodes(t *testing.T) {
	store := docstore.NewMemory()
	r, _ := newPair(store)
	_, err := r.Push(context.Background(), account, sampleSnapshot())
	require.NoError(t, err)

	pirate := chat.VariantKey{Family: "ChatGPT", PromptName: "Pirate"}
	local := chat.Snapshot{
		Bots: []chat.BotVariant{
			{Family: "Claude", Prompt: []string{""}},
			{Family: "ChatGPT", PromptName: "Pirate", Prompt: []string{"Talk like a pirate", "Be brief"}},
		},
		Chats: []chat.Chat{{ID: "c1", BotName: "Claude", Name: "Greeting", CreatedAt: t0}},
	}
	report, err := r.PushPreserving(context.Background(), account, local, chat.Unlisted{
		Variants: map[chat.VariantKey]bool{pirate: true},
		Chats:    map[string]bool{"c1": true},
	})
	require.NoError(t, err)
	// only c3 and the Gemini bot go
	assert.Equal(t, 2, report.Deletes)

	root := docstore.AccountRoot(account)
	c1 := root.Collection("bots").Doc("Claude").Collection("chats").Doc("c1")
	c2 := root.Collection("bots").Doc(pirate.String()).Collection("chats").Doc("c2")
	for _, p := range []docstore.Path{
		c1.Collection("messages").Doc("m1"),
		c1.Collection("messages").Doc("m2"),
		c2,
		c2.Collection("messages").Doc("m4"),
	} {
		_, ok := store.Get(p)
		assert.True(t, ok, p.String())
	}
	_, ok := store.Get(root.Collection("bots").Doc("Claude").Collection("chats").Doc("c3"))
	assert.False(t, ok)
	_, ok = store.Get(root.Collection("bots").Doc("Gemini"))
	assert.False(t, ok)
}
