package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/emirg23/multi-BotChat/internal/chat"
	"github.com/emirg23/multi-BotChat/internal/docstore"
)

type PullReport struct {
	Account      string
	ListFailures []BranchError
	// Malformed counts message documents dropped for lacking a readable date.
	Malformed int
	// Unlisted holds the bots and chats behind ListFailures.
	Unlisted chat.Unlisted
}

func (r *PullReport) markUnlistedVariant(k chat.VariantKey) {
	if r.Unlisted.Variants == nil {
		r.Unlisted.Variants = make(map[chat.VariantKey]bool)
	}
	r.Unlisted.Variants[k] = true
}

func (r *PullReport) markUnlistedChat(id string) {
	if r.Unlisted.Chats == nil {
		r.Unlisted.Chats = make(map[string]bool)
	}
	r.Unlisted.Chats[id] = true
}

// Fetcher reads the remote tree of an account into a snapshot.
type Fetcher struct {
	walker
}

func NewFetcher(store docstore.Store, opts ...Option) *Fetcher {
	return &Fetcher{walker{store: store, options: newOptions(opts)}}
}

// Pull returns everything stored remotely for account. Only a failure to list the
// bot collection itself is an error; nested failures leave that node childless
// and are recorded in the report.
func (f *Fetcher) Pull(ctx context.Context, account string) (chat.Snapshot, *PullReport, error) {
	root, err := accountRoot(account)
	if err != nil {
		return chat.Snapshot{}, nil, err
	}
	report := &PullReport{Account: root.Key()}

	tree := f.walk(ctx, root, nil)
	report.ListFailures = tree.failures
	if tree.rootErr != nil {
		return chat.Snapshot{}, report, fmt.Errorf("%w: %s: %w", ErrRemoteList, botsPath(root), tree.rootErr)
	}
	if err := ctx.Err(); err != nil {
		return chat.Snapshot{}, report, err
	}

	var snap chat.Snapshot
	for _, bot := range tree.bots {
		v := decodeBot(bot.doc)
		snap.Bots = append(snap.Bots, v)
		if !bot.listed {
			report.markUnlistedVariant(v.Key())
		}
		for _, cn := range bot.children {
			c := decodeChat(cn.doc, v.Key())
			if !cn.listed {
				report.markUnlistedChat(c.ID)
			}
			for _, mn := range cn.children {
				m, err := decodeMessage(mn.doc)
				if err != nil {
					f.logger.Warn("skipping malformed message",
						slog.String("path", mn.doc.Path.String()),
						slog.Any("error", err))
					report.Malformed++
					continue
				}
				c.Messages = append(c.Messages, m)
			}
			sortMessages(c.Messages)
			snap.Chats = append(snap.Chats, c)
		}
	}
	sortChats(snap.Chats)
	return snap, report, nil
}

func sortMessages(msgs []chat.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].Date.Equal(msgs[j].Date) {
			return msgs[i].Date.Before(msgs[j].Date)
		}
		return msgs[i].ID < msgs[j].ID
	})
}

// sortChats orders chats newest activity first.
func sortChats(chats []chat.Chat) {
	sort.SliceStable(chats, func(i, j int) bool {
		a, b := chats[i].LastMessageDate(), chats[j].LastMessageDate()
		if !a.Equal(b) {
			return a.After(b)
		}
		return chats[i].ID < chats[j].ID
	})
}
