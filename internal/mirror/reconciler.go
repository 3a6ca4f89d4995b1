// Package mirror copies a Local Store onto a remote document tree and back.
//
// The remote tree for an account lives under users/{email}: one document per bot
// variant, chats below each variant and messages below each chat. Both directions
// walk the tree level by level and issue the listings of one level concurrently.
package mirror

import (
	"context"
	"log/slog"
	"sync"

	"github.com/emirg23/multi-BotChat/internal/chat"
	"github.com/emirg23/multi-BotChat/internal/docstore"
)

// PushReport describes one committed (or attempted) push.
type PushReport struct {
	Account      string
	Writes       int
	Deletes      int
	SkippedChats []string
	ListFailures []BranchError
}

// Reconciler replaces the remote tree of an account with a local snapshot.
type Reconciler struct {
	walker
}

func NewReconciler(store docstore.Store, opts ...Option) *Reconciler {
	return &Reconciler{walker{store: store, options: newOptions(opts)}}
}

// Push stages a write for every local variant, chat and message and a delete for
// every listed remote document that is not rewritten, then commits once. When a
// listing fails nothing under that node is deleted and the node itself is kept.
func (r *Reconciler) Push(ctx context.Context, account string, snap chat.Snapshot) (*PushReport, error) {
	return r.PushPreserving(ctx, account, snap, chat.Unlisted{})
}

// PushPreserving is Push without deletes below the nodes in keep: the chats of
// keep.Variants and the messages of keep.Chats stay remote even when the
// snapshot lacks them. Writes are unaffected.
func (r *Reconciler) PushPreserving(ctx context.Context, account string, snap chat.Snapshot, keep chat.Unlisted) (*PushReport, error) {
	root, err := accountRoot(account)
	if err != nil {
		return nil, err
	}
	report := &PushReport{Account: root.Key()}
	batch := r.store.Batch()

	written := make(map[string]bool)
	set := func(doc docstore.Path, f docstore.Fields) {
		batch.Set(doc, f)
		written[doc.String()] = true
		report.Writes++
	}

	variants := make(map[chat.VariantKey]bool, len(snap.Bots))
	for _, b := range snap.Bots {
		if variants[b.Key()] {
			continue
		}
		variants[b.Key()] = true
		set(botDoc(root, b.Key()), botFields(b))
	}
	for _, c := range snap.Chats {
		if !variants[c.Variant()] {
			r.logger.Warn("chat references unknown bot variant, not pushed",
				slog.String("account", report.Account),
				slog.String("chat", c.ID),
				slog.String("variant", c.Variant().String()))
			report.SkippedChats = append(report.SkippedChats, c.ID)
			continue
		}
		doc := chatDoc(botDoc(root, c.Variant()), c.ID)
		set(doc, chatFields(c))
		for _, m := range c.Messages {
			set(messageDoc(doc, m.ID), messageFields(m))
		}
	}

	// written is read-only from here on; message deletes are staged from the
	// concurrent level-3 tasks.
	var mu sync.Mutex
	deleteMessages := func(c *node) {
		botKey := c.doc.Path.Parent().Parent().Key()
		if keep.Chats[c.doc.Key()] || keep.Variants[chat.ParseVariantKey(botKey)] {
			return
		}
		n := 0
		for _, m := range c.children {
			if !written[m.doc.Path.String()] {
				batch.Delete(m.doc.Path)
				n++
			}
		}
		mu.Lock()
		report.Deletes += n
		mu.Unlock()
	}
	tree := r.walk(ctx, root, deleteMessages)
	report.ListFailures = tree.failures
	if err := ctx.Err(); err != nil {
		return report, err
	}

	for _, bot := range tree.bots {
		keepChats := keep.Variants[chat.ParseVariantKey(bot.doc.Key())]
		keepBot := !bot.listed || keepChats
		for _, c := range bot.children {
			switch {
			case written[c.doc.Path.String()]:
			case !c.listed, keepChats, keep.Chats[c.doc.Key()]:
				keepBot = true
			default:
				batch.Delete(c.doc.Path)
				report.Deletes++
			}
		}
		if !keepBot && !written[bot.doc.Path.String()] {
			batch.Delete(bot.doc.Path)
			report.Deletes++
		}
	}

	if err := batch.Commit(ctx); err != nil {
		r.logger.Error("sync commit failed",
			slog.String("account", report.Account),
			slog.Int("ops", batch.Len()),
			slog.Any("error", err))
		return report, &CommitError{Account: report.Account, Err: err}
	}
	r.logger.Info("sync committed",
		slog.String("account", report.Account),
		slog.Int("writes", report.Writes),
		slog.Int("deletes", report.Deletes),
		slog.Int("list_failures", len(report.ListFailures)))
	return report, nil
}
