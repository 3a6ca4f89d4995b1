package mirror

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/emirg23/multi-BotChat/internal/docstore"
)

const defaultConcurrency = 8

type options struct {
	logger      *slog.Logger
	concurrency int
}

type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithConcurrency caps the listing calls in flight per tree level.
func WithConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

func newOptions(opts []Option) options {
	o := options{logger: slog.Default(), concurrency: defaultConcurrency}
	for _, fn := range opts {
		fn(&o)
	}
	if o.concurrency <= 0 {
		o.concurrency = defaultConcurrency
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// node is one listed document. listed is false when listing its children failed,
// in which case children is empty and says nothing about the remote state.
type node struct {
	doc      docstore.Document
	listed   bool
	children []*node
}

// gather runs fn over items with at most limit calls in flight and waits for all
// of them. Errors are returned per item and never cancel siblings.
func gather[I any](ctx context.Context, limit int, items []I, fn func(context.Context, I) error) []error {
	errs := make([]error, len(items))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, item := range items {
		g.Go(func() error {
			errs[i] = fn(ctx, item)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

type walker struct {
	store docstore.Store
	options
}

type walkResult struct {
	bots     []*node
	rootErr  error
	failures []BranchError
}

// walk lists the bot, chat and message levels under root breadth-first. Each level
// starts once every listing of the previous level has finished. onMessages, when set,
// runs inside the level-3 task of every successfully listed chat.
func (w walker) walk(ctx context.Context, root docstore.Path, onMessages func(*node)) walkResult {
	var (
		res walkResult
		mu  sync.Mutex
	)
	fail := func(collection docstore.Path, err error) {
		w.logger.Warn("remote listing failed",
			slog.String("collection", collection.String()),
			slog.Any("error", err))
		mu.Lock()
		res.failures = append(res.failures, BranchError{Collection: collection.String(), Err: err})
		mu.Unlock()
	}

	botDocs, err := w.store.List(ctx, botsPath(root))
	if err != nil {
		fail(botsPath(root), err)
		res.rootErr = err
		return res
	}
	for _, d := range botDocs {
		res.bots = append(res.bots, &node{doc: d})
	}

	gather(ctx, w.concurrency, res.bots, func(ctx context.Context, bot *node) error {
		col := chatsPath(bot.doc.Path)
		docs, err := w.store.List(ctx, col)
		if err != nil {
			fail(col, err)
			return err
		}
		bot.listed = true
		for _, d := range docs {
			bot.children = append(bot.children, &node{doc: d})
		}
		return nil
	})

	var chats []*node
	for _, bot := range res.bots {
		chats = append(chats, bot.children...)
	}
	gather(ctx, w.concurrency, chats, func(ctx context.Context, c *node) error {
		col := messagesPath(c.doc.Path)
		docs, err := w.store.List(ctx, col)
		if err != nil {
			fail(col, err)
			return err
		}
		c.listed = true
		for _, d := range docs {
			c.children = append(c.children, &node{doc: d, listed: true})
		}
		if onMessages != nil {
			onMessages(c)
		}
		return nil
	})

	return res
}
