package docstore

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Redis stores each document as a JSON string and indexes collections with sets:
//
//	{prefix}doc:{path}         -> JSON payload
//	{prefix}col:{collection}   -> set of document keys
//
// Commit runs inside MULTI/EXEC.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) docKey(doc Path) string        { return r.prefix + "doc:" + doc.String() }
func (r *Redis) colKey(collection Path) string { return r.prefix + "col:" + collection.String() }

func (r *Redis) List(ctx context.Context, collection Path) ([]Document, error) {
	if err := collection.validate(); err != nil {
		return nil, err
	}
	keys, err := r.client.SMembers(ctx, r.colKey(collection)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", collection)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	sort.Strings(keys)

	docKeys := make([]string, len(keys))
	for i, k := range keys {
		docKeys[i] = r.docKey(collection.Doc(k))
	}
	vals, err := r.client.MGet(ctx, docKeys...).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", collection)
	}

	out := make([]Document, 0, len(keys))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			// index entry without a document
			continue
		}
		data, err := decodeFields([]byte(s))
		if err != nil {
			return nil, err
		}
		out = append(out, Document{Path: collection.Doc(keys[i]), Data: data})
	}
	return out, nil
}

func (r *Redis) Batch() Batch {
	return &redisBatch{store: r}
}

type redisBatch struct {
	opLog
	store *Redis
}

func (b *redisBatch) Commit(ctx context.Context) error {
	ops, err := b.take()
	if err != nil {
		return err
	}
	r := b.store
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, o := range ops {
			col := r.colKey(o.path.Parent())
			switch o.kind {
			case opSet:
				pipe.Set(ctx, r.docKey(o.path), o.data, 0)
				pipe.SAdd(ctx, col, o.path.Key())
			case opDelete:
				pipe.Del(ctx, r.docKey(o.path))
				pipe.SRem(ctx, col, o.path.Key())
			}
		}
		return nil
	})
	return errors.Wrap(err, "redis commit")
}
