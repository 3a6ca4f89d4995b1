package docstore

import (
	"context"
	"math/rand"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

type ListOrder int

const (
	OrderSorted ListOrder = iota
	OrderReverse
	OrderShuffled
)

// Memory is an in-process Store. Besides serving as a standalone backend it can
// inject listing and commit failures and scramble listing order.
type Memory struct {
	mu          sync.Mutex
	collections map[string]map[string][]byte
	listFail    map[string]error
	commitErr   error
	order       ListOrder
	rnd         *rand.Rand
	commits     int
	lists       int
}

func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]map[string][]byte),
		listFail:    make(map[string]error),
		rnd:         rand.New(rand.NewSource(1)),
	}
}

// FailList makes every List of the collection fail with err. A nil err clears it.
func (m *Memory) FailList(collection Path, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.listFail, collection.String())
		return
	}
	m.listFail[collection.String()] = err
}

// FailCommit makes every Commit fail with err. A nil err clears it.
func (m *Memory) FailCommit(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commitErr = err
}

func (m *Memory) SetListOrder(o ListOrder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order = o
}

func (m *Memory) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}

func (m *Memory) ListCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lists
}

func (m *Memory) List(ctx context.Context, collection Path) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := collection.validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	if err, ok := m.listFail[collection.String()]; ok {
		return nil, err
	}

	docs := m.collections[collection.String()]
	keys := make([]string, 0, len(docs))
	for k := range docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	switch m.order {
	case OrderReverse:
		for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
			keys[i], keys[j] = keys[j], keys[i]
		}
	case OrderShuffled:
		m.rnd.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	}

	out := make([]Document, 0, len(keys))
	for _, k := range keys {
		data, err := decodeFields(docs[k])
		if err != nil {
			return nil, err
		}
		out = append(out, Document{Path: collection.Doc(k), Data: data})
	}
	return out, nil
}

func (m *Memory) Batch() Batch {
	return &memoryBatch{store: m}
}

// Seed writes a single document outside of any batch.
func (m *Memory) Seed(doc Path, data Fields) error {
	b := m.Batch()
	b.Set(doc, data)
	return b.(*memoryBatch).apply(false)
}

// Paths lists every stored document path in sorted order.
func (m *Memory) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for col, docs := range m.collections {
		for k := range docs {
			out = append(out, col+"/"+k)
		}
	}
	sort.Strings(out)
	return out
}

// Get returns a stored document's fields.
func (m *Memory) Get(doc Path) (Fields, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.collections[doc.Parent().String()][doc.Key()]
	if !ok {
		return nil, false
	}
	f, err := decodeFields(b)
	if err != nil {
		return nil, false
	}
	return f, true
}

type memoryBatch struct {
	opLog
	store *Memory
}

func (b *memoryBatch) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.store.mu.Lock()
	commitErr := b.store.commitErr
	b.store.mu.Unlock()
	if commitErr != nil {
		return errors.Wrap(commitErr, "memory commit")
	}
	return b.apply(true)
}

func (b *memoryBatch) apply(counted bool) error {
	ops, err := b.take()
	if err != nil {
		return err
	}
	m := b.store
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range ops {
		col := o.path.Parent().String()
		switch o.kind {
		case opSet:
			docs, ok := m.collections[col]
			if !ok {
				docs = make(map[string][]byte)
				m.collections[col] = docs
			}
			docs[o.path.Key()] = o.data
		case opDelete:
			if docs, ok := m.collections[col]; ok {
				delete(docs, o.path.Key())
				if len(docs) == 0 {
					delete(m.collections, col)
				}
			}
		}
	}
	if counted {
		m.commits++
	}
	return nil
}
