// Package docstore is a hierarchical document database addressed by paths such as
// users/{email}/bots/{key}/chats/{id}. Collections hold documents; documents may
// own sub-collections. Writes are staged on a Batch and applied atomically on Commit.
package docstore

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrBatchCommitted = errors.New("batch already committed")
	ErrInvalidPath    = errors.New("invalid document path")
)

// Store is the remote document store capability consumed by the mirror.
type Store interface {
	// List returns the documents directly under a collection, or an error for this
	// call only. An empty or missing collection is not an error.
	List(ctx context.Context, collection Path) ([]Document, error)
	// Batch starts a new set of staged writes and deletes.
	Batch() Batch
}

// Batch stages operations without side effects until Commit. Staging is safe from
// multiple goroutines. Commit applies every staged operation or none of them.
type Batch interface {
	Set(doc Path, data Fields)
	Delete(doc Path)
	Len() int
	Commit(ctx context.Context) error
}

// Fields is a document payload made of JSON-compatible values.
type Fields map[string]any

type Document struct {
	Path Path
	Data Fields
}

func (d Document) Key() string { return d.Path.Key() }

// Path is a slash-free list of segments. Odd lengths address collections, even
// lengths address documents.
type Path []string

// AccountRoot is the document owning every collection of an account.
func AccountRoot(email string) Path {
	return Path{"users", strings.ToLower(strings.TrimSpace(email))}
}

func (p Path) child(seg string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, seg)
}

func (p Path) Collection(name string) Path { return p.child(name) }
func (p Path) Doc(key string) Path         { return p.child(key) }

func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1:len(p)-1]
}

func (p Path) Key() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

func (p Path) IsDocument() bool { return len(p) > 0 && len(p)%2 == 0 }

func (p Path) String() string { return strings.Join(p, "/") }

func (p Path) validate() error {
	if len(p) == 0 {
		return errors.Wrap(ErrInvalidPath, "empty path")
	}
	for _, seg := range p {
		if seg == "" || strings.Contains(seg, "/") {
			return errors.Wrapf(ErrInvalidPath, "bad segment in %q", p.String())
		}
	}
	return nil
}

func (p Path) validateDocument() error {
	if err := p.validate(); err != nil {
		return err
	}
	if !p.IsDocument() {
		return errors.Wrapf(ErrInvalidPath, "%q is a collection", p.String())
	}
	return nil
}

func encodeFields(f Fields) ([]byte, error) {
	if f == nil {
		f = Fields{}
	}
	b, err := json.Marshal(f)
	return b, errors.Wrap(err, "encoding document")
}

func decodeFields(b []byte) (Fields, error) {
	var f Fields
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, errors.Wrap(err, "decoding document")
	}
	if f == nil {
		f = Fields{}
	}
	return f, nil
}

type opKind int

const (
	opSet opKind = iota
	opDelete
)

type op struct {
	kind opKind
	path Path
	data []byte
}

// opLog is the staging area shared by every backend's Batch.
type opLog struct {
	mu        sync.Mutex
	ops       []op
	err       error
	committed bool
}

func (l *opLog) Set(doc Path, data Fields) {
	b, err := encodeFields(data)
	if err == nil {
		err = doc.validateDocument()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		if l.err == nil {
			l.err = err
		}
		return
	}
	l.ops = append(l.ops, op{kind: opSet, path: append(Path(nil), doc...), data: b})
}

func (l *opLog) Delete(doc Path) {
	err := doc.validateDocument()
	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		if l.err == nil {
			l.err = err
		}
		return
	}
	l.ops = append(l.ops, op{kind: opDelete, path: append(Path(nil), doc...)})
}

func (l *opLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ops)
}

// take hands the staged operations to Commit exactly once. A staging error fails
// the whole batch.
func (l *opLog) take() ([]op, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.committed {
		return nil, ErrBatchCommitted
	}
	l.committed = true
	if l.err != nil {
		return nil, l.err
	}
	return l.ops, nil
}
