// Package memstore is an in-memory document store. It backs dry runs and
// tests, records every commit, and can be told to fail specific operations.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/Rana718/fireseed/internal/store"
)

type OpKind string

const (
	OpSet    OpKind = "set"
	OpDelete OpKind = "delete"
)

type Op struct {
	Kind OpKind
	Path string
	Data map[string]interface{}
}

// Commit is one applied batch, in commit order.
type Commit struct {
	Seq int
	Ops []Op
}

// FailFunc decides whether a committed batch is rejected. Returning a non-nil
// error fails the whole batch; nothing in it is applied.
type FailFunc func(commitSeq int, ops []Op) error

type Store struct {
	mu      sync.Mutex
	docs    map[string]map[string]interface{}
	commits []Commit
	calls   int
	failOn  FailFunc
	pageErr error
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{docs: make(map[string]map[string]interface{})}
}

// FailCommits installs a hook that can reject batches.
func (s *Store) FailCommits(fn FailFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn = fn
}

// FailPages makes every Page and Collections call return err.
func (s *Store) FailPages(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageErr = err
}

// Put writes a document directly, bypassing batches and call counting.
func (s *Store) Put(path string, data map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[path] = copyMap(data)
}

// Get returns a copy of the document at path.
func (s *Store) Get(path string) (map[string]interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[path]
	if !ok {
		return nil, false
	}
	return copyMap(d), true
}

// Paths lists every stored document path in sorted order.
func (s *Store) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.docs))
	for p := range s.docs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Snapshot copies the whole tree keyed by document path.
func (s *Store) Snapshot() map[string]map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]map[string]interface{}, len(s.docs))
	for p, d := range s.docs {
		out[p] = copyMap(d)
	}
	return out
}

// Commits returns the commit log.
func (s *Store) Commits() []Commit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Commit(nil), s.commits...)
}

// Calls counts backend round trips: commits, pages and collection listings.
func (s *Store) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *Store) NewBatch() store.Batch {
	return &batch{store: s}
}

func (s *Store) Page(ctx context.Context, collectionPath string, opts store.PageOptions) ([]store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.pageErr != nil {
		return nil, s.pageErr
	}

	prefix := collectionPath + "/"
	var ids []string
	for p := range s.docs {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		id := p[len(prefix):]
		if strings.Contains(id, "/") || id <= opts.After {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if opts.Limit > 0 && len(ids) > opts.Limit {
		ids = ids[:opts.Limit]
	}

	out := make([]store.Document, 0, len(ids))
	for _, id := range ids {
		doc := store.Document{ID: id}
		if !opts.KeysOnly {
			doc.Data = copyMap(s.docs[prefix+id])
		}
		out = append(out, doc)
	}
	return out, nil
}

// Collections finds subcollections by looking for any stored path below the
// document, so a collection under a missing parent is still listed.
func (s *Store) Collections(ctx context.Context, documentPath string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.pageErr != nil {
		return nil, s.pageErr
	}

	prefix := ""
	if documentPath != "" {
		prefix = documentPath + "/"
	}
	seen := make(map[string]bool)
	for p := range s.docs {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := strings.Split(p[len(prefix):], "/")
		if len(rest) >= 2 {
			seen[rest[0]] = true
		}
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) Close() error { return nil }

type batch struct {
	store *Store
	ops   []Op
}

func (b *batch) Set(path string, data map[string]interface{}) {
	b.ops = append(b.ops, Op{Kind: OpSet, Path: path, Data: copyMap(data)})
}

func (b *batch) Delete(path string) {
	b.ops = append(b.ops, Op{Kind: OpDelete, Path: path})
}

func (b *batch) Len() int { return len(b.ops) }

func (b *batch) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s := b.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	seq := len(s.commits) + 1
	if s.failOn != nil {
		if err := s.failOn(seq, b.ops); err != nil {
			return err
		}
	}

	for _, op := range b.ops {
		switch op.Kind {
		case OpSet:
			s.docs[op.Path] = copyMap(op.Data)
		case OpDelete:
			delete(s.docs, op.Path)
		}
	}
	s.commits = append(s.commits, Commit{Seq: seq, Ops: b.ops})
	b.ops = nil
	return nil
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return copyMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}
