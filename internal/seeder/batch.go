package seeder

import (
	"context"

	"github.com/Rana718/fireseed/internal/store"
)

// batcher accumulates writes and commits them whenever the batch reaches its
// limit. Counters only move once a commit succeeds.
type batcher struct {
	store   store.Store
	limit   int
	batch   store.Batch
	pending []pendingOp
	onFlush func(committed []pendingOp)
}

type pendingOp struct {
	path   string
	delete bool
	nested bool // below a top-level collection
}

func newBatcher(st store.Store, limit int, onFlush func([]pendingOp)) *batcher {
	return &batcher{
		store:   st,
		limit:   limit,
		batch:   st.NewBatch(),
		onFlush: onFlush,
	}
}

func (b *batcher) set(ctx context.Context, op pendingOp, data map[string]interface{}) error {
	b.batch.Set(op.path, data)
	b.pending = append(b.pending, op)
	return b.maybeFlush(ctx)
}

func (b *batcher) del(ctx context.Context, op pendingOp) error {
	op.delete = true
	b.batch.Delete(op.path)
	b.pending = append(b.pending, op)
	return b.maybeFlush(ctx)
}

func (b *batcher) maybeFlush(ctx context.Context) error {
	if len(b.pending) >= b.limit {
		return b.flush(ctx)
	}
	return nil
}

// flush commits whatever is pending. An empty batch is a no-op.
func (b *batcher) flush(ctx context.Context) error {
	if len(b.pending) == 0 {
		return nil
	}

	last := b.pending[len(b.pending)-1].path
	if err := b.batch.Commit(ctx); err != nil {
		return Classify("commit batch ending at", last, err)
	}

	committed := b.pending
	b.pending = nil
	b.batch = b.store.NewBatch()
	if b.onFlush != nil {
		b.onFlush(committed)
	}
	return nil
}
