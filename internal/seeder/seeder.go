package seeder

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Rana718/fireseed/internal/fixture"
	"github.com/Rana718/fireseed/internal/store"
)

var (
	infoColor = color.New(color.FgCyan)
	warnColor = color.New(color.FgYellow)
	doneColor = color.New(color.FgGreen)
)

type Seeder struct {
	store store.Store
	opts  Options
	log   *logrus.Logger
}

func New(st store.Store, opts Options, logger *logrus.Logger) *Seeder {
	def := DefaultOptions()
	if opts.BatchSize == 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.DeletePageSize == 0 {
		opts.DeletePageSize = def.DeletePageSize
	}
	if opts.MaxDepth == 0 {
		opts.MaxDepth = def.MaxDepth
	}
	if opts.IDPolicy.Aliases == nil {
		opts.IDPolicy = def.IDPolicy
	}
	if opts.First == nil {
		opts.First = def.First
	}
	if opts.Out == nil {
		opts.Out = color.Output
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Seeder{store: st, opts: opts, log: logger}
}

func (o Options) validate() error {
	if o.BatchSize < 1 || o.BatchSize > MaxBatchSize {
		return fmt.Errorf("batch size %d out of range 1..%d", o.BatchSize, MaxBatchSize)
	}
	if o.DeletePageSize < 1 || o.DeletePageSize > MaxBatchSize {
		return fmt.Errorf("delete page size %d out of range 1..%d", o.DeletePageSize, MaxBatchSize)
	}
	if o.MaxDepth < 1 {
		return fmt.Errorf("max depth must be positive, got %d", o.MaxDepth)
	}
	return nil
}

// Seed writes every collection of the fixture. Collections are handled one at
// a time; with Reseed each one is deleted right before it is rewritten.
//
// The returned summary is never nil. When an error stops the run, documents
// committed before it stay in the store and are counted in the summary.
func (s *Seeder) Seed(ctx context.Context, fx *fixture.Fixture) (*Summary, error) {
	start := time.Now()
	summary := &Summary{
		RunID:    uuid.NewString(),
		Skipped:  fx.Skipped,
		Warnings: fx.Warnings,
	}
	defer func() { summary.Duration = time.Since(start) }()

	if err := s.opts.validate(); err != nil {
		return summary, Validation("check options", err)
	}
	if err := s.Preflight(fx); err != nil {
		return summary, err
	}

	log := s.log.WithField("run", summary.RunID)
	for _, name := range fx.Skipped {
		log.WithField("key", name).Warn("top-level value is not a list, skipped")
	}
	for _, w := range fx.Warnings {
		log.Warn(w)
	}

	order := InsertionOrder(fx.Names(), s.opts.First)
	infoColor.Fprintf(s.opts.Out, "🌱 Seeding %d collections (%d documents)...\n", len(order), fx.DocumentCount())

	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return summary, Classify("seed", name, err)
		}
		if err := s.seedCollection(ctx, log, summary, fx.Collection(name)); err != nil {
			return summary, err
		}
	}

	return summary, nil
}

func (s *Seeder) seedCollection(ctx context.Context, log *logrus.Entry, summary *Summary, coll *fixture.Collection) error {
	cs := summary.collection(coll.Name)
	log = log.WithField("collection", coll.Name)

	b := newBatcher(s.store, s.opts.BatchSize, func(ops []pendingOp) {
		cs.Batches++
		summary.Batches++
		for _, op := range ops {
			switch {
			case op.delete:
				cs.Deleted++
				summary.Deleted++
			case op.nested:
				cs.Nested++
				summary.Written++
			default:
				cs.Documents++
				summary.Written++
			}
		}
		log.WithFields(logrus.Fields{
			"ops":  len(ops),
			"last": ops[len(ops)-1].path,
		}).Debug("batch committed")
	})

	if s.opts.Reseed {
		warnColor.Fprintf(s.opts.Out, "  🗑️  Deleting %s...\n", coll.Name)
		if err := s.deleteCollection(ctx, log, b, coll.Name, 1); err != nil {
			return err
		}
		if err := b.flush(ctx); err != nil {
			return err
		}
	}

	infoColor.Fprintf(s.opts.Out, "  📝 Seeding %s (%d documents)...\n", coll.Name, len(coll.Docs))
	if err := s.writeDocuments(ctx, log, b, coll.Name, coll.Docs, 1); err != nil {
		return err
	}
	if err := b.flush(ctx); err != nil {
		return err
	}

	doneColor.Fprintf(s.opts.Out, "  ✅ %s: %d documents, %d nested, %d batches\n", coll.Name, cs.Documents, cs.Nested, cs.Batches)
	return nil
}

func (s *Seeder) writeDocuments(ctx context.Context, log *logrus.Entry, b *batcher, collectionPath string, docs []*fixture.Document, depth int) error {
	name := store.Base(collectionPath)

	for _, d := range docs {
		id, alias, err := s.opts.IDPolicy.Resolve(name, d)
		if err != nil {
			return Validation("resolve id", err)
		}

		path := store.Join(collectionPath, id)
		log.WithFields(logrus.Fields{
			"path":  path,
			"id":    id,
			"index": d.Index,
			"alias": alias,
		}).Info("writing document")

		if err := b.set(ctx, pendingOp{path: path, nested: depth > 1}, d.Payload(alias)); err != nil {
			return err
		}

		for _, sub := range d.Subcollections() {
			if err := s.writeDocuments(ctx, log, b, store.Join(path, sub.Name), sub.Docs, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// deleteCollection removes a collection page by page. Each document's
// subcollections go first, so a parent is never deleted before its children
// are committed as deleted.
func (s *Seeder) deleteCollection(ctx context.Context, log *logrus.Entry, b *batcher, collectionPath string, depth int) error {
	// Deletes before this point may already be committed.
	if depth > s.opts.MaxDepth {
		return &Error{
			Kind: KindBackend,
			Op:   "delete",
			Path: collectionPath,
			Err:  fmt.Errorf("collection nesting deeper than %d", s.opts.MaxDepth),
		}
	}

	for {
		page, err := s.store.Page(ctx, collectionPath, store.PageOptions{
			Limit:    s.opts.DeletePageSize,
			KeysOnly: true,
		})
		if err != nil {
			return Classify("list documents in", collectionPath, err)
		}
		if len(page) == 0 {
			return nil
		}

		for _, doc := range page {
			path := store.Join(collectionPath, doc.ID)

			subs, err := s.store.Collections(ctx, path)
			if err != nil {
				return Classify("list subcollections of", path, err)
			}
			for _, sub := range subs {
				if err := s.deleteCollection(ctx, log, b, store.Join(path, sub), depth+1); err != nil {
					return err
				}
			}

			log.WithField("path", path).Debug("deleting document")
			if err := b.del(ctx, pendingOp{path: path, nested: depth > 1}); err != nil {
				return err
			}
		}

		// The next page query must not see this page again.
		if err := b.flush(ctx); err != nil {
			return err
		}
	}
}
