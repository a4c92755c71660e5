package seeder

import (
	"fmt"

	"github.com/Rana718/fireseed/internal/fixture"
	"github.com/Rana718/fireseed/internal/store"
)

// Preflight checks the whole fixture before anything is written: collection
// names, resolved ids, duplicate ids within a collection and nesting depth.
func (s *Seeder) Preflight(fx *fixture.Fixture) error {
	for _, coll := range fx.Collections {
		if err := store.ValidateSegment(coll.Name); err != nil {
			return Validation("check collection name", err)
		}
		if err := s.checkDocuments(coll.Name, coll.Docs, 1); err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) checkDocuments(collectionPath string, docs []*fixture.Document, depth int) error {
	name := store.Base(collectionPath)
	seen := make(map[string]int, len(docs))
	for _, d := range docs {
		id, _, err := s.opts.IDPolicy.Resolve(name, d)
		if err != nil {
			return &Error{Kind: KindValidation, Op: "resolve id in", Path: collectionPath, Err: err}
		}
		if prev, dup := seen[id]; dup {
			return &Error{
				Kind: KindValidation,
				Op:   "resolve id in",
				Path: collectionPath,
				Err:  fmt.Errorf("documents %d and %d both resolve to id %q", prev, d.Index, id),
			}
		}
		seen[id] = d.Index

		path := store.Join(collectionPath, id)
		if nesting := depth - 1 + d.Depth(); nesting > s.opts.MaxDepth {
			return &Error{
				Kind: KindValidation,
				Op:   "check nesting of",
				Path: path,
				Err:  fmt.Errorf("collections nest %d deep, limit is %d", nesting, s.opts.MaxDepth),
			}
		}

		for _, sub := range d.Subcollections() {
			if err := store.ValidateSegment(sub.Name); err != nil {
				return &Error{Kind: KindValidation, Op: "check subcollection name under", Path: path, Err: err}
			}
			if err := s.checkDocuments(store.Join(path, sub.Name), sub.Docs, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}
