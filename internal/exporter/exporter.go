// Package exporter dumps a live store back into fixture shape, so a tree that
// was seeded can be exported, edited and seeded again.
package exporter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Rana718/fireseed/internal/store"
)

const (
	DefaultPageSize = 200
	DefaultMaxDepth = 16

	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ErrKeyCollision means a document cannot be exported without losing data:
// a stored field is named "id", or shares its name with a subcollection.
var ErrKeyCollision = errors.New("key collision")

type Options struct {
	Collections []string // top-level collections to dump; empty means all
	PageSize    int
	MaxDepth    int
}

// Export reads every requested top-level collection, subcollections
// included, and returns it keyed by collection name. Each document carries
// its id under "id".
func Export(ctx context.Context, st store.Store, opts Options) (map[string]interface{}, error) {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}

	names := opts.Collections
	if len(names) == 0 {
		var err error
		names, err = st.Collections(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("failed to list root collections: %w", err)
		}
	}

	type collectionResult struct {
		name string
		docs []interface{}
		err  error
	}

	results := make(chan collectionResult, len(names))
	var wg sync.WaitGroup

	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			docs, err := dumpCollection(ctx, st, opts, name, 1)
			results <- collectionResult{name, docs, err}
		}(name)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make(map[string]interface{}, len(names))
	var failed []string
	var firstErr error
	for result := range results {
		if result.err != nil {
			failed = append(failed, result.name)
			if firstErr == nil {
				firstErr = result.err
			}
			continue
		}
		out[result.name] = result.docs
	}
	if firstErr != nil {
		sort.Strings(failed)
		return nil, fmt.Errorf("failed to export %v: %w", failed, firstErr)
	}

	return out, nil
}

func dumpCollection(ctx context.Context, st store.Store, opts Options, collectionPath string, depth int) ([]interface{}, error) {
	if depth > opts.MaxDepth {
		return nil, fmt.Errorf("collection %s nested deeper than %d", collectionPath, opts.MaxDepth)
	}

	docs := []interface{}{}
	after := ""
	for {
		page, err := st.Page(ctx, collectionPath, store.PageOptions{After: after, Limit: opts.PageSize})
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", collectionPath, err)
		}

		for _, doc := range page {
			path := store.Join(collectionPath, doc.ID)

			m := renderMap(doc.Data)
			if _, taken := m["id"]; taken {
				return nil, fmt.Errorf("document %s: stored field %q would be replaced by the document id: %w", path, "id", ErrKeyCollision)
			}
			m["id"] = doc.ID

			subs, err := st.Collections(ctx, path)
			if err != nil {
				return nil, fmt.Errorf("failed to list subcollections of %s: %w", path, err)
			}
			for _, sub := range subs {
				children, err := dumpCollection(ctx, st, opts, store.Join(path, sub), depth+1)
				if err != nil {
					return nil, err
				}
				if _, taken := m[sub]; taken {
					return nil, fmt.Errorf("document %s: field %q has the same name as a subcollection: %w", path, sub, ErrKeyCollision)
				}
				m[sub] = children
			}

			docs = append(docs, m)
		}

		if len(page) < opts.PageSize {
			return docs, nil
		}
		after = page[len(page)-1].ID
	}
}

func renderMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m)+1)
	for k, v := range m {
		out[k] = render(v)
	}
	return out
}

func render(v interface{}) interface{} {
	switch val := v.(type) {
	case time.Time:
		return FormatTime(val)
	case map[string]interface{}:
		return renderMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = render(item)
		}
		return out
	default:
		return v
	}
}

// FormatTime renders a timestamp the way a fixture would spell it: a bare
// date at UTC midnight, RFC 3339 otherwise.
func FormatTime(t time.Time) string {
	t = t.UTC()
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339Nano)
}

// Write encodes the export as indented JSON or YAML.
func Write(w io.Writer, data map[string]interface{}, format string) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(data); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported export format %q (use json or yaml)", format)
	}
}
