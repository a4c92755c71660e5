package store

import (
	"context"
	"fmt"
	"strings"
)

// Document is a single record read back from a collection.
type Document struct {
	ID   string
	Data map[string]interface{}
}

type PageOptions struct {
	After    string // exclusive document id cursor
	Limit    int
	KeysOnly bool // skip field data; used by recursive delete
}

// Batch groups writes that are committed atomically in one request.
type Batch interface {
	// Set fully replaces the document at path.
	Set(path string, data map[string]interface{})
	Delete(path string)
	Len() int
	Commit(ctx context.Context) error
}

// Store is the handle to a document database. It is built once at process
// start and passed to every consumer.
type Store interface {
	NewBatch() Batch
	// Page lists documents of a collection ordered by id.
	Page(ctx context.Context, collectionPath string, opts PageOptions) ([]Document, error)
	// Collections lists the ids of the collections under a document, or the
	// root collections when documentPath is empty.
	Collections(ctx context.Context, documentPath string) ([]string, error)
	Close() error
}

// Join builds a slash separated path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// ValidateSegment checks a single collection or document id.
func ValidateSegment(s string) error {
	switch {
	case s == "":
		return fmt.Errorf("empty path segment")
	case strings.Contains(s, "/"):
		return fmt.Errorf("path segment %q contains '/'", s)
	case s == "." || s == "..":
		return fmt.Errorf("path segment %q is reserved", s)
	}
	return nil
}

// Base returns the last segment of a path.
func Base(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
