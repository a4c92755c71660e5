// Package firestore adapts Cloud Firestore to the store.Store interface.
package firestore

import (
	"context"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/firestore"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	"github.com/Rana718/fireseed/internal/store"
)

const EmulatorHostEnv = "FIRESTORE_EMULATOR_HOST"

type Options struct {
	ProjectID    string
	DatabaseID   string
	Credentials  *google.Credentials // nil means application default credentials
	EmulatorHost string              // empty means the managed service
}

type Store struct {
	client *firestore.Client
}

var _ store.Store = (*Store)(nil)

// Open connects to Firestore. When an emulator host is given it is exported as
// FIRESTORE_EMULATOR_HOST, which the client library reads while dialing.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.EmulatorHost != "" {
		if err := os.Setenv(EmulatorHostEnv, opts.EmulatorHost); err != nil {
			return nil, fmt.Errorf("failed to set %s: %w", EmulatorHostEnv, err)
		}
	}

	projectID := opts.ProjectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	databaseID := opts.DatabaseID
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	var clientOpts []option.ClientOption
	if opts.Credentials != nil && opts.EmulatorHost == "" {
		clientOpts = append(clientOpts, option.WithCredentials(opts.Credentials))
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) NewBatch() store.Batch {
	return &batch{client: s.client, wb: s.client.Batch()}
}

func (s *Store) Page(ctx context.Context, collectionPath string, opts store.PageOptions) ([]store.Document, error) {
	coll := s.client.Collection(collectionPath)
	if coll == nil {
		return nil, fmt.Errorf("invalid collection path %q", collectionPath)
	}

	q := coll.Query
	if opts.KeysOnly {
		q = q.Select()
	}
	q = q.OrderBy(firestore.DocumentID, firestore.Asc)
	if opts.After != "" {
		q = q.StartAfter(opts.After)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}

	docs := make([]store.Document, 0, len(snaps))
	for _, snap := range snaps {
		doc := store.Document{ID: snap.Ref.ID}
		if !opts.KeysOnly {
			doc.Data = s.normalizeMap(snap.Data())
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *Store) Collections(ctx context.Context, documentPath string) ([]string, error) {
	var it *firestore.CollectionIterator
	if documentPath == "" {
		it = s.client.Collections(ctx)
	} else {
		doc := s.client.Doc(documentPath)
		if doc == nil {
			return nil, fmt.Errorf("invalid document path %q", documentPath)
		}
		it = doc.Collections(ctx)
	}

	refs, err := it.GetAll()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		names = append(names, ref.ID)
	}
	return names, nil
}

// normalizeMap turns client specific values into plain ones: document
// references become their database-relative path.
func (s *Store) normalizeMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = s.normalize(v)
	}
	return out
}

func (s *Store) normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return s.normalizeMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = s.normalize(item)
		}
		return out
	case *firestore.DocumentRef:
		if val == nil {
			return nil
		}
		return relativePath(val.Path)
	default:
		return v
	}
}

// relativePath strips the "projects/<p>/databases/<d>/documents/" prefix.
func relativePath(full string) string {
	const marker = "/documents/"
	if i := strings.Index(full, marker); i >= 0 {
		return full[i+len(marker):]
	}
	return full
}

type batch struct {
	client *firestore.Client
	wb     *firestore.WriteBatch
	n      int
	err    error
}

// Set always replaces the whole document: no merge option is passed.
func (b *batch) Set(path string, data map[string]interface{}) {
	doc := b.client.Doc(path)
	if doc == nil {
		b.fail(fmt.Errorf("invalid document path %q", path))
		return
	}
	b.wb.Set(doc, data)
	b.n++
}

func (b *batch) Delete(path string) {
	doc := b.client.Doc(path)
	if doc == nil {
		b.fail(fmt.Errorf("invalid document path %q", path))
		return
	}
	b.wb.Delete(doc)
	b.n++
}

func (b *batch) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *batch) Len() int { return b.n }

func (b *batch) Commit(ctx context.Context) error {
	if b.err != nil {
		return b.err
	}
	if b.n == 0 {
		return nil
	}
	_, err := b.wb.Commit(ctx)
	return err
}
