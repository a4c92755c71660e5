package memstore

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/Rana718/fireseed/internal/store"
)

func ids(docs []store.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func TestPage(t *testing.T) {
	s := New()
	for _, p := range []string{"users/c", "users/a", "users/b", "users/a/goals/g1", "rewards/r1"} {
		s.Put(p, map[string]interface{}{"p": p})
	}
	ctx := context.Background()

	page, err := s.Page(ctx, "users", store.PageOptions{Limit: 2})
	if err != nil {
		t.Fatalf("Page failed: %v", err)
	}
	if got := ids(page); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Expected [a b], got %v", got)
	}
	if page[0].Data["p"] != "users/a" {
		t.Errorf("Expected data, got %v", page[0].Data)
	}

	page, _ = s.Page(ctx, "users", store.PageOptions{After: "b", KeysOnly: true})
	if got := ids(page); !reflect.DeepEqual(got, []string{"c"}) {
		t.Errorf("Expected [c], got %v", got)
	}
	if page[0].Data != nil {
		t.Error("KeysOnly must not return data")
	}
}

func TestCollections(t *testing.T) {
	s := New()
	s.Put("users/a/goals/g1", map[string]interface{}{})
	s.Put("users/a/reviews/r1/notes/n1", map[string]interface{}{})
	s.Put("rewards/r1", map[string]interface{}{})
	ctx := context.Background()

	root, _ := s.Collections(ctx, "")
	if !reflect.DeepEqual(root, []string{"rewards", "users"}) {
		t.Errorf("Unexpected root collections %v", root)
	}

	subs, _ := s.Collections(ctx, "users/a")
	if !reflect.DeepEqual(subs, []string{"goals", "reviews"}) {
		t.Errorf("Unexpected subcollections %v", subs)
	}
}

func TestBatchIsAtomic(t *testing.T) {
	s := New()
	s.Put("users/old", map[string]interface{}{})
	s.FailCommits(func(seq int, ops []Op) error {
		if seq == 2 {
			return errors.New("rejected")
		}
		return nil
	})
	ctx := context.Background()

	b := s.NewBatch()
	b.Set("users/a", map[string]interface{}{"n": 1})
	b.Delete("users/old")
	if b.Len() != 2 {
		t.Errorf("Expected 2 pending ops, got %d", b.Len())
	}
	if err := b.Commit(ctx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	b = s.NewBatch()
	b.Set("users/b", map[string]interface{}{})
	if err := b.Commit(ctx); err == nil {
		t.Fatal("Expected the second commit to fail")
	}

	if got := s.Paths(); !reflect.DeepEqual(got, []string{"users/a"}) {
		t.Errorf("Expected only users/a, got %v", got)
	}
	if len(s.Commits()) != 1 {
		t.Errorf("Failed commits must not be logged")
	}
	if s.Calls() != 2 {
		t.Errorf("Expected 2 calls, got %d", s.Calls())
	}
}

func TestStoredDataIsCopied(t *testing.T) {
	s := New()
	data := map[string]interface{}{"tags": []interface{}{"a"}}
	s.Put("users/a", data)
	data["tags"].([]interface{})[0] = "mutated"

	got, _ := s.Get("users/a")
	if got["tags"].([]interface{})[0] != "a" {
		t.Error("Put must copy its input")
	}
}

func TestPageError(t *testing.T) {
	s := New()
	want := errors.New("unavailable")
	s.FailPages(want)

	if _, err := s.Page(context.Background(), "users", store.PageOptions{}); !errors.Is(err, want) {
		t.Errorf("Expected %v, got %v", want, err)
	}
	if _, err := s.Collections(context.Background(), ""); !errors.Is(err, want) {
		t.Errorf("Expected %v, got %v", want, err)
	}
}
