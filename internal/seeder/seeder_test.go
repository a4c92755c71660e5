package seeder

import (
	"context"
	"bytes"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Rana718/fireseed/internal/fixture"
	"github.com/Rana718/fireseed/internal/store/memstore"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func mustParse(t *testing.T, src string) *fixture.Fixture {
	t.Helper()
	fx, err := fixture.Parse([]byte(src), "json")
	if err != nil {
		t.Fatalf("Failed to parse fixture: %v", err)
	}
	return fx
}

func runSeed(t *testing.T, st *memstore.Store, fx *fixture.Fixture, opts Options) *Summary {
	t.Helper()
	summary, err := New(st, opts, quietLogger()).Seed(context.Background(), fx)
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	return summary
}

func manyDocs(name string, n int) *fixture.Fixture {
	docs := make([]interface{}, n)
	for i := range docs {
		docs[i] = map[string]interface{}{"n": float64(i)}
	}
	return fixture.FromRaw(map[string]interface{}{name: docs})
}

func TestSeedScenario(t *testing.T) {
	st := memstore.New()
	fx := mustParse(t, `{
		"users": [{"uid": "u1", "email": "a@x.com"}],
		"rewards": [{"employeeId": "u1", "amount": 500}]
	}`)

	summary := runSeed(t, st, fx, DefaultOptions())

	wantPaths := []string{"rewards/auto_0", "users/u1"}
	if got := st.Paths(); !reflect.DeepEqual(got, wantPaths) {
		t.Fatalf("Expected paths %v, got %v", wantPaths, got)
	}

	user, _ := st.Get("users/u1")
	if !reflect.DeepEqual(user, map[string]interface{}{"email": "a@x.com"}) {
		t.Errorf("Unexpected users/u1: %#v", user)
	}

	reward, _ := st.Get("rewards/auto_0")
	wantReward := map[string]interface{}{"employeeId": "u1", "amount": int64(500)}
	if !reflect.DeepEqual(reward, wantReward) {
		t.Errorf("Unexpected rewards/auto_0: %#v", reward)
	}

	if summary.Written != 2 {
		t.Errorf("Expected 2 documents written, got %d", summary.Written)
	}
}

func TestSeedSubcollectionsAndDates(t *testing.T) {
	st := memstore.New()
	fx := mustParse(t, `{
		"users": [{
			"uid": "u1",
			"skills": ["go", "sql"],
			"hiredOn": "2024-12-25",
			"lastLogin": "2024-12-25T10:30:00Z",
			"nickname": "not-a-date",
			"goals": [
				{"docId": "g1", "title": "Ship", "checkins": [{"at": "2024-01-02"}]},
				{"title": "Learn"}
			]
		}]
	}`)

	summary := runSeed(t, st, fx, DefaultOptions())

	user, ok := st.Get("users/u1")
	if !ok {
		t.Fatal("users/u1 missing")
	}
	if _, ok := user["goals"]; ok {
		t.Error("Subcollection field must not be stored on the parent")
	}
	if !reflect.DeepEqual(user["skills"], []interface{}{"go", "sql"}) {
		t.Errorf("Scalar list should stay a field, got %#v", user["skills"])
	}
	if got := user["hiredOn"]; got != time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC) {
		t.Errorf("Unexpected hiredOn %#v", got)
	}
	if got := user["lastLogin"]; got != time.Date(2024, 12, 25, 10, 30, 0, 0, time.UTC) {
		t.Errorf("Unexpected lastLogin %#v", got)
	}
	if got := user["nickname"]; got != "not-a-date" {
		t.Errorf("Unexpected nickname %#v", got)
	}

	for _, p := range []string{"users/u1/goals/g1", "users/u1/goals/auto_1", "users/u1/goals/g1/checkins/auto_0"} {
		if _, ok := st.Get(p); !ok {
			t.Errorf("Expected %s to exist, have %v", p, st.Paths())
		}
	}
	goal, _ := st.Get("users/u1/goals/g1")
	if _, ok := goal["docId"]; ok {
		t.Error("Consumed alias docId must be stripped")
	}

	cs := summary.Collections[0]
	if cs.Documents != 1 || cs.Nested != 3 {
		t.Errorf("Expected 1 document and 3 nested, got %d and %d", cs.Documents, cs.Nested)
	}
}

func TestSeedBatchThreshold(t *testing.T) {
	tests := []struct {
		batchSize int
		want      []int
	}{
		{batchSize: DefaultBatchSize, want: []int{400, 400, 201}},
		{batchSize: MaxBatchSize, want: []int{500, 500, 1}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("batch=%d", tt.batchSize), func(t *testing.T) {
			st := memstore.New()
			opts := DefaultOptions()
			opts.BatchSize = tt.batchSize

			summary := runSeed(t, st, manyDocs("reviews", 1001), opts)

			var sizes []int
			for _, c := range st.Commits() {
				sizes = append(sizes, len(c.Ops))
			}
			if !reflect.DeepEqual(sizes, tt.want) {
				t.Errorf("Expected batch sizes %v, got %v", tt.want, sizes)
			}
			if summary.Batches != len(tt.want) || summary.Written != 1001 {
				t.Errorf("Expected %d batches and 1001 writes, got %d and %d", len(tt.want), summary.Batches, summary.Written)
			}
		})
	}
}

func TestSeedUsersFirst(t *testing.T) {
	st := memstore.New()
	fx := mustParse(t, `{
		"appraisals": [{"score": 1}],
		"rewards": [{"amount": 1}, {"amount": 2}],
		"users": [{"uid": "u1"}, {"uid": "u2"}]
	}`)

	runSeed(t, st, fx, DefaultOptions())

	commits := st.Commits()
	if len(commits) != 3 {
		t.Fatalf("Expected one commit per collection, got %d", len(commits))
	}
	for _, op := range commits[0].Ops {
		if !strings.HasPrefix(op.Path, "users/") {
			t.Errorf("First commit must only hold users, found %s", op.Path)
		}
	}
	if !strings.HasPrefix(commits[1].Ops[0].Path, "appraisals/") || !strings.HasPrefix(commits[2].Ops[0].Path, "rewards/") {
		t.Errorf("Remaining collections must follow alphabetically")
	}
}

func TestSeedFullReplaceWithoutReseed(t *testing.T) {
	st := memstore.New()
	st.Put("users/u1", map[string]interface{}{"email": "old@x.com", "legacy": true})

	runSeed(t, st, mustParse(t, `{"users": [{"uid": "u1", "email": "a@x.com"}]}`), DefaultOptions())

	user, _ := st.Get("users/u1")
	if _, ok := user["legacy"]; ok {
		t.Error("Write must replace the document, not merge")
	}
}

func TestReseedIsIdempotent(t *testing.T) {
	st := memstore.New()
	st.Put("users/stale", map[string]interface{}{"x": 1})
	st.Put("users/stale/goals/g1", map[string]interface{}{"x": 1})
	st.Put("users/u1", map[string]interface{}{"legacy": true})
	st.Put("users/u1/goals/old", map[string]interface{}{"x": 1})
	st.Put("untouched/keep", map[string]interface{}{"x": 1})

	fx := mustParse(t, `{
		"users": [{"uid": "u1", "goals": [{"title": "a"}, {"title": "b"}]}]
	}`)
	opts := DefaultOptions()
	opts.Reseed = true

	first := runSeed(t, st, fx, opts)
	afterFirst := st.Snapshot()
	runSeed(t, st, fx, opts)
	afterSecond := st.Snapshot()

	if !reflect.DeepEqual(afterFirst, afterSecond) {
		t.Errorf("Reseed twice must give the same tree:\nfirst:  %v\nsecond: %v", afterFirst, afterSecond)
	}

	want := []string{"untouched/keep", "users/u1", "users/u1/goals/auto_0", "users/u1/goals/auto_1"}
	if got := st.Paths(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
	if first.Deleted != 4 {
		t.Errorf("Expected 4 deletions on the first run, got %d", first.Deleted)
	}
}

func TestReseedDeletesChildrenBeforeParents(t *testing.T) {
	st := memstore.New()
	st.Put("users/a", map[string]interface{}{})
	st.Put("users/a/goals/g1", map[string]interface{}{})
	st.Put("users/a/goals/g1/checkins/c1", map[string]interface{}{})

	opts := DefaultOptions()
	opts.Reseed = true
	opts.BatchSize = 1
	runSeed(t, st, mustParse(t, `{"users": []}`), opts)

	var order []string
	for _, c := range st.Commits() {
		for _, op := range c.Ops {
			order = append(order, op.Path)
		}
	}
	want := []string{"users/a/goals/g1/checkins/c1", "users/a/goals/g1", "users/a"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("Expected delete order %v, got %v", want, order)
	}
}

func TestReseedPaginates(t *testing.T) {
	st := memstore.New()
	for i := 0; i < 450; i++ {
		st.Put(fmt.Sprintf("reviews/r%03d", i), map[string]interface{}{"i": i})
	}

	opts := DefaultOptions()
	opts.Reseed = true
	summary := runSeed(t, st, mustParse(t, `{"reviews": [{"id": "fresh"}]}`), opts)

	if got := st.Paths(); !reflect.DeepEqual(got, []string{"reviews/fresh"}) {
		t.Errorf("Expected only reviews/fresh, got %d paths", len(got))
	}
	if summary.Deleted != 450 {
		t.Errorf("Expected 450 deletions, got %d", summary.Deleted)
	}
	// 200 + 200 + 50 deletes, then one write batch
	if got := len(st.Commits()); got != 4 {
		t.Errorf("Expected 4 commits, got %d", got)
	}
}

func TestSeedPartialFailure(t *testing.T) {
	st := memstore.New()
	st.FailCommits(func(seq int, ops []memstore.Op) error {
		if seq == 2 {
			return status.Error(codes.PermissionDenied, "missing permission")
		}
		return nil
	})

	summary, err := New(st, DefaultOptions(), quietLogger()).Seed(context.Background(), manyDocs("reviews", 1001))
	if err == nil {
		t.Fatal("Expected error")
	}
	if KindOf(err) != KindAuth {
		t.Errorf("Expected auth error, got %v", err)
	}
	if summary.Written != 400 {
		t.Errorf("Expected exactly 400 committed documents, got %d", summary.Written)
	}
	if got := len(st.Paths()); got != 400 {
		t.Errorf("Expected 400 stored documents, got %d", got)
	}
}

func TestSeedNotFound(t *testing.T) {
	st := memstore.New()
	st.FailCommits(func(int, []memstore.Op) error {
		return status.Error(codes.NotFound, "database (default) does not exist")
	})

	_, err := New(st, DefaultOptions(), quietLogger()).Seed(context.Background(), manyDocs("users", 1))

	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("Expected *Error, got %v", err)
	}
	if se.Kind != KindNotFound || se.Code != codes.NotFound {
		t.Errorf("Expected not found, got kind=%s code=%s", se.Kind, se.Code)
	}
	if se.Path != "users/auto_0" {
		t.Errorf("Expected failing path users/auto_0, got %s", se.Path)
	}
}

func TestSeedDeletePageFailure(t *testing.T) {
	st := memstore.New()
	st.FailPages(status.Error(codes.Unavailable, "connection reset"))

	opts := DefaultOptions()
	opts.Reseed = true
	summary, err := New(st, opts, quietLogger()).Seed(context.Background(), manyDocs("users", 3))
	if KindOf(err) != KindBackend {
		t.Fatalf("Expected backend error, got %v", err)
	}
	if summary.Written != 0 {
		t.Errorf("Expected no writes, got %d", summary.Written)
	}
}

func TestPreflightRejectsBeforeAnyCall(t *testing.T) {
	tests := map[string]string{
		"duplicate ids": `{"users": [{"uid": "u1"}, {"id": "u1"}]}`,
		"slash in id":   `{"users": [{"uid": "a/b"}]}`,
		"auto clash":    `{"rewards": [{"amount": 1}, {"id": "auto_0"}]}`,
	}

	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			st := memstore.New()
			_, err := New(st, DefaultOptions(), quietLogger()).Seed(context.Background(), mustParse(t, src))
			if KindOf(err) != KindValidation {
				t.Fatalf("Expected validation error, got %v", err)
			}
			if st.Calls() != 0 {
				t.Errorf("Expected no store calls, got %d", st.Calls())
			}
		})
	}
}

func TestMaxDepthGuard(t *testing.T) {
	st := memstore.New()
	opts := DefaultOptions()
	opts.MaxDepth = 2

	fx := mustParse(t, `{"a": [{"b": [{"c": [{"x": 1}]}]}]}`)
	_, err := New(st, opts, quietLogger()).Seed(context.Background(), fx)
	if KindOf(err) != KindValidation {
		t.Fatalf("Expected validation error, got %v", err)
	}
	if st.Calls() != 0 {
		t.Errorf("Expected no store calls, got %d", st.Calls())
	}
}

func TestReseedTooDeepAfterCommittedDeletes(t *testing.T) {
	st := memstore.New()
	st.Put("a/w", map[string]interface{}{})
	st.Put("a/x", map[string]interface{}{})
	st.Put("a/x/b/y", map[string]interface{}{})
	st.Put("a/x/b/y/c/z", map[string]interface{}{})

	opts := DefaultOptions()
	opts.Reseed = true
	opts.MaxDepth = 2
	opts.BatchSize = 1
	_, err := New(st, opts, quietLogger()).Seed(context.Background(), mustParse(t, `{"a": []}`))
	if KindOf(err) != KindBackend {
		t.Fatalf("Expected backend error, got %v", err)
	}
	if len(st.Commits()) == 0 {
		t.Fatal("Expected a delete to be committed before the depth check")
	}
	if _, ok := st.Get("a/w"); ok {
		t.Error("Expected a/w to be deleted")
	}
}

func TestSeedProgressGoesToOut(t *testing.T) {
	var out bytes.Buffer
	opts := DefaultOptions()
	opts.Out = &out
	runSeed(t, memstore.New(), mustParse(t, `{"users": [{"uid": "u1"}]}`), opts)

	for _, want := range []string{"Seeding 1 collections", "Seeding users (1 documents)", "users: 1 documents"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Expected progress output to contain %q, got:\n%s", want, out.String())
		}
	}
}

func TestInvalidOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.BatchSize = 501
	_, err := New(memstore.New(), opts, quietLogger()).Seed(context.Background(), manyDocs("users", 1))
	if KindOf(err) != KindValidation {
		t.Errorf("Expected validation error for batch size 501, got %v", err)
	}
}

func TestInsertionOrder(t *testing.T) {
	got := InsertionOrder([]string{"rewards", "feedback", "users", "appraisals"}, []string{"users", "missing"})
	want := []string{"users", "appraisals", "feedback", "rewards"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{status.Error(codes.NotFound, "x"), KindNotFound},
		{status.Error(codes.PermissionDenied, "x"), KindAuth},
		{status.Error(codes.Unauthenticated, "x"), KindAuth},
		{status.Error(codes.Unavailable, "x"), KindBackend},
		{fmt.Errorf("wrapped: %w", status.Error(codes.NotFound, "x")), KindNotFound},
		{context.DeadlineExceeded, KindBackend},
	}
	for _, tt := range tests {
		if got := Classify("op", "p", tt.err).Kind; got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}
