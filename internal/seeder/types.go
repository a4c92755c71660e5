package seeder

import (
	"io"
	"time"

	"github.com/Rana718/fireseed/internal/fixture"
)

const (
	DefaultBatchSize      = 400 // stays under the 500 write ceiling
	MaxBatchSize          = 500
	DefaultDeletePageSize = 200
	DefaultMaxDepth       = 16
	UsersCollection       = "users"
)

type Options struct {
	Reseed         bool             // Delete each collection subtree before writing it
	BatchSize      int              // Writes per committed batch
	DeletePageSize int              // Documents fetched per delete page
	MaxDepth       int              // Deepest collection nesting walked
	IDPolicy       fixture.IDPolicy // Document id resolution rules
	First          []string         // Collections seeded before all others, in order
	Out            io.Writer        // Progress lines; nil means stdout
}

func DefaultOptions() Options {
	return Options{
		BatchSize:      DefaultBatchSize,
		DeletePageSize: DefaultDeletePageSize,
		MaxDepth:       DefaultMaxDepth,
		IDPolicy:       fixture.DefaultIDPolicy(),
		First:          []string{UsersCollection},
	}
}

type CollectionSummary struct {
	Name      string
	Documents int // top-level documents committed
	Nested    int // subcollection documents committed
	Deleted   int // documents removed by reseed, nested ones included
	Batches   int
}

// Summary reports what a run committed. On failure it still counts exactly
// the work that reached the store before the error.
type Summary struct {
	RunID       string
	Collections []*CollectionSummary
	Skipped     []string
	Warnings    []string
	Written     int
	Deleted     int
	Batches     int
	Duration    time.Duration
}

func (s *Summary) collection(name string) *CollectionSummary {
	for _, c := range s.Collections {
		if c.Name == name {
			return c
		}
	}
	c := &CollectionSummary{Name: name}
	s.Collections = append(s.Collections, c)
	return c
}
