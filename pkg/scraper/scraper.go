// Package scraper holds the long-lived streams that keep the store in sync
// with the chain: raw block ingestion, the operation feed, per-account
// projection and history backfill, and the post-processing pipeline tying
// classification to account refresh. Each stream is an independent worker;
// the store's unique keys make every write idempotent, so streams are free
// to reprocess on restart.
package scraper

import (
	"context"
	"sort"

	"github.com/graphenedata/ledger-indexer/pkg/database"
)

// The chain produces a block every three seconds; recency windows are
// expressed in these units.
const (
	blocksPerMinute = 20
	blocksPerDay    = blocksPerMinute * 60 * 24
)

// Checkpoints is durable named-cursor storage. Each stream key has exactly
// one writer process by operational convention.
type Checkpoints interface {
	GetCheckpoint(ctx context.Context, stream string) (int64, error)
	SetCheckpoint(ctx context.Context, stream string, cursor int64) error
	GetCheckpointMarker(ctx context.Context, stream string) (string, error)
	SetCheckpointMarker(ctx context.Context, stream, marker string) error
}

// Store is the storage surface the scraper works against. Insert methods
// report whether a row was written; a duplicate-key rejection is (false,
// nil), never an error.
type Store interface {
	Checkpoints

	InsertBlock(ctx context.Context, block *database.Block) (bool, error)
	BlockIDExists(ctx context.Context, blockID string) (bool, error)
	LastBlockNum(ctx context.Context) (uint64, error)

	InsertOperation(ctx context.Context, op *database.Operation) (bool, error)
	OperationsInRange(ctx context.Context, from, to uint64) ([]database.Operation, error)

	InsertAccountOperation(ctx context.Context, op *database.AccountOperation) (bool, error)
	HighestAccountOpIndex(ctx context.Context, account string) (uint64, error)

	ReplaceAccount(ctx context.Context, account *database.Account) error
	MergeAccount(ctx context.Context, account *database.Account) error

	UpsertPost(ctx context.Context, post *database.Post) error
	DeletePost(ctx context.Context, identifier string) error
}

// TrackedSet is the allow-list of accounts the scraper maintains
// projections for. It is injected into every component that touches
// accounts; anything outside the set is a no-op, which bounds the cost of
// classification fan-out by design.
type TrackedSet map[string]struct{}

func NewTrackedSet(names []string) TrackedSet {
	set := make(TrackedSet, len(names))
	for _, name := range names {
		if name != "" {
			set[name] = struct{}{}
		}
	}

	return set
}

func (t TrackedSet) Contains(name string) bool {
	_, ok := t[name]
	return ok
}

// Names returns the members in sorted order, the order the account scanner
// walks them in.
func (t TrackedSet) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// isRecent reports whether blockNum lies within the given number of days
// from the chain head.
func isRecent(blockNum int64, headBlock uint64, days int) bool {
	return blockNum > int64(headBlock)-int64(blocksPerDay*days)
}
