// Package ledger defines the boundary to the ledger RPC collaborator. The
// scraper only ever observes the irreversible view of the chain, so none of
// the streams here are expected to deliver forked-out data.
package ledger

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by GetContent when the referenced post or comment
// does not exist, as opposed to a transport or node failure.
var ErrNotFound = errors.New("content not found")

// Block is a raw full block as delivered by the node. BlockNum may be zero
// on range-fetch responses; callers derive it from the leading bytes of
// BlockID in that case.
type Block struct {
	BlockNum  uint64
	BlockID   string
	Previous  string
	Witness   string
	Timestamp time.Time
	Payload   map[string]any
}

// Operation is one entry of the operation feed, including virtual
// (system-generated) operations. Seq is the position within the block.
type Operation struct {
	BlockNum  uint64
	Seq       uint32
	TrxID     string
	Type      string
	Virtual   bool
	Timestamp time.Time
	Payload   map[string]any
}

// AccountEvent is one entry of a per-account history walk. Index is the
// account-local monotonic sequence number driving incremental backfill.
type AccountEvent struct {
	Account   string
	Index     uint64
	BlockNum  uint64
	Type      string
	Timestamp time.Time
	Payload   map[string]any
}

// AccountSnapshot is the live state of one account. Metadata is the
// free-form profile blob exactly as stored on chain; it may be malformed.
// Extras is only populated when the snapshot was requested with extended
// sections (followers/following, curation stats, withdraw routes,
// conversion requests).
type AccountSnapshot struct {
	Name      string
	Balances  map[string]any
	VoteStats map[string]any
	Metadata  string
	Extras    map[string]any
}

// Content is a single post or comment addressed by author/permlink.
type Content struct {
	Author    string
	Permlink  string
	Title     string
	Body      string
	Metadata  map[string]any
	Created   time.Time
	IsComment bool
}

// BlockStream yields consecutive full blocks. Next blocks until a block is
// available, the stream ends (io.EOF) or the context is cancelled.
type BlockStream interface {
	Next(ctx context.Context) (*Block, error)
}

// OperationStream yields the operation feed in block order.
type OperationStream interface {
	Next(ctx context.Context) (*Operation, error)
}

// EventStream yields per-account history events. Forward streams run from
// genesis upward, reverse streams latest-first. Exhausted streams return
// io.EOF.
type EventStream interface {
	Next(ctx context.Context) (*AccountEvent, error)
}

// Client is the full RPC surface the scraper needs from a node. Retry and
// timeout policy is the implementation's concern; WithBackoff provides a
// standard decorator for the unary calls.
type Client interface {
	// HeadBlockNumber returns the current chain head.
	HeadBlockNumber(ctx context.Context) (uint64, error)

	// LastIrreversibleBlockNumber returns the latest finalized block.
	LastIrreversibleBlockNumber(ctx context.Context) (uint64, error)

	// GetBlocks fetches full blocks for the given block numbers.
	GetBlocks(ctx context.Context, blockNums []uint64) ([]Block, error)

	// StreamBlocks streams full blocks from start onward, irreversible only.
	StreamBlocks(ctx context.Context, start uint64) (BlockStream, error)

	// StreamOperations streams all operations, including virtual ones,
	// from startBlock onward, irreversible only.
	StreamOperations(ctx context.Context, startBlock uint64) (OperationStream, error)

	// GetAccount fetches a current account snapshot, optionally including
	// the extended sections.
	GetAccount(ctx context.Context, name string, extras bool) (*AccountSnapshot, error)

	// AccountHistory walks an account's history forward from genesis.
	AccountHistory(ctx context.Context, name string) (EventStream, error)

	// AccountHistoryReverse walks an account's history latest-first,
	// fetching at most batchSize events per node round trip.
	AccountHistoryReverse(ctx context.Context, name string, batchSize int) (EventStream, error)

	// GetContent fetches a single post or comment. Returns ErrNotFound
	// when the identifier does not resolve.
	GetContent(ctx context.Context, author, permlink string) (*Content, error)
}
