package scraper

import (
	"context"
	"io"
	"strconv"

	"github.com/cenkalti/backoff/v4"
	"github.com/graphenedata/ledger-indexer/pkg/database"
	"github.com/graphenedata/ledger-indexer/pkg/ledger"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Blocks are range-fetched in batches of this size while catching up; once
// within one batch of the irreversible head the ingestor switches to the
// live stream.
const blockRangeSize = 100

// ErrChainGap marks a chain-integrity violation: a block arrived whose
// previous hash is not stored. This only happens on data loss or
// reordering, never in normal operation, so the stream must stop instead of
// papering over it.
var ErrChainGap = errors.New("missing previous block")

type blockSource interface {
	LastIrreversibleBlockNumber(ctx context.Context) (uint64, error)
	GetBlocks(ctx context.Context, blockNums []uint64) ([]ledger.Block, error)
	StreamBlocks(ctx context.Context, start uint64) (ledger.BlockStream, error)
}

// BlockIngestor fills the raw block ledger, validating chain continuity on
// the way in. It runs independently of the operation feed.
type BlockIngestor struct {
	client blockSource
	store  Store
	log    *zap.SugaredLogger
}

func NewBlockIngestor(client blockSource, store Store, log *zap.SugaredLogger) *BlockIngestor {
	return &BlockIngestor{client: client, store: store, log: log}
}

// Run catches up in fixed-size range batches while far behind the
// irreversible head, then follows the live stream. Returns a permanent
// error on a chain-integrity violation.
func (bi *BlockIngestor) Run(ctx context.Context) error {
	last, err := bi.store.LastBlockNum(ctx)
	if err != nil {
		return err
	}

	head, err := bi.client.LastIrreversibleBlockNumber(ctx)
	if err != nil {
		return err
	}

	if head > last && head-last > blockRangeSize {
		bi.log.Infof("blocks: %d behind, catching up in batches of %d", head-last, blockRangeSize)

		if err := bi.catchUp(ctx, last, head); err != nil {
			return err
		}

		if last, err = bi.store.LastBlockNum(ctx); err != nil {
			return err
		}
	}

	stream, err := bi.client.StreamBlocks(ctx, last)
	if err != nil {
		return err
	}

	for {
		block, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := bi.insert(ctx, block); err != nil {
			return err
		}
	}
}

func (bi *BlockIngestor) catchUp(ctx context.Context, from, to uint64) error {
	for start := from; start < to; start += blockRangeSize {
		end := start + blockRangeSize
		if end > to {
			end = to
		}

		nums := make([]uint64, 0, end-start)
		for n := start; n < end; n++ {
			nums = append(nums, n)
		}

		blocks, err := bi.client.GetBlocks(ctx, nums)
		if err != nil {
			return err
		}

		for i := range blocks {
			if err := bi.insert(ctx, &blocks[i]); err != nil {
				return err
			}
		}
	}

	return nil
}

// insert validates continuity and writes one block. Duplicate block ids are
// silently discarded.
func (bi *BlockIngestor) insert(ctx context.Context, block *ledger.Block) error {
	blockNum := block.BlockNum
	if blockNum == 0 {
		// Range-fetch responses omit the number; the leading four bytes
		// of the block id encode it.
		n, err := blockNumFromID(block.BlockID)
		if err != nil {
			return err
		}
		blockNum = n
	}

	if blockNum > 1 {
		exists, err := bi.store.BlockIDExists(ctx, block.Previous)
		if err != nil {
			return err
		}
		if !exists {
			return backoff.Permanent(errors.Wrapf(ErrChainGap,
				"block %d references unknown previous %s", blockNum, block.Previous))
		}
	}

	_, err := bi.store.InsertBlock(ctx, &database.Block{
		BlockID:   block.BlockID,
		BlockNum:  blockNum,
		Previous:  block.Previous,
		Witness:   block.Witness,
		Timestamp: block.Timestamp,
		Payload:   datatypes.JSONMap(sanitizeKeys(block.Payload)),
	})

	return err
}

func blockNumFromID(blockID string) (uint64, error) {
	if len(blockID) < 8 {
		return 0, errors.Errorf("malformed block id %q", blockID)
	}

	n, err := strconv.ParseUint(blockID[:8], 16, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "malformed block id %q", blockID)
	}

	return n, nil
}
