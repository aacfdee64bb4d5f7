package scraper

import (
	"context"
	"testing"
	"time"

	"github.com/graphenedata/ledger-indexer/pkg/database"
	"github.com/graphenedata/ledger-indexer/pkg/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBlockSource struct {
	irreversible uint64
	byNum        map[uint64]ledger.Block
	streamFrom   uint64
	stream       []ledger.Block
}

func (f *fakeBlockSource) LastIrreversibleBlockNumber(context.Context) (uint64, error) {
	return f.irreversible, nil
}

func (f *fakeBlockSource) GetBlocks(_ context.Context, nums []uint64) ([]ledger.Block, error) {
	var out []ledger.Block
	for _, n := range nums {
		if block, ok := f.byNum[n]; ok {
			out = append(out, block)
		}
	}

	return out, nil
}

func (f *fakeBlockSource) StreamBlocks(_ context.Context, start uint64) (ledger.BlockStream, error) {
	f.streamFrom = start
	return &blockStream{blocks: f.stream}, nil
}

func testBlock(num uint64, id, previous string) ledger.Block {
	return ledger.Block{
		BlockNum:  num,
		BlockID:   id,
		Previous:  previous,
		Timestamp: time.Unix(int64(num)*3, 0),
		Payload:   map[string]any{"witness_signature": "sig"},
	}
}

func TestBlockIngestorStreamsWhenNearHead(t *testing.T) {
	store := newFakeStore()
	source := &fakeBlockSource{
		irreversible: 3,
		stream: []ledger.Block{
			testBlock(1, "00000001aa", ""),
			testBlock(2, "00000002bb", "00000001aa"),
			testBlock(3, "00000003cc", "00000002bb"),
		},
	}

	ingestor := NewBlockIngestor(source, store, testLogger())
	require.NoError(t, ingestor.Run(context.Background()))

	assert.Len(t, store.blocks, 3)
	assert.EqualValues(t, 1, source.streamFrom)
}

func TestBlockIngestorChainGapIsFatal(t *testing.T) {
	store := newFakeStore()
	source := &fakeBlockSource{
		irreversible: 5,
		stream: []ledger.Block{
			testBlock(5, "00000005ee", "00000004dd"),
		},
	}

	ingestor := NewBlockIngestor(source, store, testLogger())
	err := ingestor.Run(context.Background())

	require.ErrorIs(t, err, ErrChainGap)
	assert.Empty(t, store.blocks, "the offending block must not be stored")
}

func TestBlockIngestorDuplicatesAreSilent(t *testing.T) {
	store := newFakeStore()
	source := &fakeBlockSource{
		irreversible: 2,
		stream: []ledger.Block{
			testBlock(1, "00000001aa", ""),
			testBlock(1, "00000001aa", ""),
			testBlock(2, "00000002bb", "00000001aa"),
		},
	}

	ingestor := NewBlockIngestor(source, store, testLogger())
	require.NoError(t, ingestor.Run(context.Background()))

	assert.Len(t, store.blocks, 2)
}

func TestBlockIngestorDerivesBlockNumFromID(t *testing.T) {
	store := newFakeStore()

	// Range responses omit the block number; 0x0000000a = 10.
	anonymous := testBlock(0, "0000000aff", "00000009ee")
	ninth := testBlock(9, "00000009ee", "00000008dd")
	store.blocks["00000009ee"] = &database.Block{BlockID: ninth.BlockID, BlockNum: ninth.BlockNum}

	source := &fakeBlockSource{irreversible: 10, stream: []ledger.Block{anonymous}}
	ingestor := NewBlockIngestor(source, store, testLogger())
	require.NoError(t, ingestor.Run(context.Background()))

	stored, ok := store.blocks["0000000aff"]
	require.True(t, ok)
	assert.EqualValues(t, 10, stored.BlockNum)
}

func TestBlockIngestorCatchesUpInRangeBatches(t *testing.T) {
	store := newFakeStore()

	byNum := make(map[uint64]ledger.Block)
	previous := ""
	for n := uint64(1); n <= 250; n++ {
		id := blockID(n)
		byNum[n] = testBlock(n, id, previous)
		previous = id
	}

	source := &fakeBlockSource{
		irreversible: 250,
		byNum:        byNum,
		stream:       []ledger.Block{byNum[250]},
	}
	ingestor := NewBlockIngestor(source, store, testLogger())
	require.NoError(t, ingestor.Run(context.Background()))

	assert.Len(t, store.blocks, 250)
	assert.EqualValues(t, 249, source.streamFrom)
}

func blockID(n uint64) string {
	const hex = "0123456789abcdef"

	id := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		id[i] = hex[n&0xf]
		n >>= 4
	}

	return string(id) + "feed"
}
