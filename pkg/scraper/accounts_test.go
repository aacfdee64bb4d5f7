package scraper

import (
	"context"
	"testing"
	"time"

	"github.com/graphenedata/ledger-indexer/pkg/database"
	"github.com/graphenedata/ledger-indexer/pkg/ledger"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAccountSource struct {
	snapshots map[string]*ledger.AccountSnapshot
	history   map[string][]ledger.AccountEvent
	reverse   map[string][]ledger.AccountEvent

	snapshotCalls []bool
}

func (f *fakeAccountSource) GetAccount(_ context.Context, name string, extras bool) (*ledger.AccountSnapshot, error) {
	f.snapshotCalls = append(f.snapshotCalls, extras)

	snapshot, ok := f.snapshots[name]
	if !ok {
		return nil, errors.Errorf("unknown account %s", name)
	}

	return snapshot, nil
}

func (f *fakeAccountSource) AccountHistory(_ context.Context, name string) (ledger.EventStream, error) {
	return &eventStream{events: f.history[name]}, nil
}

func (f *fakeAccountSource) AccountHistoryReverse(_ context.Context, name string, _ int) (ledger.EventStream, error) {
	return &eventStream{events: f.reverse[name]}, nil
}

func testEvent(account string, index uint64, payload map[string]any) ledger.AccountEvent {
	return ledger.AccountEvent{
		Account:   account,
		Index:     index,
		BlockNum:  index * 100,
		Type:      "vote",
		Timestamp: time.Unix(int64(index), 0),
		Payload:   payload,
	}
}

func TestUpdateAccountIgnoresUntracked(t *testing.T) {
	store := newFakeStore()
	source := &fakeAccountSource{}

	updater := NewAccountUpdater(source, store, NewTrackedSet([]string{"alice"}), 16, testLogger())
	require.NoError(t, updater.UpdateAccount(context.Background(), "mallory", true))

	assert.Empty(t, source.snapshotCalls)
	assert.Empty(t, store.accounts)
}

func TestUpdateAccountFullReplacesRow(t *testing.T) {
	store := newFakeStore()
	source := &fakeAccountSource{snapshots: map[string]*ledger.AccountSnapshot{
		"alice": {
			Name:      "alice",
			Balances:  map[string]any{"balance": "1.000 STEEM"},
			VoteStats: map[string]any{"voting_power": float64(10000)},
			Metadata:  `{"profile":{"name":"Alice"}}`,
			Extras:    map[string]any{"followers": []any{"bob"}},
		},
	}}

	updater := NewAccountUpdater(source, store, NewTrackedSet([]string{"alice"}), 16, testLogger())
	require.NoError(t, updater.UpdateAccount(context.Background(), "alice", true))

	require.Equal(t, []string{"alice"}, store.replaced)
	assert.Empty(t, store.merged)
	assert.Equal(t, []bool{true}, source.snapshotCalls)

	account := store.accounts["alice"]
	require.NotNil(t, account)
	assert.Equal(t, "1.000 STEEM", account.Balances["balance"])
	assert.NotNil(t, account.Extras)

	profile, ok := account.Metadata["profile"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Alice", profile["name"])
}

func TestUpdateAccountLightMergesRow(t *testing.T) {
	store := newFakeStore()
	source := &fakeAccountSource{snapshots: map[string]*ledger.AccountSnapshot{
		"alice": {Name: "alice", Metadata: "not json at all"},
	}}

	updater := NewAccountUpdater(source, store, NewTrackedSet([]string{"alice"}), 16, testLogger())
	require.NoError(t, updater.UpdateAccount(context.Background(), "alice", false))

	require.Equal(t, []string{"alice"}, store.merged)
	assert.Empty(t, store.replaced)

	// Malformed profile blobs are stored as an empty document.
	assert.Empty(t, map[string]any(store.accounts["alice"].Metadata))
	assert.Nil(t, store.accounts["alice"].Extras)
}

func TestUpdateAccountRetriesWithBlankMetadata(t *testing.T) {
	store := newFakeStore()
	store.accountWriteErr = func(account *database.Account) error {
		if len(account.Metadata) > 0 {
			return errors.New("document too large")
		}
		return nil
	}

	source := &fakeAccountSource{snapshots: map[string]*ledger.AccountSnapshot{
		"alice": {Name: "alice", Metadata: `{"profile":{"about":"oversized"}}`},
	}}

	updater := NewAccountUpdater(source, store, NewTrackedSet([]string{"alice"}), 16, testLogger())
	require.NoError(t, updater.UpdateAccount(context.Background(), "alice", false))

	require.NotNil(t, store.accounts["alice"])
	assert.Empty(t, map[string]any(store.accounts["alice"].Metadata))
}

func TestBackfillHistoryDropsBody(t *testing.T) {
	store := newFakeStore()
	source := &fakeAccountSource{history: map[string][]ledger.AccountEvent{
		"alice": {
			testEvent("alice", 1, map[string]any{"voter": "alice"}),
			testEvent("alice", 2, map[string]any{"author": "alice", "body": "a very long post"}),
		},
	}}

	updater := NewAccountUpdater(source, store, NewTrackedSet([]string{"alice"}), 16, testLogger())
	require.NoError(t, updater.BackfillHistory(context.Background(), "alice"))

	require.Len(t, store.accountOps, 2)
	assert.NotContains(t, store.accountOps[acctOpKey{"alice", 2}].Payload, "body")
}

func TestBackfillRecentStopsAtHighWater(t *testing.T) {
	store := newFakeStore()
	store.accountOps[acctOpKey{"alice", 50}] = &database.AccountOperation{Account: "alice", Index: 50}

	var incoming []ledger.AccountEvent
	for index := uint64(60); index >= 45; index-- {
		incoming = append(incoming, testEvent("alice", index, map[string]any{"voter": "alice"}))
	}
	source := &fakeAccountSource{reverse: map[string][]ledger.AccountEvent{"alice": incoming}}

	updater := NewAccountUpdater(source, store, NewTrackedSet([]string{"alice"}), 200, testLogger())
	require.NoError(t, updater.BackfillRecent(context.Background(), "alice"))

	// Pre-seeded 50 plus the ten new events above it.
	assert.Len(t, store.accountOps, 11)
	for index := uint64(51); index <= 60; index++ {
		assert.Contains(t, store.accountOps, acctOpKey{"alice", index})
	}
	assert.NotContains(t, store.accountOps, acctOpKey{"alice", 49})
}

func TestBackfillRecentHonorsBatchSize(t *testing.T) {
	store := newFakeStore()

	var incoming []ledger.AccountEvent
	for index := uint64(100); index > 0; index-- {
		incoming = append(incoming, testEvent("alice", index, map[string]any{"voter": "alice"}))
	}
	source := &fakeAccountSource{reverse: map[string][]ledger.AccountEvent{"alice": incoming}}

	updater := NewAccountUpdater(source, store, NewTrackedSet([]string{"alice"}), 25, testLogger())
	require.NoError(t, updater.BackfillRecent(context.Background(), "alice"))

	assert.Len(t, store.accountOps, 25)
	assert.Contains(t, store.accountOps, acctOpKey{"alice", 76})
}
