package scraper

import (
	"context"
	"io"
	"time"

	"github.com/graphenedata/ledger-indexer/pkg/database"
	"github.com/graphenedata/ledger-indexer/pkg/ledger"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type accountSource interface {
	GetAccount(ctx context.Context, name string, extras bool) (*ledger.AccountSnapshot, error)
	AccountHistory(ctx context.Context, name string) (ledger.EventStream, error)
	AccountHistoryReverse(ctx context.Context, name string, batchSize int) (ledger.EventStream, error)
}

// AccountUpdater maintains the projection and operation history of tracked
// accounts. Every method is a no-op for accounts outside the tracked set.
type AccountUpdater struct {
	client         accountSource
	store          Store
	tracked        TrackedSet
	log            *zap.SugaredLogger
	quickBatchSize int
}

func NewAccountUpdater(client accountSource, store Store, tracked TrackedSet, quickBatchSize int, log *zap.SugaredLogger) *AccountUpdater {
	return &AccountUpdater{
		client:         client,
		store:          store,
		tracked:        tracked,
		log:            log,
		quickBatchSize: quickBatchSize,
	}
}

// UpdateAccount refreshes one account projection from a live snapshot. With
// loadExtras the extended sections (followers/following, curation stats,
// withdraw routes, conversion requests) are fetched too and the whole row
// is replaced; without, only the snapshot columns are merged. A failed
// write is retried exactly once with the metadata blanked, so one malformed
// profile cannot sink the update.
func (au *AccountUpdater) UpdateAccount(ctx context.Context, name string, loadExtras bool) error {
	if !au.tracked.Contains(name) {
		return nil
	}

	snapshot, err := au.client.GetAccount(ctx, name, loadExtras)
	if err != nil {
		return err
	}

	account := &database.Account{
		Name:      snapshot.Name,
		Balances:  datatypes.JSONMap(snapshot.Balances),
		VoteStats: datatypes.JSONMap(snapshot.VoteStats),
		Metadata:  datatypes.JSONMap(sanitizeMetadata(snapshot.Metadata)),
		UpdatedAt: time.Now().UTC(),
	}
	if loadExtras {
		account.Extras = datatypes.JSONMap(sanitizeKeys(snapshot.Extras))
	}

	if err := au.writeAccount(ctx, account, loadExtras); err != nil {
		account.Metadata = datatypes.JSONMap{}
		if err := au.writeAccount(ctx, account, loadExtras); err != nil {
			return err
		}

		au.log.Warnf("invalidated metadata on @%s", name)
	}

	return nil
}

func (au *AccountUpdater) writeAccount(ctx context.Context, account *database.Account, full bool) error {
	if full {
		return au.store.ReplaceAccount(ctx, account)
	}

	return au.store.MergeAccount(ctx, account)
}

// BackfillHistory walks the account's entire history forward from genesis
// with duplicate-suppressed inserts. Safe to re-run in full at any time.
func (au *AccountUpdater) BackfillHistory(ctx context.Context, name string) error {
	if !au.tracked.Contains(name) {
		return nil
	}

	stream, err := au.client.AccountHistory(ctx, name)
	if err != nil {
		return err
	}

	for {
		event, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if _, err := au.store.InsertAccountOperation(ctx, accountOpRecord(event, true)); err != nil {
			return err
		}
	}
}

// BackfillRecent syncs only the newest history, at most one batch, walking
// latest-first and stopping at the first event at or below the stored
// high-water index.
func (au *AccountUpdater) BackfillRecent(ctx context.Context, name string) error {
	if !au.tracked.Contains(name) {
		return nil
	}

	highWater, err := au.store.HighestAccountOpIndex(ctx, name)
	if err != nil {
		return err
	}

	stream, err := au.client.AccountHistoryReverse(ctx, name, au.quickBatchSize)
	if err != nil {
		return err
	}

	for n := 0; n < au.quickBatchSize; n++ {
		event, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if event.Index <= highWater {
			return nil
		}

		if _, err := au.store.InsertAccountOperation(ctx, accountOpRecord(event, false)); err != nil {
			return err
		}
	}

	return nil
}

func accountOpRecord(event *ledger.AccountEvent, dropBody bool) *database.AccountOperation {
	return &database.AccountOperation{
		Account:   event.Account,
		Index:     event.Index,
		BlockNum:  event.BlockNum,
		Type:      event.Type,
		Timestamp: event.Timestamp,
		Payload:   datatypes.JSONMap(normalizeEvent(event, dropBody)),
	}
}
