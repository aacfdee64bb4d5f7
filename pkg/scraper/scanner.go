package scraper

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// AccountsStream is the checkpoint key of the account scanner. Its cursor
// is a name marker, not a block number.
const AccountsStream = "accounts"

// scanDoneMarker records a completed pass; the next pass restarts from the
// top of the tracked set.
const scanDoneMarker = "done"

// AccountScanner periodically walks the whole tracked set, fully refreshing
// every account projection and backfilling history. The post-processing
// pipeline keeps recent activity fresh; this scan covers everything the
// pipeline's recency cutoff skips.
type AccountScanner struct {
	store    Store
	accounts *AccountUpdater
	tracked  TrackedSet
	log      *zap.SugaredLogger

	// quick limits backfill to the incremental reverse walk instead of a
	// full from-genesis pass.
	quick bool
	pause time.Duration
}

func NewAccountScanner(store Store, accounts *AccountUpdater, tracked TrackedSet, quick bool, pause time.Duration, log *zap.SugaredLogger) *AccountScanner {
	return &AccountScanner{
		store:    store,
		accounts: accounts,
		tracked:  tracked,
		log:      log,
		quick:    quick,
		pause:    pause,
	}
}

func (as *AccountScanner) Run(ctx context.Context) error {
	for {
		if err := as.runPass(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(as.pause):
		}
	}
}

// runPass resumes from the name marker, so an interrupted pass picks up
// where it stopped instead of re-walking finished accounts.
func (as *AccountScanner) runPass(ctx context.Context) error {
	marker, err := as.store.GetCheckpointMarker(ctx, AccountsStream)
	if err != nil {
		return err
	}
	if marker == scanDoneMarker || marker == "0" {
		marker = ""
	}

	for _, name := range as.tracked.Names() {
		if marker != "" && name <= marker {
			continue
		}

		as.log.Infof("updating @%s", name)

		if err := as.accounts.UpdateAccount(ctx, name, true); err != nil {
			return err
		}

		if as.quick {
			err = as.accounts.BackfillRecent(ctx, name)
		} else {
			err = as.accounts.BackfillHistory(ctx, name)
		}
		if err != nil {
			return err
		}

		if err := as.store.SetCheckpointMarker(ctx, AccountsStream, name); err != nil {
			return err
		}

		as.log.Infof("updated @%s", name)
	}

	return as.store.SetCheckpointMarker(ctx, AccountsStream, scanDoneMarker)
}
