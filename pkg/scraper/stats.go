package scraper

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type statsStore interface {
	RefreshTableStats(ctx context.Context) error
}

// StatsRefresher periodically recomputes per-table row counts and sizes.
type StatsRefresher struct {
	store statsStore
	pause time.Duration
	log   *zap.SugaredLogger
}

func NewStatsRefresher(store statsStore, pause time.Duration, log *zap.SugaredLogger) *StatsRefresher {
	return &StatsRefresher{store: store, pause: pause, log: log}
}

func (sr *StatsRefresher) Run(ctx context.Context) error {
	for {
		if err := sr.store.RefreshTableStats(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sr.pause):
		}
	}
}
