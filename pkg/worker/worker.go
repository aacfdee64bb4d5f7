// Package worker supervises long-lived stream tasks. A stream runs until it
// fails, gets restarted after a fixed delay forever, and only stops on
// context cancellation or an error marked permanent. Process-level restart
// handles anything worse; there is no in-process supervisor beyond this.
package worker

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Run executes fn under the restart policy. A nil return from fn ends the
// stream normally. Wrap an error with backoff.Permanent to stop the restart
// loop and propagate it; the chain-integrity check of the block ingestor
// uses this to abort its stream.
func Run(ctx context.Context, log *zap.SugaredLogger, name string, retryDelay time.Duration, fn func(context.Context) error) error {
	b := backoff.WithContext(backoff.NewConstantBackOff(retryDelay), ctx)

	return backoff.RetryNotify(
		func() error {
			return fn(ctx)
		},
		b,
		func(err error, d time.Duration) {
			log.Errorf("%s worker error: %v. Will restart after %v", name, err, d)
		},
	)
}
