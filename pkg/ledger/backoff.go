package ledger

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type clientWithBackoff struct {
	client         Client
	maxElapsedTime time.Duration
	requestTimeout time.Duration
	log            *zap.SugaredLogger
}

// WithBackoff decorates the unary calls of client with exponential-backoff
// retries and a per-request timeout. Stream calls pass through untouched;
// their lifetime is bounded by the caller's context, not a request timeout.
func WithBackoff(client Client, maxElapsedTime, requestTimeout time.Duration, log *zap.SugaredLogger) Client {
	return &clientWithBackoff{
		client:         client,
		maxElapsedTime: maxElapsedTime,
		requestTimeout: requestTimeout,
		log:            log,
	}
}

func (cb *clientWithBackoff) HeadBlockNumber(ctx context.Context) (uint64, error) {
	var head uint64
	err := cb.retry(ctx, "HeadBlockNumber", func(ctx context.Context) (err error) {
		head, err = cb.client.HeadBlockNumber(ctx)
		return err
	})

	return head, err
}

func (cb *clientWithBackoff) LastIrreversibleBlockNumber(ctx context.Context) (uint64, error) {
	var last uint64
	err := cb.retry(ctx, "LastIrreversibleBlockNumber", func(ctx context.Context) (err error) {
		last, err = cb.client.LastIrreversibleBlockNumber(ctx)
		return err
	})

	return last, err
}

func (cb *clientWithBackoff) GetBlocks(ctx context.Context, blockNums []uint64) ([]Block, error) {
	var blocks []Block
	err := cb.retry(ctx, "GetBlocks", func(ctx context.Context) (err error) {
		blocks, err = cb.client.GetBlocks(ctx, blockNums)
		return err
	})

	return blocks, err
}

func (cb *clientWithBackoff) StreamBlocks(ctx context.Context, start uint64) (BlockStream, error) {
	return cb.client.StreamBlocks(ctx, start)
}

func (cb *clientWithBackoff) StreamOperations(ctx context.Context, startBlock uint64) (OperationStream, error) {
	return cb.client.StreamOperations(ctx, startBlock)
}

func (cb *clientWithBackoff) GetAccount(ctx context.Context, name string, extras bool) (*AccountSnapshot, error) {
	var snapshot *AccountSnapshot
	err := cb.retry(ctx, "GetAccount", func(ctx context.Context) (err error) {
		snapshot, err = cb.client.GetAccount(ctx, name, extras)
		return err
	})

	return snapshot, err
}

func (cb *clientWithBackoff) AccountHistory(ctx context.Context, name string) (EventStream, error) {
	return cb.client.AccountHistory(ctx, name)
}

func (cb *clientWithBackoff) AccountHistoryReverse(ctx context.Context, name string, batchSize int) (EventStream, error) {
	return cb.client.AccountHistoryReverse(ctx, name, batchSize)
}

func (cb *clientWithBackoff) GetContent(ctx context.Context, author, permlink string) (*Content, error) {
	var content *Content
	err := cb.retry(ctx, "GetContent", func(ctx context.Context) (err error) {
		content, err = cb.client.GetContent(ctx, author, permlink)
		if errors.Is(err, ErrNotFound) {
			// Not-found is an answer, not a transient failure.
			return backoff.Permanent(err)
		}

		return err
	})

	return content, err
}

func (cb *clientWithBackoff) retry(ctx context.Context, name string, call func(context.Context) error) error {
	err := backoff.RetryNotify(
		func() error {
			ctx, cancel := context.WithTimeout(ctx, cb.requestTimeout)
			defer cancel()

			return call(ctx)
		},
		cb.newBackoff(ctx),
		func(err error, d time.Duration) {
			cb.log.Errorf("%s error: %v. Will retry after %v", name, err, d)
		},
	)
	if err != nil {
		return errors.Wrapf(err, "%s failed", name)
	}

	return nil
}

func (cb *clientWithBackoff) newBackoff(ctx context.Context) backoff.BackOff {
	return backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(cb.maxElapsedTime),
	), ctx)
}
