package scraper

import (
	"context"
	"time"

	"github.com/graphenedata/ledger-indexer/pkg/classify"
	"github.com/graphenedata/ledger-indexer/pkg/database"
	"github.com/graphenedata/ledger-indexer/pkg/dispatch"
	"go.uber.org/zap"
)

// PostProcessingStream is the checkpoint key of the pipeline.
const PostProcessingStream = "post_processing"

const (
	// An empty batch within this window means the feed is simply caught
	// up; the checkpoint must not advance past blocks that do not exist
	// yet.
	caughtUpWindowDays = 1

	// Refresh work is only dispatched for batches within this window.
	// Older batches are assumed covered by the periodic full account
	// scan; skipping them is a cost control, not a correctness need.
	refreshWindowDays = 10
)

type headSource interface {
	HeadBlockNumber(ctx context.Context) (uint64, error)
}

type accountRefresher interface {
	UpdateAccount(ctx context.Context, name string, loadExtras bool) error
	BackfillRecent(ctx context.Context, name string) error
}

type postSyncer interface {
	SyncPost(ctx context.Context, author, permlink string) error
}

// PostProcessorConfig tunes one pipeline instance.
type PostProcessorConfig struct {
	// BatchSize is the block-range span read per iteration.
	BatchSize uint64

	// MaxWorkers bounds the account-refresh fan-out.
	MaxWorkers int

	// PollInterval is the pause between iterations.
	PollInterval time.Duration
}

// PostProcessor periodically reads a block-range slice of stored
// operations, classifies them, and fans the resulting refresh obligations
// out over a bounded worker pool. Per-account failures are isolated and
// logged; they never fail the batch.
type PostProcessor struct {
	chain    headSource
	store    Store
	accounts accountRefresher
	posts    postSyncer
	cfg      PostProcessorConfig
	log      *zap.SugaredLogger
}

func NewPostProcessor(
	chain headSource, store Store, accounts accountRefresher, posts postSyncer,
	cfg PostProcessorConfig, log *zap.SugaredLogger,
) *PostProcessor {
	return &PostProcessor{
		chain:    chain,
		store:    store,
		accounts: accounts,
		posts:    posts,
		cfg:      cfg,
		log:      log,
	}
}

func (pp *PostProcessor) Run(ctx context.Context) error {
	for {
		if err := pp.ProcessBatch(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pp.cfg.PollInterval):
		}
	}
}

// ProcessBatch handles one checkpointed block-range slice. The checkpoint
// advances to the highest block number seen in the batch, after dispatch
// completed or was skipped.
func (pp *PostProcessor) ProcessBatch(ctx context.Context) error {
	cursor, err := pp.store.GetCheckpoint(ctx, PostProcessingStream)
	if err != nil {
		return err
	}

	ops, err := pp.store.OperationsInRange(ctx, uint64(cursor), uint64(cursor)+pp.cfg.BatchSize)
	if err != nil {
		return err
	}

	head, err := pp.chain.HeadBlockNumber(ctx)
	if err != nil {
		return err
	}

	if len(ops) == 0 {
		if isRecent(cursor, head, caughtUpWindowDays) {
			// Caught up with the feed.
			return nil
		}

		// A stale empty span cannot produce work anymore; skip over it.
		return pp.store.SetCheckpoint(ctx, PostProcessingStream, cursor+int64(pp.cfg.BatchSize))
	}

	batch := classify.NewObligation()
	for i := range ops {
		batch.Merge(classify.Classify(ops[i].Type, map[string]any(ops[i].Payload)))
	}

	if isRecent(cursor, head, refreshWindowDays) {
		pp.refreshAccounts(ctx, batch)
		pp.syncPosts(ctx, ops)
	}

	maxBlock := cursor
	for i := range ops {
		if int64(ops[i].BlockNum) > maxBlock {
			maxBlock = int64(ops[i].BlockNum)
		}
	}

	if err := pp.store.SetCheckpoint(ctx, PostProcessingStream, maxBlock); err != nil {
		return err
	}

	pp.log.Infof("checkpoint: %d - %d accounts (+%d full)", maxBlock, len(batch.Light), len(batch.Full))

	return nil
}

// refreshAccounts fans projection and quick backfill out over the
// deduplicated account set. Accounts in the full set get the extended
// refresh; the full obligation wins when a name is in both sets.
func (pp *PostProcessor) refreshAccounts(ctx context.Context, batch classify.Obligation) {
	results := dispatch.ForEach(ctx, pp.cfg.MaxWorkers, batch.Accounts(), func(ctx context.Context, name string) error {
		if err := pp.accounts.UpdateAccount(ctx, name, batch.Full.Has(name)); err != nil {
			return err
		}

		return pp.accounts.BackfillRecent(ctx, name)
	})

	for _, r := range results {
		if r.Err != nil {
			pp.log.Warnf("account refresh failed for @%s: %v", r.Arg, r.Err)
		}
	}
}

type postRef struct {
	author   string
	permlink string
}

// syncPosts mirrors the posts and comments touched by the batch.
func (pp *PostProcessor) syncPosts(ctx context.Context, ops []database.Operation) {
	seen := make(map[postRef]struct{})
	var refs []postRef

	for i := range ops {
		if ops[i].Type != "comment" && ops[i].Type != "delete_comment" {
			continue
		}

		ref := postRefFromPayload(map[string]any(ops[i].Payload))
		if ref.author == "" || ref.permlink == "" {
			continue
		}
		if _, ok := seen[ref]; ok {
			continue
		}

		seen[ref] = struct{}{}
		refs = append(refs, ref)
	}

	results := dispatch.ForEach(ctx, pp.cfg.MaxWorkers, refs, func(ctx context.Context, ref postRef) error {
		return pp.posts.SyncPost(ctx, ref.author, ref.permlink)
	})

	for _, r := range results {
		if r.Err != nil {
			pp.log.Warnf("post sync failed for @%s/%s: %v", r.Arg.author, r.Arg.permlink, r.Err)
		}
	}
}

func postRefFromPayload(payload map[string]any) postRef {
	author, _ := payload["author"].(string)
	if author == "" {
		author, _ = payload["comment_author"].(string)
	}

	permlink, _ := payload["permlink"].(string)
	if permlink == "" {
		permlink, _ = payload["comment_permlink"].(string)
	}

	return postRef{author: author, permlink: permlink}
}
