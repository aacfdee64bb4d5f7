package scraper

import (
	"context"
	"io"

	"github.com/graphenedata/ledger-indexer/pkg/database"
	"github.com/graphenedata/ledger-indexer/pkg/ledger"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// OperationsStream is the checkpoint key of the operation feed.
const OperationsStream = "operations"

type operationSource interface {
	StreamOperations(ctx context.Context, startBlock uint64) (ledger.OperationStream, error)
}

// OperationIngestor appends the full operation feed, virtual operations
// included, to the store and advances the operations checkpoint. The
// checkpoint always trails the latest fully-seen block by one, so a restart
// re-ingests at least that block; duplicate suppression makes the overlap
// harmless.
type OperationIngestor struct {
	client operationSource
	store  Store
	log    *zap.SugaredLogger
}

func NewOperationIngestor(client operationSource, store Store, log *zap.SugaredLogger) *OperationIngestor {
	return &OperationIngestor{client: client, store: store, log: log}
}

func (oi *OperationIngestor) Run(ctx context.Context) error {
	last, err := oi.store.GetCheckpoint(ctx, OperationsStream)
	if err != nil {
		return err
	}

	oi.log.Infof("fetching operations, starting with block %d", last)

	stream, err := oi.client.StreamOperations(ctx, uint64(last))
	if err != nil {
		return err
	}

	for {
		op, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		record := &database.Operation{
			BlockNum:  op.BlockNum,
			Seq:       op.Seq,
			TrxID:     op.TrxID,
			Type:      op.Type,
			Virtual:   op.Virtual,
			Timestamp: op.Timestamp,
			Payload:   datatypes.JSONMap(normalizeOperation(op)),
		}
		if _, err := oi.store.InsertOperation(ctx, record); err != nil {
			return err
		}

		if int64(op.BlockNum) != last {
			last = int64(op.BlockNum)

			// The block we just entered is not fully seen yet, so the
			// cursor stays one behind it.
			if err := oi.store.SetCheckpoint(ctx, OperationsStream, last-1); err != nil {
				return err
			}

			if last%10 == 0 {
				oi.log.Infof("operations checkpoint: %d", last)
			}
		}
	}
}
