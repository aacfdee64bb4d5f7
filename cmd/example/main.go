// Example wiring of the scraper against a stub ledger client. A real
// deployment supplies a client speaking the node's RPC protocol; everything
// else comes from the app package.
package main

import (
	"context"
	"log"

	"github.com/pkg/errors"

	"github.com/graphenedata/ledger-indexer/pkg/app"
	"github.com/graphenedata/ledger-indexer/pkg/ledger"
)

func main() {
	input := app.Input[*ExampleConfig]{
		NewLedgerClient:     NewExample,
		DefaultLedgerConfig: &ExampleConfig{},
	}

	if err := app.Run(input); err != nil {
		log.Fatal(err)
	}
}

type ExampleConfig struct {
	URL string `toml:"url"`
}

type ExampleLedger struct{}

func NewExample(cfg *ExampleConfig) (ledger.Client, error) {
	return ExampleLedger{}, nil
}

func (e ExampleLedger) HeadBlockNumber(context.Context) (uint64, error) {
	return 0, errors.New("not implemented")
}

func (e ExampleLedger) LastIrreversibleBlockNumber(context.Context) (uint64, error) {
	return 0, errors.New("not implemented")
}

func (e ExampleLedger) GetBlocks(context.Context, []uint64) ([]ledger.Block, error) {
	return nil, errors.New("not implemented")
}

func (e ExampleLedger) StreamBlocks(context.Context, uint64) (ledger.BlockStream, error) {
	return nil, errors.New("not implemented")
}

func (e ExampleLedger) StreamOperations(context.Context, uint64) (ledger.OperationStream, error) {
	return nil, errors.New("not implemented")
}

func (e ExampleLedger) GetAccount(context.Context, string, bool) (*ledger.AccountSnapshot, error) {
	return nil, errors.New("not implemented")
}

func (e ExampleLedger) AccountHistory(context.Context, string) (ledger.EventStream, error) {
	return nil, errors.New("not implemented")
}

func (e ExampleLedger) AccountHistoryReverse(context.Context, string, int) (ledger.EventStream, error) {
	return nil, errors.New("not implemented")
}

func (e ExampleLedger) GetContent(context.Context, string, string) (*ledger.Content, error) {
	return nil, errors.New("not implemented")
}
