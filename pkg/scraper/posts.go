package scraper

import (
	"context"
	"time"

	"github.com/graphenedata/ledger-indexer/pkg/database"
	"github.com/graphenedata/ledger-indexer/pkg/ledger"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type contentSource interface {
	GetContent(ctx context.Context, author, permlink string) (*ledger.Content, error)
}

// PostSyncer mirrors posts and comments referenced by the operation feed.
// A not-found answer removes any stored copy, covering deleted comments.
type PostSyncer struct {
	client contentSource
	store  Store
	log    *zap.SugaredLogger
}

func NewPostSyncer(client contentSource, store Store, log *zap.SugaredLogger) *PostSyncer {
	return &PostSyncer{client: client, store: store, log: log}
}

func (ps *PostSyncer) SyncPost(ctx context.Context, author, permlink string) error {
	identifier := author + "/" + permlink

	content, err := ps.client.GetContent(ctx, author, permlink)
	if errors.Is(err, ledger.ErrNotFound) {
		return ps.store.DeletePost(ctx, identifier)
	}
	if err != nil {
		return err
	}

	return ps.store.UpsertPost(ctx, &database.Post{
		Identifier: identifier,
		Author:     content.Author,
		Permlink:   content.Permlink,
		Title:      content.Title,
		Body:       content.Body,
		Metadata:   datatypes.JSONMap(sanitizeKeys(content.Metadata)),
		Created:    content.Created,
		UpdatedAt:  time.Now().UTC(),
	})
}
