package database

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// accountMergeColumns are the columns a light refresh is allowed to touch.
// Extras stays whatever the last full refresh wrote.
var accountMergeColumns = []string{"balances", "metadata", "vote_stats", "updated_at"}

// statTables are the tables covered by RefreshTableStats.
var statTables = []string{
	"blocks", "operations", "accounts", "account_operations", "posts", "checkpoints",
}

// InsertBlock attempts an insert and reports whether a row was written. A
// duplicate block_id is rejected by the store and reported as (false, nil).
func (db *DB) InsertBlock(ctx context.Context, block *Block) (bool, error) {
	return db.insert(ctx, block)
}

// BlockIDExists reports whether a block with the given id is stored.
func (db *DB) BlockIDExists(ctx context.Context, blockID string) (bool, error) {
	var count int64
	err := db.g.WithContext(ctx).Model(&Block{}).
		Where("block_id = ?", blockID).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "block id lookup")
	}

	return count > 0, nil
}

// LastBlockNum returns the highest stored block number, or 1 when the block
// ledger is empty.
func (db *DB) LastBlockNum(ctx context.Context) (uint64, error) {
	var block Block
	err := db.g.WithContext(ctx).
		Select("block_num").
		Order("block_num DESC").
		First(&block).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "last block num")
	}

	return block.BlockNum, nil
}

func (db *DB) InsertOperation(ctx context.Context, op *Operation) (bool, error) {
	return db.insert(ctx, op)
}

// OperationsInRange returns operations with from < block_num <= to. Large
// free-text payload fields are projected out; the result is meant for
// classification, not replay.
func (db *DB) OperationsInRange(ctx context.Context, from, to uint64) ([]Operation, error) {
	var ops []Operation
	err := db.g.WithContext(ctx).
		Select("id, block_num, seq, trx_id, type, virtual, timestamp, payload - 'body' - 'json_metadata' AS payload").
		Where("block_num > ? AND block_num <= ?", from, to).
		Order("block_num, seq").
		Find(&ops).Error
	if err != nil {
		return nil, errors.Wrap(err, "operations in range")
	}

	return ops, nil
}

func (db *DB) InsertAccountOperation(ctx context.Context, op *AccountOperation) (bool, error) {
	return db.insert(ctx, op)
}

// HighestAccountOpIndex returns the high-water history index for an
// account, or 0 when no history is stored yet.
func (db *DB) HighestAccountOpIndex(ctx context.Context, account string) (uint64, error) {
	var op AccountOperation
	err := db.g.WithContext(ctx).
		Select(`"index"`).
		Where("account = ?", account).
		Order(`"index" DESC`).
		First(&op).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "highest account op index")
	}

	return op.Index, nil
}

// ReplaceAccount upserts the whole account row (full refresh).
func (db *DB) ReplaceAccount(ctx context.Context, account *Account) error {
	err := db.g.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		UpdateAll: true,
	}).Create(account).Error

	return errors.Wrapf(err, "replace account %s", account.Name)
}

// MergeAccount upserts only the snapshot columns (light refresh), creating
// the row if it does not exist yet.
func (db *DB) MergeAccount(ctx context.Context, account *Account) error {
	err := db.g.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns(accountMergeColumns),
	}).Create(account).Error

	return errors.Wrapf(err, "merge account %s", account.Name)
}

func (db *DB) UpsertPost(ctx context.Context, post *Post) error {
	err := db.g.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "identifier"}},
		UpdateAll: true,
	}).Create(post).Error

	return errors.Wrapf(err, "upsert post %s", post.Identifier)
}

func (db *DB) DeletePost(ctx context.Context, identifier string) error {
	err := db.g.WithContext(ctx).Delete(&Post{Identifier: identifier}).Error
	return errors.Wrapf(err, "delete post %s", identifier)
}

// RefreshTableStats recomputes row counts and on-disk sizes for the main
// tables into collection_stats.
func (db *DB) RefreshTableStats(ctx context.Context) error {
	for _, table := range statTables {
		var rows int64
		if err := db.g.WithContext(ctx).Table(table).Count(&rows).Error; err != nil {
			return errors.Wrapf(err, "count %s", table)
		}

		var bytes int64
		err := db.g.WithContext(ctx).
			Raw("SELECT pg_total_relation_size(?)", table).
			Scan(&bytes).Error
		if err != nil {
			return errors.Wrapf(err, "size of %s", table)
		}

		stat := CollectionStat{Name: table, Rows: rows, Bytes: bytes, UpdatedAt: time.Now()}
		err = db.g.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			UpdateAll: true,
		}).Create(&stat).Error
		if err != nil {
			return errors.Wrapf(err, "upsert stats for %s", table)
		}
	}

	return nil
}

// insert writes one row with duplicate suppression. The boolean reports
// whether a row was actually written; a unique-key rejection yields
// (false, nil) since racing duplicate writers are part of the design.
func (db *DB) insert(ctx context.Context, record interface{}) (bool, error) {
	res := db.g.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(record)
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}
