package database

import (
	"time"

	"gorm.io/datatypes"
)

var entities = []interface{}{
	&Checkpoint{},
	&Block{},
	&Operation{},
	&Account{},
	&AccountOperation{},
	&Post{},
	&CollectionStat{},
}

// Checkpoint is a durable named progress marker. Cursor holds either a
// decimal block number or a sentinel string (the account scanner stores the
// last finished account name). One row per stream, last write wins; each
// stream key is owned by exactly one writer process by convention.
type Checkpoint struct {
	Stream    string `gorm:"primaryKey;type:varchar(64)"`
	Cursor    string `gorm:"type:varchar(128)"`
	UpdatedAt time.Time
}

// Block is an insert-only raw block record, unique on BlockID.
type Block struct {
	BlockID   string `gorm:"primaryKey;type:varchar(40)"`
	BlockNum  uint64 `gorm:"index"`
	Previous  string `gorm:"type:varchar(40);index"`
	Witness   string `gorm:"type:varchar(16)"`
	Timestamp time.Time
	Payload   datatypes.JSONMap
}

// Operation is one entry of the raw operation feed. The (block_num, seq)
// pair is unique; a rejected duplicate insert is the idempotence primitive
// for at-least-once ingestion.
type Operation struct {
	ID        uint64 `gorm:"primaryKey"`
	BlockNum  uint64 `gorm:"uniqueIndex:idx_operations_pos,priority:1;index"`
	Seq       uint32 `gorm:"uniqueIndex:idx_operations_pos,priority:2"`
	TrxID     string `gorm:"type:varchar(40)"`
	Type      string `gorm:"type:varchar(64);index"`
	Virtual   bool
	Timestamp time.Time `gorm:"index"`
	Payload   datatypes.JSONMap
}

// Account is the projection of one tracked account and the only mutable
// entity in the store. A full refresh replaces the whole row; a light
// refresh merges only the snapshot columns.
type Account struct {
	Name      string `gorm:"primaryKey;type:varchar(16)"`
	Balances  datatypes.JSONMap
	Metadata  datatypes.JSONMap
	VoteStats datatypes.JSONMap
	Extras    datatypes.JSONMap
	UpdatedAt time.Time
}

// AccountOperation is one event of an account's history. Index is the
// account-local monotonic sequence; its maximum per account is the
// high-water mark driving incremental backfill.
type AccountOperation struct {
	ID        uint64 `gorm:"primaryKey"`
	Account   string `gorm:"uniqueIndex:idx_account_operations_pos,priority:1;index;type:varchar(16)"`
	Index     uint64 `gorm:"uniqueIndex:idx_account_operations_pos,priority:2"`
	BlockNum  uint64
	Type      string `gorm:"type:varchar(64);index"`
	Timestamp time.Time
	Payload   datatypes.JSONMap
}

// Post is a stored post or comment, addressed by "author/permlink".
type Post struct {
	Identifier string `gorm:"primaryKey;type:varchar(512)"`
	Author     string `gorm:"index;type:varchar(16)"`
	Permlink   string `gorm:"type:varchar(256)"`
	Title      string
	Body       string
	Metadata   datatypes.JSONMap
	Created    time.Time
	UpdatedAt  time.Time
}

// CollectionStat is a periodically refreshed row/size summary of one table.
type CollectionStat struct {
	Name      string `gorm:"primaryKey;type:varchar(64)"`
	Rows      int64
	Bytes     int64
	UpdatedAt time.Time
}
