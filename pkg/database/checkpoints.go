package database

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetCheckpoint returns the numeric cursor of a stream, lazily creating the
// record with cursor 0 on first read. Callers must ensure single-writer
// ownership of each stream key; no locking happens here.
func (db *DB) GetCheckpoint(ctx context.Context, stream string) (int64, error) {
	raw, err := db.getCursor(ctx, stream)
	if err != nil {
		return 0, err
	}

	return parseCursor(raw)
}

// SetCheckpoint durably overwrites the cursor of a stream. Callers only
// advance a cursor after the corresponding unit of work is stored, so a
// crash never records progress past unstored data.
func (db *DB) SetCheckpoint(ctx context.Context, stream string, cursor int64) error {
	return db.setCursor(ctx, stream, formatCursor(cursor))
}

// GetCheckpointMarker is the sentinel-string variant of GetCheckpoint, used
// by streams that track progress by name rather than block number.
func (db *DB) GetCheckpointMarker(ctx context.Context, stream string) (string, error) {
	return db.getCursor(ctx, stream)
}

func (db *DB) SetCheckpointMarker(ctx context.Context, stream, marker string) error {
	return db.setCursor(ctx, stream, marker)
}

func (db *DB) getCursor(ctx context.Context, stream string) (string, error) {
	var cp Checkpoint
	err := db.g.WithContext(ctx).Where(&Checkpoint{Stream: stream}).First(&cp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cp = Checkpoint{Stream: stream, Cursor: formatCursor(0)}
		if err := db.g.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&cp).Error; err != nil {
			return "", errors.Wrap(err, "create checkpoint")
		}

		return cp.Cursor, nil
	}
	if err != nil {
		return "", errors.Wrap(err, "get checkpoint")
	}

	return cp.Cursor, nil
}

func (db *DB) setCursor(ctx context.Context, stream, cursor string) error {
	cp := Checkpoint{Stream: stream, Cursor: cursor}
	err := db.g.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stream"}},
		DoUpdates: clause.AssignmentColumns([]string{"cursor", "updated_at"}),
	}).Create(&cp).Error

	return errors.Wrapf(err, "set checkpoint %s", stream)
}

func parseCursor(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}

	cursor, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "non-numeric cursor %q", raw)
	}

	return cursor, nil
}

func formatCursor(cursor int64) string {
	return strconv.FormatInt(cursor, 10)
}
