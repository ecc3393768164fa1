package repository

import (
	"context"
	"errors"

	"github.com/kindling-app/kindling/internal/db"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BlockRepository provides data access methods for the Block model.
// Blocks are directional; the cascading cleanup lives in service/block.
type BlockRepository struct {
	db *gorm.DB
}

// NewBlockRepository creates a new repository bound to the given DB connection.
func NewBlockRepository(database *gorm.DB) *BlockRepository {
	return &BlockRepository{db: database}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *BlockRepository) WithTx(tx *gorm.DB) *BlockRepository {
	return &BlockRepository{db: tx}
}

// Create inserts the block row blocker -> blocked.
// Idempotent: a duplicate block is a no-op on the composite PK.
func (r *BlockRepository) Create(ctx context.Context, blockerID, blockedID uint64) error {
	block := db.Block{
		BlockerID: blockerID,
		BlockedID: blockedID,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&block).Error
}

// Delete removes the block row blocker -> blocked.
// Returns true if a row was actually deleted.
func (r *BlockRepository) Delete(ctx context.Context, blockerID, blockedID uint64) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Delete(&db.Block{})
	return res.RowsAffected > 0, res.Error
}

// Find returns the block row blocker -> blocked, or nil if none exists.
func (r *BlockRepository) Find(ctx context.Context, blockerID, blockedID uint64) (*db.Block, error) {
	var block db.Block
	err := r.db.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		First(&block).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &block, nil
}

// FindBetween returns a block row between a and b in either direction, or
// nil if neither side has blocked the other. When both directions exist the
// a -> b row wins (callers only need one responsible side).
func (r *BlockRepository) FindBetween(ctx context.Context, a, b uint64) (*db.Block, error) {
	if block, err := r.Find(ctx, a, b); block != nil || err != nil {
		return block, err
	}
	return r.Find(ctx, b, a)
}
