package repository

import (
	"context"
	"errors"

	"github.com/kindling-app/kindling/internal/db"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LikeRepository provides data access methods for the Like model.
// It encapsulates all queries related to like/dislike rows between users.
type LikeRepository struct {
	db *gorm.DB
}

// NewLikeRepository creates a new repository bound to the given DB connection.
func NewLikeRepository(database *gorm.DB) *LikeRepository {
	return &LikeRepository{db: database}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *LikeRepository) WithTx(tx *gorm.DB) *LikeRepository {
	return &LikeRepository{db: tx}
}

// Upsert inserts or updates the like row for liker -> liked.
//
// Behavior:
//   - If the (liker_id, liked_id) pair exists → the row is updated with the
//     new is_like value and a fresh updated_at.
//   - If it doesn't exist → a new row is inserted.
//   - Composite PK ensures overwrite guarantee; repeated actions by the same
//     pair never duplicate.
//
// Example:
//
//	repo.Upsert(ctx, 1, 2, true) // user 1 liked user 2
func (r *LikeRepository) Upsert(
	ctx context.Context,
	likerID, likedID uint64,
	isLike bool,
) error {
	like := db.Like{
		LikerID: likerID,
		LikedID: likedID,
		IsLike:  isLike,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "liker_id"}, {Name: "liked_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_like", "updated_at"}),
		}).
		Create(&like).Error
}

// Get returns the like row for liker -> liked, or nil if none exists.
func (r *LikeRepository) Get(ctx context.Context, likerID, likedID uint64) (*db.Like, error) {
	var like db.Like
	err := r.db.WithContext(ctx).
		Where("liker_id = ? AND liked_id = ?", likerID, likedID).
		First(&like).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &like, nil
}

// Delete removes the like row for liker -> liked.
// Returns true if a row was actually deleted.
func (r *LikeRepository) Delete(ctx context.Context, likerID, likedID uint64) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("liker_id = ? AND liked_id = ?", likerID, likedID).
		Delete(&db.Like{})
	return res.RowsAffected > 0, res.Error
}

// DeleteBetween removes like rows in BOTH directions between a and b.
// Used by the block cascade. Returns the number of rows removed.
func (r *LikeRepository) DeleteBetween(ctx context.Context, a, b uint64) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("(liker_id = ? AND liked_id = ?) OR (liker_id = ? AND liked_id = ?)", a, b, b, a).
		Delete(&db.Like{})
	return res.RowsAffected, res.Error
}

// HasLike checks whether liker has an is_like = true row on liked.
//
// Used for the reverse-direction lookup when detecting mutual likes.
//
// Example:
//
//	repo.HasLike(ctx, 2, 1) // -> true if user 2 liked user 1
func (r *LikeRepository) HasLike(ctx context.Context, likerID, likedID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Like{}).
		Where("liker_id = ? AND liked_id = ? AND is_like = ?", likerID, likedID, true).
		Count(&count).Error
	return count > 0, err
}

// CountLikesReceived returns how many users have an active like on userID.
func (r *LikeRepository) CountLikesReceived(ctx context.Context, userID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Like{}).
		Where("liked_id = ? AND is_like = ?", userID, true).
		Count(&count).Error
	return count, err
}

// RefreshLikeCount recomputes the denormalized like_count on the user row
// from the like rows themselves and returns the new value.
//
// The counter is always derived from source rows, never incremented, so a
// crash between any two statements self-heals on the next mutation.
func (r *LikeRepository) RefreshLikeCount(ctx context.Context, userID uint64) (int64, error) {
	count, err := r.CountLikesReceived(ctx, userID)
	if err != nil {
		return 0, err
	}
	err = r.db.WithContext(ctx).
		Model(&db.User{}).
		Where("id = ?", userID).
		Update("like_count", count).Error
	return count, err
}
