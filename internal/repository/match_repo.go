package repository

import (
	"context"
	"errors"

	"github.com/kindling-app/kindling/internal/db"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CanonicalPair orders two user ids so a symmetric pair always maps to a
// single row: user1_id < user2_id.
func CanonicalPair(a, b uint64) (uint64, uint64) {
	if a < b {
		return a, b
	}
	return b, a
}

// MatchRepository provides data access methods for the Match model.
type MatchRepository struct {
	db *gorm.DB
}

// NewMatchRepository creates a new repository bound to the given DB connection.
func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *MatchRepository) WithTx(tx *gorm.DB) *MatchRepository {
	return &MatchRepository{db: tx}
}

// Create inserts the canonical match row for the pair (a, b).
//
// Behavior:
//   - Insert-or-ignore on uniq_match_pair: under a concurrent double-trigger
//     both callers succeed logically and one physical row survives.
//   - Always returns the surviving row, whether this call inserted it or a
//     concurrent one did.
//
// This is deliberately NOT check-then-insert; the unique constraint is the
// arbiter under races.
func (r *MatchRepository) Create(ctx context.Context, a, b uint64) (*db.Match, error) {
	u1, u2 := CanonicalPair(a, b)
	match := db.Match{
		ID:      uuid.NewString(),
		User1ID: u1,
		User2ID: u2,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user1_id"}, {Name: "user2_id"}},
			DoNothing: true,
		}).
		Create(&match).Error
	if err != nil {
		return nil, err
	}
	// re-read: if we lost the race the surviving row has a different id
	return r.Find(ctx, a, b)
}

// Find returns the match row for the unordered pair (a, b), or nil if the
// users are not matched.
func (r *MatchRepository) Find(ctx context.Context, a, b uint64) (*db.Match, error) {
	u1, u2 := CanonicalPair(a, b)
	var match db.Match
	err := r.db.WithContext(ctx).
		Where("user1_id = ? AND user2_id = ?", u1, u2).
		First(&match).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// AreMatched reports whether a canonical match row exists for the pair.
func (r *MatchRepository) AreMatched(ctx context.Context, a, b uint64) (bool, error) {
	m, err := r.Find(ctx, a, b)
	return m != nil, err
}

// Delete removes the canonical match row for the pair.
// Returns true if a row was actually deleted.
func (r *MatchRepository) Delete(ctx context.Context, a, b uint64) (bool, error) {
	u1, u2 := CanonicalPair(a, b)
	res := r.db.WithContext(ctx).
		Where("user1_id = ? AND user2_id = ?", u1, u2).
		Delete(&db.Match{})
	return res.RowsAffected > 0, res.Error
}

// ListByUser returns pages of matches referencing userID, newest first.
//
// Example:
//
//	repo.ListByUser(ctx, 42, 1, 20) // first 20 matches for user 42
func (r *MatchRepository) ListByUser(
	ctx context.Context,
	userID uint64,
	page, limit int,
) ([]db.Match, error) {
	if page < 1 {
		page = 1
	}
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Order("created_at DESC, id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&matches).Error
	return matches, err
}

// CountForUser returns the number of match rows referencing userID.
func (r *MatchRepository) CountForUser(ctx context.Context, userID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Count(&count).Error
	return count, err
}

// RefreshMatchCount recomputes the denormalized match_count on the user row
// from match rows and returns the new value. Never incremented in place; a
// crash between the two per-user refreshes in a match removal heals on the
// next recomputation.
func (r *MatchRepository) RefreshMatchCount(ctx context.Context, userID uint64) (int64, error) {
	count, err := r.CountForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	err = r.db.WithContext(ctx).
		Model(&db.User{}).
		Where("id = ?", userID).
		Update("match_count", count).Error
	return count, err
}
