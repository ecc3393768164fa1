package db

import (
	"time"
)

// User table
type User struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"uniqueIndex;size:64;not null"`
	Email        string `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	Active       bool   `gorm:"default:true"`
	LastLoginAt  time.Time
	Gender       string `gorm:"size:16;not null"`
	// Denormalized counters, recomputed from like/match rows on every
	// mutation. Derivable from source rows; never incremented in place.
	LikeCount  int64     `gorm:"not null;default:0"`
	MatchCount int64     `gorm:"not null;default:0"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

// Like represents a liker's like/dislike decision on another user.
//
// Composite PK: (LikerID, LikedID)
//   - Ensures a single row per directed pair (overwrite guarantee).
//
// Indexes:
//   - idx_liked_islike(liked_id, is_like) optimizes "who liked me" counts
//     and the reverse-direction lookup for mutual like checks.
type Like struct {
	LikerID   uint64    `gorm:"primaryKey"`
	LikedID   uint64    `gorm:"primaryKey;index:idx_liked_islike,priority:1"`
	IsLike    bool      `gorm:"not null;type:tinyint(1);index:idx_liked_islike,priority:2"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Match is the symmetric relationship created on a mutual like.
//
// The pair is canonical: User1ID < User2ID always, so (A,B) and (B,A) map to
// the same row. uniq_match_pair is the final arbiter under concurrent
// double-trigger; inserts go through ON CONFLICT DO NOTHING.
type Match struct {
	ID        string    `gorm:"primaryKey;size:36"`
	User1ID   uint64    `gorm:"not null;uniqueIndex:uniq_match_pair,priority:1"`
	User2ID   uint64    `gorm:"not null;uniqueIndex:uniq_match_pair,priority:2;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Block is directional: blocker -> blocked. Creating one cascades removal of
// any match and likes between the pair (see service/block).
type Block struct {
	BlockerID uint64    `gorm:"primaryKey"`
	BlockedID uint64    `gorm:"primaryKey;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Notification types pushed to clients.
const (
	NotificationTypeLike        = "LIKE"
	NotificationTypeProfileView = "PROFILE_VIEW"
	NotificationTypeMatch       = "MATCH"
	NotificationTypeUnlike      = "UNLIKE"
)

// Notification delivery states. pending -> sent|failed by the worker;
// delivered_at / read_at are set by client acknowledgments afterwards.
const (
	NotificationStatusPending = "pending"
	NotificationStatusSent    = "sent"
	NotificationStatusFailed  = "failed"
)

// Notification is created exactly once per consumed queue job. JobID is the
// worker-side idempotency key: redelivered jobs hit the unique index and
// do not produce a second row. Only Status, ReadAt and DeliveredAt mutate
// after creation.
type Notification struct {
	ID          string `gorm:"primaryKey;size:36"`
	JobID       string `gorm:"uniqueIndex;size:36;not null"`
	UserID      uint64 `gorm:"not null;index:idx_notif_user_created,priority:1"`
	ActorID     *uint64
	Type        string `gorm:"size:16;not null"`
	Status      string `gorm:"size:8;not null;default:pending"`
	ReadAt      *time.Time
	DeliveredAt *time.Time
	Metadata    string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index:idx_notif_user_created,priority:2,sort:desc"`
}

// ValidNotificationType reports whether t is a known notification type.
func ValidNotificationType(t string) bool {
	switch t {
	case NotificationTypeLike, NotificationTypeProfileView,
		NotificationTypeMatch, NotificationTypeUnlike:
		return true
	}
	return false
}
