package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kindling-app/kindling/internal/db"
	"github.com/kindling-app/kindling/internal/utils/pagination"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NotificationRepository provides data access methods for the Notification
// model: the single creation path plus the status/timestamp transitions
// driven by delivery and client-ack events.
type NotificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new repository bound to the given DB connection.
func NewNotificationRepository(database *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: database}
}

// CreateIfAbsent inserts the notification unless a row for the same job id
// already exists.
//
// Behavior:
//   - Insert-or-ignore on the job_id unique index. The queue delivers
//     at-least-once; redelivered jobs land here a second time and must not
//     produce a second row.
//   - Returns the surviving row and whether this call created it.
func (r *NotificationRepository) CreateIfAbsent(
	ctx context.Context,
	n *db.Notification,
) (*db.Notification, bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "job_id"}},
			DoNothing: true,
		}).
		Create(n)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected > 0 {
		return n, true, nil
	}
	existing, err := r.GetByJobID(ctx, n.JobID)
	return existing, false, err
}

// GetByID returns the notification with the given id, or nil if none exists.
func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*db.Notification, error) {
	var n db.Notification
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// GetByJobID returns the notification created for the given queue job.
func (r *NotificationRepository) GetByJobID(ctx context.Context, jobID string) (*db.Notification, error) {
	var n db.Notification
	err := r.db.WithContext(ctx).Where("job_id = ?", jobID).First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// ListByUser returns a user's notifications, newest first.
//
// Behavior:
//   - Ordered by created_at DESC, id DESC.
//   - Supports cursor-based pagination via paginationToken.
//
// Example:
//
//	repo.ListByUser(ctx, 42, nil, 20) // latest 20 notifications for user 42
func (r *NotificationRepository) ListByUser(
	ctx context.Context,
	userID uint64,
	paginationToken *string,
	limit int,
) ([]db.Notification, *string, error) {
	var notifications []db.Notification

	// decode cursor if provided
	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Model(&db.Notification{}).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit + 1)

	// apply cursor
	if cursor.ID != "" && cursor.CreatedUnix > 0 {
		ts := time.UnixMilli(cursor.CreatedUnix)
		query = query.Where(
			"(created_at < ? OR (created_at = ? AND id < ?))",
			ts, ts, cursor.ID,
		)
	}

	if err := query.Find(&notifications).Error; err != nil {
		return nil, nil, err
	}

	// pagination: build next cursor if needed
	var nextToken *string
	if len(notifications) > limit {
		last := notifications[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			ID:          last.ID,
			CreatedUnix: last.CreatedAt.UnixMilli(),
		})
		nextToken = &token
		notifications = notifications[:limit]
	}

	return notifications, nextToken, nil
}

// MarkStatus transitions the notification's delivery status (pending ->
// sent|failed). Status is one of the three fields allowed to mutate after
// creation.
func (r *NotificationRepository) MarkStatus(ctx context.Context, id, status string) error {
	return r.db.WithContext(ctx).
		Model(&db.Notification{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// MarkDelivered sets delivered_at on a client delivery acknowledgment.
// Idempotent: only the first ack writes the timestamp.
// Returns true if this call set it.
func (r *NotificationRepository) MarkDelivered(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&db.Notification{}).
		Where("id = ? AND delivered_at IS NULL", id).
		Update("delivered_at", time.Now().UTC())
	return res.RowsAffected > 0, res.Error
}

// MarkRead sets read_at for the given notification if it belongs to userID
// and is not already read. Re-reading is a no-op. Returns true if this call
// set it.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string, userID uint64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&db.Notification{}).
		Where("id = ? AND user_id = ? AND read_at IS NULL", id, userID).
		Update("read_at", time.Now().UTC())
	return res.RowsAffected > 0, res.Error
}

// MarkAllRead sets read_at on every unread notification for userID.
// Returns how many rows were updated.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID uint64) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&db.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Update("read_at", time.Now().UTC())
	return res.RowsAffected, res.Error
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// UnreadCount returns how many notifications the user has not read yet.
func (r *NotificationRepository) UnreadCount(ctx context.Context, userID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Count(&count).Error
	return count, err
}
