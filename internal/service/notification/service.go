package notification

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/kindling-app/kindling/internal/app"
	"github.com/kindling-app/kindling/internal/channel"
	svcErr "github.com/kindling-app/kindling/internal/errors"
	"github.com/kindling-app/kindling/internal/notify"
	"github.com/kindling-app/kindling/internal/repository"
)

// ReadRef is the payload of notification:read / notification:ack events.
type ReadRef struct {
	NotificationID string `json:"notificationId"`
}

// Service handles the client side of the delivery pipeline: delivery
// acknowledgments, read state, and the pollable listing the REST
// collaborator serves to offline clients.
type Service struct {
	appCtx *app.AppContext
	repo   *repository.NotificationRepository
}

// NewService creates a new Notification service with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx: appCtx,
		repo:   repository.NewNotificationRepository(appCtx.DB),
	}
}

// Acknowledge records a client delivery ack: sets delivered_at once.
// Later acks for the same id are no-ops.
func (s *Service) Acknowledge(ctx context.Context, notificationID string) error {
	n, err := s.repo.GetByID(ctx, notificationID)
	if err != nil {
		return svcErr.Map(err)
	}
	if n == nil {
		return svcErr.NotFound("notification not found")
	}
	set, err := s.repo.MarkDelivered(ctx, notificationID)
	if err != nil {
		return svcErr.Map(err)
	}
	if set {
		s.appCtx.Logger.Debug("notification acknowledged", "notification", notificationID)
	}
	return nil
}

// MarkRead sets read_at on one of the user's notifications. Reads can
// arrive without a prior ack (polling clients). Re-reading is a no-op; the
// stored timestamp never changes.
func (s *Service) MarkRead(ctx context.Context, userID uint64, notificationID string) error {
	set, err := s.repo.MarkRead(ctx, notificationID, userID)
	if err != nil {
		return svcErr.Map(err)
	}
	if !set {
		// already read, or not this user's notification; either way a no-op
		return nil
	}

	s.invalidateUnread(ctx, userID)
	// let the user's other sessions converge
	if err := s.appCtx.Channel.Publish(ctx, userID, channel.EventNotificationRead, ReadRef{NotificationID: notificationID}); err != nil {
		s.appCtx.Logger.Warn("read event publish failed", "notification", notificationID, "err", err)
	}
	return nil
}

// MarkAllRead sets read_at on every unread notification for the user.
func (s *Service) MarkAllRead(ctx context.Context, userID uint64) error {
	updated, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return svcErr.Map(err)
	}
	if updated == 0 {
		return nil
	}

	s.invalidateUnread(ctx, userID)
	if err := s.appCtx.Channel.Publish(ctx, userID, channel.EventNotificationsAllRead, nil); err != nil {
		s.appCtx.Logger.Warn("all-read event publish failed", "user", userID, "err", err)
	}
	return nil
}

// List returns a cursor page of the user's notifications as wire DTOs,
// newest first.
func (s *Service) List(ctx context.Context, userID uint64, paginationToken *string, limit int) ([]notify.DTO, *string, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, nextToken, err := s.repo.ListByUser(ctx, userID, paginationToken, limit)
	if err != nil {
		return nil, nil, svcErr.Map(err)
	}
	dtos := make([]notify.DTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, notify.DTOFromRow(&rows[i]))
	}
	return dtos, nextToken, nil
}

// UnreadCount returns the user's unread total.
// Cache-first strategy:
//  1. Attempts to read from Redis (notifications:unread:userID).
//  2. On cache miss, falls back to the DB and refills the cache.
func (s *Service) UnreadCount(ctx context.Context, userID uint64) (int64, error) {
	key := s.appCtx.RedisCache.KeyForUnreadCount(userID)

	if n, ok, _ := s.appCtx.RedisCache.GetCount(ctx, key); ok {
		return n, nil
	}

	count, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return 0, svcErr.Map(err)
	}
	_ = s.appCtx.RedisCache.SetCount(ctx, key, count)
	return count, nil
}

// HandleClientEvent routes an event received from one of the user's
// connected sessions: delivery acks and read actions.
func (s *Service) HandleClientEvent(ctx context.Context, userID uint64, env channel.Envelope) error {
	switch env.Event {
	case channel.EventNotificationAck:
		var ref ReadRef
		if err := json.Unmarshal(env.Data, &ref); err != nil || ref.NotificationID == "" {
			return svcErr.InvalidArgument("ack payload must carry a notificationId")
		}
		return s.Acknowledge(ctx, ref.NotificationID)

	case channel.EventNotificationRead:
		var ref ReadRef
		if err := json.Unmarshal(env.Data, &ref); err != nil || ref.NotificationID == "" {
			return svcErr.InvalidArgument("read payload must carry a notificationId")
		}
		return s.MarkRead(ctx, userID, ref.NotificationID)

	case channel.EventNotificationsAllRead:
		return s.MarkAllRead(ctx, userID)

	default:
		return svcErr.InvalidArgument("unknown client event " + strconv.Quote(env.Event))
	}
}

func (s *Service) invalidateUnread(ctx context.Context, userID uint64) {
	_ = s.appCtx.RedisCache.Del(ctx, s.appCtx.RedisCache.KeyForUnreadCount(userID))
}
