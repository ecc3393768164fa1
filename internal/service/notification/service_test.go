package notification_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kindling-app/kindling/internal/app"
	"github.com/kindling-app/kindling/internal/cache"
	"github.com/kindling-app/kindling/internal/channel"
	"github.com/kindling-app/kindling/internal/config"
	"github.com/kindling-app/kindling/internal/db"
	svcErr "github.com/kindling-app/kindling/internal/errors"
	"github.com/kindling-app/kindling/internal/queue"
	"github.com/kindling-app/kindling/internal/service/notification"
)

type nopQueue struct{}

func (nopQueue) Enqueue(context.Context, queue.Job) error { return nil }

func setupService(t *testing.T) (*notification.Service, *app.AppContext) {
	t.Helper()

	dbName := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	dbase, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := dbase.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, dbase.AutoMigrate(&db.User{}, &db.Like{}, &db.Match{}, &db.Block{}, &db.Notification{}))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()

	redisCache := cache.NewRedisCache(cfg)
	ch := channel.NewRedisChannel(redisCache.Client)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	appCtx := app.New(cfg, dbase, redisCache, nopQueue{}, ch, logger)
	return notification.NewService(appCtx), appCtx
}

func seedNotification(t *testing.T, appCtx *app.AppContext, userID uint64) *db.Notification {
	t.Helper()
	n := &db.Notification{
		ID:     uuid.NewString(),
		JobID:  uuid.NewString(),
		UserID: userID,
		Type:   db.NotificationTypeLike,
		Status: db.NotificationStatusSent,
	}
	require.NoError(t, appCtx.DB.Create(n).Error)
	return n
}

func TestAcknowledgeSetsDeliveredOnce(t *testing.T) {
	ctx := context.Background()
	svc, appCtx := setupService(t)
	n := seedNotification(t, appCtx, 1)

	require.NoError(t, svc.Acknowledge(ctx, n.ID))

	var got db.Notification
	require.NoError(t, appCtx.DB.First(&got, "id = ?", n.ID).Error)
	require.NotNil(t, got.DeliveredAt)
	stamp := *got.DeliveredAt

	// second ack leaves the timestamp alone
	require.NoError(t, svc.Acknowledge(ctx, n.ID))
	require.NoError(t, appCtx.DB.First(&got, "id = ?", n.ID).Error)
	assert.Equal(t, stamp, *got.DeliveredAt)
}

func TestAcknowledgeUnknownNotification(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	err := svc.Acknowledge(ctx, uuid.NewString())
	require.Error(t, err)
	assert.True(t, svcErr.IsCode(err, codes.NotFound))
}

// Reading twice is a no-op the second time: status and timestamp unchanged.
func TestMarkReadIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, appCtx := setupService(t)
	n := seedNotification(t, appCtx, 1)

	require.NoError(t, svc.MarkRead(ctx, 1, n.ID))

	var got db.Notification
	require.NoError(t, appCtx.DB.First(&got, "id = ?", n.ID).Error)
	require.NotNil(t, got.ReadAt)
	stamp := *got.ReadAt

	require.NoError(t, svc.MarkRead(ctx, 1, n.ID))
	require.NoError(t, appCtx.DB.First(&got, "id = ?", n.ID).Error)
	assert.Equal(t, stamp, *got.ReadAt)
	assert.Equal(t, db.NotificationStatusSent, got.Status)
}

// Reads can arrive without a prior ack (polling clients).
func TestMarkReadWithoutAck(t *testing.T) {
	ctx := context.Background()
	svc, appCtx := setupService(t)
	n := seedNotification(t, appCtx, 1)

	require.NoError(t, svc.MarkRead(ctx, 1, n.ID))

	var got db.Notification
	require.NoError(t, appCtx.DB.First(&got, "id = ?", n.ID).Error)
	assert.NotNil(t, got.ReadAt)
	assert.Nil(t, got.DeliveredAt)
}

func TestMarkAllReadAndUnreadCount(t *testing.T) {
	ctx := context.Background()
	svc, appCtx := setupService(t)
	for i := 0; i < 3; i++ {
		seedNotification(t, appCtx, 1)
	}
	seedNotification(t, appCtx, 2)

	count, err := svc.UnreadCount(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	// second call hits the cache
	count, err = svc.UnreadCount(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	require.NoError(t, svc.MarkAllRead(ctx, 1))

	count, err = svc.UnreadCount(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)

	count, err = svc.UnreadCount(ctx, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestListReturnsDTOsNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc, appCtx := setupService(t)

	base := time.Now().UTC().Truncate(time.Millisecond).Add(-time.Hour)
	for i := 0; i < 4; i++ {
		n := &db.Notification{
			ID:        fmt.Sprintf("n-%d", i),
			JobID:     uuid.NewString(),
			UserID:    1,
			Type:      db.NotificationTypeMatch,
			Status:    db.NotificationStatusSent,
			Metadata:  `{"match_id":"m-1"}`,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, appCtx.DB.Create(n).Error)
	}

	dtos, token, err := svc.List(ctx, 1, nil, 3)
	require.NoError(t, err)
	require.Len(t, dtos, 3)
	require.NotNil(t, token)
	assert.Equal(t, "n-3", dtos[0].ID)
	assert.Equal(t, "1", dtos[0].UserID)
	assert.Equal(t, "m-1", dtos[0].Metadata["match_id"])

	rest, token, err := svc.List(ctx, 1, token, 3)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Nil(t, token)
}

func TestHandleClientEventRouting(t *testing.T) {
	ctx := context.Background()
	svc, appCtx := setupService(t)
	n := seedNotification(t, appCtx, 1)

	ref, err := json.Marshal(notification.ReadRef{NotificationID: n.ID})
	require.NoError(t, err)

	// ack sets delivered_at
	err = svc.HandleClientEvent(ctx, 1, channel.Envelope{Event: channel.EventNotificationAck, Data: ref})
	require.NoError(t, err)

	// read sets read_at
	err = svc.HandleClientEvent(ctx, 1, channel.Envelope{Event: channel.EventNotificationRead, Data: ref})
	require.NoError(t, err)

	var got db.Notification
	require.NoError(t, appCtx.DB.First(&got, "id = ?", n.ID).Error)
	assert.NotNil(t, got.DeliveredAt)
	assert.NotNil(t, got.ReadAt)

	// unknown events and malformed payloads are rejected
	err = svc.HandleClientEvent(ctx, 1, channel.Envelope{Event: "bogus"})
	require.Error(t, err)
	assert.True(t, svcErr.IsCode(err, codes.InvalidArgument))

	err = svc.HandleClientEvent(ctx, 1, channel.Envelope{Event: channel.EventNotificationAck, Data: []byte(`{}`)})
	require.Error(t, err)
	assert.True(t, svcErr.IsCode(err, codes.InvalidArgument))
}
