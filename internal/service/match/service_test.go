package match_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
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
	"github.com/kindling-app/kindling/internal/repository"
	"github.com/kindling-app/kindling/internal/service/match"
)

type nopQueue struct{}

func (nopQueue) Enqueue(context.Context, queue.Job) error { return nil }

func setupService(t *testing.T) (*match.Service, *app.AppContext) {
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
	return match.NewService(appCtx), appCtx
}

func TestAreMatched(t *testing.T) {
	ctx := context.Background()
	svc, appCtx := setupService(t)

	repo := repository.NewMatchRepository(appCtx.DB)
	_, err := repo.Create(ctx, 4, 2)
	require.NoError(t, err)

	matched, err := svc.AreMatched(ctx, 2, 4)
	require.NoError(t, err)
	assert.True(t, matched)

	matched, err = svc.AreMatched(ctx, 2, 5)
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestRemoveMatchRequiresMatch(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	err := svc.RemoveMatch(ctx, 1, 2)
	require.Error(t, err)
	assert.True(t, svcErr.IsCode(err, codes.FailedPrecondition))
	assert.Contains(t, err.Error(), "Users are not matched")
}

func TestRemoveMatchRefreshesCounters(t *testing.T) {
	ctx := context.Background()
	svc, appCtx := setupService(t)

	users := []db.User{
		{ID: 1, Username: "u1", Email: "u1@test.com", PasswordHash: "x", Gender: "male", MatchCount: 99},
		{ID: 2, Username: "u2", Email: "u2@test.com", PasswordHash: "x", Gender: "female", MatchCount: 99},
	}
	require.NoError(t, appCtx.DB.Create(&users).Error)

	repo := repository.NewMatchRepository(appCtx.DB)
	_, err := repo.Create(ctx, 1, 2)
	require.NoError(t, err)

	require.NoError(t, svc.RemoveMatch(ctx, 2, 1))

	matched, err := svc.AreMatched(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, matched)

	// counters were recomputed from rows, not decremented from the stale 99
	var u1, u2 db.User
	require.NoError(t, appCtx.DB.First(&u1, 1).Error)
	require.NoError(t, appCtx.DB.First(&u2, 2).Error)
	assert.EqualValues(t, 0, u1.MatchCount)
	assert.EqualValues(t, 0, u2.MatchCount)
}

func TestGetMatchesPaging(t *testing.T) {
	ctx := context.Background()
	svc, appCtx := setupService(t)

	repo := repository.NewMatchRepository(appCtx.DB)
	for _, other := range []uint64{2, 3, 4, 5} {
		_, err := repo.Create(ctx, 1, other)
		require.NoError(t, err)
	}

	page1, err := svc.GetMatches(ctx, 1, 1, 3)
	require.NoError(t, err)
	assert.Len(t, page1, 3)

	page2, err := svc.GetMatches(ctx, 1, 2, 3)
	require.NoError(t, err)
	assert.Len(t, page2, 1)

	// unrelated user has no matches
	none, err := svc.GetMatches(ctx, 9, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRecountUser(t *testing.T) {
	ctx := context.Background()
	svc, appCtx := setupService(t)

	user := db.User{ID: 1, Username: "u1", Email: "u1@test.com", PasswordHash: "x", Gender: "male", LikeCount: 50, MatchCount: 50}
	require.NoError(t, appCtx.DB.Create(&user).Error)

	matchRepo := repository.NewMatchRepository(appCtx.DB)
	likeRepo := repository.NewLikeRepository(appCtx.DB)
	_, err := matchRepo.Create(ctx, 1, 2)
	require.NoError(t, err)
	require.NoError(t, likeRepo.Upsert(ctx, 2, 1, true))

	require.NoError(t, svc.RecountUser(ctx, 1))

	var got db.User
	require.NoError(t, appCtx.DB.First(&got, 1).Error)
	assert.EqualValues(t, 1, got.LikeCount)
	assert.EqualValues(t, 1, got.MatchCount)
}
