package match

import (
	"context"

	"github.com/kindling-app/kindling/internal/app"
	"github.com/kindling-app/kindling/internal/db"
	svcErr "github.com/kindling-app/kindling/internal/errors"
	"github.com/kindling-app/kindling/internal/repository"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Service exposes match queries and removal on top of the canonical match
// rows maintained by the like service.
type Service struct {
	appCtx    *app.AppContext
	matchRepo *repository.MatchRepository
	likeRepo  *repository.LikeRepository
}

// NewService creates a new Match service with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:    appCtx,
		matchRepo: repository.NewMatchRepository(appCtx.DB),
		likeRepo:  repository.NewLikeRepository(appCtx.DB),
	}
}

// GetMatches returns a page of the user's matches, newest first.
func (s *Service) GetMatches(ctx context.Context, userID uint64, page, limit int) ([]db.Match, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	matches, err := s.matchRepo.ListByUser(ctx, userID, page, limit)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return matches, nil
}

// AreMatched reports whether a match row exists for the unordered pair.
func (s *Service) AreMatched(ctx context.Context, a, b uint64) (bool, error) {
	matched, err := s.matchRepo.AreMatched(ctx, a, b)
	if err != nil {
		return false, svcErr.Map(err)
	}
	return matched, nil
}

// RemoveMatch deletes the match between a and b and refreshes both users'
// match counters.
//
// The two counter refreshes are independent statements; each recomputes
// from match rows, so a crash between them leaves only a stale cached
// number that the next recomputation heals.
func (s *Service) RemoveMatch(ctx context.Context, a, b uint64) error {
	s.appCtx.Logger.Debug("RemoveMatch called", "a", a, "b", b)

	removed, err := s.matchRepo.Delete(ctx, a, b)
	if err != nil {
		return svcErr.Map(err)
	}
	if !removed {
		return svcErr.FailedPrecondition("Users are not matched")
	}

	s.refreshMatchCount(ctx, a)
	s.refreshMatchCount(ctx, b)
	return nil
}

// RecountUser recomputes both denormalized counters for a user from source
// rows. Meant for periodic reconciliation: running totals are never trusted
// across process restarts.
func (s *Service) RecountUser(ctx context.Context, userID uint64) error {
	if _, err := s.likeRepo.RefreshLikeCount(ctx, userID); err != nil {
		return svcErr.Map(err)
	}
	if _, err := s.matchRepo.RefreshMatchCount(ctx, userID); err != nil {
		return svcErr.Map(err)
	}
	return nil
}

func (s *Service) refreshMatchCount(ctx context.Context, userID uint64) {
	count, err := s.matchRepo.RefreshMatchCount(ctx, userID)
	if err != nil {
		s.appCtx.Logger.Warn("match count refresh failed", "user", userID, "err", err)
		return
	}
	key := s.appCtx.RedisCache.KeyForMatchCount(userID)
	_ = s.appCtx.RedisCache.SetCount(ctx, key, count)
}
