package block

import (
	"context"

	"github.com/kindling-app/kindling/internal/app"
	svcErr "github.com/kindling-app/kindling/internal/errors"
	"github.com/kindling-app/kindling/internal/repository"

	"gorm.io/gorm"
)

// Result reports which cascading effects a block actually removed.
type Result struct {
	MatchRemoved bool
	LikesRemoved bool
}

// Interaction is the canUsersInteract answer: whether the pair may interact
// and, if not, which side placed the block.
type Interaction struct {
	Allowed   bool
	BlockerID uint64
}

// Service owns the block invariant: a block row is never visible without
// its cascading effects (match gone, likes gone, counters refreshed). The
// whole sequence runs in one transaction with rollback on any failure.
type Service struct {
	appCtx    *app.AppContext
	blockRepo *repository.BlockRepository
	likeRepo  *repository.LikeRepository
	matchRepo *repository.MatchRepository
}

// NewService creates a new Block service with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:    appCtx,
		blockRepo: repository.NewBlockRepository(appCtx.DB),
		likeRepo:  repository.NewLikeRepository(appCtx.DB),
		matchRepo: repository.NewMatchRepository(appCtx.DB),
	}
}

// BlockUser creates the block and atomically cleans up the pair's graph
// state.
//
// Within one transaction:
//   - insert the block row (idempotent on duplicate)
//   - remove any canonical match between the pair
//   - remove like rows in both directions
//   - refresh both users' like and match counters
//
// Observers never see a block without its cascade.
func (s *Service) BlockUser(ctx context.Context, blockerID, blockedID uint64) (*Result, error) {
	log := s.appCtx.Logger
	log.Debug("BlockUser called", "blocker", blockerID, "blocked", blockedID)

	if blockerID == blockedID {
		return nil, svcErr.InvalidArgument("cannot block yourself")
	}

	res := &Result{}
	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.blockRepo.WithTx(tx).Create(ctx, blockerID, blockedID); err != nil {
			return err
		}

		matchRepo := s.matchRepo.WithTx(tx)
		matchRemoved, err := matchRepo.Delete(ctx, blockerID, blockedID)
		if err != nil {
			return err
		}
		res.MatchRemoved = matchRemoved

		likeRepo := s.likeRepo.WithTx(tx)
		likesRemoved, err := likeRepo.DeleteBetween(ctx, blockerID, blockedID)
		if err != nil {
			return err
		}
		res.LikesRemoved = likesRemoved > 0

		for _, id := range []uint64{blockerID, blockedID} {
			if _, err := likeRepo.RefreshLikeCount(ctx, id); err != nil {
				return err
			}
			if _, err := matchRepo.RefreshMatchCount(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Error("block transaction failed", "err", err)
		return nil, svcErr.Map(err)
	}

	// drop stale cached counters; next read recomputes from rows
	for _, id := range []uint64{blockerID, blockedID} {
		_ = s.appCtx.RedisCache.Del(ctx, s.appCtx.RedisCache.KeyForLikeCount(id))
		_ = s.appCtx.RedisCache.Del(ctx, s.appCtx.RedisCache.KeyForMatchCount(id))
	}

	log.Info("user blocked", "blocker", blockerID, "blocked", blockedID,
		"match_removed", res.MatchRemoved, "likes_removed", res.LikesRemoved)
	return res, nil
}

// UnblockUser removes the block row only. Likes and matches removed by the
// block stay gone; unblocking is a one-way action.
func (s *Service) UnblockUser(ctx context.Context, blockerID, blockedID uint64) error {
	if blockerID == blockedID {
		return svcErr.InvalidArgument("cannot unblock yourself")
	}
	removed, err := s.blockRepo.Delete(ctx, blockerID, blockedID)
	if err != nil {
		return svcErr.Map(err)
	}
	if !removed {
		return svcErr.NotFound("no block to remove")
	}
	return nil
}

// CanUsersInteract reports whether either direction has a block and which
// side is responsible. Upstream collaborators use it to suppress
// discovery, likes and chat between the pair.
func (s *Service) CanUsersInteract(ctx context.Context, a, b uint64) (*Interaction, error) {
	block, err := s.blockRepo.FindBetween(ctx, a, b)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if block == nil {
		return &Interaction{Allowed: true}, nil
	}
	return &Interaction{Allowed: false, BlockerID: block.BlockerID}, nil
}
