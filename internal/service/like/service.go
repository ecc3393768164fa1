package like

import (
	"context"
	"strconv"

	"github.com/kindling-app/kindling/internal/app"
	"github.com/kindling-app/kindling/internal/db"
	svcErr "github.com/kindling-app/kindling/internal/errors"
	"github.com/kindling-app/kindling/internal/queue"
	"github.com/kindling-app/kindling/internal/repository"

	"github.com/google/uuid"
)

// Result reports the outcome of a like action to the caller.
type Result struct {
	Matched bool
	MatchID string
}

// Service encodes the like/dislike business rules: self-interaction and
// rate-limit checks, the idempotent like upsert, counter recomputation,
// mutual-like detection and the canonical match insert.
//
// The service never assumes it is the only writer. Every insert that
// encodes an invariant goes through an upsert or insert-ignore; the store's
// unique constraints are the final arbiter under races.
type Service struct {
	appCtx    *app.AppContext
	likeRepo  *repository.LikeRepository
	matchRepo *repository.MatchRepository
}

// NewService creates a new Like service with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:    appCtx,
		likeRepo:  repository.NewLikeRepository(appCtx.DB),
		matchRepo: repository.NewMatchRepository(appCtx.DB),
	}
}

// LikeOrDislike records liker's decision on liked and reports whether it
// completed a mutual like.
//
// Behavior:
//   - Rejects self-interaction and rate-limited callers.
//   - Upserts the like row: re-liking updates is_like instead of duplicating.
//   - Recomputes the liked user's denormalized like count.
//   - On a mutual is_like pair, creates the canonical match via
//     insert-or-ignore (idempotent under concurrent double-trigger) and
//     reports matched = true with the surviving match id.
//   - Enqueues MATCH notifications to both parties, or a LIKE notification
//     to the liked user when no match resulted. Dislikes notify nobody.
func (s *Service) LikeOrDislike(ctx context.Context, likerID, likedID uint64, isLike bool) (*Result, error) {
	log := s.appCtx.Logger
	log.Debug("LikeOrDislike called", "liker", likerID, "liked", likedID, "is_like", isLike)

	if likerID == likedID {
		return nil, svcErr.InvalidArgument("cannot like yourself")
	}

	cfg := s.appCtx.Config
	allowed, err := s.appCtx.RedisCache.AllowAction(ctx,
		s.appCtx.RedisCache.KeyForLikeRate(likerID),
		cfg.RateLimit.LikesPerWindow,
		cfg.RateLimit.Window,
	)
	if err != nil {
		// limiter outage must not take likes down with it
		log.Warn("rate limiter unavailable, allowing action", "err", err)
	} else if !allowed {
		return nil, svcErr.RateLimited("like limit reached, try again later")
	}

	if err := s.likeRepo.Upsert(ctx, likerID, likedID, isLike); err != nil {
		log.Error("like upsert failed", "err", err)
		return nil, svcErr.Map(err)
	}

	s.refreshLikeCount(ctx, likedID)

	res := &Result{}
	if !isLike {
		return res, nil
	}

	mutual, err := s.likeRepo.HasLike(ctx, likedID, likerID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if !mutual {
		s.enqueue(ctx, likedID, likerID, db.NotificationTypeLike, nil)
		return res, nil
	}

	match, err := s.matchRepo.Create(ctx, likerID, likedID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	s.refreshMatchCount(ctx, likerID)
	s.refreshMatchCount(ctx, likedID)

	res.Matched = true
	res.MatchID = match.ID

	meta := map[string]string{"match_id": match.ID}
	s.enqueue(ctx, likedID, likerID, db.NotificationTypeMatch, meta)
	s.enqueue(ctx, likerID, likedID, db.NotificationTypeMatch, meta)

	log.Info("mutual like, match created", "match", match.ID, "user1", match.User1ID, "user2", match.User2ID)
	return res, nil
}

// RemoveLike deletes liker's like on liked and refreshes the counter.
//
// Whether an existing match dissolves is a policy decision
// (Match.DissolveOnUnlike); by default matches persist.
func (s *Service) RemoveLike(ctx context.Context, likerID, likedID uint64) error {
	log := s.appCtx.Logger
	log.Debug("RemoveLike called", "liker", likerID, "liked", likedID)

	if likerID == likedID {
		return svcErr.InvalidArgument("cannot unlike yourself")
	}

	removed, err := s.likeRepo.Delete(ctx, likerID, likedID)
	if err != nil {
		return svcErr.Map(err)
	}
	if !removed {
		return svcErr.NotFound("no like to remove")
	}

	s.refreshLikeCount(ctx, likedID)

	if s.appCtx.Config.Match.DissolveOnUnlike {
		dissolved, err := s.matchRepo.Delete(ctx, likerID, likedID)
		if err != nil {
			return svcErr.Map(err)
		}
		if dissolved {
			s.refreshMatchCount(ctx, likerID)
			s.refreshMatchCount(ctx, likedID)
			log.Info("match dissolved on unlike", "liker", likerID, "liked", likedID)
		}
	}

	s.enqueue(ctx, likedID, likerID, db.NotificationTypeUnlike, nil)
	return nil
}

// refreshLikeCount recomputes the row counter and mirrors it into the
// cache. Read-after-write consistency is not required here, so failures
// only log.
func (s *Service) refreshLikeCount(ctx context.Context, userID uint64) {
	count, err := s.likeRepo.RefreshLikeCount(ctx, userID)
	if err != nil {
		s.appCtx.Logger.Warn("like count refresh failed", "user", userID, "err", err)
		return
	}
	key := s.appCtx.RedisCache.KeyForLikeCount(userID)
	_ = s.appCtx.RedisCache.SetCount(ctx, key, count)
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

// enqueue hands a notification job to the durable queue. The actor already
// got their synchronous response; a queue outage is an operator problem,
// not the caller's, so it only logs.
func (s *Service) enqueue(ctx context.Context, userID, actorID uint64, typ string, metadata map[string]string) {
	actor := strconv.FormatUint(actorID, 10)
	job := queue.Job{
		JobID:    uuid.NewString(),
		UserID:   strconv.FormatUint(userID, 10),
		ActorID:  &actor,
		Type:     typ,
		Metadata: metadata,
	}
	if err := s.appCtx.Queue.Enqueue(ctx, job); err != nil {
		s.appCtx.Logger.Error("failed to enqueue notification job", "type", typ, "user", userID, "err", err)
	}
}
