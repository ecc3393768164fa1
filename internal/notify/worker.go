package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/kindling-app/kindling/internal/app"
	"github.com/kindling-app/kindling/internal/channel"
	"github.com/kindling-app/kindling/internal/db"
	"github.com/kindling-app/kindling/internal/queue"
	"github.com/kindling-app/kindling/internal/repository"

	"github.com/google/uuid"
)

// Worker consumes notification-creation jobs: validate, persist a row,
// best-effort push to the recipient's topic.
//
// Failure policy per job:
//   - invalid payload -> queue.ErrInvalidPayload (dead-letter, no retry)
//   - store unavailable -> plain error (queue retries with backoff)
//   - publish failure -> row marked failed, job still succeeds; the
//     notification stays retrievable by the REST collaborator
type Worker struct {
	appCtx *app.AppContext
	repo   *repository.NotificationRepository
}

// NewWorker creates a worker with dependencies from AppContext.
func NewWorker(appCtx *app.AppContext) *Worker {
	return &Worker{
		appCtx: appCtx,
		repo:   repository.NewNotificationRepository(appCtx.DB),
	}
}

// Process handles one dequeued job. Safe under at-least-once redelivery:
// the job id is the row's idempotency key, so a redelivered job finds the
// existing row instead of creating a second one.
func (w *Worker) Process(ctx context.Context, job queue.Job) error {
	log := w.appCtx.Logger

	userID, actorID, err := w.validate(job)
	if err != nil {
		return err
	}

	metadata := ""
	if len(job.Metadata) > 0 {
		raw, merr := json.Marshal(job.Metadata)
		if merr != nil {
			return fmt.Errorf("%w: unencodable metadata", queue.ErrInvalidPayload)
		}
		metadata = string(raw)
	}

	row := &db.Notification{
		ID:       uuid.NewString(),
		JobID:    job.JobID,
		UserID:   userID,
		ActorID:  actorID,
		Type:     job.Type,
		Status:   db.NotificationStatusPending,
		Metadata: metadata,
	}

	n, created, err := w.repo.CreateIfAbsent(ctx, row)
	if err != nil {
		return fmt.Errorf("failed to persist notification: %w", err)
	}
	if created {
		_ = w.appCtx.RedisCache.Del(ctx, w.appCtx.RedisCache.KeyForUnreadCount(n.UserID))
	} else {
		log.Debug("duplicate job, reusing existing row", "job_id", job.JobID, "notification", n.ID)
		if n.Status == db.NotificationStatusSent {
			// previous attempt already pushed this one
			return nil
		}
	}

	// Best-effort push. No connected sessions is a valid no-op; only an
	// unreachable channel counts as a publish failure, and even that does
	// not fail the job: the row is durable and pollable.
	if err := w.appCtx.Channel.Publish(ctx, n.UserID, channel.EventNotification, DTOFromRow(n)); err != nil {
		log.Warn("push failed, notification remains pollable", "notification", n.ID, "err", err)
		if serr := w.repo.MarkStatus(ctx, n.ID, db.NotificationStatusFailed); serr != nil {
			return fmt.Errorf("failed to mark notification failed: %w", serr)
		}
		return nil
	}

	if err := w.repo.MarkStatus(ctx, n.ID, db.NotificationStatusSent); err != nil {
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}

	log.Debug("notification delivered to channel", "notification", n.ID, "user", n.UserID, "type", n.Type)
	return nil
}

// validate parses the wire ids and checks the type enum. Anything wrong
// here can never succeed on retry.
func (w *Worker) validate(job queue.Job) (uint64, *uint64, error) {
	if job.JobID == "" {
		return 0, nil, fmt.Errorf("%w: missing job_id", queue.ErrInvalidPayload)
	}
	if job.UserID == "" {
		return 0, nil, fmt.Errorf("%w: missing user_id", queue.ErrInvalidPayload)
	}
	userID, err := strconv.ParseUint(job.UserID, 10, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: user_id %q is not a valid uint64", queue.ErrInvalidPayload, job.UserID)
	}
	if !db.ValidNotificationType(job.Type) {
		return 0, nil, fmt.Errorf("%w: unknown type %q", queue.ErrInvalidPayload, job.Type)
	}

	var actorID *uint64
	if job.ActorID != nil && *job.ActorID != "" {
		id, err := strconv.ParseUint(*job.ActorID, 10, 64)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: actor_id %q is not a valid uint64", queue.ErrInvalidPayload, *job.ActorID)
		}
		actorID = &id
	}
	return userID, actorID, nil
}
