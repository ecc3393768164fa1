package queue

import (
	"context"
	"errors"
)

// SubjectNotificationCreate is the subject notification-creation jobs are
// published on.
const SubjectNotificationCreate = "notifications.create"

// ErrInvalidPayload marks a job that can never be processed (bad user id,
// unknown type). The consumer dead-letters these instead of retrying, to
// avoid poison-job loops.
var ErrInvalidPayload = errors.New("invalid job payload")

// Job is the notification-creation payload carried by the queue.
// Ids travel as strings on the wire; the worker parses and validates them.
type Job struct {
	JobID    string            `json:"job_id"`
	UserID   string            `json:"user_id"`
	ActorID  *string           `json:"actor_id,omitempty"`
	Type     string            `json:"type"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Producer enqueues notification jobs. Enqueue never blocks on delivery; it
// only guarantees the job is durably queued.
type Producer interface {
	Enqueue(ctx context.Context, job Job) error
}

// Handler processes one dequeued job. The returned error decides the
// verdict: nil acknowledges the job, ErrInvalidPayload dead-letters it, and
// anything else requeues it for a retry with backoff.
type Handler interface {
	Process(ctx context.Context, job Job) error
}
