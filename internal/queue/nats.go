package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kindling-app/kindling/internal/config"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const ackWait = 30 * time.Second

// Client wraps a NATS connection with a JetStream context for durable
// publish/consume of notification jobs.
type Client struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	cfg  *config.Config
	log  *slog.Logger
}

// NewClient connects to NATS and prepares the JetStream context.
func NewClient(cfg *config.Config, log *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.Name("kindling-notifications"),
		nats.MaxReconnects(cfg.NATS.MaxReconnects),
		nats.ReconnectWait(cfg.NATS.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info("nats connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.NATS.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}

	return &Client{conn: nc, js: js, cfg: cfg, log: log}, nil
}

func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// EnsureStream creates the notification stream if it does not exist yet.
// WorkQueuePolicy: each job is consumed once by the worker group. The
// duplicate window backs MsgId-based dedup on the producer side.
func (c *Client) EnsureStream() error {
	_, err := c.js.AddStream(&nats.StreamConfig{
		Name:       c.cfg.NATS.StreamName,
		Subjects:   []string{SubjectNotificationCreate},
		Storage:    nats.FileStorage,
		MaxAge:     7 * 24 * time.Hour,
		Retention:  nats.WorkQueuePolicy,
		Duplicates: 2 * time.Minute,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("failed to create stream %s: %w", c.cfg.NATS.StreamName, err)
	}
	return nil
}

// NATSProducer publishes jobs to the JetStream stream.
type NATSProducer struct {
	client *Client
}

// NewProducer returns a Producer backed by the given client.
func NewProducer(client *Client) *NATSProducer {
	return &NATSProducer{client: client}
}

// Enqueue durably publishes the job. The job id doubles as the JetStream
// MsgId, so a caller retrying an enqueue inside the duplicate window does
// not queue the job twice.
func (p *NATSProducer) Enqueue(ctx context.Context, job Job) error {
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	_, err = p.client.js.Publish(SubjectNotificationCreate, payload,
		nats.MsgId(job.JobID),
		nats.Context(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// Consumer runs a fixed-size worker pool over a durable pull subscription.
// Jobs are retried up to MaxAttempts with exponential backoff; exhausted or
// malformed jobs are dead-lettered and surfaced in the logs, never to the
// original caller.
type Consumer struct {
	client  *Client
	handler Handler
	log     *slog.Logger
}

// NewConsumer wires a handler to the notification stream.
func NewConsumer(client *Client, handler Handler) *Consumer {
	return &Consumer{client: client, handler: handler, log: client.log}
}

// Start creates the durable subscription and launches the worker pool.
// Workers stop when ctx is canceled.
func (c *Consumer) Start(ctx context.Context) error {
	cfg := c.client.cfg
	sub, err := c.client.js.PullSubscribe(
		SubjectNotificationCreate,
		cfg.NATS.DurableName,
		nats.AckExplicit(),
		nats.AckWait(ackWait),
		nats.MaxDeliver(cfg.NATS.MaxAttempts),
		nats.BackOff(backoffs(cfg.NATS.BackoffBase, cfg.NATS.MaxAttempts)),
	)
	if err != nil {
		return fmt.Errorf("failed to create durable subscription: %w", err)
	}

	for i := 0; i < cfg.NATS.Workers; i++ {
		go c.run(ctx, sub, i)
	}

	c.log.Info("notification consumer started",
		"workers", cfg.NATS.Workers,
		"durable", cfg.NATS.DurableName,
		"max_attempts", cfg.NATS.MaxAttempts,
	)
	return nil
}

func (c *Consumer) run(ctx context.Context, sub *nats.Subscription, worker int) {
	for ctx.Err() == nil {
		msgs, err := sub.Fetch(1, nats.MaxWait(5*time.Second))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			c.log.Error("fetch failed", "worker", worker, "err", err)
			time.Sleep(time.Second)
			continue
		}
		for _, msg := range msgs {
			c.dispatch(ctx, msg)
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, msg *nats.Msg) {
	var job Job
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		c.log.Error("dead-lettering malformed job", "err", err)
		_ = msg.Term()
		return
	}

	err := c.handler.Process(ctx, job)
	switch {
	case err == nil:
		_ = msg.Ack()
	case errors.Is(err, ErrInvalidPayload):
		c.log.Error("dead-lettering invalid job", "job_id", job.JobID, "err", err)
		_ = msg.Term()
	default:
		if md, mderr := msg.Metadata(); mderr == nil && md.NumDelivered >= uint64(c.client.cfg.NATS.MaxAttempts) {
			// last attempt; JetStream stops redelivering after this Nak
			c.log.Error("job exhausted retries", "job_id", job.JobID, "attempts", md.NumDelivered, "err", err)
		} else {
			c.log.Warn("job failed, will retry", "job_id", job.JobID, "err", err)
		}
		_ = msg.Nak()
	}
}

// backoffs builds the exponential redelivery delays: base, 2*base, 4*base...
// JetStream requires the list to be shorter than MaxDeliver.
func backoffs(base time.Duration, maxAttempts int) []time.Duration {
	if maxAttempts < 2 {
		maxAttempts = 2
	}
	out := make([]time.Duration, 0, maxAttempts-1)
	d := base
	for i := 0; i < maxAttempts-1; i++ {
		out = append(out, d)
		d *= 2
	}
	return out
}
