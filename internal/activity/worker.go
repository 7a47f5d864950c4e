package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/taskflow/taskflow/internal/metrics"
	"github.com/taskflow/taskflow/internal/model"
)

// ConsumerGroup is the Redis consumer group shared by all API replicas.
const ConsumerGroup = "activity_workers"

// Worker defaults.
const (
	DefaultBatchSize   = 200
	DefaultBlock       = 5 * time.Second
	DefaultMaxAttempts = 3
	DefaultBackoff     = time.Second
	DefaultClaimEvery  = 10 * time.Second
	DefaultClaimIdle   = 30 * time.Second

	deadLetterMaxLen = 10000
)

// Repository persists activity events.
type Repository interface {
	InsertActivityEvents(ctx context.Context, events []*model.ActivityEvent) error
}

// WorkerConfig tunes the stream consumer. Zero values take the defaults.
type WorkerConfig struct {
	// Consumer names this process inside the group. Defaults to host-pid.
	Consumer string

	BatchSize   int
	Block       time.Duration
	MaxAttempts int
	// Backoff is the first retry delay; each further retry doubles it.
	Backoff time.Duration

	// ClaimEvery is how often to take over entries another consumer left
	// unacknowledged for ClaimIdle. Negative disables reclaiming.
	ClaimEvery time.Duration
	ClaimIdle  time.Duration
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.Consumer == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "taskflow"
		}
		c.Consumer = fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Block <= 0 {
		c.Block = DefaultBlock
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.Backoff <= 0 {
		c.Backoff = DefaultBackoff
	}
	if c.ClaimEvery == 0 {
		c.ClaimEvery = DefaultClaimEvery
	}
	if c.ClaimIdle <= 0 {
		c.ClaimIdle = DefaultClaimIdle
	}
	return c
}

// Worker drains the activity stream into the repository.
type Worker struct {
	rdb   *redis.Client
	store Repository
	log   *slog.Logger
	rec   metrics.Recorder
	cfg   WorkerConfig

	claimCursor string
	nextClaim   time.Time

	mu      sync.Mutex
	used    bool
	stop    context.CancelFunc
	stopped chan struct{}
}

// NewWorker creates a worker reading StreamKey as part of ConsumerGroup.
func NewWorker(client *redis.Client, repo Repository, logger *slog.Logger, recorder metrics.Recorder, cfg WorkerConfig) *Worker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	cfg = cfg.withDefaults()
	return &Worker{
		rdb:         client,
		store:       repo,
		log:         logger.With("component", "activity.worker", "consumer", cfg.Consumer),
		rec:         recorder,
		cfg:         cfg,
		claimCursor: "0-0",
	}
}

// Run consumes the stream until ctx is cancelled or Shutdown is called.
// A worker runs at most once.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.used {
		w.mu.Unlock()
		return errors.New("activity worker already started")
	}
	w.used = true
	w.stopped = make(chan struct{})
	ctx, w.stop = context.WithCancel(ctx)
	w.mu.Unlock()

	defer close(w.stopped)

	if err := w.ensureConsumerGroup(ctx); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}
	w.log.Info("activity worker started")

	for ctx.Err() == nil {
		err := w.processOnce(ctx)
		if err == nil || ctx.Err() != nil {
			continue
		}
		w.log.Error("activity batch failed", "error", err)
		sleep(ctx, time.Second)
	}

	w.log.Info("activity worker stopped")
	return nil
}

// Shutdown cancels Run and waits for it to return. It matches
// server.ShutdownFunc.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	stop, stopped := w.stop, w.stopped
	w.mu.Unlock()
	if stop == nil {
		return nil
	}

	stop()
	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		w.log.Warn("activity worker did not stop in time")
		return ctx.Err()
	}
}

func (w *Worker) ensureConsumerGroup(ctx context.Context) error {
	err := w.rdb.XGroupCreateMkStream(ctx, StreamKey, ConsumerGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// processOnce handles one batch: reclaimed entries first, otherwise new
// ones. Entries are acked only once their events are stored or
// dead-lettered.
func (w *Worker) processOnce(ctx context.Context) error {
	msgs := w.reclaim(ctx)
	if len(msgs) == 0 {
		var err error
		if msgs, err = w.read(ctx); err != nil {
			return err
		}
	}
	if len(msgs) == 0 {
		return nil
	}

	ids := make([]string, 0, len(msgs))
	events := make([]*model.ActivityEvent, 0, len(msgs))
	received := time.Now().UTC()
	for _, msg := range msgs {
		ids = append(ids, msg.ID)
		payload, reason, err := decodeMessage(msg)
		if err != nil {
			w.deadLetter(ctx, msg, reason, err)
			continue
		}
		events = append(events, payload.toEvent(msg.ID, received))
	}

	if len(events) > 0 {
		if err := w.persist(ctx, events); err != nil {
			// Unacked entries are picked up again by reclaim.
			return err
		}
	}
	return w.ack(ctx, ids)
}

func (w *Worker) reclaim(ctx context.Context) []redis.XMessage {
	if w.cfg.ClaimEvery < 0 || time.Now().Before(w.nextClaim) {
		return nil
	}
	w.nextClaim = time.Now().Add(w.cfg.ClaimEvery)

	msgs, cursor, err := w.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   StreamKey,
		Group:    ConsumerGroup,
		Consumer: w.cfg.Consumer,
		MinIdle:  w.cfg.ClaimIdle,
		Start:    w.claimCursor,
		Count:    int64(w.cfg.BatchSize),
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		w.log.Warn("reclaim pending entries", "error", err)
		return nil
	}
	if cursor != "" {
		w.claimCursor = cursor
	}
	return msgs
}

func (w *Worker) read(ctx context.Context) ([]redis.XMessage, error) {
	streams, err := w.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: w.cfg.Consumer,
		Streams:  []string{StreamKey, ">"},
		Count:    int64(w.cfg.BatchSize),
		Block:    w.cfg.Block,
	}).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("xreadgroup: %w", err)
	case len(streams) == 0:
		return nil, nil
	}
	return streams[0].Messages, nil
}

// decodeMessage extracts and checks the payload of a stream entry. On
// failure it also returns the dead-letter reason.
func decodeMessage(msg redis.XMessage) (EventPayload, string, error) {
	var payload EventPayload

	raw, ok := msg.Values["payload"].(string)
	if !ok {
		return payload, "invalid_format", errors.New("payload field missing or not a string")
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return payload, "unmarshal_error", err
	}
	if err := ValidateEventPayload(payload); err != nil {
		return payload, "validation_error", err
	}
	return payload, "", nil
}

func (p EventPayload) toEvent(streamID string, received time.Time) *model.ActivityEvent {
	return &model.ActivityEvent{
		ID:         ulid.Make().String(),
		EventID:    streamID,
		Type:       p.Type,
		ActorID:    p.ActorID,
		SubjectID:  p.SubjectID,
		IP:         p.IP,
		Detail:     p.Detail,
		OccurredAt: time.UnixMilli(p.OccurredAt).UTC(),
		CreatedAt:  received,
	}
}

func (w *Worker) deadLetter(ctx context.Context, msg redis.XMessage, reason string, cause error) {
	w.log.Warn("dead-lettering activity entry", "message_id", msg.ID, "reason", reason, "error", cause)
	w.rec.IncActivityEventProcessed("skipped")

	err := w.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: DeadLetterStreamKey,
		MaxLen: deadLetterMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"original_id":      msg.ID,
			"reason":           reason,
			"detail":           cause.Error(),
			"payload":          fmt.Sprint(msg.Values["payload"]),
			"dead_lettered_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		w.log.Error("write dead-letter entry", "message_id", msg.ID, "error", err)
	}
}

// persist inserts the batch, retrying with a doubling backoff.
func (w *Worker) persist(ctx context.Context, events []*model.ActivityEvent) error {
	delay := w.cfg.Backoff
	var err error
	for attempt := 1; attempt <= w.cfg.MaxAttempts; attempt++ {
		start := time.Now()
		if err = w.store.InsertActivityEvents(ctx, events); err == nil {
			w.rec.ObserveActivityBatchSize(len(events))
			w.rec.ObserveActivityBatchDuration(time.Since(start))
			w.countProcessed("success", len(events))
			w.log.Debug("activity batch stored", "events", len(events))
			return nil
		}
		if attempt == w.cfg.MaxAttempts {
			break
		}
		w.log.Warn("activity batch insert failed, retrying", "attempt", attempt, "backoff", delay, "error", err)
		if !sleep(ctx, delay) {
			return ctx.Err()
		}
		delay *= 2
	}

	w.countProcessed("failed", len(events))
	return fmt.Errorf("insert activity events after %d attempts: %w", w.cfg.MaxAttempts, err)
}

func (w *Worker) countProcessed(status string, n int) {
	for i := 0; i < n; i++ {
		w.rec.IncActivityEventProcessed(status)
	}
}

func (w *Worker) ack(ctx context.Context, ids []string) error {
	if err := w.rdb.XAck(ctx, StreamKey, ConsumerGroup, ids...).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}

// sleep waits for d or until ctx is done. It reports whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
