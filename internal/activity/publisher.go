// Package activity records the account activity trail: request handlers
// publish events to a Redis stream and a background worker persists them.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taskflow/taskflow/internal/metrics"
	"github.com/taskflow/taskflow/internal/model"
)

const (
	// StreamKey is the Redis stream for activity events.
	StreamKey = "stream:activity_events"

	// DeadLetterStreamKey is the Redis stream for poison messages.
	DeadLetterStreamKey = "stream:activity_events:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 100 * time.Millisecond
)

// EventPayload is the compact event format written to the stream.
type EventPayload struct {
	Type       model.ActivityType `json:"t"`
	ActorID    string             `json:"a,omitempty"`
	SubjectID  string             `json:"s,omitempty"`
	IP         string             `json:"ip,omitempty"`
	Detail     string             `json:"d,omitempty"`
	OccurredAt int64              `json:"ts"` // Unix milliseconds
}

// NewEvent builds a payload stamped with the current time.
func NewEvent(t model.ActivityType, actorID, subjectID, ip, detail string) EventPayload {
	return EventPayload{
		Type:       t,
		ActorID:    actorID,
		SubjectID:  subjectID,
		IP:         truncate(ip, maxIPLength),
		Detail:     truncate(detail, maxDetailLength),
		OccurredAt: time.Now().UnixMilli(),
	}
}

// Publisher enqueues activity events to the Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a new activity event publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "activity.publisher"),
		metrics: recorder,
	}
}

// Publish adds an event to the stream synchronously.
func (p *Publisher) Publish(ctx context.Context, event EventPayload) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	id, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}
	return id, nil
}

// PublishAsync publishes without blocking the caller.
// Errors are logged but not returned.
func (p *Publisher) PublishAsync(event EventPayload) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(ctx, event)
		if err != nil {
			p.logger.Warn("failed to publish activity event",
				"type", event.Type,
				"error", err,
			)
			p.metrics.IncActivityEventPublished("dropped")
			return
		}

		p.logger.Debug("activity event published",
			"type", event.Type,
			"stream_id", streamID,
		)
		p.metrics.IncActivityEventPublished("success")
	}()
}

// Discard drops every event. Used when the activity trail is disabled.
type Discard struct{}

func (Discard) PublishAsync(EventPayload) {}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

type clientIPKey struct{}

// WithClientIP stores the caller's IP for events recorded during the request.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIPFromContext returns the IP stored by WithClientIP, or "".
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}
