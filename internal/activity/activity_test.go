package activity

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskflow/taskflow/internal/metrics"
	"github.com/taskflow/taskflow/internal/model"
)

type fakeRepo struct {
	mu       sync.Mutex
	failures int
	events   []*model.ActivityEvent
	calls    int
}

func (r *fakeRepo) InsertActivityEvents(_ context.Context, events []*model.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failures != 0 {
		if r.failures > 0 {
			r.failures--
		}
		return errors.New("database unavailable")
	}
	r.events = append(r.events, events...)
	return nil
}

func newTestEnv(t *testing.T, repo Repository) (*redis.Client, *Publisher, *Worker, *metrics.InMemoryRecorder) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := metrics.NewInMemory()

	w := NewWorker(client, repo, logger, rec, WorkerConfig{
		Consumer:   "test-consumer",
		Block:      20 * time.Millisecond,
		Backoff:    time.Millisecond,
		ClaimEvery: -1,
	})
	require.NoError(t, w.ensureConsumerGroup(context.Background()))

	return client, NewPublisher(client, logger, rec), w, rec
}

func TestWorker_PersistsAndAcks(t *testing.T) {
	repo := &fakeRepo{}
	client, pub, w, rec := newTestEnv(t, repo)
	ctx := context.Background()

	subject := ulid.Make().String()
	streamID, err := pub.Publish(ctx, NewEvent(model.ActivityUserLogin, "", subject, "203.0.113.7", ""))
	require.NoError(t, err)

	require.NoError(t, w.processOnce(ctx))

	require.Len(t, repo.events, 1)
	got := repo.events[0]
	assert.Equal(t, streamID, got.EventID)
	assert.Equal(t, model.ActivityUserLogin, got.Type)
	assert.Equal(t, subject, got.SubjectID)
	assert.Equal(t, "203.0.113.7", got.IP)

	pending, err := client.XPending(ctx, StreamKey, ConsumerGroup).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)
	assert.Equal(t, uint64(1), rec.Snapshot().ActivityProcessed["success"])
}

func TestWorker_DeadLettersPoisonMessages(t *testing.T) {
	repo := &fakeRepo{}
	client, pub, w, _ := newTestEnv(t, repo)
	ctx := context.Background()

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey, Values: map[string]interface{}{"payload": "{not json"},
	}).Err())
	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey, Values: map[string]interface{}{"other": "field"},
	}).Err())
	bad, _ := json.Marshal(EventPayload{Type: "user.hacked", OccurredAt: time.Now().UnixMilli()})
	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey, Values: map[string]interface{}{"payload": string(bad)},
	}).Err())
	_, err := pub.Publish(ctx, NewEvent(model.ActivityUserRegistered, "", ulid.Make().String(), "", ""))
	require.NoError(t, err)

	require.NoError(t, w.processOnce(ctx))

	assert.Len(t, repo.events, 1)
	dlq, err := client.XLen(ctx, DeadLetterStreamKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(3), dlq)

	pending, err := client.XPending(ctx, StreamKey, ConsumerGroup).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)
}

func TestWorker_RetriesTransientFailures(t *testing.T) {
	repo := &fakeRepo{failures: 2}
	_, pub, w, _ := newTestEnv(t, repo)
	ctx := context.Background()

	_, err := pub.Publish(ctx, NewEvent(model.ActivityUserDeleted, ulid.Make().String(), ulid.Make().String(), "", ""))
	require.NoError(t, err)

	require.NoError(t, w.processOnce(ctx))
	assert.Equal(t, 3, repo.calls)
	assert.Len(t, repo.events, 1)
}

func TestWorker_LeavesMessagesPendingAfterRetries(t *testing.T) {
	repo := &fakeRepo{failures: -1}
	client, pub, w, rec := newTestEnv(t, repo)
	ctx := context.Background()

	_, err := pub.Publish(ctx, NewEvent(model.ActivityUserUpdated, "", ulid.Make().String(), "", ""))
	require.NoError(t, err)

	assert.Error(t, w.processOnce(ctx))
	assert.Equal(t, DefaultMaxAttempts, repo.calls)

	pending, err := client.XPending(ctx, StreamKey, ConsumerGroup).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending.Count)
	assert.Equal(t, uint64(1), rec.Snapshot().ActivityProcessed["failed"])
}

func TestWorker_RunAndShutdown(t *testing.T) {
	repo := &fakeRepo{}
	_, _, w, _ := newTestEnv(t, repo)

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(context.Background()) }()

	// Give Run a moment to mark itself started.
	time.Sleep(30 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, w.Shutdown(ctx))

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Shutdown")
	}

	assert.Error(t, w.Run(context.Background()), "a worker cannot be restarted")
}

func TestValidateEventPayload(t *testing.T) {
	t.Parallel()

	id := ulid.Make().String()
	now := time.Now().UnixMilli()

	tests := []struct {
		name    string
		payload EventPayload
		wantErr bool
	}{
		{"valid", EventPayload{Type: model.ActivityUserLogin, SubjectID: id, OccurredAt: now}, false},
		{"anonymous failure", EventPayload{Type: model.ActivityUserLoginFailed, Detail: "alice@x.com", OccurredAt: now}, false},
		{"unknown type", EventPayload{Type: "user.exploded", OccurredAt: now}, true},
		{"missing time", EventPayload{Type: model.ActivityUserLogin}, true},
		{"bad actor", EventPayload{Type: model.ActivityUserUpdated, ActorID: "not-a-ulid", OccurredAt: now}, true},
		{"bad subject", EventPayload{Type: model.ActivityUserUpdated, SubjectID: "42", OccurredAt: now}, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateEventPayload(tt.payload)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEventPayload() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewEvent_Truncates(t *testing.T) {
	t.Parallel()

	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	e := NewEvent(model.ActivityUserLoginFailed, "", "", string(long), string(long))

	assert.Len(t, e.IP, maxIPLength)
	assert.Len(t, e.Detail, maxDetailLength)
	assert.Positive(t, e.OccurredAt)
}

func TestWorkerConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg := WorkerConfig{ClaimEvery: -1}.withDefaults()
	assert.NotEmpty(t, cfg.Consumer)
	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
	assert.Equal(t, DefaultMaxAttempts, cfg.MaxAttempts)
	assert.Equal(t, time.Duration(-1), cfg.ClaimEvery, "negative ClaimEvery keeps reclaiming disabled")

	cfg = WorkerConfig{Consumer: "api-1", BatchSize: 50}.withDefaults()
	assert.Equal(t, "api-1", cfg.Consumer)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, DefaultClaimEvery, cfg.ClaimEvery)
}
