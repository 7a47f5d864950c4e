package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

var (
	_ Recorder = (*NoopRecorder)(nil)
	_ Recorder = (*InMemoryRecorder)(nil)
	_ Recorder = (*PrometheusRecorder)(nil)
)

func TestInMemoryRecorder_Concurrent(t *testing.T) {
	t.Parallel()

	m := NewInMemory()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncTaskCreated()
			m.IncLogin(LoginSuccess)
			m.IncAuthFailure("expired_token")
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	if snap.TasksCreated != 50 {
		t.Errorf("TasksCreated = %d, want 50", snap.TasksCreated)
	}
	if snap.Logins[LoginSuccess] != 50 {
		t.Errorf("Logins[success] = %d, want 50", snap.Logins[LoginSuccess])
	}
	if snap.AuthFailures["expired_token"] != 50 {
		t.Errorf("AuthFailures[expired_token] = %d", snap.AuthFailures["expired_token"])
	}
}

func TestInMemoryRecorder_SnapshotIsCopy(t *testing.T) {
	t.Parallel()

	m := NewInMemory()
	m.IncLogin(LoginDeactivated)

	snap := m.Snapshot()
	snap.Logins[LoginDeactivated] = 99

	if got := m.Snapshot().Logins[LoginDeactivated]; got != 1 {
		t.Errorf("snapshot mutation leaked: %d", got)
	}
}

func TestPrometheusRecorder_Counters(t *testing.T) {
	t.Parallel()

	p := NewPrometheus()
	p.IncLogin(LoginInvalidCredentials)
	p.IncLogin(LoginInvalidCredentials)
	p.IncTaskDeleted()
	p.ObserveHTTPRequest(http.MethodGet, "/api/v1/tasks", http.StatusOK, 5*time.Millisecond)

	if got := testutil.ToFloat64(p.logins.WithLabelValues(LoginInvalidCredentials)); got != 2 {
		t.Errorf("logins{invalid_credentials} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(p.taskOps.WithLabelValues("delete")); got != 1 {
		t.Errorf("task_operations{delete} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(p.httpRequests.WithLabelValues("GET", "/api/v1/tasks", "200")); got != 1 {
		t.Errorf("http_requests = %v, want 1", got)
	}
}

func TestPrometheusRecorder_Handler(t *testing.T) {
	t.Parallel()

	p := NewPrometheus()
	p.IncUserRegistered()

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "taskflow_users_registered_total 1") {
		t.Error("exposition should include taskflow_users_registered_total")
	}
}
