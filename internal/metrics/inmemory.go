package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	HTTPRequests       uint64
	UsersRegistered    uint64
	Logins             map[string]uint64
	AuthFailures       map[string]uint64
	RateLimited        uint64
	TasksCreated       uint64
	TasksUpdated       uint64
	TasksDeleted       uint64
	UsersDeleted       uint64
	ActivityPublished  map[string]uint64
	ActivityProcessed  map[string]uint64
	ActivityBatchCount uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	httpRequests       uint64
	usersRegistered    uint64
	rateLimited        uint64
	tasksCreated       uint64
	tasksUpdated       uint64
	tasksDeleted       uint64
	usersDeleted       uint64
	activityBatchCount uint64

	mu                sync.Mutex
	logins            map[string]uint64
	authFailures      map[string]uint64
	activityPublished map[string]uint64
	activityProcessed map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		logins:            make(map[string]uint64),
		authFailures:      make(map[string]uint64),
		activityPublished: make(map[string]uint64),
		activityProcessed: make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		HTTPRequests:       atomic.LoadUint64(&m.httpRequests),
		UsersRegistered:    atomic.LoadUint64(&m.usersRegistered),
		Logins:             copyCounts(m.logins),
		AuthFailures:       copyCounts(m.authFailures),
		RateLimited:        atomic.LoadUint64(&m.rateLimited),
		TasksCreated:       atomic.LoadUint64(&m.tasksCreated),
		TasksUpdated:       atomic.LoadUint64(&m.tasksUpdated),
		TasksDeleted:       atomic.LoadUint64(&m.tasksDeleted),
		UsersDeleted:       atomic.LoadUint64(&m.usersDeleted),
		ActivityPublished:  copyCounts(m.activityPublished),
		ActivityProcessed:  copyCounts(m.activityProcessed),
		ActivityBatchCount: atomic.LoadUint64(&m.activityBatchCount),
	}
}

func (m *InMemoryRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	atomic.AddUint64(&m.httpRequests, 1)
}

func (m *InMemoryRecorder) IncUserRegistered() { atomic.AddUint64(&m.usersRegistered, 1) }
func (m *InMemoryRecorder) IncRateLimited()    { atomic.AddUint64(&m.rateLimited, 1) }
func (m *InMemoryRecorder) IncTaskCreated()    { atomic.AddUint64(&m.tasksCreated, 1) }
func (m *InMemoryRecorder) IncTaskUpdated()    { atomic.AddUint64(&m.tasksUpdated, 1) }
func (m *InMemoryRecorder) IncTaskDeleted()    { atomic.AddUint64(&m.tasksDeleted, 1) }
func (m *InMemoryRecorder) IncUserDeleted()    { atomic.AddUint64(&m.usersDeleted, 1) }

func (m *InMemoryRecorder) IncLogin(outcome string)      { m.inc(m.logins, outcome) }
func (m *InMemoryRecorder) IncAuthFailure(reason string) { m.inc(m.authFailures, reason) }

func (m *InMemoryRecorder) IncActivityEventPublished(status string) {
	m.inc(m.activityPublished, status)
}

func (m *InMemoryRecorder) IncActivityEventProcessed(status string) {
	m.inc(m.activityProcessed, status)
}

func (m *InMemoryRecorder) ObserveActivityBatchSize(size int) {
	atomic.AddUint64(&m.activityBatchCount, 1)
}

func (m *InMemoryRecorder) ObserveActivityBatchDuration(duration time.Duration) {}

func (m *InMemoryRecorder) inc(counts map[string]uint64, label string) {
	m.mu.Lock()
	counts[label]++
	m.mu.Unlock()
}

func copyCounts(in map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
