package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {}
func (n *NoopRecorder) IncUserRegistered()                                                          {}
func (n *NoopRecorder) IncLogin(outcome string)                                                     {}
func (n *NoopRecorder) IncAuthFailure(reason string)                                                {}
func (n *NoopRecorder) IncRateLimited()                                                             {}
func (n *NoopRecorder) IncTaskCreated()                                                             {}
func (n *NoopRecorder) IncTaskUpdated()                                                             {}
func (n *NoopRecorder) IncTaskDeleted()                                                             {}
func (n *NoopRecorder) IncUserDeleted()                                                             {}
func (n *NoopRecorder) IncActivityEventPublished(status string)                                     {}
func (n *NoopRecorder) IncActivityEventProcessed(status string)                                     {}
func (n *NoopRecorder) ObserveActivityBatchSize(size int)                                           {}
func (n *NoopRecorder) ObserveActivityBatchDuration(duration time.Duration)                         {}
