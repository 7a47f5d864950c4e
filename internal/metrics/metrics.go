// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Login outcomes recorded by IncLogin.
const (
	LoginSuccess            = "success"
	LoginInvalidCredentials = "invalid_credentials"
	LoginDeactivated        = "deactivated"
)

// Recorder captures metric events for the application.
type Recorder interface {
	// HTTP
	ObserveHTTPRequest(method, route string, status int, duration time.Duration)

	// Authentication
	IncUserRegistered()
	IncLogin(outcome string)
	IncAuthFailure(reason string) // gate rejections: no_token, invalid_token, expired_token, ...
	IncRateLimited()

	// Resources
	IncTaskCreated()
	IncTaskUpdated()
	IncTaskDeleted()
	IncUserDeleted()

	// Activity pipeline
	IncActivityEventPublished(status string) // "success" or "dropped"
	IncActivityEventProcessed(status string) // "success", "failed", "skipped"
	ObserveActivityBatchSize(size int)
	ObserveActivityBatchDuration(duration time.Duration)
}
