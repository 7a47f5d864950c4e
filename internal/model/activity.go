package model

import "time"

// ActivityType names an account event recorded in the activity trail.
type ActivityType string

const (
	ActivityUserRegistered      ActivityType = "user.registered"
	ActivityUserLogin           ActivityType = "user.login"
	ActivityUserLoginFailed     ActivityType = "user.login_failed"
	ActivityUserPasswordChanged ActivityType = "user.password_changed"
	ActivityUserProfileUpdated  ActivityType = "user.profile_updated"
	ActivityUserUpdated         ActivityType = "user.updated"
	ActivityUserDeleted         ActivityType = "user.deleted"
)

// IsValid reports whether t is a known activity type.
func (t ActivityType) IsValid() bool {
	switch t {
	case ActivityUserRegistered, ActivityUserLogin, ActivityUserLoginFailed,
		ActivityUserPasswordChanged, ActivityUserProfileUpdated,
		ActivityUserUpdated, ActivityUserDeleted:
		return true
	}
	return false
}

// ActivityEvent is a persisted entry of the account activity trail.
type ActivityEvent struct {
	ID         string       `json:"id"`      // ULID
	EventID    string       `json:"eventId"` // stream id, idempotency key
	Type       ActivityType `json:"type"`
	ActorID    string       `json:"actorId,omitempty"`
	SubjectID  string       `json:"subjectId,omitempty"`
	IP         string       `json:"ip,omitempty"`
	Detail     string       `json:"detail,omitempty"`
	OccurredAt time.Time    `json:"occurredAt"`
	CreatedAt  time.Time    `json:"createdAt"`
}
