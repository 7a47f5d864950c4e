package activity

import (
	"fmt"

	"github.com/oklog/ulid/v2"
)

const (
	maxIPLength     = 64
	maxDetailLength = 200
)

// ValidateEventPayload checks a payload read back from the stream.
func ValidateEventPayload(p EventPayload) error {
	if !p.Type.IsValid() {
		return fmt.Errorf("unknown event type %q", p.Type)
	}
	if p.OccurredAt <= 0 {
		return fmt.Errorf("occurred_at must be set")
	}
	if p.ActorID != "" && !isULID(p.ActorID) {
		return fmt.Errorf("actor_id is not a ULID")
	}
	if p.SubjectID != "" && !isULID(p.SubjectID) {
		return fmt.Errorf("subject_id is not a ULID")
	}
	if len(p.IP) > maxIPLength {
		return fmt.Errorf("ip too long")
	}
	if len(p.Detail) > maxDetailLength {
		return fmt.Errorf("detail too long")
	}
	return nil
}

func isULID(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
