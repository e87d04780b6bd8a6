package identity

import (
	"context"
	"time"
)

// ActivityEventType enumerates seed activity categories.
type ActivityEventType string

const (
	ActivityEventRoleCreated   ActivityEventType = "identity.role.created"
	ActivityEventRoleExists    ActivityEventType = "identity.role.exists"
	ActivityEventUserCreated   ActivityEventType = "identity.user.created"
	ActivityEventUserExists    ActivityEventType = "identity.user.exists"
	ActivityEventSeedCompleted ActivityEventType = "identity.seed.completed"
	ActivityEventSeedFailed    ActivityEventType = "identity.seed.failed"
)

// Entity kinds reported in activity events.
const (
	ActivityEntityRole = "role"
	ActivityEntityUser = "user"
	ActivityEntitySeed = "seed"
)

// ActivityEvent captures what the seeder did to a single entity.
type ActivityEvent struct {
	EventType  ActivityEventType
	Entity     string
	Name       string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
