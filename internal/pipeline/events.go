package pipeline

import (
	"time"

	"git.home.luguber.info/inful/specbuilder/internal/eventstore"
)

// Event is a build event published on the Bus. Payload is one of the
// eventstore payload structs matching Type.
type Event struct {
	Type    string
	BuildID string
	Time    time.Time
	Payload any
}

// Name returns the event type.
func (e Event) Name() string { return e.Type }

// NewEvent stamps an event with the current time.
func NewEvent(buildID, eventType string, payload any) Event {
	return Event{Type: eventType, BuildID: buildID, Time: time.Now(), Payload: payload}
}

// Event names published during a build.
const (
	EventBuildStarted   = eventstore.TypeBuildStarted
	EventHookCompleted  = eventstore.TypeHookCompleted
	EventHookFailed     = eventstore.TypeHookFailed
	EventBuildCompleted = eventstore.TypeBuildCompleted
	EventBuildFailed    = eventstore.TypeBuildFailed
)
