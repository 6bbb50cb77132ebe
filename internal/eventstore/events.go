package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
)

// Event types recorded for every build.
const (
	TypeBuildStarted   = "BuildStarted"
	TypeHookCompleted  = "HookCompleted"
	TypeHookFailed     = "HookFailed"
	TypeBuildCompleted = "BuildCompleted"
	TypeBuildFailed    = "BuildFailed"
)

// BuildStarted is recorded once registration succeeded.
type BuildStarted struct {
	Input   string   `json:"input,omitempty"`
	Output  string   `json:"output"`
	Plugins []string `json:"plugins"`
}

// HookCompleted is recorded after a hook returned without error.
type HookCompleted struct {
	Plugin     string `json:"plugin"`
	Hook       string `json:"hook"`
	DurationMS int64  `json:"duration_ms"`
	Files      int    `json:"files"`
}

// HookFailed is recorded when a hook returned an error or panicked.
type HookFailed struct {
	Plugin     string `json:"plugin"`
	Hook       string `json:"hook"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error"`
}

// BuildCompleted is recorded when every phase succeeded.
type BuildCompleted struct {
	Status     string `json:"status"`
	Files      int    `json:"files"`
	Written    int    `json:"written"`
	DurationMS int64  `json:"duration_ms"`
}

// BuildFailed is recorded when a build ends in error.
type BuildFailed struct {
	Status     string `json:"status"`
	Plugin     string `json:"plugin,omitempty"`
	Hook       string `json:"hook,omitempty"`
	Error      string `json:"error"`
	Files      int    `json:"files"`
	DurationMS int64  `json:"duration_ms"`
}

// Record marshals payload and appends it to store as eventType.
func Record(ctx context.Context, store Appender, buildID, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMarshalPayloadFailed, eventType, err)
	}
	return store.Append(ctx, buildID, eventType, data, nil)
}
