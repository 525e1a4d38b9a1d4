package streaming

import "context"

// TaskState is the lifecycle state of an asynchronous task.
type TaskState string

const (
	StatePending TaskState = "PENDING"
	StateStarted TaskState = "STARTED"
	StateSuccess TaskState = "SUCCESS"
	StateFailure TaskState = "FAILURE"
)

// Terminal reports whether no further events follow s.
func (s TaskState) Terminal() bool {
	return s == StateSuccess || s == StateFailure
}

// TaskEvent is emitted on every task state change.
type TaskEvent struct {
	TaskID  string    `json:"task_id"`
	Kind    string    `json:"kind,omitempty"`
	State   TaskState `json:"state"`
	Payload any       `json:"payload,omitempty"`
}

// EventFilter specifies which events a subscriber wants to receive.
type EventFilter struct {
	TaskID string      `json:"task_id,omitempty"`
	States []TaskState `json:"states,omitempty"`
}

// EventHub provides pub/sub for task events.
type EventHub interface {
	Publish(ctx context.Context, event TaskEvent) error
	Subscribe(ctx context.Context, filter EventFilter) (<-chan TaskEvent, func(), error)
}
