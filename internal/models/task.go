package models

import (
	"errors"
	"fmt"
)

// TaskType tags the kind of radio operation a task performs.
type TaskType string

// const ...
const (
	TaskTypeDelay          TaskType = "delay"
	TaskTypeNukeRadioStack TaskType = "nuke_radio_stack"
	TaskTypeTurnRadioOff   TaskType = "turn_radio_off"
	TaskTypeTurnRadioOn    TaskType = "turn_radio_on"
	TaskTypeRead           TaskType = "read"
	TaskTypeWrite          TaskType = "write"
	TaskTypeConnect        TaskType = "connect"
	TaskTypeDisconnect     TaskType = "disconnect"
	TaskTypeScan           TaskType = "scan"
)

// TaskState represents the life cycle position of a task.
type TaskState int

// const ...
const (
	TaskStateCreated TaskState = iota
	TaskStateQueued
	TaskStateExecuting

	// ending states
	TaskStateSucceeded
	TaskStateTimedOut
	TaskStateCancelled
	TaskStateFailed
	TaskStateClearedFromQueue
	TaskStateFailedImmediately
)

var taskStateNames = [...]string{
	TaskStateCreated:           "created",
	TaskStateQueued:            "queued",
	TaskStateExecuting:         "executing",
	TaskStateSucceeded:         "succeeded",
	TaskStateTimedOut:          "timed_out",
	TaskStateCancelled:         "cancelled",
	TaskStateFailed:            "failed",
	TaskStateClearedFromQueue:  "cleared_from_queue",
	TaskStateFailedImmediately: "failed_immediately",
}

func (s TaskState) String() string {
	if s < 0 || int(s) >= len(taskStateNames) {
		return "unknown"
	}
	return taskStateNames[s]
}

// ParseTaskState is the inverse of TaskState.String.
func ParseTaskState(name string) (TaskState, error) {
	for i, n := range taskStateNames {
		if n == name {
			return TaskState(i), nil
		}
	}
	return 0, fmt.Errorf("unknown task state %q", name)
}

// IsEnding reports whether the state is terminal.
func (s TaskState) IsEnding() bool {
	return s > TaskStateExecuting
}

// IsFailure reports whether the state is a terminal state other than success.
func (s TaskState) IsFailure() bool {
	return s.IsEnding() && s != TaskStateSucceeded
}

// ErrInvalidPriority is returned when a priority name can't be parsed.
var ErrInvalidPriority = errors.New("invalid priority")
