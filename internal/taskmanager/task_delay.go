package taskmanager

import (
	"time"

	"radioqueue/internal/models"
)

// DelayTask holds the radio for a fixed duration. It runs at CRITICAL so the
// pause it puts around radio life cycle events can't be starved.
type DelayTask struct {
	Base
	delay   time.Duration
	elapsed time.Duration
	started bool
}

// Type ...
func (t *DelayTask) Type() models.TaskType { return models.TaskTypeDelay }

// Priority ...
func (t *DelayTask) Priority() models.Priority { return models.PriorityCritical }

// Execute resets the elapsed counter.
func (t *DelayTask) Execute() {
	t.elapsed = 0
	t.started = true
}

// Update succeeds on the first step where the accumulated time reaches the delay.
func (t *DelayTask) Update(timeStep time.Duration) {
	if !t.started {
		return
	}
	t.elapsed += timeStep
	if t.elapsed >= t.delay {
		t.Succeed()
	}
}

// Delay returns the configured duration.
func (t *DelayTask) Delay() time.Duration { return t.delay }

// NewDelayTask ...
func NewDelayTask(delay time.Duration, listener StateListener) *DelayTask {
	t := &DelayTask{delay: delay}
	t.Init(listener)
	return t
}
