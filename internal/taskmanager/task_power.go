package taskmanager

import (
	"context"
	"time"

	"radioqueue/internal/models"
	"radioqueue/internal/radio"
)

// PowerTask turns the radio on or off.
type PowerTask struct {
	Base
	power   radio.PowerController
	timeout time.Duration
	on      bool
}

// Type ...
func (t *PowerTask) Type() models.TaskType {
	if t.on {
		return models.TaskTypeTurnRadioOn
	}
	return models.TaskTypeTurnRadioOff
}

// Priority ...
func (t *PowerTask) Priority() models.Priority { return models.PriorityCritical }

// Execute issues the power change and ends the task when the binding answers.
func (t *PowerTask) Execute() {
	ctx, cancel := withOptionalTimeout(t.Context(), t.timeout)
	go func() {
		defer cancel()
		t.Finish(ctx, t.power.SetPowered(ctx, t.on))
	}()
}

// Update ...
func (t *PowerTask) Update(_ time.Duration) {}

// NewPowerTask ...
func NewPowerTask(power radio.PowerController, on bool, timeout time.Duration, listener StateListener) *PowerTask {
	t := &PowerTask{
		power:   power,
		on:      on,
		timeout: timeout,
	}
	t.Init(listener)
	return t
}

func withOptionalTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}
