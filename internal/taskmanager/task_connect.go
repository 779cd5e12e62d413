package taskmanager

import (
	"time"

	"radioqueue/internal/models"
	"radioqueue/internal/radio"
)

// ConnectOptions ...
type ConnectOptions struct {
	Timeout     time.Duration
	Autoconnect bool
	// Implicit marks connects the user didn't ask for, e.g. a device coming back into range.
	Implicit bool
}

// ConnectTask opens a link to one device.
type ConnectTask struct {
	Base
	connector radio.Connector
	address   string
	opts      ConnectOptions
	priority  models.Priority
	attempt   int
}

// Type ...
func (t *ConnectTask) Type() models.TaskType { return models.TaskTypeConnect }

// Priority ...
func (t *ConnectTask) Priority() models.Priority { return t.priority }

// Execute starts the connect and ends the task when the binding answers or
// the timeout expires.
func (t *ConnectTask) Execute() {
	ctx, cancel := withOptionalTimeout(t.Context(), t.opts.Timeout)
	go func() {
		defer cancel()
		t.Finish(ctx, t.connector.Connect(ctx, t.address, t.opts.Autoconnect))
	}()
}

// Update ...
func (t *ConnectTask) Update(_ time.Duration) {}

// Address ...
func (t *ConnectTask) Address() string { return t.address }

// Autoconnect ...
func (t *ConnectTask) Autoconnect() bool { return t.opts.Autoconnect }

// Attempt is 1 for the first try and grows with every retry.
func (t *ConnectTask) Attempt() int { return t.attempt }

// ConnectFailure describes this task's failure for a ConnectFailHandler.
func (t *ConnectTask) ConnectFailure() models.ConnectFailure {
	return models.ConnectFailure{
		Err:         t.Err(),
		Address:     t.address,
		State:       t.State(),
		Attempt:     t.attempt,
		Autoconnect: t.opts.Autoconnect,
	}
}

// RetryTask returns a fresh connect task for the same device. The autoconnect
// flag follows decision when it forces one.
func (t *ConnectTask) RetryTask(decision models.RetryDecision, priority models.Priority) Task {
	opts := t.opts
	if autoconnect, ok := decision.Autoconnect(); ok {
		opts.Autoconnect = autoconnect
	}
	next := &ConnectTask{
		connector: t.connector,
		address:   t.address,
		opts:      opts,
		priority:  priority,
		attempt:   t.attempt + 1,
	}
	next.Init(t.stateListener())
	return next
}

// NewConnectTask creates a first connect attempt. Explicit connects run at
// PriorityForExplicitBondingAndConnecting, implicit ones one band higher.
func NewConnectTask(connector radio.Connector, address string, opts ConnectOptions, listener StateListener) *ConnectTask {
	priority := models.PriorityForExplicitBondingAndConnecting
	if opts.Implicit {
		priority = models.PriorityForImplicitBondingAndConnecting
	}
	t := &ConnectTask{
		connector: connector,
		address:   address,
		opts:      opts,
		priority:  priority,
		attempt:   1,
	}
	t.Init(listener)
	return t
}
