package taskmanager

import (
	"time"

	"radioqueue/internal/models"
	"radioqueue/internal/radio"
)

// DisconnectTask forcibly drops the link to one device. It runs at CRITICAL so
// it overtakes queued traffic for the device.
type DisconnectTask struct {
	Base
	connector radio.Connector
	address   string
	timeout   time.Duration
}

// Type ...
func (t *DisconnectTask) Type() models.TaskType { return models.TaskTypeDisconnect }

// Priority ...
func (t *DisconnectTask) Priority() models.Priority { return models.PriorityCritical }

// Execute asks the binding to drop the link and ends the task when it answers
// or the timeout expires.
func (t *DisconnectTask) Execute() {
	ctx, cancel := withOptionalTimeout(t.Context(), t.timeout)
	go func() {
		defer cancel()
		t.Finish(ctx, t.connector.Disconnect(ctx, t.address))
	}()
}

// Update ...
func (t *DisconnectTask) Update(_ time.Duration) {}

// Address ...
func (t *DisconnectTask) Address() string { return t.address }

// NewDisconnectTask ...
func NewDisconnectTask(connector radio.Connector, address string, timeout time.Duration, listener StateListener) *DisconnectTask {
	t := &DisconnectTask{
		connector: connector,
		address:   address,
		timeout:   timeout,
	}
	t.Init(listener)
	return t
}
