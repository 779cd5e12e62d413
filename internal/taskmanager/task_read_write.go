package taskmanager

import (
	"context"
	"sync"
	"time"

	"radioqueue/internal/dispatch"
	"radioqueue/internal/models"
	"radioqueue/internal/radio"
)

// ReadWriteOptions ...
type ReadWriteOptions struct {
	Timeout time.Duration
	// Prioritized lifts the task from the normal to the priority read/write band.
	Prioritized bool
}

// ReadWriteTask reads or writes one characteristic and reports a
// ReadWriteEvent through its wrapper once it has ended.
type ReadWriteTask struct {
	Base
	gatt     radio.GattClient
	result   *dispatch.WrappingReadWriteListener
	observer StateListener
	address  string
	charUUID string
	op       models.ReadWriteType
	data     []byte
	opts     ReadWriteOptions
	dataMu   sync.Mutex
}

// Type ...
func (t *ReadWriteTask) Type() models.TaskType {
	if t.op == models.ReadWriteTypeWrite {
		return models.TaskTypeWrite
	}
	return models.TaskTypeRead
}

// Priority ...
func (t *ReadWriteTask) Priority() models.Priority {
	if t.opts.Prioritized {
		return models.PriorityForPriorityReadsWrites
	}
	return models.PriorityForNormalReadsWrites
}

// Execute ...
func (t *ReadWriteTask) Execute() {
	ctx, cancel := withOptionalTimeout(t.Context(), t.opts.Timeout)
	go func() {
		defer cancel()
		t.Finish(ctx, t.run(ctx))
	}()
}

func (t *ReadWriteTask) run(ctx context.Context) error {
	if t.op == models.ReadWriteTypeWrite {
		return t.gatt.WriteCharacteristic(ctx, t.address, t.charUUID, t.data)
	}
	data, err := t.gatt.ReadCharacteristic(ctx, t.address, t.charUUID)
	if err == nil {
		t.dataMu.Lock()
		t.data = data
		t.dataMu.Unlock()
	}
	return err
}

// Update ...
func (t *ReadWriteTask) Update(_ time.Duration) {}

// Address ...
func (t *ReadWriteTask) Address() string { return t.address }

// Event builds the result from the task's current state.
func (t *ReadWriteTask) Event() models.ReadWriteEvent {
	t.dataMu.Lock()
	data := t.data
	t.dataMu.Unlock()
	return models.ReadWriteEvent{
		Err:       t.Err(),
		Address:   t.address,
		CharUUID:  t.charUUID,
		Type:      t.op,
		Data:      data,
		TimeTaken: t.ExecutingFor(),
		State:     t.State(),
	}
}

// OnStateChange forwards transitions to the observer and delivers the result
// once the task has ended.
func (t *ReadWriteTask) OnStateChange(task Task, state models.TaskState) {
	if t.observer != nil {
		t.observer.OnStateChange(task, state)
	}
	if state.IsEnding() {
		t.result.OnEvent(context.Background(), t.Event())
	}
}

// NewReadTask ...
func NewReadTask(gatt radio.GattClient, address, charUUID string, opts ReadWriteOptions, result *dispatch.WrappingReadWriteListener, observer StateListener) *ReadWriteTask {
	return newReadWriteTask(gatt, models.ReadWriteTypeRead, address, charUUID, nil, opts, result, observer)
}

// NewWriteTask ...
func NewWriteTask(gatt radio.GattClient, address, charUUID string, data []byte, opts ReadWriteOptions, result *dispatch.WrappingReadWriteListener, observer StateListener) *ReadWriteTask {
	return newReadWriteTask(gatt, models.ReadWriteTypeWrite, address, charUUID, data, opts, result, observer)
}

func newReadWriteTask(gatt radio.GattClient, op models.ReadWriteType, address, charUUID string, data []byte, opts ReadWriteOptions, result *dispatch.WrappingReadWriteListener, observer StateListener) *ReadWriteTask {
	t := &ReadWriteTask{
		gatt:     gatt,
		result:   result,
		observer: observer,
		address:  address,
		charUUID: charUUID,
		op:       op,
		data:     data,
		opts:     opts,
	}
	t.Init(t)
	return t
}
