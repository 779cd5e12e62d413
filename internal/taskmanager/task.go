package taskmanager

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"radioqueue/internal/models"
)

// Failure payloads attached to tasks ended from outside.
var (
	ErrTimedOut         = errors.New("task timed out")
	ErrCancelled        = errors.New("task cancelled")
	ErrClearedFromQueue = errors.New("task cleared from queue")
)

// StateListener is told about every state a task enters, in order.
type StateListener interface {
	OnStateChange(task Task, state models.TaskState)
}

// StateListenerFunc adapts a function to StateListener.
type StateListenerFunc func(task Task, state models.TaskState)

// OnStateChange ...
func (f StateListenerFunc) OnStateChange(task Task, state models.TaskState) {
	if f != nil {
		f(task, state)
	}
}

// Task is a unit of work against the radio. Concrete tasks embed Base, which
// carries the life cycle; they only describe what Execute and Update do.
//
// Execute is called once when the task becomes current. Update is called on
// every tick afterwards until the task ends. Both must return quickly.
type Task interface {
	Type() models.TaskType
	Priority() models.Priority
	Execute()
	Update(timeStep time.Duration)

	base() *Base
}

// Base holds the state every task shares. The zero value is ready to use;
// call Init to attach a listener before the task is queued.
type Base struct {
	created    time.Time
	ctx        context.Context
	err        error
	listener   StateListener
	cancel     context.CancelFunc
	unreported []models.TaskState
	ordinal    uint64
	executing  time.Duration
	state      models.TaskState
	id         uuid.UUID
	hasOrdinal bool
	mu         sync.Mutex
	notifyMu   sync.Mutex
}

// Init attaches the listener that hears about this task's transitions.
func (b *Base) Init(listener StateListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ensure()
	b.listener = listener
}

func (b *Base) base() *Base { return b }

// ensure must be called with mu held.
func (b *Base) ensure() {
	if b.id != uuid.Nil {
		return
	}
	b.id = uuid.New()
	b.created = time.Now()
	b.ctx, b.cancel = context.WithCancel(context.Background())
	b.unreported = append(b.unreported, models.TaskStateCreated)
}

// ID ...
func (b *Base) ID() uuid.UUID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ensure()
	return b.id
}

// Created ...
func (b *Base) Created() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ensure()
	return b.created
}

// State ...
func (b *Base) State() models.TaskState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Err returns the failure payload once the task has ended unsuccessfully.
func (b *Base) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Ordinal is the enqueue sequence number, assigned the first time the task is queued.
func (b *Base) Ordinal() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ordinal
}

// ExecutingFor is the sum of the time steps the task received while current.
func (b *Base) ExecutingFor() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.executing
}

// Context is cancelled as soon as the task reaches an ending state.
func (b *Base) Context() context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ensure()
	return b.ctx
}

// Succeed ends the task successfully. It reports false if the task had already ended.
func (b *Base) Succeed() bool {
	return b.end(models.TaskStateSucceeded, nil)
}

// Fail ends the task with err as its failure payload.
func (b *Base) Fail(err error) bool {
	return b.end(models.TaskStateFailed, err)
}

// FailImmediately ends the task when its operation couldn't even be issued.
func (b *Base) FailImmediately(err error) bool {
	return b.end(models.TaskStateFailedImmediately, err)
}

// TimeOut ends the task as timed out. Watchdogs and the task itself may call it.
func (b *Base) TimeOut() bool {
	return b.end(models.TaskStateTimedOut, ErrTimedOut)
}

// Finish resolves the result of an operation run under ctx: success, timeout
// when ctx hit its deadline, failure otherwise.
func (b *Base) Finish(ctx context.Context, err error) bool {
	switch {
	case err == nil:
		return b.Succeed()
	case errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded):
		return b.TimeOut()
	default:
		return b.Fail(err)
	}
}

func (b *Base) end(state models.TaskState, err error) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state.IsEnding() {
		return false
	}
	b.ensure()
	b.state = state
	b.err = err
	b.unreported = append(b.unreported, state)
	b.cancel()
	return true
}

// transition moves a live task to a non-ending state.
func (b *Base) transition(state models.TaskState) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state.IsEnding() {
		return false
	}
	b.ensure()
	b.state = state
	b.unreported = append(b.unreported, state)
	return true
}

func (b *Base) assignOrdinal(next func() uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.hasOrdinal {
		b.ordinal = next()
		b.hasOrdinal = true
	}
}

func (b *Base) addExecutingTime(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.executing += d
}

func (b *Base) takeUnreported() ([]models.TaskState, StateListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	states := b.unreported
	b.unreported = nil
	return states, b.listener
}

func (b *Base) stateListener() StateListener {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listener
}

// Snapshot describes task as a journal record. EndedAt is left zero.
func Snapshot(task Task) models.TaskRecord {
	b := task.base()
	b.mu.Lock()
	b.ensure()
	rec := models.TaskRecord{
		ID:        b.id,
		Type:      task.Type(),
		Priority:  task.Priority(),
		State:     b.state,
		Executing: b.executing,
		CreatedAt: b.created,
	}
	if b.err != nil {
		rec.Error = b.err.Error()
	}
	b.mu.Unlock()

	if a, ok := task.(interface{ Address() string }); ok {
		rec.Address = a.Address()
	}
	if a, ok := task.(interface{ Attempt() int }); ok {
		rec.Attempt = a.Attempt()
	}
	return rec
}
