package taskmanager

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"radioqueue/internal/models"
)

const step = time.Millisecond

// stubTask is a task whose behaviour is driven by the test.
type stubTask struct {
	Base
	onExecute func(t *stubTask)
	onUpdate  func(t *stubTask)
	name      string
	calls     []string
	priority  models.Priority
	mu        sync.Mutex
}

func (s *stubTask) Type() models.TaskType     { return models.TaskType(s.name) }
func (s *stubTask) Priority() models.Priority { return s.priority }

func (s *stubTask) Execute() {
	s.record("execute")
	if s.onExecute != nil {
		s.onExecute(s)
	}
}

func (s *stubTask) Update(time.Duration) {
	s.record("update")
	if s.onUpdate != nil {
		s.onUpdate(s)
	}
}

func (s *stubTask) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *stubTask) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func newStub(name string, p models.Priority) *stubTask {
	return &stubTask{name: name, priority: p}
}

// stateRecorder collects transitions in the order they were reported.
type stateRecorder struct {
	mu      sync.Mutex
	entries []recorded
}

type recorded struct {
	task  Task
	state models.TaskState
	// ended is whether the task reported itself ended when the listener ran.
	ended bool
}

func (r *stateRecorder) OnStateChange(task Task, state models.TaskState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, recorded{task: task, state: state, ended: task.base().State().IsEnding()})
}

func (r *stateRecorder) states(task Task) []models.TaskState {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.TaskState
	for _, e := range r.entries {
		if e.task == task {
			out = append(out, e.state)
		}
	}
	return out
}

func (r *stateRecorder) executionOrder() []Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Task
	for _, e := range r.entries {
		if e.state == models.TaskStateExecuting {
			out = append(out, e.task)
		}
	}
	return out
}

// tickUntil ticks q until cond holds, failing the test after a second.
func tickUntil(t *testing.T, q *Queue, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		q.Tick(step)
		return cond()
	}, time.Second, time.Millisecond)
}

// fakeBinding records calls and answers with the configured errors.
type fakeBinding struct {
	connectErrs   []error
	resetErr      error
	powerErr      error
	readErr       error
	writeErr      error
	disconnectErr error
	readData      []byte
	calls         []string
	connects      []bool
	disconnects   []string
	written       []byte
	connectHold   chan struct{}
	mu            sync.Mutex
	powered       bool
}

func (b *fakeBinding) record(call string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call)
}

func (b *fakeBinding) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *fakeBinding) FactoryReset(context.Context) error {
	b.record("factory_reset")
	return b.resetErr
}

func (b *fakeBinding) SetPowered(_ context.Context, on bool) error {
	if on {
		b.record("power_on")
	} else {
		b.record("power_off")
	}
	if b.powerErr != nil {
		return b.powerErr
	}
	b.mu.Lock()
	b.powered = on
	b.mu.Unlock()
	return nil
}

func (b *fakeBinding) Powered(context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.powered, nil
}

func (b *fakeBinding) Connect(ctx context.Context, _ string, autoconnect bool) error {
	b.record("connect")
	if b.connectHold != nil {
		select {
		case <-b.connectHold:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connects = append(b.connects, autoconnect)
	if len(b.connectErrs) == 0 {
		return nil
	}
	err := b.connectErrs[0]
	b.connectErrs = b.connectErrs[1:]
	return err
}

func (b *fakeBinding) Disconnect(_ context.Context, address string) error {
	b.record("disconnect")
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disconnects = append(b.disconnects, address)
	return b.disconnectErr
}

func (b *fakeBinding) Disconnects() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.disconnects...)
}

func (b *fakeBinding) ReadCharacteristic(context.Context, string, string) ([]byte, error) {
	b.record("read")
	return b.readData, b.readErr
}

func (b *fakeBinding) WriteCharacteristic(_ context.Context, _, _ string, data []byte) error {
	b.record("write")
	b.mu.Lock()
	b.written = data
	b.mu.Unlock()
	return b.writeErr
}

func (b *fakeBinding) Connects() []bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]bool(nil), b.connects...)
}
