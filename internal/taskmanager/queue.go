package taskmanager

import (
	"container/heap"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"radioqueue/internal/models"
)

// Queue errors.
var (
	ErrNilTask           = errors.New("task is nil")
	ErrTaskAlreadyQueued = errors.New("task is already queued or executing")
	ErrTaskEnded         = errors.New("task has already ended")
)

// Queue holds pending tasks and the single current task, and advances the
// current one on every Tick.
//
// Add, Cancel, TimeOut and Clear are safe from any goroutine. Ticks are
// serialized; Execute and Update run with the queue unlocked so tasks may
// enqueue follow-up work.
type Queue struct {
	metrics     *Metrics
	current     Task
	pending     taskHeap
	listeners   []StateListener
	ordinal     uint64
	updateCount uint64
	mu          sync.Mutex
	tickMu      sync.Mutex
	suspended   bool

	// delayBetweenTasks holds promotion back after a current task ends.
	// sinceEnded is negative on the tick the gap starts.
	delayBetweenTasks time.Duration
	sinceEnded        time.Duration
	gapPending        bool
}

// SetDelayBetweenTasks sets the idle time required between the end of one
// task and the start of the next. Zero or less disables the gap.
func (q *Queue) SetDelayBetweenTasks(d time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.delayBetweenTasks = d
}

// AddListener registers a listener that hears every task's transitions
// after the task's own listener.
func (q *Queue) AddListener(listener StateListener) {
	if listener == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.listeners = append(q.listeners, listener)
}

// Add queues task behind every pending task of equal or higher priority.
func (q *Queue) Add(task Task) error {
	if task == nil {
		return ErrNilTask
	}
	b := task.base()

	q.mu.Lock()
	switch state := b.State(); {
	case state.IsEnding():
		q.mu.Unlock()
		return ErrTaskEnded
	case state == models.TaskStateQueued || state == models.TaskStateExecuting:
		q.mu.Unlock()
		return ErrTaskAlreadyQueued
	}
	b.assignOrdinal(q.nextOrdinal)
	b.transition(models.TaskStateQueued)
	heap.Push(&q.pending, task)
	pending := q.pending.Len()
	q.mu.Unlock()

	q.metrics.setPending(pending)
	log.WithFields(log.Fields{
		"task_id":   b.ID(),
		"task_type": task.Type(),
		"priority":  task.Priority(),
		"ordinal":   b.Ordinal(),
		"pending":   pending,
	}).Debug("Task added to queue")

	q.notify(task)
	return nil
}

// Tick advances the queue by one step: it retires an ended current task,
// promotes the most important pending task if nothing is current, and
// updates the current task.
func (q *Queue) Tick(timeStep time.Duration) {
	q.tickMu.Lock()
	defer q.tickMu.Unlock()
	start := time.Now()

	q.mu.Lock()
	if q.suspended {
		q.mu.Unlock()
		return
	}
	q.updateCount++

	var retired Task
	if q.current != nil && q.current.base().State().IsEnding() {
		retired = q.current
		q.current = nil
		q.startGap()
	}
	if q.current == nil {
		q.advanceGap(timeStep)
	}

	started := false
	if q.current == nil && q.pending.Len() > 0 && !q.gapPending {
		q.current = heap.Pop(&q.pending).(Task)
		q.current.base().transition(models.TaskStateExecuting)
		started = true
	}
	current := q.current
	pending := q.pending.Len()
	q.mu.Unlock()

	q.metrics.setPending(pending)
	if retired != nil {
		q.retire(retired)
	}

	if current != nil {
		b := current.base()
		if started {
			q.notify(current)
			if !b.State().IsEnding() {
				current.Execute()
			}
		}
		if !b.State().IsEnding() {
			b.addExecutingTime(timeStep)
			current.Update(timeStep)
		}
		if b.State().IsEnding() {
			q.mu.Lock()
			if q.current == current {
				q.current = nil
				q.startGap()
			}
			q.mu.Unlock()
			q.retire(current)
		}
	}

	q.metrics.observeTick(time.Since(start))
}

// Cancel ends task as cancelled, whether pending or current. A current task
// leaves the queue on the next tick.
func (q *Queue) Cancel(task Task) bool {
	return q.endExternally(task, models.TaskStateCancelled, ErrCancelled)
}

// TimeOut ends task as timed out, whether pending or current.
func (q *Queue) TimeOut(task Task) bool {
	return q.endExternally(task, models.TaskStateTimedOut, ErrTimedOut)
}

func (q *Queue) endExternally(task Task, state models.TaskState, err error) bool {
	if task == nil {
		return false
	}
	b := task.base()

	q.mu.Lock()
	isCurrent := q.current == task
	idx := q.pending.indexOf(task)
	if !isCurrent && idx < 0 {
		q.mu.Unlock()
		return false
	}
	if !b.end(state, err) {
		q.mu.Unlock()
		return false
	}
	if idx >= 0 {
		heap.Remove(&q.pending, idx)
	}
	pending := q.pending.Len()
	q.mu.Unlock()

	q.metrics.setPending(pending)
	if !isCurrent {
		q.retire(task)
	}
	return true
}

// Clear removes every pending task matching filter and ends it as cleared.
// The current task is never touched.
func (q *Queue) Clear(filter func(Task) bool) int {
	q.mu.Lock()
	var cleared []Task
	kept := q.pending[:0]
	for _, t := range q.pending {
		if filter == nil || filter(t) {
			cleared = append(cleared, t)
			continue
		}
		kept = append(kept, t)
	}
	for i := len(kept); i < len(q.pending); i++ {
		q.pending[i] = nil
	}
	q.pending = kept
	heap.Init(&q.pending)
	pending := q.pending.Len()
	q.mu.Unlock()

	q.metrics.setPending(pending)
	for _, t := range cleared {
		if t.base().end(models.TaskStateClearedFromQueue, ErrClearedFromQueue) {
			q.retire(t)
		}
	}
	return len(cleared)
}

// Suspend turns ticks into no-ops until called again with false.
func (q *Queue) Suspend(suspended bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.suspended == suspended {
		return
	}
	q.suspended = suspended
	log.WithField("suspended", suspended).Info("Task queue suspension changed")
}

// Current returns the executing task, or nil.
func (q *Queue) Current() Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current
}

// Peek returns the task the next selection would pick, or nil.
func (q *Queue) Peek() Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending.Len() == 0 {
		return nil
	}
	return q.pending[0]
}

// Len returns the number of pending tasks, excluding the current one.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.Len()
}

// UpdateCount returns the number of ticks processed while not suspended.
func (q *Queue) UpdateCount() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.updateCount
}

// startGap must be called with mu held.
func (q *Queue) startGap() {
	if q.delayBetweenTasks <= 0 {
		return
	}
	q.gapPending = true
	q.sinceEnded = -1
}

// advanceGap must be called with mu held. The tick a gap starts on does not
// count toward it.
func (q *Queue) advanceGap(timeStep time.Duration) {
	if !q.gapPending {
		return
	}
	if q.sinceEnded < 0 {
		q.sinceEnded = 0
	} else {
		q.sinceEnded += timeStep
	}
	if q.sinceEnded >= q.delayBetweenTasks {
		q.gapPending = false
	}
}

// nextOrdinal must be called with mu held.
func (q *Queue) nextOrdinal() uint64 {
	o := q.ordinal
	q.ordinal++
	return o
}

// retire logs and records an ended task, then reports its transitions.
func (q *Queue) retire(task Task) {
	b := task.base()
	state := b.State()
	fields := log.Fields{
		"task_id":   b.ID(),
		"task_type": task.Type(),
		"priority":  task.Priority(),
		"state":     state,
		"duration":  b.ExecutingFor(),
	}
	if state == models.TaskStateSucceeded {
		log.WithFields(fields).Info("Task ended")
	} else {
		log.WithFields(fields).WithError(b.Err()).Warn("Task ended without success")
	}

	q.metrics.observeEnded(task.Type(), state, b.ExecutingFor())
	q.notify(task)
}

// notify reports the task's unreported transitions to its own listener and
// then to the queue listeners. It never runs with mu held.
func (q *Queue) notify(task Task) {
	b := task.base()
	b.notifyMu.Lock()
	defer b.notifyMu.Unlock()

	states, own := b.takeUnreported()
	if len(states) == 0 {
		return
	}

	q.mu.Lock()
	listeners := make([]StateListener, 0, len(q.listeners)+1)
	if own != nil {
		listeners = append(listeners, own)
	}
	listeners = append(listeners, q.listeners...)
	q.mu.Unlock()

	for _, state := range states {
		for _, l := range listeners {
			callListener(l, task, state)
		}
	}
}

func callListener(l StateListener, task Task, state models.TaskState) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"task_type": task.Type(),
				"state":     state,
				"panic":     r,
			}).Error("Task state listener panicked")
		}
	}()
	l.OnStateChange(task, state)
}

// NewQueue creates an empty queue. metrics may be nil.
func NewQueue(metrics *Metrics) *Queue {
	return &Queue{metrics: metrics}
}

// taskHeap orders by priority, highest first, then by ordinal.
type taskHeap []Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	pi, pj := h[i].Priority(), h[j].Priority()
	if pi != pj {
		return pi > pj
	}
	return h[i].base().Ordinal() < h[j].base().Ordinal()
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) { *h = append(*h, x.(Task)) }

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

func (h taskHeap) indexOf(task Task) int {
	for i, t := range h {
		if t == task {
			return i
		}
	}
	return -1
}
