package taskmanager

import (
	"context"
	"sync/atomic"

	"radioqueue/internal/dispatch"
	"radioqueue/internal/models"
)

// resetSequence tracks the tasks of one Manager.Reset and broadcasts its
// outcome once.
type resetSequence struct {
	manager   *Manager
	listeners *dispatch.WrappingResetListener
	tasks     []Task
	done      atomic.Bool
}

func (s *resetSequence) OnStateChange(task Task, state models.TaskState) {
	if !state.IsEnding() {
		return
	}
	if state.IsFailure() {
		s.finish(models.ResetEvent{Progress: models.ResetProgressFailed, Err: task.base().Err()})
		return
	}
	if task == s.tasks[len(s.tasks)-1] {
		s.finish(models.ResetEvent{Progress: models.ResetProgressCompleted})
	}
}

func (s *resetSequence) finish(e models.ResetEvent) {
	if !s.done.CompareAndSwap(false, true) {
		return
	}
	s.abort()
	s.manager.resetFinished(s)
	s.listeners.OnEvent(context.Background(), e)
}

// enqueue adds the steps in order and stops once the sequence has finished.
func (s *resetSequence) enqueue() error {
	for _, t := range s.tasks {
		if s.done.Load() {
			return nil
		}
		if err := s.manager.queue.Add(t); err != nil {
			return err
		}
		// abort may have scanned the steps before t was queued.
		if s.done.Load() {
			s.manager.queue.Cancel(t)
			return nil
		}
	}
	return nil
}

// abort cancels the steps that haven't run yet.
func (s *resetSequence) abort() {
	for _, t := range s.tasks {
		if !t.base().State().IsEnding() {
			s.manager.queue.Cancel(t)
		}
	}
}

func newResetSequence(m *Manager, listeners *dispatch.WrappingResetListener) *resetSequence {
	s := &resetSequence{
		manager:   m,
		listeners: listeners,
	}
	s.tasks = []Task{
		NewPowerTask(m.binding, false, m.config.TaskTimeout, s),
		NewDelayTask(m.config.ResetSettle, s),
		NewFactoryResetTask(m.binding, m.binding, m.config.ResetPolicy, s),
		NewPowerTask(m.binding, true, m.config.TaskTimeout, s),
	}
	return s
}
