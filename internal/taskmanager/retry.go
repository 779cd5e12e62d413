package taskmanager

import (
	log "github.com/sirupsen/logrus"

	"radioqueue/internal/models"
)

// DefaultMaxConnectAttempts bounds AttemptLimitHandler when no limit is set.
const DefaultMaxConnectAttempts = 3

// Retryable is a task that can be replaced by a fresh attempt after failing.
type Retryable interface {
	Task
	ConnectFailure() models.ConnectFailure
	RetryTask(decision models.RetryDecision, priority models.Priority) Task
}

// ConnectFailHandler decides what happens after a connect attempt fails. It
// must not have side effects; the Retrier acts on the decision.
type ConnectFailHandler interface {
	OnConnectFail(f models.ConnectFailure) models.RetryDecision
}

// ConnectFailHandlerFunc adapts a function to ConnectFailHandler.
type ConnectFailHandlerFunc func(f models.ConnectFailure) models.RetryDecision

// OnConnectFail ...
func (f ConnectFailHandlerFunc) OnConnectFail(failure models.ConnectFailure) models.RetryDecision {
	return f(failure)
}

// AttemptLimitHandler retries failed and timed out connects until MaxAttempts
// attempts were made. Cancelled or cleared connects are never retried.
type AttemptLimitHandler struct {
	MaxAttempts int
}

// OnConnectFail ...
func (h AttemptLimitHandler) OnConnectFail(f models.ConnectFailure) models.RetryDecision {
	switch f.State {
	case models.TaskStateCancelled, models.TaskStateClearedFromQueue:
		return models.RetryDecisionDoNotRetry
	}
	limit := h.MaxAttempts
	if limit <= 0 {
		limit = DefaultMaxConnectAttempts
	}
	if f.Attempt < limit {
		return models.RetryDecisionRetry
	}
	return models.RetryDecisionDoNotRetry
}

// Retrier listens for failed Retryable tasks and enqueues the replacement
// their ConnectFailHandler asks for. The failed task is never reused.
type Retrier struct {
	queue    *Queue
	handler  ConnectFailHandler
	metrics  *Metrics
	priority models.Priority
}

// OnStateChange ...
func (r *Retrier) OnStateChange(task Task, state models.TaskState) {
	if !state.IsFailure() {
		return
	}
	failed, ok := task.(Retryable)
	if !ok {
		return
	}

	failure := failed.ConnectFailure()
	decision := r.handler.OnConnectFail(failure)
	fields := log.Fields{
		"task_id":   failed.base().ID(),
		"task_type": failed.Type(),
		"address":   failure.Address,
		"attempt":   failure.Attempt,
		"decision":  decision,
	}
	if !decision.IsRetry() {
		log.WithFields(fields).Info("Connect failure will not be retried")
		return
	}

	next := failed.RetryTask(decision, r.priority)
	if err := r.queue.Add(next); err != nil {
		log.WithFields(fields).WithError(err).Error("Failed to enqueue connect retry")
		return
	}
	r.metrics.observeRetry(decision)
	log.WithFields(fields).Info("Connect retry enqueued")
}

// NewRetrier creates a Retrier feeding queue. A nil handler falls back to
// AttemptLimitHandler with the default limit.
func NewRetrier(queue *Queue, handler ConnectFailHandler, priority models.Priority, metrics *Metrics) *Retrier {
	if handler == nil {
		handler = AttemptLimitHandler{MaxAttempts: DefaultMaxConnectAttempts}
	}
	return &Retrier{
		queue:    queue,
		handler:  handler,
		metrics:  metrics,
		priority: priority,
	}
}
