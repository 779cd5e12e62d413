package handlers

import (
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"radioqueue/internal/models"
	"radioqueue/internal/taskmanager"
)

// Router picks the ConnectFailHandler registered for the failed device's
// address and falls back to a default one.
type Router struct {
	fallback taskmanager.ConnectFailHandler
	handlers map[string]taskmanager.ConnectFailHandler
	mu       sync.RWMutex
}

// RegisterHandlers adds or replaces per-address handlers.
func (r *Router) RegisterHandlers(handlers map[string]taskmanager.ConnectFailHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for address, h := range handlers {
		r.handlers[normalize(address)] = h
	}
}

// OnConnectFail ...
func (r *Router) OnConnectFail(f models.ConnectFailure) models.RetryDecision {
	r.mu.RLock()
	h, ok := r.handlers[normalize(f.Address)]
	r.mu.RUnlock()
	if !ok {
		h = r.fallback
	}

	decision := h.OnConnectFail(f)
	if decision == models.RetryDecisionNull {
		decision = models.RetryDecisionDoNotRetry
	}
	log.WithFields(log.Fields{
		"address":  f.Address,
		"attempt":  f.Attempt,
		"state":    f.State,
		"decision": decision,
	}).Debug("Connect failure routed")
	return decision
}

// NewRouter creates a router whose unknown addresses go to fallback. A nil
// fallback uses taskmanager.AttemptLimitHandler with its default limit.
func NewRouter(fallback taskmanager.ConnectFailHandler) *Router {
	if fallback == nil {
		fallback = taskmanager.AttemptLimitHandler{}
	}
	return &Router{
		fallback: fallback,
		handlers: make(map[string]taskmanager.ConnectFailHandler),
	}
}

// NeverRetry gives up on the first failure.
var NeverRetry = taskmanager.ConnectFailHandlerFunc(func(models.ConnectFailure) models.RetryDecision {
	return models.RetryDecisionDoNotRetry
})

// AutoconnectFallbackHandler retries a failed direct connect once with
// autoconnect on, letting the stack wait for the device to advertise.
type AutoconnectFallbackHandler struct {
	Limit taskmanager.AttemptLimitHandler
}

// OnConnectFail ...
func (h AutoconnectFallbackHandler) OnConnectFail(f models.ConnectFailure) models.RetryDecision {
	decision := h.Limit.OnConnectFail(f)
	if decision == models.RetryDecisionRetry && !f.Autoconnect {
		return models.RetryDecisionRetryWithAutoconnectTrue
	}
	return decision
}

func normalize(address string) string {
	return strings.ToUpper(strings.TrimSpace(address))
}
