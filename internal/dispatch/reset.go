package dispatch

import (
	"context"
	"sync"

	"radioqueue/internal/models"
)

// ResetListener receives the end of a reset sequence.
type ResetListener interface {
	OnEvent(e models.ResetEvent)
}

// ResetListenerFunc adapts a function to ResetListener.
type ResetListenerFunc func(e models.ResetEvent)

// OnEvent ...
func (f ResetListenerFunc) OnEvent(e models.ResetEvent) {
	if f != nil {
		f(e)
	}
}

// WrappingResetListener broadcasts an event to every attached listener in
// insertion order. Duplicates are delivered once per registration.
type WrappingResetListener struct {
	listeners []ResetListener
	callbackWrapper
	mu        sync.Mutex
	deliverMu sync.Mutex
}

// AddListener appends listener. Listeners added while a broadcast is running
// only see later broadcasts.
func (w *WrappingResetListener) AddListener(listener ResetListener) {
	if listener == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, listener)
}

// Len returns the number of attached listeners.
func (w *WrappingResetListener) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.listeners)
}

// OnEvent delivers e to all listeners as a single unit of work.
func (w *WrappingResetListener) OnEvent(ctx context.Context, e models.ResetEvent) {
	w.mu.Lock()
	listeners := make([]ResetListener, len(w.listeners))
	copy(listeners, w.listeners)
	w.mu.Unlock()

	broadcast := func() {
		w.deliverMu.Lock()
		defer w.deliverMu.Unlock()
		for _, l := range listeners {
			invoke("reset", func() { l.OnEvent(e) })
		}
	}

	if w.shouldPost(ctx) {
		w.post("reset", broadcast)
		return
	}
	broadcast()
}

// NewResetListener wraps listener, which may be nil when listeners are only
// attached later through AddListener.
func NewResetListener(listener ResetListener, poster Poster, forceMain bool) *WrappingResetListener {
	w := &WrappingResetListener{
		callbackWrapper: callbackWrapper{
			poster:    poster,
			forceMain: forceMain,
		},
	}
	w.AddListener(listener)
	return w
}
