package dispatch

import (
	"context"

	"radioqueue/internal/models"
)

// ReadWriteListener receives the outcome of a read or write.
type ReadWriteListener interface {
	OnEvent(e models.ReadWriteEvent)
}

// ReadWriteListenerFunc adapts a function to ReadWriteListener.
type ReadWriteListenerFunc func(e models.ReadWriteEvent)

// OnEvent ...
func (f ReadWriteListenerFunc) OnEvent(e models.ReadWriteEvent) {
	if f != nil {
		f(e)
	}
}

// WrappingReadWriteListener forwards one event to one listener on the thread
// policy it was built with.
type WrappingReadWriteListener struct {
	listener ReadWriteListener
	callbackWrapper
}

// OnEvent delivers e. A nil wrapper or listener is a no-op.
func (w *WrappingReadWriteListener) OnEvent(ctx context.Context, e models.ReadWriteEvent) {
	if w == nil || w.listener == nil {
		return
	}

	listener := w.listener
	deliver := func() { invoke("read_write", func() { listener.OnEvent(e) }) }

	if w.shouldPost(ctx) {
		w.post("read_write", deliver)
		return
	}
	deliver()
}

// NewReadWriteListener wraps listener. When forceMain is set, events produced
// off the poster's goroutine are posted to it.
func NewReadWriteListener(listener ReadWriteListener, poster Poster, forceMain bool) *WrappingReadWriteListener {
	return &WrappingReadWriteListener{
		listener: listener,
		callbackWrapper: callbackWrapper{
			poster:    poster,
			forceMain: forceMain,
		},
	}
}
