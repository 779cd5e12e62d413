// Package dispatch delivers listener callbacks on a designated goroutine.
//
// A Poster owns the designated goroutine. Wrappers built with forceMain set
// hand delivery to the Poster unless the caller is already running on it, in
// which case the listener is invoked inline.
package dispatch

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// Poster runs units of work on a designated goroutine.
type Poster interface {
	Post(fn func()) error
	// OnLoop reports whether ctx belongs to work running on the designated goroutine.
	OnLoop(ctx context.Context) bool
}

type callbackWrapper struct {
	poster    Poster
	forceMain bool
}

// shouldPost reports whether delivery must be handed to the poster.
func (w callbackWrapper) shouldPost(ctx context.Context) bool {
	return w.forceMain && w.poster != nil && !w.poster.OnLoop(ctx)
}

func (w callbackWrapper) post(kind string, fn func()) {
	if err := w.poster.Post(fn); err != nil {
		log.WithFields(log.Fields{
			"listener": kind,
		}).WithError(err).Error("Failed to post listener callback, event dropped")
	}
}

func invoke(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"listener": kind,
				"panic":    r,
			}).Error("Listener panicked")
		}
	}()
	fn()
}
