package dispatch

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"
)

var (
	// ErrLooperClosed is returned when work is posted to a closed Looper.
	ErrLooperClosed = errors.New("looper is closed")
	// ErrLooperFull is returned when the Looper's buffer has no room left.
	ErrLooperFull = errors.New("looper buffer is full")
)

const defaultLooperBuffer = 64

type loopKey struct{}

// Looper is a designated goroutine that runs posted work one unit at a time,
// in posting order.
type Looper struct {
	jobs chan func(ctx context.Context)
	done chan struct{}
	once sync.Once
	// mu orders posts against Close so nothing lands after the final drain.
	mu sync.RWMutex
}

// Post queues fn to run on the looper. It never blocks: a full buffer yields
// ErrLooperFull.
func (l *Looper) Post(fn func()) error {
	return l.PostContext(func(context.Context) { fn() })
}

// PostContext queues fn and hands it a context for which OnLoop reports true.
func (l *Looper) PostContext(fn func(ctx context.Context)) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	select {
	case <-l.done:
		return ErrLooperClosed
	default:
	}

	select {
	case l.jobs <- fn:
		return nil
	default:
		return ErrLooperFull
	}
}

// OnLoop reports whether ctx was handed out by this looper.
func (l *Looper) OnLoop(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	owner, ok := ctx.Value(loopKey{}).(*Looper)
	return ok && owner == l
}

// Run drains posted work until ctx is done or Close is called. Either way the
// looper ends closed and work already queued still runs.
func (l *Looper) Run(ctx context.Context) error {
	loopCtx := context.WithValue(ctx, loopKey{}, l)
	log.Info("Looper starting")

	for {
		select {
		case <-ctx.Done():
			log.Info("Looper stopping")
			l.Close()
			l.drain(loopCtx)
			return ctx.Err()
		case <-l.done:
			l.drain(loopCtx)
			log.Info("Looper stopped")
			return nil
		case fn := <-l.jobs:
			l.run(loopCtx, fn)
		}
	}
}

// Close stops the looper. It is safe to call more than once.
func (l *Looper) Close() {
	l.once.Do(func() {
		l.mu.Lock()
		close(l.done)
		l.mu.Unlock()
	})
}

func (l *Looper) drain(ctx context.Context) {
	for {
		select {
		case fn := <-l.jobs:
			l.run(ctx, fn)
		default:
			return
		}
	}
}

func (l *Looper) run(ctx context.Context, fn func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Posted work panicked")
		}
	}()
	fn(ctx)
}

// NewLooper creates a looper whose queue holds buffer pending units of work.
func NewLooper(buffer int) *Looper {
	if buffer <= 0 {
		buffer = defaultLooperBuffer
	}
	return &Looper{
		jobs: make(chan func(ctx context.Context), buffer),
		done: make(chan struct{}),
	}
}
