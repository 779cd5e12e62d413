package taskmanager

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultTickInterval is the pause between two scheduler ticks.
const DefaultTickInterval = time.Millisecond

// ErrDriverRunning is returned when Run is called on a running driver.
var ErrDriverRunning = errors.New("driver is already running")

// Ticker is what the driver advances.
type Ticker interface {
	Tick(timeStep time.Duration)
}

// Driver owns the goroutine that ticks the queue, so task progress never
// depends on the goroutines that enqueue work.
type Driver struct {
	ticker   Ticker
	stop     chan struct{}
	interval time.Duration
	mu       sync.Mutex
	running  bool
	// stopPending is a Stop that arrived while no Run was active.
	stopPending bool
}

// Run ticks until Stop is called or ctx is done. The time step handed to each
// tick is the wall time elapsed since the previous one. The current task is
// left alone on exit. A Stop issued before Run starts makes it return at once.
func (d *Driver) Run(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return ErrDriverRunning
	}
	if d.stopPending {
		d.stopPending = false
		d.mu.Unlock()
		log.Info("Scheduler driver stopped before start")
		return nil
	}
	stop := make(chan struct{})
	d.running = true
	d.stop = stop
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.running = false
		d.stop = nil
		d.mu.Unlock()
	}()

	log.WithField("interval", d.interval).Info("Scheduler driver starting")
	last := time.Now()
	wait := time.NewTimer(d.interval)
	defer wait.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Scheduler driver stopping")
			return ctx.Err()
		case <-stop:
			log.Info("Scheduler driver stopped")
			return nil
		default:
		}

		now := time.Now()
		d.ticker.Tick(now.Sub(last))
		last = now

		wait.Reset(d.interval)
		select {
		case <-ctx.Done():
		case <-stop:
		case <-wait.C:
		}
	}
}

// Stop asks the loop to exit. Called while no Run is active, it applies to
// the next Run.
func (d *Driver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		d.stopPending = true
		return
	}
	if d.stop != nil {
		close(d.stop)
		d.stop = nil
	}
}

// Running ...
func (d *Driver) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// NewDriver creates a driver ticking t every interval.
func NewDriver(t Ticker, interval time.Duration) *Driver {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Driver{
		ticker:   t,
		interval: interval,
	}
}
