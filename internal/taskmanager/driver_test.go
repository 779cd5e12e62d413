package taskmanager

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTicker struct {
	ticks atomic.Int64
	total atomic.Int64
}

func (c *countingTicker) Tick(timeStep time.Duration) {
	c.ticks.Add(1)
	c.total.Add(int64(timeStep))
}

func TestDriver_StopEndsRun(t *testing.T) {
	ticker := &countingTicker{}
	d := NewDriver(ticker, time.Millisecond)

	errc := make(chan error, 1)
	go func() { errc <- d.Run(context.Background()) }()

	require.Eventually(t, func() bool { return ticker.ticks.Load() >= 5 }, time.Second, time.Millisecond)
	assert.True(t, d.Running())
	assert.ErrorIs(t, d.Run(context.Background()), ErrDriverRunning)

	d.Stop()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("driver did not stop")
	}
	assert.False(t, d.Running())
	assert.Positive(t, ticker.total.Load(), "time steps follow the wall clock")
}

func TestDriver_ContextCancelEndsRun(t *testing.T) {
	ticker := &countingTicker{}
	d := NewDriver(ticker, 0)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- d.Run(ctx) }()

	require.Eventually(t, func() bool { return ticker.ticks.Load() > 0 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("driver did not stop")
	}
}

func TestDriver_AdvancesQueue(t *testing.T) {
	q := NewQueue(nil)
	d := NewDelayTask(5*time.Millisecond, nil)
	require.NoError(t, q.Add(d))

	driver := NewDriver(q, time.Millisecond)
	go func() { _ = driver.Run(context.Background()) }()
	defer driver.Stop()

	require.Eventually(t, func() bool { return d.State().IsEnding() }, time.Second, time.Millisecond)
	assert.GreaterOrEqual(t, d.ExecutingFor(), 5*time.Millisecond)
}

func TestDriver_StopBeforeRunIsHonored(t *testing.T) {
	ticker := &countingTicker{}
	d := NewDriver(ticker, time.Millisecond)
	d.Stop()

	errc := make(chan error, 1)
	go func() { errc <- d.Run(context.Background()) }()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("driver ignored a stop issued before it started")
	}
	assert.Zero(t, ticker.ticks.Load())
	assert.False(t, d.Running())

	// The pending stop is used up; the next Run ticks until stopped again.
	go func() { errc <- d.Run(context.Background()) }()
	require.Eventually(t, func() bool { return ticker.ticks.Load() > 0 }, time.Second, time.Millisecond)
	d.Stop()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("driver did not stop")
	}
}

func TestDriver_StopWakesLongInterval(t *testing.T) {
	ticker := &countingTicker{}
	d := NewDriver(ticker, time.Hour)

	errc := make(chan error, 1)
	go func() { errc <- d.Run(context.Background()) }()
	require.Eventually(t, func() bool { return ticker.ticks.Load() == 1 }, time.Second, time.Millisecond)

	d.Stop()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("stop waited for the tick interval")
	}
}
