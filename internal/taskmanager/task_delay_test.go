package taskmanager

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radioqueue/internal/models"
)

func TestDelayTask_SucceedsOnFirstTickReachingDuration(t *testing.T) {
	tests := []struct {
		name      string
		delay     time.Duration
		timeStep  time.Duration
		wantTicks int
	}{
		{name: "exact multiple", delay: 5 * time.Millisecond, timeStep: time.Millisecond, wantTicks: 5},
		{name: "overshoot", delay: 10 * time.Millisecond, timeStep: 3 * time.Millisecond, wantTicks: 4},
		{name: "zero", delay: 0, timeStep: time.Millisecond, wantTicks: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQueue(nil)
			d := NewDelayTask(tt.delay, nil)
			require.NoError(t, q.Add(d))

			for i := 1; i < tt.wantTicks; i++ {
				q.Tick(tt.timeStep)
				require.Equal(t, models.TaskStateExecuting, d.State(), "succeeded early at tick %d", i)
			}
			q.Tick(tt.timeStep)
			assert.Equal(t, models.TaskStateSucceeded, d.State())
		})
	}
}

func TestDelayTask_IsCritical(t *testing.T) {
	d := NewDelayTask(time.Second, nil)
	assert.Equal(t, models.PriorityCritical, d.Priority())
	assert.Equal(t, models.TaskTypeDelay, d.Type())
	assert.Equal(t, time.Second, d.Delay())
}

func TestDelayTask_UpdateBeforeExecuteIsIgnored(t *testing.T) {
	d := NewDelayTask(0, nil)
	d.Update(time.Second)
	assert.Equal(t, models.TaskStateCreated, d.State())
}
