package journal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radioqueue/internal/models"
	"radioqueue/internal/taskmanager"
)

type fakeRepo struct {
	mu        sync.Mutex
	batches   [][]models.TaskRecord
	olderThan time.Time
	deleted   int64
	saveErr   error
}

func (r *fakeRepo) SaveRecords(_ context.Context, records ...models.TaskRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.batches = append(r.batches, append([]models.TaskRecord(nil), records...))
	return nil
}

func (r *fakeRepo) RecentRecords(_ context.Context, limit int) ([]models.TaskRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.TaskRecord
	for _, b := range r.batches {
		out = append(out, b...)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRepo) DeleteRecordsOlderThan(_ context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.olderThan = olderThan
	return r.deleted, nil
}

func (r *fakeRepo) saved() []models.TaskRecord {
	out, _ := r.RecentRecords(context.Background(), 1<<20)
	return out
}

func failedConnect(t *testing.T) *taskmanager.ConnectTask {
	t.Helper()
	task := taskmanager.NewConnectTask(nil, "AA:BB:CC:DD:EE:FF", taskmanager.ConnectOptions{}, nil)
	require.True(t, task.Fail(errors.New("gatt error 133")))
	return task
}

func TestSvc_RecordsEndedTasksOnly(t *testing.T) {
	svc := NewJournalSvc(&fakeRepo{}, Config{})
	task := failedConnect(t)

	svc.OnStateChange(task, models.TaskStateExecuting)
	assert.Empty(t, svc.records)

	svc.OnStateChange(task, models.TaskStateFailed)
	require.Len(t, svc.records, 1)

	rec := <-svc.records
	assert.Equal(t, task.ID(), rec.ID)
	assert.Equal(t, models.TaskTypeConnect, rec.Type)
	assert.Equal(t, models.PriorityMedium, rec.Priority)
	assert.Equal(t, models.TaskStateFailed, rec.State)
	assert.Equal(t, "gatt error 133", rec.Error)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", rec.Address)
	assert.Equal(t, 1, rec.Attempt)
	assert.Equal(t, task.Created(), rec.CreatedAt)
}

func TestSvc_DropsWhenBufferFull(t *testing.T) {
	svc := NewJournalSvc(&fakeRepo{}, Config{Buffer: 1})
	task := failedConnect(t)

	assert.NotPanics(t, func() {
		svc.OnStateChange(task, models.TaskStateFailed)
		svc.OnStateChange(task, models.TaskStateFailed)
	})
	assert.Len(t, svc.records, 1)
}

func TestSvc_RunFlushesBatchesAndOnShutdown(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewJournalSvc(repo, Config{BatchSize: 2, FlushInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	for i := 0; i < 3; i++ {
		svc.OnStateChange(failedConnect(t), models.TaskStateFailed)
	}
	require.Eventually(t, func() bool { return len(repo.saved()) == 2 }, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Len(t, repo.saved(), 3, "the remainder is flushed on shutdown")
}

func TestSvc_RunKeepsGoingAfterSaveError(t *testing.T) {
	repo := &fakeRepo{saveErr: errors.New("connection refused")}
	svc := NewJournalSvc(repo, Config{BatchSize: 1, FlushInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	svc.OnStateChange(failedConnect(t), models.TaskStateFailed)
	require.Eventually(t, func() bool { return len(svc.records) == 0 }, time.Second, time.Millisecond)

	repo.mu.Lock()
	repo.saveErr = nil
	repo.mu.Unlock()

	svc.OnStateChange(failedConnect(t), models.TaskStateFailed)
	require.Eventually(t, func() bool { return len(repo.saved()) >= 1 }, time.Second, time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestSvc_Cleanup(t *testing.T) {
	repo := &fakeRepo{deleted: 12}
	svc := NewJournalSvc(repo, Config{Retention: time.Hour})
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	n, err := svc.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
	assert.Equal(t, now.Add(-time.Hour), repo.olderThan)
}

func TestSvc_RunCleanupRejectsBadSchedule(t *testing.T) {
	svc := NewJournalSvc(&fakeRepo{}, Config{CleanupSchedule: "every tuesday"})
	assert.Error(t, svc.RunCleanup(context.Background()))
}

func TestSvc_RunCleanupStopsWithContext(t *testing.T) {
	svc := NewJournalSvc(&fakeRepo{}, Config{CleanupSchedule: "@daily"})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.RunCleanup(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("cleanup loop did not stop")
	}
}

func TestSvc_RecentWhenDisabled(t *testing.T) {
	var svc *Svc
	_, err := svc.Recent(context.Background(), 10)
	assert.ErrorIs(t, err, ErrJournalDisabled)

	repo := &fakeRepo{}
	require.NoError(t, repo.SaveRecords(context.Background(), models.TaskRecord{Type: models.TaskTypeDelay}))
	records, err := NewJournalSvc(repo, Config{}).Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
