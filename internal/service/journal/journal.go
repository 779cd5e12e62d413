package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"radioqueue/internal/models"
	journalRepo "radioqueue/internal/repository/journal"
	"radioqueue/internal/taskmanager"
)

// ErrJournalDisabled is returned when the journal has no repository.
var ErrJournalDisabled = errors.New("task journal is disabled")

// const ...
const (
	defaultBuffer        = 1024
	defaultBatchSize     = 100
	defaultFlushInterval = time.Second
	defaultRetention     = 30 * 24 * time.Hour
	flushTimeout         = 5 * time.Second
)

// Config ...
type Config struct {
	Retention       time.Duration
	CleanupSchedule string
	Buffer          int
	BatchSize       int
	FlushInterval   time.Duration
}

// Svc records ended tasks in the journal. It is a task state listener: the
// scheduler hands it every transition and it keeps the terminal ones.
type Svc struct {
	repo    journalRepo.Repository
	records chan models.TaskRecord
	now     func() time.Time
	config  Config
}

// OnStateChange queues a record for every task that ended. It never blocks
// the scheduler: records are dropped when the buffer is full.
func (s *Svc) OnStateChange(task taskmanager.Task, state models.TaskState) {
	if !state.IsEnding() {
		return
	}
	rec := taskmanager.Snapshot(task)
	rec.State = state
	rec.EndedAt = s.now()

	select {
	case s.records <- rec:
	default:
		log.WithFields(log.Fields{
			"task_id":   rec.ID,
			"task_type": rec.Type,
			"state":     state,
		}).Warn("Journal buffer full, dropping task record")
	}
}

// Run writes buffered records in batches until ctx is done, then flushes
// what is left.
func (s *Svc) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.config.FlushInterval)
	defer ticker.Stop()

	batch := make([]models.TaskRecord, 0, s.config.BatchSize)
	for {
		select {
		case <-ctx.Done():
			s.drain(&batch)
			flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			s.flush(flushCtx, &batch)
			cancel()
			return nil
		case rec := <-s.records:
			batch = append(batch, rec)
			if len(batch) >= s.config.BatchSize {
				s.flush(ctx, &batch)
			}
		case <-ticker.C:
			s.flush(ctx, &batch)
		}
	}
}

func (s *Svc) drain(batch *[]models.TaskRecord) {
	for {
		select {
		case rec := <-s.records:
			*batch = append(*batch, rec)
		default:
			return
		}
	}
}

func (s *Svc) flush(ctx context.Context, batch *[]models.TaskRecord) {
	if len(*batch) == 0 {
		return
	}
	if err := s.repo.SaveRecords(ctx, *batch...); err != nil {
		log.WithError(err).WithField("records", len(*batch)).Error("Failed to save task records")
	} else {
		log.WithField("records", len(*batch)).Debug("Task records saved")
	}
	*batch = (*batch)[:0]
}

// Recent returns the newest records.
func (s *Svc) Recent(ctx context.Context, limit int) ([]models.TaskRecord, error) {
	if s == nil || s.repo == nil {
		return nil, ErrJournalDisabled
	}
	return s.repo.RecentRecords(ctx, limit)
}

// Cleanup deletes records older than the retention period.
func (s *Svc) Cleanup(ctx context.Context) (int64, error) {
	olderThan := s.now().Add(-s.config.Retention)
	count, err := s.repo.DeleteRecordsOlderThan(ctx, olderThan)
	if err != nil {
		return 0, err
	}
	log.WithFields(log.Fields{
		"deleted":    count,
		"older_than": olderThan,
	}).Info("Task journal cleaned up")
	return count, nil
}

// RunCleanup runs Cleanup on the configured cron schedule until ctx is done.
func (s *Svc) RunCleanup(ctx context.Context) error {
	if s.config.CleanupSchedule == "" {
		<-ctx.Done()
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(s.config.CleanupSchedule, func() {
		if _, err := s.Cleanup(ctx); err != nil {
			log.WithError(err).Error("Task journal cleanup failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", s.config.CleanupSchedule, err)
	}

	c.Start()
	log.WithField("schedule", s.config.CleanupSchedule).Info("Journal cleanup scheduled")
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// NewJournalSvc ...
func NewJournalSvc(repo journalRepo.Repository, config Config) *Svc {
	if config.Buffer <= 0 {
		config.Buffer = defaultBuffer
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaultBatchSize
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = defaultFlushInterval
	}
	if config.Retention <= 0 {
		config.Retention = defaultRetention
	}
	return &Svc{
		repo:    repo,
		records: make(chan models.TaskRecord, config.Buffer),
		now:     time.Now,
		config:  config,
	}
}
