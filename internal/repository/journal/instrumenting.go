package journal

import (
	"context"
	"strconv"
	"time"

	"github.com/go-kit/kit/metrics"

	"radioqueue/internal/models"
)

// instrumentingMiddleware wraps Repository and records call metrics
type instrumentingMiddleware struct {
	reqCount    metrics.Counter
	reqDuration metrics.Histogram
	svc         Repository
}

func (s *instrumentingMiddleware) observe(method string, startTime time.Time, err error) {
	labels := []string{
		"method", method,
		"error", strconv.FormatBool(err != nil),
	}
	s.reqCount.With(labels...).Add(1)
	s.reqDuration.With(labels...).Observe(time.Since(startTime).Seconds())
}

// SaveRecords ...
func (s *instrumentingMiddleware) SaveRecords(ctx context.Context, records ...models.TaskRecord) (err error) {
	defer func(startTime time.Time) { s.observe("SaveRecords", startTime, err) }(time.Now())
	return s.svc.SaveRecords(ctx, records...)
}

// RecentRecords ...
func (s *instrumentingMiddleware) RecentRecords(ctx context.Context, limit int) (records []models.TaskRecord, err error) {
	defer func(startTime time.Time) { s.observe("RecentRecords", startTime, err) }(time.Now())
	return s.svc.RecentRecords(ctx, limit)
}

// DeleteRecordsOlderThan ...
func (s *instrumentingMiddleware) DeleteRecordsOlderThan(ctx context.Context, olderThan time.Time) (count int64, err error) {
	defer func(startTime time.Time) { s.observe("DeleteRecordsOlderThan", startTime, err) }(time.Now())
	return s.svc.DeleteRecordsOlderThan(ctx, olderThan)
}

// NewInstrumentingMiddleware ...
func NewInstrumentingMiddleware(
	reqCount metrics.Counter,
	reqDuration metrics.Histogram,
	svc Repository,
) Repository {
	return &instrumentingMiddleware{
		reqCount:    reqCount,
		reqDuration: reqDuration,
		svc:         svc,
	}
}
