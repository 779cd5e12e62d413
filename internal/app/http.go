package app

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fasthttp/router"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"radioqueue/internal/dispatch"
	"radioqueue/internal/models"
	journalSvc "radioqueue/internal/service/journal"
	"radioqueue/internal/taskmanager"
)

const (
	defaultJournalLimit = 50
	maxJournalLimit     = 1000
	journalReadTimeout  = 5 * time.Second
)

// Scheduler is the part of the task manager the HTTP surface uses.
type Scheduler interface {
	Queue() *taskmanager.Queue
	Reset(listener dispatch.ResetListener) error
	Disconnect(address string, listener taskmanager.StateListener) (*taskmanager.DisconnectTask, error)
}

// JournalReader ...
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]models.TaskRecord, error)
}

type statusResponse struct {
	Current *models.TaskRecord `json:"current,omitempty"`
	Pending int                `json:"pending"`
	Ticks   uint64             `json:"ticks"`
}

type httpHandlers struct {
	scheduler Scheduler
	journal   JournalReader
}

func (h *httpHandlers) status(ctx *fasthttp.RequestCtx) {
	q := h.scheduler.Queue()
	resp := statusResponse{
		Pending: q.Len(),
		Ticks:   q.UpdateCount(),
	}
	if current := q.Current(); current != nil {
		rec := taskmanager.Snapshot(current)
		resp.Current = &rec
	}
	writeJSON(ctx, fasthttp.StatusOK, resp)
}

func (h *httpHandlers) reset(ctx *fasthttp.RequestCtx) {
	err := h.scheduler.Reset(dispatch.ResetListenerFunc(func(e models.ResetEvent) {
		entry := log.WithField("progress", e.Progress)
		if e.Err != nil {
			entry.WithError(e.Err).Warn("Radio reset finished")
			return
		}
		entry.Info("Radio reset finished")
	}))
	if err != nil {
		writeJSON(ctx, fasthttp.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	ctx.SetStatusCode(fasthttp.StatusAccepted)
}

func (h *httpHandlers) disconnect(ctx *fasthttp.RequestCtx) {
	address, _ := ctx.UserValue("address").(string)
	task, err := h.scheduler.Disconnect(address, nil)
	if err != nil {
		writeJSON(ctx, fasthttp.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(ctx, fasthttp.StatusAccepted, taskmanager.Snapshot(task))
}

func (h *httpHandlers) recentTasks(ctx *fasthttp.RequestCtx) {
	limit := defaultJournalLimit
	if ctx.QueryArgs().Has("limit") {
		n, err := ctx.QueryArgs().GetUint("limit")
		if err != nil || n == 0 || n > maxJournalLimit {
			writeJSON(ctx, fasthttp.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 1000"})
			return
		}
		limit = n
	}

	if h.journal == nil {
		writeJSON(ctx, fasthttp.StatusServiceUnavailable, map[string]string{"error": journalSvc.ErrJournalDisabled.Error()})
		return
	}

	readCtx, cancel := context.WithTimeout(context.Background(), journalReadTimeout)
	defer cancel()
	records, err := h.journal.Recent(readCtx, limit)
	switch {
	case errors.Is(err, journalSvc.ErrJournalDisabled):
		writeJSON(ctx, fasthttp.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	case err != nil:
		log.WithError(err).Error("Failed to read task journal")
		writeJSON(ctx, fasthttp.StatusInternalServerError, map[string]string{"error": "failed to read task journal"})
	default:
		if records == nil {
			records = []models.TaskRecord{}
		}
		writeJSON(ctx, fasthttp.StatusOK, records)
	}
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, body interface{}) {
	data, err := json.Marshal(body)
	if err != nil {
		ctx.Error("failed to encode response", fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(data)
}

func newRouter(scheduler Scheduler, journal JournalReader) *router.Router {
	h := &httpHandlers{scheduler: scheduler, journal: journal}

	r := router.New()
	r.GET("/metrics", fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()))
	r.GET("/status", h.status)
	r.GET("/tasks", h.recentTasks)
	r.POST("/reset", h.reset)
	r.POST("/devices/{address}/disconnect", h.disconnect)
	return r
}
