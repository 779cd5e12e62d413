package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
	"golang.org/x/sync/errgroup"

	"radioqueue/internal/config"
	"radioqueue/internal/dispatch"
	"radioqueue/internal/handlers"
	"radioqueue/internal/logger"
	"radioqueue/internal/models"
	"radioqueue/internal/radio/bluez"
	journalRepo "radioqueue/internal/repository/journal"
	journalSvc "radioqueue/internal/service/journal"
	"radioqueue/internal/taskmanager"
)

var (
	methodErrorDB = []string{"method", "error"}
)

type App struct {
	cfg *config.Config
}

func New(cfg *config.Config) App {
	return App{cfg: cfg}
}

func (app *App) Run() error {
	ctx, cancelProcesses := context.WithCancel(context.Background())
	defer cancelProcesses()

	logger.Init(app.cfg.Log.Level)

	binding, err := bluez.New(app.cfg.Radio.Adapter)
	if err != nil {
		return err
	}
	defer func() { _ = binding.Close() }()

	looper := dispatch.NewLooper(app.cfg.Dispatch.Buffer)

	managerConfig, err := app.managerConfig()
	if err != nil {
		return err
	}
	manager, err := taskmanager.NewManager(binding, looper, managerConfig)
	if err != nil {
		log.WithError(err).Error("Failed to create task manager")
		return err
	}

	var journal *journalSvc.Svc
	if app.cfg.DB.Enabled {
		db, dbErr := app.initDB(ctx)
		if dbErr != nil {
			return dbErr
		}
		defer db.Close()

		journal = journalSvc.NewJournalSvc(app.journalRepository(db), journalSvc.Config{
			Retention:       app.cfg.Journal.Retention,
			CleanupSchedule: app.cfg.Journal.CleanupSchedule,
			Buffer:          app.cfg.Journal.Buffer,
			BatchSize:       app.cfg.Journal.BatchSize,
			FlushInterval:   app.cfg.Journal.FlushInterval,
		})
		manager.AddListener(journal)
	}

	var reader JournalReader
	if journal != nil {
		reader = journal
	}
	metricsServer := &fasthttp.Server{
		Handler:            newRouter(manager, reader).Handler,
		MaxRequestBodySize: app.cfg.System.ReadBufferSize,
		ReadTimeout:        app.cfg.System.ReadTimeout,
		ReadBufferSize:     app.cfg.System.ReadBufferSize,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return ignoreCanceled(looper.Run(gctx)) })
	g.Go(func() error { return ignoreCanceled(manager.Start(gctx)) })
	if journal != nil {
		g.Go(func() error { return journal.Run(gctx) })
		g.Go(func() error { return journal.RunCleanup(gctx) })
	}

	g.Go(func() error {
		log.WithFields(log.Fields{
			"port": app.cfg.Metrics.Port,
		}).Info("starting metrics server")
		if err := metricsServer.ListenAndServe(":" + app.cfg.Metrics.Port); err != nil {
			log.WithError(err).Error("metrics server run failure")
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return metricsServer.Shutdown()
	})

	g.Go(func() error {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(c)

		select {
		case sig := <-c:
			log.WithFields(log.Fields{
				"signal": sig.String(),
			}).Info("received signal, exiting")
			cancelProcesses()
		case <-gctx.Done():
		}
		return nil
	})

	err = g.Wait()
	looper.Close()
	log.Info("goodbye")
	return err
}

func (app *App) managerConfig() (taskmanager.Config, error) {
	retryPriority, err := models.ParsePriority(app.cfg.Retry.Priority)
	if err != nil {
		return taskmanager.Config{}, err
	}
	resetPolicy, err := taskmanager.ParseResetPolicy(app.cfg.Radio.ResetPolicy)
	if err != nil {
		return taskmanager.Config{}, err
	}

	limit := taskmanager.AttemptLimitHandler{MaxAttempts: app.cfg.Retry.MaxAttempts}
	var fallback taskmanager.ConnectFailHandler = limit
	if app.cfg.Retry.AutoconnectFallback {
		fallback = handlers.AutoconnectFallbackHandler{Limit: limit}
	}
	connectFail := handlers.NewRouter(fallback)
	handlers.RegisterAllHandlers(connectFail, app.cfg.Retry.NeverRetry)

	return taskmanager.Config{
		Registerer:         prometheus.DefaultRegisterer,
		ConnectFailHandler: connectFail,
		MetricsNamespace:   app.cfg.Metrics.Namespace,
		MetricsSubsystem:   app.cfg.Metrics.Subsystem,
		TickInterval:       app.cfg.Scheduler.TickInterval,
		TaskTimeout:        app.cfg.Scheduler.TaskTimeout,
		DelayBetweenTasks:  app.cfg.Scheduler.DelayBetweenTasks,
		ResetSettle:        app.cfg.Radio.ResetSettle,
		RetryPriority:      retryPriority,
		ResetPolicy:        resetPolicy,
		ForceMainThread:    app.cfg.Dispatch.ForceMain,
	}, nil
}

func (app *App) journalRepository(db *pgxpool.Pool) journalRepo.Repository {
	dbReqCount := kitprometheus.NewCounterFrom(
		prometheus.CounterOpts{
			Namespace: app.cfg.Metrics.Namespace,
			Subsystem: app.cfg.Metrics.Subsystem,
			Name:      "db_request_count",
			Help:      "db request count",
		}, methodErrorDB,
	)
	dbReqDuration := kitprometheus.NewSummaryFrom(
		prometheus.SummaryOpts{
			Namespace: app.cfg.Metrics.Namespace,
			Subsystem: app.cfg.Metrics.Subsystem,
			Name:      "db_request_duration",
			Help:      "db request duration",
		},
		methodErrorDB,
	)

	repo := journalRepo.NewRepository(db)
	return journalRepo.NewInstrumentingMiddleware(dbReqCount, dbReqDuration, repo)
}

func (app *App) initDB(ctx context.Context) (*pgxpool.Pool, error) {
	dbpool, err := pgxpool.New(ctx, app.cfg.DB.DSN())
	if err != nil {
		log.WithError(err).Error("Unable to create connection pool")
		return nil, err
	}
	if err = journalRepo.EnsureSchema(ctx, dbpool); err != nil {
		dbpool.Close()
		return nil, err
	}
	return dbpool, nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
