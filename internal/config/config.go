package config

import (
	"fmt"
	"time"
)

// Log ...
type Log struct {
	Level string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=trace debug info warn warning error fatal panic"`
}

// Scheduler ...
type Scheduler struct {
	TickInterval time.Duration `envconfig:"SCHEDULER_TICK_INTERVAL" default:"1ms" validate:"gt=0"`
	TaskTimeout  time.Duration `envconfig:"SCHEDULER_TASK_TIMEOUT" default:"12500ms" validate:"gt=0"`
	// DelayBetweenTasks is the idle gap after a task ends. Zero disables it.
	DelayBetweenTasks time.Duration `envconfig:"SCHEDULER_DELAY_BETWEEN_TASKS" default:"0s" validate:"gte=0"`
}

// Retry configures what happens to failed connects.
type Retry struct {
	Priority            string   `envconfig:"RETRY_PRIORITY" default:"medium" validate:"oneof=trivial low medium high critical"`
	NeverRetry          []string `envconfig:"RETRY_NEVER"`
	MaxAttempts         int      `envconfig:"RETRY_MAX_ATTEMPTS" default:"3" validate:"min=1"`
	AutoconnectFallback bool     `envconfig:"RETRY_AUTOCONNECT_FALLBACK" default:"false"`
}

// Dispatch configures result delivery to the designated goroutine.
type Dispatch struct {
	Buffer    int  `envconfig:"DISPATCH_BUFFER" default:"256" validate:"min=1"`
	ForceMain bool `envconfig:"DISPATCH_FORCE_MAIN" default:"true"`
}

// Radio ...
type Radio struct {
	Adapter     string        `envconfig:"RADIO_ADAPTER" default:"hci0" validate:"required"`
	ResetPolicy string        `envconfig:"RADIO_RESET_POLICY" default:"best_effort" validate:"oneof=best_effort strict"`
	ResetSettle time.Duration `envconfig:"RADIO_RESET_SETTLE" default:"500ms" validate:"gte=0"`
}

// DB is only required when the task journal is enabled.
type DB struct {
	Host string `envconfig:"DB_HOST" validate:"required_if=Enabled true"`
	Port uint64 `envconfig:"DB_PORT" validate:"required_if=Enabled true"`

	UserName string `envconfig:"DB_USER_NAME" validate:"required_if=Enabled true"`
	Password string `envconfig:"DB_PASSWORD" validate:"required_if=Enabled true"`
	DataBase string `envconfig:"DB_NAME" validate:"required_if=Enabled true"`

	Enabled bool `envconfig:"DB_ENABLED" default:"false"`
}

// Journal ...
type Journal struct {
	CleanupSchedule string        `envconfig:"JOURNAL_CLEANUP_SCHEDULE" default:"@hourly"`
	Retention       time.Duration `envconfig:"JOURNAL_RETENTION" default:"720h" validate:"gt=0"`
	FlushInterval   time.Duration `envconfig:"JOURNAL_FLUSH_INTERVAL" default:"1s" validate:"gt=0"`
	Buffer          int           `envconfig:"JOURNAL_BUFFER" default:"1024" validate:"min=1"`
	BatchSize       int           `envconfig:"JOURNAL_BATCH_SIZE" default:"100" validate:"min=1"`
}

// Metrics ...
type Metrics struct {
	Port      string `envconfig:"METRICS_PORT" default:"9090"`
	Namespace string `envconfig:"METRICS_NAMESPACE" default:"system"`
	Subsystem string `envconfig:"METRICS_SUBSYSTEM" default:"radioqueue"`
}

type System struct {
	ReadTimeout    time.Duration `envconfig:"READ_TIMEOUT" default:"300s"`
	ReadBufferSize int           `envconfig:"READ_BUFFER_SIZE" default:"16384"`
}

func (d DB) Address() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

// DSN ...
func (d DB) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
		d.UserName, d.Password, d.Address(), d.DataBase)
}

type Config struct {
	Log       Log
	Scheduler Scheduler
	Retry     Retry
	Dispatch  Dispatch
	Radio     Radio
	DB        DB
	Journal   Journal
	Metrics   Metrics
	System    System
}
