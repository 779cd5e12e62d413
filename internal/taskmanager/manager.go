package taskmanager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"radioqueue/internal/dispatch"
	"radioqueue/internal/models"
	"radioqueue/internal/radio"
)

// const ...
const (
	defaultTaskTimeout = 12500 * time.Millisecond
	defaultResetSettle = 500 * time.Millisecond
)

// Config ...
type Config struct {
	Registerer         prometheus.Registerer
	ConnectFailHandler ConnectFailHandler
	MetricsNamespace   string
	MetricsSubsystem   string
	TickInterval       time.Duration
	TaskTimeout        time.Duration
	DelayBetweenTasks  time.Duration
	ResetSettle        time.Duration
	RetryPriority      models.Priority
	ResetPolicy        ResetPolicy
	ForceMainThread    bool
}

// Manager owns the task queue, its driver and the connect retry policy, and
// builds tasks against one radio binding.
type Manager struct {
	binding radio.Binding
	poster  dispatch.Poster
	queue   *Queue
	driver  *Driver
	reset   *resetSequence
	config  Config
	resetMu sync.Mutex
}

// Queue ...
func (m *Manager) Queue() *Queue {
	return m.queue
}

// AddListener registers a listener for every task's transitions.
func (m *Manager) AddListener(listener StateListener) {
	m.queue.AddListener(listener)
}

// Add enqueues a task built elsewhere.
func (m *Manager) Add(task Task) error {
	return m.queue.Add(task)
}

// Delay enqueues a CRITICAL pause of d.
func (m *Manager) Delay(d time.Duration, listener StateListener) (*DelayTask, error) {
	t := NewDelayTask(d, listener)
	if err := m.queue.Add(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Connect enqueues a first connect attempt to address. Failed attempts are
// retried according to the configured ConnectFailHandler.
func (m *Manager) Connect(address string, opts ConnectOptions, listener StateListener) (*ConnectTask, error) {
	if address == "" {
		return nil, errors.New("address is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = m.config.TaskTimeout
	}
	t := NewConnectTask(m.binding, address, opts, listener)
	if err := m.queue.Add(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Disconnect enqueues a CRITICAL forced disconnect from address.
func (m *Manager) Disconnect(address string, listener StateListener) (*DisconnectTask, error) {
	if address == "" {
		return nil, errors.New("address is required")
	}
	t := NewDisconnectTask(m.binding, address, m.config.TaskTimeout, listener)
	if err := m.queue.Add(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Read enqueues a characteristic read; the result reaches listener through
// the configured delivery policy.
func (m *Manager) Read(address, charUUID string, opts ReadWriteOptions, listener dispatch.ReadWriteListener) (*ReadWriteTask, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = m.config.TaskTimeout
	}
	t := NewReadTask(m.binding, address, charUUID, opts, m.wrapReadWrite(listener), nil)
	if err := m.queue.Add(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Write enqueues a characteristic write.
func (m *Manager) Write(address, charUUID string, data []byte, opts ReadWriteOptions, listener dispatch.ReadWriteListener) (*ReadWriteTask, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = m.config.TaskTimeout
	}
	t := NewWriteTask(m.binding, address, charUUID, data, opts, m.wrapReadWrite(listener), nil)
	if err := m.queue.Add(t); err != nil {
		return nil, err
	}
	return t, nil
}

func (m *Manager) wrapReadWrite(listener dispatch.ReadWriteListener) *dispatch.WrappingReadWriteListener {
	return dispatch.NewReadWriteListener(listener, m.poster, m.config.ForceMainThread)
}

// Reset turns the radio off, lets it settle, factory resets it and turns it
// back on. A Reset requested while one is pending joins it: listener hears
// the outcome of the running sequence.
func (m *Manager) Reset(listener dispatch.ResetListener) error {
	m.resetMu.Lock()
	defer m.resetMu.Unlock()

	if m.reset != nil {
		m.reset.listeners.AddListener(listener)
		log.Info("Reset already pending, listener attached")
		return nil
	}

	seq := newResetSequence(m, dispatch.NewResetListener(listener, m.poster, m.config.ForceMainThread))
	m.reset = seq
	if err := seq.enqueue(); err != nil {
		// resetMu is held, so end the sequence here rather than through finish.
		seq.done.Store(true)
		m.reset = nil
		seq.abort()
		return fmt.Errorf("failed to enqueue reset sequence: %w", err)
	}
	log.Info("Reset sequence enqueued")
	return nil
}

func (m *Manager) resetFinished(seq *resetSequence) {
	m.resetMu.Lock()
	defer m.resetMu.Unlock()
	if m.reset == seq {
		m.reset = nil
	}
}

// Start runs the scheduler loop until Stop is called or ctx is done.
func (m *Manager) Start(ctx context.Context) error {
	return m.driver.Run(ctx)
}

// Stop ends the scheduler loop. In-flight tasks are not interrupted.
func (m *Manager) Stop() {
	m.driver.Stop()
}

// DefaultConfig ...
func DefaultConfig() Config {
	return Config{
		TickInterval:    DefaultTickInterval,
		TaskTimeout:     defaultTaskTimeout,
		ResetSettle:     defaultResetSettle,
		RetryPriority:   models.PriorityForExplicitBondingAndConnecting,
		ResetPolicy:     ResetPolicyBestEffort,
		ForceMainThread: true,
	}
}

// NewManager ...
func NewManager(binding radio.Binding, poster dispatch.Poster, config Config) (*Manager, error) {
	if binding == nil {
		return nil, errors.New("radio binding is required")
	}
	if config.TickInterval <= 0 {
		return nil, errors.New("TickInterval must be greater than 0")
	}
	if config.DelayBetweenTasks < 0 {
		return nil, errors.New("DelayBetweenTasks must not be negative")
	}
	if !config.RetryPriority.Valid() {
		return nil, fmt.Errorf("RetryPriority: %w", models.ErrInvalidPriority)
	}
	if config.ForceMainThread && poster == nil {
		return nil, errors.New("a poster is required when ForceMainThread is set")
	}

	metrics, err := NewMetrics(config.Registerer, config.MetricsNamespace, config.MetricsSubsystem)
	if err != nil {
		return nil, err
	}

	queue := NewQueue(metrics)
	queue.SetDelayBetweenTasks(config.DelayBetweenTasks)
	queue.AddListener(NewRetrier(queue, config.ConnectFailHandler, config.RetryPriority, metrics))

	return &Manager{
		binding: binding,
		poster:  poster,
		queue:   queue,
		driver:  NewDriver(queue, config.TickInterval),
		config:  config,
	}, nil
}
