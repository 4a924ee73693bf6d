package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"hordesdk/core"
	"hordesdk/logging"
)

// Manager coordinates the worker's graceful shutdown: it owns the
// run context, tracks in-flight generations, runs the cleanup registry
// in order, and escalates on a second signal.
//
// Usage:
//
//	manager := NewManager(logger, 60*time.Second)
//	manager.Register("audit-db", 20, func(ctx context.Context) error {
//	    return store.Close()
//	})
//	manager.Start()
//
//	<-manager.Context().Done()
//	os.Exit(manager.Shutdown())
type Manager struct {
	logger  *logging.Logger
	timeout time.Duration

	mu       sync.Mutex
	started  bool
	shutdown bool
	exitCode int

	ctx    context.Context
	cancel context.CancelFunc

	tracker  *GenerationTracker
	registry *Registry
	signals  *SignalCounter
	sigChan  chan os.Signal
}

// NewManager creates a Manager. timeout bounds both draining in-flight
// generations and the cleanup registry; zero means 60 seconds.
func NewManager(logger *logging.Logger, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		logger:   logger,
		timeout:  timeout,
		ctx:      ctx,
		cancel:   cancel,
		tracker:  NewGenerationTracker(),
		registry: NewRegistry(),
		exitCode: core.ExitCodeSuccess,
	}
	m.signals = NewSignalCounter(2, func() {
		logger.Error("second signal received, forcing exit")
		os.Exit(core.ExitCodeSIGINT)
	})
	return m
}

// Context returns the run context, cancelled when shutdown begins.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Tracker returns the in-flight generation tracker.
func (m *Manager) Tracker() *GenerationTracker {
	return m.tracker
}

// Register adds a cleanup step; see Registry for the priority
// convention.
func (m *Manager) Register(name string, priority int, fn Func) {
	m.registry.Register(name, priority, fn)
}

// Start installs the SIGINT/SIGTERM handler. The first signal cancels
// the run context and records the matching exit code; the second forces
// exit.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true

	m.sigChan = make(chan os.Signal, 1)
	signal.Notify(m.sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		for sig := range m.sigChan {
			count := m.signals.Increment()
			if count > 1 {
				continue
			}
			m.logger.Infow("shutdown signal received, draining", "signal", sig.String())
			m.mu.Lock()
			if sig == syscall.SIGTERM {
				m.exitCode = core.ExitCodeSIGTERM
			} else {
				m.exitCode = core.ExitCodeSIGINT
			}
			m.mu.Unlock()
			m.cancel()
		}
	}()
}

// Trigger begins shutdown programmatically, as if a signal had arrived.
func (m *Manager) Trigger() {
	m.cancel()
}

// Shutdown drains in-flight generations, runs the cleanup registry, and
// returns the process exit code. Safe to call once; later calls return
// the recorded exit code without re-running cleanup.
func (m *Manager) Shutdown() int {
	m.mu.Lock()
	if m.shutdown {
		code := m.exitCode
		m.mu.Unlock()
		return code
	}
	m.shutdown = true
	m.mu.Unlock()

	m.cancel()
	if m.sigChan != nil {
		signal.Stop(m.sigChan)
	}

	m.tracker.StartDraining()
	if err := m.tracker.Drain(m.timeout); err != nil {
		m.logger.Warnw("generations still in flight at drain timeout",
			"active", m.tracker.Active())
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	failures := m.registry.Run(ctx)
	for _, failure := range failures {
		m.logger.Errorw("cleanup step failed",
			"step", failure.Name, "error", failure.Err.Error())
	}

	m.mu.Lock()
	if len(failures) > 0 && m.exitCode == core.ExitCodeSuccess {
		m.exitCode = core.ExitCodeError
	}
	code := m.exitCode
	m.mu.Unlock()
	return code
}
