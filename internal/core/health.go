package core

import (
	"context"
	"sync"
	"time"

	"github.com/coregx/norm/internal/logger"
)

// healthChecker periodically verifies the connection and reconnects when
// it was lost. It runs only when enabled with WithHealthCheck.
type healthChecker struct {
	check    func(ctx context.Context) error
	logger   logger.Logger
	interval time.Duration
	timeout  time.Duration
	stop     chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
	mu       sync.RWMutex
	lastErr  error
	lastPing time.Time
}

// newHealthChecker creates a health checker that calls check at the specified interval.
func newHealthChecker(check func(ctx context.Context) error, log logger.Logger, interval time.Duration) *healthChecker {
	return &healthChecker{
		check:    check,
		logger:   log,
		interval: interval,
		timeout:  5 * time.Second,
		stop:     make(chan struct{}),
	}
}

// start begins the health check loop in a background goroutine.
func (h *healthChecker) start() {
	h.wg.Add(1)
	go h.run()
}

func (h *healthChecker) run() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.ping()
		case <-h.stop:
			return
		}
	}
}

// ping performs a single health check.
func (h *healthChecker) ping() {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	err := h.check(ctx)

	h.mu.Lock()
	h.lastErr = err
	h.lastPing = time.Now()
	h.mu.Unlock()

	if err != nil {
		h.logger.Warn("database health check failed",
			"error", err,
			"interval", h.interval)
	} else {
		h.logger.Debug("database health check passed",
			"interval", h.interval)
	}
}

// shutdown halts the health checker and waits for it to finish.
// It is safe to call more than once.
func (h *healthChecker) shutdown() {
	h.once.Do(func() { close(h.stop) })
	h.wg.Wait()
}

// isHealthy returns true if the last health check was successful.
func (h *healthChecker) isHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastErr == nil
}

// lastError returns the error from the most recent health check.
func (h *healthChecker) lastError() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastErr
}

// lastCheck returns the time of the most recent health check.
func (h *healthChecker) lastCheck() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastPing
}
