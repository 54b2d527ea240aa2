package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pulsehub/pulse-engagement-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCHER
// ══════════════════════════════════════════════════════════════════════════════

// Dispatcher connects application event handlers to the bus with a
// middleware chain. Every registered handler runs behind panic recovery,
// structured logging and a timeout, so one misbehaving handler cannot
// take down event processing for the rest.
type Dispatcher struct {
	mu          sync.RWMutex
	bus         shared.EventBus
	middlewares []Middleware
	logger      *slog.Logger
	metrics     *DispatcherMetrics
}

// DispatcherConfig contains configuration for the Dispatcher.
type DispatcherConfig struct {
	// Bus is the event bus handlers are attached to
	Bus shared.EventBus

	// Logger for structured logging
	Logger *slog.Logger

	// HandlerTimeout bounds a single handler execution (default 30s)
	HandlerTimeout time.Duration
}

// NewDispatcher creates a dispatcher with the standard middleware chain.
func NewDispatcher(config DispatcherConfig) *Dispatcher {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.HandlerTimeout <= 0 {
		config.HandlerTimeout = 30 * time.Second
	}

	d := &Dispatcher{
		bus:     config.Bus,
		logger:  config.Logger,
		metrics: NewDispatcherMetrics(),
	}

	// Outermost first: recovery wraps everything, timeout is closest to
	// the handler.
	d.middlewares = []Middleware{
		RecoveryMiddleware(config.Logger),
		LoggingMiddleware(config.Logger),
		MetricsMiddleware(d.metrics),
		TimeoutMiddleware(config.HandlerTimeout),
	}

	return d
}

// Use appends middleware to the chain for handlers registered afterwards.
func (d *Dispatcher) Use(middleware Middleware) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.middlewares = append(d.middlewares, middleware)
}

// Register attaches a named handler to the bus for an event type,
// wrapped in the middleware chain.
func (d *Dispatcher) Register(eventType shared.EventType, name string, handler shared.EventHandler) error {
	if handler == nil {
		return ErrNilHandler
	}

	d.mu.RLock()
	wrapped := handler
	for i := len(d.middlewares) - 1; i >= 0; i-- {
		wrapped = d.middlewares[i](wrapped)
	}
	d.mu.RUnlock()

	named := func(event shared.Event) error {
		if err := wrapped(event); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	}

	return d.bus.Subscribe(eventType, named)
}

// Metrics returns dispatcher metrics.
func (d *Dispatcher) Metrics() *DispatcherMetrics {
	return d.metrics
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// Middleware wraps handler execution.
type Middleware func(shared.EventHandler) shared.EventHandler

// RecoveryMiddleware recovers from panics in handlers.
func RecoveryMiddleware(logger *slog.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("handler panic",
						"event_type", event.EventType(),
						"aggregate_id", event.AggregateID(),
						"panic", r,
					)
					err = fmt.Errorf("handler panicked: %v", r)
				}
			}()
			return next(event)
		}
	}
}

// LoggingMiddleware logs handler execution.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) error {
			start := time.Now()
			err := next(event)
			duration := time.Since(start)

			if err != nil {
				logger.Error("event handler failed",
					"event_type", event.EventType(),
					"aggregate_id", event.AggregateID(),
					"duration", duration,
					"error", err,
				)
			} else {
				logger.Debug("event handled",
					"event_type", event.EventType(),
					"duration", duration,
				)
			}

			return err
		}
	}
}

// MetricsMiddleware collects handler metrics.
func MetricsMiddleware(metrics *DispatcherMetrics) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) error {
			start := time.Now()
			err := next(event)
			metrics.Record(event.EventType(), time.Since(start), err == nil)
			return err
		}
	}
}

// TimeoutMiddleware bounds handler execution time. The handler keeps
// running in its goroutine after the deadline; the dispatcher just stops
// waiting, which is acceptable because handlers are idempotent.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) error {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				// Recovery middleware guards the calling goroutine only;
				// a panic here must be caught before it escapes.
				defer func() {
					if r := recover(); r != nil {
						done <- fmt.Errorf("handler panicked: %v", r)
					}
				}()
				done <- next(event)
			}()

			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				return fmt.Errorf("handler timed out after %s", timeout)
			}
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// DispatcherMetrics tracks per-event-type handler outcomes.
type DispatcherMetrics struct {
	mu sync.RWMutex

	ExecutionsByType map[shared.EventType]int64
	FailuresByType   map[shared.EventType]int64
	DurationByType   map[shared.EventType]time.Duration
}

// NewDispatcherMetrics creates a new metrics tracker.
func NewDispatcherMetrics() *DispatcherMetrics {
	return &DispatcherMetrics{
		ExecutionsByType: make(map[shared.EventType]int64),
		FailuresByType:   make(map[shared.EventType]int64),
		DurationByType:   make(map[shared.EventType]time.Duration),
	}
}

// Record records one handler execution.
func (m *DispatcherMetrics) Record(eventType shared.EventType, duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ExecutionsByType[eventType]++
	m.DurationByType[eventType] += duration
	if !success {
		m.FailuresByType[eventType]++
	}
}

// FailureRate returns the failure ratio for an event type.
func (m *DispatcherMetrics) FailureRate(eventType shared.EventType) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	execs := m.ExecutionsByType[eventType]
	if execs == 0 {
		return 0
	}
	return float64(m.FailuresByType[eventType]) / float64(execs)
}
