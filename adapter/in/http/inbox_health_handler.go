package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"inbox_server/pkg/metrics"
)

// HealthChecker is anything the readiness probe can ping.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthCheckFunc adapts a ping function to HealthChecker.
type HealthCheckFunc func(ctx context.Context) error

func (f HealthCheckFunc) Ping(ctx context.Context) error { return f(ctx) }

// BreakerReporter exposes a circuit breaker state ("closed", "half-open", "open").
type BreakerReporter interface {
	CircuitState() string
}

type HealthHandler struct {
	checks   map[string]HealthChecker
	breakers map[string]BreakerReporter
	timings  *metrics.Stages
	pools    map[string]func() any
}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{
		checks:   make(map[string]HealthChecker),
		breakers: make(map[string]BreakerReporter),
		pools:    make(map[string]func() any),
	}
}

// WithCheck adds a dependency that must answer a ping for /ready to pass.
// A nil checker is reported as "not configured".
func (h *HealthHandler) WithCheck(name string, checker HealthChecker) *HealthHandler {
	h.checks[name] = checker
	return h
}

// WithBreaker adds a circuit breaker whose open state fails /ready.
func (h *HealthHandler) WithBreaker(name string, b BreakerReporter) *HealthHandler {
	if b != nil {
		h.breakers[name] = b
	}
	return h
}

// WithTimings exposes pipeline stage timings on /metrics.
func (h *HealthHandler) WithTimings(t *metrics.Stages) *HealthHandler {
	h.timings = t
	return h
}

// WithPoolStats adds a connection pool snapshot to /metrics.
func (h *HealthHandler) WithPoolStats(name string, snapshot func() any) *HealthHandler {
	if snapshot != nil {
		h.pools[name] = snapshot
	}
	return h
}

func (h *HealthHandler) Register(app *fiber.App) {
	app.Get("/health", h.Health)
	app.Get("/ready", h.Ready)
	app.Get("/metrics", h.Metrics)
}

func (h *HealthHandler) Metrics(c *fiber.Ctx) error {
	stages := map[string]metrics.Summary{}
	if h.timings != nil {
		stages = h.timings.Snapshot()
	}
	pools := make(map[string]any, len(h.pools))
	for name, snapshot := range h.pools {
		pools[name] = snapshot()
	}
	return c.JSON(fiber.Map{"stages": stages, "pools": pools})
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.checks)+len(h.breakers))
	allHealthy := true

	for name, checker := range h.checks {
		if checker == nil {
			checks[name] = "not configured"
			continue
		}
		if err := checker.Ping(ctx); err != nil {
			checks[name] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			checks[name] = "healthy"
		}
	}

	for name, b := range h.breakers {
		state := b.CircuitState()
		checks[name] = "circuit " + state
		if state == "open" {
			allHealthy = false
		}
	}

	status := "ready"
	statusCode := fiber.StatusOK
	if !allHealthy {
		status = "not ready"
		statusCode = fiber.StatusServiceUnavailable
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
