package handler

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

const readyTimeout = 2 * time.Second

// Version is overridden at build time with -ldflags.
var Version = "0.1.0"

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyCheck is an optional dependency probed by /ready.
type ReadyCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

type HealthHandler struct {
	checks []ReadyCheck
}

// NewHealthHandler probes db (when non-nil) under the name "database",
// followed by extra.
func NewHealthHandler(db Pinger, extra ...ReadyCheck) *HealthHandler {
	var checks []ReadyCheck
	if db != nil {
		checks = append(checks, ReadyCheck{Name: "database", Ping: db.Ping})
	}
	return &HealthHandler{checks: append(checks, extra...)}
}

type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{Status: "ok", Version: Version})
}

// Ready fails with 503 naming every dependency that did not answer.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readyTimeout)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	var down []string
	var firstErr error
	for _, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			results[check.Name] = "down"
			down = append(down, check.Name)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		results[check.Name] = "ok"
	}

	if len(down) > 0 {
		return &domain.AppError{
			Code:       "NOT_READY",
			Message:    "Unreachable: " + strings.Join(down, ", "),
			StatusCode: fiber.StatusServiceUnavailable,
			Err:        firstErr,
		}
	}
	return c.JSON(HealthResponse{Status: "ready", Checks: results})
}
