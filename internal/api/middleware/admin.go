package middleware

import (
	"crypto/subtle"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

const (
	// AdminKeyHeader carries the shared administrative key
	AdminKeyHeader = "X-Admin-Key"
	// LocalAdmin is set once the admin key was accepted
	LocalAdmin = "admin"
)

// AdminKey protects administrative routes. It must be chained after Auth:
// admin calls come from an authenticated terminal plus the admin key.
func AdminKey(adminKey string, logger *slog.Logger) fiber.Handler {
	expected := []byte(adminKey)

	return func(c *fiber.Ctx) error {
		if len(expected) == 0 {
			logger.Error("admin key not configured")
			return domain.ErrForbidden
		}

		provided := c.Get(AdminKeyHeader)
		if provided == "" {
			return domain.ErrUnauthorized
		}

		if subtle.ConstantTimeCompare([]byte(provided), expected) != 1 {
			terminalID, _ := GetTerminalID(c)
			logger.Warn("invalid admin key",
				slog.String("terminal_id", terminalID.String()),
				slog.String("ip", c.IP()),
			)
			return domain.ErrForbidden
		}

		c.Locals(LocalAdmin, true)
		return c.Next()
	}
}

func IsAdmin(c *fiber.Ctx) bool {
	admin, ok := c.Locals(LocalAdmin).(bool)
	return ok && admin
}
