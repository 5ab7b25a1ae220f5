package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

// Recover turns a panicking handler into a 500 response.
func Recover(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			terminalID, _ := GetTerminalID(c)
			logger.Error("panic in handler",
				slog.String("panic", fmt.Sprint(r)),
				slog.String("route", c.Method()+" "+c.Path()),
				slog.String("terminal_id", terminalID.String()),
				slog.String("request_id", requestID(c)),
				slog.String("stack", string(debug.Stack())),
			)
			err = writeError(c, fiber.StatusInternalServerError, domain.ErrInternal.Code, domain.ErrInternal.Message)
		}()
		return c.Next()
	}
}
