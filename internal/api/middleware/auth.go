package middleware

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
	"github.com/saturnino-fabrica-de-software/ponto/internal/ws"
)

const (
	// LocalTerminalID is the key to retrieve terminal_id from context
	LocalTerminalID = "terminal_id"
	// LocalTerminal is the key to retrieve the full terminal from context
	LocalTerminal = "terminal"
	// LocalLocationID holds the location of the authenticated terminal
	LocalLocationID = ws.LocalLocationID
)

// TerminalRepository interface for terminal lookup
type TerminalRepository interface {
	GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*domain.Terminal, error)
}

// LastSeenRecorder is notified of every authenticated request.
type LastSeenRecorder interface {
	Enqueue(terminalID uuid.UUID)
}

type AuthDependencies struct {
	Terminals TerminalRepository
	Logger    *slog.Logger
	LastSeen  LastSeenRecorder
}

// Auth authenticates kiosks by API key
func Auth(deps AuthDependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := extractBearerToken(c)
		if apiKey == "" {
			return domain.ErrUnauthorized
		}

		terminal, err := deps.Terminals.GetByAPIKeyHash(c.Context(), HashAPIKey(apiKey))
		if err != nil {
			// Don't reveal whether the key exists
			if deps.Logger != nil && !errors.Is(err, domain.ErrTerminalNotFound) {
				deps.Logger.Warn("terminal lookup failed", slog.String("error", err.Error()))
			}
			return domain.ErrUnauthorized
		}

		if !terminal.IsActive {
			return domain.ErrUnauthorized
		}

		c.Locals(LocalTerminalID, terminal.ID)
		c.Locals(LocalTerminal, terminal)
		c.Locals(LocalLocationID, terminal.LocationID)

		if deps.LastSeen != nil {
			deps.LastSeen.Enqueue(terminal.ID)
		}

		return c.Next()
	}
}

// extractBearerToken extracts token from Authorization header
func extractBearerToken(c *fiber.Ctx) string {
	auth := c.Get("Authorization")
	if auth == "" {
		return ""
	}

	// Expected format: "Bearer <token>"
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// HashAPIKey returns the hex SHA-256 stored in terminals.api_key_hash.
func HashAPIKey(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(hash[:])
}

const apiKeyPrefix = "ponto_"

// GenerateAPIKey returns a new terminal key and the hash to store. The key
// itself is shown once and never persisted.
func GenerateAPIKey() (key, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate api key: %w", err)
	}
	key = apiKeyPrefix + hex.EncodeToString(buf)
	return key, HashAPIKey(key), nil
}

func GetTerminalID(c *fiber.Ctx) (uuid.UUID, error) {
	terminalID, ok := c.Locals(LocalTerminalID).(uuid.UUID)
	if !ok {
		return uuid.Nil, domain.ErrUnauthorized
	}
	return terminalID, nil
}

func GetTerminal(c *fiber.Ctx) (*domain.Terminal, error) {
	terminal, ok := c.Locals(LocalTerminal).(*domain.Terminal)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	return terminal, nil
}
