package ws

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// LocalLocationID must be set by the authentication middleware before the
// upgrade.
const LocalLocationID = "location_id"

const sendBuffer = 64

// Handler subscribes the connection to its terminal's location. The first
// message is always EventConnected.
func Handler(hub *Hub) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		locationID, ok := c.Locals(LocalLocationID).(uuid.UUID)
		if !ok {
			_ = c.Close()
			return
		}

		client := &Client{
			hub:        hub,
			conn:       c,
			locationID: locationID,
			send:       make(chan []byte, sendBuffer),
		}

		if hello, err := json.Marshal(Event{
			Type:      EventConnected,
			Data:      fiber.Map{"location_id": locationID},
			Timestamp: time.Now(),
		}); err == nil {
			client.send <- hello
		}

		hub.register <- client

		go client.WritePump()
		client.ReadPump()
	})
}

// UpgradeMiddleware rejects plain HTTP requests on the websocket route.
func UpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	}
}
