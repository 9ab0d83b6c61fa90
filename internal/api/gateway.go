package api

import (
	fasthttpws "github.com/fasthttp/websocket"
	"github.com/gofiber/contrib/v3/websocket"
	"github.com/gofiber/fiber/v3"

	"github.com/irc-ultra/ircultra/internal/config"
	"github.com/irc-ultra/ircultra/internal/gateway"
	"github.com/irc-ultra/ircultra/internal/wire"
)

// GatewayHandler serves the WebSocket upgrade endpoints for both transports:
// the native JSON-envelope gateway and the classical line-oriented wire.
type GatewayHandler struct {
	cfg  *config.Config
	hub  *gateway.Hub
	wire *wire.Adaptor
}

// NewGatewayHandler creates a new gateway handler.
func NewGatewayHandler(cfg *config.Config, hub *gateway.Hub, adaptor *wire.Adaptor) *GatewayHandler {
	return &GatewayHandler{cfg: cfg, hub: hub, wire: adaptor}
}

// Chat handles GET /ws/chat. It upgrades the HTTP connection to a WebSocket
// and hands it to the Hub as a native session.
func (h *GatewayHandler) Chat(c fiber.Ctx) error {
	return h.upgrade(c, h.hub.ServeChat)
}

// Wire handles GET /webirc. It upgrades the HTTP connection to a WebSocket
// and hands it to the classical adaptor.
func (h *GatewayHandler) Wire(c fiber.Ctx) error {
	return h.upgrade(c, h.wire.Serve)
}

func (h *GatewayHandler) upgrade(c fiber.Ctx, serve func(*fasthttpws.Conn, string)) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	if !gateway.OriginAllowed(c.Get(fiber.HeaderOrigin), h.cfg.AllowedOrigins) {
		return fiber.ErrForbidden
	}
	// The fiber context is recycled once the handler returns, so resolve the
	// client address before the hijack.
	ip := gateway.ClientIP(func(key string) string { return c.Get(key) }, c.IP())
	return websocket.New(func(conn *websocket.Conn) {
		serve(conn.Conn, ip)
	})(c)
}
