package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/Omdevsinh-Zala/chat-backend/internal/apperr"
	"github.com/Omdevsinh-Zala/chat-backend/internal/ws"
)

// wsUpgrade rejects plain HTTP on the socket route and stashes the tokens
// before the protocol switch, after which cookies are no longer reachable.
func wsUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	access := c.Query("token")
	if access == "" {
		access = c.Cookies("access_token")
	}
	c.Locals("accessToken", access)
	c.Locals("refreshToken", c.Cookies("refresh_token"))
	return c.Next()
}

// handleSocket owns one connection's lifecycle: handshake, registration,
// initial state push, event loop, teardown. Registration happens only after
// the handshake succeeds; an unauthenticated connection never joins a room.
func (s *Server) handleSocket(conn *websocket.Conn) {
	access, _ := conn.Locals("accessToken").(string)
	refresh, _ := conn.Locals("refreshToken").(string)

	session, err := s.tokens.AuthenticateSocket(access, refresh)
	if err != nil {
		if b, encErr := ws.Encode("authErrorMessage", fiber.Map{
			"message": apperr.MessageOf(err),
		}); encErr == nil {
			_ = conn.WriteMessage(websocket.TextMessage, b)
		}
		_ = conn.Close()
		return
	}

	ctx := context.Background()
	client := ws.NewClient(conn, session.UserID, session.ExpiresAt, s.rps)
	first := s.hub.Register(client)

	go client.WritePump()
	s.chat.Admit(ctx, client, first)

	client.ReadPump(func(c *ws.Client, env ws.Envelope) {
		s.chat.HandleEvent(ctx, c, env.Type, env.Payload)
	})

	last := s.hub.Unregister(client)
	s.chat.Depart(ctx, session.UserID, last)
	client.Close()
}
