package api

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Omdevsinh-Zala/chat-backend/internal/auth"
)

const localUserID = "userID"

// requireAuth guards REST routes on the access token. An expired access
// token paired with a still-valid refresh token gets a pointed 401 telling
// the client which recovery path to take; rotation itself only happens at
// /auth/refresh.
func (s *Server) requireAuth(c *fiber.Ctx) error {
	access := bearerToken(c)
	if access == "" {
		access = c.Cookies("access_token")
	}
	refresh := c.Cookies("refresh_token")

	if access == "" && refresh == "" {
		return fail(c, fiber.StatusUnauthorized, "authentication required, no tokens provided")
	}

	if access != "" {
		claims, err := s.tokens.ParseAccess(access)
		if err == nil {
			c.Locals(localUserID, claims.UserID)
			return c.Next()
		}
		if !errors.Is(err, auth.ErrTokenExpired) {
			return fail(c, fiber.StatusUnauthorized, "authentication failed, login again")
		}
	}

	// Access token absent or expired: a valid refresh token proves the
	// session is still alive, so point the client at the refresh route.
	if refresh != "" {
		if _, err := s.tokens.ParseRefresh(refresh); err == nil {
			return fail(c, fiber.StatusUnauthorized, "access expired, please refresh token via /auth/refresh")
		}
	}
	return fail(c, fiber.StatusUnauthorized, "authentication failed, login again")
}

func bearerToken(c *fiber.Ctx) string {
	h := c.Get(fiber.HeaderAuthorization)
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func userIDFrom(c *fiber.Ctx) string {
	id, _ := c.Locals(localUserID).(string)
	return id
}
