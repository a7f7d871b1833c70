package api

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Omdevsinh-Zala/chat-backend/internal/apperr"
	"github.com/Omdevsinh-Zala/chat-backend/internal/models"
)

type registerReq struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

func (s *Server) register(c *fiber.Ctx) error {
	var req registerReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return fail(c, fiber.StatusBadRequest, "username and password are required")
	}
	if len(req.Password) < 8 {
		return fail(c, fiber.StatusBadRequest, "password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to create account")
	}
	user := &models.User{
		ID:           uuid.NewString(),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
	}
	// The unique index is the real duplicate guard; racing registrations
	// surface here as a conflict.
	if err := s.users.Create(c.Context(), user); err != nil {
		return failErr(c, err)
	}
	return ok(c, fiber.StatusCreated, "account created", fiber.Map{"user": user})
}

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) login(c *fiber.Ctx) error {
	var req loginReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	user, err := s.users.FindByUsername(c.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		// NotFound and bad password collapse into one message so login
		// failures never confirm which usernames exist.
		if apperr.KindOf(err) == apperr.KindNotFound {
			return fail(c, fiber.StatusUnauthorized, "invalid username or password")
		}
		return failErr(c, err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return fail(c, fiber.StatusUnauthorized, "invalid username or password")
	}
	return s.issueTokens(c, user, "logged in")
}

func (s *Server) refresh(c *fiber.Ctx) error {
	refresh := c.Cookies("refresh_token")
	if refresh == "" {
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		_ = c.BodyParser(&body)
		refresh = body.RefreshToken
	}
	if refresh == "" {
		return fail(c, fiber.StatusUnauthorized, "refresh token required")
	}
	claims, err := s.tokens.ParseRefresh(refresh)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "authentication failed, login again")
	}
	user, err := s.users.FindByID(c.Context(), claims.UserID)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "authentication failed, login again")
	}
	return s.issueTokens(c, user, "tokens refreshed")
}

func (s *Server) logout(c *fiber.Ctx) error {
	expireCookie(c, "access_token")
	expireCookie(c, "refresh_token")
	return ok(c, fiber.StatusOK, "logged out", nil)
}

func (s *Server) usernameAvailable(c *fiber.Ctx) error {
	username := strings.TrimSpace(c.Query("username"))
	if username == "" {
		return fail(c, fiber.StatusBadRequest, "username query parameter is required")
	}
	taken, err := s.users.UsernameTaken(c.Context(), username)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, fiber.StatusOK, "", fiber.Map{"available": !taken})
}

// issueTokens signs a fresh pair and sets both cookies. Tokens are also
// returned in the body for non-browser clients.
func (s *Server) issueTokens(c *fiber.Ctx, user *models.User, msg string) error {
	access, accessExp, err := s.tokens.GenerateAccessToken(user.ID)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to issue tokens")
	}
	refresh, refreshExp, err := s.tokens.GenerateRefreshToken(user.ID)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to issue tokens")
	}
	setTokenCookie(c, "access_token", access, accessExp)
	setTokenCookie(c, "refresh_token", refresh, refreshExp)
	return ok(c, fiber.StatusOK, msg, fiber.Map{
		"user":          user,
		"access_token":  access,
		"refresh_token": refresh,
	})
}

func setTokenCookie(c *fiber.Ctx, name, value string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Expires:  expires,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/",
	})
}

func expireCookie(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		Path:     "/",
	})
}
