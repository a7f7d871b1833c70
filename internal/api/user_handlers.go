package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Omdevsinh-Zala/chat-backend/internal/models"
)

func (s *Server) profile(c *fiber.Ctx) error {
	user, err := s.users.FindByID(c.Context(), userIDFrom(c))
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, fiber.StatusOK, "", fiber.Map{"user": user})
}

type profileUpdateReq struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	AvatarURL string `json:"avatarUrl"`
}

func (s *Server) updateProfile(c *fiber.Ctx) error {
	var req profileUpdateReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	userID := userIDFrom(c)
	err := s.users.UpdateProfile(c.Context(), userID, models.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		return failErr(c, err)
	}
	user, err := s.users.FindByID(c.Context(), userID)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, fiber.StatusOK, "profile updated", fiber.Map{"user": user})
}

type createChannelReq struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

func (s *Server) createChannel(c *fiber.Ctx) error {
	var req createChannelReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	ch, err := s.chat.CreateChannel(c.Context(), userIDFrom(c), req.Title, req.Description, req.Type)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, fiber.StatusCreated, "channel created", fiber.Map{"channel": ch})
}

func (s *Server) listChannels(c *fiber.Ctx) error {
	chs, err := s.channels.ListForUser(c.Context(), userIDFrom(c))
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, fiber.StatusOK, "", fiber.Map{"channels": chs})
}

type pushSubscriptionReq struct {
	Endpoint string            `json:"endpoint"`
	Keys     map[string]string `json:"keys"`
}

func (s *Server) savePushSubscription(c *fiber.Ctx) error {
	var req pushSubscriptionReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	if req.Endpoint == "" {
		return fail(c, fiber.StatusBadRequest, "endpoint is required")
	}
	sub := &models.PushSubscription{
		ID:        uuid.NewString(),
		UserID:    userIDFrom(c),
		Endpoint:  req.Endpoint,
		Keys:      req.Keys,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.notifications.SaveSubscription(c.Context(), sub); err != nil {
		return failErr(c, err)
	}
	return ok(c, fiber.StatusCreated, "subscription saved", nil)
}

func (s *Server) listNotifications(c *fiber.Ctx) error {
	items, err := s.notifications.ListForUser(c.Context(), userIDFrom(c), 50)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, fiber.StatusOK, "", fiber.Map{"notifications": items})
}

func (s *Server) markNotificationRead(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := s.notifications.MarkRead(c.Context(), id, userIDFrom(c)); err != nil {
		return failErr(c, err)
	}
	return ok(c, fiber.StatusOK, "notification read", nil)
}
