package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/Omdevsinh-Zala/chat-backend/internal/auth"
	"github.com/Omdevsinh-Zala/chat-backend/internal/chat"
	"github.com/Omdevsinh-Zala/chat-backend/internal/config"
	"github.com/Omdevsinh-Zala/chat-backend/internal/repository"
	"github.com/Omdevsinh-Zala/chat-backend/internal/ws"
)

type Server struct {
	app           *fiber.App
	tokens        *auth.Manager
	users         repository.UserRepository
	channels      repository.ChannelRepository
	notifications repository.NotificationRepository
	chat          *chat.Service
	hub           *ws.Hub
	rps           int
	log           *zap.SugaredLogger
}

type Deps struct {
	Tokens        *auth.Manager
	Users         repository.UserRepository
	Channels      repository.ChannelRepository
	Notifications repository.NotificationRepository
	Chat          *chat.Service
	Hub           *ws.Hub
	Log           *zap.SugaredLogger
}

func NewServer(cfg config.ServerCfg, rps int, d Deps) *Server {
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
	})
	s := &Server{
		app:           app,
		tokens:        d.Tokens,
		users:         d.Users,
		channels:      d.Channels,
		notifications: d.Notifications,
		chat:          d.Chat,
		hub:           d.Hub,
		rps:           rps,
		log:           d.Log,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Use(recover.New())
	s.app.Use(fiberlogger.New())
	s.app.Use(cors.New(cors.Config{AllowCredentials: true}))

	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	authGroup := s.app.Group("/auth")
	authGroup.Post("/register", s.register)
	authGroup.Post("/login", s.login)
	authGroup.Post("/refresh", s.refresh)
	authGroup.Post("/logout", s.logout)
	authGroup.Get("/username-available", s.usernameAvailable)

	users := s.app.Group("/users", s.requireAuth)
	users.Get("/me", s.profile)
	users.Put("/me", s.updateProfile)
	users.Post("/channels", s.createChannel)
	users.Get("/channels", s.listChannels)
	users.Post("/push-subscription", s.savePushSubscription)
	users.Get("/notifications", s.listNotifications)
	users.Patch("/notifications/:id/read", s.markNotificationRead)

	// The socket route authenticates inside the handler, not through
	// requireAuth: the expired-token error must reach the client over the
	// established socket, not as an HTTP 401.
	s.app.Get("/ws", wsUpgrade)
	s.app.Get("/ws", websocket.New(s.handleSocket))
}

func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
