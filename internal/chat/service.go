package chat

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Omdevsinh-Zala/chat-backend/internal/models"
	"github.com/Omdevsinh-Zala/chat-backend/internal/repository"
)

// Registry is the live session registry the core fans out through. The hub
// owns the room maps; the core only asks.
type Registry interface {
	BroadcastToUser(userID, event string, payload any)
	BroadcastToChannel(channelID, event string, payload any)
	BroadcastToChannelExcept(channelID, exceptUserID, event string, payload any)
	BroadcastAllExcept(exceptUserID, event string, payload any)
	JoinChannelRoom(channelID, userID string)
	LeaveChannelRoom(channelID, userID string)
	DropChannelRoom(channelID string)
	IsOnline(userID string) bool
}

// Notifier is the notification dispatcher boundary: persist and forward to
// push delivery. Consulted, never owned, by the core.
type Notifier interface {
	Dispatch(ctx context.Context, n *models.Notification) error
}

// Presence mirrors the online flag into a shared store. The core is its only
// writer.
type Presence interface {
	SetOnline(ctx context.Context, userID string, online bool) error
}

// Signer issues short-lived URLs for stored attachment objects.
type Signer interface {
	PresignURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// SummaryCache holds the computed recent-conversations projection. Optional:
// correctness never depends on it.
type SummaryCache interface {
	Get(ctx context.Context, userID string) ([]ConversationSummary, bool)
	Set(ctx context.Context, userID string, s []ConversationSummary)
	Invalidate(ctx context.Context, userID string)
}

// Conn is the caller's live connection as the core sees it.
type Conn interface {
	UserID() string
	Expiry() time.Time
	Emit(event string, payload any)
}

type Options struct {
	PageSize     int64
	PreviewRunes int
	SummaryScan  int64
	SignedURLTTL time.Duration
}

// Service is the messaging core: it applies client chat actions against the
// persistence layer and computes the recipient set for every resulting event.
type Service struct {
	users    repository.UserRepository
	channels repository.ChannelRepository
	messages repository.MessageRepository
	registry Registry
	notifier Notifier
	presence Presence
	signer   Signer
	cache    SummaryCache
	log      *zap.SugaredLogger
	opts     Options
}

func NewService(
	users repository.UserRepository,
	channels repository.ChannelRepository,
	messages repository.MessageRepository,
	registry Registry,
	notifier Notifier,
	log *zap.SugaredLogger,
	opts Options,
) *Service {
	if opts.PageSize == 0 {
		opts.PageSize = 20
	}
	if opts.PreviewRunes == 0 {
		opts.PreviewRunes = 50
	}
	if opts.SummaryScan == 0 {
		opts.SummaryScan = 200
	}
	if opts.SignedURLTTL == 0 {
		opts.SignedURLTTL = 15 * time.Minute
	}
	return &Service{
		users:    users,
		channels: channels,
		messages: messages,
		registry: registry,
		notifier: notifier,
		log:      log,
		opts:     opts,
	}
}

// WithPresence attaches the shared presence mirror.
func (s *Service) WithPresence(p Presence) *Service {
	s.presence = p
	return s
}

// WithSigner attaches the attachment URL signer.
func (s *Service) WithSigner(sg Signer) *Service {
	s.signer = sg
	return s
}

// WithSummaryCache attaches the recent-conversations cache.
func (s *Service) WithSummaryCache(c SummaryCache) *Service {
	s.cache = c
	return s
}

// Admit runs the post-handshake side of admission: join every channel room
// the user is a member of, flip presence on the first connection, and push
// the initial state the client renders from.
func (s *Service) Admit(ctx context.Context, c Conn, firstConn bool) {
	userID := c.UserID()

	chs, err := s.channels.ListForUser(ctx, userID)
	if err != nil {
		s.log.Errorw("admit: list channels", "user_id", userID, "err", err)
	}
	for _, ch := range chs {
		s.registry.JoinChannelRoom(ch.ID, userID)
	}

	if firstConn {
		if err := s.users.SetOnline(ctx, userID, true); err != nil {
			s.log.Errorw("admit: set online", "user_id", userID, "err", err)
		}
		s.mirrorPresence(ctx, userID, true)
		s.registry.BroadcastAllExcept(userID, EvUserStatusChanged, statusPayload{UserID: userID, Online: true})
	}

	c.Emit(EvChannels, channelsPayload{Channels: chs})
	s.pushSummary(ctx, c, userID)
}

// Depart runs on disconnect. Presence flips only when the last connection for
// the user is gone; a phone dropping off must not mark a user with an open
// laptop session offline.
func (s *Service) Depart(ctx context.Context, userID string, lastConn bool) {
	if !lastConn {
		return
	}
	if err := s.users.SetOnline(ctx, userID, false); err != nil {
		s.log.Errorw("depart: set online", "user_id", userID, "err", err)
	}
	s.mirrorPresence(ctx, userID, false)
	s.registry.BroadcastAllExcept(userID, EvUserStatusChanged, statusPayload{UserID: userID, Online: false})
}

func (s *Service) mirrorPresence(ctx context.Context, userID string, online bool) {
	if s.presence == nil {
		return
	}
	if err := s.presence.SetOnline(ctx, userID, online); err != nil {
		s.log.Warnw("presence mirror", "user_id", userID, "err", err)
	}
}

func (s *Service) pushSummary(ctx context.Context, c Conn, userID string) {
	users, err := s.recentConversations(ctx, userID)
	if err != nil {
		s.log.Errorw("recent conversations", "user_id", userID, "err", err)
		return
	}
	c.Emit(EvRecentlyMessagesUsers, summaryPayload{Users: users})
}

// broadcastSummary recomputes and pushes the summary to every device of the
// user, not just the caller's connection.
func (s *Service) broadcastSummary(ctx context.Context, userID string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, userID)
	}
	users, err := s.recentConversations(ctx, userID)
	if err != nil {
		s.log.Errorw("recent conversations", "user_id", userID, "err", err)
		return
	}
	s.registry.BroadcastToUser(userID, EvRecentlyMessagesUsers, summaryPayload{Users: users})
}

// pushChannels sends the user's refreshed channel list to all their devices.
func (s *Service) pushChannels(ctx context.Context, userID string) {
	chs, err := s.channels.ListForUser(ctx, userID)
	if err != nil {
		s.log.Errorw("list channels", "user_id", userID, "err", err)
		return
	}
	s.registry.BroadcastToUser(userID, EvChannels, channelsPayload{Channels: chs})
}
