package chat

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/Omdevsinh-Zala/chat-backend/internal/models"
)

// ConversationSummary is one row of the sidebar: the counterpart, the latest
// message preview, and how many of their messages the user has not read yet.
type ConversationSummary struct {
	UserID       string    `json:"userId"`
	Username     string    `json:"username"`
	FirstName    string    `json:"firstName,omitempty"`
	LastName     string    `json:"lastName,omitempty"`
	AvatarURL    string    `json:"avatarUrl,omitempty"`
	Online       bool      `json:"online"`
	LastMessage  string    `json:"lastMessage"`
	LastSentAt   time.Time `json:"lastSentAt"`
	UnreadCount  int       `json:"unreadCount"`
}

// recentConversations derives the sidebar projection from the direct message
// stream. It is recomputed from the store on every refresh; the cache only
// short-circuits repeat reads between message events.
func (s *Service) recentConversations(ctx context.Context, userID string) ([]ConversationSummary, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, userID); ok {
			return cached, nil
		}
	}

	msgs, err := s.messages.RecentDirect(ctx, userID, s.opts.SummaryScan)
	if err != nil {
		return nil, err
	}

	// msgs arrive newest first, so the first message seen per counterpart is
	// that conversation's latest.
	byUser := make(map[string]*ConversationSummary)
	order := make([]string, 0, 16)
	for i := range msgs {
		m := &msgs[i]
		other := m.ReceiverID
		if other == userID {
			other = m.SenderID
		}
		if other == userID || other == "" {
			continue
		}
		sum, ok := byUser[other]
		if !ok {
			sum = &ConversationSummary{
				UserID:      other,
				LastMessage: truncatePreview(previewText(m), s.opts.PreviewRunes),
				LastSentAt:  m.CreatedAt,
			}
			byUser[other] = sum
			order = append(order, other)
		}
		if m.SenderID == other && m.ReceiverID == userID && m.Status != models.MessageStatusRead {
			sum.UnreadCount++
		}
	}
	if len(order) == 0 {
		return nil, nil
	}

	users, err := s.users.FindByIDs(ctx, order)
	if err != nil {
		return nil, err
	}
	profiles := make(map[string]*models.User, len(users))
	for i := range users {
		profiles[users[i].ID] = &users[i]
	}

	out := make([]ConversationSummary, 0, len(order))
	for _, id := range order {
		u, ok := profiles[id]
		if !ok {
			// Counterpart account soft-deleted since the message was sent.
			continue
		}
		sum := byUser[id]
		sum.Username = u.Username
		sum.FirstName = u.FirstName
		sum.LastName = u.LastName
		sum.AvatarURL = u.AvatarURL
		sum.Online = u.Online
		out = append(out, *sum)
	}

	if s.cache != nil {
		s.cache.Set(ctx, userID, out)
	}
	return out, nil
}

func previewText(m *models.Message) string {
	if m.Content != "" {
		return m.Content
	}
	if m.Type == models.MessageTypeFile || m.Type == models.MessageTypeMixed {
		return "Sent a file"
	}
	return m.Content
}

// truncatePreview cuts on rune boundaries so multi-byte text never splits
// mid-character.
func truncatePreview(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}
