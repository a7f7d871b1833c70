package chat

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Omdevsinh-Zala/chat-backend/internal/apperr"
	"github.com/Omdevsinh-Zala/chat-backend/internal/models"
)

// ChatChange focuses the caller on a direct conversation and returns its
// first page of history to the caller only.
func (s *Service) ChatChange(ctx context.Context, c Conn, receiverID string) error {
	if receiverID == "" {
		return apperr.Validation("receiverId is required")
	}
	if _, err := s.users.FindByID(ctx, receiverID); err != nil {
		return err
	}
	if err := s.users.SetActiveChat(ctx, c.UserID(), receiverID); err != nil {
		return apperr.Internal("failed to switch chat", err)
	}
	history, err := s.messages.DirectHistory(ctx, c.UserID(), receiverID, s.opts.PageSize, 0)
	if err != nil {
		return apperr.Internal("failed to load chat history", err)
	}
	s.signAttachments(ctx, c, history)
	c.Emit(EvChatMessages, chatPayload{Chat: history})
	return nil
}

// SendDirectMessage persists the message with its attachments in one unit,
// then fans out: the message to both parties' rooms first, the refreshed
// summaries second, and the receiver's push notification last. Clients must
// see the message before the sidebar unread count moves.
func (s *Service) SendDirectMessage(ctx context.Context, c Conn, p chatSendPayload) error {
	senderID := c.UserID()
	if p.ReceiverID == "" {
		return apperr.Validation("receiverId is required")
	}
	if strings.TrimSpace(p.Message) == "" && len(p.Attachments) == 0 {
		return apperr.Validation("message content or attachments required")
	}
	receiver, err := s.users.FindByID(ctx, p.ReceiverID)
	if err != nil {
		return err
	}
	sender, err := s.users.FindByID(ctx, senderID)
	if err != nil {
		return err
	}

	msg := &models.Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiver.ID,
		Content:    p.Message,
		Status:     models.MessageStatusSent,
		Type:       messageType(p.Message, p.MessageType, p.Attachments),
	}
	if err := s.messages.CreateWithAttachments(ctx, msg, toAttachments(p.Attachments)); err != nil {
		return apperr.Internal("failed to send message", err)
	}

	out := *msg
	s.signMessageAttachments(ctx, c, &out)
	s.registry.BroadcastToUser(receiver.ID, EvReceiveChatMessage, chatPayload{Chat: out})
	s.registry.BroadcastToUser(senderID, EvReceiveChatMessage, chatPayload{Chat: out})

	s.broadcastSummary(ctx, senderID)
	s.broadcastSummary(ctx, receiver.ID)

	if err := s.notifier.Dispatch(ctx, &models.Notification{
		UserID:    receiver.ID,
		SenderID:  senderID,
		MessageID: msg.ID,
		Type:      "direct_message",
		Title:     sender.FullName(),
		Body:      previewBody(msg),
	}); err != nil {
		s.log.Warnw("notification dispatch", "receiver_id", receiver.ID, "err", err)
	}
	return nil
}

// Typing is stateless: forwarded verbatim to the receiver's room only.
func (s *Service) Typing(ctx context.Context, c Conn, p typingPayload) error {
	if p.ReceiverID == "" {
		return apperr.Validation("receiverId is required")
	}
	p.SenderID = c.UserID()
	s.registry.BroadcastToUser(p.ReceiverID, EvTyping, p)
	return nil
}

// AppendMessages pages older history back to the caller. No side effects.
func (s *Service) AppendMessages(ctx context.Context, c Conn, p appendPayload) error {
	if p.ReceiverID == "" {
		return apperr.Validation("receiverId is required")
	}
	if p.Offset < 0 {
		return apperr.Validation("offset must not be negative")
	}
	history, err := s.messages.DirectHistory(ctx, c.UserID(), p.ReceiverID, s.opts.PageSize, p.Offset)
	if err != nil {
		return apperr.Internal("failed to load chat history", err)
	}
	s.signAttachments(ctx, c, history)
	c.Emit(EvReceiveAppendMessages, map[string]any{"chat": history, "offset": p.Offset})
	return nil
}

// ReadMessage marks a direct message read. The receiver check lives in the
// repository's update predicate as well; the early check here only shapes the
// error before any write is attempted.
func (s *Service) ReadMessage(ctx context.Context, c Conn, p readPayload) error {
	if p.MessageID == "" {
		return apperr.Validation("messageId is required")
	}
	msg, err := s.messages.FindByID(ctx, p.MessageID)
	if err != nil {
		return err
	}
	if msg.ReceiverID != c.UserID() {
		return apperr.Authorization("only the message receiver can mark it as read")
	}
	updated, err := s.messages.MarkRead(ctx, p.MessageID, c.UserID())
	if err != nil {
		return err
	}

	out := *updated
	s.signMessageAttachments(ctx, c, &out)
	s.registry.BroadcastToUser(updated.SenderID, EvReceiveMessageRead, chatPayload{Chat: out})
	s.registry.BroadcastToUser(updated.ReceiverID, EvReceiveMessageRead, chatPayload{Chat: out})

	s.broadcastSummary(ctx, c.UserID())
	return nil
}

func messageType(content, explicit string, atts []AttachmentInput) string {
	if explicit != "" {
		return explicit
	}
	if len(atts) == 0 {
		return models.MessageTypeText
	}
	if strings.TrimSpace(content) == "" {
		return models.MessageTypeFile
	}
	return models.MessageTypeMixed
}

func toAttachments(in []AttachmentInput) []models.Attachment {
	if len(in) == 0 {
		return nil
	}
	out := make([]models.Attachment, len(in))
	for i, a := range in {
		out[i] = models.Attachment{
			FileName:     a.FileName,
			FileKey:      a.FileKey,
			FileURL:      a.FileURL,
			FileType:     a.FileType,
			MimeType:     a.MimeType,
			FileSize:     a.FileSize,
			ThumbnailURL: a.ThumbnailURL,
		}
	}
	return out
}

func previewBody(msg *models.Message) string {
	if strings.TrimSpace(msg.Content) == "" && len(msg.Attachments) > 0 {
		return "Sent a file"
	}
	return msg.Content
}

// signAttachments swaps stored object keys for presigned URLs, scoped to what
// remains of the caller's credential lifetime.
func (s *Service) signAttachments(ctx context.Context, c Conn, msgs []models.Message) {
	if s.signer == nil {
		return
	}
	for i := range msgs {
		s.signMessageAttachments(ctx, c, &msgs[i])
	}
}

func (s *Service) signMessageAttachments(ctx context.Context, c Conn, m *models.Message) {
	if s.signer == nil {
		return
	}
	ttl := s.opts.SignedURLTTL
	if remaining := time.Until(c.Expiry()); remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return
	}
	for i := range m.Attachments {
		a := &m.Attachments[i]
		if a.FileKey == "" {
			continue
		}
		url, err := s.signer.PresignURL(ctx, a.FileKey, ttl)
		if err != nil {
			s.log.Warnw("presign attachment", "attachment_id", a.ID, "err", err)
			continue
		}
		a.FileURL = url
	}
}
