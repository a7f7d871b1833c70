package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Omdevsinh-Zala/chat-backend/internal/apperr"
	"github.com/Omdevsinh-Zala/chat-backend/internal/models"
)

// CreateChannel persists a channel with its owner membership, then mirrors
// the owner's live connections into the new room. Persist first, mirror
// second: after a crash in between, the rows are the source of truth and the
// room is rebuilt on reconnect.
func (s *Service) CreateChannel(ctx context.Context, ownerID, title, description, chType string) (*models.Channel, error) {
	if strings.TrimSpace(title) == "" {
		return nil, apperr.Validation("channel title is required")
	}
	if chType == "" {
		chType = models.ChannelTypePublic
	}
	if chType != models.ChannelTypePublic && chType != models.ChannelTypePrivate {
		return nil, apperr.Validation("channel type must be public or private")
	}
	ch := &models.Channel{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Type:        chType,
		OwnerID:     ownerID,
		Status:      models.ChannelStatusActive,
	}
	owner := &models.ChannelMember{
		ID:     uuid.NewString(),
		UserID: ownerID,
	}
	if err := s.channels.Create(ctx, ch, owner); err != nil {
		return nil, apperr.Internal("failed to create channel", err)
	}
	s.registry.JoinChannelRoom(ch.ID, ownerID)
	s.pushChannels(ctx, ownerID)
	return ch, nil
}

// ChannelChatChange focuses the caller on a channel and returns its first
// page of history. Members only: channel history is not public.
func (s *Service) ChannelChatChange(ctx context.Context, c Conn, channelID string) error {
	if channelID == "" {
		return apperr.Validation("channelId is required")
	}
	if _, err := s.channels.Member(ctx, channelID, c.UserID()); err != nil {
		return authzIfMissing(err, "only channel members can view its messages")
	}
	if err := s.users.SetActiveChat(ctx, c.UserID(), channelID); err != nil {
		return apperr.Internal("failed to switch chat", err)
	}
	history, err := s.messages.ChannelHistory(ctx, channelID, s.opts.PageSize, 0)
	if err != nil {
		return apperr.Internal("failed to load channel history", err)
	}
	s.signAttachments(ctx, c, history)
	c.Emit(EvChannelChatMessages, map[string]any{"channelId": channelID, "chat": history})
	return nil
}

// JoinChannel makes the caller a member, records the join as a system
// message, and only then mirrors the caller's connections into the room.
func (s *Service) JoinChannel(ctx context.Context, c Conn, channelID string) error {
	userID := c.UserID()
	if channelID == "" {
		return apperr.Validation("channelId is required")
	}
	ch, err := s.channels.FindByID(ctx, channelID)
	if err != nil {
		return err
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	_, err = s.channels.Member(ctx, channelID, userID)
	alreadyMember := err == nil
	if err != nil && apperr.KindOf(err) != apperr.KindNotFound {
		return err
	}
	if !alreadyMember {
		err = s.channels.AddMember(ctx, &models.ChannelMember{
			ID:        uuid.NewString(),
			ChannelID: channelID,
			UserID:    userID,
			Role:      models.RoleMember,
		})
		// A concurrent join can win the insert; the unique index turns that
		// into a conflict, which is the same outcome as already-member.
		if err != nil {
			if apperr.KindOf(err) != apperr.KindConflict {
				return err
			}
			alreadyMember = true
		}
	}

	s.registry.JoinChannelRoom(channelID, userID)
	s.pushChannels(ctx, userID)
	if alreadyMember {
		return nil
	}

	sysMsg, err := s.insertSystemMessage(ctx, channelID, userID, user.Username+" joined the channel")
	if err != nil {
		s.log.Errorw("join system message", "channel_id", channelID, "err", err)
		return nil
	}
	s.broadcastSystemMessage(ctx, ch.ID, sysMsg)
	return nil
}

// LeaveChannel removes the caller's membership. The owner cannot leave: a
// channel must never be orphaned, so ownership is transferred or the channel
// deleted first.
func (s *Service) LeaveChannel(ctx context.Context, c Conn, channelID string) error {
	userID := c.UserID()
	if channelID == "" {
		return apperr.Validation("channelId is required")
	}
	member, err := s.channels.Member(ctx, channelID, userID)
	if err != nil {
		return err
	}
	if member.Role == models.RoleOwner {
		return apperr.Authorization("channel owner cannot leave, transfer ownership or delete the channel first")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.channels.RemoveMember(ctx, channelID, userID); err != nil {
		return err
	}
	s.clearActiveChatIfFocused(ctx, user, channelID)

	sysMsg, err := s.insertSystemMessage(ctx, channelID, userID, user.Username+" left the channel")
	if err != nil {
		s.log.Errorw("leave system message", "channel_id", channelID, "err", err)
	} else {
		s.registry.BroadcastToChannelExcept(channelID, userID, EvReceiveChannelChatMessage, chatPayload{Chat: *sysMsg})
	}
	s.registry.LeaveChannelRoom(channelID, userID)
	s.pushChannels(ctx, userID)
	return nil
}

// RemoveUser enforces the moderation matrix: the owner may remove anyone but
// themselves; admins may remove plain members only; members remove no one.
func (s *Service) RemoveUser(ctx context.Context, c Conn, p removeUserPayload) error {
	requesterID := c.UserID()
	if p.ChannelID == "" || p.UserID == "" {
		return apperr.Validation("channelId and userId are required")
	}
	if p.UserID == requesterID {
		return apperr.Validation("use leaveChannel to remove yourself")
	}

	// Roles are re-fetched at decision time, never trusted from an earlier
	// read.
	requester, err := s.channels.Member(ctx, p.ChannelID, requesterID)
	if err != nil {
		return authzIfMissing(err, "you are not a member of this channel")
	}
	target, err := s.channels.Member(ctx, p.ChannelID, p.UserID)
	if err != nil {
		return err
	}
	switch requester.Role {
	case models.RoleOwner:
		// anyone but self, checked above
	case models.RoleAdmin:
		if target.Role != models.RoleMember {
			return apperr.Authorization("admins can only remove regular members")
		}
	default:
		return apperr.Authorization("only the channel owner or admins can remove members")
	}

	requesterUser, err := s.users.FindByID(ctx, requesterID)
	if err != nil {
		return err
	}
	targetUser, err := s.users.FindByID(ctx, p.UserID)
	if err != nil {
		return err
	}
	if err := s.channels.RemoveMember(ctx, p.ChannelID, p.UserID); err != nil {
		return err
	}
	s.clearActiveChatIfFocused(ctx, targetUser, p.ChannelID)

	sysMsg, err := s.insertSystemMessage(ctx, p.ChannelID, requesterID,
		requesterUser.Username+" removed "+targetUser.Username+" from the channel")
	if err != nil {
		s.log.Errorw("remove system message", "channel_id", p.ChannelID, "err", err)
	} else {
		s.registry.BroadcastToChannelExcept(p.ChannelID, p.UserID, EvReceiveChannelChatMessage, chatPayload{Chat: *sysMsg})
	}

	// Evict the removed user's live connections, then steer their client away
	// from a channel it can no longer see.
	s.registry.LeaveChannelRoom(p.ChannelID, p.UserID)
	s.pushChannels(ctx, p.UserID)
	s.registry.BroadcastToUser(p.UserID, EvRedirectToChannel, map[string]any{"channelId": nil})
	return nil
}

// UpdateMemberRole changes a member's role. Promoting to owner swaps the two
// roles in one transaction so the channel always has exactly one owner.
func (s *Service) UpdateMemberRole(ctx context.Context, c Conn, p rolePayload) error {
	requesterID := c.UserID()
	if p.ChannelID == "" || p.UserID == "" {
		return apperr.Validation("channelId and userId are required")
	}
	if p.Role != models.RoleOwner && p.Role != models.RoleAdmin && p.Role != models.RoleMember {
		return apperr.Validation("role must be member, admin or owner")
	}
	if p.UserID == requesterID {
		return apperr.Validation("you cannot change your own role")
	}
	requester, err := s.channels.Member(ctx, p.ChannelID, requesterID)
	if err != nil {
		return authzIfMissing(err, "you are not a member of this channel")
	}
	if requester.Role != models.RoleOwner {
		return apperr.Authorization("only the channel owner can change member roles")
	}
	if _, err := s.channels.Member(ctx, p.ChannelID, p.UserID); err != nil {
		return err
	}

	if p.Role == models.RoleOwner {
		if err := s.channels.SwapOwner(ctx, p.ChannelID, requesterID, p.UserID); err != nil {
			return err
		}
	} else {
		if err := s.channels.UpdateRole(ctx, p.ChannelID, p.UserID, p.Role); err != nil {
			return err
		}
	}

	members, err := s.channels.Members(ctx, p.ChannelID)
	if err != nil {
		return apperr.Internal("failed to list members", err)
	}
	s.registry.BroadcastToChannel(p.ChannelID, EvChannelMemberRoleChanged, rolePayload{
		ChannelID: p.ChannelID,
		UserID:    p.UserID,
		Role:      p.Role,
	})
	for _, m := range members {
		s.pushChannels(ctx, m.UserID)
	}
	return nil
}

// DeleteChannel soft-deletes the channel, tells the room, then evicts every
// member's connections and refreshes their channel lists.
func (s *Service) DeleteChannel(ctx context.Context, c Conn, channelID string) error {
	userID := c.UserID()
	if channelID == "" {
		return apperr.Validation("channelId is required")
	}
	ch, err := s.channels.FindByID(ctx, channelID)
	if err != nil {
		return err
	}
	if ch.OwnerID != userID {
		return apperr.Authorization("only the channel owner can delete the channel")
	}
	members, err := s.channels.Members(ctx, channelID)
	if err != nil {
		return apperr.Internal("failed to list members", err)
	}
	if err := s.channels.SoftDelete(ctx, channelID); err != nil {
		return err
	}

	s.registry.BroadcastToChannel(channelID, EvChannelDeleted, map[string]any{"channelId": channelID})
	s.registry.DropChannelRoom(channelID)
	for _, m := range members {
		s.pushChannels(ctx, m.UserID)
	}
	return nil
}

// SendChannelMessage persists with the same attachment-transaction
// discipline as direct messages, broadcasts once to the room, then notifies
// every member except the sender.
func (s *Service) SendChannelMessage(ctx context.Context, c Conn, p channelSendPayload) error {
	senderID := c.UserID()
	if p.ChannelID == "" {
		return apperr.Validation("channelId is required")
	}
	if strings.TrimSpace(p.Message) == "" && len(p.Attachments) == 0 {
		return apperr.Validation("message content or attachments required")
	}
	ch, err := s.channels.FindByID(ctx, p.ChannelID)
	if err != nil {
		return err
	}
	member, err := s.channels.Member(ctx, p.ChannelID, senderID)
	if err != nil {
		return authzIfMissing(err, "only channel members can send messages")
	}
	if member.Muted(time.Now()) {
		return apperr.Authorization("you are muted in this channel")
	}
	sender, err := s.users.FindByID(ctx, senderID)
	if err != nil {
		return err
	}

	msg := &models.Message{
		ID:        uuid.NewString(),
		SenderID:  senderID,
		ChannelID: ch.ID,
		Content:   p.Message,
		Status:    models.MessageStatusSent,
		Type:      messageType(p.Message, p.MessageType, p.Attachments),
	}
	if err := s.messages.CreateWithAttachments(ctx, msg, toAttachments(p.Attachments)); err != nil {
		return apperr.Internal("failed to send message", err)
	}

	out := *msg
	s.signMessageAttachments(ctx, c, &out)
	s.registry.BroadcastToChannel(ch.ID, EvReceiveChannelChatMessage, chatPayload{Chat: out})

	members, err := s.channels.Members(ctx, ch.ID)
	if err != nil {
		s.log.Errorw("list members for notify", "channel_id", ch.ID, "err", err)
		return nil
	}
	body := sender.Username + ": " + previewBody(msg)
	for _, m := range members {
		if m.UserID == senderID {
			continue
		}
		if err := s.notifier.Dispatch(ctx, &models.Notification{
			UserID:    m.UserID,
			SenderID:  senderID,
			ChannelID: ch.ID,
			MessageID: msg.ID,
			Type:      "channel_message",
			Title:     ch.Title,
			Body:      body,
		}); err != nil {
			s.log.Warnw("notification dispatch", "user_id", m.UserID, "err", err)
		}
	}
	return nil
}

// AppendChannelMessages pages older channel history back to the caller.
func (s *Service) AppendChannelMessages(ctx context.Context, c Conn, p channelAppendPayload) error {
	if p.ChannelID == "" {
		return apperr.Validation("channelId is required")
	}
	if p.Offset < 0 {
		return apperr.Validation("offset must not be negative")
	}
	if _, err := s.channels.Member(ctx, p.ChannelID, c.UserID()); err != nil {
		return authzIfMissing(err, "only channel members can view its messages")
	}
	history, err := s.messages.ChannelHistory(ctx, p.ChannelID, s.opts.PageSize, p.Offset)
	if err != nil {
		return apperr.Internal("failed to load channel history", err)
	}
	s.signAttachments(ctx, c, history)
	c.Emit(EvReceiveAppendChannelChat, map[string]any{
		"channelId": p.ChannelID,
		"chat":      history,
		"offset":    p.Offset,
	})
	return nil
}

// MarkChannelRead advances the caller's read high-water mark and tells the
// rest of the room. Calling it twice is harmless: the mark never moves back.
func (s *Service) MarkChannelRead(ctx context.Context, c Conn, channelID string) error {
	userID := c.UserID()
	if channelID == "" {
		return apperr.Validation("channelId is required")
	}
	now := time.Now().UTC()
	if err := s.channels.TouchLastRead(ctx, channelID, userID, now); err != nil {
		return err
	}
	s.registry.BroadcastToChannelExcept(channelID, userID, EvChannelReadMarker, map[string]any{
		"channelId":  channelID,
		"userId":     userID,
		"lastReadAt": now,
	})
	return nil
}

// ChannelMemberTyping is ephemeral, members only, never echoed to the typer.
func (s *Service) ChannelMemberTyping(ctx context.Context, c Conn, p channelTypingPayload) error {
	if p.ChannelID == "" {
		return apperr.Validation("channelId is required")
	}
	if _, err := s.channels.Member(ctx, p.ChannelID, c.UserID()); err != nil {
		return authzIfMissing(err, "only channel members can send typing notices")
	}
	p.UserID = c.UserID()
	s.registry.BroadcastToChannelExcept(p.ChannelID, c.UserID(), EvChannelMemberTyping, p)
	return nil
}

// insertSystemMessage stores a platform-authored message in the channel's
// stream. System messages always target a channel.
func (s *Service) insertSystemMessage(ctx context.Context, channelID, actorID, content string) (*models.Message, error) {
	msg := &models.Message{
		ID:        uuid.NewString(),
		SenderID:  actorID,
		ChannelID: channelID,
		Content:   content,
		Status:    models.MessageStatusSent,
		Type:      models.MessageTypeSystem,
	}
	if err := s.messages.CreateWithAttachments(ctx, msg, nil); err != nil {
		return nil, apperr.Internal("failed to record system message", err)
	}
	return msg, nil
}

// broadcastSystemMessage reaches the channel room and, separately, every
// member's private room, so members without the channel open still see it.
func (s *Service) broadcastSystemMessage(ctx context.Context, channelID string, msg *models.Message) {
	s.registry.BroadcastToChannel(channelID, EvReceiveChannelChatMessage, chatPayload{Chat: *msg})
	members, err := s.channels.Members(ctx, channelID)
	if err != nil {
		s.log.Errorw("list members for system message", "channel_id", channelID, "err", err)
		return
	}
	for _, m := range members {
		s.registry.BroadcastToUser(m.UserID, EvReceiveChannelChatMessage, chatPayload{Chat: *msg})
	}
}

func (s *Service) clearActiveChatIfFocused(ctx context.Context, u *models.User, channelID string) {
	if u.ActiveChatID != channelID {
		return
	}
	if err := s.users.SetActiveChat(ctx, u.ID, ""); err != nil {
		s.log.Errorw("clear active chat", "user_id", u.ID, "err", err)
	}
}

// authzIfMissing turns a membership NotFound into an authorization error with
// an action-scoped message; other errors pass through.
func authzIfMissing(err error, msg string) error {
	if apperr.KindOf(err) == apperr.KindNotFound {
		var e *apperr.Error
		if errors.As(err, &e) && e.Message == "not a member of this channel" {
			return apperr.Authorization(msg)
		}
	}
	return err
}
