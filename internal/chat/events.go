package chat

import (
	"context"
	"encoding/json"

	"github.com/Omdevsinh-Zala/chat-backend/internal/apperr"
	"github.com/Omdevsinh-Zala/chat-backend/internal/metrics"
	"github.com/Omdevsinh-Zala/chat-backend/internal/models"
)

// Inbound event names.
const (
	EvChatChange              = "chatChange"
	EvChatMessagesSend        = "chatMessagesSend"
	EvTyping                  = "typing"
	EvAppendMessages          = "appendMessages"
	EvReadMessage             = "readMessage"
	EvJoinChannel             = "joinChannel"
	EvLeaveChannel            = "leaveChannel"
	EvRemoveUser              = "removeUser"
	EvDeleteChannel           = "deleteChannel"
	EvUpdateMemberRole        = "updateMemberRole"
	EvChannelChatChange       = "channelChatChange"
	EvChannelChatMessagesSend = "channelChatMessagesSend"
	EvAppendChannelMessages   = "appendChannelMessages"
	EvMarkChannelRead         = "markChannelRead"
	EvChannelMemberTyping     = "channelMemberTyping"
	EvProfileImageChange      = "profileImageChange"
	EvProfileInfoChange       = "profileInfoChange"
)

// Outbound event names.
const (
	EvChannels                  = "channels"
	EvRecentlyMessagesUsers     = "recentlyMessagesUsers"
	EvChatMessages              = "chatMessages"
	EvReceiveChatMessage        = "receiveChatMessage"
	EvReceiveAppendMessages     = "receiveAppendMessages"
	EvReceiveMessageRead        = "receiveMessageRead"
	EvChannelChatMessages       = "channelChatMessages"
	EvReceiveChannelChatMessage = "receiveChannelChatMessage"
	EvReceiveAppendChannelChat  = "receiveAppendChannelMessages"
	EvChannelReadMarker         = "channelReadMarker"
	EvChannelMemberRoleChanged  = "channelMemberRoleChanged"
	EvChannelDeleted            = "channelDeleted"
	EvRedirectToChannel         = "redirectToChannel"
	EvUserStatusChanged         = "userStatusChanged"
	EvProfileUpdated            = "profileUpdated"
)

// errorEventSuffix turns an inbound event name into its caller-only error
// event, e.g. chatMessagesSend -> chatMessagesSendErrorMessage.
const errorEventSuffix = "ErrorMessage"

type AttachmentInput struct {
	FileName     string `json:"file_name"`
	FileKey      string `json:"file_key,omitempty"`
	FileURL      string `json:"file_url"`
	FileType     string `json:"file_type,omitempty"`
	MimeType     string `json:"mime_type"`
	FileSize     int64  `json:"file_size"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

type chatChangePayload struct {
	ReceiverID string `json:"receiverId"`
}

type chatSendPayload struct {
	ReceiverID  string            `json:"receiverId"`
	Message     string            `json:"message"`
	MessageType string            `json:"messageType,omitempty"`
	Attachments []AttachmentInput `json:"attachments,omitempty"`
}

type typingPayload struct {
	ReceiverID string `json:"receiverId"`
	SenderID   string `json:"senderId,omitempty"`
	IsTyping   bool   `json:"isTyping"`
}

type appendPayload struct {
	ReceiverID string `json:"receiverId"`
	Offset     int64  `json:"offset"`
}

// readPayload carries only the message id; the receiver is derived from the
// stored row, never trusted from the client.
type readPayload struct {
	MessageID string `json:"messageId"`
}

type channelPayload struct {
	ChannelID string `json:"channelId"`
}

type channelSendPayload struct {
	ChannelID   string            `json:"channelId"`
	Message     string            `json:"message"`
	MessageType string            `json:"messageType,omitempty"`
	Attachments []AttachmentInput `json:"attachments,omitempty"`
}

type channelAppendPayload struct {
	ChannelID string `json:"channelId"`
	Offset    int64  `json:"offset"`
}

type removeUserPayload struct {
	ChannelID string `json:"channelId"`
	UserID    string `json:"userId"`
}

type rolePayload struct {
	ChannelID string `json:"channelId"`
	UserID    string `json:"userId"`
	Role      string `json:"role"`
}

type channelTypingPayload struct {
	ChannelID string `json:"channelId"`
	UserID    string `json:"userId,omitempty"`
	IsTyping  bool   `json:"isTyping"`
}

type profilePayload struct {
	UserID    string `json:"userId,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

type statusPayload struct {
	UserID string `json:"userId"`
	Online bool   `json:"online"`
}

type channelsPayload struct {
	Channels []models.Channel `json:"channels"`
}

type summaryPayload struct {
	Users []ConversationSummary `json:"users"`
}

type chatPayload struct {
	Chat any `json:"chat"`
}

// HandleEvent routes one inbound envelope. Every failure is converted into a
// typed error event emitted to the caller alone; nothing thrown here may take
// the event loop down.
func (s *Service) HandleEvent(ctx context.Context, c Conn, event string, payload []byte) {
	var err error
	known := true
	switch event {
	case EvChatChange:
		var p chatChangePayload
		if err = decode(payload, &p); err == nil {
			err = s.ChatChange(ctx, c, p.ReceiverID)
		}
	case EvChatMessagesSend:
		var p chatSendPayload
		if err = decode(payload, &p); err == nil {
			err = s.SendDirectMessage(ctx, c, p)
		}
	case EvTyping:
		var p typingPayload
		if err = decode(payload, &p); err == nil {
			err = s.Typing(ctx, c, p)
		}
	case EvAppendMessages:
		var p appendPayload
		if err = decode(payload, &p); err == nil {
			err = s.AppendMessages(ctx, c, p)
		}
	case EvReadMessage:
		var p readPayload
		if err = decode(payload, &p); err == nil {
			err = s.ReadMessage(ctx, c, p)
		}
	case EvJoinChannel:
		var p channelPayload
		if err = decode(payload, &p); err == nil {
			err = s.JoinChannel(ctx, c, p.ChannelID)
		}
	case EvLeaveChannel:
		var p channelPayload
		if err = decode(payload, &p); err == nil {
			err = s.LeaveChannel(ctx, c, p.ChannelID)
		}
	case EvRemoveUser:
		var p removeUserPayload
		if err = decode(payload, &p); err == nil {
			err = s.RemoveUser(ctx, c, p)
		}
	case EvDeleteChannel:
		var p channelPayload
		if err = decode(payload, &p); err == nil {
			err = s.DeleteChannel(ctx, c, p.ChannelID)
		}
	case EvUpdateMemberRole:
		var p rolePayload
		if err = decode(payload, &p); err == nil {
			err = s.UpdateMemberRole(ctx, c, p)
		}
	case EvChannelChatChange:
		var p channelPayload
		if err = decode(payload, &p); err == nil {
			err = s.ChannelChatChange(ctx, c, p.ChannelID)
		}
	case EvChannelChatMessagesSend:
		var p channelSendPayload
		if err = decode(payload, &p); err == nil {
			err = s.SendChannelMessage(ctx, c, p)
		}
	case EvAppendChannelMessages:
		var p channelAppendPayload
		if err = decode(payload, &p); err == nil {
			err = s.AppendChannelMessages(ctx, c, p)
		}
	case EvMarkChannelRead:
		var p channelPayload
		if err = decode(payload, &p); err == nil {
			err = s.MarkChannelRead(ctx, c, p.ChannelID)
		}
	case EvChannelMemberTyping:
		var p channelTypingPayload
		if err = decode(payload, &p); err == nil {
			err = s.ChannelMemberTyping(ctx, c, p)
		}
	case EvProfileImageChange, EvProfileInfoChange:
		var p profilePayload
		if err = decode(payload, &p); err == nil {
			p.UserID = c.UserID()
			s.registry.BroadcastAllExcept(c.UserID(), EvProfileUpdated, p)
		}
	default:
		known = false
		err = apperr.Validation("unknown event: " + event)
	}

	// Client-supplied event names must not mint metric label values; every
	// unrecognized name lands on one fixed label.
	label := event
	if !known {
		label = "unknown"
	}
	metrics.EventsTotal.WithLabelValues(label).Inc()

	if err != nil {
		s.emitError(c, event, err)
	}
}

func decode(payload []byte, v any) error {
	if len(payload) == 0 {
		return apperr.Validation("missing payload")
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return apperr.Validation("malformed payload")
	}
	return nil
}

func (s *Service) emitError(c Conn, event string, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		s.log.Errorw("event failed", "event", event, "user_id", c.UserID(), "err", err)
	}
	c.Emit(event+errorEventSuffix, map[string]any{
		"message": apperr.MessageOf(err),
		"kind":    kind.String(),
	})
}
