package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Omdevsinh-Zala/chat-backend/internal/apperr"
	"github.com/Omdevsinh-Zala/chat-backend/internal/models"
)

func TestSendDirectMessageReachesBothParties(t *testing.T) {
	fx := newFixture()
	fx.users.add("alice", "alice")
	fx.users.add("bob", "bob")
	conn := newFakeConn("alice")

	err := fx.svc.SendDirectMessage(context.Background(), conn, chatSendPayload{
		ReceiverID: "bob",
		Message:    "hello there",
	})
	require.NoError(t, err)

	toBob := fx.registry.sent("user:bob", EvReceiveChatMessage)
	toAlice := fx.registry.sent("user:alice", EvReceiveChatMessage)
	require.Len(t, toBob, 1)
	require.Len(t, toAlice, 1)

	bobMsg := toBob[0].Payload.(chatPayload).Chat.(models.Message)
	aliceMsg := toAlice[0].Payload.(chatPayload).Chat.(models.Message)
	assert.Equal(t, bobMsg.ID, aliceMsg.ID)
	assert.Equal(t, "hello there", bobMsg.Content)
	assert.Equal(t, models.MessageStatusSent, bobMsg.Status)

	// The message reaches the receiver before their sidebar refresh does.
	msgIdx := fx.registry.firstIndex("user:bob", EvReceiveChatMessage)
	sumIdx := fx.registry.firstIndex("user:bob", EvRecentlyMessagesUsers)
	require.NotEqual(t, -1, sumIdx)
	assert.Less(t, msgIdx, sumIdx)

	notes := fx.notifier.all()
	require.Len(t, notes, 1)
	assert.Equal(t, "bob", notes[0].UserID)
	assert.Equal(t, "alice", notes[0].Title)
	assert.Equal(t, "hello there", notes[0].Body)
}

func TestSendDirectMessageValidation(t *testing.T) {
	fx := newFixture()
	fx.users.add("alice", "alice")
	conn := newFakeConn("alice")

	err := fx.svc.SendDirectMessage(context.Background(), conn, chatSendPayload{Message: "hi"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	err = fx.svc.SendDirectMessage(context.Background(), conn, chatSendPayload{ReceiverID: "bob", Message: "   "})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestSendDirectMessageUnknownReceiver(t *testing.T) {
	fx := newFixture()
	fx.users.add("alice", "alice")
	conn := newFakeConn("alice")

	err := fx.svc.SendDirectMessage(context.Background(), conn, chatSendPayload{
		ReceiverID: "ghost",
		Message:    "hello?",
	})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Empty(t, fx.registry.events)
}

func TestSendDirectMessageAttachmentsOnly(t *testing.T) {
	fx := newFixture()
	fx.users.add("alice", "alice")
	fx.users.add("bob", "bob")
	conn := newFakeConn("alice")

	err := fx.svc.SendDirectMessage(context.Background(), conn, chatSendPayload{
		ReceiverID:  "bob",
		Attachments: []AttachmentInput{{FileName: "photo.png", MimeType: "image/png"}},
	})
	require.NoError(t, err)

	notes := fx.notifier.all()
	require.Len(t, notes, 1)
	assert.Equal(t, "Sent a file", notes[0].Body)

	msg := fx.registry.sent("user:bob", EvReceiveChatMessage)[0].Payload.(chatPayload).Chat.(models.Message)
	assert.Equal(t, models.MessageTypeFile, msg.Type)
}

func TestChatChangeLoadsFirstPage(t *testing.T) {
	fx := newFixture()
	fx.users.add("alice", "alice")
	fx.users.add("bob", "bob")
	conn := newFakeConn("alice")

	require.NoError(t, fx.svc.SendDirectMessage(context.Background(), conn, chatSendPayload{
		ReceiverID: "bob",
		Message:    "opener",
	}))

	require.NoError(t, fx.svc.ChatChange(context.Background(), conn, "bob"))

	pages := conn.emitted(EvChatMessages)
	require.Len(t, pages, 1)
	history := pages[0].Payload.(chatPayload).Chat.([]models.Message)
	require.Len(t, history, 1)
	assert.Equal(t, "opener", history[0].Content)

	u, err := fx.users.FindByID(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "bob", u.ActiveChatID)
}

func TestChatChangeUnknownReceiver(t *testing.T) {
	fx := newFixture()
	fx.users.add("alice", "alice")
	conn := newFakeConn("alice")

	err := fx.svc.ChatChange(context.Background(), conn, "ghost")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Empty(t, conn.emitted(EvChatMessages))

	err = fx.svc.ChatChange(context.Background(), conn, "")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestAttachmentsSurviveHistoryRoundTrip(t *testing.T) {
	fx := newFixture()
	fx.users.add("alice", "alice")
	fx.users.add("bob", "bob")
	conn := newFakeConn("alice")

	require.NoError(t, fx.svc.SendDirectMessage(context.Background(), conn, chatSendPayload{
		ReceiverID: "bob",
		Message:    "two files attached",
		Attachments: []AttachmentInput{
			{FileName: "report.pdf", FileURL: "https://files/report.pdf", MimeType: "application/pdf", FileSize: 2048},
			{FileName: "photo.png", FileURL: "https://files/photo.png", MimeType: "image/png", FileSize: 512},
		},
	}))

	sentID := fx.registry.sent("user:bob", EvReceiveChatMessage)[0].Payload.(chatPayload).Chat.(models.Message).ID

	// The same message read back through either history path carries the
	// full attachment set.
	require.NoError(t, fx.svc.ChatChange(context.Background(), conn, "bob"))
	require.NoError(t, fx.svc.AppendMessages(context.Background(), conn, appendPayload{ReceiverID: "bob", Offset: 0}))

	firstPage := conn.emitted(EvChatMessages)[0].Payload.(chatPayload).Chat.([]models.Message)
	appended := conn.emitted(EvReceiveAppendMessages)[0].Payload.(map[string]any)["chat"].([]models.Message)

	for _, history := range [][]models.Message{firstPage, appended} {
		require.Len(t, history, 1)
		m := history[0]
		assert.Equal(t, sentID, m.ID)
		assert.Equal(t, models.MessageTypeMixed, m.Type)
		require.Len(t, m.Attachments, 2)

		byName := map[string]models.Attachment{}
		for _, a := range m.Attachments {
			byName[a.FileName] = a
		}
		assert.Equal(t, "https://files/report.pdf", byName["report.pdf"].FileURL)
		assert.Equal(t, "application/pdf", byName["report.pdf"].MimeType)
		assert.Equal(t, "https://files/photo.png", byName["photo.png"].FileURL)
		assert.Equal(t, "image/png", byName["photo.png"].MimeType)
	}
}

func TestReadMessageOnlyReceiver(t *testing.T) {
	fx := newFixture()
	fx.users.add("alice", "alice")
	fx.users.add("bob", "bob")
	fx.users.add("eve", "eve")

	sender := newFakeConn("alice")
	require.NoError(t, fx.svc.SendDirectMessage(context.Background(), sender, chatSendPayload{
		ReceiverID: "bob",
		Message:    "secret",
	}))
	msgs, err := fx.messages.DirectHistory(context.Background(), "alice", "bob", 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	// Neither a third party nor the sender may mark it read.
	err = fx.svc.ReadMessage(context.Background(), newFakeConn("eve"), readPayload{MessageID: msgs[0].ID})
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
	err = fx.svc.ReadMessage(context.Background(), sender, readPayload{MessageID: msgs[0].ID})
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

	stored, err := fx.messages.FindByID(context.Background(), msgs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusSent, stored.Status)

	require.NoError(t, fx.svc.ReadMessage(context.Background(), newFakeConn("bob"), readPayload{MessageID: msgs[0].ID}))
	stored, err = fx.messages.FindByID(context.Background(), msgs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusRead, stored.Status)

	// Both parties hear about the read.
	assert.Len(t, fx.registry.sent("user:alice", EvReceiveMessageRead), 1)
	assert.Len(t, fx.registry.sent("user:bob", EvReceiveMessageRead), 1)
}

func TestReadMessageIdempotent(t *testing.T) {
	fx := newFixture()
	fx.users.add("alice", "alice")
	fx.users.add("bob", "bob")

	require.NoError(t, fx.svc.SendDirectMessage(context.Background(), newFakeConn("alice"), chatSendPayload{
		ReceiverID: "bob",
		Message:    "once",
	}))
	msgs, _ := fx.messages.DirectHistory(context.Background(), "alice", "bob", 10, 0)
	require.Len(t, msgs, 1)

	bob := newFakeConn("bob")
	require.NoError(t, fx.svc.ReadMessage(context.Background(), bob, readPayload{MessageID: msgs[0].ID}))
	require.NoError(t, fx.svc.ReadMessage(context.Background(), bob, readPayload{MessageID: msgs[0].ID}))

	stored, _ := fx.messages.FindByID(context.Background(), msgs[0].ID)
	assert.Equal(t, models.MessageStatusRead, stored.Status)
}

func TestAppendMessagesPagination(t *testing.T) {
	fx := newFixture()
	fx.users.add("alice", "alice")
	fx.users.add("bob", "bob")
	conn := newFakeConn("alice")

	for i := 0; i < 30; i++ {
		require.NoError(t, fx.svc.SendDirectMessage(context.Background(), conn, chatSendPayload{
			ReceiverID: "bob",
			Message:    "m",
		}))
	}

	require.NoError(t, fx.svc.AppendMessages(context.Background(), conn, appendPayload{ReceiverID: "bob", Offset: 0}))
	require.NoError(t, fx.svc.AppendMessages(context.Background(), conn, appendPayload{ReceiverID: "bob", Offset: 20}))

	pages := conn.emitted(EvReceiveAppendMessages)
	require.Len(t, pages, 2)

	first := pages[0].Payload.(map[string]any)["chat"].([]models.Message)
	second := pages[1].Payload.(map[string]any)["chat"].([]models.Message)
	assert.Len(t, first, 20)
	assert.Len(t, second, 10)

	// Newest first within a page, and no overlap across pages.
	for i := 1; i < len(first); i++ {
		assert.True(t, first[i-1].CreatedAt.After(first[i].CreatedAt))
	}
	seen := map[string]bool{}
	for _, m := range first {
		seen[m.ID] = true
	}
	for _, m := range second {
		assert.False(t, seen[m.ID])
	}
	assert.True(t, first[len(first)-1].CreatedAt.After(second[0].CreatedAt))
}

func TestAppendMessagesRejectsNegativeOffset(t *testing.T) {
	fx := newFixture()
	fx.users.add("alice", "alice")
	err := fx.svc.AppendMessages(context.Background(), newFakeConn("alice"), appendPayload{ReceiverID: "bob", Offset: -1})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestTypingForwardedToReceiverOnly(t *testing.T) {
	fx := newFixture()
	conn := newFakeConn("alice")
	require.NoError(t, fx.svc.Typing(context.Background(), conn, typingPayload{ReceiverID: "bob", IsTyping: true}))

	sent := fx.registry.sent("user:bob", EvTyping)
	require.Len(t, sent, 1)
	p := sent[0].Payload.(typingPayload)
	assert.Equal(t, "alice", p.SenderID)
	assert.True(t, p.IsTyping)
	assert.Empty(t, fx.registry.sent("user:alice", EvTyping))
}
