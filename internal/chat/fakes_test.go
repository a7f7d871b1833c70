package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Omdevsinh-Zala/chat-backend/internal/apperr"
	"github.com/Omdevsinh-Zala/chat-backend/internal/logger"
	"github.com/Omdevsinh-Zala/chat-backend/internal/models"
)

// The fakes mirror the persistence layer's observable contract, including
// the error kinds and messages the service branches on.

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[string]*models.User{}}
}

func (f *fakeUsers) add(id, username string) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &models.User{ID: id, Username: username, FirstName: username}
	f.users[id] = u
	return u
}

func (f *fakeUsers) Create(ctx context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Username == u.Username {
			return apperr.Conflict("username already taken")
		}
	}
	f.users[u.ID] = u
	return nil
}

func (f *fakeUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) FindByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.User
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeUsers) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("user not found")
}

func (f *fakeUsers) UsernameTaken(ctx context.Context, username string) (bool, error) {
	_, err := f.FindByUsername(ctx, username)
	return err == nil, nil
}

func (f *fakeUsers) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return apperr.NotFound("user not found")
	}
	if upd.FirstName != "" {
		u.FirstName = upd.FirstName
	}
	if upd.LastName != "" {
		u.LastName = upd.LastName
	}
	if upd.AvatarURL != "" {
		u.AvatarURL = upd.AvatarURL
	}
	return nil
}

func (f *fakeUsers) SetOnline(ctx context.Context, id string, online bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		u.Online = online
	}
	return nil
}

func (f *fakeUsers) SetActiveChat(ctx context.Context, id, chatID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		u.ActiveChatID = chatID
	}
	return nil
}

func (f *fakeUsers) SoftDelete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, id)
	return nil
}

type fakeChannels struct {
	mu       sync.Mutex
	channels map[string]*models.Channel
	members  map[string]map[string]*models.ChannelMember
}

func newFakeChannels() *fakeChannels {
	return &fakeChannels{
		channels: map[string]*models.Channel{},
		members:  map[string]map[string]*models.ChannelMember{},
	}
}

func (f *fakeChannels) Create(ctx context.Context, ch *models.Channel, owner *models.ChannelMember) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	ch.CreatedAt = now
	if ch.Status == "" {
		ch.Status = models.ChannelStatusActive
	}
	owner.ChannelID = ch.ID
	owner.Role = models.RoleOwner
	owner.JoinedAt = now
	f.channels[ch.ID] = ch
	f.members[ch.ID] = map[string]*models.ChannelMember{owner.UserID: owner}
	return nil
}

func (f *fakeChannels) FindByID(ctx context.Context, id string) (*models.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[id]
	if !ok || ch.Status == models.ChannelStatusDeleted {
		return nil, apperr.NotFound("channel not found")
	}
	cp := *ch
	return &cp, nil
}

func (f *fakeChannels) SoftDelete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[id]
	if !ok || ch.Status == models.ChannelStatusDeleted {
		return apperr.NotFound("channel not found")
	}
	ch.Status = models.ChannelStatusDeleted
	return nil
}

func (f *fakeChannels) ListForUser(ctx context.Context, userID string) ([]models.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Channel
	for chID, ms := range f.members {
		if _, ok := ms[userID]; !ok {
			continue
		}
		if ch, ok := f.channels[chID]; ok && ch.Status != models.ChannelStatusDeleted {
			out = append(out, *ch)
		}
	}
	return out, nil
}

func (f *fakeChannels) Member(ctx context.Context, channelID, userID string) (*models.ChannelMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[channelID][userID]
	if !ok {
		return nil, apperr.NotFound("not a member of this channel")
	}
	cp := *m
	return &cp, nil
}

func (f *fakeChannels) AddMember(ctx context.Context, m *models.ChannelMember) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.members[m.ChannelID]
	if !ok {
		set = map[string]*models.ChannelMember{}
		f.members[m.ChannelID] = set
	}
	if _, exists := set[m.UserID]; exists {
		return apperr.Conflict("user is already a member of this channel")
	}
	m.JoinedAt = time.Now().UTC()
	set[m.UserID] = m
	return nil
}

func (f *fakeChannels) RemoveMember(ctx context.Context, channelID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.members[channelID][userID]; !ok {
		return apperr.NotFound("not a member of this channel")
	}
	delete(f.members[channelID], userID)
	return nil
}

func (f *fakeChannels) Members(ctx context.Context, channelID string) ([]models.ChannelMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ChannelMember
	for _, m := range f.members[channelID] {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (f *fakeChannels) UpdateRole(ctx context.Context, channelID, userID, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[channelID][userID]
	if !ok {
		return apperr.NotFound("not a member of this channel")
	}
	m.Role = role
	return nil
}

func (f *fakeChannels) SwapOwner(ctx context.Context, channelID, currentOwnerID, newOwnerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.members[channelID][currentOwnerID]
	if !ok || cur.Role != models.RoleOwner {
		return apperr.Conflict("channel ownership changed, retry")
	}
	next, ok := f.members[channelID][newOwnerID]
	if !ok {
		return apperr.NotFound("target user is not a member of this channel")
	}
	cur.Role = models.RoleAdmin
	next.Role = models.RoleOwner
	if ch, ok := f.channels[channelID]; ok {
		ch.OwnerID = newOwnerID
	}
	return nil
}

func (f *fakeChannels) TouchLastRead(ctx context.Context, channelID, userID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[channelID][userID]
	if !ok {
		return apperr.NotFound("not a member of this channel")
	}
	if m.LastReadAt == nil || at.After(*m.LastReadAt) {
		m.LastReadAt = &at
	}
	return nil
}

type fakeMessages struct {
	mu   sync.Mutex
	rows []*models.Message
	seq  time.Time
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{seq: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeMessages) CreateWithAttachments(ctx context.Context, m *models.Message, atts []models.Attachment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	f.seq = f.seq.Add(time.Second)
	m.CreatedAt = f.seq
	for i := range atts {
		if atts[i].ID == "" {
			atts[i].ID = uuid.NewString()
		}
		atts[i].MessageID = m.ID
	}
	m.Attachments = atts
	cp := *m
	f.rows = append(f.rows, &cp)
	return nil
}

func (f *fakeMessages) FindByID(ctx context.Context, id string) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.rows {
		if m.ID == id {
			cp := *m
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("message not found")
}

func (f *fakeMessages) DirectHistory(ctx context.Context, userA, userB string, limit, offset int64) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []models.Message
	for _, m := range f.rows {
		direct := (m.SenderID == userA && m.ReceiverID == userB) ||
			(m.SenderID == userB && m.ReceiverID == userA)
		if m.ChannelID == "" && direct {
			all = append(all, *m)
		}
	}
	return pageNewestFirst(all, limit, offset), nil
}

func (f *fakeMessages) ChannelHistory(ctx context.Context, channelID string, limit, offset int64) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []models.Message
	for _, m := range f.rows {
		if m.ChannelID == channelID {
			all = append(all, *m)
		}
	}
	return pageNewestFirst(all, limit, offset), nil
}

func (f *fakeMessages) MarkRead(ctx context.Context, messageID, receiverID string) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.rows {
		if m.ID != messageID {
			continue
		}
		if m.ReceiverID != receiverID {
			return nil, apperr.Authorization("only the message receiver can mark it as read")
		}
		m.Status = models.MessageStatusRead
		cp := *m
		return &cp, nil
	}
	return nil, apperr.NotFound("message not found")
}

func (f *fakeMessages) RecentDirect(ctx context.Context, userID string, limit int64) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []models.Message
	for _, m := range f.rows {
		if m.ChannelID != "" {
			continue
		}
		if m.SenderID == userID || m.ReceiverID == userID {
			all = append(all, *m)
		}
	}
	return pageNewestFirst(all, limit, 0), nil
}

func pageNewestFirst(all []models.Message, limit, offset int64) []models.Message {
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= int64(len(all)) {
		return nil
	}
	all = all[offset:]
	if limit > 0 && int64(len(all)) > limit {
		all = all[:limit]
	}
	return all
}

type sentEvent struct {
	Target  string
	Event   string
	Payload any
}

// fakeRegistry records every fan-out call in order, across all targets, so
// tests can assert both recipients and sequencing.
type fakeRegistry struct {
	mu     sync.Mutex
	events []sentEvent
	rooms  map[string]map[string]struct{}
	online map[string]bool
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		rooms:  map[string]map[string]struct{}{},
		online: map[string]bool{},
	}
}

func (f *fakeRegistry) record(target, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sentEvent{Target: target, Event: event, Payload: payload})
}

func (f *fakeRegistry) BroadcastToUser(userID, event string, payload any) {
	f.record("user:"+userID, event, payload)
}

func (f *fakeRegistry) BroadcastToChannel(channelID, event string, payload any) {
	f.record("channel:"+channelID, event, payload)
}

func (f *fakeRegistry) BroadcastToChannelExcept(channelID, exceptUserID, event string, payload any) {
	f.record("channel:"+channelID+":except:"+exceptUserID, event, payload)
}

func (f *fakeRegistry) BroadcastAllExcept(exceptUserID, event string, payload any) {
	f.record("all:except:"+exceptUserID, event, payload)
}

func (f *fakeRegistry) JoinChannelRoom(channelID, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rooms[channelID] == nil {
		f.rooms[channelID] = map[string]struct{}{}
	}
	f.rooms[channelID][userID] = struct{}{}
}

func (f *fakeRegistry) LeaveChannelRoom(channelID, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms[channelID], userID)
}

func (f *fakeRegistry) DropChannelRoom(channelID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms, channelID)
}

func (f *fakeRegistry) IsOnline(userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online[userID]
}

func (f *fakeRegistry) inRoom(channelID, userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.rooms[channelID][userID]
	return ok
}

func (f *fakeRegistry) sent(target, event string) []sentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentEvent
	for _, e := range f.events {
		if e.Target == target && e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeRegistry) firstIndex(target, event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.events {
		if e.Target == target && e.Event == event {
			return i
		}
	}
	return -1
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
	err  error
}

func (f *fakeNotifier) Dispatch(ctx context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, *n)
	return nil
}

func (f *fakeNotifier) all() []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Notification(nil), f.sent...)
}

type fakeConn struct {
	userID string
	expiry time.Time
	mu     sync.Mutex
	emits  []sentEvent
}

func newFakeConn(userID string) *fakeConn {
	return &fakeConn{userID: userID, expiry: time.Now().Add(time.Hour)}
}

func (f *fakeConn) UserID() string    { return f.userID }
func (f *fakeConn) Expiry() time.Time { return f.expiry }

func (f *fakeConn) Emit(event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emits = append(f.emits, sentEvent{Event: event, Payload: payload})
}

func (f *fakeConn) emitted(event string) []sentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentEvent
	for _, e := range f.emits {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	svc      *Service
	users    *fakeUsers
	channels *fakeChannels
	messages *fakeMessages
	registry *fakeRegistry
	notifier *fakeNotifier
}

func newFixture() *fixture {
	users := newFakeUsers()
	channels := newFakeChannels()
	messages := newFakeMessages()
	registry := newFakeRegistry()
	notifier := &fakeNotifier{}
	svc := NewService(users, channels, messages, registry, notifier, logger.Nop(), Options{})
	return &fixture{
		svc:      svc,
		users:    users,
		channels: channels,
		messages: messages,
		registry: registry,
		notifier: notifier,
	}
}

func (fx *fixture) channel(ownerID, title string) *models.Channel {
	ch, err := fx.svc.CreateChannel(context.Background(), ownerID, title, "", models.ChannelTypePublic)
	if err != nil {
		panic(err)
	}
	return ch
}
