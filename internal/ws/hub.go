package ws

import (
	"sync"

	"go.uber.org/zap"

	"github.com/Omdevsinh-Zala/chat-backend/internal/metrics"
)

// Hub is the session registry: it tracks which connections belong to which
// user and which channel rooms each connection is subscribed to. Handlers
// never touch the maps directly; everything goes through these methods.
type Hub struct {
	mu    sync.RWMutex
	users map[string]map[*Client]struct{}
	rooms map[string]map[*Client]struct{}
	log   *zap.SugaredLogger
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		users: make(map[string]map[*Client]struct{}),
		rooms: make(map[string]map[*Client]struct{}),
		log:   log,
	}
}

// Register admits a connection into its user's private room and reports
// whether it is the user's first live connection. Connection counting is what
// keeps a second device from flapping presence.
func (h *Hub) Register(c *Client) (first bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.users[c.userID]
	if conns == nil {
		conns = make(map[*Client]struct{})
		h.users[c.userID] = conns
	}
	first = len(conns) == 0
	conns[c] = struct{}{}
	metrics.ConnectionsActive.Inc()
	return first
}

// Unregister removes the connection from every room and reports whether it
// was the user's last one.
func (h *Hub) Unregister(c *Client) (last bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.users[c.userID]; ok {
		if _, present := conns[c]; present {
			delete(conns, c)
			metrics.ConnectionsActive.Dec()
		}
		if len(conns) == 0 {
			delete(h.users, c.userID)
			last = true
		}
	}
	for id, room := range h.rooms {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, id)
		}
	}
	return last
}

// JoinChannelRoom subscribes every live connection of the user to the
// channel's room.
func (h *Hub) JoinChannelRoom(channelID, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.users[userID]
	if len(conns) == 0 {
		return
	}
	room := h.rooms[channelID]
	if room == nil {
		room = make(map[*Client]struct{})
		h.rooms[channelID] = room
	}
	for c := range conns {
		room[c] = struct{}{}
	}
}

func (h *Hub) LeaveChannelRoom(channelID, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[channelID]
	if room == nil {
		return
	}
	for c := range room {
		if c.userID == userID {
			delete(room, c)
		}
	}
	if len(room) == 0 {
		delete(h.rooms, channelID)
	}
}

// DropChannelRoom evicts every connection from the room at once.
func (h *Hub) DropChannelRoom(channelID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms, channelID)
}

func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}

// BroadcastToUser sends the event to every device of one user.
func (h *Hub) BroadcastToUser(userID, event string, payload any) {
	b, err := Encode(event, payload)
	if err != nil {
		h.log.Errorw("encode broadcast", "event", event, "err", err)
		return
	}
	h.mu.RLock()
	targets := h.snapshot(h.users[userID])
	h.mu.RUnlock()
	h.deliver(targets, b)
}

func (h *Hub) BroadcastToChannel(channelID, event string, payload any) {
	h.broadcastRoom(channelID, "", event, payload)
}

// BroadcastToChannelExcept skips every connection of exceptUserID.
func (h *Hub) BroadcastToChannelExcept(channelID, exceptUserID, event string, payload any) {
	h.broadcastRoom(channelID, exceptUserID, event, payload)
}

func (h *Hub) broadcastRoom(channelID, exceptUserID, event string, payload any) {
	b, err := Encode(event, payload)
	if err != nil {
		h.log.Errorw("encode broadcast", "event", event, "err", err)
		return
	}
	h.mu.RLock()
	room := h.rooms[channelID]
	targets := make([]*Client, 0, len(room))
	for c := range room {
		if exceptUserID != "" && c.userID == exceptUserID {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	h.deliver(targets, b)
}

// BroadcastAllExcept reaches every live connection that does not belong to
// the excluded user. Used for presence and profile change notices.
func (h *Hub) BroadcastAllExcept(exceptUserID, event string, payload any) {
	b, err := Encode(event, payload)
	if err != nil {
		h.log.Errorw("encode broadcast", "event", event, "err", err)
		return
	}
	h.mu.RLock()
	var targets []*Client
	for userID, conns := range h.users {
		if userID == exceptUserID {
			continue
		}
		for c := range conns {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()
	h.deliver(targets, b)
}

func (h *Hub) snapshot(set map[*Client]struct{}) []*Client {
	out := make([]*Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

func (h *Hub) deliver(targets []*Client, b []byte) {
	for _, c := range targets {
		if !c.enqueue(b) {
			// slow consumer or closed; drop the connection, not the loop
			h.log.Warnw("dropping slow consumer", "user_id", c.userID, "conn_id", c.id)
			c.Close()
		}
	}
	metrics.BroadcastsTotal.Add(float64(len(targets)))
}

// ConnectionInfo identifies one live connection for reconciliation sweeps.
type ConnectionInfo struct {
	ConnID string
	UserID string
}

// Connections returns a snapshot of all live connections.
func (h *Hub) Connections() []ConnectionInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []ConnectionInfo
	for userID, conns := range h.users {
		for c := range conns {
			out = append(out, ConnectionInfo{ConnID: c.id, UserID: userID})
		}
	}
	return out
}
