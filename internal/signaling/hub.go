package signaling

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Hub is the central brain of the signaling server. It owns the three
// registries that make up all server state: connected users, active
// rooms, and which room each user currently occupies. Nothing outside
// this package touches the maps directly; all access goes through the
// operations below.
//
// h.mu guards the maps themselves; each Room guards its own participant
// set. Lock order is always hub before room.
type Hub struct {
	mu         sync.RWMutex
	conns      map[string]*Client // user id -> live transport
	rooms      map[string]*Room   // room id -> room
	membership map[string]string  // user id -> room id (at most one)
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		conns:      make(map[string]*Client),
		rooms:      make(map[string]*Room),
		membership: make(map[string]string),
	}
}

// Register stores the client as the live transport for its user id. A
// second connection under the same id silently replaces the first; the
// replaced transport is shut down but the user's room state carries over
// to the new connection.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	old := h.conns[c.UserID]
	h.conns[c.UserID] = c
	h.mu.Unlock()

	if old != nil {
		slog.Warn("replacing existing connection", "user", c.UserID)
		old.closeSend()
	}
	slog.Info("user connected", "user", c.UserID)
}

// Route dispatches one inbound frame from c. Frames reach this point
// already validated by ParseFrame.
func (h *Hub) Route(c *Client, frame *Frame) {
	switch frame.Type {
	case TypeJoinRoom:
		h.join(c, frame.RoomID)
	case TypeOffer, TypeAnswer, TypeICECandidate:
		h.relay(c, frame)
	default:
		slog.Debug("ignoring unroutable frame", "user", c.UserID, "type", frame.Type)
	}
}

// departure captures what a leave needs to announce after the locks are
// released: who still remains in the room left behind.
type departure struct {
	remaining []string
}

// leaveLocked removes user from roomID, deleting the room the moment it
// empties. Caller holds h.mu and announces the departure to the returned
// remaining participants afterwards. Returns nil if the user was not
// actually a member.
func (h *Hub) leaveLocked(user, roomID string) *departure {
	delete(h.membership, user)

	room, ok := h.rooms[roomID]
	if !ok {
		// Stale membership entry; nothing else to unwind.
		return nil
	}
	remaining, wasMember, empty := room.remove(user)
	if !wasMember {
		return nil
	}
	if empty {
		delete(h.rooms, roomID)
		slog.Info("room deleted", "room", roomID)
	}
	return &departure{remaining: remaining}
}

func (h *Hub) userLeftFrame(user string, remaining []string) *Frame {
	return &Frame{Type: TypeUserLeft, UserID: user, Participants: remaining}
}

// join adds c's user to roomID, creating the room on first use. Joining
// the room the user is already in is a no-op. Joining a different room
// implies leaving the current one first, departure announcement included.
func (h *Hub) join(c *Client, roomID string) {
	user := c.UserID

	var left *departure
	h.mu.Lock()
	if prev, ok := h.membership[user]; ok {
		if prev == roomID {
			h.mu.Unlock()
			slog.Debug("ignoring repeat join", "user", user, "room", roomID)
			return
		}
		left = h.leaveLocked(user, prev)
	}

	room, ok := h.rooms[roomID]
	if !ok {
		room = newRoom(roomID)
		h.rooms[roomID] = room
	}
	newJoin := room.add(user)
	h.membership[user] = roomID
	participants := room.Participants()
	h.mu.Unlock()

	if left != nil {
		h.sendToUsers(left.remaining, h.userLeftFrame(user, left.remaining))
	}
	if !newJoin {
		return
	}

	// Tell the room about the newcomer, then confirm to the newcomer
	// with the full list including itself.
	announce := &Frame{Type: TypeUserJoined, UserID: user, Participants: participants}
	for _, p := range participants {
		if p != user {
			h.send(p, announce)
		}
	}
	c.trySend(&Frame{Type: TypeRoomJoined, RoomID: roomID, Participants: participants})

	slog.Info("user joined room", "user", user, "room", roomID, "participants", len(participants))
}

// relay forwards an offer/answer/ice-candidate to everyone else in the
// sender's current room, stamping from_user. A sender with no current
// room is silently dropped; the payload stays opaque either way.
func (h *Hub) relay(c *Client, frame *Frame) {
	h.mu.RLock()
	roomID, ok := h.membership[c.UserID]
	h.mu.RUnlock()

	if !ok {
		slog.Debug("dropping signal from user without a room", "user", c.UserID, "type", frame.Type)
		return
	}

	h.Broadcast(roomID, &Frame{
		Type:     frame.Type,
		Data:     frame.Data,
		FromUser: c.UserID,
	}, c.UserID)
}

// Broadcast delivers frame to every current participant of roomID except
// exclude (empty string excludes nobody). Delivery is best effort and
// independent per recipient: each is attempted exactly once and one
// failure never aborts the rest. An unknown room is a no-op.
func (h *Hub) Broadcast(roomID string, frame *Frame, exclude string) {
	h.mu.RLock()
	room, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	for _, user := range room.Participants() {
		if user != exclude {
			h.send(user, frame)
		}
	}
}

// send pushes frame to user's transport if the user is connected.
func (h *Hub) send(user string, frame *Frame) {
	h.mu.RLock()
	c, ok := h.conns[user]
	h.mu.RUnlock()
	if ok {
		c.trySend(frame)
	}
}

func (h *Hub) sendToUsers(users []string, frame *Frame) {
	for _, user := range users {
		h.send(user, frame)
	}
}

// Disconnect runs the full cleanup for a terminated connection: the
// transport registration, the user's room membership, and the departure
// announcement to whoever remains in the room. Every step is a no-op if
// the relevant state is already gone, so a second invocation is harmless.
func (h *Hub) Disconnect(c *Client, cause DisconnectCause) {
	h.cleanup(c.UserID, c)
	slog.Info("user disconnected", "user", c.UserID, "cause", cause.String())
}

// cleanup unwinds all registry state for user. When expect is non-nil the
// cleanup only proceeds if that client still owns the connection entry;
// otherwise a newer connection has taken over the user id and only the
// stale transport is shut down.
func (h *Hub) cleanup(user string, expect *Client) {
	h.mu.Lock()
	c := h.conns[user]
	if expect != nil && c != expect {
		h.mu.Unlock()
		expect.closeSend()
		return
	}
	delete(h.conns, user)

	var left *departure
	if roomID, ok := h.membership[user]; ok {
		left = h.leaveLocked(user, roomID)
	}
	h.mu.Unlock()

	if left != nil {
		h.sendToUsers(left.remaining, h.userLeftFrame(user, left.remaining))
	}
	if c != nil {
		c.closeSend()
	}
}

// RoomSummary is the list-rooms view of a room.
type RoomSummary struct {
	RoomID           string    `json:"room_id"`
	CreatedAt        time.Time `json:"created_at"`
	ParticipantCount int       `json:"participant_count"`
}

// RoomView is the single-room view, participant list included.
type RoomView struct {
	RoomID           string    `json:"room_id"`
	CreatedAt        time.Time `json:"created_at"`
	Participants     []string  `json:"participants"`
	ParticipantCount int       `json:"participant_count"`
}

// CreateRoom registers a fresh empty room under a server-generated id.
// Explicitly created rooms are the one case where an empty room may sit
// in the registry: they live until first joined and emptied again.
func (h *Hub) CreateRoom() RoomSummary {
	room := newRoom(uuid.NewString())

	h.mu.Lock()
	h.rooms[room.ID] = room
	h.mu.Unlock()

	slog.Info("room created", "room", room.ID)
	return RoomSummary{RoomID: room.ID, CreatedAt: room.CreatedAt}
}

// GetRoom returns the read view of roomID, reporting whether it exists.
func (h *Hub) GetRoom(roomID string) (RoomView, bool) {
	h.mu.RLock()
	room, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if !ok {
		return RoomView{}, false
	}

	participants := room.Participants()
	return RoomView{
		RoomID:           room.ID,
		CreatedAt:        room.CreatedAt,
		Participants:     participants,
		ParticipantCount: len(participants),
	}, true
}

// ListRooms returns a summary of every room currently in the registry.
func (h *Hub) ListRooms() []RoomSummary {
	h.mu.RLock()
	rooms := lo.Values(h.rooms)
	h.mu.RUnlock()

	return lo.Map(rooms, func(r *Room, _ int) RoomSummary {
		return RoomSummary{
			RoomID:           r.ID,
			CreatedAt:        r.CreatedAt,
			ParticipantCount: r.size(),
		}
	})
}

// DeleteRoom force-removes roomID regardless of participant count: every
// participant hears room-closed, is then fully cleaned up as if it had
// disconnected, and finally the room record itself is erased. Reports
// whether the room existed.
func (h *Hub) DeleteRoom(roomID string) bool {
	h.mu.RLock()
	room, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	h.Broadcast(roomID, &Frame{Type: TypeRoomClosed}, "")
	for _, user := range room.Participants() {
		h.cleanup(user, nil)
	}

	h.mu.Lock()
	if cur, ok := h.rooms[roomID]; ok && cur == room {
		delete(h.rooms, roomID)
	}
	h.mu.Unlock()

	slog.Info("room force-deleted", "room", roomID)
	return true
}

// Stats reports active room and connected user counts for the health
// endpoint.
func (h *Hub) Stats() (rooms, users int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms), len(h.conns)
}
