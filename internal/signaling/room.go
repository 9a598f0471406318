package signaling

import (
	"slices"
	"sync"
	"time"
)

// Room groups the participants of one call. The participant slice keeps
// insertion order, which is what clients see as "who joined when".
//
// Each room carries its own lock so that join/leave traffic on one room
// never serializes against another room's.
type Room struct {
	// ID is the unique identifier for the room.
	ID string

	// CreatedAt is when the room record was first created.
	CreatedAt time.Time

	mu           sync.RWMutex
	participants []string
}

func newRoom(id string) *Room {
	return &Room{
		ID:        id,
		CreatedAt: time.Now(),
	}
}

// add appends user to the participant set unless already present.
// Reports whether the user was actually added.
func (r *Room) add(user string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if slices.Contains(r.participants, user) {
		return false
	}
	r.participants = append(r.participants, user)
	return true
}

// remove deletes user from the participant set if present. It returns a
// snapshot of the remaining participants, whether the user was a member,
// and whether the room is now empty.
func (r *Room) remove(user string) (remaining []string, wasMember bool, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := slices.Index(r.participants, user)
	if i < 0 {
		return slices.Clone(r.participants), false, len(r.participants) == 0
	}
	r.participants = slices.Delete(r.participants, i, i+1)
	return slices.Clone(r.participants), true, len(r.participants) == 0
}

// Participants returns a copy of the participant list in join order.
// Never nil, so the list marshals as [] rather than null.
func (r *Room) Participants() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append(make([]string, 0, len(r.participants)), r.participants...)
}

func (r *Room) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants)
}
