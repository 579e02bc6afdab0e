// Package collab implements the collaborative session core: room membership
// tracking and event fan-out between connections editing the same
// configuration.
//
// # Room lifecycle
//
// A room is keyed by configuration id and moves between two states:
//
//	Empty  → Active: first Join creates the room
//	Active → Active: joins and leaves while at least one participant remains
//	Active → Empty:  last Leave (or disconnect) removes the room entirely
//
// Rooms hold no persistent state. A reconnecting client is a brand-new join;
// there is no session resumption or event replay.
//
// # Consistency model
//
// The broadcaster is a relay, not an authority: edit events are forwarded
// verbatim to room peers and the server keeps no copy of node state.
// Delivery is FIFO per originating connection, with no ordering guarantee
// across connections. Two concurrent edits to the same device can race;
// last broadcast wins at each receiver. Durability is delegated to the
// versioned configuration store on explicit save, independently of the
// live broadcast.
package collab

import "sync"

// Participant is one connection's membership in a room.
type Participant struct {
	ConnID string // Unique connection identifier (websocket session id)
	User   any    // Opaque user identity supplied by the client at join
}

// Registry tracks which connections belong to which room. It is the only
// shared mutable state in the collaboration core and is guarded by a single
// mutex, preserving the run-to-completion atomicity the protocol relies on:
// a join/broadcast never interleaves with a leave/broadcast for the same
// room in a way that drops an event.
//
// The zero value is not usable; create one with NewRegistry.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]map[string]Participant
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]map[string]Participant)}
}

// Join adds a participant to a room, creating the room if this is the first
// join. Joining a room the connection is already in updates the stored user
// identity and reports joined=false, keeping presence broadcasts exactly-once.
func (r *Registry) Join(room string, p Participant) (joined bool) {
	if room == "" || p.ConnID == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]Participant)
		r.rooms[room] = members
	}
	_, present := members[p.ConnID]
	members[p.ConnID] = p
	return !present
}

// Leave removes a connection from a room. The room is deleted when its last
// participant leaves. Leave is idempotent: removing an absent connection
// reports left=false, so teardown fires exactly once per connection even if
// an explicit leave races a disconnect.
func (r *Registry) Leave(room, connID string) (left bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(room, connID)
}

func (r *Registry) leaveLocked(room, connID string) bool {
	members, ok := r.rooms[room]
	if !ok {
		return false
	}
	if _, present := members[connID]; !present {
		return false
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
	return true
}

// LeaveAll removes the connection from every room it joined and returns the
// rooms it actually left. Used for abrupt disconnects, which are treated
// identically to an explicit leave per room.
func (r *Registry) LeaveAll(connID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var left []string
	for room, members := range r.rooms {
		if _, present := members[connID]; present {
			r.leaveLocked(room, connID)
			left = append(left, room)
		}
	}
	return left
}

// Peers returns the participants of a room excluding the given connection.
// An unknown room yields nil rather than an error; rooms exist only while
// occupied.
func (r *Registry) Peers(room, exceptConnID string) []Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := r.rooms[room]
	if len(members) == 0 {
		return nil
	}
	peers := make([]Participant, 0, len(members))
	for id, p := range members {
		if id == exceptConnID {
			continue
		}
		peers = append(peers, p)
	}
	return peers
}

// Active reports whether the room currently has any participants.
func (r *Registry) Active(room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rooms[room]
	return ok
}

// ParticipantCount returns the number of participants in a room.
// Returns 0 for unknown rooms.
func (r *Registry) ParticipantCount(room string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms[room])
}

// RoomCount returns the number of active rooms.
func (r *Registry) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}
