package collab

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/netcanvas/netcanvas/pkg/errors"
)

// Server→client event names.
const (
	EventNodeUpdated     = "node-updated"
	EventPositionUpdated = "node-position-updated"
	EventPresenceUpdated = "user-presence-update"
)

// Presence actions carried in user-presence-update payloads.
const (
	PresenceJoined = "joined"
	PresenceLeft   = "left"
)

// Event is one message fanned out to room peers.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

// Sender delivers events to one connection. Implementations must preserve
// per-connection FIFO order; the websocket transport does this with a
// buffered outbound channel drained by a single writer goroutine.
type Sender interface {
	ID() string
	Send(Event) error
}

// Relay republishes room events to other server instances and feeds remote
// events back into the local broadcaster. A nil relay disables cross-instance
// fan-out; single-process deployments need none.
type Relay interface {
	Publish(ctx context.Context, room, senderID string, ev Event) error
	Close() error
}

// Broadcaster fans edit and presence events out to room peers. It owns the
// set of connected senders and composes the Registry for membership; the
// server holds no authoritative copy of node state, so every data event is
// relayed verbatim and durability is the store's concern.
type Broadcaster struct {
	registry *Registry
	relay    Relay
	logger   *log.Logger

	mu      sync.Mutex
	senders map[string]Sender
}

// NewBroadcaster creates a broadcaster over the given registry.
// relay may be nil. A nil logger defaults to the global logger.
func NewBroadcaster(registry *Registry, relay Relay, logger *log.Logger) *Broadcaster {
	if logger == nil {
		logger = log.Default()
	}
	return &Broadcaster{
		registry: registry,
		relay:    relay,
		logger:   logger,
		senders:  make(map[string]Sender),
	}
}

// Registry exposes the underlying room registry, mainly for observability.
func (b *Broadcaster) Registry() *Registry { return b.registry }

// Join registers the sender and adds it to the room, announcing
// {action: "joined", user} to every other participant. The joining
// connection receives no acknowledgment beyond local success.
func (b *Broadcaster) Join(ctx context.Context, room string, s Sender, user any) error {
	if room == "" {
		return errors.New(errors.ErrCodeInvalidRoom, "room id must not be empty")
	}

	b.mu.Lock()
	b.senders[s.ID()] = s
	b.mu.Unlock()

	if !b.registry.Join(room, Participant{ConnID: s.ID(), User: user}) {
		return nil // already a member; do not re-announce
	}

	b.logger.Debug("participant joined", "room", room, "conn", s.ID())
	b.fanOut(ctx, room, s.ID(), Event{
		Name: EventPresenceUpdated,
		Data: map[string]any{"action": PresenceJoined, "user": user, "userId": s.ID()},
	})
	return nil
}

// Leave removes the connection from the room and announces
// {action: "left", userId} to the remaining participants. Safe to call more
// than once; only the first call per room broadcasts.
func (b *Broadcaster) Leave(ctx context.Context, room, connID string) {
	if !b.registry.Leave(room, connID) {
		return
	}
	b.logger.Debug("participant left", "room", room, "conn", connID)
	b.fanOut(ctx, room, connID, Event{
		Name: EventPresenceUpdated,
		Data: map[string]any{"action": PresenceLeft, "userId": connID},
	})
}

// Disconnect tears down a connection: it leaves every joined room (each with
// its own "left" announcement, exactly once) and forgets the sender.
func (b *Broadcaster) Disconnect(ctx context.Context, connID string) {
	for _, room := range b.registry.LeaveAll(connID) {
		b.fanOut(ctx, room, connID, Event{
			Name: EventPresenceUpdated,
			Data: map[string]any{"action": PresenceLeft, "userId": connID},
		})
	}

	b.mu.Lock()
	delete(b.senders, connID)
	b.mu.Unlock()
}

// NodeUpdate relays an edit payload verbatim to all other room participants
// as a node-updated event. The payload shape is not validated; the server is
// a relay, not an authority.
func (b *Broadcaster) NodeUpdate(ctx context.Context, room, connID string, payload any) error {
	return b.submit(ctx, room, connID, Event{Name: EventNodeUpdated, Data: payload})
}

// PositionUpdate relays a node movement verbatim to all other room
// participants as a node-position-updated event.
func (b *Broadcaster) PositionUpdate(ctx context.Context, room, connID string, payload any) error {
	return b.submit(ctx, room, connID, Event{Name: EventPositionUpdated, Data: payload})
}

// Presence relays a client-initiated presence payload to room peers with the
// sender's connection id attached as userId.
func (b *Broadcaster) Presence(ctx context.Context, room, connID string, payload map[string]any) error {
	data := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		data[k] = v
	}
	data["userId"] = connID
	return b.submit(ctx, room, connID, Event{Name: EventPresenceUpdated, Data: data})
}

func (b *Broadcaster) submit(ctx context.Context, room, connID string, ev Event) error {
	if room == "" {
		return errors.New(errors.ErrCodeInvalidRoom, "room id must not be empty")
	}
	b.fanOut(ctx, room, connID, ev)
	return nil
}

// fanOut delivers the event to every room participant except the sender,
// then republishes through the relay when one is configured. Send failures
// are logged and skipped; a slow or dead peer must not stall the room.
func (b *Broadcaster) fanOut(ctx context.Context, room, senderID string, ev Event) {
	peers := b.registry.Peers(room, senderID)

	b.mu.Lock()
	targets := make([]Sender, 0, len(peers))
	for _, p := range peers {
		if s, ok := b.senders[p.ConnID]; ok {
			targets = append(targets, s)
		}
	}
	b.mu.Unlock()

	for _, s := range targets {
		if err := s.Send(ev); err != nil {
			b.logger.Warn("dropping event for peer", "room", room, "conn", s.ID(), "event", ev.Name, "err", err)
		}
	}

	if b.relay != nil {
		if err := b.relay.Publish(ctx, room, senderID, ev); err != nil {
			b.logger.Warn("relay publish failed", "room", room, "event", ev.Name, "err", err)
		}
	}
}

// DeliverRemote injects an event received from another instance via the
// relay. It is fanned out to all local room participants except senderID
// (normally not local anyway) and is never republished, preventing loops.
func (b *Broadcaster) DeliverRemote(room, senderID string, ev Event) {
	peers := b.registry.Peers(room, senderID)

	b.mu.Lock()
	targets := make([]Sender, 0, len(peers))
	for _, p := range peers {
		if s, ok := b.senders[p.ConnID]; ok {
			targets = append(targets, s)
		}
	}
	b.mu.Unlock()

	for _, s := range targets {
		if err := s.Send(ev); err != nil {
			b.logger.Warn("dropping relayed event for peer", "room", room, "conn", s.ID(), "event", ev.Name, "err", err)
		}
	}
}
