package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/netcanvas/netcanvas/pkg/collab"
	"github.com/netcanvas/netcanvas/pkg/errors"
)

// Client→server event names. Server→client names live in the collab package.
const (
	eventJoinRoom       = "join-room"
	eventLeaveRoom      = "leave-room"
	eventNodeUpdate     = "node-update"
	eventPositionUpdate = "node-position-update"
	eventPresence       = "user-presence"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20

	// Outbound buffer per connection. A client that falls this far behind
	// starts losing events rather than stalling the room.
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API is same-origin in production and proxied in development;
	// origin enforcement belongs to the proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsClient is one websocket connection. It implements collab.Sender: events
// enter the buffered send channel and a single writer goroutine drains it,
// which preserves per-connection FIFO delivery.
type wsClient struct {
	id     string
	conn   *websocket.Conn
	send   chan collab.Event
	done   chan struct{}
	server *Server
}

func (c *wsClient) ID() string { return c.id }

// Send queues an event for delivery. A full buffer or a closed connection
// drops the event; the broadcaster logs the drop and moves on. The send
// channel is never closed, so a fan-out racing a disconnect is harmless.
func (c *wsClient) Send(ev collab.Event) error {
	select {
	case <-c.done:
		return errors.New(errors.ErrCodeTransientIO, "connection closed")
	case c.send <- ev:
		return nil
	default:
		return errors.New(errors.ErrCodeTransientIO, "send buffer full")
	}
}

// inboundMessage is the client→server envelope.
type inboundMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	c := &wsClient{
		id:     uuid.NewString(),
		conn:   conn,
		send:   make(chan collab.Event, sendBuffer),
		done:   make(chan struct{}),
		server: s,
	}
	s.logger.Info("websocket connected", "conn", c.id, "remote", r.RemoteAddr)

	go c.writePump()
	c.readPump(r.Context())
}

// readPump reads client messages until the connection dies, then tears the
// session down. It runs on the handler goroutine.
func (c *wsClient) readPump(ctx context.Context) {
	s := c.server
	defer func() {
		s.broadcaster.Disconnect(ctx, c.id)
		close(c.done)
		c.conn.Close()
		s.logger.Info("websocket disconnected", "conn", c.id)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read failed", "conn", c.id, "err", err)
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.sendError(errors.Wrap(errors.ErrCodeInvalidPayload, err, "malformed message"))
			continue
		}
		if err := c.dispatch(ctx, msg); err != nil {
			c.sendError(err)
		}
	}
}

func (c *wsClient) dispatch(ctx context.Context, msg inboundMessage) error {
	s := c.server
	switch msg.Event {
	case eventJoinRoom:
		room, user, err := parseJoinPayload(msg.Data)
		if err != nil {
			return err
		}
		return s.broadcaster.Join(ctx, room, c, user)

	case eventLeaveRoom:
		room, _, err := parseJoinPayload(msg.Data)
		if err != nil {
			return err
		}
		s.broadcaster.Leave(ctx, room, c.id)
		return nil

	case eventNodeUpdate:
		room, payload, err := parseRoomPayload(msg.Data)
		if err != nil {
			return err
		}
		return s.broadcaster.NodeUpdate(ctx, room, c.id, payload)

	case eventPositionUpdate:
		room, payload, err := parseRoomPayload(msg.Data)
		if err != nil {
			return err
		}
		return s.broadcaster.PositionUpdate(ctx, room, c.id, payload)

	case eventPresence:
		room, payload, err := parseRoomPayload(msg.Data)
		if err != nil {
			return err
		}
		return s.broadcaster.Presence(ctx, room, c.id, payload)

	default:
		return errors.New(errors.ErrCodeInvalidPayload, "unknown event %q", msg.Event)
	}
}

// parseJoinPayload accepts either a bare configuration id string or an
// object with configId and optional user identity.
func parseJoinPayload(data json.RawMessage) (room string, user any, err error) {
	var id string
	if json.Unmarshal(data, &id) == nil && id != "" {
		return id, nil, nil
	}

	var obj struct {
		ConfigID string `json:"configId"`
		User     any    `json:"user"`
	}
	if err := json.Unmarshal(data, &obj); err != nil || obj.ConfigID == "" {
		return "", nil, errors.New(errors.ErrCodeInvalidPayload, "join payload must carry a configuration id")
	}
	return obj.ConfigID, obj.User, nil
}

// parseRoomPayload extracts the target room from the payload's configId
// field and returns the full payload for verbatim relay.
func parseRoomPayload(data json.RawMessage) (string, map[string]any, error) {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", nil, errors.Wrap(errors.ErrCodeInvalidPayload, err, "payload must be an object")
	}
	room, _ := payload["configId"].(string)
	if room == "" {
		return "", nil, errors.New(errors.ErrCodeInvalidPayload, "payload must carry configId")
	}
	return room, payload, nil
}

// sendError pushes an error event back to this connection only.
func (c *wsClient) sendError(err error) {
	c.Send(collab.Event{
		Name: "error",
		Data: map[string]string{"error": errors.UserMessage(err)},
	})
}

// writePump serializes outbound events and keeps the connection alive with
// pings. It exits when the send channel closes or a write fails.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case ev := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
