package inspect

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/pathway/pkg/router"
)

// MessageType is the type of a stream message.
type MessageType string

const (
	MessageState      MessageType = "state"
	MessageNavigation MessageType = "navigation"
)

// Message is sent to stream clients.
type Message struct {
	Type       MessageType      `json:"type"`
	State      *Snapshot        `json:"state,omitempty"`
	Navigation *NavigationEvent `json:"navigation,omitempty"`
}

// NavigationEvent is the JSON form of a router.NavigationEvent.
type NavigationEvent struct {
	Token     uint64        `json:"token"`
	Href      string        `json:"href"`
	Outcome   string        `json:"outcome"`
	Error     string        `json:"error,omitempty"`
	Redirects int           `json:"redirects,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// sendBuffer is the number of messages queued per client. A client that
// falls further behind is disconnected.
const sendBuffer = 64

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// Stream pushes router snapshots and navigation events to websocket
// clients. It is a router.Observer; pass it to router.WithObserver to
// receive navigation events, and to WithStream to serve it.
type Stream struct {
	clients  map[*client]bool
	mu       sync.RWMutex
	upgrader websocket.Upgrader
	logger   *slog.Logger

	// current returns the snapshot sent to new clients.
	current func() Snapshot
}

// NewStream creates a stream.
func NewStream(logger *slog.Logger) *Stream {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stream{
		clients: make(map[*client]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

// HandleWebSocket handles WebSocket upgrade and connection.
func (s *Stream) HandleWebSocket(w http.ResponseWriter, req *http.Request) {
	conn, err := s.upgrader.Upgrade(w, req, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if s.current != nil {
		snap := s.current()
		if data, err := json.Marshal(Message{Type: MessageState, State: &snap}); err == nil {
			c.send <- data
		}
	}

	s.mu.Lock()
	s.clients[c] = true
	s.mu.Unlock()

	go s.writeLoop(c)

	// Keep connection alive until client disconnects
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.remove(c)
}

func (s *Stream) writeLoop(c *client) {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.remove(c)
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}

func (s *Stream) remove(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	c.close()
}

// Broadcast queues msg for every client.
func (s *Stream) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Warn("stream message not encodable", "type", msg.Type, "error", err)
		return
	}

	// Sends happen under the read lock so remove cannot close a channel
	// mid-send.
	var slow []*client
	s.mu.RLock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	s.mu.RUnlock()

	for _, c := range slow {
		s.logger.Debug("dropping slow stream client")
		s.remove(c)
	}
}

// PublishState broadcasts a router state.
func (s *Stream) PublishState(st router.State) {
	snap := SnapshotOf(st)
	s.Broadcast(Message{Type: MessageState, State: &snap})
}

// NavigationStarted implements router.Observer.
func (s *Stream) NavigationStarted(router.NavigationEvent) {}

// NavigationFinished implements router.Observer.
func (s *Stream) NavigationFinished(ev router.NavigationEvent) {
	nav := &NavigationEvent{
		Token:     ev.Token,
		Href:      ev.Location.Href,
		Outcome:   ev.Outcome.String(),
		Redirects: ev.Redirects,
		Duration:  ev.Duration,
	}
	if ev.Err != nil {
		nav.Error = ev.Err.Error()
	}
	s.Broadcast(Message{Type: MessageNavigation, Navigation: nav})
}

// ClientCount returns the number of connected clients.
func (s *Stream) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Close disconnects all clients.
func (s *Stream) Close() {
	s.mu.Lock()
	clients := s.clients
	s.clients = make(map[*client]bool)
	s.mu.Unlock()

	for c := range clients {
		c.close()
	}
}
