package live

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/AdamBeresnev/bracket-resolver/internal/bracket"
	"github.com/AdamBeresnev/bracket-resolver/internal/service"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const TypeBracketResolved = "BRACKET_RESOLVED"

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
	RoomID  string `json:"room_id,omitempty"`
}

type ResolvedMatch struct {
	MatchNumber      int         `json:"matchNumber"`
	MatchID          uuid.UUID   `json:"matchId"`
	TeamIDs          []uuid.UUID `json:"teamIds"`
	PlaceholderRight bool        `json:"placeholderRight"`
}

type ResolvedPayload struct {
	BracketID uuid.UUID       `json:"bracketId"`
	Updated   int             `json:"updated"`
	Failed    int             `json:"failed"`
	Message   string          `json:"message"`
	Matches   []ResolvedMatch `json:"matches"`
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	room string
}

// Hub fans bracket events out to the websocket clients watching that bracket.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*client]struct{}
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHub accepts websocket connections from allowedOrigins, or from the same
// origin only when the list is empty.
func NewHub(allowedOrigins []string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Hub{
		rooms:  make(map[string]map[*client]struct{}),
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	if len(allowedOrigins) > 0 {
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowedOrigins, origin)
		}
	}
	return h
}

func RoomForBracket(bracketID uuid.UUID) string {
	return "bracket_" + bracketID.String()
}

// ServeBracket upgrades the request and subscribes the connection to bracketID's room.
func (h *Hub) ServeBracket(w http.ResponseWriter, r *http.Request, bracketID string) {
	id, err := uuid.Parse(bracketID)
	if err != nil {
		http.Error(w, "Invalid bracket ID", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		h.logger.Warn("websocket upgrade failed", "bracket", id, "error", err)
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		room: RoomForBracket(id),
	}
	h.register(c)

	go c.writePump()
	go c.readPump()
}

func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) BroadcastToRoom(room string, msgType string, payload any) {
	data, err := json.Marshal(Message{Type: msgType, Payload: payload, RoomID: room})
	if err != nil {
		h.logger.Error("failed to encode websocket message", "room", room, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[room] {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("websocket client is not keeping up, dropping message", "room", room)
		}
	}
}

func (h *Hub) NotifyResolved(bracketID uuid.UUID, outcomes []bracket.Outcome, summary service.Summary) {
	payload := ResolvedPayload{
		BracketID: bracketID,
		Updated:   summary.Updated,
		Failed:    summary.Failed,
		Message:   summary.Message(),
		Matches:   make([]ResolvedMatch, 0, len(outcomes)),
	}
	for _, o := range outcomes {
		payload.Matches = append(payload.Matches, ResolvedMatch{
			MatchNumber:      o.MatchNumber,
			MatchID:          o.MatchID,
			TeamIDs:          o.TeamIDs(),
			PlaceholderRight: o.PlaceholderRight,
		})
	}
	h.BroadcastToRoom(RoomForBracket(bracketID), TypeBracketResolved, payload)
}

var _ service.ResolveNotifier = (*Hub)(nil)

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[c.room]; !ok {
		h.rooms[c.room] = make(map[*client]struct{})
	}
	h.rooms[c.room][c] = struct{}{}
	h.logger.Debug("websocket client joined", "room", c.room, "clients", len(h.rooms[c.room]))
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.rooms[c.room]
	if !ok {
		return
	}
	if _, ok := clients[c]; !ok {
		return
	}

	delete(clients, c)
	close(c.send)
	if len(clients) == 0 {
		delete(h.rooms, c.room)
	}
	h.logger.Debug("websocket client left", "room", c.room, "clients", len(clients))
}

// readPump only handles control frames, clients have nothing to say.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket closed unexpectedly", "room", c.room, "error", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
