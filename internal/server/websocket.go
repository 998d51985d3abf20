package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/purr4furr/purr-backend/internal/service/dating"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsEvent is the envelope for everything pushed down a websocket.
type wsEvent struct {
	Type    string `json:"type"`
	Match   any    `json:"match,omitempty"`
	Message any    `json:"message,omitempty"`
	MatchID string `json:"match_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// wsCommand is what clients send up: subscribe/unsubscribe for a match's
// message stream.
type wsCommand struct {
	Type    string `json:"type"`
	MatchID string `json:"match_id"`
}

// handleWebSocket upgrades the connection and pushes realtime events: the
// user's new matches always, plus message streams for any match the client
// subscribes to. Browser websocket clients cannot set headers, hence the
// token query parameter.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "token required"})
		return
	}
	userID, err := s.tokens.Verify(token)
	if err != nil {
		respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "err", err)
		return
	}

	c := &wsClient{
		server: s,
		conn:   conn,
		userID: userID,
		subs:   make(map[string]dating.Subscription),
	}
	defer c.close()

	matchSub, err := s.backend.SubscribeToMatches(userID, func(m dating.Match) {
		c.send(wsEvent{Type: "match", Match: m})
	})
	if err != nil {
		s.log.Error("match subscription failed", "user", userID, "err", err)
		return
	}
	defer matchSub.Close()

	s.log.Info("websocket connected", "user", userID)
	c.readLoop(r)
}

// wsClient is one live websocket connection and its message subscriptions.
// writeMu serializes writes; gorilla connections allow one writer at a time.
type wsClient struct {
	server *Server
	conn   *websocket.Conn
	userID string

	writeMu sync.Mutex

	mu   sync.Mutex
	subs map[string]dating.Subscription
}

func (c *wsClient) send(ev wsEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.server.log.Debug("websocket write failed", "user", c.userID, "err", err)
	}
}

func (c *wsClient) readLoop(r *http.Request) {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.log.Debug("websocket read failed", "user", c.userID, "err", err)
			}
			return
		}

		var cmd wsCommand
		if err := json.Unmarshal(raw, &cmd); err != nil {
			c.send(wsEvent{Type: "error", Error: "malformed command"})
			continue
		}

		switch cmd.Type {
		case "subscribe_messages":
			c.subscribeMessages(r, cmd.MatchID)
		case "unsubscribe_messages":
			c.unsubscribeMessages(cmd.MatchID)
		default:
			c.send(wsEvent{Type: "error", Error: "unknown command type"})
		}
	}
}

func (c *wsClient) subscribeMessages(r *http.Request, matchID string) {
	if matchID == "" {
		c.send(wsEvent{Type: "error", Error: "match_id required"})
		return
	}

	member, err := c.server.isParticipant(r.Context(), c.userID, matchID)
	if err != nil || !member {
		c.send(wsEvent{Type: "error", Error: "not a participant of this match", MatchID: matchID})
		return
	}

	c.mu.Lock()
	if _, exists := c.subs[matchID]; exists {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	sub, err := c.server.backend.SubscribeToMessages(matchID, func(m dating.Message) {
		c.send(wsEvent{Type: "message", Message: m, MatchID: matchID})
	})
	if err != nil {
		c.server.log.Error("message subscription failed", "match", matchID, "err", err)
		c.send(wsEvent{Type: "error", Error: "subscription failed", MatchID: matchID})
		return
	}

	c.mu.Lock()
	c.subs[matchID] = sub
	c.mu.Unlock()

	c.send(wsEvent{Type: "subscribed", MatchID: matchID})
}

func (c *wsClient) unsubscribeMessages(matchID string) {
	c.mu.Lock()
	sub, ok := c.subs[matchID]
	delete(c.subs, matchID)
	c.mu.Unlock()

	if ok {
		sub.Close()
		c.send(wsEvent{Type: "unsubscribed", MatchID: matchID})
	}
}

func (c *wsClient) close() {
	c.mu.Lock()
	subs := c.subs
	c.subs = make(map[string]dating.Subscription)
	c.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	c.conn.Close()
	c.server.log.Info("websocket disconnected", "user", c.userID)
}
