package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Gateway carries the callbacks a client uses to persist inbound events.
// Both commit to the store before the hub broadcasts anything.
type Gateway struct {
	SubmitQuestion     func(ctx context.Context, sessionID uuid.UUID, text string) error
	SubmitQuizResponse func(ctx context.Context, sessionID, quizID uuid.UUID, deviceID string, option int) error
}

// Client represents a single WebSocket connection watching one session.
type Client struct {
	ID        string
	SessionID uuid.UUID
	UserID    uuid.UUID
	Moderator bool
	hub       *Hub
	gw        *Gateway
	conn      *websocket.Conn
	send      chan WSMessage
	logger    *zap.Logger
	joined    bool
}

// ModeratorCheck reports whether the given user may moderate the session.
type ModeratorCheck func(ctx context.Context, sessionID, userID uuid.UUID, role string) bool

// ServeWs handles the WebSocket upgrade and runs the client loop. The token
// is optional: anonymous viewers connect without one, moderators pass theirs
// to receive the queue replay.
func ServeWs(hub *Hub, logger *zap.Logger, jwtValidate func(token string) (userID, role string, err error), isModerator ModeratorCheck, gw *Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionIDStr := c.Query("session_id")
		if sessionIDStr == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "session_id required"})
			return
		}
		sessionID, err := uuid.Parse(sessionIDStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session_id"})
			return
		}

		var userID uuid.UUID
		moderator := false
		if token := c.Query("token"); token != "" {
			userIDStr, role, err := jwtValidate(token)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			userID, _ = uuid.Parse(userIDStr)
			if isModerator != nil {
				moderator = isModerator(c.Request.Context(), sessionID, userID, role)
			}
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:        uuid.New().String(),
			SessionID: sessionID,
			UserID:    userID,
			Moderator: moderator,
			hub:       hub,
			gw:        gw,
			conn:      conn,
			send:      make(chan WSMessage, 256),
			logger:    logger,
		}
		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		if c.joined {
			c.hub.Unregister(c)
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		switch msg.Event {
		case "join_room":
			if !c.joined {
				c.hub.Register(c)
				c.joined = true
			}
			c.hub.ReplayTo(context.Background(), c)
		case "leave_room":
			if c.joined {
				c.hub.Unregister(c)
				c.joined = false
			}
		case "question":
			if c.gw == nil || c.gw.SubmitQuestion == nil {
				continue
			}
			var payload struct {
				Text string `json:"question_text"`
			}
			if err := json.Unmarshal(msg.Data, &payload); err == nil && payload.Text != "" {
				if err := c.gw.SubmitQuestion(context.Background(), c.SessionID, payload.Text); err != nil {
					c.logger.Warn("submit question", zap.Error(err), zap.String("session_id", c.SessionID.String()))
				}
			}
		case "quiz_response":
			if c.gw == nil || c.gw.SubmitQuizResponse == nil {
				continue
			}
			var payload struct {
				QuizID         uuid.UUID `json:"quiz_id"`
				DeviceID       string    `json:"device_id"`
				SelectedOption int       `json:"selected_option"`
			}
			if err := json.Unmarshal(msg.Data, &payload); err == nil && payload.DeviceID != "" {
				if err := c.gw.SubmitQuizResponse(context.Background(), c.SessionID, payload.QuizID, payload.DeviceID, payload.SelectedOption); err != nil {
					c.logger.Warn("submit quiz response", zap.Error(err), zap.String("quiz_id", payload.QuizID.String()))
				}
			}
		default:
			// ignore
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
