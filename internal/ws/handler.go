package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/space-queue-system/internal/engine"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // In production, implement proper origin checking
	},
}

const (
	sendBufferSize = 64
	commandTimeout = 5 * time.Second
	writeTimeout   = 10 * time.Second
)

// Session is one client connection: it holds the authenticated identity,
// subscribes to a single space, translates inbound commands into engine
// calls and pushes committed events back out.
type Session struct {
	conn    *websocket.Conn
	send    chan []byte
	userID  uuid.UUID
	spaceID uuid.UUID
}

type Handler struct {
	hub    *Hub
	engine *engine.Engine
}

func NewHandler(hub *Hub, eng *engine.Engine) *Handler {
	return &Handler{hub: hub, engine: eng}
}

func (h *Handler) HandleWebSocket(c *gin.Context) {
	spaceID, err := uuid.Parse(c.Param("spaceId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid space id"})
		return
	}
	userID, err := uuid.Parse(c.GetString("user_id")) // Set by auth middleware
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user id"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	session := &Session{
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		userID: userID,
	}
	h.hub.Subscribe(spaceID, session)
	defer func() {
		// Disconnection is not an error condition: unsubscribe and nothing
		// else. Unsubscribe also closes the send channel, which stops the
		// write pump.
		h.hub.Unsubscribe(session)
		conn.Close()
	}()

	go session.writePump()
	h.readPump(session)
}

func (s *Session) writePump() {
	for payload := range s.send {
		s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("Failed to send message: %v", err)
			return
		}
	}
}

func (h *Handler) readPump(s *Session) {
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}

		cmd, err := ParseCommand(raw)
		if err != nil {
			s.sendError("", err.Error())
			continue
		}
		h.dispatch(s, cmd)
	}
}

// dispatch maps one command to one engine call. Failures are answered on the
// originating connection only; successful mutations reach everyone through
// the hub.
func (h *Handler) dispatch(s *Session, cmd *Command) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	var err error
	switch cmd.Kind {
	case CmdAddTrack:
		var data AddTrackData
		if err = json.Unmarshal(cmd.Data, &data); err == nil {
			_, err = h.engine.Submit(ctx, s.spaceID, s.userID, data.URL)
		}
	case CmdCastVote:
		var data CastVoteData
		if err = json.Unmarshal(cmd.Data, &data); err == nil {
			direction := engine.VoteDirection(data.Vote)
			if !direction.Valid() {
				s.sendError(cmd.Kind, "vote must be upvote or downvote")
				return
			}
			_, _, err = h.engine.CastVote(ctx, s.spaceID, s.userID, data.TrackID, direction)
		}
	case CmdRemoveTrack:
		var data RemoveTrackData
		if err = json.Unmarshal(cmd.Data, &data); err == nil {
			err = h.engine.Remove(ctx, s.spaceID, s.userID, data.TrackID)
		}
	case CmdEmptyQueue:
		err = h.engine.Clear(ctx, s.spaceID, s.userID)
	case CmdAdvance:
		var data AdvanceData
		if err = json.Unmarshal(cmd.Data, &data); err == nil {
			seq := engine.SeqUnknown
			if data.AdvanceSeq != nil {
				seq = *data.AdvanceSeq
			}
			_, err = h.engine.Advance(ctx, s.spaceID, s.userID, seq)
		}
	case CmdPrivilegedPlay:
		var data PrivilegedPlayData
		if err = json.Unmarshal(cmd.Data, &data); err == nil {
			_, err = h.engine.PrivilegedPlay(ctx, s.spaceID, s.userID, data.URL, data.PaymentToken)
		}
	default:
		s.sendError(cmd.Kind, "unknown command")
		return
	}

	if err != nil {
		s.sendError(cmd.Kind, userMessage(err))
	}
}

// userMessage strips wrapping noise down to the taxonomy the client acts on.
func userMessage(err error) string {
	switch {
	case errors.Is(err, engine.ErrSpaceNotFound),
		errors.Is(err, engine.ErrTrackNotFound):
		return "not found"
	case errors.Is(err, engine.ErrForbidden):
		return "forbidden"
	case errors.Is(err, engine.ErrInvalidReference):
		return "invalid track link"
	case errors.Is(err, engine.ErrPaymentUnconfirmed):
		return "payment not confirmed"
	case errors.Is(err, engine.ErrSpaceInactive):
		return "space is not active"
	case errors.Is(err, engine.ErrTrackRemoved):
		return "track has been removed"
	case errors.Is(err, engine.ErrQueueFull):
		return "queue is full"
	case errors.Is(err, engine.ErrConflict):
		return "request conflicted, retry"
	default:
		return "internal error"
	}
}

func (s *Session) sendError(command, message string) {
	event := engine.Event{
		SpaceID: s.spaceID,
		Kind:    "error",
		Payload: ErrorPayload{Command: command, Message: message},
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to marshal error event: %v", err)
		return
	}
	select {
	case s.send <- payload:
	default:
	}
}
