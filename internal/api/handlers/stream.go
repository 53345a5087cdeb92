package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/rfqnorm/backend/internal/audit"
)

const (
	wsReadLimit  = 64 * 1024
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsWriteWait  = 10 * time.Second
)

// StreamMessage is one reply on the websocket: a normalized inquiry or an error
type StreamMessage struct {
	ID     string             `json:"id,omitempty"`
	Result *NormalizeResponse `json:"result,omitempty"`
	Error  *ErrorResponse     `json:"error,omitempty"`
}

// streamRequest is a NormalizeRequest with a client correlation id
type streamRequest struct {
	ID string `json:"id,omitempty"`
	NormalizeRequest
}

// StreamHandler normalizes inquiries sent over a websocket, one reply per message
// ⭐ SSOT: WebSocket 정규화 스트림은 여기서만
type StreamHandler struct {
	normalize *NormalizeHandler
	upgrader  websocket.Upgrader
}

// NewStreamHandler shares validation, defaults and auditing with the REST handler
func NewStreamHandler(normalize *NormalizeHandler) *StreamHandler {
	return &StreamHandler{
		normalize: normalize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
			HandshakeTimeout: 10 * time.Second,
			// desk tools connect from other origins
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Serve upgrades the connection and answers until the client closes it
// GET /ws/normalize
func (h *StreamHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.normalize.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	log := h.normalize.logger.WithField("remote", r.RemoteAddr)
	log.Debug("WebSocket client connected")

	conn.SetReadLimit(wsReadLimit)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	// pings keep idle desk connections open; writes are serialized through replies
	replies := make(chan StreamMessage, 16)
	done := make(chan struct{})
	go h.writeLoop(conn, replies, done)
	defer func() {
		close(replies)
		<-done
	}()

	ctx := r.Context()
	for {
		var req streamRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Warn("WebSocket read failed")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsPongWait))

		msg := StreamMessage{ID: req.ID}
		if fields := h.normalize.validate.Struct(req.NormalizeRequest); fields != nil {
			msg.Error = &ErrorResponse{Error: "validation failed", Fields: fields}
		} else if resp, err := h.normalize.normalize(ctx, req.NormalizeRequest, audit.SourceWebSocket); err != nil {
			msg.Error = &ErrorResponse{
				Error:  "validation failed",
				Fields: []FieldError{{Field: "current_date", Message: err.Error()}},
			}
		} else {
			msg.Result = &resp
		}

		select {
		case replies <- msg:
		case <-done:
			return
		}
	}
}

func (h *StreamHandler) writeLoop(conn *websocket.Conn, replies <-chan StreamMessage, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-replies:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					h.normalize.logger.WithError(err).Warn("WebSocket write failed")
				}
				conn.Close()
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}
