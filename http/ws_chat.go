package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"claimcast/chat"
)

const (
	wsWriteWait     = 10 * time.Second
	wsPongWait      = 60 * time.Second
	wsPingPeriod    = wsPongWait * 9 / 10
	wsMaxMessage    = 64 << 10
	wsSendBuffer    = 64
	streamChunkSize = 40
)

// Frame types sent over the chat socket.
const (
	FrameChunk = "chunk"
	FrameDone  = "done"
	FrameError = "error"
)

// Frame is one server message on the chat socket. A reply is a run of chunk
// frames followed by a done frame carrying the full response.
type Frame struct {
	Type           string         `json:"type"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Index          int            `json:"index"`
	Content        string         `json:"content,omitempty"`
	Response       *chat.Response `json:"response,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// chatClient is one websocket connection.
type chatClient struct {
	conn   *websocket.Conn
	send   chan Frame
	done   chan struct{}
	logger *zap.Logger
}

func (h *Handler) handleChatSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &chatClient{
		conn:   conn,
		send:   make(chan Frame, wsSendBuffer),
		done:   make(chan struct{}),
		logger: h.logger.With(zap.String("client_id", uuid.NewString())),
	}
	c.logger.Debug("chat client connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go c.writePump()
	c.readPump(ctx, h.responder)
	<-c.done
	c.logger.Debug("chat client disconnected")
}

// readPump answers each incoming message in order. It owns the send channel.
func (c *chatClient) readPump(ctx context.Context, responder *chat.Responder) {
	defer close(c.send)

	c.conn.SetReadLimit(wsMaxMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		var req chat.Request
		if err := json.Unmarshal(data, &req); err != nil {
			if !c.push(Frame{Type: FrameError, Error: "malformed message: " + err.Error()}) {
				return
			}
			continue
		}

		resp, err := responder.Reply(ctx, req)
		if err != nil {
			if !c.push(Frame{Type: FrameError, ConversationID: req.ConversationID, Error: err.Error()}) {
				return
			}
			continue
		}
		for i, chunk := range chat.Chunks(resp.Response, streamChunkSize) {
			if !c.push(Frame{Type: FrameChunk, ConversationID: resp.ConversationID, Index: i, Content: chunk}) {
				return
			}
		}
		if !c.push(Frame{Type: FrameDone, ConversationID: resp.ConversationID, Response: resp}) {
			return
		}
	}
}

// push queues a frame, reporting false once the writer has gone away.
func (c *chatClient) push(f Frame) bool {
	select {
	case c.send <- f:
		return true
	case <-c.done:
		return false
	}
}

func (c *chatClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		close(c.done)
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(frame); err != nil {
				c.logger.Warn("websocket write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
