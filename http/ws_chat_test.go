package http

import (
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"claimcast/chat"
	"claimcast/llm"
)

// Socket handlers outlive the test body, so they log to a no-op logger.
func newSocketFixture(t *testing.T, completer llm.Completer) *fixture {
	t.Helper()
	return buildFixture(t, zap.NewNop(), nil, completer)
}

func dialChat(t *testing.T, f *fixture) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/api/ws/chat"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestChatSocketStreamsChunks(t *testing.T) {
	reply := strings.Repeat("Johnson emergency claims hold steady this week. ", 4)
	f := newSocketFixture(t, &fakeCompleter{reply: reply})
	conn := dialChat(t, f)

	require.NoError(t, conn.WriteJSON(chat.Request{Message: "emergency claims in Johnson", ConversationID: "conv-7"}))

	var streamed strings.Builder
	var chunks int
	for {
		frame := readFrame(t, conn)
		assert.Equal(t, "conv-7", frame.ConversationID)
		if frame.Type == FrameDone {
			require.NotNil(t, frame.Response)
			assert.Equal(t, chat.SourceLLM, frame.Response.Source)
			assert.Equal(t, reply, frame.Response.Response)
			break
		}
		require.Equal(t, FrameChunk, frame.Type)
		assert.Equal(t, chunks, frame.Index)
		streamed.WriteString(frame.Content)
		chunks++
	}
	assert.Equal(t, reply, streamed.String())
	assert.Equal(t, len(chat.Chunks(reply, streamChunkSize)), chunks)
}

func TestChatSocketReportsErrorsAndStaysOpen(t *testing.T) {
	f := newSocketFixture(t, nil)
	conn := dialChat(t, f)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	frame := readFrame(t, conn)
	assert.Equal(t, FrameError, frame.Type)
	assert.Contains(t, frame.Error, "malformed message")

	require.NoError(t, conn.WriteJSON(chat.Request{Message: " "}))
	frame = readFrame(t, conn)
	assert.Equal(t, FrameError, frame.Type)
	assert.Equal(t, chat.ErrEmptyMessage.Error(), frame.Error)

	// The connection still answers after errors.
	require.NoError(t, conn.WriteJSON(chat.Request{Message: "help"}))
	for {
		frame = readFrame(t, conn)
		if frame.Type == FrameDone {
			break
		}
		require.Equal(t, FrameChunk, frame.Type)
	}
	assert.Equal(t, chat.SourceFallback, frame.Response.Source)
}

func TestChatSocketRejectsForeignOrigin(t *testing.T) {
	f := newSocketFixture(t, nil)
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/api/ws/chat"

	header := map[string][]string{"Origin": {"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 403, resp.StatusCode)
}
