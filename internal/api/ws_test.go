package api

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearsay-ai/hearsay/internal/session"
)

// echoRunner exercises the channel the way the pipeline does: read frames
// until the end marker, acknowledging text and counting binary bytes.
type echoRunner struct {
	sessionID string
	bytes     int
}

func (e *echoRunner) Run(ctx context.Context, sessionID string, ch session.Channel) error {
	e.sessionID = sessionID
	for {
		msg, err := ch.Receive(ctx)
		if err != nil {
			return err
		}
		if !msg.IsText {
			e.bytes += len(msg.Data)
			continue
		}
		if msg.Text == "__END_MEETING__" {
			return ch.Send(ctx, "done")
		}
		if err := ch.Send(ctx, "ack:"+msg.Text); err != nil {
			return err
		}
	}
}

func (e *echoRunner) ProcessUpload(context.Context, io.Reader, session.OutputMode) (*session.UploadResult, error) {
	return nil, nil
}

func TestLiveSessionChannel(t *testing.T) {
	runner := &echoRunner{}
	svc := NewService(runner, &fakeRetriever{}, t.TempDir())

	srv := httptest.NewServer(svc.Router())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/live/sess-live"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))
	_, reply, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "ack:hello", string(reply))

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3, 4}))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("__END_MEETING__")))
	_, reply, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "done", string(reply))

	// Server closes the connection once the runner returns.
	_, _, err = conn.ReadMessage()
	require.Error(t, err)

	assert.Equal(t, "sess-live", runner.sessionID)
	assert.Equal(t, 4, runner.bytes)
}
