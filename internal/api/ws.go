package api

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/hearsay-ai/hearsay/internal/session"
)

// wsChannel adapts a websocket connection to the session channel contract.
// Reads happen from the pipeline's capture loop only; writes are serialized
// with a mutex since gorilla allows a single concurrent writer.
type wsChannel struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func newWSChannel(conn *websocket.Conn) *wsChannel {
	return &wsChannel{conn: conn}
}

// Receive blocks for the next frame. Text frames map to control messages,
// binary frames to media data. Control frames (ping/pong/close) are handled
// by gorilla internally.
func (c *wsChannel) Receive(_ context.Context) (session.Message, error) {
	messageType, data, err := c.conn.ReadMessage()
	if err != nil {
		return session.Message{}, err
	}
	if messageType == websocket.TextMessage {
		return session.Message{Text: string(data), IsText: true}, nil
	}
	return session.Message{Data: data}, nil
}

// Send delivers one text frame to the client.
func (c *wsChannel) Send(_ context.Context, text string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, []byte(text))
}
