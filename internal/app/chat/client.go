/*
Package chat contains the realtime core of the moderated chat server.

This file defines the Client struct, the WebSocket implementation of the Conn
interface. It manages the connection's message loops (ReadPump and WritePump),
heartbeats, and forced closure when a session is superseded.
*/
package chat

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"modchat/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxMessageSize = 8192

	// WsCloseCodeSessionKicked is a custom WebSocket Close Code (4000-4999 range)
	// used to signal the client that the session was replaced or terminated by the server.
	WsCloseCodeSessionKicked = 4001
)

// Client wraps one WebSocket connection. It satisfies Conn: the delivery
// router and presence registry only ever see the Send/Kick surface.
type Client struct {
	conn *websocket.Conn

	// send is a buffered channel queueing frames for WritePump.
	send chan []byte

	closeOnce sync.Once
	logger    zerolog.Logger
}

// NewClient wraps an upgraded WebSocket connection.
func NewClient(wsConn *websocket.Conn) *Client {
	return &Client{
		conn:   wsConn,
		send:   make(chan []byte, 256),
		logger: logx.Logger().With().Str("component", "Client").Str("remote_addr", wsConn.RemoteAddr().String()).Logger(),
	}
}

// Send enqueues a serialized event for delivery. It never blocks: when the
// send queue is full or closed the frame is dropped and Send reports false.
func (c *Client) Send(data []byte) bool {
	defer func() {
		// Losing the race against closeSendQueue means sending on a closed
		// channel; treat it the same as a full queue.
		recover()
	}()

	select {
	case c.send <- data:
		return true
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send queue full, dropping frame.")
		return false
	}
}

// Kick force-closes the connection with a custom close frame, used when the
// session is superseded by a newer connection or the server shuts down.
func (c *Client) Kick(reason string) {
	c.logger.Warn().
		Int("close_code", WsCloseCodeSessionKicked).
		Str("reason", reason).
		Msg("Sending WS Kick message and closing connection.")

	closeMessage := websocket.FormatCloseMessage(WsCloseCodeSessionKicked, reason)

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.CloseMessage, closeMessage); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to send WS 4001 Close Message.")
	}

	c.closeSendQueue()
}

// ReadPump reads frames from the connection and feeds them to the session. It
// handles heartbeats (Pong) and performs presence cleanup when the connection
// closes. Persistence triggered by an action is allowed to finish even if the
// client disconnects mid-operation, so actions run on a background context
// rather than one tied to the connection.
func (c *Client) ReadPump(ctx context.Context, session *Session) {
	defer func() {
		session.Close()
		c.closeSendQueue()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error.")
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			break
		}

		session.HandleAction(ctx, data)
	}
}

// WritePump writes queued frames to the WebSocket connection and keeps the
// heartbeat alive with periodic pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump.")
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline")
				return
			}

			if !ok {
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					c.logger.Debug().Err(err).Msg("Error writing close message")
				}
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Info().Err(err).Msg("Error writing message")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Info().Err(err).Msg("Error writing ping")
				return
			}
		}
	}
}

func (c *Client) closeSendQueue() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}
