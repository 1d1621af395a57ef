package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"pairchat/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
)

var (
	ErrClientClosed = errors.New("websocket client closed")
	ErrBufferFull   = errors.New("websocket send buffer full")
)

// Client is one live socket for one user. It satisfies presence.Handle.
type Client struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan []byte

	done      chan struct{}
	closeOnce sync.Once

	hub     *Hub
	limiter *rate.Limiter
	log     zerolog.Logger
}

func (c *Client) ID() string     { return c.id }
func (c *Client) UserID() string { return c.userID }

// Send queues an event without blocking. A full buffer drops the event.
func (c *Client) Send(event string, payload any) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	data, err := json.Marshal(models.Envelope{Event: event, Data: payload})
	if err != nil {
		return err
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		c.log.Warn().Str("event", event).Msg("send buffer full, dropping event")
		return ErrBufferFull
	}
}

// Close stops the write pump, which closes the socket. Safe to call twice.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// ReadPump handles inbound actions until the socket fails, then releases
// the user's presence entry if it is still this client.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Registry.Disconnect(c.userID, c)
		c.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.log.Debug().Err(err).Msg("websocket read failed")
			}
			return
		}
		c.handleMessage(ctx, message)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Client) handleMessage(ctx context.Context, message []byte) {
	if !c.limiter.Allow() {
		c.sendError("rate limit exceeded")
		return
	}

	var action models.ClientAction
	if err := json.Unmarshal(message, &action); err != nil {
		c.sendError("malformed action")
		return
	}

	switch action.Action {
	case models.ActionPing:
		c.Send(models.EventPong, nil)
	case models.ActionMarkSeen:
		c.handleMarkSeen(ctx, action)
	default:
		c.sendError("unknown action")
	}
}

func (c *Client) handleMarkSeen(ctx context.Context, action models.ClientAction) {
	if action.ReceiverID != c.userID {
		c.sendError("receiverId must be the connected user")
		return
	}
	if c.hub.Seen == nil {
		return
	}
	if _, err := c.hub.Seen.MarkSeen(ctx, c.userID, action.SenderID); err != nil {
		c.log.Warn().Err(err).Str("sender_id", action.SenderID).Msg("mark seen over socket")
		c.sendError(errorMessage(err))
	}
}

func (c *Client) sendError(message string) {
	c.Send(models.EventError, models.ErrorEvent{Message: message})
}

// errorMessage exposes domain errors as is and hides everything else.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrUnauthorized),
		errors.Is(err, models.ErrForbidden),
		errors.Is(err, models.ErrNotFound),
		errors.Is(err, models.ErrConflict):
		return err.Error()
	case errors.Is(err, models.ErrTransient):
		return "temporarily unavailable, retry"
	default:
		return "internal error"
	}
}
