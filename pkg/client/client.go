// Package client is the Go SDK for the real-time match channel. It keeps a
// single connection alive with a fixed reconnect backoff, replays the last
// subscription after a reconnect, and surfaces connection state for UIs.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/cuevacelis/1vs1core-sub000/pkg/types"
)

var ErrNotConnected = errors.New("client is not connected")

const defaultBackoff = 3 * time.Second

type Options struct {
	// URL of the websocket endpoint, e.g. "ws://localhost:8080/ws".
	URL string
	// Backoff between reconnect attempts. Defaults to 3 seconds. There is
	// never more than one pending attempt: a new schedule replaces the old.
	Backoff time.Duration
	// OnEvent is invoked from the read loop for every decoded event.
	OnEvent func(types.Event)
}

type Client struct {
	opts   Options
	cancel context.CancelFunc

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	lastMsg   *types.Event
	lastSub   *types.ClientMessage // replayed after a reconnect
	done      chan struct{}
}

// Dial starts the connection loop. The first dial happens synchronously so
// callers know the endpoint is reachable; later drops reconnect in the
// background.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	runCtx, cancel := context.WithCancel(context.Background())
	c := &Client{opts: opts, cancel: cancel, done: make(chan struct{})}

	conn, _, err := websocket.Dial(ctx, opts.URL, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	c.setConn(conn)
	go c.run(runCtx, conn)
	return c, nil
}

func (c *Client) run(ctx context.Context, conn *websocket.Conn) {
	defer close(c.done)
	for {
		c.readLoop(ctx, conn)
		c.clearConn()
		if ctx.Err() != nil {
			return
		}

		// Single scheduled reconnect attempt, fixed backoff.
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.opts.Backoff):
		}

		next, _, err := websocket.Dial(ctx, c.opts.URL, nil)
		if err != nil {
			conn = nil
			continue
		}
		c.setConn(next)
		c.resubscribe(ctx)
		conn = next
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	if conn == nil {
		return
	}
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var ev types.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		c.mu.Lock()
		c.lastMsg = &ev
		c.mu.Unlock()
		if c.opts.OnEvent != nil {
			c.opts.OnEvent(ev)
		}
	}
}

// Subscribe joins a match room. A non-admin userId doubles as the player
// connect for that match.
func (c *Client) Subscribe(ctx context.Context, matchID, userID int64, isAdmin bool) error {
	msg := types.ClientMessage{Type: types.TypeSubscribe, MatchID: matchID}
	if userID > 0 || isAdmin {
		msg.Data = &types.ClientData{UserID: userID, IsAdmin: isAdmin}
	}
	c.mu.Lock()
	c.lastSub = &msg
	c.mu.Unlock()
	return c.send(ctx, msg)
}

func (c *Client) Unsubscribe(ctx context.Context) error {
	c.mu.Lock()
	c.lastSub = nil
	c.mu.Unlock()
	return c.send(ctx, types.ClientMessage{Type: types.TypeUnsubscribe})
}

func (c *Client) SelectChampion(ctx context.Context, matchID, playerID, championID int64, role string) error {
	msg := types.ClientMessage{
		Type:       types.TypeChampionSelected,
		MatchID:    matchID,
		PlayerID:   playerID,
		ChampionID: championID,
	}
	if role != "" {
		msg.Data = &types.ClientData{Role: role}
	}
	return c.send(ctx, msg)
}

func (c *Client) LockSelection(ctx context.Context, matchID, playerID int64) error {
	return c.send(ctx, types.ClientMessage{
		Type:     types.TypeChampionLocked,
		MatchID:  matchID,
		PlayerID: playerID,
	})
}

// IsConnected reports whether a live connection is currently up.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// LastMessage returns the most recently received event, if any.
func (c *Client) LastMessage() (types.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastMsg == nil {
		return types.Event{}, false
	}
	return *c.lastMsg, true
}

// Close tears the client down for good: the pending reconnect attempt, if
// any, is cancelled rather than fired.
func (c *Client) Close() error {
	c.cancel()
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
	}
	select {
	case <-c.done:
	case <-time.After(time.Second):
	}
	return nil
}

func (c *Client) send(ctx context.Context, msg types.ClientMessage) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, payload)
}

func (c *Client) resubscribe(ctx context.Context) {
	c.mu.Lock()
	sub := c.lastSub
	c.mu.Unlock()
	if sub != nil {
		_ = c.send(ctx, *sub)
	}
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
}

func (c *Client) clearConn() {
	c.mu.Lock()
	c.conn = nil
	c.connected = false
	c.mu.Unlock()
}
