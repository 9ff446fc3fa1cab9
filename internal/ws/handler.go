// Package ws is the transport edge: it owns the socket lifecycle and feeds
// decoded commands into the hub and coordinator. A malformed or rejected
// command is answered on the offending connection only and never ends it.
package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/cuevacelis/1vs1core-sub000/internal/codec"
	"github.com/cuevacelis/1vs1core-sub000/internal/coordinator"
	"github.com/cuevacelis/1vs1core-sub000/internal/hub"
	"github.com/cuevacelis/1vs1core-sub000/internal/registry"
	"github.com/cuevacelis/1vs1core-sub000/internal/state"
	"github.com/cuevacelis/1vs1core-sub000/internal/store"
	"github.com/cuevacelis/1vs1core-sub000/pkg/types"
)

const (
	outboxSize   = 32
	writeTimeout = 3 * time.Second
	pingInterval = 20 * time.Second
	pingTimeout  = 5 * time.Second
)

func Handler(h *hub.Hub, coord *coordinator.Coordinator, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		reply := make(chan *registry.Conn, 1)
		h.Inbox() <- hub.Register{Outbox: make(chan []byte, outboxSize), Reply: reply}
		c := <-reply
		defer func() { h.Inbox() <- hub.Unregister{ConnID: c.ID} }()

		clog := log.With(zap.String("conn_id", c.ID))
		clog.Debug("websocket open")

		readCtx, cancelRead := context.WithCancel(r.Context())
		defer cancelRead()

		// Writer goroutine: drains the outbox until the hub closes it.
		go func() {
			for frame := range c.Outbox {
				ctx, cancel := context.WithTimeout(readCtx, writeTimeout)
				err := conn.Write(ctx, websocket.MessageText, frame)
				cancel()
				if err != nil {
					cancelRead()
					return
				}
			}
		}()

		// Heartbeat: a missed pong reclaims the half-open socket instead of
		// waiting for the transport to notice on its own.
		go func() {
			t := time.NewTicker(pingInterval)
			defer t.Stop()
			for {
				select {
				case <-readCtx.Done():
					return
				case <-t.C:
					ctx, cancel := context.WithTimeout(readCtx, pingTimeout)
					err := conn.Ping(ctx)
					cancel()
					if err != nil {
						clog.Debug("heartbeat failed", zap.Error(err))
						cancelRead()
						return
					}
				}
			}
		}()

		for {
			_, data, err := conn.Read(readCtx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					clog.Debug("websocket closed")
				default:
					clog.Debug("websocket read ended", zap.Error(err))
				}
				return
			}

			cmd, err := codec.Decode(data)
			if err != nil {
				// The frame is dropped; the connection and everyone else's
				// delivery are untouched.
				clog.Warn("dropping malformed frame", zap.Error(err))
				send(c, codec.ErrorFrame(types.CodeDecodeError, err.Error()))
				continue
			}
			dispatch(r.Context(), h, coord, c, cmd, clog)
		}
	}
}

func dispatch(ctx context.Context, h *hub.Hub, coord *coordinator.Coordinator, c *registry.Conn, cmd codec.Command, log *zap.Logger) {
	switch cmd.Type {
	case types.TypeSubscribe:
		// Subscribe first so the caller sees the match_update its own
		// connect produces; roll the room binding back if the connect is
		// rejected.
		h.Inbox() <- hub.Subscribe{ConnID: c.ID, Sub: registry.Subscription{
			MatchID: cmd.MatchID,
			UserID:  cmd.UserID,
			IsAdmin: cmd.IsAdmin,
		}}
		if cmd.UserID > 0 && !cmd.IsAdmin {
			if err := coord.Connect(ctx, cmd.MatchID, cmd.UserID); err != nil {
				// A participant rejoining outside the connect window keeps
				// the room view; outsiders and bad targets get nothing.
				if errors.Is(err, coordinator.ErrForbidden) || errors.Is(err, store.ErrNotFound) {
					h.Inbox() <- hub.Unsubscribe{ConnID: c.ID}
				}
				reject(c, err, log)
			}
		}

	case types.TypeUnsubscribe:
		h.Inbox() <- hub.Unsubscribe{ConnID: c.ID}

	case types.TypeChampionSelected:
		if _, err := coord.SelectChampion(ctx, cmd.MatchID, cmd.PlayerID, cmd.ChampionID, cmd.Role, c.ID); err != nil {
			reject(c, err, log)
		}

	case types.TypeChampionLocked:
		if _, err := coord.LockSelection(ctx, cmd.MatchID, cmd.PlayerID, c.ID); err != nil {
			reject(c, err, log)
		}
	}
}

// reject answers a failed command on the offending connection only.
func reject(c *registry.Conn, err error, log *zap.Logger) {
	code := errorCode(err)
	log.Debug("command rejected", zap.String("code", code), zap.Error(err))
	send(c, codec.ErrorFrame(code, err.Error()))
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, coordinator.ErrForbidden):
		return types.CodeForbidden
	case errors.Is(err, store.ErrNotFound):
		return types.CodeNotFound
	case errors.Is(err, state.ErrInvalidTransition), errors.Is(err, store.ErrStateConflict), errors.Is(err, store.ErrSelectionLocked):
		return types.CodeInvalidState
	case errors.Is(err, store.ErrNoSelection), errors.Is(err, coordinator.ErrInvalidWinner):
		return types.CodeBadRequest
	default:
		return types.CodeInternal
	}
}

// send queues a frame for the writer goroutine; a full outbox drops the
// frame rather than blocking the reader.
func send(c *registry.Conn, frame []byte) {
	select {
	case c.Outbox <- frame:
	default:
	}
}
