// Package hub runs the single event loop that owns all connection and room
// state. Everything reaches it as a typed message through the inbox, so the
// registry needs no locks and room membership can never be observed half
// updated.
package hub

import (
	"context"

	"go.uber.org/zap"

	"github.com/cuevacelis/1vs1core-sub000/internal/codec"
	"github.com/cuevacelis/1vs1core-sub000/internal/registry"
	"github.com/cuevacelis/1vs1core-sub000/pkg/types"
)

type HubMsg interface{ isHubMsg() }

type Register struct {
	Outbox chan []byte
	Reply  chan *registry.Conn
}

type Unregister struct {
	ConnID string
}

type Subscribe struct {
	ConnID string
	Sub    registry.Subscription
	Reply  chan bool
}

type Unsubscribe struct {
	ConnID string
}

// Broadcast fans an event out to every member of the match room except the
// excluded connection. Delivery is best effort: a member whose outbox is
// full is skipped and left for close detection to reap.
type Broadcast struct {
	MatchID       int64
	Event         types.Event
	ExcludeConnID string
}

// Members replies with the connection ids currently in a match room.
type Members struct {
	MatchID int64
	Reply   chan []string
}

type Shutdown struct{}

func (Register) isHubMsg()    {}
func (Unregister) isHubMsg()  {}
func (Subscribe) isHubMsg()   {}
func (Unsubscribe) isHubMsg() {}
func (Broadcast) isHubMsg()   {}
func (Members) isHubMsg()     {}
func (Shutdown) isHubMsg()    {}

type Hub struct {
	inbox  chan HubMsg
	reg    *registry.Registry
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		reg:    registry.New(),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Publish is the broadcaster entry point used by the coordinator; the event
// it carries must already be durably committed.
func (h *Hub) Publish(matchID int64, ev types.Event, excludeConnID string) {
	h.inbox <- Broadcast{MatchID: matchID, Event: ev, ExcludeConnID: excludeConnID}
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Register:
				c := h.reg.Register(msg.Outbox)
				h.log.Debug("connection registered", zap.String("conn_id", c.ID))
				msg.Reply <- c

			case Unregister:
				if c, ok := h.reg.Get(msg.ConnID); ok {
					h.reg.Unregister(msg.ConnID)
					close(c.Outbox)
					h.log.Debug("connection unregistered", zap.String("conn_id", msg.ConnID))
				}

			case Subscribe:
				ok := h.reg.Subscribe(msg.ConnID, msg.Sub)
				if ok {
					h.log.Debug("subscribed",
						zap.String("conn_id", msg.ConnID),
						zap.Int64("match_id", msg.Sub.MatchID),
						zap.Bool("is_admin", msg.Sub.IsAdmin))
				}
				if msg.Reply != nil {
					msg.Reply <- ok
				}

			case Unsubscribe:
				h.reg.Unsubscribe(msg.ConnID)

			case Broadcast:
				h.broadcast(msg)

			case Members:
				var ids []string
				for _, c := range h.reg.MembersOf(msg.MatchID) {
					ids = append(ids, c.ID)
				}
				msg.Reply <- ids

			case Shutdown:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) broadcast(msg Broadcast) {
	members := h.reg.MembersOf(msg.MatchID)
	if len(members) == 0 {
		return
	}
	frame, err := codec.Encode(msg.Event)
	if err != nil {
		h.log.Error("encode broadcast", zap.Error(err), zap.Int64("match_id", msg.MatchID))
		return
	}
	for _, c := range members {
		if c.ID == msg.ExcludeConnID {
			continue
		}
		select {
		case c.Outbox <- frame:
		default:
			// Not writable right now. Soft failure: the registry's close
			// detection tears the connection down, not the broadcaster.
			h.log.Warn("outbox full, skipping member",
				zap.String("conn_id", c.ID),
				zap.Int64("match_id", msg.MatchID))
		}
	}
}

func (h *Hub) shutdown() {
	// Closing every outbox tells the writer goroutines no more frames are
	// coming, so they drain and exit.
	for _, c := range h.reg.Conns() {
		h.reg.Unregister(c.ID)
		close(c.Outbox)
	}
	h.cancel()
}
