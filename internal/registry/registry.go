// Package registry tracks live connections and the single room subscription
// bound to each. It keeps two mappings so that subscriber lookup by match id
// and room lookup by connection id are both cheap, and every operation
// updates the pair together.
//
// The registry is not safe for concurrent use on its own: it is owned by the
// hub goroutine, which serializes all access through its inbox.
package registry

import "github.com/google/uuid"

// Conn is the server-side handle for one live socket. The outbox is drained
// by the connection's writer goroutine; the registry never writes to it.
type Conn struct {
	ID     string
	Outbox chan []byte
}

// Subscription binds a connection to one match room.
type Subscription struct {
	MatchID int64
	UserID  int64
	IsAdmin bool
}

type Registry struct {
	conns   map[string]*Conn
	byMatch map[int64]map[string]struct{}
	byConn  map[string]Subscription
}

func New() *Registry {
	return &Registry{
		conns:   make(map[string]*Conn),
		byMatch: make(map[int64]map[string]struct{}),
		byConn:  make(map[string]Subscription),
	}
}

// Register admits a connection and assigns its id.
func (r *Registry) Register(outbox chan []byte) *Conn {
	c := &Conn{ID: uuid.NewString(), Outbox: outbox}
	r.conns[c.ID] = c
	return c
}

// Unregister removes a connection and tears down any room membership so a
// dead connection never lingers in membersOf. Unknown ids are a no-op.
func (r *Registry) Unregister(id string) {
	r.Unsubscribe(id)
	delete(r.conns, id)
}

func (r *Registry) Get(id string) (*Conn, bool) {
	c, ok := r.conns[id]
	return c, ok
}

func (r *Registry) Len() int { return len(r.conns) }

// Subscribe binds a connection to a match room, replacing any previous
// binding: a connection is in at most one room at a time.
func (r *Registry) Subscribe(connID string, sub Subscription) bool {
	if _, ok := r.conns[connID]; !ok {
		return false
	}
	r.Unsubscribe(connID)
	if r.byMatch[sub.MatchID] == nil {
		r.byMatch[sub.MatchID] = make(map[string]struct{})
	}
	r.byMatch[sub.MatchID][connID] = struct{}{}
	r.byConn[connID] = sub
	return true
}

// Unsubscribe detaches a connection from its room, if it has one.
func (r *Registry) Unsubscribe(connID string) {
	sub, ok := r.byConn[connID]
	if !ok {
		return
	}
	delete(r.byConn, connID)
	if members := r.byMatch[sub.MatchID]; members != nil {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.byMatch, sub.MatchID)
		}
	}
}

// SubscriptionOf reports the room a connection is bound to.
func (r *Registry) SubscriptionOf(connID string) (Subscription, bool) {
	sub, ok := r.byConn[connID]
	return sub, ok
}

// Conns returns every registered connection.
func (r *Registry) Conns() []*Conn {
	out := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

// MembersOf returns the connections currently subscribed to a match.
func (r *Registry) MembersOf(matchID int64) []*Conn {
	ids := r.byMatch[matchID]
	if len(ids) == 0 {
		return nil
	}
	out := make([]*Conn, 0, len(ids))
	for id := range ids {
		if c, ok := r.conns[id]; ok {
			out = append(out, c)
		}
	}
	return out
}
