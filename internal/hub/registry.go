package hub

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"stockflow-service/internal/authz"
)

var ErrDuplicateConnection = errors.New("connection already registered")

// Sender delivers frames to one client transport.
type Sender interface {
	// Send queues a frame without blocking. It returns false when the frame was dropped.
	Send(Frame) bool
	// Close flushes queued frames and closes the transport. It is safe to call more than once.
	Close()
}

// Connection is one realtime client. Group membership is owned by the Registry.
type Connection struct {
	id          string
	principal   authz.Principal
	role        authz.Role
	connectedAt time.Time

	// unix nanoseconds
	lastHeartbeat atomic.Int64

	sender Sender

	// guarded by Registry.mu
	groups map[string]struct{}
}

func newConnection(id string, p authz.Principal, sender Sender, now time.Time) *Connection {
	c := &Connection{
		id:          id,
		principal:   p,
		role:        p.ParsedRole(),
		connectedAt: now,
		sender:      sender,
		groups:      make(map[string]struct{}),
	}
	c.lastHeartbeat.Store(now.UnixNano())
	return c
}

func (c *Connection) ID() string {
	return c.id
}

func (c *Connection) UserID() string {
	return c.principal.UserID
}

func (c *Connection) Principal() authz.Principal {
	return c.principal
}

func (c *Connection) Role() authz.Role {
	return c.role
}

func (c *Connection) ConnectedAt() time.Time {
	return c.connectedAt
}

func (c *Connection) LastHeartbeat() time.Time {
	return time.Unix(0, c.lastHeartbeat.Load()).UTC()
}

// Touch records a heartbeat. The timestamp never moves backwards.
func (c *Connection) Touch(now time.Time) time.Time {
	next := now.UnixNano()
	for {
		prev := c.lastHeartbeat.Load()
		if next <= prev {
			return time.Unix(0, prev).UTC()
		}
		if c.lastHeartbeat.CompareAndSwap(prev, next) {
			return time.Unix(0, next).UTC()
		}
	}
}

func (c *Connection) send(f Frame) bool {
	if c.sender.Send(f) {
		return true
	}
	framesDroppedTotal.Inc()
	return false
}

// Registry tracks live connections and their group memberships.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]*Connection
	groups map[string]map[string]*Connection
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[string]*Connection),
		groups: make(map[string]map[string]*Connection),
	}
}

func (r *Registry) Add(c *Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[c.id]; ok {
		return ErrDuplicateConnection
	}
	r.conns[c.id] = c
	return nil
}

// Remove drops the connection and every membership it holds.
func (r *Registry) Remove(id string) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if !ok {
		return nil, false
	}

	for group := range c.groups {
		r.leaveLocked(c, group)
	}
	delete(r.conns, id)
	return c, true
}

func (r *Registry) Get(id string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conns[id]
	return c, ok
}

// Join adds the connection to group. Joining twice has no further effect.
// It returns false when the connection is not registered.
func (r *Registry) Join(id string, group string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if !ok {
		return false
	}

	members, ok := r.groups[group]
	if !ok {
		members = make(map[string]*Connection)
		r.groups[group] = members
	}
	members[id] = c
	c.groups[group] = struct{}{}
	return true
}

// Leave removes the connection from group. Leaving a group it is not in is a no-op.
func (r *Registry) Leave(id string, group string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.conns[id]; ok {
		r.leaveLocked(c, group)
	}
}

func (r *Registry) leaveLocked(c *Connection, group string) {
	delete(c.groups, group)

	members, ok := r.groups[group]
	if !ok {
		return
	}
	delete(members, c.id)
	if len(members) == 0 {
		delete(r.groups, group)
	}
}

func (r *Registry) IsMember(id string, group string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.groups[group][id]
	return ok
}

// GroupsOf returns the sorted group names the connection belongs to.
func (r *Registry) GroupsOf(id string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conns[id]
	if !ok {
		return nil
	}

	out := make([]string, 0, len(c.groups))
	for group := range c.groups {
		out = append(out, group)
	}
	sort.Strings(out)
	return out
}

// Members snapshots the union of the groups' members. A connection in several of the groups
// appears once.
func (r *Registry) Members(groups ...string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(groups) == 1 {
		members := r.groups[groups[0]]
		out := make([]*Connection, 0, len(members))
		for _, c := range members {
			out = append(out, c)
		}
		return out
	}

	seen := make(map[string]struct{})
	out := make([]*Connection, 0)
	for _, group := range groups {
		for id, c := range r.groups[group] {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

func (r *Registry) All() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

// Stale returns connections whose last heartbeat is before cutoff.
func (r *Registry) Stale(cutoff time.Time) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	limit := cutoff.UnixNano()
	out := make([]*Connection, 0)
	for _, c := range r.conns {
		if c.lastHeartbeat.Load() < limit {
			out = append(out, c)
		}
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.conns)
}

func (r *Registry) GroupCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.groups)
}
