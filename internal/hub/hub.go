package hub

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"stockflow-service/internal/authz"
	"stockflow-service/internal/events"
)

var (
	ErrUnknownMethod     = errors.New("unknown method")
	ErrInvalidArguments  = errors.New("invalid arguments")
	ErrReservedGroup     = errors.New("group is reserved")
	ErrRateLimited       = errors.New("too many invocations")
	ErrNotAuthenticated  = errors.New("not authenticated")
	errConnectionUnknown = errors.New("connection is not registered")
	errStale             = errors.New("heartbeat timeout")
)

const (
	reasonRequested = "Server requested reconnect"
	reasonStale     = "heartbeat timeout"
)

// Call is a single client invocation as seen by a handler.
type Call struct {
	Conn *Connection
	Args []json.RawMessage

	closeAfter bool
}

// Bind decodes the positional arguments into targets. The argument count must match exactly.
func (c *Call) Bind(targets ...any) error {
	if len(c.Args) != len(targets) {
		return fmt.Errorf("%w: expected %d, got %d", ErrInvalidArguments, len(targets), len(c.Args))
	}
	for i, target := range targets {
		if err := json.Unmarshal(c.Args[i], target); err != nil {
			return fmt.Errorf("%w: argument %d has the wrong type", ErrInvalidArguments, i)
		}
	}
	return nil
}

type HandlerFunc func(ctx context.Context, call *Call) (any, error)

// Hub dispatches client invocations through an explicit handler table and fans events out
// to groups of connections.
type Hub struct {
	logger   *zap.SugaredLogger
	registry *Registry
	validate *validator.Validate
	handlers map[string]HandlerFunc

	now func() time.Time
}

func NewHub(logger *zap.SugaredLogger) *Hub {
	h := &Hub{
		logger:   logger,
		registry: NewRegistry(),
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}

	h.handlers = map[string]HandlerFunc{
		MethodJoinGroup:              h.joinGroup,
		MethodLeaveGroup:             h.leaveGroup,
		MethodSendMessageToGroup:     h.sendMessageToGroup,
		MethodPing:                   h.ping,
		MethodGetConnectionStatus:    h.getConnectionStatus,
		MethodForceReconnect:         h.forceReconnect,
		MethodSendNotificationToUser: h.sendNotificationToUser,
	}

	return h
}

func (h *Hub) Registry() *Registry {
	return h.registry
}

// Methods lists the invocable method names, sorted.
func (h *Hub) Methods() []string {
	out := make([]string, 0, len(h.handlers))
	for name := range h.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Connect registers a new connection for an authenticated principal, joins its user and
// role groups and tells the caller its connection id.
func (h *Hub) Connect(p authz.Principal, sender Sender) (*Connection, error) {
	if !p.Authenticated() {
		return nil, ErrNotAuthenticated
	}

	conn := newConnection(uuid.NewString(), p, sender, h.now())
	if err := h.registry.Add(conn); err != nil {
		return nil, err
	}
	connectionsActive.Inc()

	h.registry.Join(conn.id, events.UserGroup(p.UserID))
	h.logger.Infow("user connected", "userId", p.UserID, "connectionId", conn.id)

	if conn.role.Valid() {
		group := events.RoleGroup(conn.role)
		h.registry.Join(conn.id, group)
		h.logger.Infow("user joined role group", "userId", p.UserID, "role", group)
	}

	h.sendEvent(conn, EventConnectionEstablished, conn.id)
	return conn, nil
}

// Disconnect releases the connection and all its memberships. A non-nil cause is logged;
// it never reaches the client. Calling it again for the same connection is a no-op.
func (h *Hub) Disconnect(conn *Connection, cause error) {
	if _, ok := h.registry.Remove(conn.id); !ok {
		return
	}
	connectionsActive.Dec()

	switch {
	case errors.Is(cause, errStale):
		h.logger.Warnw("user disconnected", "userId", conn.UserID(), "connectionId", conn.id, "cause", cause)
		return
	case cause != nil:
		h.logger.Errorw("user disconnected with error", "userId", conn.UserID(), "connectionId", conn.id, "error", cause)
		return
	}
	h.logger.Infow("user disconnected", "userId", conn.UserID(), "connectionId", conn.id)
}

// Invoke runs one client invocation. When the invocation carries an id the caller gets a
// completion frame with the result or the error text.
func (h *Hub) Invoke(ctx context.Context, conn *Connection, inv Invocation) {
	call := &Call{Conn: conn, Args: inv.Arguments}

	result, err := h.dispatch(ctx, inv.Target, call)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		h.logger.Debugw("invocation failed", "connectionId", conn.id, "method", inv.Target, "error", err)
	}
	if _, known := h.handlers[inv.Target]; known {
		invocationsTotal.WithLabelValues(inv.Target, outcome).Inc()
	} else {
		invocationsTotal.WithLabelValues("unknown", outcome).Inc()
	}

	if inv.InvocationID != "" {
		conn.send(completionFrame(inv.InvocationID, result, err))
	}

	if call.closeAfter {
		conn.sender.Close()
	}
}

// Reject answers an invocation that was not dispatched.
func (h *Hub) Reject(conn *Connection, inv Invocation, err error) {
	invocationsTotal.WithLabelValues("rejected", "error").Inc()
	if inv.InvocationID != "" {
		conn.send(completionFrame(inv.InvocationID, nil, err))
	}
}

func (h *Hub) dispatch(ctx context.Context, target string, call *Call) (any, error) {
	handler, ok := h.handlers[target]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, target)
	}
	if _, registered := h.registry.Get(call.Conn.id); !registered {
		return nil, errConnectionUnknown
	}
	return handler(ctx, call)
}

func (h *Hub) sendEvent(conn *Connection, target string, args ...any) bool {
	if !conn.send(eventFrame(target, args...)) {
		return false
	}
	eventsSentTotal.WithLabelValues(target).Inc()
	return true
}

func (h *Hub) fanOut(conns []*Connection, target string, args ...any) int {
	frame := eventFrame(target, args...)
	delivered := 0
	for _, conn := range conns {
		if conn.send(frame) {
			delivered++
		}
	}
	if delivered > 0 {
		eventsSentTotal.WithLabelValues(target).Add(float64(delivered))
	}
	return delivered
}

// SendToGroup pushes an event to the current members of group and returns how many
// connections accepted it.
func (h *Hub) SendToGroup(group string, target string, args ...any) int {
	return h.fanOut(h.registry.Members(group), target, args...)
}

// SendToGroups pushes an event once to every connection in any of groups.
func (h *Hub) SendToGroups(groups []string, target string, args ...any) int {
	if len(groups) == 0 {
		return 0
	}
	return h.fanOut(h.registry.Members(groups...), target, args...)
}

func (h *Hub) SendToUser(userID string, target string, args ...any) int {
	return h.SendToGroup(events.UserGroup(userID), target, args...)
}

func (h *Hub) Broadcast(target string, args ...any) int {
	return h.fanOut(h.registry.All(), target, args...)
}

// Deliver fans a domain event out to its audience. The event payload is the single argument.
func (h *Hub) Deliver(evt events.Event) int {
	target := string(evt.Type)
	switch {
	case evt.Type.IsControl():
		h.logger.Warnw("refusing to forward control event", "eventId", evt.ID, "type", evt.Type)
		return 0
	case evt.Audience.Broadcast:
		return h.Broadcast(target, evt.Payload)
	case len(evt.Audience.Groups) > 0:
		return h.SendToGroups(evt.Audience.Groups, target, evt.Payload)
	default:
		h.logger.Warnw("dropping event without audience", "eventId", evt.ID, "type", evt.Type)
		return 0
	}
}

// ForceReconnectUser asks every connection of a user to reconnect, so that new role claims
// are picked up.
func (h *Hub) ForceReconnectUser(userID string, reason string) int {
	return h.ForceReconnectUserBefore(userID, reason, time.Time{})
}

// ForceReconnectUserBefore is ForceReconnectUser limited to connections established no later
// than cutoff. A zero cutoff matches every connection. Connections opened after a role change
// already carry the new role and are left alone.
func (h *Hub) ForceReconnectUserBefore(userID string, reason string, cutoff time.Time) int {
	closed := 0
	for _, conn := range h.registry.Members(events.UserGroup(userID)) {
		if !cutoff.IsZero() && conn.ConnectedAt().After(cutoff) {
			continue
		}
		h.closeWithReason(conn, reason)
		closed++
	}
	return closed
}

func (h *Hub) closeWithReason(conn *Connection, reason string) {
	h.sendEvent(conn, EventForceReconnect, reason)
	conn.sender.Close()
}

// SweepStale closes connections whose last heartbeat is older than timeout.
func (h *Hub) SweepStale(timeout time.Duration) int {
	if timeout <= 0 {
		return 0
	}

	stale := h.registry.Stale(h.now().Add(-timeout))
	for _, conn := range stale {
		h.logger.Infow("closing stale connection", "connectionId", conn.id, "userId", conn.UserID(),
			"lastHeartbeat", conn.LastHeartbeat())
		h.closeWithReason(conn, reasonStale)
		h.Disconnect(conn, errStale)
		staleClosedTotal.Inc()
	}
	return len(stale)
}

// RunSweeper sweeps stale connections every interval until ctx is done.
func (h *Hub) RunSweeper(ctx context.Context, interval time.Duration, timeout time.Duration) {
	if timeout <= 0 || interval <= 0 {
		h.logger.Info("heartbeat sweep disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := h.SweepStale(timeout); n > 0 {
				h.logger.Infow("swept stale connections", "count", n)
			}
		}
	}
}

// Shutdown asks every client to reconnect elsewhere and closes it.
func (h *Hub) Shutdown(reason string) {
	conns := h.registry.All()
	for _, conn := range conns {
		h.closeWithReason(conn, reason)
		h.Disconnect(conn, nil)
	}
	h.logger.Infow("hub shut down", "closedConnections", len(conns))
}
