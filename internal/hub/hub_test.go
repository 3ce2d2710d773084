package hub

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"stockflow-service/internal/authz"
	"stockflow-service/internal/events"
)

type fakeSender struct {
	mu     sync.Mutex
	frames []Frame
	closed bool
	full   bool
}

func (s *fakeSender) Send(f Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.full {
		return false
	}
	s.frames = append(s.frames, f)
	return true
}

func (s *fakeSender) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
}

func (s *fakeSender) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

func (s *fakeSender) targets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.frames))
	for _, f := range s.frames {
		if f.Type == FrameEvent {
			out = append(out, f.Target)
		}
	}
	return out
}

func (s *fakeSender) last() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.frames[len(s.frames)-1]
}

func (s *fakeSender) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frames = nil
}

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestHub() *Hub {
	h := NewHub(zap.NewNop().Sugar())
	h.now = func() time.Time { return testNow }
	return h
}

func connect(t *testing.T, h *Hub, userID string, role string) (*Connection, *fakeSender) {
	t.Helper()

	sender := &fakeSender{}
	conn, err := h.Connect(authz.Principal{UserID: userID, Role: role}, sender)
	require.NoError(t, err)
	return conn, sender
}

func invocation(id string, target string, args ...any) Invocation {
	raw := make([]json.RawMessage, 0, len(args))
	for _, arg := range args {
		b, err := json.Marshal(arg)
		if err != nil {
			panic(err)
		}
		raw = append(raw, b)
	}
	return Invocation{Type: FrameInvocation, InvocationID: id, Target: target, Arguments: raw}
}

func TestHub_Connect(t *testing.T) {
	tests := []struct {
		name       string
		role       string
		wantGroups []string
	}{
		{
			name:       "admin",
			role:       "Admin",
			wantGroups: []string{"Admin", "user_u1"},
		},
		{
			name:       "case insensitive role",
			role:       "manager",
			wantGroups: []string{"Manager", "user_u1"},
		},
		{
			name:       "unknown role joins no role group",
			role:       "superuser",
			wantGroups: []string{"user_u1"},
		},
		{
			name:       "missing role",
			role:       "",
			wantGroups: []string{"user_u1"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHub()
			conn, sender := connect(t, h, "u1", tc.role)

			assert.Equal(t, tc.wantGroups, h.Registry().GroupsOf(conn.ID()))

			f := sender.last()
			assert.Equal(t, FrameEvent, f.Type)
			assert.Equal(t, EventConnectionEstablished, f.Target)
			assert.Equal(t, []any{conn.ID()}, f.Arguments)
		})
	}
}

func TestHub_ConnectRequiresPrincipal(t *testing.T) {
	h := newTestHub()

	_, err := h.Connect(authz.Principal{}, &fakeSender{})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Equal(t, 0, h.Registry().Count())
}

func TestHub_Disconnect(t *testing.T) {
	h := newTestHub()
	conn, _ := connect(t, h, "u1", "Admin")
	h.Invoke(context.Background(), conn, invocation("", MethodJoinGroup, "warehouse-1"))

	h.Disconnect(conn, nil)
	h.Disconnect(conn, assert.AnError)

	assert.Equal(t, 0, h.Registry().Count())
	assert.Equal(t, 0, h.Registry().GroupCount())
	assert.Equal(t, 0, h.SendToGroup("warehouse-1", EventReceiveMessage, "x"))
}

func TestHub_JoinLeaveGroup(t *testing.T) {
	h := newTestHub()
	conn, sender := connect(t, h, "u1", "User")
	sender.reset()

	h.Invoke(context.Background(), conn, invocation("1", MethodJoinGroup, "warehouse-1"))
	assert.Equal(t, Frame{Type: FrameCompletion, InvocationID: "1"}, sender.last())
	assert.True(t, h.Registry().IsMember(conn.ID(), "warehouse-1"))

	// joining twice then leaving once leaves the connection out of the group
	h.Invoke(context.Background(), conn, invocation("2", MethodJoinGroup, "warehouse-1"))
	h.Invoke(context.Background(), conn, invocation("3", MethodLeaveGroup, "warehouse-1"))
	assert.False(t, h.Registry().IsMember(conn.ID(), "warehouse-1"))

	// leaving a group the connection is not in succeeds
	h.Invoke(context.Background(), conn, invocation("4", MethodLeaveGroup, "never-joined"))
	assert.Empty(t, sender.last().Error)
}

func TestHub_ReservedGroups(t *testing.T) {
	h := newTestHub()
	conn, sender := connect(t, h, "u1", "User")

	for _, group := range []string{"Admin", "manager", "user_u2", "USER_u1"} {
		t.Run(group, func(t *testing.T) {
			h.Invoke(context.Background(), conn, invocation("join", MethodJoinGroup, group))
			assert.Contains(t, sender.last().Error, ErrReservedGroup.Error())
			assert.False(t, h.Registry().IsMember(conn.ID(), group))

			h.Invoke(context.Background(), conn, invocation("leave", MethodLeaveGroup, group))
			assert.Contains(t, sender.last().Error, ErrReservedGroup.Error())
		})
	}

	// own user group is still intact
	assert.True(t, h.Registry().IsMember(conn.ID(), "user_u1"))
}

func TestHub_InvalidArguments(t *testing.T) {
	h := newTestHub()
	conn, sender := connect(t, h, "u1", "User")

	tests := []struct {
		name string
		inv  Invocation
	}{
		{name: "missing argument", inv: invocation("1", MethodJoinGroup)},
		{name: "too many arguments", inv: invocation("1", MethodJoinGroup, "a", "b")},
		{name: "wrong type", inv: invocation("1", MethodJoinGroup, 42)},
		{name: "blank group", inv: invocation("1", MethodJoinGroup, "   ")},
		{name: "blank notification target", inv: invocation("1", MethodSendNotificationToUser, "", "t", "m", "info")},
		{name: "oversized notification type", inv: invocation("1", MethodSendNotificationToUser, "u2", "t", "m", strings.Repeat("x", 33))},
		{name: "oversized message", inv: invocation("1", MethodSendMessageToGroup, "g", strings.Repeat("x", 4097))},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h.Invoke(context.Background(), conn, tc.inv)
			f := sender.last()
			assert.Equal(t, FrameCompletion, f.Type)
			assert.Contains(t, f.Error, ErrInvalidArguments.Error())
			assert.NotContains(t, f.Error, "Key:")
			assert.NotContains(t, f.Error, "validation")
		})
	}
}

func TestHub_UnknownMethod(t *testing.T) {
	h := newTestHub()
	conn, sender := connect(t, h, "u1", "User")

	h.Invoke(context.Background(), conn, invocation("7", "DropTables"))
	f := sender.last()
	assert.Equal(t, "7", f.InvocationID)
	assert.Contains(t, f.Error, ErrUnknownMethod.Error())

	// without an invocation id nothing is sent back
	sender.reset()
	h.Invoke(context.Background(), conn, invocation("", "DropTables"))
	assert.Empty(t, sender.targets())
}

func TestHub_SendMessageToGroup(t *testing.T) {
	h := newTestHub()
	alice, aliceSender := connect(t, h, "alice", "User")
	bob, bobSender := connect(t, h, "bob", "User")
	_, carolSender := connect(t, h, "carol", "Manager")

	h.Invoke(context.Background(), alice, invocation("", MethodJoinGroup, "floor"))
	h.Invoke(context.Background(), bob, invocation("", MethodJoinGroup, "floor"))
	aliceSender.reset()
	bobSender.reset()
	carolSender.reset()

	h.Invoke(context.Background(), alice, invocation("", MethodSendMessageToGroup, "floor", "pallet arrived"))

	want := eventFrame(EventReceiveMessage, "alice", "pallet arrived")
	assert.Equal(t, want, aliceSender.last())
	assert.Equal(t, want, bobSender.last())
	assert.Empty(t, carolSender.targets())

	// sending to a role group is allowed, joining it is not
	h.Invoke(context.Background(), alice, invocation("", MethodSendMessageToGroup, "Manager", "hello"))
	assert.Equal(t, eventFrame(EventReceiveMessage, "alice", "hello"), carolSender.last())
}

func TestHub_SendEmptyMessageToGroup(t *testing.T) {
	h := newTestHub()
	alice, aliceSender := connect(t, h, "alice", "User")
	h.Invoke(context.Background(), alice, invocation("", MethodJoinGroup, "floor"))

	h.Invoke(context.Background(), alice, invocation("m", MethodSendMessageToGroup, "floor", ""))

	assert.Empty(t, aliceSender.last().Error)
	assert.Contains(t, aliceSender.targets(), EventReceiveMessage)
}

func TestHub_Ping(t *testing.T) {
	h := newTestHub()
	conn, sender := connect(t, h, "u1", "User")

	testNow = testNow.Add(time.Minute)
	defer func() { testNow = testNow.Add(-time.Minute) }()

	h.Invoke(context.Background(), conn, invocation("p", MethodPing))

	assert.Equal(t, testNow, conn.LastHeartbeat())
	assert.Equal(t, []string{EventConnectionEstablished, EventPong}, sender.targets())

	completion := sender.last()
	assert.Equal(t, "p", completion.InvocationID)
	assert.Equal(t, testNow, completion.Result)
}

func TestHub_GetConnectionStatus(t *testing.T) {
	h := newTestHub()
	conn, sender := connect(t, h, "u1", "User")

	h.Invoke(context.Background(), conn, invocation("", MethodGetConnectionStatus))

	f := sender.last()
	require.Equal(t, EventConnectionStatus, f.Target)
	require.Len(t, f.Arguments, 1)

	status, ok := f.Arguments[0].(ConnectionStatus)
	require.True(t, ok)
	assert.Equal(t, conn.ID(), status.ConnectionID)
	assert.Equal(t, "u1", status.UserID)
	assert.Equal(t, testNow, status.ConnectedAt)
	assert.Equal(t, "0s", status.Uptime)
}

func TestHub_ForceReconnect(t *testing.T) {
	h := newTestHub()
	conn, sender := connect(t, h, "u1", "User")

	h.Invoke(context.Background(), conn, invocation("r", MethodForceReconnect))

	assert.True(t, sender.isClosed())
	targets := sender.targets()
	assert.Equal(t, EventForceReconnect, targets[len(targets)-1])
	// completion is queued before the transport closes
	assert.Equal(t, FrameCompletion, sender.last().Type)
}

func TestHub_SendNotificationToUser(t *testing.T) {
	h := newTestHub()
	sender, senderTransport := connect(t, h, "admin", "Admin")
	_, phone := connect(t, h, "target", "User")
	_, laptop := connect(t, h, "target", "User")

	h.Invoke(context.Background(), sender, invocation("n", MethodSendNotificationToUser, "target", "Restock", "Aisle 4 is low", ""))

	for _, s := range []*fakeSender{phone, laptop} {
		f := s.last()
		require.Equal(t, EventReceiveNotification, f.Target)
		assert.Equal(t, Notification{
			Title:     "Restock",
			Message:   "Aisle 4 is low",
			Type:      "info",
			SenderID:  "admin",
			Timestamp: testNow,
		}, f.Arguments[0])
	}

	// an offline target is not an error
	h.Invoke(context.Background(), sender, invocation("n2", MethodSendNotificationToUser, "offline", "t", "m", "warning"))
	f := senderTransport.last()
	assert.Equal(t, FrameCompletion, f.Type)
	assert.Empty(t, f.Error)
}

func TestHub_SendNotificationCustomType(t *testing.T) {
	h := newTestHub()
	sender, senderTransport := connect(t, h, "admin", "Admin")
	_, target := connect(t, h, "target", "User")

	h.Invoke(context.Background(), sender, invocation("n", MethodSendNotificationToUser, "target", "Restock", "low", "alert"))

	assert.Empty(t, senderTransport.last().Error)
	f := target.last()
	require.Equal(t, EventReceiveNotification, f.Target)
	assert.Equal(t, "alert", f.Arguments[0].(Notification).Type)
}

func TestHub_Deliver(t *testing.T) {
	h := newTestHub()
	_, admin := connect(t, h, "admin", "Admin")
	_, manager := connect(t, h, "manager", "Manager")
	_, owner := connect(t, h, "owner", "User")
	_, other := connect(t, h, "other", "User")

	countEvents := func(s *fakeSender, target events.Type) int {
		n := 0
		for _, got := range s.targets() {
			if got == string(target) {
				n++
			}
		}
		return n
	}

	stock, err := events.NewStockUpdate(12, 40, testNow)
	require.NoError(t, err)
	assert.Equal(t, 4, h.Deliver(stock))

	invoice, err := events.NewInvoiceUpdate(7, "Paid", "owner", testNow)
	require.NoError(t, err)
	assert.Equal(t, 3, h.Deliver(invoice))
	assert.Equal(t, 1, countEvents(admin, events.TypeInvoiceUpdate))
	assert.Equal(t, 1, countEvents(manager, events.TypeInvoiceUpdate))
	assert.Equal(t, 1, countEvents(owner, events.TypeInvoiceUpdate))
	assert.Equal(t, 0, countEvents(other, events.TypeInvoiceUpdate))

	activity, err := events.NewUserActivity("owner", "logged in", testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, h.Deliver(activity))
	assert.Equal(t, 1, countEvents(admin, events.TypeUserActivity))

	metrics, err := events.NewSystemMetrics(map[string]any{"cpu": 0.4}, testNow)
	require.NoError(t, err)
	assert.Equal(t, 2, h.Deliver(metrics))

	payload := admin.last().Arguments[0].(json.RawMessage)
	assert.JSONEq(t, string(metrics.Payload), string(payload))

	alert, err := events.NewStockLevelAlert(12, "Shrink wrap", 0, 5, testNow)
	require.NoError(t, err)
	assert.Equal(t, 2, h.Deliver(alert))
	assert.Equal(t, 0, countEvents(owner, events.TypeStockLevelAlert))

	note, err := events.NewUserNotification("owner", "your invoice was paid", "success", testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, h.Deliver(note))
	assert.Equal(t, 1, countEvents(owner, events.TypeUserNotification))

	dashboard, err := events.NewDashboardUpdate(map[string]any{"openInvoices": 3}, testNow)
	require.NoError(t, err)
	assert.Equal(t, 4, h.Deliver(dashboard))

	message, err := events.NewBroadcastMessage("stocktake at 5", "warning", "manager", testNow)
	require.NoError(t, err)
	assert.Equal(t, 4, h.Deliver(message))

	reconnect, err := events.NewUserReconnect("owner", "Role changed", testNow)
	require.NoError(t, err)
	assert.Equal(t, 0, h.Deliver(reconnect))
	assert.False(t, owner.isClosed())

	assert.Equal(t, 0, h.Deliver(events.Event{ID: "x", Type: events.TypeStockUpdate}))
}

func TestHub_DeliverCountsAdminOnceWhenAlsoOwner(t *testing.T) {
	h := newTestHub()
	_, admin := connect(t, h, "boss", "Admin")

	invoice, err := events.NewInvoiceUpdate(1, "Draft", "boss", testNow)
	require.NoError(t, err)

	assert.Equal(t, 1, h.Deliver(invoice))
	assert.Equal(t, []string{EventConnectionEstablished, string(events.TypeInvoiceUpdate)}, admin.targets())
}

func TestHub_DroppedFrames(t *testing.T) {
	h := newTestHub()
	_, slow := connect(t, h, "slow", "User")
	_, fast := connect(t, h, "fast", "User")
	slow.full = true

	assert.Equal(t, 1, h.Broadcast(EventReceiveMessage, "system", "hi"))
	assert.Equal(t, EventReceiveMessage, fast.last().Target)
}

func TestHub_ForceReconnectUser(t *testing.T) {
	h := newTestHub()
	_, a := connect(t, h, "u1", "User")
	_, b := connect(t, h, "u1", "User")
	_, other := connect(t, h, "u2", "User")

	assert.Equal(t, 2, h.ForceReconnectUser("u1", "role changed"))

	for _, s := range []*fakeSender{a, b} {
		assert.True(t, s.isClosed())
		assert.Equal(t, eventFrame(EventForceReconnect, "role changed"), s.last())
	}
	assert.False(t, other.isClosed())
}

func TestHub_SweepStale(t *testing.T) {
	h := newTestHub()
	stale, staleSender := connect(t, h, "idle", "User")
	fresh, freshSender := connect(t, h, "busy", "User")

	testNow = testNow.Add(3 * time.Minute)
	defer func() { testNow = testNow.Add(-3 * time.Minute) }()

	h.Invoke(context.Background(), fresh, invocation("", MethodPing))

	assert.Equal(t, 0, h.SweepStale(0))
	assert.Equal(t, 1, h.SweepStale(2*time.Minute))

	assert.True(t, staleSender.isClosed())
	assert.False(t, freshSender.isClosed())
	_, ok := h.Registry().Get(stale.ID())
	assert.False(t, ok)
	assert.Equal(t, 1, h.Registry().Count())
}

func TestHub_SweepStaleRecordsCause(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	h := NewHub(zap.New(core).Sugar())
	h.now = func() time.Time { return testNow }
	stale, _ := connect(t, h, "idle", "User")

	h.now = func() time.Time { return testNow.Add(5 * time.Minute) }
	assert.Equal(t, 1, h.SweepStale(2*time.Minute))

	entries := logs.FilterMessage("user disconnected").FilterField(zap.String("connectionId", stale.ID())).All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
	assert.Equal(t, errStale.Error(), entries[0].ContextMap()["cause"])

	// the read loop exiting afterwards does not log a second disconnect
	h.Disconnect(stale, errors.New("use of closed network connection"))
	assert.Empty(t, logs.FilterMessage("user disconnected with error").All())
}

func TestHub_ForceReconnectUserBefore(t *testing.T) {
	h := newTestHub()
	_, old := connect(t, h, "u1", "Admin")

	h.now = func() time.Time { return testNow.Add(time.Minute) }
	_, fresh := connect(t, h, "u1", "User")

	assert.Equal(t, 1, h.ForceReconnectUserBefore("u1", "Role changed", testNow.Add(30*time.Second)))
	assert.True(t, old.isClosed())
	assert.False(t, fresh.isClosed())

	assert.Equal(t, 0, h.ForceReconnectUserBefore("nobody", "Role changed", testNow))
}

func TestHub_Shutdown(t *testing.T) {
	h := newTestHub()
	_, a := connect(t, h, "u1", "Admin")
	_, b := connect(t, h, "u2", "User")

	h.Shutdown("server shutting down")

	assert.True(t, a.isClosed())
	assert.True(t, b.isClosed())
	assert.Equal(t, 0, h.Registry().Count())
}

func TestHub_Methods(t *testing.T) {
	assert.Equal(t, []string{
		MethodForceReconnect,
		MethodGetConnectionStatus,
		MethodJoinGroup,
		MethodLeaveGroup,
		MethodPing,
		MethodSendMessageToGroup,
		MethodSendNotificationToUser,
	}, newTestHub().Methods())
}
