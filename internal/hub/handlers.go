package hub

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stockflow-service/internal/events"
)

type groupArgs struct {
	Name string `validate:"required,max=128"`
}

type groupMessageArgs struct {
	Group   string `validate:"required,max=128"`
	Message string `validate:"max=4096"`
}

type notificationArgs struct {
	TargetUserID string `validate:"required,max=64"`
	Title        string `validate:"max=256"`
	Message      string `validate:"max=4096"`
	Type         string `validate:"max=32"`
}

const defaultNotificationType = "info"

func (h *Hub) bindGroup(call *Call) (string, error) {
	var args groupArgs
	if err := call.Bind(&args.Name); err != nil {
		return "", err
	}
	args.Name = strings.TrimSpace(args.Name)
	if err := h.check(args); err != nil {
		return "", err
	}
	if events.IsReserved(args.Name) {
		return "", fmt.Errorf("%w: %q", ErrReservedGroup, args.Name)
	}
	return args.Name, nil
}

// check validates bound arguments. Validator details stay in the debug log, the caller only
// sees ErrInvalidArguments.
func (h *Hub) check(args any) error {
	if err := h.validate.Struct(args); err != nil {
		h.logger.Debugw("invocation arguments rejected", "error", err)
		return ErrInvalidArguments
	}
	return nil
}

func (h *Hub) joinGroup(_ context.Context, call *Call) (any, error) {
	group, err := h.bindGroup(call)
	if err != nil {
		return nil, err
	}

	if !h.registry.Join(call.Conn.id, group) {
		return nil, errConnectionUnknown
	}
	h.logger.Infow("connection joined group", "connectionId", call.Conn.id, "group", group)
	return nil, nil
}

func (h *Hub) leaveGroup(_ context.Context, call *Call) (any, error) {
	group, err := h.bindGroup(call)
	if err != nil {
		return nil, err
	}

	h.registry.Leave(call.Conn.id, group)
	h.logger.Infow("connection left group", "connectionId", call.Conn.id, "group", group)
	return nil, nil
}

func (h *Hub) sendMessageToGroup(_ context.Context, call *Call) (any, error) {
	var args groupMessageArgs
	if err := call.Bind(&args.Group, &args.Message); err != nil {
		return nil, err
	}
	if err := h.check(args); err != nil {
		return nil, err
	}

	h.SendToGroup(args.Group, EventReceiveMessage, call.Conn.UserID(), args.Message)
	return nil, nil
}

func (h *Hub) ping(_ context.Context, call *Call) (any, error) {
	serverTime := call.Conn.Touch(h.now())
	h.sendEvent(call.Conn, EventPong, serverTime)
	return serverTime, nil
}

func (h *Hub) getConnectionStatus(_ context.Context, call *Call) (any, error) {
	now := h.now()
	status := ConnectionStatus{
		ConnectionID:  call.Conn.id,
		UserID:        call.Conn.UserID(),
		ConnectedAt:   call.Conn.ConnectedAt(),
		Uptime:        now.Sub(call.Conn.ConnectedAt()).Round(time.Second).String(),
		LastHeartbeat: call.Conn.LastHeartbeat(),
	}

	h.sendEvent(call.Conn, EventConnectionStatus, status)
	return status, nil
}

func (h *Hub) forceReconnect(_ context.Context, call *Call) (any, error) {
	h.sendEvent(call.Conn, EventForceReconnect, reasonRequested)
	h.logger.Infow("forcing reconnect", "connectionId", call.Conn.id, "userId", call.Conn.UserID())
	call.closeAfter = true
	return nil, nil
}

func (h *Hub) sendNotificationToUser(_ context.Context, call *Call) (any, error) {
	var args notificationArgs
	if err := call.Bind(&args.TargetUserID, &args.Title, &args.Message, &args.Type); err != nil {
		return nil, err
	}
	if args.Type == "" {
		args.Type = defaultNotificationType
	}
	if err := h.check(args); err != nil {
		return nil, err
	}

	delivered := h.SendToUser(args.TargetUserID, EventReceiveNotification, Notification{
		Title:     args.Title,
		Message:   args.Message,
		Type:      args.Type,
		SenderID:  call.Conn.UserID(),
		Timestamp: h.now(),
	})
	h.logger.Debugw("notification sent", "senderId", call.Conn.UserID(), "targetUserId", args.TargetUserID,
		"delivered", delivered)
	return nil, nil
}
