package hub

import (
	"time"

	"github.com/goccy/go-json"
)

type FrameType string

const (
	FrameInvocation FrameType = "invocation"
	FrameEvent      FrameType = "event"
	FrameCompletion FrameType = "completion"
)

// Methods a client can invoke.
const (
	MethodJoinGroup              = "JoinGroup"
	MethodLeaveGroup             = "LeaveGroup"
	MethodSendMessageToGroup     = "SendMessageToGroup"
	MethodPing                   = "Ping"
	MethodGetConnectionStatus    = "GetConnectionStatus"
	MethodForceReconnect         = "ForceReconnect"
	MethodSendNotificationToUser = "SendNotificationToUser"
)

// Events the server pushes to clients.
const (
	EventConnectionEstablished = "ConnectionEstablished"
	EventPong                  = "Pong"
	EventConnectionStatus      = "ConnectionStatus"
	EventForceReconnect        = "ForceReconnect"
	EventReceiveMessage        = "ReceiveMessage"
	EventReceiveNotification   = "ReceiveNotification"
)

// Invocation is an inbound client call. Arguments are positional and decoded by the handler.
type Invocation struct {
	Type         FrameType         `json:"type"`
	InvocationID string            `json:"invocationId,omitempty"`
	Target       string            `json:"target"`
	Arguments    []json.RawMessage `json:"arguments,omitempty"`
}

// Frame is an outbound event or completion.
type Frame struct {
	Type         FrameType `json:"type"`
	InvocationID string    `json:"invocationId,omitempty"`
	Target       string    `json:"target,omitempty"`
	Arguments    []any     `json:"arguments,omitempty"`
	Result       any       `json:"result,omitempty"`
	Error        string    `json:"error,omitempty"`
}

func eventFrame(target string, args ...any) Frame {
	return Frame{
		Type:      FrameEvent,
		Target:    target,
		Arguments: args,
	}
}

func completionFrame(invocationID string, result any, err error) Frame {
	f := Frame{
		Type:         FrameCompletion,
		InvocationID: invocationID,
		Result:       result,
	}
	if err != nil {
		f.Error = err.Error()
		f.Result = nil
	}
	return f
}

type ConnectionStatus struct {
	ConnectionID  string    `json:"connectionId"`
	UserID        string    `json:"userId"`
	ConnectedAt   time.Time `json:"connectedAt"`
	Uptime        string    `json:"uptime"`
	LastHeartbeat time.Time `json:"lastHeartbeat"`
}

type Notification struct {
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	SenderID  string    `json:"senderId"`
	Timestamp time.Time `json:"timestamp"`
}
