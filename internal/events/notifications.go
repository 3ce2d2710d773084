package events

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"

	DefaultMessageType = "info"
)

type StockLevelAlert struct {
	ProductID    int64     `json:"productId"`
	ProductName  string    `json:"productName"`
	CurrentStock int       `json:"currentStock"`
	MinimumStock int       `json:"minimumStock"`
	Severity     string    `json:"severity"`
	Timestamp    time.Time `json:"timestamp"`
}

type UserNotification struct {
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

type BroadcastMessage struct {
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// UserReconnect asks every instance to close the user's connections opened before Timestamp.
type UserReconnect struct {
	UserID    string    `json:"userId"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// NewStockLevelAlert goes to admins and managers. An empty shelf is critical.
func NewStockLevelAlert(productID int64, productName string, currentStock int, minimumStock int, now time.Time) (Event, error) {
	severity := SeverityWarning
	if currentStock == 0 {
		severity = SeverityCritical
	}
	return newEvent(TypeStockLevelAlert, Audience{Groups: append([]string{}, managementGroups...)}, StockLevelAlert{
		ProductID:    productID,
		ProductName:  productName,
		CurrentStock: currentStock,
		MinimumStock: minimumStock,
		Severity:     severity,
		Timestamp:    now,
	}, now)
}

// NewUserNotification reaches every connection of one user.
func NewUserNotification(userID string, message string, typ string, now time.Time) (Event, error) {
	return newEvent(TypeUserNotification, Audience{Groups: []string{UserGroup(userID)}}, UserNotification{
		Message:   message,
		Type:      messageType(typ),
		Timestamp: now,
	}, now)
}

// NewDashboardUpdate broadcasts data as is.
func NewDashboardUpdate(data map[string]any, now time.Time) (Event, error) {
	return newEvent(TypeDashboardUpdate, Audience{Broadcast: true}, data, now)
}

func NewBroadcastMessage(message string, typ string, sender string, now time.Time) (Event, error) {
	if sender == "" {
		sender = "System"
	}
	return newEvent(TypeBroadcastMessage, Audience{Broadcast: true}, BroadcastMessage{
		Message:   message,
		Type:      messageType(typ),
		Sender:    sender,
		Timestamp: now,
	}, now)
}

func NewUserReconnect(userID string, reason string, now time.Time) (Event, error) {
	return newEvent(TypeUserReconnect, Audience{Groups: []string{UserGroup(userID)}}, UserReconnect{
		UserID:    userID,
		Reason:    reason,
		Timestamp: now,
	}, now)
}

// DecodeUserReconnect reads the payload of a TypeUserReconnect event.
func DecodeUserReconnect(evt Event) (UserReconnect, error) {
	if evt.Type != TypeUserReconnect {
		return UserReconnect{}, fmt.Errorf("event %q is %s, not %s", evt.ID, evt.Type, TypeUserReconnect)
	}

	var req UserReconnect
	if err := json.Unmarshal(evt.Payload, &req); err != nil {
		return UserReconnect{}, fmt.Errorf("failed to unmarshal %s payload: %w", evt.Type, err)
	}
	if req.UserID == "" {
		return UserReconnect{}, fmt.Errorf("event %q names no user", evt.ID)
	}
	return req, nil
}

func messageType(typ string) string {
	if typ == "" {
		return DefaultMessageType
	}
	return typ
}
