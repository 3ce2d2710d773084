package events

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"stockflow-service/internal/authz"
)

type Type string

const (
	TypeStockUpdate   Type = "StockUpdate"
	TypeInvoiceUpdate Type = "InvoiceUpdate"
	TypeUserActivity  Type = "UserActivity"
	TypeSystemMetrics Type = "SystemMetrics"

	TypeStockLevelAlert  Type = "StockLevelAlert"
	TypeUserNotification Type = "UserNotification"
	TypeDashboardUpdate  Type = "DashboardUpdate"
	TypeBroadcastMessage Type = "BroadcastMessage"

	// TypeUserReconnect is a control event. Instances act on it instead of forwarding it.
	TypeUserReconnect Type = "UserReconnect"
)

// IsControl reports whether events of this type are handled by the hub itself.
func (t Type) IsControl() bool {
	return t == TypeUserReconnect
}

// Audience selects the connections an event is fanned out to.
type Audience struct {
	Broadcast bool     `json:"broadcast,omitempty"`
	Groups    []string `json:"groups,omitempty"`
}

func (a Audience) Empty() bool {
	return !a.Broadcast && len(a.Groups) == 0
}

// Event is the envelope published to Kafka and delivered by the hub.
type Event struct {
	ID        string          `json:"id"`
	Type      Type            `json:"type"`
	Audience  Audience        `json:"audience"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

type StockUpdate struct {
	ProductID   int64     `json:"productId"`
	NewQuantity int       `json:"newQuantity"`
	Timestamp   time.Time `json:"timestamp"`
}

type InvoiceUpdate struct {
	InvoiceID int64     `json:"invoiceId"`
	Status    string    `json:"status"`
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

type UserActivity struct {
	UserID    string    `json:"userId"`
	Activity  string    `json:"activity"`
	Timestamp time.Time `json:"timestamp"`
}

type SystemMetrics struct {
	Metrics   map[string]any `json:"metrics"`
	Timestamp time.Time      `json:"timestamp"`
}

var (
	managementGroups = []string{RoleGroup(authz.RoleAdmin), RoleGroup(authz.RoleManager)}
	adminGroups      = []string{RoleGroup(authz.RoleAdmin)}
)

// NewStockUpdate is broadcast to every connection.
func NewStockUpdate(productID int64, newQuantity int, now time.Time) (Event, error) {
	return newEvent(TypeStockUpdate, Audience{Broadcast: true}, StockUpdate{
		ProductID:   productID,
		NewQuantity: newQuantity,
		Timestamp:   now,
	}, now)
}

// NewInvoiceUpdate goes to admins, managers and the invoice owner.
func NewInvoiceUpdate(invoiceID int64, status string, userID string, now time.Time) (Event, error) {
	groups := append([]string{}, managementGroups...)
	if userID != "" {
		groups = append(groups, UserGroup(userID))
	}
	return newEvent(TypeInvoiceUpdate, Audience{Groups: groups}, InvoiceUpdate{
		InvoiceID: invoiceID,
		Status:    status,
		UserID:    userID,
		Timestamp: now,
	}, now)
}

// NewUserActivity is visible to admins only.
func NewUserActivity(userID string, activity string, now time.Time) (Event, error) {
	return newEvent(TypeUserActivity, Audience{Groups: append([]string{}, adminGroups...)}, UserActivity{
		UserID:    userID,
		Activity:  activity,
		Timestamp: now,
	}, now)
}

// NewSystemMetrics goes to admins and managers.
func NewSystemMetrics(metrics map[string]any, now time.Time) (Event, error) {
	return newEvent(TypeSystemMetrics, Audience{Groups: append([]string{}, managementGroups...)}, SystemMetrics{
		Metrics:   metrics,
		Timestamp: now,
	}, now)
}

func newEvent(typ Type, audience Audience, payload any, now time.Time) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", typ, err)
	}

	return Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Audience:  audience,
		Payload:   raw,
		Timestamp: now,
	}, nil
}

func Encode(evt Event) ([]byte, error) {
	return json.Marshal(evt)
}

func Decode(data []byte) (Event, error) {
	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil {
		return Event{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if evt.Type == "" {
		return Event{}, fmt.Errorf("event %q has no type", evt.ID)
	}
	return evt, nil
}
