package notifier

import (
	"context"
	"errors"
)

// ErrUnavailable is returned while the publisher's circuit is open.
var ErrUnavailable = errors.New("event publishing unavailable")

//go:generate mockgen -source=public.go -destination=public_mock.go -package=notifier
type Notifier interface {
	StockUpdate(ctx context.Context, productID int64, newQuantity int) error
	InvoiceUpdate(ctx context.Context, invoiceID int64, status string, userID string) error
	UserActivity(ctx context.Context, userID string, activity string) error
	SystemMetrics(ctx context.Context, metrics map[string]any) error

	StockLevelAlert(ctx context.Context, productID int64, productName string, currentStock int, minimumStock int) error
	UserNotification(ctx context.Context, userID string, message string, typ string) error
	DashboardUpdate(ctx context.Context, data map[string]any) error
	BroadcastMessage(ctx context.Context, message string, typ string, sender string) error

	// ReconnectUser asks every instance to close the user's connections opened before now.
	ReconnectUser(ctx context.Context, userID string, reason string) error
}
