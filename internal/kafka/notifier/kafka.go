package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"stockflow-service/internal/config"
	"stockflow-service/internal/events"
)

// EventTypeHeader carries the event type so consumers can route without decoding the body.
const EventTypeHeader = "X-Event-Type"

var eventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "stockflow_events_published_total",
	Help: "Domain events handed to Kafka, by type and outcome.",
}, []string{"type", "outcome"})

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaNotifier struct {
	logger  *zap.SugaredLogger
	w       messageWriter
	breaker *gobreaker.CircuitBreaker[struct{}]

	now func() time.Time
}

func NewKafkaNotifier(ctx context.Context, wg *sync.WaitGroup, logger *zap.SugaredLogger, cfg config.KafkaConfig) Notifier {
	w := newKafkaWriter(logger, cfg)

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		logger.Info("shutting down kafka writer")
		if err := w.Close(); err != nil {
			logger.Errorw("failed to close kafka writer", "error", err)
		}
	}()

	return newKafkaNotifier(logger, w)
}

func newKafkaWriter(logger *zap.SugaredLogger, cfg config.KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
		ErrorLogger:  zap.NewStdLog(logger.Desugar()),
	}
}

func newKafkaNotifier(logger *zap.SugaredLogger, w messageWriter) *kafkaNotifier {
	return &kafkaNotifier{
		logger:  logger,
		w:       w,
		breaker: newBreaker(logger),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func newBreaker(logger *zap.SugaredLogger) *gobreaker.CircuitBreaker[struct{}] {
	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "kafka-notifier",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warnw("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
		// a caller giving up is not a broker failure
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
}

func (k *kafkaNotifier) StockUpdate(ctx context.Context, productID int64, newQuantity int) error {
	evt, err := events.NewStockUpdate(productID, newQuantity, k.now())
	if err != nil {
		return err
	}
	return k.publish(ctx, evt)
}

func (k *kafkaNotifier) InvoiceUpdate(ctx context.Context, invoiceID int64, status string, userID string) error {
	evt, err := events.NewInvoiceUpdate(invoiceID, status, userID, k.now())
	if err != nil {
		return err
	}
	return k.publish(ctx, evt)
}

func (k *kafkaNotifier) UserActivity(ctx context.Context, userID string, activity string) error {
	evt, err := events.NewUserActivity(userID, activity, k.now())
	if err != nil {
		return err
	}
	return k.publish(ctx, evt)
}

func (k *kafkaNotifier) SystemMetrics(ctx context.Context, metrics map[string]any) error {
	evt, err := events.NewSystemMetrics(metrics, k.now())
	if err != nil {
		return err
	}
	return k.publish(ctx, evt)
}

func (k *kafkaNotifier) StockLevelAlert(ctx context.Context, productID int64, productName string, currentStock int,
	minimumStock int) error {

	evt, err := events.NewStockLevelAlert(productID, productName, currentStock, minimumStock, k.now())
	if err != nil {
		return err
	}
	return k.publish(ctx, evt)
}

func (k *kafkaNotifier) UserNotification(ctx context.Context, userID string, message string, typ string) error {
	evt, err := events.NewUserNotification(userID, message, typ, k.now())
	if err != nil {
		return err
	}
	return k.publish(ctx, evt)
}

func (k *kafkaNotifier) DashboardUpdate(ctx context.Context, data map[string]any) error {
	evt, err := events.NewDashboardUpdate(data, k.now())
	if err != nil {
		return err
	}
	return k.publish(ctx, evt)
}

func (k *kafkaNotifier) BroadcastMessage(ctx context.Context, message string, typ string, sender string) error {
	evt, err := events.NewBroadcastMessage(message, typ, sender, k.now())
	if err != nil {
		return err
	}
	return k.publish(ctx, evt)
}

func (k *kafkaNotifier) ReconnectUser(ctx context.Context, userID string, reason string) error {
	evt, err := events.NewUserReconnect(userID, reason, k.now())
	if err != nil {
		return err
	}
	return k.publish(ctx, evt)
}

func (k *kafkaNotifier) publish(ctx context.Context, evt events.Event) error {
	bytes, err := events.Encode(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = k.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, k.w.WriteMessages(ctx, kafka.Message{
			Key:     []byte(evt.ID),
			Value:   bytes,
			Headers: []kafka.Header{{Key: EventTypeHeader, Value: []byte(evt.Type)}},
		})
	})
	if err != nil {
		eventsPublishedTotal.WithLabelValues(string(evt.Type), "error").Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return fmt.Errorf("failed to write message: %w", err)
	}

	eventsPublishedTotal.WithLabelValues(string(evt.Type), "ok").Inc()
	k.logger.Debugw("published event", "eventId", evt.ID, "type", evt.Type)
	return nil
}
