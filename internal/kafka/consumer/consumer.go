package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"stockflow-service/internal/config"
	"stockflow-service/internal/events"
)

const retryDelay = time.Second

// Deliverer fans a domain event out to local connections and applies control events to them.
type Deliverer interface {
	Deliver(evt events.Event) int
	ForceReconnectUserBefore(userID string, reason string, cutoff time.Time) int
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type consumer struct {
	logger    *zap.SugaredLogger
	reader    messageReader
	deliverer Deliverer
}

// NewKafkaConsumer starts reading domain events until ctx is done. Each instance needs every
// event, so without a configured group id a unique one is generated per process.
func NewKafkaConsumer(ctx context.Context, wg *sync.WaitGroup, logger *zap.SugaredLogger, cfg config.KafkaConfig,
	deliverer Deliverer) {

	groupID := cfg.GroupID
	if groupID == "" {
		groupID = "stockflow-hub-" + uuid.NewString()
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		GroupID:     groupID,
		Topic:       cfg.Topic,
		StartOffset: kafka.LastOffset,
		MaxWait:     500 * time.Millisecond,
		ErrorLogger: zap.NewStdLog(logger.Desugar()),
	})
	logger.Infow("consuming domain events", "topic", cfg.Topic, "groupId", groupID)

	c := &consumer{
		logger:    logger,
		reader:    reader,
		deliverer: deliverer,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.run(ctx)
	}()
}

func (c *consumer) run(ctx context.Context) {
	defer func() {
		c.logger.Info("shutting down kafka reader")
		if err := c.reader.Close(); err != nil {
			c.logger.Errorw("failed to close kafka reader", "error", err)
		}
	}()

	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			c.logger.Errorw("failed to read message", "error", err)

			select {
			case <-ctx.Done():
				return
			case <-time.After(retryDelay):
			}
			continue
		}

		c.handle(m)
	}
}

func (c *consumer) handle(m kafka.Message) {
	evt, err := events.Decode(m.Value)
	if err != nil {
		c.logger.Warnw("dropping undecodable event", "partition", m.Partition, "offset", m.Offset, "error", err)
		return
	}

	if evt.Type.IsControl() {
		c.control(evt)
		return
	}

	delivered := c.deliverer.Deliver(evt)
	c.logger.Debugw("delivered event", "eventId", evt.ID, "type", evt.Type, "connections", delivered)
}

func (c *consumer) control(evt events.Event) {
	switch evt.Type {
	case events.TypeUserReconnect:
		req, err := events.DecodeUserReconnect(evt)
		if err != nil {
			c.logger.Warnw("dropping malformed reconnect event", "eventId", evt.ID, "error", err)
			return
		}
		closed := c.deliverer.ForceReconnectUserBefore(req.UserID, req.Reason, req.Timestamp)
		c.logger.Infow("reconnected user", "userId", req.UserID, "reason", req.Reason, "connections", closed)
	default:
		c.logger.Warnw("unhandled control event", "eventId", evt.ID, "type", evt.Type)
	}
}
