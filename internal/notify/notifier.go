// Package notify publishes best-effort marketplace events. Dispatch is
// fire-and-forget: a failed publish is logged and never fails the operation
// that triggered it.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/marcelolino/servicos-conecte-sub000/internal/config"
)

type Event struct {
	Type             string    `json:"type"`
	OrderID          int64     `json:"order_id,omitempty"`
	ServiceRequestID int64     `json:"service_request_id,omitempty"`
	WithdrawalID     int64     `json:"withdrawal_id,omitempty"`
	ClientID         int64     `json:"client_id,omitempty"`
	ProviderID       int64     `json:"provider_id,omitempty"`
	Status           string    `json:"status,omitempty"`
	Amount           string    `json:"amount,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}

const (
	EventOrderStatusChanged   = "order.status_changed"
	EventOrderPlaced          = "order.placed"
	EventRequestStatusChanged = "service_request.status_changed"
	EventWithdrawalProcessed  = "withdrawal.processed"
)

type Notifier interface {
	Notify(ctx context.Context, event Event)
	Close() error
}

type KafkaNotifier struct {
	writer *kafka.Writer
	log    zerolog.Logger
}

func NewKafkaNotifier(cfg config.KafkaConfig, log zerolog.Logger) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.NotificationTopic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
		log: log,
	}
}

// Notify publishes the event in the background. The caller's transaction has
// already committed; notification failure must not unwind it.
func (n *KafkaNotifier) Notify(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	go func() {
		payload, err := json.Marshal(event)
		if err != nil {
			n.log.Error().Err(err).Str("type", event.Type).Msg("marshal notification")
			return
		}

		writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err = n.writer.WriteMessages(writeCtx, kafka.Message{
			Key:   []byte(event.Type),
			Value: payload,
		})
		if err != nil {
			n.log.Warn().Err(err).Str("type", event.Type).Msg("publish notification")
		}
	}()
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

// NopNotifier drops every event; used when Kafka is disabled.
type NopNotifier struct{}

func (NopNotifier) Notify(ctx context.Context, event Event) {}

func (NopNotifier) Close() error { return nil }
