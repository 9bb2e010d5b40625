package report

import (
	types "FrameForge/pkg"
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type message struct {
	Record
	ProcessingSeconds float64 `json:"processing_time"`
}

// AMQPSink publishes each record as a persistent JSON message on a topic
// exchange.
type AMQPSink struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *zap.Logger
}

func NewAMQPSink(cfg types.AMQPConfig, logger *zap.Logger) (*AMQPSink, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open publisher channel: %w", err)
	}

	exchange := cfg.Exchange
	if exchange == "" {
		exchange = "frameforge"
	}
	routingKey := cfg.RoutingKey
	if routingKey == "" {
		routingKey = "video.extracted"
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &AMQPSink{conn: conn, channel: ch, exchange: exchange, routingKey: routingKey, logger: logger}, nil
}

func encodeMessage(rec Record) ([]byte, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return json.Marshal(message{Record: rec, ProcessingSeconds: rec.ProcessingSeconds()})
}

func (s *AMQPSink) Record(ctx context.Context, rec Record) error {
	body, err := encodeMessage(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	err = s.channel.PublishWithContext(ctx,
		s.exchange,
		s.routingKey,
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			MessageId:    rec.BatchID,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish record: %w", err)
	}
	return nil
}

func (s *AMQPSink) Close() error {
	if err := s.channel.Close(); err != nil {
		s.logger.Warn("Failed to close amqp channel", zap.Error(err))
	}
	return s.conn.Close()
}
