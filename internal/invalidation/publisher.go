package invalidation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
)

// Publisher sends change events to the directory change topic. Events are
// keyed by source so one feed stays ordered within its partition.
type Publisher struct {
	topic string
	prod  sarama.SyncProducer
}

func NewPublisher(prod sarama.SyncProducer, topic string) *Publisher {
	return &Publisher{topic: topic, prod: prod}
}

// DialPublisher connects a synchronous producer that waits for all in-sync
// replicas.
func DialPublisher(brokers []string, topic string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("invalidation: no brokers")
	}
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3

	prod, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("invalidation: create producer: %w", err)
	}
	return NewPublisher(prod, topic), nil
}

// Publish validates ev and sends it, returning the partition and offset it
// landed on.
func (p *Publisher) Publish(ctx context.Context, ev Event) (int32, int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	if err := ev.Validate(); err != nil {
		return 0, 0, fmt.Errorf("invalid event: %w", err)
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return 0, 0, fmt.Errorf("encode event: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Value: sarama.ByteEncoder(b),
	}
	if ev.Source != "" {
		msg.Key = sarama.StringEncoder(ev.Source)
	}
	part, off, err := p.prod.SendMessage(msg)
	if err != nil {
		return 0, 0, fmt.Errorf("send to %s: %w", p.topic, err)
	}
	return part, off, nil
}

func (p *Publisher) Close() error {
	if err := p.prod.Close(); err != nil {
		return fmt.Errorf("invalidation: close producer: %w", err)
	}
	return nil
}
