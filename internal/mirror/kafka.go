package mirror

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaMirror publishes transition and score events to a Kafka topic for
// deployments that feed a downstream SIEM.
type KafkaMirror struct {
	writer *kafka.Writer
}

// NewKafkaMirror creates a mirror writing to the given brokers and topic.
func NewKafkaMirror(brokers []string, topic string) *KafkaMirror {
	return &KafkaMirror{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			WriteTimeout: 2 * time.Second,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (m *KafkaMirror) PublishState(ctx context.Context, ev StateEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return m.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.UserID),
		Value: payload,
	})
}

func (m *KafkaMirror) PublishScores(ctx context.Context, evs []ScoreEvent) error {
	msgs := make([]kafka.Message, 0, len(evs))
	for _, ev := range evs {
		payload, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{Key: []byte(ev.User), Value: payload})
	}
	if len(msgs) == 0 {
		return nil
	}
	return m.writer.WriteMessages(ctx, msgs...)
}

func (m *KafkaMirror) Close() error {
	return m.writer.Close()
}
