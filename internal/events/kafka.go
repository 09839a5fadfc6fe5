// Package events publishes committed to-do changes to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"todo-api/internal/domain"
)

// Message is the JSON payload written for each change.
type Message struct {
	Type        string    `json:"type"`
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// NewMessage converts a domain event into its wire form.
func NewMessage(event domain.TodoEvent) Message {
	return Message{
		Type:        string(event.Type),
		ID:          event.Todo.ID,
		UserID:      event.Todo.Owner,
		Title:       event.Todo.Title,
		Description: event.Todo.Description,
		OccurredAt:  event.OccurredAt,
	}
}

type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes to-do events keyed by item id so one item's history stays ordered.
type Kafka struct {
	w      writer
	topic  string
	logger logrus.FieldLogger
}

// ParseBrokers splits a comma separated broker list, dropping blanks.
func ParseBrokers(list string) []string {
	var out []string
	for _, b := range strings.Split(list, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func NewKafka(brokers []string, topic string, logger logrus.FieldLogger) *Kafka {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		Async:                  true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.WithError(err).WithField("count", len(messages)).Warn("kafka delivery failed")
			}
		},
	}
	logger.WithFields(logrus.Fields{"topic": topic, "brokers": brokers}).Info("kafka producer initialized")
	return &Kafka{w: w, topic: topic, logger: logger}
}

func (k *Kafka) Publish(ctx context.Context, event domain.TodoEvent) error {
	payload, err := json.Marshal(NewMessage(event))
	if err != nil {
		return fmt.Errorf("encode todo event: %w", err)
	}
	if err := k.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Todo.ID),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("write todo event to %s: %w", k.topic, err)
	}
	return nil
}

// Close flushes pending messages.
func (k *Kafka) Close() error {
	return k.w.Close()
}
