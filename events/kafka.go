// Package events bridges resource notifications to external brokers.
package events

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/snabb-tech/dispatch/core"
	"github.com/snabb-tech/dispatch/core/logger"
)

// KafkaNotifier publishes resource notifications to Kafka. The channel
// becomes the topic and the event becomes the message key.
//
// Publish is fire-and-forget; a broker failure is logged and dropped.
type KafkaNotifier struct {
	writer *kafka.Writer
}

// NewKafkaNotifier creates a notifier for the given brokers. Topics must
// exist or the cluster must allow auto creation.
func NewKafkaNotifier(brokers []string) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
	}
}

// Publish implements core.Notifier.
func (k *KafkaNotifier) Publish(channel string, event string, payload []byte) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := k.writer.WriteMessages(ctx, kafka.Message{
			Topic: channel,
			Key:   []byte(event),
			Value: payload,
		})
		if err != nil {
			logger.Default().WithError(err).
				Errorf("cannot publish %s to topic %s", event, channel)
		}
	}()
}

// Close flushes and closes the underlying writer.
func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}

// MultiNotifier fans every notification out to all member notifiers.
type MultiNotifier []core.Notifier

// Publish implements core.Notifier.
func (m MultiNotifier) Publish(channel string, event string, payload []byte) {
	for _, n := range m {
		n.Publish(channel, event, payload)
	}
}
