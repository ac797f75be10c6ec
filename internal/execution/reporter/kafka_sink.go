package reporter

import (
	"context"
	"encoding/json"
	"errors"

	"judgegate/internal/common/mq"
)

const (
	DefaultExecutionTopic = "judgegate.executions"
	eventTypeHeader       = "x-event-type"
	eventTypeExecuted     = "execution.recorded"
)

// KafkaEventSink publishes each log as a JSON event keyed by its id.
type KafkaEventSink struct {
	producer mq.Producer
	topic    string
}

var _ Sink = (*KafkaEventSink)(nil)

func NewKafkaEventSink(producer mq.Producer, topic string) *KafkaEventSink {
	if topic == "" {
		topic = DefaultExecutionTopic
	}
	return &KafkaEventSink{producer: producer, topic: topic}
}

func (s *KafkaEventSink) Write(ctx context.Context, log ExecutionLog) error {
	if s.producer == nil {
		return errors.New("producer is nil")
	}
	body, err := json.Marshal(log)
	if err != nil {
		return err
	}
	msg := mq.NewMessage(log.ID, body)
	msg.Timestamp = log.CreatedAt
	msg.SetHeader(eventTypeHeader, eventTypeExecuted)
	msg.SetHeader("x-endpoint", log.Endpoint)
	return s.producer.Publish(ctx, s.topic, msg)
}
