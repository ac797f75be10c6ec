package mq

import (
	"testing"
	"time"
)

func TestToKafkaMessageCarriesIDAndHeaders(t *testing.T) {
	msg := NewMessage("exec-1", []byte(`{"language":"python"}`))
	msg.SetHeader("x-event-type", "execution.completed")

	km := toKafkaMessage("judgegate.executions", msg)
	if km.Topic != "judgegate.executions" {
		t.Fatalf("unexpected topic: %s", km.Topic)
	}
	if string(km.Key) != "exec-1" {
		t.Fatalf("expected key exec-1, got %s", km.Key)
	}

	headers := make(map[string]string, len(km.Headers))
	for _, h := range km.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers[headerID] != "exec-1" || headers["x-event-type"] != "execution.completed" {
		t.Fatalf("unexpected headers: %v", headers)
	}
	if _, err := time.Parse(time.RFC3339Nano, headers[headerTimestamp]); err != nil {
		t.Fatalf("timestamp header not RFC3339: %v", err)
	}
}

func TestToKafkaMessageFillsTimestamp(t *testing.T) {
	msg := &Message{ID: "exec-2", Body: []byte("{}")}
	km := toKafkaMessage("t", msg)
	if km.Time.IsZero() {
		t.Fatalf("expected timestamp to be filled")
	}
}

func TestNewKafkaProducerRequiresBrokers(t *testing.T) {
	if _, err := NewKafkaProducer(KafkaConfig{}); err == nil {
		t.Fatalf("expected error without brokers")
	}
	p, err := NewKafkaProducer(KafkaConfig{Brokers: []string{"127.0.0.1:9092"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.config.BatchSize != 100 || p.config.WriteTimeout != 10*time.Second {
		t.Fatalf("defaults not applied: %+v", p.config)
	}
	_ = p.Close()
}
