// Package kafka publishes audit events to a Kafka topic. The topic is the
// durable audit trail; downstream consumers handle retention and indexing.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "askme/pkg/platform/audit"
)

// Sink implements audit.Store by producing JSON records keyed by subject
// name, so one subject's events stay ordered within a partition.
type Sink struct {
	client *kgo.Client
	topic  string
}

// New connects to the brokers and makes sure the topic exists.
func New(ctx context.Context, brokers []string, topic string) (*Sink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	if err := ensureTopic(ctx, client, topic); err != nil {
		client.Close()
		return nil, err
	}

	return &Sink{client: client, topic: topic}, nil
}

func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopics(ctx, 3, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %q: %w", topic, err)
	}
	for _, res := range resp {
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %q: %w", topic, res.Err)
		}
	}
	return nil
}

// record is the wire form of an audit event.
type record struct {
	Timestamp      string `json:"timestamp"`
	Subject        string `json:"subject"`
	Action         string `json:"action"`
	VerificationID string `json:"verificationId,omitempty"`
	Verifier       string `json:"verifier,omitempty"`
	Field          string `json:"field,omitempty"`
	Mode           string `json:"mode,omitempty"`
	Outcome        string `json:"outcome,omitempty"`
	RequestID      string `json:"requestId,omitempty"`
	ClientIP       string `json:"clientIp,omitempty"`
	UserAgent      string `json:"userAgent,omitempty"`
}

func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(record{
		Timestamp:      event.Timestamp.Format(time.RFC3339Nano),
		Subject:        event.Subject,
		Action:         event.Action,
		VerificationID: event.VerificationID,
		Verifier:       event.Verifier,
		Field:          event.Field,
		Mode:           event.Mode,
		Outcome:        event.Outcome,
		RequestID:      event.RequestID,
		ClientIP:       event.ClientIP,
		UserAgent:      event.UserAgent,
	})
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	rec := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.Subject),
		Value: payload,
	}
	if err := s.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// ListBySubject is not supported by the Kafka sink. The topic is write-only
// from the server's perspective.
func (s *Sink) ListBySubject(context.Context, string) ([]audit.Event, error) {
	return nil, fmt.Errorf("kafka sink does not support reads")
}

func (s *Sink) Close() {
	s.client.Close()
}
