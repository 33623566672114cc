// Package kafka publishes audit events to a Kafka topic for downstream
// consumers (SIEM, compliance archival). It implements audit.Sink so the
// publisher can fan out to it alongside the primary store.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "custodia/pkg/platform/audit"
)

type Sink struct {
	client *kgo.Client
	topic  string
}

// New connects to the given brokers and returns a sink producing to topic.
func New(brokers []string, topic string) (*Sink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Sink{client: client, topic: topic}, nil
}

// Append produces the event synchronously. Events about the same transfer are
// keyed by transfer id so they land in one partition in order; registry events
// share a fixed key for the same reason.
func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	key := "registry"
	if event.TransferID != nil {
		key = strconv.FormatInt(*event.TransferID, 10)
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(key),
		Value: payload,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// Close flushes outstanding produce requests and releases the client.
func (s *Sink) Close() {
	s.client.Close()
}
