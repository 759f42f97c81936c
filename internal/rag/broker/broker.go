// Package broker publishes IngestJob messages to the broker that
// TaskRunner (C9) consumes from.
package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"ragforge/internal/ragdomain"
)

// Writer is the narrow send surface a Producer needs; *kafka.Writer
// satisfies it.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Producer publishes IngestJob messages for newly uploaded documents.
type Producer struct {
	writer Writer
	topic  string
}

// NewProducer constructs a Producer writing to the given broker/topic.
func NewProducer(brokerURL, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokerURL),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
		topic: topic,
	}
}

// NewProducerWithWriter builds a Producer over an already-constructed
// Writer, for tests.
func NewProducerWithWriter(w Writer, topic string) *Producer {
	return &Producer{writer: w, topic: topic}
}

// PublishIngestJob enqueues documentID for TaskRunner to pick up.
func (p *Producer) PublishIngestJob(ctx context.Context, documentID int64) error {
	job := ragdomain.IngestJob{DocumentID: documentID}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal ingest job: %w", err)
	}
	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(fmt.Sprintf("%d", documentID)),
		Value: payload,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return ragdomain.New(ragdomain.KindTransportError, "PublishIngestJob", "broker send failed", err)
	}
	return nil
}

// Close releases the underlying writer, if it owns one.
func (p *Producer) Close() error {
	if w, ok := p.writer.(*kafka.Writer); ok {
		return w.Close()
	}
	return nil
}
