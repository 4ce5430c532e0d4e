package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/space-queue-system/internal/engine"
)

// Record is the audit envelope written to Kafka for every committed queue
// mutation. Downstream consumers (analytics, reconciliation) replay these;
// live clients get the same events over the websocket hub instead.
type Record struct {
	ID        uuid.UUID        `json:"id"`
	SpaceID   uuid.UUID        `json:"space_id"`
	Kind      engine.EventKind `json:"kind"`
	Seq       uint64           `json:"seq"`
	Timestamp time.Time        `json:"timestamp"`
	Payload   json.RawMessage  `json:"payload"`
}

type KafkaClient struct {
	writer *kafka.Writer
	reader *kafka.Reader
}

func NewKafkaClient(brokers []string, topic string, groupID string) *KafkaClient {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		StartOffset: kafka.LastOffset,
	})

	return &KafkaClient{
		writer: writer,
		reader: reader,
	}
}

func (k *KafkaClient) WriteRecord(ctx context.Context, record Record) error {
	messageJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	msg := kafka.Message{
		// Keyed by space so one space's records stay in one partition, in order.
		Key:   []byte(record.SpaceID.String()),
		Value: messageJSON,
	}

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}

	return nil
}

func (k *KafkaClient) ConsumeRecords(ctx context.Context, handler func(Record) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			msg, err := k.reader.ReadMessage(ctx)
			if err != nil {
				return fmt.Errorf("failed to read record: %w", err)
			}

			var record Record
			if err := json.Unmarshal(msg.Value, &record); err != nil {
				return fmt.Errorf("failed to unmarshal record: %w", err)
			}

			if err := handler(record); err != nil {
				return fmt.Errorf("failed to handle record: %w", err)
			}
		}
	}
}

func (k *KafkaClient) Close() error {
	if err := k.writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	if err := k.reader.Close(); err != nil {
		return fmt.Errorf("failed to close reader: %w", err)
	}
	return nil
}

// AuditPublisher forwards events to the live hub synchronously and to Kafka
// through a buffered queue, so the engine's publish path never blocks on
// broker I/O.
type AuditPublisher struct {
	hub   engine.Publisher
	kafka *KafkaClient
	queue chan Record
}

func NewAuditPublisher(hub engine.Publisher, client *KafkaClient) *AuditPublisher {
	p := &AuditPublisher{
		hub:   hub,
		kafka: client,
		queue: make(chan Record, 256),
	}
	go p.drain()
	return p
}

func (p *AuditPublisher) Publish(spaceID uuid.UUID, event engine.Event) {
	p.hub.Publish(spaceID, event)

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		log.Printf("Failed to marshal audit payload: %v", err)
		return
	}
	record := Record{
		ID:        uuid.New(),
		SpaceID:   spaceID,
		Kind:      event.Kind,
		Seq:       event.Seq,
		Timestamp: time.Now(),
		Payload:   payload,
	}
	select {
	case p.queue <- record:
	default:
		log.Printf("Warning: audit queue full, dropping record for space %s", spaceID)
	}
}

func (p *AuditPublisher) drain() {
	for record := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := p.kafka.WriteRecord(ctx, record); err != nil {
			log.Printf("Warning: failed to write audit record: %v", err)
		}
		cancel()
	}
}
