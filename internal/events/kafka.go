package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"musicstore-backend/internal/logger"
	"musicstore-backend/internal/metrics"

	"github.com/IBM/sarama"
)

// KafkaConfig holds the producer settings
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	Retries  int
	ClientID string
}

// KafkaPublisher writes events to one topic keyed by rental ID, so the events of a rental
// stay ordered within their partition
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	breaker  *metrics.CircuitBreaker
}

func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, NewSaramaConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	logger.Info("Kafka producer created", "brokers", cfg.Brokers, "topic", cfg.Topic, "retries", cfg.Retries)
	return NewKafkaPublisherWithProducer(producer, cfg.Topic), nil
}

// NewKafkaPublisherWithProducer wraps an existing producer
func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		topic:    topic,
		breaker:  metrics.NewCircuitBreaker("kafka-"+topic, 30*time.Second),
	}
}

// NewSaramaConfig returns an idempotent, all-replica-ack producer configuration
func NewSaramaConfig(cfg KafkaConfig) *sarama.Config {
	config := sarama.NewConfig()
	if cfg.ClientID != "" {
		config.ClientID = cfg.ClientID
	}
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = cfg.Retries
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Partitioner = sarama.NewHashPartitioner
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1
	return config
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize event %s: %w", event.Type, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.RentalID),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_id"), Value: []byte(event.ID)},
			{Key: []byte("event_type"), Value: []byte(event.Type)},
			{Key: []byte("content_type"), Value: []byte("application/json")},
		},
		Timestamp: event.OccurredAt,
	}

	logger.ExternalServiceCall("kafka", "SendMessage", "topic", p.topic, "type", event.Type, "rentalID", event.RentalID)
	var partition int32
	var offset int64
	err = p.breaker.Do(func() error {
		var sendErr error
		partition, offset, sendErr = p.producer.SendMessage(msg)
		return sendErr
	})
	logger.ExternalServiceResult("kafka", "SendMessage", err, "topic", p.topic, "partition", partition, "offset", offset)
	if err != nil {
		return fmt.Errorf("failed to publish %s for rental %s: %w", event.Type, event.RentalID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
