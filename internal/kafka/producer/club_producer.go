package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/dvigi/clubdvigi-api/pkg/logger"
	"github.com/google/uuid"
)

const (
	TopicCustomerUpserted   = "club.customer_upserted"
	TopicWarrantyRegistered = "club.warranty_registered"
)

// CustomerUpsertedEvent событие upsert-а клиента
type CustomerUpsertedEvent struct {
	EventID    string    `json:"event_id"`
	CustomerID string    `json:"customer_id"`
	Email      string    `json:"email"`
	AppliedTag bool      `json:"applied_tag"`
	Timestamp  time.Time `json:"timestamp"`
}

// WarrantyRegisteredEvent событие регистрации гарантий
type WarrantyRegisteredEvent struct {
	EventID       string    `json:"event_id"`
	CustomerID    string    `json:"customer_id"`
	MetaobjectIDs []string  `json:"metaobject_ids"`
	LinkedCount   int       `json:"linked_count"`
	Timestamp     time.Time `json:"timestamp"`
}

// ClubProducer интерфейс для отправки событий клуба
type ClubProducer interface {
	PublishCustomerUpserted(ctx context.Context, event CustomerUpsertedEvent) error
	PublishWarrantyRegistered(ctx context.Context, event WarrantyRegisteredEvent) error
	Close() error
}

type kafkaClubProducer struct {
	producer sarama.SyncProducer
	log      *logger.Logger
}

// NewKafkaClubProducer создает новый продюсер событий клуба
func NewKafkaClubProducer(producer sarama.SyncProducer, log *logger.Logger) ClubProducer {
	return &kafkaClubProducer{
		producer: producer,
		log:      log,
	}
}

// PublishCustomerUpserted публикует событие об upsert-е клиента
func (p *kafkaClubProducer) PublishCustomerUpserted(ctx context.Context, event CustomerUpsertedEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return p.publishEvent(TopicCustomerUpserted, event.CustomerID, event)
}

// PublishWarrantyRegistered публикует событие о регистрации гарантий
func (p *kafkaClubProducer) PublishWarrantyRegistered(ctx context.Context, event WarrantyRegisteredEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return p.publishEvent(TopicWarrantyRegistered, event.CustomerID, event)
}

// publishEvent публикует событие в Kafka с ключом по GID клиента
func (p *kafkaClubProducer) publishEvent(topic, key string, event any) error {
	messageValue, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal club event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(messageValue),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("event_type"),
				Value: []byte(topic),
			},
		},
		Timestamp: time.Now(),
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to publish club event: %w", err)
	}

	p.log.Info("Published club event to topic %s: partition=%d offset=%d",
		topic, partition, offset)

	return nil
}

// Close закрывает продюсер
func (p *kafkaClubProducer) Close() error {
	return p.producer.Close()
}
