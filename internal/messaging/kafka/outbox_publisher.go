package kafka

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/basit-devBE/commerce-core/internal/domain"
)

// OutboxTopicPublisher публикует outbox-сообщения в Kafka. События склада
// (stock.*) уходят в отдельный topic, остальные — в topic заказов.
type OutboxTopicPublisher struct {
	producer   *Producer
	orderTopic string
	stockTopic string
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer, orderTopic, stockTopic string) domain.OutboxPublisher {
	if orderTopic == "" {
		orderTopic = TopicOrderEvents
	}
	if stockTopic == "" {
		stockTopic = TopicStockEvents
	}
	return &OutboxTopicPublisher{
		producer:   producer,
		orderTopic: orderTopic,
		stockTopic: stockTopic,
	}
}

func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	envelope := struct {
		ID            string          `json:"id"`
		AggregateType string          `json:"aggregate_type"`
		AggregateID   string          `json:"aggregate_id"`
		EventType     string          `json:"event_type"`
		Payload       json.RawMessage `json:"payload"`
		PublishedAt   time.Time       `json:"published_at"`
	}{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       json.RawMessage(event.Payload),
		PublishedAt:   time.Now().UTC(),
	}

	topic := p.orderTopic
	if strings.HasPrefix(event.EventType, "stock.") {
		topic = p.stockTopic
	}

	return p.producer.PublishEvent(topic, key, envelope)
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
