package kafka

// Topics для Kafka.
const (
	TopicOrderEvents     = "commerce.order.events"
	TopicStockEvents     = "commerce.stock.events"
	TopicDeadLetterQueue = "commerce.dlq" // Dead Letter Queue для failed messages
)
