package domain

import "time"

// Catalog описывает взаимодействие с внешним каталогом товаров.
type Catalog interface {
	// GetProduct возвращает товар или ErrProductNotFound.
	GetProduct(productID string) (Product, error)
}

// UserDirectory описывает взаимодействие со справочником пользователей.
type UserDirectory interface {
	// GetUser возвращает покупателя или ErrUserNotFound.
	GetUser(userID string) (User, error)
}

// StockLedger описывает складские операции, доступные ядру заказов.
// Единственный канал изменения остатков после заведения записи.
type StockLedger interface {
	// Reserve удерживает qty единиц товара и возвращает новый остаток.
	Reserve(productID string, qty int32) (int32, error)
	// ReleaseOrder возвращает резервы всех позиций заказа (компенсация
	// при отмене); повторные вызовы по тому же заказу — no-op.
	ReleaseOrder(orderID string, items []OrderItem) error
	// ReclaimOrder забирает обратно возврат, сделанный ReleaseOrder в рамках
	// отменённой попытки отмены: заказ остался действующим, его резерв
	// должен снова удерживаться. Без проведённого возврата — no-op.
	ReclaimOrder(orderID string, items []OrderItem) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID string) ([]TimelineEvent, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
