package domain

// Типы событий, публикуемых через transactional outbox.
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderCanceled      = "order.canceled"
	EventStockReserved      = "stock.reserved"
	EventStockReleased      = "stock.released"
)
