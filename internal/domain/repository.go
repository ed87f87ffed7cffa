package domain

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create атомарно сохраняет новый заказ вместе с позициями.
	// Возвращает ошибку, если запись с таким ID уже существует.
	Create(order Order) error
	// Get возвращает заказ с позициями или ErrOrderNotFound, если его нет.
	Get(id string) (Order, error)
	// ListByUser возвращает заказы покупателя с опциональным ограничением на количество.
	ListByUser(userID string, limit int) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(order Order) error
}

// OrderCreatorWithEvents — опциональное расширение OrderRepository:
// хранилище фиксирует заказ и его стартовые outbox-события в одной
// транзакции, закрывая окно между записью заказа и постановкой события.
type OrderCreatorWithEvents interface {
	CreateWithEvents(order Order, events []OutboxMessage) error
}

// InventoryRepository описывает требования к хранилищу складских остатков.
// Это единственная точка изменения количества товара.
type InventoryRepository interface {
	// Get возвращает складскую запись или ErrInventoryNotFound.
	Get(productID string) (InventoryRecord, error)
	// Put заводит складскую запись; ErrInventoryExists при повторе.
	Put(record InventoryRecord) error
	// Reserve атомарно уменьшает остаток на qty и возвращает новый остаток.
	// Декремент условный: при нехватке остатка возвращается
	// ErrInsufficientStock и запись не меняется; при отсутствии записи —
	// ErrInventoryNotFound. Конкурентные вызовы по одному товару никогда
	// не уводят остаток ниже нуля.
	Reserve(productID string, qty int32) (int32, error)
	// Release возвращает qty на остаток. Операция идемпотентна по паре
	// (orderID, productID): повторный вызов ничего не меняет. При
	// отсутствии складской записи возвращается ErrInventoryNotFound.
	Release(orderID, productID string, qty int32) error
	// RevokeRelease отменяет проведённый Release: удаляет запись возврата
	// и снова снимает qty с остатка условным декрементом. Без записи
	// возврата — no-op; при нехватке остатка возвращается
	// ErrInsufficientStock и состояние не меняется.
	RevokeRelease(orderID, productID string, qty int32) error
}
