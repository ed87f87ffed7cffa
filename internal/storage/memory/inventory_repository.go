package memory

import (
	"math"
	"sync"
	"time"

	"github.com/basit-devBE/commerce-core/internal/domain"
)

// releaseKey идентифицирует возврат резерва по паре (заказ, товар).
type releaseKey struct {
	orderID   string
	productID string
}

// inventoryRepositoryInMemory — in-memory реализация InventoryRepository.
// Мьютекс сериализует read-check-write остатка, поэтому конкурентные
// резервы по одному товару не уводят остаток ниже нуля.
type inventoryRepositoryInMemory struct {
	mu       sync.RWMutex
	records  map[string]domain.InventoryRecord
	releases map[releaseKey]domain.StockRelease
}

// NewInventoryRepository возвращает in-memory склад для локальной разработки и тестов.
func NewInventoryRepository() domain.InventoryRepository {
	return &inventoryRepositoryInMemory{
		records:  make(map[string]domain.InventoryRecord),
		releases: make(map[releaseKey]domain.StockRelease),
	}
}

// Get возвращает складскую запись или ErrInventoryNotFound.
func (r *inventoryRepositoryInMemory) Get(productID string) (domain.InventoryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[productID]
	if !ok {
		return domain.InventoryRecord{}, domain.ErrInventoryNotFound
	}
	return record, nil
}

// Put заводит складскую запись для товара. Повторное заведение запрещено.
func (r *inventoryRepositoryInMemory) Put(record domain.InventoryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[record.ProductID]; exists {
		return domain.ErrInventoryExists
	}

	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	r.records[record.ProductID] = record
	return nil
}

// Reserve атомарно уменьшает остаток, если его хватает.
func (r *inventoryRepositoryInMemory) Reserve(productID string, qty int32) (int32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[productID]
	if !ok {
		return 0, domain.ErrInventoryNotFound
	}
	if record.Quantity < qty {
		return record.Quantity, domain.ErrInsufficientStock
	}

	record.Quantity -= qty
	record.UpdatedAt = time.Now().UTC()
	r.records[productID] = record
	return record.Quantity, nil
}

// Release возвращает qty на остаток; повторный вызов по той же паре
// (orderID, productID) — no-op.
func (r *inventoryRepositoryInMemory) Release(orderID, productID string, qty int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[productID]
	if !ok {
		return domain.ErrInventoryNotFound
	}

	key := releaseKey{orderID: orderID, productID: productID}
	if _, released := r.releases[key]; released {
		return nil
	}

	now := time.Now().UTC()
	r.releases[key] = domain.StockRelease{
		OrderID:   orderID,
		ProductID: productID,
		Qty:       qty,
		CreatedAt: now,
	}

	// Ограничиваем сверху максимально представимым значением.
	if int64(record.Quantity)+int64(qty) > math.MaxInt32 {
		record.Quantity = math.MaxInt32
	} else {
		record.Quantity += qty
	}
	record.UpdatedAt = now
	r.records[productID] = record
	return nil
}

// RevokeRelease отменяет проведённый возврат: запись возврата удаляется,
// количество снова снимается с остатка. Если возврата не было — no-op;
// если остатка уже не хватает, состояние не меняется.
func (r *inventoryRepositoryInMemory) RevokeRelease(orderID, productID string, qty int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := releaseKey{orderID: orderID, productID: productID}
	if _, released := r.releases[key]; !released {
		return nil
	}

	record, ok := r.records[productID]
	if !ok {
		return domain.ErrInventoryNotFound
	}
	if record.Quantity < qty {
		return domain.ErrInsufficientStock
	}

	delete(r.releases, key)
	record.Quantity -= qty
	record.UpdatedAt = time.Now().UTC()
	r.records[productID] = record
	return nil
}

var _ domain.InventoryRepository = (*inventoryRepositoryInMemory)(nil)
