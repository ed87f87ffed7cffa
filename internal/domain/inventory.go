package domain

import "time"

// InventoryRecord хранит остаток товара на складе. На каждый товар ровно одна
// запись; поле Quantity никогда не уходит ниже нуля.
type InventoryRecord struct {
	ProductID string
	Quantity  int32
	Location  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate проверяет, корректно ли заполнены ключевые поля записи.
func (r *InventoryRecord) Validate() []error {
	var errs []error

	if r.ProductID == "" {
		errs = append(errs, ErrProductIDRequired)
	}
	if r.Quantity < 0 {
		errs = append(errs, ErrQuantityNegative)
	}

	return errs
}

// StockRelease фиксирует возврат резерва по конкретной позиции заказа.
// Запись делает повторный release по той же паре (order, product) no-op,
// поэтому отмену можно безопасно повторять после частичного сбоя.
type StockRelease struct {
	OrderID   string
	ProductID string
	Qty       int32
	CreatedAt time.Time
}
