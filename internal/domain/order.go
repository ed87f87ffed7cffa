package domain

import "time"

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, резерв на складе уже удержан.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing — заказ взят в обработку.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped — заказ передан в доставку.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered — заказ доставлен покупателю. Терминальный статус;
	// допускается только повторный идемпотентный переход в delivered.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCanceled — заказ отменён, резерв возвращён на склад.
	// Полностью терминальный статус, исходящих переходов нет.
	OrderStatusCanceled OrderStatus = "canceled"
)

// Known сообщает, относится ли статус к закрытому множеству статусов заказа.
func (s OrderStatus) Known() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCanceled:
		return true
	default:
		return false
	}
}

// Terminal сообщает, является ли статус терминальным.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCanceled
}

// CanTransitionTo проверяет допустимость перехода из текущего статуса в target.
// Правила: из canceled переходов нет; из delivered разрешён только no-op в
// delivered; из нетерминальных статусов разрешён переход в любой известный статус.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	if !s.Known() || !target.Known() {
		return false
	}
	switch s {
	case OrderStatusCanceled:
		return false
	case OrderStatusDelivered:
		return target == OrderStatusDelivered
	default:
		return true
	}
}

// OrderItem представляет одну позицию заказа. Цена фиксируется в момент
// создания заказа и не зависит от последующих изменений каталога.
type OrderItem struct {
	// ID позиции нужен для однозначной идентификации и аудита.
	ID string
	// ProductID — идентификатор товара в каталоге.
	ProductID string
	// Qty — количество единиц товара.
	Qty int32
	// PriceMinor — цена за единицу на момент создания заказа, в минимальных
	// денежных единицах.
	PriceMinor int64
	// LineTotalMinor — Qty * PriceMinor, сумма позиции.
	LineTotalMinor int64
	// CreatedAt фиксирует момент добавления позиции в заказ.
	CreatedAt time.Time
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID          string
	UserID      string
	Status      OrderStatus
	AmountMinor int64
	Items       []OrderItem
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.UserID == "" {
		errs = append(errs, ErrUserRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrEmptyOrder)
	}
	if o.AmountMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}
	if !o.Status.Known() {
		errs = append(errs, ErrStatusUnknown)
	}

	// Сверяем сумму заказа с суммой позиций: qty * price.
	var calc int64
	for _, item := range o.Items {
		if item.Qty <= 0 {
			errs = append(errs, ErrQtyInvalid)
		}
		if item.PriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		if item.LineTotalMinor != int64(item.Qty)*item.PriceMinor {
			errs = append(errs, ErrLineTotalMismatch)
		}
		calc += item.LineTotalMinor
	}
	if calc != o.AmountMinor {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}
