package domain

import "errors"

var (
	// Ошибка отсутствующего идентификатора покупателя.
	ErrUserRequired = errors.New("user_id is required")
	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrEmptyOrder = errors.New("order must contain at least one item")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("amount_minor must be non-negative")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrQtyInvalid = errors.New("item qty must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка несоответствия суммы позиции qty * price.
	ErrLineTotalMismatch = errors.New("line total does not match qty * price")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order amount does not match items sum")
	// Ошибка отсутствующего идентификатора товара.
	ErrProductIDRequired = errors.New("product_id is required")
	// Ошибка отрицательного остатка на складе.
	ErrQuantityNegative = errors.New("inventory quantity must be non-negative")
	// ErrStatusUnknown возвращается для статуса вне известного множества.
	ErrStatusUnknown = errors.New("unknown order status")

	// ErrUserNotFound возвращается, если покупатель не найден в справочнике.
	ErrUserNotFound = errors.New("user not found")
	// ErrProductNotFound возвращается, если товар отсутствует в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrInventoryNotFound возвращается, если для товара нет складской записи.
	ErrInventoryNotFound = errors.New("inventory record not found")
	// ErrInventoryExists возвращается при повторном заведении остатка для товара.
	ErrInventoryExists = errors.New("inventory record already exists")

	// ErrProductUnavailable — товар снят с продажи (флаг доступности каталога).
	ErrProductUnavailable = errors.New("product is not available")
	// ErrInsufficientStock — на складе меньше, чем запрошено.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrOutOfStock — позиция заказа не может быть зарезервирована;
	// бизнес-ошибка создания заказа, объединяющая отсутствие складской
	// записи и нехватку остатка.
	ErrOutOfStock = errors.New("product is out of stock")

	// ErrInvalidTransition — запрошенный переход нарушает правила жизненного цикла.
	ErrInvalidTransition = errors.New("invalid order status transition")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}
