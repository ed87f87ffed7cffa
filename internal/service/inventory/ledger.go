package inventory

import (
	"errors"
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/basit-devBE/commerce-core/internal/domain"
	"github.com/basit-devBE/commerce-core/internal/metrics"
)

// Ledger — единственная точка изменения складских остатков. Все декременты
// идут через условный Reserve, все инкременты — через идемпотентный
// ReleaseOrder, поэтому остаток не уходит ниже нуля и отмена заказа
// возвращает ровно зарезервированное количество.
type Ledger struct {
	inventory domain.InventoryRepository
	logger    *log.Entry
	metrics   *metrics.OrderMetrics
}

// NewLedger создаёт рабочий экземпляр леджера.
func NewLedger(inventory domain.InventoryRepository, logger *log.Entry) *Ledger {
	if logger == nil {
		logger = log.New().WithField("component", "inventory-ledger")
	}
	return &Ledger{
		inventory: inventory,
		logger:    logger,
		metrics:   metrics.NewOrderMetrics(),
	}
}

// NewLedgerWithoutMetrics создаёт леджер без метрик (для тестов).
func NewLedgerWithoutMetrics(inventory domain.InventoryRepository, logger *log.Entry) *Ledger {
	if logger == nil {
		logger = log.New().WithField("component", "inventory-ledger")
	}
	return &Ledger{
		inventory: inventory,
		logger:    logger,
	}
}

// Provision заводит складскую запись для товара. Повторное заведение
// отклоняется с ErrInventoryExists; дальнейшие изменения количества
// возможны только через Reserve/ReleaseOrder.
func (l *Ledger) Provision(productID string, qty int32, location string) (domain.InventoryRecord, error) {
	record := domain.InventoryRecord{
		ProductID: productID,
		Quantity:  qty,
		Location:  location,
		CreatedAt: time.Now().UTC(),
	}
	if errs := record.Validate(); len(errs) > 0 {
		return domain.InventoryRecord{}, errs[0]
	}

	if err := l.inventory.Put(record); err != nil {
		return domain.InventoryRecord{}, err
	}

	l.logger.WithFields(log.Fields{
		"product_id": productID,
		"quantity":   qty,
		"location":   location,
	}).Info("inventory provisioned")

	return record, nil
}

// Get возвращает складскую запись товара.
func (l *Ledger) Get(productID string) (domain.InventoryRecord, error) {
	return l.inventory.Get(productID)
}

// Reserve удерживает qty единиц товара и возвращает новый остаток.
func (l *Ledger) Reserve(productID string, qty int32) (int32, error) {
	if qty <= 0 {
		return 0, fmt.Errorf("%w: product %s", domain.ErrQtyInvalid, productID)
	}

	remaining, err := l.inventory.Reserve(productID, qty)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) && l.metrics != nil {
			l.metrics.RecordOutOfStock()
		}
		return remaining, err
	}

	if l.metrics != nil {
		l.metrics.RecordUnitsReserved(qty)
	}
	l.logger.WithFields(log.Fields{
		"product_id": productID,
		"qty":        qty,
		"remaining":  remaining,
	}).Debug("stock reserved")

	return remaining, nil
}

// ReleaseOrder возвращает резервы всех позиций заказа. Позиции одного товара
// суммируются до обращения к хранилищу: ключ идемпотентности — пара
// (заказ, товар), и запись возврата обязана нести полный зарезервированный
// объём, иначе заказ с дублями товара вернёт меньше, чем удержал. Отсутствие
// складской записи не прерывает операцию: такой возврат невосстановим,
// фиксируем расхождение в логе и продолжаем. Остальные ошибки собираются и
// возвращаются вызывающему — переход статуса при этом не должен считаться
// завершённым.
func (l *Ledger) ReleaseOrder(orderID string, items []domain.OrderItem) error {
	var errs []error

	for _, line := range totalsPerProduct(items) {
		err := l.inventory.Release(orderID, line.productID, line.qty)
		switch {
		case err == nil:
			if l.metrics != nil {
				l.metrics.RecordUnitsReleased(line.qty)
			}
			l.logger.WithFields(log.Fields{
				"order_id":   orderID,
				"product_id": line.productID,
				"qty":        line.qty,
			}).Debug("stock released")
		case errors.Is(err, domain.ErrInventoryNotFound):
			// Складская запись исчезла — возвращать некуда.
			l.logger.WithFields(log.Fields{
				"order_id":   orderID,
				"product_id": line.productID,
				"qty":        line.qty,
			}).Warn("inventory record missing during release, dropping restock")
		default:
			errs = append(errs, fmt.Errorf("release product %s: %w", line.productID, err))
		}
	}

	return errors.Join(errs...)
}

// ReclaimOrder забирает обратно возврат, проведённый ReleaseOrder в рамках
// попытки отмены, которую в итоге отверг optimistic lock: заказ остался
// действующим, и его резерв должен снова удерживаться. Сбой отдельного
// товара (запись исчезла, остаток уже разобран) — зафиксированное в логе
// расхождение, не блокирующее остальные позиции.
func (l *Ledger) ReclaimOrder(orderID string, items []domain.OrderItem) error {
	var errs []error

	for _, line := range totalsPerProduct(items) {
		err := l.inventory.RevokeRelease(orderID, line.productID, line.qty)
		switch {
		case err == nil:
			if l.metrics != nil {
				l.metrics.RecordUnitsReserved(line.qty)
			}
			l.logger.WithFields(log.Fields{
				"order_id":   orderID,
				"product_id": line.productID,
				"qty":        line.qty,
			}).Debug("released stock reclaimed")
		case errors.Is(err, domain.ErrInventoryNotFound), errors.Is(err, domain.ErrInsufficientStock):
			l.logger.WithError(err).WithFields(log.Fields{
				"order_id":   orderID,
				"product_id": line.productID,
				"qty":        line.qty,
			}).Error("cannot reclaim released stock, ledger inconsistent")
		default:
			errs = append(errs, fmt.Errorf("reclaim product %s: %w", line.productID, err))
		}
	}

	return errors.Join(errs...)
}

// productTotal — суммарный объём заказа по одному товару.
type productTotal struct {
	productID string
	qty       int32
}

// totalsPerProduct складывает позиции по товару, сохраняя порядок первого
// упоминания. Сумма ограничена сверху максимально представимым значением.
func totalsPerProduct(items []domain.OrderItem) []productTotal {
	index := make(map[string]int, len(items))
	totals := make([]productTotal, 0, len(items))

	for _, item := range items {
		i, seen := index[item.ProductID]
		if !seen {
			index[item.ProductID] = len(totals)
			totals = append(totals, productTotal{productID: item.ProductID, qty: item.Qty})
			continue
		}
		if int64(totals[i].qty)+int64(item.Qty) > math.MaxInt32 {
			totals[i].qty = math.MaxInt32
		} else {
			totals[i].qty += item.Qty
		}
	}

	return totals
}

var _ domain.StockLedger = (*Ledger)(nil)
