package orders

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/basit-devBE/commerce-core/internal/domain"
	"github.com/basit-devBE/commerce-core/internal/metrics"
)

// ItemRequest — позиция запроса на создание заказа.
type ItemRequest struct {
	ProductID string
	Qty       int32
}

// Service реализует транзакцию создания заказа и переводы статусов.
// Создание — всё или ничего: любой сбой после первого резерва откатывает
// все резервы, взятые в рамках запроса, до возврата ошибки.
type Service struct {
	orders   domain.OrderRepository
	ledger   domain.StockLedger
	catalog  domain.Catalog
	users    domain.UserDirectory
	outbox   domain.OutboxRepository
	timeline domain.TimelineRepository
	logger   *log.Entry
	metrics  *metrics.OrderMetrics
}

// NewService создаёт рабочий экземпляр сервиса заказов.
func NewService(
	orders domain.OrderRepository,
	ledger domain.StockLedger,
	catalog domain.Catalog,
	users domain.UserDirectory,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "orders")
	}
	return &Service{
		orders:   orders,
		ledger:   ledger,
		catalog:  catalog,
		users:    users,
		outbox:   outbox,
		timeline: timeline,
		logger:   logger,
		metrics:  metrics.NewOrderMetrics(),
	}
}

// NewServiceWithoutMetrics создаёт сервис без метрик (для тестов).
func NewServiceWithoutMetrics(
	orders domain.OrderRepository,
	ledger domain.StockLedger,
	catalog domain.Catalog,
	users domain.UserDirectory,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "orders")
	}
	return &Service{
		orders:   orders,
		ledger:   ledger,
		catalog:  catalog,
		users:    users,
		outbox:   outbox,
		timeline: timeline,
		logger:   logger,
	}
}

// CreateOrder проводит транзакцию создания заказа: проверяет покупателя и
// каждую позицию, резервирует склад построчно, фиксирует цены на момент
// заказа и атомарно сохраняет заказ со статусом pending. Любой сбой после
// первого резерва возвращает все уже взятые резервы до выхода.
func (s *Service) CreateOrder(userID string, items []ItemRequest) (domain.Order, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordCreateDuration(time.Since(start))
		}
	}()

	if userID == "" {
		return domain.Order{}, s.reject(domain.ErrUserRequired, "user_required")
	}
	if len(items) == 0 {
		return domain.Order{}, s.reject(domain.ErrEmptyOrder, "empty_order")
	}

	user, err := s.users.GetUser(userID)
	if err != nil {
		return domain.Order{}, s.reject(fmt.Errorf("user %s: %w", userID, err), "user_not_found")
	}

	// ID заказа выбирается до резервов: по нему ключуются возвраты при откате.
	orderID := uuid.NewString()
	now := time.Now().UTC()

	var (
		reserved    []domain.OrderItem
		totalMinor  int64
		orderedList []domain.OrderItem
	)

	rollback := func(cause error, reason string) (domain.Order, error) {
		if len(reserved) > 0 {
			if relErr := s.ledger.ReleaseOrder(orderID, reserved); relErr != nil {
				s.logger.WithError(relErr).WithField("order_id", orderID).Error("reservation rollback failed")
			}
			if s.metrics != nil {
				s.metrics.RecordReservationRollback()
			}
		}
		return domain.Order{}, s.reject(cause, reason)
	}

	for _, req := range items {
		if req.Qty <= 0 {
			return rollback(fmt.Errorf("%w: product %s qty %d", domain.ErrQtyInvalid, req.ProductID, req.Qty), "qty_invalid")
		}

		product, err := s.catalog.GetProduct(req.ProductID)
		if err != nil {
			return rollback(fmt.Errorf("product %s: %w", req.ProductID, err), "product_not_found")
		}
		if !product.Available {
			return rollback(fmt.Errorf("%w: product %s", domain.ErrProductUnavailable, req.ProductID), "product_unavailable")
		}

		if _, err := s.ledger.Reserve(req.ProductID, req.Qty); err != nil {
			return rollback(fmt.Errorf("%w: product %s: %v", domain.ErrOutOfStock, req.ProductID, err), "out_of_stock")
		}

		item := domain.OrderItem{
			ID:             uuid.NewString(),
			ProductID:      req.ProductID,
			Qty:            req.Qty,
			PriceMinor:     product.PriceMinor,
			LineTotalMinor: product.PriceMinor * int64(req.Qty),
			CreatedAt:      now,
		}
		reserved = append(reserved, item)
		orderedList = append(orderedList, item)
		totalMinor += item.LineTotalMinor
	}

	order := domain.Order{
		ID:          orderID,
		UserID:      user.ID,
		Status:      domain.OrderStatusPending,
		AmountMinor: totalMinor,
		Items:       orderedList,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	createdPayload := map[string]interface{}{
		"user_id":      order.UserID,
		"amount_minor": order.AmountMinor,
		"items_count":  len(order.Items),
		"ts":           now.Format(time.RFC3339Nano),
	}
	reservedPayload := map[string]interface{}{
		"items": itemsPayload(order.Items),
		"ts":    now.Format(time.RFC3339Nano),
	}

	events := make([]domain.OutboxMessage, 0, 2)
	if msg, ok := s.buildEvent(&order, domain.EventOrderCreated, createdPayload); ok {
		events = append(events, msg)
	}
	if msg, ok := s.buildEvent(&order, domain.EventStockReserved, reservedPayload); ok {
		events = append(events, msg)
	}

	// Если хранилище умеет фиксировать заказ и стартовые события одной
	// транзакцией, падение процесса между записью заказа и постановкой
	// события становится невозможным. Иначе — запись заказа, затем очередь.
	if creator, ok := s.orders.(domain.OrderCreatorWithEvents); ok && s.outbox != nil {
		if err := creator.CreateWithEvents(order, events); err != nil {
			// Резервы уже взяты, а заказа не будет — компенсируем.
			return rollback(fmt.Errorf("persist order %s: %w", orderID, err), "storage")
		}
	} else {
		if err := s.orders.Create(order); err != nil {
			return rollback(fmt.Errorf("persist order %s: %w", orderID, err), "storage")
		}
		for _, msg := range events {
			s.enqueueEvent(order.ID, msg)
		}
	}

	if s.metrics != nil {
		s.metrics.RecordOrderCreated()
	}
	s.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"user_id":      order.UserID,
		"amount_minor": order.AmountMinor,
		"items":        len(order.Items),
	}).Info("order created")

	s.recordTimeline(&order, domain.EventOrderCreated, createdPayload)
	s.recordTimeline(&order, domain.EventStockReserved, reservedPayload)

	return order, nil
}

// GetOrder возвращает заказ с позициями.
func (s *Service) GetOrder(orderID string) (domain.Order, error) {
	return s.orders.Get(orderID)
}

// ListOrders возвращает заказы покупателя, свежие первыми.
func (s *Service) ListOrders(userID string, limit int) ([]domain.Order, error) {
	return s.orders.ListByUser(userID, limit)
}

// Timeline возвращает журнал событий заказа.
func (s *Service) Timeline(orderID string) ([]domain.TimelineEvent, error) {
	if s.timeline == nil {
		return nil, nil
	}
	return s.timeline.List(orderID)
}

// TransitionStatus переводит заказ в новый статус по правилам жизненного
// цикла. Отмена из нетерминального статуса возвращает резервы всех позиций
// до сохранения нового статуса.
func (s *Service) TransitionStatus(orderID string, newStatus domain.OrderStatus) (domain.Order, error) {
	return s.transition(orderID, newStatus, "")
}

// CancelOrder — отмена заказа с причиной для журнала событий.
func (s *Service) CancelOrder(orderID, reason string) (domain.Order, error) {
	return s.transition(orderID, domain.OrderStatusCanceled, reason)
}

func (s *Service) transition(orderID string, newStatus domain.OrderStatus, reason string) (domain.Order, error) {
	if !newStatus.Known() {
		return domain.Order{}, fmt.Errorf("%w: %q", domain.ErrStatusUnknown, newStatus)
	}

	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order %s: %w", orderID, err)
	}

	const maxRetries = 3
	const baseDelay = 10 * time.Millisecond

	// Возврат резервов идёт до сохранения статуса. Если после конфликта
	// версий выяснилось, что заказ ушёл в другой статус и отмена отвергнута,
	// уже проведённый возврат забирается обратно.
	released := false

	for attempt := 0; attempt < maxRetries; attempt++ {
		// Переход проверяется на каждой итерации: после перезагрузки
		// по конфликту версия может быть уже в другом статусе.
		if !order.Status.CanTransitionTo(newStatus) {
			if released && order.Status != domain.OrderStatusCanceled {
				s.reclaimAfterRejectedCancel(&order)
			}
			if s.metrics != nil {
				s.metrics.RecordTransitionDenied()
			}
			return domain.Order{}, fmt.Errorf("%w: %s -> %s (order %s)",
				domain.ErrInvalidTransition, order.Status, newStatus, order.ID)
		}
		if order.Status == newStatus {
			// Разрешённый самопереход (delivered -> delivered) — no-op.
			return order, nil
		}

		if newStatus == domain.OrderStatusCanceled {
			// Идемпотентность по заказу гарантирует, что повтор после
			// конфликта ничего не добавит.
			if err := s.ledger.ReleaseOrder(order.ID, order.Items); err != nil {
				return domain.Order{}, fmt.Errorf("release stock for order %s: %w", order.ID, err)
			}
			released = true
		}

		previous := order.Status
		order.Status = newStatus
		order.UpdatedAt = time.Now().UTC()
		prevVersion := order.Version

		if err := s.orders.Save(order); err != nil {
			if domain.IsVersionConflict(err) && attempt < maxRetries-1 {
				s.logger.WithFields(log.Fields{
					"order_id": order.ID,
					"attempt":  attempt + 1,
					"version":  order.Version,
				}).Warn("version conflict detected, retrying")

				fresh, loadErr := s.orders.Get(order.ID)
				if loadErr != nil {
					return domain.Order{}, fmt.Errorf("reload order %s: %w", order.ID, loadErr)
				}
				order = fresh

				time.Sleep(baseDelay * time.Duration(1<<uint(attempt)))
				continue
			}

			order.Status = previous
			s.logger.WithError(err).WithFields(log.Fields{
				"order_id": order.ID,
				"attempt":  attempt + 1,
			}).Error("failed to persist status")

			// Исчерпанные конфликты при отмене: если заказ в итоге не
			// отменён, возврат забирается обратно. Обычные ошибки
			// хранилища оставляют возврат на месте — повтор отмены
			// идемпотентен и доведёт переход до конца.
			if released && domain.IsVersionConflict(err) {
				fresh, loadErr := s.orders.Get(order.ID)
				switch {
				case loadErr != nil:
					s.logger.WithError(loadErr).WithField("order_id", order.ID).
						Error("cannot check order after failed cancel, released stock left as is")
				case fresh.Status != domain.OrderStatusCanceled:
					s.reclaimAfterRejectedCancel(&fresh)
				}
			}
			return domain.Order{}, err
		}

		order.Version = prevVersion + 1
		if s.metrics != nil {
			s.metrics.RecordStatusTransition(string(newStatus))
		}
		s.logger.WithFields(log.Fields{
			"order_id": order.ID,
			"from":     previous,
			"to":       newStatus,
		}).Info("order status changed")

		s.emitTransitionEvents(&order, previous, reason)
		return order, nil
	}

	return domain.Order{}, fmt.Errorf("order %s: %w", orderID, domain.ErrOrderVersionConflict)
}

func (s *Service) emitTransitionEvents(order *domain.Order, previous domain.OrderStatus, reason string) {
	payload := map[string]interface{}{
		"from":       string(previous),
		"status":     string(order.Status),
		"updated_at": order.UpdatedAt.Format(time.RFC3339Nano),
		"ts":         order.UpdatedAt.Format(time.RFC3339Nano),
	}
	if reason != "" {
		payload["reason"] = reason
	}

	eventType := domain.EventOrderStatusChanged
	if order.Status == domain.OrderStatusCanceled {
		eventType = domain.EventOrderCanceled
	}
	s.emitEvent(order, eventType, payload)

	if order.Status == domain.OrderStatusCanceled {
		s.emitEvent(order, domain.EventStockReleased, map[string]interface{}{
			"items": itemsPayload(order.Items),
			"ts":    order.UpdatedAt.Format(time.RFC3339Nano),
		})
	}
}

func (s *Service) emitEvent(order *domain.Order, eventType string, payload map[string]interface{}) {
	msg, ok := s.buildEvent(order, eventType, payload)
	if !ok {
		return
	}
	s.enqueueEvent(order.ID, msg)
	s.recordTimeline(order, eventType, payload)
}

// buildEvent дополняет payload идентификатором заказа и собирает сообщение
// для outbox. Ошибка сериализации не прерывает бизнес-операцию.
func (s *Service) buildEvent(order *domain.Order, eventType string, payload map[string]interface{}) (domain.OutboxMessage, bool) {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload["order_id"] = order.ID
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("marshal event failed")
		return domain.OutboxMessage{}, false
	}
	return domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       data,
	}, true
}

func (s *Service) enqueueEvent(orderID string, msg domain.OutboxMessage) {
	if s.outbox == nil {
		return
	}
	if _, err := s.outbox.Enqueue(msg); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"event":    msg.EventType,
		}).Error("enqueue event failed")
	}
}

func (s *Service) recordTimeline(order *domain.Order, eventType string, payload map[string]interface{}) {
	if s.timeline == nil {
		return
	}
	var reason string
	if r, ok := payload["reason"].(string); ok {
		reason = r
	}
	occurred := time.Now().UTC()
	if ts, ok := payload["ts"].(string); ok {
		if parsed, parseErr := time.Parse(time.RFC3339Nano, ts); parseErr == nil {
			occurred = parsed
		}
	}
	event := domain.TimelineEvent{
		OrderID:  order.ID,
		Type:     eventType,
		Reason:   reason,
		Occurred: occurred,
	}
	if err := s.timeline.Append(event); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Warn("append timeline event failed")
	}
}

// reclaimAfterRejectedCancel снимает обратно возврат, проведённый в рамках
// отвергнутой отмены: заказ остался действующим, резерв должен удерживаться.
func (s *Service) reclaimAfterRejectedCancel(order *domain.Order) {
	if err := s.ledger.ReclaimOrder(order.ID, order.Items); err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).
			Error("reclaim of released stock failed after rejected cancel")
	}
}

func (s *Service) reject(err error, reason string) error {
	if s.metrics != nil {
		s.metrics.RecordCreateRejected(reason)
	}
	s.logger.WithError(err).WithField("reason", reason).Warn("order creation rejected")
	return err
}

func itemsPayload(items []domain.OrderItem) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		out = append(out, map[string]interface{}{
			"product_id": item.ProductID,
			"qty":        item.Qty,
		})
	}
	return out
}
