package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики ядра заказов и склада.
type OrderMetrics struct {
	// Счётчики операций
	ordersCreated     prometheus.Counter
	createRejections  *prometheus.CounterVec
	statusTransitions *prometheus.CounterVec
	transitionDenied  prometheus.Counter

	// Складские счётчики (в единицах товара)
	unitsReserved  prometheus.Counter
	unitsReleased  prometheus.Counter
	reserveRolled  prometheus.Counter
	outOfStockHits prometheus.Counter

	// Гистограмма времени создания заказа
	createDuration prometheus.Histogram
}

// NewOrderMetrics создаёт новый экземпляр метрик в default registry.
func NewOrderMetrics() *OrderMetrics {
	return newOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "commerce_orders_created_total",
			Help: "Total number of orders created successfully",
		}),
		createRejections: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "commerce_order_create_rejections_total",
			Help: "Total number of rejected order creation requests grouped by reason",
		}, []string{"reason"}),
		statusTransitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "commerce_order_status_transitions_total",
			Help: "Total number of applied order status transitions grouped by target status",
		}, []string{"status"}),
		transitionDenied: registerCounter(registerer, prometheus.CounterOpts{
			Name: "commerce_order_transitions_denied_total",
			Help: "Total number of status transitions rejected by lifecycle rules",
		}),
		unitsReserved: registerCounter(registerer, prometheus.CounterOpts{
			Name: "commerce_stock_units_reserved_total",
			Help: "Total number of stock units reserved for orders",
		}),
		unitsReleased: registerCounter(registerer, prometheus.CounterOpts{
			Name: "commerce_stock_units_released_total",
			Help: "Total number of stock units released back to inventory",
		}),
		reserveRolled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "commerce_stock_reservations_rolled_back_total",
			Help: "Total number of reservations rolled back after a failed order creation",
		}),
		outOfStockHits: registerCounter(registerer, prometheus.CounterOpts{
			Name: "commerce_stock_out_of_stock_total",
			Help: "Total number of reservations rejected for insufficient stock",
		}),
		createDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "commerce_order_create_duration_seconds",
			Help:    "Duration of the order creation transaction in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderCreated увеличивает счётчик успешно созданных заказов.
func (m *OrderMetrics) RecordOrderCreated() {
	m.ordersCreated.Inc()
}

// RecordCreateRejected увеличивает счётчик отклонённых запросов по причине.
func (m *OrderMetrics) RecordCreateRejected(reason string) {
	m.createRejections.WithLabelValues(reason).Inc()
}

// RecordStatusTransition увеличивает счётчик применённых переходов статуса.
func (m *OrderMetrics) RecordStatusTransition(status string) {
	m.statusTransitions.WithLabelValues(status).Inc()
}

// RecordTransitionDenied увеличивает счётчик отклонённых переходов.
func (m *OrderMetrics) RecordTransitionDenied() {
	m.transitionDenied.Inc()
}

// RecordUnitsReserved учитывает зарезервированные единицы товара.
func (m *OrderMetrics) RecordUnitsReserved(qty int32) {
	m.unitsReserved.Add(float64(qty))
}

// RecordUnitsReleased учитывает возвращённые единицы товара.
func (m *OrderMetrics) RecordUnitsReleased(qty int32) {
	m.unitsReleased.Add(float64(qty))
}

// RecordReservationRollback увеличивает счётчик откатов резервов.
func (m *OrderMetrics) RecordReservationRollback() {
	m.reserveRolled.Inc()
}

// RecordOutOfStock увеличивает счётчик отказов из-за нехватки остатка.
func (m *OrderMetrics) RecordOutOfStock() {
	m.outOfStockHits.Inc()
}

// RecordCreateDuration записывает время транзакции создания заказа.
func (m *OrderMetrics) RecordCreateDuration(duration time.Duration) {
	m.createDuration.Observe(duration.Seconds())
}
