package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/basit-devBE/commerce-core/internal/domain"
	healthcheck "github.com/basit-devBE/commerce-core/internal/health"
	"github.com/basit-devBE/commerce-core/internal/messaging/kafka"
	"github.com/basit-devBE/commerce-core/internal/service/inventory"
	"github.com/basit-devBE/commerce-core/internal/service/orders"
	"github.com/basit-devBE/commerce-core/internal/service/outbox"
	"github.com/basit-devBE/commerce-core/internal/storage/memory"
	"github.com/basit-devBE/commerce-core/internal/storage/postgres"
	"github.com/basit-devBE/commerce-core/internal/version"
)

// Config описывает настройки запуска приложения.
type Config struct {
	MetricsAddr string
	// PostgresDSN пустой — работаем на in-memory хранилищах.
	PostgresDSN string
	// KafkaBrokers пустой — outbox worker не стартует.
	KafkaBrokers       string
	OutboxPollInterval time.Duration
	SeedDemoData       bool
}

// DefaultConfig возвращает базовую конфигурацию для локальной разработки.
func DefaultConfig() Config {
	return Config{
		MetricsAddr:        ":9090",
		OutboxPollInterval: time.Second,
		SeedDemoData:       true,
	}
}

// App держит собранный граф зависимостей сервиса заказов.
type App struct {
	Orders   *orders.Service
	Ledger   *inventory.Ledger
	Catalog  *memory.Catalog
	Users    *memory.UserDirectory
	Outbox   domain.OutboxRepository
	Timeline domain.TimelineRepository

	cfg      Config
	logger   *log.Entry
	health   *healthcheck.Handler
	store    *postgres.Store
	producer *kafka.Producer
	worker   *outbox.Worker
}

// New собирает зависимости согласно конфигурации. Закрытие внешних
// соединений выполняет Run при остановке; если Run не вызывался,
// вызовите Close самостоятельно.
func New(ctx context.Context, cfg Config) (*App, error) {
	logger := log.WithField("component", "app")

	a := &App{
		cfg:    cfg,
		logger: logger,
		health: healthcheck.NewHandler(version.GetVersion()),
	}

	var (
		orderRepo     domain.OrderRepository
		inventoryRepo domain.InventoryRepository
	)

	if dsn := strings.TrimSpace(cfg.PostgresDSN); dsn != "" {
		store, err := postgres.Open(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		a.store = store

		orderRepo = postgres.NewOrderRepository(store)
		inventoryRepo = postgres.NewInventoryRepository(store)
		a.Outbox = postgres.NewOutboxRepository(store)
		a.Timeline = postgres.NewTimelineRepository(store)

		a.health.RegisterChecker("postgres", healthcheck.NewSimpleChecker("postgres", func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return store.Ping(pingCtx)
		}))
		logger.Info("using postgres storage")
	} else {
		orderRepo = memory.NewOrderRepository()
		inventoryRepo = memory.NewInventoryRepository()
		a.Outbox = memory.NewOutboxRepository()
		a.Timeline = memory.NewTimelineRepository()
		logger.Info("using in-memory storage")
	}

	// Каталог и справочник покупателей — внешние коллабораторы;
	// здесь их заменяют in-memory реализации с демо-данными.
	a.Catalog = memory.NewCatalog()
	a.Users = memory.NewUserDirectory()

	a.Ledger = inventory.NewLedger(inventoryRepo, log.WithField("component", "inventory-ledger"))

	if cfg.SeedDemoData {
		seedDemoData(a.Catalog, a.Users, a.Ledger, logger)
	}

	a.Orders = orders.NewService(
		orderRepo, a.Ledger, a.Catalog, a.Users, a.Outbox, a.Timeline,
		log.WithField("component", "orders"),
	)

	if brokersRaw := strings.TrimSpace(cfg.KafkaBrokers); brokersRaw != "" {
		brokers := strings.Split(brokersRaw, ",")
		producer, err := kafka.NewProducer(brokers)
		if err != nil {
			logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		} else {
			a.producer = producer
			logger.WithField("brokers", brokers).Info("kafka producer initialized")
		}
	}

	if a.producer != nil {
		publisher := kafka.NewOutboxPublisher(a.producer, kafka.TopicOrderEvents, kafka.TopicStockEvents)
		dlqPublisher := kafka.NewOutboxPublisher(a.producer, kafka.TopicDeadLetterQueue, kafka.TopicDeadLetterQueue)
		a.worker = outbox.NewWorker(
			a.Outbox,
			publisher,
			outbox.WithLogger(log.WithField("component", "outbox-worker")),
			outbox.WithDLQPublisher(dlqPublisher),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
		)
	} else {
		logger.Info("kafka is not configured, outbox worker is idle")
	}

	return a, nil
}

// Run запускает фоновые процессы и блокируется до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	a, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}

// Run блокируется до отмены ctx, после чего закрывает внешние соединения.
func (a *App) Run(ctx context.Context) error {
	if a.worker != nil {
		go a.worker.Run(ctx)
	}

	metricsSrv := startMetricsServer(a.cfg.MetricsAddr, a.logger, a.health)

	<-ctx.Done()
	a.logger.Info("получен сигнал остановки")

	shutdownHTTP(metricsSrv, a.logger)
	a.Close()

	return ctx.Err()
}

// Close закрывает продюсер Kafka и подключение к Postgres.
func (a *App) Close() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.WithError(err).Warn("failed to close kafka producer")
		} else {
			a.logger.Info("kafka producer closed")
		}
		a.producer = nil
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.WithError(err).Warn("failed to close postgres store")
		}
		a.store = nil
	}
}

// startMetricsServer поднимает HTTP-поверхность метрик и health-проб.
func startMetricsServer(addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}
