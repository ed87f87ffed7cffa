package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/basit-devBE/commerce-core/internal/domain"
)

func sampleOrder(userID string, createdAt time.Time) domain.Order {
	orderID := uuid.NewString()
	return domain.Order{
		ID:          orderID,
		UserID:      userID,
		Status:      domain.OrderStatusPending,
		AmountMinor: 6500,
		Items: []domain.OrderItem{
			{
				ID:             uuid.NewString(),
				ProductID:      "prod-1",
				Qty:            3,
				PriceMinor:     2000,
				LineTotalMinor: 6000,
				CreatedAt:      createdAt,
			},
			{
				ID:             uuid.NewString(),
				ProductID:      "prod-2",
				Qty:            1,
				PriceMinor:     500,
				LineTotalMinor: 500,
				CreatedAt:      createdAt.Add(time.Millisecond),
			},
		},
		Version:   0,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestOrderRepository_PostgresCreateGetListAndSave(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	order1 := sampleOrder("user-1", now.Add(-2*time.Minute))
	order2 := sampleOrder("user-1", now.Add(-time.Minute))

	if err := repo.Create(order1); err != nil {
		t.Fatalf("create order1: %v", err)
	}
	if err := repo.Create(order2); err != nil {
		t.Fatalf("create order2: %v", err)
	}

	got, err := repo.Get(order1.ID)
	if err != nil {
		t.Fatalf("get order1: %v", err)
	}
	if got.ID != order1.ID || got.UserID != order1.UserID || got.Status != order1.Status {
		t.Fatalf("unexpected order payload: %+v", got)
	}
	if got.AmountMinor != 6500 {
		t.Fatalf("amount = %d, want 6500", got.AmountMinor)
	}
	if len(got.Items) != 2 {
		t.Fatalf("unexpected items count: %d", len(got.Items))
	}
	if got.Items[0].ProductID != "prod-1" || got.Items[0].LineTotalMinor != 6000 {
		t.Fatalf("unexpected first item: %+v", got.Items[0])
	}

	listed, err := repo.ListByUser("user-1", 1)
	if err != nil {
		t.Fatalf("list by user with limit: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != order2.ID {
		t.Fatalf("unexpected list result with limit: %+v", listed)
	}

	all, err := repo.ListByUser("user-1", 0)
	if err != nil {
		t.Fatalf("list by user without limit: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(all))
	}

	got.Status = domain.OrderStatusProcessing
	got.UpdatedAt = now.Add(time.Minute)
	if err := repo.Save(got); err != nil {
		t.Fatalf("save order: %v", err)
	}

	updated, err := repo.Get(order1.ID)
	if err != nil {
		t.Fatalf("get updated order: %v", err)
	}
	if updated.Status != domain.OrderStatusProcessing {
		t.Fatalf("unexpected status after save: %s", updated.Status)
	}
	if updated.Version != got.Version+1 {
		t.Fatalf("unexpected version after save: got=%d want=%d", updated.Version, got.Version+1)
	}
}

func TestOrderRepository_PostgresCreateWithEvents(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	outbox := NewOutboxRepository(store)

	creator, ok := repo.(domain.OrderCreatorWithEvents)
	if !ok {
		t.Fatal("order repository must support CreateWithEvents")
	}

	now := time.Now().UTC().Round(time.Microsecond)
	order := sampleOrder("user-3", now)
	events := []domain.OutboxMessage{
		{
			AggregateType: "order",
			AggregateID:   order.ID,
			EventType:     domain.EventOrderCreated,
			Payload:       []byte(`{"order_id":"` + order.ID + `"}`),
		},
		{
			AggregateType: "order",
			AggregateID:   order.ID,
			EventType:     domain.EventStockReserved,
			Payload:       []byte(`{"order_id":"` + order.ID + `"}`),
		},
	}

	if err := creator.CreateWithEvents(order, events); err != nil {
		t.Fatalf("create with events: %v", err)
	}

	got, err := repo.Get(order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if len(got.Items) != 2 {
		t.Fatalf("unexpected items count: %d", len(got.Items))
	}

	pending, err := outbox.PullPending(10)
	if err != nil {
		t.Fatalf("pull pending: %v", err)
	}
	types := make(map[string]bool, len(pending))
	for _, msg := range pending {
		if msg.AggregateID == order.ID {
			types[msg.EventType] = true
		}
	}
	if !types[domain.EventOrderCreated] || !types[domain.EventStockReserved] {
		t.Fatalf("expected order.created and stock.reserved in outbox, got %v", types)
	}

	// Дубликат заказа откатывает транзакцию целиком: новых событий нет.
	if err := creator.CreateWithEvents(order, events); !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("expected ErrOrderVersionConflict, got %v", err)
	}
	again, err := outbox.PullPending(10)
	if err != nil {
		t.Fatalf("pull pending after rollback: %v", err)
	}
	count := 0
	for _, msg := range again {
		if msg.AggregateID == order.ID {
			count++
		}
	}
	if count != 2 {
		t.Fatalf("rolled back create must not add outbox messages: got %d, want 2", count)
	}
}

func TestOrderRepository_PostgresErrors(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	base := sampleOrder("user-2", now)

	if _, err := repo.Get(uuid.NewString()); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}

	if err := repo.Create(base); err != nil {
		t.Fatalf("create base order: %v", err)
	}
	if err := repo.Create(base); !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("expected duplicate to map to version conflict, got %v", err)
	}

	stale := base
	stale.Version = 42
	stale.Status = domain.OrderStatusShipped
	if err := repo.Save(stale); !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("expected ErrOrderVersionConflict, got %v", err)
	}

	missing := sampleOrder("user-2", now)
	if err := repo.Save(missing); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for missing order, got %v", err)
	}
}
