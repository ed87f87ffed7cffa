package inventory

import (
	"errors"
	"testing"

	"github.com/basit-devBE/commerce-core/internal/domain"
	"github.com/basit-devBE/commerce-core/internal/storage/memory"
)

func newTestLedger(t *testing.T) (*Ledger, domain.InventoryRepository) {
	t.Helper()
	repo := memory.NewInventoryRepository()
	return NewLedgerWithoutMetrics(repo, nil), repo
}

func TestLedgerProvision(t *testing.T) {
	ledger, _ := newTestLedger(t)

	record, err := ledger.Provision("prod-1", 10, "warehouse-a")
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if record.Quantity != 10 || record.Location != "warehouse-a" {
		t.Fatalf("unexpected record: %+v", record)
	}

	if _, err := ledger.Provision("prod-1", 5, "warehouse-b"); !errors.Is(err, domain.ErrInventoryExists) {
		t.Fatalf("expected ErrInventoryExists, got %v", err)
	}

	if _, err := ledger.Provision("", 5, ""); !errors.Is(err, domain.ErrProductIDRequired) {
		t.Fatalf("expected ErrProductIDRequired, got %v", err)
	}
	if _, err := ledger.Provision("prod-2", -1, ""); !errors.Is(err, domain.ErrQuantityNegative) {
		t.Fatalf("expected ErrQuantityNegative, got %v", err)
	}
}

func TestLedgerReserve(t *testing.T) {
	ledger, _ := newTestLedger(t)
	if _, err := ledger.Provision("prod-1", 10, ""); err != nil {
		t.Fatalf("Provision: %v", err)
	}

	remaining, err := ledger.Reserve("prod-1", 4)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if remaining != 6 {
		t.Fatalf("remaining = %d, want 6", remaining)
	}

	if _, err := ledger.Reserve("prod-1", 7); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if _, err := ledger.Reserve("prod-1", 0); !errors.Is(err, domain.ErrQtyInvalid) {
		t.Fatalf("expected ErrQtyInvalid, got %v", err)
	}
	if _, err := ledger.Reserve("ghost", 1); !errors.Is(err, domain.ErrInventoryNotFound) {
		t.Fatalf("expected ErrInventoryNotFound, got %v", err)
	}
}

func TestLedgerReleaseOrder(t *testing.T) {
	ledger, _ := newTestLedger(t)
	if _, err := ledger.Provision("prod-1", 10, ""); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if _, err := ledger.Reserve("prod-1", 6); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	items := []domain.OrderItem{{ProductID: "prod-1", Qty: 6}}

	if err := ledger.ReleaseOrder("order-1", items); err != nil {
		t.Fatalf("ReleaseOrder: %v", err)
	}
	record, err := ledger.Get("prod-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.Quantity != 10 {
		t.Fatalf("quantity = %d, want 10", record.Quantity)
	}

	// Повторный возврат того же заказа ничего не меняет.
	if err := ledger.ReleaseOrder("order-1", items); err != nil {
		t.Fatalf("repeat ReleaseOrder: %v", err)
	}
	record, _ = ledger.Get("prod-1")
	if record.Quantity != 10 {
		t.Fatalf("quantity after repeat = %d, want 10", record.Quantity)
	}
}

func TestLedgerReleaseOrderSumsDuplicateLines(t *testing.T) {
	ledger, _ := newTestLedger(t)
	if _, err := ledger.Provision("prod-1", 10, ""); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if _, err := ledger.Reserve("prod-1", 2); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if _, err := ledger.Reserve("prod-1", 3); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	// Две строки одного товара: запись возврата должна нести сумму строк,
	// иначе ключ (заказ, товар) схлопнет вторую строку.
	items := []domain.OrderItem{
		{ProductID: "prod-1", Qty: 2},
		{ProductID: "prod-1", Qty: 3},
	}

	if err := ledger.ReleaseOrder("order-1", items); err != nil {
		t.Fatalf("ReleaseOrder: %v", err)
	}
	record, err := ledger.Get("prod-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.Quantity != 10 {
		t.Fatalf("quantity = %d, want 10", record.Quantity)
	}

	// Повтор с теми же строками по-прежнему no-op.
	if err := ledger.ReleaseOrder("order-1", items); err != nil {
		t.Fatalf("repeat ReleaseOrder: %v", err)
	}
	record, _ = ledger.Get("prod-1")
	if record.Quantity != 10 {
		t.Fatalf("quantity after repeat = %d, want 10", record.Quantity)
	}
}

func TestLedgerReclaimOrder(t *testing.T) {
	ledger, _ := newTestLedger(t)
	if _, err := ledger.Provision("prod-1", 10, ""); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if _, err := ledger.Reserve("prod-1", 4); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	items := []domain.OrderItem{
		{ProductID: "prod-1", Qty: 1},
		{ProductID: "prod-1", Qty: 3},
	}

	if err := ledger.ReleaseOrder("order-1", items); err != nil {
		t.Fatalf("ReleaseOrder: %v", err)
	}
	if err := ledger.ReclaimOrder("order-1", items); err != nil {
		t.Fatalf("ReclaimOrder: %v", err)
	}
	record, err := ledger.Get("prod-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.Quantity != 6 {
		t.Fatalf("quantity = %d, want 6 after reclaim", record.Quantity)
	}

	// После изъятия запись возврата удалена: новый возврат снова проходит.
	if err := ledger.ReleaseOrder("order-1", items); err != nil {
		t.Fatalf("ReleaseOrder after reclaim: %v", err)
	}
	record, _ = ledger.Get("prod-1")
	if record.Quantity != 10 {
		t.Fatalf("quantity = %d, want 10", record.Quantity)
	}
}

func TestLedgerReclaimOrderWithoutRelease(t *testing.T) {
	ledger, _ := newTestLedger(t)
	if _, err := ledger.Provision("prod-1", 10, ""); err != nil {
		t.Fatalf("Provision: %v", err)
	}

	// Без проведённого возврата изъятие — no-op.
	if err := ledger.ReclaimOrder("order-1", []domain.OrderItem{{ProductID: "prod-1", Qty: 4}}); err != nil {
		t.Fatalf("ReclaimOrder: %v", err)
	}
	record, err := ledger.Get("prod-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.Quantity != 10 {
		t.Fatalf("quantity = %d, want 10", record.Quantity)
	}
}

func TestLedgerReleaseOrderMissingRecord(t *testing.T) {
	ledger, _ := newTestLedger(t)
	if _, err := ledger.Provision("prod-1", 5, ""); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if _, err := ledger.Reserve("prod-1", 2); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	items := []domain.OrderItem{
		{ProductID: "ghost", Qty: 3},
		{ProductID: "prod-1", Qty: 2},
	}

	// Пропавшая запись не блокирует возврат остальных позиций.
	if err := ledger.ReleaseOrder("order-1", items); err != nil {
		t.Fatalf("ReleaseOrder: %v", err)
	}
	record, err := ledger.Get("prod-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.Quantity != 5 {
		t.Fatalf("quantity = %d, want 5", record.Quantity)
	}
}
