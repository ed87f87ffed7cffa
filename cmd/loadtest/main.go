package main

import (
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/basit-devBE/commerce-core/internal/domain"
	"github.com/basit-devBE/commerce-core/internal/service/inventory"
	"github.com/basit-devBE/commerce-core/internal/service/orders"
	"github.com/basit-devBE/commerce-core/internal/storage/memory"
)

// Нагрузочная проверка инвариантов склада: параллельные создания и отмены
// заказов на одном товаре не должны ни уводить остаток в минус, ни терять
// единицы товара. Работает целиком in-process на in-memory хранилищах.
func main() {
	var (
		workers   int
		rounds    int
		stock     int
		cancelPct int
	)

	flag.IntVar(&workers, "workers", 32, "number of concurrent workers")
	flag.IntVar(&rounds, "rounds", 50, "orders attempted per worker")
	flag.IntVar(&stock, "stock", 500, "initial stock of the contested product")
	flag.IntVar(&cancelPct, "cancel-pct", 50, "percentage of created orders to cancel")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	catalog := memory.NewCatalog(domain.Product{
		ID: "prod-load", Name: "Load Test Product", PriceMinor: 1000, Available: true,
	})
	users := memory.NewUserDirectory(domain.User{
		ID: "user-load", Name: "Load Tester", Email: "load@example.com",
	})
	ledger := inventory.NewLedger(memory.NewInventoryRepository(), log.WithField("component", "inventory-ledger"))
	if _, err := ledger.Provision("prod-load", int32(stock), "loadtest"); err != nil {
		log.WithError(err).Fatal("provision failed")
	}

	svc := orders.NewService(
		memory.NewOrderRepository(), ledger, catalog, users,
		memory.NewOutboxRepository(), memory.NewTimelineRepository(),
		log.WithField("component", "orders"),
	)

	var (
		created       atomic.Int64
		canceled      atomic.Int64
		outOfStock    atomic.Int64
		unitsRetained atomic.Int64
		failures      atomic.Int64
	)

	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < rounds; i++ {
				qty := int32(rng.Intn(3) + 1)
				order, err := svc.CreateOrder("user-load", []orders.ItemRequest{
					{ProductID: "prod-load", Qty: qty},
				})
				switch {
				case errors.Is(err, domain.ErrOutOfStock):
					outOfStock.Add(1)
					continue
				case err != nil:
					failures.Add(1)
					continue
				}
				created.Add(1)
				if rng.Intn(100) < cancelPct {
					if _, err := svc.CancelOrder(order.ID, "load test"); err != nil {
						failures.Add(1)
						continue
					}
					canceled.Add(1)
				} else {
					unitsRetained.Add(int64(qty))
				}
			}
		}(int64(w) + 1)
	}
	wg.Wait()
	elapsed := time.Since(start)

	rec, err := ledger.Get("prod-load")
	if err != nil {
		log.WithError(err).Fatal("final inventory read failed")
	}

	log.WithFields(log.Fields{
		"created":      created.Load(),
		"canceled":     canceled.Load(),
		"out_of_stock": outOfStock.Load(),
		"failures":     failures.Load(),
		"remaining":    rec.Quantity,
		"elapsed":      elapsed.Round(time.Millisecond),
	}).Info("нагрузочный прогон завершён")

	// Остаток обязан сойтись: начальный запас минус удержанные
	// действующими заказами единицы.
	expected := int64(stock) - unitsRetained.Load()
	switch {
	case rec.Quantity < 0:
		fmt.Fprintln(os.Stderr, "FAIL: inventory went negative")
		os.Exit(1)
	case int64(rec.Quantity) != expected:
		fmt.Fprintf(os.Stderr, "FAIL: inventory imbalance: remaining=%d expected=%d\n", rec.Quantity, expected)
		os.Exit(1)
	case failures.Load() > 0:
		fmt.Fprintf(os.Stderr, "FAIL: %d unexpected errors\n", failures.Load())
		os.Exit(1)
	}
	fmt.Println("OK: no overdraw, ledger balanced")
}
