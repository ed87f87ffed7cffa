package app

import (
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/basit-devBE/commerce-core/internal/domain"
	"github.com/basit-devBE/commerce-core/internal/service/inventory"
	"github.com/basit-devBE/commerce-core/internal/storage/memory"
)

type seedProduct struct {
	product  domain.Product
	qty      int32
	location string
}

// seedDemoData наполняет in-memory каталог, справочник покупателей и
// склад демо-данными для локальной разработки. Цены в минорных единицах.
func seedDemoData(catalog *memory.Catalog, users *memory.UserDirectory, ledger *inventory.Ledger, logger *log.Entry) {
	demoUsers := []domain.User{
		{ID: "user-jane", Name: "Jane Doe", Email: "jane.doe@example.com"},
		{ID: "user-mike", Name: "Mike Smith", Email: "mike.smith@example.com"},
		{ID: "user-sarah", Name: "Sarah Johnson", Email: "sarah.johnson@example.com"},
		{ID: "user-david", Name: "David Brown", Email: "david.brown@example.com"},
		{ID: "user-emily", Name: "Emily Davis", Email: "emily.davis@example.com"},
		{ID: "user-lisa", Name: "Lisa Martinez", Email: "lisa.martinez@example.com"},
		{ID: "user-james", Name: "James Taylor", Email: "james.taylor@example.com"},
		{ID: "user-maria", Name: "Maria Garcia", Email: "maria.garcia@example.com"},
		{ID: "user-chris", Name: "Chris Anderson", Email: "chris.anderson@example.com"},
		{ID: "user-amanda", Name: "Amanda Thomas", Email: "amanda.thomas@example.com"},
	}
	for _, u := range demoUsers {
		users.SetUser(u)
	}

	demoProducts := []seedProduct{
		{domain.Product{ID: "prod-xps-15", Name: "Dell XPS 15 Laptop", PriceMinor: 129999, Available: true}, 25, "Warehouse A - Section 1"},
		{domain.Product{ID: "prod-iphone-15-pro", Name: "iPhone 15 Pro", PriceMinor: 99999, Available: true}, 50, "Warehouse A - Section 2"},
		{domain.Product{ID: "prod-wh1000xm5", Name: "Sony WH-1000XM5 Headphones", PriceMinor: 39999, Available: true}, 100, "Warehouse A - Section 3"},
		{domain.Product{ID: "prod-watch-s9", Name: "Apple Watch Series 9", PriceMinor: 42999, Available: true}, 75, "Warehouse A - Section 2"},
		{domain.Product{ID: "prod-tab-s9", Name: "Samsung Galaxy Tab S9", PriceMinor: 64999, Available: true}, 40, "Warehouse A - Section 1"},
		{domain.Product{ID: "prod-eos-r6", Name: "Canon EOS R6 Mark II", PriceMinor: 249999, Available: true}, 15, "Warehouse B - Section 1"},
		{domain.Product{ID: "prod-levis-501", Name: "Levi's 501 Original Jeans", PriceMinor: 8999, Available: true}, 200, "Warehouse C - Section 1"},
		{domain.Product{ID: "prod-summer-dress", Name: "Floral Summer Dress", PriceMinor: 7999, Available: true}, 150, "Warehouse C - Section 2"},
		{domain.Product{ID: "prod-air-max-270", Name: "Nike Air Max 270", PriceMinor: 14999, Available: true}, 180, "Warehouse C - Section 3"},
		{domain.Product{ID: "prod-thermoball", Name: "The North Face ThermoBall Jacket", PriceMinor: 19999, Available: true}, 120, "Warehouse C - Section 1"},
		{domain.Product{ID: "prod-jet-set-tote", Name: "Michael Kors Jet Set Tote", PriceMinor: 29800, Available: true}, 85, "Warehouse C - Section 4"},
		{domain.Product{ID: "prod-rb-aviator", Name: "Ray-Ban Aviator Classic", PriceMinor: 15999, Available: true}, 250, "Warehouse C - Section 5"},
	}
	for _, sp := range demoProducts {
		catalog.SetProduct(sp.product)
		if _, err := ledger.Provision(sp.product.ID, sp.qty, sp.location); err != nil {
			// При postgres-хранилище запись может остаться с прошлого запуска.
			if errors.Is(err, domain.ErrInventoryExists) {
				continue
			}
			logger.WithError(err).WithField("product_id", sp.product.ID).Warn("failed to seed inventory")
		}
	}

	logger.WithFields(log.Fields{
		"users":    len(demoUsers),
		"products": len(demoProducts),
	}).Info("demo data seeded")
}
