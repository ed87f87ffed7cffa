package memory

import (
	"sync"

	"github.com/basit-devBE/commerce-core/internal/domain"
)

// Catalog — in-memory каталог товаров для разработки и тестов.
// В production его место занимает клиент внешнего каталога.
type Catalog struct {
	mu       sync.RWMutex
	products map[string]domain.Product
}

// NewCatalog создаёт каталог с переданными товарами.
func NewCatalog(products ...domain.Product) *Catalog {
	c := &Catalog{products: make(map[string]domain.Product, len(products))}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

// GetProduct возвращает товар или ErrProductNotFound.
func (c *Catalog) GetProduct(productID string) (domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	product, ok := c.products[productID]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

// SetProduct добавляет или заменяет товар (используется в тестах и seed-данных).
func (c *Catalog) SetProduct(product domain.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[product.ID] = product
}

var _ domain.Catalog = (*Catalog)(nil)
