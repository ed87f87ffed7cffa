package inventory

import "github.com/basit-devBE/commerce-core/internal/domain"

// MockLedger — конфигурируемая заглушка StockLedger для тестов.
type MockLedger struct {
	ReserveErr       error
	ReserveErrFor    map[string]error
	ReleaseErr       error
	ReclaimErr       error
	RemainingDefault int32

	ReserveCalls []string
	ReleaseCalls int
	ReclaimCalls int
}

// NewMockLedger возвращает mock с успешным сценарием по умолчанию.
func NewMockLedger() *MockLedger {
	return &MockLedger{ReserveErrFor: map[string]error{}}
}

// Reserve возвращает заранее настроенную ошибку и запоминает вызовы.
func (m *MockLedger) Reserve(productID string, qty int32) (int32, error) {
	m.ReserveCalls = append(m.ReserveCalls, productID)
	if err, ok := m.ReserveErrFor[productID]; ok {
		return 0, err
	}
	if m.ReserveErr != nil {
		return 0, m.ReserveErr
	}
	return m.RemainingDefault, nil
}

// ReleaseOrder возвращает заранее настроенную ошибку и считает вызовы.
func (m *MockLedger) ReleaseOrder(orderID string, items []domain.OrderItem) error {
	m.ReleaseCalls++
	return m.ReleaseErr
}

// ReclaimOrder возвращает заранее настроенную ошибку и считает вызовы.
func (m *MockLedger) ReclaimOrder(orderID string, items []domain.OrderItem) error {
	m.ReclaimCalls++
	return m.ReclaimErr
}

var _ domain.StockLedger = (*MockLedger)(nil)
