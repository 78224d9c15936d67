package payment

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/printforge/server/internal/module/order"
	"github.com/printforge/server/internal/shared/metrics"
	"gorm.io/gorm"
)

// mockOrderRepo is an in-memory order.Repository.
type mockOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*order.Order
}

func newMockOrderRepo(orders ...*order.Order) *mockOrderRepo {
	m := &mockOrderRepo{orders: make(map[uuid.UUID]*order.Order)}
	for _, o := range orders {
		if o.ID == uuid.Nil {
			o.ID = uuid.New()
		}
		m.orders[o.ID] = o
	}
	return m
}

func (m *mockOrderRepo) Create(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	m.orders[o.ID] = o
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[id]; ok {
		return o, nil
	}
	return nil, order.ErrOrderNotFound
}

func (m *mockOrderRepo) GetByNumber(_ context.Context, number string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.OrderNumber == number {
			return o, nil
		}
	}
	return nil, order.ErrOrderNotFound
}

func (m *mockOrderRepo) Update(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
	return nil
}

func (m *mockOrderRepo) ClaimNextForPostProcessing(_ *gorm.DB) (*order.Order, error) {
	return nil, order.ErrNoClaimableOrder
}

// mockPaymentRepo is an in-memory payment Repository.
type mockPaymentRepo struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*Payment
}

func newMockPaymentRepo(payments ...*Payment) *mockPaymentRepo {
	m := &mockPaymentRepo{payments: make(map[uuid.UUID]*Payment)}
	for _, p := range payments {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		m.payments[p.ID] = p
	}
	return m
}

func (m *mockPaymentRepo) Create(_ context.Context, p *Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.payments[p.ID] = p
	return nil
}

func (m *mockPaymentRepo) GetByID(_ context.Context, id uuid.UUID) (*Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.payments[id]; ok {
		return p, nil
	}
	return nil, ErrPaymentNotFound
}

func (m *mockPaymentRepo) GetByProviderOrder(_ context.Context, provider, number string) (*Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.Provider == provider && p.ProviderOrderNumber != nil && *p.ProviderOrderNumber == number {
			return p, nil
		}
	}
	return nil, ErrPaymentNotFound
}

func (m *mockPaymentRepo) GetLatestForOrder(_ context.Context, orderID uuid.UUID) (*Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *Payment
	for _, p := range m.payments {
		if p.OrderID != orderID {
			continue
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			latest = p
		}
	}
	if latest == nil {
		return nil, ErrPaymentNotFound
	}
	return latest, nil
}

func (m *mockPaymentRepo) ListForOrder(_ context.Context, orderID uuid.UUID) ([]*Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Payment
	for _, p := range m.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockPaymentRepo) Update(_ context.Context, p *Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.ID] = p
	return nil
}

// mockStore runs the transaction function directly against the in-memory
// repositories.
type mockStore struct {
	orders   *mockOrderRepo
	payments *mockPaymentRepo
}

func (s *mockStore) Atomically(_ context.Context, fn func(orders order.Repository, payments Repository) error) error {
	return fn(s.orders, s.payments)
}

// Prometheus collectors register globally; share one instance across tests.
var (
	testMetricsOnce sync.Once
	testMetrics     *metrics.Metrics
)

func sharedMetrics() *metrics.Metrics {
	testMetricsOnce.Do(func() {
		testMetrics = metrics.New("printforge_test")
	})
	return testMetrics
}
