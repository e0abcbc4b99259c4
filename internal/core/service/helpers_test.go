package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/procurematch/internal/core/domain"
	"github.com/rl1809/procurematch/internal/port"
)

var testNow = time.Date(2025, 8, 11, 9, 30, 0, 0, time.UTC)

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("id-%04d", n.Add(1))
	}
}

func newTestStore(opts ...Option) *Store {
	base := []Option{
		WithIDGenerator(sequentialIDs()),
		WithClock(func() time.Time { return testNow }),
	}
	return NewStore(append(base, opts...)...)
}

func stock(supplier, item, brand string, qty int, price, regions string) domain.InventoryInput {
	return domain.InventoryInput{
		SupplierName:    supplier,
		ItemName:        item,
		Brand:           brand,
		Quantity:        qty,
		Price:           decimal.RequireFromString(price),
		DeliveryRegions: regions,
	}
}

func header() domain.RequisitionHeader {
	return domain.RequisitionHeader{
		DeliveryDate:     "2025-09-01",
		DeliveryLocation: "Region I",
		Urgency:          domain.UrgencyCritical,
	}
}

// Mock AcceptanceGuard
type mockGuard struct {
	mu      sync.Mutex
	claimed map[string]bool
	err     error
}

func newMockGuard() *mockGuard {
	return &mockGuard{claimed: make(map[string]bool)}
}

func (m *mockGuard) Claim(ctx context.Context, itemID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return false, m.err
	}
	if m.claimed[itemID] {
		return false, nil
	}
	m.claimed[itemID] = true
	return true, nil
}

func (m *mockGuard) Release(ctx context.Context, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claimed, itemID)
	return nil
}

// Mock Locker
type mockLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

type mockLock struct {
	locker *mockLocker
	key    string
}

func newMockLocker() *mockLocker {
	return &mockLocker{held: make(map[string]bool)}
}

func (m *mockLocker) Obtain(ctx context.Context, key string) (port.Lock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.held[key] {
		return nil, port.ErrLockNotObtained
	}
	m.held[key] = true
	return &mockLock{locker: m, key: key}, nil
}

func (l *mockLock) Release(ctx context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()
	delete(l.locker.held, l.key)
	return nil
}

// Mock SessionRepository
type mockSessions struct {
	data []byte
	err  error
}

func (m *mockSessions) Save(ctx context.Context, data []byte) error {
	if m.err != nil {
		return m.err
	}
	m.data = append([]byte(nil), data...)
	return nil
}

func (m *mockSessions) Load(ctx context.Context) ([]byte, error) {
	return m.data, m.err
}

func (m *mockSessions) Delete(ctx context.Context) error {
	if m.err != nil {
		return m.err
	}
	m.data = nil
	return nil
}

// Mock EventPublisher
type mockPublisher struct {
	mu     sync.Mutex
	events []domain.OrderEvent
}

func (m *mockPublisher) Publish(ctx context.Context, event domain.OrderEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *mockPublisher) Events() []domain.OrderEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.OrderEvent(nil), m.events...)
}

// seedScenarioA creates the Amoxicillin requisition and the two inventory rows
// priced 5 (60 units) and 4 (50 units).
func seedScenarioA(t *testing.T, s *Store) (reqID, itemID string) {
	t.Helper()

	reqID, err := s.CreateRequisition(header(), []domain.ItemInput{
		{ItemName: "Amoxicillin 500mg", Brand: "Generix", Quantity: 100},
	})
	if err != nil {
		t.Fatalf("create requisition: %v", err)
	}
	req, err := s.Requisition(reqID)
	if err != nil {
		t.Fatalf("get requisition: %v", err)
	}

	s.AddInventoryBulk([]domain.InventoryInput{
		stock("Alpha Pharma", "Amoxicillin 500mg", "Generix", 60, "5", "Region I, Region II"),
		stock("Beta Meds", "Amoxicillin 500mg", "Generix", 50, "4", "Region I"),
	})
	return reqID, req.Items[0].ID
}
