package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/procurematch/internal/core/domain"
	"github.com/rl1809/procurematch/internal/port"
)

func getSQLiteJournal(t *testing.T) (*SQLJournal, *sql.DB) {
	t.Helper()

	db, err := OpenDB(DriverSQLite, filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	journal := NewSQLJournal(db, DriverSQLite)
	if err := journal.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return journal, db
}

func getMySQLJournal(t *testing.T) (*SQLJournal, *sql.DB) {
	t.Helper()

	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/procurematch"
	}

	db, err := OpenDB(DriverMySQL, dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	journal := NewSQLJournal(db, DriverMySQL)
	if err := journal.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return journal, db
}

func acceptedEvent(itemID string, at time.Time) domain.OrderEvent {
	order := func(id, supplier string, qty int, price string) domain.Order {
		unit := decimal.RequireFromString(price)
		return domain.Order{
			ID:               id,
			RequisitionID:    "req-1",
			ItemID:           itemID,
			SupplierName:     supplier,
			ItemName:         "Amoxicillin 500mg",
			Brand:            "Generix",
			Quantity:         qty,
			UnitPrice:        unit,
			LineCost:         unit.Mul(decimal.NewFromInt(int64(qty))),
			DeliveryLocation: "Region I",
			NeededBy:         "2025-09-01",
			Urgency:          domain.UrgencyCritical,
			Status:           domain.OrderStatusAccepted,
			CreatedAt:        at,
			UpdatedAt:        at,
		}
	}
	return domain.OrderEvent{
		Type:          domain.EventOrdersAccepted,
		RequisitionID: "req-1",
		ItemID:        itemID,
		Orders: []domain.Order{
			order(itemID+"-o1", "Beta Meds", 50, "4.10"),
			order(itemID+"-o2", "Alpha Pharma", 50, "5"),
		},
		At: at,
	}
}

func TestRecordAcceptance_Success(t *testing.T) {
	journal, _ := getSQLiteJournal(t)
	ctx := context.Background()
	at := time.Date(2025, 8, 11, 9, 30, 0, 123, time.UTC)

	err := journal.RecordAcceptance(ctx, acceptedEvent("item-1", at))
	if err != nil {
		t.Fatalf("RecordAcceptance failed: %v", err)
	}

	orders, err := journal.ListOrders(ctx, "")
	if err != nil {
		t.Fatalf("ListOrders failed: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}

	beta, err := journal.ListOrders(ctx, "beta meds")
	if err != nil {
		t.Fatalf("ListOrders by supplier failed: %v", err)
	}
	if len(beta) != 1 {
		t.Fatalf("expected 1 order for Beta Meds, got %d", len(beta))
	}
	if !beta[0].LineCost.Equal(decimal.RequireFromString("205")) {
		t.Errorf("expected line cost 205, got %s", beta[0].LineCost)
	}
	if !beta[0].CreatedAt.Equal(at) {
		t.Errorf("expected created at %v, got %v", at, beta[0].CreatedAt)
	}
	if beta[0].Status != domain.OrderStatusAccepted || beta[0].Urgency != domain.UrgencyCritical {
		t.Errorf("unexpected status/urgency: %s/%s", beta[0].Status, beta[0].Urgency)
	}

	ok, err := journal.Accepted(ctx, "item-1")
	if err != nil || !ok {
		t.Errorf("expected item-1 to be journaled, got %v, %v", ok, err)
	}
}

func TestRecordAcceptance_Duplicate(t *testing.T) {
	journal, db := getSQLiteJournal(t)
	ctx := context.Background()
	at := time.Now()

	if err := journal.RecordAcceptance(ctx, acceptedEvent("item-1", at)); err != nil {
		t.Fatalf("first RecordAcceptance failed: %v", err)
	}

	// Same item, different order ids: must be refused as a whole.
	replay := acceptedEvent("item-1", at)
	for i := range replay.Orders {
		replay.Orders[i].ID += "-replay"
	}
	err := journal.RecordAcceptance(ctx, replay)
	if !errors.Is(err, port.ErrDuplicateAcceptance) {
		t.Fatalf("expected ErrDuplicateAcceptance, got: %v", err)
	}

	var count int
	db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&count)
	if count != 2 {
		t.Errorf("expected 2 orders, got %d", count)
	}
}

func TestRecordAcceptance_RollsBackOnFailure(t *testing.T) {
	journal, db := getSQLiteJournal(t)
	ctx := context.Background()

	event := acceptedEvent("item-1", time.Now())
	event.Orders[1].ID = event.Orders[0].ID

	if err := journal.RecordAcceptance(ctx, event); err == nil {
		t.Fatal("expected primary key violation")
	}

	var count int
	db.QueryRowContext(ctx, `SELECT COUNT(*) FROM acceptances`).Scan(&count)
	if count != 0 {
		t.Errorf("expected acceptance to be rolled back, got %d rows", count)
	}
}

func TestRecordAcceptance_Concurrent(t *testing.T) {
	journal, _ := getSQLiteJournal(t)
	ctx := context.Background()
	at := time.Now()

	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			event := acceptedEvent("item-c", at)
			for j := range event.Orders {
				event.Orders[j].ID += string(rune('a' + n))
			}
			err := journal.RecordAcceptance(ctx, event)
			if err == nil {
				successCount.Add(1)
			} else if !errors.Is(err, port.ErrDuplicateAcceptance) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}

	wg.Wait()

	if successCount.Load() != 1 {
		t.Errorf("expected exactly 1 success, got %d", successCount.Load())
	}
}

func TestRecordStatus(t *testing.T) {
	journal, _ := getSQLiteJournal(t)
	ctx := context.Background()
	event := acceptedEvent("item-1", time.Now())
	if err := journal.RecordAcceptance(ctx, event); err != nil {
		t.Fatalf("RecordAcceptance failed: %v", err)
	}

	order := event.Orders[0]
	order.Status = domain.OrderStatusInTransit
	order.UpdatedAt = order.UpdatedAt.Add(time.Hour)
	if err := journal.RecordStatus(ctx, order); err != nil {
		t.Fatalf("RecordStatus failed: %v", err)
	}

	orders, _ := journal.ListOrders(ctx, "Beta Meds")
	if orders[0].Status != domain.OrderStatusInTransit {
		t.Errorf("expected In Transit, got %s", orders[0].Status)
	}

	order.ID = "missing"
	if err := journal.RecordStatus(ctx, order); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
}

func TestOpenDB_UnknownDriver(t *testing.T) {
	if _, err := OpenDB("postgres", "dsn"); err == nil {
		t.Error("expected unsupported driver error")
	}
}

func TestMySQLJournal_RecordAcceptance(t *testing.T) {
	journal, db := getMySQLJournal(t)
	ctx := context.Background()
	itemID := "mysql-item-" + time.Now().Format("20060102150405")

	err := journal.RecordAcceptance(ctx, acceptedEvent(itemID, time.Now()))
	if err != nil {
		t.Fatalf("RecordAcceptance failed: %v", err)
	}
	err = journal.RecordAcceptance(ctx, acceptedEvent(itemID, time.Now()))
	if !errors.Is(err, port.ErrDuplicateAcceptance) {
		t.Errorf("expected ErrDuplicateAcceptance, got: %v", err)
	}

	// Cleanup
	db.ExecContext(ctx, `DELETE FROM orders WHERE item_id = ?`, itemID)
	db.ExecContext(ctx, `DELETE FROM acceptances WHERE item_id = ?`, itemID)
}
