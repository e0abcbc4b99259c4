package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/procurematch/internal/core/domain"
	"github.com/rl1809/procurematch/internal/port"
)

// Fixed width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Decimals and timestamps are stored as text so the same schema works on
// MySQL and SQLite without losing precision.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS acceptances (
		item_id        VARCHAR(64) NOT NULL PRIMARY KEY,
		requisition_id VARCHAR(64) NOT NULL,
		order_count    INT NOT NULL,
		accepted_at    VARCHAR(40) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id                VARCHAR(64) NOT NULL PRIMARY KEY,
		requisition_id    VARCHAR(64) NOT NULL,
		item_id           VARCHAR(64) NOT NULL,
		supplier_name     VARCHAR(255) NOT NULL,
		item_name         VARCHAR(255) NOT NULL,
		brand             VARCHAR(255) NOT NULL,
		quantity          INT NOT NULL,
		unit_price        VARCHAR(40) NOT NULL,
		line_cost         VARCHAR(40) NOT NULL,
		delivery_location VARCHAR(255) NOT NULL,
		needed_by         VARCHAR(40) NOT NULL,
		urgency           VARCHAR(16) NOT NULL,
		status            VARCHAR(16) NOT NULL,
		created_at        VARCHAR(40) NOT NULL,
		updated_at        VARCHAR(40) NOT NULL
	)`,
}

type SQLJournal struct {
	db     *sql.DB
	driver string
}

func NewSQLJournal(db *sql.DB, driver string) *SQLJournal {
	return &SQLJournal{db: db, driver: driver}
}

// Migrate creates the journal tables when they do not exist yet.
func (j *SQLJournal) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := j.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate journal: %w", err)
		}
	}
	return nil
}

func (j *SQLJournal) insertIgnore() string {
	if j.driver == DriverSQLite {
		return "INSERT OR IGNORE"
	}
	return "INSERT IGNORE"
}

// RecordAcceptance writes the acceptance marker and its orders in one
// transaction. An item that was already journaled is refused with
// port.ErrDuplicateAcceptance and nothing is written.
func (j *SQLJournal) RecordAcceptance(ctx context.Context, event domain.OrderEvent) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, j.insertIgnore()+` INTO acceptances
		(item_id, requisition_id, order_count, accepted_at)
		VALUES (?, ?, ?, ?)`,
		event.ItemID, event.RequisitionID, len(event.Orders), formatTime(event.At),
	)
	if err != nil {
		return fmt.Errorf("insert acceptance: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrDuplicateAcceptance
	}

	for _, o := range event.Orders {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO orders (id, requisition_id, item_id, supplier_name, item_name, brand,
				quantity, unit_price, line_cost, delivery_location, needed_by, urgency, status,
				created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			o.ID, o.RequisitionID, o.ItemID, o.SupplierName, o.ItemName, o.Brand,
			o.Quantity, o.UnitPrice.String(), o.LineCost.String(), o.DeliveryLocation, o.NeededBy,
			string(o.Urgency), string(o.Status), formatTime(o.CreatedAt), formatTime(o.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert order %s: %w", o.ID, err)
		}
	}

	return tx.Commit()
}

// RecordStatus updates the status of a journaled order.
func (j *SQLJournal) RecordStatus(ctx context.Context, order domain.Order) error {
	result, err := j.db.ExecContext(ctx, `
		UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`,
		string(order.Status), formatTime(order.UpdatedAt), order.ID,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.NotFound("order", order.ID)
	}
	return nil
}

// Accepted reports whether an acceptance for itemID was journaled.
func (j *SQLJournal) Accepted(ctx context.Context, itemID string) (bool, error) {
	var count int
	err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM acceptances WHERE item_id = ?`, itemID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("query acceptance: %w", err)
	}
	return count > 0, nil
}

// ListOrders returns journaled orders, newest first. An empty supplier lists
// every order.
func (j *SQLJournal) ListOrders(ctx context.Context, supplier string) ([]domain.Order, error) {
	query := `
		SELECT id, requisition_id, item_id, supplier_name, item_name, brand, quantity,
			unit_price, line_cost, delivery_location, needed_by, urgency, status,
			created_at, updated_at
		FROM orders`
	var args []any
	if supplier != "" {
		query += ` WHERE LOWER(supplier_name) = LOWER(?)`
		args = append(args, supplier)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

func scanOrder(rows *sql.Rows) (domain.Order, error) {
	var (
		o                    domain.Order
		unitPrice, lineCost  string
		urgency, status      string
		createdAt, updatedAt string
	)
	err := rows.Scan(&o.ID, &o.RequisitionID, &o.ItemID, &o.SupplierName, &o.ItemName, &o.Brand,
		&o.Quantity, &unitPrice, &lineCost, &o.DeliveryLocation, &o.NeededBy, &urgency, &status,
		&createdAt, &updatedAt)
	if err != nil {
		return domain.Order{}, fmt.Errorf("scan order: %w", err)
	}

	if o.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
		return domain.Order{}, fmt.Errorf("order %s unit price: %w", o.ID, err)
	}
	if o.LineCost, err = decimal.NewFromString(lineCost); err != nil {
		return domain.Order{}, fmt.Errorf("order %s line cost: %w", o.ID, err)
	}
	if o.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.Order{}, fmt.Errorf("order %s created at: %w", o.ID, err)
	}
	if o.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return domain.Order{}, fmt.Errorf("order %s updated at: %w", o.ID, err)
	}
	o.Urgency = domain.Urgency(urgency)
	o.Status = domain.OrderStatus(status)
	return o, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
