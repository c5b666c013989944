package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unseenwear/checkout/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Items
// and customer details are stored as JSONB documents alongside the queryable
// pricing and status columns.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

const orderColumns = `id, order_number, customer, items,
	subtotal, shipping_cost, discount, discount_code, total,
	status, payment_status, transaction_id,
	shipping_method, tracking_number, notes,
	created_at, updated_at`

// Create inserts a new order.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	customer, items, err := marshalDocs(o)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		o.ID, o.OrderNumber, customer, items,
		o.Subtotal, o.ShippingCost, o.Discount, o.DiscountCode, o.Total,
		string(o.Status), string(o.PaymentStatus), o.TransactionID,
		o.ShippingMethod, o.TrackingNumber, o.Notes,
		o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating order %s: %w", o.OrderNumber, err)
	}
	return nil
}

// GetByID fetches an order by its id.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.get(ctx, `WHERE id = $1`, id)
}

// GetByNumber fetches an order by its customer-facing order number.
func (r *OrderRepository) GetByNumber(ctx context.Context, number string) (*order.Order, error) {
	return r.get(ctx, `WHERE order_number = $1`, number)
}

func (r *OrderRepository) get(ctx context.Context, where string, arg any) (*order.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders `+where, arg)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrOrderNotFound
		}
		return nil, fmt.Errorf("fetching order: %w", err)
	}
	return o, nil
}

// List returns orders newest first, optionally filtered by status.
func (r *OrderRepository) List(ctx context.Context, f order.ListFilter) ([]order.Order, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + orderColumns + ` FROM orders `
	args := []any{limit, f.Offset}
	if f.Status != "" {
		query += `WHERE status = $3 `
		args = append(args, string(f.Status))
	}
	query += `ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()

	var orders []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}

	return orders, nil
}

// Update rewrites an order's mutable fields.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	customer, items, err := marshalDocs(o)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET customer = $2, items = $3,
		    subtotal = $4, shipping_cost = $5, discount = $6, discount_code = $7, total = $8,
		    status = $9, payment_status = $10, transaction_id = $11,
		    shipping_method = $12, tracking_number = $13, notes = $14,
		    updated_at = $15
		WHERE id = $1`,
		o.ID, customer, items,
		o.Subtotal, o.ShippingCost, o.Discount, o.DiscountCode, o.Total,
		string(o.Status), string(o.PaymentStatus), o.TransactionID,
		o.ShippingMethod, o.TrackingNumber, o.Notes,
		o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating order %s: %w", o.OrderNumber, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

// Stats aggregates order counts and revenue. Revenue sums paid orders only;
// "today" is measured from UTC midnight.
func (r *OrderRepository) Stats(ctx context.Context) (*order.Stats, error) {
	var s order.Stats
	err := r.pool.QueryRow(ctx, `
		SELECT
			count(*),
			count(*) FILTER (WHERE status = 'pending_payment'),
			COALESCE(sum(total) FILTER (WHERE payment_status = 'paid'), 0),
			count(*) FILTER (WHERE created_at >= date_trunc('day', now() AT TIME ZONE 'utc')),
			COALESCE(sum(total) FILTER (
				WHERE payment_status = 'paid'
				  AND created_at >= date_trunc('day', now() AT TIME ZONE 'utc')), 0)
		FROM orders`).Scan(
		&s.TotalOrders, &s.PendingOrders, &s.TotalRevenue,
		&s.TodayOrders, &s.TodayRevenue)
	if err != nil {
		return nil, fmt.Errorf("aggregating order stats: %w", err)
	}

	return &s, nil
}

func marshalDocs(o *order.Order) (customer, items []byte, err error) {
	customer, err = json.Marshal(o.Customer)
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling customer: %w", err)
	}
	items, err = json.Marshal(o.Items)
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling items: %w", err)
	}
	return customer, items, nil
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var o order.Order
	var customer, items []byte
	var status, paymentStatus string

	if err := row.Scan(&o.ID, &o.OrderNumber, &customer, &items,
		&o.Subtotal, &o.ShippingCost, &o.Discount, &o.DiscountCode, &o.Total,
		&status, &paymentStatus, &o.TransactionID,
		&o.ShippingMethod, &o.TrackingNumber, &o.Notes,
		&o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(customer, &o.Customer); err != nil {
		return nil, fmt.Errorf("unmarshaling customer: %w", err)
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshaling items: %w", err)
	}
	o.Status = order.Status(status)
	o.PaymentStatus = order.PaymentStatus(paymentStatus)

	return &o, nil
}
