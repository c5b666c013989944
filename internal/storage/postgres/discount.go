package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unseenwear/checkout/internal/domain/discount"
)

var _ discount.Store = (*DiscountStore)(nil)

// DiscountStore implements discount.Store backed by PostgreSQL.
type DiscountStore struct {
	pool *pgxpool.Pool
}

// NewDiscountStore returns a DiscountStore that uses the given pool.
func NewDiscountStore(pool *pgxpool.Pool) *DiscountStore {
	return &DiscountStore{pool: pool}
}

const discountColumns = `code, kind, value, min_order_amount, max_uses, uses, active, expires_at, created_at, updated_at`

// FindActiveByCode looks up an active discount code. The query applies
// UPPER() on the parameter, so the caller may pass the code as entered.
// Returns discount.ErrCodeNotFound when no matching active code exists.
func (s *DiscountStore) FindActiveByCode(ctx context.Context, code string) (*discount.Code, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+discountColumns+`
		FROM discount_codes
		WHERE code = UPPER($1) AND active`, code)

	c, err := scanCode(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrCodeNotFound
		}
		return nil, fmt.Errorf("finding discount code %q: %w", code, err)
	}

	return c, nil
}

// IncrementUses bumps the usage counter of a code.
func (s *DiscountStore) IncrementUses(ctx context.Context, code string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE discount_codes
		SET uses = uses + 1, updated_at = now()
		WHERE code = UPPER($1)`, code)
	if err != nil {
		return fmt.Errorf("incrementing uses for %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return discount.ErrCodeNotFound
	}
	return nil
}

// Create inserts a new discount code. The code value is canonicalized to
// uppercase on write.
func (s *DiscountStore) Create(ctx context.Context, c *discount.Code) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO discount_codes (code, kind, value, min_order_amount, max_uses, uses, active, expires_at)
		VALUES (UPPER($1), $2, $3, $4, $5, $6, $7, $8)`,
		c.Code, string(c.Kind), c.Value, c.MinOrderAmount, c.MaxUses, c.Uses, c.Active, c.ExpiresAt)
	if err != nil {
		return fmt.Errorf("creating discount code %q: %w", c.Code, err)
	}
	return nil
}

// Update rewrites a code's rule fields. The usage counter is only touched
// through IncrementUses.
func (s *DiscountStore) Update(ctx context.Context, c *discount.Code) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE discount_codes
		SET kind = $2, value = $3, min_order_amount = $4, max_uses = $5,
		    active = $6, expires_at = $7, updated_at = now()
		WHERE code = UPPER($1)`,
		c.Code, string(c.Kind), c.Value, c.MinOrderAmount, c.MaxUses, c.Active, c.ExpiresAt)
	if err != nil {
		return fmt.Errorf("updating discount code %q: %w", c.Code, err)
	}
	if tag.RowsAffected() == 0 {
		return discount.ErrCodeNotFound
	}
	return nil
}

// Deactivate retires a code without deleting its usage history.
func (s *DiscountStore) Deactivate(ctx context.Context, code string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE discount_codes
		SET active = false, updated_at = now()
		WHERE code = UPPER($1)`, code)
	if err != nil {
		return fmt.Errorf("deactivating discount code %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return discount.ErrCodeNotFound
	}
	return nil
}

// BulkInsert inserts many codes sharing one rule, skipping codes that
// already exist. Returns the number of rows actually inserted. Used by the
// campaign code ingest tool.
func (s *DiscountStore) BulkInsert(ctx context.Context, codes []string, rule discount.Code) (int, error) {
	batch := &pgx.Batch{}
	for _, code := range codes {
		batch.Queue(`
			INSERT INTO discount_codes (code, kind, value, min_order_amount, max_uses, active, expires_at)
			VALUES (UPPER($1), $2, $3, $4, $5, $6, $7)
			ON CONFLICT (code) DO NOTHING`,
			code, string(rule.Kind), rule.Value, rule.MinOrderAmount,
			rule.MaxUses, rule.Active, rule.ExpiresAt)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()

	inserted := 0
	for range codes {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("bulk inserting discount codes: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}

	return inserted, nil
}

// List returns all codes, newest first.
func (s *DiscountStore) List(ctx context.Context) ([]discount.Code, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+discountColumns+`
		FROM discount_codes
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing discount codes: %w", err)
	}
	defer rows.Close()

	var codes []discount.Code
	for rows.Next() {
		c, err := scanCode(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning discount code: %w", err)
		}
		codes = append(codes, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing discount codes: %w", err)
	}

	return codes, nil
}

func scanCode(row pgx.Row) (*discount.Code, error) {
	var c discount.Code
	var kind string
	if err := row.Scan(&c.Code, &kind, &c.Value, &c.MinOrderAmount,
		&c.MaxUses, &c.Uses, &c.Active, &c.ExpiresAt,
		&c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Kind = discount.Kind(strings.ToLower(kind))
	return &c, nil
}
