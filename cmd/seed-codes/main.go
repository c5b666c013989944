// Command seed-codes loads discount codes from a JSON file into the
// database. Intended for development environments and for an admin's initial
// campaign setup.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/unseenwear/checkout/internal/domain/discount"
	"github.com/unseenwear/checkout/internal/storage/postgres"
)

type codeJSON struct {
	Code           string          `json:"code"`
	Kind           string          `json:"kind"`
	Value          decimal.Decimal `json:"value"`
	MinOrderAmount decimal.Decimal `json:"min_order_amount"`
	MaxUses        int             `json:"max_uses"`
	Active         *bool           `json:"active"`
	ExpiresAt      *time.Time      `json:"expires_at"`
}

func main() {
	var (
		databaseURL string
		codesFile   string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&codesFile, "codes-file", "db/seed/codes.json", "path to discount codes JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, codesFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, codesFile string) error {
	data, err := os.ReadFile(codesFile)
	if err != nil {
		return errors.Wrapf(err, "read %s", codesFile)
	}

	var entries []codeJSON
	if err := json.Unmarshal(data, &entries); err != nil {
		return errors.Wrapf(err, "parse %s", codesFile)
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	store := postgres.NewDiscountStore(pool)

	for _, e := range entries {
		active := true
		if e.Active != nil {
			active = *e.Active
		}

		err := store.Create(ctx, &discount.Code{
			Code:           e.Code,
			Kind:           discount.Kind(e.Kind),
			Value:          e.Value,
			MinOrderAmount: e.MinOrderAmount,
			MaxUses:        e.MaxUses,
			Active:         active,
			ExpiresAt:      e.ExpiresAt,
		})
		if err != nil {
			return errors.Wrapf(err, "seed code %s", e.Code)
		}

		slog.Info("seeded code", slog.String("code", e.Code))
	}

	return nil
}
