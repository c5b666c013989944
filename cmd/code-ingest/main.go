// Command code-ingest bulk-loads campaign-generated promo codes into the
// discount_codes table.
//
// Marketing campaigns export gzipped code lists (one code per line, possibly
// overlapping between export batches). Files are scanned concurrently; a
// bloom filter keeps cross-file duplicates from being inserted twice, and
// the database upsert ignores codes that already exist.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/unseenwear/checkout/internal/domain/discount"
	"github.com/unseenwear/checkout/internal/storage/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	minCodeLen    = 4
	maxCodeLen    = 24
	batchSize     = 5_000
)

func main() {
	var (
		databaseURL string
		kind        string
		value       string
		minOrder    string
		maxUses     int
		validFor    time.Duration
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&kind, "kind", "percentage", "discount kind for ingested codes: percentage or fixed")
	flag.StringVar(&value, "value", "10", "discount value (percent or fixed amount)")
	flag.StringVar(&minOrder, "min-order", "0", "minimum order amount")
	flag.IntVar(&maxUses, "max-uses", 1, "usage cap per code (0 = unlimited)")
	flag.DurationVar(&validFor, "valid-for", 0, "expiry relative to now (0 = no expiry)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	files := flag.Args()
	if len(files) == 0 {
		slog.Error("no code files given: pass one or more .gz files")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	rule := discount.Code{
		Kind:           discount.Kind(kind),
		Value:          decimal.RequireFromString(value),
		MinOrderAmount: decimal.RequireFromString(minOrder),
		MaxUses:        maxUses,
		Active:         true,
	}
	if validFor > 0 {
		expires := time.Now().Add(validFor)
		rule.ExpiresAt = &expires
	}

	if err := run(ctx, databaseURL, files, rule); err != nil {
		slog.Error("code ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("code ingest completed successfully")
}

func run(ctx context.Context, databaseURL string, files []string, rule discount.Code) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
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

	// seen is shared across file readers; the mutex guards both the filter
	// and the pending batch.
	var mu sync.Mutex
	seen := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	batch := make([]string, 0, batchSize)
	total := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := store.BulkInsert(ctx, batch, rule)
		if err != nil {
			return err
		}
		total += n
		batch = batch[:0]
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, f := range files {
		g.Go(func() error {
			return scanFile(gctx, f, func(code string) error {
				mu.Lock()
				defer mu.Unlock()

				if seen.TestAndAddString(code) {
					return nil
				}
				batch = append(batch, code)
				if len(batch) >= batchSize {
					return flush()
				}
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	mu.Lock()
	err = flush()
	mu.Unlock()
	if err != nil {
		return err
	}

	slog.Info("codes ingested", slog.Int("count", total))
	return nil
}

// scanFile streams a gzipped code list, normalizes each line to the
// canonical uppercase form, and hands plausible codes to emit.
func scanFile(ctx context.Context, path string, emit func(code string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "gzip reader %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	lines := 0
	for scanner.Scan() {
		lines++
		if lines%1_000_000 == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		code := strings.ToUpper(strings.TrimSpace(scanner.Text()))
		if len(code) < minCodeLen || len(code) > maxCodeLen {
			continue
		}
		if err := emit(code); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}
