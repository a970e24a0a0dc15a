// Command seed-db loads the demo catalog, customers and coupons.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/kart-pricing/internal/domain/coupon"
	"github.com/xenking/kart-pricing/internal/domain/customer"
	"github.com/xenking/kart-pricing/internal/domain/pricing"
	"github.com/xenking/kart-pricing/internal/domain/product"
	"github.com/xenking/kart-pricing/internal/storage/postgres"
)

var (
	demoProducts = []product.Product{
		{ID: "P001", Name: "iPhone 15", Price: decimal.RequireFromString("5999.00"), Category: "手机", Eligible: true},
		{ID: "P002", Name: "AirPods Pro", Price: decimal.RequireFromString("1999.00"), Category: "耳机", Eligible: true},
		{ID: "P003", Name: "手机壳", Price: decimal.RequireFromString("99.00"), Category: "配件", Eligible: false},
	}

	demoCustomers = []customer.Customer{
		{ID: "U001", Name: "会员用户", Member: true},
		{ID: "U002", Name: "非会员用户", Member: false},
	}

	demoCoupons = []coupon.Rule{
		fixedRule("C001", "满200减30", "200", "30"),
		fixedRule("C002", "满500减80", "500", "80"),
		fixedRule("C003", "满1000减200", "1000", "200"),
		rateRule("C004", "9折券", "0.90"),
		rateRule("C005", "8.5折券", "0.85"),
	}
)

func fixedRule(code, name, threshold, amount string) coupon.Rule {
	return coupon.Rule{
		Code:      code,
		Name:      name,
		Kind:      pricing.KindFixedDiscount,
		Threshold: decimal.RequireFromString(threshold),
		Amount:    decimal.RequireFromString(amount),
	}
}

func rateRule(code, name, rate string) coupon.Rule {
	return coupon.Rule{
		Code: code,
		Name: name,
		Kind: pricing.KindPercentageDiscount,
		Rate: decimal.RequireFromString(rate),
	}
}

func main() {
	var databaseURL string
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Error("Database URL is required: set -database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL); err != nil {
		lg.Error("Seed failed", zap.Error(err))
		os.Exit(1)
	}

	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, databaseURL string) error {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := postgres.NewProductRepository(pool).Upsert(ctx, demoProducts...); err != nil {
		return errors.Wrap(err, "seed products")
	}
	lg.Info("Seeded products", zap.Int("count", len(demoProducts)))

	if err := postgres.NewCustomerRepository(pool).Upsert(ctx, demoCustomers...); err != nil {
		return errors.Wrap(err, "seed customers")
	}
	lg.Info("Seeded customers", zap.Int("count", len(demoCustomers)))

	for _, r := range demoCoupons {
		if _, err := r.Coupon(); err != nil {
			return errors.Wrapf(err, "coupon %s", r.Code)
		}
	}
	if err := postgres.NewCouponRepository(pool).Upsert(ctx, demoCoupons...); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	lg.Info("Seeded coupons", zap.Int("count", len(demoCoupons)))

	return nil
}
