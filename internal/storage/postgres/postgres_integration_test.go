//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/kart-pricing/internal/domain/coupon"
	"github.com/xenking/kart-pricing/internal/domain/customer"
	"github.com/xenking/kart-pricing/internal/domain/pricing"
	"github.com/xenking/kart-pricing/internal/domain/product"
	"github.com/xenking/kart-pricing/internal/domain/quote"
	"github.com/xenking/kart-pricing/internal/storage/postgres"
)

var pool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "kart",
				"POSTGRES_PASSWORD": "kart",
				"POSTGRES_DB":       "kart",
			},
			WaitingFor: wait.ForAll(
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
				wait.ForListeningPort("5432/tcp"),
			),
		},
		Started: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "start postgres: %v\n", err)
		return 1
	}
	defer func() { _ = testcontainers.TerminateContainer(ctr) }()

	host, err := ctr.Host(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "host: %v\n", err)
		return 1
	}
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	if err != nil {
		fmt.Fprintf(os.Stderr, "mapped port: %v\n", err)
		return 1
	}

	dsn := fmt.Sprintf("postgres://kart:kart@%s:%s/kart?sslmode=disable", host, port.Port())
	pool, err = postgres.NewPool(ctx, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pool: %v\n", err)
		return 1
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "migrations: %v\n", err)
		return 1
	}
	// Migrations are idempotent.
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "second migration run: %v\n", err)
		return 1
	}

	return m.Run()
}

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, postgres.NewProductRepository(pool).Upsert(ctx,
		product.Product{ID: "P001", Name: "iPhone 15", Price: d("5999.00"), Category: "手机", Eligible: true},
		product.Product{ID: "P002", Name: "AirPods Pro", Price: d("1999.00"), Category: "耳机", Eligible: true},
		product.Product{ID: "P003", Name: "手机壳", Price: d("99.00"), Category: "配件", Eligible: false},
	))
	require.NoError(t, postgres.NewCustomerRepository(pool).Upsert(ctx,
		customer.Customer{ID: "U001", Name: "会员用户", Member: true},
		customer.Customer{ID: "U002", Name: "非会员用户"},
	))

	expired := time.Now().Add(-time.Hour)
	require.NoError(t, postgres.NewCouponRepository(pool).Upsert(ctx,
		coupon.Rule{Code: "C001", Name: "满200减30", Kind: pricing.KindFixedDiscount, Threshold: d("200"), Amount: d("30")},
		coupon.Rule{Code: "C002", Name: "满500减80", Kind: pricing.KindFixedDiscount, Threshold: d("500"), Amount: d("80")},
		coupon.Rule{Code: "C004", Name: "9折券", Kind: pricing.KindPercentageDiscount, Rate: d("0.90")},
		coupon.Rule{Code: "OLD", Name: "过期券", Kind: pricing.KindPercentageDiscount, Rate: d("0.50"), ValidUntil: &expired},
	))
}

func TestProductRepository(t *testing.T) {
	seed(t)
	ctx := context.Background()
	repo := postgres.NewProductRepository(pool)

	p, err := repo.GetByID(ctx, "P003")
	require.NoError(t, err)
	assert.Equal(t, "手机壳", p.Name)
	assert.True(t, p.Price.Equal(d("99")))
	assert.False(t, p.Eligible)

	_, err = repo.GetByID(ctx, "nope")
	require.ErrorIs(t, err, product.ErrNotFound)

	list, err := repo.GetByIDs(ctx, []string{"P001", "P002", "missing"})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestCustomerRepository(t *testing.T) {
	seed(t)
	ctx := context.Background()
	repo := postgres.NewCustomerRepository(pool)

	c, err := repo.GetByID(ctx, "U001")
	require.NoError(t, err)
	assert.Equal(t, customer.Customer{ID: "U001", Name: "会员用户", Member: true}, *c)

	_, err = repo.GetByID(ctx, "U999")
	require.ErrorIs(t, err, customer.ErrNotFound)
}

func TestCouponRepository(t *testing.T) {
	seed(t)
	ctx := context.Background()
	repo := postgres.NewCouponRepository(pool)

	rule, err := repo.FindByCode(ctx, "c004")
	require.NoError(t, err)
	assert.Equal(t, pricing.KindPercentageDiscount, rule.Kind)
	assert.True(t, rule.Rate.Equal(d("0.9")))
	assert.Nil(t, rule.ValidUntil)

	_, err = repo.FindByCode(ctx, "UNKNOWN")
	require.ErrorIs(t, err, coupon.ErrInvalidCoupon)

	codes, err := repo.ListCodes(ctx)
	require.NoError(t, err)
	assert.Subset(t, codes, []string{"C001", "C002", "C004", "OLD"})
}

func TestCouponFilter_Refresh(t *testing.T) {
	seed(t)
	ctx := context.Background()
	repo := postgres.NewCouponRepository(pool)

	filter := postgres.NewCouponFilter(repo, 1000, 0.001)
	n, err := filter.Refresh(ctx, repo)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 4)

	_, err = filter.FindByCode(ctx, "C001")
	require.NoError(t, err)
	_, err = filter.FindByCode(ctx, "NEVER-SEEN")
	require.ErrorIs(t, err, coupon.ErrInvalidCoupon)
}

func TestQuoteService(t *testing.T) {
	seed(t)
	ctx := context.Background()

	calc, err := pricing.NewCalculator()
	require.NoError(t, err)
	svc, err := quote.NewService(
		postgres.NewProductRepository(pool),
		postgres.NewCustomerRepository(pool),
		coupon.NewRepoResolver(postgres.NewCouponRepository(pool)),
		calc,
	)
	require.NoError(t, err)

	q, err := svc.Quote(ctx, quote.Request{
		CustomerID: "U002",
		Items: []quote.Item{
			{ProductID: "P001", Quantity: 1},
			{ProductID: "P002", Quantity: 1},
			{ProductID: "P003", Quantity: 2},
		},
		CouponCodes: []string{"c004", "C001", "C002"},
	})
	require.NoError(t, err)

	// 7998 * 0.9 = 7198.20, minus 30 and 80, plus 198 ineligible.
	assert.Equal(t, "7286.20", q.Calculation.FinalAmount.StringFixed(2))
	assert.Equal(t, "U002", q.CustomerID)

	_, err = svc.Quote(ctx, quote.Request{
		Items:       []quote.Item{{ProductID: "P001", Quantity: 1}},
		CouponCodes: []string{"OLD"},
	})
	require.ErrorIs(t, err, coupon.ErrCouponExpired)
}
