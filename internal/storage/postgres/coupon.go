package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-pricing/internal/domain/coupon"
	"github.com/xenking/kart-pricing/internal/domain/pricing"
)

const (
	getCouponByCodeSQL = `SELECT code, name, kind, threshold, amount, rate,
		valid_from, valid_until, max_uses, uses
		FROM coupons WHERE UPPER(code) = UPPER($1) AND active = TRUE`

	listCouponCodesSQL = `SELECT UPPER(code) FROM coupons WHERE active = TRUE`

	upsertCouponSQL = `INSERT INTO coupons (code, name, kind, threshold, amount, rate,
			valid_from, valid_until, max_uses, uses, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			kind = EXCLUDED.kind,
			threshold = EXCLUDED.threshold,
			amount = EXCLUDED.amount,
			rate = EXCLUDED.rate,
			valid_from = EXCLUDED.valid_from,
			valid_until = EXCLUDED.valid_until,
			max_uses = EXCLUDED.max_uses,
			active = TRUE`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up an active coupon by its code (case-insensitive).
// Returns coupon.ErrInvalidCoupon when no matching active coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Rule, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanCouponRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrInvalidCoupon
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &rule, nil
}

// ListCodes returns the upper-cased codes of every active coupon.
func (r *CouponRepository) ListCodes(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, listCouponCodesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupon codes: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// Upsert inserts or replaces the given rules in one batch. Usage counters of
// existing coupons are preserved.
func (r *CouponRepository) Upsert(ctx context.Context, rules ...coupon.Rule) error {
	batch := &pgx.Batch{}
	for _, c := range rules {
		batch.Queue(upsertCouponSQL,
			c.Code, c.Name, string(c.Kind), c.Threshold, c.Amount, c.Rate,
			c.ValidFrom, c.ValidUntil, c.MaxUses, c.Uses,
		)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upserting coupons: %w", err)
	}
	return nil
}

func scanCouponRule(row pgx.CollectableRow) (coupon.Rule, error) {
	var (
		rule    coupon.Rule
		kind    string
		maxUses int32
		uses    int32
	)
	err := row.Scan(
		&rule.Code, &rule.Name, &kind, &rule.Threshold, &rule.Amount, &rule.Rate,
		&rule.ValidFrom, &rule.ValidUntil, &maxUses, &uses,
	)
	rule.Kind = pricing.CouponKind(kind)
	rule.MaxUses = int(maxUses)
	rule.Uses = int(uses)
	return rule, err
}
