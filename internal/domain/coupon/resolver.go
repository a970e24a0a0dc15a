package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-pricing/internal/domain/pricing"
)

// Resolver turns coupon codes into engine coupons.
type Resolver interface {
	Resolve(ctx context.Context, codes []string) ([]pricing.Coupon, error)
}

// RepoResolver implements Resolver by looking up coupon rules from a
// Repository and checking their validity window and usage limit.
type RepoResolver struct {
	repo Repository
	now  func() time.Time
}

// NewRepoResolver creates a RepoResolver backed by the given Repository.
func NewRepoResolver(repo Repository) *RepoResolver {
	return &RepoResolver{repo: repo, now: time.Now}
}

// Lookup returns the rule for code if it is currently redeemable.
func (r *RepoResolver) Lookup(ctx context.Context, code string) (*Rule, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, errors.Wrap(ErrInvalidCoupon, "empty code")
	}

	rule, err := r.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrInvalidCoupon) {
			return nil, errors.Wrapf(ErrInvalidCoupon, "coupon %s", code)
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	now := r.now()
	if rule.ValidFrom != nil && now.Before(*rule.ValidFrom) {
		return nil, errors.Wrapf(ErrCouponExpired, "coupon %s not valid before %s", code, rule.ValidFrom.Format(time.RFC3339))
	}
	if rule.ValidUntil != nil && now.After(*rule.ValidUntil) {
		return nil, errors.Wrapf(ErrCouponExpired, "coupon %s", code)
	}
	if rule.MaxUses > 0 && rule.Uses >= rule.MaxUses {
		return nil, errors.Wrapf(ErrCouponUsageLimitReached, "coupon %s", code)
	}

	return rule, nil
}

// Resolve looks up every distinct code, preserving the order of first
// occurrence. Any rejected code fails the whole call. Usage counters are not
// touched: a quote is not a redemption.
func (r *RepoResolver) Resolve(ctx context.Context, codes []string) ([]pricing.Coupon, error) {
	seen := make(map[string]struct{}, len(codes))
	coupons := make([]pricing.Coupon, 0, len(codes))
	for _, code := range codes {
		key := NormalizeCode(code)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		rule, err := r.Lookup(ctx, key)
		if err != nil {
			return nil, err
		}
		c, err := rule.Coupon()
		if err != nil {
			return nil, err
		}
		coupons = append(coupons, c)
	}
	return coupons, nil
}
