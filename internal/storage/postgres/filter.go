package postgres

import (
	"context"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/xenking/kart-pricing/internal/domain/coupon"
)

// CodeLister lists every active coupon code.
type CodeLister interface {
	ListCodes(ctx context.Context) ([]string, error)
}

var _ coupon.Repository = (*CouponFilter)(nil)

// CouponFilter is a negative cache in front of a coupon.Repository. Codes the
// bloom filter has never seen are rejected without a database round trip.
// Until the first Refresh every lookup is passed through.
//
// Coupons created after the last Refresh are rejected until the next one, so
// callers refresh periodically.
type CouponFilter struct {
	next     coupon.Repository
	capacity uint
	fpRate   float64

	mu          sync.RWMutex
	filter      *bloom.BloomFilter
	refreshedAt time.Time
}

// NewCouponFilter wraps next with a bloom filter sized for capacity codes at
// the given false positive rate.
func NewCouponFilter(next coupon.Repository, capacity uint, fpRate float64) *CouponFilter {
	return &CouponFilter{next: next, capacity: capacity, fpRate: fpRate}
}

// FindByCode implements coupon.Repository.
func (f *CouponFilter) FindByCode(ctx context.Context, code string) (*coupon.Rule, error) {
	if !f.mayContain(coupon.NormalizeCode(code)) {
		return nil, coupon.ErrInvalidCoupon
	}
	return f.next.FindByCode(ctx, code)
}

func (f *CouponFilter) mayContain(code string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.filter == nil {
		return true
	}
	return f.filter.TestString(code)
}

// Refresh rebuilds the filter from the codes src lists. On error the previous
// filter is kept.
func (f *CouponFilter) Refresh(ctx context.Context, src CodeLister) (int, error) {
	codes, err := src.ListCodes(ctx)
	if err != nil {
		return 0, err
	}
	f.Reset(codes)
	return len(codes), nil
}

// Reset replaces the filter contents with codes.
func (f *CouponFilter) Reset(codes []string) {
	capacity := f.capacity
	if n := uint(len(codes)); n > capacity {
		capacity = n
	}
	bf := bloom.NewWithEstimates(capacity, f.fpRate)
	for _, c := range codes {
		bf.AddString(coupon.NormalizeCode(c))
	}

	f.mu.Lock()
	f.filter = bf
	f.refreshedAt = time.Now()
	f.mu.Unlock()
}

// RefreshedAt returns when the filter was last rebuilt, or the zero time.
func (f *CouponFilter) RefreshedAt() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.refreshedAt
}

// Add records a newly created code without a full rebuild.
func (f *CouponFilter) Add(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.filter != nil {
		f.filter.AddString(coupon.NormalizeCode(code))
	}
}
