// Package quote prices a cart of catalog products for a customer without
// placing an order.
package quote

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/kart-pricing/internal/domain/coupon"
	"github.com/xenking/kart-pricing/internal/domain/customer"
	"github.com/xenking/kart-pricing/internal/domain/pricing"
	"github.com/xenking/kart-pricing/internal/domain/product"
)

const instrumentationName = "github.com/xenking/kart-pricing/internal/domain/quote"

// ErrEmptyItems is returned for a quote request without items.
var ErrEmptyItems = errors.New("items required")

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// Item is a requested cart line.
type Item struct {
	ProductID string
	Quantity  int
}

// Request holds the input for a quote. An empty CustomerID prices the cart
// for a guest.
type Request struct {
	CustomerID  string
	Items       []Item
	CouponCodes []string
}

// Quote is a priced cart. Quotes are not persisted.
type Quote struct {
	ID          uuid.UUID
	CustomerID  string
	Calculation *pricing.OrderCalculation
	CreatedAt   time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithTracerProvider sets the provider used for quote spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		s.tracer = tp.Tracer(instrumentationName)
	}
}

// WithMeterProvider sets the provider used for quote metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) {
		s.meter = mp.Meter(instrumentationName)
	}
}

// Service resolves quote requests into engine inputs and prices them.
type Service struct {
	products  product.Repository
	customers customer.Repository
	coupons   coupon.Resolver
	calc      *pricing.Calculator
	now       func() time.Time

	tracer    trace.Tracer
	meter     metric.Meter
	quotes    metric.Int64Counter
	discounts metric.Float64Histogram
}

// NewService creates a quote Service with the required domain dependencies.
func NewService(
	products product.Repository,
	customers customer.Repository,
	coupons coupon.Resolver,
	calc *pricing.Calculator,
	opts ...Option,
) (*Service, error) {
	s := &Service{
		products:  products,
		customers: customers,
		coupons:   coupons,
		calc:      calc,
		now:       time.Now,
		tracer:    otel.GetTracerProvider().Tracer(instrumentationName),
		meter:     otel.GetMeterProvider().Meter(instrumentationName),
	}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	if s.quotes, err = s.meter.Int64Counter("pricing.quotes",
		metric.WithDescription("Number of priced quotes"),
	); err != nil {
		return nil, errors.Wrap(err, "quotes counter")
	}
	if s.discounts, err = s.meter.Float64Histogram("pricing.quote.discount",
		metric.WithUnit("CNY"),
		metric.WithDescription("Total discount granted per quote"),
	); err != nil {
		return nil, errors.Wrap(err, "discount histogram")
	}
	return s, nil
}

// Quote validates items, fetches products in a single batch, resolves the
// customer and coupons, and prices the cart.
func (s *Service) Quote(ctx context.Context, req Request) (_ *Quote, rerr error) {
	ctx, span := s.tracer.Start(ctx, "quote.Quote",
		trace.WithAttributes(
			attribute.Int("quote.items", len(req.Items)),
			attribute.Int("quote.coupons", len(req.CouponCodes)),
		),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	lines, err := s.lines(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	user := customer.Guest
	if req.CustomerID != "" {
		c, err := s.customers.GetByID(ctx, req.CustomerID)
		if err != nil {
			return nil, errors.Wrap(err, "get customer")
		}
		user = c.User()
	}

	coupons, err := s.coupons.Resolve(ctx, req.CouponCodes)
	if err != nil {
		zctx.From(ctx).Warn("Coupon rejected",
			zap.Strings("codes", req.CouponCodes),
			zap.Error(err),
		)
		return nil, errors.Wrap(err, "resolve coupons")
	}

	calc, err := s.calc.Calculate(lines, user, coupons)
	if err != nil {
		return nil, errors.Wrap(err, "calculate")
	}

	q := &Quote{
		ID:          uuid.New(),
		CustomerID:  req.CustomerID,
		Calculation: calc,
		CreatedAt:   s.now(),
	}

	attrs := metric.WithAttributes(attribute.Bool("member", user.Member))
	s.quotes.Add(ctx, 1, attrs)
	s.discounts.Record(ctx, calc.TotalDiscount.InexactFloat64(), attrs)
	span.SetAttributes(attribute.String("quote.id", q.ID.String()))

	zctx.From(ctx).Debug("Quote priced",
		zap.Stringer("id", q.ID),
		zap.String("customer", req.CustomerID),
		zap.Stringer("total_discount", calc.TotalDiscount),
		zap.Stringer("final_amount", calc.FinalAmount),
	)

	return q, nil
}

// lines resolves requested items into priced cart lines, in request order.
func (s *Service) lines(ctx context.Context, items []Item) ([]pricing.Product, error) {
	ids := make([]string, len(items))
	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		ids[i] = item.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}

	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	lines := make([]pricing.Product, len(items))
	for i, item := range items {
		p, ok := byID[item.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		lines[i] = p.Line(item.Quantity)
	}
	return lines, nil
}
