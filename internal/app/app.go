package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-pricing/internal/domain/coupon"
	"github.com/xenking/kart-pricing/internal/domain/pricing"
	"github.com/xenking/kart-pricing/internal/domain/quote"
	"github.com/xenking/kart-pricing/internal/handler"
	"github.com/xenking/kart-pricing/internal/storage/postgres"
	"github.com/xenking/kart-pricing/pkg/health"
	"github.com/xenking/kart-pricing/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New()
	healthSvc.Add(health.Readiness, "postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.Add(health.Liveness, "goroutines", time.Second, health.GoroutineCountCheck(10000))

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	customerRepo := postgres.NewCustomerRepository(pool)
	couponRepo := postgres.NewCouponRepository(pool)

	var coupons coupon.Repository = couponRepo
	var filter *postgres.CouponFilter
	if fc := cfg.CouponFilter; fc.Enabled {
		filter = postgres.NewCouponFilter(couponRepo, fc.Capacity, fc.FPRate)
		n, err := filter.Refresh(ctx, couponRepo)
		if err != nil {
			return errors.Wrap(err, "warm coupon filter")
		}
		lg.Info("Coupon filter warmed", zap.Int("codes", n))
		coupons = filter
		healthSvc.Add(health.Readiness, "coupon-filter", time.Second,
			health.StalenessCheck(filter.RefreshedAt, 3*fc.Refresh))
	}

	// Domain services.
	rate, err := cfg.Pricing.Rate()
	if err != nil {
		return err
	}
	calc, err := pricing.NewCalculator(
		pricing.WithMemberRate(rate),
		pricing.WithValidation(cfg.Pricing.Validate),
	)
	if err != nil {
		return errors.Wrap(err, "create calculator")
	}
	resolver := coupon.NewRepoResolver(coupons)
	quoteService, err := quote.NewService(productRepo, customerRepo, resolver, calc,
		quote.WithTracerProvider(m.TracerProvider()),
		quote.WithMeterProvider(m.MeterProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "create quote service")
	}

	router := handler.NewRouter(
		handler.RouterConfig{MaxInFlight: cfg.MaxInFlight},
		lg,
		handler.NewHandler(quoteService, resolver),
		healthSvc,
	)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Instrument("kart-pricing", m.TracerProvider(), m.MeterProvider()),
		),
	}

	healthSvc.Start(ctx, 10*time.Second)
	defer healthSvc.Stop()
	healthSvc.SetReady(true)

	g, gctx := errgroup.WithContext(ctx)
	if filter != nil {
		g.Go(func() error {
			refreshCoupons(gctx, lg, filter, couponRepo, cfg.CouponFilter.Refresh)
			return nil
		})
	}
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	// Graceful shutdown: wait for cancellation, drain, then stop.
	g.Go(func() error {
		<-gctx.Done()
		healthSvc.SetReady(false)
		if ctx.Err() != nil {
			lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
			time.Sleep(cfg.Graceful.ReadinessDelay)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})

	return g.Wait()
}

// refreshCoupons rebuilds the coupon filter every interval until ctx is done.
// Failures keep the previous filter; the readiness probe reports it once it
// goes stale.
func refreshCoupons(ctx context.Context, lg *zap.Logger, f *postgres.CouponFilter, src postgres.CodeLister, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := f.Refresh(ctx, src)
			if err != nil {
				if ctx.Err() == nil {
					lg.Warn("Coupon filter refresh failed", zap.Error(err))
				}
				continue
			}
			lg.Debug("Coupon filter refreshed", zap.Int("codes", n))
		}
	}
}
