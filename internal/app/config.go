package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (PRICING_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (PRICING_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	MaxInFlight  int    `default:"256" usage:"Max concurrent API requests, 0 disables the limit" flag:"max-in-flight"`
	Pricing      PricingConfig
	CouponFilter CouponFilterConfig
	Graceful     GracefulConfig
}

// PricingConfig controls the discount engine.
type PricingConfig struct {
	MemberRate string `default:"0.95" usage:"Share of the discountable amount members pay" flag:"member-rate"`
	Validate   bool   `default:"true" usage:"Reject negative prices and malformed coupons" flag:"validate"`
}

// CouponFilterConfig sizes the bloom filter in front of coupon lookups.
type CouponFilterConfig struct {
	Enabled  bool          `default:"true" usage:"Reject unknown coupon codes without a database query" flag:"coupon-filter"`
	Capacity uint          `default:"100000" usage:"Expected number of coupon codes" flag:"coupon-filter-capacity"`
	FPRate   float64       `default:"0.001" usage:"Bloom filter false positive rate" flag:"coupon-filter-fp-rate"`
	Refresh  time.Duration `default:"1m" usage:"Coupon filter rebuild interval" flag:"coupon-filter-refresh"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "PRICING",
		Files:     []string{"config.yaml", "/etc/kart-pricing/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set PRICING_DATABASE_URL or DATABASE_URL")
	}
	if _, err := c.Pricing.Rate(); err != nil {
		return err
	}
	if c.CouponFilter.Enabled {
		if c.CouponFilter.FPRate <= 0 || c.CouponFilter.FPRate >= 1 {
			return errors.Errorf("coupon filter fp rate %v outside (0, 1)", c.CouponFilter.FPRate)
		}
		if c.CouponFilter.Refresh <= 0 {
			return errors.New("coupon filter refresh interval must be positive")
		}
	}
	return nil
}

// Rate parses MemberRate.
func (p PricingConfig) Rate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(p.MemberRate)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse member rate %q", p.MemberRate)
	}
	return rate, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's PRICING_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
