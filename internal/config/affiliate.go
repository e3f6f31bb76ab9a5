package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// AffiliateTier is one rung of the commission ladder. A tier applies once an
// affiliate's lifetime settled-sale count reaches MinSales. UnlimitedCoupon
// lifts the coupon usage ceiling entirely; otherwise CouponMaxUses (when set)
// is the floor the ceiling is raised to.
type AffiliateTier struct {
	MinSales        int64   `mapstructure:"minSales"`
	RatePercent     float64 `mapstructure:"ratePercent"`
	CouponMaxUses   *int    `mapstructure:"couponMaxUses"`
	UnlimitedCoupon bool    `mapstructure:"unlimitedCoupon"`
}

type AffiliatePolicyConfig struct {
	DefaultRatePercent  float64         `mapstructure:"defaultRatePercent"`
	FallbackDiscountPct float64         `mapstructure:"fallbackDiscountPct"`
	Tiers               []AffiliateTier `mapstructure:"tiers"`
}

func DefaultAffiliatePolicyConfig() AffiliatePolicyConfig {
	return AffiliatePolicyConfig{
		DefaultRatePercent:  20,
		FallbackDiscountPct: 10,
		Tiers: []AffiliateTier{
			{MinSales: 25, RatePercent: 25, UnlimitedCoupon: true},
			{MinSales: 10, RatePercent: 22, CouponMaxUses: intPtr(25)},
		},
	}
}

func intPtr(v int) *int { return &v }

// AffiliatePolicyHolder exposes the current tier policy and hot-reloads it
// when the config file changes on disk.
type AffiliatePolicyHolder struct {
	current atomic.Value // holds AffiliatePolicyConfig
}

func NewAffiliatePolicyHolder() (*AffiliatePolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("affiliate")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/kadkita/config")
	v.AddConfigPath("/etc/kadkita")
	v.AddConfigPath(".")

	v.SetEnvPrefix("KADKITA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
		defaults := DefaultAffiliatePolicyConfig()
		v.SetDefault("affiliate.defaultRatePercent", defaults.DefaultRatePercent)
		v.SetDefault("affiliate.fallbackDiscountPct", defaults.FallbackDiscountPct)
		v.SetDefault("affiliate.tiers", defaults.Tiers)
	}

	var cfg AffiliatePolicyConfig
	if err := v.UnmarshalKey("affiliate", &cfg); err != nil {
		return nil, err
	}
	if err := validateAffiliatePolicy(cfg); err != nil {
		return nil, err
	}

	holder := &AffiliatePolicyHolder{}
	holder.current.Store(cfg)

	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated AffiliatePolicyConfig
		if err := v.UnmarshalKey("affiliate", &updated); err != nil {
			log.Printf("[affiliate-config] reload failed: %v", err)
			return
		}
		if err := validateAffiliatePolicy(updated); err != nil {
			log.Printf("[affiliate-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[affiliate-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *AffiliatePolicyHolder) Get() AffiliatePolicyConfig {
	return h.current.Load().(AffiliatePolicyConfig)
}

func validateAffiliatePolicy(cfg AffiliatePolicyConfig) error {
	if cfg.DefaultRatePercent <= 0 || cfg.DefaultRatePercent > 100 {
		return errors.New("affiliate.defaultRatePercent must be in (0, 100]")
	}
	if cfg.FallbackDiscountPct < 0 || cfg.FallbackDiscountPct > 100 {
		return errors.New("affiliate.fallbackDiscountPct must be in [0, 100]")
	}
	for _, tier := range cfg.Tiers {
		if tier.MinSales <= 0 {
			return errors.New("affiliate.tiers minSales must be positive")
		}
		if tier.RatePercent <= 0 || tier.RatePercent > 100 {
			return errors.New("affiliate.tiers ratePercent must be in (0, 100]")
		}
	}
	return nil
}
