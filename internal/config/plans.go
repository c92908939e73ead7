package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PlanCatalog maps payment-provider price identifiers to local plan names and
// billing intervals. It is the only place a raw price id is interpreted.
type PlanCatalog struct {
	Prices []PlanPrice `mapstructure:"prices"`
}

// PlanPrice binds one provider price id to a plan/interval pair.
type PlanPrice struct {
	PriceID  string `mapstructure:"priceId"`
	Plan     string `mapstructure:"plan"`
	Interval string `mapstructure:"interval"`
}

func DefaultPlanCatalog() PlanCatalog {
	return PlanCatalog{
		Prices: []PlanPrice{
			{PriceID: "price_starter_month", Plan: "starter", Interval: "month"},
			{PriceID: "price_starter_year", Plan: "starter", Interval: "year"},
			{PriceID: "price_pro_month", Plan: "pro", Interval: "month"},
			{PriceID: "price_pro_year", Plan: "pro", Interval: "year"},
		},
	}
}

// PlanCatalogHolder serves the current catalog and hot-reloads it when the
// backing plans.yml changes on disk.
type PlanCatalogHolder struct {
	current atomic.Value // holds PlanCatalog
}

func NewPlanCatalogHolder() (*PlanCatalogHolder, error) {
	v := viper.New()

	v.SetConfigName("plans")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/tenantry/config")
	v.AddConfigPath("/etc/tenantry")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TENANTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultPlanCatalog()
		v.SetDefault("plans.prices", defaults.Prices)
	}

	var catalog PlanCatalog
	if err := v.UnmarshalKey("plans", &catalog); err != nil {
		return nil, err
	}
	if err := validatePlanCatalog(catalog); err != nil {
		return nil, err
	}

	holder := &PlanCatalogHolder{}
	holder.current.Store(catalog)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PlanCatalog
		if err := v.UnmarshalKey("plans", &updated); err != nil {
			log.Printf("[plan-catalog] reload failed: %v", err)
			return
		}
		if err := validatePlanCatalog(updated); err != nil {
			log.Printf("[plan-catalog] invalid catalog ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[plan-catalog] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticPlanCatalogHolder wraps a fixed catalog with no file watching.
func NewStaticPlanCatalogHolder(catalog PlanCatalog) (*PlanCatalogHolder, error) {
	if err := validatePlanCatalog(catalog); err != nil {
		return nil, err
	}
	holder := &PlanCatalogHolder{}
	holder.current.Store(catalog)
	return holder, nil
}

func (h *PlanCatalogHolder) Get() PlanCatalog {
	return h.current.Load().(PlanCatalog)
}

// Resolve returns the plan and interval for a provider price id.
func (c PlanCatalog) Resolve(priceID string) (plan string, interval string, ok bool) {
	priceID = strings.TrimSpace(priceID)
	for _, price := range c.Prices {
		if price.PriceID == priceID {
			return price.Plan, price.Interval, true
		}
	}
	return "", "", false
}

func validatePlanCatalog(catalog PlanCatalog) error {
	if len(catalog.Prices) == 0 {
		return errors.New("plan catalog requires at least one price")
	}
	seen := make(map[string]struct{}, len(catalog.Prices))
	for _, price := range catalog.Prices {
		if strings.TrimSpace(price.PriceID) == "" {
			return errors.New("plan catalog price id must not be empty")
		}
		switch price.Plan {
		case "starter", "pro":
		default:
			return errors.New("plan catalog plan must be starter or pro")
		}
		switch price.Interval {
		case "month", "year":
		default:
			return errors.New("plan catalog interval must be month or year")
		}
		if _, dup := seen[price.PriceID]; dup {
			return errors.New("plan catalog price ids must be unique")
		}
		seen[price.PriceID] = struct{}{}
	}
	return nil
}
