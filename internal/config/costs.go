package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// CostConfig holds the tunable cost parameters of the engine: fixed monthly
// subscription costs, the USD to EUR reporting rate, alerting thresholds and
// unit-economics targets.
type CostConfig struct {
	InstantlyMonthlyCost       float64 `mapstructure:"instantlyMonthlyCost"`
	GoogleWorkspaceMonthlyCost float64 `mapstructure:"googleWorkspaceMonthlyCost"`
	USDToEURRate               float64 `mapstructure:"usdToEurRate"`
	CostAlertThreshold         float64 `mapstructure:"costAlertThreshold"`
	TargetCostPerEmail         float64 `mapstructure:"targetCostPerEmail"`
	TargetCostPerMeeting       float64 `mapstructure:"targetCostPerMeeting"`
	CacheTTLSeconds            int     `mapstructure:"cacheTtlSeconds"`
}

func DefaultCostConfig() CostConfig {
	return CostConfig{
		InstantlyMonthlyCost:       75,
		GoogleWorkspaceMonthlyCost: 48,
		USDToEURRate:               0.92,
		CostAlertThreshold:         200,
		TargetCostPerEmail:         0.10,
		TargetCostPerMeeting:       5.00,
		CacheTTLSeconds:            60,
	}
}

func (c CostConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

type CostConfigHolder struct {
	current atomic.Value // holds CostConfig
}

// NewCostConfigHolder loads cost parameters from an optional costs.yml file
// and keeps them hot-reloadable. Missing file means defaults.
func NewCostConfigHolder() (*CostConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("costs")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/costwatch/config")
	v.AddConfigPath("/etc/costwatch")
	v.AddConfigPath(".")

	v.SetEnvPrefix("COSTWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultCostConfig()
	v.SetDefault("costs.instantlyMonthlyCost", defaults.InstantlyMonthlyCost)
	v.SetDefault("costs.googleWorkspaceMonthlyCost", defaults.GoogleWorkspaceMonthlyCost)
	v.SetDefault("costs.usdToEurRate", defaults.USDToEURRate)
	v.SetDefault("costs.costAlertThreshold", defaults.CostAlertThreshold)
	v.SetDefault("costs.targetCostPerEmail", defaults.TargetCostPerEmail)
	v.SetDefault("costs.targetCostPerMeeting", defaults.TargetCostPerMeeting)
	v.SetDefault("costs.cacheTtlSeconds", defaults.CacheTTLSeconds)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg CostConfig
	if err := v.UnmarshalKey("costs", &cfg); err != nil {
		return nil, err
	}
	if err := validateCostConfig(cfg); err != nil {
		return nil, err
	}

	holder := &CostConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated CostConfig
		if err := v.UnmarshalKey("costs", &updated); err != nil {
			log.Printf("[cost-config] reload failed: %v", err)
			return
		}
		if err := validateCostConfig(updated); err != nil {
			log.Printf("[cost-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[cost-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticCostConfigHolder wraps a fixed config, used by tests.
func NewStaticCostConfigHolder(cfg CostConfig) *CostConfigHolder {
	holder := &CostConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *CostConfigHolder) Get() CostConfig {
	return h.current.Load().(CostConfig)
}

func validateCostConfig(cfg CostConfig) error {
	if cfg.USDToEURRate <= 0 {
		return errors.New("costs.usdToEurRate must be positive")
	}
	if cfg.CacheTTLSeconds <= 0 {
		return errors.New("costs.cacheTtlSeconds must be positive")
	}
	if cfg.InstantlyMonthlyCost < 0 || cfg.GoogleWorkspaceMonthlyCost < 0 {
		return errors.New("costs fixed monthly costs cannot be negative")
	}
	if cfg.TargetCostPerEmail < 0 || cfg.TargetCostPerMeeting < 0 {
		return errors.New("costs targets cannot be negative")
	}
	return nil
}
