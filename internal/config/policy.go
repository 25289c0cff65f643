package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PolicyConfig carries the tunable business rules: violation penalties,
// commission rate, and payout thresholds. Values ship with product defaults
// and may be overridden by a policy.yml next to the binary.
type PolicyConfig struct {
	AttemptPenalty       int     `mapstructure:"attemptPenalty"`
	ManualDisablePenalty int     `mapstructure:"manualDisablePenalty"`
	StreakResetDrop      int     `mapstructure:"streakResetDrop"`
	RecoveryPoints       int     `mapstructure:"recoveryPoints"`
	CommissionRate       float64 `mapstructure:"commissionRate"`
	MinPayoutCents       int64   `mapstructure:"minPayoutCents"`
	ReferralWindowDays   int     `mapstructure:"referralWindowDays"`
}

func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		AttemptPenalty:       5,
		ManualDisablePenalty: 25,
		StreakResetDrop:      10,
		RecoveryPoints:       1,
		CommissionRate:       0.30,
		MinPayoutCents:       1000,
		ReferralWindowDays:   30,
	}
}

type PolicyHolder struct {
	current atomic.Value // holds PolicyConfig
}

// NewPolicyHolder loads policy.yml when present and watches it for changes.
// Invalid updates are ignored so a bad edit cannot take the running policy down.
func NewPolicyHolder() (*PolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("policy")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/steadfast")
	v.AddConfigPath(".")

	v.SetEnvPrefix("STEADFAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPolicyConfig()
	v.SetDefault("policy.attemptPenalty", defaults.AttemptPenalty)
	v.SetDefault("policy.manualDisablePenalty", defaults.ManualDisablePenalty)
	v.SetDefault("policy.streakResetDrop", defaults.StreakResetDrop)
	v.SetDefault("policy.recoveryPoints", defaults.RecoveryPoints)
	v.SetDefault("policy.commissionRate", defaults.CommissionRate)
	v.SetDefault("policy.minPayoutCents", defaults.MinPayoutCents)
	v.SetDefault("policy.referralWindowDays", defaults.ReferralWindowDays)

	watch := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		watch = false
	}

	var cfg PolicyConfig
	if err := v.UnmarshalKey("policy", &cfg); err != nil {
		return nil, err
	}
	if err := validatePolicyConfig(cfg); err != nil {
		return nil, err
	}

	holder := &PolicyHolder{}
	holder.current.Store(cfg)

	if watch {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated PolicyConfig
			if err := v.UnmarshalKey("policy", &updated); err != nil {
				log.Printf("[policy-config] reload failed: %v", err)
				return
			}
			if err := validatePolicyConfig(updated); err != nil {
				log.Printf("[policy-config] invalid config ignored: %v", err)
				return
			}
			holder.current.Store(updated)
			log.Printf("[policy-config] reloaded from %s", e.Name)
		})
	}

	return holder, nil
}

func (h *PolicyHolder) Get() PolicyConfig {
	return h.current.Load().(PolicyConfig)
}

// NewStaticPolicyHolder returns a holder pinned to cfg. Test helper.
func NewStaticPolicyHolder(cfg PolicyConfig) *PolicyHolder {
	holder := &PolicyHolder{}
	holder.current.Store(cfg)
	return holder
}

func validatePolicyConfig(cfg PolicyConfig) error {
	if cfg.AttemptPenalty <= 0 || cfg.ManualDisablePenalty <= 0 {
		return errors.New("policy: penalties must be positive")
	}
	if cfg.CommissionRate <= 0 || cfg.CommissionRate >= 1 {
		return errors.New("policy: commissionRate must be in (0,1)")
	}
	if cfg.MinPayoutCents <= 0 {
		return errors.New("policy: minPayoutCents must be positive")
	}
	if cfg.ReferralWindowDays <= 0 {
		return errors.New("policy: referralWindowDays must be positive")
	}
	return nil
}
