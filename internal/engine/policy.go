package engine

import (
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/rishimeka/astro/pkg/domain"
)

// RetryPolicy bounds the execution attempts of a single node. Delays grow
// exponentially from BaseDelay and are capped at MaxDelay.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy is applied to nodes without a policy of their own.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   500 * time.Millisecond,
	MaxDelay:    10 * time.Second,
}

// Backoff returns the delay before retry number attempt (1-based): base for
// the first retry, doubling after, capped at MaxDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay << (attempt - 1)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// starSettings are the engine-relevant keys of a star's loose Config map.
// Unknown keys are ignored; probe-bound stars carry their probe arguments in
// the same map.
type starSettings struct {
	ConfirmationPrompt string `mapstructure:"confirmation_prompt"`
	MaxAttempts        int    `mapstructure:"max_attempts"`
	BaseDelay          string `mapstructure:"base_delay"`
	MaxDelay           string `mapstructure:"max_delay"`
}

// decodeSettings extracts engine settings from a star config. Decode errors
// and unparsable durations fall back to zero values; the engine default then
// applies.
func decodeSettings(config map[string]any) starSettings {
	var s starSettings
	if config == nil {
		return s
	}
	_ = mapstructure.Decode(config, &s)
	return s
}

// policyFor resolves the retry policy of one star, layering its config
// overrides on the engine default.
func policyFor(base RetryPolicy, star domain.Star) RetryPolicy {
	s := decodeSettings(star.Config)

	p := base
	if s.MaxAttempts > 0 {
		p.MaxAttempts = s.MaxAttempts
	}
	if d, err := time.ParseDuration(s.BaseDelay); err == nil && d > 0 {
		p.BaseDelay = d
	}
	if d, err := time.ParseDuration(s.MaxDelay); err == nil && d > 0 {
		p.MaxDelay = d
	}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	return p
}
