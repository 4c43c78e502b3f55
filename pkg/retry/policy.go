package retry

import (
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Default policy values.
const (
	DefaultMaxAttempts     = 3
	DefaultDelay           = time.Second
	DefaultTemperatureStep = 0.1
	DefaultMaxTemperature  = 1.0
	DefaultTokenStep       = 50
	DefaultMaxTokenBudget  = 1000
)

// Policy bounds and shapes the retries of one ply.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`

	// Delay is the pause before the first retry. Zero disables the pause.
	Delay time.Duration `yaml:"delay" json:"delay"`

	// DelayMultiplier grows the pause between consecutive retries. Values
	// of 1 or less keep it constant.
	DelayMultiplier float64 `yaml:"delay_multiplier" json:"delay_multiplier"`

	// MaxDelay caps a growing pause. Zero means 30 times Delay.
	MaxDelay time.Duration `yaml:"max_delay" json:"max_delay"`

	TemperatureStep float64 `yaml:"temperature_step" json:"temperature_step"`
	MaxTemperature  float64 `yaml:"max_temperature" json:"max_temperature"`
	TokenStep       int     `yaml:"token_step" json:"token_step"`
	MaxTokenBudget  int     `yaml:"max_token_budget" json:"max_token_budget"`
}

// DefaultPolicy returns three attempts one second apart with 0.1/50 steps
// capped at 1.0/1000.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     DefaultMaxAttempts,
		Delay:           DefaultDelay,
		DelayMultiplier: 1,
		TemperatureStep: DefaultTemperatureStep,
		MaxTemperature:  DefaultMaxTemperature,
		TokenStep:       DefaultTokenStep,
		MaxTokenBudget:  DefaultMaxTokenBudget,
	}
}

// Validate reports every invalid field.
func (p Policy) Validate() error {
	var errs []error
	if p.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be at least 1, got %d", p.MaxAttempts))
	}
	if p.Delay < 0 {
		errs = append(errs, fmt.Errorf("retry.delay must not be negative, got %s", p.Delay))
	}
	if p.MaxDelay < 0 {
		errs = append(errs, fmt.Errorf("retry.max_delay must not be negative, got %s", p.MaxDelay))
	}
	if p.DelayMultiplier < 0 {
		errs = append(errs, fmt.Errorf("retry.delay_multiplier must not be negative, got %g", p.DelayMultiplier))
	}
	if p.TemperatureStep < 0 {
		errs = append(errs, fmt.Errorf("retry.temperature_step must not be negative, got %g", p.TemperatureStep))
	}
	if p.MaxTemperature <= 0 || p.MaxTemperature > 2 {
		errs = append(errs, fmt.Errorf("retry.max_temperature must be in (0, 2], got %g", p.MaxTemperature))
	}
	if p.TokenStep < 0 {
		errs = append(errs, fmt.Errorf("retry.token_step must not be negative, got %d", p.TokenStep))
	}
	if p.MaxTokenBudget <= 0 {
		errs = append(errs, fmt.Errorf("retry.max_token_budget must be positive, got %d", p.MaxTokenBudget))
	}
	return errors.Join(errs...)
}

// normalized replaces unusable values with defaults so a Controller can
// always be built.
func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts < 1 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	if p.MaxDelay < 0 {
		p.MaxDelay = 0
	}
	if p.TemperatureStep < 0 {
		p.TemperatureStep = 0
	}
	if p.MaxTemperature <= 0 {
		p.MaxTemperature = d.MaxTemperature
	}
	if p.TokenStep < 0 {
		p.TokenStep = 0
	}
	if p.MaxTokenBudget <= 0 {
		p.MaxTokenBudget = d.MaxTokenBudget
	}
	return p
}

// newBackOff builds the inter-attempt schedule.
func (p Policy) newBackOff() backoff.BackOff {
	if p.Delay <= 0 {
		return &backoff.ZeroBackOff{}
	}
	if p.DelayMultiplier <= 1 {
		return backoff.NewConstantBackOff(p.Delay)
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = p.Delay
	expo.Multiplier = p.DelayMultiplier
	expo.RandomizationFactor = 0
	expo.MaxElapsedTime = 0
	expo.MaxInterval = p.MaxDelay
	if expo.MaxInterval == 0 {
		expo.MaxInterval = 30 * p.Delay
	}
	expo.Reset()
	return expo
}
