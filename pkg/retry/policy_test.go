package retry

import (
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
)

func TestDefaultPolicyValid(t *testing.T) {
	if err := DefaultPolicy().Validate(); err != nil {
		t.Errorf("default policy invalid: %v", err)
	}
}

func TestValidateReportsAllFields(t *testing.T) {
	p := Policy{MaxAttempts: 0, Delay: -time.Second, MaxTemperature: 3, MaxTokenBudget: 0, TokenStep: -1}
	err := p.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, field := range []string{"max_attempts", "delay", "max_temperature", "max_token_budget", "token_step"} {
		if !strings.Contains(err.Error(), "retry."+field) {
			t.Errorf("error does not mention %s: %v", field, err)
		}
	}
}

func TestNormalizedFillsDefaults(t *testing.T) {
	p := Policy{}.normalized()
	if p.MaxAttempts != DefaultMaxAttempts || p.MaxTemperature != DefaultMaxTemperature || p.MaxTokenBudget != DefaultMaxTokenBudget {
		t.Errorf("unexpected normalized policy: %+v", p)
	}
	if p.Delay != 0 {
		t.Errorf("zero delay must stay zero, got %s", p.Delay)
	}
}

func TestBackOffSchedules(t *testing.T) {
	constant := Policy{Delay: time.Second, DelayMultiplier: 1}.newBackOff()
	for i := 0; i < 3; i++ {
		if d := constant.NextBackOff(); d != time.Second {
			t.Errorf("constant step %d = %s", i, d)
		}
	}

	expo := Policy{Delay: time.Second, DelayMultiplier: 2, MaxDelay: 3 * time.Second}.newBackOff()
	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}
	for i, w := range want {
		if d := expo.NextBackOff(); d != w {
			t.Errorf("exponential step %d = %s, want %s", i, d, w)
		}
	}

	if d := (Policy{}).newBackOff().NextBackOff(); d != 0 {
		t.Errorf("zero delay should yield 0, got %s", d)
	}
	if d := (Policy{}).newBackOff().NextBackOff(); d == backoff.Stop {
		t.Error("zero delay must not stop")
	}
}
