package config

import "github.com/fairyhunter13/ai-mock-interview/internal/domain"

// GetRetryPolicy returns the retry policy of the answer indexer.
func (c Config) GetRetryPolicy() domain.RetryPolicy {
	p := domain.DefaultRetryPolicy()
	if c.RetryMaxAttempts > 0 {
		p.MaxAttempts = c.RetryMaxAttempts
	}
	if c.RetryInitialDelay > 0 {
		p.InitialDelay = c.RetryInitialDelay
	}
	if c.RetryMaxDelay > 0 {
		p.MaxDelay = c.RetryMaxDelay
	}
	if c.RetryMultiplier > 0 {
		p.Multiplier = c.RetryMultiplier
	}
	return p
}
