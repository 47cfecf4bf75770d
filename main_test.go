package main

import (
	"testing"

	"golang.org/x/time/rate"

	"github.com/codecollab/codecollab/config"
)

func TestGatewayConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.RateLimit = 12.5
	cfg.Server.RateBurst = 25

	gc := gatewayConfig(cfg)
	if gc.RateLimit != rate.Limit(12.5) {
		t.Errorf("rate limit = %v, want 12.5", gc.RateLimit)
	}
	if gc.RateBurst != 25 {
		t.Errorf("rate burst = %d, want 25", gc.RateBurst)
	}
}
