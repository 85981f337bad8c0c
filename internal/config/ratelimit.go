package config

import "time"

// RateLimitConfig drives the Redis token bucket in front of the write path.
// KeyStrategy is one of "client", "ip", "client_ip" (default).
type RateLimitConfig struct {
    Enabled        bool
    Capacity       int
    RefillTokens   int
    RefillInterval time.Duration
    TTL            time.Duration
    KeyStrategy    string
    Prefix         string
}

func LoadRateLimitConfig() RateLimitConfig {
    def := RateLimitConfig{
        Enabled:        envBool("RATE_LIMIT_ENABLED", true),
        Capacity:       envInt("RATE_LIMIT_CAPACITY", 120),
        RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 2),
        RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
        TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
        KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "client_ip"),
        Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
    }
    if def.Capacity < 1 { def.Capacity = 1 }
    if def.RefillTokens < 1 { def.RefillTokens = 1 }
    if def.RefillInterval <= 0 { def.RefillInterval = time.Second }
    if minTTL := 5 * def.RefillInterval; def.TTL < minTTL { def.TTL = minTTL }
    return def
}
