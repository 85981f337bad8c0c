package config

import (
    "strings"
    "time"
)

// CacheConfig defines settings for the response cache middleware and the
// statistics cache.  When Enabled is false or no Redis client is configured,
// response caching is disabled; the statistics cache is in-process and always
// on.
type CacheConfig struct {
    Enabled      bool
    Methods      map[string]bool
    TTL          time.Duration // response cache entry lifetime
    Prefix       string
    MaxBodyBytes int
    StatsTTL     time.Duration // statistics recompute interval
}

// LoadCacheConfig reads environment variables to build a CacheConfig.  Defaults
// are used when variables are not set.  All methods are upper-cased.
func LoadCacheConfig() CacheConfig {
    cfg := CacheConfig{
        Enabled:      envBool("CACHE_ENABLED", true),
        Methods:      parseMethods(envStr("CACHE_METHODS", "GET")),
        TTL:          envDur("CACHE_TTL", 30*time.Second),
        Prefix:       envStr("CACHE_PREFIX", "cache"),
        MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
        StatsTTL:     envDur("STATS_TTL", time.Hour),
    }
    if cfg.StatsTTL <= 0 {
        cfg.StatsTTL = time.Hour
    }
    return cfg
}

func parseMethods(s string) map[string]bool {
    m := map[string]bool{}
    for _, p := range strings.Split(s, ",") {
        p = strings.TrimSpace(strings.ToUpper(p))
        if p != "" {
            m[p] = true
        }
    }
    return m
}
