package config

// Redis backs the identity cache, the response cache, the write-path rate
// limiter and the compactor's run lock.  Every consumer degrades when the
// client is nil: the identity cache falls back to process memory, response
// caching and rate limiting switch off, and the compactor runs unlocked.

import (
    "context"
    "crypto/tls"
    "os"
    "time"

    "github.com/redis/go-redis/v9"
    "github.com/rs/zerolog"
)

// NewRedisClient instantiates a Redis client using environment variables:
//   REDIS_ENABLED  – "false" skips Redis entirely
//   REDIS_ADDR     – host:port, or REDIS_HOST + REDIS_PORT (default localhost:6379)
//   REDIS_PASSWORD – optional password
//   REDIS_DB       – database number (default 0)
//   REDIS_TLS      – enable TLS when true
// It returns nil when Redis is disabled or unreachable.
func NewRedisClient(logger zerolog.Logger) *redis.Client {
    if !envBool("REDIS_ENABLED", true) {
        return nil
    }
    addr := envStr("REDIS_ADDR", "localhost:6379")
    if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
        addr = host + ":" + port
    }
    var tlsConf *tls.Config
    if envBool("REDIS_TLS", false) {
        tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
    }
    client := redis.NewClient(&redis.Options{
        Addr:      addr,
        Password:  os.Getenv("REDIS_PASSWORD"),
        DB:        envInt("REDIS_DB", 0),
        TLSConfig: tlsConf,
    })
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        logger.Warn().Err(err).Str("addr", addr).Msg("redis unavailable, continuing without it")
        _ = client.Close()
        return nil
    }
    return client
}
