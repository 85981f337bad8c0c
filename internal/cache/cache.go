// Package cache provides the key/value stores behind the identity cache.
// Both implementations are safe for concurrent use; concurrent writers to one
// key resolve last-writer-wins.
package cache

import (
	"context"
	"time"
)

// Store is a string key/value store with per-entry expiry.
type Store interface {
	// Get reports ok=false for a missing or expired key.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set stores value for ttl; ttl must be positive.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}
