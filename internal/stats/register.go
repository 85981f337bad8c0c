package stats

import (
	"context"
)

// LiveCounter is the slice of the live store the built-in statistics read.
type LiveCounter interface {
	Count(ctx context.Context) (int64, error)
	CountDistinct(ctx context.Context, column string) (int64, error)
}

// ArchiveCounter counts archived rows.
type ArchiveCounter interface {
	Count(ctx context.Context) (int64, error)
}

// RegisterDefaults installs the statistics served by /api/stats/.
func RegisterDefaults(c *Cache, live LiveCounter, archive ArchiveCounter) {
	c.Register("scan_results", live.Count)
	c.Register("archived", archive.Count)
	for name, column := range map[string]string{"bssids": "bssid", "ssids": "ssid", "clients": "cid"} {
		c.Register(name, func(ctx context.Context) (int64, error) {
			return live.CountDistinct(ctx, column)
		})
	}
}
