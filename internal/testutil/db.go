// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openwifi/scan-server/internal/database"
	"github.com/openwifi/scan-server/internal/model"
	"github.com/openwifi/scan-server/internal/repository"
)

// NewSQLite opens a migrated SQLite database in a per-test directory.
func NewSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, repository.Migrate(context.Background(), db, repository.SQLite))
	return db
}

// ScanResult returns a valid scan result for bssid observed at ts.
func ScanResult(cid, bssid string, ts int64) model.ScanResult {
	return model.ScanResult{
		BSSID:     bssid,
		SSID:      "home",
		Timestamp: ts,
		Accuracy:  12.5,
		Location:  model.Location{Lat: 53.87, Lon: 27.54},
		ClientID:  cid,
	}
}

// Clock is a settable time source for TTL tests.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock { return &Clock{now: start} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
