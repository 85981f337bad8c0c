package queue

import (
    "encoding/json"
    "os"
    "path/filepath"
    "strings"
    "testing"

    "github.com/rs/zerolog"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/openwifi/scan-server/internal/config"
)

func newTestConsumer(t *testing.T) (*AuditConsumer, string) {
    t.Helper()
    path := filepath.Join(t.TempDir(), "logs", "ingest.log")
    cfg := config.QueueConfig{
        StoredQueue:     "scan_results.stored",
        CompactionQueue: "scan_results.compacted",
        AuditLogPath:    path,
    }
    return NewAuditConsumer(cfg, zerolog.Nop()), path
}

func TestHandleAppendsOneLinePerEvent(t *testing.T) {
    a, path := newTestConsumer(t)

    stored, err := json.Marshal(ScanResultsStoredEvent{
        EventID: "e1", ClientID: "c1", StoredIDs: []uint64{1, 2}, Duplicates: 1, ReceivedAt: "2026-01-01T00:00:00Z",
    })
    require.NoError(t, err)
    compacted, err := json.Marshal(CompactionFinishedEvent{
        EventID: "e2", Processed: 18, Moved: 5, Groups: 2, MaxPerBSSID: 15, MeanPerBSSID: 9, FinishedAt: "2026-01-01T01:00:00Z",
    })
    require.NoError(t, err)

    require.NoError(t, a.Handle("scan_results.stored", stored))
    require.NoError(t, a.Handle("scan_results.compacted", compacted))

    raw, err := os.ReadFile(path)
    require.NoError(t, err)
    lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
    require.Len(t, lines, 2)
    assert.Contains(t, lines[0], `client="c1"`)
    assert.Contains(t, lines[0], "stored=2")
    assert.Contains(t, lines[0], "user=-")
    assert.Contains(t, lines[1], "moved=5")
    assert.Contains(t, lines[1], "mean_per_bssid=9.00")
}

func TestHandleRejectsBadPayloads(t *testing.T) {
    a, path := newTestConsumer(t)

    assert.Error(t, a.Handle("scan_results.stored", []byte("{")))
    assert.Error(t, a.Handle("other", []byte("{}")))
    _, err := os.Stat(path)
    assert.True(t, os.IsNotExist(err))
}

func TestNewPublisherDisabledIsNop(t *testing.T) {
    p := NewPublisher(config.QueueConfig{Enabled: false}, zerolog.Nop())
    assert.IsType(t, Nop{}, p)
}
