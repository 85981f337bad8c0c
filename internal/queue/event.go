// Package queue defines message payloads exchanged over the message broker.
package queue

// ScanResultsStoredEvent is published after a submission has been processed.
// It carries only ids and counters; downstream consumers that need the rows
// read them through the sync endpoint.
type ScanResultsStoredEvent struct {
    EventID    string   `json:"event_id"`
    ClientID   string   `json:"client_id"`
    UserID     string   `json:"user_id,omitempty"` // depersonalized
    StoredIDs  []uint64 `json:"stored_ids"`
    Duplicates int      `json:"duplicates"`
    Discarded  int      `json:"discarded"`
    Rejected   int      `json:"rejected"`
    ReceivedAt string   `json:"received_at"`
}

// CompactionFinishedEvent is published when a retention run completes.
type CompactionFinishedEvent struct {
    EventID      string  `json:"event_id"`
    Processed    int     `json:"processed"`
    Moved        int64   `json:"moved"`
    Groups       int     `json:"groups"`
    MaxPerBSSID  int     `json:"max_per_bssid"`
    MeanPerBSSID float64 `json:"mean_per_bssid"`
    DurationMS   int64   `json:"duration_ms"`
    DryRun       bool    `json:"dry_run"`
    FinishedAt   string  `json:"finished_at"`
}
