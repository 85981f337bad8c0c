// Package retention bounds live history per access point.  For every BSSID
// the most recent Keep observations stay in scan_results; older ones are
// moved, never erased, to old_scan_results.
package retention

import (
    "context"
    "errors"
    "fmt"
    "time"

    "github.com/google/uuid"
    "github.com/rs/zerolog"

    "github.com/openwifi/scan-server/internal/model"
    "github.com/openwifi/scan-server/internal/queue"
)

// Archive is the slice of the record store the compactor works on.
type Archive interface {
    ForEachBSSID(ctx context.Context, fn func(bssid string, obs []model.Observation)) error
    MoveToArchive(ctx context.Context, ids []uint64) (int64, error)
}

// Options tune one compaction run.
type Options struct {
    Keep      int
    BatchSize int
    DryRun    bool
}

// Report summarizes a run.
type Report struct {
    Processed    int     // live rows examined
    Moved        int64   // rows moved to the archive
    Groups       int     // distinct BSSIDs
    MaxPerBSSID  int     // largest group seen
    MeanPerBSSID float64 // Processed / Groups
    Elapsed      time.Duration
    DryRun       bool
}

type Compactor struct {
    archive   Archive
    locker    Locker
    publisher queue.Publisher
    queueName string
    log       zerolog.Logger
    now       func() time.Time
}

func NewCompactor(a Archive, l Locker, pub queue.Publisher, queueName string, log zerolog.Logger) *Compactor {
    if l == nil {
        l = NoLock{}
    }
    if pub == nil {
        pub = queue.Nop{}
    }
    return &Compactor{archive: a, locker: l, publisher: pub, queueName: queueName, log: log, now: time.Now}
}

// Run performs one compaction.  Aggregation runs to completion before any
// row is moved, so a failure while reading leaves both tables untouched.  A
// failure while moving leaves earlier batches committed; rerunning finishes
// the job.
func (c *Compactor) Run(ctx context.Context, opts Options) (Report, error) {
    if opts.Keep < 1 {
        return Report{}, fmt.Errorf("keep must be at least 1, got %d", opts.Keep)
    }
    if opts.BatchSize < 1 {
        opts.BatchSize = 500
    }

    release, err := c.locker.Acquire(ctx)
    if err != nil {
        return Report{}, err
    }
    defer release()

    start := c.now()
    rep := Report{DryRun: opts.DryRun}
    var stale []uint64

    err = c.archive.ForEachBSSID(ctx, func(bssid string, obs []model.Observation) {
        rep.Groups++
        rep.Processed += len(obs)
        if len(obs) > rep.MaxPerBSSID {
            rep.MaxPerBSSID = len(obs)
        }
        if len(obs) > opts.Keep {
            for _, o := range obs[opts.Keep:] {
                stale = append(stale, o.ID)
            }
        }
    })
    if err != nil {
        return Report{}, fmt.Errorf("aggregate: %w", err)
    }
    if rep.Groups > 0 {
        rep.MeanPerBSSID = float64(rep.Processed) / float64(rep.Groups)
    }

    if opts.DryRun {
        rep.Moved = int64(len(stale))
    } else {
        for len(stale) > 0 {
            n := min(opts.BatchSize, len(stale))
            moved, err := c.archive.MoveToArchive(ctx, stale[:n])
            if err != nil {
                rep.Elapsed = c.now().Sub(start)
                return rep, fmt.Errorf("move batch: %w", err)
            }
            rep.Moved += moved
            stale = stale[n:]
        }
    }
    rep.Elapsed = c.now().Sub(start)

    c.log.Info().
        Int("processed", rep.Processed).
        Int64("moved", rep.Moved).
        Int("groups", rep.Groups).
        Int("max_per_bssid", rep.MaxPerBSSID).
        Float64("mean_per_bssid", rep.MeanPerBSSID).
        Dur("elapsed", rep.Elapsed).
        Bool("dry_run", rep.DryRun).
        Msg("compaction finished")
    c.publish(ctx, rep)
    return rep, nil
}

func (c *Compactor) publish(ctx context.Context, rep Report) {
    ev := queue.CompactionFinishedEvent{
        EventID:      uuid.NewString(),
        Processed:    rep.Processed,
        Moved:        rep.Moved,
        Groups:       rep.Groups,
        MaxPerBSSID:  rep.MaxPerBSSID,
        MeanPerBSSID: rep.MeanPerBSSID,
        DurationMS:   rep.Elapsed.Milliseconds(),
        DryRun:       rep.DryRun,
        FinishedAt:   c.now().UTC().Format(time.RFC3339),
    }
    pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
    defer cancel()
    if err := c.publisher.Publish(pctx, c.queueName, ev); err != nil && !errors.Is(err, context.Canceled) {
        c.log.Warn().Err(err).Msg("publish compaction event failed")
    }
}
