// Package service holds the write path between the HTTP handlers and the
// record store.
package service

import (
    "context"
    "errors"
    "fmt"
    "time"

    "github.com/google/uuid"
    "github.com/rs/zerolog"

    "github.com/openwifi/scan-server/internal/config"
    "github.com/openwifi/scan-server/internal/model"
    "github.com/openwifi/scan-server/internal/queue"
    "github.com/openwifi/scan-server/internal/repository"
    "github.com/openwifi/scan-server/internal/validator"
)

// Outcome is what happened to one submitted record.
type Outcome int

const (
    Stored    Outcome = iota // inserted; ID is set
    Duplicate                // (cid, ts, bssid) already present
    Discarded                // valid but too inaccurate to keep
    Rejected                 // failed validation (best-effort batches only)
)

func (o Outcome) String() string {
    switch o {
    case Stored:
        return "stored"
    case Duplicate:
        return "duplicate"
    case Discarded:
        return "discarded"
    case Rejected:
        return "rejected"
    }
    return fmt.Sprintf("outcome(%d)", int(o))
}

// Result is the per-record answer to a submission.
type Result struct {
    Outcome Outcome
    ID      uint64
    Err     error
}

// RecordError locates a validation failure inside a batch.
type RecordError struct {
    Index int
    Err   error
}

func (e *RecordError) Error() string { return fmt.Sprintf("record %d: %v", e.Index, e.Err) }
func (e *RecordError) Unwrap() error { return e.Err }

// Submission is one POST body after JSON decoding.
type Submission struct {
    ClientID string
    UserID   string
    Records  []map[string]any
}

// Inserter is the slice of the record store the ingestor writes through.
type Inserter interface {
    Insert(ctx context.Context, sr model.ScanResult) (uint64, error)
}

type Ingestor struct {
    store     Inserter
    validator *validator.Validator
    cfg       config.IngestConfig
    publisher queue.Publisher
    queueName string
    log       zerolog.Logger
    now       func() time.Time
}

func NewIngestor(store Inserter, v *validator.Validator, cfg config.IngestConfig,
    pub queue.Publisher, queueName string, log zerolog.Logger) *Ingestor {
    if pub == nil {
        pub = queue.Nop{}
    }
    return &Ingestor{
        store:     store,
        validator: v,
        cfg:       cfg,
        publisher: pub,
        queueName: queueName,
        log:       log,
        now:       time.Now,
    }
}

// Submit validates and stores every record of sub and returns one Result per
// record in input order.
//
// Under the atomic batch policy the first invalid record fails the whole
// submission before anything is written; the returned error wraps the
// *validator.FieldError.  Under best-effort invalid records come back as
// Rejected and the rest are stored.  A store failure aborts the remaining
// records and is returned as is.
func (i *Ingestor) Submit(ctx context.Context, sub Submission) ([]Result, error) {
    if len(sub.Records) == 0 {
        return []Result{}, nil
    }
    results := make([]Result, len(sub.Records))
    valid := make([]*model.ScanResult, len(sub.Records))

    for idx, raw := range sub.Records {
        sr, err := i.validator.Validate(raw)
        if err != nil {
            i.logRejected(sub.ClientID, err)
            if i.cfg.BatchPolicy != config.BatchBestEffort {
                if len(sub.Records) == 1 {
                    return nil, err
                }
                return nil, &RecordError{Index: idx, Err: err}
            }
            results[idx] = Result{Outcome: Rejected, Err: err}
            continue
        }
        valid[idx] = &sr
    }

    for idx, sr := range valid {
        if sr == nil {
            continue
        }
        if sr.Accuracy > i.cfg.MaxAccuracy {
            results[idx] = Result{Outcome: Discarded}
            continue
        }
        sr.ClientID = sub.ClientID
        sr.UserID = sub.UserID
        id, err := i.store.Insert(ctx, *sr)
        switch {
        case errors.Is(err, repository.ErrDuplicate):
            i.log.Debug().Str("cid", sub.ClientID).Str("bssid", sr.BSSID).Int64("ts", sr.Timestamp).
                Msg("duplicate scan result ignored")
            results[idx] = Result{Outcome: Duplicate}
        case err != nil:
            return nil, err
        default:
            results[idx] = Result{Outcome: Stored, ID: id}
        }
    }

    i.publish(ctx, sub, results)
    return results, nil
}

func (i *Ingestor) logRejected(cid string, err error) {
    ev := i.log.Info().Str("cid", cid)
    var fe *validator.FieldError
    if errors.As(err, &fe) {
        ev = ev.Str("field", fe.Field).Interface("value", fe.Value).Str("reason", fe.Reason)
    } else {
        ev = ev.Err(err)
    }
    ev.Msg("scan result rejected")
}

func (i *Ingestor) publish(ctx context.Context, sub Submission, results []Result) {
    ev := queue.ScanResultsStoredEvent{
        EventID:    uuid.NewString(),
        ClientID:   sub.ClientID,
        UserID:     sub.UserID,
        StoredIDs:  []uint64{},
        ReceivedAt: i.now().UTC().Format(time.RFC3339),
    }
    for _, r := range results {
        switch r.Outcome {
        case Stored:
            ev.StoredIDs = append(ev.StoredIDs, r.ID)
        case Duplicate:
            ev.Duplicates++
        case Discarded:
            ev.Discarded++
        case Rejected:
            ev.Rejected++
        }
    }

    pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
    defer cancel()
    if err := i.publisher.Publish(pctx, i.queueName, ev); err != nil {
        i.log.Warn().Err(err).Str("event_id", ev.EventID).Msg("publish stored event failed")
    }
}
