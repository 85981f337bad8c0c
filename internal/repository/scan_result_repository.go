package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/openwifi/scan-server/internal/model"
)

// ScanResultRepo persists scan results in the live scan_results table.
type ScanResultRepo struct {
	db      *sql.DB
	dialect Dialect
}

func NewScanResultRepo(db *sql.DB, d Dialect) *ScanResultRepo {
	return &ScanResultRepo{db: db, dialect: d}
}

// DB exposes the handle for health checks.
func (r *ScanResultRepo) DB() *sql.DB { return r.db }

// Insert stores a validated scan result and returns its id.  Uniqueness of
// (cid, ts, bssid) is left to the unique index: a violation comes back as
// ErrDuplicate rather than being checked up front.
func (r *ScanResultRepo) Insert(ctx context.Context, sr model.ScanResult) (uint64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO scan_results (bssid, ssid, ts, acc, lat, lon, cid, uid) VALUES (?,?,?,?,?,?,?,?)`,
		sr.BSSID, sr.SSID, sr.Timestamp, sr.Accuracy, sr.Location.Lat, sr.Location.Lon,
		sr.ClientID, nullString(sr.UserID))
	if err != nil {
		if r.dialect.isDuplicate(err) {
			return 0, ErrDuplicate
		}
		return 0, fmt.Errorf("insert scan result: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert scan result: %w", err)
	}
	return uint64(id), nil
}

// Since returns up to limit scan results with id > lastID in ascending id
// order, skipping rows submitted by excludeCID.  An empty excludeCID skips
// nothing since every stored row carries a client id.
func (r *ScanResultRepo) Since(ctx context.Context, lastID uint64, limit int, excludeCID string) ([]model.ScanResult, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, bssid, ssid, ts, acc, lat, lon, cid, uid
		 FROM scan_results
		 WHERE id > ? AND cid <> ?
		 ORDER BY id ASC
		 LIMIT ?`,
		lastID, excludeCID, limit)
	if err != nil {
		return nil, fmt.Errorf("query scan results: %w", err)
	}
	defer rows.Close()

	out := make([]model.ScanResult, 0, limit)
	for rows.Next() {
		var (
			sr  model.ScanResult
			uid sql.NullString
		)
		if err := rows.Scan(&sr.ID, &sr.BSSID, &sr.SSID, &sr.Timestamp, &sr.Accuracy,
			&sr.Location.Lat, &sr.Location.Lon, &sr.ClientID, &uid); err != nil {
			return nil, fmt.Errorf("scan scan result: %w", err)
		}
		sr.UserID = uid.String
		out = append(out, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scan results: %w", err)
	}
	return out, nil
}

// Count returns the number of live scan results.
func (r *ScanResultRepo) Count(ctx context.Context) (int64, error) {
	return count(ctx, r.db, "SELECT COUNT(*) FROM scan_results")
}

// distinctColumns whitelists what CountDistinct may aggregate over.
var distinctColumns = map[string]bool{"bssid": true, "ssid": true, "cid": true, "uid": true}

// CountDistinct returns the number of distinct non-null values of column
// among live scan results.
func (r *ScanResultRepo) CountDistinct(ctx context.Context, column string) (int64, error) {
	if !distinctColumns[column] {
		return 0, fmt.Errorf("count distinct %q: %w", column, ErrUnknownColumn)
	}
	return count(ctx, r.db, "SELECT COUNT(DISTINCT "+column+") FROM scan_results")
}

func count(ctx context.Context, db *sql.DB, query string) (int64, error) {
	var n int64
	if err := db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
