package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/openwifi/scan-server/internal/model"
)

// ArchiveRepo moves aged-out scan results from scan_results into
// old_scan_results.  Rows are moved, never erased.
type ArchiveRepo struct {
	db      *sql.DB
	dialect Dialect
}

func NewArchiveRepo(db *sql.DB, d Dialect) *ArchiveRepo {
	return &ArchiveRepo{db: db, dialect: d}
}

// ForEachBSSID streams every live observation grouped by BSSID, newest first
// within a group, and calls fn once per group.  fn runs while the result set is still open, so it must not
// touch the database; collect ids and act after ForEachBSSID returns.
func (r *ArchiveRepo) ForEachBSSID(ctx context.Context, fn func(bssid string, obs []model.Observation)) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT bssid, id, ts FROM scan_results ORDER BY bssid, ts DESC, id DESC`)
	if err != nil {
		return fmt.Errorf("group scan results: %w", err)
	}
	defer rows.Close()

	var (
		current string
		group   []model.Observation
	)
	for rows.Next() {
		var (
			bssid string
			o     model.Observation
		)
		if err := rows.Scan(&bssid, &o.ID, &o.Timestamp); err != nil {
			return fmt.Errorf("scan observation: %w", err)
		}
		if bssid != current && len(group) > 0 {
			fn(current, group)
			group = nil
		}
		current = bssid
		group = append(group, o)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate observations: %w", err)
	}
	if len(group) > 0 {
		fn(current, group)
	}
	return nil
}

// MoveToArchive copies the given live rows into the archive and deletes them
// from the live table inside one transaction, so a row is always in at least
// one of the two tables.  Rows already archived are skipped by the insert;
// ids no longer live are ignored.  It returns the number of live rows removed.
func (r *ArchiveRepo) MoveToArchive(ctx context.Context, ids []uint64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	in := "(" + strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",") + ")"
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin move: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx,
		r.dialect.insertIgnore+` old_scan_results (id, bssid, ssid, ts, acc, lat, lon, cid, uid)
		 SELECT id, bssid, ssid, ts, acc, lat, lon, cid, uid FROM scan_results WHERE id IN `+in,
		args...); err != nil {
		return 0, fmt.Errorf("archive scan results: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM scan_results WHERE id IN `+in, args...)
	if err != nil {
		return 0, fmt.Errorf("delete archived scan results: %w", err)
	}
	moved, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete archived scan results: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit move: %w", err)
	}
	committed = true
	return moved, nil
}

// Count returns the number of archived scan results.
func (r *ArchiveRepo) Count(ctx context.Context) (int64, error) {
	return count(ctx, r.db, "SELECT COUNT(*) FROM old_scan_results")
}

// CountByBSSID returns live and archived counts for one access point.
func (r *ArchiveRepo) CountByBSSID(ctx context.Context, bssid string) (live, archived int64, err error) {
	err = r.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM scan_results WHERE bssid = ?),
		        (SELECT COUNT(*) FROM old_scan_results WHERE bssid = ?)`,
		bssid, bssid).Scan(&live, &archived)
	if err != nil {
		return 0, 0, fmt.Errorf("count by bssid: %w", err)
	}
	return live, archived, nil
}
