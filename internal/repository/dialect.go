package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect captures the few places where MySQL and SQLite disagree: DDL, the
// insert-or-skip verb and how a unique-key violation is reported.
type Dialect struct {
	Name         string
	schema       []string
	insertIgnore string
	isDuplicate  func(error) bool
}

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

var MySQL = Dialect{
	Name: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS scan_results (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
			bssid CHAR(17) NOT NULL,
			ssid VARCHAR(32) NOT NULL,
			ts BIGINT NOT NULL,
			acc DOUBLE NOT NULL,
			lat DOUBLE NOT NULL,
			lon DOUBLE NOT NULL,
			cid VARCHAR(128) NOT NULL,
			uid CHAR(64) NULL,
			UNIQUE KEY uq_scan_results_observation (cid, ts, bssid),
			KEY idx_scan_results_bssid_ts (bssid, ts),
			KEY idx_scan_results_loc (lat, lon)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS old_scan_results (
			id BIGINT UNSIGNED NOT NULL PRIMARY KEY,
			bssid CHAR(17) NOT NULL,
			ssid VARCHAR(32) NOT NULL,
			ts BIGINT NOT NULL,
			acc DOUBLE NOT NULL,
			lat DOUBLE NOT NULL,
			lon DOUBLE NOT NULL,
			cid VARCHAR(128) NOT NULL,
			uid CHAR(64) NULL,
			archived_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			KEY idx_old_scan_results_bssid (bssid)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	},
	insertIgnore: "INSERT IGNORE INTO",
	isDuplicate: func(err error) bool {
		var me *mysql.MySQLError
		return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
	},
}

var SQLite = Dialect{
	Name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS scan_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			bssid TEXT NOT NULL,
			ssid TEXT NOT NULL,
			ts INTEGER NOT NULL,
			acc REAL NOT NULL,
			lat REAL NOT NULL,
			lon REAL NOT NULL,
			cid TEXT NOT NULL,
			uid TEXT
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_scan_results_observation ON scan_results(cid, ts, bssid)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_results_bssid_ts ON scan_results(bssid, ts)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_results_loc ON scan_results(lat, lon)`,
		`CREATE TABLE IF NOT EXISTS old_scan_results (
			id INTEGER PRIMARY KEY,
			bssid TEXT NOT NULL,
			ssid TEXT NOT NULL,
			ts INTEGER NOT NULL,
			acc REAL NOT NULL,
			lat REAL NOT NULL,
			lon REAL NOT NULL,
			cid TEXT NOT NULL,
			uid TEXT,
			archived_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_old_scan_results_bssid ON old_scan_results(bssid)`,
	},
	insertIgnore: "INSERT OR IGNORE INTO",
	isDuplicate: func(err error) bool {
		var se *sqlite.Error
		if !errors.As(err, &se) {
			return false
		}
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
		// Without extended result codes only the primary code is reported.
		return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT &&
			strings.Contains(se.Error(), "UNIQUE constraint failed")
	},
}

// DialectFor maps a configured driver name to its dialect.
func DialectFor(driver string) Dialect {
	if driver == SQLite.Name {
		return SQLite
	}
	return MySQL
}
