// Package repository holds the SQL persistence of scan results and their
// archive.  Sentinel errors let the service and handler layers tell a benign
// duplicate submission apart from a store failure.
package repository

import "errors"

// ErrDuplicate is returned by Insert when the (cid, ts, bssid) uniqueness
// constraint rejects the row.  It is not a failure: the observation is
// already stored.
var ErrDuplicate = errors.New("duplicate scan result")

// ErrUnknownColumn guards the distinct-count helpers against arbitrary
// column names reaching the SQL text.
var ErrUnknownColumn = errors.New("unknown column")
