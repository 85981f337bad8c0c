package model

// Location is the WGS84 position at which an access point was observed.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ScanResult is one observed access point at one place and time.  ClientID
// and UserID are server-side bookkeeping and never leave the server.
type ScanResult struct {
	ID        uint64   `json:"id"`
	BSSID     string   `json:"bssid"`
	SSID      string   `json:"ssid"`
	Timestamp int64    `json:"ts"`  // milliseconds since epoch
	Accuracy  float64  `json:"acc"` // meters
	Location  Location `json:"loc"`
	ClientID  string   `json:"-"`
	UserID    string   `json:"-"` // depersonalized; empty when anonymous
}

// Observation is the slice of a scan result the retention job works with.
type Observation struct {
	ID        uint64
	Timestamp int64
}
