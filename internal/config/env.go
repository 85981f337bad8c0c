package config

import (
    "os"
    "strconv"
    "strings"
    "time"
)

func envStr(k, d string) string { if v := os.Getenv(k); v != "" { return v }; return d }
func envBool(k string, d bool) bool {
    v := os.Getenv(k)
    if v == "" { return d }
    switch strings.ToLower(v) {
    case "1", "true", "yes", "on": return true
    case "0", "false", "no", "off": return false
    }
    return d
}
func envInt(k string, d int) int {
    v := os.Getenv(k); if v == "" { return d }
    if n, err := strconv.Atoi(v); err == nil { return n }
    return d
}
func envFloat(k string, d float64) float64 {
    v := os.Getenv(k); if v == "" { return d }
    if f, err := strconv.ParseFloat(v, 64); err == nil { return f }
    return d
}
func envDur(k string, d time.Duration) time.Duration {
    v := os.Getenv(k); if v == "" { return d }
    if dur, err := time.ParseDuration(v); err == nil { return dur }
    return d
}

// envList splits a comma-separated variable, dropping blanks.
func envList(k string) []string {
    var out []string
    for _, p := range strings.Split(os.Getenv(k), ",") {
        if p = strings.TrimSpace(p); p != "" {
            out = append(out, p)
        }
    }
    return out
}
