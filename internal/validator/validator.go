// Package validator type-checks and range-checks submitted scan results.
//
// Every submitted record is a JSON object whose keys must be exactly the
// declared fields below.  A record either converts into a model.ScanResult
// or yields a *FieldError naming the first offending field; there is no
// partially valid record.
package validator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/openwifi/scan-server/internal/model"
)

const maxSSIDLength = 32

var bssidPattern = regexp.MustCompile(`^([0-9a-f]{2}:){5}[0-9a-f]{2}$`)

var (
	// ErrMalformedBody means the request body is not a JSON object or array.
	ErrMalformedBody = errors.New("body must be a JSON object or an array of objects")
	// ErrNotObject is reported for batch elements that are not objects.
	ErrNotObject = errors.New("scan result must be a JSON object")
)

// FieldError describes why a single field was rejected.
type FieldError struct {
	Field  string
	Value  any
	Reason string
}

func (e *FieldError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s (got %v)", e.Field, e.Reason, e.Value)
}

// field declares one accepted key and how its raw JSON value is checked and
// copied onto the scan result.
type field struct {
	name  string
	apply func(v *Validator, raw any, sr *model.ScanResult) error
}

// fields is the closed set of client-supplied keys.  id, cid and uid are
// server-assigned and therefore unknown here.
var fields = []field{
	{"bssid", applyBSSID},
	{"ssid", applySSID},
	{"ts", applyTimestamp},
	{"acc", applyAccuracy},
	{"loc", applyLocation},
}

var declared = func() map[string]bool {
	m := make(map[string]bool, len(fields))
	for _, f := range fields {
		m[f.name] = true
	}
	return m
}()

// Validator checks records against the declared fields.  now anchors the
// "timestamp must be in the past" rule and is injectable for tests.
type Validator struct {
	now func() time.Time
}

func New(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{now: now}
}

// Validate converts one raw record into a scan result.  Unknown keys, missing
// keys and any failing rule reject the whole record.
func (v *Validator) Validate(raw map[string]any) (model.ScanResult, error) {
	var sr model.ScanResult
	for key := range raw {
		if !declared[key] {
			return model.ScanResult{}, &FieldError{Field: key, Reason: "unknown field"}
		}
	}
	for _, f := range fields {
		val, ok := raw[f.name]
		if !ok {
			return model.ScanResult{}, &FieldError{Field: f.name, Reason: "required"}
		}
		if err := f.apply(v, val, &sr); err != nil {
			return model.ScanResult{}, err
		}
	}
	return sr, nil
}

// Decode parses a request body holding either a single record or a list of
// records.  Numbers are kept as json.Number so integers and floats stay
// distinguishable.  batch reports whether the body was a list.
func Decode(body []byte) (records []map[string]any, batch bool, err error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, false, fmt.Errorf("%w: trailing data", ErrMalformedBody)
	}
	switch t := doc.(type) {
	case map[string]any:
		return []map[string]any{t}, false, nil
	case []any:
		records = make([]map[string]any, 0, len(t))
		for i, el := range t {
			obj, ok := el.(map[string]any)
			if !ok {
				return nil, true, fmt.Errorf("element %d: %w", i, ErrNotObject)
			}
			records = append(records, obj)
		}
		return records, true, nil
	default:
		return nil, false, ErrMalformedBody
	}
}

func applyBSSID(_ *Validator, raw any, sr *model.ScanResult) error {
	s, ok := raw.(string)
	if !ok || !bssidPattern.MatchString(s) {
		return &FieldError{Field: "bssid", Value: raw, Reason: "must be six lowercase colon-separated hex octets"}
	}
	sr.BSSID = s
	return nil
}

func applySSID(_ *Validator, raw any, sr *model.ScanResult) error {
	s, ok := raw.(string)
	if !ok {
		return &FieldError{Field: "ssid", Value: raw, Reason: "must be a string"}
	}
	if n := utf8.RuneCountInString(s); n == 0 || n > maxSSIDLength {
		return &FieldError{Field: "ssid", Value: raw, Reason: "must be 1 to 32 characters"}
	}
	sr.SSID = s
	return nil
}

func applyTimestamp(v *Validator, raw any, sr *model.ScanResult) error {
	n, ok := raw.(json.Number)
	if !ok || strings.ContainsAny(n.String(), ".eE") {
		return &FieldError{Field: "ts", Value: raw, Reason: "must be an integer"}
	}
	ts, err := n.Int64()
	if err != nil {
		return &FieldError{Field: "ts", Value: raw, Reason: "out of range"}
	}
	if ts >= v.now().UnixMilli() {
		return &FieldError{Field: "ts", Value: raw, Reason: "must be in the past"}
	}
	sr.Timestamp = ts
	return nil
}

func applyAccuracy(_ *Validator, raw any, sr *model.ScanResult) error {
	acc, ok := number(raw)
	if !ok || acc < 0 {
		return &FieldError{Field: "acc", Value: raw, Reason: "must be a non-negative number"}
	}
	sr.Accuracy = acc
	return nil
}

func applyLocation(_ *Validator, raw any, sr *model.ScanResult) error {
	obj, ok := raw.(map[string]any)
	if !ok {
		return &FieldError{Field: "loc", Value: raw, Reason: "must be an object"}
	}
	for key := range obj {
		if key != "lat" && key != "lon" {
			return &FieldError{Field: "loc." + key, Reason: "unknown field"}
		}
	}
	lat, ok := number(obj["lat"])
	if !ok || lat < -90 || lat > 90 {
		return &FieldError{Field: "loc.lat", Value: obj["lat"], Reason: "must be a number in [-90, 90]"}
	}
	lon, ok := number(obj["lon"])
	if !ok || lon < -180 || lon > 180 {
		return &FieldError{Field: "loc.lon", Value: obj["lon"], Reason: "must be a number in [-180, 180]"}
	}
	sr.Location = model.Location{Lat: lat, Lon: lon}
	return nil
}

// number accepts integer and floating point JSON numbers alike.
func number(raw any) (float64, bool) {
	n, ok := raw.(json.Number)
	if !ok {
		return 0, false
	}
	f, err := n.Float64()
	if err != nil {
		return 0, false
	}
	return f, true
}
