package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Envelope represents one normalized telemetry message
type Envelope struct {
	DeviceID  string                 // resolved device identity, "unknown" if absent
	Timestamp time.Time              // device-reported time, normalized to UTC
	Object    map[string]interface{} // full decoded JSON object
	Raw       []byte                 // canonical re-serialization of Object
}

var (
	// ErrEmptyLine is returned for empty or whitespace-only input
	ErrEmptyLine = errors.New("empty line")
	// ErrInvalidJSON is returned when the line is not a valid JSON object
	ErrInvalidJSON = errors.New("invalid json")
)

// ParseLine parses a single newline-delimited frame into an Envelope.
// Device identity falls back through device_id, dev_id, then "unknown".
// The timestamp is taken from the timestamp or ts field, as Unix epoch
// seconds or an ISO-8601 string, and defaults to the current UTC time
// when missing or unparseable. Only invalid top-level JSON is rejected.
func ParseLine(line []byte) (*Envelope, error) {
	raw := strings.TrimSpace(strings.ToValidUTF8(string(line), ""))
	if raw == "" {
		return nil, ErrEmptyLine
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after object", ErrInvalidJSON)
	}

	canonical, err := encodeCanonical(obj)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	return &Envelope{
		DeviceID:  resolveDeviceID(obj),
		Timestamp: resolveTimestamp(obj),
		Object:    obj,
		Raw:       canonical,
	}, nil
}

// resolveDeviceID resolves device identity from the object.
// Non-string or empty values are treated as absent.
func resolveDeviceID(obj map[string]interface{}) string {
	for _, key := range []string{"device_id", "dev_id"} {
		if value, ok := obj[key].(string); ok && value != "" {
			return value
		}
	}
	return "unknown"
}

// resolveTimestamp resolves the device-reported timestamp. The first
// present field wins; a present but unparseable value falls back to the
// current wall-clock time rather than the next field.
func resolveTimestamp(obj map[string]interface{}) time.Time {
	for _, key := range []string{"timestamp", "ts"} {
		value, ok := obj[key]
		if !ok || value == nil {
			continue
		}

		switch v := value.(type) {
		case json.Number:
			if epoch, err := v.Float64(); err == nil {
				if ts, ok := epochToUTC(epoch); ok {
					return ts
				}
			}
		case string:
			if ts, ok := parseISO8601(v); ok {
				return ts
			}
		}
		break
	}
	return time.Now().UTC()
}

// Unix epoch bounds for calendar years 1 through 9999
const (
	minEpochSeconds = -62135596800
	maxEpochSeconds = 253402300799
)

// epochToUTC converts Unix epoch seconds (fractional allowed) to UTC.
// Values outside the representable calendar range are rejected so the
// caller falls back to the receipt time.
func epochToUTC(epoch float64) (time.Time, bool) {
	if math.IsNaN(epoch) || epoch < minEpochSeconds || epoch > maxEpochSeconds {
		return time.Time{}, false
	}
	sec := math.Floor(epoch)
	nsec := math.Round((epoch - sec) * 1e9)
	return time.Unix(int64(sec), int64(nsec)).UTC(), true
}

// parseISO8601 parses common ISO-8601 timestamp forms. A trailing Z is
// equivalent to +00:00 and values without an offset are assumed UTC.
func parseISO8601(value string) (time.Time, bool) {
	s := strings.TrimSpace(value)
	if s == "" {
		return time.Time{}, false
	}
	if strings.HasSuffix(s, "Z") {
		s = s[:len(s)-1] + "+00:00"
	}

	// Layouts with an explicit offset carry their own location.
	for _, layout := range []string{
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999-07:00",
	} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}

	// Naive layouts are interpreted as UTC.
	for _, layout := range []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02",
	} {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts, true
		}
	}

	return time.Time{}, false
}

// encodeCanonical re-serializes the decoded object, preserving non-ASCII
// content without escaping.
func encodeCanonical(obj map[string]interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(obj); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
