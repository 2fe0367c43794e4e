package domain

import (
	"encoding/json"
	"sort"
	"strconv"
	"time"
)

// Recognized top-level keys of an event payload.
const (
	KeyID        = "id"
	KeyDonor     = "donor"
	KeyTimestamp = "timestamp"
)

// NumericFields are the payload fields coerced to integers at ingest.
// Absent or non-numeric values normalize to 0.
var NumericFields = []string{"newLevel", "totalDonations", "unitsApproved"}

// Event is a single externally reported occurrence (donation approved,
// donor leveled up). Payloads are an open bag of named values; no schema
// is enforced beyond the normalization rules below.
type Event map[string]any

// Donor returns the acting party's address, or "" when absent or not yet
// normalized to a scalar.
func (e Event) Donor() string {
	s, _ := e[KeyDonor].(string)
	return s
}

// Timestamp returns the event time in milliseconds since epoch, or 0.
func (e Event) Timestamp() int64 {
	v, ok := asInt64(e[KeyTimestamp])
	if !ok {
		return 0
	}
	return v
}

// Int returns the named field coerced to an integer, 0 when absent or
// non-numeric.
func (e Event) Int(key string) int64 {
	v, _ := asInt64(e[key])
	return v
}

// Normalize rewrites a raw webhook payload in place into canonical form:
//
//   - a donor sent as an object (the upstream automation encodes a
//     single-element set as a keyed map) is replaced by its first key;
//   - the recognized numeric fields are coerced to int64, defaulting to 0;
//   - a missing or non-numeric timestamp is set to now (ms since epoch).
//
// It reports whether the donor object carried more than one key, which is
// upstream format drift the caller should surface rather than paper over.
func Normalize(e Event, now time.Time) (drift bool) {
	if m, ok := e[KeyDonor].(map[string]any); ok {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if len(keys) > 0 {
			e[KeyDonor] = keys[0]
		} else {
			e[KeyDonor] = ""
		}
		drift = len(keys) > 1
	}

	for _, f := range NumericFields {
		v, _ := asInt64(e[f])
		e[f] = v
	}

	if _, ok := asInt64(e[KeyTimestamp]); !ok {
		e[KeyTimestamp] = now.UnixMilli()
	}
	return drift
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil {
			return int64(f), true
		}
		return 0, false
	case string:
		if i, err := strconv.ParseInt(n, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return int64(f), true
		}
		return 0, false
	default:
		return 0, false
	}
}
