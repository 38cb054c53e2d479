package contracts

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Field precedence for reconciling heterogeneous event records. Sources
// include history rows, block payloads and older exports, each with its
// own spelling for the same field.
var (
	actorKeys     = []string{"by_who", "by", "actor", "username", "owner", "initial_custodian"}
	statusKeys    = []string{"status", "action", "type"}
	timestampKeys = []string{"timestamp", "time", "ts", "block_timestamp"}
	latitudeKeys  = []string{"latitude", "lat"}
	longitudeKeys = []string{"longitude", "lon"}
)

// millisThreshold separates epoch-second values from epoch-millisecond
// values: anything above it is already milliseconds.
const millisThreshold = 1e12

// Reconcile merges possibly duplicated, heterogeneously shaped event
// records into one canonical, chronologically ordered timeline. Input
// order carries no meaning except as the tie-break: records with equal
// timestamps, and records with no resolvable timestamp (which sort after
// everything else), keep their relative input order. The stable tie-break
// is load-bearing; callers rely on it for same-second events.
//
// Reconcile never mutates its input and is idempotent: feeding the Raw
// records of its output back in yields the same timeline.
func Reconcile(raw []RawEvent) []TimelineEvent {
	events := make([]TimelineEvent, 0, len(raw))
	for _, record := range raw {
		events = append(events, normalizeEvent(record))
	}

	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i].UnixMillis, events[j].UnixMillis
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})

	return events
}

// normalizeEvent maps one foreign-shaped record into the canonical event,
// keeping the original record attached for pass-through of unknown fields.
func normalizeEvent(record RawEvent) TimelineEvent {
	ev := TimelineEvent{
		Actor: "Unknown",
		Raw:   record,
	}

	if v, ok := firstPresent(record, actorKeys); ok {
		if s := asString(v); s != "" {
			ev.Actor = s
		}
	}
	if v, ok := firstPresent(record, statusKeys); ok {
		ev.Status = asString(v)
	}
	if v, ok := firstPresent(record, timestampKeys); ok {
		ev.UnixMillis = toMillis(v)
	}
	if v, ok := firstPresent(record, latitudeKeys); ok {
		ev.Latitude = asFloat(v)
	}
	if v, ok := firstPresent(record, longitudeKeys); ok {
		ev.Longitude = asFloat(v)
	}

	// Some block payloads carry a single "lat,lon" location string
	// instead of separate coordinates ("N/A" means not captured).
	if ev.Latitude == nil || ev.Longitude == nil {
		if loc, ok := record["location"]; ok {
			lat, lon := parseLocation(asString(loc))
			if ev.Latitude == nil {
				ev.Latitude = lat
			}
			if ev.Longitude == nil {
				ev.Longitude = lon
			}
		}
	}

	if v, ok := record["raw_block_index"]; ok {
		if f := asFloat(v); f != nil {
			idx := int(*f)
			ev.BlockIndex = &idx
		}
	}

	return ev
}

func firstPresent(record RawEvent, keys []string) (interface{}, bool) {
	for _, key := range keys {
		if v, ok := record[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// toMillis normalizes a timestamp of unknown unit and type to epoch
// milliseconds. Numeric values above millisThreshold are already
// milliseconds, smaller ones are seconds. Strings are tried as numbers
// first, then as calendar timestamps. Returns nil when nothing parses.
func toMillis(v interface{}) *int64 {
	switch t := v.(type) {
	case float64:
		return numToMillis(t)
	case float32:
		return numToMillis(float64(t))
	case int:
		return numToMillis(float64(t))
	case int64:
		return numToMillis(float64(t))
	case string:
		if num, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return numToMillis(num)
		}
		return parseDateString(t)
	default:
		return nil
	}
}

func numToMillis(n float64) *int64 {
	var ms int64
	if n > millisThreshold {
		ms = int64(n)
	} else {
		ms = int64(n * 1000)
	}
	return &ms
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseDateString(s string) *int64 {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			ms := t.UnixMilli()
			return &ms
		}
	}
	return nil
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func asFloat(v interface{}) *float64 {
	switch t := v.(type) {
	case float64:
		f := t
		return &f
	case float32:
		f := float64(t)
		return &f
	case int:
		f := float64(t)
		return &f
	case int64:
		f := float64(t)
		return &f
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return &f
		}
	}
	return nil
}

// parseLocation splits a "lat,lon" string into coordinates. Either half
// may independently be empty or "N/A".
func parseLocation(loc string) (*float64, *float64) {
	parts := strings.SplitN(loc, ",", 2)
	if len(parts) != 2 {
		return nil, nil
	}
	return parseCoord(parts[0]), parseCoord(parts[1])
}

func parseCoord(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "N/A" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}
