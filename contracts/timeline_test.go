package contracts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileActorPrecedence(t *testing.T) {
	events := Reconcile([]RawEvent{
		{"by_who": "alice", "by": "bob", "actor": "carol"},
		{"by": "bob", "actor": "carol"},
		{"actor": "carol", "username": "dave"},
		{"username": "dave"},
		{"owner": "erin"},
		{"initial_custodian": "frank"},
		{},
	})

	require.Len(t, events, 7)
	assert.Equal(t, "alice", events[0].Actor)
	assert.Equal(t, "bob", events[1].Actor)
	assert.Equal(t, "carol", events[2].Actor)
	assert.Equal(t, "dave", events[3].Actor)
	assert.Equal(t, "erin", events[4].Actor)
	assert.Equal(t, "frank", events[5].Actor)
	assert.Equal(t, "Unknown", events[6].Actor)
}

func TestReconcileStatusFallback(t *testing.T) {
	events := Reconcile([]RawEvent{
		{"status": "Shipped", "action": "Product Created", "type": "status_update"},
		{"action": "Product Created", "type": "create_product"},
		{"type": "create_product"},
	})

	require.Len(t, events, 3)
	assert.Equal(t, "Shipped", events[0].Status)
	assert.Equal(t, "Product Created", events[1].Status)
	assert.Equal(t, "create_product", events[2].Status)
}

func TestReconcileTimestampUnits(t *testing.T) {
	events := Reconcile([]RawEvent{
		{"by_who": "seconds", "timestamp": 1700000000.0},
		{"by_who": "millis", "time": 1700000001000.0},
		{"by_who": "string-number", "ts": "1700000002"},
		{"by_who": "iso", "block_timestamp": "2023-11-14T22:13:23Z"},
	})

	require.Len(t, events, 4)
	byActor := make(map[string]*int64)
	for _, ev := range events {
		byActor[ev.Actor] = ev.UnixMillis
	}

	require.NotNil(t, byActor["seconds"])
	assert.Equal(t, int64(1700000000000), *byActor["seconds"])
	require.NotNil(t, byActor["millis"])
	assert.Equal(t, int64(1700000001000), *byActor["millis"])
	require.NotNil(t, byActor["string-number"])
	assert.Equal(t, int64(1700000002000), *byActor["string-number"])
	require.NotNil(t, byActor["iso"])
	assert.Equal(t, int64(1700000003000), *byActor["iso"])
}

func TestReconcileUnparseableTimestamp(t *testing.T) {
	events := Reconcile([]RawEvent{
		{"by_who": "bad", "timestamp": "not a date"},
	})
	require.Len(t, events, 1)
	assert.Nil(t, events[0].UnixMillis)
}

func TestReconcileSortsChronologically(t *testing.T) {
	events := Reconcile([]RawEvent{
		{"by_who": "third", "timestamp": 300.0},
		{"by_who": "first", "timestamp": 100.0},
		{"by_who": "second", "timestamp": 200.0},
	})

	require.Len(t, events, 3)
	assert.Equal(t, "first", events[0].Actor)
	assert.Equal(t, "second", events[1].Actor)
	assert.Equal(t, "third", events[2].Actor)
}

func TestReconcileStableTieBreakAndUndefinedLast(t *testing.T) {
	// Input A(ts=5), B(ts=null), C(ts=5): ties keep input order and the
	// undefined timestamp sorts after everything, so the output is A, C, B.
	events := Reconcile([]RawEvent{
		{"by_who": "A", "timestamp": 5.0},
		{"by_who": "B"},
		{"by_who": "C", "timestamp": 5.0},
	})

	require.Len(t, events, 3)
	assert.Equal(t, "A", events[0].Actor)
	assert.Equal(t, "C", events[1].Actor)
	assert.Equal(t, "B", events[2].Actor)
	assert.Nil(t, events[2].UnixMillis)
}

func TestReconcileCoordinates(t *testing.T) {
	events := Reconcile([]RawEvent{
		{"by_who": "full", "latitude": 52.52, "longitude": 13.405},
		{"by_who": "short", "lat": 48.85, "lon": 2.35},
		{"by_who": "latonly", "lat": 40.41},
		{"by_who": "none"},
	})

	require.Len(t, events, 4)

	require.NotNil(t, events[0].Latitude)
	assert.Equal(t, 52.52, *events[0].Latitude)
	require.NotNil(t, events[0].Longitude)
	assert.Equal(t, 13.405, *events[0].Longitude)

	require.NotNil(t, events[1].Latitude)
	assert.Equal(t, 48.85, *events[1].Latitude)

	// Coordinates are independent: lat without lon is kept.
	require.NotNil(t, events[2].Latitude)
	assert.Nil(t, events[2].Longitude)

	assert.Nil(t, events[3].Latitude)
	assert.Nil(t, events[3].Longitude)
}

func TestReconcileLocationStringFallback(t *testing.T) {
	events := Reconcile([]RawEvent{
		{"by_who": "pair", "location": "52.52,13.405"},
		{"by_who": "na", "location": "N/A"},
		{"by_who": "halfna", "location": "52.52,N/A"},
	})

	require.Len(t, events, 3)

	require.NotNil(t, events[0].Latitude)
	assert.Equal(t, 52.52, *events[0].Latitude)
	require.NotNil(t, events[0].Longitude)
	assert.Equal(t, 13.405, *events[0].Longitude)

	assert.Nil(t, events[1].Latitude)
	assert.Nil(t, events[1].Longitude)

	require.NotNil(t, events[2].Latitude)
	assert.Nil(t, events[2].Longitude)
}

func TestReconcilePassesThroughUnknownFields(t *testing.T) {
	record := RawEvent{
		"by_who":       "alice",
		"timestamp":    1700000000.0,
		"tx_signature": "0xdeadbeef",
	}
	events := Reconcile([]RawEvent{record})

	require.Len(t, events, 1)
	assert.Equal(t, "0xdeadbeef", events[0].Raw["tx_signature"])
}

func TestReconcileIdempotent(t *testing.T) {
	input := []RawEvent{
		{"by_who": "A", "timestamp": 5.0},
		{"by_who": "B"},
		{"by_who": "C", "timestamp": 5.0},
		{"by": "D", "ts": "2023-11-14T22:13:20Z", "extra": "kept"},
	}

	once := Reconcile(input)

	// Re-feed the reconciled output through its retained raw shape.
	again := make([]RawEvent, len(once))
	for i, ev := range once {
		again[i] = ev.Raw
	}
	twice := Reconcile(again)

	require.Len(t, twice, len(once))
	for i := range once {
		assert.Equal(t, once[i].Actor, twice[i].Actor)
		assert.Equal(t, once[i].Status, twice[i].Status)
		assert.Equal(t, once[i].UnixMillis, twice[i].UnixMillis)
	}
}

func TestReconcileBlockIndex(t *testing.T) {
	events := Reconcile([]RawEvent{
		{"by_who": "alice", "timestamp": 100.0, "raw_block_index": 7},
	})
	require.Len(t, events, 1)
	require.NotNil(t, events[0].BlockIndex)
	assert.Equal(t, 7, *events[0].BlockIndex)
}
