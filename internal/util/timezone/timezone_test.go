package timezone

import (
	"testing"
	"time"
)

func TestInitializeWithName(t *testing.T) {
	Initialize("Europe/Berlin")
	t.Cleanup(func() { Initialize("UTC") })

	if got := Location().String(); got != "Europe/Berlin" {
		t.Fatalf("expected Europe/Berlin, got %s", got)
	}
	ts := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	if got := RFC3339(ts); got != "2024-01-15T13:00:00+01:00" {
		t.Errorf("unexpected RFC3339 output %s", got)
	}
}

func TestInitializeFallsBackToUTC(t *testing.T) {
	Initialize("Not/AZone")
	if Location() != time.UTC {
		t.Errorf("expected UTC fallback, got %s", Location())
	}
}
