package clock

import (
	"testing"
	"time"
)

func TestDayKeyUsesBusinessZone(t *testing.T) {
	// 2024-01-15 19:00 UTC is already 2024-01-16 00:30 in +05:30.
	instant := time.Date(2024, 1, 15, 19, 0, 0, 0, time.UTC)
	if got := DayKey(instant); got != "20240116" {
		t.Fatalf("expected 20240116, got %s", got)
	}

	before := time.Date(2024, 1, 15, 18, 29, 59, 0, time.UTC)
	if got := DayKey(before); got != "20240115" {
		t.Fatalf("expected 20240115, got %s", got)
	}
}

func TestFixedClock(t *testing.T) {
	instant := time.Date(2024, 3, 1, 10, 0, 0, 0, BusinessZone)
	c := NewFixed(instant)
	if !c.Now().Equal(instant) {
		t.Fatalf("expected %v, got %v", instant, c.Now())
	}
	if c.Now().Location() != time.UTC {
		t.Fatalf("expected fixed clock to normalise to UTC")
	}
}
