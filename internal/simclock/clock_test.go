package simclock

import (
	"math"
	"testing"
	"time"
)

func TestHourOfDay(t *testing.T) {
	noon := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if got := HourOfDay(noon); got != 12 {
		t.Fatalf("HourOfDay(noon) = %v, want 12", got)
	}

	t1530 := time.Date(2026, 3, 1, 15, 30, 0, 0, time.UTC)
	if got := HourOfDay(t1530); math.Abs(got-15.5) > 1e-9 {
		t.Fatalf("HourOfDay(15:30) = %v, want 15.5", got)
	}
}

func TestFrozenAdvance(t *testing.T) {
	f := &Frozen{T: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	before := f.Now()
	f.Advance(90 * time.Second)
	if got := f.Now().Sub(before); got != 90*time.Second {
		t.Fatalf("Advance moved clock by %v, want 90s", got)
	}
}
