package pattern

import (
	"math"
	"testing"
)

func TestMultiplier_Anchors(t *testing.T) {
	cases := []struct {
		hour float64
		want float64
	}{
		{0, 0.8},
		{6, 0.7},
		{8, 1.4},
		{10, 1.4},
		{12, 1.0},
		{14, 0.6},
		{18, 0.9},
		{20, 1.3},
		{22, 1.0},
	}
	for _, c := range cases {
		got := Multiplier(c.hour)
		if math.Abs(got-c.want) > 1e-12 {
			t.Errorf("Multiplier(%v) = %v, want %v", c.hour, got, c.want)
		}
	}
}

func TestMultiplier_Interpolation(t *testing.T) {
	// Midpoint of the (6, 0.7) -> (8, 1.4) segment.
	got := Multiplier(7)
	if math.Abs(got-1.05) > 1e-12 {
		t.Errorf("Multiplier(7) = %v, want 1.05", got)
	}
	// Flat segment (8, 1.4) -> (10, 1.4).
	if got := Multiplier(9); math.Abs(got-1.4) > 1e-12 {
		t.Errorf("Multiplier(9) = %v, want 1.4", got)
	}
}

func TestMultiplier_Range(t *testing.T) {
	for h := 0.0; h < 24; h += 0.01 {
		m := Multiplier(h)
		if m < 0.6 || m > 1.4 {
			t.Fatalf("Multiplier(%v) = %v out of [0.6, 1.4]", h, m)
		}
	}
}

func TestMultiplier_Continuity(t *testing.T) {
	// Max segment slope is |1.4-0.7|/2 = 0.35 per hour.
	const slopeBound = 0.35
	const eps = 1e-6
	for h := 0.0; h < 24; h += 0.1 {
		d := math.Abs(Multiplier(h+eps) - Multiplier(h))
		if d > slopeBound*eps*1.01 {
			t.Fatalf("discontinuity at h=%v: delta=%v", h, d)
		}
	}
}

func TestMultiplier_Normalization(t *testing.T) {
	if got, want := Multiplier(24), Multiplier(0); got != want {
		t.Errorf("Multiplier(24) = %v, want %v", got, want)
	}
	if got, want := Multiplier(25.5), Multiplier(1.5); got != want {
		t.Errorf("Multiplier(25.5) = %v, want %v", got, want)
	}
	if got, want := Multiplier(-2), Multiplier(22); got != want {
		t.Errorf("Multiplier(-2) = %v, want %v", got, want)
	}
}
