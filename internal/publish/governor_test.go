package publish

import (
	"context"
	"testing"
	"time"
)

func TestGovernorDelayTiers(t *testing.T) {
	t.Parallel()
	g := NewGovernor(Config{})

	tests := []struct {
		posted int
		want   time.Duration
	}{
		{posted: 0, want: 10 * time.Second},
		{posted: 39, want: 10 * time.Second},
		{posted: 40, want: 30 * time.Second},
		{posted: 44, want: 30 * time.Second},
		{posted: 45, want: 33 * time.Second},
		{posted: 100, want: 33 * time.Second},
	}
	for _, tt := range tests {
		if got := g.Delay(tt.posted); got != tt.want {
			t.Fatalf("Delay(%d) = %v, want %v", tt.posted, got, tt.want)
		}
	}
}

func TestGovernorDelayMonotonic(t *testing.T) {
	t.Parallel()
	g := NewGovernor(Config{})
	prev := time.Duration(0)
	for posted := 0; posted <= 60; posted++ {
		d := g.Delay(posted)
		if d < prev {
			t.Fatalf("delay decreased at postedCount=%d: %v -> %v", posted, prev, d)
		}
		prev = d
	}
}

func TestGovernorPaceCancelled(t *testing.T) {
	t.Parallel()
	g := NewGovernor(Config{BaseDelay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := g.Pace(ctx, 0); err == nil {
		t.Fatal("expected error from cancelled pace wait")
	}
	if time.Since(start) > time.Second {
		t.Fatal("pace wait was not interruptible")
	}
}

func TestGovernorCustomTiers(t *testing.T) {
	t.Parallel()
	g := NewGovernor(Config{
		BaseDelay:  time.Millisecond,
		Tier2At:    2,
		Tier3At:    4,
		Tier2Delay: 2 * time.Millisecond,
		Tier3Delay: 3 * time.Millisecond,
	})
	if got := g.Delay(1); got != time.Millisecond {
		t.Fatalf("tier1 delay = %v", got)
	}
	if got := g.Delay(2); got != 2*time.Millisecond {
		t.Fatalf("tier2 delay = %v", got)
	}
	if got := g.Delay(4); got != 3*time.Millisecond {
		t.Fatalf("tier3 delay = %v", got)
	}
}
