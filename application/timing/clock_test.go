package timing

import (
	"testing"
	"time"
)

func TestMonotonicClock_NeverGoesBackwards(t *testing.T) {
	c := NewMonotonicClock()
	first := c.Now()
	time.Sleep(time.Millisecond)
	second := c.Now()
	if first < 0 {
		t.Fatalf("expected non-negative sample, got %v", first)
	}
	if second < first {
		t.Fatalf("clock went backwards: %v then %v", first, second)
	}
}
