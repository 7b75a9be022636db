package quiz

import (
	"testing"
	"time"
)

func TestFeedbackArenaClearsAfterDelay(t *testing.T) {
	clock := newFakeClock()
	var cleared []string
	a := NewFeedbackArena(clock, 500*time.Millisecond, func(key string) { cleared = append(cleared, key) })

	a.Set("Fruit", FeedbackGreen)
	if c, ok := a.Get("Fruit"); !ok || c != FeedbackGreen {
		t.Fatalf("expected green, got %q %v", c, ok)
	}

	clock.Advance(499 * time.Millisecond)
	if _, ok := a.Get("Fruit"); !ok {
		t.Fatalf("cleared too early")
	}
	clock.Advance(time.Millisecond)
	if _, ok := a.Get("Fruit"); ok {
		t.Fatalf("expected color cleared at 500ms")
	}
	if len(cleared) != 1 || cleared[0] != "Fruit" {
		t.Fatalf("unexpected clear callbacks: %v", cleared)
	}
}

func TestFeedbackArenaKeysAreIndependent(t *testing.T) {
	clock := newFakeClock()
	var cleared []string
	a := NewFeedbackArena(clock, 500*time.Millisecond, func(key string) { cleared = append(cleared, key) })

	a.Set("A", FeedbackGreen)
	clock.Advance(300 * time.Millisecond)
	a.Set("B", FeedbackRed)
	clock.Advance(200 * time.Millisecond)

	if _, ok := a.Get("A"); ok {
		t.Fatalf("A should have cleared at 500ms")
	}
	if c, ok := a.Get("B"); !ok || c != FeedbackRed {
		t.Fatalf("B cleared by A's timer")
	}

	clock.Advance(300 * time.Millisecond)
	if _, ok := a.Get("B"); ok {
		t.Fatalf("B should have cleared at 800ms")
	}
	if len(cleared) != 2 || cleared[0] != "A" || cleared[1] != "B" {
		t.Fatalf("unexpected clear order: %v", cleared)
	}
}

func TestFeedbackArenaResetRestartsWindow(t *testing.T) {
	clock := newFakeClock()
	clears := 0
	a := NewFeedbackArena(clock, 500*time.Millisecond, func(string) { clears++ })

	a.Set("A", FeedbackGreen)
	clock.Advance(400 * time.Millisecond)
	a.Set("A", FeedbackRed)
	clock.Advance(400 * time.Millisecond)

	if c, ok := a.Get("A"); !ok || c != FeedbackRed {
		t.Fatalf("second placement should still show red at 800ms, got %q %v", c, ok)
	}
	if clears != 0 {
		t.Fatalf("the superseded timer must not clear, got %d clears", clears)
	}
	clock.Advance(100 * time.Millisecond)
	if clears != 1 || a.Pending() != 0 {
		t.Fatalf("expected one clear and no pending timers, got %d / %d", clears, a.Pending())
	}
}

func TestFeedbackArenaReset(t *testing.T) {
	clock := newFakeClock()
	clears := 0
	a := NewFeedbackArena(clock, 0, func(string) { clears++ })

	a.Set("A", FeedbackGreen)
	a.Set("B", FeedbackRed)
	a.Reset()
	clock.Advance(time.Second)

	if clears != 0 {
		t.Fatalf("reset timers must not fire, got %d", clears)
	}
	if len(a.Snapshot()) != 0 || a.Pending() != 0 {
		t.Fatalf("expected empty arena after reset")
	}
}
