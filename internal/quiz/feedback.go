package quiz

import (
	"sync"
	"time"
)

type FeedbackColor string

const (
	FeedbackGreen FeedbackColor = "green"
	FeedbackRed   FeedbackColor = "red"
)

const DefaultFeedbackClear = 500 * time.Millisecond

// FeedbackArena holds the transient per-category placement colors. Each key
// owns one timer; setting a key again restarts only that key's window.
type FeedbackArena struct {
	clock   Clock
	delay   time.Duration
	onClear func(key string)

	mu     sync.Mutex
	colors map[string]FeedbackColor
	timers map[string]Timer
	gen    map[string]uint64
}

func NewFeedbackArena(clock Clock, delay time.Duration, onClear func(key string)) *FeedbackArena {
	if clock == nil {
		clock = RealClock()
	}
	if delay <= 0 {
		delay = DefaultFeedbackClear
	}
	return &FeedbackArena{
		clock:   clock,
		delay:   delay,
		onClear: onClear,
		colors:  make(map[string]FeedbackColor),
		timers:  make(map[string]Timer),
		gen:     make(map[string]uint64),
	}
}

func (a *FeedbackArena) Set(key string, color FeedbackColor) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if t, ok := a.timers[key]; ok {
		t.Stop()
	}
	a.gen[key]++
	g := a.gen[key]
	a.colors[key] = color
	a.timers[key] = a.clock.AfterFunc(a.delay, func() { a.expire(key, g) })
}

// expire ignores stale timers whose Stop lost the race with firing.
func (a *FeedbackArena) expire(key string, g uint64) {
	a.mu.Lock()
	if a.gen[key] != g {
		a.mu.Unlock()
		return
	}
	delete(a.colors, key)
	delete(a.timers, key)
	cb := a.onClear
	a.mu.Unlock()

	if cb != nil {
		cb(key)
	}
}

func (a *FeedbackArena) Get(key string) (FeedbackColor, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.colors[key]
	return c, ok
}

func (a *FeedbackArena) Snapshot() map[string]FeedbackColor {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]FeedbackColor, len(a.colors))
	for k, v := range a.colors {
		out[k] = v
	}
	return out
}

// Pending reports how many keys still wait for their clear.
func (a *FeedbackArena) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.timers)
}

// Reset cancels every timer and drops all colors without notifying.
func (a *FeedbackArena) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for key, t := range a.timers {
		t.Stop()
		a.gen[key]++
	}
	a.colors = make(map[string]FeedbackColor)
	a.timers = make(map[string]Timer)
}
