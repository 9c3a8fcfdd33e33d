package watcher

import (
	"sync"
	"time"
)

// hourBudget is a rolling-hour trigger counter. The window restarts once
// more than an hour has elapsed since its first trigger; the count never
// goes negative. A non-positive limit disables the budget.
type hourBudget struct {
	mu          sync.Mutex
	limit       int
	windowStart time.Time
	count       int
	now         func() time.Time // overridable in tests
}

func newHourBudget(limit int) *hourBudget {
	return &hourBudget{limit: limit, now: time.Now}
}

// exhausted reports whether the current window has no budget left.
func (b *hourBudget) exhausted() bool {
	if b.limit <= 0 {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roll()
	return b.count >= b.limit
}

// spend consumes one trigger from the current window.
func (b *hourBudget) spend() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roll()
	b.count++
}

// remaining reports how much budget the current window still has.
// Unlimited budgets report -1.
func (b *hourBudget) remaining() int {
	if b.limit <= 0 {
		return -1
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roll()
	if left := b.limit - b.count; left > 0 {
		return left
	}
	return 0
}

func (b *hourBudget) roll() {
	now := b.now()
	if b.windowStart.IsZero() || now.Sub(b.windowStart) > time.Hour {
		b.windowStart = now
		b.count = 0
	}
}
