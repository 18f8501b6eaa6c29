package ratelimit

import (
	"sync"
)

// Budget is a finite count of upstream API calls a harvest run may spend.
// Every call spends exactly one unit regardless of outcome; once the budget
// hits zero all further spending is refused.
type Budget struct {
	capacity  int
	remaining int
	spent     int
	mu        sync.Mutex
}

// NewBudget creates a budget with the given capacity
func NewBudget(capacity int) *Budget {
	if capacity < 0 {
		capacity = 0
	}
	return &Budget{
		capacity:  capacity,
		remaining: capacity,
	}
}

// Spend consumes one unit. It returns false when the budget is exhausted,
// in which case nothing is consumed.
func (b *Budget) Spend() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.remaining <= 0 {
		return false
	}

	b.remaining--
	b.spent++
	return true
}

// Remaining returns the number of units left
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.remaining
}

// Spent returns the number of units consumed so far
func (b *Budget) Spent() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.spent
}

// Exhausted reports whether no units are left
func (b *Budget) Exhausted() bool {
	return b.Remaining() <= 0
}

// Reset restores the budget to full capacity
func (b *Budget) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.remaining = b.capacity
	b.spent = 0
}
