package crawler

import "sync"

// Budget bounds the number of page fetches in one traversal.
// It is shared by pointer across every recursive visit of the traversal.
type Budget struct {
	mu      sync.Mutex
	visited int
	max     int
}

// NewBudget creates a budget allowing max fetches.
func NewBudget(max int) *Budget {
	return &Budget{max: max}
}

// TryAcquire takes one unit of budget. It returns false without changing
// anything when the budget is already exhausted.
func (b *Budget) TryAcquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.visited >= b.max {
		return false
	}
	b.visited++
	return true
}

// Exhausted reports whether no further fetch may begin.
func (b *Budget) Exhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.visited >= b.max
}

// Used returns the number of fetches started so far.
func (b *Budget) Used() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.visited
}

// Max returns the configured limit.
func (b *Budget) Max() int {
	return b.max
}
