package treasury

import (
	"context"
	"fmt"
	"sync"

	"custodia/pkg/domain"
)

// Release captures one completed value movement, kept for inspection in tests
// and dev mode.
type Release struct {
	Recipient domain.Principal
	Amount    int64
}

// InMemory is a treasury backed by a single in-process balance. It favors
// clarity over performance and is the default in dev mode and unit tests.
type InMemory struct {
	mu       sync.RWMutex
	balance  int64
	released []Release
}

func NewInMemory(balance int64) *InMemory {
	return &InMemory{balance: balance}
}

func (t *InMemory) AvailableBalance(_ context.Context) (int64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.balance, nil
}

func (t *InMemory) Release(_ context.Context, recipient domain.Principal, amount int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if amount <= 0 {
		return fmt.Errorf("%w: non-positive amount %d", ErrReleaseFailed, amount)
	}
	if t.balance < amount {
		return fmt.Errorf("%w: balance %d below %d", ErrReleaseFailed, t.balance, amount)
	}
	t.balance -= amount
	t.released = append(t.released, Release{Recipient: recipient, Amount: amount})
	return nil
}

// Deposit credits the balance. Dev/test helper; production deposits arrive
// through the backing ledger, not this API.
func (t *InMemory) Deposit(amount int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balance += amount
}

// Released returns a copy of all completed releases in order.
func (t *InMemory) Released() []Release {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Release{}, t.released...)
}
