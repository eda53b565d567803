package ledger

import (
	"context"
	"sync"
	"time"
)

type inMemoryLedger struct {
	mu       sync.RWMutex
	balances map[string]int64
	entries  map[string]Entry
	order    []string
	now      func() time.Time
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		balances: make(map[string]int64),
		entries:  make(map[string]Entry),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (l *inMemoryLedger) EnsureAccount(_ context.Context, code string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.balances[code]; !exists {
		l.balances[code] = 0
	}
	return nil
}

func (l *inMemoryLedger) Balance(_ context.Context, code string) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	balance, exists := l.balances[code]
	if !exists {
		return 0, ErrAccountNotFound
	}
	return balance, nil
}

func (l *inMemoryLedger) Debit(_ context.Context, code string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	balance, ok := l.balances[code]
	if !ok {
		return 0, ErrAccountNotFound
	}
	if balance < amount {
		return balance, ErrInsufficientFunds
	}
	balance -= amount
	l.balances[code] = balance
	return balance, nil
}

func (l *inMemoryLedger) Credit(_ context.Context, code string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	balance, ok := l.balances[code]
	if !ok {
		return 0, ErrAccountNotFound
	}
	balance += amount
	l.balances[code] = balance
	return balance, nil
}

func (l *inMemoryLedger) AppendEntry(_ context.Context, entry Entry) (Entry, error) {
	if entry.Amount <= 0 {
		return Entry{}, ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.entries[entry.Reference]; ok {
		return cloneEntry(existing), ErrDuplicateEntry
	}
	now := l.now()
	entry.CreatedAt, entry.UpdatedAt = now, now
	entry = cloneEntry(entry)
	l.entries[entry.Reference] = entry
	l.order = append(l.order, entry.Reference)
	return cloneEntry(entry), nil
}

func (l *inMemoryLedger) UpdateEntryStatus(_ context.Context, reference string, status Status) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[reference]
	if !ok {
		return ErrEntryNotFound
	}
	if !validTransition(entry.Status, status) {
		return ErrInvalidTransition
	}
	entry.Status = status
	entry.UpdatedAt = l.now()
	l.entries[reference] = entry
	return nil
}

func (l *inMemoryLedger) Entry(_ context.Context, reference string) (Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	entry, ok := l.entries[reference]
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	return cloneEntry(entry), nil
}

func (l *inMemoryLedger) Entries(_ context.Context, ownerID string, limit int) ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Entry
	for i := len(l.order) - 1; i >= 0; i-- {
		entry := l.entries[l.order[i]]
		if entry.SenderID != ownerID && entry.RecipientID != ownerID {
			continue
		}
		out = append(out, cloneEntry(entry))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func cloneEntry(e Entry) Entry {
	if e.Metadata != nil {
		md := make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			md[k] = v
		}
		e.Metadata = md
	}
	return e
}
