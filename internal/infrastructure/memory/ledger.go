package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"player-auction/internal/config"
	"player-auction/internal/domain"

	"github.com/shopspring/decimal"
)

// RosterEntry is one player acquired by a team.
type RosterEntry struct {
	ItemRef    string
	Price      decimal.Decimal
	AcquiredAt time.Time
}

// Ledger is an in-process LedgerStore for demos and tests. All writes of a
// commit happen under one lock, so commits are all or nothing.
type Ledger struct {
	mu      sync.RWMutex
	parties map[string]*domain.Party
	items   map[string]*domain.Item
	rosters map[string][]RosterEntry
	history map[string][]domain.Bid
	now     func() time.Time
}

func NewLedger() *Ledger {
	return &Ledger{
		parties: make(map[string]*domain.Party),
		items:   make(map[string]*domain.Item),
		rosters: make(map[string][]RosterEntry),
		history: make(map[string][]domain.Bid),
		now:     time.Now,
	}
}

// NewLedgerFromSeed builds a ledger holding the configured teams and players,
// every player available.
func NewLedgerFromSeed(seed config.LedgerSeed) *Ledger {
	l := NewLedger()
	for _, t := range seed.Teams {
		l.AddParty(domain.Party{
			ID:              t.ID,
			Name:            t.Name,
			Approved:        t.Approved,
			RemainingBudget: decimal.NewFromInt(t.Budget),
		})
	}
	for _, p := range seed.Players {
		l.AddItem(domain.Item{
			ID:        p.ID,
			Name:      p.Name,
			BaseValue: decimal.NewFromInt(p.BaseValue),
			Status:    domain.ItemAvailable,
		})
	}
	return l
}

func (l *Ledger) AddParty(p domain.Party) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.parties[p.ID] = &p
}

func (l *Ledger) AddItem(i domain.Item) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i.Status == "" {
		i.Status = domain.ItemAvailable
	}
	l.items[i.ID] = &i
}

func (l *Ledger) GetParty(_ context.Context, partyRef string) (*domain.Party, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.parties[partyRef]
	if !ok {
		return nil, fmt.Errorf("team %s: %w", partyRef, domain.ErrNotFound)
	}
	party := *p
	return &party, nil
}

func (l *Ledger) GetItem(_ context.Context, itemRef string) (*domain.Item, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	i, ok := l.items[itemRef]
	if !ok {
		return nil, fmt.Errorf("player %s: %w", itemRef, domain.ErrNotFound)
	}
	item := *i
	return &item, nil
}

func (l *Ledger) CommitSale(_ context.Context, itemRef, partyRef string, amount decimal.Decimal, bidLog []domain.Bid) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	item, ok := l.items[itemRef]
	if !ok {
		return fmt.Errorf("player %s: %w", itemRef, domain.ErrNotFound)
	}
	if item.Status != domain.ItemAvailable {
		return fmt.Errorf("%s: %w", itemRef, domain.ErrItemUnavailable)
	}
	party, ok := l.parties[partyRef]
	if !ok {
		return fmt.Errorf("team %s: %w", partyRef, domain.ErrNotFound)
	}
	if !party.Approved {
		return fmt.Errorf("%s: %w", partyRef, domain.ErrUnauthorizedParty)
	}
	if party.RemainingBudget.LessThan(amount) {
		return fmt.Errorf("%s: %w", partyRef, domain.ErrInsufficientFunds)
	}

	item.Status = domain.ItemSold
	item.SoldPrice = amount
	item.OwnerRef = partyRef
	party.RemainingBudget = party.RemainingBudget.Sub(amount)
	l.rosters[partyRef] = append(l.rosters[partyRef], RosterEntry{
		ItemRef:    itemRef,
		Price:      amount,
		AcquiredAt: l.now(),
	})
	l.history[itemRef] = append([]domain.Bid(nil), bidLog...)
	return nil
}

func (l *Ledger) CommitUnsold(_ context.Context, itemRef string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	item, ok := l.items[itemRef]
	if !ok {
		return fmt.Errorf("player %s: %w", itemRef, domain.ErrNotFound)
	}
	if item.Status != domain.ItemAvailable {
		return fmt.Errorf("%s: %w", itemRef, domain.ErrItemUnavailable)
	}
	item.Status = domain.ItemUnsold
	return nil
}

func (l *Ledger) Roster(partyRef string) []RosterEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]RosterEntry(nil), l.rosters[partyRef]...)
}

func (l *Ledger) BidHistory(itemRef string) []domain.Bid {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]domain.Bid(nil), l.history[itemRef]...)
}
