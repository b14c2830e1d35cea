package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// LedgerStore is the durable record of items, parties, budgets and ownership.
type LedgerStore interface {
	GetParty(ctx context.Context, partyRef string) (*Party, error)
	GetItem(ctx context.Context, itemRef string) (*Item, error)
	// CommitSale marks the item sold, appends bidLog to its audit trail, debits the
	// party and adds the item to its roster, all or nothing.
	CommitSale(ctx context.Context, itemRef, partyRef string, amount decimal.Decimal, bidLog []Bid) error
	CommitUnsold(ctx context.Context, itemRef string) error
}

// Broadcaster delivers events to every current observer.
type Broadcaster interface {
	Publish(ctx context.Context, event *RoundEvent) error
}

// Notification interfaces
type UserNotifier interface {
	NotifyUser(ctx context.Context, userID string, message interface{}) error
}

// SnapshotCache keeps the latest round view where other processes can read it.
type SnapshotCache interface {
	SaveSnapshot(ctx context.Context, view *RoundView) error
	GetSnapshot(ctx context.Context) (*RoundView, error)
	ClearSnapshot(ctx context.Context) error
	// RefreshSnapshot extends the expiry of a stored snapshot, if there is one.
	RefreshSnapshot(ctx context.Context) error
}

// Event interfaces
type EventSubscriber interface {
	SubscribeToRoundEvents(ctx context.Context, handler EventHandler) error
}

type EventHandler func(event *MirroredEvent) error

// Leader election interface
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}

// WebSocket interfaces
type WebSocketConnection interface {
	ID() string
	PartyID() string
	Send(message []byte) bool
	Close() error
}

type ConnectionManager interface {
	Register(conn WebSocketConnection)
	Unregister(conn WebSocketConnection)
	Broadcast(message interface{}) error
	NotifyUser(partyID string, message interface{}) error
	Count() int
}
