package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseOpen
	PhaseFinalizing
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseOpen:
		return "open"
	case PhaseFinalizing:
		return "finalizing"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type ItemStatus string

const (
	ItemAvailable ItemStatus = "available"
	ItemSold      ItemStatus = "sold"
	ItemUnsold    ItemStatus = "unsold"
)

// Item is a player offered for auction.
type Item struct {
	ID        string
	Name      string
	BaseValue decimal.Decimal
	Status    ItemStatus
	SoldPrice decimal.Decimal
	OwnerRef  string
}

// Party is a bidding team.
type Party struct {
	ID              string
	Name            string
	Approved        bool
	RemainingBudget decimal.Decimal
}

// Bid is one accepted entry of a round's bid log.
type Bid struct {
	PartyRef  string          `json:"party_ref"`
	PartyName string          `json:"party_name,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

// Round is the in-memory state of the item currently under the hammer.
// BidLog is kept in acceptance order; views reverse it.
type Round struct {
	ID            string
	ItemRef       string
	ItemName      string
	ItemBaseValue decimal.Decimal
	LeaderBid     decimal.Decimal
	LeaderRef     string
	LeaderName    string
	Increment     decimal.Decimal
	Remaining     int
	BidLog        []Bid
	Phase         Phase
	OpenedAt      time.Time
	ClockEpoch    uint64
}

// HasLeader reports whether any bid has been accepted.
func (r *Round) HasLeader() bool {
	return r.LeaderRef != "" && r.LeaderBid.IsPositive()
}

// RoundView is the snapshot published to every observer.
type RoundView struct {
	RoundID            string          `json:"round_id,omitempty"`
	ItemRef            string          `json:"item_ref,omitempty"`
	ItemName           string          `json:"item_name,omitempty"`
	ItemBaseValue      decimal.Decimal `json:"item_base_value"`
	LeaderBid          decimal.Decimal `json:"leader_bid"`
	LeaderRef          string          `json:"leader_ref,omitempty"`
	LeaderDisplayName  string          `json:"leader_display_name,omitempty"`
	RemainingSeconds   int             `json:"remaining_seconds"`
	Open               bool            `json:"open"`
	Phase              string          `json:"phase"`
	SuggestedIncrement decimal.Decimal `json:"suggested_increment"`
	NextMinimumBid     decimal.Decimal `json:"next_minimum_bid"`
	BidLog             []Bid           `json:"bid_log"`
}

type EventType string

const (
	EventRoundSnapshot EventType = "roundSnapshot"
	EventItemSold      EventType = "itemSold"
	EventItemUnsold    EventType = "itemUnsold"
	EventBidRejected   EventType = "bidRejected"
)

// RoundEvent is what the coordinator hands to the broadcast channel.
// Seq increases by one per publish so observers can detect reordering.
type RoundEvent struct {
	Type      EventType   `json:"type"`
	Seq       uint64      `json:"seq"`
	Origin    string      `json:"origin,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

type ItemSoldPayload struct {
	Item        string          `json:"item"`
	ItemName    string          `json:"item_name,omitempty"`
	WinnerRef   string          `json:"winner_ref"`
	WinnerName  string          `json:"winner_name,omitempty"`
	FinalAmount decimal.Decimal `json:"final_amount"`
}

type ItemUnsoldPayload struct {
	Item     string `json:"item"`
	ItemName string `json:"item_name,omitempty"`
}

// BidRejection is sent only to the party whose bid was refused.
type BidRejection struct {
	Reason  string          `json:"reason"`
	Message string          `json:"message"`
	Amount  decimal.Decimal `json:"amount"`
}

// MirroredEvent is a RoundEvent as read back from the pub/sub mirror; Data stays raw.
type MirroredEvent struct {
	Type      EventType       `json:"type"`
	Seq       uint64          `json:"seq"`
	Origin    string          `json:"origin,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}
