package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"player-auction/internal/domain"
	"player-auction/pkg/logger"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
)

type CoordinatorConfig struct {
	OpeningWindow   time.Duration
	ContestedWindow time.Duration
	TickInterval    time.Duration
	InstanceID      string
}

// Coordinator owns the single live round. Every mutation of the round, ticks
// included, happens under mu; ledger calls are made with mu released and the
// round is re-checked by ID and phase once it is re-acquired.
type Coordinator struct {
	ledger      domain.LedgerStore
	broadcaster domain.Broadcaster
	notifier    domain.UserNotifier
	rules       IncrementRuleSource
	clock       clockwork.Clock
	roundClock  *RoundClock
	cfg         CoordinatorConfig
	log         logger.Logger

	mu      sync.Mutex
	round   *domain.Round
	opening bool
	seq     uint64
}

func NewCoordinator(
	ledger domain.LedgerStore,
	broadcaster domain.Broadcaster,
	notifier domain.UserNotifier,
	rules IncrementRuleSource,
	clock clockwork.Clock,
	cfg CoordinatorConfig,
	log logger.Logger,
) *Coordinator {
	return &Coordinator{
		ledger:      ledger,
		broadcaster: broadcaster,
		notifier:    notifier,
		rules:       rules,
		clock:       clock,
		roundClock:  NewRoundClock(clock, cfg.TickInterval),
		cfg:         cfg,
		log:         log,
	}
}

// OpenRound puts itemRef under the hammer.
func (c *Coordinator) OpenRound(ctx context.Context, itemRef string) (*domain.RoundView, error) {
	c.mu.Lock()
	if c.round != nil || c.opening {
		c.mu.Unlock()
		return nil, domain.ErrConflict
	}
	c.opening = true
	c.mu.Unlock()

	item, err := c.ledger.GetItem(ctx, itemRef)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.opening = false

	if err != nil {
		return nil, fmt.Errorf("look up item %s: %w", itemRef, err)
	}
	if item.Status != domain.ItemAvailable {
		return nil, fmt.Errorf("%w: %s is %s", domain.ErrItemUnavailable, itemRef, item.Status)
	}

	rule := c.rules.CurrentRule()
	round := &domain.Round{
		ID:            uuid.NewString(),
		ItemRef:       item.ID,
		ItemName:      item.Name,
		ItemBaseValue: item.BaseValue,
		LeaderBid:     decimal.Zero,
		Increment:     rule.Increment(item.BaseValue),
		Remaining:     seconds(c.cfg.OpeningWindow),
		BidLog:        []domain.Bid{},
		Phase:         domain.PhaseOpen,
		OpenedAt:      c.clock.Now(),
	}
	round.ClockEpoch = c.roundClock.Start(c.onTick)
	c.round = round

	c.log.Info("Round opened", "round_id", round.ID, "item_ref", round.ItemRef,
		"base_value", round.ItemBaseValue.String())

	view := c.viewLocked()
	c.publishLocked(ctx, domain.EventRoundSnapshot, view)
	return view, nil
}

// SubmitBid validates and applies a bid. Inactive-round and stale-bid rejections
// are normal traffic and only logged at debug level; the other rejections are
// reported back to the bidding party alone.
func (c *Coordinator) SubmitBid(ctx context.Context, partyRef string, amount decimal.Decimal) error {
	c.mu.Lock()
	if c.round == nil || c.round.Phase != domain.PhaseOpen {
		c.mu.Unlock()
		c.log.Debug("Bid dropped, no open round", "party_ref", partyRef, "amount", amount.String())
		return domain.ErrInactiveRound
	}
	roundID := c.round.ID
	c.mu.Unlock()

	// Approval and budget are read fresh for every bid.
	party, err := c.ledger.GetParty(ctx, partyRef)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.reject(ctx, partyRef, amount, fmt.Errorf("%w: unknown party %s", domain.ErrUnauthorizedParty, partyRef))
		}
		c.log.Error("Failed to look up party", "party_ref", partyRef, "error", err)
		return fmt.Errorf("look up party %s: %w", partyRef, err)
	}
	if !party.Approved {
		return c.reject(ctx, partyRef, amount, fmt.Errorf("%w: %s", domain.ErrUnauthorizedParty, partyRef))
	}
	if party.RemainingBudget.LessThan(amount) {
		return c.reject(ctx, partyRef, amount, fmt.Errorf("%w: %s has %s left", domain.ErrInsufficientFunds,
			partyRef, party.RemainingBudget.String()))
	}
	if !amount.IsPositive() || !amount.IsInteger() {
		return c.reject(ctx, partyRef, amount, fmt.Errorf("%w: %s", domain.ErrInvalidAmount, amount.String()))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	round := c.round
	if round == nil || round.ID != roundID || round.Phase != domain.PhaseOpen {
		c.log.Debug("Bid dropped, round closed during validation", "party_ref", partyRef, "round_id", roundID)
		return domain.ErrInactiveRound
	}
	if !amount.GreaterThan(round.LeaderBid) {
		c.log.Debug("Stale bid dropped", "party_ref", partyRef, "amount", amount.String(),
			"leader_bid", round.LeaderBid.String())
		return domain.ErrStaleBid
	}

	round.LeaderBid = amount
	round.LeaderRef = party.ID
	round.LeaderName = party.Name
	round.Increment = c.rules.CurrentRule().Increment(amount)
	round.BidLog = append(round.BidLog, domain.Bid{
		PartyRef:  party.ID,
		PartyName: party.Name,
		Amount:    amount,
		Timestamp: c.clock.Now(),
	})
	round.Remaining = seconds(c.cfg.ContestedWindow)
	round.ClockEpoch = c.roundClock.Reset()

	c.log.Info("Bid accepted", "round_id", round.ID, "item_ref", round.ItemRef,
		"party_ref", party.ID, "amount", amount.String())

	c.publishLocked(ctx, domain.EventRoundSnapshot, c.viewLocked())
	return nil
}

// Sell commits the round to its leader.
func (c *Coordinator) Sell(ctx context.Context) (*domain.ItemSoldPayload, error) {
	c.mu.Lock()
	round := c.round
	if round == nil || round.Phase != domain.PhaseOpen || !round.HasLeader() {
		c.mu.Unlock()
		return nil, domain.ErrInvalidTransition
	}
	// Bids are refused from here on, before any I/O.
	round.Phase = domain.PhaseFinalizing
	itemRef, leaderRef, amount := round.ItemRef, round.LeaderRef, round.LeaderBid
	bidLog := append([]domain.Bid(nil), round.BidLog...)
	c.mu.Unlock()

	err := c.ledger.CommitSale(ctx, itemRef, leaderRef, amount, bidLog)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		round.Phase = domain.PhaseOpen
		c.log.Error("Failed to commit sale, round reopened", "round_id", round.ID, "item_ref", itemRef,
			"party_ref", leaderRef, "amount", amount.String(), "error", err)
		return nil, &domain.CommitError{Op: "sell", Item: itemRef, Err: err}
	}

	sold := &domain.ItemSoldPayload{
		Item:        itemRef,
		ItemName:    round.ItemName,
		WinnerRef:   leaderRef,
		WinnerName:  round.LeaderName,
		FinalAmount: amount,
	}
	c.closeLocked(ctx)
	c.publishLocked(ctx, domain.EventItemSold, sold)

	c.log.Info("Item sold", "item_ref", itemRef, "party_ref", leaderRef, "amount", amount.String())
	return sold, nil
}

// MarkUnsold closes the round without a sale. It does not need a leader.
func (c *Coordinator) MarkUnsold(ctx context.Context) (*domain.ItemUnsoldPayload, error) {
	c.mu.Lock()
	round := c.round
	if round == nil || round.Phase != domain.PhaseOpen {
		c.mu.Unlock()
		return nil, domain.ErrInvalidTransition
	}
	round.Phase = domain.PhaseFinalizing
	itemRef := round.ItemRef
	c.mu.Unlock()

	err := c.ledger.CommitUnsold(ctx, itemRef)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		round.Phase = domain.PhaseOpen
		c.log.Error("Failed to commit unsold, round reopened", "round_id", round.ID, "item_ref", itemRef, "error", err)
		return nil, &domain.CommitError{Op: "mark unsold", Item: itemRef, Err: err}
	}

	unsold := &domain.ItemUnsoldPayload{Item: itemRef, ItemName: round.ItemName}
	c.closeLocked(ctx)
	c.publishLocked(ctx, domain.EventItemUnsold, unsold)

	c.log.Info("Item unsold", "item_ref", itemRef)
	return unsold, nil
}

// Snapshot returns the current view, or an idle view when no round exists.
func (c *Coordinator) Snapshot() *domain.RoundView {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.round == nil {
		return idleView()
	}
	return c.viewLocked()
}

// SnapshotEvent wraps the current view in a roundSnapshot event carrying the
// seq of the last publish, so a client syncing mid-round can discard anything
// older it receives afterwards.
func (c *Coordinator) SnapshotEvent() *domain.RoundEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	view := idleView()
	if c.round != nil {
		view = c.viewLocked()
	}
	return &domain.RoundEvent{
		Type:      domain.EventRoundSnapshot,
		Seq:       c.seq,
		Origin:    c.cfg.InstanceID,
		Timestamp: c.clock.Now(),
		Data:      view,
	}
}

func (c *Coordinator) Phase() domain.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.round == nil {
		return domain.PhaseIdle
	}
	return c.round.Phase
}

// Close stops the round clock. The round itself is left as is.
func (c *Coordinator) Close() {
	c.roundClock.Cancel()
}

func (c *Coordinator) onTick(epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	round := c.round
	if round == nil || round.Phase != domain.PhaseOpen || round.ClockEpoch != epoch || round.Remaining <= 0 {
		return
	}

	round.Remaining--
	if round.Remaining == 0 {
		// The timer is advisory; the operator still decides the outcome.
		c.roundClock.Cancel()
		c.log.Info("Round clock expired", "round_id", round.ID, "item_ref", round.ItemRef)
	}

	c.publishLocked(context.Background(), domain.EventRoundSnapshot, c.viewLocked())
}

func (c *Coordinator) closeLocked(ctx context.Context) {
	c.roundClock.Cancel()
	c.round.Phase = domain.PhaseClosed
	c.publishLocked(ctx, domain.EventRoundSnapshot, c.viewLocked())
	c.round = nil
}

func (c *Coordinator) reject(ctx context.Context, partyRef string, amount decimal.Decimal, err error) error {
	c.log.Info("Bid rejected", "party_ref", partyRef, "amount", amount.String(), "error", err)

	if c.notifier != nil {
		notice := &domain.RoundEvent{
			Type:      domain.EventBidRejected,
			Origin:    c.cfg.InstanceID,
			Timestamp: c.clock.Now(),
			Data: domain.BidRejection{
				Reason:  domain.RejectionReason(err),
				Message: err.Error(),
				Amount:  amount,
			},
		}
		if nerr := c.notifier.NotifyUser(ctx, partyRef, notice); nerr != nil {
			c.log.Warn("Failed to notify party", "party_ref", partyRef, "error", nerr)
		}
	}
	return err
}

func (c *Coordinator) publishLocked(ctx context.Context, eventType domain.EventType, data interface{}) {
	c.seq++
	event := &domain.RoundEvent{
		Type:      eventType,
		Seq:       c.seq,
		Origin:    c.cfg.InstanceID,
		Timestamp: c.clock.Now(),
		Data:      data,
	}
	if err := c.broadcaster.Publish(ctx, event); err != nil {
		c.log.Error("Failed to publish event", "type", eventType, "seq", event.Seq, "error", err)
	}
}

func (c *Coordinator) viewLocked() *domain.RoundView {
	r := c.round

	next := r.ItemBaseValue
	if r.HasLeader() {
		next = r.LeaderBid.Add(r.Increment)
	}

	bids := make([]domain.Bid, len(r.BidLog))
	for i, b := range r.BidLog {
		bids[len(r.BidLog)-1-i] = b
	}

	return &domain.RoundView{
		RoundID:            r.ID,
		ItemRef:            r.ItemRef,
		ItemName:           r.ItemName,
		ItemBaseValue:      r.ItemBaseValue,
		LeaderBid:          r.LeaderBid,
		LeaderRef:          r.LeaderRef,
		LeaderDisplayName:  r.LeaderName,
		RemainingSeconds:   r.Remaining,
		Open:               r.Phase == domain.PhaseOpen,
		Phase:              r.Phase.String(),
		SuggestedIncrement: r.Increment,
		NextMinimumBid:     next,
		BidLog:             bids,
	}
}

func idleView() *domain.RoundView {
	return &domain.RoundView{
		Phase:  domain.PhaseIdle.String(),
		BidLog: []domain.Bid{},
	}
}

func seconds(d time.Duration) int {
	return int(d / time.Second)
}
