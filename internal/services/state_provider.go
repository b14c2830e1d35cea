package services

import (
	"context"

	"player-auction/internal/domain"
	"player-auction/pkg/logger"
)

// SnapshotSource is anything that can report the live round.
type SnapshotSource interface {
	Snapshot() *domain.RoundView
	SnapshotEvent() *domain.RoundEvent
}

// StateProvider answers "what is on the block right now" for new connections
// and the REST API. The local coordinator is authoritative while it holds a
// round; an instance that is not running the auction falls back to the cached
// snapshot written by the one that is. isLeader may be nil.
type StateProvider struct {
	local    SnapshotSource
	cache    domain.SnapshotCache
	isLeader func() bool
	log      logger.Logger
}

func NewStateProvider(local SnapshotSource, cache domain.SnapshotCache, isLeader func() bool,
	log logger.Logger) *StateProvider {
	return &StateProvider{
		local:    local,
		cache:    cache,
		isLeader: isLeader,
		log:      log,
	}
}

func (p *StateProvider) CurrentState(ctx context.Context) *domain.RoundView {
	return p.SyncEvent(ctx).Data.(*domain.RoundView)
}

// SyncEvent is the roundSnapshot sent to a connection when it attaches or asks
// to resync. A cached snapshot carries seq 0.
func (p *StateProvider) SyncEvent(ctx context.Context) *domain.RoundEvent {
	event := p.local.SnapshotEvent()
	view := event.Data.(*domain.RoundView)
	if view.RoundID != "" || p.cache == nil || (p.isLeader != nil && p.isLeader()) {
		return event
	}

	cached, err := p.cache.GetSnapshot(ctx)
	if err != nil {
		p.log.Warn("Failed to read cached snapshot", "error", err)
		return event
	}
	if cached == nil {
		return event
	}
	return &domain.RoundEvent{
		Type:      domain.EventRoundSnapshot,
		Timestamp: event.Timestamp,
		Data:      cached,
	}
}
