package services

import (
	"context"
	"errors"
	"testing"

	"player-auction/internal/domain"
	"player-auction/pkg/logger"

	"github.com/peterldowns/testy/check"
)

type fixedSource struct{ view *domain.RoundView }

func (f fixedSource) Snapshot() *domain.RoundView { return f.view }

func (f fixedSource) SnapshotEvent() *domain.RoundEvent {
	return &domain.RoundEvent{Type: domain.EventRoundSnapshot, Seq: 3, Data: f.view}
}

func TestStateProvider_PrefersLocalRound(t *testing.T) {
	cache := &memorySnapshotCache{view: &domain.RoundView{RoundID: "cached"}}
	p := NewStateProvider(fixedSource{view: &domain.RoundView{RoundID: "local", Open: true}}, cache, nil, logger.NewNop())

	check.Equal(t, "local", p.CurrentState(context.Background()).RoundID)
	check.Equal(t, uint64(3), p.SyncEvent(context.Background()).Seq)
}

func TestStateProvider_FallsBackToCache(t *testing.T) {
	cache := &memorySnapshotCache{view: &domain.RoundView{RoundID: "cached", Open: true}}
	p := NewStateProvider(fixedSource{view: idleView()}, cache, func() bool { return false }, logger.NewNop())

	check.Equal(t, "cached", p.CurrentState(context.Background()).RoundID)
	check.Equal(t, uint64(0), p.SyncEvent(context.Background()).Seq)
}

func TestStateProvider_LeaderIgnoresCache(t *testing.T) {
	cache := &memorySnapshotCache{view: &domain.RoundView{RoundID: "cached", Open: true}}
	p := NewStateProvider(fixedSource{view: idleView()}, cache, func() bool { return true }, logger.NewNop())

	check.Equal(t, "idle", p.CurrentState(context.Background()).Phase)
}

func TestStateProvider_EmptyOrBrokenCache(t *testing.T) {
	p := NewStateProvider(fixedSource{view: idleView()}, &memorySnapshotCache{}, nil, logger.NewNop())
	check.Equal(t, "idle", p.CurrentState(context.Background()).Phase)

	broken := &memorySnapshotCache{err: errors.New("redis down")}
	p = NewStateProvider(fixedSource{view: idleView()}, broken, nil, logger.NewNop())
	check.Equal(t, "idle", p.CurrentState(context.Background()).Phase)
}
