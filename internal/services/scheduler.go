package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"player-auction/internal/domain"
	"player-auction/pkg/logger"

	"github.com/robfig/cron/v3"
)

type SchedulerConfig struct {
	InstanceID       string
	CampaignInterval time.Duration
	SnapshotRefresh  time.Duration
}

// CronScheduler runs the periodic housekeeping of an instance: campaigning for
// auction leadership and extending the cached snapshot's expiry while a round
// is open.
type CronScheduler struct {
	cron     *cron.Cron
	election domain.LeaderElection
	source   SnapshotSource
	cache    domain.SnapshotCache
	cfg      SchedulerConfig
	log      logger.Logger

	leader atomic.Bool
}

func NewCronScheduler(election domain.LeaderElection, source SnapshotSource, cache domain.SnapshotCache,
	cfg SchedulerConfig, log logger.Logger) *CronScheduler {
	return &CronScheduler{
		cron:     cron.New(cron.WithSeconds()),
		election: election,
		source:   source,
		cache:    cache,
		cfg:      cfg,
		log:      log,
	}
}

func (s *CronScheduler) Start(ctx context.Context) error {
	s.log.Info("Starting auction scheduler", "instance_id", s.cfg.InstanceID)

	// Campaign once up front so operator commands work right after boot.
	s.campaign(ctx)

	if _, err := s.cron.AddFunc(every(s.cfg.CampaignInterval), func() {
		s.campaign(ctx)
	}); err != nil {
		return err
	}

	if s.cache != nil && s.cfg.SnapshotRefresh > 0 {
		if _, err := s.cron.AddFunc(every(s.cfg.SnapshotRefresh), func() {
			s.refreshSnapshot(ctx)
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

// Stop waits for running jobs and gives up leadership if held.
func (s *CronScheduler) Stop(ctx context.Context) error {
	s.log.Info("Stopping auction scheduler")
	<-s.cron.Stop().Done()

	if !s.leader.Swap(false) {
		return nil
	}
	return s.election.ReleaseLeadership(ctx, s.cfg.InstanceID)
}

// IsLeader reports the outcome of the last campaign.
func (s *CronScheduler) IsLeader() bool {
	return s.leader.Load()
}

func (s *CronScheduler) campaign(ctx context.Context) {
	leader, err := s.election.IsLeader(ctx, s.cfg.InstanceID)
	if err == nil && !leader {
		leader, err = s.election.BecomeLeader(ctx, s.cfg.InstanceID)
	}
	if err != nil {
		s.log.Error("Leadership campaign failed", "instance_id", s.cfg.InstanceID, "error", err)
		leader = false
	}

	if was := s.leader.Swap(leader); was != leader {
		if leader {
			s.log.Info("Acquired auction leadership", "instance_id", s.cfg.InstanceID)
		} else {
			s.log.Warn("Lost auction leadership", "instance_id", s.cfg.InstanceID)
		}
	}
}

func (s *CronScheduler) refreshSnapshot(ctx context.Context) {
	if !s.IsLeader() {
		return
	}

	view := s.source.Snapshot()
	if !view.Open {
		return
	}
	// Only the expiry is touched; the content is owned by the publish path.
	if err := s.cache.RefreshSnapshot(ctx); err != nil {
		s.log.Error("Failed to refresh snapshot", "round_id", view.RoundID, "error", err)
	}
}

func every(d time.Duration) string {
	return fmt.Sprintf("@every %s", d)
}
