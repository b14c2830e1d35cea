package leader

import (
	"context"
	"testing"
	"time"

	"player-auction/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func newElection(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *RedisLeaderElection) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisLeaderElection(client, "auction_leader", ttl, logger.NewNop())
}

func TestRedisLeaderElection_SingleHolder(t *testing.T) {
	mr, election := newElection(t, 30*time.Second)
	ctx := context.Background()

	ok, err := election.BecomeLeader(ctx, "instance-a")
	assert.NoError(t, err)
	check.True(t, ok)
	check.Equal(t, 30*time.Second, mr.TTL("auction_leader"))

	ok, err = election.BecomeLeader(ctx, "instance-b")
	assert.NoError(t, err)
	check.False(t, ok)

	leader, err := election.IsLeader(ctx, "instance-a")
	assert.NoError(t, err)
	check.True(t, leader)

	leader, err = election.IsLeader(ctx, "instance-b")
	assert.NoError(t, err)
	check.False(t, leader)

	assert.NoError(t, election.ReleaseLeadership(ctx, "instance-a"))
}

func TestRedisLeaderElection_ReleaseOnlyByHolder(t *testing.T) {
	mr, election := newElection(t, 30*time.Second)
	ctx := context.Background()

	_, err := election.BecomeLeader(ctx, "instance-a")
	assert.NoError(t, err)

	assert.NoError(t, election.ReleaseLeadership(ctx, "instance-b"))
	check.True(t, mr.Exists("auction_leader"))

	assert.NoError(t, election.ReleaseLeadership(ctx, "instance-a"))
	check.False(t, mr.Exists("auction_leader"))

	leader, err := election.IsLeader(ctx, "instance-a")
	assert.NoError(t, err)
	check.False(t, leader)
}

func TestRedisLeaderElection_ExpiredLockCanBeTaken(t *testing.T) {
	mr, election := newElection(t, 30*time.Second)
	ctx := context.Background()

	_, err := election.BecomeLeader(ctx, "instance-a")
	assert.NoError(t, err)
	election.stopHeartbeat()

	mr.FastForward(31 * time.Second)

	ok, err := election.BecomeLeader(ctx, "instance-b")
	assert.NoError(t, err)
	check.True(t, ok)
	election.stopHeartbeat()
}

func TestRedisLeaderElection_Extend(t *testing.T) {
	mr, election := newElection(t, 30*time.Second)
	ctx := context.Background()

	_, err := election.BecomeLeader(ctx, "instance-a")
	assert.NoError(t, err)
	election.stopHeartbeat()

	mr.FastForward(20 * time.Second)
	held, err := election.extend(ctx, "instance-a")
	assert.NoError(t, err)
	check.True(t, held)
	check.Equal(t, 30*time.Second, mr.TTL("auction_leader"))

	held, err = election.extend(ctx, "instance-b")
	assert.NoError(t, err)
	check.False(t, held)
}
