package mirror

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	redisStateHash = "securaware:user_states"
	redisScoreHash = "securaware:risk_scores"
)

// RedisMirror writes current states and risk scores into Redis hashes so
// dashboards can read them without touching the primary store.
type RedisMirror struct {
	client *redis.Client
}

// NewRedisMirror connects a mirror to the given Redis address.
func NewRedisMirror(addr string) *RedisMirror {
	return &RedisMirror{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func (m *RedisMirror) PublishState(ctx context.Context, ev StateEvent) error {
	return m.client.HSet(ctx, redisStateHash, ev.UserID, ev.ToState).Err()
}

func (m *RedisMirror) PublishScores(ctx context.Context, evs []ScoreEvent) error {
	if len(evs) == 0 {
		return nil
	}
	pairs := make([]any, 0, len(evs)*2)
	for _, ev := range evs {
		pairs = append(pairs, ev.User, strconv.FormatFloat(ev.FinalRiskScore, 'f', -1, 64))
	}
	return m.client.HSet(ctx, redisScoreHash, pairs...).Err()
}

func (m *RedisMirror) Close() error {
	return m.client.Close()
}
