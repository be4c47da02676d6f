package tally

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/focusforward/caseguard/pkg/rules"
)

// DefaultSessionTTL bounds how long an idle session's counters live.
const DefaultSessionTTL = 12 * time.Hour

// redisRecordScript counts one review atomically.
// KEYS[1] = counter hash, KEYS[2] = gap sorted set
// ARGV[1] = classification field
// ARGV[2] = ttl seconds
// ARGV[3..] = case-folded anchors
var redisRecordScript = redis.NewScript(`
local counters = KEYS[1]
local gaps = KEYS[2]
local ttl = tonumber(ARGV[2])

local cases = redis.call("HINCRBY", counters, "cases", 1)
redis.call("HINCRBY", counters, ARGV[1], 1)
for i = 3, #ARGV do
    redis.call("ZINCRBY", gaps, 1, ARGV[i])
end

redis.call("EXPIRE", counters, ttl)
if #ARGV > 2 or redis.call("EXISTS", gaps) == 1 then
    redis.call("EXPIRE", gaps, ttl)
end
return cases
`)

// RedisStore shares tallies across replicas.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
	topN   int
}

func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisStore{client: client, ttl: ttl, topN: DefaultTopGaps}
}

// keys share a hash tag so the script stays on one cluster slot.
func keys(sessionID string) []string {
	return []string{
		fmt.Sprintf("caseguard:tally:{%s}", sessionID),
		fmt.Sprintf("caseguard:tally:{%s}:gaps", sessionID),
	}
}

func (s *RedisStore) Record(ctx context.Context, sessionID string, e Entry) error {
	if err := e.validate(sessionID); err != nil {
		return err
	}
	gaps := e.gaps()
	args := make([]interface{}, 0, 2+len(gaps))
	args = append(args, string(e.Classification), int64(s.ttl.Seconds()))
	for _, g := range gaps {
		args = append(args, g)
	}
	if err := redisRecordScript.Run(ctx, s.client, keys(sessionID), args...).Err(); err != nil {
		return fmt.Errorf("tally: redis record: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (Tally, error) {
	if !ValidSession(sessionID) {
		return Tally{}, ErrInvalidSession
	}
	k := keys(sessionID)

	pipe := s.client.Pipeline()
	counters := pipe.HGetAll(ctx, k[0])
	gaps := pipe.ZRevRangeWithScores(ctx, k[1], 0, int64(s.topN-1))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return Tally{}, fmt.Errorf("tally: redis get: %w", err)
	}

	t := Tally{SessionID: sessionID, TopGaps: []GapCount{}}
	for field, raw := range counters.Val() {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Tally{}, fmt.Errorf("tally: corrupt counter %s: %w", field, err)
		}
		if field == "cases" {
			t.Cases = n
			continue
		}
		t.Classifications.add(rules.Tier(field), n)
	}

	counts := make(map[string]int64, len(gaps.Val()))
	for _, z := range gaps.Val() {
		if a, ok := z.Member.(string); ok {
			counts[a] = int64(z.Score)
		}
	}
	// Re-sort so ties break by anchor like the other stores.
	t.TopGaps = Top(counts, s.topN)
	return t, nil
}
