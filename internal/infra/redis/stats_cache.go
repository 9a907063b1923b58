package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"illusion-quiz-service/internal/app"
	"illusion-quiz-service/internal/domain"
)

// StatsCache is a short-TTL read-through cache over a StatsProvider, keeping
// dashboard reads off the vote table. A vote submission invalidates the
// question's entry so submit-then-refetch still observes the fresh count.
type StatsCache struct {
	client   *redis.Client
	provider app.StatsProvider
	ttl      time.Duration
	sf       singleflight.Group
	rnd      *rand.Rand
}

func NewStatsCache(client *redis.Client, provider app.StatsProvider, ttl time.Duration) *StatsCache {
	return &StatsCache{
		client:   client,
		provider: provider,
		ttl:      ttl,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *StatsCache) Stats(ctx context.Context, questionID string) (domain.QuestionStats, error) {
	key := c.key(questionID)

	if raw, err := c.client.Get(ctx, key).Result(); err == nil {
		var stats domain.QuestionStats
		if err := json.Unmarshal([]byte(raw), &stats); err == nil {
			return stats, nil
		}
	}

	result, err, _ := c.sf.Do(questionID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if raw, err := c.client.Get(ctx, key).Result(); err == nil {
			var stats domain.QuestionStats
			if err := json.Unmarshal([]byte(raw), &stats); err == nil {
				return stats, nil
			}
		}

		stats, err := c.provider.Stats(ctx, questionID)
		if err != nil {
			return domain.QuestionStats{}, err
		}
		if raw, err := json.Marshal(stats); err == nil {
			_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
		}
		return stats, nil
	})
	if err != nil {
		return domain.QuestionStats{}, err
	}
	return result.(domain.QuestionStats), nil
}

// Invalidate drops the cached entry so the next read recomputes.
func (c *StatsCache) Invalidate(ctx context.Context, questionID string) error {
	return c.client.Del(ctx, c.key(questionID)).Err()
}

func (c *StatsCache) key(questionID string) string {
	return "stats:" + questionID
}

func (c *StatsCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
