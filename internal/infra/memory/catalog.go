package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"illusion-quiz-service/internal/domain"
)

// CatalogLoader fetches the full question catalog from a backing store.
type CatalogLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

// StaticCatalog serves a fixed, ordered question list. It implements both the
// catalog port and CatalogLoader, so it doubles as a loader in tests.
type StaticCatalog struct {
	questions []domain.Question
	byID      map[string]int
}

func NewStaticCatalog(questions []domain.Question) *StaticCatalog {
	byID := make(map[string]int, len(questions))
	for i, q := range questions {
		byID[q.ID] = i
	}
	return &StaticCatalog{questions: questions, byID: byID}
}

func (c *StaticCatalog) QuestionByID(_ context.Context, id string) (domain.Question, error) {
	if i, ok := c.byID[id]; ok {
		return c.questions[i], nil
	}
	return domain.Question{}, domain.ErrQuestionNotFound
}

func (c *StaticCatalog) QuestionsByCategory(_ context.Context, category domain.Category) ([]domain.Question, error) {
	return filterByCategory(c.questions, category), nil
}

func (c *StaticCatalog) Questions(_ context.Context) ([]domain.Question, error) {
	return c.questions, nil
}

func (c *StaticCatalog) LoadQuestions(_ context.Context) ([]domain.Question, error) {
	return c.questions, nil
}

// CachingCatalog caches the loaded catalog with TTL to avoid repeated DB
// hits. Question content changes only on deploys, so a stale read is cheap.
type CachingCatalog struct {
	loader CatalogLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	questions []domain.Question
	byID      map[string]int
	expiresAt time.Time
}

func NewCachingCatalog(loader CatalogLoader, ttl time.Duration) *CachingCatalog {
	return &CachingCatalog{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *CachingCatalog) QuestionByID(ctx context.Context, id string) (domain.Question, error) {
	questions, err := c.load(ctx)
	if err != nil {
		return domain.Question{}, err
	}
	c.mu.RLock()
	i, ok := c.byID[id]
	c.mu.RUnlock()
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return questions[i], nil
}

func (c *CachingCatalog) QuestionsByCategory(ctx context.Context, category domain.Category) ([]domain.Question, error) {
	questions, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	return filterByCategory(questions, category), nil
}

func (c *CachingCatalog) Questions(ctx context.Context) ([]domain.Question, error) {
	return c.load(ctx)
}

func (c *CachingCatalog) load(ctx context.Context) ([]domain.Question, error) {
	now := c.clock()

	c.mu.RLock()
	if c.questions != nil && c.expiresAt.After(now) {
		questions := c.questions
		c.mu.RUnlock()
		return questions, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do("catalog", func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if c.questions != nil && c.expiresAt.After(now) {
			questions := c.questions
			c.mu.RUnlock()
			return questions, nil
		}
		c.mu.RUnlock()

		questions, err := c.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}

		byID := make(map[string]int, len(questions))
		for i, q := range questions {
			byID[q.ID] = i
		}

		c.mu.Lock()
		c.questions = questions
		c.byID = byID
		c.expiresAt = now.Add(c.ttlWithJitter())
		c.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (c *CachingCatalog) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

func filterByCategory(questions []domain.Question, category domain.Category) []domain.Question {
	matched := make([]domain.Question, 0)
	for _, q := range questions {
		if q.Category == category {
			matched = append(matched, q)
		}
	}
	return matched
}
