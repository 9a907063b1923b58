package memory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"illusion-quiz-service/internal/domain"
)

func catalogQuestions() []domain.Question {
	return []domain.Question{
		{ID: "q1", Category: domain.CategoryLifestyle, ActualPercentage: 64},
		{ID: "q2", Category: domain.CategorySocial, ActualPercentage: 71},
		{ID: "q3", Category: domain.CategoryLifestyle, ActualPercentage: 58},
	}
}

func TestStaticCatalogLookups(t *testing.T) {
	catalog := NewStaticCatalog(catalogQuestions())
	ctx := context.Background()

	q, err := catalog.QuestionByID(ctx, "q2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.ActualPercentage != 71 {
		t.Fatalf("unexpected question: %+v", q)
	}

	if _, err := catalog.QuestionByID(ctx, "missing"); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}

	lifestyle, err := catalog.QuestionsByCategory(ctx, domain.CategoryLifestyle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lifestyle) != 2 || lifestyle[0].ID != "q1" || lifestyle[1].ID != "q3" {
		t.Fatalf("category filter must keep catalog order, got %+v", lifestyle)
	}

	all, err := catalog.Questions(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(all))
	}
}

type countingLoader struct {
	inner CatalogLoader
	calls int64
}

func (l *countingLoader) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	atomic.AddInt64(&l.calls, 1)
	return l.inner.LoadQuestions(ctx)
}

func TestCachingCatalogLoadsOnce(t *testing.T) {
	loader := &countingLoader{inner: NewStaticCatalog(catalogQuestions())}
	catalog := NewCachingCatalog(loader, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := catalog.Questions(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if _, err := catalog.QuestionByID(ctx, "q1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if calls := atomic.LoadInt64(&loader.calls); calls != 1 {
		t.Fatalf("expected a single backing load, got %d", calls)
	}
}

func TestCachingCatalogReloadsAfterTTL(t *testing.T) {
	loader := &countingLoader{inner: NewStaticCatalog(catalogQuestions())}
	catalog := NewCachingCatalog(loader, time.Minute)

	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	catalog.clock = func() time.Time { return now }

	ctx := context.Background()
	if _, err := catalog.Questions(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// jitter adds at most 10%, so 2x TTL is safely past expiry
	now = now.Add(2 * time.Minute)
	if _, err := catalog.Questions(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if calls := atomic.LoadInt64(&loader.calls); calls != 2 {
		t.Fatalf("expected reload after TTL, got %d loads", calls)
	}
}

type failingLoader struct{}

func (failingLoader) LoadQuestions(context.Context) ([]domain.Question, error) {
	return nil, errors.New("backing store down")
}

func TestCachingCatalogPropagatesLoadError(t *testing.T) {
	catalog := NewCachingCatalog(failingLoader{}, time.Minute)
	if _, err := catalog.Questions(context.Background()); err == nil {
		t.Fatalf("expected load error")
	}
}
