package app

import (
	"context"
	"time"

	"illusion-quiz-service/internal/domain"
)

// Catalog is the read-only question content store.
type Catalog interface {
	QuestionByID(ctx context.Context, id string) (domain.Question, error)
	QuestionsByCategory(ctx context.Context, category domain.Category) ([]domain.Question, error)
	Questions(ctx context.Context) ([]domain.Question, error)
}

// DailySelector deterministically maps a calendar date to one catalog entry,
// so every client sees the same question on the same day with no coordination.
type DailySelector struct {
	catalog Catalog
	now     func() time.Time
}

func NewDailySelector(catalog Catalog) *DailySelector {
	return NewDailySelectorWithClock(catalog, time.Now)
}

// NewDailySelectorWithClock is test-only for deterministic dates.
func NewDailySelectorWithClock(catalog Catalog, now func() time.Time) *DailySelector {
	return &DailySelector{catalog: catalog, now: now}
}

// TodaysQuestion picks today's question by hashing the local date string.
func (s *DailySelector) TodaysQuestion(ctx context.Context) (domain.Question, error) {
	return s.QuestionForDate(ctx, DateString(s.now()))
}

// QuestionForDate picks the question for an arbitrary "YYYY-MM-DD" date.
func (s *DailySelector) QuestionForDate(ctx context.Context, date string) (domain.Question, error) {
	questions, err := s.catalog.Questions(ctx)
	if err != nil {
		return domain.Question{}, err
	}
	if len(questions) == 0 {
		return domain.Question{}, domain.ErrCatalogEmpty
	}
	return questions[DateHash(date)%len(questions)], nil
}

// DateString formats a time as the local "YYYY-MM-DD" string; rollover happens
// at local midnight.
func DateString(t time.Time) string {
	return t.Format("2006-01-02")
}

// DateHash is a 32-bit polynomial rolling hash of the date string, absolute
// value. It must stay stable forever or daily questions would reshuffle.
func DateHash(date string) int {
	var hash int32
	for _, c := range date {
		hash = hash<<5 - hash + int32(c)
	}
	v := int64(hash)
	if v < 0 {
		v = -v
	}
	return int(v)
}
