package app

import (
	"context"
	"math"
	"sync"
	"time"

	"illusion-quiz-service/internal/domain"
)

// MinVotesForVisibility is the community sample size below which aggregates
// are withheld entirely.
const MinVotesForVisibility = 10

// minCohortVotes is the looser per-question gate for small peer groups.
const minCohortVotes = 3

// InsertStatus is the tagged outcome of an append into the vote store.
type InsertStatus int

const (
	// InsertAccepted means a new row was written.
	InsertAccepted InsertStatus = iota
	// InsertConflict means the (question, fingerprint) pair already exists.
	InsertConflict
)

// VoteStore abstracts the append-only vote table. Implementations must
// enforce uniqueness over (question_id, fingerprint) and report a duplicate
// as InsertConflict, not as an error. There are no update or delete calls.
type VoteStore interface {
	Insert(ctx context.Context, vote domain.Vote) (InsertStatus, error)
	GuessesByQuestion(ctx context.Context, questionID string) ([]int, error)
	GuessesByQuestions(ctx context.Context, questionIDs []string) (map[string][]int, error)
	VotesByCohort(ctx context.Context, cohortID string) ([]domain.Vote, error)
}

// StatsProvider serves the community aggregate for one question. The
// VoteService implements it directly; a read-through cache can wrap it.
type StatsProvider interface {
	Stats(ctx context.Context, questionID string) (domain.QuestionStats, error)
}

// StatsInvalidator is implemented by caching StatsProviders that need a
// nudge after a write so the next read reflects the fresh vote.
type StatsInvalidator interface {
	Invalidate(ctx context.Context, questionID string) error
}

// SubmitStatus reports how a vote submission concluded.
type SubmitStatus string

const (
	SubmitAccepted     SubmitStatus = "accepted"
	SubmitAlreadyVoted SubmitStatus = "already-voted"
)

// VoteService is the submission gateway plus the aggregation service: it
// persists one guess per (question, fingerprint) pair and recomputes the
// visibility-gated community statistic from scratch on every read.
type VoteService struct {
	store VoteStore
	now   func() time.Time

	mu        sync.Mutex
	submitted map[voteKey]struct{}

	subMu       sync.Mutex
	subscribers map[string]map[chan domain.QuestionStats]struct{}
}

type voteKey struct {
	questionID  string
	fingerprint string
}

func NewVoteService(store VoteStore) *VoteService {
	return NewVoteServiceWithClock(store, time.Now)
}

// NewVoteServiceWithClock is test-only for deterministic timestamps.
func NewVoteServiceWithClock(store VoteStore, now func() time.Time) *VoteService {
	return &VoteService{
		store:       store,
		now:         now,
		submitted:   make(map[voteKey]struct{}),
		subscribers: make(map[string]map[chan domain.QuestionStats]struct{}),
	}
}

// SubmitVote appends one guess. A duplicate submission for the same pair is
// success, never an error: the store's uniqueness conflict maps to
// SubmitAlreadyVoted, and once a submission has gone through in this process
// the same pair short-circuits without another store round-trip.
func (s *VoteService) SubmitVote(ctx context.Context, questionID, fingerprint string, guess int, locale, cohortID string) (SubmitStatus, error) {
	if fingerprint == "" {
		return "", domain.ErrMissingFingerprint
	}
	if guess < 0 || guess > 100 {
		return "", domain.ErrInvalidGuess
	}

	key := voteKey{questionID: questionID, fingerprint: fingerprint}
	s.mu.Lock()
	if _, ok := s.submitted[key]; ok {
		s.mu.Unlock()
		return SubmitAlreadyVoted, nil
	}
	s.mu.Unlock()

	status, err := s.store.Insert(ctx, domain.Vote{
		QuestionID:  questionID,
		Fingerprint: fingerprint,
		UserGuess:   guess,
		Locale:      locale,
		CohortID:    cohortID,
		CreatedAt:   s.now(),
	})
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.submitted[key] = struct{}{}
	s.mu.Unlock()

	if status == InsertConflict {
		return SubmitAlreadyVoted, nil
	}

	// Best-effort push to live subscribers; a failed refetch only delays them.
	if stats, err := s.Stats(ctx, questionID); err == nil {
		s.broadcast(questionID, stats)
	}
	return SubmitAccepted, nil
}

// Stats recomputes the community aggregate for one question.
func (s *VoteService) Stats(ctx context.Context, questionID string) (domain.QuestionStats, error) {
	guesses, err := s.store.GuessesByQuestion(ctx, questionID)
	if err != nil {
		return domain.QuestionStats{}, err
	}
	return aggregate(questionID, guesses, MinVotesForVisibility, true), nil
}

// StatsBatch recomputes aggregates for every requested question. The result
// always carries an entry per requested id, zero-filled when no votes exist.
func (s *VoteService) StatsBatch(ctx context.Context, questionIDs []string) (map[string]domain.QuestionStats, error) {
	if len(questionIDs) == 0 {
		return map[string]domain.QuestionStats{}, nil
	}
	grouped, err := s.store.GuessesByQuestions(ctx, questionIDs)
	if err != nil {
		return nil, err
	}
	stats := make(map[string]domain.QuestionStats, len(questionIDs))
	for _, id := range questionIDs {
		stats[id] = aggregate(id, grouped[id], MinVotesForVisibility, true)
	}
	return stats, nil
}

// CohortStats aggregates the votes sharing a cohort tag. Membership has no
// roster; the member count is the distinct fingerprints on those votes, so a
// member who has not voted yet is invisible here.
func (s *VoteService) CohortStats(ctx context.Context, cohortID string) (domain.CohortStats, error) {
	votes, err := s.store.VotesByCohort(ctx, cohortID)
	if err != nil {
		return domain.CohortStats{}, err
	}

	members := make(map[string]struct{})
	grouped := make(map[string][]int)
	for _, vote := range votes {
		members[vote.Fingerprint] = struct{}{}
		grouped[vote.QuestionID] = append(grouped[vote.QuestionID], vote.UserGuess)
	}

	stats := make(map[string]domain.QuestionStats, len(grouped))
	for questionID, guesses := range grouped {
		stats[questionID] = aggregate(questionID, guesses, minCohortVotes, false)
	}
	return domain.CohortStats{
		CohortID:      cohortID,
		MemberCount:   len(members),
		QuestionStats: stats,
	}, nil
}

// Subscribe returns a channel receiving fresh stats for a question whenever a
// vote lands. The caller must invoke the cancel function to avoid leaks.
func (s *VoteService) Subscribe(ctx context.Context, questionID string) (<-chan domain.QuestionStats, func()) {
	ch := make(chan domain.QuestionStats, 8)

	// Queue the snapshot before registering: the channel is empty so the send
	// cannot block, and no broadcast can slot in ahead of it.
	if stats, err := s.Stats(ctx, questionID); err == nil {
		ch <- stats
	}

	s.subMu.Lock()
	subs, ok := s.subscribers[questionID]
	if !ok {
		subs = make(map[chan domain.QuestionStats]struct{})
		s.subscribers[questionID] = subs
	}
	subs[ch] = struct{}{}
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		if subs, ok := s.subscribers[questionID]; ok {
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}
			if len(subs) == 0 {
				delete(s.subscribers, questionID)
			}
		}
		s.subMu.Unlock()
	}
	return ch, cancel
}

func (s *VoteService) broadcast(questionID string, stats domain.QuestionStats) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subscribers[questionID] {
		select {
		case ch <- stats:
		default:
			// Drop the stale update so slow readers never block a vote.
			select {
			case <-ch:
			default:
			}
			ch <- stats
		}
	}
}

// aggregate applies the visibility gate. Below the threshold the average is
// nil even when guesses exist; partial aggregates are never exposed.
func aggregate(questionID string, guesses []int, threshold int, oneDecimal bool) domain.QuestionStats {
	count := len(guesses)
	stats := domain.QuestionStats{
		QuestionID: questionID,
		VoteCount:  count,
		IsVisible:  count >= threshold,
	}
	if !stats.IsVisible {
		return stats
	}
	total := 0
	for _, guess := range guesses {
		total += guess
	}
	avg := float64(total) / float64(count)
	if oneDecimal {
		avg = math.Round(avg*10) / 10
	}
	stats.AverageGuess = &avg
	return stats
}
