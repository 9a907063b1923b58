package memory

import (
	"context"
	"sync"

	"illusion-quiz-service/internal/app"
	"illusion-quiz-service/internal/domain"
)

// VoteStore is an in-memory implementation of app.VoteStore. It enforces the
// same (question, fingerprint) uniqueness as the Postgres table, reporting a
// duplicate as a conflict rather than an error.
type VoteStore struct {
	mu    sync.RWMutex
	votes []domain.Vote
	seen  map[votePair]struct{}
}

type votePair struct {
	questionID  string
	fingerprint string
}

func NewVoteStore() *VoteStore {
	return &VoteStore{seen: make(map[votePair]struct{})}
}

func (s *VoteStore) Insert(_ context.Context, vote domain.Vote) (app.InsertStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pair := votePair{questionID: vote.QuestionID, fingerprint: vote.Fingerprint}
	if _, ok := s.seen[pair]; ok {
		return app.InsertConflict, nil
	}
	s.seen[pair] = struct{}{}
	s.votes = append(s.votes, vote)
	return app.InsertAccepted, nil
}

func (s *VoteStore) GuessesByQuestion(_ context.Context, questionID string) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	guesses := make([]int, 0)
	for _, vote := range s.votes {
		if vote.QuestionID == questionID {
			guesses = append(guesses, vote.UserGuess)
		}
	}
	return guesses, nil
}

func (s *VoteStore) GuessesByQuestions(_ context.Context, questionIDs []string) (map[string][]int, error) {
	wanted := make(map[string]struct{}, len(questionIDs))
	for _, id := range questionIDs {
		wanted[id] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	grouped := make(map[string][]int, len(questionIDs))
	for _, vote := range s.votes {
		if _, ok := wanted[vote.QuestionID]; ok {
			grouped[vote.QuestionID] = append(grouped[vote.QuestionID], vote.UserGuess)
		}
	}
	return grouped, nil
}

func (s *VoteStore) VotesByCohort(_ context.Context, cohortID string) ([]domain.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]domain.Vote, 0)
	for _, vote := range s.votes {
		if vote.CohortID == cohortID && cohortID != "" {
			matched = append(matched, vote)
		}
	}
	return matched, nil
}

// Len reports the number of stored votes; tests use it to verify idempotent
// submission leaves exactly one row.
func (s *VoteStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.votes)
}
