package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4/pgxpool"

	"illusion-quiz-service/internal/app"
	"illusion-quiz-service/internal/domain"
)

// uniqueViolation is the Postgres error code raised when the
// (question_id, fingerprint) constraint rejects a duplicate vote.
const uniqueViolation = "23505"

// VoteStore persists votes in the append-only votes table.
type VoteStore struct {
	pool *pgxpool.Pool
}

func NewVoteStore(pool *pgxpool.Pool) *VoteStore {
	return &VoteStore{pool: pool}
}

func (s *VoteStore) Insert(ctx context.Context, vote domain.Vote) (app.InsertStatus, error) {
	var cohortID *string
	if vote.CohortID != "" {
		cohortID = &vote.CohortID
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO votes (question_id, fingerprint, user_guess, locale, cohort_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		vote.QuestionID, vote.Fingerprint, vote.UserGuess, vote.Locale, cohortID, vote.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return app.InsertConflict, nil
		}
		return 0, fmt.Errorf("insert vote: %w", err)
	}
	return app.InsertAccepted, nil
}

func (s *VoteStore) GuessesByQuestion(ctx context.Context, questionID string) ([]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT user_guess FROM votes WHERE question_id=$1`, questionID)
	if err != nil {
		return nil, fmt.Errorf("list guesses: %w", err)
	}
	defer rows.Close()

	guesses := make([]int, 0)
	for rows.Next() {
		var guess int
		if err := rows.Scan(&guess); err != nil {
			return nil, fmt.Errorf("scan guess: %w", err)
		}
		guesses = append(guesses, guess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list guesses: %w", err)
	}
	return guesses, nil
}

func (s *VoteStore) GuessesByQuestions(ctx context.Context, questionIDs []string) (map[string][]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT question_id, user_guess FROM votes WHERE question_id = ANY($1)`, questionIDs)
	if err != nil {
		return nil, fmt.Errorf("list guesses: %w", err)
	}
	defer rows.Close()

	grouped := make(map[string][]int, len(questionIDs))
	for rows.Next() {
		var questionID string
		var guess int
		if err := rows.Scan(&questionID, &guess); err != nil {
			return nil, fmt.Errorf("scan guess: %w", err)
		}
		grouped[questionID] = append(grouped[questionID], guess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list guesses: %w", err)
	}
	return grouped, nil
}

func (s *VoteStore) VotesByCohort(ctx context.Context, cohortID string) ([]domain.Vote, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT question_id, fingerprint, user_guess, locale, cohort_id, created_at
		FROM votes WHERE cohort_id=$1`, cohortID)
	if err != nil {
		return nil, fmt.Errorf("list cohort votes: %w", err)
	}
	defer rows.Close()

	votes := make([]domain.Vote, 0)
	for rows.Next() {
		var vote domain.Vote
		var cohort *string
		if err := rows.Scan(&vote.QuestionID, &vote.Fingerprint, &vote.UserGuess, &vote.Locale, &cohort, &vote.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		if cohort != nil {
			vote.CohortID = *cohort
		}
		votes = append(votes, vote)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list cohort votes: %w", err)
	}
	return votes, nil
}
