package memory

import (
	"context"
	"testing"

	"illusion-quiz-service/internal/app"
	"illusion-quiz-service/internal/domain"
)

func TestVoteStoreInsertConflict(t *testing.T) {
	store := NewVoteStore()
	ctx := context.Background()

	status, err := store.Insert(ctx, domain.Vote{QuestionID: "q1", Fingerprint: "fp-1", UserGuess: 60})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != app.InsertAccepted {
		t.Fatalf("expected accepted, got %v", status)
	}

	status, err = store.Insert(ctx, domain.Vote{QuestionID: "q1", Fingerprint: "fp-1", UserGuess: 90})
	if err != nil {
		t.Fatalf("duplicate insert must not error: %v", err)
	}
	if status != app.InsertConflict {
		t.Fatalf("expected conflict for duplicate pair, got %v", status)
	}
	if store.Len() != 1 {
		t.Fatalf("conflict must not add a row, got %d", store.Len())
	}

	// same fingerprint on another question is a distinct pair
	status, err = store.Insert(ctx, domain.Vote{QuestionID: "q2", Fingerprint: "fp-1", UserGuess: 40})
	if err != nil || status != app.InsertAccepted {
		t.Fatalf("expected accepted for new pair, got %v %v", status, err)
	}
}

func TestVoteStoreQueries(t *testing.T) {
	store := NewVoteStore()
	ctx := context.Background()

	votes := []domain.Vote{
		{QuestionID: "q1", Fingerprint: "fp-1", UserGuess: 60, CohortID: "c1"},
		{QuestionID: "q1", Fingerprint: "fp-2", UserGuess: 70, CohortID: "c1"},
		{QuestionID: "q2", Fingerprint: "fp-1", UserGuess: 30},
	}
	for _, vote := range votes {
		if _, err := store.Insert(ctx, vote); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	guesses, err := store.GuessesByQuestion(ctx, "q1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(guesses) != 2 {
		t.Fatalf("expected 2 guesses for q1, got %d", len(guesses))
	}

	grouped, err := store.GuessesByQuestions(ctx, []string{"q1", "q2", "q3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(grouped["q1"]) != 2 || len(grouped["q2"]) != 1 {
		t.Fatalf("unexpected grouping: %+v", grouped)
	}
	if _, ok := grouped["q3"]; ok {
		t.Fatalf("voteless question must be absent from the store result")
	}

	cohortVotes, err := store.VotesByCohort(ctx, "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cohortVotes) != 2 {
		t.Fatalf("expected 2 cohort votes, got %d", len(cohortVotes))
	}

	// empty cohort id never matches untagged votes
	untagged, err := store.VotesByCohort(ctx, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(untagged) != 0 {
		t.Fatalf("expected no votes for empty cohort id, got %d", len(untagged))
	}
}
