package app_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"illusion-quiz-service/internal/app"
	"illusion-quiz-service/internal/domain"
	"illusion-quiz-service/internal/infra/memory"
)

func TestSubmitVoteDuplicateIsSuccess(t *testing.T) {
	store := memory.NewVoteStore()
	svc := app.NewVoteService(store)

	status, err := svc.SubmitVote(context.Background(), "q1", "fp-1", 64, "ko", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != app.SubmitAccepted {
		t.Fatalf("expected accepted, got %s", status)
	}

	status, err = svc.SubmitVote(context.Background(), "q1", "fp-1", 90, "ko", "")
	if err != nil {
		t.Fatalf("duplicate submit must not error: %v", err)
	}
	if status != app.SubmitAlreadyVoted {
		t.Fatalf("expected already-voted, got %s", status)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one stored vote, got %d", store.Len())
	}
}

func TestSubmitVoteStoreConflictMapsToAlreadyVoted(t *testing.T) {
	// two service instances share a store, so the second submit reaches the
	// store and comes back as a uniqueness conflict
	store := memory.NewVoteStore()
	first := app.NewVoteService(store)
	second := app.NewVoteService(store)

	if _, err := first.SubmitVote(context.Background(), "q1", "fp-1", 64, "en", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	status, err := second.SubmitVote(context.Background(), "q1", "fp-1", 40, "en", "")
	if err != nil {
		t.Fatalf("conflict must not surface as error: %v", err)
	}
	if status != app.SubmitAlreadyVoted {
		t.Fatalf("expected already-voted, got %s", status)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one stored vote, got %d", store.Len())
	}
}

func TestSubmitVoteValidation(t *testing.T) {
	svc := app.NewVoteService(memory.NewVoteStore())

	if _, err := svc.SubmitVote(context.Background(), "q1", "", 50, "ko", ""); !errors.Is(err, domain.ErrMissingFingerprint) {
		t.Fatalf("expected ErrMissingFingerprint, got %v", err)
	}
	if _, err := svc.SubmitVote(context.Background(), "q1", "fp-1", 101, "ko", ""); !errors.Is(err, domain.ErrInvalidGuess) {
		t.Fatalf("expected ErrInvalidGuess for 101, got %v", err)
	}
	if _, err := svc.SubmitVote(context.Background(), "q1", "fp-1", -1, "ko", ""); !errors.Is(err, domain.ErrInvalidGuess) {
		t.Fatalf("expected ErrInvalidGuess for -1, got %v", err)
	}
}

func TestStatsVisibilityGate(t *testing.T) {
	store := memory.NewVoteStore()
	svc := app.NewVoteService(store)

	for i := 0; i < 9; i++ {
		fp := "fp-" + string(rune('a'+i))
		if _, err := svc.SubmitVote(context.Background(), "q1", fp, 50, "ko", ""); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	stats, err := svc.Stats(context.Background(), "q1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.IsVisible {
		t.Fatalf("expected 9 votes hidden")
	}
	if stats.AverageGuess != nil {
		t.Fatalf("expected nil average below the gate, got %v", *stats.AverageGuess)
	}
	if stats.VoteCount != 9 {
		t.Fatalf("expected count 9, got %d", stats.VoteCount)
	}

	if _, err := svc.SubmitVote(context.Background(), "q1", "fp-last", 73, "ko", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stats, err = svc.Stats(context.Background(), "q1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !stats.IsVisible {
		t.Fatalf("expected 10 votes visible")
	}
	if stats.AverageGuess == nil || *stats.AverageGuess != 52.3 {
		t.Fatalf("expected average 52.3, got %v", stats.AverageGuess)
	}

	// recomputing from the same snapshot is deterministic
	again, err := svc.Stats(context.Background(), "q1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.VoteCount != stats.VoteCount || *again.AverageGuess != *stats.AverageGuess || again.IsVisible != stats.IsVisible {
		t.Fatalf("stats not deterministic: %+v vs %+v", stats, again)
	}
}

func TestStatsBatchIncludesEveryRequestedQuestion(t *testing.T) {
	store := memory.NewVoteStore()
	svc := app.NewVoteService(store)
	if _, err := svc.SubmitVote(context.Background(), "q1", "fp-1", 60, "ko", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats, err := svc.StatsBatch(context.Background(), []string{"q1", "q2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(stats))
	}
	empty, ok := stats["q2"]
	if !ok {
		t.Fatalf("expected zero-filled entry for voteless question")
	}
	if empty.VoteCount != 0 || empty.IsVisible || empty.AverageGuess != nil {
		t.Fatalf("expected zero stats for q2, got %+v", empty)
	}
}

func TestCohortStats(t *testing.T) {
	store := memory.NewVoteStore()
	svc := app.NewVoteService(store)

	// three members vote on q1, two on q2
	for i, fp := range []string{"fp-a", "fp-b", "fp-c"} {
		if _, err := svc.SubmitVote(context.Background(), "q1", fp, 60+i*3, "ko", "cohort-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	for _, fp := range []string{"fp-a", "fp-b"} {
		if _, err := svc.SubmitVote(context.Background(), "q2", fp, 40, "ko", "cohort-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	stats, err := svc.CohortStats(context.Background(), "cohort-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.MemberCount != 3 {
		t.Fatalf("expected 3 distinct members, got %d", stats.MemberCount)
	}

	q1 := stats.QuestionStats["q1"]
	if !q1.IsVisible {
		t.Fatalf("expected q1 visible at 3 cohort votes")
	}
	if q1.AverageGuess == nil || *q1.AverageGuess != 63 {
		t.Fatalf("expected cohort average 63, got %v", q1.AverageGuess)
	}

	q2 := stats.QuestionStats["q2"]
	if q2.IsVisible || q2.AverageGuess != nil {
		t.Fatalf("expected q2 hidden below cohort gate, got %+v", q2)
	}
}

func TestSubscribeReceivesVoteUpdates(t *testing.T) {
	store := memory.NewVoteStore()
	svc := app.NewVoteService(store)

	ch, cancel := svc.Subscribe(context.Background(), "q1")
	defer cancel()

	select {
	case initial := <-ch:
		if initial.VoteCount != 0 {
			t.Fatalf("expected empty initial snapshot, got %+v", initial)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for initial snapshot")
	}

	if _, err := svc.SubmitVote(context.Background(), "q1", "fp-1", 55, "ko", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case update := <-ch:
		if update.VoteCount != 1 {
			t.Fatalf("expected update with one vote, got %+v", update)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for vote update")
	}
}

func TestSubscribeReturnsUnderConcurrentVotes(t *testing.T) {
	store := memory.NewVoteStore()
	svc := app.NewVoteService(store)

	stop := make(chan struct{})
	go func() {
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			fp := fmt.Sprintf("fp-%d", i)
			_, _ = svc.SubmitVote(context.Background(), "q1", fp, 50, "ko", "")
		}
	}()
	defer close(stop)

	for i := 0; i < 10; i++ {
		done := make(chan struct{})
		go func() {
			ch, cancel := svc.Subscribe(context.Background(), "q1")
			<-ch
			cancel()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("Subscribe blocked under concurrent submissions")
		}
	}
}

func TestSubscribeSnapshotArrivesFirst(t *testing.T) {
	store := memory.NewVoteStore()
	svc := app.NewVoteService(store)
	if _, err := svc.SubmitVote(context.Background(), "q1", "fp-1", 40, "ko", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ch, cancel := svc.Subscribe(context.Background(), "q1")
	defer cancel()
	if _, err := svc.SubmitVote(context.Background(), "q1", "fp-2", 60, "ko", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case first := <-ch:
		if first.VoteCount != 1 {
			t.Fatalf("expected the pre-subscribe snapshot first, got %+v", first)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for snapshot")
	}
	select {
	case second := <-ch:
		if second.VoteCount != 2 {
			t.Fatalf("expected the broadcast after the snapshot, got %+v", second)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for broadcast")
	}
}

type failingVoteStore struct {
	*memory.VoteStore
	err error
}

func (s *failingVoteStore) GuessesByQuestion(context.Context, string) ([]int, error) {
	return nil, s.err
}

func (s *failingVoteStore) GuessesByQuestions(context.Context, []string) (map[string][]int, error) {
	return nil, s.err
}

func TestStatsPropagatesStoreError(t *testing.T) {
	storeErr := errors.New("store down")
	svc := app.NewVoteService(&failingVoteStore{VoteStore: memory.NewVoteStore(), err: storeErr})

	if _, err := svc.Stats(context.Background(), "q1"); !errors.Is(err, storeErr) {
		t.Fatalf("expected store error, got %v", err)
	}
	if _, err := svc.StatsBatch(context.Background(), []string{"q1"}); !errors.Is(err, storeErr) {
		t.Fatalf("expected store error from batch, got %v", err)
	}
}
