package app

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"illusion-quiz-service/internal/domain"
)

// ProfileStore abstracts per-user persistent state as a small key-value
// store. Absence of a key is a valid initial state, not an error.
type ProfileStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Storage keys. These match the web client's local storage so a migrated
// profile keeps its history.
const (
	keyStreak         = "daily-question-streak"
	keyLastPlayed     = "daily-question-last-played"
	keyCompletedToday = "daily-question-completed-today"
	keyBadges         = "earned_badges"
	keyQuizCount      = "quiz_count"
	keyAnswerHistory  = "answer_history"
	keyCohortID       = "cohort_id"
	keyCohortName     = "cohort_name"
	keyCohortOwner    = "cohort_owner"
	keyDemographics   = "user_demographics"
)

// ProgressionService owns streaks, badges, quiz counting, cohort membership
// and demographics for one user profile. All reads fall back to a safe zero
// state when a key is absent or its stored JSON is corrupt.
type ProgressionService struct {
	store       ProfileStore
	now         func() time.Time
	newCohortID func() string
}

func NewProgressionService(store ProfileStore) *ProgressionService {
	return NewProgressionServiceWithClock(store, time.Now)
}

// NewProgressionServiceWithClock is test-only for deterministic dates.
func NewProgressionServiceWithClock(store ProfileStore, now func() time.Time) *ProgressionService {
	return &ProgressionService{
		store:       store,
		now:         now,
		newCohortID: shortCohortID,
	}
}

// shortCohortID produces the random tag shared through invite links.
func shortCohortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

type storedStreak struct {
	CurrentStreak int `json:"currentStreak"`
	LongestStreak int `json:"longestStreak"`
}

// StreakData reads the current streak record.
func (s *ProgressionService) StreakData(ctx context.Context) domain.StreakData {
	today := DateString(s.now())

	var stored storedStreak
	s.getJSON(ctx, keyStreak, &stored)
	lastPlayed, _ := s.getString(ctx, keyLastPlayed)
	completedMarker, _ := s.getString(ctx, keyCompletedToday)

	return domain.StreakData{
		CurrentStreak:  stored.CurrentStreak,
		LongestStreak:  stored.LongestStreak,
		LastPlayedDate: lastPlayed,
		CompletedToday: completedMarker == today,
	}
}

// RecordDailyCompletion marks today as played. Calling it again the same day
// is a no-op returning the unchanged record. Continuity from yesterday
// extends the streak; any gap resets it to 1.
func (s *ProgressionService) RecordDailyCompletion(ctx context.Context) (domain.StreakData, error) {
	current := s.StreakData(ctx)
	if current.CompletedToday {
		return current, nil
	}

	today := DateString(s.now())
	yesterday := DateString(s.now().AddDate(0, 0, -1))

	newStreak := 1
	if current.LastPlayedDate == yesterday {
		newStreak = current.CurrentStreak + 1
	}
	newLongest := current.LongestStreak
	if newStreak > newLongest {
		newLongest = newStreak
	}

	if err := s.setJSON(ctx, keyStreak, storedStreak{CurrentStreak: newStreak, LongestStreak: newLongest}); err != nil {
		return domain.StreakData{}, err
	}
	if err := s.store.Set(ctx, keyLastPlayed, today); err != nil {
		return domain.StreakData{}, err
	}
	if err := s.store.Set(ctx, keyCompletedToday, today); err != nil {
		return domain.StreakData{}, err
	}

	return domain.StreakData{
		CurrentStreak:  newStreak,
		LongestStreak:  newLongest,
		LastPlayedDate: today,
		CompletedToday: true,
	}, nil
}

// IsStreakActive reports whether the streak survives to today: the user
// played today or still has until midnight to keep yesterday's run alive.
func (s *ProgressionService) IsStreakActive(ctx context.Context) bool {
	data := s.StreakData(ctx)
	today := DateString(s.now())
	yesterday := DateString(s.now().AddDate(0, 0, -1))
	return data.LastPlayedDate == today || data.LastPlayedDate == yesterday
}

// EvaluateBadges returns every badge whose condition the context satisfies.
// It is pure; idempotent awarding happens in SaveBadges.
func EvaluateBadges(ctx domain.BadgeContext) []domain.BadgeID {
	accurate, bigMisses := 0, 0
	for _, answer := range ctx.Answers {
		diff := absInt(answer.Difference)
		if diff <= 10 {
			accurate++
		}
		if diff >= 30 {
			bigMisses++
		}
	}

	var earned []domain.BadgeID
	if accurate >= 3 {
		earned = append(earned, domain.BadgeConsensusWhisperer)
	}
	if bigMisses >= 2 {
		earned = append(earned, domain.BadgeContrarianRadar)
	}
	if ctx.TotalQuizzes >= 1 {
		earned = append(earned, domain.BadgeRealityCheck)
	}
	if ctx.TotalQuizzes >= 5 {
		earned = append(earned, domain.BadgeIllusionBreaker)
	}
	if ctx.Streak >= 7 {
		earned = append(earned, domain.BadgeStreakMaster)
	}
	if len(ctx.Answers) >= 10 {
		earned = append(earned, domain.BadgeExplorer)
	}
	return earned
}

// EarnedBadges returns the stored badge set, empty when absent or corrupt.
func (s *ProgressionService) EarnedBadges(ctx context.Context) []domain.EarnedBadge {
	var badges []domain.EarnedBadge
	s.getJSON(ctx, keyBadges, &badges)
	return badges
}

// SaveBadges appends the badges not yet stored and returns only those newly
// earned. A badge is never revoked or duplicated.
func (s *ProgressionService) SaveBadges(ctx context.Context, ids []domain.BadgeID) ([]domain.EarnedBadge, error) {
	existing := s.EarnedBadges(ctx)
	have := make(map[domain.BadgeID]struct{}, len(existing))
	for _, badge := range existing {
		have[badge.ID] = struct{}{}
	}

	var fresh []domain.EarnedBadge
	for _, id := range ids {
		if _, ok := have[id]; ok {
			continue
		}
		have[id] = struct{}{}
		fresh = append(fresh, domain.EarnedBadge{ID: id, EarnedAt: s.now()})
	}
	if len(fresh) == 0 {
		return nil, nil
	}
	if err := s.setJSON(ctx, keyBadges, append(existing, fresh...)); err != nil {
		return nil, err
	}
	return fresh, nil
}

// QuizCount reads the completed-session counter.
func (s *ProgressionService) QuizCount(ctx context.Context) int {
	raw, ok := s.getString(ctx, keyQuizCount)
	if !ok {
		return 0
	}
	count, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return count
}

// IncrementQuizCount bumps the counter once per completed session.
func (s *ProgressionService) IncrementQuizCount(ctx context.Context) (int, error) {
	count := s.QuizCount(ctx) + 1
	if err := s.store.Set(ctx, keyQuizCount, strconv.Itoa(count)); err != nil {
		return 0, err
	}
	return count, nil
}

// AnswerHistory returns every answer recorded across completed sessions.
func (s *ProgressionService) AnswerHistory(ctx context.Context) []domain.UserAnswer {
	var history []domain.UserAnswer
	s.getJSON(ctx, keyAnswerHistory, &history)
	return history
}

// SessionOutcome summarizes the completion effects of one finished quiz.
type SessionOutcome struct {
	Result       domain.QuizResult        `json:"result"`
	Personality  domain.PersonalityResult `json:"personality"`
	Streak       domain.StreakData        `json:"streak"`
	TotalQuizzes int                      `json:"totalQuizzes"`
	NewBadges    []domain.BadgeID         `json:"newBadges"`
	Badges       []domain.EarnedBadge     `json:"badges"`
}

// CompleteSession applies every completion effect for a finished answer set:
// the answers join the stored history, the quiz counter increments, today is
// recorded for the streak, and badges are evaluated over the cumulative
// history. An empty session has no effects and returns the current snapshot.
func (s *ProgressionService) CompleteSession(ctx context.Context, answers []domain.UserAnswer) (SessionOutcome, error) {
	if len(answers) == 0 {
		return SessionOutcome{
			Result:       BuildResult(nil),
			Personality:  Personality(nil),
			Streak:       s.StreakData(ctx),
			TotalQuizzes: s.QuizCount(ctx),
			Badges:       s.EarnedBadges(ctx),
		}, nil
	}

	// Difference is derived from the two percentages, never taken as input.
	normalized := make([]domain.UserAnswer, len(answers))
	copy(normalized, answers)
	for i := range normalized {
		normalized[i].Difference = Difference(normalized[i])
	}
	answers = normalized

	history := append(s.AnswerHistory(ctx), answers...)
	if err := s.setJSON(ctx, keyAnswerHistory, history); err != nil {
		return SessionOutcome{}, err
	}

	total, err := s.IncrementQuizCount(ctx)
	if err != nil {
		return SessionOutcome{}, err
	}
	streak, err := s.RecordDailyCompletion(ctx)
	if err != nil {
		return SessionOutcome{}, err
	}

	qualifying := EvaluateBadges(domain.BadgeContext{
		Answers:      history,
		Streak:       streak.CurrentStreak,
		TotalQuizzes: total,
	})
	fresh, err := s.SaveBadges(ctx, qualifying)
	if err != nil {
		return SessionOutcome{}, err
	}
	newIDs := make([]domain.BadgeID, 0, len(fresh))
	for _, badge := range fresh {
		newIDs = append(newIDs, badge.ID)
	}

	return SessionOutcome{
		Result:       BuildResult(answers),
		Personality:  Personality(answers),
		Streak:       streak,
		TotalQuizzes: total,
		NewBadges:    newIDs,
		Badges:       s.EarnedBadges(ctx),
	}, nil
}

// CreateCohort mints a fresh cohort tag and marks this profile as its owner.
// Ownership lives only in the creator's local state.
func (s *ProgressionService) CreateCohort(ctx context.Context, name string) (domain.CohortData, error) {
	data := domain.CohortData{
		CohortID:   s.newCohortID(),
		CohortName: name,
		CreatedAt:  s.now(),
		IsOwner:    true,
	}
	if err := s.writeCohort(ctx, data); err != nil {
		return domain.CohortData{}, err
	}
	return data, nil
}

// JoinCohort adopts an existing cohort tag without ownership.
func (s *ProgressionService) JoinCohort(ctx context.Context, cohortID, name string) (domain.CohortData, error) {
	data := domain.CohortData{
		CohortID:   cohortID,
		CohortName: name,
		CreatedAt:  s.now(),
		IsOwner:    false,
	}
	if err := s.writeCohort(ctx, data); err != nil {
		return domain.CohortData{}, err
	}
	return data, nil
}

func (s *ProgressionService) writeCohort(ctx context.Context, data domain.CohortData) error {
	if err := s.store.Set(ctx, keyCohortID, data.CohortID); err != nil {
		return err
	}
	if data.CohortName != "" {
		if err := s.store.Set(ctx, keyCohortName, data.CohortName); err != nil {
			return err
		}
	} else if err := s.store.Delete(ctx, keyCohortName); err != nil {
		return err
	}
	if data.IsOwner {
		return s.store.Set(ctx, keyCohortOwner, "1")
	}
	return s.store.Delete(ctx, keyCohortOwner)
}

// LeaveCohort clears the tag, name and ownership marker.
func (s *ProgressionService) LeaveCohort(ctx context.Context) error {
	if err := s.store.Delete(ctx, keyCohortID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, keyCohortName); err != nil {
		return err
	}
	return s.store.Delete(ctx, keyCohortOwner)
}

// CurrentCohort returns the joined cohort, if any.
func (s *ProgressionService) CurrentCohort(ctx context.Context) (domain.CohortData, bool) {
	cohortID, ok := s.getString(ctx, keyCohortID)
	if !ok || cohortID == "" {
		return domain.CohortData{}, false
	}
	name, _ := s.getString(ctx, keyCohortName)
	owner, _ := s.getString(ctx, keyCohortOwner)
	return domain.CohortData{
		CohortID:   cohortID,
		CohortName: name,
		IsOwner:    owner == "1",
	}, true
}

// SaveDemographics shallow-merges the provided fields over the stored record
// and refreshes the update timestamp.
func (s *ProgressionService) SaveDemographics(ctx context.Context, patch domain.Demographics) (domain.Demographics, error) {
	current, _ := s.Demographics(ctx)
	if patch.AgeGroup != "" {
		current.AgeGroup = patch.AgeGroup
	}
	if patch.Gender != "" {
		current.Gender = patch.Gender
	}
	current.UpdatedAt = s.now()
	if err := s.setJSON(ctx, keyDemographics, current); err != nil {
		return domain.Demographics{}, err
	}
	return current, nil
}

// Demographics returns the stored record, reporting whether one exists.
func (s *ProgressionService) Demographics(ctx context.Context) (domain.Demographics, bool) {
	raw, ok := s.getString(ctx, keyDemographics)
	if !ok {
		return domain.Demographics{}, false
	}
	var data domain.Demographics
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return domain.Demographics{}, false
	}
	return data, true
}

// ClearDemographics removes the stored record.
func (s *ProgressionService) ClearDemographics(ctx context.Context) error {
	return s.store.Delete(ctx, keyDemographics)
}

// getString swallows store errors: an unreachable profile store reads as an
// absent key so callers always get a defined zero state.
func (s *ProgressionService) getString(ctx context.Context, key string) (string, bool) {
	value, ok, err := s.store.Get(ctx, key)
	if err != nil || !ok {
		return "", false
	}
	return value, true
}

// getJSON leaves dst at its zero value when the key is absent or corrupt.
func (s *ProgressionService) getJSON(ctx context.Context, key string, dst interface{}) {
	raw, ok := s.getString(ctx, key)
	if !ok {
		return
	}
	_ = json.Unmarshal([]byte(raw), dst)
}

func (s *ProgressionService) setJSON(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, key, string(raw))
}
