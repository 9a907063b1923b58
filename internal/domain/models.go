package domain

import "time"

// Locale selects which translation of a localized text to render.
type Locale string

const (
	LocaleKO Locale = "ko"
	LocaleEN Locale = "en"
)

// LocalizedText holds the Korean/English renderings of a single string.
type LocalizedText struct {
	KO string `json:"ko"`
	EN string `json:"en"`
}

// In returns the text for the locale, falling back to English.
func (t LocalizedText) In(locale Locale) string {
	if locale == LocaleKO && t.KO != "" {
		return t.KO
	}
	return t.EN
}

// Category classifies a question's subject matter.
type Category string

const (
	CategorySocial    Category = "social"
	CategoryPolitical Category = "political"
	CategoryWorkplace Category = "workplace"
	CategoryValues    Category = "values"
	CategoryLifestyle Category = "lifestyle"
)

// Source cites where a question's ground-truth percentage comes from.
type Source struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Year int    `json:"year"`
}

// Question is an immutable catalog entry: a statement, the real percentage of
// people who agree with it, and the citation backing that number.
type Question struct {
	ID               string         `json:"id"`
	Title            LocalizedText  `json:"title"`
	Description      LocalizedText  `json:"description"`
	ActualPercentage int            `json:"actualPercentage"`
	Source           Source         `json:"source"`
	Insight          LocalizedText  `json:"insight"`
	DetailedInsight  *LocalizedText `json:"detailedInsight,omitempty"`
	Category         Category       `json:"category"`
}

// LikertValue is a 1-5 agreement scale, 1 = strongly disagree.
type LikertValue int

// UserAnswer captures one guess within a quiz session. Difference is always
// derived from the two percentages, positive meaning an overestimate.
type UserAnswer struct {
	QuestionID        string      `json:"questionId"`
	MyOpinion         LikertValue `json:"myOpinion"`
	GuessedPercentage int         `json:"guessedPercentage"`
	ActualPercentage  int         `json:"actualPercentage"`
	Difference        int         `json:"difference"`
}

// IllusionLevel buckets a user's average estimation error.
type IllusionLevel string

const (
	IllusionLow    IllusionLevel = "low"
	IllusionMedium IllusionLevel = "medium"
	IllusionHigh   IllusionLevel = "high"
)

// PersonalityType classifies a completed answer set by its bias pattern.
type PersonalityType string

const (
	PersonalityRealist    PersonalityType = "realist"
	PersonalityOptimist   PersonalityType = "optimist"
	PersonalityPessimist  PersonalityType = "pessimist"
	PersonalityContrarian PersonalityType = "contrarian"
)

// PersonalityResult pairs a personality type with its strength score.
type PersonalityResult struct {
	Type  PersonalityType `json:"type"`
	Score int             `json:"score"`
}

// QuizResult summarizes a finished session.
type QuizResult struct {
	Answers       []UserAnswer  `json:"answers"`
	AverageError  int           `json:"averageError"`
	IllusionLevel IllusionLevel `json:"illusionLevel"`
}

// Vote is the single durable record per (question, fingerprint) pair.
type Vote struct {
	QuestionID  string    `json:"question_id"`
	Fingerprint string    `json:"fingerprint"`
	UserGuess   int       `json:"user_guess"`
	Locale      string    `json:"locale"`
	CohortID    string    `json:"cohort_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// QuestionStats is the community aggregate for one question, recomputed on
// every read. AverageGuess is nil until the visibility gate is reached.
type QuestionStats struct {
	QuestionID   string   `json:"questionId"`
	VoteCount    int      `json:"voteCount"`
	AverageGuess *float64 `json:"averageGuess"`
	IsVisible    bool     `json:"isVisible"`
}

// CohortStats aggregates votes sharing a cohort tag. MemberCount is the
// number of distinct fingerprints seen on those votes.
type CohortStats struct {
	CohortID      string                   `json:"cohortId"`
	MemberCount   int                      `json:"memberCount"`
	QuestionStats map[string]QuestionStats `json:"questionStats"`
}

// StreakData tracks consecutive-day participation.
type StreakData struct {
	CurrentStreak  int    `json:"currentStreak"`
	LongestStreak  int    `json:"longestStreak"`
	LastPlayedDate string `json:"lastPlayedDate,omitempty"`
	CompletedToday bool   `json:"completedToday"`
}

// BadgeID names one of the six achievements.
type BadgeID string

const (
	BadgeConsensusWhisperer BadgeID = "consensus-whisperer"
	BadgeContrarianRadar    BadgeID = "contrarian-radar"
	BadgeRealityCheck       BadgeID = "reality-check"
	BadgeIllusionBreaker    BadgeID = "illusion-breaker"
	BadgeStreakMaster       BadgeID = "streak-master"
	BadgeExplorer           BadgeID = "explorer"
)

// BadgeContext is the input to badge evaluation.
type BadgeContext struct {
	Answers      []UserAnswer
	Streak       int
	TotalQuizzes int
}

// EarnedBadge records when a badge was first awarded. Awarding is append-only.
type EarnedBadge struct {
	ID       BadgeID   `json:"id"`
	EarnedAt time.Time `json:"earnedAt"`
}

// CohortData is the local view of cohort membership. IsOwner is only ever
// true in the creator's own state; the server knows nothing about ownership.
type CohortData struct {
	CohortID   string    `json:"cohortId"`
	CohortName string    `json:"cohortName,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	IsOwner    bool      `json:"isOwner"`
}

// AgeGroup buckets for optional demographics.
type AgeGroup string

const (
	AgeTeens  AgeGroup = "teens"
	Age20s    AgeGroup = "20s"
	Age30s    AgeGroup = "30s"
	Age40s    AgeGroup = "40s"
	Age50s    AgeGroup = "50s"
	Age60Plus AgeGroup = "60plus"
)

// Gender buckets for optional demographics.
type Gender string

const (
	GenderMale     Gender = "male"
	GenderFemale   Gender = "female"
	GenderOther    Gender = "other"
	GenderNotToSay Gender = "prefer-not-to-say"
)

// Demographics are purely local preferences; every field is optional.
type Demographics struct {
	AgeGroup  AgeGroup  `json:"ageGroup,omitempty"`
	Gender    Gender    `json:"gender,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Surprise is one entry on the share card: the question title and how far
// off the guess was.
type Surprise struct {
	Title      string `json:"title"`
	Difference int    `json:"difference"`
}

// ShareCard is the data contract consumed by the rendering collaborator.
// TopSurprises holds at most three entries, largest miss first.
type ShareCard struct {
	AverageError  int           `json:"averageError"`
	IllusionLevel IllusionLevel `json:"illusionLevel"`
	TopSurprises  []Surprise    `json:"topSurprises"`
	Locale        Locale        `json:"locale"`
}
