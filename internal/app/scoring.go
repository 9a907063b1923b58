package app

import (
	"math"
	"sort"

	"illusion-quiz-service/internal/domain"
)

// Difference returns the signed perception gap for one answer. Positive means
// the user overestimated how many people agree.
func Difference(answer domain.UserAnswer) int {
	return answer.GuessedPercentage - answer.ActualPercentage
}

// AverageError is the mean absolute difference across a session, rounded to
// the nearest integer. An empty session scores 0.
func AverageError(answers []domain.UserAnswer) int {
	if len(answers) == 0 {
		return 0
	}
	total := 0
	for _, answer := range answers {
		diff := answer.Difference
		if diff < 0 {
			diff = -diff
		}
		total += diff
	}
	return int(math.Round(float64(total) / float64(len(answers))))
}

// IllusionLevel buckets an average error: [0,10) low, [10,25) medium, else high.
func IllusionLevel(averageError int) domain.IllusionLevel {
	if averageError < 10 {
		return domain.IllusionLow
	}
	if averageError < 25 {
		return domain.IllusionMedium
	}
	return domain.IllusionHigh
}

// Personality classifies a completed answer set. The checks run top to bottom
// and the first match wins; the ordering is part of the contract.
func Personality(answers []domain.UserAnswer) domain.PersonalityResult {
	if len(answers) == 0 {
		return domain.PersonalityResult{Type: domain.PersonalityRealist, Score: 0}
	}

	var overestimates, underestimates, accurate int
	totalBias := 0
	for _, answer := range answers {
		totalBias += answer.Difference
		switch {
		case answer.Difference > 10:
			overestimates++
		case answer.Difference < -10:
			underestimates++
		default:
			accurate++
		}
	}

	avgBias := float64(totalBias) / float64(len(answers))
	accuracyRate := float64(accurate) / float64(len(answers))

	if accuracyRate >= 0.6 {
		return domain.PersonalityResult{
			Type:  domain.PersonalityRealist,
			Score: int(math.Round(accuracyRate * 100)),
		}
	}
	if avgBias > 15 {
		return domain.PersonalityResult{
			Type:  domain.PersonalityPessimist,
			Score: int(math.Round(math.Abs(avgBias))),
		}
	}
	if avgBias < -15 {
		return domain.PersonalityResult{
			Type:  domain.PersonalityOptimist,
			Score: int(math.Round(math.Abs(avgBias))),
		}
	}
	if overestimates > 0 && underestimates > 0 {
		smaller, larger := overestimates, underestimates
		if smaller > larger {
			smaller, larger = larger, smaller
		}
		if float64(smaller)/float64(larger) > 0.5 {
			return domain.PersonalityResult{
				Type:  domain.PersonalityContrarian,
				Score: int(math.Round((1 - accuracyRate) * 100)),
			}
		}
	}
	if avgBias > 0 {
		return domain.PersonalityResult{
			Type:  domain.PersonalityPessimist,
			Score: int(math.Round(avgBias)),
		}
	}
	return domain.PersonalityResult{
		Type:  domain.PersonalityOptimist,
		Score: int(math.Round(math.Abs(avgBias))),
	}
}

// BuildResult assembles the session summary from its answers.
func BuildResult(answers []domain.UserAnswer) domain.QuizResult {
	avg := AverageError(answers)
	return domain.QuizResult{
		Answers:       answers,
		AverageError:  avg,
		IllusionLevel: IllusionLevel(avg),
	}
}

// TopSurprises returns up to limit answers ordered by absolute difference,
// largest miss first. Ties keep their session order.
func TopSurprises(answers []domain.UserAnswer, limit int) []domain.UserAnswer {
	sorted := make([]domain.UserAnswer, len(answers))
	copy(sorted, answers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return absInt(sorted[i].Difference) > absInt(sorted[j].Difference)
	})
	if limit >= 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

// BuildShareCard assembles the share-card data contract. Answers whose
// question id is unknown to the lookup are skipped rather than rendered blank.
func BuildShareCard(answers []domain.UserAnswer, locale domain.Locale, titleFor func(questionID string) (string, bool)) domain.ShareCard {
	avg := AverageError(answers)
	surprises := make([]domain.Surprise, 0, 3)
	for _, answer := range TopSurprises(answers, len(answers)) {
		title, ok := titleFor(answer.QuestionID)
		if !ok {
			continue
		}
		surprises = append(surprises, domain.Surprise{
			Title:      title,
			Difference: answer.Difference,
		})
		if len(surprises) == 3 {
			break
		}
	}
	return domain.ShareCard{
		AverageError:  avg,
		IllusionLevel: IllusionLevel(avg),
		TopSurprises:  surprises,
		Locale:        locale,
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
