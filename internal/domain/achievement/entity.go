// Package achievement contains the achievement catalog and the pure
// criteria-evaluation logic. Awards are persisted exactly once per
// (user, achievement) pair; the storage layer's uniqueness constraint is
// the correctness mechanism under concurrent evaluation.
package achievement

import (
	"time"

	"github.com/certlab/cert-prep-hub/internal/domain/profile"
	"github.com/certlab/cert-prep-hub/internal/domain/quiz"
	"github.com/certlab/cert-prep-hub/internal/domain/shared"
)

// AchievementID represents a unique identifier for an achievement.
type AchievementID string

// IsValid checks if the achievement ID is valid.
func (a AchievementID) IsValid() bool {
	return a != ""
}

// String returns the string representation of AchievementID.
func (a AchievementID) String() string {
	return string(a)
}

// CriteriaType determines which aggregate stat an achievement tests.
type CriteriaType string

const (
	// CriteriaQuizCount unlocks after N completed attempts.
	CriteriaQuizCount CriteriaType = "quiz_count"
	// CriteriaPerfectScore unlocks after N perfect-score attempts.
	CriteriaPerfectScore CriteriaType = "perfect_score"
	// CriteriaStreakLength unlocks when the current streak reaches N days.
	CriteriaStreakLength CriteriaType = "streak_length"
	// CriteriaDomainAccuracy unlocks when average accuracy in any exam
	// knowledge domain reaches N percent.
	CriteriaDomainAccuracy CriteriaType = "domain_accuracy"
	// CriteriaExamSpecificCount unlocks after N attempts for one exam type.
	CriteriaExamSpecificCount CriteriaType = "exam_specific_count"
	// CriteriaLevelReached unlocks when the user reaches level N.
	CriteriaLevelReached CriteriaType = "level_reached"
	// CriteriaQuestionCount unlocks after N answered questions.
	CriteriaQuestionCount CriteriaType = "question_count"
)

// IsValid checks if the criteria type is known.
func (c CriteriaType) IsValid() bool {
	switch c {
	case CriteriaQuizCount, CriteriaPerfectScore, CriteriaStreakLength,
		CriteriaDomainAccuracy, CriteriaExamSpecificCount,
		CriteriaLevelReached, CriteriaQuestionCount:
		return true
	default:
		return false
	}
}

// Achievement is static reference data seeded by migration.
type Achievement struct {
	ID           AchievementID
	Code         string // stable machine-readable name, e.g. "first_steps"
	Name         string
	Description  string
	CriteriaType CriteriaType

	// CriteriaValue is the threshold the tested stat must reach.
	CriteriaValue int

	// CriteriaExamType optionally scopes the criteria to one exam type.
	CriteriaExamType quiz.ExamType

	// XPReward is added to the profile immediately upon award.
	XPReward int
}

// EarnedAchievement records one unlock. Created once, never updated.
type EarnedAchievement struct {
	UserID        shared.UserID
	AchievementID AchievementID
	EarnedAt      time.Time
}

// EvaluationContext is the post-commit aggregate state one evaluation pass
// runs against: the just-updated profile, the new attempt, and the user's
// attempt-history aggregates.
type EvaluationContext struct {
	Profile           *profile.Profile
	Attempt           *quiz.Attempt
	Aggregates        *quiz.UserAggregates
	PerfectScoreCount int
}

// IsSatisfied evaluates the achievement's criteria against the context.
// Pure function: no I/O, no mutation.
func (a *Achievement) IsSatisfied(ctx EvaluationContext) bool {
	if ctx.Profile == nil || ctx.Attempt == nil {
		return false
	}

	switch a.CriteriaType {
	case CriteriaQuizCount:
		if a.CriteriaExamType != "" {
			return a.examAttemptCount(ctx) >= a.CriteriaValue
		}
		return ctx.Profile.TotalExamsTaken >= a.CriteriaValue

	case CriteriaPerfectScore:
		return ctx.PerfectScoreCount >= a.CriteriaValue

	case CriteriaStreakLength:
		return ctx.Profile.StreakCurrent >= a.CriteriaValue

	case CriteriaDomainAccuracy:
		if ctx.Aggregates == nil {
			return false
		}
		for _, accuracy := range ctx.Aggregates.AccuracyByDomain {
			if accuracy >= float64(a.CriteriaValue) {
				return true
			}
		}
		return false

	case CriteriaExamSpecificCount:
		return a.examAttemptCount(ctx) >= a.CriteriaValue

	case CriteriaLevelReached:
		return int(ctx.Profile.Level) >= a.CriteriaValue

	case CriteriaQuestionCount:
		return ctx.Profile.TotalQuestionsAnswered >= a.CriteriaValue

	default:
		return false
	}
}

// examAttemptCount resolves the attempt count for the achievement's exam
// scope. An unscoped achievement counts the attempt's own exam type.
func (a *Achievement) examAttemptCount(ctx EvaluationContext) int {
	if ctx.Aggregates == nil {
		return 0
	}
	examType := a.CriteriaExamType
	if examType == "" {
		examType = ctx.Attempt.ExamType
	}
	return ctx.Aggregates.AttemptsByExam[examType]
}

// Validate checks the reference data's invariants.
func (a *Achievement) Validate() error {
	if !a.ID.IsValid() {
		return shared.NewDomainError("achievement", "Validate", shared.ErrValidation, "achievement id is required")
	}
	if a.Code == "" {
		return shared.NewDomainError("achievement", "Validate", shared.ErrValidation, "achievement code is required")
	}
	if !a.CriteriaType.IsValid() {
		return shared.NewDomainError("achievement", "Validate", shared.ErrValidation, "unknown criteria type")
	}
	if a.CriteriaValue <= 0 {
		return shared.NewDomainError("achievement", "Validate", shared.ErrValidation, "criteria value must be positive")
	}
	if a.XPReward < 0 {
		return shared.NewDomainError("achievement", "Validate", shared.ErrValidation, "xp reward cannot be negative")
	}
	return nil
}
