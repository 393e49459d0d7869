package quiz

import (
	"time"

	"github.com/certlab/cert-prep-hub/internal/domain/shared"
)

// AttemptID represents a unique identifier for an attempt.
type AttemptID string

// IsValid checks if the attempt ID is valid.
func (a AttemptID) IsValid() bool {
	return a != ""
}

// String returns the string representation of AttemptID.
func (a AttemptID) String() string {
	return string(a)
}

// AnswerSubmission is one client-supplied answer within a batch submission.
// Any correctness flag the client sends alongside is discarded; correctness
// is re-derived from the stored question.
type AnswerSubmission struct {
	QuestionID QuestionID
	Answer     OptionLabel
}

// Attempt is the immutable record of one completed quiz submission.
// Created exactly once per submission call and never updated or deleted.
type Attempt struct {
	ID              AttemptID
	UserID          shared.UserID
	ExamType        ExamType
	Mode            Mode
	TotalQuestions  int
	CorrectAnswers  int
	ScorePercentage float64
	TimeTaken       time.Duration
	XPEarned        int

	// IdempotencyKey is an optional client-supplied token. When present,
	// retried submissions with the same key return the original attempt
	// instead of creating a duplicate.
	IdempotencyKey string

	// Answers holds the per-question breakdown, persisted alongside the
	// summary so per-domain accuracy can be aggregated later.
	Answers []SessionAnswer

	CreatedAt time.Time
}

// NewAttemptParams contains the parameters for creating an attempt.
type NewAttemptParams struct {
	ID             AttemptID
	UserID         shared.UserID
	ExamType       ExamType
	Mode           Mode
	TotalQuestions int
	CorrectAnswers int
	TimeTaken      time.Duration
	XPEarned       int
	IdempotencyKey string
	Answers        []SessionAnswer
}

// NewAttempt creates an attempt with all derived fields computed.
// score_percentage is stored as a float for aggregation precision;
// display rounding happens at the presentation boundary.
func NewAttempt(params NewAttemptParams) (*Attempt, error) {
	if !params.ID.IsValid() {
		return nil, shared.NewDomainError("quiz", "NewAttempt", shared.ErrValidation, "attempt id is required")
	}
	if !params.UserID.IsValid() {
		return nil, shared.NewDomainError("quiz", "NewAttempt", shared.ErrValidation, "user id is required")
	}
	if !params.ExamType.IsValid() {
		return nil, shared.NewDomainError("quiz", "NewAttempt", shared.ErrValidation, "exam type is invalid")
	}
	if !params.Mode.IsValid() {
		return nil, shared.NewDomainError("quiz", "NewAttempt", shared.ErrValidation, "mode must be practice or study")
	}
	if params.TotalQuestions <= 0 {
		return nil, shared.ErrEmptySubmission
	}
	if params.CorrectAnswers < 0 || params.CorrectAnswers > params.TotalQuestions {
		return nil, shared.NewDomainError("quiz", "NewAttempt", shared.ErrValidation,
			"correct_answers must be within [0, total_questions]")
	}
	if params.TimeTaken < 0 {
		return nil, shared.NewDomainError("quiz", "NewAttempt", shared.ErrValidation, "time_taken cannot be negative")
	}
	if params.XPEarned < 0 {
		return nil, shared.NewDomainError("quiz", "NewAttempt", shared.ErrValidation, "xp_earned cannot be negative")
	}

	return &Attempt{
		ID:              params.ID,
		UserID:          params.UserID,
		ExamType:        params.ExamType,
		Mode:            params.Mode,
		TotalQuestions:  params.TotalQuestions,
		CorrectAnswers:  params.CorrectAnswers,
		ScorePercentage: 100.0 * float64(params.CorrectAnswers) / float64(params.TotalQuestions),
		TimeTaken:       params.TimeTaken,
		XPEarned:        params.XPEarned,
		IdempotencyKey:  params.IdempotencyKey,
		Answers:         params.Answers,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// IsPerfectScore returns true if every answer was correct.
func (a *Attempt) IsPerfectScore() bool {
	return a.CorrectAnswers == a.TotalQuestions
}

// Accuracy returns the score as a 0-100 percentage.
func (a *Attempt) Accuracy() float64 {
	return a.ScorePercentage
}

// ValidateBatch checks a full batch of answers before any correctness is
// derived: at least one answer, no duplicate question references.
func ValidateBatch(answers []AnswerSubmission) error {
	if len(answers) == 0 {
		return shared.ErrEmptySubmission
	}

	seen := make(map[QuestionID]bool, len(answers))
	for _, ans := range answers {
		if !ans.QuestionID.IsValid() {
			return shared.NewDomainError("quiz", "ValidateBatch", shared.ErrValidation, "answer is missing a question id")
		}
		if seen[ans.QuestionID] {
			return shared.ErrDuplicateAnswer
		}
		seen[ans.QuestionID] = true
	}
	return nil
}
