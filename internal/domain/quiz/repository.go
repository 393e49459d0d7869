package quiz

import (
	"context"
	"time"

	"github.com/certlab/cert-prep-hub/internal/domain/shared"
)

// SessionRepository persists resumable session state.
// Implementations live in infrastructure/persistence.
type SessionRepository interface {
	// Create inserts a new in-progress session. The insert races against
	// the at-most-one-active-session constraint; a violation is returned
	// as shared.ErrActiveSessionConflict.
	Create(ctx context.Context, session *Session) error

	// GetByID returns a session by id.
	// Returns shared.ErrSessionNotFound if it does not exist.
	GetByID(ctx context.Context, id SessionID) (*Session, error)

	// GetActiveByUser returns the user's non-terminal session.
	// Returns shared.ErrSessionNotFound if there is none.
	GetActiveByUser(ctx context.Context, userID shared.UserID) (*Session, error)

	// Update persists the session's cursor, answers, and status. The write
	// is guarded by the expected pre-answer cursor position: if another
	// request advanced the session concurrently, the update matches zero
	// rows and shared.ErrConcurrentModification is returned.
	Update(ctx context.Context, session *Session, expectedIndex int) error
}

// QuestionStore is the read-only view over externally owned question data.
type QuestionStore interface {
	// GetByID returns a question by id.
	// Returns shared.ErrQuestionNotFound if it does not exist.
	GetByID(ctx context.Context, id QuestionID) (*Question, error)

	// GetByIDs returns the questions for the given ids, keyed by id.
	// Missing ids are absent from the map, not an error.
	GetByIDs(ctx context.Context, ids []QuestionID) (map[QuestionID]*Question, error)

	// Sample returns up to count distinct random questions for an exam type.
	// Returns shared.ErrQuestionNotFound when the exam has no questions.
	Sample(ctx context.Context, examType ExamType, count int) ([]*Question, error)
}

// AttemptRepository persists immutable attempt records.
type AttemptRepository interface {
	// Create inserts a new attempt. When the attempt carries an idempotency
	// key that was already used by this user, shared.ErrAlreadyExists is
	// returned and the caller falls back to GetByIdempotencyKey.
	Create(ctx context.Context, attempt *Attempt) error

	// GetByID returns an attempt by id.
	GetByID(ctx context.Context, id AttemptID) (*Attempt, error)

	// GetByIdempotencyKey returns the attempt a retried submission
	// originally created. Returns shared.ErrNotFound when no attempt
	// carries the key.
	GetByIdempotencyKey(ctx context.Context, userID shared.UserID, key string) (*Attempt, error)

	// ListByUser returns the user's attempts, newest first.
	ListByUser(ctx context.Context, userID shared.UserID, limit, offset int) ([]*Attempt, error)

	// CountByUserAndExam returns how many attempts the user has for an exam
	// type since the given time. A zero time means all time.
	CountByUserAndExam(ctx context.Context, userID shared.UserID, examType ExamType, since time.Time) (int, error)

	// AggregatesByUser returns per-exam attempt counts and the user's
	// average accuracy per exam knowledge domain, both over all time.
	// Used by the achievement evaluator for scoped criteria.
	AggregatesByUser(ctx context.Context, userID shared.UserID) (*UserAggregates, error)
}

// UserAggregates is the aggregate view of a user's attempt history that
// achievement criteria are evaluated against.
type UserAggregates struct {
	// AttemptsByExam maps exam type to attempt count.
	AttemptsByExam map[ExamType]int

	// AccuracyByDomain maps exam knowledge domain to average score
	// percentage across all attempts touching that domain.
	AccuracyByDomain map[string]float64

	// QuestionsAnswered is the total number of questions across attempts.
	QuestionsAnswered int
}
