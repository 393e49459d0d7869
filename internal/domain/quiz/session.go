package quiz

import (
	"fmt"
	"strings"
	"time"

	"github.com/certlab/cert-prep-hub/internal/domain/shared"
)

// Session size bounds for interactive quizzes.
const (
	MinSessionQuestions = 1
	MaxSessionQuestions = 100
)

// SessionID represents a unique identifier for a session.
type SessionID string

// IsValid checks if the session ID is valid.
func (s SessionID) IsValid() bool {
	return s != ""
}

// String returns the string representation of SessionID.
func (s SessionID) String() string {
	return string(s)
}

// Mode determines whether a quiz is competitive or for learning.
type Mode string

const (
	// ModePractice is the timed, XP-earning mode.
	ModePractice Mode = "practice"
	// ModeStudy is the untimed mode. Completions count toward the streak
	// but never earn XP.
	ModeStudy Mode = "study"
)

// IsValid checks if the mode is valid.
func (m Mode) IsValid() bool {
	return m == ModePractice || m == ModeStudy
}

// ParseMode converts raw input into a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", shared.NewDomainError("quiz", "ParseMode", shared.ErrInvalidInput,
			fmt.Sprintf("mode must be practice or study, got %q", s))
	}
	return m, nil
}

// EarnsXP returns true if submissions in this mode earn XP.
func (m Mode) EarnsXP() bool {
	return m == ModePractice
}

// SessionStatus represents the current state of a session.
// Lifecycle: in_progress -> {completed | abandoned}, both terminal.
type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusAbandoned  SessionStatus = "abandoned"
)

// IsTerminal returns true for states with no outgoing transitions.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusAbandoned
}

// SessionAnswer records one answered question within a session.
type SessionAnswer struct {
	QuestionID QuestionID
	Answer     OptionLabel
	IsCorrect  bool
	AnsweredAt time.Time
}

// Session is the ephemeral, resumable state of an in-progress question
// sequence. It stores an ordered list of question ids plus a cursor, never
// full question payloads, so stored state stays small and cannot drift from
// the question store.
//
// At most one non-terminal session may exist per user; the storage layer
// enforces this with a partial unique index, and Create surfaces violations
// as shared.ErrActiveSessionConflict.
type Session struct {
	ID           SessionID
	UserID       shared.UserID
	ExamType     ExamType
	Mode         Mode
	QuestionIDs  []QuestionID
	CurrentIndex int
	Answers      []SessionAnswer
	CorrectCount int
	Status       SessionStatus
	StartedAt    time.Time
	UpdatedAt    time.Time
}

// NewSession creates a new in-progress session at index 0.
func NewSession(id SessionID, userID shared.UserID, examType ExamType, mode Mode, questionIDs []QuestionID) (*Session, error) {
	if !id.IsValid() {
		return nil, shared.NewDomainError("quiz", "NewSession", shared.ErrValidation, "session id is required")
	}
	if !userID.IsValid() {
		return nil, shared.NewDomainError("quiz", "NewSession", shared.ErrValidation, "user id is required")
	}
	if !examType.IsValid() {
		return nil, shared.NewDomainError("quiz", "NewSession", shared.ErrValidation, "exam type is invalid")
	}
	if !mode.IsValid() {
		return nil, shared.NewDomainError("quiz", "NewSession", shared.ErrValidation, "mode must be practice or study")
	}
	if len(questionIDs) == 0 {
		return nil, shared.ErrEmptySubmission
	}

	seen := make(map[QuestionID]bool, len(questionIDs))
	for _, qid := range questionIDs {
		if !qid.IsValid() {
			return nil, shared.NewDomainError("quiz", "NewSession", shared.ErrValidation, "question id is required")
		}
		if seen[qid] {
			return nil, shared.ErrDuplicateAnswer
		}
		seen[qid] = true
	}

	now := time.Now().UTC()

	return &Session{
		ID:           id,
		UserID:       userID,
		ExamType:     examType,
		Mode:         mode,
		QuestionIDs:  questionIDs,
		CurrentIndex: 0,
		Answers:      make([]SessionAnswer, 0, len(questionIDs)),
		CorrectCount: 0,
		Status:       SessionStatusInProgress,
		StartedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Length returns the number of questions in the session.
func (s *Session) Length() int {
	return len(s.QuestionIDs)
}

// IsTerminal returns true if the session is completed or abandoned.
func (s *Session) IsTerminal() bool {
	return s.Status.IsTerminal()
}

// CurrentQuestionID returns the question the user must answer next,
// or false if the sequence is exhausted.
func (s *Session) CurrentQuestionID() (QuestionID, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.QuestionIDs) {
		return "", false
	}
	return s.QuestionIDs[s.CurrentIndex], true
}

// RecordAnswer records correctness for the session's current question and
// advances the cursor. Only the current question is accepted; anything else
// is a replay or tampering attempt and is rejected before any mutation.
// When the cursor reaches the end of the sequence, the session transitions
// to completed.
func (s *Session) RecordAnswer(questionID QuestionID, answer OptionLabel, isCorrect bool, answeredAt time.Time) error {
	if s.IsTerminal() {
		return shared.ErrSessionTerminal
	}

	current, ok := s.CurrentQuestionID()
	if !ok || current != questionID {
		return shared.ErrInvalidAnswerReference
	}

	s.Answers = append(s.Answers, SessionAnswer{
		QuestionID: questionID,
		Answer:     answer,
		IsCorrect:  isCorrect,
		AnsweredAt: answeredAt,
	})
	if isCorrect {
		s.CorrectCount++
	}
	s.CurrentIndex++
	s.UpdatedAt = time.Now().UTC()

	if s.CurrentIndex >= len(s.QuestionIDs) {
		s.Status = SessionStatusCompleted
	}
	return nil
}

// Abandon discards a non-terminal session. Abandoning an already-terminal
// session returns shared.ErrSessionTerminal; callers that need idempotent
// abandon semantics treat that as a no-op.
func (s *Session) Abandon() error {
	if s.IsTerminal() {
		return shared.ErrSessionTerminal
	}
	s.Status = SessionStatusAbandoned
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// TimeTaken returns how long the session has been running.
func (s *Session) TimeTaken() time.Duration {
	return s.UpdatedAt.Sub(s.StartedAt)
}

// ContainsQuestion checks whether a question id belongs to the session.
func (s *Session) ContainsQuestion(questionID QuestionID) bool {
	for _, qid := range s.QuestionIDs {
		if qid == questionID {
			return true
		}
	}
	return false
}
