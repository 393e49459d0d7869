// Package quiz contains domain entities and business logic for question
// sessions, answer submission, and attempt records.
// This is a pure domain layer with zero external dependencies.
package quiz

import (
	"strings"

	"github.com/certlab/cert-prep-hub/internal/domain/shared"
)

// QuestionID represents a unique identifier for a question.
type QuestionID string

// IsValid checks if the question ID is valid.
func (q QuestionID) IsValid() bool {
	return q != ""
}

// String returns the string representation of QuestionID.
func (q QuestionID) String() string {
	return string(q)
}

// ExamType identifies a certification exam (e.g. "aws-saa", "ckad").
type ExamType string

// IsValid checks if the exam type is valid.
func (e ExamType) IsValid() bool {
	s := string(e)
	return len(s) >= 2 && len(s) <= 50 && !strings.ContainsAny(s, " \t\n\r")
}

// String returns the string representation of ExamType.
func (e ExamType) String() string {
	return string(e)
}

// NewExamType normalizes and validates raw exam type input.
func NewExamType(s string) (ExamType, error) {
	e := ExamType(strings.ToLower(strings.TrimSpace(s)))
	if !e.IsValid() {
		return "", shared.NewDomainError("quiz", "NewExamType", shared.ErrInvalidInput,
			"exam type must be 2-50 characters without whitespace")
	}
	return e, nil
}

// OptionLabel is one of the four answer choices.
type OptionLabel string

const (
	OptionA OptionLabel = "A"
	OptionB OptionLabel = "B"
	OptionC OptionLabel = "C"
	OptionD OptionLabel = "D"
)

// OptionLabels returns all valid labels in display order.
func OptionLabels() []OptionLabel {
	return []OptionLabel{OptionA, OptionB, OptionC, OptionD}
}

// IsValid checks if the label is one of the four choices.
func (o OptionLabel) IsValid() bool {
	switch o {
	case OptionA, OptionB, OptionC, OptionD:
		return true
	default:
		return false
	}
}

// NormalizeLabel canonicalizes a client-supplied answer label.
func NormalizeLabel(s string) OptionLabel {
	return OptionLabel(strings.ToUpper(strings.TrimSpace(s)))
}

// Option is a single answer choice with its explanation.
type Option struct {
	Label       OptionLabel
	Text        string
	Explanation string
}

// Question is immutable reference data owned by the question store.
// The engine only reads it to re-derive correctness server-side.
type Question struct {
	ID            QuestionID
	ExamType      ExamType
	Domain        string // exam knowledge domain, e.g. "networking"
	Text          string
	Options       []Option
	CorrectAnswer OptionLabel
}

// IsCorrect checks a client-supplied answer against the stored correct
// answer. Client correctness flags are never trusted; this is the only
// correctness source.
func (q *Question) IsCorrect(answer string) bool {
	return NormalizeLabel(answer) == q.CorrectAnswer
}

// OptionByLabel returns the option with the given label.
func (q *Question) OptionByLabel(label OptionLabel) (Option, bool) {
	for _, opt := range q.Options {
		if opt.Label == label {
			return opt, true
		}
	}
	return Option{}, false
}

// Validate checks the invariants of the reference data. Questions come from
// an external store; a malformed row is a data error, not a user error.
func (q *Question) Validate() error {
	if !q.ID.IsValid() {
		return shared.NewDomainError("quiz", "Question.Validate", shared.ErrValidation, "question id is required")
	}
	if !q.ExamType.IsValid() {
		return shared.NewDomainError("quiz", "Question.Validate", shared.ErrValidation, "exam type is invalid")
	}
	if len(q.Options) != len(OptionLabels()) {
		return shared.NewDomainError("quiz", "Question.Validate", shared.ErrValidation, "question must have exactly four options")
	}
	if _, ok := q.OptionByLabel(q.CorrectAnswer); !ok {
		return shared.NewDomainError("quiz", "Question.Validate", shared.ErrValidation, "correct answer must reference one of the options")
	}
	return nil
}
