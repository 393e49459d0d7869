package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/certlab/cert-prep-hub/internal/domain/achievement"
	"github.com/certlab/cert-prep-hub/internal/domain/profile"
	"github.com/certlab/cert-prep-hub/internal/domain/quiz"
	"github.com/certlab/cert-prep-hub/internal/domain/shared"
	"github.com/certlab/cert-prep-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT ATTEMPT COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// AttemptAnswer is one answered question in a batch submission.
type AttemptAnswer struct {
	QuestionID string
	Answer     string
}

// SubmitAttemptCommand records a completed quiz in one call, bypassing the
// session flow. Grading happens server side against the question store.
type SubmitAttemptCommand struct {
	UserID    string
	ExamType  string
	Mode      string
	Answers   []AttemptAnswer
	TimeTaken time.Duration

	// IdempotencyKey is optional. Retries carrying the same key return the
	// attempt the first call created instead of recording a duplicate.
	IdempotencyKey string
}

// Validate checks command input before any repository access.
func (c *SubmitAttemptCommand) Validate() error {
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return err
	}
	if _, err := quiz.NewExamType(c.ExamType); err != nil {
		return err
	}
	if _, err := quiz.ParseMode(c.Mode); err != nil {
		return err
	}
	if c.TimeTaken < 0 {
		return shared.NewDomainError("quiz", "SubmitAttempt", shared.ErrValidation, "time taken cannot be negative")
	}

	batch := make([]quiz.AnswerSubmission, len(c.Answers))
	for i, a := range c.Answers {
		if !quiz.NormalizeLabel(a.Answer).IsValid() {
			return shared.NewDomainError("quiz", "SubmitAttempt", shared.ErrValidation,
				fmt.Sprintf("answer for question %q must be one of A, B, C, D", a.QuestionID))
		}
		batch[i] = quiz.AnswerSubmission{
			QuestionID: quiz.QuestionID(a.QuestionID),
			Answer:     quiz.NormalizeLabel(a.Answer),
		}
	}
	return quiz.ValidateBatch(batch)
}

// SubmitAttemptResult wraps the pipeline outcome for the batch entry point.
type SubmitAttemptResult struct {
	Outcome *SubmissionOutcome
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

type SubmitAttemptHandler struct {
	questions quiz.QuestionStore
	pipeline  *submissionPipeline
	txManager shared.TxManager
	publisher shared.EventPublisher
	log       *logger.Logger
}

func NewSubmitAttemptHandler(
	questions quiz.QuestionStore,
	profiles profile.Repository,
	attempts quiz.AttemptRepository,
	achievements achievement.Repository,
	txManager shared.TxManager,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *SubmitAttemptHandler {
	log = log.With(logger.Component("submit_attempt"))
	return &SubmitAttemptHandler{
		questions: questions,
		pipeline:  newSubmissionPipeline(profiles, attempts, achievements, log),
		txManager: txManager,
		publisher: publisher,
		log:       log,
	}
}

// Handle grades the batch and records it atomically: the attempt insert,
// the profile update, and any achievement awards commit together.
func (h *SubmitAttemptHandler) Handle(ctx context.Context, cmd SubmitAttemptCommand) (*SubmitAttemptResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	userID, _ := shared.NewUserID(cmd.UserID)
	examType, _ := quiz.NewExamType(cmd.ExamType)
	mode, _ := quiz.ParseMode(cmd.Mode)

	answers, err := h.grade(ctx, examType, cmd.Answers)
	if err != nil {
		return nil, err
	}

	var outcome *SubmissionOutcome
	err = h.txManager.InTx(ctx, func(ctx context.Context) error {
		var txErr error
		outcome, txErr = h.pipeline.record(ctx, submissionInput{
			UserID:         userID,
			ExamType:       examType,
			Mode:           mode,
			Answers:        answers,
			TimeTaken:      cmd.TimeTaken,
			IdempotencyKey: cmd.IdempotencyKey,
		}, quiz.AttemptID(uuid.NewString()))
		return txErr
	})
	if err != nil {
		return nil, err
	}

	if outcome.Replayed {
		h.log.Info("attempt replayed",
			logger.UserID(cmd.UserID),
			logger.AttemptID(outcome.Attempt.ID.String()),
		)
	} else {
		h.log.Info("attempt recorded",
			logger.UserID(cmd.UserID),
			logger.AttemptID(outcome.Attempt.ID.String()),
			logger.ExamType(cmd.ExamType),
			logger.XPAmount(outcome.XPEarned+outcome.RewardXP),
		)
	}
	publishAll(h.publisher, h.log, outcome.Events)

	return &SubmitAttemptResult{Outcome: outcome}, nil
}

// grade resolves every referenced question and marks correctness. An answer
// referencing an unknown question, or one from another exam, rejects the
// whole batch.
func (h *SubmitAttemptHandler) grade(ctx context.Context, examType quiz.ExamType, raw []AttemptAnswer) ([]quiz.SessionAnswer, error) {
	ids := make([]quiz.QuestionID, len(raw))
	for i, a := range raw {
		ids[i] = quiz.QuestionID(a.QuestionID)
	}

	questions, err := h.questions.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("submit attempt: load questions: %w", err)
	}

	now := time.Now().UTC()
	answers := make([]quiz.SessionAnswer, len(raw))
	for i, a := range raw {
		question, ok := questions[quiz.QuestionID(a.QuestionID)]
		if !ok || question.ExamType != examType {
			return nil, shared.ErrForeignQuestion
		}
		answers[i] = quiz.SessionAnswer{
			QuestionID: question.ID,
			Answer:     quiz.NormalizeLabel(a.Answer),
			IsCorrect:  question.IsCorrect(a.Answer),
			AnsweredAt: now,
		}
	}
	return answers, nil
}
