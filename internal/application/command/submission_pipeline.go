// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/certlab/cert-prep-hub/internal/domain/achievement"
	"github.com/certlab/cert-prep-hub/internal/domain/profile"
	"github.com/certlab/cert-prep-hub/internal/domain/quiz"
	"github.com/certlab/cert-prep-hub/internal/domain/shared"
	"github.com/certlab/cert-prep-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMISSION PIPELINE
// Both entry shapes - a full practice batch and a finalized study session -
// converge here: persist the immutable attempt, apply progression to the
// profile under a row lock, then run one achievement evaluation sweep.
// Runs entirely inside the caller's transaction context.
// ══════════════════════════════════════════════════════════════════════════════

// submissionInput is the normalized shape both entry points produce.
type submissionInput struct {
	UserID         shared.UserID
	ExamType       quiz.ExamType
	Mode           quiz.Mode
	Answers        []quiz.SessionAnswer
	TimeTaken      time.Duration
	IdempotencyKey string
}

// SubmissionOutcome is the combined result of one persisted submission.
type SubmissionOutcome struct {
	// Attempt is the persisted immutable record.
	Attempt *quiz.Attempt

	// XPEarned is the attempt's XP, excluding achievement rewards.
	XPEarned int

	// RewardXP is the sum of achievement rewards granted this pass.
	RewardXP int

	// LevelUp indicates the level grew, from the attempt or a reward.
	LevelUp  bool
	OldLevel int
	NewLevel int

	// StreakCurrent / StreakLongest reflect the post-update profile.
	StreakCurrent int
	StreakLongest int

	// Unlocked lists achievements newly awarded by this submission.
	Unlocked []*achievement.Achievement

	// Replayed is true when an idempotency-key retry returned the
	// original attempt; no state was mutated.
	Replayed bool

	// Events are the domain events to publish after the transaction
	// commits.
	Events []shared.Event
}

// submissionPipeline wires the repositories one submission touches.
type submissionPipeline struct {
	profiles     profile.Repository
	attempts     quiz.AttemptRepository
	achievements achievement.Repository
	log          *logger.Logger
}

func newSubmissionPipeline(
	profiles profile.Repository,
	attempts quiz.AttemptRepository,
	achievements achievement.Repository,
	log *logger.Logger,
) *submissionPipeline {
	return &submissionPipeline{
		profiles:     profiles,
		attempts:     attempts,
		achievements: achievements,
		log:          log,
	}
}

// record persists one submission. Must be called inside a transaction
// context so the attempt insert, the profile read-modify-write, and the
// award inserts commit or roll back together.
func (p *submissionPipeline) record(ctx context.Context, in submissionInput, attemptID quiz.AttemptID) (*SubmissionOutcome, error) {
	if len(in.Answers) == 0 {
		return nil, shared.ErrEmptySubmission
	}

	correct := 0
	for _, ans := range in.Answers {
		if ans.IsCorrect {
			correct++
		}
	}
	total := len(in.Answers)

	xpEarned := profile.CalculateXP(correct, total, in.Mode.EarnsXP())

	attempt, err := quiz.NewAttempt(quiz.NewAttemptParams{
		ID:             attemptID,
		UserID:         in.UserID,
		ExamType:       in.ExamType,
		Mode:           in.Mode,
		TotalQuestions: total,
		CorrectAnswers: correct,
		TimeTaken:      in.TimeTaken,
		XPEarned:       int(xpEarned),
		IdempotencyKey: in.IdempotencyKey,
		Answers:        in.Answers,
	})
	if err != nil {
		return nil, err
	}

	if err := p.attempts.Create(ctx, attempt); err != nil {
		// A retried submission with the same idempotency key returns the
		// attempt the original call created, with no further mutation.
		if in.IdempotencyKey != "" && errors.Is(err, shared.ErrAlreadyExists) {
			original, lookupErr := p.attempts.GetByIdempotencyKey(ctx, in.UserID, in.IdempotencyKey)
			if lookupErr != nil {
				return nil, fmt.Errorf("submission: idempotent replay lookup: %w", lookupErr)
			}
			p.log.Info("submission replayed via idempotency key",
				logger.UserID(in.UserID.String()),
				logger.AttemptID(original.ID.String()),
			)
			return &SubmissionOutcome{
				Attempt:  original,
				XPEarned: original.XPEarned,
				Replayed: true,
			}, nil
		}
		return nil, fmt.Errorf("submission: create attempt: %w", err)
	}

	outcome := &SubmissionOutcome{
		Attempt:  attempt,
		XPEarned: attempt.XPEarned,
	}
	outcome.Events = append(outcome.Events, shared.NewAttemptRecordedEvent(
		attempt.ID.String(), in.UserID.String(), in.ExamType.String(), string(in.Mode),
		total, correct, attempt.ScorePercentage, attempt.XPEarned,
	))

	prof, err := p.applyProgression(ctx, attempt, outcome)
	if err != nil {
		return nil, err
	}

	if err := p.evaluateAchievements(ctx, prof, attempt, outcome); err != nil {
		return nil, err
	}

	outcome.NewLevel = int(prof.Level)
	outcome.LevelUp = outcome.NewLevel > outcome.OldLevel
	outcome.StreakCurrent = prof.StreakCurrent
	outcome.StreakLongest = prof.StreakLongest

	if outcome.LevelUp {
		outcome.Events = append(outcome.Events,
			shared.NewLevelUpEvent(in.UserID.String(), outcome.OldLevel, outcome.NewLevel))
	}

	return outcome, nil
}

// applyProgression runs the atomic profile read-modify-write: XP, derived
// level, streak, and counters in one write under a row lock.
func (p *submissionPipeline) applyProgression(ctx context.Context, attempt *quiz.Attempt, outcome *SubmissionOutcome) (*profile.Profile, error) {
	prof, err := p.profiles.GetOrCreateForUpdate(ctx, attempt.UserID)
	if err != nil {
		return nil, fmt.Errorf("submission: lock profile: %w", err)
	}

	outcome.OldLevel = int(prof.Level)
	oldXP := prof.XP

	result, err := prof.ApplySubmission(profile.SubmissionStats{
		CorrectAnswers: attempt.CorrectAnswers,
		TotalQuestions: attempt.TotalQuestions,
		EarnsXP:        attempt.Mode.EarnsXP(),
		SubmittedAt:    attempt.CreatedAt,
	})
	if err != nil {
		return nil, err
	}

	if err := p.profiles.Save(ctx, prof); err != nil {
		return nil, fmt.Errorf("submission: save profile: %w", err)
	}

	if result.XPEarned > 0 {
		entry := profile.XPHistoryEntry{
			UserID:      attempt.UserID,
			OldXP:       oldXP,
			NewXP:       prof.XP,
			Delta:       result.XPEarned,
			Reason:      profile.XPReasonAttempt,
			ReferenceID: attempt.ID.String(),
			CreatedAt:   time.Now().UTC(),
		}
		if err := p.profiles.AppendXPHistory(ctx, entry); err != nil {
			return nil, fmt.Errorf("submission: append xp history: %w", err)
		}
		outcome.Events = append(outcome.Events, shared.NewXPGainedEvent(
			attempt.UserID.String(), int(result.XPEarned), int(prof.XP), profile.XPReasonAttempt))
	}

	switch result.StreakOutcome {
	case profile.StreakStarted, profile.StreakExtended:
		outcome.Events = append(outcome.Events, shared.NewStreakUpdatedEvent(
			attempt.UserID.String(), prof.StreakCurrent, prof.StreakLongest))
	case profile.StreakReset:
		outcome.Events = append(outcome.Events, shared.NewStreakBrokenEvent(
			attempt.UserID.String(), result.PreviousStreak, result.DaysMissed))
		outcome.Events = append(outcome.Events, shared.NewStreakUpdatedEvent(
			attempt.UserID.String(), prof.StreakCurrent, prof.StreakLongest))
	}

	return prof, nil
}

// evaluateAchievements runs exactly one non-recursive evaluation sweep over
// the unearned catalog. Rewards granted here can raise the level but never
// trigger re-evaluation within the same submission; that bound keeps
// termination trivial.
func (p *submissionPipeline) evaluateAchievements(ctx context.Context, prof *profile.Profile, attempt *quiz.Attempt, outcome *SubmissionOutcome) error {
	defs, err := p.achievements.ListDefinitions(ctx)
	if err != nil {
		return fmt.Errorf("submission: list achievements: %w", err)
	}
	if len(defs) == 0 {
		return nil
	}

	earned, err := p.achievements.ListEarnedIDs(ctx, attempt.UserID)
	if err != nil {
		return fmt.Errorf("submission: list earned achievements: %w", err)
	}

	aggregates, err := p.attempts.AggregatesByUser(ctx, attempt.UserID)
	if err != nil {
		return fmt.Errorf("submission: load attempt aggregates: %w", err)
	}

	perfectCount, err := p.achievements.CountPerfectScores(ctx, attempt.UserID)
	if err != nil {
		return fmt.Errorf("submission: count perfect scores: %w", err)
	}

	evalCtx := achievement.EvaluationContext{
		Profile:           prof,
		Attempt:           attempt,
		Aggregates:        aggregates,
		PerfectScoreCount: perfectCount,
	}

	// Evaluate every criterion against the pre-reward snapshot before any
	// reward mutates the profile, so outcomes do not depend on catalog
	// order.
	var satisfied []*achievement.Achievement
	for _, def := range defs {
		if earned[def.ID] {
			continue
		}
		if def.IsSatisfied(evalCtx) {
			satisfied = append(satisfied, def)
		}
	}

	oldXP := prof.XP
	rewardTotal := profile.XP(0)
	now := time.Now().UTC()

	for _, def := range satisfied {
		awarded, err := p.achievements.Award(ctx, &achievement.EarnedAchievement{
			UserID:        attempt.UserID,
			AchievementID: def.ID,
			EarnedAt:      now,
		})
		if err != nil {
			return fmt.Errorf("submission: award achievement %s: %w", def.Code, err)
		}
		if !awarded {
			// Lost the insert race to a concurrent evaluation; the
			// constraint did its job, nothing to surface.
			continue
		}

		outcome.Unlocked = append(outcome.Unlocked, def)
		outcome.Events = append(outcome.Events, shared.NewAchievementUnlockedEvent(
			attempt.UserID.String(), def.Code, def.XPReward))

		if def.XPReward > 0 {
			if _, err := prof.GrantReward(profile.XP(def.XPReward)); err != nil {
				return err
			}
			rewardTotal += profile.XP(def.XPReward)
		}
	}

	if rewardTotal > 0 {
		outcome.RewardXP = int(rewardTotal)
		if err := p.profiles.Save(ctx, prof); err != nil {
			return fmt.Errorf("submission: save profile rewards: %w", err)
		}
		entry := profile.XPHistoryEntry{
			UserID:      attempt.UserID,
			OldXP:       oldXP,
			NewXP:       prof.XP,
			Delta:       rewardTotal,
			Reason:      profile.XPReasonAchievementReward,
			ReferenceID: attempt.ID.String(),
			CreatedAt:   now,
		}
		if err := p.profiles.AppendXPHistory(ctx, entry); err != nil {
			return fmt.Errorf("submission: append reward history: %w", err)
		}
		outcome.Events = append(outcome.Events, shared.NewXPGainedEvent(
			attempt.UserID.String(), int(rewardTotal), int(prof.XP), profile.XPReasonAchievementReward))
	}

	return nil
}

// publishAll publishes post-commit events best effort. A listener failure
// never fails the committed submission.
func publishAll(publisher shared.EventPublisher, log *logger.Logger, events []shared.Event) {
	for _, event := range events {
		if err := publisher.Publish(event); err != nil {
			log.Warn("event publish failed",
				logger.String("event_type", string(event.EventType())),
				logger.Err(err),
			)
		}
	}
}
