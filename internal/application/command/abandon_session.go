package command

import (
	"context"
	"errors"

	"github.com/certlab/cert-prep-hub/internal/domain/quiz"
	"github.com/certlab/cert-prep-hub/internal/domain/shared"
	"github.com/certlab/cert-prep-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ABANDON SESSION COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// AbandonSessionCommand terminates a session without recording an attempt.
// Answers given so far are discarded; no XP, streak, or achievement state
// changes.
type AbandonSessionCommand struct {
	SessionID string
	UserID    string
}

// Validate checks command input before any repository access.
func (c *AbandonSessionCommand) Validate() error {
	if !quiz.SessionID(c.SessionID).IsValid() {
		return shared.NewDomainError("quiz", "AbandonSession", shared.ErrValidation, "session id is required")
	}
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return err
	}
	return nil
}

// AbandonSessionResult reports whether this call performed the transition.
type AbandonSessionResult struct {
	// Abandoned is false when the session was already terminal or gone;
	// the operation is idempotent and both count as success.
	Abandoned bool
	Events    []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

type AbandonSessionHandler struct {
	sessions  quiz.SessionRepository
	publisher shared.EventPublisher
	log       *logger.Logger
}

func NewAbandonSessionHandler(
	sessions quiz.SessionRepository,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *AbandonSessionHandler {
	return &AbandonSessionHandler{
		sessions:  sessions,
		publisher: publisher,
		log:       log.With(logger.Component("abandon_session")),
	}
}

// Handle abandons the session. Repeated calls and calls against an already
// terminal or missing session succeed without effect.
func (h *AbandonSessionHandler) Handle(ctx context.Context, cmd AbandonSessionCommand) (*AbandonSessionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	session, err := h.sessions.GetByID(ctx, quiz.SessionID(cmd.SessionID))
	if err != nil {
		if shared.IsNotFound(err) {
			return &AbandonSessionResult{Abandoned: false}, nil
		}
		return nil, err
	}
	if session.UserID.String() != cmd.UserID {
		// Foreign sessions look like missing ones.
		return &AbandonSessionResult{Abandoned: false}, nil
	}

	expectedIndex := session.CurrentIndex
	if err := session.Abandon(); err != nil {
		if errors.Is(err, shared.ErrSessionTerminal) {
			return &AbandonSessionResult{Abandoned: false}, nil
		}
		return nil, err
	}

	if err := h.sessions.Update(ctx, session, expectedIndex); err != nil {
		// Losing the race to a concurrent answer or abandon still leaves
		// the session in a state the caller can live with.
		if errors.Is(err, shared.ErrConcurrentModification) || shared.IsNotFound(err) {
			return &AbandonSessionResult{Abandoned: false}, nil
		}
		return nil, err
	}

	h.log.Info("session abandoned",
		logger.SessionID(cmd.SessionID),
		logger.UserID(cmd.UserID),
	)

	event := shared.NewSessionAbandonedEvent(
		session.ID.String(), session.UserID.String(), len(session.Answers))
	publishAll(h.publisher, h.log, []shared.Event{event})

	return &AbandonSessionResult{
		Abandoned: true,
		Events:    []shared.Event{event},
	}, nil
}
