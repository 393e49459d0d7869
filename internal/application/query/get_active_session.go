package query

import (
	"context"
	"time"

	"github.com/certlab/cert-prep-hub/internal/domain/quiz"
	"github.com/certlab/cert-prep-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ACTIVE SESSION QUERY
// Возвращает незавершённую сессию пользователя вместе с текущим вопросом,
// чтобы клиент мог возобновить прохождение после обрыва.
// ══════════════════════════════════════════════════════════════════════════════

// GetActiveSessionQuery содержит параметры запроса активной сессии.
type GetActiveSessionQuery struct {
	// UserID - идентификатор пользователя.
	UserID string
}

// Validate проверяет корректность параметров запроса.
func (q *GetActiveSessionQuery) Validate() error {
	_, err := shared.NewUserID(q.UserID)
	return err
}

// QuestionDTO - вопрос для клиента. Правильный ответ и пояснения
// намеренно не сериализуются: проверка только на сервере.
type QuestionDTO struct {
	// ID - идентификатор вопроса.
	ID string `json:"id"`

	// Domain - доменная область экзамена.
	Domain string `json:"domain,omitempty"`

	// Text - текст вопроса.
	Text string `json:"text"`

	// Options - варианты ответа (только метка и текст).
	Options []QuestionOptionDTO `json:"options"`
}

// QuestionOptionDTO - один вариант ответа.
type QuestionOptionDTO struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// ActiveSessionDTO - состояние сессии для возобновления.
type ActiveSessionDTO struct {
	// SessionID - идентификатор сессии.
	SessionID string `json:"session_id"`

	// ExamType - экзамен сессии.
	ExamType string `json:"exam_type"`

	// Mode - режим: practice или study.
	Mode string `json:"mode"`

	// CurrentIndex - позиция курсора (сколько отвечено).
	CurrentIndex int `json:"current_index"`

	// TotalQuestions - всего вопросов в сессии.
	TotalQuestions int `json:"total_questions"`

	// CorrectSoFar - правильных ответов на данный момент.
	CorrectSoFar int `json:"correct_so_far"`

	// StartedAt - время начала сессии.
	StartedAt time.Time `json:"started_at"`

	// CurrentQuestion - вопрос, ожидающий ответа.
	CurrentQuestion *QuestionDTO `json:"current_question,omitempty"`
}

// GetActiveSessionResult содержит результат запроса.
type GetActiveSessionResult struct {
	// Found - есть ли у пользователя активная сессия.
	Found bool `json:"found"`

	// Session - активная сессия (nil, если Found=false).
	Session *ActiveSessionDTO `json:"session,omitempty"`
}

// GetActiveSessionHandler обрабатывает запросы активной сессии.
type GetActiveSessionHandler struct {
	sessions  quiz.SessionRepository
	questions quiz.QuestionStore
}

// NewGetActiveSessionHandler создаёт новый обработчик.
func NewGetActiveSessionHandler(
	sessions quiz.SessionRepository,
	questions quiz.QuestionStore,
) *GetActiveSessionHandler {
	return &GetActiveSessionHandler{
		sessions:  sessions,
		questions: questions,
	}
}

// Handle выполняет запрос активной сессии.
func (h *GetActiveSessionHandler) Handle(ctx context.Context, query GetActiveSessionQuery) (*GetActiveSessionResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	session, err := h.sessions.GetActiveByUser(ctx, shared.UserID(query.UserID))
	if err != nil {
		if shared.IsNotFound(err) {
			return &GetActiveSessionResult{Found: false}, nil
		}
		return nil, err
	}

	dto := &ActiveSessionDTO{
		SessionID:      session.ID.String(),
		ExamType:       session.ExamType.String(),
		Mode:           string(session.Mode),
		CurrentIndex:   session.CurrentIndex,
		TotalQuestions: session.Length(),
		CorrectSoFar:   session.CorrectCount,
		StartedAt:      session.StartedAt,
	}

	if questionID, ok := session.CurrentQuestionID(); ok {
		question, err := h.questions.GetByID(ctx, questionID)
		if err != nil {
			return nil, err
		}
		dto.CurrentQuestion = toQuestionDTO(question)
	}

	return &GetActiveSessionResult{Found: true, Session: dto}, nil
}

// toQuestionDTO конвертирует вопрос в клиентское представление.
func toQuestionDTO(q *quiz.Question) *QuestionDTO {
	options := make([]QuestionOptionDTO, len(q.Options))
	for i, opt := range q.Options {
		options[i] = QuestionOptionDTO{
			Label: string(opt.Label),
			Text:  opt.Text,
		}
	}
	return &QuestionDTO{
		ID:      q.ID.String(),
		Domain:  q.Domain,
		Text:    q.Text,
		Options: options,
	}
}
