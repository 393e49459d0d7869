package query

import (
	"context"
	"time"

	"github.com/certlab/cert-prep-hub/internal/domain/achievement"
	"github.com/certlab/cert-prep-hub/internal/domain/profile"
	"github.com/certlab/cert-prep-hub/internal/domain/quiz"
	"github.com/certlab/cert-prep-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS QUERY
// Сводка прогрессии пользователя: XP, уровень, серия, полученные
// достижения и последние попытки.
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressQuery содержит параметры запроса прогрессии.
type GetProgressQuery struct {
	// UserID - идентификатор пользователя.
	UserID string

	// RecentAttempts - сколько последних попыток вернуть
	// (по умолчанию 10, максимум 50).
	RecentAttempts int
}

// Validate проверяет корректность параметров запроса.
func (q *GetProgressQuery) Validate() error {
	if _, err := shared.NewUserID(q.UserID); err != nil {
		return err
	}
	if q.RecentAttempts < 0 {
		q.RecentAttempts = 0
	}
	if q.RecentAttempts == 0 {
		q.RecentAttempts = 10
	}
	if q.RecentAttempts > 50 {
		q.RecentAttempts = 50
	}
	return nil
}

// EarnedAchievementDTO - полученное достижение вместе с определением.
type EarnedAchievementDTO struct {
	// Code - машинное имя достижения.
	Code string `json:"code"`

	// Name - отображаемое название.
	Name string `json:"name"`

	// Description - описание условия.
	Description string `json:"description,omitempty"`

	// XPReward - награда, зачисленная при получении.
	XPReward int `json:"xp_reward"`

	// EarnedAt - время получения.
	EarnedAt time.Time `json:"earned_at"`
}

// AttemptDTO - краткая запись одной попытки.
type AttemptDTO struct {
	// AttemptID - идентификатор попытки.
	AttemptID string `json:"attempt_id"`

	// ExamType - экзамен попытки.
	ExamType string `json:"exam_type"`

	// Mode - режим: practice или study.
	Mode string `json:"mode"`

	// TotalQuestions, CorrectAnswers - объём и результат.
	TotalQuestions int `json:"total_questions"`
	CorrectAnswers int `json:"correct_answers"`

	// ScorePercentage - точность попытки в процентах.
	ScorePercentage float64 `json:"score_percentage"`

	// XPEarned - начисленный XP.
	XPEarned int `json:"xp_earned"`

	// CreatedAt - время записи попытки.
	CreatedAt time.Time `json:"created_at"`
}

// GetProgressResult содержит сводку прогрессии.
type GetProgressResult struct {
	// UserID - идентификатор пользователя.
	UserID string `json:"user_id"`

	// XP - накопленный опыт (монотонно неубывающий).
	XP int `json:"xp"`

	// Level - уровень, производный от XP.
	Level int `json:"level"`

	// XPToNextLevel - сколько XP осталось до следующего уровня.
	XPToNextLevel int `json:"xp_to_next_level"`

	// StreakCurrent, StreakLongest - текущая и рекордная серия дней.
	StreakCurrent int `json:"streak_current"`
	StreakLongest int `json:"streak_longest"`

	// LastActivityDate - дата последней активности (пустая строка,
	// если активности ещё не было).
	LastActivityDate string `json:"last_activity_date,omitempty"`

	// TotalExamsTaken, TotalQuestionsAnswered - счётчики за всё время.
	TotalExamsTaken        int `json:"total_exams_taken"`
	TotalQuestionsAnswered int `json:"total_questions_answered"`

	// Achievements - полученные достижения, новые первыми.
	Achievements []EarnedAchievementDTO `json:"achievements"`

	// RecentAttempts - последние попытки, новые первыми.
	RecentAttempts []AttemptDTO `json:"recent_attempts"`
}

// GetProgressHandler обрабатывает запросы прогрессии.
type GetProgressHandler struct {
	profiles     profile.Repository
	attempts     quiz.AttemptRepository
	achievements achievement.Repository
}

// NewGetProgressHandler создаёт новый обработчик.
func NewGetProgressHandler(
	profiles profile.Repository,
	attempts quiz.AttemptRepository,
	achievements achievement.Repository,
) *GetProgressHandler {
	return &GetProgressHandler{
		profiles:     profiles,
		attempts:     attempts,
		achievements: achievements,
	}
}

// Handle выполняет запрос прогрессии. Для пользователя без единой
// попытки возвращается пустой профиль, а не ошибка.
func (h *GetProgressHandler) Handle(ctx context.Context, query GetProgressQuery) (*GetProgressResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	userID := shared.UserID(query.UserID)

	prof, err := h.profiles.Get(ctx, userID)
	if err != nil {
		if !shared.IsNotFound(err) {
			return nil, err
		}
		prof, err = profile.NewProfile(userID)
		if err != nil {
			return nil, err
		}
	}

	earned, err := h.loadAchievements(ctx, userID)
	if err != nil {
		return nil, err
	}

	recent, err := h.loadRecentAttempts(ctx, userID, query.RecentAttempts)
	if err != nil {
		return nil, err
	}

	result := &GetProgressResult{
		UserID:                 prof.UserID.String(),
		XP:                     int(prof.XP),
		Level:                  int(prof.Level),
		XPToNextLevel:          int(prof.XPToNextLevel()),
		StreakCurrent:          prof.StreakCurrent,
		StreakLongest:          prof.StreakLongest,
		TotalExamsTaken:        prof.TotalExamsTaken,
		TotalQuestionsAnswered: prof.TotalQuestionsAnswered,
		Achievements:           earned,
		RecentAttempts:         recent,
	}
	if prof.HasActivity() {
		result.LastActivityDate = prof.LastActivityDate.Format("2006-01-02")
	}

	return result, nil
}

// loadAchievements собирает полученные достижения вместе с определениями.
func (h *GetProgressHandler) loadAchievements(ctx context.Context, userID shared.UserID) ([]EarnedAchievementDTO, error) {
	earned, err := h.achievements.ListEarned(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(earned) == 0 {
		return []EarnedAchievementDTO{}, nil
	}

	defs, err := h.achievements.ListDefinitions(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[achievement.AchievementID]*achievement.Achievement, len(defs))
	for _, def := range defs {
		byID[def.ID] = def
	}

	dtos := make([]EarnedAchievementDTO, 0, len(earned))
	for _, e := range earned {
		def, ok := byID[e.AchievementID]
		if !ok {
			// Определение удалили из каталога; сам факт получения
			// остаётся в истории, но показать нечего.
			continue
		}
		dtos = append(dtos, EarnedAchievementDTO{
			Code:        def.Code,
			Name:        def.Name,
			Description: def.Description,
			XPReward:    def.XPReward,
			EarnedAt:    e.EarnedAt,
		})
	}
	return dtos, nil
}

// loadRecentAttempts возвращает последние попытки пользователя.
func (h *GetProgressHandler) loadRecentAttempts(ctx context.Context, userID shared.UserID, limit int) ([]AttemptDTO, error) {
	attempts, err := h.attempts.ListByUser(ctx, userID, limit, 0)
	if err != nil {
		return nil, err
	}

	dtos := make([]AttemptDTO, len(attempts))
	for i, a := range attempts {
		dtos[i] = AttemptDTO{
			AttemptID:       a.ID.String(),
			ExamType:        a.ExamType.String(),
			Mode:            string(a.Mode),
			TotalQuestions:  a.TotalQuestions,
			CorrectAnswers:  a.CorrectAnswers,
			ScorePercentage: a.ScorePercentage,
			XPEarned:        a.XPEarned,
			CreatedAt:       a.CreatedAt,
		}
	}
	return dtos, nil
}
