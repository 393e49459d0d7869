package profile

import (
	"math"
	"time"

	"github.com/certlab/cert-prep-hub/internal/domain/shared"
	"github.com/certlab/cert-prep-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// XP CALCULATION
// ══════════════════════════════════════════════════════════════════════════════

// BaseXPPerCorrectAnswer - базовый XP за каждый правильный ответ.
const BaseXPPerCorrectAnswer = 10

// AccuracyMultiplier возвращает бонусный множитель за точность.
// accuracy задаётся в процентах (0-100).
func AccuracyMultiplier(accuracy float64) float64 {
	switch {
	case accuracy >= 90:
		return 1.5
	case accuracy >= 80:
		return 1.25
	case accuracy >= 70:
		return 1.10
	default:
		return 1.0
	}
}

// CalculateXP вычисляет XP за одну попытку.
// base = correct * 10; xp = floor(base * multiplier).
// Режим study всегда даёт 0 XP - учёба не соревнование.
func CalculateXP(correctAnswers, totalQuestions int, earnsXP bool) XP {
	if !earnsXP || totalQuestions <= 0 || correctAnswers <= 0 {
		return 0
	}

	accuracy := 100.0 * float64(correctAnswers) / float64(totalQuestions)
	base := float64(correctAnswers * BaseXPPerCorrectAnswer)
	return XP(math.Floor(base * AccuracyMultiplier(accuracy)))
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBMISSION APPLICATION
// Атомарное обновление всех счётчиков профиля за одну попытку.
// ══════════════════════════════════════════════════════════════════════════════

// SubmissionStats - входные данные одной завершённой попытки.
type SubmissionStats struct {
	// CorrectAnswers - количество правильных ответов (пересчитано на сервере).
	CorrectAnswers int

	// TotalQuestions - общее количество вопросов. Должно быть > 0.
	TotalQuestions int

	// EarnsXP - начисляется ли XP (false для режима study).
	EarnsXP bool

	// SubmittedAt - время завершения попытки.
	SubmittedAt time.Time
}

// Validate проверяет корректность входных данных до любых мутаций.
func (s SubmissionStats) Validate() error {
	if s.TotalQuestions <= 0 {
		return shared.ErrEmptySubmission
	}
	if s.CorrectAnswers < 0 || s.CorrectAnswers > s.TotalQuestions {
		return shared.NewDomainError("profile", "SubmissionStats.Validate", shared.ErrValidation,
			"correct_answers must be within [0, total_questions]")
	}
	return nil
}

// StreakOutcome описывает, что произошло с серией при обновлении.
type StreakOutcome string

const (
	// StreakStarted - первая активность или серия началась заново после разрыва.
	StreakStarted StreakOutcome = "started"
	// StreakExtended - серия продолжена (активность на следующий день).
	StreakExtended StreakOutcome = "extended"
	// StreakUnchanged - повторная активность в тот же день.
	StreakUnchanged StreakOutcome = "unchanged"
	// StreakReset - разрыв >= 2 дней, серия сброшена до 1.
	StreakReset StreakOutcome = "reset"
)

// ProgressionResult - итог применения попытки к профилю.
type ProgressionResult struct {
	// XPEarned - начислено XP за попытку (без учёта наград за достижения).
	XPEarned XP

	// OldLevel, NewLevel - уровень до и после начисления.
	OldLevel Level
	NewLevel Level

	// LevelUp - true, если уровень вырос.
	LevelUp bool

	// StreakOutcome - что произошло с серией.
	StreakOutcome StreakOutcome

	// StreakCurrent, StreakLongest - серия после обновления.
	StreakCurrent int
	StreakLongest int

	// PreviousStreak - серия до сброса (заполняется при StreakReset).
	PreviousStreak int

	// DaysMissed - пропущено дней (заполняется при StreakReset).
	DaysMissed int
}

// ApplySubmission применяет одну попытку к профилю: начисляет XP,
// пересчитывает уровень, обновляет серию и счётчики.
// Все изменения - одна атомарная запись; персистентность обеспечивает
// вызывающая сторона через транзакционный read-modify-write.
func (p *Profile) ApplySubmission(stats SubmissionStats) (*ProgressionResult, error) {
	if err := stats.Validate(); err != nil {
		return nil, err
	}

	result := &ProgressionResult{
		OldLevel: p.Level,
	}

	// Серия обновляется один раз на попытку по календарной дате сервера.
	// Режим study тоже продвигает серию: серия - про регулярность занятий,
	// XP - про соревнование.
	p.applyStreak(stats.SubmittedAt, result)

	result.XPEarned = CalculateXP(stats.CorrectAnswers, stats.TotalQuestions, stats.EarnsXP)
	if err := p.AddXP(result.XPEarned); err != nil {
		return nil, err
	}

	p.TotalExamsTaken++
	p.TotalQuestionsAnswered += stats.TotalQuestions
	p.UpdatedAt = time.Now().UTC()

	result.NewLevel = p.Level
	result.LevelUp = result.NewLevel > result.OldLevel
	result.StreakCurrent = p.StreakCurrent
	result.StreakLongest = p.StreakLongest

	return result, nil
}

// applyStreak обновляет серию дней активности.
//   - активности не было -> серия = 1
//   - тот же день -> без изменений
//   - вчера -> серия + 1
//   - разрыв >= 2 дней -> серия = 1
//
// Всегда: streak_longest = max(streak_longest, streak_current).
func (p *Profile) applyStreak(submittedAt time.Time, result *ProgressionResult) {
	today := timeutil.DateOnly(submittedAt)

	if !p.HasActivity() {
		p.StreakCurrent = 1
		result.StreakOutcome = StreakStarted
	} else {
		daysDiff := timeutil.DaysBetween(p.LastActivityDate, today)

		switch daysDiff {
		case 0:
			result.StreakOutcome = StreakUnchanged
		case 1:
			p.StreakCurrent++
			result.StreakOutcome = StreakExtended
		default:
			result.PreviousStreak = p.StreakCurrent
			result.DaysMissed = daysDiff - 1
			p.StreakCurrent = 1
			result.StreakOutcome = StreakReset
		}
	}

	if p.StreakCurrent > p.StreakLongest {
		p.StreakLongest = p.StreakCurrent
	}

	p.LastActivityDate = today
}

// GrantReward начисляет XP-награду за достижение.
// Вызывается строго один раз за проход оценки достижений; награда может
// поднять уровень, но повторную оценку достижений не запускает.
func (p *Profile) GrantReward(reward XP) (levelUp bool, err error) {
	oldLevel := p.Level
	if err := p.AddXP(reward); err != nil {
		return false, err
	}
	return p.Level > oldLevel, nil
}
