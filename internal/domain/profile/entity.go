// Package profile содержит доменную модель профиля прогрессии пользователя.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package profile

import (
	"fmt"
	"math"
	"time"

	"github.com/certlab/cert-prep-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// XP представляет очки опыта пользователя.
type XP int

// IsValid проверяет, что XP неотрицательный.
func (x XP) IsValid() bool {
	return x >= 0
}

// Add складывает XP.
func (x XP) Add(delta XP) XP {
	return x + delta
}

// Level представляет уровень пользователя, вычисляемый из XP.
type Level int

// CalculateLevel вычисляет уровень на основе накопленного XP.
// Формула: level = floor(sqrt(total_xp / 100)) + 1.
// Уровень - чистая функция от XP и никогда не инкрементируется отдельно,
// поэтому при коррекции XP уровень восстанавливается сам.
func CalculateLevel(xp XP) Level {
	if xp < 0 {
		return 1
	}
	return Level(math.Floor(math.Sqrt(float64(xp)/100.0)) + 1)
}

// XPForLevel возвращает минимальный XP, необходимый для достижения уровня.
func XPForLevel(level Level) XP {
	if level <= 1 {
		return 0
	}
	n := int(level) - 1
	return XP(n * n * 100)
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: PROFILE
// ══════════════════════════════════════════════════════════════════════════════

// Profile - агрегат прогрессии пользователя. Ровно одна строка на пользователя;
// мутируется только калькулятором прогрессии в рамках транзакции.
type Profile struct {
	// UserID - идентификатор пользователя (приходит из слоя аутентификации).
	UserID shared.UserID

	// XP - накопленные очки опыта. Монотонно неубывающие.
	XP XP

	// Level - текущий уровень. Всегда пересчитывается из XP.
	Level Level

	// StreakCurrent - текущая серия дней активности.
	StreakCurrent int

	// StreakLongest - лучшая серия дней активности. Инвариант: >= StreakCurrent.
	StreakLongest int

	// LastActivityDate - календарная дата последней активности (без времени).
	// Нулевое значение - активности ещё не было.
	LastActivityDate time.Time

	// TotalExamsTaken - общее количество завершённых попыток.
	TotalExamsTaken int

	// TotalQuestionsAnswered - общее количество отвеченных вопросов.
	TotalQuestionsAnswered int

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

// NewProfile создаёт пустой профиль для нового пользователя.
func NewProfile(userID shared.UserID) (*Profile, error) {
	if !userID.IsValid() {
		return nil, shared.NewDomainError("profile", "NewProfile", shared.ErrValidation, "user id is required")
	}

	now := time.Now().UTC()

	return &Profile{
		UserID:                 userID,
		XP:                     0,
		Level:                  CalculateLevel(0),
		StreakCurrent:          0,
		StreakLongest:          0,
		LastActivityDate:       time.Time{},
		TotalExamsTaken:        0,
		TotalQuestionsAnswered: 0,
		CreatedAt:              now,
		UpdatedAt:              now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// AddXP увеличивает XP и пересчитывает уровень.
// Отрицательная дельта запрещена: XP монотонно неубывающий.
func (p *Profile) AddXP(delta XP) error {
	if delta < 0 {
		return shared.ErrXPDecrease
	}

	p.XP = p.XP.Add(delta)
	p.Level = CalculateLevel(p.XP)
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// HasActivity возвращает true, если у пользователя уже была активность.
func (p *Profile) HasActivity() bool {
	return !p.LastActivityDate.IsZero()
}

// XPToNextLevel возвращает, сколько XP осталось до следующего уровня.
func (p *Profile) XPToNextLevel() XP {
	next := XPForLevel(p.Level + 1)
	if next <= p.XP {
		return 0
	}
	return next - p.XP
}

// Validate проверяет инварианты агрегата.
func (p *Profile) Validate() error {
	if !p.UserID.IsValid() {
		return shared.NewDomainError("profile", "Validate", shared.ErrValidation, "user id is required")
	}
	if !p.XP.IsValid() {
		return shared.NewDomainError("profile", "Validate", shared.ErrValidation, "xp must be non-negative")
	}
	if p.StreakLongest < p.StreakCurrent {
		return shared.NewDomainError("profile", "Validate", shared.ErrInvalidState, "streak_longest must be >= streak_current")
	}
	if p.Level != CalculateLevel(p.XP) {
		return shared.NewDomainError("profile", "Validate", shared.ErrInvalidState, "level must be derived from xp")
	}
	return nil
}

// String возвращает строковое представление профиля для логирования.
func (p *Profile) String() string {
	return fmt.Sprintf(
		"Profile{UserID: %s, XP: %d, Level: %d, Streak: %d/%d, Exams: %d}",
		p.UserID, p.XP, p.Level, p.StreakCurrent, p.StreakLongest, p.TotalExamsTaken,
	)
}

// Clone создаёт копию профиля.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}
