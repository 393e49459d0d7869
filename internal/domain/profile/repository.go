package profile

import (
	"context"
	"time"

	"github.com/certlab/cert-prep-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции для работы с профилями прогрессии.
type Repository interface {
	// Create создаёт новый профиль.
	// Возвращает shared.ErrAlreadyExists, если профиль уже существует.
	Create(ctx context.Context, profile *Profile) error

	// Get возвращает профиль пользователя.
	// Возвращает shared.ErrProfileNotFound, если профиль не найден.
	Get(ctx context.Context, userID shared.UserID) (*Profile, error)

	// GetForUpdate возвращает профиль с блокировкой строки (SELECT ... FOR UPDATE).
	// Используется калькулятором прогрессии внутри транзакции, чтобы
	// конкурентные попытки одного пользователя не теряли обновления.
	// Возвращает shared.ErrProfileNotFound, если профиль не найден.
	GetForUpdate(ctx context.Context, userID shared.UserID) (*Profile, error)

	// GetOrCreateForUpdate возвращает профиль с блокировкой строки,
	// создавая пустой профиль при первом обращении пользователя.
	GetOrCreateForUpdate(ctx context.Context, userID shared.UserID) (*Profile, error)

	// Save сохраняет все счётчики профиля одной записью.
	// Возвращает shared.ErrProfileNotFound, если профиль не найден.
	Save(ctx context.Context, profile *Profile) error

	// AppendXPHistory добавляет запись в журнал изменений XP.
	AppendXPHistory(ctx context.Context, entry XPHistoryEntry) error

	// GetXPHistory возвращает журнал изменений XP пользователя.
	GetXPHistory(ctx context.Context, userID shared.UserID, from, to time.Time) ([]XPHistoryEntry, error)
}

// XPHistoryEntry - одна запись в журнале изменений XP.
// Журнал append-only: записи никогда не обновляются и не удаляются.
type XPHistoryEntry struct {
	// UserID - идентификатор пользователя.
	UserID shared.UserID

	// OldXP - XP до изменения.
	OldXP XP

	// NewXP - XP после изменения.
	NewXP XP

	// Delta - изменение XP.
	Delta XP

	// Reason - причина изменения (attempt, achievement_reward).
	Reason string

	// ReferenceID - ID попытки или достижения (если применимо).
	ReferenceID string

	// CreatedAt - время изменения.
	CreatedAt time.Time
}

// Причины изменения XP в журнале.
const (
	XPReasonAttempt           = "attempt"
	XPReasonAchievementReward = "achievement_reward"
)
