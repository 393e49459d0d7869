package leaderboard

import (
	"context"
	"time"

	"github.com/certlab/cert-prep-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет read-only агрегации для построения рейтингов.
// Чтения не требуют блокировок и допускают read-committed staleness.
type Repository interface {
	// TopByMetric возвращает страницу полностью упорядоченного множества
	// для заданной метрики и окна. Записи приходят с присвоенными рангами.
	TopByMetric(ctx context.Context, q Query, windowStart time.Time) ([]*Entry, error)

	// RankFor находит строку запрашивающего пользователя в том же
	// упорядоченном множестве, даже если она вне страницы.
	// Возвращает nil без ошибки, если пользователя в множестве нет.
	RankFor(ctx context.Context, q Query, windowStart time.Time, userID shared.UserID) (*Entry, error)

	// TotalCount возвращает размер полного множества (для пагинации).
	TotalCount(ctx context.Context, q Query, windowStart time.Time) (int, error)
}

// Cache определяет кеш страниц рейтинга (обычно Redis).
// Кеш - оптимизация чтения: промах или ошибка кеша не фатальны,
// запрос просто уходит в основное хранилище.
type Cache interface {
	// GetPage возвращает закешированную страницу вместе с её размером
	// полного множества. Возвращает shared.ErrNotFound при промахе.
	GetPage(ctx context.Context, key string) ([]*Entry, int, error)

	// SetPage кеширует страницу с заданным TTL.
	SetPage(ctx context.Context, key string, entries []*Entry, total int, ttl time.Duration) error

	// GetRank возвращает закешированный ранг пользователя для запроса.
	GetRank(ctx context.Context, key string, userID shared.UserID) (*Entry, error)

	// SetRank кеширует ранг пользователя.
	SetRank(ctx context.Context, key string, entry *Entry, ttl time.Duration) error

	// Invalidate удаляет все страницы рейтинга (например, после пересчёта).
	Invalidate(ctx context.Context) error
}
