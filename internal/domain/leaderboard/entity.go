// Package leaderboard содержит доменную модель рейтингов.
// Лидерборд - stateless read-only проекция поверх попыток и профилей:
// ничего не хранит, считается по запросу. Рейтинги носят справочный
// характер и не являются источником истины для XP.
package leaderboard

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/certlab/cert-prep-hub/internal/domain/quiz"
	"github.com/certlab/cert-prep-hub/internal/domain/shared"
	"github.com/certlab/cert-prep-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Metric определяет, по какому показателю строится рейтинг.
type Metric string

const (
	// MetricXP - суммарный заработанный XP за период.
	MetricXP Metric = "xp"
	// MetricQuizCount - количество завершённых попыток за период.
	MetricQuizCount Metric = "quiz_count"
	// MetricAccuracy - средняя точность (score_percentage) за период.
	MetricAccuracy Metric = "accuracy"
	// MetricStreak - текущая серия дней. Период игнорируется.
	MetricStreak Metric = "streak"
	// MetricExamSpecific - количество попыток по конкретному экзамену.
	MetricExamSpecific Metric = "exam_specific"
)

// IsValid проверяет, что метрика известна.
func (m Metric) IsValid() bool {
	switch m {
	case MetricXP, MetricQuizCount, MetricAccuracy, MetricStreak, MetricExamSpecific:
		return true
	default:
		return false
	}
}

// RequiresExamType возвращает true, если метрике нужен фильтр по экзамену.
func (m Metric) RequiresExamType() bool {
	return m == MetricExamSpecific
}

// IgnoresPeriod возвращает true, если метрика не зависит от временного окна.
func (m Metric) IgnoresPeriod() bool {
	return m == MetricStreak
}

// Period определяет временное окно агрегации.
type Period string

const (
	// PeriodAllTime - за всё время.
	PeriodAllTime Period = "all_time"
	// PeriodMonthly - скользящее окно за последние 30 дней.
	PeriodMonthly Period = "monthly"
	// PeriodWeekly - скользящее окно за последние 7 дней.
	PeriodWeekly Period = "weekly"
)

// IsValid проверяет, что период известен.
func (p Period) IsValid() bool {
	switch p {
	case PeriodAllTime, PeriodMonthly, PeriodWeekly:
		return true
	default:
		return false
	}
}

// WindowStart возвращает нижнюю границу окна по времени now.
// Для all_time возвращает нулевое время (без фильтра).
func (p Period) WindowStart(now time.Time) time.Time {
	switch p {
	case PeriodMonthly:
		return timeutil.WindowStart(now, 30)
	case PeriodWeekly:
		return timeutil.WindowStart(now, 7)
	default:
		return time.Time{}
	}
}

// Rank представляет позицию пользователя в рейтинге. Начинается с 1.
type Rank int

// IsValid проверяет, что ранг положительный.
func (r Rank) IsValid() bool {
	return r > 0
}

// String возвращает строковое представление ранга.
func (r Rank) String() string {
	return fmt.Sprintf("#%d", r)
}

// MinAttempts - минимальное количество попыток для метрики accuracy,
// чтобы отсечь шум на малых выборках.
type MinAttempts int

// Допустимые значения порога.
const (
	MinAttemptsDefault MinAttempts = 10
)

// IsValid проверяет, что порог - одно из поддерживаемых значений.
func (m MinAttempts) IsValid() bool {
	switch m {
	case 1, 5, 10, 20:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// QUERY
// ══════════════════════════════════════════════════════════════════════════════

// Query - параметры одного запроса рейтинга.
type Query struct {
	// Metric - показатель ранжирования.
	Metric Metric

	// Period - временное окно. Для streak игнорируется.
	Period Period

	// ExamType - фильтр по экзамену (обязателен для exam_specific).
	ExamType quiz.ExamType

	// MinAttempts - порог попыток для accuracy (1/5/10/20).
	MinAttempts MinAttempts

	// Limit, Offset - пагинация страницы результатов.
	Limit  int
	Offset int

	// RequesterID - пользователь, чей собственный ранг нужно найти
	// в том же полностью упорядоченном множестве.
	RequesterID shared.UserID
}

// Пределы пагинации.
const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// Normalize приводит запрос к каноническому виду: значения по умолчанию,
// ограничение лимита.
func (q Query) Normalize() Query {
	if q.Period == "" {
		q.Period = PeriodAllTime
	}
	if q.MinAttempts == 0 {
		q.MinAttempts = MinAttemptsDefault
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

// Validate проверяет корректность запроса.
func (q Query) Validate() error {
	if !q.Metric.IsValid() {
		return shared.ErrUnknownMetric
	}
	if !q.Period.IsValid() {
		return shared.ErrUnknownPeriod
	}
	if q.Metric.RequiresExamType() && !q.ExamType.IsValid() {
		return shared.NewDomainError("leaderboard", "Validate", shared.ErrValidation,
			"exam_specific metric requires an exam type filter")
	}
	if q.Metric == MetricAccuracy && !q.MinAttempts.IsValid() {
		return shared.NewDomainError("leaderboard", "Validate", shared.ErrValidation,
			"min attempts must be one of 1, 5, 10, 20")
	}
	return nil
}

// CacheKey возвращает детерминированный ключ кеша для страницы запроса.
func (q Query) CacheKey() string {
	return fmt.Sprintf("%s:%s:%s:%d:%d:%d",
		q.Metric, q.Period, q.ExamType, q.MinAttempts, q.Limit, q.Offset)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD ENTRY
// ══════════════════════════════════════════════════════════════════════════════

// Entry представляет одну строку рейтинга. Не персистится - вычисляется
// по запросу из агрегатов попыток и профилей.
type Entry struct {
	// Rank - позиция в полностью упорядоченном множестве.
	Rank Rank

	// UserID - идентификатор пользователя.
	UserID shared.UserID

	// Score - значение метрики. Для accuracy хранится без округления;
	// округление до целого процента - на границе представления.
	Score float64

	// Attempts - количество попыток в окне (заполняется для accuracy).
	Attempts int

	// Level - текущий уровень пользователя (для отображения).
	Level int
}

// DisplayScore возвращает значение метрики для отображения.
// Accuracy округляется до ближайшего целого процента.
func (e *Entry) DisplayScore(metric Metric) int {
	if metric == MetricAccuracy {
		return int(math.Round(e.Score))
	}
	return int(e.Score)
}

// Clone создаёт копию записи.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	clone := *e
	return &clone
}

// ══════════════════════════════════════════════════════════════════════════════
// ORDERING
// Детерминированный полный порядок: score по убыванию, при равенстве -
// user id по возрастанию. Повторные запросы над неизменёнными данными
// всегда возвращают одинаковый порядок страниц.
// ══════════════════════════════════════════════════════════════════════════════

// SortEntries сортирует записи по документированному порядку.
func SortEntries(entries []*Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].UserID.Less(entries[j].UserID)
	})
}

// AssignRanks присваивает ранги 1..N по текущему порядку записей.
// Ранги строгие: равные значения различаются тай-брейком, поэтому
// shared rank не используется.
func AssignRanks(entries []*Entry) {
	for i, entry := range entries {
		entry.Rank = Rank(i + 1)
	}
}

// Rank находит ранг пользователя в полностью упорядоченном множестве,
// даже если его строка вне возвращаемой страницы. Возвращает nil, если
// пользователя в множестве нет.
func FindEntry(entries []*Entry, userID shared.UserID) *Entry {
	for _, entry := range entries {
		if entry.UserID == userID {
			return entry
		}
	}
	return nil
}

// Page возвращает срез записей [offset, offset+limit).
func Page(entries []*Entry, offset, limit int) []*Entry {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(entries) {
		return nil
	}
	end := offset + limit
	if end > len(entries) {
		end = len(entries)
	}
	result := make([]*Entry, end-offset)
	copy(result, entries[offset:end])
	return result
}
