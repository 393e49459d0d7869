// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"errors"
	"time"

	"github.com/certlab/cert-prep-hub/internal/domain/leaderboard"
	"github.com/certlab/cert-prep-hub/internal/domain/quiz"
	"github.com/certlab/cert-prep-hub/internal/domain/shared"
	"github.com/certlab/cert-prep-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Получает страницу рейтинга по выбранной метрике и окну, плюс строку
// запрашивающего пользователя, даже если она вне страницы.
// Кеш - оптимизация: промах или ошибка кеша уводят запрос в хранилище.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery содержит параметры запроса рейтинга.
type GetLeaderboardQuery struct {
	// Metric - показатель ранжирования: xp, quiz_count, accuracy,
	// streak, exam_specific.
	Metric string

	// Period - окно: all_time (по умолчанию), monthly, weekly.
	// Для streak игнорируется: серия - текущее состояние, не сумма.
	Period string

	// ExamType - фильтр по экзамену (обязателен для exam_specific).
	ExamType string

	// MinAttempts - порог попыток для accuracy (1/5/10/20, по умолчанию 10).
	MinAttempts int

	// Limit - размер страницы (по умолчанию 25, максимум 100).
	Limit int

	// Offset - смещение для пагинации.
	Offset int

	// RequesterID - пользователь, чей собственный ранг нужно вернуть
	// рядом со страницей (пустая строка = не нужен).
	RequesterID string
}

// toDomain собирает доменный запрос с каноническими значениями.
func (q *GetLeaderboardQuery) toDomain() (leaderboard.Query, error) {
	domainQuery := leaderboard.Query{
		Metric:      leaderboard.Metric(q.Metric),
		Period:      leaderboard.Period(q.Period),
		ExamType:    quiz.ExamType(q.ExamType),
		MinAttempts: leaderboard.MinAttempts(q.MinAttempts),
		Limit:       q.Limit,
		Offset:      q.Offset,
		RequesterID: shared.UserID(q.RequesterID),
	}.Normalize()

	if err := domainQuery.Validate(); err != nil {
		return leaderboard.Query{}, err
	}
	return domainQuery, nil
}

// LeaderboardEntryDTO - DTO одной строки рейтинга.
type LeaderboardEntryDTO struct {
	// Rank - позиция (начиная с 1, без разделяемых рангов).
	Rank int `json:"rank"`

	// UserID - идентификатор пользователя.
	UserID string `json:"user_id"`

	// Score - значение метрики. Accuracy округлена до целого процента
	// только здесь, на границе представления.
	Score int `json:"score"`

	// Attempts - попыток в окне (заполняется для accuracy).
	Attempts int `json:"attempts,omitempty"`

	// Level - уровень пользователя.
	Level int `json:"level"`
}

// GetLeaderboardResult содержит страницу рейтинга.
type GetLeaderboardResult struct {
	// Entries - записи страницы.
	Entries []LeaderboardEntryDTO `json:"entries"`

	// Requester - строка запрашивающего пользователя (nil, если он
	// не входит в множество или RequesterID не задан).
	Requester *LeaderboardEntryDTO `json:"requester,omitempty"`

	// TotalCount - размер полного множества.
	TotalCount int `json:"total_count"`

	// Metric, Period - канонические параметры после нормализации.
	Metric string `json:"metric"`
	Period string `json:"period"`

	// ExamType - фильтр по экзамену (пустой = без фильтра).
	ExamType string `json:"exam_type,omitempty"`

	// HasMore - есть ли записи после текущей страницы.
	HasMore bool `json:"has_more"`

	// Page - текущая страница (1-based).
	Page int `json:"page"`

	// PageSize - размер страницы.
	PageSize int `json:"page_size"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`

	// FromCache - страница пришла из кеша (для диагностики).
	FromCache bool `json:"-"`
}

// GetLeaderboardHandlerConfig - настройки кеширования страниц.
type GetLeaderboardHandlerConfig struct {
	// PageTTL - время жизни закешированной страницы.
	PageTTL time.Duration

	// RankTTL - время жизни закешированного ранга пользователя.
	RankTTL time.Duration
}

// DefaultGetLeaderboardHandlerConfig возвращает настройки по умолчанию.
// Минутная свежесть - осознанный компромисс для тяжёлых агрегаций.
func DefaultGetLeaderboardHandlerConfig() GetLeaderboardHandlerConfig {
	return GetLeaderboardHandlerConfig{
		PageTTL: 60 * time.Second,
		RankTTL: 60 * time.Second,
	}
}

// GetLeaderboardHandler обрабатывает запросы рейтинга.
type GetLeaderboardHandler struct {
	repo   leaderboard.Repository
	cache  leaderboard.Cache
	config GetLeaderboardHandlerConfig
	log    *logger.Logger
}

// NewGetLeaderboardHandler создаёт новый обработчик запроса рейтинга.
func NewGetLeaderboardHandler(
	repo leaderboard.Repository,
	cache leaderboard.Cache,
	config GetLeaderboardHandlerConfig,
	log *logger.Logger,
) *GetLeaderboardHandler {
	if config.PageTTL == 0 {
		config = DefaultGetLeaderboardHandlerConfig()
	}
	return &GetLeaderboardHandler{
		repo:   repo,
		cache:  cache,
		config: config,
		log:    log.With(logger.Component("get_leaderboard")),
	}
}

// Handle выполняет запрос рейтинга.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, query GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	domainQuery, err := query.toDomain()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	windowStart := domainQuery.Period.WindowStart(now)

	entries, total, fromCache, err := h.loadPage(ctx, domainQuery, windowStart)
	if err != nil {
		return nil, err
	}

	requester, err := h.loadRequesterRank(ctx, domainQuery, windowStart, entries)
	if err != nil {
		// Ранг запрашивающего - дополнение к странице, не причина
		// отказать во всём ответе.
		h.log.Warn("requester rank lookup failed",
			logger.Metric(string(domainQuery.Metric)),
			logger.Err(err),
		)
		requester = nil
	}

	return h.buildResult(domainQuery, entries, total, requester, fromCache, now), nil
}

// loadPage возвращает страницу из кеша либо из хранилища.
func (h *GetLeaderboardHandler) loadPage(
	ctx context.Context,
	q leaderboard.Query,
	windowStart time.Time,
) ([]*leaderboard.Entry, int, bool, error) {
	key := q.CacheKey()

	if h.cache != nil {
		entries, total, err := h.cache.GetPage(ctx, key)
		if err == nil {
			return entries, total, true, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			h.log.Warn("leaderboard cache read failed",
				logger.Metric(string(q.Metric)),
				logger.Err(err),
			)
		}
	}

	entries, err := h.repo.TopByMetric(ctx, q, windowStart)
	if err != nil {
		return nil, 0, false, shared.WrapError("query", "GetLeaderboard", shared.ErrInternal,
			"failed to build leaderboard", err)
	}

	total, err := h.repo.TotalCount(ctx, q, windowStart)
	if err != nil {
		return nil, 0, false, shared.WrapError("query", "GetLeaderboard", shared.ErrInternal,
			"failed to count leaderboard", err)
	}

	if h.cache != nil {
		if err := h.cache.SetPage(ctx, key, entries, total, h.config.PageTTL); err != nil {
			h.log.Warn("leaderboard cache write failed",
				logger.Metric(string(q.Metric)),
				logger.Err(err),
			)
		}
	}

	return entries, total, false, nil
}

// loadRequesterRank находит строку запрашивающего: сначала на текущей
// странице, затем в кеше рангов, затем в хранилище.
func (h *GetLeaderboardHandler) loadRequesterRank(
	ctx context.Context,
	q leaderboard.Query,
	windowStart time.Time,
	page []*leaderboard.Entry,
) (*leaderboard.Entry, error) {
	if q.RequesterID == "" {
		return nil, nil
	}

	if entry := leaderboard.FindEntry(page, q.RequesterID); entry != nil {
		return entry, nil
	}

	key := q.CacheKey()
	if h.cache != nil {
		if entry, err := h.cache.GetRank(ctx, key, q.RequesterID); err == nil && entry != nil {
			return entry, nil
		}
	}

	entry, err := h.repo.RankFor(ctx, q, windowStart, q.RequesterID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		// Пользователь без попыток в окне не входит в множество.
		return nil, nil
	}

	if h.cache != nil {
		if err := h.cache.SetRank(ctx, key, entry, h.config.RankTTL); err != nil {
			h.log.Warn("rank cache write failed", logger.Err(err))
		}
	}

	return entry, nil
}

// buildResult формирует итоговый результат.
func (h *GetLeaderboardHandler) buildResult(
	q leaderboard.Query,
	entries []*leaderboard.Entry,
	total int,
	requester *leaderboard.Entry,
	fromCache bool,
	now time.Time,
) *GetLeaderboardResult {
	dtos := make([]LeaderboardEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e, q.Metric)
	}

	result := &GetLeaderboardResult{
		Entries:     dtos,
		TotalCount:  total,
		Metric:      string(q.Metric),
		Period:      string(q.Period),
		ExamType:    string(q.ExamType),
		HasMore:     q.Offset+len(entries) < total,
		Page:        q.Offset/q.Limit + 1,
		PageSize:    q.Limit,
		GeneratedAt: now,
		FromCache:   fromCache,
	}

	if requester != nil {
		dto := toEntryDTO(requester, q.Metric)
		result.Requester = &dto
	}

	return result
}

// toEntryDTO конвертирует доменную запись в DTO.
func toEntryDTO(e *leaderboard.Entry, metric leaderboard.Metric) LeaderboardEntryDTO {
	return LeaderboardEntryDTO{
		Rank:     int(e.Rank),
		UserID:   e.UserID.String(),
		Score:    e.DisplayScore(metric),
		Attempts: e.Attempts,
		Level:    e.Level,
	}
}
