// Package http exposes the progression engine's REST API.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/certlab/cert-prep-hub/internal/application/command"
	"github.com/certlab/cert-prep-hub/internal/application/query"
	"github.com/certlab/cert-prep-hub/internal/domain/achievement"
	"github.com/certlab/cert-prep-hub/internal/domain/quiz"
	"github.com/certlab/cert-prep-hub/internal/domain/shared"
	"github.com/certlab/cert-prep-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "Cert Prep Hub API",
		"version":     "v1",
		"description": "Progression and ranking engine for certification exam practice",
		"endpoints": map[string]string{
			"health":      "/health",
			"sessions":    "/api/v1/sessions",
			"attempts":    "/api/v1/attempts",
			"progress":    "/api/v1/progress",
			"leaderboard": "/api/v1/leaderboard",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type startSessionRequest struct {
	ExamType string `json:"exam_type"`
	Mode     string `json:"mode"`
	Count    int    `json:"count"`
}

type sessionResponse struct {
	SessionID      string       `json:"session_id"`
	ExamType       string       `json:"exam_type"`
	Mode           string       `json:"mode"`
	TotalQuestions int          `json:"total_questions"`
	StartedAt      time.Time    `json:"started_at"`
	FirstQuestion  *questionDTO `json:"first_question"`
}

// handleStartSession handles POST /api/v1/sessions
func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var req startSessionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.StartSessionHandler.Handle(r.Context(), command.StartSessionCommand{
		UserID:   userID,
		ExamType: req.ExamType,
		Mode:     req.Mode,
		Count:    req.Count,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, sessionResponse{
		SessionID:      result.Session.ID.String(),
		ExamType:       result.Session.ExamType.String(),
		Mode:           string(result.Session.Mode),
		TotalQuestions: result.Session.Length(),
		StartedAt:      result.Session.StartedAt,
		FirstQuestion:  toQuestionDTO(result.FirstQuestion),
	})
}

// handleGetActiveSession handles GET /api/v1/sessions/active
func (s *Server) handleGetActiveSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	result, err := s.deps.GetActiveSessionHandler.Handle(r.Context(), query.GetActiveSessionQuery{
		UserID: userID,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	if !result.Found {
		writeJSONError(w, http.StatusNotFound, "not_found", "No active session")
		return
	}

	writeJSON(w, http.StatusOK, result.Session)
}

type submitAnswerRequest struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

type submitAnswerResponse struct {
	IsCorrect     bool         `json:"is_correct"`
	CorrectAnswer string       `json:"correct_answer"`
	Explanation   string       `json:"explanation,omitempty"`
	NextQuestion  *questionDTO `json:"next_question,omitempty"`
	Completion    *outcomeDTO  `json:"completion,omitempty"`
}

// handleSubmitAnswer handles POST /api/v1/sessions/{id}/answers
func (s *Server) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	sessionID, ok := s.requireSessionID(w, r)
	if !ok {
		return
	}

	var req submitAnswerRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.SubmitAnswerHandler.Handle(r.Context(), command.SubmitAnswerCommand{
		SessionID:  sessionID,
		UserID:     userID,
		QuestionID: req.QuestionID,
		Answer:     req.Answer,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, submitAnswerResponse{
		IsCorrect:     result.IsCorrect,
		CorrectAnswer: string(result.CorrectAnswer),
		Explanation:   result.Explanation,
		NextQuestion:  toQuestionDTO(result.NextQuestion),
		Completion:    toOutcomeDTO(result.Completion),
	})
}

// handleAbandonSession handles DELETE /api/v1/sessions/{id}
func (s *Server) handleAbandonSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	sessionID, ok := s.requireSessionID(w, r)
	if !ok {
		return
	}

	result, err := s.deps.AbandonSessionHandler.Handle(r.Context(), command.AbandonSessionCommand{
		SessionID: sessionID,
		UserID:    userID,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"abandoned": result.Abandoned})
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTEMPT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type submitAttemptRequest struct {
	ExamType    string               `json:"exam_type"`
	Mode        string               `json:"mode"`
	Answers     []attemptAnswerInput `json:"answers"`
	TimeTakenMs int64                `json:"time_taken_ms"`
}

type attemptAnswerInput struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

// handleSubmitAttempt handles POST /api/v1/attempts
func (s *Server) handleSubmitAttempt(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var req submitAttemptRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	answers := make([]command.AttemptAnswer, len(req.Answers))
	for i, a := range req.Answers {
		answers[i] = command.AttemptAnswer{QuestionID: a.QuestionID, Answer: a.Answer}
	}

	result, err := s.deps.SubmitAttemptHandler.Handle(r.Context(), command.SubmitAttemptCommand{
		UserID:         userID,
		ExamType:       req.ExamType,
		Mode:           req.Mode,
		Answers:        answers,
		TimeTaken:      time.Duration(req.TimeTakenMs) * time.Millisecond,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.Outcome.Replayed {
		// A replayed retry returns the original record.
		status = http.StatusOK
	}

	writeJSON(w, status, toOutcomeDTO(result.Outcome))
}

// ══════════════════════════════════════════════════════════════════════════════
// READ-SIDE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetProgress handles GET /api/v1/progress
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	result, err := s.deps.GetProgressHandler.Handle(r.Context(), query.GetProgressQuery{
		UserID:         userID,
		RecentAttempts: getQueryParamInt(r, "recent", 10),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetLeaderboard handles GET /api/v1/leaderboard
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := query.GetLeaderboardQuery{
		Metric:      getQueryParam(r, "metric", "xp"),
		Period:      getQueryParam(r, "period", "all_time"),
		ExamType:    getQueryParam(r, "exam_type", ""),
		MinAttempts: getQueryParamInt(r, "min_attempts", 0),
		Limit:       getQueryParamInt(r, "limit", 25),
		Offset:      getQueryParamInt(r, "offset", 0),
		RequesterID: r.Header.Get(headerUserID),
	}

	result, err := s.deps.GetLeaderboardHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	meta := &ResponseMeta{
		TotalCount: result.TotalCount,
		Page:       result.Page,
		PageSize:   result.PageSize,
		HasMore:    result.HasMore,
	}

	writeJSONWithMeta(w, r, http.StatusOK, result, meta)
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST HELPERS & ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// requireUser extracts the caller's identity from the X-User-ID header.
// requireSessionID validates the {id} path parameter. Session ids are
// server-issued UUIDs, so malformed ones are rejected before any lookup.
func (s *Server) requireSessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if !shared.IsUUID(id) {
		writeJSONError(w, http.StatusBadRequest, "validation_error", "session id must be a UUID")
		return "", false
	}
	return id, true
}

func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get(headerUserID)
	if userID == "" {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", "X-User-ID header is required")
		return "", false
	}
	return userID, true
}

// decodeBody parses the JSON request body into dest.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Request body must be valid JSON")
		return false
	}
	return true
}

// writeDomainError maps domain errors onto HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case shared.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())

	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())

	case shared.IsConflict(err),
		errors.Is(err, shared.ErrConcurrentModification),
		errors.Is(err, shared.ErrInvalidState):
		writeJSONError(w, http.StatusConflict, "conflict", err.Error())

	default:
		s.logger.Error("request failed",
			logger.Err(err),
			logger.String("path", r.URL.Path),
			logger.String("request_id", getRequestID(r.Context())),
		)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE DTOs
// ══════════════════════════════════════════════════════════════════════════════

// questionDTO is a question as shown to the caller. Correct answers and
// per-option explanations never leave the server through this shape.
type questionDTO struct {
	ID      string              `json:"id"`
	Domain  string              `json:"domain,omitempty"`
	Text    string              `json:"text"`
	Options []questionOptionDTO `json:"options"`
}

type questionOptionDTO struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

func toQuestionDTO(q *quiz.Question) *questionDTO {
	if q == nil {
		return nil
	}

	options := make([]questionOptionDTO, len(q.Options))
	for i, opt := range q.Options {
		options[i] = questionOptionDTO{Label: string(opt.Label), Text: opt.Text}
	}

	return &questionDTO{
		ID:      q.ID.String(),
		Domain:  q.Domain,
		Text:    q.Text,
		Options: options,
	}
}

// outcomeDTO is the progression summary returned after a submission.
type outcomeDTO struct {
	AttemptID       string  `json:"attempt_id"`
	TotalQuestions  int     `json:"total_questions"`
	CorrectAnswers  int     `json:"correct_answers"`
	ScorePercentage float64 `json:"score_percentage"`

	XPEarned int  `json:"xp_earned"`
	RewardXP int  `json:"reward_xp"`
	LevelUp  bool `json:"level_up"`
	OldLevel int  `json:"old_level"`
	NewLevel int  `json:"new_level"`

	StreakCurrent int `json:"streak_current"`
	StreakLongest int `json:"streak_longest"`

	Unlocked []unlockedDTO `json:"unlocked,omitempty"`
	Replayed bool          `json:"replayed"`
}

type unlockedDTO struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	XPReward    int    `json:"xp_reward"`
}

func toOutcomeDTO(outcome *command.SubmissionOutcome) *outcomeDTO {
	if outcome == nil {
		return nil
	}

	dto := &outcomeDTO{
		AttemptID:       outcome.Attempt.ID.String(),
		TotalQuestions:  outcome.Attempt.TotalQuestions,
		CorrectAnswers:  outcome.Attempt.CorrectAnswers,
		ScorePercentage: outcome.Attempt.ScorePercentage,
		XPEarned:        outcome.XPEarned,
		RewardXP:        outcome.RewardXP,
		LevelUp:         outcome.LevelUp,
		OldLevel:        outcome.OldLevel,
		NewLevel:        outcome.NewLevel,
		StreakCurrent:   outcome.StreakCurrent,
		StreakLongest:   outcome.StreakLongest,
		Replayed:        outcome.Replayed,
		Unlocked:        toUnlockedDTOs(outcome.Unlocked),
	}

	return dto
}

func toUnlockedDTOs(unlocked []*achievement.Achievement) []unlockedDTO {
	if len(unlocked) == 0 {
		return nil
	}

	dtos := make([]unlockedDTO, len(unlocked))
	for i, a := range unlocked {
		dtos[i] = unlockedDTO{
			Code:        a.Code,
			Name:        a.Name,
			Description: a.Description,
			XPReward:    a.XPReward,
		}
	}
	return dtos
}
