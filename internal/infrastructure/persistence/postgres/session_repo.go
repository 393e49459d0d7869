package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/certlab/cert-prep-hub/internal/domain/quiz"
	"github.com/certlab/cert-prep-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// SessionRepository implements quiz.SessionRepository for PostgreSQL.
type SessionRepository struct {
	conn *Connection
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(conn *Connection) *SessionRepository {
	return &SessionRepository{conn: conn}
}

// answerRecord is the JSONB shape of one recorded answer.
type answerRecord struct {
	QuestionID string    `json:"question_id"`
	Answer     string    `json:"answer"`
	IsCorrect  bool      `json:"is_correct"`
	AnsweredAt time.Time `json:"answered_at"`
}

const sessionColumns = `
	id, user_id, exam_type, mode, question_ids, current_index, answers,
	correct_count, status, started_at, updated_at
`

// Create inserts a new in-progress session. A hit on the partial unique
// index means the user already has an active session.
func (r *SessionRepository) Create(ctx context.Context, session *quiz.Session) error {
	questionIDsJSON, answersJSON, err := marshalSessionState(session)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO sessions (
			id, user_id, exam_type, mode, question_ids, current_index, answers,
			correct_count, status, started_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.conn.Exec(ctx, query,
		session.ID.String(),
		session.UserID.String(),
		session.ExamType.String(),
		string(session.Mode),
		questionIDsJSON,
		session.CurrentIndex,
		answersJSON,
		session.CorrectCount,
		string(session.Status),
		session.StartedAt,
		session.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrActiveSessionConflict
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetByID returns a session by id.
func (r *SessionRepository) GetByID(ctx context.Context, id quiz.SessionID) (*quiz.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	return r.scanSession(r.conn.QueryRow(ctx, query, id.String()))
}

// GetActiveByUser returns the user's non-terminal session.
func (r *SessionRepository) GetActiveByUser(ctx context.Context, userID shared.UserID) (*quiz.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE user_id = $1 AND status = 'in_progress'`

	return r.scanSession(r.conn.QueryRow(ctx, query, userID.String()))
}

// Update persists the session guarded by the expected pre-answer cursor.
// A concurrent request that already advanced the cursor makes this match
// zero rows.
func (r *SessionRepository) Update(ctx context.Context, session *quiz.Session, expectedIndex int) error {
	questionIDsJSON, answersJSON, err := marshalSessionState(session)
	if err != nil {
		return err
	}

	query := `
		UPDATE sessions SET
			question_ids = $1,
			current_index = $2,
			answers = $3,
			correct_count = $4,
			status = $5,
			updated_at = $6
		WHERE id = $7 AND current_index = $8 AND status = 'in_progress'
	`

	tag, err := r.conn.Exec(ctx, query,
		questionIDsJSON,
		session.CurrentIndex,
		answersJSON,
		session.CorrectCount,
		string(session.Status),
		time.Now().UTC(),
		session.ID.String(),
		expectedIndex,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// Distinguish a lost race from a vanished session.
		var exists bool
		checkErr := r.conn.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)`,
			session.ID.String(),
		).Scan(&exists)
		if checkErr != nil {
			return fmt.Errorf("failed to verify session: %w", checkErr)
		}
		if !exists {
			return shared.ErrSessionNotFound
		}
		return shared.ErrConcurrentModification
	}

	return nil
}

// marshalSessionState serializes the id list and the answers.
func marshalSessionState(session *quiz.Session) ([]byte, []byte, error) {
	ids := make([]string, len(session.QuestionIDs))
	for i, qid := range session.QuestionIDs {
		ids[i] = qid.String()
	}
	questionIDsJSON, err := json.Marshal(ids)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal question ids: %w", err)
	}

	records := make([]answerRecord, len(session.Answers))
	for i, ans := range session.Answers {
		records[i] = answerRecord{
			QuestionID: ans.QuestionID.String(),
			Answer:     string(ans.Answer),
			IsCorrect:  ans.IsCorrect,
			AnsweredAt: ans.AnsweredAt,
		}
	}
	answersJSON, err := json.Marshal(records)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal answers: %w", err)
	}

	return questionIDsJSON, answersJSON, nil
}

// scanSession maps one row onto the domain entity.
func (r *SessionRepository) scanSession(row interface{ Scan(...interface{}) error }) (*quiz.Session, error) {
	var (
		s               quiz.Session
		idStr           string
		userIDStr       string
		examType        string
		mode            string
		status          string
		questionIDsJSON []byte
		answersJSON     []byte
	)

	err := row.Scan(
		&idStr,
		&userIDStr,
		&examType,
		&mode,
		&questionIDsJSON,
		&s.CurrentIndex,
		&answersJSON,
		&s.CorrectCount,
		&status,
		&s.StartedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	var ids []string
	if err := json.Unmarshal(questionIDsJSON, &ids); err != nil {
		return nil, fmt.Errorf("failed to unmarshal question ids: %w", err)
	}
	var records []answerRecord
	if err := json.Unmarshal(answersJSON, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal answers: %w", err)
	}

	s.ID = quiz.SessionID(idStr)
	s.UserID = shared.UserID(userIDStr)
	s.ExamType = quiz.ExamType(examType)
	s.Mode = quiz.Mode(mode)
	s.Status = quiz.SessionStatus(status)
	s.QuestionIDs = make([]quiz.QuestionID, len(ids))
	for i, id := range ids {
		s.QuestionIDs[i] = quiz.QuestionID(id)
	}
	s.Answers = make([]quiz.SessionAnswer, len(records))
	for i, rec := range records {
		s.Answers[i] = quiz.SessionAnswer{
			QuestionID: quiz.QuestionID(rec.QuestionID),
			Answer:     quiz.OptionLabel(rec.Answer),
			IsCorrect:  rec.IsCorrect,
			AnsweredAt: rec.AnsweredAt,
		}
	}

	return &s, nil
}
