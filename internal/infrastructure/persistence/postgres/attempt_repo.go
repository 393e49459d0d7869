package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/certlab/cert-prep-hub/internal/domain/quiz"
	"github.com/certlab/cert-prep-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ATTEMPT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AttemptRepository implements quiz.AttemptRepository for PostgreSQL.
// Attempts are append-only: rows are inserted once and never updated.
type AttemptRepository struct {
	conn *Connection
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(conn *Connection) *AttemptRepository {
	return &AttemptRepository{conn: conn}
}

const attemptColumns = `
	id, user_id, exam_type, mode, total_questions, correct_answers,
	score_percentage, time_taken_ms, xp_earned, idempotency_key, created_at
`

// Create inserts the attempt summary plus one row per answered question.
// A duplicate idempotency key for the same user is reported as
// shared.ErrAlreadyExists so the caller can replay the original attempt.
// The duplicate is detected via ON CONFLICT DO NOTHING rather than a unique
// violation: an aborted statement would poison the surrounding transaction
// and make the replay lookup impossible.
func (r *AttemptRepository) Create(ctx context.Context, attempt *quiz.Attempt) error {
	query := `
		INSERT INTO attempts (
			id, user_id, exam_type, mode, total_questions, correct_answers,
			score_percentage, time_taken_ms, xp_earned, idempotency_key, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id, idempotency_key) WHERE idempotency_key IS NOT NULL
		DO NOTHING
	`

	tag, err := r.conn.Exec(ctx, query,
		attempt.ID.String(),
		attempt.UserID.String(),
		attempt.ExamType.String(),
		string(attempt.Mode),
		attempt.TotalQuestions,
		attempt.CorrectAnswers,
		attempt.ScorePercentage,
		attempt.TimeTaken.Milliseconds(),
		attempt.XPEarned,
		nullableKey(attempt.IdempotencyKey),
		attempt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrAlreadyExists
	}

	for _, ans := range attempt.Answers {
		_, err := r.conn.Exec(ctx, `
			INSERT INTO attempt_answers (attempt_id, question_id, answer, is_correct, answered_at)
			VALUES ($1, $2, $3, $4, $5)
		`,
			attempt.ID.String(),
			ans.QuestionID.String(),
			string(ans.Answer),
			ans.IsCorrect,
			ans.AnsweredAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create attempt answer: %w", err)
		}
	}

	return nil
}

// GetByID returns an attempt by id, answers included.
func (r *AttemptRepository) GetByID(ctx context.Context, id quiz.AttemptID) (*quiz.Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM attempts WHERE id = $1`

	attempt, err := r.scanAttempt(r.conn.QueryRow(ctx, query, id.String()))
	if err != nil {
		return nil, err
	}
	if err := r.loadAnswers(ctx, attempt); err != nil {
		return nil, err
	}
	return attempt, nil
}

// GetByIdempotencyKey returns the attempt originally created under the key.
func (r *AttemptRepository) GetByIdempotencyKey(ctx context.Context, userID shared.UserID, key string) (*quiz.Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM attempts WHERE user_id = $1 AND idempotency_key = $2`

	attempt, err := r.scanAttempt(r.conn.QueryRow(ctx, query, userID.String(), key))
	if err != nil {
		return nil, err
	}
	if err := r.loadAnswers(ctx, attempt); err != nil {
		return nil, err
	}
	return attempt, nil
}

// ListByUser returns the user's attempts, newest first. The per-question
// breakdown is not loaded; list views only show summaries.
func (r *AttemptRepository) ListByUser(ctx context.Context, userID shared.UserID, limit, offset int) ([]*quiz.Attempt, error) {
	query := `
		SELECT ` + attemptColumns + `
		FROM attempts
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.conn.Query(ctx, query, userID.String(), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*quiz.Attempt
	for rows.Next() {
		attempt, err := r.scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attempts: %w", err)
	}

	return attempts, nil
}

// CountByUserAndExam returns the number of attempts since the given time.
// A zero time counts all of the user's attempts for the exam.
func (r *AttemptRepository) CountByUserAndExam(ctx context.Context, userID shared.UserID, examType quiz.ExamType, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM attempts
		WHERE user_id = $1 AND exam_type = $2 AND created_at >= $3
	`

	var count int
	err := r.conn.QueryRow(ctx, query, userID.String(), examType.String(), since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count attempts: %w", err)
	}

	return count, nil
}

// AggregatesByUser builds the all-time aggregate view achievement criteria
// read. Per-domain accuracy joins the answer breakdown against the question
// catalog, so questions deleted from the catalog drop out of the average.
func (r *AttemptRepository) AggregatesByUser(ctx context.Context, userID shared.UserID) (*quiz.UserAggregates, error) {
	agg := &quiz.UserAggregates{
		AttemptsByExam:   make(map[quiz.ExamType]int),
		AccuracyByDomain: make(map[string]float64),
	}

	rows, err := r.conn.Query(ctx, `
		SELECT exam_type, COUNT(*), COALESCE(SUM(total_questions), 0)
		FROM attempts
		WHERE user_id = $1
		GROUP BY exam_type
	`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate attempts by exam: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			examType  string
			count     int
			questions int
		)
		if err := rows.Scan(&examType, &count, &questions); err != nil {
			return nil, fmt.Errorf("failed to scan exam aggregate: %w", err)
		}
		agg.AttemptsByExam[quiz.ExamType(examType)] = count
		agg.QuestionsAnswered += questions
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate exam aggregates: %w", err)
	}

	domainRows, err := r.conn.Query(ctx, `
		SELECT q.domain, AVG(CASE WHEN aa.is_correct THEN 100.0 ELSE 0.0 END)
		FROM attempt_answers aa
		JOIN attempts a ON a.id = aa.attempt_id
		JOIN questions q ON q.id = aa.question_id
		WHERE a.user_id = $1 AND q.domain <> ''
		GROUP BY q.domain
	`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate accuracy by domain: %w", err)
	}
	defer domainRows.Close()

	for domainRows.Next() {
		var (
			domain   string
			accuracy float64
		)
		if err := domainRows.Scan(&domain, &accuracy); err != nil {
			return nil, fmt.Errorf("failed to scan domain aggregate: %w", err)
		}
		agg.AccuracyByDomain[domain] = accuracy
	}
	if err := domainRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate domain aggregates: %w", err)
	}

	return agg, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────────────────────

func (r *AttemptRepository) scanAttempt(row interface{ Scan(...interface{}) error }) (*quiz.Attempt, error) {
	var (
		a           quiz.Attempt
		idStr       string
		userIDStr   string
		examType    string
		mode        string
		timeTakenMs int64
		key         *string
	)

	err := row.Scan(
		&idStr,
		&userIDStr,
		&examType,
		&mode,
		&a.TotalQuestions,
		&a.CorrectAnswers,
		&a.ScorePercentage,
		&timeTakenMs,
		&a.XPEarned,
		&key,
		&a.CreatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan attempt: %w", err)
	}

	a.ID = quiz.AttemptID(idStr)
	a.UserID = shared.UserID(userIDStr)
	a.ExamType = quiz.ExamType(examType)
	a.Mode = quiz.Mode(mode)
	a.TimeTaken = time.Duration(timeTakenMs) * time.Millisecond
	if key != nil {
		a.IdempotencyKey = *key
	}

	return &a, nil
}

func (r *AttemptRepository) loadAnswers(ctx context.Context, attempt *quiz.Attempt) error {
	rows, err := r.conn.Query(ctx, `
		SELECT question_id, answer, is_correct, answered_at
		FROM attempt_answers
		WHERE attempt_id = $1
		ORDER BY answered_at ASC
	`, attempt.ID.String())
	if err != nil {
		return fmt.Errorf("failed to load attempt answers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			questionID string
			answer     string
			ans        quiz.SessionAnswer
		)
		if err := rows.Scan(&questionID, &answer, &ans.IsCorrect, &ans.AnsweredAt); err != nil {
			return fmt.Errorf("failed to scan attempt answer: %w", err)
		}
		ans.QuestionID = quiz.QuestionID(questionID)
		ans.Answer = quiz.OptionLabel(answer)
		attempt.Answers = append(attempt.Answers, ans)
	}
	return rows.Err()
}

// nullableKey maps an absent idempotency key to NULL so the partial unique
// index only guards keyed submissions.
func nullableKey(key string) *string {
	if key == "" {
		return nil
	}
	return &key
}
