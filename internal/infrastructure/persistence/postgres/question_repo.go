package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/certlab/cert-prep-hub/internal/domain/quiz"
	"github.com/certlab/cert-prep-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// QUESTION STORE IMPLEMENTATION
// Questions are externally owned reference data; this store is read-only
// from the engine's point of view, plus a seeding helper for operators.
// ══════════════════════════════════════════════════════════════════════════════

// QuestionRepository implements quiz.QuestionStore for PostgreSQL.
type QuestionRepository struct {
	conn *Connection
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(conn *Connection) *QuestionRepository {
	return &QuestionRepository{conn: conn}
}

// optionRecord is the JSONB shape of one answer option.
type optionRecord struct {
	Label       string `json:"label"`
	Text        string `json:"text"`
	Explanation string `json:"explanation,omitempty"`
}

const questionColumns = `id, exam_type, domain, text, options, correct_answer`

// GetByID returns a question by id.
func (r *QuestionRepository) GetByID(ctx context.Context, id quiz.QuestionID) (*quiz.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE id = $1`

	question, err := r.scanQuestion(r.conn.QueryRow(ctx, query, id.String()))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrQuestionNotFound
		}
		return nil, err
	}
	return question, nil
}

// GetByIDs returns the questions for the given ids, keyed by id.
// Missing ids are absent from the map, not an error.
func (r *QuestionRepository) GetByIDs(ctx context.Context, ids []quiz.QuestionID) (map[quiz.QuestionID]*quiz.Question, error) {
	if len(ids) == 0 {
		return map[quiz.QuestionID]*quiz.Question{}, nil
	}

	idStrs := make([]string, len(ids))
	for i, id := range ids {
		idStrs[i] = id.String()
	}

	query := `SELECT ` + questionColumns + ` FROM questions WHERE id = ANY($1)`

	rows, err := r.conn.Query(ctx, query, idStrs)
	if err != nil {
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}
	defer rows.Close()

	out := make(map[quiz.QuestionID]*quiz.Question, len(ids))
	for rows.Next() {
		question, err := r.scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out[question.ID] = question
	}

	return out, rows.Err()
}

// Sample returns up to count distinct random questions for an exam type.
func (r *QuestionRepository) Sample(ctx context.Context, examType quiz.ExamType, count int) ([]*quiz.Question, error) {
	// ORDER BY random() is fine at question-bank scale; revisit with
	// TABLESAMPLE if banks grow past ~100k rows per exam.
	query := `
		SELECT ` + questionColumns + `
		FROM questions
		WHERE exam_type = $1
		ORDER BY random()
		LIMIT $2
	`

	rows, err := r.conn.Query(ctx, query, examType.String(), count)
	if err != nil {
		return nil, fmt.Errorf("failed to sample questions: %w", err)
	}
	defer rows.Close()

	var questions []*quiz.Question
	for rows.Next() {
		question, err := r.scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, question)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(questions) == 0 {
		return nil, shared.ErrQuestionNotFound
	}

	return questions, nil
}

// Upsert inserts or replaces a question. Seeding/import helper, not part
// of the quiz.QuestionStore contract.
func (r *QuestionRepository) Upsert(ctx context.Context, q *quiz.Question) error {
	if err := q.Validate(); err != nil {
		return err
	}

	records := make([]optionRecord, len(q.Options))
	for i, opt := range q.Options {
		records[i] = optionRecord{
			Label:       string(opt.Label),
			Text:        opt.Text,
			Explanation: opt.Explanation,
		}
	}
	optionsJSON, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal options: %w", err)
	}

	query := `
		INSERT INTO questions (id, exam_type, domain, text, options, correct_answer)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			exam_type = EXCLUDED.exam_type,
			domain = EXCLUDED.domain,
			text = EXCLUDED.text,
			options = EXCLUDED.options,
			correct_answer = EXCLUDED.correct_answer
	`

	_, err = r.conn.Exec(ctx, query,
		q.ID.String(),
		q.ExamType.String(),
		q.Domain,
		q.Text,
		optionsJSON,
		string(q.CorrectAnswer),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert question: %w", err)
	}

	return nil
}

// scanQuestion maps one row onto the domain entity.
func (r *QuestionRepository) scanQuestion(row interface{ Scan(...interface{}) error }) (*quiz.Question, error) {
	var (
		q           quiz.Question
		idStr       string
		examType    string
		optionsJSON []byte
		correct     string
	)

	err := row.Scan(&idStr, &examType, &q.Domain, &q.Text, &optionsJSON, &correct)
	if err != nil {
		if IsNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan question: %w", err)
	}

	var records []optionRecord
	if err := json.Unmarshal(optionsJSON, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal options: %w", err)
	}

	q.ID = quiz.QuestionID(idStr)
	q.ExamType = quiz.ExamType(examType)
	q.CorrectAnswer = quiz.OptionLabel(correct)
	q.Options = make([]quiz.Option, len(records))
	for i, rec := range records {
		q.Options[i] = quiz.Option{
			Label:       quiz.OptionLabel(rec.Label),
			Text:        rec.Text,
			Explanation: rec.Explanation,
		}
	}

	return &q, nil
}
