package postgres

import (
	"context"
	"fmt"

	"github.com/certlab/cert-prep-hub/internal/domain/achievement"
	"github.com/certlab/cert-prep-hub/internal/domain/quiz"
	"github.com/certlab/cert-prep-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AchievementRepository implements achievement.Repository for PostgreSQL.
// The catalog is seeded by migration; only earned rows are written at runtime.
type AchievementRepository struct {
	conn *Connection
}

// NewAchievementRepository creates a new AchievementRepository.
func NewAchievementRepository(conn *Connection) *AchievementRepository {
	return &AchievementRepository{conn: conn}
}

const achievementColumns = `
	id, code, name, description, criteria_type, criteria_value,
	criteria_exam_type, xp_reward
`

// ListDefinitions returns the full achievement catalog.
func (r *AchievementRepository) ListDefinitions(ctx context.Context) ([]*achievement.Achievement, error) {
	query := `SELECT ` + achievementColumns + ` FROM achievements ORDER BY id`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	defer rows.Close()

	var definitions []*achievement.Achievement
	for rows.Next() {
		def, err := r.scanAchievement(rows)
		if err != nil {
			return nil, err
		}
		definitions = append(definitions, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate achievements: %w", err)
	}

	return definitions, nil
}

// GetByID returns one achievement definition.
func (r *AchievementRepository) GetByID(ctx context.Context, id achievement.AchievementID) (*achievement.Achievement, error) {
	query := `SELECT ` + achievementColumns + ` FROM achievements WHERE id = $1`

	return r.scanAchievement(r.conn.QueryRow(ctx, query, id.String()))
}

// ListEarnedIDs returns the ids the user already unlocked as a set.
func (r *AchievementRepository) ListEarnedIDs(ctx context.Context, userID shared.UserID) (map[achievement.AchievementID]bool, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT achievement_id FROM earned_achievements WHERE user_id = $1`,
		userID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list earned achievement ids: %w", err)
	}
	defer rows.Close()

	earned := make(map[achievement.AchievementID]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan earned achievement id: %w", err)
		}
		earned[achievement.AchievementID(id)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate earned achievement ids: %w", err)
	}

	return earned, nil
}

// ListEarned returns the user's unlocks, newest first.
func (r *AchievementRepository) ListEarned(ctx context.Context, userID shared.UserID) ([]*achievement.EarnedAchievement, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT user_id, achievement_id, earned_at
		FROM earned_achievements
		WHERE user_id = $1
		ORDER BY earned_at DESC
	`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list earned achievements: %w", err)
	}
	defer rows.Close()

	var earned []*achievement.EarnedAchievement
	for rows.Next() {
		var (
			e             achievement.EarnedAchievement
			userIDStr     string
			achievementID string
		)
		if err := rows.Scan(&userIDStr, &achievementID, &e.EarnedAt); err != nil {
			return nil, fmt.Errorf("failed to scan earned achievement: %w", err)
		}
		e.UserID = shared.UserID(userIDStr)
		e.AchievementID = achievement.AchievementID(achievementID)
		earned = append(earned, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate earned achievements: %w", err)
	}

	return earned, nil
}

// Award inserts the unlock if the (user, achievement) pair is absent.
// ON CONFLICT DO NOTHING makes a lost race report awarded=false instead of
// an error.
func (r *AchievementRepository) Award(ctx context.Context, earned *achievement.EarnedAchievement) (bool, error) {
	tag, err := r.conn.Exec(ctx, `
		INSERT INTO earned_achievements (user_id, achievement_id, earned_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, achievement_id) DO NOTHING
	`,
		earned.UserID.String(),
		earned.AchievementID.String(),
		earned.EarnedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to award achievement: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// CountPerfectScores counts attempts where every answer was correct.
func (r *AchievementRepository) CountPerfectScores(ctx context.Context, userID shared.UserID) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM attempts
		WHERE user_id = $1 AND correct_answers = total_questions
	`, userID.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count perfect scores: %w", err)
	}

	return count, nil
}

func (r *AchievementRepository) scanAchievement(row interface{ Scan(...interface{}) error }) (*achievement.Achievement, error) {
	var (
		a            achievement.Achievement
		idStr        string
		criteriaType string
		examType     string
	)

	err := row.Scan(
		&idStr,
		&a.Code,
		&a.Name,
		&a.Description,
		&criteriaType,
		&a.CriteriaValue,
		&examType,
		&a.XPReward,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrAchievementNotFound
		}
		return nil, fmt.Errorf("failed to scan achievement: %w", err)
	}

	a.ID = achievement.AchievementID(idStr)
	a.CriteriaType = achievement.CriteriaType(criteriaType)
	a.CriteriaExamType = quiz.ExamType(examType)

	return &a, nil
}
