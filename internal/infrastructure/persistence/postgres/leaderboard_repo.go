package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/certlab/cert-prep-hub/internal/domain/leaderboard"
	"github.com/certlab/cert-prep-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardRepository implements leaderboard.Repository for PostgreSQL.
// Rankings are computed on demand from attempts, xp_history, and profiles;
// nothing is materialized. Ordering ties are broken by user id ascending so
// repeated reads over unchanged data paginate identically.
type LeaderboardRepository struct {
	conn *Connection
}

// NewLeaderboardRepository creates a new LeaderboardRepository.
func NewLeaderboardRepository(conn *Connection) *LeaderboardRepository {
	return &LeaderboardRepository{conn: conn}
}

// TopByMetric returns one page of the fully ordered set with ranks assigned.
func (r *LeaderboardRepository) TopByMetric(ctx context.Context, q leaderboard.Query, windowStart time.Time) ([]*leaderboard.Entry, error) {
	inner, args, err := scoredSet(q, windowStart)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		WITH scored AS (%s),
		ranked AS (
			SELECT user_id, score, attempts,
				ROW_NUMBER() OVER (ORDER BY score DESC, user_id ASC) AS rank
			FROM scored
		)
		SELECT r.rank, r.user_id, r.score, r.attempts, COALESCE(p.level, 1)
		FROM ranked r
		LEFT JOIN profiles p ON p.user_id = r.user_id
		ORDER BY r.rank
		LIMIT $%d OFFSET $%d
	`, inner, len(args)+1, len(args)+2)
	args = append(args, q.Limit, q.Offset)

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard page: %w", err)
	}
	defer rows.Close()

	var entries []*leaderboard.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate leaderboard page: %w", err)
	}

	return entries, nil
}

// RankFor finds the requester's row in the same ordered set, whether or not
// it falls on the requested page. Absent users yield (nil, nil).
func (r *LeaderboardRepository) RankFor(ctx context.Context, q leaderboard.Query, windowStart time.Time, userID shared.UserID) (*leaderboard.Entry, error) {
	inner, args, err := scoredSet(q, windowStart)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		WITH scored AS (%s),
		ranked AS (
			SELECT user_id, score, attempts,
				ROW_NUMBER() OVER (ORDER BY score DESC, user_id ASC) AS rank
			FROM scored
		)
		SELECT r.rank, r.user_id, r.score, r.attempts, COALESCE(p.level, 1)
		FROM ranked r
		LEFT JOIN profiles p ON p.user_id = r.user_id
		WHERE r.user_id = $%d
	`, inner, len(args)+1)
	args = append(args, userID.String())

	entry, err := scanEntry(r.conn.QueryRow(ctx, query, args...))
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}

	return entry, nil
}

// TotalCount returns the size of the full ordered set.
func (r *LeaderboardRepository) TotalCount(ctx context.Context, q leaderboard.Query, windowStart time.Time) (int, error) {
	inner, args, err := scoredSet(q, windowStart)
	if err != nil {
		return 0, err
	}

	var count int
	err = r.conn.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM (%s) scored`, inner), args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count leaderboard set: %w", err)
	}

	return count, nil
}

// scoredSet builds the per-metric (user_id, score, attempts) subquery.
// XP is summed from xp_history so achievement rewards count and sliding
// windows attribute gains to when they happened, not to profile state.
// Streak is point-in-time profile state, so its window filter is omitted.
func scoredSet(q leaderboard.Query, windowStart time.Time) (string, []interface{}, error) {
	switch q.Metric {
	case leaderboard.MetricXP:
		return `
			SELECT user_id, SUM(delta)::double precision AS score, 0 AS attempts
			FROM xp_history
			WHERE created_at >= $1
			GROUP BY user_id
		`, []interface{}{windowStart}, nil

	case leaderboard.MetricQuizCount:
		return `
			SELECT user_id, COUNT(*)::double precision AS score, COUNT(*) AS attempts
			FROM attempts
			WHERE created_at >= $1
			GROUP BY user_id
		`, []interface{}{windowStart}, nil

	case leaderboard.MetricAccuracy:
		return `
			SELECT user_id, AVG(score_percentage) AS score, COUNT(*) AS attempts
			FROM attempts
			WHERE created_at >= $1
			GROUP BY user_id
			HAVING COUNT(*) >= $2
		`, []interface{}{windowStart, int(q.MinAttempts)}, nil

	case leaderboard.MetricStreak:
		return `
			SELECT user_id, streak_current::double precision AS score, 0 AS attempts
			FROM profiles
			WHERE streak_current > 0
		`, nil, nil

	case leaderboard.MetricExamSpecific:
		return `
			SELECT user_id, COUNT(*)::double precision AS score, COUNT(*) AS attempts
			FROM attempts
			WHERE exam_type = $1 AND created_at >= $2
			GROUP BY user_id
		`, []interface{}{q.ExamType.String(), windowStart}, nil

	default:
		return "", nil, shared.ErrUnknownMetric
	}
}

func scanEntry(row interface{ Scan(...interface{}) error }) (*leaderboard.Entry, error) {
	var (
		e         leaderboard.Entry
		rank      int64
		userIDStr string
	)

	err := row.Scan(&rank, &userIDStr, &e.Score, &e.Attempts, &e.Level)
	if err != nil {
		if IsNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
	}

	e.Rank = leaderboard.Rank(rank)
	e.UserID = shared.UserID(userIDStr)

	return &e, nil
}
