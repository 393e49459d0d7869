package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/certlab/cert-prep-hub/internal/domain/profile"
	"github.com/certlab/cert-prep-hub/internal/domain/shared"
	"github.com/certlab/cert-prep-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProfileRepository implements profile.Repository for PostgreSQL.
type ProfileRepository struct {
	conn *Connection
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(conn *Connection) *ProfileRepository {
	return &ProfileRepository{conn: conn}
}

const profileColumns = `
	user_id, xp, level, streak_current, streak_longest, last_activity_date,
	total_exams_taken, total_questions_answered, created_at, updated_at
`

// Create creates a new profile.
func (r *ProfileRepository) Create(ctx context.Context, p *profile.Profile) error {
	query := `
		INSERT INTO profiles (
			user_id, xp, level, streak_current, streak_longest, last_activity_date,
			total_exams_taken, total_questions_answered, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.conn.Exec(ctx, query,
		p.UserID.String(),
		int(p.XP),
		int(p.Level),
		p.StreakCurrent,
		p.StreakLongest,
		nullableDate(p.LastActivityDate),
		p.TotalExamsTaken,
		p.TotalQuestionsAnswered,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create profile: %w", err)
	}

	return nil
}

// Get returns a progression profile by user id.
func (r *ProfileRepository) Get(ctx context.Context, userID shared.UserID) (*profile.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = $1`

	return r.scanProfile(r.conn.QueryRow(ctx, query, userID.String()))
}

// GetForUpdate returns the profile with its row locked for the duration of
// the surrounding transaction.
func (r *ProfileRepository) GetForUpdate(ctx context.Context, userID shared.UserID) (*profile.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = $1 FOR UPDATE`

	return r.scanProfile(r.conn.QueryRow(ctx, query, userID.String()))
}

// GetOrCreateForUpdate returns the locked profile, inserting an empty one
// on the user's first submission. The insert tolerates a concurrent first
// submission; whichever loses the race locks the winner's row.
func (r *ProfileRepository) GetOrCreateForUpdate(ctx context.Context, userID shared.UserID) (*profile.Profile, error) {
	insert := `
		INSERT INTO profiles (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := r.conn.Exec(ctx, insert, userID.String()); err != nil {
		return nil, fmt.Errorf("failed to ensure profile: %w", err)
	}

	return r.GetForUpdate(ctx, userID)
}

// Save persists all profile counters in one write.
func (r *ProfileRepository) Save(ctx context.Context, p *profile.Profile) error {
	query := `
		UPDATE profiles SET
			xp = $1,
			level = $2,
			streak_current = $3,
			streak_longest = $4,
			last_activity_date = $5,
			total_exams_taken = $6,
			total_questions_answered = $7,
			updated_at = $8
		WHERE user_id = $9
	`

	tag, err := r.conn.Exec(ctx, query,
		int(p.XP),
		int(p.Level),
		p.StreakCurrent,
		p.StreakLongest,
		nullableDate(p.LastActivityDate),
		p.TotalExamsTaken,
		p.TotalQuestionsAnswered,
		time.Now().UTC(),
		p.UserID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrProfileNotFound
	}

	return nil
}

// AppendXPHistory appends one row to the XP audit trail.
func (r *ProfileRepository) AppendXPHistory(ctx context.Context, entry profile.XPHistoryEntry) error {
	query := `
		INSERT INTO xp_history (user_id, old_xp, new_xp, delta, reason, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.conn.Exec(ctx, query,
		entry.UserID.String(),
		int(entry.OldXP),
		int(entry.NewXP),
		int(entry.Delta),
		entry.Reason,
		entry.ReferenceID,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append xp history: %w", err)
	}

	return nil
}

// GetXPHistory returns the user's XP changes within [from, to].
func (r *ProfileRepository) GetXPHistory(ctx context.Context, userID shared.UserID, from, to time.Time) ([]profile.XPHistoryEntry, error) {
	query := `
		SELECT user_id, old_xp, new_xp, delta, reason, reference_id, created_at
		FROM xp_history
		WHERE user_id = $1 AND created_at >= $2 AND created_at <= $3
		ORDER BY created_at DESC
	`

	rows, err := r.conn.Query(ctx, query, userID.String(), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query xp history: %w", err)
	}
	defer rows.Close()

	var entries []profile.XPHistoryEntry
	for rows.Next() {
		var (
			entry                 profile.XPHistoryEntry
			userIDStr             string
			oldXP, newXP, deltaXP int
		)
		if err := rows.Scan(&userIDStr, &oldXP, &newXP, &deltaXP,
			&entry.Reason, &entry.ReferenceID, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan xp history row: %w", err)
		}
		entry.UserID = shared.UserID(userIDStr)
		entry.OldXP = profile.XP(oldXP)
		entry.NewXP = profile.XP(newXP)
		entry.Delta = profile.XP(deltaXP)
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// scanProfile maps one row onto the domain entity.
func (r *ProfileRepository) scanProfile(row interface{ Scan(...interface{}) error }) (*profile.Profile, error) {
	var (
		p            profile.Profile
		userIDStr    string
		xp, level    int
		activityDate *time.Time
	)

	err := row.Scan(
		&userIDStr,
		&xp,
		&level,
		&p.StreakCurrent,
		&p.StreakLongest,
		&activityDate,
		&p.TotalExamsTaken,
		&p.TotalQuestionsAnswered,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to scan profile: %w", err)
	}

	p.UserID = shared.UserID(userIDStr)
	p.XP = profile.XP(xp)
	p.Level = profile.Level(level)
	if activityDate != nil {
		// pgx scans DATE as midnight UTC; streak math works on server-local
		// calendar dates, so rebuild the date in the server timezone or a
		// stored "today" reads back as a different day west of UTC.
		y, m, d := activityDate.Date()
		p.LastActivityDate = timeutil.Date(y, int(m), d)
	}

	return &p, nil
}

// nullableDate maps the zero time onto SQL NULL.
func nullableDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
