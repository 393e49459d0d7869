package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certlab/cert-prep-hub/internal/domain/profile"
	"github.com/certlab/cert-prep-hub/pkg/timeutil"
)

// stubRow plays back one profile row in the profileColumns order.
type stubRow struct {
	values []interface{}
}

func (r *stubRow) Scan(dest ...interface{}) error {
	for i, d := range dest {
		switch target := d.(type) {
		case *string:
			*target = r.values[i].(string)
		case *int:
			*target = r.values[i].(int)
		case **time.Time:
			if r.values[i] != nil {
				t := r.values[i].(time.Time)
				*target = &t
			}
		case *time.Time:
			*target = r.values[i].(time.Time)
		}
	}
	return nil
}

func profileRowValues(lastActivity interface{}) []interface{} {
	now := time.Now().UTC()
	return []interface{}{
		"user-1",     // user_id
		150,          // xp
		2,            // level
		1,            // streak_current
		3,            // streak_longest
		lastActivity, // last_activity_date
		4,            // total_exams_taken
		40,           // total_questions_answered
		now,          // created_at
		now,          // updated_at
	}
}

// DATE columns come back from pgx as midnight UTC. Streak math runs on
// server-local calendar dates, so the scan must rebuild the date in the
// server timezone: west of UTC a stored "today" would otherwise read back
// as local "yesterday", and a same-day repeat would extend the streak.
func TestProfileRepository_ScanNormalizesActivityDate(t *testing.T) {
	restore := timeutil.Location()
	timeutil.SetLocation(time.FixedZone("UTC-6", -6*60*60))
	defer timeutil.SetLocation(restore)

	repo := NewProfileRepository(nil)

	stored := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	p, err := repo.scanProfile(&stubRow{values: profileRowValues(stored)})
	require.NoError(t, err)

	assert.True(t, p.LastActivityDate.Equal(timeutil.Date(2026, 8, 26)),
		"scanned date %v should be local midnight of the stored calendar day", p.LastActivityDate)

	// A second submission later the same local day must not move the streak.
	sameDay := time.Date(2026, 8, 26, 20, 30, 0, 0, time.FixedZone("UTC-6", -6*60*60))
	result, err := p.ApplySubmission(profile.SubmissionStats{
		CorrectAnswers: 5,
		TotalQuestions: 10,
		EarnsXP:        true,
		SubmittedAt:    sameDay,
	})
	require.NoError(t, err)
	assert.Equal(t, profile.StreakUnchanged, result.StreakOutcome)
	assert.Equal(t, 1, result.StreakCurrent)
}

// A submission on the next local calendar day extends the streak even
// though the persisted value round-tripped through a UTC DATE scan.
func TestProfileRepository_ScannedDateExtendsOnNextDay(t *testing.T) {
	restore := timeutil.Location()
	timeutil.SetLocation(time.FixedZone("UTC-6", -6*60*60))
	defer timeutil.SetLocation(restore)

	repo := NewProfileRepository(nil)

	stored := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	p, err := repo.scanProfile(&stubRow{values: profileRowValues(stored)})
	require.NoError(t, err)

	nextDay := time.Date(2026, 8, 27, 9, 0, 0, 0, time.FixedZone("UTC-6", -6*60*60))
	result, err := p.ApplySubmission(profile.SubmissionStats{
		CorrectAnswers: 5,
		TotalQuestions: 10,
		EarnsXP:        true,
		SubmittedAt:    nextDay,
	})
	require.NoError(t, err)
	assert.Equal(t, profile.StreakExtended, result.StreakOutcome)
	assert.Equal(t, 2, result.StreakCurrent)
}

// NULL last_activity_date maps onto the zero time.
func TestProfileRepository_ScanNullActivityDate(t *testing.T) {
	repo := NewProfileRepository(nil)

	p, err := repo.scanProfile(&stubRow{values: profileRowValues(nil)})
	require.NoError(t, err)

	assert.True(t, p.LastActivityDate.IsZero())
	assert.False(t, p.HasActivity())
}
