package achievement

import (
	"context"

	"github.com/certlab/cert-prep-hub/internal/domain/shared"
)

// Repository persists the achievement catalog and individual awards.
// Implementations live in infrastructure/persistence.
type Repository interface {
	// ListDefinitions returns the full achievement catalog.
	ListDefinitions(ctx context.Context) ([]*Achievement, error)

	// GetByID returns one achievement definition.
	// Returns shared.ErrAchievementNotFound if it does not exist.
	GetByID(ctx context.Context, id AchievementID) (*Achievement, error)

	// ListEarnedIDs returns the ids of achievements the user has unlocked.
	ListEarnedIDs(ctx context.Context, userID shared.UserID) (map[AchievementID]bool, error)

	// ListEarned returns the user's unlocks, newest first.
	ListEarned(ctx context.Context, userID shared.UserID) ([]*EarnedAchievement, error)

	// Award inserts an unlock with insert-if-absent semantics. Returns
	// awarded=false when another request already inserted the same
	// (user, achievement) pair; that race is expected and non-fatal.
	Award(ctx context.Context, earned *EarnedAchievement) (awarded bool, err error)

	// CountPerfectScores returns how many perfect-score attempts the user
	// has, used by perfect_score criteria.
	CountPerfectScores(ctx context.Context, userID shared.UserID) (int, error)
}
