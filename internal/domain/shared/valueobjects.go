package shared

import (
	"context"
	"regexp"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UUID validation regex (simple version).
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// UserID represents the opaque user identity supplied by the auth layer.
// The engine never interprets it beyond equality and ordering (ordering is
// the documented leaderboard tiebreak).
type UserID string

// IsValid checks that the user ID is non-empty.
func (u UserID) IsValid() bool {
	return strings.TrimSpace(string(u)) != ""
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// Less reports whether u orders before other (ascending lexicographic order).
func (u UserID) Less(other UserID) bool {
	return string(u) < string(other)
}

// NewUserID creates a UserID with validation.
func NewUserID(id string) (UserID, error) {
	uid := UserID(strings.TrimSpace(id))
	if !uid.IsValid() {
		return "", NewDomainError("shared", "NewUserID", ErrInvalidID, "user ID cannot be empty")
	}
	return uid, nil
}

// IsUUID reports whether s looks like a UUID. Session and attempt IDs are
// UUIDs; user IDs are opaque and deliberately not checked against this.
func IsUUID(s string) bool {
	return uuidRegex.MatchString(s)
}

// ═══════════════════════════════════════════════════════════════════════════
// Infrastructure contracts
// ═══════════════════════════════════════════════════════════════════════════

// TxManager runs a function within a single storage transaction. The derived
// context must be passed to every repository call that should join the
// transaction; repositories outside the callback operate autonomously.
type TxManager interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventPublisher publishes domain events. Publishing is best effort: the
// progression engine never fails a committed submission because a listener
// could not be notified.
type EventPublisher interface {
	Publish(event Event) error
}

// EventHandler processes a published domain event.
type EventHandler interface {
	Handle(ctx context.Context, event Event) error
}
