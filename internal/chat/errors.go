package chat

import "errors"

// Pagination bounds for listing chats and messages.
const (
	// DefaultPageLimit is used when a caller passes zero or a negative limit.
	DefaultPageLimit int32 = 50

	// MaxPageLimit is the absolute cap to prevent unbounded result sets.
	MaxPageLimit int32 = 500
)

// Message roles accepted by AddMessages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Sentinel errors for chat operations. Check with errors.Is.
var (
	// ErrNotFound indicates the chat does not exist or is not owned by the
	// requesting user. The two cases are deliberately indistinguishable.
	ErrNotFound = errors.New("chat not found")

	// ErrInvalidRole indicates a message role outside the accepted set.
	ErrInvalidRole = errors.New("invalid message role")
)

// NormalizeLimit clamps a page limit to (0, MaxPageLimit], defaulting
// zero and negative values.
func NormalizeLimit(limit int32) int32 {
	if limit <= 0 {
		return DefaultPageLimit
	}
	if limit > MaxPageLimit {
		return MaxPageLimit
	}
	return limit
}

// ValidRole reports whether role is one of the accepted message roles.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAssistant || role == RoleSystem
}
