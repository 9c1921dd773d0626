// Package auth resolves API tokens to user identities.
//
// Tokens are opaque bearer strings; only their SHA-256 hash is stored.
// The package answers "who is this" and "what role do they have" and
// nothing else. Token issuance and login flows live outside this service.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quillchat/quill/internal/log"
)

// User roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Sentinel errors for authentication. Check with errors.Is.
var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Identity is the authenticated caller.
type Identity struct {
	UserID uuid.UUID
	Role   string
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Authenticator resolves a bearer token to an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (Identity, error)
}

// TokenAuthenticator authenticates against hashed tokens in PostgreSQL.
// Safe for concurrent use.
type TokenAuthenticator struct {
	pool   *pgxpool.Pool
	logger log.Logger
	now    func() time.Time // replaced in tests
}

// New creates a TokenAuthenticator backed by the given pool.
func New(pool *pgxpool.Pool, logger log.Logger) (*TokenAuthenticator, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	return &TokenAuthenticator{pool: pool, logger: logger, now: time.Now}, nil
}

// Authenticate resolves token to an identity. An unknown token and a
// malformed token both yield ErrInvalidToken so probing reveals nothing.
func (a *TokenAuthenticator) Authenticate(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrMissingToken
	}

	var id Identity
	var expiresAt *time.Time
	err := a.pool.QueryRow(ctx, `
		SELECT u.id, u.role, t.expires_at
		FROM api_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.token_hash = $1`,
		HashToken(token),
	).Scan(&id.UserID, &id.Role, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Identity{}, ErrInvalidToken
	}
	if err != nil {
		return Identity{}, fmt.Errorf("looking up token: %w", err)
	}

	if expiresAt != nil && a.now().After(*expiresAt) {
		a.logger.Debug("rejected expired token", "user_id", id.UserID)
		return Identity{}, ErrTokenExpired
	}
	return id, nil
}

// HashToken returns the hex SHA-256 of a token, the form stored in the
// api_tokens table.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ParseBearer extracts the token from an Authorization header value.
func ParseBearer(header string) (string, error) {
	const prefix = "Bearer "
	if header == "" {
		return "", ErrMissingToken
	}
	if !strings.HasPrefix(header, prefix) {
		return "", fmt.Errorf("authorization scheme must be Bearer: %w", ErrInvalidToken)
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

// Static is a fixed token-to-identity map, for tests and local
// development without a database.
type Static map[string]Identity

// Authenticate implements Authenticator.
func (s Static) Authenticate(_ context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrMissingToken
	}
	id, ok := s[token]
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	return id, nil
}
