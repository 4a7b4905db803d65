package auth

import "context"

// Store describes the credential persistence operations required by the
// session core. Implementations must return ErrNotFound for absent users and
// ErrAlreadyExists on username/email collisions.
type Store interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	// FindByIdentifier resolves a user by username or email.
	FindByIdentifier(ctx context.Context, identifier string) (*User, error)
	// SetRefreshToken stores token as the user's current refresh token.
	// An empty token clears it.
	SetRefreshToken(ctx context.Context, id, token string) error
	// RotateRefreshToken swaps the stored refresh token from old to new only
	// if old is still the current value. It reports whether the swap was
	// applied; a miss means a concurrent rotation or login won.
	RotateRefreshToken(ctx context.Context, id, oldToken, newToken string) (bool, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateProfile(ctx context.Context, id, fullName, email string) (*User, error)
}
