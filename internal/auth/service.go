package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"clipstream.dev/internal/ids"
)

const defaultCallTimeout = 5 * time.Second

// Service orchestrates the session lifecycle: credential verification,
// token pair issuance, refresh rotation and revocation.
type Service struct {
	store       Store
	signer      *Signer
	callTimeout time.Duration
	now         func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithCallTimeout bounds each credential store call. Expiry of the bound
// surfaces as ErrUnavailable.
func WithCallTimeout(d time.Duration) ServiceOption {
	return func(s *Service) error {
		if d > 0 {
			s.callTimeout = d
		}
		return nil
	}
}

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs Service with optional configuration.
func NewService(store Store, signer *Signer, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if signer == nil {
		return nil, errors.New("auth: signer is required")
	}
	svc := &Service{
		store:       store,
		signer:      signer,
		callTimeout: defaultCallTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// RegisterParams carries the fields required to create an account.
type RegisterParams struct {
	Username      string
	Email         string
	FullName      string
	Password      string
	AvatarURL     string
	CoverImageURL string
}

// Register creates a new account. Username and email must be unused.
func (s *Service) Register(ctx context.Context, p RegisterParams) (Profile, error) {
	username := strings.ToLower(strings.TrimSpace(p.Username))
	email := strings.ToLower(strings.TrimSpace(p.Email))
	fullName := strings.TrimSpace(p.FullName)
	if username == "" || email == "" || fullName == "" || p.Password == "" {
		return Profile{}, ErrInvalidInput
	}
	if !strings.Contains(email, "@") {
		return Profile{}, ErrInvalidInput
	}
	hash, err := HashPassword(p.Password)
	if err != nil {
		return Profile{}, err
	}
	user := &User{
		ID:            ids.New(),
		Username:      username,
		Email:         email,
		FullName:      fullName,
		AvatarURL:     strings.TrimSpace(p.AvatarURL),
		CoverImageURL: strings.TrimSpace(p.CoverImageURL),
		PasswordHash:  hash,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.call(ctx, func(ctx context.Context) error {
		return s.store.Create(ctx, user)
	}); err != nil {
		return Profile{}, err
	}
	return user.Profile(), nil
}

// Login verifies credentials and issues a fresh token pair. The refresh token
// overwrites any previously stored value, so a second login invalidates the
// first session. Unknown user and wrong password are indistinguishable to the
// caller.
func (s *Service) Login(ctx context.Context, identifier, password string) (Profile, TokenPair, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" || password == "" {
		return Profile{}, TokenPair{}, ErrInvalidInput
	}
	var user *User
	if err := s.call(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.store.FindByIdentifier(ctx, identifier)
		return err
	}); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Profile{}, TokenPair{}, ErrInvalidCredentials
		}
		return Profile{}, TokenPair{}, err
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return Profile{}, TokenPair{}, ErrInvalidCredentials
	}
	pair, err := s.mintPair(user.ID)
	if err != nil {
		return Profile{}, TokenPair{}, err
	}
	if err := s.call(ctx, func(ctx context.Context) error {
		return s.store.SetRefreshToken(ctx, user.ID, pair.RefreshToken)
	}); err != nil {
		return Profile{}, TokenPair{}, err
	}
	return user.Profile(), pair, nil
}

// Refresh validates a presented refresh token against the stored current
// value and rotates the pair. A token that was rotated away fails with
// ErrTokenReused even when its signature and expiry are still valid. The
// swap is conditional on the previous value so two concurrent refreshes
// cannot both succeed.
func (s *Service) Refresh(ctx context.Context, presented string) (Profile, TokenPair, error) {
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return Profile{}, TokenPair{}, ErrUnauthorized
	}
	userID, err := s.signer.Verify(presented, KindRefresh)
	if err != nil {
		return Profile{}, TokenPair{}, ErrInvalidToken
	}
	var user *User
	if err := s.call(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.store.FindByID(ctx, userID)
		return err
	}); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Profile{}, TokenPair{}, ErrInvalidToken
		}
		return Profile{}, TokenPair{}, err
	}
	if user.RefreshToken == "" || user.RefreshToken != presented {
		return Profile{}, TokenPair{}, ErrTokenReused
	}
	pair, err := s.mintPair(user.ID)
	if err != nil {
		return Profile{}, TokenPair{}, err
	}
	var rotated bool
	if err := s.call(ctx, func(ctx context.Context) error {
		var err error
		rotated, err = s.store.RotateRefreshToken(ctx, user.ID, presented, pair.RefreshToken)
		return err
	}); err != nil {
		return Profile{}, TokenPair{}, err
	}
	if !rotated {
		// A concurrent refresh or login won the swap.
		return Profile{}, TokenPair{}, ErrTokenReused
	}
	return user.Profile(), pair, nil
}

// Logout clears the stored refresh token. Calling it twice leaves the same
// end state.
func (s *Service) Logout(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrInvalidInput
	}
	return s.call(ctx, func(ctx context.Context) error {
		return s.store.SetRefreshToken(ctx, userID, "")
	})
}

// Authenticate verifies an access token and loads the minimal user
// projection for request attachment.
func (s *Service) Authenticate(ctx context.Context, token string) (Profile, error) {
	userID, err := s.signer.Verify(token, KindAccess)
	if err != nil {
		return Profile{}, ErrInvalidToken
	}
	user, err := s.CurrentUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Profile{}, ErrInvalidToken
		}
		return Profile{}, err
	}
	return user, nil
}

// CurrentUser loads the profile projection for userID.
func (s *Service) CurrentUser(ctx context.Context, userID string) (Profile, error) {
	var user *User
	if err := s.call(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.store.FindByID(ctx, userID)
		return err
	}); err != nil {
		return Profile{}, err
	}
	return user.Profile(), nil
}

// ChangePassword verifies the old password and replaces the stored hash.
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return ErrInvalidInput
	}
	if newPassword == oldPassword {
		return ErrInvalidInput
	}
	var user *User
	if err := s.call(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.store.FindByID(ctx, userID)
		return err
	}); err != nil {
		return err
	}
	if err := VerifyPassword(user.PasswordHash, oldPassword); err != nil {
		return ErrInvalidCredentials
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.call(ctx, func(ctx context.Context) error {
		return s.store.UpdatePassword(ctx, userID, hash)
	})
}

// UpdateProfile changes the mutable account fields.
func (s *Service) UpdateProfile(ctx context.Context, userID, fullName, email string) (Profile, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.ToLower(strings.TrimSpace(email))
	if fullName == "" || email == "" || !strings.Contains(email, "@") {
		return Profile{}, ErrInvalidInput
	}
	var user *User
	if err := s.call(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.store.UpdateProfile(ctx, userID, fullName, email)
		return err
	}); err != nil {
		return Profile{}, err
	}
	return user.Profile(), nil
}

func (s *Service) mintPair(userID string) (TokenPair, error) {
	access, accessExp, err := s.signer.Sign(userID, KindAccess)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := s.signer.Sign(userID, KindRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// call bounds a store operation with the configured timeout and maps
// deadline expiry to ErrUnavailable.
func (s *Service) call(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	err := fn(ctx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return ErrUnavailable
	}
	return err
}
