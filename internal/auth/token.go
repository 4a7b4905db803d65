package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind selects which token class a Signer operation applies to. Access and
// refresh tokens are signed with different secrets so a leaked access secret
// cannot be used to forge refresh tokens.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

const (
	defaultAccessTTL  = 60 * time.Minute
	defaultRefreshTTL = 24 * time.Hour * 30
	defaultIssuer     = "clipstream"
)

var (
	// ErrTokenExpired indicates the token is past its expiry.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenSignature indicates the signature does not match the expected secret.
	ErrTokenSignature = errors.New("auth: token signature mismatch")
	// ErrTokenMalformed indicates the token is structurally invalid.
	ErrTokenMalformed = errors.New("auth: token malformed")
)

// Claims is the JWT payload shared by both token kinds.
type Claims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// SignerConfig carries the secrets and expiry policy for a Signer.
type SignerConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	// Now overrides the time source (useful for tests).
	Now func() time.Time
}

// Signer creates and verifies signed, time-bounded tokens. Verification is
// side-effect free and needs no storage lookup.
type Signer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

// NewSigner validates the configuration and constructs a Signer.
func NewSigner(cfg SignerConfig) (*Signer, error) {
	access := strings.TrimSpace(cfg.AccessSecret)
	refresh := strings.TrimSpace(cfg.RefreshSecret)
	if access == "" || refresh == "" {
		return nil, errors.New("auth: both access and refresh secrets are required")
	}
	if access == refresh {
		return nil, errors.New("auth: access and refresh secrets must differ")
	}
	s := &Signer{
		accessSecret:  []byte(access),
		refreshSecret: []byte(refresh),
		accessTTL:     defaultAccessTTL,
		refreshTTL:    defaultRefreshTTL,
		issuer:        defaultIssuer,
		now:           time.Now,
	}
	if cfg.AccessTTL > 0 {
		s.accessTTL = cfg.AccessTTL
	}
	if cfg.RefreshTTL > 0 {
		s.refreshTTL = cfg.RefreshTTL
	}
	if iss := strings.TrimSpace(cfg.Issuer); iss != "" {
		s.issuer = iss
	}
	if cfg.Now != nil {
		s.now = cfg.Now
	}
	return s, nil
}

// TTL returns the configured lifetime for the given kind.
func (s *Signer) TTL(kind Kind) time.Duration {
	if kind == KindRefresh {
		return s.refreshTTL
	}
	return s.accessTTL
}

func (s *Signer) secret(kind Kind) []byte {
	if kind == KindRefresh {
		return s.refreshSecret
	}
	return s.accessSecret
}

// Sign issues an HS256 token for userID with the expiry policy of kind.
func (s *Signer) Sign(userID string, kind Kind) (string, time.Time, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", time.Time{}, errors.New("auth: userID is required")
	}
	now := s.now().UTC()
	exp := now.Add(s.TTL(kind))
	claims := Claims{
		TokenType: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret(kind))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify checks signature, expiry and kind, and returns the embedded user id.
// A token of one kind never verifies as the other.
func (s *Signer) Verify(token string, kind Kind) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrTokenMalformed
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	parsed, err := parser.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return s.secret(kind), nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return "", ErrTokenSignature
		default:
			return "", ErrTokenMalformed
		}
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return "", ErrTokenMalformed
	}
	if claims.TokenType != string(kind) {
		return "", ErrTokenSignature
	}
	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return "", ErrTokenMalformed
	}
	return sub, nil
}
