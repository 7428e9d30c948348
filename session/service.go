package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/creasty/defaults"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretLength is the smallest accepted signing secret. HS256 keys
// shorter than the hash output weaken the MAC.
const MinSecretLength = 32

// ErrNoDenylist is returned by RevokeSession when no denylist is attached.
var ErrNoDenylist = errors.New("session: revocation requires a denylist")

// Config holds the token parameters.
type Config struct {
	Secret   []byte        // HMAC-SHA256 signing key, at least MinSecretLength bytes
	Issuer   string        `default:"memberauth"`
	Audience string        `default:"memberauth"`
	TTL      time.Duration `default:"2h"`
}

// Service creates and verifies session tokens. Safe for concurrent use.
type Service struct {
	cfg      Config
	denylist Denylist
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures optional Service collaborators.
type Option func(*Service)

// WithDenylist attaches a revocation denylist.
func WithDenylist(d Denylist) Option {
	return func(s *Service) { s.denylist = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// withClock substitutes the time source. Test hook.
func withClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService builds a token service from cfg.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply session defaults: %w", err)
	}
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("session secret must be at least %d bytes", MinSecretLength)
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("session TTL must be positive")
	}

	s := &Service{
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateSession issues a signed token for username, valid for the
// configured TTL.
func (s *Service) CreateSession(username string) (string, error) {
	if username == "" {
		return "", errors.New("username is required")
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   username,
		Issuer:    s.cfg.Issuer,
		Audience:  jwt.ClaimStrings{s.cfg.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TTL)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	s.logger.Debug("session created",
		"username", username,
		"token_id", claims.ID,
		"expires_at", claims.ExpiresAt.Time)
	return token, nil
}

// VerifySession returns the username a valid token was issued to, or the
// empty string. Every verification failure collapses to "": callers get no
// signal about why a token was rejected.
func (s *Service) VerifySession(ctx context.Context, token string) string {
	claims, err := s.parse(token)
	if err != nil {
		s.logger.Debug("session rejected", "error", err)
		return ""
	}
	if claims.Subject == "" {
		return ""
	}

	if s.denylist != nil {
		revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			s.logger.Error("denylist lookup failed", "token_id", claims.ID, "error", err)
			return ""
		}
		if revoked {
			s.logger.Info("revoked session rejected", "token_id", claims.ID)
			return ""
		}
	}

	return claims.Subject
}

// RevokeSession invalidates a still-valid token by recording its ID until
// the token's own expiry. Expired or unverifiable tokens need no
// revocation and are a no-op.
func (s *Service) RevokeSession(ctx context.Context, token string) error {
	if s.denylist == nil {
		return ErrNoDenylist
	}

	claims, err := s.parse(token)
	if err != nil {
		return nil
	}

	ttl := claims.ExpiresAt.Time.Sub(s.now())
	if ttl <= 0 {
		return nil
	}

	if err := s.denylist.Revoke(ctx, claims.ID, ttl); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	s.logger.Info("session revoked", "token_id", claims.ID, "username", claims.Subject)
	return nil
}

func (s *Service) parse(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) { return s.cfg.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(s.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
