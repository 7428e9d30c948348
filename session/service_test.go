package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// testClock is a settable time source shared with the service under test.
type testClock struct {
	current time.Time
}

func (c *testClock) now() time.Time {
	return c.current
}

func (c *testClock) advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func newTestService(t *testing.T, cfg Config, opts ...Option) (*Service, *testClock) {
	t.Helper()
	clock := &testClock{current: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
	if cfg.Secret == nil {
		cfg.Secret = testSecret
	}
	svc, err := NewService(cfg, append(opts, withClock(clock.now))...)
	require.NoError(t, err)
	return svc, clock
}

func TestNewServiceValidation(t *testing.T) {
	_, err := NewService(Config{Secret: []byte("too short")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 32 bytes")

	_, err = NewService(Config{Secret: testSecret, TTL: -time.Hour})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TTL")
}

func TestCreateSessionRequiresUsername(t *testing.T) {
	svc, _ := newTestService(t, Config{})

	token, err := svc.CreateSession("")

	assert.Empty(t, token)
	assert.Error(t, err)
}

func TestSessionRoundTrip(t *testing.T) {
	svc, _ := newTestService(t, Config{})

	token, err := svc.CreateSession("alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	assert.Equal(t, "alice", svc.VerifySession(context.Background(), token))
}

func TestSessionDefaultClaims(t *testing.T) {
	svc, clock := newTestService(t, Config{})

	token, err := svc.CreateSession("alice")
	require.NoError(t, err)

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return testSecret, nil },
		jwt.WithTimeFunc(clock.now))
	require.NoError(t, err)

	assert.Equal(t, "memberauth", claims.Issuer)
	assert.Equal(t, jwt.ClaimStrings{"memberauth"}, claims.Audience)
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, 2*time.Hour, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
}

func TestVerifySessionExpired(t *testing.T) {
	svc, clock := newTestService(t, Config{TTL: time.Hour})

	token, err := svc.CreateSession("alice")
	require.NoError(t, err)

	clock.advance(59 * time.Minute)
	assert.Equal(t, "alice", svc.VerifySession(context.Background(), token))

	clock.advance(2 * time.Minute)
	assert.Empty(t, svc.VerifySession(context.Background(), token))
}

func TestVerifySessionTampered(t *testing.T) {
	svc, _ := newTestService(t, Config{})

	token, err := svc.CreateSession("alice")
	require.NoError(t, err)

	// Corrupt the claims segment; the signature no longer matches.
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	payload := parts[1]
	flipped := "e"
	if strings.HasPrefix(payload, "e") {
		flipped = "f"
	}
	parts[1] = flipped + payload[1:]

	assert.Empty(t, svc.VerifySession(context.Background(), strings.Join(parts, ".")))
}

func TestVerifySessionWrongKey(t *testing.T) {
	issuing, _ := newTestService(t, Config{})
	verifying, _ := newTestService(t, Config{Secret: []byte("ffffffffffffffffffffffffffffffff")})

	token, err := issuing.CreateSession("alice")
	require.NoError(t, err)

	assert.Empty(t, verifying.VerifySession(context.Background(), token))
}

func TestVerifySessionIssuerAudienceMismatch(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"wrong issuer", Config{Issuer: "other-issuer"}},
		{"wrong audience", Config{Audience: "other-audience"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issuing, _ := newTestService(t, tt.cfg)
			verifying, _ := newTestService(t, Config{})

			token, err := issuing.CreateSession("alice")
			require.NoError(t, err)

			assert.Empty(t, verifying.VerifySession(context.Background(), token))
		})
	}
}

func TestVerifySessionRejectsForeignAlgorithm(t *testing.T) {
	svc, clock := newTestService(t, Config{})

	claims := jwt.RegisteredClaims{
		Subject:   "alice",
		Issuer:    "memberauth",
		Audience:  jwt.ClaimStrings{"memberauth"},
		IssuedAt:  jwt.NewNumericDate(clock.now()),
		ExpiresAt: jwt.NewNumericDate(clock.now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS384, claims).SignedString(testSecret)
	require.NoError(t, err)

	assert.Empty(t, svc.VerifySession(context.Background(), token))
}

func TestVerifySessionGarbage(t *testing.T) {
	svc, _ := newTestService(t, Config{})

	assert.Empty(t, svc.VerifySession(context.Background(), ""))
	assert.Empty(t, svc.VerifySession(context.Background(), "not.a.token"))
}

func TestVerifySessionRequiresExpiry(t *testing.T) {
	svc, clock := newTestService(t, Config{})

	claims := jwt.RegisteredClaims{
		Subject:  "alice",
		Issuer:   "memberauth",
		Audience: jwt.ClaimStrings{"memberauth"},
		IssuedAt: jwt.NewNumericDate(clock.now()),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)

	assert.Empty(t, svc.VerifySession(context.Background(), token))
}

func TestRevokeSessionWithoutDenylist(t *testing.T) {
	svc, _ := newTestService(t, Config{})

	token, err := svc.CreateSession("alice")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.RevokeSession(context.Background(), token), ErrNoDenylist)
}

func TestRevokeSession(t *testing.T) {
	denylist := NewMemoryDenylist()
	svc, _ := newTestService(t, Config{}, WithDenylist(denylist))

	token, err := svc.CreateSession("alice")
	require.NoError(t, err)
	require.Equal(t, "alice", svc.VerifySession(context.Background(), token))

	require.NoError(t, svc.RevokeSession(context.Background(), token))

	assert.Empty(t, svc.VerifySession(context.Background(), token))

	other, err := svc.CreateSession("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", svc.VerifySession(context.Background(), other),
		"revocation is per token, not per user")
}

func TestRevokeSessionExpiredTokenIsNoop(t *testing.T) {
	denylist := NewMemoryDenylist()
	svc, clock := newTestService(t, Config{TTL: time.Hour}, WithDenylist(denylist))

	token, err := svc.CreateSession("alice")
	require.NoError(t, err)

	clock.advance(2 * time.Hour)

	assert.NoError(t, svc.RevokeSession(context.Background(), token))
	assert.Empty(t, denylist.entries)
}

func TestRevokeSessionGarbageIsNoop(t *testing.T) {
	svc, _ := newTestService(t, Config{}, WithDenylist(NewMemoryDenylist()))

	assert.NoError(t, svc.RevokeSession(context.Background(), "not.a.token"))
}
