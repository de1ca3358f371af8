package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"akimat/internal/models"
)

func TestNewTokenService_RejectsBadConfig(t *testing.T) {
	_, err := NewTokenService(TokenConfig{Secret: "", Algorithm: "HS256"}, newFakeUserRepo())
	require.Error(t, err)

	_, err = NewTokenService(TokenConfig{Secret: "x", Algorithm: "RS256"}, newFakeUserRepo())
	require.Error(t, err)

	_, err = NewTokenService(TokenConfig{Secret: "x", Algorithm: "none"}, newFakeUserRepo())
	require.Error(t, err)
}

func TestIssue_EmbedsIINAndDefaultExpiry(t *testing.T) {
	ts := newTestTokens(newFakeUserRepo())
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ts.now = func() time.Time { return fixed }

	tok, err := ts.Issue("123456789012", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(tok, "."))

	claims, err := ts.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "123456789012", claims.IIN)
	assert.Equal(t, fixed.Add(30*time.Minute), claims.ExpiresAt.Time.UTC())
	assert.Empty(t, claims.Error)
}

func TestIssue_TTLOverride(t *testing.T) {
	ts := newTestTokens(newFakeUserRepo())
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ts.now = func() time.Time { return fixed }

	tok, err := ts.Issue("123456789012", 5*time.Minute)
	require.NoError(t, err)

	claims, err := ts.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, fixed.Add(5*time.Minute), claims.ExpiresAt.Time.UTC())
}

func TestIssue_EmptyIIN_Fails(t *testing.T) {
	ts := newTestTokens(newFakeUserRepo())

	tok, err := ts.Issue("  ", 0)
	require.ErrorIs(t, err, ErrTokenIssue)
	assert.Empty(t, tok)
}

func TestIssue_SigningFault_FailsWithoutFallbackToken(t *testing.T) {
	ts := newTestTokens(newFakeUserRepo())
	ts.sign = func(*jwt.Token, any) (string, error) { return "", errors.New("hsm unavailable") }

	tok, err := ts.Issue("123456789012", 0)
	require.ErrorIs(t, err, ErrTokenIssue)
	assert.Empty(t, tok, "no degraded token may be produced")
}

func TestParse_Rejections(t *testing.T) {
	ts := newTestTokens(newFakeUserRepo())
	other := newTestTokens(newFakeUserRepo())
	other.secret = []byte("other-secret")

	wrongSecret, err := other.Issue("123456789012", 0)
	require.NoError(t, err)

	sign := func(method jwt.SigningMethod, key any, claims jwt.Claims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))

	cases := map[string]string{
		"empty":        "",
		"garbage":      "not.a.jwt",
		"wrong secret": wrongSecret,
		"alg none": sign(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType,
			&Claims{IIN: "123456789012", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}}),
		"other hmac alg": sign(jwt.SigningMethodHS512, []byte(testSecret),
			&Claims{IIN: "123456789012", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}}),
		"missing iin": sign(jwt.SigningMethodHS256, []byte(testSecret),
			&Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}}),
		"missing exp": sign(jwt.SigningMethodHS256, []byte(testSecret),
			&Claims{IIN: "123456789012"}),
		"error token": sign(jwt.SigningMethodHS256, []byte(testSecret),
			&Claims{IIN: "123456789012", Error: "token_creation_failed", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}}),
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ts.Parse(tok)
			require.ErrorIs(t, err, ErrTokenInvalid)
		})
	}
}

func TestParse_Expired_AlwaysFails(t *testing.T) {
	ts := newTestTokens(newFakeUserRepo())
	issuedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ts.now = func() time.Time { return issuedAt }

	tok, err := ts.Issue("123456789012", time.Minute)
	require.NoError(t, err)

	ts.now = func() time.Time { return issuedAt.Add(61 * time.Second) }
	_, err = ts.Parse(tok)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidate_RoundTrip_ResolvesUser(t *testing.T) {
	repo := newFakeUserRepo()
	u := repo.add(models.User{IIN: "123456789012", Status: models.StatusActive})
	ts := newTestTokens(repo)

	tok, err := ts.Issue("123456789012", 0)
	require.NoError(t, err)

	got, err := ts.Validate(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "123456789012", got.IIN)
}

func TestValidate_ExpiredToken_FailsEvenIfUserExists(t *testing.T) {
	repo := newFakeUserRepo()
	repo.add(models.User{IIN: "123456789012", Status: models.StatusActive})
	ts := newTestTokens(repo)
	issuedAt := time.Now().Add(-2 * time.Hour)
	ts.now = func() time.Time { return issuedAt }

	tok, err := ts.Issue("123456789012", time.Hour)
	require.NoError(t, err)

	ts.now = time.Now
	_, err = ts.Validate(context.Background(), tok)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidate_UserGone_ReturnsUserNotFound(t *testing.T) {
	ts := newTestTokens(newFakeUserRepo())

	tok, err := ts.Issue("123456789012", 0)
	require.NoError(t, err)

	_, err = ts.Validate(context.Background(), tok)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestValidate_NoCaching_SeesLifecycleChanges(t *testing.T) {
	repo := newFakeUserRepo()
	u := repo.add(models.User{IIN: "123456789012", Status: models.StatusActive})
	ts := newTestTokens(repo)

	tok, err := ts.Issue("123456789012", 0)
	require.NoError(t, err)

	got, err := ts.Validate(context.Background(), tok)
	require.NoError(t, err)
	assert.True(t, got.IsActive())

	_, err = repo.SetStatus(context.Background(), u.ID, models.StatusInactive)
	require.NoError(t, err)

	got, err = ts.Validate(context.Background(), tok)
	require.NoError(t, err)
	assert.True(t, got.IsInactive(), "deactivation must be visible on the very next request")
}

func TestValidate_StorageFault_ReturnsPersistence(t *testing.T) {
	repo := newFakeUserRepo()
	ts := newTestTokens(repo)
	tok, err := ts.Issue("123456789012", 0)
	require.NoError(t, err)

	repo.getErr = errors.New("db down")
	_, err = ts.Validate(context.Background(), tok)
	require.ErrorIs(t, err, ErrPersistence)
}
