package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/1001stories/stories-api/internal/config"
	"github.com/1001stories/stories-api/internal/domain"
)

const testSecret = "test-secret-that-is-long-enough-for-testing"

func newTestService(t *testing.T, secret string, now func() time.Time) *hmacJWTService {
	t.Helper()
	svc, err := newHMACJWTService(config.AuthConfig{
		JWTSecret:                   secret,
		TokenLifetimeMinutes:        60,
		RefreshTokenLifetimeMinutes: 1440,
	}, now)
	require.NoError(t, err)
	return svc
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNewJWTService_RejectsShortSecret(t *testing.T) {
	t.Parallel()

	_, err := NewJWTService(config.AuthConfig{JWTSecret: "short"})
	assert.Error(t, err)
}

func TestGenerateToken(t *testing.T) {
	t.Parallel()

	fixedTime := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, testSecret, fixedClock(fixedTime))
	userID := uuid.New()

	token, err := svc.GenerateToken(context.Background(), userID, domain.RoleWriter)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)

	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, domain.RoleWriter, claims.Role)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, fixedTime.Unix(), claims.IssuedAt.Unix())
	assert.Equal(t, fixedTime.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
	assert.NotEmpty(t, claims.ID)
}

func TestValidateToken(t *testing.T) {
	t.Parallel()

	issued := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	userID := uuid.New()
	issuer := newTestService(t, testSecret, fixedClock(issued))

	access, err := issuer.GenerateToken(context.Background(), userID, domain.RoleLearner)
	require.NoError(t, err)
	refresh, err := issuer.GenerateRefreshToken(context.Background(), userID, domain.RoleLearner)
	require.NoError(t, err)
	badRole, err := issuer.sign(context.Background(), userID, domain.Role("ROOT"), TokenTypeAccess, issued.Add(time.Hour))
	require.NoError(t, err)

	tests := []struct {
		name      string
		token     string
		secret    string
		validAt   time.Time
		wantError error
	}{
		{name: "valid", token: access, secret: testSecret, validAt: issued.Add(30 * time.Minute)},
		{name: "within clock skew", token: access, secret: testSecret, validAt: issued.Add(61 * time.Minute)},
		{name: "expired", token: access, secret: testSecret, validAt: issued.Add(2 * time.Hour), wantError: ErrExpiredToken},
		{name: "wrong secret", token: access, secret: "wrong-secret-that-is-long-enough-for-testing", validAt: issued, wantError: ErrInvalidToken},
		{name: "malformed", token: "not.a.jwt", secret: testSecret, validAt: issued, wantError: ErrInvalidToken},
		{name: "refresh token", token: refresh, secret: testSecret, validAt: issued, wantError: ErrWrongTokenType},
		{name: "unknown role", token: badRole, secret: testSecret, validAt: issued, wantError: ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := newTestService(t, tt.secret, fixedClock(tt.validAt))

			claims, err := svc.ValidateToken(context.Background(), tt.token)
			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				assert.Nil(t, claims)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, userID, claims.UserID)
		})
	}
}

func TestValidateToken_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	claims := jwtCustomClaims{
		UserID:    uuid.New(),
		Role:      domain.RoleAdmin,
		TokenType: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	svc := newTestService(t, testSecret, time.Now)
	_, err = svc.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshToken(t *testing.T) {
	t.Parallel()

	issued := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	userID := uuid.New()
	svc := newTestService(t, testSecret, fixedClock(issued))

	refresh, err := svc.GenerateRefreshToken(context.Background(), userID, domain.RoleTeacher)
	require.NoError(t, err)

	claims, err := svc.ValidateRefreshToken(context.Background(), refresh)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleTeacher, claims.Role)
	assert.Equal(t, issued.Add(24*time.Hour).Unix(), claims.ExpiresAt.Unix())

	access, err := svc.GenerateToken(context.Background(), userID, domain.RoleTeacher)
	require.NoError(t, err)
	_, err = svc.ValidateRefreshToken(context.Background(), access)
	assert.ErrorIs(t, err, ErrWrongTokenType)

	later := newTestService(t, testSecret, fixedClock(issued.Add(48*time.Hour)))
	_, err = later.ValidateRefreshToken(context.Background(), refresh)
	assert.ErrorIs(t, err, ErrExpiredRefreshToken)

	_, err = svc.ValidateRefreshToken(context.Background(), "garbage")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestBcryptVerifier(t *testing.T) {
	t.Parallel()

	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)

	v := NewBcryptVerifier()
	assert.NoError(t, v.Compare(string(hash), "correct horse"))
	assert.Error(t, v.Compare(string(hash), "battery staple"))
}
